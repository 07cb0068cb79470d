package sql

import _ "embed"

// Schema creates the tasks table. It is valid for both SQLite and Postgres.
//
//go:embed schema.sql
var Schema string
