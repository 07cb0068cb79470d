package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nick-dorsch/swimlane/pkg/models"
)

// TimeLayout is the fixed-width UTC form of created_at. Fixed width keeps
// lexical order equal to chronological order in both SQLite and Postgres.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

var ErrTaskNotFound = errors.New("task not found")

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(TimeLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// CreateTask inserts a new row. A missing ID or timestamp is filled in.
func (db *DB) CreateTask(ctx context.Context, r *models.Record) error {
	if err := db.createTask(ctx, db.DB, r); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

func (db *DB) createTask(ctx context.Context, exec executor, r *models.Record) error {
	r.Title = strings.TrimSpace(r.Title)
	if r.Title == "" {
		return fmt.Errorf("failed to create task: title is empty")
	}
	if !r.Status.Valid() {
		return fmt.Errorf("failed to create task: unknown status %q", r.Status)
	}
	if r.ID == "" {
		r.ID = models.NewID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO tasks (id, title, status, created_at) VALUES (?, ?, ?, ?)`
	_, err := exec.ExecContext(ctx, db.rebind(query), r.ID, r.Title, string(r.Status), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by its ID. It returns nil when absent.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Record, error) {
	query := `SELECT id, title, status, created_at FROM tasks WHERE id = ?`
	r, err := scanRecord(db.QueryRowContext(ctx, db.rebind(query), id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return r, nil
}

// ListTasks returns tasks newest first, optionally filtered by status.
func (db *DB) ListTasks(ctx context.Context, status *models.Stage) ([]models.Record, error) {
	query := `SELECT id, title, status, created_at FROM tasks WHERE 1=1`
	args := []interface{}{}

	if status != nil {
		query += " AND status = ?"
		args = append(args, string(*status))
	}

	query += " ORDER BY created_at DESC, id ASC"

	return db.queryTasks(ctx, db.DB, query, args...)
}

// FetchAll returns every task ordered by recency.
func (db *DB) FetchAll(ctx context.Context) ([]models.Record, error) {
	return db.ListTasks(ctx, nil)
}

func (db *DB) queryTasks(ctx context.Context, exec executor, query string, args ...interface{}) ([]models.Record, error) {
	rows, err := exec.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		records = append(records, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return records, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		r         models.Record
		status    string
		createdAt string
	)
	if err := row.Scan(&r.ID, &r.Title, &status, &createdAt); err != nil {
		return nil, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	r.Status = models.Stage(status)
	r.CreatedAt = t
	return &r, nil
}

// UpdateTaskStatus moves a task to another stage.
func (db *DB) UpdateTaskStatus(ctx context.Context, id string, status models.Stage) error {
	if !status.Valid() {
		return fmt.Errorf("failed to update task status: unknown status %q", status)
	}

	query := `UPDATE tasks SET status = ? WHERE id = ?`
	res, err := db.ExecContext(ctx, db.rebind(query), string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update task status: %w", err)
	}
	if err := expectRow(res, id); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteTask deletes a task by its ID.
func (db *DB) DeleteTask(ctx context.Context, id string) error {
	query := `DELETE FROM tasks WHERE id = ?`
	res, err := db.ExecContext(ctx, db.rebind(query), id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if err := expectRow(res, id); err != nil {
		return err
	}

	db.triggerChange(ctx)
	return nil
}

// DeleteAllTasks empties the board.
func (db *DB) DeleteAllTasks(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return fmt.Errorf("failed to delete all tasks: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}

// CountByStage returns the number of tasks in every stage.
func (db *DB) CountByStage(ctx context.Context) (map[models.Stage]int, error) {
	rows, err := db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count tasks: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Stage]int, len(models.Stages))
	for _, s := range models.Stages {
		counts[s] = 0
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.Stage(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return counts, nil
}

func expectRow(res sql.Result, id string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}
	return nil
}
