package db

import (
	"context"
	"fmt"
	"time"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

// SnapshotWriter receives a serialised board.
type SnapshotWriter interface {
	Save(ctx context.Context, data []byte) error
}

// SnapshotReader supplies a serialised board.
type SnapshotReader interface {
	Load(ctx context.Context) ([]byte, error)
}

// EnableAutoSnapshot sets up a hook that mirrors the table into dst after
// every successful write operation.
func (db *DB) EnableAutoSnapshot(dst SnapshotWriter, onErr func(error)) {
	db.OnChange(func(ctx context.Context) {
		// Hooks are best-effort; a failed export must not fail the write.
		if err := db.ExportSnapshot(ctx, dst); err != nil && onErr != nil {
			onErr(err)
		}
	})
}

// ExportSnapshot writes the table in the local board snapshot format.
func (db *DB) ExportSnapshot(ctx context.Context, dst SnapshotWriter) error {
	records, err := db.FetchAll(ctx)
	if err != nil {
		return err
	}

	state, skipped := board.FromRecords(records)
	if len(skipped) > 0 {
		return fmt.Errorf("failed to export snapshot: %d tasks with unknown status", len(skipped))
	}

	data, err := board.EncodeSnapshot(state)
	if err != nil {
		return err
	}
	if err := dst.Save(ctx, data); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ImportSnapshot reads a board snapshot and upserts every task into the
// table inside one transaction. Existing rows not in the snapshot are kept.
func (db *DB) ImportSnapshot(ctx context.Context, src SnapshotReader) error {
	data, err := src.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	state, err := board.DecodeSnapshot(data)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := db.rebind(`
		INSERT INTO tasks (id, title, status, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET title = excluded.title, status = excluded.status
	`)

	for _, stage := range models.Stages {
		for _, t := range state[stage] {
			r := models.NewRecord(t, stage)
			if r.CreatedAt.IsZero() {
				r.CreatedAt = time.Now().UTC()
			}
			if _, err := tx.ExecContext(ctx, query, r.ID, r.Title, string(r.Status), formatTime(r.CreatedAt)); err != nil {
				return fmt.Errorf("failed to sync task %s: %w", r.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx)
	return nil
}
