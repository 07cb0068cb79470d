package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/internal/db"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

func TestInit(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(t.TempDir())

	if _, err := run(t, "init", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	dataDir := filepath.Join(tmpDir, ".swimlane")
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		t.Errorf(".swimlane directory was not created")
	}

	content, err := os.ReadFile(filepath.Join(dataDir, ".gitignore"))
	if err != nil {
		t.Errorf("failed to read .gitignore: %v", err)
	}
	if string(content) != gitignoreBody {
		t.Errorf(".gitignore content mismatch: got %q", string(content))
	}

	if _, err := os.Stat(filepath.Join(dataDir, "config.yaml")); err != nil {
		t.Errorf("config.yaml was not created: %v", err)
	}

	dbFilePath := filepath.Join(dataDir, "swimlane.db")
	database, err := db.Open(dbFilePath)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer database.Close()

	records, err := database.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 seeded tasks, got %d", len(records))
	}
	if records[0].ID != "seed-1" || records[1].ID != "seed-2" {
		t.Errorf("expected seed order seed-1, seed-2, got %s, %s", records[0].ID, records[1].ID)
	}
}

func TestInitIsIdempotent(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(t.TempDir())

	for i := 0; i < 2; i++ {
		if _, err := run(t, "init", tmpDir); err != nil {
			t.Fatalf("init #%d failed: %v", i+1, err)
		}
	}

	database, err := db.Open(filepath.Join(tmpDir, ".swimlane", "swimlane.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer database.Close()

	records, err := database.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected seed tasks only once, got %d", len(records))
	}
}

func TestInitWithExistingSnapshot(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(t.TempDir())

	dataDir := filepath.Join(tmpDir, ".swimlane")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatalf("failed to create .swimlane dir: %v", err)
	}

	st := board.Empty()
	st[models.StageInProgress] = []models.Task{{ID: "abc123", Title: "Carried over", CreatedAt: time.Now().UTC()}}
	data, err := board.EncodeSnapshot(st)
	if err != nil {
		t.Fatalf("EncodeSnapshot failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "board.json"), data, 0644); err != nil {
		t.Fatalf("failed to write snapshot: %v", err)
	}

	if _, err := run(t, "init", tmpDir); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	database, err := db.Open(filepath.Join(dataDir, "swimlane.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer database.Close()

	records, err := database.FetchAll(context.Background())
	if err != nil {
		t.Fatalf("FetchAll failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "abc123" || records[0].Status != models.StageInProgress {
		t.Errorf("expected imported task only, got %+v", records)
	}
}
