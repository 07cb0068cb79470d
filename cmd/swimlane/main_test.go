package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/internal/config"
	"github.com/nick-dorsch/swimlane/internal/db"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommands(t *testing.T) {
	cmd := newRootCmd(&bytes.Buffer{})
	want := []string{"init", "board", "web", "mcp", "status", "reset", "export", "import"}
	for _, name := range want {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("command %s not registered", name)
			continue
		}
		if sub.Short == "" {
			t.Errorf("command %s should have a Short description", name)
		}
	}
}

func TestInvalidModeFlag(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := run(t, "--mode", "hybrid", "status"); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestLocalStatusAndReset(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := run(t, "--mode", "local", "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "Total Tasks: 2") {
		t.Errorf("expected seed board in status output:\n%s", out)
	}
	if !strings.Contains(out, "To Do:") || !strings.Contains(out, "Mode:        local") {
		t.Errorf("unexpected status output:\n%s", out)
	}

	out, err = run(t, "--mode", "local", "reset")
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if !strings.Contains(out, "Board reset") {
		t.Errorf("unexpected reset output: %s", out)
	}

	if _, err := os.Stat(filepath.Join(".swimlane", "board.json")); err != nil {
		t.Errorf("expected reset to save the seed snapshot: %v", err)
	}
}

func TestLocalRedisBackend(t *testing.T) {
	t.Chdir(t.TempDir())
	m := miniredis.RunT(t)
	t.Setenv("SWIMLANE_LOCAL_BACKEND", "redis")
	t.Setenv("SWIMLANE_REDIS_ADDR", m.Addr())

	if _, err := run(t, "--mode", "local", "reset"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if !m.Exists("swimlane:board") {
		t.Error("expected reset to save the seed snapshot in redis")
	}
	if _, err := os.Stat(filepath.Join(".swimlane", "board.json")); !os.IsNotExist(err) {
		t.Errorf("expected no snapshot file, got %v", err)
	}
}

func TestRedisClientOnlyWhenConfigured(t *testing.T) {
	a := &app{cfg: config.Default()}
	if rc := a.redisClient(); rc != nil {
		t.Error("expected no redis client for the default config")
	}

	a.cfg.Notify.Backend = config.NotifyRedis
	rc := a.redisClient()
	if rc == nil {
		t.Fatal("expected a redis client for redis notifications")
	}
	rc.Close()
}

func TestRemoteResetEmptiesTable(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	if _, err := run(t, "init"); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if _, err := run(t, "reset"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	out, err := run(t, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "Total Tasks: 0") {
		t.Errorf("expected empty board after reset:\n%s", out)
	}
}

func TestExportImport(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("SWIMLANE_STORE_DSN", filepath.Join(dir, "source.db"))

	database, err := db.Open(filepath.Join(dir, "source.db"))
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	r := &models.Record{Title: "Exported", Status: models.StageDone}
	if err := database.CreateTask(ctx, r); err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	database.Close()

	snapshot := filepath.Join(dir, "out", "board.json")
	if _, err := run(t, "export", snapshot); err != nil {
		t.Fatalf("export failed: %v", err)
	}
	data, err := os.ReadFile(snapshot)
	if err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	st, err := board.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("exported snapshot is malformed: %v", err)
	}
	if len(st[models.StageDone]) != 1 || st[models.StageDone][0].ID != r.ID {
		t.Errorf("unexpected exported board: %+v", st)
	}

	t.Setenv("SWIMLANE_STORE_DSN", filepath.Join(dir, "target.db"))
	if _, err := run(t, "import", snapshot); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	target, err := db.Open(filepath.Join(dir, "target.db"))
	if err != nil {
		t.Fatalf("failed to open target db: %v", err)
	}
	defer target.Close()
	got, err := target.GetTask(ctx, r.ID)
	if err != nil || got == nil {
		t.Fatalf("imported task missing: %v", err)
	}
	if got.Status != models.StageDone || got.Title != "Exported" {
		t.Errorf("unexpected imported task: %+v", got)
	}
}

func TestImportMissingFile(t *testing.T) {
	t.Chdir(t.TempDir())
	if _, err := run(t, "import", "nope.json"); err == nil {
		t.Fatal("expected error importing a missing snapshot")
	}
}
