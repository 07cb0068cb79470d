package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/internal/config"
	"github.com/nick-dorsch/swimlane/internal/db"
	"github.com/nick-dorsch/swimlane/internal/local"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

const (
	dataDirName   = ".swimlane"
	gitignoreBody = "swimlane.db*\n*.log\n"
	configBody    = `# Environment variables prefixed SWIMLANE_ override these settings,
# e.g. SWIMLANE_STORE_DSN or SWIMLANE_NOTIFY_BACKEND.
mode: remote
store:
  driver: sqlite
  dsn: .swimlane/swimlane.db
notify:
  backend: memory
local:
  backend: file
  path: .swimlane/board.json
log:
  level: info
  file: .swimlane/swimlane.log
`
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init [dir]",
		Short: "Create a .swimlane directory with a config and an empty task table",
		Long: `Create .swimlane/ in dir (default: the current directory) containing a
.gitignore, a starter config.yaml and an initialised SQLite task table.

If .swimlane/board.json exists its tasks are imported into the table;
otherwise an empty table is seeded with the starter tasks.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			return a.runInit(cmd.Context(), target)
		},
	}
}

func (a *app) runInit(ctx context.Context, target string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	dir := filepath.Join(target, dataDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dataDirName, err)
	}
	fmt.Fprintf(a.out, "✓ Created %s/ directory\n", dataDirName)

	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignoreBody), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Created %s/.gitignore\n", dataDirName)

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(configPath, []byte(configBody), 0600); err != nil {
			return fmt.Errorf("failed to create config.yaml: %w", err)
		}
		fmt.Fprintf(a.out, "✓ Created %s/config.yaml\n", dataDirName)
	}

	driver, dsn := a.cfg.Store.Driver, a.cfg.Store.DSN
	if driver == config.DriverSQLite && dsn == config.Default().Store.DSN {
		dsn = filepath.Join(dir, "swimlane.db")
	}

	database, err := db.Connect(driver, dsn)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Fprintf(a.out, "✓ Initialized database at %s\n", dsn)

	snapshotPath := filepath.Join(dir, "board.json")
	if _, err := os.Stat(snapshotPath); err == nil {
		if err := database.ImportSnapshot(ctx, local.NewFileStore(snapshotPath)); err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Fprintf(a.out, "✓ Imported snapshot from %s\n", snapshotPath)
	} else {
		seeded, err := seedTable(ctx, database)
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintln(a.out, "✓ Seeded starter tasks")
		}
	}

	fmt.Fprintln(a.out, "✓ Swimlane initialized successfully")
	return nil
}

// seedTable inserts the starter tasks when the table is empty.
func seedTable(ctx context.Context, database *db.DB) (bool, error) {
	counts, err := database.CountByStage(ctx)
	if err != nil {
		return false, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	if total > 0 {
		return false, nil
	}

	seed := board.Seed(time.Now().UTC())
	for _, stage := range models.Stages {
		tasks := seed[stage]
		// insert bottom-up so newest-first ordering reproduces the seed order
		for i := len(tasks) - 1; i >= 0; i-- {
			r := models.NewRecord(tasks[i], stage)
			r.CreatedAt = r.CreatedAt.Add(time.Duration(len(tasks)-1-i) * time.Microsecond)
			if err := database.CreateTask(ctx, &r); err != nil {
				return false, fmt.Errorf("failed to seed task: %w", err)
			}
		}
	}
	return true, nil
}
