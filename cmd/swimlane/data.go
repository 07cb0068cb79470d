package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nick-dorsch/swimlane/internal/local"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the number of tasks in each stage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, closeBoard, err := a.openBoard(context.Background())
			if err != nil {
				return err
			}
			defer closeBoard()

			st := ctrl.State()
			fmt.Fprintln(a.out, "Swimlane Board Status")
			fmt.Fprintln(a.out, "=====================")
			fmt.Fprintf(a.out, "Mode:        %s\n", a.cfg.Mode)
			fmt.Fprintf(a.out, "Total Tasks: %d\n", st.Total())
			fmt.Fprintln(a.out, "\nTask Breakdown:")
			for _, stage := range models.Stages {
				fmt.Fprintf(a.out, "  %-12s %d\n", stage.Label()+":", len(st[stage]))
			}
			return nil
		},
	}
}

func newResetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Discard every task",
		Long: `Discard every task. In remote mode the table is emptied; in local mode the
snapshot is cleared and the board returns to the starter tasks.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			ctrl, closeBoard, err := a.openBoard(ctx)
			if err != nil {
				return err
			}
			defer closeBoard()

			if err := ctrl.Reset(ctx); err != nil {
				return fmt.Errorf("failed to reset board: %w", err)
			}
			fmt.Fprintln(a.out, "✓ Board reset")
			return nil
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export <path>",
		Short: "Write the task table to a board snapshot file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.ExportSnapshot(ctx, local.NewFileStore(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ Exported board to %s\n", args[0])
			return nil
		},
	}
}

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Load a board snapshot file into the task table",
		Long: `Load a board snapshot file into the task table. Tasks are matched by id:
existing rows are updated, new ones inserted and rows missing from the
snapshot are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			database, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			if err := database.ImportSnapshot(ctx, local.NewFileStore(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "✓ Imported board from %s\n", args[0])
			return nil
		},
	}
}
