package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/nick-dorsch/swimlane/internal/ui"
)

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:   "swimlane",
		Short: "A three-stage kanban board",
		Long: `swimlane keeps tasks in three stages (To Do, In Progress, Done) and lets you
drag them between stages from the terminal, a browser or an MCP client.

In remote mode the board lives in a SQL table (SQLite or Postgres) shared by
every client. In local mode it is a single snapshot kept in a file or Redis.

Run without arguments to pick a command from a menu.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.sync()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := ui.RunMenu()
			if err != nil {
				return err
			}
			if selected == "" {
				return nil
			}
			sub, _, err := cmd.Find([]string{selected})
			if err != nil {
				return err
			}
			return sub.RunE(sub, nil)
		},
	}
	root.SetOut(out)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (default .swimlane/config.yaml when present)")
	root.PersistentFlags().StringVar(&a.mode, "mode", "", "board mode: remote or local (overrides config)")

	root.AddCommand(
		newInitCmd(a),
		newBoardCmd(a),
		newWebCmd(a),
		newMCPCmd(a),
		newStatusCmd(a),
		newResetCmd(a),
		newExportCmd(a),
		newImportCmd(a),
	)
	return root
}
