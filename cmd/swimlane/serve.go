package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nick-dorsch/swimlane/internal/mcp"
	"github.com/nick-dorsch/swimlane/internal/server"
	"github.com/nick-dorsch/swimlane/internal/ui"
)

const shutdownTimeout = 5 * time.Second

func newBoardCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "board",
		Short: "Open the board in the terminal",
		Long: `Open the three-column board as a full-screen terminal UI.

Keys: h/l switch column, j/k select a card, J/K reorder, a add, d delete,
space to grab a card and space again to drop it on the focused column,
esc to cancel a drag, R reset, q quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.quiet()
			ctrl, closeBoard, err := a.openBoard(context.Background())
			if err != nil {
				return err
			}
			defer closeBoard()
			return ui.RunBoard(ctrl)
		},
	}
}

func newWebCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "web",
		Short: "Serve the board over HTTP",
		Long: `Serve the board as a drag-and-drop web page with a JSON API, a
server-sent event stream at /api/stream and Prometheus metrics at /metrics.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.HTTP.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			ctrl, closeBoard, err := a.openBoard(ctx)
			if err != nil {
				return err
			}
			defer closeBoard()

			srv := server.NewServer(ctrl,
				server.WithLogger(a.logger.Named("http")),
				server.WithMetrics(a.metrics),
				server.WithGatherer(a.registry),
			)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Warn("http shutdown failed", zap.Error(err))
			}
			return <-errCh
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve board tools over MCP on stdio",
		Long: `Expose the board to MCP clients over stdio with the tools get_board,
add_task, delete_task, move_task and reset_board.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, closeBoard, err := a.openBoard(context.Background())
			if err != nil {
				return err
			}
			defer closeBoard()
			return mcp.Serve(mcp.NewServer(ctrl))
		},
	}
}
