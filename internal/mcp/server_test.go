package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/internal/db"
	"github.com/nick-dorsch/swimlane/internal/local"
	"github.com/nick-dorsch/swimlane/internal/notify"
	"github.com/nick-dorsch/swimlane/internal/remote"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

func newRemoteBoard(t *testing.T) (*remote.Session, *db.DB) {
	t.Helper()
	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}

	broker := notify.NewBroker()
	database.OnChange(func(ctx context.Context) { _ = broker.Publish(ctx) })

	session := remote.NewSession(database, broker)
	if err := session.Start(ctx); err != nil {
		t.Fatalf("Failed to start session: %v", err)
	}
	t.Cleanup(session.Close)
	return session, database
}

// settle waits for queued writes and then reloads the board, so a reload
// triggered by an earlier write cannot overwrite the final state.
func settle(t *testing.T, session *remote.Session) {
	t.Helper()
	session.Wait()
	if err := session.Refetch(context.Background()); err != nil {
		t.Fatalf("Refetch failed: %v", err)
	}
}

func call(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	if tool == nil {
		t.Fatalf("Tool %s not found", name)
	}
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	result, err := tool.Handler(context.Background(), req)
	if err != nil {
		t.Fatalf("Handler failed: %v", err)
	}
	return result
}

func text(result *mcp.CallToolResult) string {
	return result.Content[0].(mcp.TextContent).Text
}

func TestServerInitialization(t *testing.T) {
	session, _ := newRemoteBoard(t)
	s := NewServer(session)
	stdio := server.NewStdioServer(s)

	r, w := io.Pipe()
	stdout := &bytes.Buffer{}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- stdio.Listen(ctx, r, stdout)
	}()

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "test-client",
		Version: "1.0.0",
	}

	rawReq := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "initialize",
		"params":  initReq.Params,
	}

	data, err := json.Marshal(rawReq)
	if err != nil {
		t.Fatalf("Failed to marshal request: %v", err)
	}
	w.Write(data)
	w.Write([]byte("\n"))

	// Give it a moment to process
	time.Sleep(200 * time.Millisecond)

	if stdout.Len() == 0 {
		t.Fatal("Expected response from server, got none")
	}

	var resp struct {
		ID     int `json:"id"`
		Result struct {
			ServerInfo struct {
				Name string `json:"name"`
			} `json:"serverInfo"`
		} `json:"result"`
	}
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to unmarshal response: %v\nOutput: %s", err, stdout.String())
	}
	if resp.ID != 1 {
		t.Errorf("Expected id 1, got %v", resp.ID)
	}
	if resp.Result.ServerInfo.Name != ServerName {
		t.Errorf("Expected server name %s, got %v", ServerName, resp.Result.ServerInfo.Name)
	}
}

func TestToolHandlers(t *testing.T) {
	session, database := newRemoteBoard(t)
	s := NewServer(session)
	ctx := context.Background()

	var first, second models.Task

	t.Run("add_task", func(t *testing.T) {
		result := call(t, s, "add_task", map[string]any{"title": "First", "stage": "todo"})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", text(result))
		}
		if err := json.Unmarshal([]byte(text(result)), &first); err != nil {
			t.Fatalf("Failed to unmarshal task: %v", err)
		}

		// stored timestamps have microsecond precision
		time.Sleep(time.Millisecond)
		result = call(t, s, "add_task", map[string]any{"title": "Second"})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", text(result))
		}
		json.Unmarshal([]byte(text(result)), &second)

		settle(t, session)
		records, err := database.FetchAll(ctx)
		if err != nil {
			t.Fatalf("FetchAll failed: %v", err)
		}
		if len(records) != 2 {
			t.Fatalf("Expected 2 persisted tasks, got %d", len(records))
		}
	})

	t.Run("add_task rejects blank and unknown stage", func(t *testing.T) {
		if result := call(t, s, "add_task", map[string]any{"title": "   "}); !result.IsError {
			t.Error("Expected error for blank title")
		}
		if result := call(t, s, "add_task", map[string]any{"title": "x", "stage": "backlog"}); !result.IsError {
			t.Error("Expected error for unknown stage")
		}
	})

	t.Run("get_board", func(t *testing.T) {
		settle(t, session)
		result := call(t, s, "get_board", map[string]any{})
		var st board.State
		if err := json.Unmarshal([]byte(text(result)), &st); err != nil {
			t.Fatalf("Failed to unmarshal board: %v", err)
		}
		todo := st[models.StageTodo]
		if len(todo) != 2 || todo[0].ID != second.ID {
			t.Errorf("Expected newest task on top, got %+v", todo)
		}
	})

	t.Run("move_task appends", func(t *testing.T) {
		result := call(t, s, "move_task", map[string]any{"id": first.ID, "stage": "done"})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", text(result))
		}
		settle(t, session)

		done := session.State()[models.StageDone]
		if len(done) != 1 || done[0].ID != first.ID {
			t.Errorf("Expected %s in done, got %+v", first.ID, done)
		}
		rec, err := database.GetTask(ctx, first.ID)
		if err != nil || rec == nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if rec.Status != models.StageDone {
			t.Errorf("Expected done, got %s", rec.Status)
		}
	})

	t.Run("move_task with index", func(t *testing.T) {
		result := call(t, s, "move_task", map[string]any{"id": second.ID, "stage": "done", "index": 0.0})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", text(result))
		}
		settle(t, session)

		done := session.State()[models.StageDone]
		if len(done) != 2 || done[0].ID != second.ID {
			t.Fatalf("Expected %s at top of done, got %+v", second.ID, done)
		}
	})

	t.Run("move_task unknown id", func(t *testing.T) {
		if result := call(t, s, "move_task", map[string]any{"id": "missing", "stage": "done"}); !result.IsError {
			t.Error("Expected error for unknown task")
		}
	})

	t.Run("delete_task", func(t *testing.T) {
		result := call(t, s, "delete_task", map[string]any{"id": first.ID})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", text(result))
		}
		settle(t, session)

		rec, err := database.GetTask(ctx, first.ID)
		if err != nil {
			t.Fatalf("GetTask failed: %v", err)
		}
		if rec != nil {
			t.Error("Task still persisted after delete")
		}
		if result := call(t, s, "delete_task", map[string]any{"id": first.ID}); !result.IsError {
			t.Error("Expected error deleting a missing task")
		}
	})

	t.Run("reset_board", func(t *testing.T) {
		result := call(t, s, "reset_board", map[string]any{})
		if result.IsError {
			t.Fatalf("Tool returned error: %v", text(result))
		}
		if n := session.State().Total(); n != 0 {
			t.Errorf("Expected empty board, got %d tasks", n)
		}
	})
}

func TestToolHandlersLocalBoard(t *testing.T) {
	session := local.NewSession(local.NewFileStore(filepath.Join(t.TempDir(), "board.json")))
	session.Start(context.Background())
	s := NewServer(session)

	call(t, s, "move_task", map[string]any{"id": "seed-1", "stage": "in_progress"})
	call(t, s, "reset_board", map[string]any{})

	st := session.State()
	if len(st[models.StageTodo]) != 2 || len(st[models.StageInProgress]) != 0 {
		t.Errorf("Expected seed board after reset, got %+v", st)
	}
}
