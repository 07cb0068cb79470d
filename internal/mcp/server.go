package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

const (
	ServerName    = "Swimlane"
	ServerVersion = "0.1.0"
)

// NewServer creates a new MCP server operating on ctrl.
func NewServer(ctrl board.Controller) *server.MCPServer {
	s := server.NewMCPServer(ServerName, ServerVersion)

	s.AddTool(mcp.NewTool("get_board",
		mcp.WithDescription("Get the whole board as JSON, keyed by stage (todo, in_progress, done). The first task in each list is the top card."),
	), getBoardHandler(ctrl))

	s.AddTool(mcp.NewTool("add_task",
		mcp.WithDescription("Add a task to the top of a stage."),
		mcp.WithString("title", mcp.Description("Task title (leading and trailing whitespace is trimmed)"), mcp.Required()),
		mcp.WithString("stage", mcp.Description("Stage to add to (todo|in_progress|done, defaults to todo)")),
	), addTaskHandler(ctrl))

	s.AddTool(mcp.NewTool("delete_task",
		mcp.WithDescription("Delete a task by id."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
	), deleteTaskHandler(ctrl))

	s.AddTool(mcp.NewTool("move_task",
		mcp.WithDescription("Move a task to a stage. Without an index the task goes to the bottom of the stage."),
		mcp.WithString("id", mcp.Description("Task id"), mcp.Required()),
		mcp.WithString("stage", mcp.Description("Target stage (todo|in_progress|done)"), mcp.Required()),
		mcp.WithNumber("index", mcp.Description("Position in the target stage, 0 is the top. Out of range values are clamped.")),
	), moveTaskHandler(ctrl))

	s.AddTool(mcp.NewTool("reset_board",
		mcp.WithDescription("Discard every task and return the board to its starting state."),
	), resetBoardHandler(ctrl))

	return s
}

// Serve starts the MCP server on stdio.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func getBoardHandler(ctrl board.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(ctrl.State())
	}
}

func addTaskHandler(ctrl board.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		title := mcp.ParseString(request, "title", "")
		stage, err := models.ParseStage(mcp.ParseString(request, "stage", string(models.StageTodo)))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		task, ok := ctrl.Add(stage, title)
		if !ok {
			return mcp.NewToolResultError("Task title must not be blank"), nil
		}
		return jsonResult(task)
	}
}

func deleteTaskHandler(ctrl board.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")

		stage, _, ok := ctrl.State().Find(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Task with id '%s' not found", id)), nil
		}

		ctrl.Remove(stage, id)
		return mcp.NewToolResultText("Task deleted successfully"), nil
	}
}

func moveTaskHandler(ctrl board.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := mcp.ParseString(request, "id", "")
		to, err := models.ParseStage(mcp.ParseString(request, "stage", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		from, _, ok := ctrl.State().Find(id)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("Task with id '%s' not found", id)), nil
		}

		args, _ := request.Params.Arguments.(map[string]any)
		if _, hasIndex := args["index"]; hasIndex {
			ctrl.MoveTo(from, to, id, mcp.ParseInt(request, "index", 0))
		} else {
			ctrl.Move(from, to, id)
		}

		return mcp.NewToolResultText(fmt.Sprintf("Task '%s' moved from %s to %s", id, from, to)), nil
	}
}

func resetBoardHandler(ctrl board.Controller) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if err := ctrl.Reset(ctx); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("Board reset"), nil
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
