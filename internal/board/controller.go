package board

import (
	"context"

	"github.com/nick-dorsch/swimlane/pkg/models"
)

// Controller owns a live board and persists every change. Both the remote
// and local sessions implement it; the TUI, HTTP and MCP front ends only
// talk to this interface.
type Controller interface {
	State() State
	Add(stage models.Stage, title string) (models.Task, bool)
	Remove(stage models.Stage, id string)
	Move(from, to models.Stage, id string)
	MoveTo(from, to models.Stage, id string, index int)
	Reset(ctx context.Context) error

	// Watch delivers a signal after every state change. The second value
	// unsubscribes.
	Watch() (<-chan struct{}, func())
}
