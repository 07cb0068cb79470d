// Package drag encodes drag-and-drop gestures as a small typed message that
// travels from the grabbed card to the column it is dropped on.
package drag

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

// EffectMove is the only affordance a card drag offers.
const EffectMove = "move"

var ErrMalformedPayload = errors.New("malformed drag payload")

type Payload struct {
	TaskID    string       `json:"task_id"`
	FromStage models.Stage `json:"from_stage"`
}

// Start serialises the payload carried by a drag that begins on a card.
func Start(taskID string, from models.Stage) (string, error) {
	if taskID == "" || !from.Valid() {
		return "", fmt.Errorf("%w: task %q in stage %q", ErrMalformedPayload, taskID, from)
	}
	data, err := json.Marshal(Payload{TaskID: taskID, FromStage: from})
	if err != nil {
		return "", fmt.Errorf("failed to encode drag payload: %w", err)
	}
	return string(data), nil
}

func Decode(raw string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.TaskID == "" {
		return Payload{}, fmt.Errorf("%w: missing task_id", ErrMalformedPayload)
	}
	if !p.FromStage.Valid() {
		return Payload{}, fmt.Errorf("%w: bad from_stage %q", ErrMalformedPayload, p.FromStage)
	}
	return p, nil
}

// Drop applies a drop on column to. A payload that does not decode is
// ignored and Drop reports false. The task lands at the end of the column.
func Drop(ctrl board.Controller, raw string, to models.Stage) bool {
	if !to.Valid() {
		return false
	}
	p, err := Decode(raw)
	if err != nil {
		return false
	}
	ctrl.Move(p.FromStage, to, p.TaskID)
	return true
}
