package board

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nick-dorsch/swimlane/pkg/models"
)

var ErrMalformedSnapshot = errors.New("malformed board snapshot")

// EncodeSnapshot serialises the whole board as one JSON object keyed by stage.
func EncodeSnapshot(s State) ([]byte, error) {
	out := make(map[models.Stage][]models.Task, len(models.Stages))
	for _, stage := range models.Stages {
		tasks := s[stage]
		if tasks == nil {
			tasks = []models.Task{}
		}
		out[stage] = tasks
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a blob written by EncodeSnapshot. Stages missing
// from the blob come back empty; anything that would break the board's
// invariants is reported as ErrMalformedSnapshot.
func DecodeSnapshot(data []byte) (State, error) {
	var raw map[string][]models.Task
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: not an object", ErrMalformedSnapshot)
	}

	s := Empty()
	seen := make(map[string]bool)
	for key, tasks := range raw {
		stage := models.Stage(key)
		if !stage.Valid() {
			return nil, fmt.Errorf("%w: unknown stage %q", ErrMalformedSnapshot, key)
		}
		for _, t := range tasks {
			if t.ID == "" || strings.TrimSpace(t.Title) == "" {
				return nil, fmt.Errorf("%w: task without id or title in %s", ErrMalformedSnapshot, key)
			}
			if seen[t.ID] {
				return nil, fmt.Errorf("%w: duplicate task id %s", ErrMalformedSnapshot, t.ID)
			}
			seen[t.ID] = true
		}
		if tasks != nil {
			s[stage] = tasks
		}
	}
	return s, nil
}
