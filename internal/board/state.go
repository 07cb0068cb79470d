// Package board holds the in-memory arrangement of tasks across the three
// stages and the pure operations that produce a new arrangement from an old one.
package board

import (
	"time"

	"github.com/nick-dorsch/swimlane/pkg/models"
)

// State maps every stage to its ordered tasks, first element shown on top.
// Operations never mutate the receiver.
type State map[models.Stage][]models.Task

// Empty returns a state with an empty list for every stage.
func Empty() State {
	s := make(State, len(models.Stages))
	for _, stage := range models.Stages {
		s[stage] = []models.Task{}
	}
	return s
}

// Seed is the starting board used when no snapshot is available.
func Seed(now time.Time) State {
	s := Empty()
	s[models.StageTodo] = []models.Task{
		{ID: "seed-1", Title: "Drag me to In Progress", CreatedAt: now},
		{ID: "seed-2", Title: "Add your own tasks above", CreatedAt: now},
	}
	return s
}

// FromRecords groups persisted rows by status, keeping the order in which
// they were returned. Rows with an unknown status are skipped and returned
// separately so the caller can report them.
func FromRecords(records []models.Record) (State, []models.Record) {
	s := Empty()
	var skipped []models.Record
	for _, r := range records {
		if !r.Status.Valid() {
			skipped = append(skipped, r)
			continue
		}
		s[r.Status] = append(s[r.Status], r.Task())
	}
	return s, skipped
}

func (s State) Clone() State {
	out := make(State, len(models.Stages))
	for _, stage := range models.Stages {
		out[stage] = append([]models.Task{}, s[stage]...)
	}
	return out
}

// Total is the number of tasks across all stages.
func (s State) Total() int {
	n := 0
	for _, stage := range models.Stages {
		n += len(s[stage])
	}
	return n
}

// Find locates a task by id anywhere on the board.
func (s State) Find(id string) (models.Stage, int, bool) {
	for _, stage := range models.Stages {
		if i := indexOf(s[stage], id); i >= 0 {
			return stage, i, true
		}
	}
	return "", -1, false
}

// Contains reports whether id is in stage.
func (s State) Contains(stage models.Stage, id string) bool {
	return indexOf(s[stage], id) >= 0
}

// Add prepends a new task to stage. A blank title or unknown stage leaves the
// state as it was and reports false.
func (s State) Add(stage models.Stage, title string) (State, models.Task, bool) {
	if !stage.Valid() {
		return s, models.Task{}, false
	}
	task, ok := models.NewTask(title)
	if !ok {
		return s, models.Task{}, false
	}
	return s.Insert(stage, task), task, true
}

// Insert prepends an already constructed task to stage.
func (s State) Insert(stage models.Stage, task models.Task) State {
	if !stage.Valid() {
		return s
	}
	out := s.Clone()
	out[stage] = append([]models.Task{task}, out[stage]...)
	return out
}

// Remove filters id out of stage. An absent id is not an error.
func (s State) Remove(stage models.Stage, id string) State {
	if !stage.Valid() || indexOf(s[stage], id) < 0 {
		return s
	}
	out := s.Clone()
	kept := out[stage][:0]
	for _, t := range out[stage] {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	out[stage] = kept
	return out
}

// Move relocates id from one stage to the end of another.
func (s State) Move(from, to models.Stage, id string) State {
	return s.move(from, to, id, -1, false)
}

// MoveTo relocates id to position index of the target stage, with index
// clamped to [0, len(target)].
func (s State) MoveTo(from, to models.Stage, id string, index int) State {
	return s.move(from, to, id, index, true)
}

func (s State) move(from, to models.Stage, id string, index int, positioned bool) State {
	if !from.Valid() || !to.Valid() {
		return s
	}
	pos := indexOf(s[from], id)
	if pos < 0 {
		return s
	}

	out := s.Clone()
	task := out[from][pos]
	out[from] = append(out[from][:pos], out[from][pos+1:]...)

	// For a same-stage move this is the list the task was just cut from.
	target := out[to]
	if !positioned {
		index = len(target)
	}
	index = clamp(index, 0, len(target))

	target = append(target, models.Task{})
	copy(target[index+1:], target[index:])
	target[index] = task
	out[to] = target
	return out
}

func indexOf(tasks []models.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
