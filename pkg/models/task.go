package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Stage string

const (
	StageTodo       Stage = "todo"
	StageInProgress Stage = "in_progress"
	StageDone       Stage = "done"
)

// Stages lists every stage in display order.
var Stages = []Stage{StageTodo, StageInProgress, StageDone}

func (s Stage) Valid() bool {
	switch s {
	case StageTodo, StageInProgress, StageDone:
		return true
	}
	return false
}

// Label is the human-readable column heading.
func (s Stage) Label() string {
	switch s {
	case StageTodo:
		return "To Do"
	case StageInProgress:
		return "In Progress"
	case StageDone:
		return "Done"
	}
	return string(s)
}

func ParseStage(s string) (Stage, error) {
	stage := Stage(strings.TrimSpace(s))
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage: %q", s)
	}
	return stage, nil
}

type Task struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Record is one persisted row of the tasks table.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Status    Stage     `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func (r Record) Task() Task {
	return Task{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt}
}

func NewRecord(t Task, stage Stage) Record {
	return Record{ID: t.ID, Title: t.Title, Status: stage, CreatedAt: t.CreatedAt}
}

const idLength = 12

// NewID returns a short random alphanumeric identifier. Collisions are
// possible in principle and accepted.
func NewID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return hex[:idLength]
}

// NewTask builds a task with a fresh id and the current UTC time. It reports
// false when the title is blank after trimming.
func NewTask(title string) (Task, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Task{}, false
	}
	return Task{
		ID:        NewID(),
		Title:     title,
		CreatedAt: time.Now().UTC(),
	}, true
}
