package ui

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nick-dorsch/swimlane/internal/local"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

func newTestBoard(t *testing.T) (BoardModel, *local.Session) {
	t.Helper()
	session := local.NewSession(local.NewFileStore(filepath.Join(t.TempDir(), "board.json")))
	session.Start(context.Background())
	m := NewBoardModel(session)
	t.Cleanup(m.stop)
	return m, session
}

func press(t *testing.T, m BoardModel, keys ...string) BoardModel {
	t.Helper()
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		model, _ := m.Update(msg)
		m = model.(BoardModel)
	}
	return m
}

func ids(tasks []models.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.ID
	}
	return out
}

func TestBoardNavigation(t *testing.T) {
	m, _ := newTestBoard(t)

	m = press(t, m, "l", "l", "l")
	if m.column != 2 {
		t.Errorf("expected column 2, got %d", m.column)
	}
	m = press(t, m, "h", "h", "h")
	if m.column != 0 {
		t.Errorf("expected column 0, got %d", m.column)
	}

	m = press(t, m, "j", "j", "j")
	if got := m.cursor[models.StageTodo]; got != 1 {
		t.Errorf("expected cursor clamped to 1, got %d", got)
	}
	m = press(t, m, "k")
	if got := m.cursor[models.StageTodo]; got != 0 {
		t.Errorf("expected cursor 0, got %d", got)
	}
}

func TestBoardAddTask(t *testing.T) {
	m, session := newTestBoard(t)

	m = press(t, m, "l", "a")
	if !m.adding {
		t.Fatal("expected input mode after 'a'")
	}
	m = press(t, m, "Ship it", "enter")
	if m.adding {
		t.Error("expected input mode to end after enter")
	}

	inProgress := session.State()[models.StageInProgress]
	if len(inProgress) != 1 || inProgress[0].Title != "Ship it" {
		t.Fatalf("expected new task in In Progress, got %+v", inProgress)
	}
	if len(m.state[models.StageInProgress]) != 1 {
		t.Errorf("expected model state refreshed after add")
	}
}

func TestBoardAddCancelledAndBlank(t *testing.T) {
	m, session := newTestBoard(t)

	m = press(t, m, "a", "draft", "esc")
	if m.adding {
		t.Error("expected esc to leave input mode")
	}
	m = press(t, m, "a", "   ", "enter")

	if n := session.State().Total(); n != 2 {
		t.Errorf("expected board unchanged with 2 tasks, got %d", n)
	}
}

func TestBoardDeleteTask(t *testing.T) {
	m, session := newTestBoard(t)

	m = press(t, m, "j", "d")

	todo := session.State()[models.StageTodo]
	if len(todo) != 1 || todo[0].ID != "seed-1" {
		t.Errorf("expected seed-2 deleted, got %+v", todo)
	}
	if m.cursor[models.StageTodo] != 0 {
		t.Errorf("expected cursor clamped after delete, got %d", m.cursor[models.StageTodo])
	}
}

func TestBoardDragAndDrop(t *testing.T) {
	m, session := newTestBoard(t)

	m = press(t, m, " ")
	if !m.Dragging() {
		t.Fatal("expected a drag after space")
	}
	if !strings.Contains(m.View(), "Dragging") {
		t.Errorf("expected drag hint in view")
	}

	m = press(t, m, "l", " ")
	if m.Dragging() {
		t.Error("expected drag to end after drop")
	}

	st := session.State()
	if got := ids(st[models.StageInProgress]); len(got) != 1 || got[0] != "seed-1" {
		t.Errorf("expected seed-1 in In Progress, got %v", got)
	}
	if got := ids(st[models.StageTodo]); len(got) != 1 || got[0] != "seed-2" {
		t.Errorf("expected only seed-2 left in To Do, got %v", got)
	}
}

func TestBoardDragCancelled(t *testing.T) {
	m, session := newTestBoard(t)

	m = press(t, m, " ", "l", "l", "esc")
	if m.Dragging() {
		t.Error("expected esc to cancel the drag")
	}
	m = press(t, m, " ")

	if len(session.State()[models.StageDone]) != 0 {
		t.Errorf("expected nothing dropped after cancel")
	}
}

func TestBoardDragTargetRemovedElsewhere(t *testing.T) {
	m, session := newTestBoard(t)

	m = press(t, m, " ")
	session.Remove(models.StageTodo, "seed-1")

	model, _ := m.Update(boardChangedMsg{})
	m = model.(BoardModel)
	if m.Dragging() {
		t.Error("expected drag dropped once the grabbed card disappeared")
	}
}

func TestBoardReorder(t *testing.T) {
	m, session := newTestBoard(t)

	m = press(t, m, "J")
	if got := ids(session.State()[models.StageTodo]); got[0] != "seed-2" || got[1] != "seed-1" {
		t.Errorf("expected seed-1 moved down, got %v", got)
	}
	if m.cursor[models.StageTodo] != 1 {
		t.Errorf("expected cursor to follow the card, got %d", m.cursor[models.StageTodo])
	}

	m = press(t, m, "K")
	if got := ids(session.State()[models.StageTodo]); got[0] != "seed-1" {
		t.Errorf("expected seed-1 back on top, got %v", got)
	}
}

func TestBoardReset(t *testing.T) {
	m, session := newTestBoard(t)
	session.Add(models.StageDone, "finished")

	model, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("R")})
	m = model.(BoardModel)
	if cmd == nil {
		t.Fatal("expected reset command")
	}

	msg := cmd()
	if _, ok := msg.(resetDoneMsg); !ok {
		t.Fatalf("expected resetDoneMsg, got %T", msg)
	}
	model, _ = m.Update(msg)
	m = model.(BoardModel)

	if len(m.state[models.StageDone]) != 0 || len(m.state[models.StageTodo]) != 2 {
		t.Errorf("expected seed board after reset, got %+v", m.state)
	}
}

func TestBoardFollowsExternalChanges(t *testing.T) {
	m, session := newTestBoard(t)

	cmd := m.Init()
	session.Add(models.StageDone, "from elsewhere")

	msg := cmd()
	if _, ok := msg.(boardChangedMsg); !ok {
		t.Fatalf("expected boardChangedMsg, got %T", msg)
	}
	model, next := m.Update(msg)
	m = model.(BoardModel)
	if next == nil {
		t.Error("expected to keep waiting for changes")
	}
	if len(m.state[models.StageDone]) != 1 {
		t.Errorf("expected external task on board, got %+v", m.state[models.StageDone])
	}
}

func TestBoardView(t *testing.T) {
	m, _ := newTestBoard(t)
	view := m.View()

	for _, want := range []string{"To Do (2)", "In Progress (0)", "Done (0)", "Drag me to In Progress"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}

	m = press(t, m, "q")
	if m.View() != "" {
		t.Errorf("expected empty view after quit")
	}
}
