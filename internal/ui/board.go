package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nick-dorsch/swimlane/internal/board"
	"github.com/nick-dorsch/swimlane/internal/drag"
	"github.com/nick-dorsch/swimlane/internal/ui/components"
	"github.com/nick-dorsch/swimlane/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true).Padding(0, 1)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	dragStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

const (
	defaultColumnWidth = 32
	activityHeight     = 4
	activityLimit      = 50
)

type boardChangedMsg struct{}

type resetDoneMsg struct{ err error }

// BoardModel is the three-column board. Dragging is done from the keyboard:
// space grabs the selected card and space again drops it on the focused
// column. The encoded drag payload is the only drag state kept.
type BoardModel struct {
	ctrl    board.Controller
	state   board.State
	changes <-chan struct{}
	stop    func()

	column int
	cursor map[models.Stage]int

	adding bool
	input  textinput.Model

	payload string

	activity *components.ActivityLog
	width    int
	quitting bool
}

func NewBoardModel(ctrl board.Controller) BoardModel {
	input := textinput.New()
	input.Placeholder = "New task title"
	input.CharLimit = 200

	changes, stop := ctrl.Watch()

	return BoardModel{
		ctrl:     ctrl,
		state:    ctrl.State(),
		changes:  changes,
		stop:     stop,
		cursor:   make(map[models.Stage]int, len(models.Stages)),
		input:    input,
		activity: components.NewActivityLog(defaultColumnWidth*len(models.Stages), activityHeight, activityLimit),
		width:    defaultColumnWidth * len(models.Stages),
	}
}

func (m BoardModel) Init() tea.Cmd {
	return waitForChange(m.changes)
}

func waitForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return boardChangedMsg{}
	}
}

func (m BoardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.activity.SetSize(msg.Width, activityHeight)
		return m, nil

	case boardChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case resetDoneMsg:
		if msg.err != nil {
			m.activity.Notice(fmt.Sprintf("reset failed: %v", msg.err))
		} else {
			m.activity.Notice("board reset")
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		if m.adding {
			return m.updateInput(msg)
		}
		return m.updateBoard(msg)
	}

	return m, nil
}

func (m BoardModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		stage := m.stage()
		if task, ok := m.ctrl.Add(stage, m.input.Value()); ok {
			m.activity.Append(fmt.Sprintf("added %q to %s", task.Title, stage.Label()))
			m.cursor[stage] = 0
		}
		m.stopInput()
		m.refresh()
		return m, nil

	case tea.KeyEsc:
		m.stopInput()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *BoardModel) stopInput() {
	m.adding = false
	m.input.Reset()
	m.input.Blur()
}

func (m BoardModel) updateBoard(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		m.stop()
		return m, tea.Quit

	case "left", "h":
		if m.column > 0 {
			m.column--
		}

	case "right", "l":
		if m.column < len(models.Stages)-1 {
			m.column++
		}

	case "up", "k":
		if m.cursor[m.stage()] > 0 {
			m.cursor[m.stage()]--
		}

	case "down", "j":
		if m.cursor[m.stage()] < len(m.state[m.stage()])-1 {
			m.cursor[m.stage()]++
		}

	case "K":
		m.shift(-1)

	case "J":
		m.shift(1)

	case "a":
		m.adding = true
		return m, m.input.Focus()

	case "d":
		if task, ok := m.selected(); ok {
			m.ctrl.Remove(m.stage(), task.ID)
			m.activity.Append(fmt.Sprintf("deleted %q", task.Title))
			m.refresh()
		}

	case " ":
		if m.payload == "" {
			m.grab()
		} else {
			m.drop()
		}

	case "esc":
		if m.payload != "" {
			m.payload = ""
			m.activity.Notice("drag cancelled")
		}

	case "R":
		ctrl := m.ctrl
		return m, func() tea.Msg {
			return resetDoneMsg{err: ctrl.Reset(context.Background())}
		}

	default:
		return m, m.activity.Update(msg)
	}

	return m, nil
}

func (m *BoardModel) grab() {
	task, ok := m.selected()
	if !ok {
		return
	}
	payload, err := drag.Start(task.ID, m.stage())
	if err != nil {
		m.activity.Notice(err.Error())
		return
	}
	m.payload = payload
}

func (m *BoardModel) drop() {
	payload := m.payload
	m.payload = ""

	to := m.stage()
	p, err := drag.Decode(payload)
	if err != nil || !drag.Drop(m.ctrl, payload, to) {
		m.activity.Notice("drop ignored")
		return
	}
	if p.FromStage != to {
		m.activity.Append(fmt.Sprintf("moved %s to %s", m.titleOf(p.TaskID), to.Label()))
	}
	m.refresh()
	m.cursor[to] = len(m.state[to]) - 1
}

// shift moves the selected card one place up or down within its column.
func (m *BoardModel) shift(delta int) {
	task, ok := m.selected()
	if !ok {
		return
	}
	stage := m.stage()
	target := m.cursor[stage] + delta
	if target < 0 || target >= len(m.state[stage]) {
		return
	}
	m.ctrl.MoveTo(stage, stage, task.ID, target)
	m.refresh()
	m.cursor[stage] = target
}

func (m *BoardModel) refresh() {
	m.state = m.ctrl.State()
	for _, stage := range models.Stages {
		n := len(m.state[stage])
		if m.cursor[stage] >= n {
			m.cursor[stage] = n - 1
		}
		if m.cursor[stage] < 0 {
			m.cursor[stage] = 0
		}
	}
	if m.payload != "" {
		// the grabbed card may have been removed by another client
		if p, err := drag.Decode(m.payload); err != nil || !m.state.Contains(p.FromStage, p.TaskID) {
			m.payload = ""
		}
	}
}

func (m BoardModel) stage() models.Stage {
	return models.Stages[m.column]
}

func (m BoardModel) selected() (models.Task, bool) {
	tasks := m.state[m.stage()]
	i := m.cursor[m.stage()]
	if i < 0 || i >= len(tasks) {
		return models.Task{}, false
	}
	return tasks[i], true
}

func (m BoardModel) titleOf(id string) string {
	if stage, i, ok := m.state.Find(id); ok {
		return fmt.Sprintf("%q", m.state[stage][i].Title)
	}
	return id
}

// Dragging reports whether a card is currently grabbed.
func (m BoardModel) Dragging() bool {
	return m.payload != ""
}

func (m BoardModel) View() string {
	if m.quitting {
		return ""
	}

	grabbed := ""
	if m.payload != "" {
		if p, err := drag.Decode(m.payload); err == nil {
			grabbed = p.TaskID
		}
	}

	colWidth := m.width / len(models.Stages)
	if colWidth < 16 {
		colWidth = 16
	}

	cols := make([]string, 0, len(models.Stages))
	for i, stage := range models.Stages {
		c := components.NewColumn(stage.Label(), colWidth)
		c.Tasks = m.state[stage]
		c.Focused = i == m.column
		c.Cursor = m.cursor[stage]
		c.Grabbed = grabbed
		c.DropTarget = grabbed != "" && i == m.column
		cols = append(cols, c.View())
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("swimlane"))
	s.WriteString("\n")
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	s.WriteString("\n")

	switch {
	case m.adding:
		s.WriteString(fmt.Sprintf("Add to %s: %s\n", m.stage().Label(), m.input.View()))
	case grabbed != "":
		s.WriteString(dragStyle.Render(fmt.Sprintf("Dragging %s: move to a column and press space to drop, esc to cancel", m.titleOf(grabbed))))
		s.WriteString("\n")
	}

	if m.activity.Len() > 0 {
		s.WriteString(m.activity.View())
		s.WriteString("\n")
	}

	s.WriteString(helpStyle.Render("h/l column  j/k card  J/K reorder  a add  d delete  space drag/drop  R reset  q quit"))
	s.WriteString("\n")
	return s.String()
}

// RunBoard shows the board until the user quits.
func RunBoard(ctrl board.Controller) error {
	m := NewBoardModel(ctrl)
	defer m.stop()
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
