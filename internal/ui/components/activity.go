package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true)

	activityStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	scrollbarTrackStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("236"))

	scrollbarHandleStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("241"))
)

// ActivityLog is a scrollable list of recent board events, newest at the
// bottom.
type ActivityLog struct {
	viewport viewport.Model
	lines    []string
	limit    int
	ready    bool
}

// NewActivityLog keeps at most limit lines; zero keeps everything.
func NewActivityLog(width, height, limit int) *ActivityLog {
	a := &ActivityLog{limit: limit}
	a.SetSize(width, height)
	return a
}

func (a *ActivityLog) SetSize(width, height int) {
	vpWidth := width
	if width > 0 {
		vpWidth = width - 1
	}
	if !a.ready {
		a.viewport = viewport.New(vpWidth, height)
		a.ready = true
	} else {
		a.viewport.Width = vpWidth
		a.viewport.Height = height
	}
	a.updateContent()
}

func (a *ActivityLog) Append(line string) {
	a.lines = append(a.lines, line)
	if a.limit > 0 && len(a.lines) > a.limit {
		a.lines = a.lines[len(a.lines)-a.limit:]
	}
	a.updateContent()
}

// Notice appends a dimmed status line.
func (a *ActivityLog) Notice(status string) {
	a.Append(noticeStyle.Render(fmt.Sprintf("--- %s ---", status)))
}

func (a *ActivityLog) Len() int {
	return len(a.lines)
}

func (a *ActivityLog) updateContent() {
	width := a.viewport.Width
	content := strings.Join(a.lines, "\n")
	if width > 0 {
		content = activityStyle.Width(width).Render(content)
	} else {
		content = activityStyle.Render(content)
	}
	a.viewport.SetContent(content)
	a.viewport.GotoBottom()
}

func (a *ActivityLog) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	a.viewport, cmd = a.viewport.Update(msg)
	return cmd
}

func (a *ActivityLog) View() string {
	if !a.ready {
		return ""
	}

	if a.viewport.TotalLineCount() <= a.viewport.Height {
		return a.viewport.View()
	}

	h := a.viewport.Height
	handlePos := int(float64(h-1) * a.viewport.ScrollPercent())

	var sb strings.Builder
	for i := 0; i < h; i++ {
		if i == handlePos {
			sb.WriteString(scrollbarHandleStyle.Render("┃"))
		} else {
			sb.WriteString(scrollbarTrackStyle.Render("│"))
		}
		if i < h-1 {
			sb.WriteString("\n")
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, a.viewport.View(), sb.String())
}
