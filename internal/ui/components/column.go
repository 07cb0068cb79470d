package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nick-dorsch/swimlane/pkg/models"
)

var (
	columnStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedColumnStyle = columnStyle.
				BorderForeground(lipgloss.Color("12"))

	dropTargetStyle = columnStyle.
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("214"))

	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252"))

	cardStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	selectedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("12")).
				Bold(true)

	grabbedCardStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("214")).
				Italic(true)

	placeholderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Italic(true)
)

const (
	cursorMarker  = ">"
	grabbedMarker = "✥"
)

// Column renders one stage of the board as a bordered list of cards.
type Column struct {
	Title string
	Tasks []models.Task
	Width int

	Focused bool
	// Cursor is the selected card, or -1 for none.
	Cursor int
	// Grabbed is the id of the card currently being dragged, if any.
	Grabbed    string
	DropTarget bool
}

func NewColumn(title string, width int) *Column {
	return &Column{
		Title:  title,
		Width:  width,
		Cursor: -1,
	}
}

func (c *Column) View() string {
	style := columnStyle
	switch {
	case c.DropTarget:
		style = dropTargetStyle
	case c.Focused:
		style = focusedColumnStyle
	}

	// border and padding take two cells each side
	innerWidth := c.Width - 4
	if innerWidth < 0 {
		innerWidth = 0
	}

	header := columnHeaderStyle.Render(fmt.Sprintf("%s (%d)", c.Title, len(c.Tasks)))

	var body string
	if len(c.Tasks) == 0 {
		body = placeholderStyle.Render("No tasks")
	} else {
		body = c.renderCards(innerWidth)
	}

	return style.Width(c.Width - 2).Render(header + "\n" + body)
}

func (c *Column) renderCards(innerWidth int) string {
	titleWidth := innerWidth - 2
	if titleWidth < 1 {
		titleWidth = 1
	}

	var lines []string
	for i, t := range c.Tasks {
		marker := " "
		style := cardStyle
		if c.Focused && i == c.Cursor {
			marker = cursorMarker
			style = selectedCardStyle
		}
		if t.ID == c.Grabbed {
			marker = grabbedMarker
			style = grabbedCardStyle
		}

		wrapped := lipgloss.NewStyle().Width(titleWidth).Render(t.Title)
		for j, line := range strings.Split(wrapped, "\n") {
			if j == 0 {
				lines = append(lines, style.Render(fmt.Sprintf("%s %s", marker, line)))
			} else {
				lines = append(lines, style.Render(fmt.Sprintf("  %s", line)))
			}
		}
	}
	return strings.Join(lines, "\n")
}
