package cli

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

const (
	colorPrimary = "6"
	colorSuccess = "2"
	colorError   = "1"
	colorMuted   = "8"
	colorAccent  = "11"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorPrimary))

	unlockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorSuccess))

	lockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(colorMuted))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorError))

	tutorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color(colorAccent))
)

// markdown renders tutor replies. With plain set, text passes through as is.
type markdown struct {
	renderer *glamour.TermRenderer
}

func newMarkdown(plain bool) *markdown {
	if plain {
		return &markdown{}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return &markdown{}
	}
	return &markdown{renderer: r}
}

func (m *markdown) render(text string) string {
	if m.renderer == nil {
		return text + "\n"
	}
	out, err := m.renderer.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}
