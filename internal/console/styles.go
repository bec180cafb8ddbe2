package console

import "github.com/charmbracelet/lipgloss"

var (
	colorPrompt   = lipgloss.Color("#7f9cb4")
	colorHeader   = lipgloss.Color("#436b77")
	colorSelected = lipgloss.Color("#7f57b4")
	colorGood     = lipgloss.Color("#3f866b")
	colorBad      = lipgloss.Color("#a04a56")
	colorWarn     = lipgloss.Color("#c78854")
	colorMuted    = lipgloss.Color("#9ba0bf")
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(colorPrompt).
			Bold(true)

	headerStyle = lipgloss.NewStyle().
			Foreground(colorHeader).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorSelected).
			Bold(true)

	goodStyle = lipgloss.NewStyle().
			Foreground(colorGood)

	badStyle = lipgloss.NewStyle().
			Foreground(colorBad).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(colorWarn)

	mutedStyle = lipgloss.NewStyle().
			Foreground(colorMuted)
)
