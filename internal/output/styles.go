package output

import "github.com/charmbracelet/lipgloss"

// Color palette, 256-color codes.
const (
	colorCyan     = "51"  // primary accent
	colorCyanDim  = "30"  // secondary accent
	colorWhite    = "255" // titles
	colorGray     = "245" // labels, metadata
	colorDarkGray = "238" // separators
	colorYellow   = "220" // scores
)

// Styles holds the render styles for terminal output.
type Styles struct {
	Title     lipgloss.Style
	Accent    lipgloss.Style
	Label     lipgloss.Style
	Score     lipgloss.Style
	Dim       lipgloss.Style
	Separator lipgloss.Style
}

// DefaultStyles returns the colored style set.
func DefaultStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(colorWhite)),
		Accent:    lipgloss.NewStyle().Foreground(lipgloss.Color(colorCyan)),
		Label:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray)),
		Score:     lipgloss.NewStyle().Foreground(lipgloss.Color(colorYellow)),
		Dim:       lipgloss.NewStyle().Foreground(lipgloss.Color(colorCyanDim)),
		Separator: lipgloss.NewStyle().Foreground(lipgloss.Color(colorDarkGray)),
	}
}

// PlainStyles returns an unstyled set for pipes and NO_COLOR.
func PlainStyles() Styles {
	return Styles{
		Title:     lipgloss.NewStyle(),
		Accent:    lipgloss.NewStyle(),
		Label:     lipgloss.NewStyle(),
		Score:     lipgloss.NewStyle(),
		Dim:       lipgloss.NewStyle(),
		Separator: lipgloss.NewStyle(),
	}
}
