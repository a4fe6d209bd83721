// Package runner is a terminal front-end for study sessions. It drives the
// same session state machine as the browser and talks to the server with
// the HTTP client.
package runner

import "github.com/charmbracelet/lipgloss"

// Theme names as stored in the preferences file.
const (
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds a color scheme.
type Theme struct {
	Name       string
	Foreground lipgloss.Color
	Primary    lipgloss.Color
	Accent     lipgloss.Color
	Muted      lipgloss.Color
	Border     lipgloss.Color
	Danger     lipgloss.Color
	IsDark     bool
}

// LightTheme returns the light mode theme.
func LightTheme() Theme {
	return Theme{
		Name:       ThemeLight,
		Foreground: lipgloss.Color("#1c2333"),
		Primary:    lipgloss.Color("#2563eb"),
		Accent:     lipgloss.Color("#15803d"),
		Muted:      lipgloss.Color("#5b6578"),
		Border:     lipgloss.Color("#d5dbe6"),
		Danger:     lipgloss.Color("#c53030"),
	}
}

// DarkTheme returns the dark mode theme.
func DarkTheme() Theme {
	return Theme{
		Name:       ThemeDark,
		Foreground: lipgloss.Color("#e6e9ef"),
		Primary:    lipgloss.Color("#4f8cff"),
		Accent:     lipgloss.Color("#8bc34a"),
		Muted:      lipgloss.Color("#9aa3b5"),
		Border:     lipgloss.Color("#2a3348"),
		Danger:     lipgloss.Color("#e0555f"),
		IsDark:     true,
	}
}

// ThemeByName falls back to dark for unknown names.
func ThemeByName(name string) Theme {
	if name == ThemeLight {
		return LightTheme()
	}
	return DarkTheme()
}

// Styles holds the styled components.
type Styles struct {
	Theme Theme

	Card     lipgloss.Style
	Title    lipgloss.Style
	Body     lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Disabled lipgloss.Style
	Error    lipgloss.Style
	Code     lipgloss.Style
	Help     lipgloss.Style
	AIPanel  lipgloss.Style
}

// NewStyles builds styles for a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Theme: t,
		Card: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Border).
			Padding(1, 2),
		Title:    lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Body:     lipgloss.NewStyle().Foreground(t.Foreground),
		Muted:    lipgloss.NewStyle().Foreground(t.Muted),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Disabled: lipgloss.NewStyle().Foreground(t.Muted).Faint(true),
		Error:    lipgloss.NewStyle().Bold(true).Foreground(t.Danger),
		Code:     lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Padding(0, 1),
		Help:     lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		AIPanel: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(t.Primary).
			Padding(0, 1),
	}
}
