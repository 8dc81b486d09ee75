// Package styles contains Lip Gloss style definitions for terminal output.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	TextPrimaryColor = lipgloss.AdaptiveColor{Light: "#1F2328", Dark: "#E6EDF3"}
	TextMutedColor   = lipgloss.AdaptiveColor{Light: "#6E7781", Dark: "#8B949E"}
	AccentColor      = lipgloss.AdaptiveColor{Light: "#8250DF", Dark: "#D2A8FF"}
	SuccessColor     = lipgloss.AdaptiveColor{Light: "#1A7F37", Dark: "#3FB950"}
	ErrorColor       = lipgloss.AdaptiveColor{Light: "#CF222E", Dark: "#F85149"}
)

var (
	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(AccentColor)
	ItemStyle    = lipgloss.NewStyle().Foreground(TextPrimaryColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(TextMutedColor)
	SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(SuccessColor)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(ErrorColor)
)
