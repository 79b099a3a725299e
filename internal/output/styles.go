package output

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/digggggmori-pixel/ferret-hunt/pkg/types"
)

// ── Color Palette ──

var (
	ColorBorder  = lipgloss.Color("#2a2a3d")
	ColorText    = lipgloss.Color("#c8c8d4")
	ColorTextDim = lipgloss.Color("#6b6b7b")
	ColorAccent  = lipgloss.Color("#5eead4")

	ColorCritical      = lipgloss.Color("#ef4444")
	ColorHigh          = lipgloss.Color("#f59e0b")
	ColorMedium        = lipgloss.Color("#eab308")
	ColorLow           = lipgloss.Color("#22c55e")
	ColorInformational = lipgloss.Color("#06b6d4")

	ColorError = lipgloss.Color("#ef4444")
)

// ── Reusable Styles ──

var (
	// Header and summary frame
	FrameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	TitleStyle = lipgloss.NewStyle().
			Foreground(ColorAccent).
			Bold(true)

	HintStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)

	LabelStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim).
			Width(12)

	ValueStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	AlertStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	// Certainty badges
	CertainStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(ColorCritical).
			Bold(true).
			Padding(0, 1)

	HighStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(ColorHigh).
			Bold(true).
			Padding(0, 1)

	ModerateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(ColorMedium).
			Padding(0, 1)

	LowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(ColorLow).
			Padding(0, 1)

	NoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(ColorInformational).
			Padding(0, 1)
)

// CertaintyStyle returns the badge style for a certainty
func CertaintyStyle(c types.Certainty) lipgloss.Style {
	switch c {
	case types.CertaintyCertain:
		return CertainStyle
	case types.CertaintyHigh:
		return HighStyle
	case types.CertaintyModerate:
		return ModerateStyle
	case types.CertaintyLow:
		return LowStyle
	default:
		return NoneStyle
	}
}

// Truncate truncates a string to maxLen runes, adding "..." if needed.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
