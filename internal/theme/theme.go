// Package theme provides the Lip Gloss palette and reusable styles for the
// relay terminal monitor. It is a leaf package with no internal imports.
package theme

import "github.com/charmbracelet/lipgloss"

// Frame colors.
var (
	ColorMetadata = lipgloss.Color("#7c3aed")
	ColorPoint    = lipgloss.Color("#2563eb")
	ColorPhoto    = lipgloss.Color("#d97706")
	ColorEnd      = lipgloss.Color("#16a34a")
	ColorError    = lipgloss.Color("#dc2626")
	ColorPairing  = lipgloss.Color("#06b6d4")
	ColorExport   = lipgloss.Color("#a855f7")
	ColorDefault  = lipgloss.Color("#9ca3af")
)

// Progress bar gradient.
var (
	ColorProgressStart = "#3b82f6"
	ColorProgressEnd   = "#22c55e"
)

// UI chrome colors.
var (
	ColorBorder  = lipgloss.Color("#4b5563")
	ColorDimmed  = lipgloss.Color("#6b7280")
	ColorBright  = lipgloss.Color("#f9fafb")
	ColorHealthy = lipgloss.Color("#22c55e")
	ColorWarning = lipgloss.Color("#d97706")
	ColorDanger  = lipgloss.Color("#dc2626")
)

// FrameColor returns the color used for a frame type.
func FrameColor(frameType string) lipgloss.Color {
	switch frameType {
	case "metadata":
		return ColorMetadata
	case "point":
		return ColorPoint
	case "photo":
		return ColorPhoto
	case "end":
		return ColorEnd
	case "error":
		return ColorError
	case "web_waiting", "web_waiting_planning", "import_request", "phone_requesting", "no_data":
		return ColorPairing
	case "event_export", "event_data", "planning_data", "export_confirmed":
		return ColorExport
	default:
		return ColorDefault
	}
}

// FrameGlyph returns a one-cell marker for a frame type.
func FrameGlyph(frameType string) string {
	switch frameType {
	case "metadata":
		return "◎"
	case "point":
		return "●"
	case "photo":
		return "▣"
	case "end":
		return "✓"
	case "error":
		return "✗"
	default:
		return "·"
	}
}

// Reusable styles.
var (
	StyleBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1)

	StyleHeader = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorBright)

	StyleDimmed = lipgloss.NewStyle().
		Foreground(ColorDimmed)

	StyleConnected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorHealthy)

	StyleDisconnected = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorDanger)

	StyleWarning = lipgloss.NewStyle().
		Foreground(ColorWarning)
)
