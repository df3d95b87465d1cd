// Package terminal holds the shared lipgloss styles for CLI output.
package terminal

import "github.com/charmbracelet/lipgloss"

// Shared color scheme
var (
	ColorReady   = lipgloss.Color("42")  // Green
	ColorPending = lipgloss.Color("226") // Yellow
	ColorError   = lipgloss.Color("196") // Red
	ColorIdle    = lipgloss.Color("240") // Gray
	ColorTitle   = lipgloss.Color("39")  // Blue
	ColorMuted   = lipgloss.Color("240") // Gray
)

// Shared styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorTitle)

	NodeTypeStyle = lipgloss.NewStyle().
			Bold(true).
			Width(14)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	badgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Bold(true).
			Foreground(lipgloss.Color("0"))

	readyBadge   = badgeStyle.Background(ColorReady)
	pendingBadge = badgeStyle.Background(ColorPending)
	errorBadge   = badgeStyle.Background(ColorError)
	idleBadge    = badgeStyle.Background(ColorIdle)
)

// StatusBadge renders a node status as a colored badge.
func StatusBadge(status string) string {
	switch status {
	case "ready":
		return readyBadge.Render("READY")
	case "pending":
		return pendingBadge.Render("PENDING")
	case "error":
		return errorBadge.Render("ERROR")
	case "idle", "":
		return idleBadge.Render("IDLE")
	}
	return badgeStyle.Background(ColorMuted).Render(status)
}
