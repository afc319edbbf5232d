package tui

import "github.com/charmbracelet/lipgloss"

// Color constants.
const (
	primaryColor   = "#7C3AED" // Purple
	secondaryColor = "#10B981" // Green
	warningColor   = "#F59E0B" // Amber
	errorColor     = "#EF4444" // Red
	dimColor       = "#6B7280" // Gray
	textColor      = "#E5E7EB"
)

// Style variables for consistent TUI rendering.
var (
	// BoxStyle provides a rounded border box with primary color.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(primaryColor)).
			Padding(1, 2)

	// TitleStyle renders titles in primary color with bold.
	TitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(primaryColor)).
			Bold(true)

	// QuestionStyle renders the question being asked.
	QuestionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(textColor)).
			Bold(true)

	// DimStyle renders dim/muted text.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(dimColor))

	// SuccessStyle renders success messages in green.
	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(secondaryColor))

	// ErrorStyle renders error messages in red.
	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(errorColor))

	// WarningStyle renders warning messages in amber.
	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(warningColor))
)

// Session state badges (pre-rendered strings).
var (
	// BadgeDone marks a completed session or task.
	BadgeDone = SuccessStyle.Render("✓")

	// BadgeActive marks work in progress.
	BadgeActive = WarningStyle.Render("▸")

	// BadgePending marks something not started.
	BadgePending = DimStyle.Render("○")

	// BadgeCancelled marks a cancelled session.
	BadgeCancelled = ErrorStyle.Render("✗")
)

// StateBadge returns the badge for a session state name.
func StateBadge(state string) string {
	switch state {
	case "completed":
		return BadgeDone
	case "cancelled":
		return BadgeCancelled
	case "executing", "confirming":
		return BadgeActive
	default:
		return BadgePending
	}
}
