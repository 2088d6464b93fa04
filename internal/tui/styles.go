package tui

import "github.com/charmbracelet/lipgloss"

var (
	// Colors
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	mutedColor     = lipgloss.Color("#6B7280") // Gray
	accentColor    = lipgloss.Color("#F59E0B") // Amber
	errorColor     = lipgloss.Color("#EF4444") // Red
	fgColor        = lipgloss.Color("#F9FAFB") // Light
	pastColor      = lipgloss.Color("#52525B")

	// Header row. No margins: mouse rows are counted from the top of the view.
	HeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	DateStyle   = lipgloss.NewStyle().Foreground(mutedColor)

	// Gutter
	TimeStyle    = lipgloss.NewStyle().Foreground(secondaryColor)
	NowTimeStyle = lipgloss.NewStyle().Background(secondaryColor).Foreground(fgColor).Bold(true)
	LaneLabel    = lipgloss.NewStyle().Foreground(accentColor).Bold(true)

	SeparatorStyle = lipgloss.NewStyle().Foreground(mutedColor)

	// Grid cells
	EmptyCellStyle = lipgloss.NewStyle()
	EventStyle     = lipgloss.NewStyle().Background(primaryColor).Foreground(fgColor)
	PastEventStyle = lipgloss.NewStyle().Background(lipgloss.Color("#374151")).Foreground(pastColor)
	DraftStyle     = lipgloss.NewStyle().Background(accentColor).Foreground(lipgloss.Color("#111827")).Bold(true)

	// All-day chips
	ChipStyle      = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
	DraftChipStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)

	// Footer
	FormLabelStyle = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
	StatusStyle    = lipgloss.NewStyle().Foreground(mutedColor).Italic(true)
	ErrorStyle     = lipgloss.NewStyle().Foreground(errorColor)
	HelpStyle      = lipgloss.NewStyle().Foreground(mutedColor)
	HelpKeyStyle   = lipgloss.NewStyle().Foreground(primaryColor).Bold(true)
)
