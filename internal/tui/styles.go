// Package tui renders job progress and listings in the terminal.
package tui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Color palette
var (
	ColorPrimary   = lipgloss.Color("#7C3AED")
	ColorSecondary = lipgloss.Color("#06B6D4")

	ColorSuccess = lipgloss.Color("#10B981")
	ColorWarning = lipgloss.Color("#F59E0B")
	ColorError   = lipgloss.Color("#EF4444")

	ColorText      = lipgloss.Color("#E5E7EB")
	ColorTextMuted = lipgloss.Color("#9CA3AF")
	ColorBorder    = lipgloss.Color("#374151")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	FooterStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			MarginTop(1)

	TaskStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	PendingStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	RunningStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	CompletedStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	FailedStyle = lipgloss.NewStyle().
			Foreground(ColorError).
			Bold(true)

	SkippedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	ErrorTextStyle = lipgloss.NewStyle().
			Foreground(ColorError)
)

// StatusStyle picks the style for a job status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "completed", "success":
		return CompletedStyle
	case "failed":
		return FailedStyle
	case "processing":
		return RunningStyle
	case "cancelled":
		return SkippedStyle
	default:
		return PendingStyle
	}
}

// Table renders rows under headers with a rounded border. statusCol, when
// non-negative, colours that column by job status.
func Table(headers []string, rows [][]string, statusCol int) string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).Padding(0, 1)
	cellStyle := lipgloss.NewStyle().Padding(0, 1)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(ColorBorder)).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				return StatusStyle(rows[row][col]).Padding(0, 1)
			}
			return cellStyle
		})
	return t.Render()
}
