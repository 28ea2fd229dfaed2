package theme

import (
	"strings"

	"charm.land/lipgloss/v2"

	"github.com/yous2911/fastrevedkids-sub011/internal/learningpath"
	"github.com/yous2911/fastrevedkids-sub011/internal/mastery"
)

// Color palette, bright but readable on dark and light terminals.
var (
	Primary   = lipgloss.Color("#8B5CF6") // Vivid Purple
	Secondary = lipgloss.Color("#14B8A6") // Teal
	Accent    = lipgloss.Color("#F97316") // Orange
	Success   = lipgloss.Color("#22C55E") // Green
	Error     = lipgloss.Color("#F43F5E") // Rose
	Warning   = lipgloss.Color("#EAB308") // Amber
	TextDim   = lipgloss.Color("#94A3B8") // Slate
	Border    = lipgloss.Color("#334155") // Slate
)

// Typography
var (
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(Primary)

	Subtitle = lipgloss.NewStyle().
			Foreground(TextDim)

	Hint = lipgloss.NewStyle().
		Foreground(TextDim).
		Italic(true)

	Rule = lipgloss.NewStyle().
		Foreground(Border)
)

// States
var (
	Correct = lipgloss.NewStyle().
		Foreground(Success).
		Bold(true)

	Incorrect = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	Pending = lipgloss.NewStyle().
		Foreground(Warning)
)

// Components
var (
	ProgressFilled = lipgloss.NewStyle().
			Foreground(Secondary)

	ProgressEmpty = lipgloss.NewStyle().
			Foreground(Border)
)

// Divider renders a horizontal rule of the given width.
func Divider(width int) string {
	return Rule.Render(strings.Repeat("─", width))
}

// Pad right-pads a styled string to width visible cells.
func Pad(s string, width int) string {
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}

// ProgressBar renders percent (0-100) as a bar of width cells.
func ProgressBar(percent, width int) string {
	percent = max(0, min(100, percent))
	filled := percent * width / 100
	return ProgressFilled.Render(strings.Repeat("█", filled)) +
		ProgressEmpty.Render(strings.Repeat("░", width-filled))
}

// LevelBadge colours a mastery level by how far along it is.
func LevelBadge(l mastery.Level) string {
	style := Subtitle
	switch l {
	case mastery.LevelDiscovering:
		style = Pending
	case mastery.LevelPracticing:
		style = lipgloss.NewStyle().Foreground(Accent)
	case mastery.LevelMastering:
		style = lipgloss.NewStyle().Foreground(Secondary)
	case mastery.LevelMastered:
		style = Correct
	}
	return style.Render(string(l))
}

// StatusBadge colours a learning-path status.
func StatusBadge(s learningpath.Status) string {
	style := Subtitle
	switch s {
	case learningpath.StatusAvailable:
		style = lipgloss.NewStyle().Foreground(Secondary)
	case learningpath.StatusInProgress:
		style = Pending
	case learningpath.StatusCompleted:
		style = Correct
	case learningpath.StatusLocked:
		style = Incorrect
	}
	return style.Render(string(s))
}

// PassBadge renders a pass/fail/invalid marker for one evaluation.
func PassBadge(validated, passed bool) string {
	switch {
	case !validated:
		return Hint.Render("invalid")
	case passed:
		return Correct.Render("pass")
	default:
		return Incorrect.Render("fail")
	}
}
