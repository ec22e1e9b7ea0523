// Package tui provides Bubble Tea TUI components for the mwi CLI.
//
// TUI is opt-in (--tui). The submit view renders live job progress from
// observer notifications; inspect and stats views are read-only and use the
// same data payloads as non-TUI rendering.
package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/mwi/types"
)

// Color palette.
var (
	primaryColor   = lipgloss.Color("#0EA5E9") // Sky
	successColor   = lipgloss.Color("#22C55E") // Green
	warningColor   = lipgloss.Color("#EAB308") // Yellow
	errorColor     = lipgloss.Color("#F43F5E") // Rose
	mutedColor     = lipgloss.Color("#71717A") // Zinc
	highlightColor = lipgloss.Color("#6366F1") // Indigo
	textColor      = lipgloss.AdaptiveColor{Light: "#18181B", Dark: "#FAFAFA"}
)

// Progress bar gradient, from just submitted to done.
const (
	progressStart = "#6366F1"
	progressEnd   = "#22C55E"
)

var (
	// TitleStyle for the header of every view.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(primaryColor).MarginBottom(1)

	// LabelStyle for left-hand field labels.
	LabelStyle = lipgloss.NewStyle().Foreground(mutedColor).Width(16)

	// ValueStyle for plain values.
	ValueStyle = lipgloss.NewStyle().Foreground(textColor)

	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(errorColor).Bold(true)

	// BoxStyle frames the status and journal views.
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().Foreground(mutedColor).Italic(true).MarginTop(1)

	// Stat boxes on the stats view. Callers set the border and value color.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			Padding(0, 1).
			Width(16).
			Align(lipgloss.Center)
	StatLabelStyle = lipgloss.NewStyle().Foreground(mutedColor)
	StatValueStyle = lipgloss.NewStyle().Bold(true)
)

// tone groups the states, outcomes and record types that share a color.
type tone int

const (
	toneNeutral tone = iota
	toneActive
	toneGood
	toneBad
	toneStopped
)

var tones = map[string]tone{
	string(types.StateSubmitting): toneActive,
	string(types.StateStreaming):  toneActive,
	"update":                      toneActive,
	"transition":                  toneActive,

	string(types.StateSucceeded): toneGood,
	"success":                    toneGood,
	"healthy":                    toneGood,
	"ok":                         toneGood,

	string(types.StateFailed):           toneBad,
	"failure":                           toneBad,
	"unhealthy":                         toneBad,
	string(types.OutcomeJobError):       toneBad,
	string(types.OutcomeTransportError): toneBad,
	string(types.FailureTransport):      toneBad,
	string(types.OutcomeStreamFault):    toneBad,
	string(types.OutcomeIncomplete):     toneBad,

	string(types.OutcomeCanceled): toneStopped,
}

// StateStyle returns the style for a job state, outcome status, failure
// reason or journal record type. Unknown values render plain.
func StateStyle(state string) lipgloss.Style {
	switch tones[state] {
	case toneActive:
		return WarningStyle
	case toneGood:
		return SuccessStyle
	case toneBad:
		return ErrorStyle
	case toneStopped:
		return lipgloss.NewStyle().Foreground(mutedColor).Strikethrough(true)
	default:
		return ValueStyle
	}
}

// stateColor returns the accent color for a failure reason on the stats view.
func stateColor(state string) lipgloss.Color {
	switch tones[state] {
	case toneBad:
		return errorColor
	case toneStopped:
		return mutedColor
	default:
		return highlightColor
	}
}
