package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/mwi/metrics"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_submission":
		content = m.renderStatsSubmission()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsSubmission() string {
	data, ok := m.data.(*metrics.Snapshot)
	if !ok {
		return "Invalid data type for stats_submission"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Submission Statistics"))
	b.WriteString("\n\n")

	lifecycle := []string{
		m.renderStatBox("Started", data.SubmissionsStarted, highlightColor),
		m.renderStatBox("Succeeded", data.SubmissionsSucceeded, successColor),
		m.renderStatBox("Failed", data.SubmissionsFailed, errorColor),
		m.renderStatBox("Canceled", data.SubmissionsCanceled, warningColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, lifecycle...))
	b.WriteString("\n")

	stream := []string{
		m.renderStatBox("Frames", data.FramesDecoded, highlightColor),
		m.renderStatBox("Discarded", data.FramesDiscarded, mutedColor),
		m.renderStatBox("Decode Errors", data.DecodeErrors, warningColor),
		m.renderStatBox("Bytes Read", data.BytesRead, highlightColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, stream...))

	if len(data.FailuresByReason) > 0 {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(highlightColor).Render("Failures by reason"))
		b.WriteString("\n")
		for _, reason := range sortedKeys(data.FailuresByReason) {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(reason+":"),
				lipgloss.NewStyle().Bold(true).Foreground(stateColor(reason)).Render(fmt.Sprintf("%d", data.FailuresByReason[reason]))))
		}
	}

	if data.Endpoint != "" {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s",
			LabelStyle.Render("Endpoint:"),
			ValueStyle.Render(data.Endpoint)))
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

func sortedKeys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
