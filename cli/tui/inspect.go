package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/mwi/journal"
	"github.com/pithecene-io/mwi/transport"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_journal":
		content = m.renderInspectJournal()
	case "inspect_status":
		content = m.renderInspectStatus()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectJournal() string {
	records, ok := m.data.([]journal.Record)
	if !ok {
		return "Invalid data type for inspect_journal"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Submission Journal"))
	b.WriteString("\n\n")

	if len(records) == 0 {
		b.WriteString(ValueStyle.Render("(no records)"))
		return BoxStyle.Render(b.String())
	}

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Submission:"),
		ValueStyle.Render(records[0].SubmissionID)))
	b.WriteString(fmt.Sprintf("%s %s\n\n",
		LabelStyle.Render("Started:"),
		ValueStyle.Render(records[0].Ts.Format("2006-01-02 15:04:05"))))

	for _, rec := range records {
		label := LabelStyle.Render(fmt.Sprintf("#%d %s", rec.Seq, rec.Type))
		b.WriteString(fmt.Sprintf("%s %s\n", label, StateStyle(recordTone(rec)).Render(describeRecord(rec))))
	}

	return BoxStyle.Render(b.String())
}

// recordTone picks the style key for a journal record.
func recordTone(rec journal.Record) string {
	switch rec.Type {
	case journal.RecordTransition:
		return string(rec.To)
	case journal.RecordOutcome:
		return rec.Outcome
	default:
		return string(rec.Type)
	}
}

func describeRecord(rec journal.Record) string {
	switch rec.Type {
	case journal.RecordTransition:
		return fmt.Sprintf("%s -> %s", rec.From, rec.To)
	case journal.RecordUpdate:
		return fmt.Sprintf("%3.0f%% %s", rec.Percent, rec.Status)
	case journal.RecordSuccess:
		return rec.DownloadURL
	case journal.RecordFailure:
		return rec.Message
	case journal.RecordOutcome:
		if rec.Message == "" {
			return rec.Outcome
		}
		return fmt.Sprintf("%s: %s", rec.Outcome, rec.Message)
	default:
		return ""
	}
}

func (m InspectModel) renderInspectStatus() string {
	data, ok := m.data.(*transport.ServiceStatus)
	if !ok {
		return "Invalid data type for inspect_status"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Service Status"))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Status:"),
		StateStyle(data.Status).Render(data.Status)))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Version:"),
		ValueStyle.Render(data.Version)))

	face := "unavailable"
	faceStyle := ErrorStyle
	if data.FaceRecognition.Available {
		face, faceStyle = "available", SuccessStyle
	}
	if data.FaceRecognition.DemoMode {
		face += " (demo mode)"
		faceStyle = WarningStyle
	}
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Recognition:"),
		faceStyle.Render(face)))
	if data.FaceRecognition.Error != nil {
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("Error:"),
			ErrorStyle.Render(*data.FaceRecognition.Error)))
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
