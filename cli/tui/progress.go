package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/pithecene-io/mwi/job"
	"github.com/pithecene-io/mwi/types"
)

// Messages carrying observer notifications into the program.
type (
	updateMsg struct {
		percent float64
		status  string
	}
	transitionMsg struct{ from, to types.State }
	successMsg    struct{ downloadURL string }
	failureMsg    struct{ message string }
)

// ProgressModel is a Bubble Tea model showing one submission's live progress.
// It quits by itself once the job reaches a terminal state.
type ProgressModel struct {
	title   string
	bar     progress.Model
	spinner spinner.Model
	cancel  func()

	state       types.State
	percent     float64
	status      string
	downloadURL string
	failure     string
	canceling   bool
}

// NewProgressModel creates a progress model. cancel is called when the user
// quits before the job finishes; it may be nil.
func NewProgressModel(title string, cancel func()) ProgressModel {
	return ProgressModel{
		title:   title,
		bar:     progress.New(progress.WithGradient(progressStart, progressEnd), progress.WithWidth(40)),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(WarningStyle)),
		cancel:  cancel,
		state:   types.StateIdle,
	}
}

// Init implements tea.Model.
func (m ProgressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update implements tea.Model.
func (m ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) && !m.state.IsTerminal() {
			m.canceling = true
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case transitionMsg:
		m.state = msg.to
		return m, nil

	case updateMsg:
		m.percent = msg.percent
		m.status = msg.status
		return m, nil

	case successMsg:
		m.state = types.StateSucceeded
		m.percent = 100
		m.downloadURL = msg.downloadURL
		return m, tea.Quit

	case failureMsg:
		m.state = types.StateFailed
		m.failure = msg.message
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model.
func (m ProgressModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Submitting " + m.title))
	b.WriteString("\n")

	switch m.state {
	case types.StateSucceeded:
		b.WriteString(m.bar.ViewAs(1))
		b.WriteString("\n")
		b.WriteString(SuccessStyle.Render("Done: " + m.downloadURL))
	case types.StateFailed:
		b.WriteString(m.bar.ViewAs(m.percent / 100))
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Failed: " + m.failure))
	default:
		b.WriteString(m.bar.ViewAs(m.percent / 100))
		b.WriteString("\n")
		status := m.status
		if status == "" {
			status = string(m.state)
		}
		b.WriteString(fmt.Sprintf("%s %s", m.spinner.View(), ValueStyle.Render(status)))
		if m.canceling {
			b.WriteString("\n")
			b.WriteString(WarningStyle.Render("Canceling..."))
		} else {
			b.WriteString("\n")
			b.WriteString(HelpStyle.Render("Press q or Ctrl+C to cancel"))
		}
	}
	return b.String() + "\n"
}

// ProgressView runs a ProgressModel in its own program and feeds it
// observer notifications.
type ProgressView struct {
	program *tea.Program
	done    chan struct{}
	err     error
}

// NewProgressView creates a progress view. Options are passed to the
// underlying program (e.g. tea.WithOutput for tests).
func NewProgressView(title string, cancel func(), opts ...tea.ProgramOption) *ProgressView {
	return &ProgressView{
		program: tea.NewProgram(NewProgressModel(title, cancel), opts...),
		done:    make(chan struct{}),
	}
}

// Start runs the program in the background.
func (v *ProgressView) Start() {
	go func() {
		defer close(v.done)
		_, v.err = v.program.Run()
	}()
}

// Stop quits the program, if still running, and waits for it to exit.
// Notifications already sent are rendered first.
func (v *ProgressView) Stop() error {
	v.program.Quit()
	<-v.done
	return v.err
}

// Observer returns a job observer that forwards to the view.
func (v *ProgressView) Observer() job.Observer {
	return programObserver{v.program}
}

// programObserver implements job.Observer and job.TransitionObserver by
// sending messages to a running program. Sends after exit are dropped.
type programObserver struct {
	program *tea.Program
}

func (o programObserver) OnUpdate(percent float64, status string) {
	o.program.Send(updateMsg{percent: percent, status: status})
}

func (o programObserver) OnSuccess(downloadURL string) {
	o.program.Send(successMsg{downloadURL: downloadURL})
}

func (o programObserver) OnFailure(message string) {
	o.program.Send(failureMsg{message: message})
}

func (o programObserver) OnTransition(_, to types.State) {
	o.program.Send(transitionMsg{to: to})
}

var (
	_ job.Observer           = programObserver{}
	_ job.TransitionObserver = programObserver{}
)
