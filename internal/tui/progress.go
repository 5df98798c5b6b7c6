package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"kubetestenv/pkg/logging"
)

// Operation is the work shown under the spinner.
type Operation func(ctx context.Context) error

type logMsg logging.LogEntry

type doneMsg struct{ err error }

// model is the Bubble Tea model of the progress view.
type model struct {
	title   string
	spinner spinner.Model
	logs    <-chan logging.LogEntry
	op      Operation
	ctx     context.Context
	cancel  context.CancelFunc
	started time.Time

	lastLine string
	width    int
	done     bool
	err      error
}

func newModel(ctx context.Context, title string, logs <-chan logging.LogEntry, op Operation) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	ctx, cancel := context.WithCancel(ctx)
	return model{
		title:   title,
		spinner: s,
		logs:    logs,
		op:      op,
		ctx:     ctx,
		cancel:  cancel,
		started: time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForLog(m.logs), runOperation(m.ctx, m.op))
}

func waitForLog(ch <-chan logging.LogEntry) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		e, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(e)
	}
}

func runOperation(ctx context.Context, op Operation) tea.Cmd {
	return func() tea.Msg {
		return doneMsg{err: op(ctx)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			// The operation sees the cancellation and finishes with an error.
			m.cancel()
			m.lastLine = "interrupted, cleaning up"
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case logMsg:
		m.lastLine = formatEntry(logging.LogEntry(msg), m.lineWidth())
		return m, waitForLog(m.logs)
	case doneMsg:
		m.done = true
		m.err = msg.err
		m.cancel()
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) lineWidth() int {
	if m.width <= 4 {
		return 0
	}
	return m.width - 4
}

func (m model) View() string {
	if m.done {
		return ""
	}
	view := fmt.Sprintf("%s %s", m.spinner.View(), titleStyle.Render(m.title))
	if m.lastLine != "" {
		view += "\n  " + m.lastLine
	}
	return view + "\n"
}

// summary is the line left on the terminal once the program exited.
func (m model) summary() string {
	elapsed := time.Since(m.started).Round(time.Second)
	if m.err != nil {
		return failureStyle.Render(fmt.Sprintf("%s %s failed after %s", IconCross, m.title, elapsed))
	}
	return successStyle.Render(fmt.Sprintf("%s %s (%s)", IconCheck, m.title, elapsed))
}

// Run executes op while showing the progress view on out (stdout when nil).
// logs is the channel returned by logging.InitForTUI and may be nil.
// The returned error is op's error, or the program's if it failed to run.
func Run(ctx context.Context, title string, logs <-chan logging.LogEntry, out io.Writer, op Operation) error {
	return run(ctx, title, logs, out, op)
}

func run(ctx context.Context, title string, logs <-chan logging.LogEntry, out io.Writer, op Operation, opts ...tea.ProgramOption) error {
	if out == nil {
		out = os.Stdout
	}
	m := newModel(ctx, title, logs, op)
	p := tea.NewProgram(m, append([]tea.ProgramOption{tea.WithOutput(out)}, opts...)...)
	final, err := p.Run()
	m.cancel()
	if err != nil {
		return fmt.Errorf("progress view failed: %w", err)
	}
	fm, ok := final.(model)
	if !ok {
		return fmt.Errorf("unexpected progress model %T", final)
	}
	fmt.Fprintln(out, fm.summary())
	return fm.err
}
