package progress

import (
	"fmt"
	"io"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const barWidth = 30

var (
	filledStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	emptyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	labelStyle  = lipgloss.NewStyle().Bold(true)
	statStyle   = lipgloss.NewStyle().Faint(true)
)

type progressMsg Event

type barModel struct {
	event   Event
	tracker *speedTracker
	done    bool
}

func (m barModel) Init() tea.Cmd { return nil }

func (m barModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case progressMsg:
		m.event = Event(msg)
		m.tracker.add(m.event.DownloadedBytes)

		if m.event.Done {
			m.done = true
			return m, tea.Quit
		}

		return m, nil
	}

	return m, nil
}

func (m barModel) View() string {
	pct := 0.0
	if m.event.TotalBytes > 0 {
		pct = float64(m.event.DownloadedBytes) / float64(m.event.TotalBytes)
	}

	filled := int(pct * barWidth)
	if filled > barWidth {
		filled = barWidth
	}

	bar := filledStyle.Render(strings.Repeat("█", filled)) + emptyStyle.Render(strings.Repeat("░", barWidth-filled))
	bps := m.tracker.bytesPerSecond()

	stats := fmt.Sprintf("%s/%s  %s  eta %s",
		FormatBytes(m.event.DownloadedBytes), FormatBytes(m.event.TotalBytes),
		FormatSpeed(bps), FormatETA(m.event.DownloadedBytes, m.event.TotalBytes, bps))

	return fmt.Sprintf("%s [%s] %s\n", labelStyle.Render(m.event.Label), bar, statStyle.Render(stats))
}

// interactiveReporter drives a bubbletea program rendering a lipgloss
// progress bar, for use when stderr is a terminal.
type interactiveReporter struct {
	program *tea.Program
	mu      sync.Mutex
	started bool
	done    chan struct{}
}

func newInteractiveReporter(w io.Writer) *interactiveReporter {
	model := barModel{tracker: newSpeedTracker(20)}
	program := tea.NewProgram(model, tea.WithOutput(w), tea.WithInput(nil))

	r := &interactiveReporter{program: program, done: make(chan struct{})}

	go func() {
		_, _ = program.Run()
		close(r.done)
	}()

	return r
}

func (r *interactiveReporter) Report(e Event) {
	r.mu.Lock()
	r.started = true
	r.mu.Unlock()

	r.program.Send(progressMsg(e))
}

func (r *interactiveReporter) Close() {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()

	if !started {
		r.program.Quit()
	}

	<-r.done
}
