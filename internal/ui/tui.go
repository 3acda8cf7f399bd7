// Package ui provides optional terminal interfaces.
package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/searchpool/searchpool-go/internal/executor"
	"github.com/searchpool/searchpool-go/internal/pool"
)

const maxRecentEvents = 12

// RunDashboard starts the pool dashboard. It polls the pool state every
// second and shows events arriving on eventCh (which may be nil).
func RunDashboard(ctx context.Context, p *pool.Pool, eventCh <-chan executor.LogEvent) error {
	if !IsTTY(os.Stdout) {
		return fmt.Errorf("tui requires a TTY")
	}
	model := newDashboardModel(p, eventCh)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

// EventChannelWriter is a LogWriter that forwards events to a channel,
// dropping events when the channel is full so slow UIs never stall a batch.
type EventChannelWriter struct {
	ch chan executor.LogEvent
}

// NewEventChannelWriter creates a channel-backed log writer.
func NewEventChannelWriter(buffer int) *EventChannelWriter {
	if buffer <= 0 {
		buffer = 64
	}
	return &EventChannelWriter{ch: make(chan executor.LogEvent, buffer)}
}

// Events returns the receive side for the dashboard.
func (w *EventChannelWriter) Events() <-chan executor.LogEvent {
	return w.ch
}

// Write forwards the event, dropping it if the channel is full.
func (w *EventChannelWriter) Write(event executor.LogEvent) error {
	select {
	case w.ch <- event:
	default:
	}
	return nil
}

type dashboardModel struct {
	pool    *pool.Pool
	eventCh <-chan executor.LogEvent

	workers []pool.WorkerInfo
	recent  []executor.LogEvent
	width   int
	height  int
}

type tickMsg time.Time

type eventMsg struct {
	event executor.LogEvent
}

func newDashboardModel(p *pool.Pool, eventCh <-chan executor.LogEvent) *dashboardModel {
	return &dashboardModel{
		pool:    p,
		eventCh: eventCh,
		workers: p.Snapshot(),
	}
}

func (m *dashboardModel) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd()}
	if m.eventCh != nil {
		cmds = append(cmds, waitForEvent(m.eventCh))
	}
	return tea.Batch(cmds...)
}

func (m *dashboardModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		m.workers = m.pool.Snapshot()
		return m, tickCmd()
	case eventMsg:
		m.recent = append(m.recent, msg.event)
		if len(m.recent) > maxRecentEvents {
			m.recent = m.recent[len(m.recent)-maxRecentEvents:]
		}
		return m, waitForEvent(m.eventCh)
	}
	return m, nil
}

func (m *dashboardModel) View() string {
	var b strings.Builder

	busy := 0
	for _, w := range m.workers {
		if w.Busy {
			busy++
		}
	}
	fmt.Fprintf(&b, "searchpool  pool=%s  capacity=%d  busy=%d  idle=%d\n\n",
		m.pool.Name(), len(m.workers), busy, len(m.workers)-busy)

	b.WriteString("  WORKER            STATE  TASKS  LAST USED\n")
	workers := make([]pool.WorkerInfo, len(m.workers))
	copy(workers, m.workers)
	sort.Slice(workers, func(i, j int) bool { return workers[i].ID < workers[j].ID })
	for _, w := range workers {
		state := "idle"
		if w.Busy {
			state = "busy"
		}
		fmt.Fprintf(&b, "  %-17s %-6s %5d  %s\n",
			w.ID, state, w.TaskCount, humanSince(w.LastUsed))
	}

	if len(m.recent) > 0 {
		b.WriteString("\n  RECENT EVENTS\n")
		for _, e := range m.recent {
			line := fmt.Sprintf("  %s  %-6s %s", e.Timestamp.Local().Format("15:04:05"), e.Type, eventLine(e))
			if m.width > 4 && len(line) > m.width-2 {
				line = line[:m.width-2]
			}
			b.WriteString(line + "\n")
		}
	}

	b.WriteString("\n  q: quit\n")
	return b.String()
}

func eventLine(e executor.LogEvent) string {
	parts := []string{}
	if e.AgentID != "" {
		parts = append(parts, e.AgentID)
	}
	if e.Subtask != "" {
		parts = append(parts, e.Subtask)
	}
	if e.Content != "" && e.Content != e.Subtask {
		parts = append(parts, e.Content)
	}
	return strings.Join(parts, "  ")
}

func humanSince(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Second:
		return "now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitForEvent(ch <-chan executor.LogEvent) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-ch
		if !ok {
			return nil
		}
		return eventMsg{event: event}
	}
}

// IsTTY reports whether w is a character device.
func IsTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
