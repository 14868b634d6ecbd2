// Package downloader streams resolved episode files to disk under a small
// worker pool, with retry, adaptive chunking and live progress reporting.
package downloader

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
)

// Handle identifies one tracked task. Callers treat it as opaque.
type Handle int

type taskState struct {
	label   string
	percent float64
	visible bool
	done    bool
}

// Tracker aggregates per-task percentages and the overall completion count.
// All methods are safe under concurrent invocation from many workers; the
// rendering model reads snapshots on its tick. Tracking is purely
// observational and never affects download correctness.
type Tracker struct {
	mu        sync.Mutex
	tasks     []taskState
	completed int
	total     int
	bytes     uint64
}

// NewTracker creates a tracker expecting `total` tasks overall.
func NewTracker(total int) *Tracker {
	return &Tracker{total: total}
}

// NewTask registers a task. It stays hidden until Begin so hundreds of queued
// episodes do not clutter the display.
func (t *Tracker) NewTask(label string) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks = append(t.tasks, taskState{label: label})
	return Handle(len(t.tasks) - 1)
}

// Begin makes a task visible; its worker has started real I/O.
func (t *Tracker) Begin(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[h].visible = true
}

// Update records the task's completion percentage. Display-only: no worker
// reads another worker's in-flight percentage for decisions.
func (t *Tracker) Update(h Handle, percent float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[h].percent = percent
}

// AddBytes accounts transferred bytes for the footer label.
func (t *Tracker) AddBytes(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bytes += uint64(n)
}

// Complete hides the task again and advances the overall counter.
func (t *Tracker) Complete(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[h].percent = 100
	t.tasks[h].visible = false
	t.tasks[h].done = true
	t.advanceOverall()
}

// Fail hides the task without advancing the overall counter.
func (t *Tracker) Fail(h Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tasks[h].visible = false
	t.tasks[h].done = true
}

// advanceOverall bumps the completed count, clamped to the total. Callers
// must hold the mutex.
func (t *Tracker) advanceOverall() {
	if t.completed < t.total {
		t.completed++
	}
}

// TaskView is one visible task's rendering state.
type TaskView struct {
	Label   string
	Percent float64
}

// Snapshot is a consistent copy of the tracker for rendering.
type Snapshot struct {
	Tasks     []TaskView
	Completed int
	Total     int
	Bytes     uint64
}

// Snapshot copies the visible tasks and overall counters.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{Completed: t.completed, Total: t.total, Bytes: t.bytes}
	for _, task := range t.tasks {
		if task.visible {
			snap.Tasks = append(snap.Tasks, TaskView{Label: task.label, Percent: task.percent})
		}
	}
	return snap
}

var panelStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(lipgloss.Color("#E94560")).
	Padding(1, 2)

var panelTitleStyle = lipgloss.NewStyle().Bold(true)

// tickMsg drives the fixed-interval refresh of the progress display.
type tickMsg time.Time

// doneMsg tells the model the whole batch has finished.
type doneMsg struct{}

// Done is sent by the orchestrator once the manager returns.
func Done() tea.Msg {
	return doneMsg{}
}

func tickCmd() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Model renders tracker state: one bar per active episode plus an overall
// bar, framed in a panel titled with the series name.
type Model struct {
	tracker *Tracker
	title   string
	bar     progress.Model
	overall progress.Model
	done    bool
}

// NewModel builds the progress display for one batch.
func NewModel(title string, tracker *Tracker) *Model {
	return &Model{
		tracker: tracker,
		title:   title,
		bar:     progress.New(progress.WithDefaultGradient()),
		overall: progress.New(progress.WithDefaultGradient()),
	}
}

func (m *Model) Init() tea.Cmd {
	return tickCmd()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.done = true
			return m, tea.Quit
		}
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tickMsg:
		if m.done {
			return m, tea.Quit
		}
		return m, tickCmd()
	case tea.WindowSizeMsg:
		width := msg.Width - 30
		if width > 10 {
			m.bar.Width = width
			m.overall.Width = width
		}
	}
	return m, nil
}

func (m *Model) View() string {
	snap := m.tracker.Snapshot()

	var b strings.Builder
	for _, task := range snap.Tasks {
		fmt.Fprintf(&b, "%-16s %s %3.0f%%\n", task.Label, m.bar.ViewAs(task.Percent/100), task.Percent)
	}

	overall := 0.0
	if snap.Total > 0 {
		overall = float64(snap.Completed) / float64(snap.Total)
	}
	fmt.Fprintf(&b, "%-16s %s %d/%d · %s\n", "Progress", m.overall.ViewAs(overall),
		snap.Completed, snap.Total, humanize.Bytes(snap.Bytes))

	panel := panelStyle.Render(panelTitleStyle.Render(m.title) + "\n\n" + strings.TrimRight(b.String(), "\n"))
	return panel + "\n"
}
