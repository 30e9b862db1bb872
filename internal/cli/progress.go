package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/texmtlx/internal/events"
	"github.com/raphaelgruber/texmtlx/internal/service"
	"golang.org/x/term"
)

// Theme holds the color scheme for the progress display.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

func (t Theme) statusStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Status)
}

func (t Theme) completedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Success).Bold(true)
}

func (t Theme) errorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Error).Bold(true)
}

func (t Theme) hintStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Hint).Italic(true)
}

// taskMsg carries one conversion event into the UI.
type taskMsg events.TaskEvent

// doneMsg signals that the batch finished.
type doneMsg struct {
	report *service.ConversionReport
}

// progressModel is the bubbletea model for a conversion batch.
type progressModel struct {
	total     int
	completed int
	failed    []string
	running   map[string]string // task ID -> source
	report    *service.ConversionReport
	progress  progress.Model
	theme     Theme
	cancel    context.CancelFunc
	done      bool
	quitting  bool
}

func newProgressModel(total int, cancel context.CancelFunc) progressModel {
	return progressModel{
		total:    total,
		running:  make(map[string]string),
		progress: progress.New(progress.WithDefaultBlend(), progress.WithWidth(40)),
		theme:    defaultTheme,
		cancel:   cancel,
	}
}

// Init returns the initial command.
func (m progressModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Running conversions are killed; the batch still reports.
			m.quitting = true
			m.cancel()
		}

	case taskMsg:
		switch msg.Phase {
		case events.PhaseStarted:
			m.running[msg.TaskID] = msg.Source
		case events.PhaseSucceeded:
			delete(m.running, msg.TaskID)
			m.completed = msg.Completed
		case events.PhaseFailed:
			delete(m.running, msg.TaskID)
			m.completed = msg.Completed
			m.failed = append(m.failed, msg.Source)
		}

	case doneMsg:
		m.report = msg.report
		m.done = true
		return m, tea.Quit

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the progress display.
func (m progressModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

func (m progressModel) renderContent() string {
	if m.done {
		return m.finalView()
	}

	var pct float64
	if m.total > 0 {
		pct = float64(m.completed) / float64(m.total)
	}

	status := m.theme.statusStyle().Render(fmt.Sprintf("[converting %d]", len(m.running)))
	counts := fmt.Sprintf("%d/%d files", m.completed, m.total)

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", status, m.progress.ViewAs(pct), counts)
	for _, src := range m.running {
		fmt.Fprintf(&b, "  %s\n", filepath.Base(src))
	}
	if len(m.failed) > 0 {
		b.WriteString(m.theme.errorStyle().Render(fmt.Sprintf("%d failed", len(m.failed))) + "\n")
	}
	b.WriteString(m.theme.hintStyle().Render("Press Ctrl+C to abort") + "\n")
	return b.String()
}

func (m progressModel) finalView() string {
	if m.report == nil {
		return ""
	}
	return renderReport(m.theme, m.report, m.quitting)
}

// renderReport formats a finished conversion batch.
func renderReport(theme Theme, r *service.ConversionReport, aborted bool) string {
	var b strings.Builder
	switch {
	case aborted:
		b.WriteString(theme.hintStyle().Render("Conversion aborted") + "\n\n")
	case r.Failed > 0:
		b.WriteString(theme.errorStyle().Render("✗ Completed with failures") + "\n\n")
	default:
		b.WriteString(theme.completedStyle().Render("✓ Completed") + "\n\n")
	}
	fmt.Fprintf(&b, "  Converted: %d\n", r.Succeeded)
	fmt.Fprintf(&b, "  Failed:    %d\n", r.Failed)
	for _, src := range r.FailedSources() {
		fmt.Fprintf(&b, "  • %s\n", src)
	}
	return b.String()
}

// interactive reports whether stdout is a terminal.
func interactive() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// runConversion runs a batch, with the progress UI when stdout is a
// terminal and plain log output otherwise. extra receives every event as
// well.
func runConversion(ctx context.Context, total int, extra events.Sink,
	run func(ctx context.Context, sink events.Sink) *service.ConversionReport) (*service.ConversionReport, error) {
	if extra == nil {
		extra = events.Nop{}
	}

	if !interactive() || total == 0 {
		report := run(ctx, events.Multi{events.NewLogSink(nil), extra})
		fmt.Print(renderReport(defaultTheme, report, ctx.Err() != nil))
		return report, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newProgressModel(total, cancel))
	ui := events.Funcs{OnTask: func(e events.TaskEvent) { p.Send(taskMsg(e)) }}

	go func() {
		report := run(ctx, events.Multi{ui, extra})
		p.Send(doneMsg{report: report})
	}()

	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress UI error: %w", err)
	}
	m, ok := final.(progressModel)
	if !ok || m.report == nil {
		return nil, fmt.Errorf("conversion did not report")
	}
	return m.report, nil
}
