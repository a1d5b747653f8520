package cli

import (
	"fmt"
	"strings"
	"time"

	"charm.land/bubbles/v2/progress"
	tea "charm.land/bubbletea/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/whitelister/internal/config"
	"github.com/raphaelgruber/whitelister/internal/metrics"
	"github.com/raphaelgruber/whitelister/internal/task"
)

const logPaneLines = 12

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Open the interactive UI",
	Long: `Open the interactive UI.

Keys:
  s, enter   list input files (idle)
  up/down    move the selection
  enter      ingest the selected file / dismiss a result
  esc        cancel selection / dismiss a result
  q          quit (not while a file is being ingested)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUI()
	},
}

// Theme holds the color scheme for the UI.
type Theme struct {
	Title   lipgloss.Color
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color
	Cursor  lipgloss.Color
}

// defaultTheme provides default colors.
var defaultTheme = Theme{
	Title:   lipgloss.Color("#FFFFFF"), // white
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
	Cursor:  lipgloss.Color("#FFAF00"), // amber
}

func (t Theme) titleStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Title).Bold(true)
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

func (t Theme) cursorStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(t.Cursor).Bold(true)
}

// tickMsg samples progress for the run it was scheduled for.
type tickMsg struct {
	runID string
	at    time.Time
}

// appModel is the bubbletea model driving the orchestrator.
type appModel struct {
	orch     *task.Orchestrator
	interval time.Duration
	logs     *config.LogBuffer
	logPath  string
	dataDir  string
	stats    func() metrics.Snapshot
	progress progress.Model
	theme    Theme
	snap     task.Snapshot
	quitting bool
}

// newAppModel creates the UI model.
func newAppModel(orch *task.Orchestrator, interval time.Duration, logs *config.LogBuffer, logPath, dataDir string, stats func() metrics.Snapshot) appModel {
	prog := progress.New(
		progress.WithDefaultBlend(),
		progress.WithWidth(40),
	)

	return appModel{
		orch:     orch,
		interval: interval,
		logs:     logs,
		logPath:  logPath,
		dataDir:  dataDir,
		stats:    stats,
		progress: prog,
		theme:    defaultTheme,
		snap:     orch.Snapshot(),
	}
}

// Init returns the initial command.
func (m appModel) Init() tea.Cmd {
	return m.progress.Init()
}

// Update handles messages and returns the updated model.
func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyPressMsg:
		return m.handleKey(msg.String())

	case tickMsg:
		// Polling stops once the run it belongs to is over
		if m.snap.Phase != task.PhaseRunning || msg.runID != m.snap.RunID {
			return m, nil
		}
		var cmd tea.Cmd
		m, cmd = m.dispatch(task.Tick{})
		return m, tea.Batch(cmd, tickCmd(m.interval, m.snap.RunID))

	case task.WorkerDone:
		return m.dispatch(msg)

	case progress.FrameMsg:
		var cmd tea.Cmd
		m.progress, cmd = m.progress.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m appModel) handleKey(key string) (tea.Model, tea.Cmd) {
	if key == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}

	switch m.snap.Phase {
	case task.PhaseIdle:
		switch key {
		case "s", "enter":
			return m.dispatch(task.StartRequested{})
		case "q":
			m.quitting = true
			return m, tea.Quit
		}

	case task.PhaseSelectingFile:
		switch key {
		case "up", "k":
			return m.dispatch(task.FileChosen{Index: m.snap.Selected - 1})
		case "down", "j":
			return m.dispatch(task.FileChosen{Index: m.snap.Selected + 1})
		case "enter":
			return m.dispatch(task.Confirmed{})
		case "esc", "q":
			return m.dispatch(task.Cancelled{})
		}

	case task.PhaseCompleted, task.PhaseFailed:
		switch key {
		case "enter", "esc":
			return m.dispatch(task.Dismissed{})
		case "q":
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// dispatch hands ev to the orchestrator. Worker commands run as bubbletea
// commands, off the Update goroutine; entering Running starts the poller.
func (m appModel) dispatch(ev task.Event) (appModel, tea.Cmd) {
	wasRunning := m.snap.Phase == task.PhaseRunning
	work := m.orch.Handle(ev)
	m.snap = m.orch.Snapshot()

	var cmds []tea.Cmd
	if work != nil {
		cmds = append(cmds, func() tea.Msg { return work() })
	}
	if !wasRunning && m.snap.Phase == task.PhaseRunning {
		cmds = append(cmds, tickCmd(m.interval, m.snap.RunID))
	}
	return m, tea.Batch(cmds...)
}

// tickCmd returns a command that sends a tick after the poll interval.
func tickCmd(interval time.Duration, runID string) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg{runID: runID, at: t}
	})
}

// View renders the UI.
func (m appModel) View() tea.View {
	return tea.NewView(m.renderContent())
}

// renderContent builds the display string.
func (m appModel) renderContent() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.theme.titleStyle().Render("Serendip Whitelister"))
	b.WriteString("\n\n")

	switch m.snap.Phase {
	case task.PhaseIdle:
		b.WriteString(fmt.Sprintf("Input files are read from %s\n\n", m.dataDir))
		b.WriteString(m.theme.hintStyle().Render("s: start  q: quit"))
		b.WriteString("\n")

	case task.PhaseSelectingFile:
		b.WriteString(m.fileList())
		b.WriteString("\n")
		b.WriteString(m.theme.hintStyle().Render("up/down: select  enter: confirm  esc: cancel"))
		b.WriteString("\n")

	case task.PhaseRunning:
		status := m.theme.statusStyle().Render(fmt.Sprintf("[%s]", m.snap.Phase))
		b.WriteString(fmt.Sprintf("%s %s\n", status, m.progress.ViewAs(m.snap.Progress)))
		b.WriteString(fmt.Sprintf("Task in progress: %s\n\n", m.snap.File.Name()))
		b.WriteString(m.logPane())

	case task.PhaseCompleted:
		b.WriteString(m.progress.ViewAs(1.0))
		b.WriteString("\n")
		b.WriteString(m.theme.completedStyle().Render("✓ " + m.snap.Message))
		b.WriteString("\n")
		b.WriteString(m.statsLine())
		b.WriteString("\n")
		b.WriteString(m.logPane())
		b.WriteString(m.theme.hintStyle().Render("enter: dismiss  q: quit"))
		b.WriteString("\n")

	case task.PhaseFailed:
		b.WriteString(m.theme.errorStyle().Render("✗ Error"))
		b.WriteString("\n")
		b.WriteString(m.snap.Message)
		b.WriteString("\n\n")
		b.WriteString(m.logPane())
		b.WriteString(m.theme.hintStyle().Render("enter: dismiss  q: quit"))
		b.WriteString("\n")
	}

	return b.String()
}

// fileList renders candidate files, newest first, with the cursor.
func (m appModel) fileList() string {
	var b strings.Builder
	b.WriteString("Select an input file:\n\n")
	for i, f := range m.snap.Files {
		line := fmt.Sprintf("%s  %s", f.CreatedAt.Local().Format("2006-01-02 15:04:05"), f.Name())
		if i == m.snap.Selected {
			b.WriteString(m.theme.cursorStyle().Render("> " + line))
		} else {
			b.WriteString("  " + line)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// logPane renders the newest buffered log lines and the log file path.
func (m appModel) logPane() string {
	var b strings.Builder
	for _, line := range m.logs.Tail(logPaneLines) {
		b.WriteString(m.theme.hintStyle().Render(line))
		b.WriteString("\n")
	}
	if m.logPath != "" {
		b.WriteString(fmt.Sprintf("\nLog file: %s\n", m.logPath))
	}
	return b.String()
}

// statsLine summarizes stage timings of all runs so far.
func (m appModel) statsLine() string {
	if m.stats == nil {
		return ""
	}
	var parts []string
	for _, st := range stageTimings(m.stats()) {
		parts = append(parts, fmt.Sprintf("%s %.0fms", st.name, st.snap.AvgTimeMs))
	}
	return m.theme.statusStyle().Render(strings.Join(parts, "  "))
}

// runUI runs the interactive UI until the user quits.
func runUI() error {
	model := newAppModel(newOrchestrator(), cfg.PollInterval, logBuf, logPath, cfg.DataDir(), collector.Snapshot)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("UI error: %w", err)
	}
	return nil
}
