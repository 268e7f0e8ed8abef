package console

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/logging"
	"github.com/muurk/mbrsim/internal/ui"
)

// Focus is the pane that receives keys not bound by the console itself.
type Focus int

const (
	FocusEditor Focus = iota
	FocusOutput
)

// Messages for async operations
type runFinishedMsg struct {
	responses []analyzer.Response
	err       error
	duration  time.Duration
}

type mountsMsg struct {
	text string
	err  error
}

type scriptChangedMsg struct {
	content string
	err     error
}

// keyMap defines the console key bindings
type keyMap struct {
	Run    key.Binding
	Clear  key.Binding
	Focus  key.Binding
	Mounts key.Binding
	Quit   key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Clear, k.Focus, k.Mounts, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Clear},
		{k.Focus, k.Mounts, k.Quit},
	}
}

func defaultKeyMap() keyMap {
	return keyMap{
		Run: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "run"),
		),
		Clear: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "clear"),
		),
		Focus: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Mounts: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "mounts"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("esc", "quit"),
		),
	}
}

// Config holds what the console needs to start.
type Config struct {
	Executor     Executor
	Script       string   // initial editor contents
	ScriptPath   string   // shown above the editor
	OutputHeight int      // 0 uses ui.DefaultOutputHeight
	Watcher      *Watcher // rerun the script whenever the file changes
}

// Model is the console: a script editor above an output panel.
type Model struct {
	exec    Executor
	watcher *Watcher
	ctx     context.Context
	cancel  context.CancelFunc

	editor  textarea.Model
	output  ui.Output
	spinner spinner.Model
	help    help.Model
	keys    keyMap

	focus        Focus
	running      bool
	showMounts   bool
	lastRun      string
	status       string
	statusStyle  lipgloss.Style
	scriptPath   string
	outputHeight int

	Width  int
	Height int
}

// NewModel creates a console model.
func NewModel(cfg Config) Model {
	if cfg.OutputHeight <= 0 {
		cfg.OutputHeight = ui.DefaultOutputHeight
	}

	ta := textarea.New()
	ta.Placeholder = "mkdisk -size=10 -unit=m -path=/tmp/disk1.mia"
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetValue(cfg.Script)
	ta.Focus()

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		exec:         cfg.Executor,
		watcher:      cfg.Watcher,
		ctx:          ctx,
		cancel:       cancel,
		editor:       ta,
		output:       ui.NewOutput(ui.WithOutputSize(ui.GetTerminalWidth(), cfg.OutputHeight)),
		spinner:      s,
		help:         help.New(),
		keys:         defaultKeyMap(),
		focus:        FocusEditor,
		status:       "Ready",
		statusStyle:  StatusStyle,
		scriptPath:   cfg.ScriptPath,
		outputHeight: cfg.OutputHeight,
	}
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.waitForChange())
}

// Output returns the output panel.
func (m Model) Output() ui.Output {
	return m.output
}

// Script returns the editor contents.
func (m Model) Script() string {
	return m.editor.Value()
}

// Focused returns the pane that has focus.
func (m Model) Focused() Focus {
	return m.focus
}

// Running reports whether a script run is in progress.
func (m Model) Running() bool {
	return m.running
}

// Status returns the status line text.
func (m Model) Status() string {
	return m.status
}

// Update implements tea.Model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancel()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Run):
			return m.startRun()
		case key.Matches(msg, m.keys.Clear):
			m.lastRun = ""
			m.showMounts = false
			m.output.SetData("")
			m.setStatus("Output cleared", StatusStyle)
			return m, nil
		case key.Matches(msg, m.keys.Focus):
			return m.toggleFocus()
		case key.Matches(msg, m.keys.Mounts):
			return m.toggleMounts()
		}

	case runFinishedMsg:
		return m.finishRun(msg), nil

	case mountsMsg:
		if !m.showMounts {
			return m, nil
		}
		if msg.err != nil {
			m.output, _ = m.output.Update(ui.DataMsg{Data: "> Error: " + msg.err.Error()})
			m.setStatus("Could not list mounts", StatusErrorStyle)
			return m, nil
		}
		m.output, _ = m.output.Update(ui.DataMsg{Data: msg.text})
		m.setStatus("Mounted partitions", StatusStyle)
		return m, nil

	case scriptChangedMsg:
		if msg.err != nil {
			logging.Warn("Reload failed", zap.Error(msg.err))
			m.setStatus("Reload failed: "+msg.err.Error(), StatusErrorStyle)
			return m, m.waitForChange()
		}
		m.editor.SetValue(msg.content)
		next, cmd := m.startRun()
		return next, tea.Batch(cmd, m.waitForChange())

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	switch m.focus {
	case FocusEditor:
		m.editor, cmd = m.editor.Update(msg)
	case FocusOutput:
		m.output, cmd = m.output.Update(msg)
	}
	return m, cmd
}

func (m Model) startRun() (tea.Model, tea.Cmd) {
	if m.running {
		return m, nil
	}
	lines := analyzer.Lines(m.editor.Value())
	if len(lines) == 0 {
		m.setStatus("Nothing to run", StatusWarningStyle)
		return m, nil
	}

	m.running = true
	m.showMounts = false
	m.setStatus(fmt.Sprintf("Running %d line(s) on %s", len(lines), m.exec.Target()), StatusStyle)
	logging.Debug("Console run", zap.Int("lines", len(lines)), zap.String("target", m.exec.Target()))
	return m, tea.Batch(m.spinner.Tick, runScript(m.ctx, m.exec, lines))
}

func (m Model) finishRun(msg runFinishedMsg) Model {
	m.running = false

	data := analyzer.Join(msg.responses)
	if msg.err != nil {
		if data != "" {
			data += "\n"
		}
		data += "> Error: " + msg.err.Error()
	}
	m.lastRun = data
	m.output, _ = m.output.Update(ui.DataMsg{Data: data})

	failed := 0
	for _, r := range msg.responses {
		if r.Failed {
			failed++
		}
	}
	took := msg.duration.Round(time.Millisecond)
	switch {
	case msg.err != nil:
		m.setStatus("Run failed: "+msg.err.Error(), StatusErrorStyle)
	case failed > 0:
		m.setStatus(fmt.Sprintf("%d response(s), %d failed in %s", len(msg.responses), failed, took), StatusWarningStyle)
	default:
		m.setStatus(fmt.Sprintf("%d response(s) in %s", len(msg.responses), took), StatusSuccessStyle)
	}
	return m
}

func (m Model) toggleFocus() (tea.Model, tea.Cmd) {
	if m.focus == FocusEditor {
		m.focus = FocusOutput
		m.editor.Blur()
		return m, nil
	}
	m.focus = FocusEditor
	return m, m.editor.Focus()
}

func (m Model) toggleMounts() (tea.Model, tea.Cmd) {
	if m.showMounts {
		m.showMounts = false
		m.output, _ = m.output.Update(ui.DataMsg{Data: m.lastRun})
		m.setStatus("Last run", StatusStyle)
		return m, nil
	}
	m.showMounts = true
	return m, fetchMounts(m.ctx, m.exec)
}

func (m *Model) setStatus(text string, style lipgloss.Style) {
	m.status = text
	m.statusStyle = style
}

// layout splits the window between the editor and the output panel. The
// panel keeps its configured height unless the window is too short, the
// editor gets the rest.
func (m *Model) layout() {
	available := m.Height - chromeRows
	outH := min(m.outputHeight, max(available-MinEditorHeight, ui.MinOutputHeight))
	editorH := max(available-outH, MinEditorHeight)

	m.editor.SetWidth(m.Width)
	m.editor.SetHeight(editorH)
	m.output.SetSize(m.Width, outH)
	m.help.Width = m.Width
}

func (m Model) waitForChange() tea.Cmd {
	if m.watcher == nil {
		return nil
	}
	w := m.watcher
	return func() tea.Msg {
		if _, ok := <-w.Changes(); !ok {
			return nil
		}
		b, err := os.ReadFile(w.Path())
		return scriptChangedMsg{content: string(b), err: err}
	}
}

func runScript(ctx context.Context, exec Executor, lines []string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		responses, err := exec.Execute(ctx, lines)
		return runFinishedMsg{responses: responses, err: err, duration: time.Since(start)}
	}
}

func fetchMounts(ctx context.Context, exec Executor) tea.Cmd {
	return func() tea.Msg {
		text, err := exec.Mounts(ctx)
		return mountsMsg{text: text, err: err}
	}
}

// View implements tea.Model
func (m Model) View() string {
	if m.Width == 0 {
		return "Loading..."
	}

	editorTitle := "Script"
	if m.scriptPath != "" {
		editorTitle += " " + m.scriptPath
	}
	outputTitle := "Output"
	if m.showMounts {
		outputTitle = "Mounted partitions"
	}

	status := m.statusStyle.Render(m.status)
	if m.running {
		status = m.spinner.View() + " " + status
	}

	return strings.Join([]string{
		BuildHeaderContent(m.exec.Target(), m.Width),
		RenderTitle(editorTitle, m.focus == FocusEditor),
		m.editor.View(),
		status,
		RenderTitle(outputTitle, m.focus == FocusOutput),
		m.output.View(),
		m.help.View(m.keys),
	}, "\n")
}

// Run starts the console full-screen and blocks until the user quits.
func Run(cfg Config) error {
	p := tea.NewProgram(NewModel(cfg), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
