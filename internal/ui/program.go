package ui

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Printer provides methods for printing UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// SetWidth overrides the detected terminal width
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params ...Param) {
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Param) {
	p.Println(NewSuccessResult(title, details...).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details ...Param) {
	p.Println(NewWarningResult(title, details...).SetWidth(p.width).Render())
}

// PrintError prints an error result box with troubleshooting tips
func (p *Printer) PrintError(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintOutput prints data in an output panel of the given height.
func (p *Printer) PrintOutput(data any, height int) {
	if height <= 0 {
		height = DefaultOutputHeight
	}
	p.Println(OutputTitleStyle.Render("Output"))
	p.Println(RenderOutput(data, p.width, height))
}

type pagerKeyMap struct {
	scroll scrollKeys
	Quit   key.Binding
}

// scrollKeys is the subset of scroll bindings shown in the pager help line.
type scrollKeys struct {
	Up, Down, PageUp, PageDown key.Binding
}

func (k pagerKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.scroll.Up, k.scroll.Down, k.scroll.PageUp, k.scroll.PageDown, k.Quit}
}

func (k pagerKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// PagerModel shows a single payload full-screen in an output panel.
type PagerModel struct {
	title  string
	output Output
	keys   pagerKeyMap
	help   help.Model
	ready  bool
}

// NewPagerModel creates a pager for data, titled with title.
func NewPagerModel(title string, data any) PagerModel {
	o := NewOutput()
	o.SetData(data)
	km := o.KeyMap()
	return PagerModel{
		title:  title,
		output: o,
		keys: pagerKeyMap{
			scroll: scrollKeys{Up: km.Up, Down: km.Down, PageUp: km.PageUp, PageDown: km.PageDown},
			Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
		},
		help: help.New(),
	}
}

// Output returns the pager's panel.
func (m PagerModel) Output() Output {
	return m.output
}

// Init implements tea.Model
func (m PagerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model
func (m PagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		// Title row and help row
		m.output.SetSize(msg.Width, msg.Height-2)
		m.help.Width = msg.Width
		m.ready = true
		return m, nil
	}

	var cmd tea.Cmd
	m.output, cmd = m.output.Update(msg)
	return m, cmd
}

// View implements tea.Model
func (m PagerModel) View() string {
	if !m.ready {
		return ""
	}
	title := OutputTitleStyle.Render(m.title)
	return lipgloss.JoinVertical(lipgloss.Left, title, m.output.View(), m.help.View(m.keys))
}

// RunPager shows data full-screen until the user quits.
func RunPager(title string, data any) error {
	p := tea.NewProgram(NewPagerModel(title, data), tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
