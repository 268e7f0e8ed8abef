package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Output panel defaults. The panel never grows with its content: long
// payloads scroll inside DefaultOutputHeight rows.
const (
	DefaultOutputHeight = 20
	OutputTabWidth      = 8
	outputHStep         = 4
	scrollbarWidth      = 1
)

// DataMsg replaces the payload shown by an Output. It is the message form of
// Output.SetData, for callers that drive the panel through Update.
type DataMsg struct {
	Data any
}

// Output displays a text payload verbatim inside a fixed-height, scrollable,
// dark panel. Whitespace and line breaks are kept as given; long lines are
// cut and scroll horizontally instead of wrapping.
//
// The zero value is not usable, create one with NewOutput.
type Output struct {
	vp     viewport.Model
	data   string
	width  int
	height int
	style  lipgloss.Style
	bar    lipgloss.Style
	thumb  lipgloss.Style
}

// OutputOption configures an Output at construction time.
type OutputOption func(*Output)

// WithOutputSize sets the total panel size, padding and scrollbar included.
func WithOutputSize(width, height int) OutputOption {
	return func(o *Output) {
		o.width = width
		o.height = height
	}
}

// WithOutputStyle replaces the panel style. Width and height set on the style
// are ignored; use WithOutputSize.
func WithOutputStyle(style lipgloss.Style) OutputOption {
	return func(o *Output) {
		o.style = style.UnsetWidth().UnsetHeight()
	}
}

// NewOutput creates an empty output panel.
func NewOutput(opts ...OutputOption) Output {
	o := Output{
		width:  GetTerminalWidth(),
		height: DefaultOutputHeight,
		style:  OutputPanelStyle,
		bar:    OutputScrollTrackStyle,
		thumb:  OutputScrollThumbStyle,
	}
	for _, opt := range opts {
		opt(&o)
	}

	o.vp = viewport.New(0, 0)
	o.vp.SetHorizontalStep(outputHStep)
	o.resize()
	o.vp.SetContent("")
	return o
}

// SetData coerces v to text and redraws the panel if the text differs from
// what is currently displayed. It reports whether a redraw happened. A new
// payload always starts scrolled to the top.
func (o *Output) SetData(v any) bool {
	text := Text(v)
	if text == o.data {
		return false
	}
	o.data = text
	o.vp.SetContent(preformat(text))
	o.vp.GotoTop()
	o.vp.SetXOffset(0)
	return true
}

// Data returns the text currently displayed, exactly as it was supplied.
func (o Output) Data() string {
	return o.data
}

// SetSize changes the total panel size.
func (o *Output) SetSize(width, height int) {
	o.width = width
	o.height = height
	o.resize()
}

// Width returns the total panel width.
func (o Output) Width() int {
	return o.width
}

// Height returns the total panel height. It does not depend on the payload.
func (o Output) Height() int {
	return o.height
}

// LineCount returns the number of lines in the current payload.
func (o Output) LineCount() int {
	return o.vp.TotalLineCount()
}

// ScrollOffset returns the index of the first visible payload line.
func (o Output) ScrollOffset() int {
	return o.vp.YOffset
}

// ScrollDown moves the view down by n lines.
func (o *Output) ScrollDown(n int) {
	o.vp.ScrollDown(n)
}

// ScrollUp moves the view up by n lines.
func (o *Output) ScrollUp(n int) {
	o.vp.ScrollUp(n)
}

// GotoBottom scrolls to the last line.
func (o *Output) GotoBottom() {
	o.vp.GotoBottom()
}

// GotoTop scrolls to the first line.
func (o *Output) GotoTop() {
	o.vp.GotoTop()
}

// KeyMap returns the scroll key bindings, for help rendering.
func (o Output) KeyMap() viewport.KeyMap {
	return o.vp.KeyMap
}

// Init implements the Bubble Tea component contract.
func (o Output) Init() tea.Cmd {
	return nil
}

// Update handles scrolling input and DataMsg. tea.WindowSizeMsg does not
// change the panel's size; the parent owns the layout and calls SetSize.
func (o Output) Update(msg tea.Msg) (Output, tea.Cmd) {
	switch msg := msg.(type) {
	case DataMsg:
		o.SetData(msg.Data)
		return o, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "home", "g":
			o.vp.GotoTop()
			return o, nil
		case "end", "G":
			o.vp.GotoBottom()
			return o, nil
		}
	}

	var cmd tea.Cmd
	o.vp, cmd = o.vp.Update(msg)
	return o, cmd
}

// View renders the panel. The result is always Height() rows tall and
// carries a scrollbar on its right edge, whatever the payload length.
func (o Output) View() string {
	body := o.vp.View()
	gutter := o.renderScrollbar()
	return lipgloss.JoinHorizontal(lipgloss.Top, body, gutter)
}

// String implements fmt.Stringer
func (o Output) String() string {
	return o.View()
}

func (o *Output) resize() {
	if o.width < MinOutputWidth {
		o.width = MinOutputWidth
	}
	if o.height < MinOutputHeight {
		o.height = MinOutputHeight
	}
	o.vp.Width = o.width - scrollbarWidth
	o.vp.Height = o.height
	o.vp.Style = o.style
	if o.vp.PastBottom() {
		o.vp.GotoBottom()
	}
}

// renderScrollbar draws a one-column track with a thumb sized to the visible
// fraction of the payload. Short payloads get a thumb covering the whole
// track.
func (o Output) renderScrollbar() string {
	track := o.height
	visible := o.height - o.style.GetVerticalFrameSize()
	total := max(o.vp.TotalLineCount(), 1)

	thumbLen := track
	thumbTop := 0
	if total > visible && visible > 0 {
		thumbLen = max(1, track*visible/total)
		maxTop := track - thumbLen
		maxOffset := total - visible
		thumbTop = (min(o.vp.YOffset, maxOffset)*maxTop + maxOffset/2) / maxOffset
	}

	rows := make([]string, track)
	for i := range rows {
		if i >= thumbTop && i < thumbTop+thumbLen {
			rows[i] = o.thumb.Render(ScrollThumbMarker)
		} else {
			rows[i] = o.bar.Render(ScrollTrackMarker)
		}
	}
	return strings.Join(rows, "\n")
}

// RenderOutput renders data once in a panel of the given size. It is the
// stateless form of Output for callers that print rather than run a program.
func RenderOutput(data any, width, height int) string {
	o := NewOutput(WithOutputSize(width, height))
	o.SetData(data)
	return o.View()
}

// Text converts a payload to the text an Output displays. nil becomes the
// empty string. Values whose String or Error method panics are shown as
// empty rather than propagating the panic.
func Text(v any) (s string) {
	defer func() {
		if r := recover(); r != nil {
			s = ""
		}
	}()

	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// preformat prepares payload text for the terminal: tabs expand to
// OutputTabWidth stops and control characters other than newline are shown
// in caret notation so they cannot act on the terminal.
func preformat(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = preformatLine(line)
	}
	return strings.Join(lines, "\n")
}

func preformatLine(line string) string {
	if !strings.ContainsFunc(line, isControl) {
		return line
	}

	var b strings.Builder
	col := 0
	for _, r := range line {
		switch {
		case r == '\t':
			n := OutputTabWidth - col%OutputTabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case r == 0x7f:
			b.WriteString("^?")
			col += 2
		case r < 0x20:
			b.WriteByte('^')
			b.WriteByte(byte(r) + '@')
			col += 2
		default:
			b.WriteRune(r)
			col += ansi.StringWidth(string(r))
		}
	}
	return b.String()
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}
