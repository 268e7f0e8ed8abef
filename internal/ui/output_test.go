package ui

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func viewRows(o Output) []string {
	return strings.Split(ansi.Strip(o.View()), "\n")
}

func numberedLines(n int) string {
	lines := make([]string, n)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %03d", i)
	}
	return strings.Join(lines, "\n")
}

type stringer struct{ s string }

func (s stringer) String() string { return s.s }

type panicStringer struct{}

func (panicStringer) String() string { panic("boom") }

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{name: "nil", in: nil, want: ""},
		{name: "string", in: "  keep\tthis  ", want: "  keep\tthis  "},
		{name: "bytes", in: []byte("raw"), want: "raw"},
		{name: "error", in: errors.New("disk full"), want: "disk full"},
		{name: "stringer", in: stringer{"from String"}, want: "from String"},
		{name: "int", in: 42, want: "42"},
		{name: "panicking stringer", in: panicStringer{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in); got != tt.want {
				t.Errorf("Text(%#v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestOutput_DataIsExact(t *testing.T) {
	payloads := []string{
		"",
		"hello",
		"  leading and trailing  ",
		"a\n\n\nb\n",
		"\tindented\r\nwindows line",
		"unicode ─ ✓ 日本",
	}

	for _, p := range payloads {
		o := NewOutput(WithOutputSize(60, 10))
		o.SetData(p)
		if got := o.Data(); got != p {
			t.Errorf("Data() = %q, want %q", got, p)
		}
	}
}

func TestOutput_EmptyPayloadKeepsHeight(t *testing.T) {
	o := NewOutput(WithOutputSize(40, 10))

	if got := lipgloss.Height(o.View()); got != 10 {
		t.Errorf("empty view height = %d, want 10", got)
	}
	if got := lipgloss.Width(o.View()); got != 40 {
		t.Errorf("empty view width = %d, want 40", got)
	}
	for i, row := range viewRows(o) {
		if strings.TrimSpace(strings.TrimRight(row, ScrollThumbMarker+ScrollTrackMarker)) != "" {
			t.Errorf("row %d = %q, want blank", i, row)
		}
	}
}

func TestOutput_DefaultHeight(t *testing.T) {
	o := NewOutput()
	if o.Height() != DefaultOutputHeight {
		t.Errorf("Height() = %d, want %d", o.Height(), DefaultOutputHeight)
	}
	if got := lipgloss.Height(o.View()); got != DefaultOutputHeight {
		t.Errorf("view height = %d, want %d", got, DefaultOutputHeight)
	}
}

func TestOutput_HeightIndependentOfPayload(t *testing.T) {
	for _, n := range []int{0, 1, 5, 18, 19, 500} {
		o := NewOutput(WithOutputSize(60, 20))
		o.SetData(numberedLines(n))
		if got := lipgloss.Height(o.View()); got != 20 {
			t.Errorf("%d lines: view height = %d, want 20", n, got)
		}
		if got := lipgloss.Width(o.View()); got != 60 {
			t.Errorf("%d lines: view width = %d, want 60", n, got)
		}
	}
}

func TestOutput_LinesRenderInOrder(t *testing.T) {
	o := NewOutput(WithOutputSize(40, 10))
	o.SetData("hello\nworld")

	rows := viewRows(o)
	// Row 0 is top padding.
	if !strings.Contains(rows[1], "hello") {
		t.Errorf("row 1 = %q, want it to contain hello", rows[1])
	}
	if !strings.Contains(rows[2], "world") {
		t.Errorf("row 2 = %q, want it to contain world", rows[2])
	}
	if o.LineCount() != 2 {
		t.Errorf("LineCount() = %d, want 2", o.LineCount())
	}
}

func TestOutput_WhitespaceKept(t *testing.T) {
	o := NewOutput(WithOutputSize(40, 10))
	o.SetData("a    b\n   c")

	rows := viewRows(o)
	if !strings.Contains(rows[1], "a    b") {
		t.Errorf("row 1 = %q, want inner spaces kept", rows[1])
	}
	if !strings.Contains(rows[2], "   c") {
		t.Errorf("row 2 = %q, want leading spaces kept", rows[2])
	}
}

func TestOutput_ReplaceLeavesNoTrace(t *testing.T) {
	o := NewOutput(WithOutputSize(60, 10))
	o.SetData("first-payload\nmore of it")
	o.SetData("second")

	view := ansi.Strip(o.View())
	if strings.Contains(view, "first-payload") || strings.Contains(view, "more of it") {
		t.Errorf("view still shows old payload:\n%s", view)
	}
	if !strings.Contains(view, "second") {
		t.Errorf("view does not show new payload:\n%s", view)
	}
	if o.Data() != "second" {
		t.Errorf("Data() = %q, want %q", o.Data(), "second")
	}
}

func TestOutput_SetDataReportsRedraw(t *testing.T) {
	o := NewOutput(WithOutputSize(60, 10))

	if o.SetData("") {
		t.Error("SetData(\"\") on empty panel = true, want false")
	}
	if o.SetData(nil) {
		t.Error("SetData(nil) on empty panel = true, want false")
	}
	if !o.SetData("x") {
		t.Error("SetData(\"x\") = false, want true")
	}
	if o.SetData("x") {
		t.Error("SetData with equal value = true, want false")
	}
	if o.SetData([]byte("x")) {
		t.Error("SetData with equal bytes = true, want false")
	}
	if !o.SetData(nil) {
		t.Error("SetData(nil) after text = false, want true")
	}
	if o.Data() != "" {
		t.Errorf("Data() after nil = %q, want empty", o.Data())
	}
}

func TestOutput_ScrollbarAlwaysDrawn(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "empty", payload: ""},
		{name: "short", payload: "one line"},
		{name: "long", payload: numberedLines(500)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := NewOutput(WithOutputSize(60, 20))
			o.SetData(tt.payload)
			for i, row := range viewRows(o) {
				if !strings.HasSuffix(row, ScrollTrackMarker) && !strings.HasSuffix(row, ScrollThumbMarker) {
					t.Errorf("row %d = %q, want scrollbar at right edge", i, row)
				}
			}
		})
	}
}

func TestOutput_ScrollbarThumb(t *testing.T) {
	o := NewOutput(WithOutputSize(60, 20))

	o.SetData("short")
	for i, row := range viewRows(o) {
		if !strings.HasSuffix(row, ScrollThumbMarker) {
			t.Errorf("short payload row %d = %q, want full-length thumb", i, row)
		}
	}

	o.SetData(numberedLines(500))
	rows := viewRows(o)
	if !strings.HasSuffix(rows[0], ScrollThumbMarker) {
		t.Errorf("at top, row 0 = %q, want thumb", rows[0])
	}
	if !strings.HasSuffix(rows[19], ScrollTrackMarker) {
		t.Errorf("at top, row 19 = %q, want track", rows[19])
	}

	o.GotoBottom()
	rows = viewRows(o)
	if !strings.HasSuffix(rows[19], ScrollThumbMarker) {
		t.Errorf("at bottom, row 19 = %q, want thumb", rows[19])
	}
	if !strings.HasSuffix(rows[0], ScrollTrackMarker) {
		t.Errorf("at bottom, row 0 = %q, want track", rows[0])
	}
}

func TestOutput_Scrolling(t *testing.T) {
	o := NewOutput(WithOutputSize(60, 20))
	o.SetData(numberedLines(500))

	o.ScrollDown(10)
	if o.ScrollOffset() != 10 {
		t.Errorf("ScrollOffset() = %d, want 10", o.ScrollOffset())
	}
	if rows := viewRows(o); !strings.Contains(rows[1], "line 010") {
		t.Errorf("first visible row = %q, want line 010", rows[1])
	}

	o.GotoBottom()
	// 20 rows less 2 padding rows leaves 18 visible lines.
	if want := 500 - 18; o.ScrollOffset() != want {
		t.Errorf("ScrollOffset() at bottom = %d, want %d", o.ScrollOffset(), want)
	}
	if rows := viewRows(o); !strings.Contains(rows[18], "line 499") {
		t.Errorf("last visible row = %q, want line 499", rows[18])
	}

	o.ScrollUp(1000)
	if o.ScrollOffset() != 0 {
		t.Errorf("ScrollOffset() after ScrollUp = %d, want 0", o.ScrollOffset())
	}
}

func TestOutput_NewPayloadStartsAtTop(t *testing.T) {
	o := NewOutput(WithOutputSize(60, 20))
	o.SetData(numberedLines(500))
	o.GotoBottom()

	o.SetData(numberedLines(400))
	if o.ScrollOffset() != 0 {
		t.Errorf("ScrollOffset() after new payload = %d, want 0", o.ScrollOffset())
	}
}

func TestOutput_LongLinesAreNotWrapped(t *testing.T) {
	long := strings.Repeat("abcdefghij", 20) + "END"
	o := NewOutput(WithOutputSize(40, 10))
	o.SetData(long + "\nnext")

	rows := viewRows(o)
	if strings.Contains(rows[1], "END") {
		t.Errorf("row 1 = %q, want line cut at panel edge", rows[1])
	}
	if !strings.Contains(rows[2], "next") {
		t.Errorf("row 2 = %q, want second payload line", rows[2])
	}
	if got := lipgloss.Width(o.View()); got != 40 {
		t.Errorf("view width = %d, want 40", got)
	}
}

func TestOutput_ControlCharactersEscaped(t *testing.T) {
	o := NewOutput(WithOutputSize(60, 10))
	o.SetData("a\x1b[31mred\x07\x7f")

	view := o.View()
	if strings.Contains(view, "\x07") {
		t.Error("view contains raw BEL")
	}
	if !strings.Contains(ansi.Strip(view), "a^[[31mred^G^?") {
		t.Errorf("view = %q, want caret notation", ansi.Strip(view))
	}
	if o.Data() != "a\x1b[31mred\x07\x7f" {
		t.Errorf("Data() = %q, want original payload", o.Data())
	}
}

func TestPreformatLine(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "plain", want: "plain"},
		{in: "\tx", want: "        x"},
		{in: "ab\tx", want: "ab      x"},
		{in: "12345678\tx", want: "12345678        x"},
		{in: "\x00", want: "^@"},
		{in: "x\ry", want: "x^My"},
	}

	for _, tt := range tests {
		if got := preformatLine(tt.in); got != tt.want {
			t.Errorf("preformatLine(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOutput_Update(t *testing.T) {
	o := NewOutput(WithOutputSize(60, 20))

	o, _ = o.Update(DataMsg{Data: numberedLines(100)})
	if o.LineCount() != 100 {
		t.Fatalf("LineCount() = %d, want 100", o.LineCount())
	}

	o, _ = o.Update(tea.KeyMsg{Type: tea.KeyDown})
	if o.ScrollOffset() != 1 {
		t.Errorf("after down: ScrollOffset() = %d, want 1", o.ScrollOffset())
	}

	o, _ = o.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("G")})
	if want := 100 - 18; o.ScrollOffset() != want {
		t.Errorf("after G: ScrollOffset() = %d, want %d", o.ScrollOffset(), want)
	}

	o, _ = o.Update(tea.KeyMsg{Type: tea.KeyHome})
	if o.ScrollOffset() != 0 {
		t.Errorf("after home: ScrollOffset() = %d, want 0", o.ScrollOffset())
	}
}

func TestOutput_WindowSizeOwnedByParent(t *testing.T) {
	o := NewOutput(WithOutputSize(60, 12))
	o.SetData(numberedLines(50))

	o, _ = o.Update(tea.WindowSizeMsg{Width: 200, Height: 80})
	if o.Width() != 60 || o.Height() != 12 {
		t.Errorf("size after WindowSizeMsg = %dx%d, want 60x12", o.Width(), o.Height())
	}
	if got := lipgloss.Height(o.View()); got != 12 {
		t.Errorf("view height = %d, want 12", got)
	}

	// The pager sizes its panel to the window, less the title and help rows.
	var pager tea.Model = NewPagerModel("log", numberedLines(50))
	pager, _ = pager.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	panel := pager.(PagerModel).Output()
	if panel.Width() != 100 || panel.Height() != 28 {
		t.Errorf("pager panel = %dx%d, want 100x28", panel.Width(), panel.Height())
	}
	if panel.Data() != numberedLines(50) {
		t.Error("resize changed the pager's payload")
	}
}

func TestOutput_SizeClamped(t *testing.T) {
	o := NewOutput(WithOutputSize(1, 1))
	if o.Width() != MinOutputWidth || o.Height() != MinOutputHeight {
		t.Errorf("size = %dx%d, want %dx%d", o.Width(), o.Height(), MinOutputWidth, MinOutputHeight)
	}

	o.SetSize(50, 12)
	if got := lipgloss.Height(o.View()); got != 12 {
		t.Errorf("view height after SetSize = %d, want 12", got)
	}
}

func TestRenderOutput(t *testing.T) {
	got := RenderOutput("hello", 40, 8)
	if lipgloss.Height(got) != 8 {
		t.Errorf("RenderOutput height = %d, want 8", lipgloss.Height(got))
	}
	if !strings.Contains(ansi.Strip(got), "hello") {
		t.Errorf("RenderOutput = %q, want it to contain hello", ansi.Strip(got))
	}

	// Never fails, whatever the input.
	_ = RenderOutput(panicStringer{}, 40, 8)
}
