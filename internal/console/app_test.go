package console

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/disk"
)

type fakeExecutor struct {
	responses []analyzer.Response
	err       error
	mounts    string
	runs      [][]string
}

func (f *fakeExecutor) Execute(_ context.Context, lines []string) ([]analyzer.Response, error) {
	f.runs = append(f.runs, lines)
	return f.responses, f.err
}

func (f *fakeExecutor) Stream(ctx context.Context, lines []string, fn func(int, analyzer.Response)) error {
	responses, err := f.Execute(ctx, lines)
	for i, r := range responses {
		fn(i, r)
	}
	return err
}

func (f *fakeExecutor) Mounts(context.Context) (string, error) {
	return f.mounts, nil
}

func (f *fakeExecutor) Target() string {
	return "fake"
}

func newTestModel(t *testing.T, exec Executor, script string) Model {
	t.Helper()
	m := NewModel(Config{Executor: exec, Script: script, OutputHeight: 10})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 40})
	return next.(Model)
}

func press(t *testing.T, m Model, k tea.KeyType) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: k})
	return next.(Model), cmd
}

// drain runs cmd and any batched commands, feeding their results back into
// the model. Only messages the console produces itself are fed back.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			m = drain(t, m, c)
		}
	case runFinishedMsg, mountsMsg:
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestRun_ShowsJoinedResponses(t *testing.T) {
	exec := &fakeExecutor{responses: []analyzer.Response{
		{Command: "mkdisk", Message: "> command mkdisk executed successfully"},
		{Command: "fdisk", Message: "> Error: no space", Failed: true},
	}}
	m := newTestModel(t, exec, "mkdisk -size=1\n\n# note\nfdisk -size=9")

	m, cmd := press(t, m, tea.KeyCtrlR)
	if !m.Running() {
		t.Fatal("Running() = false after ctrl+r")
	}
	m = drain(t, m, cmd)

	if m.Running() {
		t.Error("Running() = true after the run finished")
	}
	want := "> command mkdisk executed successfully\n> Error: no space"
	if got := m.Output().Data(); got != want {
		t.Errorf("Output().Data() = %q, want %q", got, want)
	}
	if diff := cmp.Diff([][]string{{"mkdisk -size=1", "# note", "fdisk -size=9"}}, exec.runs); diff != "" {
		t.Errorf("lines run (-want +got):\n%s", diff)
	}
	if !strings.Contains(m.Status(), "1 failed") {
		t.Errorf("Status() = %q", m.Status())
	}
}

func TestRun_EmptyScript(t *testing.T) {
	exec := &fakeExecutor{}
	m := newTestModel(t, exec, "  \n\n")

	m, cmd := press(t, m, tea.KeyCtrlR)
	if cmd != nil || m.Running() {
		t.Error("empty script started a run")
	}
	if m.Status() != "Nothing to run" {
		t.Errorf("Status() = %q", m.Status())
	}
}

func TestRun_ExecutorError(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("connection refused")}
	m := newTestModel(t, exec, "mkdisk -size=1")

	m, cmd := press(t, m, tea.KeyCtrlR)
	m = drain(t, m, cmd)

	if got := m.Output().Data(); got != "> Error: connection refused" {
		t.Errorf("Output().Data() = %q", got)
	}
	if !strings.HasPrefix(m.Status(), "Run failed") {
		t.Errorf("Status() = %q", m.Status())
	}
}

func TestRun_SameOutputKeepsScroll(t *testing.T) {
	lines := make([]string, 100)
	for i := range lines {
		lines[i] = fmt.Sprintf("line %d", i)
	}
	exec := &fakeExecutor{responses: []analyzer.Response{{Message: strings.Join(lines, "\n")}}}
	m := newTestModel(t, exec, "rep")

	m, cmd := press(t, m, tea.KeyCtrlR)
	m = drain(t, m, cmd)
	m.output.ScrollDown(5)

	m, cmd = press(t, m, tea.KeyCtrlR)
	m = drain(t, m, cmd)
	if got := m.Output().ScrollOffset(); got != 5 {
		t.Errorf("ScrollOffset() = %d after identical rerun, want 5", got)
	}

	exec.responses = []analyzer.Response{{Message: "changed"}}
	m, cmd = press(t, m, tea.KeyCtrlR)
	m = drain(t, m, cmd)
	if got := m.Output().ScrollOffset(); got != 0 {
		t.Errorf("ScrollOffset() = %d after new output, want 0", got)
	}
}

func TestClear(t *testing.T) {
	exec := &fakeExecutor{responses: []analyzer.Response{{Message: "hello"}}}
	m := newTestModel(t, exec, "mkdisk")
	m, cmd := press(t, m, tea.KeyCtrlR)
	m = drain(t, m, cmd)

	m, _ = press(t, m, tea.KeyCtrlL)
	if got := m.Output().Data(); got != "" {
		t.Errorf("Output().Data() = %q after clear", got)
	}
}

func TestToggleFocus(t *testing.T) {
	m := newTestModel(t, &fakeExecutor{}, "")
	if m.Focused() != FocusEditor {
		t.Fatal("editor should start focused")
	}
	m, _ = press(t, m, tea.KeyTab)
	if m.Focused() != FocusOutput {
		t.Errorf("Focused() = %v after tab, want FocusOutput", m.Focused())
	}

	// Typing goes to the output pane now, not the editor.
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	m = next.(Model)
	if m.Script() != "" {
		t.Errorf("Script() = %q, want empty", m.Script())
	}

	m, _ = press(t, m, tea.KeyTab)
	if m.Focused() != FocusEditor {
		t.Errorf("Focused() = %v after second tab, want FocusEditor", m.Focused())
	}
}

func TestToggleMounts(t *testing.T) {
	exec := &fakeExecutor{
		responses: []analyzer.Response{{Message: "ran"}},
		mounts:    "Path: /d.mia, Name: p1, ID: 491a, Status: 1",
	}
	m := newTestModel(t, exec, "mount")
	m, cmd := press(t, m, tea.KeyCtrlR)
	m = drain(t, m, cmd)

	m, cmd = press(t, m, tea.KeyCtrlO)
	m = drain(t, m, cmd)
	if got := m.Output().Data(); got != exec.mounts {
		t.Errorf("Output().Data() = %q, want mount table", got)
	}

	m, _ = press(t, m, tea.KeyCtrlO)
	if got := m.Output().Data(); got != "ran" {
		t.Errorf("Output().Data() = %q, want last run restored", got)
	}
}

func TestScriptChanged(t *testing.T) {
	exec := &fakeExecutor{responses: []analyzer.Response{{Message: "ok"}}}
	m := newTestModel(t, exec, "old")

	next, cmd := m.Update(scriptChangedMsg{content: "mkdisk -size=2"})
	m = next.(Model)
	if m.Script() != "mkdisk -size=2" {
		t.Errorf("Script() = %q", m.Script())
	}
	if !m.Running() {
		t.Fatal("reload did not start a run")
	}
	m = drain(t, m, cmd)
	if diff := cmp.Diff([][]string{{"mkdisk -size=2"}}, exec.runs); diff != "" {
		t.Errorf("lines run (-want +got):\n%s", diff)
	}

	next, _ = m.Update(scriptChangedMsg{err: errors.New("permission denied")})
	m = next.(Model)
	if !strings.Contains(m.Status(), "permission denied") {
		t.Errorf("Status() = %q", m.Status())
	}
}

func TestQuit(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyCtrlC, tea.KeyEsc} {
		m := newTestModel(t, &fakeExecutor{}, "")
		m, cmd := press(t, m, k)
		if cmd == nil {
			t.Fatalf("%v: no command", k)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%v: command is not tea.Quit", k)
		}
		if m.ctx.Err() == nil {
			t.Errorf("%v: run context not cancelled", k)
		}
	}
}

func TestView_FitsWindow(t *testing.T) {
	for _, h := range []int{40, 24, 12} {
		m := NewModel(Config{Executor: &fakeExecutor{}, OutputHeight: 20})
		next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: h})
		m = next.(Model)

		if got := lipgloss.Height(m.View()); got > max(h, chromeRows+MinEditorHeight+3) {
			t.Errorf("height %d: view is %d rows", h, got)
		}
		if !strings.Contains(m.View(), "Output") {
			t.Errorf("height %d: output title missing", h)
		}
	}
}

func TestLocalExecutor(t *testing.T) {
	exec := LocalExecutor{Analyzer: analyzer.New(disk.NewManager(), nil)}
	path := filepath.Join(t.TempDir(), "a.mia")

	responses, err := exec.Execute(context.Background(), []string{"mkdisk -size=1 -unit=k -path=" + path})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(responses) != 1 || responses[0].Failed {
		t.Errorf("Execute() = %+v", responses)
	}

	mounts, err := exec.Mounts(context.Background())
	if err != nil || mounts != "No mounted partitions." {
		t.Errorf("Mounts() = %q, %v", mounts, err)
	}
	if exec.Target() != "local" {
		t.Errorf("Target() = %q", exec.Target())
	}
}
