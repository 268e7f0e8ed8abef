package analyzer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/muurk/mbrsim/internal/disk"
	"github.com/muurk/mbrsim/internal/logging"
	"github.com/muurk/mbrsim/internal/report"
)

// Response is the result of one script line. Message is the text shown to
// the user.
type Response struct {
	Command string `json:"command"`
	Message string `json:"message"`
	Failed  bool   `json:"failed,omitempty"`
}

// Reporter produces report files for a disk.
type Reporter interface {
	MBR(ctx context.Context, mbr disk.MBR, ebrs []disk.EBR, out string) (report.Result, error)
	Disk(ctx context.Context, mbr disk.MBR, ebrs []disk.EBR, out string) (report.Result, error)
}

// Analyzer runs scripts against a disk Manager. It never stops a script
// because a command failed; each failure becomes an error response.
type Analyzer struct {
	disks      *disk.Manager
	reports    Reporter
	reportsDir string
	commands   map[string]handler
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithReportsDir resolves relative rep paths against dir.
func WithReportsDir(dir string) Option {
	return func(a *Analyzer) {
		a.reportsDir = dir
	}
}

// New creates an Analyzer. reports may be nil, in which case rep fails.
func New(disks *disk.Manager, reports Reporter, opts ...Option) *Analyzer {
	a := &Analyzer{
		disks:   disks,
		reports: reports,
	}
	a.commands = a.handlers()
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Disks returns the Manager the Analyzer runs against.
func (a *Analyzer) Disks() *disk.Manager {
	return a.disks
}

// Commands returns the names of the supported commands.
func (a *Analyzer) Commands() []string {
	names := make([]string, 0, len(a.commands))
	for _, name := range commandOrder {
		if _, ok := a.commands[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

// Execute runs lines in order and returns one response per non-blank line.
// If ctx is cancelled the remaining lines are not run.
func (a *Analyzer) Execute(ctx context.Context, lines []string) []Response {
	var out []Response
	_ = a.Stream(ctx, lines, func(_ int, r Response) {
		out = append(out, r)
	})
	return out
}

// Stream runs lines in order, calling fn with the line index and response
// as each one finishes. Blank lines are skipped without a call. It returns
// ctx.Err() if ctx is cancelled before every line has run.
func (a *Analyzer) Stream(ctx context.Context, lines []string, fn func(int, Response)) error {
	for i, line := range lines {
		if err := ctx.Err(); err != nil {
			return err
		}
		r, ok := a.Run(ctx, line)
		if !ok {
			continue
		}
		fn(i, r)
	}
	return nil
}

// Run executes a single line. ok is false for blank lines.
func (a *Analyzer) Run(ctx context.Context, line string) (r Response, ok bool) {
	cmd, err := ParseLine(line)
	switch {
	case errors.Is(err, ErrBlankLine):
		return Response{}, false
	case err != nil:
		return errorResponse(cmd.Name, err), true
	case cmd.Name == CommentCommand:
		return Response{Command: CommentCommand, Message: "> comment: " + cmd.Raw}, true
	}

	h, found := a.commands[cmd.Name]
	if !found {
		return errorResponse(cmd.Name, fmt.Errorf("command %s not recognized", cmd.Name)), true
	}

	start := time.Now()
	extra, err := a.dispatch(ctx, h, cmd)
	logging.LogCommand(cmd.Name, cmd.Map(), time.Since(start), err)
	if h.listMounts {
		extra = "> mounted partitions:\n" + a.disks.FormatMounted()
	}

	if err != nil {
		r = errorResponse(cmd.Name, err)
	} else {
		r = Response{
			Command: cmd.Name,
			Message: fmt.Sprintf("> command %s with parameters: %s executed successfully", cmd.Name, cmd.Args),
		}
	}
	if extra != "" {
		r.Message += "\n" + extra
	}
	return r, true
}

func (a *Analyzer) dispatch(ctx context.Context, h handler, cmd Command) (extra string, err error) {
	fs := h.flags()
	if err := bind(fs, cmd); err != nil {
		return "", err
	}
	return h.run(ctx, a, fs)
}

// reportPath resolves a rep output path.
func (a *Analyzer) reportPath(p string) string {
	if a.reportsDir == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(a.reportsDir, p)
}

func errorResponse(name string, err error) Response {
	if name == "" {
		name = "error"
	}
	return Response{Command: name, Message: "> Error: " + err.Error(), Failed: true}
}

// Join concatenates the messages of responses, one per line. The result is
// what the output panel displays for a run.
func Join(responses []Response) string {
	msgs := make([]string, len(responses))
	for i, r := range responses {
		msgs[i] = r.Message
	}
	return strings.Join(msgs, "\n")
}
