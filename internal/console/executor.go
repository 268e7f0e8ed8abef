package console

import (
	"context"

	"github.com/muurk/mbrsim/internal/analyzer"
	"github.com/muurk/mbrsim/internal/client"
	"github.com/muurk/mbrsim/internal/disk"
)

// Executor runs scripts for the console. The local form runs them in
// process, the remote form sends them to an mbrsim server.
type Executor interface {
	Execute(ctx context.Context, lines []string) ([]analyzer.Response, error)
	// Stream is Execute with fn called as each response arrives. i is the
	// index of the line in lines.
	Stream(ctx context.Context, lines []string, fn func(i int, r analyzer.Response)) error
	Mounts(ctx context.Context) (string, error)
	// Target names where scripts run, for the status line.
	Target() string
}

// LocalExecutor runs scripts with an in-process Analyzer.
type LocalExecutor struct {
	Analyzer *analyzer.Analyzer
}

func (l LocalExecutor) Execute(ctx context.Context, lines []string) ([]analyzer.Response, error) {
	return l.Analyzer.Execute(ctx, lines), ctx.Err()
}

func (l LocalExecutor) Stream(ctx context.Context, lines []string, fn func(int, analyzer.Response)) error {
	return l.Analyzer.Stream(ctx, lines, fn)
}

func (l LocalExecutor) Mounts(context.Context) (string, error) {
	return l.Analyzer.Disks().FormatMounted(), nil
}

func (l LocalExecutor) Target() string {
	return "local"
}

// RemoteExecutor runs scripts on a server through a Client.
type RemoteExecutor struct {
	Client *client.Client
}

func (r RemoteExecutor) Execute(ctx context.Context, lines []string) ([]analyzer.Response, error) {
	return r.Client.Analyze(ctx, lines)
}

// Stream sends lines over a WebSocket. The server skips blank lines, so
// callers that need indices to line up pass lines through analyzer.Lines
// first.
func (r RemoteExecutor) Stream(ctx context.Context, lines []string, fn func(int, analyzer.Response)) error {
	i := 0
	return r.Client.Stream(ctx, lines, func(resp analyzer.Response) {
		fn(i, resp)
		i++
	})
}

func (r RemoteExecutor) Mounts(ctx context.Context) (string, error) {
	mounts, err := r.Client.Mounts(ctx)
	if err != nil {
		return "", err
	}
	return disk.FormatMounts(mounts), nil
}

func (r RemoteExecutor) Target() string {
	return r.Client.BaseURL
}
