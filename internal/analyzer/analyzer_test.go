package analyzer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/muurk/mbrsim/internal/disk"
	"github.com/muurk/mbrsim/internal/report"
)

type reportCall struct {
	kind string
	mbr  disk.MBR
	ebrs []disk.EBR
	out  string
}

type fakeReporter struct {
	calls []reportCall
	err   error
}

func (f *fakeReporter) MBR(_ context.Context, mbr disk.MBR, ebrs []disk.EBR, out string) (report.Result, error) {
	f.calls = append(f.calls, reportCall{"mbr", mbr, ebrs, out})
	return report.Result{OutPath: out, Format: "png"}, f.err
}

func (f *fakeReporter) Disk(_ context.Context, mbr disk.MBR, ebrs []disk.EBR, out string) (report.Result, error) {
	f.calls = append(f.calls, reportCall{"disk", mbr, ebrs, out})
	return report.Result{OutPath: out, Format: "png"}, f.err
}

func newTestAnalyzer(t *testing.T, opts ...Option) (*Analyzer, *fakeReporter) {
	t.Helper()
	reports := &fakeReporter{}
	return New(disk.NewManager(), reports, opts...), reports
}

func TestRun_Mkdisk(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	path := filepath.Join(t.TempDir(), "a.mia")

	r, ok := a.Run(context.Background(), "mkdisk -size=10 -unit=K -path="+path)
	if !ok {
		t.Fatal("Run() ok = false")
	}
	want := Response{
		Command: "mkdisk",
		Message: "> command mkdisk with parameters: -size=10 -unit=K -path=" + path + " executed successfully",
	}
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}

	mbr, err := disk.ReadMBR(path)
	if err != nil {
		t.Fatalf("ReadMBR() error = %v", err)
	}
	if mbr.Size != 10*1024 || mbr.FitValue() != disk.FirstFit {
		t.Errorf("MBR size = %d fit = %v, want 10240 ff", mbr.Size, mbr.FitValue())
	}
}

func TestRun_Errors(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	dir := t.TempDir()

	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "unknown command", line: "format -path=x", want: "> Error: command format not recognized"},
		{name: "unknown parameter", line: "mkdisk -size=1 -color=red -path=x", want: "> Error: unknown parameter -color for mkdisk"},
		{name: "bad int", line: "mkdisk -size=big -path=x", want: `> Error: invalid value "big" for -size`},
		{name: "zero size", line: "mkdisk -size=0 -path=x", want: "> Error: size must be greater than 0"},
		{name: "missing path", line: "mkdisk -size=1", want: "> Error: parameter -path is required"},
		{name: "stray text", line: "mkdisk size=1", want: `> Error: unexpected text "size=1" in parameters`},
		{name: "missing disk", line: "rmdisk -path=" + filepath.Join(dir, "none.mia"), want: "> Error: "},
		{name: "bad report name", line: "rep -name=tree -path=r.png -id=491a", want: `> Error: report name must be mbr or disk, got "tree"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := a.Run(context.Background(), tt.line)
			if !ok {
				t.Fatal("Run() ok = false")
			}
			if !r.Failed {
				t.Errorf("Failed = false, message %q", r.Message)
			}
			if !strings.HasPrefix(r.Message, tt.want) {
				t.Errorf("Message = %q, want prefix %q", r.Message, tt.want)
			}
		})
	}
}

func TestRun_BlankAndComment(t *testing.T) {
	a, _ := newTestAnalyzer(t)

	if _, ok := a.Run(context.Background(), "   "); ok {
		t.Error("blank line produced a response")
	}
	r, ok := a.Run(context.Background(), "# setup")
	if !ok || r.Command != CommentCommand || r.Message != "> comment: # setup" {
		t.Errorf("Run(comment) = %+v, %v", r, ok)
	}
}

func TestExecute_Script(t *testing.T) {
	a, reports := newTestAnalyzer(t, WithReportsDir("/reports"))
	dir := t.TempDir()
	path := filepath.Join(dir, "disk1.mia")

	script := strings.Join([]string{
		"# build a disk",
		"mkdisk -size=20 -unit=k -fit=BF -path=" + path,
		"fdisk -size=4 -path=" + path + " -name=Part1",
		"fdisk -size=8 -path=" + path + " -name=Ext -type=E",
		"fdisk -size=2 -path=" + path + " -name=Log1 -type=l",
		"",
		"mount -path=" + path + " -name=part1",
		"rep -name=MBR -path=mbr.png -id=491A",
		"rep -name=disk -path=/abs/disk.png -id=491a",
		"unmount -id=491a",
	}, "\n")

	responses := a.Execute(context.Background(), Lines(script))
	if len(responses) != 9 {
		t.Fatalf("got %d responses, want 9:\n%s", len(responses), Join(responses))
	}
	for _, r := range responses {
		if r.Failed {
			t.Errorf("%s failed: %s", r.Command, r.Message)
		}
	}

	mount := responses[5].Message
	if !strings.Contains(mount, "> mounted partitions:\nPath: "+path+", Name: part1, ID: 491a, Status: 1") {
		t.Errorf("mount message = %q", mount)
	}
	if !strings.HasSuffix(responses[8].Message, "No mounted partitions.") {
		t.Errorf("unmount message = %q", responses[8].Message)
	}

	if len(reports.calls) != 2 {
		t.Fatalf("reporter calls = %d, want 2", len(reports.calls))
	}
	first := reports.calls[0]
	if first.kind != "mbr" || first.out != filepath.Join("/reports", "mbr.png") {
		t.Errorf("first report = %s %s", first.kind, first.out)
	}
	if len(first.ebrs) != 1 || first.ebrs[0].NameString() != "log1" {
		t.Errorf("report EBRs = %+v", first.ebrs)
	}
	if got := reports.calls[1]; got.kind != "disk" || got.out != "/abs/disk.png" {
		t.Errorf("second report = %s %s", got.kind, got.out)
	}
	if !strings.Contains(responses[6].Message, "> report written to /reports/mbr.png") {
		t.Errorf("rep message = %q", responses[6].Message)
	}
}

func TestRun_MountFailureListsTable(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	path := filepath.Join(t.TempDir(), "d.mia")

	a.Execute(context.Background(), []string{
		"mkdisk -size=10 -unit=k -path=" + path,
		"fdisk -size=2 -path=" + path + " -name=p1",
		"mount -path=" + path + " -name=p1",
	})
	r, _ := a.Run(context.Background(), "mount -path="+path+" -name=p1")
	if !r.Failed {
		t.Fatal("second mount succeeded")
	}
	if !strings.Contains(r.Message, "ID: 491a") {
		t.Errorf("failed mount does not list the table: %q", r.Message)
	}
}

func TestRun_RepErrors(t *testing.T) {
	a := New(disk.NewManager(), nil)
	r, _ := a.Run(context.Background(), "rep -name=mbr -path=r.png -id=491a")
	if !r.Failed || !strings.Contains(r.Message, "reports are not available") {
		t.Errorf("nil reporter: %+v", r)
	}

	b, reports := newTestAnalyzer(t)
	reports.err = report.ErrGraphvizNotFound
	path := filepath.Join(t.TempDir(), "d.mia")
	b.Execute(context.Background(), []string{
		"mkdisk -size=10 -unit=k -path=" + path,
		"fdisk -size=2 -path=" + path + " -name=p1",
		"mount -path=" + path + " -name=p1",
	})
	r, _ = b.Run(context.Background(), "rep -name=mbr -path=r.png -id=491a")
	if !r.Failed || !strings.Contains(r.Message, report.ErrGraphvizNotFound.Error()) {
		t.Errorf("render error: %+v", r)
	}

	r, _ = b.Run(context.Background(), "rep -name=mbr -path=r.png -id=499z")
	if !r.Failed || !strings.Contains(r.Message, "499z") {
		t.Errorf("unknown id: %+v", r)
	}
}

func TestStream_Cancelled(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	ctx, cancel := context.WithCancel(context.Background())

	var seen []int
	err := a.Stream(ctx, []string{"# one", "# two", "# three"}, func(i int, _ Response) {
		seen = append(seen, i)
		if i == 1 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Stream() error = %v, want context.Canceled", err)
	}
	if diff := cmp.Diff([]int{0, 1}, seen); diff != "" {
		t.Errorf("lines run (-want +got):\n%s", diff)
	}
}

func TestCommands(t *testing.T) {
	a, _ := newTestAnalyzer(t)
	want := []string{"mkdisk", "rmdisk", "fdisk", "mount", "unmount", "rep"}
	if diff := cmp.Diff(want, a.Commands()); diff != "" {
		t.Errorf("Commands() mismatch (-want +got):\n%s", diff)
	}
}

func TestJoin(t *testing.T) {
	got := Join([]Response{{Message: "a"}, {Message: "b\nc"}})
	if got != "a\nb\nc" {
		t.Errorf("Join() = %q", got)
	}
}
