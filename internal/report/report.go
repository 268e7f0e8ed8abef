package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"github.com/muurk/mbrsim/internal/disk"
	"github.com/muurk/mbrsim/internal/logging"
)

// ErrGraphvizNotFound is returned when the dot binary is not on PATH.
var ErrGraphvizNotFound = errors.New("graphviz 'dot' binary not found on PATH")

// Formats dot can render, keyed by file extension.
var formats = map[string]string{
	".png":  "png",
	".jpg":  "jpg",
	".jpeg": "jpg",
	".svg":  "svg",
	".pdf":  "pdf",
	".dot":  "",
}

// DefaultFormat is used when the output path has no extension.
const DefaultFormat = "png"

// RenderFunc turns dotPath into outPath in the given format.
type RenderFunc func(ctx context.Context, format, dotPath, outPath string) error

// Generator writes Graphviz reports for disk images.
type Generator struct {
	render RenderFunc
}

// Option configures a Generator.
type Option func(*Generator)

// WithRenderer replaces the dot invocation. Tests use it to avoid needing
// Graphviz installed.
func WithRenderer(fn RenderFunc) Option {
	return func(g *Generator) {
		g.render = fn
	}
}

// NewGenerator creates a Generator that renders with the dot binary.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{render: RunDot}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result describes the files a report produced.
type Result struct {
	DotPath string // Graphviz source
	OutPath string // Rendered image, equal to DotPath for .dot output
	Format  string // dot -T format, empty for .dot output
}

// MBR writes the partition table report: the MBR fields, each partition and
// each logical partition's EBR.
func (g *Generator) MBR(ctx context.Context, mbr disk.MBR, ebrs []disk.EBR, out string) (Result, error) {
	return g.generate(ctx, "mbr", mbrTemplate, buildMBRView(mbr, ebrs), out)
}

// Disk writes the layout report: the disk as a row of regions sized by their
// share of the disk, with free space shown.
func (g *Generator) Disk(ctx context.Context, mbr disk.MBR, ebrs []disk.EBR, out string) (Result, error) {
	return g.generate(ctx, "disk", diskTemplate, buildDiskView(mbr, ebrs), out)
}

func (g *Generator) generate(ctx context.Context, kind string, tmpl *template.Template, view any, out string) (Result, error) {
	res, err := resolvePaths(out)
	if err != nil {
		return Result{}, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view); err != nil {
		return Result{}, fmt.Errorf("failed to build %s report: %w", kind, err)
	}

	if err := os.MkdirAll(filepath.Dir(res.DotPath), 0o755); err != nil {
		return Result{}, fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := os.WriteFile(res.DotPath, buf.Bytes(), 0o644); err != nil {
		return Result{}, fmt.Errorf("failed to write %s: %w", res.DotPath, err)
	}

	if res.Format != "" {
		if err := g.render(ctx, res.Format, res.DotPath, res.OutPath); err != nil {
			return res, err
		}
	}

	logging.Info("Report generated",
		zap.String("kind", kind),
		zap.String("dot", res.DotPath),
		zap.String("out", res.OutPath),
	)
	return res, nil
}

func resolvePaths(out string) (Result, error) {
	if out == "" {
		return Result{}, errors.New("report path is required")
	}
	ext := strings.ToLower(filepath.Ext(out))
	if ext == "" {
		out += "." + DefaultFormat
		ext = "." + DefaultFormat
	}
	format, ok := formats[ext]
	if !ok {
		return Result{}, fmt.Errorf("unsupported report format %q (use .png, .jpg, .svg, .pdf or .dot)", ext)
	}
	return Result{
		DotPath: strings.TrimSuffix(out, filepath.Ext(out)) + ".dot",
		OutPath: out,
		Format:  format,
	}, nil
}

// RunDot renders with the Graphviz dot binary.
func RunDot(ctx context.Context, format, dotPath, outPath string) error {
	bin, err := exec.LookPath("dot")
	if err != nil {
		return ErrGraphvizNotFound
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, "-T"+format, dotPath, "-o", outPath)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("dot failed: %w: %s", err, msg)
		}
		return fmt.Errorf("dot failed: %w", err)
	}
	return nil
}
