package analyzer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/pflag"

	"github.com/muurk/mbrsim/internal/disk"
)

// Report names accepted by rep.
const (
	ReportMBR  = "mbr"
	ReportDisk = "disk"
)

// commandOrder is the order commands are listed in help.
var commandOrder = []string{"mkdisk", "rmdisk", "fdisk", "mount", "unmount", "rep"}

// Parameters whose values are case-insensitive. Everything else, paths in
// particular, is passed through as written.
var lowerParams = map[string]bool{
	"fit":  true,
	"unit": true,
	"type": true,
	"name": true,
	"id":   true,
}

type handler struct {
	flags      func() *pflag.FlagSet
	run        func(ctx context.Context, a *Analyzer, fs *pflag.FlagSet) (string, error)
	listMounts bool // append the mount table to the response, success or not
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// bind applies the command's parameters to fs. Unknown parameters and
// values that do not parse are errors.
func bind(fs *pflag.FlagSet, cmd Command) error {
	for _, p := range cmd.Params {
		if fs.Lookup(p.Key) == nil {
			return fmt.Errorf("unknown parameter -%s for %s", p.Key, cmd.Name)
		}
		value := p.Value
		if lowerParams[p.Key] {
			value = strings.ToLower(value)
		}
		if err := fs.Set(p.Key, value); err != nil {
			return fmt.Errorf("invalid value %q for -%s", p.Value, p.Key)
		}
	}
	return nil
}

func required(fs *pflag.FlagSet, names ...string) error {
	for _, name := range names {
		f := fs.Lookup(name)
		if !fs.Changed(name) || f.Value.String() == "" {
			return fmt.Errorf("parameter -%s is required", name)
		}
	}
	return nil
}

func (a *Analyzer) handlers() map[string]handler {
	return map[string]handler{
		"mkdisk": {
			flags: func() *pflag.FlagSet {
				fs := newFlagSet("mkdisk")
				fs.Int("size", 0, "disk size")
				fs.String("fit", "ff", "placement fit: bf, ff or wf")
				fs.String("unit", "m", "size unit: k or m")
				fs.String("path", "", "disk image path")
				return fs
			},
			run: runMkdisk,
		},
		"rmdisk": {
			flags: func() *pflag.FlagSet {
				fs := newFlagSet("rmdisk")
				fs.String("path", "", "disk image path")
				return fs
			},
			run: runRmdisk,
		},
		"fdisk": {
			flags: func() *pflag.FlagSet {
				fs := newFlagSet("fdisk")
				fs.Int("size", 0, "partition size")
				fs.String("path", "", "disk image path")
				fs.String("name", "", "partition name")
				fs.String("unit", "k", "size unit: b, k or m")
				fs.String("type", "p", "partition type: p, e or l")
				fs.String("fit", "wf", "partition fit: bf, ff or wf")
				return fs
			},
			run: runFdisk,
		},
		"mount": {
			flags: func() *pflag.FlagSet {
				fs := newFlagSet("mount")
				fs.String("path", "", "disk image path")
				fs.String("name", "", "partition name")
				return fs
			},
			run:        runMount,
			listMounts: true,
		},
		"unmount": {
			flags: func() *pflag.FlagSet {
				fs := newFlagSet("unmount")
				fs.String("id", "", "mount id")
				return fs
			},
			run:        runUnmount,
			listMounts: true,
		},
		"rep": {
			flags: func() *pflag.FlagSet {
				fs := newFlagSet("rep")
				fs.String("name", "", "report: mbr or disk")
				fs.String("path", "", "output path")
				fs.String("id", "", "mounted partition id")
				return fs
			},
			run: runRep,
		},
	}
}

func runMkdisk(_ context.Context, a *Analyzer, fs *pflag.FlagSet) (string, error) {
	size, _ := fs.GetInt("size")
	fit, _ := fs.GetString("fit")
	unit, _ := fs.GetString("unit")
	path, _ := fs.GetString("path")

	if size <= 0 {
		return "", errors.New("size must be greater than 0")
	}
	if err := required(fs, "path"); err != nil {
		return "", err
	}
	return "", a.disks.Mkdisk(size, fit, unit, path)
}

func runRmdisk(_ context.Context, a *Analyzer, fs *pflag.FlagSet) (string, error) {
	if err := required(fs, "path"); err != nil {
		return "", err
	}
	path, _ := fs.GetString("path")
	return "", a.disks.Rmdisk(path)
}

func runFdisk(_ context.Context, a *Analyzer, fs *pflag.FlagSet) (string, error) {
	size, _ := fs.GetInt("size")
	path, _ := fs.GetString("path")
	name, _ := fs.GetString("name")
	unit, _ := fs.GetString("unit")
	typ, _ := fs.GetString("type")
	fit, _ := fs.GetString("fit")

	if size <= 0 {
		return "", errors.New("size must be greater than 0")
	}
	if err := required(fs, "path", "name"); err != nil {
		return "", err
	}
	return "", a.disks.Fdisk(size, path, name, unit, typ, fit)
}

func runMount(_ context.Context, a *Analyzer, fs *pflag.FlagSet) (string, error) {
	if err := required(fs, "path", "name"); err != nil {
		return "", err
	}
	path, _ := fs.GetString("path")
	name, _ := fs.GetString("name")
	_, err := a.disks.Mount(path, name)
	return "", err
}

func runUnmount(_ context.Context, a *Analyzer, fs *pflag.FlagSet) (string, error) {
	if err := required(fs, "id"); err != nil {
		return "", err
	}
	id, _ := fs.GetString("id")
	return "", a.disks.Unmount(id)
}

func runRep(ctx context.Context, a *Analyzer, fs *pflag.FlagSet) (string, error) {
	if err := required(fs, "name", "path", "id"); err != nil {
		return "", err
	}
	name, _ := fs.GetString("name")
	path, _ := fs.GetString("path")
	id, _ := fs.GetString("id")

	if name != ReportMBR && name != ReportDisk {
		return "", fmt.Errorf("report name must be %s or %s, got %q", ReportMBR, ReportDisk, name)
	}
	if a.reports == nil {
		return "", errors.New("reports are not available")
	}

	mp, err := a.disks.Lookup(id)
	if err != nil {
		return "", err
	}
	mbr, err := disk.ReadMBR(mp.Path)
	if err != nil {
		return "", err
	}
	var ebrs []disk.EBR
	if ext, slot := mbr.Extended(); slot >= 0 {
		if ebrs, err = disk.ReadEBRs(mp.Path, ext); err != nil {
			return "", err
		}
	}

	out := a.reportPath(path)
	gen := a.reports.MBR
	if name == ReportDisk {
		gen = a.reports.Disk
	}
	res, err := gen(ctx, mbr, ebrs, out)
	if err != nil {
		return "", err
	}
	return "> report written to " + res.OutPath, nil
}
