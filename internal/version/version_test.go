package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestFull(t *testing.T) {
	full := Full()
	if !strings.Contains(full, Version) || !strings.Contains(full, "commit: "+Commit) {
		t.Errorf("Full() = %q", full)
	}
}

func TestInfo(t *testing.T) {
	info := Info()
	if info.Version == "" || info.Commit == "" {
		t.Errorf("Info() = %+v, want version and commit populated", info)
	}
	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}
