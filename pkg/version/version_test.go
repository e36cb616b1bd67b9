package version

import (
	"strings"
	"testing"
)

func TestVersionVariables(t *testing.T) {
	if Version == "" {
		t.Error("Version should not be empty")
	}

	if GitCommit == "" {
		t.Error("GitCommit should not be empty")
	}
	if GitCommit != "unknown" && len(GitCommit) < 7 {
		t.Errorf("GitCommit '%s' seems invalid, should be 'unknown' or a git hash", GitCommit)
	}

	if BuildTime == "" {
		t.Error("BuildTime should not be empty")
	}
}

func TestString(t *testing.T) {
	got := String()
	if !strings.HasPrefix(got, Version) {
		t.Errorf("String() = %q; want prefix %q", got, Version)
	}
	if !strings.Contains(got, GitCommit) {
		t.Errorf("String() = %q; want it to mention commit %q", got, GitCommit)
	}
}
