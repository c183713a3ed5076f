package buildinfo

import (
	"runtime"
	"runtime/debug"
	"strings"
	"testing"
)

func TestGet(t *testing.T) {
	info := Get()

	tests := []struct {
		name  string
		value string
	}{
		{"Version", info.Version},
		{"Commit", info.Commit},
		{"BuildTime", info.BuildTime},
		{"GoVersion", info.GoVersion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.value == "" {
				t.Errorf("%s field should not be empty", tt.name)
			}
		})
	}

	if info.GoVersion != runtime.Version() {
		t.Errorf("GoVersion = %q, want %q", info.GoVersion, runtime.Version())
	}
}

func TestString(t *testing.T) {
	info := Get()
	want := info.Version + " (" + info.Commit + ") built at " + info.BuildTime + " with " + info.GoVersion
	if s := String(); s != want {
		t.Errorf("String() = %q, want %q", s, want)
	}
}

func TestApplyVCS(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs", Value: "git"},
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
	}

	t.Run("FillsUnsetFields", func(t *testing.T) {
		info := Info{Commit: "unknown", BuildTime: "unknown"}
		applyVCS(&info, settings)
		if info.Commit != "0123456789ab" {
			t.Errorf("Commit = %q, want 12-char revision", info.Commit)
		}
		if info.BuildTime != "2026-01-02T03:04:05Z" {
			t.Errorf("BuildTime = %q", info.BuildTime)
		}
	})

	t.Run("KeepsLdflags", func(t *testing.T) {
		info := Info{Commit: "abc123", BuildTime: "2025-12-31"}
		applyVCS(&info, settings)
		if info.Commit != "abc123" || info.BuildTime != "2025-12-31" {
			t.Errorf("ldflags values overwritten: %+v", info)
		}
	})
}

func TestDefaultValues(t *testing.T) {
	if Version != "dev" && !strings.HasPrefix(Version, "v") {
		t.Logf("Version has unexpected format: %s", Version)
	}
}
