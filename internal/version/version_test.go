package version

import (
	"runtime/debug"
	"testing"
)

func TestResolveLdflagsWin(t *testing.T) {
	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main:     debug.Module{Version: "v0.9.0"},
			Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "deadbeef"}},
		}, true
	}
	got := resolve("v1.2.3", "abc", "2026-01-01", read)
	if got.Version != "v1.2.3" || got.Commit != "abc" || got.BuildTime != "2026-01-01" {
		t.Fatalf("unexpected info: %+v", got)
	}
}

func TestResolveFromBuildInfo(t *testing.T) {
	read := func() (*debug.BuildInfo, bool) {
		return &debug.BuildInfo{
			Main: debug.Module{Version: "(devel)"},
			Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.time", Value: "2026-10-01T00:00:00Z"},
			},
		}, true
	}
	got := resolve("", "", "", read)
	if got.Version != "dev" {
		t.Fatalf("version: got %q", got.Version)
	}
	if got.Commit != "0123456789abcdef" || got.BuildTime != "2026-10-01T00:00:00Z" {
		t.Fatalf("unexpected info: %+v", got)
	}
	if got.GoVersion == "" {
		t.Fatalf("expected go version")
	}
}

func TestShortCommit(t *testing.T) {
	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("got %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
}
