package pipeline

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestBuildRunID(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 0, time.UTC)
	got := buildRunID("/tmp/My Cool.Script.txt", now)
	if !strings.HasPrefix(got, "my-cool-script-20260212-103045Z-") {
		t.Fatalf("unexpected run id: %s", got)
	}
	if len(got) != len("my-cool-script-20260212-103045Z-")+6 {
		t.Fatalf("unexpected suffix length: %s", got)
	}
	if filepath.Base(got) != got {
		t.Fatalf("run id must be a single path segment: %s", got)
	}
}

func TestBuildRunID_Unique(t *testing.T) {
	now := time.Now()
	a := buildRunID("script.txt", now)
	b := buildRunID("script.txt", now)
	if a == b {
		t.Fatalf("run ids collide: %s", a)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestWorkerCount(t *testing.T) {
	if got := workerCount(4, 8); got != 4 {
		t.Fatalf("flag should win: %d", got)
	}
	if got := workerCount(0, 8); got != 8 {
		t.Fatalf("config should win over auto: %d", got)
	}
	if got := workerCount(0, 0); got < 1 {
		t.Fatalf("auto workers = %d, want >= 1", got)
	}
}
