package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_ExitCodes(t *testing.T) {
	empty := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "errors.log")

	cases := []struct {
		name string
		args []string
		want int
	}{
		{"no subcommand args", []string{"process"}, 1},
		{"missing target", []string{"process", empty}, 1},
		{"negative target", []string{"process", empty, "--target-bpm=-5", "--error-log", logPath}, 1},
		{"missing input", []string{"process", filepath.Join(empty, "nope"), "--target-bpm", "120", "--error-log", logPath}, 1},
		{"zero workers", []string{"process", empty, "--target-bpm", "120", "--workers", "0"}, 1},
		{"unknown stretcher", []string{"process", empty, "--target-bpm", "120", "--stretcher", "sox"}, 1},
		{"bad log level", []string{"process", empty, "--target-bpm", "120", "--log-level", "loud"}, 1},
		{"empty dir", []string{"process", empty, "--target-bpm", "120", "--analyze-only", "--detector-cmd", "sh", "--error-log", logPath}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if got := run(context.Background(), tc.args, &stdout, &stderr); got != tc.want {
				t.Errorf("exit = %d, want %d\nstdout: %s\nstderr: %s", got, tc.want, stdout.String(), stderr.String())
			}
		})
	}
}

func TestRun_EmptyDirTruncatesErrorLog(t *testing.T) {
	in := t.TempDir()
	logPath := filepath.Join(t.TempDir(), "errors.log")
	if err := os.WriteFile(logPath, []byte("stale line from last run\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"process", in, "--target-bpm", "128", "--analyze-only", "--detector-cmd", "sh", "--error-log", logPath, "--plain",
	}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("exit = %d, stderr: %s", code, stderr.String())
	}

	if !strings.Contains(stdout.String(), "No audio files found. Exiting.") {
		t.Errorf("stdout = %q", stdout.String())
	}
	body, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(body) != 0 {
		t.Errorf("error log not truncated: %q", body)
	}
}

func TestRun_ReportsAllPreconditions(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{
		"process", filepath.Join(t.TempDir(), "missing"), "--target-bpm=-1", "--detector-cmd", "definitely-not-a-binary-xyz",
	}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit = %d", code)
	}
	msg := stderr.String()
	for _, want := range []string{"targetBPM", "inputDir", "detector"} {
		if !strings.Contains(msg, want) {
			t.Errorf("stderr missing %q: %s", want, msg)
		}
	}
}
