package ffmpeg

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	pkgerrors "github.com/Skryldev/bpm-lab/pkg/errors"
)

func TestAddTempo_ChainProductMatchesFactor(t *testing.T) {
	cases := []struct {
		factor     float64
		wantStages int
	}{
		{1.0833, 1},
		{0.5, 1},
		{2.0, 1},
		{3.0, 2},
		{0.2, 3},
		{9.0, 4},
	}
	for _, tc := range cases {
		chain := NewFilterChainBuilder().AddTempo(tc.factor).Build()
		parts := strings.Split(chain, ",")
		if len(parts) != tc.wantStages {
			t.Errorf("factor %g: got %d stages (%s), want %d", tc.factor, len(parts), chain, tc.wantStages)
		}
		product := 1.0
		for _, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimPrefix(p, "atempo="), 64)
			if err != nil {
				t.Fatalf("factor %g: bad stage %q", tc.factor, p)
			}
			if v < minTempoStage || v > maxTempoStage {
				t.Errorf("factor %g: stage %g out of range", tc.factor, v)
			}
			product *= v
		}
		if math.Abs(product-tc.factor) > 1e-9 {
			t.Errorf("factor %g: product %g", tc.factor, product)
		}
	}
}

func TestAddTempo_InvalidFactorAddsNothing(t *testing.T) {
	for _, f := range []float64{0, -1, math.Inf(1), math.NaN()} {
		if b := NewFilterChainBuilder().AddTempo(f); !b.IsEmpty() {
			t.Errorf("factor %g: got filters %q", f, b.Build())
		}
	}
}

func TestStretch_InvalidFactor(t *testing.T) {
	e := NewExecutor(ExecutorConfig{FFmpegPath: "/nonexistent/ffmpeg"})
	err := e.Stretch(context.Background(), "in.wav", "out.wav", 0)
	if _, ok := pkgerrors.As[*pkgerrors.ValidationError](err); !ok {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestStretch_FailureCarriesExitCodeAndStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in")
	}
	bin := filepath.Join(t.TempDir(), "ffmpeg")
	script := "#!/bin/sh\necho 'Invalid data found when processing input' >&2\nexit 3\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	e := NewExecutor(ExecutorConfig{FFmpegPath: bin})
	if err := e.Available(context.Background()); err != nil {
		t.Fatalf("Available: %v", err)
	}
	err := e.Stretch(context.Background(), "in.wav", "out.wav", 1.25)
	toolErr, ok := pkgerrors.As[*pkgerrors.ToolError](err)
	if !ok {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if toolErr.ExitCode != 3 {
		t.Errorf("exit code = %d, want 3", toolErr.ExitCode)
	}
	if !strings.Contains(toolErr.Stderr, "Invalid data") {
		t.Errorf("stderr = %q", toolErr.Stderr)
	}
	if !strings.Contains(strings.Join(toolErr.Args, " "), "-af atempo=1.25") {
		t.Errorf("args = %v", toolErr.Args)
	}
}

func TestAvailable_Missing(t *testing.T) {
	e := NewExecutor(ExecutorConfig{FFmpegPath: "/nonexistent/ffmpeg"})
	if err := e.Available(context.Background()); err == nil {
		t.Fatal("expected error for missing binary")
	}
}
