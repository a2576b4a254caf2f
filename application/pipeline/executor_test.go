package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Skryldev/bpm-lab/domain/model"
	"github.com/Skryldev/bpm-lab/infrastructure/storage"
	"github.com/Skryldev/bpm-lab/internal/mocks"
	pkgerrors "github.com/Skryldev/bpm-lab/pkg/errors"
	"github.com/Skryldev/bpm-lab/pkg/progress"
	"github.com/Skryldev/bpm-lab/pkg/retry"
)

type execFixture struct {
	in, out string
	det     *mocks.MockDetector
	str     *mocks.MockStretcher
	exec    *Executor
}

func newFixture(t *testing.T) *execFixture {
	t.Helper()
	f := &execFixture{
		in:  t.TempDir(),
		out: filepath.Join(t.TempDir(), "out"),
		det: &mocks.MockDetector{},
		str: &mocks.MockStretcher{},
	}
	f.exec = NewExecutor(f.det, f.str, storage.NewLocalStorage(), nil)
	return f
}

func (f *execFixture) job(t *testing.T, rel string, target float64, analyzeOnly bool) *Job {
	t.Helper()
	abs := touch(t, filepath.Join(f.in, filepath.Dir(rel)), filepath.Base(rel))
	return &Job{
		ID:          "job-" + rel,
		File:        model.AudioFile{AbsPath: abs, RelPath: rel},
		TargetBPM:   target,
		OutputRoot:  f.out,
		AnalyzeOnly: analyzeOnly,
		Retry:       retry.Once(),
	}
}

func bpm(v float64) func(context.Context, string) (*model.DetectionResult, error) {
	return func(context.Context, string) (*model.DetectionResult, error) {
		return &model.DetectionResult{BPM: v, Confidence: 0.8}, nil
	}
}

func assertNoEntries(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("expected %s to be empty, found %v", dir, names)
	}
}

func TestExecute_Processed(t *testing.T) {
	f := newFixture(t)
	job := f.job(t, "a.mp3", 130, false)

	o := f.exec.Execute(context.Background(), job)

	if o.Kind != model.OutcomeProcessed {
		t.Fatalf("kind = %s, err = %v", o.Kind, o.Err)
	}
	if math.Abs(o.Factor-130.0/120.0) > 1e-9 {
		t.Errorf("factor = %v, want %v", o.Factor, 130.0/120.0)
	}
	want := filepath.Join(f.out, "a.mp3")
	if o.OutputPath != want {
		t.Errorf("output = %q, want %q", o.OutputPath, want)
	}
	body, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != mocks.StretchedPayload {
		t.Errorf("output body = %q", body)
	}

	calls := f.str.Calls()
	if len(calls) != 1 {
		t.Fatalf("stretch calls = %d, want 1", len(calls))
	}
	if calls[0].InputPath != job.File.AbsPath {
		t.Errorf("stretch input = %q", calls[0].InputPath)
	}
	if calls[0].OutputPath == want {
		t.Error("stretcher wrote straight to the final path")
	}
	if ext := filepath.Ext(calls[0].OutputPath); ext != ".mp3" {
		t.Errorf("temp output extension = %q, want .mp3", ext)
	}

	entries, _ := os.ReadDir(f.out)
	if len(entries) != 1 {
		t.Errorf("output dir holds %d entries, want only the committed file", len(entries))
	}
}

func TestExecute_MirrorsNestedPath(t *testing.T) {
	f := newFixture(t)
	rel := filepath.Join("album", "disc1", "track.flac")
	o := f.exec.Execute(context.Background(), f.job(t, rel, 100, false))

	if o.Kind != model.OutcomeProcessed {
		t.Fatalf("kind = %s, err = %v", o.Kind, o.Err)
	}
	if _, err := os.Stat(filepath.Join(f.out, rel)); err != nil {
		t.Errorf("expected mirrored output: %v", err)
	}
}

func TestExecute_DetectionFailure(t *testing.T) {
	f := newFixture(t)
	f.det.DetectFunc = func(context.Context, string) (*model.DetectionResult, error) {
		return nil, errors.New("exit status 1")
	}

	o := f.exec.Execute(context.Background(), f.job(t, "b.wav", 130, false))

	if o.Kind != model.OutcomeDetectionFailed {
		t.Fatalf("kind = %s, want DetectionFailed", o.Kind)
	}
	if _, ok := pkgerrors.As[*pkgerrors.DetectionError](o.Err); !ok {
		t.Errorf("err = %T, want *DetectionError", o.Err)
	}
	if len(f.str.Calls()) != 0 {
		t.Error("stretcher must not run after a detection failure")
	}
	assertNoEntries(t, f.out)
}

func TestExecute_UnusableDetection(t *testing.T) {
	cases := map[string]func(context.Context, string) (*model.DetectionResult, error){
		"zero":     bpm(0),
		"negative": bpm(-40),
		"infinite": bpm(math.Inf(1)),
		"nil": func(context.Context, string) (*model.DetectionResult, error) {
			return nil, nil
		},
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.det.DetectFunc = fn
			o := f.exec.Execute(context.Background(), f.job(t, "c.wav", 120, false))
			if o.Kind != model.OutcomeDetectionFailed {
				t.Errorf("kind = %s, want DetectionFailed", o.Kind)
			}
			if len(f.str.Calls()) != 0 {
				t.Error("stretcher called with unusable tempo")
			}
		})
	}
}

func TestExecute_InvalidFactorNeverStretches(t *testing.T) {
	for _, target := range []float64{0, -10, math.Inf(1)} {
		f := newFixture(t)
		o := f.exec.Execute(context.Background(), f.job(t, "d.wav", target, false))
		if o.Kind != model.OutcomeInvalidFactor {
			t.Errorf("target %v: kind = %s, want InvalidFactor", target, o.Kind)
		}
		if len(f.str.Calls()) != 0 {
			t.Errorf("target %v: stretcher was called", target)
		}
		assertNoEntries(t, f.out)
	}
}

func TestExecute_AnalyzeOnlyWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.det.DetectFunc = bpm(98.5)

	o := f.exec.Execute(context.Background(), f.job(t, "e.flac", 130, true))

	if o.Kind != model.OutcomeAnalyzedOnly {
		t.Fatalf("kind = %s, err = %v", o.Kind, o.Err)
	}
	if o.Detection == nil || o.Detection.BPM != 98.5 {
		t.Errorf("detection = %+v", o.Detection)
	}
	if o.OutputPath != "" || o.Factor != 0 {
		t.Errorf("analyze-only outcome carries output data: %+v", o)
	}
	if len(f.str.Calls()) != 0 {
		t.Error("stretcher called in analyze-only mode")
	}
	if _, err := os.Stat(f.out); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("output root was created: %v", err)
	}
}

func TestExecute_StretchFailureLeavesNoOutput(t *testing.T) {
	f := newFixture(t)
	f.str.StretchFunc = func(_ context.Context, _, out string, _ float64) error {
		// partial write before failing
		_ = os.WriteFile(out, []byte("half"), 0o644)
		return errors.New("exit status 2")
	}

	o := f.exec.Execute(context.Background(), f.job(t, "f.wav", 140, false))

	if o.Kind != model.OutcomeStretchFailed {
		t.Fatalf("kind = %s, want StretchFailed", o.Kind)
	}
	if o.OutputPath != "" {
		t.Errorf("output path set on failure: %q", o.OutputPath)
	}
	assertNoEntries(t, f.out)
}

func TestExecute_EmptyStretchOutput(t *testing.T) {
	f := newFixture(t)
	f.str.StretchFunc = func(context.Context, string, string, float64) error { return nil }

	o := f.exec.Execute(context.Background(), f.job(t, "g.mp3", 140, false))

	if o.Kind != model.OutcomeStretchFailed {
		t.Fatalf("kind = %s, want StretchFailed", o.Kind)
	}
	assertNoEntries(t, f.out)
}

func TestExecute_StretchRetry(t *testing.T) {
	f := newFixture(t)
	attempts := 0
	f.str.StretchFunc = func(_ context.Context, _, out string, _ float64) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return mocks.WriteStretched(out)
	}
	job := f.job(t, "h.wav", 125, false)
	job.Retry = retry.Config{MaxAttempts: 3, Delay: time.Millisecond}

	o := f.exec.Execute(context.Background(), job)

	if o.Kind != model.OutcomeProcessed {
		t.Fatalf("kind = %s, err = %v", o.Kind, o.Err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestExecute_MkdirFailureIsUnhandled(t *testing.T) {
	f := newFixture(t)
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	job := f.job(t, filepath.Join("sub", "i.wav"), 130, false)
	job.OutputRoot = blocker

	o := f.exec.Execute(context.Background(), job)

	if o.Kind != model.OutcomeUnhandledError {
		t.Errorf("kind = %s, want UnhandledError", o.Kind)
	}
	if len(f.str.Calls()) != 0 {
		t.Error("stretcher called without an output directory")
	}
}

func TestExecute_RecoversPanic(t *testing.T) {
	f := newFixture(t)
	f.det.DetectFunc = func(context.Context, string) (*model.DetectionResult, error) {
		panic("detector exploded")
	}

	o := f.exec.Execute(context.Background(), f.job(t, "j.wav", 130, false))

	if o.Kind != model.OutcomeUnhandledError {
		t.Fatalf("kind = %s, want UnhandledError", o.Kind)
	}
	if o.Err == nil || !strings.Contains(o.Err.Error(), "detector exploded") {
		t.Errorf("err = %v", o.Err)
	}
}

func TestExecute_Timeout(t *testing.T) {
	f := newFixture(t)
	f.det.DetectFunc = func(ctx context.Context, _ string) (*model.DetectionResult, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	job := f.job(t, "k.wav", 130, false)
	job.Timeout = 20 * time.Millisecond

	start := time.Now()
	o := f.exec.Execute(context.Background(), job)

	if o.Kind != model.OutcomeUnhandledError {
		t.Errorf("kind = %s, want UnhandledError", o.Kind)
	}
	if !errors.Is(o.Err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", o.Err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("timeout did not bound the job")
	}
}

func TestExecute_ReportsStages(t *testing.T) {
	f := newFixture(t)
	var stages []progress.Stage
	job := f.job(t, "l.wav", 130, false)
	job.Reporter = progress.FuncReporter(func(u progress.Update) {
		stages = append(stages, u.Stage)
	})

	f.exec.Execute(context.Background(), job)

	want := []progress.Stage{progress.StageDetect, progress.StageStretch, progress.StageCommit, progress.StageDone}
	if len(stages) != len(want) {
		t.Fatalf("stages = %v, want %v", stages, want)
	}
	for i := range want {
		if stages[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, stages[i], want[i])
		}
	}
}

func TestTempPattern(t *testing.T) {
	got := tempPattern(filepath.Join("out", "song.final.mp3"))
	if got != ".song.final.*.part.mp3" {
		t.Errorf("tempPattern = %q", got)
	}
}
