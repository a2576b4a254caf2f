package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/Skryldev/bpm-lab/domain/model"
	"github.com/Skryldev/bpm-lab/domain/ports"
	pkgerrors "github.com/Skryldev/bpm-lab/pkg/errors"
	"github.com/Skryldev/bpm-lab/pkg/logger"
	"github.com/Skryldev/bpm-lab/pkg/progress"
	"github.com/Skryldev/bpm-lab/pkg/retry"
	"go.uber.org/zap"
)

// Job holds the read-only inputs of one file's run
type Job struct {
	ID          string
	File        model.AudioFile
	TargetBPM   float64
	OutputRoot  string
	AnalyzeOnly bool
	Timeout     time.Duration
	Retry       retry.Config
	Reporter    progress.Reporter
	Log         *logger.Logger
}

// Executor runs detect → decide → stretch for single files.
// It keeps no per-job state and is safe for concurrent use.
type Executor struct {
	detector  ports.TempoDetector
	stretcher ports.TimeStretcher
	storage   ports.StorageProvider
	log       *logger.Logger
}

// NewExecutor creates an executor. stretcher may be nil for analyze-only batches.
func NewExecutor(detector ports.TempoDetector, stretcher ports.TimeStretcher, storage ports.StorageProvider, log *logger.Logger) *Executor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Executor{
		detector:  detector,
		stretcher: stretcher,
		storage:   storage,
		log:       log,
	}
}

// Execute processes one file and always returns its outcome. Failures,
// including panics in collaborators, are classified instead of propagated.
func (e *Executor) Execute(ctx context.Context, job *Job) (out model.Outcome) {
	start := time.Now()
	out = model.Outcome{JobID: job.ID, File: job.File}
	log := job.Log
	if log == nil {
		log = e.log
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("executor panic recovered", zap.Any("panic", r), zap.String("path", job.File.AbsPath))
			out.Err = pkgerrors.NewProcessingError("executor", fmt.Sprintf("panic: %v", r), nil)
			out.Kind = Classify(out.Err, job.AnalyzeOnly)
		}
		out.Duration = time.Since(start)
		job.report(progress.StageDone, out.Kind.String())
	}()

	ctx = logger.WithContext(ctx, log)
	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}

	err := e.run(ctx, job, &out)
	out.Err = err
	out.Kind = Classify(err, job.AnalyzeOnly)

	if err != nil {
		log.Debug("file failed",
			zap.String("path", job.File.AbsPath),
			zap.Stringer("kind", out.Kind),
			zap.Error(err),
		)
	}
	return out
}

func (e *Executor) run(ctx context.Context, job *Job, out *model.Outcome) error {
	name := filepath.Base(job.File.AbsPath)

	// 1-2. Detect
	job.report(progress.StageDetect, "detecting "+name)
	det, err := e.detector.Detect(ctx, job.File.AbsPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return pkgerrors.NewProcessingError("detect", "canceled", ctxErr)
		}
		return pkgerrors.NewDetectionError(job.File.AbsPath, "tempo detector failed", err)
	}
	if !det.Valid() {
		bpm := 0.0
		if det != nil {
			bpm = det.BPM
		}
		return pkgerrors.NewDetectionError(job.File.AbsPath, fmt.Sprintf("detector returned unusable tempo %g", bpm), nil)
	}
	out.Detection = det

	// 3. Analyze-only stops before any filesystem write
	if job.AnalyzeOnly {
		return nil
	}

	// 4. Factor
	factor := model.StretchFactor(job.TargetBPM, det.BPM)
	out.Factor = factor
	if !model.ValidFactor(factor) {
		return pkgerrors.NewFactorError(job.TargetBPM, det.BPM, factor)
	}
	if e.stretcher == nil {
		return pkgerrors.NewProcessingError("stretch", "no time stretcher configured", nil)
	}

	// 5. Output location
	outPath := filepath.Join(job.OutputRoot, job.File.RelPath)
	outDir := filepath.Dir(outPath)
	if err := e.storage.MkdirAll(ctx, outDir); err != nil {
		return pkgerrors.NewProcessingError("prepare", "failed to create output directory", err)
	}
	tmpPath, err := e.storage.TempFile(ctx, outDir, tempPattern(outPath))
	if err != nil {
		return pkgerrors.NewProcessingError("prepare", "failed to create temp output", err)
	}
	committed := false
	defer func() {
		if !committed {
			if rmErr := e.storage.Remove(context.Background(), tmpPath); rmErr != nil {
				logger.FromContext(ctx, e.log).Warn("failed to remove temp output", zap.String("path", tmpPath), zap.Error(rmErr))
			}
		}
	}()

	// 6. Stretch into the temp file, then rename into place
	job.report(progress.StageStretch, fmt.Sprintf("stretching %s (x%.4f)", name, factor))
	err = retry.Do(ctx, job.Retry, func() error {
		return e.stretcher.Stretch(ctx, job.File.AbsPath, tmpPath, factor)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return pkgerrors.NewProcessingError("stretch", "canceled", ctxErr)
		}
		return pkgerrors.NewStretchError(factor, "time stretcher failed", err)
	}

	size, err := e.storage.Size(ctx, tmpPath)
	if err != nil {
		return pkgerrors.NewProcessingError("commit", "failed to stat stretched output", err)
	}
	if size == 0 {
		return pkgerrors.NewStretchError(factor, "time stretcher produced an empty file", nil)
	}

	job.report(progress.StageCommit, "writing "+name)
	if err := e.storage.Rename(ctx, tmpPath, outPath); err != nil {
		return pkgerrors.NewProcessingError("commit", "failed to move output into place", err)
	}
	committed = true
	out.OutputPath = outPath
	return nil
}

// tempPattern keeps the extension so stretchers infer the right output format.
func tempPattern(outPath string) string {
	ext := filepath.Ext(outPath)
	stem := strings.TrimSuffix(filepath.Base(outPath), ext)
	return "." + stem + ".*.part" + ext
}

// report is a helper to emit progress updates
func (j *Job) report(stage progress.Stage, msg string) {
	if j.Reporter == nil {
		return
	}
	j.Reporter.Report(progress.Update{
		JobID:     j.ID,
		File:      j.File.RelPath,
		Stage:     stage,
		Message:   msg,
		Timestamp: time.Now(),
	})
}
