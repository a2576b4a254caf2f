package usecase

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"time"

	"github.com/Skryldev/bpm-lab/application/pipeline"
	"github.com/Skryldev/bpm-lab/domain/model"
	"github.com/Skryldev/bpm-lab/domain/ports"
	pkgerrors "github.com/Skryldev/bpm-lab/pkg/errors"
	"github.com/Skryldev/bpm-lab/pkg/logger"
	"github.com/Skryldev/bpm-lab/pkg/progress"
	"github.com/Skryldev/bpm-lab/pkg/retry"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// SinkOpener opens the error log of one batch
type SinkOpener func(path, batchID string) (ports.ErrorSink, error)

// BatchService is the application service that runs one tempo-stretch batch
type BatchService struct {
	detector  ports.TempoDetector
	stretcher ports.TimeStretcher
	storage   ports.StorageProvider
	openSink  SinkOpener
	reporter  ports.BatchReporter
	progress  progress.Reporter
	log       *logger.Logger
}

// Config holds BatchService configuration
type Config struct {
	Detector  ports.TempoDetector
	Stretcher ports.TimeStretcher // may be nil when every batch is analyze-only
	Storage   ports.StorageProvider
	OpenSink  SinkOpener
	Reporter  ports.BatchReporter
	Progress  progress.Reporter
	Logger    *logger.Logger
}

// NewBatchService creates a new BatchService
func NewBatchService(cfg Config) (*BatchService, error) {
	if cfg.Detector == nil {
		return nil, fmt.Errorf("TempoDetector is required")
	}
	if cfg.Storage == nil {
		return nil, fmt.Errorf("StorageProvider is required")
	}
	if cfg.OpenSink == nil {
		return nil, fmt.Errorf("SinkOpener is required")
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	var reporter ports.BatchReporter = noopBatchReporter{}
	if cfg.Reporter != nil {
		reporter = cfg.Reporter
	}

	var prog progress.Reporter = progress.NoopReporter{}
	if cfg.Progress != nil {
		prog = cfg.Progress
	}

	return &BatchService{
		detector:  cfg.Detector,
		stretcher: cfg.Stretcher,
		storage:   cfg.Storage,
		openSink:  cfg.OpenSink,
		reporter:  reporter,
		progress:  prog,
		log:       log,
	}, nil
}

// Run discovers the audio files under inputDir and processes each of them.
// A non-nil error means a fatal precondition failed and nothing was
// processed. Per-file failures never surface here; they are counted in the
// summary and written to the error log.
func (s *BatchService) Run(ctx context.Context, inputDir string, targetBPM float64, opts ...ports.Option) (*model.Summary, error) {
	start := time.Now()

	options := model.DefaultBatchOptions()
	for _, o := range opts {
		o(options)
	}

	batchID := uuid.NewString()
	log := s.log.With(zap.String("batch_id", batchID))
	state := newBatchState(log)

	abort := func(err error) (*model.Summary, error) {
		if tErr := state.Transition(model.BatchStateFatalAbort); tErr != nil {
			err = multierr.Append(err, tErr)
		}
		log.Error("batch aborted", zap.Error(err))
		return nil, err
	}

	if err := s.validate(ctx, inputDir, targetBPM, options); err != nil {
		return abort(err)
	}

	if err := state.Transition(model.BatchStateDiscovering); err != nil {
		return abort(err)
	}
	log.Info("discovering audio files", zap.String("input", inputDir))

	files, err := pipeline.Discover(inputDir)
	if err != nil {
		return abort(pkgerrors.NewValidationError("inputDir", inputDir, err.Error()))
	}

	// The previous log is truncated only once the batch is known to run.
	sink, err := s.openSink(options.ErrorLogPath, batchID)
	if err != nil {
		return abort(pkgerrors.NewValidationError("errorLog", options.ErrorLogPath, err.Error()))
	}
	defer func() {
		if cErr := sink.Close(); cErr != nil {
			log.Warn("failed to close error log", zap.Error(cErr))
		}
	}()

	s.reporter.BatchStarted(inputDir, len(files), options.AnalyzeOnly)

	summary := &model.Summary{
		BatchID:      batchID,
		InputDir:     inputDir,
		OutputDir:    options.OutputDir,
		TargetBPM:    targetBPM,
		AnalyzeOnly:  options.AnalyzeOnly,
		Counters:     model.BatchCounters{TotalDiscovered: len(files)},
		ErrorLogPath: sink.Path(),
	}

	if len(files) == 0 {
		log.Info("no audio files found")
		if err := state.Transition(model.BatchStateDone); err != nil {
			return abort(err)
		}
		summary.NothingToDo = true
		summary.State = state.Current()
		summary.Elapsed = time.Since(start)
		s.reporter.BatchFinished(summary)
		return summary, nil
	}

	// Analyze-only never touches the output tree.
	outputRoot := options.OutputDir
	if !options.AnalyzeOnly {
		if abs, err := filepath.Abs(outputRoot); err == nil {
			outputRoot = abs
		}
		if err := s.storage.MkdirAll(ctx, outputRoot); err != nil {
			return abort(pkgerrors.NewValidationError("outputDir", outputRoot, err.Error()))
		}
	}

	if err := state.Transition(model.BatchStateScanning); err != nil {
		return abort(err)
	}

	jobs := s.buildJobs(batchID, files, targetBPM, outputRoot, options)
	executor := pipeline.NewExecutor(s.detector, s.stretcher, s.storage, log)
	pool := pipeline.NewWorkerPool(executor, options.Workers, len(jobs), log)

	log.Info("starting batch",
		zap.Int("files", len(jobs)),
		zap.Int("workers", pool.Workers()),
		zap.Float64("target_bpm", targetBPM),
		zap.Bool("analyze_only", options.AnalyzeOnly),
	)

	agg := newAggregator(len(jobs), sink, s.reporter)
	if err := state.Transition(model.BatchStateDraining); err != nil {
		return abort(err)
	}
	results := pool.Run(ctx, jobs, s.progress)

	stopView := make(chan struct{})
	var viewWG sync.WaitGroup
	viewWG.Add(1)
	go func() {
		defer viewWG.Done()
		s.liveView(stopView, options.RefreshInterval, agg, pool.Board())
	}()

	interrupted := agg.Drain(ctx, results, func() {
		log.Warn("batch interrupted, draining in-flight jobs")
	})

	close(stopView)
	viewWG.Wait()
	s.reporter.Refresh(agg.Counters(), pool.Board().Snapshot())

	if err := state.Transition(model.BatchStateSummarizing); err != nil {
		return abort(err)
	}

	summary.Counters = agg.Counters()
	summary.Outcomes = agg.Outcomes()
	summary.Interrupted = interrupted

	if err := state.Transition(model.BatchStateDone); err != nil {
		return abort(err)
	}
	summary.State = state.Current()
	summary.Elapsed = time.Since(start)

	log.Info("batch finished",
		zap.Int("completed", summary.Counters.TotalCompleted),
		zap.Int("modified", summary.Counters.Modified),
		zap.Int("failed", summary.Counters.Failed),
		zap.Bool("interrupted", interrupted),
		zap.Duration("elapsed", summary.Elapsed),
	)

	s.reporter.BatchFinished(summary)
	return summary, nil
}

// validate collects every fatal precondition failure at once.
func (s *BatchService) validate(ctx context.Context, inputDir string, targetBPM float64, o *model.BatchOptions) error {
	var errs error

	if !(targetBPM > 0) || math.IsInf(targetBPM, 0) {
		errs = multierr.Append(errs, pkgerrors.NewValidationError("targetBPM", targetBPM, "target BPM must be a positive number"))
	}

	if inputDir == "" {
		errs = multierr.Append(errs, pkgerrors.NewValidationError("inputDir", inputDir, "input directory is required"))
	} else {
		errs = multierr.Append(errs, s.checkInputDir(ctx, inputDir))
	}

	if o.Workers < 1 {
		errs = multierr.Append(errs, pkgerrors.NewValidationError("workers", o.Workers, "at least one worker is required"))
	}
	if o.ErrorLogPath == "" {
		errs = multierr.Append(errs, pkgerrors.NewValidationError("errorLog", o.ErrorLogPath, "error log path is required"))
	}

	if err := available(ctx, s.detector); err != nil {
		errs = multierr.Append(errs, pkgerrors.NewValidationError("detector", describe(s.detector), "tempo detector unavailable: "+err.Error()))
	}
	if !o.AnalyzeOnly {
		if o.OutputDir == "" {
			errs = multierr.Append(errs, pkgerrors.NewValidationError("outputDir", o.OutputDir, "output directory is required"))
		}
		if s.stretcher == nil {
			errs = multierr.Append(errs, pkgerrors.NewValidationError("stretcher", nil, "no time stretcher configured"))
		} else if err := available(ctx, s.stretcher); err != nil {
			errs = multierr.Append(errs, pkgerrors.NewValidationError("stretcher", describe(s.stretcher), "time stretcher unavailable: "+err.Error()))
		}
	}

	return errs
}

func (s *BatchService) checkInputDir(ctx context.Context, inputDir string) error {
	exists, err := s.storage.Exists(ctx, inputDir)
	if err == nil && exists {
		var isDir bool
		if isDir, err = s.storage.IsDir(ctx, inputDir); err == nil && !isDir {
			return pkgerrors.NewValidationError("inputDir", inputDir, "input path is not a directory")
		}
	}
	switch {
	case err != nil:
		return pkgerrors.NewValidationError("inputDir", inputDir, "cannot access input directory: "+err.Error())
	case !exists:
		return pkgerrors.NewValidationError("inputDir", inputDir, "input directory does not exist")
	}
	return nil
}

func (s *BatchService) buildJobs(batchID string, files []model.AudioFile, targetBPM float64, outputRoot string, o *model.BatchOptions) []*pipeline.Job {
	retryCfg := retry.DefaultConfig()
	retryCfg.MaxAttempts = o.StretchAttempts
	retryCfg.Delay = o.RetryDelay
	retryCfg.Retryable = func(err error) bool {
		return !pkgerrors.Is(err, context.Canceled) && !pkgerrors.Is(err, context.DeadlineExceeded)
	}

	prefix := batchID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}

	jobs := make([]*pipeline.Job, len(files))
	for i, f := range files {
		jobs[i] = &pipeline.Job{
			ID:          fmt.Sprintf("%s-%04d", prefix, i+1),
			File:        f,
			TargetBPM:   targetBPM,
			OutputRoot:  outputRoot,
			AnalyzeOnly: o.AnalyzeOnly,
			Timeout:     o.JobTimeout,
			Retry:       retryCfg,
		}
	}
	return jobs
}

// liveView redraws the reporter until stop is closed. It only reads.
func (s *BatchService) liveView(stop <-chan struct{}, interval time.Duration, agg *aggregator, board *pipeline.StatusBoard) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.reporter.Refresh(agg.Snapshot(), board.Snapshot())
		}
	}
}

func available(ctx context.Context, v any) error {
	if c, ok := v.(ports.Checker); ok {
		return c.Available(ctx)
	}
	return nil
}

func describe(v any) string {
	return fmt.Sprintf("%T", v)
}

type noopBatchReporter struct{}

func (noopBatchReporter) BatchStarted(string, int, bool) {}
func (noopBatchReporter) FileCompleted(model.Outcome, model.BatchCounters) {}
func (noopBatchReporter) Refresh(model.BatchCounters, []model.WorkerStatus) {}
func (noopBatchReporter) BatchFinished(*model.Summary) {}
