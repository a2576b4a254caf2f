package bpmlab

import (
	"context"
	"fmt"

	"github.com/Skryldev/bpm-lab/application/usecase"
	"github.com/Skryldev/bpm-lab/domain/model"
	"github.com/Skryldev/bpm-lab/domain/ports"
	"github.com/Skryldev/bpm-lab/infrastructure/detector"
	"github.com/Skryldev/bpm-lab/infrastructure/errorlog"
	"github.com/Skryldev/bpm-lab/infrastructure/ffmpeg"
	"github.com/Skryldev/bpm-lab/infrastructure/rubberband"
	"github.com/Skryldev/bpm-lab/infrastructure/storage"
	"github.com/Skryldev/bpm-lab/pkg/logger"
	"github.com/Skryldev/bpm-lab/pkg/progress"
	"go.uber.org/zap"
)

// Re-export types for convenient use by callers
type (
	Summary        = model.Summary
	Outcome        = model.Outcome
	OutcomeKind    = model.OutcomeKind
	BatchCounters  = model.BatchCounters
	BatchState     = model.BatchState
	WorkerStatus   = model.WorkerStatus
	Option         = ports.Option
	BatchReporter  = ports.BatchReporter
	TempoDetector  = ports.TempoDetector
	TimeStretcher  = ports.TimeStretcher
	ProgressUpdate = progress.Update
	ProgressStage  = progress.Stage
)

// Re-export outcome kinds and stages
const (
	OutcomeAnalyzedOnly    = model.OutcomeAnalyzedOnly
	OutcomeProcessed       = model.OutcomeProcessed
	OutcomeDetectionFailed = model.OutcomeDetectionFailed
	OutcomeInvalidFactor   = model.OutcomeInvalidFactor
	OutcomeStretchFailed   = model.OutcomeStretchFailed
	OutcomeUnhandledError  = model.OutcomeUnhandledError

	StageDetect  = progress.StageDetect
	StageStretch = progress.StageStretch
	StageCommit  = progress.StageCommit
	StageDone    = progress.StageDone
)

// Re-export option functions
var (
	WithOutputDir       = ports.WithOutputDir
	WithAnalyzeOnly     = ports.WithAnalyzeOnly
	WithWorkers         = ports.WithWorkers
	WithJobTimeout      = ports.WithJobTimeout
	WithStretchRetry    = ports.WithStretchRetry
	WithErrorLog        = ports.WithErrorLog
	WithRefreshInterval = ports.WithRefreshInterval
)

// Stretcher backends
const (
	StretcherRubberband = "rubberband"
	StretcherFFmpeg     = "ffmpeg"
)

// Config holds top-level configuration for the processor
type Config struct {
	// DetectorCommand is the tempo detection command; the file path is
	// appended. Defaults to "aubio tempo".
	DetectorCommand []string

	// OctaveFloor doubles detected tempos below it. 0 disables correction.
	OctaveFloor float64

	// Stretcher selects the time-stretch backend (default: rubberband)
	Stretcher string

	// RubberbandPath is the path to the rubberband binary (auto-detected if empty)
	RubberbandPath string

	// RubberbandArgs are extra rubberband options, e.g. "--crisp", "5"
	RubberbandArgs []string

	// FFmpegPath is the path to the ffmpeg binary (auto-detected if empty)
	FFmpegPath string

	// Detector and TimeStretcher replace the command-line adapters when set
	Detector      TempoDetector
	TimeStretcher TimeStretcher

	// Logger is an optional custom logger. Uses production zap if nil.
	Logger *logger.Logger

	// ZapLogger allows passing a *zap.Logger directly
	ZapLogger *zap.Logger

	// ProgressCh is an optional channel for receiving per-file stage updates
	ProgressCh chan<- ProgressUpdate

	// Reporter renders batch progress, e.g. internal/console
	Reporter BatchReporter
}

// Processor is the main entry point
type Processor struct {
	service *usecase.BatchService
	log     *logger.Logger
}

// New creates a new Processor with the given configuration
func New(cfg Config) (*Processor, error) {
	log := cfg.Logger
	if log == nil && cfg.ZapLogger != nil {
		log = logger.FromZap(cfg.ZapLogger)
	}
	if log == nil {
		var err error
		log, err = logger.New(logger.Options{})
		if err != nil {
			return nil, err
		}
	}

	det := cfg.Detector
	if det == nil {
		det = detector.NewCommandDetector(detector.CommandConfig{
			Command: cfg.DetectorCommand,
			Logger:  log,
		})
	}
	det = detector.WithOctaveCorrection(det, cfg.OctaveFloor)

	str := cfg.TimeStretcher
	if str == nil {
		var err error
		str, err = newStretcher(cfg, log)
		if err != nil {
			return nil, err
		}
	}

	var prog progress.Reporter = progress.NoopReporter{}
	if cfg.ProgressCh != nil {
		prog = progress.NewChannelReporter(cfg.ProgressCh)
	}

	svc, err := usecase.NewBatchService(usecase.Config{
		Detector:  det,
		Stretcher: str,
		Storage:   storage.NewLocalStorage(),
		OpenSink:  openErrorLog,
		Reporter:  cfg.Reporter,
		Progress:  prog,
		Logger:    log,
	})
	if err != nil {
		return nil, err
	}

	return &Processor{
		service: svc,
		log:     log,
	}, nil
}

// Run processes every audio file under inputDir toward targetBPM.
// The error is non-nil only for fatal preconditions.
func (p *Processor) Run(ctx context.Context, inputDir string, targetBPM float64, opts ...Option) (*Summary, error) {
	return p.service.Run(ctx, inputDir, targetBPM, opts...)
}

// Close flushes the logger and releases resources
func (p *Processor) Close() {
	_ = p.log.Sync()
}

func newStretcher(cfg Config, log *logger.Logger) (TimeStretcher, error) {
	switch cfg.Stretcher {
	case "", StretcherRubberband:
		return rubberband.New(rubberband.Config{
			Path:      cfg.RubberbandPath,
			ExtraArgs: cfg.RubberbandArgs,
			Logger:    log,
		}), nil
	case StretcherFFmpeg:
		return ffmpeg.NewExecutor(ffmpeg.ExecutorConfig{
			FFmpegPath: cfg.FFmpegPath,
			Logger:     log,
		}), nil
	default:
		return nil, fmt.Errorf("unknown stretcher %q (want %s or %s)", cfg.Stretcher, StretcherRubberband, StretcherFFmpeg)
	}
}

func openErrorLog(path, batchID string) (ports.ErrorSink, error) {
	return errorlog.Open(path, zap.String("batch_id", batchID))
}
