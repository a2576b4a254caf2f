package ports

import (
	"context"
	"time"

	"github.com/Skryldev/bpm-lab/domain/model"
)

// TempoDetector estimates the tempo of an audio file.
// Implementations must be safe for concurrent use by independent workers.
type TempoDetector interface {
	// Detect returns the tempo of the file at path
	Detect(ctx context.Context, path string) (*model.DetectionResult, error)
}

// TimeStretcher changes the tempo of an audio file without altering pitch
type TimeStretcher interface {
	// Stretch writes inputPath scaled by factor to outputPath
	Stretch(ctx context.Context, inputPath, outputPath string, factor float64) error
}

// Checker is implemented by collaborators that can verify they are usable
// (binary on PATH, library loaded) before a batch starts.
type Checker interface {
	Available(ctx context.Context) error
}

// StorageProvider abstracts filesystem operations
type StorageProvider interface {
	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)

	// IsDir reports whether path is an existing directory
	IsDir(ctx context.Context, path string) (bool, error)

	// Size returns file size in bytes
	Size(ctx context.Context, path string) (int64, error)

	// MkdirAll creates dir and any missing parents; existing dirs are not an error
	MkdirAll(ctx context.Context, dir string) error

	// TempFile creates a temporary file and returns its path
	TempFile(ctx context.Context, dir, pattern string) (string, error)

	// Rename moves oldPath to newPath, replacing newPath
	Rename(ctx context.Context, oldPath, newPath string) error

	// Remove deletes a file
	Remove(ctx context.Context, path string) error
}

// ErrorSink is the append-only failure log of a batch.
// Append must be safe for concurrent callers.
type ErrorSink interface {
	Append(o model.Outcome)
	Path() string
	Close() error
}

// BatchReporter renders batch progress to the operator
type BatchReporter interface {
	// BatchStarted is called once after discovery
	BatchStarted(inputDir string, total int, analyzeOnly bool)

	// FileCompleted is called from the single aggregating consumer, once per outcome
	FileCompleted(o model.Outcome, counters model.BatchCounters)

	// Refresh redraws the live view; it may run concurrently with FileCompleted
	Refresh(counters model.BatchCounters, workers []model.WorkerStatus)

	// BatchFinished is called once with the final summary
	BatchFinished(s *model.Summary)
}

// Option is the functional option type
type Option func(*model.BatchOptions)

// WithOutputDir sets the root of the mirrored output tree
func WithOutputDir(dir string) Option {
	return func(o *model.BatchOptions) {
		o.OutputDir = dir
	}
}

// WithAnalyzeOnly disables all filesystem writes
func WithAnalyzeOnly(enabled bool) Option {
	return func(o *model.BatchOptions) {
		o.AnalyzeOnly = enabled
	}
}

// WithWorkers sets the number of concurrent workers
func WithWorkers(n int) Option {
	return func(o *model.BatchOptions) {
		if n > 0 {
			o.Workers = n
		}
	}
}

// WithJobTimeout bounds the time spent on one file
func WithJobTimeout(d time.Duration) Option {
	return func(o *model.BatchOptions) {
		o.JobTimeout = d
	}
}

// WithStretchRetry sets how many times a failed stretch is attempted
func WithStretchRetry(attempts int, delay time.Duration) Option {
	return func(o *model.BatchOptions) {
		if attempts > 0 {
			o.StretchAttempts = attempts
		}
		if delay > 0 {
			o.RetryDelay = delay
		}
	}
}

// WithErrorLog sets the error log path
func WithErrorLog(path string) Option {
	return func(o *model.BatchOptions) {
		o.ErrorLogPath = path
	}
}

// WithRefreshInterval sets how often the live view is redrawn
func WithRefreshInterval(d time.Duration) Option {
	return func(o *model.BatchOptions) {
		if d > 0 {
			o.RefreshInterval = d
		}
	}
}
