package model

import (
	"math"
	"runtime"
	"time"
)

// SupportedExtensions lists the audio extensions picked up by discovery (lowercase, with leading dot).
var SupportedExtensions = []string{".mp3", ".wav", ".flac"}

// AudioFile identifies one discovered input file
type AudioFile struct {
	AbsPath string
	RelPath string // relative to the scanned root, mirrored under the output root
}

// DetectionResult holds what the tempo detector reported for one file
type DetectionResult struct {
	BPM        float64
	Confidence float64 // 0..1
}

// Valid reports whether the detected tempo is usable for stretching.
func (d *DetectionResult) Valid() bool {
	return d != nil && d.BPM > 0 && !math.IsInf(d.BPM, 0)
}

// StretchFactor returns target/detected. It is only meaningful when detected > 0.
func StretchFactor(targetBPM, detectedBPM float64) float64 {
	return targetBPM / detectedBPM
}

// ValidFactor reports whether factor is finite and strictly positive.
func ValidFactor(factor float64) bool {
	return factor > 0 && !math.IsInf(factor, 0) && !math.IsNaN(factor)
}

// BatchOptions holds all configuration for one batch run
type BatchOptions struct {
	// Output
	OutputDir   string
	AnalyzeOnly bool

	// Scheduling
	Workers    int
	JobTimeout time.Duration // 0 disables the per-job deadline

	// Stretch retry
	StretchAttempts int
	RetryDelay      time.Duration

	// Reporting
	ErrorLogPath    string
	RefreshInterval time.Duration
}

// DefaultBatchOptions returns sane defaults
func DefaultBatchOptions() *BatchOptions {
	return &BatchOptions{
		OutputDir:       "./out",
		AnalyzeOnly:     false,
		Workers:         runtime.NumCPU(),
		JobTimeout:      0,
		StretchAttempts: 1,
		RetryDelay:      time.Second,
		ErrorLogPath:    "errors.log",
		RefreshInterval: 250 * time.Millisecond,
	}
}

// WorkerStatus is the live activity of one pool worker
type WorkerStatus struct {
	WorkerID int
	Activity string
}

// Summary is the frozen result of a finished batch
type Summary struct {
	BatchID      string
	InputDir     string
	OutputDir    string
	TargetBPM    float64
	AnalyzeOnly  bool
	State        BatchState
	Counters     BatchCounters
	Outcomes     []Outcome // completion order
	ErrorLogPath string
	NothingToDo  bool
	Interrupted  bool
	Elapsed      time.Duration
}
