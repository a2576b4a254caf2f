package mocks

import (
	"context"
	"os"
	"sync"

	"github.com/Skryldev/bpm-lab/domain/model"
)

// MockDetector is a test double for ports.TempoDetector
type MockDetector struct {
	DetectFunc    func(ctx context.Context, path string) (*model.DetectionResult, error)
	AvailableFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []string
}

func (m *MockDetector) Detect(ctx context.Context, path string) (*model.DetectionResult, error) {
	m.mu.Lock()
	m.calls = append(m.calls, path)
	m.mu.Unlock()
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, path)
	}
	return &model.DetectionResult{BPM: 120, Confidence: 0.9}, nil
}

func (m *MockDetector) Available(ctx context.Context) error {
	if m.AvailableFunc != nil {
		return m.AvailableFunc(ctx)
	}
	return nil
}

// Calls returns the paths Detect was called with
func (m *MockDetector) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// StretchCall records one Stretch invocation
type StretchCall struct {
	InputPath  string
	OutputPath string
	Factor     float64
}

// MockStretcher is a test double for ports.TimeStretcher
type MockStretcher struct {
	// StretchFunc defaults to writing a small payload to outputPath
	StretchFunc   func(ctx context.Context, inputPath, outputPath string, factor float64) error
	AvailableFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []StretchCall
}

func (m *MockStretcher) Stretch(ctx context.Context, inputPath, outputPath string, factor float64) error {
	m.mu.Lock()
	m.calls = append(m.calls, StretchCall{InputPath: inputPath, OutputPath: outputPath, Factor: factor})
	m.mu.Unlock()
	if m.StretchFunc != nil {
		return m.StretchFunc(ctx, inputPath, outputPath, factor)
	}
	return WriteStretched(outputPath)
}

func (m *MockStretcher) Available(ctx context.Context) error {
	if m.AvailableFunc != nil {
		return m.AvailableFunc(ctx)
	}
	return nil
}

// Calls returns every recorded Stretch invocation
func (m *MockStretcher) Calls() []StretchCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StretchCall(nil), m.calls...)
}

// StretchedPayload is what the default MockStretcher writes
const StretchedPayload = "stretched"

// WriteStretched writes StretchedPayload to path
func WriteStretched(path string) error {
	return os.WriteFile(path, []byte(StretchedPayload), 0o644)
}

// MockStorageProvider is a test double for ports.StorageProvider
type MockStorageProvider struct {
	ExistsFunc   func(ctx context.Context, path string) (bool, error)
	IsDirFunc    func(ctx context.Context, path string) (bool, error)
	SizeFunc     func(ctx context.Context, path string) (int64, error)
	MkdirAllFunc func(ctx context.Context, dir string) error
	TempFileFunc func(ctx context.Context, dir, pattern string) (string, error)
	RenameFunc   func(ctx context.Context, oldPath, newPath string) error
	RemoveFunc   func(ctx context.Context, path string) error
}

func (m *MockStorageProvider) Exists(ctx context.Context, path string) (bool, error) {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, path)
	}
	return true, nil
}

func (m *MockStorageProvider) IsDir(ctx context.Context, path string) (bool, error) {
	if m.IsDirFunc != nil {
		return m.IsDirFunc(ctx, path)
	}
	return true, nil
}

func (m *MockStorageProvider) Size(ctx context.Context, path string) (int64, error) {
	if m.SizeFunc != nil {
		return m.SizeFunc(ctx, path)
	}
	return 1024, nil
}

func (m *MockStorageProvider) MkdirAll(ctx context.Context, dir string) error {
	if m.MkdirAllFunc != nil {
		return m.MkdirAllFunc(ctx, dir)
	}
	return nil
}

func (m *MockStorageProvider) TempFile(ctx context.Context, dir, pattern string) (string, error) {
	if m.TempFileFunc != nil {
		return m.TempFileFunc(ctx, dir, pattern)
	}
	return "/tmp/mock_temp_file", nil
}

func (m *MockStorageProvider) Rename(ctx context.Context, oldPath, newPath string) error {
	if m.RenameFunc != nil {
		return m.RenameFunc(ctx, oldPath, newPath)
	}
	return nil
}

func (m *MockStorageProvider) Remove(ctx context.Context, path string) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, path)
	}
	return nil
}

// MockErrorSink is an in-memory ports.ErrorSink
type MockErrorSink struct {
	PathValue string

	mu      sync.Mutex
	entries []model.Outcome
	closed  bool
}

func (m *MockErrorSink) Append(o model.Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, o)
}

func (m *MockErrorSink) Path() string {
	if m.PathValue == "" {
		return "errors.log"
	}
	return m.PathValue
}

func (m *MockErrorSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Entries returns every appended outcome
func (m *MockErrorSink) Entries() []model.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Outcome(nil), m.entries...)
}

// Closed reports whether Close was called
func (m *MockErrorSink) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockReporter is a recording ports.BatchReporter
type MockReporter struct {
	mu        sync.Mutex
	Started   int
	Total     int
	Completed []model.Outcome
	Refreshes int
	Finished  *model.Summary
}

func (m *MockReporter) BatchStarted(_ string, total int, _ bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Started++
	m.Total = total
}

func (m *MockReporter) FileCompleted(o model.Outcome, _ model.BatchCounters) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Completed = append(m.Completed, o)
}

func (m *MockReporter) Refresh(_ model.BatchCounters, _ []model.WorkerStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Refreshes++
}

func (m *MockReporter) BatchFinished(s *model.Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Finished = s
}
