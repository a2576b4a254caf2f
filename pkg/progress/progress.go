package progress

import (
	"sync/atomic"
	"time"
)

// Stage represents a per-file pipeline stage
type Stage string

const (
	StageIdle    Stage = "idle"
	StageDetect  Stage = "detect"
	StageStretch Stage = "stretch"
	StageCommit  Stage = "commit"
	StageDone    Stage = "done"
)

// Update holds a progress update
type Update struct {
	JobID     string
	WorkerID  int
	File      string // path relative to the scanned root
	Stage     Stage
	Message   string
	Timestamp time.Time
}

// Reporter is the interface for progress reporting.
// Report must not block; it runs on the worker's goroutine.
type Reporter interface {
	Report(update Update)
}

// ChannelReporter sends updates to a channel, dropping them when it is full
type ChannelReporter struct {
	ch      chan<- Update
	dropped atomic.Int64
}

// NewChannelReporter creates a reporter that sends updates to ch
func NewChannelReporter(ch chan<- Update) *ChannelReporter {
	return &ChannelReporter{ch: ch}
}

func (r *ChannelReporter) Report(update Update) {
	select {
	case r.ch <- update:
	default:
		r.dropped.Add(1)
	}
}

// Dropped returns how many updates did not fit in the channel
func (r *ChannelReporter) Dropped() int64 { return r.dropped.Load() }

// FuncReporter adapts a function to Reporter
type FuncReporter func(Update)

func (f FuncReporter) Report(update Update) { f(update) }

// MultiReporter fans out to a fixed set of reporters
type MultiReporter struct {
	reporters []Reporter
}

// NewMultiReporter skips nil entries
func NewMultiReporter(reporters ...Reporter) *MultiReporter {
	m := &MultiReporter{reporters: make([]Reporter, 0, len(reporters))}
	for _, r := range reporters {
		if r != nil {
			m.reporters = append(m.reporters, r)
		}
	}
	return m
}

func (m *MultiReporter) Report(update Update) {
	for _, r := range m.reporters {
		r.Report(update)
	}
}

// NoopReporter discards all updates
type NoopReporter struct{}

func (n NoopReporter) Report(_ Update) {}
