package usecase

import (
	"context"
	"sync/atomic"

	"github.com/Skryldev/bpm-lab/domain/model"
	"github.com/Skryldev/bpm-lab/domain/ports"
)

// aggregator is the single consumer of the pool's completion stream and the
// only writer of the batch counters. Other goroutines read published copies.
type aggregator struct {
	counters  model.BatchCounters
	outcomes  []model.Outcome
	published atomic.Pointer[model.BatchCounters]

	sink     ports.ErrorSink
	reporter ports.BatchReporter
}

func newAggregator(total int, sink ports.ErrorSink, reporter ports.BatchReporter) *aggregator {
	a := &aggregator{
		counters: model.BatchCounters{TotalDiscovered: total},
		outcomes: make([]model.Outcome, 0, total),
		sink:     sink,
		reporter: reporter,
	}
	a.publish()
	return a
}

// Drain consumes results until the channel is closed. onInterrupt runs once
// if ctx is canceled first; draining continues until the pool has emptied.
// It reports whether the batch was interrupted.
func (a *aggregator) Drain(ctx context.Context, results <-chan model.Outcome, onInterrupt func()) bool {
	done := ctx.Done()
	interrupted := false
	for {
		select {
		case o, ok := <-results:
			if !ok {
				return interrupted || ctx.Err() != nil
			}
			a.add(o)
		case <-done:
			done = nil
			interrupted = true
			if onInterrupt != nil {
				onInterrupt()
			}
		}
	}
}

func (a *aggregator) add(o model.Outcome) {
	a.counters.Add(o)
	a.outcomes = append(a.outcomes, o)
	if o.Kind.IsFailure() {
		a.sink.Append(o)
	}
	a.publish()
	a.reporter.FileCompleted(o, a.counters)
}

func (a *aggregator) publish() {
	c := a.counters
	a.published.Store(&c)
}

// Snapshot returns the latest published counters. Safe from any goroutine.
func (a *aggregator) Snapshot() model.BatchCounters {
	return *a.published.Load()
}

// Outcomes returns the outcomes in completion order. Only valid after Drain.
func (a *aggregator) Outcomes() []model.Outcome { return a.outcomes }

// Counters returns the final counters. Only valid after Drain.
func (a *aggregator) Counters() model.BatchCounters { return a.counters }
