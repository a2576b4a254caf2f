package pipeline

import (
	"sync/atomic"

	"github.com/Skryldev/bpm-lab/domain/model"
	"github.com/Skryldev/bpm-lab/pkg/progress"
)

const activityIdle = string(progress.StageIdle)

// StatusBoard holds one activity slot per worker. Each slot is written only
// by its owning worker and may be read from any goroutine.
type StatusBoard struct {
	slots []atomic.Pointer[string]
}

// NewStatusBoard creates a board with n idle slots
func NewStatusBoard(n int) *StatusBoard {
	b := &StatusBoard{slots: make([]atomic.Pointer[string], n)}
	for i := range b.slots {
		b.Set(i, activityIdle)
	}
	return b
}

// Set publishes the activity of worker id
func (b *StatusBoard) Set(id int, activity string) {
	b.slots[id].Store(&activity)
}

// Len returns the number of slots
func (b *StatusBoard) Len() int { return len(b.slots) }

// Snapshot copies every slot
func (b *StatusBoard) Snapshot() []model.WorkerStatus {
	out := make([]model.WorkerStatus, len(b.slots))
	for i := range b.slots {
		out[i] = model.WorkerStatus{WorkerID: i, Activity: *b.slots[i].Load()}
	}
	return out
}

// slotReporter writes stage messages into its worker's slot
type slotReporter struct {
	board *StatusBoard
	id    int
}

func (r slotReporter) Report(u progress.Update) {
	switch u.Stage {
	case progress.StageDone, progress.StageIdle:
		r.board.Set(r.id, activityIdle)
	default:
		r.board.Set(r.id, u.Message)
	}
}
