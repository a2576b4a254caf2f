package usecase

import (
	"fmt"
	"sync"

	"github.com/Skryldev/bpm-lab/domain/model"
	"github.com/Skryldev/bpm-lab/pkg/logger"
	"go.uber.org/zap"
)

// batchState tracks the lifecycle of one batch and rejects invalid edges.
type batchState struct {
	mu      sync.RWMutex
	current model.BatchState
	log     *logger.Logger
}

func newBatchState(log *logger.Logger) *batchState {
	if log == nil {
		log = logger.NewNop()
	}
	return &batchState{current: model.BatchStateIdle, log: log}
}

// Transition validates and applies a state change.
func (s *batchState) Transition(to model.BatchState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if to == s.current {
		return nil
	}
	if !isValidTransition(s.current, to) {
		return fmt.Errorf("invalid batch transition: %s -> %s", s.current, to)
	}
	s.log.Debug("batch state changed",
		zap.String("from", string(s.current)),
		zap.String("to", string(to)),
	)
	s.current = to
	return nil
}

// Current returns the current state.
func (s *batchState) Current() model.BatchState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// isValidTransition enforces the allowed batch state machine edges.
func isValidTransition(from, to model.BatchState) bool {
	switch from {
	case model.BatchStateIdle:
		return to == model.BatchStateDiscovering || to == model.BatchStateFatalAbort
	case model.BatchStateDiscovering:
		return to == model.BatchStateScanning || to == model.BatchStateDone || to == model.BatchStateFatalAbort
	case model.BatchStateScanning:
		return to == model.BatchStateDraining
	case model.BatchStateDraining:
		return to == model.BatchStateSummarizing
	case model.BatchStateSummarizing:
		return to == model.BatchStateDone
	default:
		return false
	}
}
