package pipeline

import (
	"context"
	"errors"

	"github.com/Skryldev/bpm-lab/domain/model"
	pkgerrors "github.com/Skryldev/bpm-lab/pkg/errors"
)

// Classify maps the terminal error of one executor run to its outcome kind.
// It is total: every error, including nil, yields exactly one kind.
func Classify(err error, analyzeOnly bool) model.OutcomeKind {
	if err == nil {
		if analyzeOnly {
			return model.OutcomeAnalyzedOnly
		}
		return model.OutcomeProcessed
	}

	// Cancellation wins over whichever stage happened to be running.
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return model.OutcomeUnhandledError
	}

	var (
		detErr     *pkgerrors.DetectionError
		factorErr  *pkgerrors.FactorError
		stretchErr *pkgerrors.StretchError
	)
	switch {
	case errors.As(err, &detErr):
		return model.OutcomeDetectionFailed
	case errors.As(err, &factorErr):
		return model.OutcomeInvalidFactor
	case errors.As(err, &stretchErr):
		return model.OutcomeStretchFailed
	default:
		return model.OutcomeUnhandledError
	}
}
