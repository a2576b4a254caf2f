package detector

import (
	"context"

	"github.com/Skryldev/bpm-lab/domain/model"
	"github.com/Skryldev/bpm-lab/domain/ports"
)

// maxDoublings bounds octave correction so a tiny positive tempo cannot loop forever.
const maxDoublings = 16

// OctaveCorrector doubles a detected tempo while it is below Floor, undoing
// the half-tempo errors beat trackers make on slow material.
type OctaveCorrector struct {
	next  ports.TempoDetector
	floor float64
}

// WithOctaveCorrection wraps next. A floor <= 0 returns next unchanged.
func WithOctaveCorrection(next ports.TempoDetector, floor float64) ports.TempoDetector {
	if floor <= 0 {
		return next
	}
	return &OctaveCorrector{next: next, floor: floor}
}

// Detect delegates to the wrapped detector and corrects its tempo
func (o *OctaveCorrector) Detect(ctx context.Context, path string) (*model.DetectionResult, error) {
	res, err := o.next.Detect(ctx, path)
	if err != nil || !res.Valid() {
		return res, err
	}
	corrected := *res
	for i := 0; i < maxDoublings && corrected.BPM < o.floor; i++ {
		corrected.BPM *= 2
	}
	return &corrected, nil
}

// Available delegates to the wrapped detector when it can check itself
func (o *OctaveCorrector) Available(ctx context.Context) error {
	if c, ok := o.next.(ports.Checker); ok {
		return c.Available(ctx)
	}
	return nil
}
