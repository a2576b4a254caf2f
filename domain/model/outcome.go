package model

import "time"

// OutcomeKind is the terminal classification of one processed file
type OutcomeKind int

const (
	OutcomeAnalyzedOnly OutcomeKind = iota
	OutcomeProcessed
	OutcomeDetectionFailed
	OutcomeInvalidFactor
	OutcomeStretchFailed
	OutcomeUnhandledError

	// OutcomeKindCount is the number of outcome kinds; keep it last.
	OutcomeKindCount
)

var outcomeKindNames = [OutcomeKindCount]string{
	OutcomeAnalyzedOnly:    "AnalyzedOnly",
	OutcomeProcessed:       "Processed",
	OutcomeDetectionFailed: "DetectionFailed",
	OutcomeInvalidFactor:   "InvalidFactor",
	OutcomeStretchFailed:   "StretchFailed",
	OutcomeUnhandledError:  "UnhandledError",
}

func (k OutcomeKind) String() string {
	if k < 0 || k >= OutcomeKindCount {
		return "Unknown"
	}
	return outcomeKindNames[k]
}

// IsFailure reports whether the kind counts towards the failed total.
func (k OutcomeKind) IsFailure() bool {
	switch k {
	case OutcomeAnalyzedOnly, OutcomeProcessed:
		return false
	default:
		return true
	}
}

// Outcome is the single terminal result recorded for one discovered file
type Outcome struct {
	JobID      string
	WorkerID   int
	File       AudioFile
	Kind       OutcomeKind
	Detection  *DetectionResult // set once detection succeeded
	Factor     float64          // set once computed
	OutputPath string           // set for Processed
	Err        error            // set for failure kinds
	Duration   time.Duration
}

// BatchCounters tracks aggregate progress of a batch
type BatchCounters struct {
	TotalDiscovered int
	TotalCompleted  int
	Modified        int
	Failed          int
	ByKind          [OutcomeKindCount]int
}

// Add folds one outcome into the counters.
func (c *BatchCounters) Add(o Outcome) {
	c.TotalCompleted++
	if o.Kind >= 0 && o.Kind < OutcomeKindCount {
		c.ByKind[o.Kind]++
	}
	if o.Kind.IsFailure() {
		c.Failed++
	}
	if o.Kind == OutcomeProcessed {
		c.Modified++
	}
}

// Complete reports whether every discovered file has an outcome.
func (c BatchCounters) Complete() bool {
	return c.TotalCompleted == c.TotalDiscovered
}

// BatchState is the lifecycle of one batch run
type BatchState string

const (
	BatchStateIdle        BatchState = "idle"
	BatchStateDiscovering BatchState = "discovering"
	BatchStateScanning    BatchState = "scanning"
	BatchStateDraining    BatchState = "draining"
	BatchStateSummarizing BatchState = "summarizing"
	BatchStateDone        BatchState = "done"
	BatchStateFatalAbort  BatchState = "fatal_abort"
)
