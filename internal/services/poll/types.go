package poll

import (
	"context"
	"time"
)

// Phase is a state of the poll loop's state machine. The machine moves
// Idle -> Polling -> one of the terminal phases and never backwards.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhasePolling   Phase = "polling"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
	PhaseTimedOut  Phase = "timed_out"
)

// Terminal reports whether the phase has no outgoing transitions
func (p Phase) Terminal() bool {
	return p == PhaseCompleted || p == PhaseFailed || p == PhaseTimedOut
}

// Backend status strings as returned by the status endpoint. Anything
// else is treated as "processing" (lenient default, logged).
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Job identifies one submitted report-analysis request
type Job struct {
	ID          string
	SubmittedAt time.Time
}

// Snapshot is the ephemeral result of one status query. Progress is
// optional; ErrorMessage is only meaningful when Status is "failed".
type Snapshot struct {
	Status       string
	Progress     *int
	ErrorMessage string
}

// State is the externally observable loop state. Progress is 0-100 and
// monotonically non-decreasing within one loop's lifetime; it reaches
// 100 only on the Completed transition.
type State struct {
	Phase     Phase
	Progress  int
	LastError string
}

// StatusSource answers idempotent, read-only status queries for a job.
// A plain error is treated as transient and retried on cadence; an
// error exposing Fatal() bool true (see api.StatusError) fails the job
// immediately.
type StatusSource interface {
	JobStatus(ctx context.Context, jobID string) (*Snapshot, error)
}

// Config tunes one loop. Zero values fall back to the defaults below;
// tests shrink the durations to run on short real timers.
type Config struct {
	// Interval between consecutive status queries
	Interval time.Duration
	// Timeout is the wall-clock ceiling measured from Start, checked
	// before each query
	Timeout time.Duration
	// EstimatedDuration feeds the progress heuristic. This is a
	// placeholder policy calibrated to nothing in particular.
	EstimatedDuration time.Duration
	// CompletionDelay holds the full progress bar briefly before the
	// Completed terminal fires
	CompletionDelay time.Duration
	// OnProgress, if set, is invoked after every observable state
	// update while the loop is still polling
	OnProgress func(State)
}

const (
	defaultInterval          = 2000 * time.Millisecond
	defaultTimeout           = 60000 * time.Millisecond
	defaultEstimatedDuration = 20 * time.Second
	defaultCompletionDelay   = 500 * time.Millisecond

	// minProgress signals activity even before any elapsed time has
	// accumulated; maxPollingProgress leaves headroom so 100 is only
	// ever pinned on completion.
	minProgress        = 10
	maxPollingProgress = 90
)

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = defaultInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	if c.EstimatedDuration <= 0 {
		c.EstimatedDuration = defaultEstimatedDuration
	}
	if c.CompletionDelay <= 0 {
		c.CompletionDelay = defaultCompletionDelay
	}
	return c
}
