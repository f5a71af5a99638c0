package poll

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrAlreadyStarted is returned when Start is called on a loop that was
// already started or cancelled. A loop is single-use: one Job, one
// terminal transition, then it is consumed.
var ErrAlreadyStarted = errors.New("poll loop already started")

// genericFailureMessage is surfaced when the backend reports a failure
// without an error message of its own.
const genericFailureMessage = "report analysis failed"

// Loop drives repeated status queries for one job on a fixed cadence,
// enforces the wall-clock timeout, classifies failures, and fires the
// terminal callback exactly once. At most one query is ever in flight,
// so responses are processed strictly in issue order.
type Loop struct {
	source StatusSource
	cfg    Config

	mu        sync.Mutex
	state     State
	started   bool
	cancelled bool

	// cancelCh is closed by Cancel; it suppresses pending timers and
	// any in-flight query's effect on state.
	cancelCh chan struct{}
}

// New creates an idle loop bound to the given status source
func New(source StatusSource, cfg Config) *Loop {
	return &Loop{
		source:   source,
		cfg:      cfg.withDefaults(),
		state:    State{Phase: PhaseIdle},
		cancelCh: make(chan struct{}),
	}
}

// Start transitions Idle -> Polling and begins querying in a background
// goroutine, the first query issued immediately. onTerminal fires
// exactly once with a terminal state, and never after Cancel.
func (l *Loop) Start(job Job, onTerminal func(State)) error {
	l.mu.Lock()
	if l.started || l.cancelled {
		l.mu.Unlock()
		return ErrAlreadyStarted
	}
	l.started = true
	l.state = State{Phase: PhasePolling}
	l.mu.Unlock()

	go l.run(job, onTerminal)
	return nil
}

// Cancel is idempotent and callable from any state. It suppresses any
// pending scheduled query, the cosmetic completion delay, and the
// effect of a query already in flight; no onTerminal firing can happen
// after it returns. The loop is consumed and must not be reused.
func (l *Loop) Cancel() {
	l.mu.Lock()
	if !l.cancelled {
		l.cancelled = true
		close(l.cancelCh)
	}
	l.mu.Unlock()
}

// State returns a copy of the current observable state
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Loop) run(job Job, onTerminal func(State)) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Propagate Cancel into the in-flight request
	go func() {
		select {
		case <-l.cancelCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	start := time.Now()

	for {
		// Timeout is checked before each query, regardless of the last
		// known status
		if time.Since(start) >= l.cfg.Timeout {
			l.finish(PhaseTimedOut, fmt.Sprintf("no result after %v", l.cfg.Timeout), onTerminal)
			return
		}

		snap, err := l.source.JobStatus(ctx, job.ID)

		// A query resolving after Cancel must not touch state
		if l.isCancelled() {
			return
		}

		if err != nil {
			if isFatal(err) {
				// Retrying cannot succeed (unknown job, malformed request)
				l.finish(PhaseFailed, err.Error(), onTerminal)
				return
			}
			// Transient transport hiccup: retry on cadence, never
			// surfaced per-occurrence
			log.Printf("WARNING: status query for job %s failed (will retry): %v", job.ID, err)
		} else {
			switch snap.Status {
			case StatusCompleted:
				l.setProgress(100)
				// Cosmetic delay so observers can render the full bar
				if !l.wait(l.cfg.CompletionDelay) {
					return
				}
				l.finish(PhaseCompleted, "", onTerminal)
				return

			case StatusFailed:
				msg := snap.ErrorMessage
				if msg == "" {
					msg = genericFailureMessage
				}
				l.finish(PhaseFailed, msg, onTerminal)
				return

			case StatusProcessing:
				l.advanceProgress(start, snap)

			default:
				log.Printf("WARNING: unrecognized status %q for job %s, treating as processing", snap.Status, job.ID)
				l.advanceProgress(start, snap)
			}
		}

		if !l.wait(l.cfg.Interval) {
			return
		}
	}
}

// advanceProgress folds elapsed time and any server-supplied progress
// into the monotonic progress value. While polling the value is capped
// below 100 so the bar only fills on completion.
func (l *Loop) advanceProgress(start time.Time, snap *Snapshot) {
	elapsed := time.Since(start)
	estimated := float64(elapsed) / float64(l.cfg.EstimatedDuration) * float64(maxPollingProgress)

	candidate := int(estimated)
	if candidate > maxPollingProgress {
		candidate = maxPollingProgress
	}
	if snap.Progress != nil && *snap.Progress > candidate {
		candidate = *snap.Progress
		if candidate > maxPollingProgress {
			candidate = maxPollingProgress
		}
	}
	if candidate < minProgress {
		candidate = minProgress
	}

	l.mu.Lock()
	if l.cancelled || l.state.Phase.Terminal() {
		l.mu.Unlock()
		return
	}
	if candidate > l.state.Progress {
		l.state.Progress = candidate
	}
	st := l.state
	l.mu.Unlock()

	if l.cfg.OnProgress != nil {
		l.cfg.OnProgress(st)
	}
}

// setProgress raises progress to the given value without firing OnProgress
func (l *Loop) setProgress(progress int) {
	l.mu.Lock()
	if !l.cancelled && progress > l.state.Progress {
		l.state.Progress = progress
	}
	l.mu.Unlock()
}

// finish applies the terminal transition and fires onTerminal, unless
// the loop was cancelled or already reached a terminal phase
func (l *Loop) finish(phase Phase, errMsg string, onTerminal func(State)) {
	l.mu.Lock()
	if l.cancelled || l.state.Phase.Terminal() {
		l.mu.Unlock()
		return
	}
	l.state.Phase = phase
	if phase == PhaseCompleted {
		l.state.Progress = 100
	}
	if phase != PhaseCompleted && errMsg != "" {
		l.state.LastError = errMsg
	}
	st := l.state
	l.mu.Unlock()

	if onTerminal != nil {
		onTerminal(st)
	}
}

// wait sleeps for d unless the loop is cancelled first; returns false
// on cancellation
func (l *Loop) wait(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-l.cancelCh:
		return false
	}
}

func (l *Loop) isCancelled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancelled
}

// fatalError is implemented by errors whose requests can never succeed
// on retry (see api.StatusError)
type fatalError interface {
	Fatal() bool
}

func isFatal(err error) bool {
	var fe fatalError
	return errors.As(err, &fe) && fe.Fatal()
}
