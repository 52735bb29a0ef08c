// Package poll implements adaptive status polling for orchestrator jobs.
//
// poller.go - Adaptive polling loop
//
// This file contains:
// - Strategy and Tuning: interval configuration with a global clamp
// - Watcher: one goroutine per watched job driving Status calls until a
//   terminal status is observed, then a single Result fetch on success
//
// Interval selection adapts to what the job is doing: exponential
// backoff while the job is still queued, a fast steady interval while
// the job shows movement, a medium steady interval once progress has
// stalled, and exponential backoff across consecutive fetch failures.
// Every computed delay passes through the global [MinInterval,
// MaxInterval] clamp before the loop sleeps on it.

package poll

import (
	"context"
	"sync"
	"time"

	"github.com/HyphaGroup/gevulot/internal/bridge"
	"github.com/HyphaGroup/gevulot/internal/logger"
	"github.com/HyphaGroup/gevulot/internal/metrics"
)

// Strategy names used for logging and metrics labels
const (
	strategyPending       = "pending"
	strategyActive        = "active"
	strategyLongRunning   = "long_running"
	strategyErrorRecovery = "error_recovery"
)

// JobAPI is the slice of the orchestrator client the watcher needs
type JobAPI interface {
	Status(ctx context.Context, jobID string) (*bridge.Job, error)
	Result(ctx context.Context, jobID string) (*bridge.JobResult, error)
}

// Strategy is one interval policy: Base is the starting delay, Max the
// ceiling for that policy. Backoff policies double toward Max; steady
// policies sit on Base.
type Strategy struct {
	Base time.Duration
	Max  time.Duration
}

// Tuning holds every knob of the polling loop
type Tuning struct {
	Pending       Strategy
	Active        Strategy
	LongRunning   Strategy
	ErrorRecovery Strategy

	// Global clamp applied after strategy selection
	MinInterval time.Duration
	MaxInterval time.Duration

	// MaxAttempts bounds status fetches; 0 uses the default
	MaxAttempts int

	// StallThreshold is how long a processing job may show no movement
	// before the loop shifts to the longRunning interval
	StallThreshold time.Duration

	// FailureLimit is the number of consecutive fetch failures tolerated
	// before the watch gives up
	FailureLimit int
}

// DefaultTuning returns the production defaults
func DefaultTuning() Tuning {
	return Tuning{
		Pending:        Strategy{Base: time.Second, Max: 30 * time.Second},
		Active:         Strategy{Base: 500 * time.Millisecond, Max: 2 * time.Second},
		LongRunning:    Strategy{Base: 5 * time.Second, Max: 5 * time.Second},
		ErrorRecovery:  Strategy{Base: 2 * time.Second, Max: 15 * time.Second},
		MinInterval:    250 * time.Millisecond,
		MaxInterval:    30 * time.Second,
		MaxAttempts:    240,
		StallThreshold: 30 * time.Second,
		FailureLimit:   3,
	}
}

// normalized fills zero-valued fields from the defaults
func (t Tuning) normalized() Tuning {
	def := DefaultTuning()
	fill := func(s *Strategy, d Strategy) {
		if s.Base <= 0 {
			s.Base = d.Base
		}
		if s.Max <= 0 {
			s.Max = d.Max
		}
	}
	fill(&t.Pending, def.Pending)
	fill(&t.Active, def.Active)
	fill(&t.LongRunning, def.LongRunning)
	fill(&t.ErrorRecovery, def.ErrorRecovery)
	if t.MinInterval <= 0 {
		t.MinInterval = def.MinInterval
	}
	if t.MaxInterval <= 0 {
		t.MaxInterval = def.MaxInterval
	}
	if t.MaxAttempts <= 0 {
		t.MaxAttempts = def.MaxAttempts
	}
	if t.StallThreshold <= 0 {
		t.StallThreshold = def.StallThreshold
	}
	if t.FailureLimit <= 0 {
		t.FailureLimit = def.FailureLimit
	}
	return t
}

// clamp applies the global interval window
func (t Tuning) clamp(d time.Duration) time.Duration {
	if d < t.MinInterval {
		d = t.MinInterval
	}
	if d > t.MaxInterval {
		d = t.MaxInterval
	}
	return d
}

// backoffDelay doubles Base per consecutive observation, capped at Max
func backoffDelay(s Strategy, consecutive int) time.Duration {
	d := s.Base
	for i := 1; i < consecutive; i++ {
		d *= 2
		if d >= s.Max {
			return s.Max
		}
	}
	if d > s.Max {
		return s.Max
	}
	return d
}

// steadyDelay returns Base bounded by Max
func steadyDelay(s Strategy) time.Duration {
	if s.Base > s.Max {
		return s.Max
	}
	return s.Base
}

// Options configures a Watch call
type Options struct {
	Tuning Tuning

	// Clock overrides the time source, mainly for tests; nil means wall clock
	Clock Clock

	// Buffer is the Updates channel capacity; 0 uses a small default
	Buffer int
}

// Watcher polls one job until it reaches a terminal status.
//
// Consumers receive every successful status snapshot on Updates, wait on
// Done, then read the outcome from Result. After Done is closed nothing
// is delivered on any channel and Result answers stably.
type Watcher struct {
	api    JobAPI
	jobID  string
	tuning Tuning
	clock  Clock

	updates chan *bridge.Job
	done    chan struct{}

	cancel   context.CancelFunc
	stopOnce sync.Once

	mu     sync.Mutex
	result *bridge.JobResult
	err    error
}

// Watch starts polling jobID and returns immediately. The loop stops
// when the job reaches a terminal status, the attempt or failure limits
// trip, ctx is cancelled, or Stop is called.
func Watch(ctx context.Context, api JobAPI, jobID string, opts Options) *Watcher {
	clock := opts.Clock
	if clock == nil {
		clock = WallClock()
	}
	buffer := opts.Buffer
	if buffer <= 0 {
		buffer = 16
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		api:     api,
		jobID:   jobID,
		tuning:  opts.Tuning.normalized(),
		clock:   clock,
		updates: make(chan *bridge.Job, buffer),
		done:    make(chan struct{}),
		cancel:  cancel,
	}

	go w.run(ctx)
	return w
}

// Updates delivers one snapshot per successful status fetch. The channel
// closes when the watch ends; consumers must drain it to keep the loop
// moving.
func (w *Watcher) Updates() <-chan *bridge.Job {
	return w.updates
}

// Done closes when the watch has ended for any reason
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Result returns the outcome. Valid once Done is closed: a JobResult on
// completion, otherwise the error that ended the watch.
func (w *Watcher) Result() (*bridge.JobResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result, w.err
}

// Wait blocks until the watch ends or ctx expires
func (w *Watcher) Wait(ctx context.Context) (*bridge.JobResult, error) {
	select {
	case <-w.done:
		return w.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop cancels the watch. An in-flight fetch completes and is discarded
// at the next suspension point; nothing is delivered afterwards.
func (w *Watcher) Stop() {
	w.stopOnce.Do(w.cancel)
}

func (w *Watcher) finish(result *bridge.JobResult, err error) {
	w.mu.Lock()
	w.result = result
	w.err = err
	w.mu.Unlock()
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.updates)
	defer w.cancel()

	var (
		prev     *bridge.Job
		pendings int
		failures int
		strategy = strategyActive
	)
	start := w.clock.Now()
	lastMovement := start

	for attempt := 1; ; attempt++ {
		if attempt > w.tuning.MaxAttempts {
			elapsed := w.clock.Now().Sub(start)
			logger.Error("poll %s: gave up after %d attempts (%s)", w.jobID, w.tuning.MaxAttempts, elapsed.Round(time.Second))
			w.finish(nil, &bridge.TimeoutError{Op: "poll", JobID: w.jobID, Attempts: w.tuning.MaxAttempts, Elapsed: elapsed})
			return
		}

		metrics.RecordPollAttempt(strategy)
		job, err := w.api.Status(ctx, w.jobID)
		if ctx.Err() != nil {
			w.finish(nil, ctx.Err())
			return
		}

		var delay time.Duration
		if err != nil {
			failures++
			logger.Error("poll %s: status fetch failed (%d/%d): %v", w.jobID, failures, w.tuning.FailureLimit, err)
			if failures >= w.tuning.FailureLimit {
				w.finish(nil, &bridge.ConsecutiveFailureError{JobID: w.jobID, Count: failures, Last: err})
				return
			}
			strategy = strategyErrorRecovery
			delay = backoffDelay(w.tuning.ErrorRecovery, failures)
		} else {
			failures = 0

			if !w.deliver(ctx, job) {
				w.finish(nil, ctx.Err())
				return
			}

			switch job.Status {
			case bridge.JobCompleted:
				result, rerr := w.api.Result(ctx, w.jobID)
				if ctx.Err() != nil {
					w.finish(nil, ctx.Err())
					return
				}
				if rerr != nil {
					logger.Error("poll %s: result fetch failed: %v", w.jobID, rerr)
					w.finish(nil, rerr)
					return
				}
				w.finish(result, nil)
				return
			case bridge.JobFailed:
				w.finish(nil, &bridge.JobFailedError{JobID: w.jobID, Reason: job.Error})
				return
			case bridge.JobCancelled:
				w.finish(nil, &bridge.JobCancelledError{JobID: w.jobID})
				return
			}

			now := w.clock.Now()
			moved := prev == nil || job.Status != prev.Status || job.Progress != prev.Progress
			if moved {
				lastMovement = now
				if !job.Status.Valid() {
					logger.Error("poll %s: orchestrator reported unknown status %q", w.jobID, job.Status)
				}
			}

			if job.Status == bridge.JobPending {
				pendings++
				strategy = strategyPending
				delay = backoffDelay(w.tuning.Pending, pendings)
			} else {
				pendings = 0
				if now.Sub(lastMovement) >= w.tuning.StallThreshold {
					strategy = strategyLongRunning
					delay = steadyDelay(w.tuning.LongRunning)
				} else {
					strategy = strategyActive
					delay = steadyDelay(w.tuning.Active)
				}
			}
			prev = job
		}

		select {
		case <-ctx.Done():
			w.finish(nil, ctx.Err())
			return
		case <-w.clock.After(w.tuning.clamp(delay)):
		}
	}
}

// deliver sends a snapshot, giving up only on cancellation
func (w *Watcher) deliver(ctx context.Context, job *bridge.Job) bool {
	select {
	case w.updates <- job:
		return true
	case <-ctx.Done():
		return false
	}
}
