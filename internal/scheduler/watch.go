package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// WatchState tracks a full-rescan request through its lifecycle. Terminal
// states are Done, Failed, and TimedOut; a handle never leaves a terminal
// state.
type WatchState string

const (
	StateIdle      WatchState = "idle"
	StateRequested WatchState = "requested"
	StateRunning   WatchState = "running"
	StateDone      WatchState = "done"
	StateFailed    WatchState = "failed"
	StateTimedOut  WatchState = "timed_out"
)

// Terminal reports whether the state admits no further transitions.
func (s WatchState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateTimedOut
}

// CheckFunc probes whether the watched work has drained. It returns true
// when no stale work remains.
type CheckFunc func(ctx context.Context) (bool, error)

// Watcher polls a CheckFunc at a fixed interval until it reports completion,
// errors, or the attempt budget runs out. It backs a full rescan: the caller
// forces everything stale, then watches the stale count drain to zero across
// scheduler invocations.
type Watcher struct {
	interval    time.Duration
	maxAttempts int
}

// NewWatcher creates a Watcher. maxAttempts bounds total polls so an
// abandoned rescan cannot watch forever.
func NewWatcher(interval time.Duration, maxAttempts int) *Watcher {
	return &Watcher{interval: interval, maxAttempts: maxAttempts}
}

// Handle is a live view of one watch. Safe for concurrent use.
type Handle struct {
	mu     sync.Mutex
	state  WatchState
	err    error
	done   chan struct{}
	cancel context.CancelFunc
}

// State returns the current lifecycle state.
func (h *Handle) State() WatchState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the failure cause once the handle is in StateFailed.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done is closed when the handle reaches a terminal state.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Cancel stops the watch. A watch cancelled before completion lands in
// StateFailed with a cancellation error.
func (h *Handle) Cancel() {
	h.cancel()
}

func (h *Handle) transition(state WatchState, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state.Terminal() {
		return
	}
	h.state = state
	h.err = err
	if state.Terminal() {
		close(h.done)
	}
}

// Watch starts polling check in the background and returns immediately. The
// handle starts in StateRequested and moves to StateRunning on the first
// poll.
func (w *Watcher) Watch(ctx context.Context, check CheckFunc) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		state:  StateRequested,
		done:   make(chan struct{}),
		cancel: cancel,
	}

	go func() {
		defer cancel()
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for attempt := 0; attempt < w.maxAttempts; attempt++ {
			select {
			case <-ctx.Done():
				h.transition(StateFailed, eris.Wrap(ctx.Err(), "watch: cancelled"))
				return
			case <-ticker.C:
			}

			h.transition(StateRunning, nil)
			done, err := check(ctx)
			if err != nil {
				h.transition(StateFailed, eris.Wrap(err, "watch: check"))
				return
			}
			if done {
				h.transition(StateDone, nil)
				return
			}
		}

		h.transition(StateTimedOut, nil)
	}()

	return h
}
