// Package watchdog tracks user inactivity and tells the coordinator when
// interactive flows must pass the app-lock gate again.
//
// The watchdog owns no UI. It survives being queried with no active
// request (idle background state) and stops firing once detached.
package watchdog

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const tickInterval = time.Second

// Watchdog arms a "must lock" signal after a period of inactivity, or
// immediately on ForceLock.
type Watchdog struct {
	timeout time.Duration
	logger  *slog.Logger

	mu       sync.Mutex
	now      func() time.Time
	deadline time.Time
	armed    bool
	notified bool
	cancel   context.CancelFunc
	done     chan struct{}

	// onMustLock fires once per arming, from the ticker loop.
	onMustLock func()
}

// Option configures the watchdog.
type Option func(*Watchdog)

// WithClock injects a clock for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(w *Watchdog) { w.now = now }
}

// WithMustLock registers the must-lock notification callback. It runs on
// the expiry loop and must not call back into the watchdog's owner
// synchronously; post the signal from another goroutine instead.
func WithMustLock(fn func()) Option {
	return func(w *Watchdog) { w.onMustLock = fn }
}

// New creates a watchdog with the given inactivity timeout. The countdown
// starts immediately.
func New(timeout time.Duration, opts ...Option) *Watchdog {
	w := &Watchdog{
		timeout: timeout,
		logger:  slog.With("component", "watchdog"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.deadline = w.now().Add(timeout)
	return w
}

// NoteActivity resets the inactivity deadline. A no-op while armed: once
// the lock is demanded, only Unlocked clears it.
func (w *Watchdog) NoteActivity() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.armed {
		return
	}
	w.deadline = w.now().Add(w.timeout)
}

// Expired reports whether the gate must be passed before showing any
// interactive flow.
func (w *Watchdog) Expired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expiredLocked()
}

func (w *Watchdog) expiredLocked() bool {
	if w.armed {
		return true
	}
	if !w.now().Before(w.deadline) {
		w.armed = true
	}
	return w.armed
}

// ForceLock arms the lock immediately, regardless of deadline.
func (w *Watchdog) ForceLock() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = true
}

// Unlocked clears the armed state after a successful gate pass and
// resumes the idle countdown.
func (w *Watchdog) Unlocked() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.armed = false
	w.notified = false
	w.deadline = w.now().Add(w.timeout)
}

// Start begins the background expiry loop that delivers the must-lock
// notification.
func (w *Watchdog) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.cancel = cancel
	w.done = make(chan struct{})
	w.mu.Unlock()

	go w.run(ctx)
}

// Stop halts the expiry loop and detaches the callback, so the watchdog
// cannot fire while the request is being torn down.
func (w *Watchdog) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	done := w.done
	w.onMustLock = nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (w *Watchdog) run(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		w.cancel = nil
		close(w.done)
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick()
		case <-ctx.Done():
			return
		}
	}
}

// tick checks expiry and delivers the notification at most once per
// arming. Exported to the package's tests via Tick.
func (w *Watchdog) tick() {
	w.mu.Lock()
	fire := w.expiredLocked() && !w.notified && w.onMustLock != nil
	if fire {
		w.notified = true
	}
	fn := w.onMustLock
	w.mu.Unlock()

	if fire {
		w.logger.Info("inactivity deadline elapsed, demanding lock")
		fn()
	}
}

// Tick runs one expiry check synchronously. Deterministic test entry point.
func (w *Watchdog) Tick() { w.tick() }
