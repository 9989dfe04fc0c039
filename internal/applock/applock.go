// Package applock implements the passcode/biometric gate guarding all
// interactive flows.
//
// The gate arms passcode entry when presented and, when biometric
// verification is configured, available on-device, and previously
// provisioned, offers a concurrent biometric challenge as a non-blocking
// secondary channel; passcode entry stays armed as the fallback input.
// Repeated passcode failures past a configured threshold erase every
// cached vault key and force unlocked vaults to re-lock — a deliberate
// blast-radius containment measure, not a bug.
package applock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/benaskins/keygate/internal/audit"
	"github.com/benaskins/keygate/internal/secrets"
)

// LockState is the gate's externally visible state.
type LockState int

const (
	Unlocked LockState = iota
	AwaitingPasscode
	AwaitingBiometric
)

func (s LockState) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case AwaitingPasscode:
		return "awaiting_passcode"
	default:
		return "awaiting_biometric"
	}
}

var (
	// ErrPasscodeMismatch: the submitted passcode did not match.
	ErrPasscodeMismatch = errors.New("passcode mismatch")

	// ErrBiometricFailure: the biometric challenge failed or was
	// dismissed. Passcode entry remains armed.
	ErrBiometricFailure = errors.New("biometric verification failed")

	// ErrGateHidden: the gate was cancelled while no UI was present.
	// The gate must never be shown in background mode, so this is a
	// programming error on the caller's side.
	ErrGateHidden = errors.New("app-lock gate cancelled without UI")
)

// Authenticator abstracts the biometric device.
type Authenticator interface {
	// Available reports whether biometric hardware is usable right now.
	Available() bool

	// Authenticate runs one challenge. Blocks until the user responds
	// or ctx is done.
	Authenticate(ctx context.Context, reason string) error
}

// Config carries the gate's parameters, read from settings.
type Config struct {
	// PasscodeHash is the argon2id-encoded passcode. Empty means no
	// passcode is configured and the gate passes immediately.
	PasscodeHash string

	// Threshold is the consecutive-failure count that triggers the
	// cached-key wipe.
	Threshold int

	BiometricEnabled bool

	// Reprompt throttles how often a biometric challenge is offered.
	Reprompt time.Duration
}

// Gate is the app-lock state machine. All mutation is serialized through
// its mutex; the biometric challenge runs in the background and posts its
// completion through BiometricDone.
type Gate struct {
	cfg    Config
	keys   secrets.Store
	auth   Authenticator
	audit  audit.Recorder
	logger *slog.Logger

	// promptLimiter refills one biometric offer per Reprompt interval.
	promptLimiter *rate.Limiter

	mu          sync.Mutex
	state       LockState
	failures    int
	provisioned bool // biometric reuse allowed after a passcode success
	challenge   bool // one outstanding biometric challenge at a time

	// onUnlocked fires after any successful unlock.
	onUnlocked func()
	// onWiped fires after a threshold wipe so the owner can re-lock any
	// open vault.
	onWiped func()
}

// Option configures the gate.
type Option func(*Gate)

// WithAuthenticator sets the biometric device.
func WithAuthenticator(a Authenticator) Option {
	return func(g *Gate) { g.auth = a }
}

// WithAudit sets the audit recorder.
func WithAudit(r audit.Recorder) Option {
	return func(g *Gate) { g.audit = r }
}

// WithUnlocked registers the unlock notification.
func WithUnlocked(fn func()) Option {
	return func(g *Gate) { g.onUnlocked = fn }
}

// WithWiped registers the post-wipe notification.
func WithWiped(fn func()) Option {
	return func(g *Gate) { g.onWiped = fn }
}

// New creates a gate. The gate starts locked unless no passcode is
// configured.
func New(cfg Config, keys secrets.Store, opts ...Option) *Gate {
	g := &Gate{
		cfg:           cfg,
		keys:          keys,
		audit:         audit.Discard{},
		logger:        slog.With("component", "applock"),
		promptLimiter: rate.NewLimiter(rate.Every(cfg.Reprompt), 1),
		state:         AwaitingPasscode,
	}
	if cfg.PasscodeHash == "" {
		g.state = Unlocked
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// State returns the current lock state.
func (g *Gate) State() LockState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// IsUnlocked reports whether interactive flows may proceed.
func (g *Gate) IsUnlocked() bool { return g.State() == Unlocked }

// Present arms passcode entry and, if eligible, launches the biometric
// challenge. Presenting an already unlocked gate is a no-op.
func (g *Gate) Present(ctx context.Context) {
	g.mu.Lock()
	if g.state == Unlocked {
		g.mu.Unlock()
		return
	}
	g.state = AwaitingPasscode

	offer := g.cfg.BiometricEnabled &&
		g.auth != nil && g.auth.Available() &&
		g.provisioned &&
		!g.challenge &&
		g.promptLimiter.Allow()
	if offer {
		g.challenge = true
		g.state = AwaitingBiometric
	}
	g.mu.Unlock()

	if offer {
		go func() {
			err := g.auth.Authenticate(ctx, "Unlock keygate")
			g.BiometricDone(err)
		}()
	}
}

// SubmitPasscode checks the passcode. On success the gate unlocks, the
// failure counter resets, and biometric reuse is provisioned. On failure
// the counter increments and, at the configured threshold, every cached
// vault key is wiped and unlocked vaults are forced to re-lock.
func (g *Gate) SubmitPasscode(passcode string) error {
	ok, err := VerifyPasscode(passcode, g.cfg.PasscodeHash)
	if err != nil {
		return err
	}

	if ok {
		g.mu.Lock()
		g.failures = 0
		g.provisioned = true
		g.state = Unlocked
		g.mu.Unlock()

		g.logger.Info("gate unlocked", "method", "passcode")
		g.notifyUnlocked()
		return nil
	}

	g.mu.Lock()
	g.failures++
	failures := g.failures
	wipe := g.cfg.Threshold > 0 && failures >= g.cfg.Threshold
	if wipe {
		// The wipe is the terminal sanction; counting past it would
		// re-trigger on the next miss.
		g.failures = 0
	}
	g.mu.Unlock()

	g.audit.Log(audit.Entry{Action: audit.ActionPasscodeFail})
	g.logger.Warn("passcode rejected", "consecutive_failures", failures)

	if wipe {
		g.wipeAll()
	}
	return ErrPasscodeMismatch
}

// BiometricDone posts the completion of the outstanding biometric
// challenge. Success unlocks; failure leaves passcode entry armed and
// focused.
func (g *Gate) BiometricDone(err error) {
	g.mu.Lock()
	if !g.challenge {
		// Late completion of a forgotten challenge.
		g.mu.Unlock()
		return
	}
	g.challenge = false

	if err != nil {
		if g.state == AwaitingBiometric {
			g.state = AwaitingPasscode
		}
		g.mu.Unlock()
		g.logger.Info("biometric challenge failed, passcode entry armed", "error", err)
		return
	}

	g.failures = 0
	g.state = Unlocked
	g.mu.Unlock()

	g.audit.Log(audit.Entry{Action: audit.ActionBiometricOK})
	g.logger.Info("gate unlocked", "method", "biometric")
	g.notifyUnlocked()
}

// Cancel dismisses the gate. hasUI false is illegal: the gate is never
// shown in background mode.
func (g *Gate) Cancel(hasUI bool) error {
	if !hasUI {
		return ErrGateHidden
	}
	g.mu.Lock()
	g.challenge = false
	g.mu.Unlock()
	return nil
}

// Relock forces the gate closed, for watchdog expiry.
func (g *Gate) Relock() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cfg.PasscodeHash == "" {
		return
	}
	g.state = AwaitingPasscode
}

func (g *Gate) notifyUnlocked() {
	if g.onUnlocked != nil {
		g.onUnlocked()
	}
}

func (g *Gate) wipeAll() {
	if err := g.keys.WipeAll(); err != nil {
		g.logger.Error("cached key wipe failed", "error", err)
		g.audit.Log(audit.Entry{Action: audit.ActionKeyWipe, Error: err.Error()})
	} else {
		g.logger.Warn("cached keys wiped after repeated passcode failures")
		g.audit.Log(audit.Entry{Action: audit.ActionKeyWipe})
	}
	if g.onWiped != nil {
		g.onWiped()
	}
}
