package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/benaskins/keygate/internal/applock"
	"github.com/benaskins/keygate/internal/audit"
	"github.com/benaskins/keygate/internal/quickmatch"
	"github.com/benaskins/keygate/internal/settings"
	"github.com/benaskins/keygate/internal/vault"
	"github.com/benaskins/keygate/internal/watchdog"
)

// Phase is the coordinator's position in the request lifecycle.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseFastPath
	PhaseLocked
	PhasePicking
	PhaseUnlocking
	PhaseBrowsing
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseFastPath:
		return "fast_path"
	case PhaseLocked:
		return "locked"
	case PhasePicking:
		return "picking"
	case PhaseUnlocking:
		return "unlocking"
	case PhaseBrowsing:
		return "browsing"
	default:
		return "done"
	}
}

// Coordinator drives one fulfillment request to exactly one outcome.
// All state transitions are serialized through its mutex: UI actions,
// loader completions, watchdog ticks, and gate results arrive as posted
// events, and the coordinator is the only writer of its state.
type Coordinator struct {
	host     Host
	catalog  *settings.Catalog
	resolver *quickmatch.Resolver
	loader   vault.Loader
	gate     *applock.Gate
	dog      *watchdog.Watchdog
	flows    Flows
	index    quickmatch.Index
	audit    audit.Recorder
	logger   *slog.Logger

	mu        sync.Mutex
	phase     Phase
	req       Request
	hasUI     bool
	child     Child
	childKind childKind

	// childGen fences events from stopped children: each start bumps
	// the generation and stamps it into the child's emit closure, so a
	// late emit from a torn-down flow is a no-op rather than a
	// wrong-phase violation.
	childGen uint64

	// resume is the phase to re-enter after the gate clears mid-flow.
	resume Phase

	// pendingQuick is a quick-match key carried into interactive mode,
	// retried once its vault is unlocked.
	pendingQuick *quickmatch.Key

	// currentRef is the vault bound to the active unlocker or browser,
	// so a gate interruption can resume the same vault.
	currentRef vault.Ref

	// Fast-path load bookkeeping. loadGen fences late completions of
	// forgotten loads; loadKey is wiped on completion or forget.
	loadGen     uint64
	pendingLoad *vault.Pending
	loadKey     *vault.Key
	loadItemID  string

	// store is the vault opened during the interactive flow.
	store vault.Store
}

// Option configures the coordinator.
type Option func(*Coordinator)

// WithIndex sets the quick-match index, purged when found stale.
func WithIndex(ix quickmatch.Index) Option {
	return func(c *Coordinator) { c.index = ix }
}

// WithAudit sets the audit recorder.
func WithAudit(r audit.Recorder) Option {
	return func(c *Coordinator) { c.audit = r }
}

// New creates a coordinator for a single logical session.
func New(host Host, catalog *settings.Catalog, resolver *quickmatch.Resolver,
	loader vault.Loader, gate *applock.Gate, dog *watchdog.Watchdog,
	flows Flows, opts ...Option) *Coordinator {
	c := &Coordinator{
		host:     host,
		catalog:  catalog,
		resolver: resolver,
		loader:   loader,
		gate:     gate,
		dog:      dog,
		flows:    flows,
		audit:    audit.Discard{},
		logger:   slog.With("component", "session"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentPhase returns the current phase.
func (c *Coordinator) CurrentPhase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// ProvideWithoutUI attempts silent fulfillment. No UI is ever presented:
// the request terminates with the credential or a cancellation the host
// can retry with UI. Background OS invocations must never block on user
// presence, so the gate is not involved.
func (c *Coordinator) ProvideWithoutUI(ctx context.Context, req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseInit {
		return c.invariantLocked("ProvideWithoutUI on phase %s", c.phase)
	}
	c.req = req
	c.hasUI = false
	c.phase = PhaseFastPath
	c.logger.Info("silent fulfillment requested", "request", req.ID, "services", req.ServiceIDs)

	if req.RecordID == "" {
		// Nothing to match silently.
		return c.finishLocked(Cancelled(ReasonInteractionRequired))
	}

	res, err := c.resolver.Resolve(req.RecordID)
	switch {
	case errors.Is(err, quickmatch.ErrMalformedRecord):
		c.logger.Error("quick-match record malformed", "request", req.ID, "error", err)
		return c.finishLocked(Cancelled(ReasonFailed))
	case errors.Is(err, quickmatch.ErrStoreNotFound):
		// The index points at a vault no longer present: purge it.
		if c.index != nil {
			if purgeErr := c.index.RemoveAll(); purgeErr != nil {
				c.logger.Warn("stale index purge failed", "error", purgeErr)
			}
		}
		return c.finishLocked(Cancelled(ReasonInteractionRequired))
	case err != nil:
		// No cached key, or any other recoverable miss: hand off to
		// the interactive retry.
		return c.finishLocked(Cancelled(ReasonInteractionRequired))
	}

	c.startLoadLocked(ctx, res)
	return nil
}

// PrepareUI begins an interactive session. The gate is passed first
// whenever the watchdog demands it or on first interactive entry; a
// quick-match record, if present and parseable, is retried once its
// vault is unlocked, bypassing manual selection.
func (c *Coordinator) PrepareUI(ctx context.Context, req Request) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.phase != PhaseInit {
		return c.invariantLocked("PrepareUI on phase %s", c.phase)
	}
	c.req = req
	c.hasUI = true
	c.logger.Info("interactive fulfillment requested", "request", req.ID, "services", req.ServiceIDs)

	if req.RecordID != "" {
		if key, err := quickmatch.ParseRecordID(req.RecordID); err == nil {
			c.pendingQuick = &key
		} else {
			// An unparseable record is not fatal interactively; the
			// user simply picks by hand.
			c.logger.Warn("ignoring malformed quick-match record", "error", err)
		}
	}

	// Expiry is checked before the entry counts as activity: a passed
	// deadline must arm, not be refreshed away.
	expired := c.dog.Expired()
	c.dog.NoteActivity()

	if !c.gate.IsUnlocked() || expired {
		c.enterLockedLocked(ctx, PhasePicking)
		return nil
	}
	c.enterInteractiveLocked()
	return nil
}

// Post delivers an event to the coordinator. Events after Done are
// rejected: a terminated request accepts nothing further.
func (c *Coordinator) Post(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Background signals may race the teardown; they are dropped after
	// Done rather than treated as programming errors.
	switch ev.(type) {
	case loadDone, MustLock, CacheWiped, MemoryPressure:
	default:
		if c.phase == PhaseDone {
			return c.invariantLocked("event %T after Done", ev)
		}
	}
	return c.handleLocked(ev)
}

func (c *Coordinator) handleLocked(ev Event) error {
	switch ev := ev.(type) {
	case loadDone:
		return c.onLoadDoneLocked(ev)

	case GateUnlocked:
		return c.onGateUnlockedLocked()

	case GateCanceled:
		if !c.hasUI {
			return c.invariantLocked("gate cancelled without UI")
		}
		return c.finishLocked(Cancelled(ReasonUserCanceled))

	case CacheWiped:
		// Blast-radius containment: any open vault re-locks and the
		// pending quick-match is no longer trustworthy.
		c.closeStoreLocked()
		c.pendingQuick = nil
		c.resume = PhasePicking
		c.logger.Warn("cached keys wiped, open vault re-locked", "request", c.req.ID)
		return nil

	case MustLock:
		return c.onMustLockLocked()

	case VaultPicked:
		if c.phase != PhasePicking {
			return c.invariantLocked("VaultPicked in phase %s", c.phase)
		}
		c.dog.NoteActivity()
		c.enterUnlockingLocked(ev.Ref)
		return nil

	case VaultAdded:
		// Adding a location does not itself transition state.
		c.logger.Info("vault added from picker", "vault", ev.Ref.String())
		return nil

	case UnlockSucceeded:
		return c.onUnlockSucceededLocked(ev)

	case UnlockFailed:
		if c.phase != PhaseUnlocking {
			return c.invariantLocked("UnlockFailed in phase %s", c.phase)
		}
		// The unlocker stays active and offers retry.
		c.dog.NoteActivity()
		c.logger.Info("unlock attempt failed", "kind", ev.Kind.String())
		return nil

	case UnlockerBackedOut:
		if c.phase != PhaseUnlocking {
			return c.invariantLocked("UnlockerBackedOut in phase %s", c.phase)
		}
		c.enterPickingLocked()
		return nil

	case EntryChosen:
		if c.phase != PhaseBrowsing {
			return c.invariantLocked("EntryChosen in phase %s", c.phase)
		}
		c.audit.Log(audit.Entry{
			Action:  audit.ActionFulfillInteractive,
			Request: c.req.ID,
			Item:    ev.Item.ID,
		})
		return c.finishLocked(Fulfilled(Credential{
			Username: ev.Item.Username,
			Password: ev.Item.Password,
			OTP:      ev.Item.OTPSecret,
		}))

	case BrowserLeft:
		if c.phase != PhaseBrowsing {
			return c.invariantLocked("BrowserLeft in phase %s", c.phase)
		}
		// No selection: stop the child and stay re-enterable.
		c.closeStoreLocked()
		c.enterPickingLocked()
		return nil

	case ChildCanceled:
		return c.finishLocked(Cancelled(ReasonUserCanceled))

	case MemoryPressure:
		// Advisory: forget the in-flight load without waiting; a late
		// completion event is a no-op. The session itself survives.
		c.forgetLoadLocked()
		return nil

	default:
		return c.invariantLocked("unknown event %T", ev)
	}
}

// --- fast path ---

func (c *Coordinator) startLoadLocked(ctx context.Context, res quickmatch.Resolution) {
	c.loadGen++
	gen := c.loadGen
	c.loadKey = res.Key
	c.loadItemID = res.ItemID

	c.logger.Info("silent load started", "request", c.req.ID, "vault", res.Ref.String())

	c.pendingLoad = c.loader.Load(ctx, res.Ref, res.Key, vault.ReadOnly, res.Timeout, vault.Callbacks{
		OnSuccess: func(store vault.Store, warnings []string) {
			for _, w := range warnings {
				c.logger.Warn("vault loaded with warning", "vault", res.Ref.String(), "warning", w)
			}
			c.post(loadDone{gen: gen, store: store})
		},
		OnFailure: func(kind vault.FailKind) {
			c.post(loadDone{gen: gen, failed: true, kind: kind})
		},
	})
}

// post delivers internally generated events, dropping the invariant
// error: late completions are expected and already fenced by generation.
func (c *Coordinator) post(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.handleLocked(ev)
}

func (c *Coordinator) onLoadDoneLocked(ev loadDone) error {
	if ev.gen != c.loadGen || c.loadKey == nil {
		// Completion of a forgotten load.
		if ev.store != nil {
			ev.store.Close()
		}
		return nil
	}

	// The key was scoped to this attempt; completion ends its life.
	c.loadKey.Wipe()
	c.loadKey = nil
	c.pendingLoad = nil

	if ev.failed {
		c.logger.Info("silent load failed", "request", c.req.ID, "kind", ev.kind.String())
		if ev.kind == vault.FailOther {
			// Crash-class loader error.
			return c.finishLocked(Cancelled(ReasonFailed))
		}
		return c.finishLocked(Cancelled(ReasonInteractionRequired))
	}

	defer ev.store.Close()

	item, err := ev.store.Find(c.loadItemID)
	if err != nil {
		// A distinguishable miss would leak store contents without
		// authorization; escalate to interactive instead.
		return c.finishLocked(Cancelled(ReasonInteractionRequired))
	}
	if item.HasOTP() {
		// Copying a one-time code silently would defeat its purpose.
		c.logger.Info("item carries OTP, forcing interactive mode", "request", c.req.ID)
		return c.finishLocked(Cancelled(ReasonInteractionRequired))
	}

	c.audit.Log(audit.Entry{
		Action:  audit.ActionFulfillSilent,
		Request: c.req.ID,
		Item:    item.ID,
	})
	return c.finishLocked(Fulfilled(Credential{
		Username: item.Username,
		Password: item.Password,
	}))
}

func (c *Coordinator) forgetLoadLocked() {
	if c.pendingLoad == nil {
		return
	}
	c.pendingLoad.Cancel()
	c.pendingLoad = nil
	c.loadGen++
	if c.loadKey != nil {
		c.loadKey.Wipe()
		c.loadKey = nil
	}
	c.logger.Info("in-flight load forgotten", "request", c.req.ID)
}

// --- interactive flow ---

func (c *Coordinator) enterLockedLocked(ctx context.Context, resume Phase) {
	c.resume = resume
	c.phase = PhaseLocked
	c.gate.Present(ctx)
	c.startChildLocked(childGate, func(emit func(Event)) Child {
		return c.flows.StartGate(c.gate, emit)
	})
}

func (c *Coordinator) onGateUnlockedLocked() error {
	if c.phase != PhaseLocked {
		return c.invariantLocked("GateUnlocked in phase %s", c.phase)
	}
	c.dog.Unlocked()

	// A pending quick-match binds the unlocker straight to the indexed
	// vault; manual selection is skipped.
	if c.pendingQuick != nil {
		if entry, ok := c.catalog.Find(c.pendingQuick.Provider, c.pendingQuick.Descriptor); ok {
			c.enterUnlockingLocked(entry.Ref)
			return nil
		}
		// Indexed vault is gone: degrade to the picker, purge the
		// stale index.
		c.pendingQuick = nil
		if c.index != nil {
			if err := c.index.RemoveAll(); err != nil {
				c.logger.Warn("stale index purge failed", "error", err)
			}
		}
	}

	switch c.resume {
	case PhaseUnlocking, PhaseBrowsing:
		// The vault re-locked with the gate; unlock it again rather
		// than sending the user back to the picker.
		if c.currentRef != (vault.Ref{}) {
			c.enterUnlockingLocked(c.currentRef)
			return nil
		}
		c.enterPickingLocked()
	default:
		c.enterPickingLocked()
	}
	return nil
}

func (c *Coordinator) onMustLockLocked() error {
	if !c.hasUI || c.phase == PhaseFastPath {
		// Background mode never shows the gate; the watchdog simply
		// stays armed until an interactive session begins.
		return nil
	}
	if c.phase == PhaseLocked || c.phase == PhaseDone {
		return nil
	}
	c.logger.Info("watchdog demanded lock", "request", c.req.ID, "phase", c.phase.String())
	resume := c.phase
	c.closeStoreLocked()
	c.gate.Relock()
	c.enterLockedLocked(context.Background(), resume)
	return nil
}

func (c *Coordinator) enterInteractiveLocked() {
	if c.pendingQuick != nil {
		if entry, ok := c.catalog.Find(c.pendingQuick.Provider, c.pendingQuick.Descriptor); ok {
			c.enterUnlockingLocked(entry.Ref)
			return
		}
		c.pendingQuick = nil
	}
	c.enterPickingLocked()
}

func (c *Coordinator) enterPickingLocked() {
	c.phase = PhasePicking
	refs := c.catalog.Refs()
	c.startChildLocked(childPicker, func(emit func(Event)) Child {
		return c.flows.StartPicker(refs, emit)
	})
}

func (c *Coordinator) enterUnlockingLocked(ref vault.Ref) {
	c.phase = PhaseUnlocking
	c.currentRef = ref
	c.startChildLocked(childUnlocker, func(emit func(Event)) Child {
		return c.flows.StartUnlocker(ref, emit)
	})
}

func (c *Coordinator) onUnlockSucceededLocked(ev UnlockSucceeded) error {
	if c.phase != PhaseUnlocking {
		ev.Store.Close()
		return c.invariantLocked("UnlockSucceeded in phase %s", c.phase)
	}
	c.dog.NoteActivity()
	c.audit.Log(audit.Entry{
		Action:  audit.ActionVaultUnlock,
		Request: c.req.ID,
		Vault:   ev.Ref.String(),
	})

	// A pending quick-match item resolving inside the freshly loaded
	// vault terminates directly, bypassing the browser.
	if c.pendingQuick != nil && c.pendingQuick.Provider == ev.Ref.Provider &&
		c.pendingQuick.Descriptor == ev.Ref.Descriptor {
		itemID := c.pendingQuick.ItemID
		c.pendingQuick = nil
		if item, err := ev.Store.Find(itemID); err == nil {
			c.audit.Log(audit.Entry{
				Action:  audit.ActionFulfillInteractive,
				Request: c.req.ID,
				Vault:   ev.Ref.String(),
				Item:    item.ID,
			})
			ev.Store.Close()
			return c.finishLocked(Fulfilled(Credential{
				Username: item.Username,
				Password: item.Password,
				OTP:      item.OTPSecret,
			}))
		}
		// The indexed item vanished; fall through to browsing.
		c.logger.Info("pending quick-match item not found, browsing", "request", c.req.ID)
	}

	c.store = ev.Store
	c.phase = PhaseBrowsing
	serviceIDs := c.req.ServiceIDs
	c.startChildLocked(childBrowser, func(emit func(Event)) Child {
		return c.flows.StartBrowser(ev.Store, serviceIDs, emit)
	})
	return nil
}

// --- child and teardown plumbing ---

// startChildLocked tears down any active child before starting the new
// one, so at most one child of any kind is ever active.
func (c *Coordinator) startChildLocked(kind childKind, start func(emit func(Event)) Child) {
	c.stopChildLocked()
	c.childKind = kind
	gen := c.childGen
	c.child = start(func(ev Event) { c.postFromChild(gen, ev) })
	c.logger.Debug("child flow started", "kind", kind.String())
}

// postFromChild is the emit function handed to children. Emits from a
// stopped child arrive from UI and loader goroutines that raced the
// teardown; they are dropped, releasing any store they carry.
func (c *Coordinator) postFromChild(gen uint64, ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.childGen || c.phase == PhaseDone {
		if late, ok := ev.(UnlockSucceeded); ok {
			late.Store.Close()
		}
		c.logger.Debug("event from stopped child dropped", "event", fmt.Sprintf("%T", ev))
		return
	}
	_ = c.handleLocked(ev)
}

func (c *Coordinator) stopChildLocked() {
	c.childGen++
	if c.child != nil {
		c.child.Stop()
		c.child = nil
		c.childKind = childNone
	}
}

func (c *Coordinator) closeStoreLocked() {
	if c.store != nil {
		c.store.Close()
		c.store = nil
	}
}

// finishLocked performs the single teardown and reports the terminal
// outcome to the host. A second termination attempt is a programming
// error: reported, not silently ignored.
func (c *Coordinator) finishLocked(o Outcome) error {
	if c.phase == PhaseDone {
		return c.invariantLocked("second termination attempt")
	}
	c.phase = PhaseDone

	c.stopChildLocked()
	c.forgetLoadLocked()
	c.closeStoreLocked()
	c.pendingQuick = nil
	c.dog.Stop()

	if o.Fulfilled {
		c.logger.Info("request fulfilled", "request", c.req.ID)
		c.host.Complete(o.Credential.Username, o.Credential.Password)
		return nil
	}

	c.logger.Info("request cancelled", "request", c.req.ID, "reason", string(o.Reason))
	c.audit.Log(audit.Entry{
		Action:  audit.ActionRequestCancelled,
		Request: c.req.ID,
		Reason:  string(o.Reason),
	})
	c.host.Cancel(o.Reason)
	return nil
}

// invariantLocked reports a coordinator programming error. The current
// request is cancelled with ReasonFailed; the process is never crashed.
func (c *Coordinator) invariantLocked(format string, args ...any) error {
	err := fmt.Errorf("%w: %s", ErrInvariant, fmt.Sprintf(format, args...))
	c.logger.Error("invariant violation", "request", c.req.ID, "error", err)

	if c.phase != PhaseDone {
		_ = c.finishLocked(Cancelled(ReasonFailed))
	}
	return err
}
