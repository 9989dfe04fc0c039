package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benaskins/keygate/internal/applock"
	"github.com/benaskins/keygate/internal/quickmatch"
	"github.com/benaskins/keygate/internal/secrets"
	"github.com/benaskins/keygate/internal/settings"
	"github.com/benaskins/keygate/internal/vault"
	"github.com/benaskins/keygate/internal/watchdog"
)

// fakeHost records the terminal outcome and how often it was delivered.
type fakeHost struct {
	completes int
	cancels   int
	username  string
	password  string
	reason    Reason
}

func (h *fakeHost) Complete(username, password string) {
	h.completes++
	h.username = username
	h.password = password
}

func (h *fakeHost) Cancel(reason Reason) {
	h.cancels++
	h.reason = reason
}

func (h *fakeHost) outcomes() int { return h.completes + h.cancels }

// fakeLoader captures load calls; the test fires the callbacks itself,
// after Load has returned, matching the async loader contract.
type fakeLoader struct {
	calls []loadCall
}

type loadCall struct {
	ref     vault.Ref
	key     *vault.Key
	mode    vault.AccessMode
	timeout time.Duration
	cb      vault.Callbacks
}

func (l *fakeLoader) Load(ctx context.Context, ref vault.Ref, key *vault.Key,
	mode vault.AccessMode, timeout time.Duration, cb vault.Callbacks) *vault.Pending {
	l.calls = append(l.calls, loadCall{ref: ref, key: key, mode: mode, timeout: timeout, cb: cb})
	_, cancel := context.WithCancel(ctx)
	return vault.NewPending(cancel)
}

func (l *fakeLoader) last(t *testing.T) loadCall {
	t.Helper()
	if len(l.calls) == 0 {
		t.Fatal("no load was started")
	}
	return l.calls[len(l.calls)-1]
}

// fakeChild records teardown.
type fakeChild struct {
	kind    string
	stopped bool
	emit    func(Event)
}

func (ch *fakeChild) Stop() { ch.stopped = true }

// fakeFlows hands out fakeChildren and remembers every start.
type fakeFlows struct {
	started []*fakeChild
}

func (f *fakeFlows) start(kind string, emit func(Event)) Child {
	ch := &fakeChild{kind: kind, emit: emit}
	f.started = append(f.started, ch)
	return ch
}

func (f *fakeFlows) StartGate(g *applock.Gate, emit func(Event)) Child {
	return f.start("gate", emit)
}

func (f *fakeFlows) StartPicker(refs []vault.Ref, emit func(Event)) Child {
	return f.start("picker", emit)
}

func (f *fakeFlows) StartUnlocker(ref vault.Ref, emit func(Event)) Child {
	return f.start("unlocker", emit)
}

func (f *fakeFlows) StartBrowser(store vault.Store, serviceIDs []string, emit func(Event)) Child {
	return f.start("browser", emit)
}

func (f *fakeFlows) active(t *testing.T) *fakeChild {
	t.Helper()
	if len(f.started) == 0 {
		t.Fatal("no child flow started")
	}
	ch := f.started[len(f.started)-1]
	if ch.stopped {
		t.Fatalf("last child %q already stopped", ch.kind)
	}
	return ch
}

// fixture wires a coordinator over real collaborators with fakes at the
// host, loader, and flow boundaries.
type fixture struct {
	host    *fakeHost
	loader  *fakeLoader
	flows   *fakeFlows
	keys    *secrets.MemoryStore
	index   *quickmatch.MemoryIndex
	catalog *settings.Catalog
	gate    *applock.Gate
	dog     *watchdog.Watchdog
	coord   *Coordinator
	ref     vault.Ref
}

type fixtureOpt func(*fixtureCfg)

type fixtureCfg struct {
	passcode string
	cached   bool
}

func withPasscode(pc string) fixtureOpt { return func(c *fixtureCfg) { c.passcode = pc } }
func withCachedKey() fixtureOpt         { return func(c *fixtureCfg) { c.cached = true } }

func newFixture(t *testing.T, opts ...fixtureOpt) *fixture {
	t.Helper()
	var cfg fixtureCfg
	for _, opt := range opts {
		opt(&cfg)
	}

	ref := vault.Ref{Provider: "file", Descriptor: "/v/work.kdbx", Name: "Work"}
	catalog := settings.NewCatalog(&settings.Settings{Vaults: []settings.VaultEntry{
		{Ref: ref, Policy: settings.UnlockPolicy{FallbackTimeout: 5 * time.Second}},
	}})

	keys := secrets.NewMemoryStore()
	if cfg.cached {
		if err := keys.Put(ref, []byte("cached-master")); err != nil {
			t.Fatal(err)
		}
	}

	gateCfg := applock.Config{Reprompt: time.Minute}
	if cfg.passcode != "" {
		hash, err := applock.HashPasscode(cfg.passcode)
		if err != nil {
			t.Fatal(err)
		}
		gateCfg.PasscodeHash = hash
		gateCfg.Threshold = 3
	}

	f := &fixture{
		host:    &fakeHost{},
		loader:  &fakeLoader{},
		flows:   &fakeFlows{},
		keys:    keys,
		index:   quickmatch.NewMemoryIndex(),
		catalog: catalog,
		gate:    applock.New(gateCfg, keys),
		dog:     watchdog.New(time.Minute),
		ref:     ref,
	}
	f.coord = New(f.host, catalog, quickmatch.NewResolver(catalog, keys),
		f.loader, f.gate, f.dog, f.flows, WithIndex(f.index))
	return f
}

func (f *fixture) recordID(itemID string) string {
	return quickmatch.Key{Provider: f.ref.Provider, Descriptor: f.ref.Descriptor, ItemID: itemID}.RecordID()
}

func itemGood() vault.Item {
	return vault.Item{ID: "item-1", Title: "Mail", Username: "kim", Password: "pw1"}
}

// --- silent fast path ---

func TestSilentFulfillmentSucceeds(t *testing.T) {
	f := newFixture(t, withCachedKey())

	req := NewRequest([]string{"mail.example"}, f.recordID("item-1"))
	if err := f.coord.ProvideWithoutUI(context.Background(), req); err != nil {
		t.Fatalf("provide: %v", err)
	}

	call := f.loader.last(t)
	if call.mode != vault.ReadOnly {
		t.Error("silent load must be read-only")
	}
	if call.timeout != 5*time.Second {
		t.Errorf("expected per-vault timeout, got %v", call.timeout)
	}

	store := vault.NewMemStore([]vault.Item{itemGood()})
	call.cb.OnSuccess(store, nil)

	if f.host.completes != 1 {
		t.Fatalf("expected 1 complete, got %d", f.host.completes)
	}
	if f.host.username != "kim" || f.host.password != "pw1" {
		t.Errorf("wrong credential: %q/%q", f.host.username, f.host.password)
	}
	if len(f.flows.started) != 0 {
		t.Error("silent path must not start any UI flow")
	}
	if !store.Closed() {
		t.Error("store left open after fulfillment")
	}
	if !call.key.Wiped() {
		t.Error("unlock key not wiped after load completion")
	}
}

func TestSilentExpiredItemEscalates(t *testing.T) {
	f := newFixture(t, withCachedKey())

	req := NewRequest(nil, f.recordID("item-1"))
	if err := f.coord.ProvideWithoutUI(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	it := itemGood()
	it.Expired = true
	f.loader.last(t).cb.OnSuccess(vault.NewMemStore([]vault.Item{it}), nil)

	if f.host.reason != ReasonInteractionRequired {
		t.Fatalf("expected interaction_required, got %q", f.host.reason)
	}
}

func TestSilentOTPItemForcesInteractive(t *testing.T) {
	f := newFixture(t, withCachedKey())

	if err := f.coord.ProvideWithoutUI(context.Background(), NewRequest(nil, f.recordID("item-1"))); err != nil {
		t.Fatal(err)
	}

	it := itemGood()
	it.OTPSecret = "JBSWY3DP"
	f.loader.last(t).cb.OnSuccess(vault.NewMemStore([]vault.Item{it}), nil)

	if f.host.completes != 0 || f.host.reason != ReasonInteractionRequired {
		t.Fatalf("OTP item must escalate, got completes=%d reason=%q", f.host.completes, f.host.reason)
	}
}

func TestSilentMalformedRecordFails(t *testing.T) {
	f := newFixture(t, withCachedKey())

	if err := f.coord.ProvideWithoutUI(context.Background(), NewRequest(nil, "garbage")); err != nil {
		t.Fatal(err)
	}
	if f.host.reason != ReasonFailed {
		t.Fatalf("expected failed, got %q", f.host.reason)
	}
}

func TestSilentUnknownVaultPurgesIndex(t *testing.T) {
	f := newFixture(t, withCachedKey())

	gone := quickmatch.Key{Provider: "file", Descriptor: "/v/gone.kdbx", ItemID: "x"}.RecordID()
	if err := f.coord.ProvideWithoutUI(context.Background(), NewRequest(nil, gone)); err != nil {
		t.Fatal(err)
	}
	if f.host.reason != ReasonInteractionRequired {
		t.Fatalf("expected interaction_required, got %q", f.host.reason)
	}
	if !f.index.Purged() {
		t.Error("stale quick-match index not purged")
	}
}

func TestSilentNoCachedKeyEscalates(t *testing.T) {
	f := newFixture(t) // no cached key

	if err := f.coord.ProvideWithoutUI(context.Background(), NewRequest(nil, f.recordID("item-1"))); err != nil {
		t.Fatal(err)
	}
	if f.host.reason != ReasonInteractionRequired {
		t.Fatalf("expected interaction_required, got %q", f.host.reason)
	}
}

func TestSilentNoRecordEscalates(t *testing.T) {
	f := newFixture(t, withCachedKey())

	if err := f.coord.ProvideWithoutUI(context.Background(), NewRequest([]string{"mail"}, "")); err != nil {
		t.Fatal(err)
	}
	if f.host.reason != ReasonInteractionRequired {
		t.Fatalf("expected interaction_required, got %q", f.host.reason)
	}
}

func TestSilentLoadFailureClassification(t *testing.T) {
	cases := []struct {
		kind vault.FailKind
		want Reason
	}{
		{vault.FailInvalidKey, ReasonInteractionRequired},
		{vault.FailCanceled, ReasonInteractionRequired},
		{vault.FailOther, ReasonFailed},
	}
	for _, tc := range cases {
		f := newFixture(t, withCachedKey())
		if err := f.coord.ProvideWithoutUI(context.Background(), NewRequest(nil, f.recordID("item-1"))); err != nil {
			t.Fatal(err)
		}
		call := f.loader.last(t)
		call.cb.OnFailure(tc.kind)

		if f.host.reason != tc.want {
			t.Errorf("kind %v: expected %q, got %q", tc.kind, tc.want, f.host.reason)
		}
		if !call.key.Wiped() {
			t.Errorf("kind %v: key not wiped after failure", tc.kind)
		}
	}
}

func TestMemoryPressureForgetsLoadOnly(t *testing.T) {
	f := newFixture(t, withCachedKey())

	if err := f.coord.ProvideWithoutUI(context.Background(), NewRequest(nil, f.recordID("item-1"))); err != nil {
		t.Fatal(err)
	}
	call := f.loader.last(t)

	if err := f.coord.Post(MemoryPressure{}); err != nil {
		t.Fatalf("memory pressure: %v", err)
	}
	if !call.key.Wiped() {
		t.Error("key not wiped when load was forgotten")
	}
	if f.host.outcomes() != 0 {
		t.Fatal("memory pressure must not terminate the request")
	}

	// A late completion of the forgotten load is a no-op.
	store := vault.NewMemStore([]vault.Item{itemGood()})
	call.cb.OnSuccess(store, nil)
	if f.host.outcomes() != 0 {
		t.Fatal("late completion terminated a forgotten load's request")
	}
	if !store.Closed() {
		t.Error("late-delivered store not closed")
	}
}

// --- interactive flow ---

// walkToGate starts an interactive session against a passcode-protected
// gate and returns the active gate child.
func walkToGate(t *testing.T, f *fixture, recordID string) *fakeChild {
	t.Helper()
	if err := f.coord.PrepareUI(context.Background(), NewRequest([]string{"mail.example"}, recordID)); err != nil {
		t.Fatalf("prepare UI: %v", err)
	}
	if f.coord.CurrentPhase() != PhaseLocked {
		t.Fatalf("expected locked, got %v", f.coord.CurrentPhase())
	}
	ch := f.flows.active(t)
	if ch.kind != "gate" {
		t.Fatalf("expected gate child, got %q", ch.kind)
	}
	return ch
}

func TestInteractiveFullWalk(t *testing.T) {
	f := newFixture(t, withPasscode("1234"))

	gate := walkToGate(t, f, "")
	gate.emit(GateUnlocked{})

	picker := f.flows.active(t)
	if picker.kind != "picker" {
		t.Fatalf("expected picker after gate, got %q", picker.kind)
	}
	if !gate.stopped {
		t.Error("gate child not torn down before picker")
	}

	picker.emit(VaultPicked{Ref: f.ref})
	unlocker := f.flows.active(t)
	if unlocker.kind != "unlocker" {
		t.Fatalf("expected unlocker, got %q", unlocker.kind)
	}

	// InvalidKey keeps the same unlocker active, not torn down.
	unlocker.emit(UnlockFailed{Kind: vault.FailInvalidKey})
	if unlocker.stopped {
		t.Fatal("unlocker torn down on retryable failure")
	}
	if f.coord.CurrentPhase() != PhaseUnlocking {
		t.Fatalf("expected unlocking, got %v", f.coord.CurrentPhase())
	}

	store := vault.NewMemStore([]vault.Item{itemGood()})
	unlocker.emit(UnlockSucceeded{Ref: f.ref, Store: store})

	browser := f.flows.active(t)
	if browser.kind != "browser" {
		t.Fatalf("expected browser, got %q", browser.kind)
	}

	browser.emit(EntryChosen{Item: itemGood()})
	if f.host.completes != 1 || f.host.username != "kim" {
		t.Fatalf("expected completion with kim, got %+v", f.host)
	}
	if !browser.stopped {
		t.Error("browser not torn down at terminal outcome")
	}
}

func TestPendingQuickMatchSkipsPickerAndBrowser(t *testing.T) {
	f := newFixture(t) // no passcode: gate passes immediately

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, f.recordID("item-1"))); err != nil {
		t.Fatal(err)
	}

	unlocker := f.flows.active(t)
	if unlocker.kind != "unlocker" {
		t.Fatalf("pending quick-match should bind the unlocker directly, got %q", unlocker.kind)
	}

	store := vault.NewMemStore([]vault.Item{itemGood()})
	unlocker.emit(UnlockSucceeded{Ref: f.ref, Store: store})

	if f.host.completes != 1 {
		t.Fatalf("expected direct completion, got %+v", f.host)
	}
	for _, ch := range f.flows.started {
		if ch.kind == "browser" || ch.kind == "picker" {
			t.Errorf("unexpected %q flow during quick-match retry", ch.kind)
		}
	}
	if !store.Closed() {
		t.Error("store left open after quick-match completion")
	}
}

func TestPendingQuickMatchMissFallsBackToBrowsing(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, f.recordID("vanished"))); err != nil {
		t.Fatal(err)
	}
	unlocker := f.flows.active(t)
	unlocker.emit(UnlockSucceeded{Ref: f.ref, Store: vault.NewMemStore([]vault.Item{itemGood()})})

	if f.flows.active(t).kind != "browser" {
		t.Fatalf("expected browser fallback, got %q", f.flows.active(t).kind)
	}
	if f.host.outcomes() != 0 {
		t.Fatal("request terminated prematurely")
	}
}

func TestUnlockerBackOutReturnsToPicker(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	picker := f.flows.active(t)
	picker.emit(VaultPicked{Ref: f.ref})

	unlocker := f.flows.active(t)
	unlocker.emit(UnlockerBackedOut{})

	if f.coord.CurrentPhase() != PhasePicking {
		t.Fatalf("expected picking, got %v", f.coord.CurrentPhase())
	}
	if f.flows.active(t).kind != "picker" {
		t.Fatalf("expected picker, got %q", f.flows.active(t).kind)
	}
}

func TestBrowserLeftStaysReEnterable(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	f.flows.active(t).emit(VaultPicked{Ref: f.ref})
	store := vault.NewMemStore([]vault.Item{itemGood()})
	f.flows.active(t).emit(UnlockSucceeded{Ref: f.ref, Store: store})

	f.flows.active(t).emit(BrowserLeft{})

	if f.host.outcomes() != 0 {
		t.Fatal("leaving the browser must not terminate the request")
	}
	if f.coord.CurrentPhase() != PhasePicking {
		t.Fatalf("expected picking, got %v", f.coord.CurrentPhase())
	}
	if !store.Closed() {
		t.Error("store left open after leaving the browser")
	}
}

func TestUserCancelTearsDownEverything(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	picker := f.flows.active(t)
	picker.emit(ChildCanceled{})

	if f.host.reason != ReasonUserCanceled {
		t.Fatalf("expected user_canceled, got %q", f.host.reason)
	}
	if !picker.stopped {
		t.Error("picker not torn down on cancel")
	}
}

func TestMustLockInterruptsAndResumes(t *testing.T) {
	f := newFixture(t, withPasscode("1234"))

	gate := walkToGate(t, f, "")
	gate.emit(GateUnlocked{})
	f.flows.active(t).emit(VaultPicked{Ref: f.ref})
	store := vault.NewMemStore([]vault.Item{itemGood()})
	f.flows.active(t).emit(UnlockSucceeded{Ref: f.ref, Store: store})

	if err := f.coord.Post(MustLock{}); err != nil {
		t.Fatalf("must lock: %v", err)
	}
	if f.coord.CurrentPhase() != PhaseLocked {
		t.Fatalf("expected locked, got %v", f.coord.CurrentPhase())
	}
	if !store.Closed() {
		t.Error("open vault not re-locked with the gate")
	}

	f.flows.active(t).emit(GateUnlocked{})
	if f.flows.active(t).kind != "unlocker" {
		t.Fatalf("expected resume at unlocker for same vault, got %q", f.flows.active(t).kind)
	}
	if f.host.outcomes() != 0 {
		t.Fatal("gate interruption must not terminate the request")
	}
}

func TestSingleActiveChildInvariant(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	f.flows.active(t).emit(VaultPicked{Ref: f.ref})
	f.flows.active(t).emit(UnlockSucceeded{Ref: f.ref, Store: vault.NewMemStore(nil)})

	active := 0
	for _, ch := range f.flows.started {
		if !ch.stopped {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected exactly one active child, got %d", active)
	}
}

// --- one-shot semantics ---

func TestSecondTerminationRejected(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	f.flows.active(t).emit(ChildCanceled{})

	if err := f.coord.Post(ChildCanceled{}); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant after Done, got %v", err)
	}
	if f.host.outcomes() != 1 {
		t.Fatalf("host notified %d times, want exactly 1", f.host.outcomes())
	}
}

func TestReentryRejected(t *testing.T) {
	f := newFixture(t, withCachedKey())

	if err := f.coord.ProvideWithoutUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	if err := f.coord.ProvideWithoutUI(context.Background(), NewRequest(nil, "")); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant on re-entry, got %v", err)
	}
	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant on PrepareUI re-entry, got %v", err)
	}
}

func TestEventInWrongPhaseCancelsWithFailed(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	// EntryChosen while picking is a programming error: the request is
	// cancelled with failed, the process survives.
	if err := f.coord.Post(EntryChosen{Item: itemGood()}); !errors.Is(err, ErrInvariant) {
		t.Fatalf("expected ErrInvariant, got %v", err)
	}
	if f.host.reason != ReasonFailed {
		t.Fatalf("expected failed, got %q", f.host.reason)
	}
}

func TestExpiredWatchdogGatesEntry(t *testing.T) {
	f := newFixture(t)
	f.dog.ForceLock()

	// No passcode is configured, so the gate itself is open; the armed
	// watchdog must still put it in front of everything.
	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	if got := f.flows.active(t).kind; got != "gate" {
		t.Fatalf("expected gate first, got %q", got)
	}

	f.flows.active(t).emit(GateUnlocked{})
	if got := f.flows.active(t).kind; got != "picker" {
		t.Fatalf("expected picker after gate, got %q", got)
	}
	if f.dog.Expired() {
		t.Error("gate pass must clear the armed watchdog")
	}
}

func TestCacheWipedRelocksOpenVault(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	f.flows.active(t).emit(VaultPicked{Ref: f.ref})
	store := vault.NewMemStore([]vault.Item{itemGood()})
	f.flows.active(t).emit(UnlockSucceeded{Ref: f.ref, Store: store})

	// The gate comes up mid-browse; repeated passcode failures behind it
	// wipe the cached keys.
	if err := f.coord.Post(MustLock{}); err != nil {
		t.Fatal(err)
	}
	if err := f.coord.Post(CacheWiped{}); err != nil {
		t.Fatal(err)
	}

	if !store.Closed() {
		t.Error("open store must re-lock when cached keys are wiped")
	}
	if f.host.outcomes() != 0 {
		t.Fatal("wipe must not terminate the request")
	}

	// With the wipe, resuming where the user left off is no longer
	// trustworthy; the gate pass lands on the picker.
	f.flows.active(t).emit(GateUnlocked{})
	if got := f.flows.active(t).kind; got != "picker" {
		t.Fatalf("expected picker after wipe, got %q", got)
	}
}

func TestLateUnlockFromStoppedChildIgnored(t *testing.T) {
	f := newFixture(t)

	if err := f.coord.PrepareUI(context.Background(), NewRequest(nil, "")); err != nil {
		t.Fatal(err)
	}
	f.flows.active(t).emit(VaultPicked{Ref: f.ref})
	unlocker := f.flows.active(t)

	// The lock lands while the unlock attempt is in flight; the
	// unlocker is torn down for the gate.
	if err := f.coord.Post(MustLock{}); err != nil {
		t.Fatal(err)
	}
	if got := f.flows.active(t).kind; got != "gate" {
		t.Fatalf("expected gate, got %q", got)
	}

	// The attempt completes anyway. Its store is released and the
	// session stays alive behind the gate.
	store := vault.NewMemStore([]vault.Item{itemGood()})
	unlocker.emit(UnlockSucceeded{Ref: f.ref, Store: store})

	if f.host.outcomes() != 0 {
		t.Fatalf("late completion terminated the request: %d outcomes", f.host.outcomes())
	}
	if !store.Closed() {
		t.Error("late completion's store left open")
	}
	if f.coord.CurrentPhase() != PhaseLocked {
		t.Fatalf("expected locked, got %v", f.coord.CurrentPhase())
	}

	// The gate pass resumes the unlock for the same vault.
	f.flows.active(t).emit(GateUnlocked{})
	if got := f.flows.active(t).kind; got != "unlocker" {
		t.Fatalf("expected unlocker after gate, got %q", got)
	}
}
