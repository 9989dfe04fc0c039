package session

import "github.com/benaskins/keygate/internal/vault"

// Event is the closed set of tagged events consumed by the coordinator.
// Child flows, the gate UI, the loader, and the watchdog all report
// through events; the coordinator is the only writer of session state.
type Event interface{ isEvent() }

// GateUnlocked: the app-lock gate passed (passcode or biometric).
type GateUnlocked struct{}

// GateCanceled: the user dismissed the gate. Aborts the whole request.
type GateCanceled struct{}

// CacheWiped: repeated passcode failures wiped the cached keys; any
// unlocked vault must re-lock.
type CacheWiped struct{}

// MustLock: the inactivity watchdog demands the gate before anything
// else is shown.
type MustLock struct{}

// VaultPicked: the picker selected a vault.
type VaultPicked struct{ Ref vault.Ref }

// VaultAdded: the picker registered a new vault location. No state
// transition; the picker re-lists itself.
type VaultAdded struct{ Ref vault.Ref }

// UnlockSucceeded: the unlocker opened its vault.
type UnlockSucceeded struct {
	Ref   vault.Ref
	Store vault.Store
}

// UnlockFailed: a load attempt failed. The unlocker stays active and
// offers retry or fallback choices.
type UnlockFailed struct{ Kind vault.FailKind }

// UnlockerBackedOut: the user left the unlocker; return to picking.
type UnlockerBackedOut struct{}

// EntryChosen: the entry finder selected an item.
type EntryChosen struct{ Item vault.Item }

// BrowserLeft: the user left the store without selecting. The session
// stays consistent and re-enterable.
type BrowserLeft struct{}

// ChildCanceled: user-initiated cancellation at any screen.
type ChildCanceled struct{}

// MemoryPressure: cancel only the in-flight load, not the session.
type MemoryPressure struct{}

// loadDone is the completion of a silent fast-path load. gen matches the
// coordinator's load generation; completions for forgotten loads are
// no-ops.
type loadDone struct {
	gen    uint64
	store  vault.Store
	failed bool
	kind   vault.FailKind
}

func (GateUnlocked) isEvent()      {}
func (GateCanceled) isEvent()      {}
func (CacheWiped) isEvent()        {}
func (MustLock) isEvent()          {}
func (VaultPicked) isEvent()       {}
func (VaultAdded) isEvent()        {}
func (UnlockSucceeded) isEvent()   {}
func (UnlockFailed) isEvent()      {}
func (UnlockerBackedOut) isEvent() {}
func (EntryChosen) isEvent()       {}
func (BrowserLeft) isEvent()       {}
func (ChildCanceled) isEvent()     {}
func (MemoryPressure) isEvent()    {}
func (loadDone) isEvent()          {}
