package session

import (
	"github.com/benaskins/keygate/internal/applock"
	"github.com/benaskins/keygate/internal/vault"
)

// Child is the stop contract shared by all interactive child flows.
// Stop tears the flow down; a stopped child must not emit further
// events, and Stop itself must not emit synchronously.
type Child interface {
	Stop()
}

// childKind names the slot an active child occupies, for invariant
// checks and logs.
type childKind int

const (
	childNone childKind = iota
	childGate
	childPicker
	childUnlocker
	childBrowser
)

func (k childKind) String() string {
	switch k {
	case childGate:
		return "gate"
	case childPicker:
		return "picker"
	case childUnlocker:
		return "unlocker"
	case childBrowser:
		return "browser"
	default:
		return "none"
	}
}

// Flows creates the interactive child flows. Implementations render the
// flow however they like (the reference implementation is terminal
// screens); they report back only through the emit function and never
// mutate session state directly.
type Flows interface {
	// StartGate presents the app-lock gate UI over the given gate.
	// Emits GateUnlocked, GateCanceled, or CacheWiped.
	StartGate(gate *applock.Gate, emit func(Event)) Child

	// StartPicker presents the vault picker.
	// Emits VaultPicked, VaultAdded, or ChildCanceled.
	StartPicker(refs []vault.Ref, emit func(Event)) Child

	// StartUnlocker presents the unlock flow bound to one vault.
	// Emits UnlockSucceeded, UnlockFailed, UnlockerBackedOut, or
	// ChildCanceled. The unlocker owns its load attempts and wipes the
	// entered key when each attempt completes.
	StartUnlocker(ref vault.Ref, emit func(Event)) Child

	// StartBrowser presents the entry finder over a loaded store.
	// Emits EntryChosen, BrowserLeft, or ChildCanceled.
	StartBrowser(store vault.Store, serviceIDs []string, emit func(Event)) Child
}
