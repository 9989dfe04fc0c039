package vault

import (
	"context"
	"time"
)

// AccessMode selects how a vault is opened.
type AccessMode int

const (
	ReadOnly AccessMode = iota
	ReadWrite
)

// FailKind classifies a failed load.
type FailKind int

const (
	// FailCanceled: the load was cancelled, by the user or by its owner.
	FailCanceled FailKind = iota
	// FailInvalidKey: the key did not open the vault. Recoverable — the
	// user can retry with different credentials.
	FailInvalidKey
	// FailOther: corruption, I/O errors, timeout — crash-class failures.
	FailOther
)

func (k FailKind) String() string {
	switch k {
	case FailCanceled:
		return "canceled"
	case FailInvalidKey:
		return "invalid_key"
	default:
		return "other"
	}
}

// Callbacks receive the result of a load attempt. Exactly one of OnSuccess
// or OnFailure fires per attempt; OnProgress may fire any number of times
// before that. Callbacks run on the loader's goroutine — receivers must
// post an event rather than mutate shared state.
type Callbacks struct {
	OnProgress func(fraction float64)
	OnSuccess  func(store Store, warnings []string)
	OnFailure  func(kind FailKind)
}

// Loader opens vaults asynchronously. Load returns immediately with a
// handle; callbacks are never invoked synchronously from Load. The
// timeout is enforced by the loader itself, parameterized per vault by
// the caller's policy; callers do not run their own clock against a load.
type Loader interface {
	Load(ctx context.Context, ref Ref, key *Key, mode AccessMode, timeout time.Duration, cb Callbacks) *Pending
}

// Pending is a handle on an in-flight load. Cancellation is advisory:
// Cancel asks the operation to stop and returns immediately; the owner
// forgets the handle without waiting for confirmation.
type Pending struct {
	cancel context.CancelFunc
}

// NewPending wraps a cancel function for a running load. Loader
// implementations call this; coordinator code only consumes it.
func NewPending(cancel context.CancelFunc) *Pending {
	return &Pending{cancel: cancel}
}

// Cancel requests the load to stop. Safe on nil and after completion.
func (p *Pending) Cancel() {
	if p == nil || p.cancel == nil {
		return
	}
	p.cancel()
}
