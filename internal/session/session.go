// Package session implements the fulfillment coordinator: the state
// machine that decides, for every autofill request, whether a silent
// fast path is possible, gates all interactive flows behind the app-lock
// check, owns at most one active child flow at a time, and guarantees
// that every request terminates in exactly one outcome.
package session

import (
	"errors"

	"github.com/google/uuid"
)

// Reason classifies a cancelled request at the host boundary.
type Reason string

const (
	ReasonUserCanceled        Reason = "user_canceled"
	ReasonFailed              Reason = "failed"
	ReasonInteractionRequired Reason = "interaction_required"

	// ReasonIdentityNotFound is part of the host contract but never
	// produced by the coordinator: an item the silent path cannot
	// resolve reports ReasonInteractionRequired instead, so the
	// reply does not disclose whether the identity exists in a store
	// the caller has not unlocked.
	ReasonIdentityNotFound Reason = "identity_not_found"
)

// ErrInvariant reports a coordinator programming error: terminating a
// request twice, re-entering a finished session, or showing the gate
// without UI. It is fatal to the current request only — the request is
// cancelled with ReasonFailed, the process survives.
var ErrInvariant = errors.New("session invariant violation")

// Request is one fulfillment attempt, immutable once created.
type Request struct {
	ID         string
	ServiceIDs []string

	// RecordID is the opaque quick-match record identifier, empty when
	// the host supplied none.
	RecordID string
}

// NewRequest creates a request with a fresh ID.
func NewRequest(serviceIDs []string, recordID string) Request {
	return Request{
		ID:         uuid.NewString(),
		ServiceIDs: serviceIDs,
		RecordID:   recordID,
	}
}

// Credential is the fulfilled payload.
type Credential struct {
	Username string
	Password string
	OTP      string
}

// Outcome is the terminal value of a request: fulfilled or cancelled
// with a reason. Exactly one outcome is produced per request.
type Outcome struct {
	Fulfilled  bool
	Credential Credential
	Reason     Reason
}

// Fulfilled builds a successful outcome.
func Fulfilled(cred Credential) Outcome {
	return Outcome{Fulfilled: true, Credential: cred}
}

// Cancelled builds a cancelled outcome.
func Cancelled(reason Reason) Outcome {
	return Outcome{Reason: reason}
}

// Host is the credential-provider boundary. Exactly one of Complete or
// Cancel is invoked per request. Implementations must not call back into
// the coordinator from these methods.
type Host interface {
	Complete(username, password string)
	Cancel(reason Reason)
}
