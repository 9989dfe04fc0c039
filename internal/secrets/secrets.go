// Package secrets stores cached vault master keys, backed by macOS
// Keychain.
//
// Keys are stored as generic passwords with:
//   - Service: "com.keygate" (all keygate secrets share this service)
//   - Account: the vault's canonical "provider:descriptor" form
//   - Label: "keygate: <vault>" (for Keychain Access.app visibility)
//
// Entries are scoped with kSecAttrAccessibleWhenUnlockedThisDeviceOnly:
// never synced to iCloud, never available when the machine is locked.
//
// WipeAll exists as a blast-radius containment measure: after repeated
// app passcode failures every cached key is erased in one operation.
package secrets

import (
	"errors"

	"github.com/benaskins/keygate/internal/vault"
)

// ErrNotFound is returned when no key is cached for a vault.
var ErrNotFound = errors.New("cached key not found")

// Store is the interface for cached master-key storage.
type Store interface {
	Put(ref vault.Ref, key []byte) error
	Get(ref vault.Ref) ([]byte, error)
	Delete(ref vault.Ref) error
	WipeAll() error
}
