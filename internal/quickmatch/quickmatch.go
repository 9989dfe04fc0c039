// Package quickmatch resolves pre-indexed credential suggestions to a
// vault and item without presenting any UI.
//
// The platform hands back an opaque record identifier that keygate itself
// minted when the suggestion was indexed. The identifier embeds the vault
// coordinates and item ID in a versioned, delimiter-separated form;
// parsing it is total-or-fails — malformed input is a distinct error,
// never a crash.
package quickmatch

import (
	"errors"
	"fmt"
	"strings"
)

// recordPrefix versions the record-identifier format.
const recordPrefix = "kg1"

var (
	// ErrMalformedRecord: the opaque identifier could not be parsed.
	ErrMalformedRecord = errors.New("malformed quick-match record")

	// ErrStoreNotFound: the identifier parsed but no catalogued vault
	// matches. The caller should purge the stale index.
	ErrStoreNotFound = errors.New("vault for quick-match record not found")

	// ErrInteractionRequired signals that silent fulfillment is not
	// possible and the host should retry with UI. Expected control flow,
	// not a defect.
	ErrInteractionRequired = errors.New("interaction required")
)

// Key locates one item inside one vault.
type Key struct {
	Provider   string
	Descriptor string
	ItemID     string
}

// RecordID serializes the key into the opaque identifier handed to the
// platform when a suggestion is indexed.
func (k Key) RecordID() string {
	return strings.Join([]string{recordPrefix, k.Provider, k.Descriptor, k.ItemID}, "|")
}

// ParseRecordID parses an opaque record identifier. Any deviation from the
// expected form — wrong version, wrong field count, empty fields — is
// ErrMalformedRecord.
func ParseRecordID(recordID string) (Key, error) {
	parts := strings.Split(recordID, "|")
	if len(parts) != 4 {
		return Key{}, fmt.Errorf("%w: expected 4 fields, got %d", ErrMalformedRecord, len(parts))
	}
	if parts[0] != recordPrefix {
		return Key{}, fmt.Errorf("%w: unknown version %q", ErrMalformedRecord, parts[0])
	}
	k := Key{Provider: parts[1], Descriptor: parts[2], ItemID: parts[3]}
	if k.Provider == "" || k.Descriptor == "" || k.ItemID == "" {
		return Key{}, fmt.Errorf("%w: empty field", ErrMalformedRecord)
	}
	return k, nil
}

// Index is the platform-side quick-match index. Lookup maps an opaque
// record id to its key; RemoveAll purges the index when it is found to be
// stale (pointing at vaults no longer present).
type Index interface {
	Lookup(recordID string) (Key, bool)
	RemoveAll() error
}

// MemoryIndex is an in-memory Index for tests and the CLI harness.
type MemoryIndex struct {
	records map[string]Key
	purged  bool
}

// NewMemoryIndex creates an empty index.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]Key)}
}

// Add indexes a key and returns its record identifier.
func (ix *MemoryIndex) Add(k Key) string {
	id := k.RecordID()
	ix.records[id] = k
	return id
}

func (ix *MemoryIndex) Lookup(recordID string) (Key, bool) {
	k, ok := ix.records[recordID]
	return k, ok
}

func (ix *MemoryIndex) RemoveAll() error {
	ix.records = make(map[string]Key)
	ix.purged = true
	return nil
}

// Purged reports whether RemoveAll has been called. Test hook.
func (ix *MemoryIndex) Purged() bool { return ix.purged }
