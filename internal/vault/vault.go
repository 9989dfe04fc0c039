// Package vault defines the contracts between the fulfillment coordinator
// and the encrypted vault engine: lightweight vault references, the loaded
// store surface, and the async loader used to open a vault with a key.
//
// The vault file format and its ciphers live behind the Loader interface
// and are not implemented here.
package vault

import "errors"

// ErrItemNotFound is returned when an item does not exist in a loaded
// store, or exists but is not visible (soft-deleted, expired, or hidden
// from search).
var ErrItemNotFound = errors.New("item not found")

// Ref is a lightweight locator for one vault.
type Ref struct {
	Provider   string `yaml:"provider"`
	Descriptor string `yaml:"descriptor"`
	Name       string `yaml:"name"`

	// Missing marks a catalog entry whose backing file could not be
	// reached at last check. Missing refs are still listed so the user
	// can see and remove them.
	Missing bool `yaml:"missing,omitempty"`
}

// Equal reports whether two refs identify the same vault. Name and error
// state are display-only and do not participate.
func (r Ref) Equal(other Ref) bool {
	return r.Provider == other.Provider && r.Descriptor == other.Descriptor
}

// String returns the canonical "provider:descriptor" form.
func (r Ref) String() string {
	return r.Provider + ":" + r.Descriptor
}

// Item is one credential entry in a loaded store.
type Item struct {
	ID        string
	Title     string
	Username  string
	Password  string
	OTPSecret string

	Deleted bool
	Expired bool
	Hidden  bool
}

// HasOTP reports whether the item carries a one-time code configuration.
func (it Item) HasOTP() bool { return it.OTPSecret != "" }

// Visible reports whether the item may be returned by lookups. Deleted,
// expired, and search-hidden items are excluded.
func (it Item) Visible() bool { return !it.Deleted && !it.Expired && !it.Hidden }

// Store is a loaded, decrypted vault. Implementations are provided by the
// vault engine; the coordinator only reads from it and closes it.
type Store interface {
	// Find returns the visible item with the given ID, or ErrItemNotFound.
	Find(itemID string) (Item, error)

	// Search returns visible items matching any of the requested service
	// identifiers, best matches first. An empty request returns every
	// visible item.
	Search(serviceIDs []string) []Item

	// Close releases the decrypted in-memory model.
	Close()
}

// FindVisible is the lookup shared by Store implementations: a linear scan
// that applies the visibility rules in one place.
func FindVisible(items []Item, itemID string) (Item, error) {
	for _, it := range items {
		if it.ID == itemID && it.Visible() {
			return it, nil
		}
	}
	return Item{}, ErrItemNotFound
}
