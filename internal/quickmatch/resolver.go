package quickmatch

import (
	"fmt"
	"time"

	"github.com/benaskins/keygate/internal/secrets"
	"github.com/benaskins/keygate/internal/settings"
	"github.com/benaskins/keygate/internal/vault"
)

// Resolution is everything needed to attempt a silent, read-only load:
// the owning vault, its cached master key, the item to return, and the
// vault's load timeout.
type Resolution struct {
	Ref     vault.Ref
	Key     *vault.Key
	ItemID  string
	Timeout time.Duration
}

// Resolver locates the vault and cached key for a quick-match record.
// It never presents UI and never blocks.
type Resolver struct {
	catalog *settings.Catalog
	keys    secrets.Store
}

// NewResolver creates a resolver over the vault catalog and key store.
func NewResolver(catalog *settings.Catalog, keys secrets.Store) *Resolver {
	return &Resolver{catalog: catalog, keys: keys}
}

// Resolve maps an opaque record identifier to a Resolution.
//
// Errors:
//   - ErrMalformedRecord: the identifier did not parse.
//   - ErrStoreNotFound: no catalogued vault matches; the caller should
//     purge the quick-match index.
//   - ErrInteractionRequired: the vault exists but has no cached key, so
//     the unlock needs the user.
func (r *Resolver) Resolve(recordID string) (Resolution, error) {
	key, err := ParseRecordID(recordID)
	if err != nil {
		return Resolution{}, err
	}

	entry, ok := r.catalog.Find(key.Provider, key.Descriptor)
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %s:%s", ErrStoreNotFound, key.Provider, key.Descriptor)
	}

	cached, err := r.keys.Get(entry.Ref)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: no cached key for %s", ErrInteractionRequired, entry.Ref)
	}

	return Resolution{
		Ref:     entry.Ref,
		Key:     vault.NewKey(cached),
		ItemID:  key.ItemID,
		Timeout: entry.Timeout(),
	}, nil
}
