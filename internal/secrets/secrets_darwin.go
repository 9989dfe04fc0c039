//go:build darwin

package secrets

import (
	"errors"
	"fmt"

	gokeychain "github.com/keybase/go-keychain"

	"github.com/benaskins/keygate/internal/vault"
)

const (
	// ServiceName is the Keychain service attribute for all keygate entries.
	ServiceName = "com.keygate"
)

// SystemStore provides cached-key operations against macOS Keychain.
type SystemStore struct {
	service string
}

// NewSystemStore creates a new Keychain-backed key store.
func NewSystemStore() *SystemStore {
	return &SystemStore{service: ServiceName}
}

// Put stores a cached key. Overwrites if one already exists.
func (s *SystemStore) Put(ref vault.Ref, key []byte) error {
	// Update = delete + add
	_ = s.Delete(ref)

	item := gokeychain.NewGenericPassword(
		s.service,
		ref.String(),
		fmt.Sprintf("keygate: %s", ref.Name),
		key,
		"",
	)
	item.SetSynchronizable(gokeychain.SynchronizableNo)
	item.SetAccessible(gokeychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := gokeychain.AddItem(item); err != nil {
		return fmt.Errorf("keychain add %q: %w", ref, err)
	}
	return nil
}

// Get retrieves the cached key for a vault.
func (s *SystemStore) Get(ref vault.Ref) ([]byte, error) {
	data, err := gokeychain.GetGenericPassword(s.service, ref.String(), "", "")
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
		}
		return nil, fmt.Errorf("keychain get %q: %w", ref, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	return data, nil
}

// Delete removes the cached key for a vault.
func (s *SystemStore) Delete(ref vault.Ref) error {
	err := gokeychain.DeleteGenericPasswordItem(s.service, ref.String())
	if err != nil && !errors.Is(err, gokeychain.ErrorItemNotFound) {
		return fmt.Errorf("keychain delete %q: %w", ref, err)
	}
	return nil
}

// WipeAll erases every cached key stored by keygate.
func (s *SystemStore) WipeAll() error {
	accounts, err := gokeychain.GetGenericPasswordAccounts(s.service)
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return nil
		}
		return fmt.Errorf("keychain list: %w", err)
	}
	for _, account := range accounts {
		if err := gokeychain.DeleteGenericPasswordItem(s.service, account); err != nil &&
			!errors.Is(err, gokeychain.ErrorItemNotFound) {
			return fmt.Errorf("keychain wipe %q: %w", account, err)
		}
	}
	return nil
}
