// Package settings holds persistent configuration: the vault catalog,
// per-vault unlock policy, and the app-lock parameters. It is loaded from
// ~/.keygate/settings.yaml.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/benaskins/keygate/internal/vault"
)

const (
	// DefaultFallbackTimeout bounds a vault load when the vault has no
	// policy of its own.
	DefaultFallbackTimeout = 15 * time.Second

	// DefaultPasscodeAttempts is the consecutive-failure threshold that
	// triggers the cached-key wipe.
	DefaultPasscodeAttempts = 5

	// DefaultInactivityTimeout is the idle period after which interactive
	// flows must pass the app-lock gate again.
	DefaultInactivityTimeout = 2 * time.Minute

	// DefaultBiometricReprompt throttles how often a biometric challenge
	// is offered after a successful one.
	DefaultBiometricReprompt = 15 * time.Second
)

// UnlockPolicy is the per-vault unlock configuration.
type UnlockPolicy struct {
	// FallbackTimeout bounds a load attempt for this vault.
	FallbackTimeout time.Duration `yaml:"fallback_timeout,omitempty"`

	// RememberKey allows caching the master key in the secret store
	// after a successful interactive unlock.
	RememberKey bool `yaml:"remember_key,omitempty"`
}

// VaultEntry is one catalog row: a vault reference plus its policy.
type VaultEntry struct {
	Ref    vault.Ref    `yaml:",inline"`
	Policy UnlockPolicy `yaml:"policy,omitempty"`
}

// Settings is the persisted configuration.
type Settings struct {
	Vaults []VaultEntry `yaml:"vaults,omitempty"`

	// PasscodeHash is the argon2id-encoded app passcode, empty if unset.
	PasscodeHash string `yaml:"passcode_hash,omitempty"`

	// PasscodeAttempts is the failure threshold for the cached-key wipe.
	PasscodeAttempts int `yaml:"passcode_attempts,omitempty"`

	BiometricEnabled  bool          `yaml:"biometric_enabled,omitempty"`
	BiometricReprompt time.Duration `yaml:"biometric_reprompt,omitempty"`

	InactivityTimeout time.Duration `yaml:"inactivity_timeout,omitempty"`
}

// DefaultPath returns the default settings path: ~/.keygate/settings.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".keygate", "settings.yaml")
}

// Load reads settings from path. A missing file returns defaults and no
// error; an empty or all-comment file likewise.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &Settings{}, nil
		}
		return nil, err
	}

	s := &Settings{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings: %w", err)
	}
	return s, nil
}

// Save writes settings to path atomically (temp file + rename).
func Save(path string, s *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// Attempts returns the configured passcode threshold or the default.
func (s *Settings) Attempts() int {
	if s.PasscodeAttempts > 0 {
		return s.PasscodeAttempts
	}
	return DefaultPasscodeAttempts
}

// Inactivity returns the configured inactivity timeout or the default.
func (s *Settings) Inactivity() time.Duration {
	if s.InactivityTimeout > 0 {
		return s.InactivityTimeout
	}
	return DefaultInactivityTimeout
}

// Reprompt returns the biometric re-prompt interval or the default.
func (s *Settings) Reprompt() time.Duration {
	if s.BiometricReprompt > 0 {
		return s.BiometricReprompt
	}
	return DefaultBiometricReprompt
}

// Catalog is the live vault-reference catalog. It is safe for concurrent
// readers and is the only writer of its entry list; the watcher replaces
// the list wholesale on reload.
type Catalog struct {
	mu      sync.RWMutex
	entries []VaultEntry
}

// NewCatalog builds a catalog from loaded settings.
func NewCatalog(s *Settings) *Catalog {
	c := &Catalog{}
	c.Replace(s.Vaults)
	return c
}

// Replace swaps the entry list.
func (c *Catalog) Replace(entries []VaultEntry) {
	cp := make([]VaultEntry, len(entries))
	copy(cp, entries)
	c.mu.Lock()
	c.entries = cp
	c.mu.Unlock()
}

// Refs returns the catalogued vault references in order.
func (c *Catalog) Refs() []vault.Ref {
	c.mu.RLock()
	defer c.mu.RUnlock()
	refs := make([]vault.Ref, len(c.entries))
	for i, e := range c.entries {
		refs[i] = e.Ref
	}
	return refs
}

// Find returns the entry matching (provider, descriptor).
func (c *Catalog) Find(provider, descriptor string) (VaultEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	probe := vault.Ref{Provider: provider, Descriptor: descriptor}
	for _, e := range c.entries {
		if e.Ref.Equal(probe) {
			return e, true
		}
	}
	return VaultEntry{}, false
}

// Timeout returns the load timeout for an entry, falling back to the
// package default.
func (e VaultEntry) Timeout() time.Duration {
	if e.Policy.FallbackTimeout > 0 {
		return e.Policy.FallbackTimeout
	}
	return DefaultFallbackTimeout
}
