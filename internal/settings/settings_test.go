package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benaskins/keygate/internal/vault"
)

func TestLoadMissingFile(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "settings.yaml"))
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if len(s.Vaults) != 0 {
		t.Errorf("expected empty settings, got %+v", s)
	}
	if s.Attempts() != DefaultPasscodeAttempts {
		t.Errorf("expected default attempts, got %d", s.Attempts())
	}
	if s.Inactivity() != DefaultInactivityTimeout {
		t.Errorf("expected default inactivity, got %v", s.Inactivity())
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	in := &Settings{
		Vaults: []VaultEntry{
			{
				Ref:    vault.Ref{Provider: "file", Descriptor: "/v/work.kdbx", Name: "Work"},
				Policy: UnlockPolicy{FallbackTimeout: 3 * time.Second, RememberKey: true},
			},
		},
		PasscodeHash:     "argon2id$v=19$m=65536,t=1,p=4$abc$def",
		PasscodeAttempts: 3,
	}
	if err := Save(path, in); err != nil {
		t.Fatalf("save: %v", err)
	}

	out, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(out.Vaults) != 1 {
		t.Fatalf("expected 1 vault, got %d", len(out.Vaults))
	}
	e := out.Vaults[0]
	if e.Ref.Descriptor != "/v/work.kdbx" || !e.Policy.RememberKey {
		t.Errorf("round trip mangled entry: %+v", e)
	}
	if e.Timeout() != 3*time.Second {
		t.Errorf("expected 3s timeout, got %v", e.Timeout())
	}
	if out.Attempts() != 3 {
		t.Errorf("expected 3 attempts, got %d", out.Attempts())
	}
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte("vaults: [unclosed"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error for malformed settings")
	}
}

func TestCatalogFind(t *testing.T) {
	c := NewCatalog(&Settings{Vaults: []VaultEntry{
		{Ref: vault.Ref{Provider: "file", Descriptor: "/v/a.kdbx", Name: "A"}},
		{Ref: vault.Ref{Provider: "icloud", Descriptor: "docs/b.kdbx", Name: "B"}},
	}})

	e, ok := c.Find("icloud", "docs/b.kdbx")
	if !ok || e.Ref.Name != "B" {
		t.Fatalf("expected B, got %+v ok=%v", e, ok)
	}
	if _, ok := c.Find("file", "/v/b.kdbx"); ok {
		t.Error("expected miss for unknown descriptor")
	}
	if e.Timeout() != DefaultFallbackTimeout {
		t.Errorf("expected default timeout, got %v", e.Timeout())
	}

	if got := len(c.Refs()); got != 2 {
		t.Errorf("expected 2 refs, got %d", got)
	}
}

func TestCatalogReplace(t *testing.T) {
	c := NewCatalog(&Settings{})
	c.Replace([]VaultEntry{{Ref: vault.Ref{Provider: "file", Descriptor: "/x"}}})
	if _, ok := c.Find("file", "/x"); !ok {
		t.Error("replaced entry not found")
	}
}
