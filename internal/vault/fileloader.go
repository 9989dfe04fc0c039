package vault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/nacl/secretbox"
	"gopkg.in/yaml.v3"
)

// FileProvider is the provider tag for file-backed vaults; the Ref
// descriptor is the vault file path.
const FileProvider = "file"

const (
	fileVersion  = 1
	kdfTime      = 1
	kdfMemoryKiB = 64 * 1024
	kdfThreads   = 4
)

// fileHeader is the on-disk envelope. The payload is a secretbox over
// the yaml-encoded item list, keyed by argon2id of the master key.
type fileHeader struct {
	Version int    `yaml:"version"`
	Salt    string `yaml:"salt"`
	Nonce   string `yaml:"nonce"`
	Payload string `yaml:"payload"`
}

type filePayload struct {
	Items []Item `yaml:"items"`
}

// WriteFile seals items under key and writes them to path atomically.
func WriteFile(path string, key *Key, items []Item) error {
	plain, err := yaml.Marshal(filePayload{Items: items})
	if err != nil {
		return err
	}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return err
	}

	var boxKey [32]byte
	copy(boxKey[:], argon2.IDKey(key.Bytes(), salt, kdfTime, kdfMemoryKiB, kdfThreads, 32))
	sealed := secretbox.Seal(nil, plain, &nonce, &boxKey)

	hdr := fileHeader{
		Version: fileVersion,
		Salt:    base64.StdEncoding.EncodeToString(salt),
		Nonce:   base64.StdEncoding.EncodeToString(nonce[:]),
		Payload: base64.StdEncoding.EncodeToString(sealed),
	}
	data, err := yaml.Marshal(hdr)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

var errWrongKey = errors.New("wrong key")

func openFile(path string, keyBytes []byte) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var hdr fileHeader
	if err := yaml.Unmarshal(data, &hdr); err != nil {
		return nil, fmt.Errorf("parsing vault header: %w", err)
	}
	if hdr.Version != fileVersion {
		return nil, fmt.Errorf("unsupported vault version %d", hdr.Version)
	}

	salt, err := base64.StdEncoding.DecodeString(hdr.Salt)
	if err != nil {
		return nil, fmt.Errorf("parsing vault header: %w", err)
	}
	nonceRaw, err := base64.StdEncoding.DecodeString(hdr.Nonce)
	if err != nil || len(nonceRaw) != 24 {
		return nil, errors.New("parsing vault header: bad nonce")
	}
	sealed, err := base64.StdEncoding.DecodeString(hdr.Payload)
	if err != nil {
		return nil, fmt.Errorf("parsing vault header: %w", err)
	}

	var nonce [24]byte
	copy(nonce[:], nonceRaw)
	var boxKey [32]byte
	copy(boxKey[:], argon2.IDKey(keyBytes, salt, kdfTime, kdfMemoryKiB, kdfThreads, 32))

	plain, ok := secretbox.Open(nil, sealed, &nonce, &boxKey)
	if !ok {
		return nil, errWrongKey
	}

	var payload filePayload
	if err := yaml.Unmarshal(plain, &payload); err != nil {
		return nil, fmt.Errorf("parsing vault payload: %w", err)
	}
	return payload.Items, nil
}

// FileLoader opens file-backed vaults. Each Load runs on its own
// goroutine and reports through the callbacks, honoring the Loader
// contract that nothing fires synchronously from Load.
type FileLoader struct {
	logger *slog.Logger
}

// NewFileLoader creates a loader for file-backed vaults.
func NewFileLoader() *FileLoader {
	return &FileLoader{logger: slog.With("component", "fileloader")}
}

func (l *FileLoader) Load(ctx context.Context, ref Ref, key *Key, mode AccessMode, timeout time.Duration, cb Callbacks) *Pending {
	// The caller may wipe key as soon as a completion fires; work from a
	// private copy and zero it on the way out.
	keyBytes := append([]byte(nil), key.Bytes()...)

	loadCtx, cancel := context.WithTimeout(ctx, timeout)

	type fileResult struct {
		items []Item
		err   error
	}

	go func() {
		defer cancel()

		if cb.OnProgress != nil {
			cb.OnProgress(0)
		}

		// The file read runs apart from the deadline watch: a read that
		// hangs (FIFO, stale network mount) must not stop the timeout
		// from delivering a completion. The reader owns the key copy
		// and wipes it whenever it finally returns.
		res := make(chan fileResult, 1)
		go func() {
			defer wipeBytes(keyBytes)
			items, err := openFile(ref.Descriptor, keyBytes)
			res <- fileResult{items: items, err: err}
		}()

		var r fileResult
		select {
		case r = <-res:
		case <-loadCtx.Done():
			l.reportCtx(loadCtx, ref, timeout, cb)
			return
		}

		// A cancelled or timed-out load reports as such even when the
		// file work happened to finish.
		if loadCtx.Err() != nil {
			l.reportCtx(loadCtx, ref, timeout, cb)
			return
		}

		switch {
		case errors.Is(r.err, errWrongKey):
			l.fail(cb, FailInvalidKey)
		case r.err != nil:
			l.logger.Error("vault load failed", "vault", ref.String(), "error", r.err)
			l.fail(cb, FailOther)
		default:
			if cb.OnProgress != nil {
				cb.OnProgress(1)
			}
			if cb.OnSuccess != nil {
				cb.OnSuccess(NewMemStore(r.items), nil)
			}
		}
	}()

	return NewPending(cancel)
}

func (l *FileLoader) reportCtx(ctx context.Context, ref Ref, timeout time.Duration, cb Callbacks) {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		l.logger.Warn("vault load timed out", "vault", ref.String(), "timeout", timeout)
		l.fail(cb, FailOther)
		return
	}
	l.fail(cb, FailCanceled)
}

func (l *FileLoader) fail(cb Callbacks, kind FailKind) {
	if cb.OnFailure != nil {
		cb.OnFailure(kind)
	}
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
