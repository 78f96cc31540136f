// Package keys produces the 32-byte symmetric key that encrypts the vault's
// file fallback.
//
// The preferred key is sealed: generated once and stored base64-encoded in
// the platform secret store under the "token-key" account. When the secret
// store is unavailable the key is derived instead, from machine-bound inputs
// (user, hostname, OS) through Argon2id with a persisted random salt and
// pepper. Regenerating either file invalidates every existing blob.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/crypto/argon2"

	"github.com/MotherSphere/GitSpace-sub000/internal/audit"
	"github.com/MotherSphere/GitSpace-sub000/internal/keyring"
)

const (
	// KeyAccount is the secret store account holding the sealed key.
	KeyAccount = "token-key"

	// MasterPasswordEnv overrides the machine-bound master password used
	// on the derived path.
	MasterPasswordEnv = "GITSPACE_TOKEN_MASTER_PASSWORD"

	saltFile   = "token-salt.bin"
	pepperFile = "token-pepper.bin"

	keySize    = 32
	saltSize   = 16
	pepperSize = 32

	// Argon2id parameters: 32 MiB, 3 iterations, 1 lane.
	kdfTime    = 3
	kdfMemory  = 32 * 1024
	kdfThreads = 1
)

// ErrBadSealedKey is returned when the secret store holds a sealed key of
// the wrong length. Deriving a different key instead would silently orphan
// every existing blob, so this is permanent until the entry is repaired.
var ErrBadSealedKey = errors.New("sealed key has wrong length")

// Provider resolves the file-cipher key once per process and caches it.
//
// First initialization of the sealed key is racy across processes: two
// concurrent processes may both generate and Set, and the last writer wins.
// The loser's blobs fail to decrypt afterwards; the recovery is to purge
// tokens.enc. A same-process Provider is safe for concurrent use.
type Provider struct {
	store  keyring.Store
	dir    string
	logger *slog.Logger
	audit  *audit.Logger

	// kdf is swappable in tests; the default is Argon2id.
	kdf func(material, salt []byte) []byte

	once sync.Once
	key  []byte
	err  error
}

// NewProvider creates a key provider. dir is the gitspace config directory
// where the salt and pepper files live.
func NewProvider(store keyring.Store, dir string, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		store:  store,
		dir:    dir,
		logger: logger,
		kdf: func(material, salt []byte) []byte {
			return argon2.IDKey(material, salt, kdfTime, kdfMemory, kdfThreads, keySize)
		},
	}
}

// WithAudit records a key_derived entry whenever the provider falls back to
// the derived key. A nil logger disables the recording.
func (p *Provider) WithAudit(a *audit.Logger) *Provider {
	p.audit = a
	return p
}

// Key returns the 32-byte file-cipher key, resolving it on first call and
// caching it for the process lifetime.
func (p *Provider) Key() ([]byte, error) {
	p.once.Do(func() {
		p.key, p.err = p.resolve()
	})
	return p.key, p.err
}

func (p *Provider) resolve() ([]byte, error) {
	encoded, err := p.store.Get(KeyAccount)
	switch {
	case err == nil:
		key, decErr := base64.StdEncoding.DecodeString(encoded)
		if decErr != nil {
			return nil, fmt.Errorf("%w: not base64: %v", ErrBadSealedKey, decErr)
		}
		if len(key) != keySize {
			return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrBadSealedKey, len(key), keySize)
		}
		return key, nil

	case errors.Is(err, keyring.ErrNotFound):
		return p.generateSealed()

	case errors.Is(err, keyring.ErrUnavailable):
		p.logger.Warn("secret store unavailable, deriving machine-bound key", "error", err)
		return p.derive()

	default:
		return nil, fmt.Errorf("reading sealed key: %w", err)
	}
}

// generateSealed creates a fresh key and seals it in the secret store.
func (p *Provider) generateSealed() ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	if err := p.store.Set(KeyAccount, base64.StdEncoding.EncodeToString(key)); err != nil {
		if errors.Is(err, keyring.ErrUnavailable) {
			// The store died between Get and Set; derive as if it had
			// been unavailable all along.
			p.logger.Warn("secret store lost while sealing key, deriving instead", "error", err)
			return p.derive()
		}
		return nil, fmt.Errorf("sealing key: %w", err)
	}
	return key, nil
}

// derive computes the key from machine-bound inputs via Argon2id.
func (p *Provider) derive() ([]byte, error) {
	salt, err := p.loadOrCreate(saltFile, saltSize)
	if err != nil {
		return nil, err
	}
	pepper, err := p.loadOrCreate(pepperFile, pepperSize)
	if err != nil {
		return nil, err
	}

	master := os.Getenv(MasterPasswordEnv)
	if master == "" {
		master = fmt.Sprintf("%s:%s:%s", currentUser(), hostname(), runtime.GOOS)
	}

	h := sha256.New()
	h.Write([]byte(master))
	h.Write(pepper)
	material := h.Sum(nil)

	degraded := false
	key := p.kdf(material, salt)
	if len(key) != keySize {
		// A broken KDF must not take the vault down, but the key
		// strength drops to a bare hash.
		p.logger.Warn("KDF returned unusable key, degrading to SHA-256", "got_len", len(key))
		sum := sha256.Sum256(material)
		key = sum[:]
		degraded = true
	}

	if p.audit != nil {
		entry := audit.Entry{Action: audit.ActionKeyDerived}
		if degraded {
			entry.Error = "kdf degraded to sha-256"
		}
		// Best-effort; a failure to log never blocks key derivation.
		p.audit.Log(entry)
	}
	return key, nil
}

// loadOrCreate reads a random-bytes file under the config dir, creating it
// with CSPRNG bytes on first use.
func (p *Provider) loadOrCreate(name string, size int) ([]byte, error) {
	path := filepath.Join(p.dir, name)
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != size {
			return nil, fmt.Errorf("%s is corrupt: got %d bytes, want %d", name, len(data), size)
		}
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	data = make([]byte, size)
	if _, err := rand.Read(data); err != nil {
		return nil, fmt.Errorf("generating %s: %w", name, err)
	}
	if err := os.MkdirAll(p.dir, 0700); err != nil {
		return nil, fmt.Errorf("creating config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return nil, fmt.Errorf("writing %s: %w", name, err)
	}
	return data, nil
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	if u := os.Getenv("USERNAME"); u != "" {
		return u
	}
	return "unknown"
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return name
}
