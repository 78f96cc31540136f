// Package vault maps normalized hosts to access tokens.
//
// Tokens live in the platform secret store when it is reachable, and in an
// AEAD-encrypted file blob when it is not (and the user has opted in to the
// fallback). A plaintext host index is kept alongside so hosts can be
// enumerated either way. The engine is synchronous; callers serialize Set
// and Clear for a single instance, and cross-process writes are
// last-writer-wins.
package vault

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/MotherSphere/GitSpace-sub000/internal/keyring"
	"github.com/MotherSphere/GitSpace-sub000/internal/keys"
)

// ErrNotFound is returned by Get when no token exists for the host.
var ErrNotFound = errors.New("no token for host")

// Config carries the engine's paths and policy knobs. No module-level
// singletons: everything the engine touches is passed in here.
type Config struct {
	// Dir is the gitspace config directory holding tokens.enc and
	// token-hosts.json.
	Dir string

	// AllowFileFallback opts in to the encrypted file blob when the
	// secret store is unavailable, and mirrors tokens into it otherwise.
	AllowFileFallback bool
}

// Vault is the credential engine.
type Vault struct {
	cfg    Config
	store  keyring.Store
	keys   *keys.Provider
	index  *hostIndex
	logger *slog.Logger
}

// New creates a vault engine.
func New(cfg Config, store keyring.Store, provider *keys.Provider, logger *slog.Logger) *Vault {
	if logger == nil {
		logger = slog.Default()
	}
	return &Vault{
		cfg:    cfg,
		store:  store,
		keys:   provider,
		index:  newHostIndex(cfg.Dir),
		logger: logger,
	}
}

func (v *Vault) blobPath() string {
	return filepath.Join(v.cfg.Dir, blobName)
}

// Set stores a token for a host. Ordering: secret store first, then the
// file blob, then the index — a reader observing any prefix sees a
// consistent subset. A failed index update after a successful token store
// is logged but does not fail the operation.
func (v *Vault) Set(host, token string) error {
	norm, err := Normalize(host)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidInput)
	}

	storeErr := v.store.Set(norm, token)
	switch {
	case storeErr == nil:
		// Mirror into the file blob only when the user opted in.
		if v.cfg.AllowFileFallback {
			if err := v.updateBlob(norm, token); err != nil {
				v.logger.Warn("token stored in keyring but file mirror failed", "host", norm, "error", err)
			}
		}

	case errors.Is(storeErr, keyring.ErrUnavailable):
		if !v.cfg.AllowFileFallback {
			return fmt.Errorf("%w: %v", ErrStorageUnavailable, storeErr)
		}
		if err := v.updateBlob(norm, token); err != nil {
			return err
		}

	default:
		return fmt.Errorf("storing token for %s: %w", norm, storeErr)
	}

	if err := v.index.add(norm); err != nil {
		v.logger.Warn("token stored but host index update failed", "host", norm, "error", err)
	}
	return nil
}

// Get returns the token for a host, or ErrNotFound.
func (v *Vault) Get(host string) (string, error) {
	norm, err := Normalize(host)
	if err != nil {
		return "", err
	}

	token, storeErr := v.store.Get(norm)
	switch {
	case storeErr == nil:
		return token, nil

	case errors.Is(storeErr, keyring.ErrNotFound):
		if !v.cfg.AllowFileFallback {
			return "", fmt.Errorf("%w: %s", ErrNotFound, norm)
		}

	case errors.Is(storeErr, keyring.ErrUnavailable):
		if !v.cfg.AllowFileFallback {
			return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, storeErr)
		}

	default:
		return "", fmt.Errorf("reading token for %s: %w", norm, storeErr)
	}

	tokens, err := v.readBlob()
	if err != nil {
		return "", err
	}
	token, ok := tokens[norm]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNotFound, norm)
	}
	return token, nil
}

// Clear removes a host's token everywhere it might live. Best-effort: a
// later step still runs when an earlier one fails, and the first error is
// reported without undoing prior successful steps.
func (v *Vault) Clear(host string) error {
	norm, err := Normalize(host)
	if err != nil {
		return err
	}

	var firstErr error
	if err := v.store.Delete(norm); err != nil && !errors.Is(err, keyring.ErrUnavailable) {
		firstErr = fmt.Errorf("deleting keyring entry for %s: %w", norm, err)
	}

	if v.cfg.AllowFileFallback {
		if _, statErr := os.Stat(v.blobPath()); statErr == nil {
			if err := v.removeFromBlob(norm); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := v.index.remove(norm); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// KnownHosts returns the union of the host index and, when the fallback is
// enabled, the keys of the decrypted token map, sorted ascending. The
// secret store is never enumerated; platform APIs do not expose that
// portably.
func (v *Vault) KnownHosts() ([]string, error) {
	hosts, err := v.index.load()
	if err != nil {
		return nil, err
	}

	if v.cfg.AllowFileFallback {
		if _, statErr := os.Stat(v.blobPath()); statErr == nil {
			tokens, err := v.readBlob()
			if err != nil {
				// Enumeration stays usable when the blob is corrupt;
				// Get surfaces the crypto failure.
				v.logger.Warn("host index enumeration skipping unreadable blob", "error", err)
			} else {
				for h := range tokens {
					if !slices.Contains(hosts, h) {
						hosts = append(hosts, h)
					}
				}
			}
		}
	}

	slices.Sort(hosts)
	return hosts, nil
}

// updateBlob rewrites the encrypted blob with the entry set.
func (v *Vault) updateBlob(host, token string) error {
	key, err := v.keys.Key()
	if err != nil {
		return err
	}
	tokens, err := openTokenMap(v.blobPath(), key)
	if err != nil {
		return err
	}
	tokens[host] = token
	if err := os.MkdirAll(v.cfg.Dir, 0700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return sealTokenMap(v.blobPath(), key, tokens)
}

// removeFromBlob rewrites the encrypted blob without the entry.
func (v *Vault) removeFromBlob(host string) error {
	key, err := v.keys.Key()
	if err != nil {
		return err
	}
	tokens, err := openTokenMap(v.blobPath(), key)
	if err != nil {
		return err
	}
	if _, ok := tokens[host]; !ok {
		return nil
	}
	delete(tokens, host)
	return sealTokenMap(v.blobPath(), key, tokens)
}

func (v *Vault) readBlob() (map[string]string, error) {
	key, err := v.keys.Key()
	if err != nil {
		return nil, err
	}
	return openTokenMap(v.blobPath(), key)
}
