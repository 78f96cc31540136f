package vault

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MotherSphere/GitSpace-sub000/internal/keyring"
	"github.com/MotherSphere/GitSpace-sub000/internal/keys"
)

func newTestVault(t *testing.T, store keyring.Store, fallback bool) *Vault {
	t.Helper()
	dir := t.TempDir()
	provider := keys.NewProvider(store, dir, nil)
	return New(Config{Dir: dir, AllowFileFallback: fallback}, store, provider, nil)
}

func TestSetGetRoundTrip(t *testing.T) {
	t.Parallel()
	v := newTestVault(t, keyring.NewMemoryStore(), true)

	if err := v.Set("github.com", "ghp_AAA"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := v.Get("https://github.com/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "ghp_AAA" {
		t.Errorf("Get = %q, want %q", got, "ghp_AAA")
	}

	// The index file holds exactly the normalized host.
	data, err := os.ReadFile(filepath.Join(v.cfg.Dir, indexName))
	if err != nil {
		t.Fatalf("reading index: %v", err)
	}
	if string(data) != `{"hosts":["https://github.com"]}` {
		t.Errorf("index = %s", data)
	}
}

func TestSetRejectsEmptyToken(t *testing.T) {
	t.Parallel()
	v := newTestVault(t, keyring.NewMemoryStore(), true)

	if err := v.Set("github.com", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestEquivalentHostsShareEntry(t *testing.T) {
	t.Parallel()
	v := newTestVault(t, keyring.NewMemoryStore(), true)

	if err := v.Set("HTTPS://github.com/owner/repo", "tok"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := v.Get("github.com/")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "tok" {
		t.Errorf("Get = %q, want %q", got, "tok")
	}
}

func TestClearRemovesEverywhere(t *testing.T) {
	t.Parallel()
	v := newTestVault(t, keyring.NewMemoryStore(), true)

	if err := v.Set("gitlab.example.com", "tk"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	hosts, err := v.KnownHosts()
	if err != nil {
		t.Fatalf("KnownHosts: %v", err)
	}
	if !slices.Equal(hosts, []string{"https://gitlab.example.com"}) {
		t.Fatalf("KnownHosts = %v", hosts)
	}

	if err := v.Clear("gitlab.example.com"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := v.Get("gitlab.example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after clear, got %v", err)
	}
	hosts, err = v.KnownHosts()
	if err != nil {
		t.Fatalf("KnownHosts: %v", err)
	}
	if len(hosts) != 0 {
		t.Errorf("KnownHosts after clear = %v, want empty", hosts)
	}
}

func TestFallbackWhenStoreUnavailable(t *testing.T) {
	t.Parallel()
	store := keyring.NewMemoryStore()
	store.Broken = true
	v := newTestVault(t, store, true)

	if err := v.Set("github.com", "ghp_fallback"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := v.Get("github.com")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "ghp_fallback" {
		t.Errorf("Get = %q, want %q", got, "ghp_fallback")
	}

	if _, err := os.Stat(filepath.Join(v.cfg.Dir, blobName)); err != nil {
		t.Errorf("expected token blob on disk: %v", err)
	}
}

func TestStorageUnavailableWithoutFallback(t *testing.T) {
	t.Parallel()
	store := keyring.NewMemoryStore()
	store.Broken = true
	v := newTestVault(t, store, false)

	if err := v.Set("github.com", "tok"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if _, err := v.Get("github.com"); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("Get: expected ErrStorageUnavailable, got %v", err)
	}

	// No files were created under the config directory.
	entries, err := os.ReadDir(v.cfg.Dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("config dir not empty: %v", names)
	}
}

func TestNoncesDifferAcrossWrites(t *testing.T) {
	t.Parallel()
	store := keyring.NewMemoryStore()
	store.Broken = true
	v := newTestVault(t, store, true)

	readNonce := func() string {
		t.Helper()
		data, err := os.ReadFile(filepath.Join(v.cfg.Dir, blobName))
		if err != nil {
			t.Fatal(err)
		}
		var blob encryptedBlob
		if err := json.Unmarshal(data, &blob); err != nil {
			t.Fatal(err)
		}
		return blob.Nonce
	}

	if err := v.Set("github.com", "same-token"); err != nil {
		t.Fatal(err)
	}
	nonce1 := readNonce()
	if err := v.Set("github.com", "same-token"); err != nil {
		t.Fatal(err)
	}
	nonce2 := readNonce()

	if nonce1 == nonce2 {
		t.Error("two writes produced identical nonces")
	}
}

func TestTamperedBlobFailsClosed(t *testing.T) {
	t.Parallel()
	store := keyring.NewMemoryStore()
	store.Broken = true
	v := newTestVault(t, store, true)

	if err := v.Set("github.com", "secret-token"); err != nil {
		t.Fatal(err)
	}

	// Flip one bit of the ciphertext.
	path := filepath.Join(v.cfg.Dir, blobName)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var blob encryptedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		t.Fatal(err)
	}
	raw, err := base64.StdEncoding.DecodeString(blob.Ciphertext)
	if err != nil {
		t.Fatal(err)
	}
	raw[0] ^= 0x01
	blob.Ciphertext = base64.StdEncoding.EncodeToString(raw)
	tampered, err := json.Marshal(blob)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, tampered, 0600); err != nil {
		t.Fatal(err)
	}

	_, err = v.Get("github.com")
	if !errors.Is(err, ErrCrypto) {
		t.Errorf("expected ErrCrypto for tampered blob, got %v", err)
	}
}

func TestDecryptFailsAfterKeyRotation(t *testing.T) {
	t.Parallel()
	store := keyring.NewMemoryStore()
	dir := t.TempDir()
	v := New(Config{Dir: dir, AllowFileFallback: true},
		store, keys.NewProvider(store, dir, nil), nil)

	if err := v.Set("github.com", "tok"); err != nil {
		t.Fatal(err)
	}

	// Rotate: drop the sealed key, delete the keyring token, and open the
	// blob with a re-initialized provider. The new key cannot authenticate
	// the old blob.
	if err := store.Delete(keys.KeyAccount); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete("https://github.com"); err != nil {
		t.Fatal(err)
	}
	rotated := New(Config{Dir: dir, AllowFileFallback: true},
		store, keys.NewProvider(store, dir, nil), nil)

	_, err := rotated.Get("github.com")
	if !errors.Is(err, ErrCrypto) {
		t.Errorf("expected ErrCrypto after rotation, got %v", err)
	}
}

func TestKnownHostsSortedUnion(t *testing.T) {
	t.Parallel()
	v := newTestVault(t, keyring.NewMemoryStore(), true)

	for _, h := range []string{"gitlab.example.com", "github.com", "codeberg.org"} {
		if err := v.Set(h, "tok"); err != nil {
			t.Fatal(err)
		}
	}

	hosts, err := v.KnownHosts()
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"https://codeberg.org", "https://github.com", "https://gitlab.example.com"}
	if !slices.Equal(hosts, want) {
		t.Errorf("KnownHosts = %v, want %v", hosts, want)
	}
	if !slices.IsSorted(hosts) {
		t.Error("KnownHosts not sorted")
	}
}

func TestIndexSurvivesKeyringOnlyTokens(t *testing.T) {
	t.Parallel()
	// Fallback disabled: tokens live only in the keyring, yet hosts stay
	// enumerable through the index.
	v := newTestVault(t, keyring.NewMemoryStore(), false)

	if err := v.Set("github.com", "tok"); err != nil {
		t.Fatal(err)
	}
	hosts, err := v.KnownHosts()
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(hosts, []string{"https://github.com"}) {
		t.Errorf("KnownHosts = %v", hosts)
	}

	// And no encrypted blob was written.
	if _, err := os.Stat(filepath.Join(v.cfg.Dir, blobName)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected no blob without fallback, stat: %v", err)
	}
}

func TestBlobContainsNoPlaintextToken(t *testing.T) {
	t.Parallel()
	store := keyring.NewMemoryStore()
	store.Broken = true
	v := newTestVault(t, store, true)

	const token = "ghp_super_secret_value"
	if err := v.Set("github.com", token); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(v.cfg.Dir, blobName))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), token) {
		t.Error("token appears in cleartext in tokens.enc")
	}
}
