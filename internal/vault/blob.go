package vault

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"golang.org/x/crypto/chacha20poly1305"
)

// blobName is the encrypted token map file under the config dir.
const blobName = "tokens.enc"

// encryptedBlob is the on-disk record: a fresh 96-bit nonce and the AEAD
// ciphertext of the JSON-serialized host→token map. The authentication tag
// covers the whole map, so a reader always sees a self-consistent state.
type encryptedBlob struct {
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// sealTokenMap encrypts the map under key and writes the blob atomically.
// Every call draws a fresh nonce; nonces never repeat for the same key
// except with negligible probability.
func sealTokenMap(path string, key []byte, tokens map[string]string) error {
	plaintext, err := json.Marshal(tokens)
	if err != nil {
		return fmt.Errorf("serializing token map: %w", err)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCrypto, err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("generating nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	blob := encryptedBlob{
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
	}
	data, err := json.MarshalIndent(blob, "", "  ")
	if err != nil {
		return fmt.Errorf("serializing blob: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("writing token blob: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// openTokenMap reads and authenticates the blob. A missing file is an empty
// map; any decode or authentication failure is ErrCrypto, never an empty
// map — a tampered blob must not look like an empty vault.
func openTokenMap(path string, key []byte) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading token blob: %w", err)
	}

	var blob encryptedBlob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("%w: malformed blob: %v", ErrCrypto, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(blob.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: bad nonce encoding: %v", ErrCrypto, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(blob.Ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding: %v", ErrCrypto, err)
	}
	if len(nonce) != chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("%w: nonce is %d bytes, want %d", ErrCrypto, len(nonce), chacha20poly1305.NonceSize)
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCrypto, err)
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: authentication failed", ErrCrypto)
	}

	tokens := map[string]string{}
	if err := json.Unmarshal(plaintext, &tokens); err != nil {
		return nil, fmt.Errorf("%w: decrypted map is malformed: %v", ErrCrypto, err)
	}
	return tokens, nil
}
