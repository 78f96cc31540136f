package vault

import "errors"

// Error kinds callers branch on with errors.Is. Messages carry the human
// detail; the kind is the contract.
var (
	// ErrInvalidInput marks empty or malformed arguments. Caller-fixable.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStorageUnavailable means the platform secret store failed and
	// the encrypted file fallback is disabled.
	ErrStorageUnavailable = errors.New("secret storage unavailable")

	// ErrCrypto marks authenticated decryption or key failure. It is not
	// retryable: it signals tampering, corruption, or a changed salt,
	// pepper or sealed key. The recovery is to purge tokens.enc and
	// re-enter tokens.
	ErrCrypto = errors.New("vault decryption failed")

	// ErrTokenRejected means the provider probe refused the token.
	ErrTokenRejected = errors.New("token rejected by provider")
)
