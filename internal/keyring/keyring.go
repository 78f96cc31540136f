// Package keyring provides token storage backed by the platform secret store.
//
// On macOS tokens are stored as Keychain generic passwords with:
//   - Service: "com.gitspace" (all gitspace entries share this service)
//   - Account: the entry name (a normalized host, or "token-key")
//   - Label: "gitspace: <account>" (for Keychain Access.app visibility)
//
// Entries are scoped with kSecAttrAccessibleWhenUnlockedThisDeviceOnly:
// never synced to iCloud, never available when the machine is locked.
//
// Absence and unavailability are distinct: a missing entry is ErrNotFound
// and never a failure, while a store that cannot be reached at all is
// ErrUnavailable so that callers can fall back to the encrypted file.
package keyring

import "errors"

// ErrNotFound is returned when an entry does not exist in the store.
var ErrNotFound = errors.New("entry not found")

// ErrUnavailable is returned when the platform secret store cannot be
// reached. Callers branch on it to decide whether to use the encrypted
// file fallback.
var ErrUnavailable = errors.New("secret store unavailable")

// Store is the interface for secret store operations. Implementations do
// no policy work; they only relay to the platform store.
type Store interface {
	Set(account, value string) error
	Get(account string) (string, error)
	Delete(account string) error
}
