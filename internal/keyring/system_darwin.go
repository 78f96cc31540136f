//go:build darwin

package keyring

import (
	"errors"
	"fmt"

	gokeychain "github.com/keybase/go-keychain"
)

const (
	// ServiceName is the Keychain service attribute for all gitspace entries.
	ServiceName = "com.gitspace"
)

// SystemStore provides CRUD operations for entries in macOS Keychain.
type SystemStore struct {
	service string
}

// NewSystemStore creates a Keychain-backed store using the default service.
func NewSystemStore() *SystemStore {
	return &SystemStore{service: ServiceName}
}

// NewSystemStoreForService creates a Keychain-backed store with an explicit
// service name. Used when multiple deployments share a machine.
func NewSystemStoreForService(service string) *SystemStore {
	return &SystemStore{service: service}
}

// Set stores an entry in the Keychain. Overwrites if it already exists.
func (s *SystemStore) Set(account, value string) error {
	// Update = delete + add; the delete may legitimately find nothing.
	_ = s.Delete(account)

	item := gokeychain.NewGenericPassword(
		s.service,
		account,
		fmt.Sprintf("gitspace: %s", account),
		[]byte(value),
		"",
	)
	item.SetSynchronizable(gokeychain.SynchronizableNo)
	item.SetAccessible(gokeychain.AccessibleWhenUnlockedThisDeviceOnly)

	if err := gokeychain.AddItem(item); err != nil {
		return fmt.Errorf("%w: keychain add %q: %v", ErrUnavailable, account, err)
	}
	return nil
}

// Get retrieves an entry from the Keychain.
func (s *SystemStore) Get(account string) (string, error) {
	data, err := gokeychain.GetGenericPassword(s.service, account, "", "")
	if err != nil {
		if errors.Is(err, gokeychain.ErrorItemNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, account)
		}
		return "", fmt.Errorf("%w: keychain get %q: %v", ErrUnavailable, account, err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, account)
	}
	return string(data), nil
}

// Delete removes an entry from the Keychain. A missing entry is success.
func (s *SystemStore) Delete(account string) error {
	err := gokeychain.DeleteGenericPasswordItem(s.service, account)
	if err != nil && !errors.Is(err, gokeychain.ErrorItemNotFound) {
		return fmt.Errorf("%w: keychain delete %q: %v", ErrUnavailable, account, err)
	}
	return nil
}
