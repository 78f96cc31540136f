//go:build !darwin

package keyring

import "fmt"

// SystemStore reports the secret store as unavailable on platforms without
// a supported keyring. The vault engine falls back to the encrypted file
// when the user has opted in.
type SystemStore struct{}

// NewSystemStore creates the unavailable stub store.
func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

// NewSystemStoreForService creates the unavailable stub store. The service
// name is ignored; there is no platform store to scope entries under.
func NewSystemStoreForService(string) *SystemStore {
	return &SystemStore{}
}

func (s *SystemStore) Set(account, value string) error {
	return fmt.Errorf("%w: no keyring on this platform", ErrUnavailable)
}

func (s *SystemStore) Get(account string) (string, error) {
	return "", fmt.Errorf("%w: no keyring on this platform", ErrUnavailable)
}

func (s *SystemStore) Delete(account string) error {
	return fmt.Errorf("%w: no keyring on this platform", ErrUnavailable)
}
