package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// indexName is the plaintext host catalogue under the config dir. It exists
// so hosts can be enumerated even when every token lives in the keyring,
// which has no portable enumeration API.
const indexName = "token-hosts.json"

// hostIndex persists the ordered, de-duplicated list of known hosts.
type hostIndex struct {
	path string
	mu   sync.Mutex
}

type indexFile struct {
	Hosts []string `json:"hosts"`
}

func newHostIndex(dir string) *hostIndex {
	return &hostIndex{path: filepath.Join(dir, indexName)}
}

func (ix *hostIndex) load() ([]string, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.loadUnsafe()
}

// add appends a host if not present and persists. Idempotent.
func (ix *hostIndex) add(host string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	hosts, err := ix.loadUnsafe()
	if err != nil {
		return err
	}
	if slices.Contains(hosts, host) {
		return nil
	}
	hosts = append(hosts, host)
	slices.Sort(hosts)
	return ix.saveUnsafe(hosts)
}

// remove deletes a host if present and persists.
func (ix *hostIndex) remove(host string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	hosts, err := ix.loadUnsafe()
	if err != nil {
		return err
	}
	i := slices.Index(hosts, host)
	if i < 0 {
		return nil
	}
	hosts = slices.Delete(hosts, i, i+1)
	return ix.saveUnsafe(hosts)
}

// loadUnsafe reads without locking — caller must hold ix.mu.
func (ix *hostIndex) loadUnsafe() ([]string, error) {
	data, err := os.ReadFile(ix.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading host index: %w", err)
	}

	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing host index: %w", err)
	}
	return f.Hosts, nil
}

func (ix *hostIndex) saveUnsafe(hosts []string) error {
	if err := os.MkdirAll(filepath.Dir(ix.path), 0700); err != nil {
		return err
	}
	data, err := json.Marshal(indexFile{Hosts: hosts})
	if err != nil {
		return err
	}
	tmpPath := ix.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, ix.path)
}
