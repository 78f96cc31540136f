package main

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/MotherSphere/GitSpace-sub000/internal/audit"
	"github.com/MotherSphere/GitSpace-sub000/internal/config"
	"github.com/MotherSphere/GitSpace-sub000/internal/keyring"
	"github.com/MotherSphere/GitSpace-sub000/internal/keys"
	"github.com/MotherSphere/GitSpace-sub000/internal/vault"
)

// gitspaceHome returns the gitspace config directory, creating it if
// needed.
func gitspaceHome() (string, error) {
	dir, err := config.DefaultDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}

// loadSettings reads the settings file from the default location.
func loadSettings() (*config.Settings, error) {
	return config.Load(config.DefaultPath())
}

// openAudit opens the append-only audit log under dir, or returns nil when
// it cannot be opened; the CLI continues without audit in that case.
func openAudit(dir string) *audit.Logger {
	logger, err := audit.NewLogger(filepath.Join(dir, "audit.log"))
	if err != nil {
		slog.Warn("audit log unavailable, continuing without", "error", err)
		return nil
	}
	return logger
}

// openVault wires the secret store, audit log, key provider and engine
// together for CLI use. The key provider talks to the raw store so sealed-key
// access is not recorded as a token operation.
func openVault(settings *config.Settings) (*vault.Vault, error) {
	dir, err := gitspaceHome()
	if err != nil {
		return nil, err
	}

	sys := keyring.NewSystemStore()
	auditLog := openAudit(dir)

	var store keyring.Store = sys
	if auditLog != nil {
		store = keyring.NewAuditedStore(sys, auditLog, "cli")
	}

	provider := keys.NewProvider(sys, dir, slog.Default()).WithAudit(auditLog)
	return vault.New(vault.Config{
		Dir:               dir,
		AllowFileFallback: settings.AllowEncryptedFallback,
	}, store, provider, slog.Default()), nil
}
