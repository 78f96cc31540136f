// Package config loads the trust-core settings from the gitspace config
// directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MotherSphere/GitSpace-sub000/internal/netpolicy"
	"github.com/MotherSphere/GitSpace-sub000/internal/update"
)

// Settings holds persistent configuration loaded from
// <config-dir>/gitspace/config.yaml.
type Settings struct {
	UseHTTPS       bool   `yaml:"use_https"`
	AllowSSH       bool   `yaml:"allow_ssh"`
	HTTPProxy      string `yaml:"http_proxy"`
	HTTPSProxy     string `yaml:"https_proxy"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`

	AllowEncryptedFallback bool `yaml:"allow_encrypted_fallback"`

	UpdateChannel string `yaml:"update_channel"` // "stable" | "preview"
	UpdateFeed    string `yaml:"update_feed"`    // feed URL override
}

// Defaults returns the settings used when no config file exists.
func Defaults() *Settings {
	return &Settings{
		UseHTTPS:               true,
		TimeoutSeconds:         30,
		AllowEncryptedFallback: true,
		UpdateChannel:          string(update.ChannelStable),
	}
}

// DefaultDir returns the gitspace config directory under the per-user
// configuration root.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "gitspace"), nil
}

// DefaultPath returns the default config file path.
func DefaultPath() string {
	dir, err := DefaultDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// Load reads a YAML settings file. A missing, empty or all-comment file
// returns the defaults and no error.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Defaults(), nil
		}
		return nil, err
	}

	s := Defaults()
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing settings %s: %w", path, err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("validating settings %s: %w", path, err)
	}
	return s, nil
}

// Validate checks that settings are well-formed.
func (s *Settings) Validate() error {
	switch s.UpdateChannel {
	case "", string(update.ChannelStable), string(update.ChannelPreview):
		// ok
	default:
		return fmt.Errorf("update_channel must be %q or %q, got %q",
			update.ChannelStable, update.ChannelPreview, s.UpdateChannel)
	}
	if s.TimeoutSeconds < 0 {
		return fmt.Errorf("timeout_seconds must not be negative, got %d", s.TimeoutSeconds)
	}
	return nil
}

// Policy maps settings onto the transport policy consulted before every
// outbound request.
func (s *Settings) Policy() netpolicy.Policy {
	return netpolicy.Policy{
		UseHTTPS:   s.UseHTTPS,
		AllowSSH:   s.AllowSSH,
		HTTPProxy:  s.HTTPProxy,
		HTTPSProxy: s.HTTPSProxy,
		Timeout:    time.Duration(s.TimeoutSeconds) * time.Second,
	}
}

// Channel returns the configured update channel.
func (s *Settings) Channel() update.Channel {
	if s.UpdateChannel == string(update.ChannelPreview) {
		return update.ChannelPreview
	}
	return update.ChannelStable
}
