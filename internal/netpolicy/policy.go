// Package netpolicy gates every outbound URL against the user's transport
// settings before any network call is made.
package netpolicy

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ErrDisallowed is returned when a URL violates the configured policy.
// Policy errors are terminal: the user must amend their settings.
var ErrDisallowed = errors.New("url disallowed by transport policy")

// scp-like form: user@host:path, as accepted by git.
var scpLikeRe = regexp.MustCompile(`^[^/@]+@[^/:]+:`)

// Policy holds the user's scheme, proxy and timeout settings. The zero
// value forbids everything; callers construct one from config.
type Policy struct {
	// UseHTTPS true forbids plain http; false forbids https. The user has
	// declared exactly one of the two acceptable.
	UseHTTPS bool

	// AllowSSH permits ssh:// URLs and scp-like user@host:path forms.
	AllowSSH bool

	HTTPProxy  string
	HTTPSProxy string

	Timeout time.Duration
}

// Check validates a URL against the policy. It inspects the URL only and
// never opens a socket.
func (p Policy) Check(rawURL string) error {
	if scpLikeRe.MatchString(rawURL) {
		if !p.AllowSSH {
			return fmt.Errorf("%w: ssh transport is disabled (%s)", ErrDisallowed, rawURL)
		}
		return nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: unparseable url %q: %v", ErrDisallowed, rawURL, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ssh":
		if !p.AllowSSH {
			return fmt.Errorf("%w: ssh transport is disabled (%s)", ErrDisallowed, rawURL)
		}
	case "https":
		if !p.UseHTTPS {
			return fmt.Errorf("%w: https is disabled by settings (%s)", ErrDisallowed, rawURL)
		}
	case "http":
		if p.UseHTTPS {
			return fmt.Errorf("%w: plain http is forbidden while use_https is on (%s)", ErrDisallowed, rawURL)
		}
	default:
		return fmt.Errorf("%w: unsupported scheme %q (%s)", ErrDisallowed, u.Scheme, rawURL)
	}
	return nil
}

// Client builds an HTTP client honoring the configured proxies and timeout.
// With no proxies configured the environment proxy settings apply.
func (p Policy) Client() (*http.Client, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := &http.Transport{Proxy: http.ProxyFromEnvironment}
	if p.HTTPProxy != "" || p.HTTPSProxy != "" {
		httpProxy, err := parseProxy(p.HTTPProxy)
		if err != nil {
			return nil, err
		}
		httpsProxy, err := parseProxy(p.HTTPSProxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" {
				return httpsProxy, nil
			}
			return httpProxy, nil
		}
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

func parseProxy(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy url %q: %w", raw, err)
	}
	return u, nil
}
