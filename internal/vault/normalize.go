package vault

import (
	"fmt"
	"net/url"
	"strings"
)

// Normalize canonicalizes a user-entered host to scheme + authority only,
// lowercased, no path, no trailing slash. "github.com/", "https://github.com"
// and "HTTPS://github.com/owner/repo" all normalize to "https://github.com".
func Normalize(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("%w: empty host", ErrInvalidInput)
	}
	s = strings.TrimRight(s, "/")

	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("%w: unparseable host %q: %v", ErrInvalidInput, raw, err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: no host in %q", ErrInvalidInput, raw)
	}

	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}
