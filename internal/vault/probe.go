package vault

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/MotherSphere/GitSpace-sub000/internal/netpolicy"
)

// probeTarget describes how to verify a token against a provider's API.
type probeTarget struct {
	url    string
	header string // header carrying the token
	bearer bool   // true: "Bearer <token>", false: raw token value
}

// probeFor maps a normalized host to its token-check endpoint. Unknown
// providers return ok=false and skip the probe.
func probeFor(norm string) (probeTarget, bool) {
	u, err := url.Parse(norm)
	if err != nil {
		return probeTarget{}, false
	}
	hostname := u.Hostname()
	switch {
	case hostname == "github.com":
		return probeTarget{url: "https://api.github.com/user", header: "Authorization", bearer: true}, true
	case strings.Contains(hostname, "gitlab"):
		return probeTarget{url: norm + "/api/v4/user", header: "PRIVATE-TOKEN"}, true
	}
	return probeTarget{}, false
}

// ValidateAndStore probes the host's API with the token before storing it.
// A non-2xx response rejects the token with ErrTokenRejected. Hosts with no
// known probe endpoint are stored without validation. The probe URL is
// subject to the transport policy like every other outbound call.
func (v *Vault) ValidateAndStore(ctx context.Context, host, token string, policy netpolicy.Policy) error {
	norm, err := Normalize(host)
	if err != nil {
		return err
	}
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidInput)
	}

	if target, ok := probeFor(norm); ok {
		if err := v.probe(ctx, target, token, policy); err != nil {
			return err
		}
	}
	return v.Set(norm, token)
}

func (v *Vault) probe(ctx context.Context, target probeTarget, token string, policy netpolicy.Policy) error {
	if err := policy.Check(target.url); err != nil {
		return err
	}
	client, err := policy.Client()
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.url, nil)
	if err != nil {
		return fmt.Errorf("creating probe request: %w", err)
	}
	value := token
	if target.bearer {
		value = "Bearer " + token
	}
	req.Header.Set(target.header, value)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("token probe failed: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s returned %d", ErrTokenRejected, target.url, resp.StatusCode)
	}
	return nil
}
