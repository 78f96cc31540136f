// Package update fetches the release feed, selects a release for the
// active channel, and installs assets only when verifiable integrity
// metadata (a SHA-256 checksum or a detached signature) accompanies them.
// Binary replacement is transactional: any failure restores the previous
// file from its backup.
package update

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/MotherSphere/GitSpace-sub000/internal/logbuf"
	"github.com/MotherSphere/GitSpace-sub000/internal/netpolicy"
)

// State names one step of the pipeline. The pipeline records a finite,
// non-restartable trace of transitions; callers observe or ignore it.
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateSelecting   State = "selecting"
	StateComparing   State = "comparing"
	StateCollecting  State = "collecting-assets"
	StateOffering    State = "offering"
	StateUpToDate    State = "up-to-date"
	StateDownloading State = "downloading"
	StateVerifying   State = "verifying"
	StateReplacing   State = "replacing"
	StateInstalled   State = "installed"
	StateRolledBack  State = "rolled-back"
)

// Asset is a release artifact that passed collection: it carries a checksum
// or a detached-signature URL, never neither.
type Asset struct {
	Name         string
	URL          string
	Checksum     string // 64-hex SHA-256, lowercase; empty when signed instead
	SignatureURL string // detached signature; empty when checksummed
}

// ReleaseInfo is what the pipeline offers to its consumer.
type ReleaseInfo struct {
	Version string // tag with the leading "v" stripped
	URL     string // release landing page
	Notes   string
	Channel Channel
	Assets  []Asset
}

// maxAssetSize bounds in-memory downloads. Release binaries for a desktop
// client are tens of megabytes; anything past this is suspect.
const maxAssetSize = 512 << 20

// checkEvery rate-limits repeated feed checks from a single pipeline.
const checkEvery = 30 * time.Second

// Pipeline orchestrates feed retrieval, verification and replacement.
type Pipeline struct {
	policy  netpolicy.Policy
	feedURL string
	version string // current build version, leading "v" already absent
	logger  *slog.Logger
	limiter *rate.Limiter
	trace   *logbuf.Ring
	state   State
}

// New creates a pipeline. feedOverride may be empty to use the default
// feed; version is the running build's version string.
func New(policy netpolicy.Policy, feedOverride, version string, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	feed := feedOverride
	if feed == "" {
		feed = DefaultFeedURL
	}
	return &Pipeline{
		policy:  policy,
		feedURL: feed,
		version: stripTag(version),
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(checkEvery), 1),
		trace:   logbuf.New(64),
		state:   StateIdle,
	}
}

// Trace returns the recorded state-transition lines, oldest first.
func (p *Pipeline) Trace() []string {
	return p.trace.Lines()
}

// transition moves to the next state, honoring cancellation between
// transitions only: an in-flight HTTP body always completes first.
func (p *Pipeline) transition(ctx context.Context, next State, detail ...string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("cancelled before %s: %w", next, err)
	}
	p.state = next
	p.trace.Appendf(append([]string{string(next)}, detail...)...)
	p.logger.Debug("update pipeline state", "state", string(next))
	return nil
}

// Check fetches the feed and returns the release the channel should offer,
// or nil when the user is already up to date. Repeated calls are
// rate-limited; Check blocks until its slot or the context expires.
func (p *Pipeline) Check(ctx context.Context, channel Channel) (*ReleaseInfo, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if err := p.transition(ctx, StateFetching, p.feedURL); err != nil {
		return nil, err
	}
	releases, err := fetchFeed(ctx, p.policy, p.feedURL)
	if err != nil {
		return nil, err
	}

	if err := p.transition(ctx, StateSelecting, string(channel)); err != nil {
		return nil, err
	}
	release := selectRelease(releases, channel)
	if release == nil {
		p.transition(ctx, StateUpToDate, "no release for channel")
		return nil, nil
	}

	version := stripTag(release.TagName)
	if err := p.transition(ctx, StateComparing, version, "vs", p.version); err != nil {
		return nil, err
	}
	if !isNewer(version, p.version) {
		p.transition(ctx, StateUpToDate, version)
		return nil, nil
	}

	if err := p.transition(ctx, StateCollecting); err != nil {
		return nil, err
	}
	assets, err := p.collectAssets(ctx, release)
	if err != nil {
		return nil, err
	}

	info := &ReleaseInfo{
		Version: version,
		URL:     release.HTMLURL,
		Notes:   release.Body,
		Channel: channel,
		Assets:  assets,
	}
	p.transition(ctx, StateOffering, version)
	return info, nil
}

// collectAssets indexes ".sha256" and ".sig" companions by their stripped
// stem and accepts only the remaining assets that have one or the other. A
// release whose binaries carry no integrity metadata at all is treated as
// untrustworthy, not merely non-upgradeable.
func (p *Pipeline) collectAssets(ctx context.Context, release *Release) ([]Asset, error) {
	checksums := map[string]string{}
	signatures := map[string]string{}
	var candidates []FeedAsset

	for _, a := range release.Assets {
		switch {
		case strings.HasSuffix(a.Name, ".sha256"):
			sum, err := p.fetchChecksum(ctx, a.DownloadURL)
			if err != nil {
				return nil, err
			}
			if sum == "" {
				p.logger.Warn("ignoring malformed checksum file", "asset", a.Name)
				continue
			}
			checksums[strings.TrimSuffix(a.Name, ".sha256")] = sum

		case strings.HasSuffix(a.Name, ".sig"):
			// Body fetched later, during install.
			signatures[strings.TrimSuffix(a.Name, ".sig")] = a.DownloadURL

		default:
			candidates = append(candidates, a)
		}
	}

	var accepted []Asset
	for _, c := range candidates {
		sum, hasSum := checksums[c.Name]
		sigURL, hasSig := signatures[c.Name]
		if !hasSum && !hasSig {
			continue
		}
		asset := Asset{Name: c.Name, URL: c.DownloadURL}
		// Checksum preferred when both exist.
		if hasSum {
			asset.Checksum = strings.ToLower(sum)
		} else {
			asset.SignatureURL = sigURL
		}
		accepted = append(accepted, asset)
	}

	if len(accepted) == 0 {
		return nil, fmt.Errorf("%w: release %s has no asset with checksum or signature", ErrVerification, release.TagName)
	}
	return accepted, nil
}

// fetchChecksum retrieves a ".sha256" body and returns its first
// whitespace-separated token, or "" when the token is too short to be a
// SHA-256 digest.
func (p *Pipeline) fetchChecksum(ctx context.Context, rawURL string) (string, error) {
	body, err := p.download(ctx, rawURL)
	if err != nil {
		return "", err
	}
	fields := strings.Fields(string(body))
	if len(fields) == 0 || len(fields[0]) < 64 {
		return "", nil
	}
	return fields[0], nil
}

// download retrieves a full body into memory, subject to transport policy.
func (p *Pipeline) download(ctx context.Context, rawURL string) ([]byte, error) {
	if err := p.policy.Check(rawURL); err != nil {
		return nil, err
	}
	client, err := p.policy.Client()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrNetwork, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned status %d", ErrInvalidResponse, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %v", ErrNetwork, err)
	}
	return body, nil
}
