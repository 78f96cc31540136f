package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/MotherSphere/GitSpace-sub000/internal/netpolicy"
)

// DefaultFeedURL is the release feed queried when no override is set. The
// wire format is the GitHub releases API subset: tag_name, html_url,
// prerelease, body, and assets with name and browser_download_url.
const DefaultFeedURL = "https://api.github.com/repos/MotherSphere/GitSpace-sub000/releases"

// Channel is a named release track.
type Channel string

const (
	ChannelStable  Channel = "stable"
	ChannelPreview Channel = "preview"
)

// Release is one element of the feed.
type Release struct {
	TagName    string      `json:"tag_name"`
	HTMLURL    string      `json:"html_url"`
	PreRelease bool        `json:"prerelease"`
	Draft      bool        `json:"draft"`
	Body       string      `json:"body"`
	Assets     []FeedAsset `json:"assets"`
}

// FeedAsset is a single downloadable artifact attached to a release.
type FeedAsset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

// fetchFeed retrieves and decodes the release list. The URL is validated
// against the transport policy before any socket is opened.
func fetchFeed(ctx context.Context, policy netpolicy.Policy, feedURL string) ([]Release, error) {
	if err := policy.Check(feedURL); err != nil {
		return nil, err
	}
	client, err := policy.Client()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building feed request: %v", ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching feed: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned status %d", ErrInvalidResponse, resp.StatusCode)
	}

	var releases []Release
	if err := json.NewDecoder(resp.Body).Decode(&releases); err != nil {
		return nil, fmt.Errorf("%w: decoding feed: %v", ErrInvalidResponse, err)
	}
	return releases, nil
}

// selectRelease picks the first release matching the channel: stable wants
// the first non-prerelease, preview the first prerelease. Drafts never
// match. Returns nil when the feed has no matching release.
func selectRelease(releases []Release, channel Channel) *Release {
	for i := range releases {
		r := &releases[i]
		if r.Draft {
			continue
		}
		switch channel {
		case ChannelPreview:
			if r.PreRelease {
				return r
			}
		default:
			if !r.PreRelease {
				return r
			}
		}
	}
	return nil
}
