package update

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MotherSphere/GitSpace-sub000/internal/netpolicy"
)

// emptySHA256 is the digest of the empty byte string.
const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func httpPolicy() netpolicy.Policy {
	// httptest servers speak plain http.
	return netpolicy.Policy{UseHTTPS: false, Timeout: 5 * time.Second}
}

// feedServer serves *releases at /feed and the given asset bodies by path.
// The pointer lets callers fill in releases after the server URL is known,
// since asset download URLs point back at the server.
func feedServer(t *testing.T, releases *[]Release, bodies map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/feed", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(*releases)
	})
	for path, body := range bodies {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, body)
		})
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckOffersNewerStable(t *testing.T) {
	t.Parallel()
	var releases []Release
	srv := feedServer(t, &releases, map[string]string{
		"/app.sha256": emptySHA256 + " app\n",
	})
	releases = []Release{{
		TagName: "v0.2.0",
		HTMLURL: "https://example.com/releases/v0.2.0",
		Body:    "notes",
		Assets: []FeedAsset{
			{Name: "app", DownloadURL: srv.URL + "/app"},
			{Name: "app.sha256", DownloadURL: srv.URL + "/app.sha256"},
		},
	}}

	p := New(httpPolicy(), srv.URL+"/feed", "0.1.0", nil)
	info, err := p.Check(context.Background(), ChannelStable)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if info == nil {
		t.Fatal("expected an offer")
	}
	if info.Version != "0.2.0" {
		t.Errorf("Version = %q, want 0.2.0", info.Version)
	}
	if len(info.Assets) != 1 {
		t.Fatalf("Assets = %v", info.Assets)
	}
	if info.Assets[0].Name != "app" || info.Assets[0].Checksum != emptySHA256 {
		t.Errorf("asset = %+v", info.Assets[0])
	}
}

func TestCheckUpToDateOnEqualVersion(t *testing.T) {
	t.Parallel()
	releases := []Release{{TagName: "v1.4.0"}}
	srv := feedServer(t, &releases, nil)

	p := New(httpPolicy(), srv.URL+"/feed", "1.4.0", nil)
	info, err := p.Check(context.Background(), ChannelStable)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if info != nil {
		t.Errorf("expected up-to-date, got offer %+v", info)
	}
}

func TestCheckDoesNotOfferDowngrade(t *testing.T) {
	t.Parallel()
	releases := []Release{{TagName: "v1.1.9"}}
	srv := feedServer(t, &releases, nil)

	p := New(httpPolicy(), srv.URL+"/feed", "1.2.0", nil)
	info, err := p.Check(context.Background(), ChannelStable)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if info != nil {
		t.Errorf("expected no downgrade offer, got %+v", info)
	}
}

func TestCheckPreviewChannel(t *testing.T) {
	t.Parallel()
	var releases []Release
	srv := feedServer(t, &releases, map[string]string{
		"/pre.sha256": emptySHA256 + " pre\n",
	})
	releases = []Release{
		{TagName: "v2.0.0-rc1", PreRelease: true, Assets: []FeedAsset{
			{Name: "pre", DownloadURL: srv.URL + "/pre"},
			{Name: "pre.sha256", DownloadURL: srv.URL + "/pre.sha256"},
		}},
		{TagName: "v1.0.0"},
	}

	p := New(httpPolicy(), srv.URL+"/feed", "1.0.0", nil)
	info, err := p.Check(context.Background(), ChannelPreview)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if info == nil || info.Version != "2.0.0-rc1" {
		t.Errorf("preview offer = %+v", info)
	}
}

func TestCheckNoMatchingReleaseIsUpToDate(t *testing.T) {
	t.Parallel()
	// Only prereleases in the feed; the stable channel has nothing.
	releases := []Release{{TagName: "v2.0.0-rc1", PreRelease: true}}
	srv := feedServer(t, &releases, nil)

	p := New(httpPolicy(), srv.URL+"/feed", "1.0.0", nil)
	info, err := p.Check(context.Background(), ChannelStable)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if info != nil {
		t.Errorf("expected up-to-date, got %+v", info)
	}
}

func TestCheckSkipsDrafts(t *testing.T) {
	t.Parallel()
	releases := []Release{
		{TagName: "v9.0.0", Draft: true},
		{TagName: "v1.0.0"},
	}
	srv := feedServer(t, &releases, nil)

	p := New(httpPolicy(), srv.URL+"/feed", "1.0.0", nil)
	info, err := p.Check(context.Background(), ChannelStable)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if info != nil {
		t.Errorf("draft must not be offered, got %+v", info)
	}
}

func TestCheckRejectsUnverifiableRelease(t *testing.T) {
	t.Parallel()
	var releases []Release
	srv := feedServer(t, &releases, nil)
	releases = []Release{{TagName: "v0.2.0", Assets: []FeedAsset{
		{Name: "app", DownloadURL: srv.URL + "/app"},
	}}}

	p := New(httpPolicy(), srv.URL+"/feed", "0.1.0", nil)
	_, err := p.Check(context.Background(), ChannelStable)
	if !errors.Is(err, ErrVerification) {
		t.Errorf("expected ErrVerification for unverifiable release, got %v", err)
	}
}

func TestChecksumPreferredOverSignature(t *testing.T) {
	t.Parallel()
	var releases []Release
	srv := feedServer(t, &releases, map[string]string{
		"/app.sha256": emptySHA256 + " app\n",
	})
	releases = []Release{{TagName: "v0.2.0", Assets: []FeedAsset{
		{Name: "app", DownloadURL: srv.URL + "/app"},
		{Name: "app.sha256", DownloadURL: srv.URL + "/app.sha256"},
		{Name: "app.sig", DownloadURL: srv.URL + "/app.sig"},
	}}}

	p := New(httpPolicy(), srv.URL+"/feed", "0.1.0", nil)
	info, err := p.Check(context.Background(), ChannelStable)
	if err != nil {
		t.Fatal(err)
	}
	if len(info.Assets) != 1 {
		t.Fatalf("Assets = %+v", info.Assets)
	}
	a := info.Assets[0]
	if a.Checksum != emptySHA256 || a.SignatureURL != "" {
		t.Errorf("checksum should win when both exist: %+v", a)
	}
}

func TestShortChecksumTokenIsIgnored(t *testing.T) {
	t.Parallel()
	var releases []Release
	srv := feedServer(t, &releases, map[string]string{
		"/app.sha256": "abc123 app\n", // far too short for SHA-256
	})
	releases = []Release{{TagName: "v0.2.0", Assets: []FeedAsset{
		{Name: "app", DownloadURL: srv.URL + "/app"},
		{Name: "app.sha256", DownloadURL: srv.URL + "/app.sha256"},
	}}}

	p := New(httpPolicy(), srv.URL+"/feed", "0.1.0", nil)
	_, err := p.Check(context.Background(), ChannelStable)
	if !errors.Is(err, ErrVerification) {
		t.Errorf("expected ErrVerification when the only checksum is bogus, got %v", err)
	}
}

func TestPolicyBlocksFeedBeforeAnyDial(t *testing.T) {
	t.Parallel()
	// use_https forbids plain http; port 1 would fail loudly if dialed.
	p := New(netpolicy.Policy{UseHTTPS: true}, "http://127.0.0.1:1/feed", "0.1.0", nil)

	_, err := p.Check(context.Background(), ChannelStable)
	if !errors.Is(err, netpolicy.ErrDisallowed) {
		t.Errorf("expected ErrDisallowed, got %v", err)
	}
}

func TestCheckMalformedFeed(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	t.Cleanup(srv.Close)

	p := New(httpPolicy(), srv.URL, "0.1.0", nil)
	_, err := p.Check(context.Background(), ChannelStable)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestCheckFeedServerError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	p := New(httpPolicy(), srv.URL, "0.1.0", nil)
	_, err := p.Check(context.Background(), ChannelStable)
	if !errors.Is(err, ErrInvalidResponse) {
		t.Errorf("expected ErrInvalidResponse, got %v", err)
	}
}

func TestCheckHonorsCancellation(t *testing.T) {
	t.Parallel()
	releases := []Release{{TagName: "v1.0.0"}}
	srv := feedServer(t, &releases, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(httpPolicy(), srv.URL+"/feed", "0.1.0", nil)
	if _, err := p.Check(ctx, ChannelStable); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestTraceRecordsTransitions(t *testing.T) {
	t.Parallel()
	releases := []Release{{TagName: "v1.0.0"}}
	srv := feedServer(t, &releases, nil)

	p := New(httpPolicy(), srv.URL+"/feed", "1.0.0", nil)
	if _, err := p.Check(context.Background(), ChannelStable); err != nil {
		t.Fatal(err)
	}

	trace := strings.Join(p.Trace(), "\n")
	for _, state := range []State{StateFetching, StateSelecting, StateComparing, StateUpToDate} {
		if !strings.Contains(trace, string(state)) {
			t.Errorf("trace missing state %q:\n%s", state, trace)
		}
	}
}
