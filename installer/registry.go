package installer

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Registry is the transport contract to the remote content-addressed
// CDN: resolve a dependency fingerprint to concrete versions, and fetch
// a single resolved package's file tree.
type Registry interface {
	// FetchDeps issues GET {base}/v2/deps/{fingerprint} and returns the
	// decoded "name@major -> version" map.
	FetchDeps(ctx context.Context, fingerprint string) (map[string]string, error)
	// FetchModule issues GET {base}/v2/mod/{base64(name@version)} and
	// returns the decoded "relativePath -> bytes" map.
	FetchModule(ctx context.Context, name, version string) (map[string][]byte, error)
}

// NewRegistry selects a Registry implementation by baseURL's scheme:
// "github:owner/repo" resolves modules from that repository's release
// assets (authenticated with $GITHUB_TOKEN when set); "s3://bucket",
// optionally with "?region=...&endpoint=..." query parameters, resolves
// modules from an S3-compatible bucket using the environment's default
// AWS credential chain; anything else is treated as the base URL of an
// HTTP CDN speaking the registry's own deps/module protocol.
func NewRegistry(ctx context.Context, baseURL string) (Registry, error) {
	switch {
	case strings.HasPrefix(baseURL, "github:"):
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("installer: parse registry url %q: %w", baseURL, err)
		}
		parts := strings.SplitN(u.Opaque, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("installer: registry url %q must be github:owner/repo", baseURL)
		}
		return NewGitHubRegistry(parts[0], parts[1], os.Getenv("GITHUB_TOKEN")), nil

	case strings.HasPrefix(baseURL, "s3://"):
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("installer: parse registry url %q: %w", baseURL, err)
		}
		region := u.Query().Get("region")
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Registry(ctx, u.Query().Get("endpoint"), region, "", "", u.Host)

	default:
		return NewHTTPRegistry(baseURL), nil
	}
}

// HTTPRegistry is the default Registry, talking CBOR over HTTP to a
// single base URL. FallbackOf chains a secondary registry that is tried
// on a non-OK status or transport error, the same primary/fallback CDN
// idiom the worker pool's engine-artifact fetch uses.
type HTTPRegistry struct {
	BaseURL    string
	Client     *http.Client
	FallbackOf *HTTPRegistry // optional secondary registry tried on failure
}

// NewHTTPRegistry creates a registry client with a 60-second per-request
// timeout.
func NewHTTPRegistry(baseURL string) *HTTPRegistry {
	return &HTTPRegistry{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 60 * time.Second},
	}
}

var _ Registry = (*HTTPRegistry)(nil)

func (r *HTTPRegistry) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		if r.FallbackOf != nil {
			return r.FallbackOf.get(ctx, path)
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		if r.FallbackOf != nil {
			return r.FallbackOf.get(ctx, path)
		}
		return nil, fmt.Errorf("registry: GET %s: status %d", path, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (r *HTTPRegistry) FetchDeps(ctx context.Context, fingerprint string) (map[string]string, error) {
	body, err := r.get(ctx, "/v2/deps/"+fingerprint)
	if err != nil {
		return nil, err
	}
	var out map[string]string
	if err := cbor.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("registry: decode deps response: %w", err)
	}
	return out, nil
}

func (r *HTTPRegistry) FetchModule(ctx context.Context, name, version string) (map[string][]byte, error) {
	key := base64.StdEncoding.EncodeToString([]byte(name + "@" + version))
	body, err := r.get(ctx, "/v2/mod/"+key)
	if err != nil {
		return nil, err
	}
	var out map[string][]byte
	if err := cbor.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("registry: decode module response: %w", err)
	}
	return out, nil
}

// modCacheKey is the persistent-cache request path for a resolved
// package's module fetch. It is also the HTTP path, so the cache and
// the transport share a single canonical request string.
func modCacheKey(name, version string) string {
	return "/v2/mod/" + base64.StdEncoding.EncodeToString([]byte(name+"@"+version))
}

func depsCacheKey(fingerprint string) string {
	return "/v2/deps/" + fingerprint
}
