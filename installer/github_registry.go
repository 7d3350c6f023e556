package installer

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// GitHubRegistry resolves packages from a GitHub repository's release
// assets instead of the jsdelivr/unpkg CDN, talking to the GitHub REST
// API over plain net/http with a bearer token. A caller selects it by
// pointing registryBaseUrl at "github:owner/repo".
//
// Dependency resolution (the /v2/deps endpoint) has no GitHub analogue,
// so a GitHubRegistry is only usable as the module-fetch half of
// Registry; FetchDeps always errors.
type GitHubRegistry struct {
	Owner, Repo string
	Token       string
	Client      *http.Client
}

// NewGitHubRegistry creates a registry client against a GitHub repo's
// release assets: release "<name>-<version>" carrying an asset named
// "<name>-<version>.tar.gz".
func NewGitHubRegistry(owner, repo, token string) *GitHubRegistry {
	return &GitHubRegistry{
		Owner:  owner,
		Repo:   repo,
		Token:  token,
		Client: &http.Client{Timeout: 60 * time.Second},
	}
}

var _ Registry = (*GitHubRegistry)(nil)

func (r *GitHubRegistry) FetchDeps(ctx context.Context, fingerprint string) (map[string]string, error) {
	return nil, fmt.Errorf("github registry: dependency resolution is not supported, only module fetch")
}

type ghReleaseAsset struct {
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

type ghRelease struct {
	TagName string           `json:"tag_name"`
	Assets  []ghReleaseAsset `json:"assets"`
}

func (r *GitHubRegistry) do(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if r.Token != "" {
		req.Header.Set("Authorization", "Bearer "+r.Token)
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("github registry: GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// FetchModule finds the release tagged "<name>-<version>" and downloads
// its "<name>-<version>.tar.gz" asset, unpacking it into the same
// relativePath -> bytes shape FetchModule returns for the CDN.
func (r *GitHubRegistry) FetchModule(ctx context.Context, name, version string) (map[string][]byte, error) {
	tag := name + "-" + version
	var rel ghRelease
	url := fmt.Sprintf("https://api.github.com/repos/%s/%s/releases/tags/%s", r.Owner, r.Repo, tag)
	if err := r.do(ctx, url, &rel); err != nil {
		return nil, err
	}

	assetName := name + "-" + version + ".tar.gz"
	var assetURL string
	for _, a := range rel.Assets {
		if a.Name == assetName {
			assetURL = a.BrowserDownloadURL
			break
		}
	}
	if assetURL == "" {
		return nil, fmt.Errorf("github registry: release %s has no asset named %s", tag, assetName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github registry: download %s: status %d", assetURL, resp.StatusCode)
	}

	gz, err := gzip.NewReader(resp.Body)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	out := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		rel := strings.TrimPrefix(hdr.Name, "package/")
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		out[rel] = data
	}
	return out, nil
}
