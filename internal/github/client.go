// Package github talks to the GitHub REST API for release metadata,
// manifest contents, and asset downloads.
package github

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrNoReleases indicates the repository has no published releases
	ErrNoReleases = errors.New("no releases published")
	// ErrAPI indicates a GitHub API failure (network or upstream error)
	ErrAPI = errors.New("GitHub API error")
	// ErrFetchFailed indicates a manifest could not be fetched or decoded
	ErrFetchFailed = errors.New("manifest fetch failed")
	// ErrDownloadFailed indicates an asset transfer did not complete
	ErrDownloadFailed = errors.New("download failed")
)

// DefaultManifestPath is the manifest location inside a plugin repository.
const DefaultManifestPath = "plugin.yaml"

// Client handles communication with the GitHub API.
type Client struct {
	BaseURL    string
	UserAgent  string
	Token      string // optional personal access token, raises rate limits
	HTTPClient *http.Client
}

// NewClient creates a GitHub API client with the default endpoint.
func NewClient() *Client {
	return &Client{
		BaseURL:   "https://api.github.com",
		UserAgent: "plugreg/1.0",
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Release is the latest-release metadata for a repository.
type Release struct {
	// Tag is the release tag with a single leading "v" stripped
	Tag string
	// Assets are the files attached to the release
	Assets []Asset
}

// Asset is a single downloadable file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

// releaseResponse mirrors the fields read from the releases/latest
// endpoint. Error bodies carry a "message" field instead.
type releaseResponse struct {
	TagName string  `json:"tag_name"`
	Message string  `json:"message"`
	Assets  []Asset `json:"assets"`
}

func (c *Client) get(url string) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	return c.HTTPClient.Do(req)
}

// LatestRelease fetches the latest release for an owner/repo identifier.
// A repository without releases yields ErrNoReleases; any other upstream
// or transport failure yields an error wrapping ErrAPI.
func (c *Client) LatestRelease(ownerRepo string) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", c.BaseURL, ownerRepo)

	resp, err := c.get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: API request failed: %v", ErrAPI, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: API request failed: %v", ErrAPI, err)
	}

	// GitHub answers 404 with {"message": "Not Found"} when a repository
	// exists but has never published a release.
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoReleases
	}

	var rel releaseResponse
	if err := json.Unmarshal(body, &rel); err != nil {
		return nil, fmt.Errorf("%w: parsing response: %v", ErrAPI, err)
	}

	if rel.Message == "Not Found" {
		return nil, ErrNoReleases
	}
	if rel.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrAPI, rel.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: API request failed: status %d", ErrAPI, resp.StatusCode)
	}

	return &Release{
		Tag:    strings.TrimPrefix(rel.TagName, "v"),
		Assets: rel.Assets,
	}, nil
}

// FetchManifest fetches a file from the repository's default branch via
// the contents endpoint and base64-decodes it. An empty path fetches
// DefaultManifestPath.
func (c *Client) FetchManifest(ownerRepo, path string) ([]byte, error) {
	if path == "" {
		path = DefaultManifestPath
	}
	url := fmt.Sprintf("%s/repos/%s/contents/%s", c.BaseURL, ownerRepo, path)

	resp, err := c.get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrFetchFailed, ownerRepo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s: status %d", ErrFetchFailed, ownerRepo, resp.StatusCode)
	}

	var content struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&content); err != nil {
		return nil, fmt.Errorf("%w: %s: parsing response: %v", ErrFetchFailed, ownerRepo, err)
	}
	if content.Content == "" {
		return nil, fmt.Errorf("%w: %s: response has no content field", ErrFetchFailed, ownerRepo)
	}

	// The contents API wraps base64 at 60 columns.
	data, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(content.Content, "\n", ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: decoding content: %v", ErrFetchFailed, ownerRepo, err)
	}

	return data, nil
}

// ResolveAssetURL re-queries the latest release and scans its assets for
// an exact filename match. Returns "" when the repository has no release
// or no asset carries the filename.
func (c *Client) ResolveAssetURL(ownerRepo, filename string) (string, error) {
	rel, err := c.LatestRelease(ownerRepo)
	if err != nil {
		if errors.Is(err, ErrNoReleases) {
			return "", nil
		}
		return "", err
	}

	for _, asset := range rel.Assets {
		if asset.Name == filename {
			return asset.DownloadURL, nil
		}
	}

	return "", nil
}

// URLReachable issues a HEAD request and reports whether it completed
// with a success status. No content is read.
func (c *Client) URLReachable(url string) bool {
	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 400
}

// Download GETs a URL (following redirects) and writes the body to dest,
// creating parent directories as needed.
func (c *Client) Download(url, dest string) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	req.Header.Set("User-Agent", c.UserAgent)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDownloadFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s: status %d", ErrDownloadFailed, url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrDownloadFailed, filepath.Dir(dest), err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: creating %s: %v", ErrDownloadFailed, dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return fmt.Errorf("%w: writing %s: %v", ErrDownloadFailed, dest, err)
	}

	return nil
}

// NormalizeRepo extracts an owner/repo identifier from the GitHub URL
// forms that appear in registry entries: full https URLs (with or
// without a trailing slash), bare github.com paths, and plain
// owner/repo references.
func NormalizeRepo(s string) (string, error) {
	orig := s
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "/")
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", fmt.Errorf("not an owner/repo reference: %q", orig)
	}

	return parts[0] + "/" + parts[1], nil
}
