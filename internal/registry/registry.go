// Package registry reads and writes the plugin registry document.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrNotFound indicates no registry file exists at any candidate location
var ErrNotFound = errors.New("registry file not found")

// VersionUnknown is the placeholder version for plugins whose installed
// version has never been recorded. It never reaches the version comparator.
const VersionUnknown = "unknown"

// Plugin is a single registry record.
type Plugin struct {
	// Name uniquely identifies the plugin within a registry
	Name string `json:"name"`
	// Version is the recorded version, or "unknown"
	Version string `json:"version"`
	// Repository is the plugin's home page or repository URL
	Repository string `json:"repository"`
	// GitHubRepo is the owner/repo identifier (or a GitHub URL); optional
	GitHubRepo string `json:"github_repo,omitempty"`
	// DownloadURL is a recorded asset URL; optional
	DownloadURL string `json:"download_url,omitempty"`
}

// AssetFilename derives the asset filename from the recorded download URL.
// Returns "" when no download URL is recorded.
func (p *Plugin) AssetFilename() string {
	if p.DownloadURL == "" {
		return ""
	}
	return path.Base(p.DownloadURL)
}

// Document is the registry file contents: an ordered list of plugins.
type Document struct {
	Plugins []Plugin `json:"plugins"`
}

// SetVersion rewrites the version of the plugin with the given name.
// Matching is by exact name equality. Reports whether a record changed.
func (d *Document) SetVersion(name, version string) bool {
	for i := range d.Plugins {
		if d.Plugins[i].Name != name {
			continue
		}
		if d.Plugins[i].Version == version {
			return false
		}
		d.Plugins[i].Version = version
		return true
	}
	return false
}

// Load reads the registry from the first existing candidate path.
// The candidate order is part of the contract: the first file that
// exists wins. Returns the document and the path it was loaded from.
// If no candidate exists, the error wraps ErrNotFound.
func Load(candidates ...string) (*Document, string, error) {
	for _, p := range candidates {
		data, err := os.ReadFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, "", fmt.Errorf("reading registry %q: %w", p, err)
		}

		var doc Document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, "", fmt.Errorf("parsing registry %q: %w", p, err)
		}
		return &doc, p, nil
	}

	return nil, "", fmt.Errorf("%w (tried: %s)", ErrNotFound, strings.Join(candidates, ", "))
}

// Save serializes the document with pretty indentation and overwrites
// the target atomically: the content is written to a temp file in the
// same directory, then renamed over the target.
func Save(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling registry: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".registry-*.json")
	if err != nil {
		return fmt.Errorf("creating temp registry file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp registry file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp registry file: %w", err)
	}

	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("setting registry file mode: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing registry file: %w", err)
	}

	return nil
}

// Backup copies the registry file to a timestamped sibling before a
// destructive update. Returns the backup path.
func Backup(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading registry for backup: %w", err)
	}

	backupPath := fmt.Sprintf("%s.backup_%s", path, time.Now().Format("20060102_150405"))
	if err := os.WriteFile(backupPath, data, 0644); err != nil {
		return "", fmt.Errorf("writing registry backup: %w", err)
	}

	return backupPath, nil
}
