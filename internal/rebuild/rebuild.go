// Package rebuild reconstructs the plugin registry from upstream
// manifests, bypassing the update-check workflow entirely.
package rebuild

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/plugreg/plugreg/internal/github"
	"github.com/plugreg/plugreg/internal/common/logger"
	"github.com/plugreg/plugreg/internal/registry"
)

// ErrConversion indicates a fetched manifest could not be converted
// into a registry record. Conversion failures are fatal to the whole
// rebuild run, unlike fetch failures which skip a single repository.
var ErrConversion = errors.New("manifest conversion failed")

// Manifest is the plugin.yaml structure declared by plugin repositories.
type Manifest struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Repository  string `yaml:"repository"`
	GitHubRepo  string `yaml:"github_repo"`
	DownloadURL string `yaml:"download_url"`
}

// Rebuilder assembles a fresh registry document from upstream manifests.
type Rebuilder struct {
	client *github.Client
}

// New creates a rebuilder using the given client.
func New(client *github.Client) *Rebuilder {
	return &Rebuilder{client: client}
}

// Run fetches plugin.yaml from every source sequentially and assembles
// a brand-new document. Fetched manifests are staged in a temp working
// directory that is removed on every exit path. A fetch failure logs
// and skips the repository; a conversion failure aborts the run.
// Duplicate plugin names collapse to the first occurrence.
func (rb *Rebuilder) Run(sources []Source) (*registry.Document, error) {
	workDir, err := os.MkdirTemp("", "plugreg-rebuild-")
	if err != nil {
		return nil, fmt.Errorf("creating working directory: %w", err)
	}
	defer os.RemoveAll(workDir)

	fresh := &registry.Document{Plugins: []registry.Plugin{}}
	seen := make(map[string]bool)

	for _, src := range sources {
		data, err := rb.client.FetchManifest(src.Repo, github.DefaultManifestPath)
		if err != nil {
			logger.Warn("skipping %s: %v", src.Repo, err)
			continue
		}

		staged := filepath.Join(workDir, strings.ReplaceAll(src.Repo, "/", "_")+".yaml")
		if err := os.WriteFile(staged, data, 0644); err != nil {
			return nil, fmt.Errorf("staging manifest for %s: %w", src.Repo, err)
		}

		record, err := convert(src, data)
		if err != nil {
			return nil, err
		}

		if seen[record.Name] {
			logger.Warn("duplicate plugin name %q from %s, keeping the first occurrence", record.Name, src.Repo)
			continue
		}
		seen[record.Name] = true

		fresh.Plugins = append(fresh.Plugins, record)
	}

	return fresh, nil
}

// convert maps a manifest onto the registry record schema. Name and
// version are required; missing repository fields fall back to the
// source the manifest came from.
func convert(src Source, data []byte) (registry.Plugin, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return registry.Plugin{}, fmt.Errorf("%w: %s: %v", ErrConversion, src.Repo, err)
	}

	if m.Name == "" || m.Version == "" {
		return registry.Plugin{}, fmt.Errorf("%w: %s: manifest is missing name or version", ErrConversion, src.Repo)
	}

	repoURL := m.Repository
	if repoURL == "" {
		repoURL = src.RepositoryURL
	}
	if repoURL == "" {
		repoURL = "https://github.com/" + src.Repo
	}

	ghRepo := m.GitHubRepo
	if ghRepo == "" {
		ghRepo = src.Repo
	}

	return registry.Plugin{
		Name:        m.Name,
		Version:     m.Version,
		Repository:  repoURL,
		GitHubRepo:  ghRepo,
		DownloadURL: m.DownloadURL,
	}, nil
}
