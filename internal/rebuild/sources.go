package rebuild

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/plugreg/plugreg/internal/github"
	"github.com/plugreg/plugreg/internal/registry"
)

// ExtraRepo is one [[repos]] entry in a repos.toml file placed next to
// the registry. It adds repositories to a rebuild beyond the ones the
// existing registry already lists.
type ExtraRepo struct {
	// Repo is the owner/name identifier (required)
	Repo string `toml:"repo"`
	// RepositoryURL overrides the repository URL recorded for the plugin
	RepositoryURL string `toml:"repository_url,omitempty"`
}

// sourcesFile is the on-disk TOML structure.
type sourcesFile struct {
	Repos []ExtraRepo `toml:"repos"`
}

// LoadExtraRepos reads a repos.toml file. A missing file yields no
// extras; a malformed file or an entry without a repo is an error.
func LoadExtraRepos(path string) ([]ExtraRepo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var file sourcesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	for i, r := range file.Repos {
		if r.Repo == "" {
			return nil, fmt.Errorf("%s: repos entry %d is missing the repo field", path, i+1)
		}
	}

	return file.Repos, nil
}

// Source is one repository to pull a manifest from during a rebuild.
type Source struct {
	// Repo is the normalized owner/name identifier
	Repo string
	// RepositoryURL is the repository URL to record when the manifest
	// does not declare one
	RepositoryURL string
}

// SourcesFromDocument derives the rebuild source set: every registry
// entry with a resolvable GitHub repository, followed by the extra
// repositories, deduplicated by repo identifier. Entries without a
// resolvable repository are silently left out, matching the check
// workflow's skip semantics.
func SourcesFromDocument(doc *registry.Document, extras []ExtraRepo) []Source {
	var sources []Source
	seen := make(map[string]bool)

	add := func(repo, repoURL string) {
		if seen[repo] {
			return
		}
		seen[repo] = true
		sources = append(sources, Source{Repo: repo, RepositoryURL: repoURL})
	}

	for _, p := range doc.Plugins {
		if p.GitHubRepo == "" {
			continue
		}
		repo, err := github.NormalizeRepo(p.GitHubRepo)
		if err != nil {
			continue
		}
		add(repo, p.Repository)
	}

	for _, e := range extras {
		repo, err := github.NormalizeRepo(e.Repo)
		if err != nil {
			continue
		}
		add(repo, e.RepositoryURL)
	}

	return sources
}
