// Package reconcile decides per-plugin update actions by comparing
// registry entries against their latest upstream releases.
package reconcile

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/plugreg/plugreg/internal/github"
	"github.com/plugreg/plugreg/internal/registry"
	"github.com/plugreg/plugreg/internal/version"
)

// Outcome classifies what happened to a single plugin during a run.
type Outcome int

const (
	// OutcomeSkipped means the plugin has no GitHub repository configured
	OutcomeSkipped Outcome = iota
	// OutcomeNoReleases means the repository has never published a release
	OutcomeNoReleases
	// OutcomeAPIError means the repository reference was malformed or the
	// API query failed
	OutcomeAPIError
	// OutcomeUpToDate means the recorded version matches the latest release
	OutcomeUpToDate
	// OutcomeUpdateAvailable means the latest release supersedes the
	// recorded version (or the recorded version is "unknown")
	OutcomeUpdateAvailable
	// OutcomeLocalAhead means the recorded version is newer than the
	// latest release
	OutcomeLocalAhead
)

// String returns a short human-readable name for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeNoReleases:
		return "no releases"
	case OutcomeAPIError:
		return "error"
	case OutcomeUpToDate:
		return "up to date"
	case OutcomeUpdateAvailable:
		return "update available"
	case OutcomeLocalAhead:
		return "local ahead"
	default:
		return "unknown"
	}
}

// Options controls which side effects a run is allowed to perform.
type Options struct {
	// AutoDownload enables fetching updated assets into DownloadDir
	AutoDownload bool
	// DownloadDir is where downloaded assets land
	DownloadDir string
	// UpdateRegistry enables rewriting registry versions in place
	UpdateRegistry bool
}

// Result is the outcome of checking a single plugin.
type Result struct {
	// Name is the plugin name
	Name string
	// Current is the registry version at the start of the check
	Current string
	// Latest is the upstream release version, when one was fetched
	Latest string
	// Outcome classifies the check
	Outcome Outcome
	// Err holds the failure for OutcomeAPIError
	Err error
	// RegistryUpdated is true when the in-memory registry was rewritten
	RegistryUpdated bool
	// DownloadURL is the usable asset URL (recorded or resolved); empty
	// when the plugin records no download URL or none could be resolved
	DownloadURL string
	// DownloadedTo is the destination path after a successful download
	DownloadedTo string
	// DownloadErr holds a non-fatal download-branch failure
	DownloadErr error
}

// Summary accumulates run counts across the reconciliation loop.
type Summary struct {
	Total   int
	Checked int
	Errors  int
	Updated int
}

// Report is the aggregate outcome of one reconciliation run.
type Report struct {
	Results []Result
	Summary Summary
	// Dirty is true when the in-memory document was mutated and needs a
	// backup plus a single save
	Dirty bool
}

// Reconciler iterates registry entries and decides update actions.
type Reconciler struct {
	client *github.Client
	opts   Options
}

// New creates a reconciler using the given client and run options.
func New(client *github.Client, opts Options) *Reconciler {
	return &Reconciler{client: client, opts: opts}
}

// Run processes every plugin in the document sequentially. Failures are
// local to a plugin: no error aborts the loop. The document is mutated
// in place when UpdateRegistry is enabled; persisting it is the
// caller's responsibility, exactly once, iff the report is dirty.
func (r *Reconciler) Run(doc *registry.Document) *Report {
	report := &Report{}

	for i := range doc.Plugins {
		res := r.check(doc, &doc.Plugins[i])

		report.Summary.Total++
		if res.Outcome != OutcomeSkipped {
			report.Summary.Checked++
		}
		if res.Outcome == OutcomeAPIError {
			report.Summary.Errors++
		}
		if res.RegistryUpdated {
			report.Summary.Updated++
			report.Dirty = true
		}

		report.Results = append(report.Results, res)
	}

	return report
}

// check runs the per-plugin state machine:
// Skipped | Checking -> NoReleases | APIError | Compared,
// Compared -> UpToDate | UpdateAvailable | LocalAhead,
// UpdateAvailable -> optional registry rewrite -> optional download.
func (r *Reconciler) check(doc *registry.Document, p *registry.Plugin) Result {
	res := Result{Name: p.Name, Current: p.Version}

	if p.GitHubRepo == "" {
		res.Outcome = OutcomeSkipped
		return res
	}

	repo, err := github.NormalizeRepo(p.GitHubRepo)
	if err != nil {
		res.Outcome = OutcomeAPIError
		res.Err = err
		return res
	}

	rel, err := r.client.LatestRelease(repo)
	if err != nil {
		if errors.Is(err, github.ErrNoReleases) {
			res.Outcome = OutcomeNoReleases
		} else {
			res.Outcome = OutcomeAPIError
			res.Err = err
		}
		return res
	}
	res.Latest = rel.Tag

	if p.Version == registry.VersionUnknown {
		// No recorded baseline: surface as an update recommendation and
		// let the write path below record the concrete latest version.
		res.Outcome = OutcomeUpdateAvailable
	} else {
		switch cmp := version.Compare(rel.Tag, p.Version); {
		case cmp == 0:
			res.Outcome = OutcomeUpToDate
			return res
		case cmp > 0:
			res.Outcome = OutcomeUpdateAvailable
		default:
			res.Outcome = OutcomeLocalAhead
			return res
		}
	}

	if r.opts.UpdateRegistry {
		res.RegistryUpdated = doc.SetVersion(p.Name, rel.Tag)
	}

	r.resolveDownload(repo, p, &res)
	return res
}

// resolveDownload handles the download branch for an available update:
// test the recorded URL, fall back to resolving the asset by basename
// against the latest release, and download only when enabled.
func (r *Reconciler) resolveDownload(repo string, p *registry.Plugin, res *Result) {
	if p.DownloadURL == "" {
		// No URL recorded: nothing to download, never an error.
		return
	}

	filename := p.AssetFilename()
	url := p.DownloadURL

	if !r.client.URLReachable(url) {
		resolved, err := r.client.ResolveAssetURL(repo, filename)
		if err != nil {
			res.DownloadErr = err
			return
		}
		if resolved == "" {
			res.DownloadErr = fmt.Errorf("recorded URL unreachable and no release asset named %q", filename)
			return
		}
		url = resolved
	}
	res.DownloadURL = url

	if !r.opts.AutoDownload {
		return
	}

	dest := filepath.Join(r.opts.DownloadDir, path.Base(url))
	if err := r.client.Download(url, dest); err != nil {
		res.DownloadErr = err
		return
	}
	res.DownloadedTo = dest
}
