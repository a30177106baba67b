package rebuild

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plugreg/plugreg/internal/github"
	"github.com/plugreg/plugreg/internal/registry"
)

// manifestServer serves the contents endpoint for a map of
// "owner/repo" to raw plugin.yaml bytes. Repos absent from the map
// answer 404.
func manifestServer(manifests map[string]string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for repo, manifest := range manifests {
			if r.URL.Path == "/repos/"+repo+"/contents/plugin.yaml" {
				encoded := base64.StdEncoding.EncodeToString([]byte(manifest))
				fmt.Fprintf(w, `{"content": %q}`, encoded)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"message": "Not Found"}`)
	}))
}

func clientFor(server *httptest.Server) *github.Client {
	c := github.NewClient()
	c.BaseURL = server.URL
	return c
}

func TestRunBuildsFreshDocument(t *testing.T) {
	server := manifestServer(map[string]string{
		"x/foo": "name: foo\nversion: 1.2.0\nrepository: https://github.com/x/foo\ndownload_url: https://example.com/foo.tar.gz\n",
		"x/bar": "name: bar\nversion: 0.3.1\n",
	})
	defer server.Close()

	sources := []Source{
		{Repo: "x/foo", RepositoryURL: "https://github.com/x/foo"},
		{Repo: "x/bar", RepositoryURL: ""},
	}

	doc, err := New(clientFor(server)).Run(sources)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(doc.Plugins) != 2 {
		t.Fatalf("got %d plugins, want 2", len(doc.Plugins))
	}

	foo := doc.Plugins[0]
	if foo.Name != "foo" || foo.Version != "1.2.0" {
		t.Errorf("unexpected foo record: %+v", foo)
	}
	if foo.DownloadURL != "https://example.com/foo.tar.gz" {
		t.Errorf("foo download_url = %q", foo.DownloadURL)
	}
	if foo.GitHubRepo != "x/foo" {
		t.Errorf("foo github_repo = %q", foo.GitHubRepo)
	}

	bar := doc.Plugins[1]
	if bar.Repository != "https://github.com/x/bar" {
		t.Errorf("bar repository should fall back to the source repo, got %q", bar.Repository)
	}
}

func TestRunSkipsRepositoriesWithoutManifest(t *testing.T) {
	server := manifestServer(map[string]string{
		"x/foo": "name: foo\nversion: 1.0.0\n",
	})
	defer server.Close()

	sources := []Source{
		{Repo: "x/missing"},
		{Repo: "x/foo"},
	}

	doc, err := New(clientFor(server)).Run(sources)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(doc.Plugins) != 1 || doc.Plugins[0].Name != "foo" {
		t.Errorf("expected only foo, got %+v", doc.Plugins)
	}
}

func TestRunConversionFailureIsFatal(t *testing.T) {
	server := manifestServer(map[string]string{
		"x/good": "name: good\nversion: 1.0.0\n",
		"x/bad":  "name: [unclosed\n",
	})
	defer server.Close()

	sources := []Source{
		{Repo: "x/bad"},
		{Repo: "x/good"},
	}

	_, err := New(clientFor(server)).Run(sources)
	if !errors.Is(err, ErrConversion) {
		t.Errorf("expected ErrConversion, got %v", err)
	}
}

func TestRunManifestMissingRequiredFieldsIsFatal(t *testing.T) {
	server := manifestServer(map[string]string{
		"x/noname": "version: 1.0.0\n",
	})
	defer server.Close()

	_, err := New(clientFor(server)).Run([]Source{{Repo: "x/noname"}})
	if !errors.Is(err, ErrConversion) {
		t.Errorf("expected ErrConversion for missing name, got %v", err)
	}
}

func TestRunCollapsesDuplicateNames(t *testing.T) {
	server := manifestServer(map[string]string{
		"x/one": "name: dup\nversion: 1.0.0\n",
		"y/two": "name: dup\nversion: 2.0.0\n",
	})
	defer server.Close()

	doc, err := New(clientFor(server)).Run([]Source{{Repo: "x/one"}, {Repo: "y/two"}})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(doc.Plugins) != 1 {
		t.Fatalf("got %d plugins, want 1", len(doc.Plugins))
	}
	if doc.Plugins[0].Version != "1.0.0" {
		t.Error("first occurrence should win")
	}
}

func TestRunCleansUpWorkingDirectory(t *testing.T) {
	server := manifestServer(map[string]string{
		"x/bad": "name: [unclosed\n",
	})
	defer server.Close()

	before := countTempDirs(t)
	_, err := New(clientFor(server)).Run([]Source{{Repo: "x/bad"}})
	if err == nil {
		t.Fatal("expected a conversion error")
	}
	after := countTempDirs(t)

	if after > before {
		t.Error("working directory leaked on the error path")
	}
}

func countTempDirs(t *testing.T) int {
	t.Helper()
	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatalf("reading temp dir: %v", err)
	}
	count := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "plugreg-rebuild-") {
			count++
		}
	}
	return count
}

func TestLoadExtraRepos(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.toml")

	content := `
[[repos]]
repo = "x/extra"
repository_url = "https://github.com/x/extra"

[[repos]]
repo = "y/more"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing repos.toml: %v", err)
	}

	extras, err := LoadExtraRepos(path)
	if err != nil {
		t.Fatalf("LoadExtraRepos failed: %v", err)
	}
	if len(extras) != 2 {
		t.Fatalf("got %d extras, want 2", len(extras))
	}
	if extras[0].Repo != "x/extra" || extras[0].RepositoryURL != "https://github.com/x/extra" {
		t.Errorf("unexpected first extra: %+v", extras[0])
	}
}

func TestLoadExtraReposMissingFile(t *testing.T) {
	extras, err := LoadExtraRepos(filepath.Join(t.TempDir(), "repos.toml"))
	if err != nil {
		t.Fatalf("missing repos.toml must not be an error, got %v", err)
	}
	if extras != nil {
		t.Errorf("expected no extras, got %+v", extras)
	}
}

func TestLoadExtraReposRejectsMissingRepoField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repos.toml")
	if err := os.WriteFile(path, []byte("[[repos]]\nrepository_url = \"https://example.com\"\n"), 0644); err != nil {
		t.Fatalf("writing repos.toml: %v", err)
	}

	if _, err := LoadExtraRepos(path); err == nil {
		t.Error("expected an error for an entry without repo")
	}
}

func TestSourcesFromDocument(t *testing.T) {
	doc := &registry.Document{Plugins: []registry.Plugin{
		{Name: "foo", GitHubRepo: "https://github.com/x/foo/", Repository: "https://github.com/x/foo"},
		{Name: "local", Repository: "https://example.com/local"}, // no repo: left out
		{Name: "bad", GitHubRepo: "not-a-repo"},                  // malformed: left out
	}}
	extras := []ExtraRepo{
		{Repo: "x/foo"}, // duplicate of the registry entry
		{Repo: "y/extra", RepositoryURL: "https://github.com/y/extra"},
	}

	sources := SourcesFromDocument(doc, extras)
	if len(sources) != 2 {
		t.Fatalf("got %d sources, want 2: %+v", len(sources), sources)
	}
	if sources[0].Repo != "x/foo" {
		t.Errorf("first source = %+v", sources[0])
	}
	if sources[1].Repo != "y/extra" {
		t.Errorf("second source = %+v", sources[1])
	}
}
