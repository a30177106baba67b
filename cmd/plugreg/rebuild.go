package main

import (
	"os"
	"path/filepath"

	"github.com/plugreg/plugreg/internal/common/config"
	"github.com/plugreg/plugreg/internal/common/logger"
	"github.com/plugreg/plugreg/internal/common/output"
	"github.com/plugreg/plugreg/internal/github"
	"github.com/plugreg/plugreg/internal/rebuild"
	"github.com/plugreg/plugreg/internal/registry"
	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the registry from upstream manifests",
	Long: `Fetch plugin.yaml from every repository listed in the registry (plus
any extras from a repos.toml next to it), convert each manifest to a
registry record, and overwrite the registry wholesale.

A repository without a manifest is skipped; a manifest that cannot be
converted aborts the whole rebuild.`,
	Run: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
}

func runRebuild(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("loading config: %v", err)
		os.Exit(1)
	}

	// Pre-flight: the existing registry must load before any network
	// activity; it supplies the repository list being rebuilt.
	doc, registryPath, err := registry.Load(cfg.RegistryCandidates()...)
	if err != nil {
		logger.Error("loading registry: %v", err)
		os.Exit(1)
	}

	extras, err := rebuild.LoadExtraRepos(filepath.Join(filepath.Dir(registryPath), "repos.toml"))
	if err != nil {
		logger.Error("loading extra repositories: %v", err)
		os.Exit(1)
	}

	client := github.NewClient()
	client.Token = cfg.GitHub.Token

	sources := rebuild.SourcesFromDocument(doc, extras)
	if len(sources) == 0 {
		logger.Error("no repositories to rebuild from")
		os.Exit(1)
	}
	output.PrintInfo("Rebuilding registry from %d repositories...", len(sources))

	fresh, err := rebuild.New(client).Run(sources)
	if err != nil {
		logger.Error("rebuild failed: %v", err)
		os.Exit(1)
	}

	if err := registry.Save(registryPath, fresh); err != nil {
		logger.Error("saving registry: %v", err)
		os.Exit(1)
	}

	output.PrintSuccess("Rebuilt registry with %d plugin(s): %s", len(fresh.Plugins), registryPath)
}
