package main

import (
	"fmt"
	"os"

	"github.com/plugreg/plugreg/internal/common/config"
	"github.com/plugreg/plugreg/internal/common/logger"
	"github.com/plugreg/plugreg/internal/common/output"
	"github.com/plugreg/plugreg/internal/github"
	"github.com/plugreg/plugreg/internal/reconcile"
	"github.com/plugreg/plugreg/internal/registry"
	"github.com/spf13/cobra"
)

var (
	// checkAutoDownload enables fetching updated assets
	checkAutoDownload bool
	// checkDownloadDir overrides the download directory
	checkDownloadDir string
	// checkUpdateRegistry enables in-place version rewriting
	checkUpdateRegistry bool
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check registry entries against upstream releases",
	Long: `Compare each registry entry's recorded version against the latest
upstream GitHub release, optionally downloading updated assets and
rewriting the stored version numbers.

Examples:
  plugreg check                                Report available updates
  plugreg check --update-registry              Rewrite registry versions (with backup)
  plugreg check --auto-download                Download updated assets
  plugreg check --auto-download --download-dir /tmp/assets`,
	Run: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkAutoDownload, "auto-download", false, "Download updated assets")
	checkCmd.Flags().StringVar(&checkDownloadDir, "download-dir", "", "Directory for downloaded assets (default ./downloaded_updates)")
	checkCmd.Flags().BoolVar(&checkUpdateRegistry, "update-registry", false, "Rewrite registry versions in place, backing up the registry first")

	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("loading config: %v", err)
		os.Exit(1)
	}

	doc, registryPath, err := registry.Load(cfg.RegistryCandidates()...)
	if err != nil {
		logger.Error("loading registry: %v", err)
		os.Exit(1)
	}
	logger.Debug("registry loaded from %s", registryPath)

	downloadDir := checkDownloadDir
	if downloadDir == "" {
		downloadDir = cfg.Downloads.Dir
	}

	client := github.NewClient()
	client.Token = cfg.GitHub.Token

	rec := reconcile.New(client, reconcile.Options{
		AutoDownload:   checkAutoDownload,
		DownloadDir:    downloadDir,
		UpdateRegistry: checkUpdateRegistry,
	})

	report := rec.Run(doc)
	displayCheckReport(report)

	// Backup and save happen exactly once per run, after the loop.
	if report.Dirty {
		backupPath, err := registry.Backup(registryPath)
		if err != nil {
			logger.Error("backing up registry: %v", err)
			os.Exit(1)
		}
		output.PrintInfo("Registry backed up to %s", backupPath)

		if err := registry.Save(registryPath, doc); err != nil {
			logger.Error("saving registry: %v", err)
			os.Exit(1)
		}
		output.PrintSuccess("Registry saved: %s", registryPath)
	}

	// Per-plugin errors are reported above, never fatal: the run exits 0.
}

// displayCheckReport formats and displays per-plugin outcomes and the
// run summary.
func displayCheckReport(report *reconcile.Report) {
	fmt.Println()
	output.Header.Println("Update Check Results")
	fmt.Println()

	for _, r := range report.Results {
		switch r.Outcome {
		case reconcile.OutcomeSkipped:
			output.Dim.Printf("  %s: no GitHub repository configured, skipped\n", r.Name)
		case reconcile.OutcomeNoReleases:
			output.Warning.Printf("  %s: no releases published\n", r.Name)
		case reconcile.OutcomeAPIError:
			output.Error.Printf("  %s: %v\n", r.Name, r.Err)
		case reconcile.OutcomeUpToDate:
			output.Dim.Printf("  %s: %s (up to date)\n", r.Name, r.Current)
		case reconcile.OutcomeLocalAhead:
			output.Info.Printf("  %s: local %s is ahead of release %s\n", r.Name, r.Current, r.Latest)
		case reconcile.OutcomeUpdateAvailable:
			output.Success.Printf("  %s: %s → %s\n", r.Name, r.Current, r.Latest)
			if r.RegistryUpdated {
				output.Info.Printf("    registry version set to %s\n", r.Latest)
			}
			switch {
			case r.DownloadedTo != "":
				output.Success.Printf("    downloaded to %s\n", r.DownloadedTo)
			case r.DownloadErr != nil:
				output.Warning.Printf("    download: %v\n", r.DownloadErr)
			case r.DownloadURL != "":
				output.Info.Printf("    asset available at %s\n", r.DownloadURL)
			default:
				output.Dim.Printf("    no download URL recorded\n")
			}
		}
	}

	fmt.Println()
	s := report.Summary
	output.Info.Printf("Plugins: %d total, %d checked, %d updated, %d error(s)\n",
		s.Total, s.Checked, s.Updated, s.Errors)
}
