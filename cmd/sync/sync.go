package sync

import (
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/scan-io-git/gitmirror/internal/ci"
	"github.com/scan-io-git/gitmirror/internal/config"
	"github.com/scan-io-git/gitmirror/internal/fetcher"
	"github.com/scan-io-git/gitmirror/internal/git"
	"github.com/scan-io-git/gitmirror/internal/logger"
	"github.com/scan-io-git/gitmirror/internal/metrics"
)

// RunOptionsSync holds the arguments for the sync command.
type RunOptionsSync struct {
	TargetsFile       string
	LocalDir          string
	Branch            string
	ScopedCredentials bool
	Jobs              int
	OutputPath        string
	MetricsFile       string
}

// Global variables for configuration and command arguments
var (
	AppConfig        *config.Config
	syncOptions      RunOptionsSync
	exampleSyncUsage = `  # Mirror the main branch of one repository into <storage_root>/github.com/scan-io-git/scan-io
  gitmirror sync https://github.com/scan-io-git/scan-io

  # Mirror the develop branch into a custom local directory and write identity into its local git config
  gitmirror sync -b develop --local-dir configs/app --scoped-credentials https://github.com/org/app-config.git

  # Mirror every repository listed in a targets file, four at a time, and keep a JSON report
  gitmirror sync --targets targets.yml -j 4 -o report.json

  # Scheduled run exporting Prometheus metrics for the node-exporter textfile collector
  gitmirror sync --targets targets.yml --metrics-file /var/lib/node_exporter/gitmirror.prom`
)

var SyncCmd = &cobra.Command{
	Use:                   "sync {--targets/-t PATH | [--local-dir DIR] [--scoped-credentials] URL} [-b BRANCH] [-j JOBS] [-o PATH] [--metrics-file PATH]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Example:               exampleSyncUsage,
	Short:                 "Clones or hard-resets local mirrors to the tip of a remote branch",
	Long: `Clones missing mirrors and hard-resets existing ones to origin/<branch>.

Stale git lock files left by interrupted runs are removed first. A mirror directory
that exists but does not hold a git repository is never modified and is reported as failed.

Environment:
  ACTOR, EMAIL   identity used for scoped credentials (required)
  AUTH_TOKEN     token for https remotes (required when running in CI)
  GITMIRROR_CI   force CI mode on or off, or name the provider (github, gitlab, bitbucket, generic)`,
	RunE: runSyncCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

// runSyncCommand executes the sync command.
func runSyncCommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !hasFlags(cmd.Flags()) && AppConfig.Mirror.TargetsFile == "" {
		return cmd.Help()
	}

	runID := uuid.New().String()
	logger := logger.NewLogger(AppConfig, "core-sync").With("run", runID)

	if err := validateSyncArgs(&syncOptions, AppConfig, args); err != nil {
		logger.Error("invalid sync arguments", "error", err)
		return err
	}

	mode := determineCmdMode(args)
	list, err := prepareSyncTargets(&syncOptions, AppConfig, args, mode)
	if err != nil {
		logger.Error("failed to prepare sync targets", "error", err)
		return err
	}

	signal := ci.ResolveFromEnvironment(logger)
	identity, err := config.LoadIdentity(cmd.Context(), nil, signal)
	if err != nil {
		logger.Error("failed to load identity", "error", err)
		return err
	}
	if err := identity.RequireToken(); err != nil {
		logger.Error("missing credentials", "error", err)
		return err
	}
	logger.Debug("identity loaded", "identity", identity.String())

	client, err := git.New(logger.Named("git"), AppConfig.Mirror.StorageRoot, identity, AppConfig.GitClient)
	if err != nil {
		logger.Error("failed to initialize git client", "error", err)
		return err
	}

	recorder := metrics.New()
	jobs := resolveJobs(cmd, &syncOptions, AppConfig)
	f := fetcher.New(client, jobs, AppConfig.GitClient.Timeout, recorder, logger.Named("fetcher"))

	report, syncErr := f.FetchRepos(cmd.Context(), runID, list)

	if syncOptions.OutputPath != "" {
		if err := writeReport(syncOptions.OutputPath, report); err != nil {
			logger.Error("failed to write report", "error", err)
			return err
		}
		logger.Info("report saved", "path", syncOptions.OutputPath)
	}

	if syncOptions.MetricsFile != "" {
		if err := recorder.WriteTextfile(syncOptions.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "error", err)
			return err
		}
	}

	if syncErr != nil {
		logger.Error("sync command failed", "failed", report.Failed, "total", report.Total, "error", syncErr)
		return syncErr
	}

	logger.Info("sync command completed successfully", "total", report.Total, "duration", report.Duration)
	return nil
}

func init() {
	SyncCmd.Flags().StringVarP(&syncOptions.TargetsFile, "targets", "t", "", "Path to a YAML file listing the repositories to mirror (default: mirror.targets_file).")
	SyncCmd.Flags().StringVar(&syncOptions.LocalDir, "local-dir", "", "Directory under the storage root for a single URL (default: derived from the URL).")
	SyncCmd.Flags().StringVarP(&syncOptions.Branch, "branch", "b", defaultBranch, "Remote branch the mirror follows in single URL mode.")
	SyncCmd.Flags().BoolVar(&syncOptions.ScopedCredentials, "scoped-credentials", false, "Write ACTOR, EMAIL and a credential helper into the mirror's local git config.")
	SyncCmd.Flags().IntVarP(&syncOptions.Jobs, "jobs", "j", 0, "Number of repositories synchronised concurrently (default: mirror.jobs).")
	SyncCmd.Flags().StringVarP(&syncOptions.OutputPath, "output", "o", "", "Path to write the JSON run report to.")
	SyncCmd.Flags().StringVar(&syncOptions.MetricsFile, "metrics-file", "", "Path to write Prometheus metrics in the text exposition format.")
	SyncCmd.Flags().BoolP("help", "h", false, "Show help for the sync command.")
}
