package status

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/gitmirror/internal/config"
	"github.com/scan-io-git/gitmirror/internal/git"
	"github.com/scan-io-git/gitmirror/internal/logger"
	"github.com/scan-io-git/gitmirror/internal/targets"
	"github.com/scan-io-git/gitmirror/pkg/shared/files"
)

// RunOptionsStatus holds the arguments for the status command.
type RunOptionsStatus struct {
	TargetsFile string
	LocalDir    string
}

// Entry is the status of one mirror.
type Entry struct {
	URL      string              `json:"url"`
	LocalDir string              `json:"local_dir"`
	Branch   string              `json:"branch"`
	Mirror   *git.MirrorMetadata `json:"mirror,omitempty"`
	Error    string              `json:"error,omitempty"`
}

var (
	AppConfig     *config.Config
	statusOptions RunOptionsStatus
)

var StatusCmd = &cobra.Command{
	Use:                   "status {--targets/-t PATH | [--local-dir DIR] URL}",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "Shows the on-disk state of mirrors without modifying them",
	Example: `  # Inspect every mirror of a targets file
  gitmirror status --targets targets.yml`,
	RunE: runStatusCommand,
}

// Init initializes the global configuration variable.
func Init(cfg *config.Config) {
	AppConfig = cfg
}

func runStatusCommand(cmd *cobra.Command, args []string) error {
	logger := logger.NewLogger(AppConfig, "core-status")

	list, err := prepareStatusTargets(&statusOptions, AppConfig, args)
	if err != nil {
		logger.Error("failed to prepare targets", "error", err)
		return err
	}

	entries := inspect(AppConfig.Mirror.StorageRoot, list)
	return printEntries(cmd.OutOrStdout(), entries)
}

func prepareStatusTargets(options *RunOptionsStatus, cfg *config.Config, args []string) ([]targets.Target, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("invalid argument(s) received, only one positional argument is allowed")
	}
	if len(args) == 1 {
		if options.TargetsFile != "" {
			return nil, fmt.Errorf("you cannot use 'targets' flag with a target URL")
		}
		t := targets.Target{URL: args[0], LocalDir: options.LocalDir}
		if t.LocalDir == "" {
			dir, err := targets.DeriveLocalDir(t.URL)
			if err != nil {
				return nil, err
			}
			t.LocalDir = dir
		}
		return []targets.Target{t}, nil
	}

	path := config.SetThen(options.TargetsFile, cfg.Mirror.TargetsFile)
	if path == "" {
		return nil, fmt.Errorf("either 'targets' flag or a target URL must be specified")
	}
	return targets.Load(path)
}

// inspect collects metadata for every target under root.
func inspect(root string, list []targets.Target) []Entry {
	entries := make([]Entry, 0, len(list))
	for _, t := range list {
		entry := Entry{URL: t.URL, LocalDir: t.LocalDir, Branch: t.Branch}

		path, err := files.EnsureWithinRoot(root, t.LocalDir)
		if err != nil {
			entry.Error = err.Error()
			entries = append(entries, entry)
			continue
		}

		md, err := git.CollectMirrorMetadata(path)
		if err != nil {
			entry.Error = err.Error()
		}
		entry.Mirror = md
		entries = append(entries, entry)
	}
	return entries
}

func printEntries(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func init() {
	StatusCmd.Flags().StringVarP(&statusOptions.TargetsFile, "targets", "t", "", "Path to a YAML file listing the mirrored repositories (default: mirror.targets_file).")
	StatusCmd.Flags().StringVar(&statusOptions.LocalDir, "local-dir", "", "Directory under the storage root for a single URL (default: derived from the URL).")
}
