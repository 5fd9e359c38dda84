package sync

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scan-io-git/gitmirror/internal/config"
	"github.com/scan-io-git/gitmirror/internal/fetcher"
	"github.com/scan-io-git/gitmirror/internal/targets"
	"github.com/scan-io-git/gitmirror/pkg/shared/files"
)

// Mode constants
const (
	CmdModeSingleURL   = "single-url"
	CmdModeTargetsFile = "targets-file"
)

const defaultBranch = "main"

// determineCmdMode determines the cmd mode based on the provided arguments.
func determineCmdMode(args []string) string {
	if len(args) > 0 {
		return CmdModeSingleURL
	}
	return CmdModeTargetsFile
}

// hasFlags reports whether any flag was set explicitly.
func hasFlags(flags *pflag.FlagSet) bool {
	set := false
	flags.Visit(func(*pflag.Flag) { set = true })
	return set
}

// resolveJobs prefers --jobs over mirror.jobs.
func resolveJobs(cmd *cobra.Command, options *RunOptionsSync, cfg *config.Config) int {
	if cmd.Flags().Changed("jobs") && options.Jobs > 0 {
		return options.Jobs
	}
	return config.SetThen(cfg.Mirror.Jobs, 1)
}

// prepareSyncTargets builds the target list for the selected mode.
func prepareSyncTargets(options *RunOptionsSync, cfg *config.Config, args []string, cmdMode string) ([]targets.Target, error) {
	switch cmdMode {
	case CmdModeSingleURL:
		target, err := targets.FromURL(args[0], options.LocalDir, options.Branch, options.ScopedCredentials)
		if err != nil {
			return nil, fmt.Errorf("invalid target %q: %w", args[0], err)
		}
		return []targets.Target{target}, nil

	case CmdModeTargetsFile:
		path := config.SetThen(options.TargetsFile, cfg.Mirror.TargetsFile)
		expanded, err := files.ExpandPath(path)
		if err != nil {
			return nil, fmt.Errorf("failed to expand path %q: %w", path, err)
		}
		return targets.Load(expanded)

	default:
		return nil, fmt.Errorf("invalid sync mode: %q", cmdMode)
	}
}

// writeReport stores the run report as indented JSON.
func writeReport(path string, report *fetcher.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	expanded, err := files.ExpandPath(path)
	if err != nil {
		return fmt.Errorf("failed to expand path %q: %w", path, err)
	}
	return files.WriteJsonFile(expanded, data)
}
