package sync

import (
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/scan-io-git/gitmirror/internal/config"
)

// validateSyncArgs validates the arguments provided to the sync command.
func validateSyncArgs(options *RunOptionsSync, cfg *config.Config, args []string) error {
	if len(args) > 1 {
		return fmt.Errorf("invalid argument(s) received, only one positional argument is allowed")
	}

	if options.Jobs < 0 {
		return fmt.Errorf("the 'jobs' flag must be a positive integer")
	}

	if len(args) == 1 {
		if options.TargetsFile != "" {
			return fmt.Errorf("you cannot use 'targets' flag with a target URL")
		}
		if strings.TrimSpace(options.Branch) == "" {
			return fmt.Errorf("the 'branch' flag must not be empty")
		}
		if _, err := transport.NewEndpoint(args[0]); err != nil {
			return fmt.Errorf("provided URL is not valid: %w", err)
		}
		return nil
	}

	if options.LocalDir != "" {
		return fmt.Errorf("the 'local-dir' flag requires a target URL")
	}
	if options.ScopedCredentials {
		return fmt.Errorf("the 'scoped-credentials' flag requires a target URL, set scoped_credentials in the targets file instead")
	}

	if options.TargetsFile == "" && (cfg == nil || cfg.Mirror.TargetsFile == "") {
		return fmt.Errorf("either 'targets' flag or a target URL must be specified")
	}

	return nil
}
