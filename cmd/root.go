package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/gitmirror/cmd/status"
	synccmd "github.com/scan-io-git/gitmirror/cmd/sync"
	"github.com/scan-io-git/gitmirror/cmd/version"
	"github.com/scan-io-git/gitmirror/internal/config"
)

const defaultConfigFile = "config.yml"

var (
	cfgFile   string
	AppConfig *config.Config
	rootCmd   = &cobra.Command{
		Use:                   "gitmirror [command]",
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		Short:                 "Gitmirror keeps local mirrors of remote git repositories in sync.",
		Long: `Gitmirror keeps local on-disk mirrors of remote git repositories either freshly cloned
	or hard-reset to the tip of a chosen branch. It is meant to run on a schedule and recovers
	from interrupted previous runs on its own.
	`,
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is config.yml, optional)")
	rootCmd.AddCommand(version.NewVersionCmd())
	rootCmd.AddCommand(synccmd.SyncCmd)
	rootCmd.AddCommand(status.StatusCmd)
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		return 1
	}
	return 0
}

func initConfig() {
	var err error

	optional := cfgFile == ""
	if optional {
		cfgFile = defaultConfigFile
	}
	AppConfig, err = config.LoadConfig(cfgFile, optional)
	if err != nil {
		fmt.Fprintf(os.Stderr, "initializing config file function is crashed - %v\n", err)
		os.Exit(1)
	}
	if err := config.ValidateConfig(AppConfig); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	synccmd.Init(AppConfig)
	status.Init(AppConfig)
}
