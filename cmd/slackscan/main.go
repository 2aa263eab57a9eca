// Package main provides the slackscan CLI entry point.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matsen/slackscan/internal/config"
	"github.com/matsen/slackscan/internal/logging"
	"github.com/matsen/slackscan/internal/slackapi"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is set at build time via ldflags
var Version = "dev"

var flags scanFlags

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "slackscan",
	Short: "Inventory every Slack channel the bot can see",
	Long: `slackscan lists every public and private channel visible to a bot token,
reports each channel's size and last message date, and joins the public
channels the bot is not yet a member of.

Requires SLACK_TOKEN in the environment (a .env file in the working
directory is loaded if present). Optional tuning is read from
$XDG_CONFIG_HOME/slackscan/config.yml; flags override the file.

Examples:
  slackscan
  slackscan --no-join --json
  slackscan --workers 1 --timeout 10s`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRoot,
}

func init() {
	f := rootCmd.Flags()
	f.BoolVar(&flags.json, "json", false, "Output a single JSON document instead of the text report")
	f.IntVar(&flags.workers, "workers", config.DefaultWorkers, "Channels enriched concurrently (1 = sequential)")
	f.DurationVar(&flags.timeout, "timeout", config.DefaultCallTimeout, "Timeout for each Slack API call")
	f.BoolVar(&flags.noJoin, "no-join", false, "Report only; do not join any channel")
	f.StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel, "Log level (debug, info, warn, error, silent)")
	f.StringVar(&flags.configPath, "config", "", "Config file (default $XDG_CONFIG_HOME/slackscan/config.yml)")
	rootCmd.Version = Version
}

func runRoot(cmd *cobra.Command, args []string) error {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: %v\n", err)
	}

	flags.changed = make(map[string]bool)
	cmd.Flags().Visit(func(f *pflag.Flag) { flags.changed[f.Name] = true })

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := runScan(ctx, flags, runEnv{
		getenv:     os.Getenv,
		stdout:     cmd.OutOrStdout(),
		stderr:     cmd.ErrOrStderr(),
		newService: newSlackService,
	})
	if code != ExitSuccess {
		os.Exit(code)
	}
	return nil
}

// newSlackService builds the production Slack Web API client.
func newSlackService(cfg *config.Config, log *logging.Logger) slackapi.Service {
	opts := []slackapi.ClientOption{
		slackapi.WithCallTimeout(cfg.CallTimeout),
		slackapi.WithRateLimit(cfg.RateLimit),
		slackapi.WithLogger(log),
	}
	if cfg.APIURL != "" {
		opts = append(opts, slackapi.WithAPIURL(cfg.APIURL))
	}
	return slackapi.NewClient(cfg.Token, opts...)
}
