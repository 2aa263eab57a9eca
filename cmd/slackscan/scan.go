package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matsen/slackscan/internal/config"
	"github.com/matsen/slackscan/internal/logging"
	"github.com/matsen/slackscan/internal/report"
	"github.com/matsen/slackscan/internal/scan"
	"github.com/matsen/slackscan/internal/slackapi"
)

// scanFlags holds the root command's flag values. changed records which
// flags were given explicitly; only those override the config file.
type scanFlags struct {
	json       bool
	workers    int
	timeout    time.Duration
	noJoin     bool
	logLevel   string
	configPath string
	changed    map[string]bool
}

// runEnv is the process surface runScan depends on.
type runEnv struct {
	getenv     func(string) string
	stdout     io.Writer
	stderr     io.Writer
	newService func(*config.Config, *logging.Logger) slackapi.Service
}

// ErrorResponse is the JSON error output.
type ErrorResponse struct {
	Error string `json:"error"`
}

// runScan loads configuration, runs one scan and writes the report. It
// returns the process exit code. No service is constructed unless the
// configuration is valid.
func runScan(ctx context.Context, f scanFlags, env runEnv) int {
	path := f.configPath
	if path == "" {
		path = config.GlobalConfigPath(env.getenv)
	}

	cfg, err := config.Load(env.getenv, path)
	if err != nil {
		return outputError(env, f.json, ExitConfigError, err)
	}
	if err := applyFlags(cfg, f); err != nil {
		return outputError(env, f.json, ExitConfigError, err)
	}

	log := logging.NewConsole(env.stderr, cfg.LogLevel).Sub("cli")
	svc := env.newService(cfg, log.Sub("slackapi"))

	var sink scan.Sink
	if f.json {
		sink = report.NewJSON(env.stdout)
	} else {
		sink = report.NewText(env.stdout, env.stderr)
	}

	scanner := scan.New(svc, scan.Options{
		Workers: cfg.Workers,
		Join:    cfg.Join,
		Logger:  log,
	})
	log.Debug().Str("run_id", scanner.RunID()).Int("workers", cfg.Workers).Bool("join", cfg.Join).
		Dur("call_timeout", cfg.CallTimeout).Msg("starting scan")

	summary, err := scanner.Run(ctx, sink)
	if err != nil {
		return outputError(env, false, ExitError, err)
	}

	log.Info().Str("run_id", summary.RunID).Int("channels", summary.Total).Int("pages", summary.Pages).
		Int("joined", summary.Joins[scan.JoinJoined]).Int("activity_unavailable", summary.Unavailable).
		Dur("elapsed", summary.Elapsed).Msg("scan finished")

	if summary.Fault != nil {
		return ExitFetchError
	}
	return ExitSuccess
}

// applyFlags overrides cfg with explicitly set flags and revalidates.
func applyFlags(cfg *config.Config, f scanFlags) error {
	if f.changed["workers"] {
		cfg.Workers = f.workers
	}
	if f.changed["timeout"] {
		cfg.CallTimeout = f.timeout
	}
	if f.changed["log-level"] {
		cfg.LogLevel = f.logLevel
	}
	if f.noJoin {
		cfg.Join = false
	}
	if err := cfg.Validate(); err != nil {
		return &config.StartupFault{Err: err}
	}
	return nil
}

// outputError reports err in the selected format and returns code. A
// StartupFault is shown by its cause alone.
func outputError(env runEnv, asJSON bool, code int, err error) int {
	msg := err.Error()
	var fault *config.StartupFault
	if errors.As(err, &fault) {
		msg = fault.Err.Error()
	}

	if asJSON {
		enc := json.NewEncoder(env.stdout)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(ErrorResponse{Error: msg}); encErr == nil {
			return code
		}
	}
	fmt.Fprintf(env.stderr, "error: %s\n", msg)
	return code
}
