/*
main.go - paceutils command line

COMMANDS:
  serve                     Start the reporting API
  list [--prefix p]         List registered indicators
  periods                   Named windows resolved for today
  indicator NAME            Evaluate one indicator (--window or --start/--end)
  series NAME               Monthly or quarterly series (--granularity)
  export REPORT.json        Run a report into --out (.xlsx or .parquet)
  migrate [--agg]           Apply the schema migrations
    --functions-only        Only install the dialect SQL functions
  seed [--agg]              Load the demo fixtures

CONFIGURATION:
  --config paceutils.yaml, then PACE_* environment variables. --db overrides
  db_path for a single run. See the config package for keys.

EXAMPLES:
  paceutils migrate && paceutils seed
  paceutils indicator enrollment.census --window last_quarter
  paceutils series team.admissions.acute --start 2024-01-01 --end 2024-06-30
  PACE_HTTP_ADDR=:9000 paceutils serve
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/whatscottcodes/paceutils/config"
	"github.com/whatscottcodes/paceutils/generic"
	"github.com/whatscottcodes/paceutils/logging"
	"github.com/whatscottcodes/paceutils/observability"
)

// release is set with -ldflags "-X main.release=..."
var release = "dev"

// app is the state shared by every subcommand, built before each run.
type app struct {
	configPath string
	dbPath     string
	logLevel   string

	cfg      *config.Config
	log      *logging.Log
	calendar generic.Calendar
	closers  []func()
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbPath != "" {
		cfg.DBPath = a.dbPath
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	if a.log, err = logging.Init(cfg.LogLevel, cfg.Env); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	a.closers = append(a.closers, a.log.Closer)

	flush, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, release)
	if err != nil {
		a.log.Sugar.Warnw("sentry disabled", "error", err)
	}
	a.closers = append(a.closers, flush)

	a.calendar = generic.NewCalendar()
	return nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "paceutils",
		Short:         "PACE reporting indicators",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite reporting database (overrides db_path)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn, error")

	root.AddCommand(
		serveCmd(a),
		listCmd(a),
		periodsCmd(a),
		indicatorCmd(a),
		seriesCmd(a),
		plotCmd(a),
		exportCmd(a),
		migrateCmd(a),
		seedCmd(a),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if err != nil {
		observability.CaptureBackendErr(err)
	}
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
