/*
main.go - Application entry point

PURPOSE:
  The tindahan command: runs the credit ledger API and offers a few
  read-only reports for the store owner's terminal.

COMMANDS:
  serve                 Start the HTTP API with the overdue sweeper
  summary               Dashboard KPIs
  customers             Customer list (--filter, --sort)
  history CUSTOMER_ID   Timeline with running balance
  aging [CUSTOMER_ID]   Aging buckets, store-wide or for one customer
  seed SCENARIO         Reset the database and load a demo scenario

CONFIGURATION:
  Settings come from TINDAHAN_* environment variables (see config/).
  The persistent flags below override them:
  --db         SQLite database path (":memory:" for a throwaway store)
  --log-level  logrus level (debug, info, warn, error)

EXAMPLES:
  # Run the API on a file database
  tindahan serve --db ./data/tindahan.db --addr :3000

  # Who owes the most?
  tindahan customers --filter with_balance --sort balance_desc

SEE ALSO:
  - serve.go: Server startup and graceful shutdown
  - report.go: Terminal reports
  - config/config.go: Environment variables
*/
package main

import (
	"fmt"
	"os"

	"github.com/sarisari/tindahan/config"
	"github.com/sarisari/tindahan/ledger"
	"github.com/sarisari/tindahan/observability"
	"github.com/sarisari/tindahan/store/sqlite"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	flagDB       string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "tindahan",
	Short: "Credit ledger for a sari-sari store",
	Long: `tindahan keeps track of what customers take on credit ("utang") and
what they pay back. Balances, statuses and tags are always derived from the
recorded credits and payments.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "SQLite database path (overrides TINDAHAN_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (overrides TINDAHAN_LOG_LEVEL)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	store   *sqlite.Store
	svc     *ledger.Service
	metrics *observability.Metrics
}

// loadConfig reads the environment and applies the persistent flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if flagDB != "" {
		cfg.DBPath = flagDB
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	return cfg, cfg.Validate()
}

// openApp opens the store and builds the service. withMetrics wires the
// Prometheus recorder; reports run without it.
func openApp(withMetrics bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := cfg.NewLogger()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &app{cfg: cfg, log: log, store: store}
	opts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithLocation(loc),
		ledger.WithTagRules(cfg.TagRules()),
	}
	if withMetrics {
		a.metrics = observability.NewMetrics()
		opts = append(opts, ledger.WithRecorder(a.metrics))
	}
	a.svc = ledger.NewService(store, opts...)
	return a, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("failed to close database")
	}
}
