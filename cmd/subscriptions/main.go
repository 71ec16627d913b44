/*
main.go - Batch report job

PURPOSE:
  Reads the account directory and every partner file, computes the free
  days report and writes {"subscriptions": ...} to the output file. The
  run is also archived when a database path is configured.

CONFIGURATION (flag / env):
  -accounts ACCOUNTS_FILE   account directory (default data/accounts.json)
  -partner  PARTNER_FILES   Name=path, repeatable, priority order
                            (default Wondertel then Amazecom under data/)
  -o        OUTPUT_FILE     report file (default output/result.json)
  -d        DATABASE_PATH   SQLite archive; empty disables archiving
  -v        LOG_LEVEL       debug|info|warn|error (default info)
  -log-file LOG_FILE        also append warnings and errors here
  -workers  WORKERS         beneficiaries resolved concurrently

EXIT CODES:
  0 report written, 1 job failed, 2 bad configuration

EXAMPLE:
  ./subscriptions -v warn -partner Wondertel=data/wondertel.json \
      -partner Amazecom=data/amazecom.json
*/
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/warp/subscription-engine/config"
	"github.com/warp/subscription-engine/factory"
	"github.com/warp/subscription-engine/generic"
	"github.com/warp/subscription-engine/logging"
	"github.com/warp/subscription-engine/store/sqlite"
	"github.com/warp/subscription-engine/subscription"
)

func main() {
	cfg, err := config.Parse(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}

	logger, err := logging.NewWithErrorFile(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		os.Exit(2)
	}

	code := 0
	if err := run(context.Background(), cfg, logger); err != nil {
		logger.Error("subscription job failed", zap.Error(err))
		code = 1
	}
	logger.Sync()
	os.Exit(code)
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	accounts, err := factory.LoadAccounts(cfg.Accounts)
	if err != nil {
		return err
	}
	specs, err := factory.LoadSpecs(cfg.Partners)
	if err != nil {
		return err
	}

	sub, err := subscription.New(accounts, specs,
		subscription.WithLogger(logger.Sugar()),
		subscription.WithWorkers(cfg.Workers),
	)
	if err != nil {
		return err
	}
	report := sub.Subscriptions()

	for i, stats := range sub.LoadStats() {
		logger.Debug("partner loaded",
			zap.String("partner", string(sub.Partners()[i].Name)),
			zap.Int("granted", stats.Granted),
			zap.Int("revoked", stats.Revoked),
			zap.Int("skipped", stats.Skipped),
			zap.Int("failed", stats.Failed),
		)
	}

	if err := writeReport(cfg.Output, report); err != nil {
		return fmt.Errorf("error writing result to file: %w", err)
	}

	if cfg.DatabasePath != "" {
		if err := archive(ctx, cfg.DatabasePath, sub, report); err != nil {
			return err
		}
	}

	logger.Info("done", zap.String("output", cfg.Output), zap.Int("beneficiaries", len(report.Subscriptions)))
	return nil
}

// writeReport writes report with two-space indentation, creating the
// parent directory if needed.
func writeReport(path string, report generic.Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func archive(ctx context.Context, path string, sub *subscription.Subscription, report generic.Report) error {
	st, err := sqlite.New(path)
	if err != nil {
		return err
	}
	defer st.Close()

	partners := sub.Partners()
	names := make([]generic.PartnerName, len(partners))
	for i, p := range partners {
		names[i] = p.Name
	}
	if err := st.Save(ctx, generic.NewRun(report, names, time.Now())); err != nil {
		return fmt.Errorf("archive report: %w", err)
	}
	return nil
}
