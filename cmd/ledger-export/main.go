package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/nfe-monitor/constants"
	"github.com/joseph-ayodele/nfe-monitor/internal/common"
	"github.com/joseph-ayodele/nfe-monitor/internal/export"
	"github.com/joseph-ayodele/nfe-monitor/internal/ledger"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("ledger-export", flag.ContinueOnError)
	var (
		out    = fs.String("out", "ledger.xlsx", "output xlsx path")
		from   = fs.String("from", "", "first day (YYYY-MM-DD), inclusive")
		to     = fs.String("to", "", "last day (YYYY-MM-DD), inclusive")
		status = fs.String("status", "", "only entries with this status (SENT, LOGGED, DEGRADED)")
		dsn    = fs.String("dsn", "", "ledger DSN (default LEDGER_DSN)")
	)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	_ = common.LoadDotEnv()
	cfg := common.LoadConfig()
	logger := common.NewLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)

	if *dsn == "" {
		*dsn = cfg.Ledger.DSN
	}
	if *dsn == "" {
		logger.Error("ledger DSN required (-dsn or LEDGER_DSN)")
		return 2
	}

	fromDate, err := parseDay(*from)
	if err != nil {
		logger.Error("invalid -from", "value", *from, "error", err)
		return 2
	}
	toDate, err := parseDay(*to)
	if err != nil {
		logger.Error("invalid -to", "value", *to, "error", err)
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	store, err := ledger.Open(ctx, *dsn, logger)
	if err != nil {
		logger.Error("open ledger", "error", err)
		return 1
	}
	defer store.Close()

	since, until := export.DateWindow(fromDate, toDate, time.Now())
	b, err := export.NewService(store, logger).LedgerXLSX(ctx, ledger.Filter{
		Since:  since,
		Until:  until,
		Status: constants.DispatchStatus(*status),
	})
	if err != nil {
		logger.Error("export failed", "error", err)
		return 1
	}
	if err := os.WriteFile(*out, b, 0o644); err != nil {
		logger.Error("write xlsx", "path", *out, "error", err)
		return 1
	}
	logger.Info("ledger exported", "path", *out, "bytes", len(b))
	return 0
}

func parseDay(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
