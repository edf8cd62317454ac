// Command backtest runs one backtest over CSV inputs and writes the report
// table, without any server or broker.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"PVResonance/internal/repository"
	"PVResonance/internal/services/report"
	"PVResonance/internal/usecase"
	"PVResonance/pkg/cache"
	"PVResonance/pkg/config"
	applogger "PVResonance/pkg/logger"
)

func main() {
	var (
		configPath = flag.String("config", "", "config file path; defaults apply when empty")
		barsPath   = flag.String("bars", "", "bars CSV (overrides data.bars)")
		factors    = flag.String("factors", "", "adjustment factor CSV (overrides data.factors)")
		north      = flag.String("north", "", "north-flow CSV (overrides data.north)")
		quotes     = flag.String("quotes", "", "component quote CSV (overrides data.quotes)")
		out        = flag.String("out", "-", "report CSV path, - for stdout")
	)
	flag.Parse()

	if err := run(*configPath, *barsPath, *factors, *north, *quotes, *out); err != nil {
		fmt.Fprintf(os.Stderr, "backtest: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, barsPath, factors, north, quotes, out string) error {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return err
	}
	override(&cfg.Data.Bars, barsPath)
	override(&cfg.Data.Factors, factors)
	override(&cfg.Data.North, north)
	override(&cfg.Data.Quotes, quotes)
	if cfg.Data.Bars == "" {
		return fmt.Errorf("no bars input: set -bars or data.bars")
	}

	// Logs go to stderr so the report can stream to stdout.
	cfg.Log.Output = "stderr"
	log, err := applogger.New(&cfg.Log)
	if err != nil {
		return err
	}

	store := repository.NewCSVStore(repository.CSVFiles{
		Bars:    cfg.Data.Bars,
		Factors: cfg.Data.Factors,
		North:   cfg.Data.North,
		Quotes:  cfg.Data.Quotes,
	})
	mem := cache.NewMemoryCache()
	defer mem.Close()
	uc := usecase.NewBacktestUseCase(store, store, nil, nil, mem, nil, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := uc.Run(ctx, cfg.Backtest)
	if err != nil {
		return err
	}

	w := os.Stdout
	if out != "-" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	bw := bufio.NewWriter(w)
	points := report.Filter(res.Points, cfg.Backtest.Start, cfg.Backtest.End)
	if err := report.WriteCSV(bw, points); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	s := res.Summary
	log.Info("backtest finished",
		applogger.String("run_id", s.RunID),
		applogger.String("instrument", s.Instrument),
		applogger.Int("bars", s.Bars),
		applogger.Int("trades", s.Trades),
		applogger.Int("final_pos", s.FinalPos),
		applogger.String("end_of_series", s.EndOfSeries),
	)
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
