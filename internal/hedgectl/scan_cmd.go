package hedgectl

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"autohedge/backtest"
	"autohedge/config"
	"autohedge/trading"
)

type scanOptions struct {
	ConfigPath string
	OutPath    string
	JSON       bool
	OnlySignal bool
	Days       int
}

func runScan(ctx context.Context, cfg *config.Config, opt scanOptions) error {
	results, window, err := scan(ctx, cfg, opt, time.Now())
	if err != nil {
		return err
	}

	w, closeOut, err := openOutput(opt.OutPath)
	if err != nil {
		return err
	}
	defer closeOut()

	if opt.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	if window != "" {
		fmt.Fprintln(w, window)
	}
	return backtest.WriteScanTable(w, results, false)
}

func scan(ctx context.Context, cfg *config.Config, opt scanOptions, now time.Time) ([]backtest.ScanResult, string, error) {
	runCfg, err := backtest.LoadRunConfig(opt.ConfigPath)
	if err != nil {
		return nil, "", err
	}
	window := applyScanDays(&runCfg, opt.Days, now)

	runner, closeProvider, err := newRunner(cfg)
	if err != nil {
		return nil, "", err
	}
	defer closeProvider()

	results, err := runner.Scan(ctx, runCfg)
	if err != nil {
		return nil, "", err
	}
	if opt.OnlySignal {
		results = onlySignals(results)
	}
	return results, window, nil
}

func onlySignals(results []backtest.ScanResult) []backtest.ScanResult {
	out := make([]backtest.ScanResult, 0, len(results))
	for _, r := range results {
		if len(r.Errors) > 0 || r.Signal != backtest.SignalHold {
			out = append(out, r)
		}
	}
	return out
}

// applyScanDays replaces the configured window with the last scanDays
// calendar days. The end date is exclusive, so it is set to tomorrow to keep
// today's bar.
func applyScanDays(cfg *backtest.RunConfig, scanDays int, now time.Time) string {
	if cfg == nil || scanDays <= 0 {
		return ""
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	cfg.Start = today.AddDate(0, 0, -scanDays)
	cfg.End = today.AddDate(0, 0, 1)
	return fmt.Sprintf("[SCAN] window: %s ~ %s (last %d days, signals confirm at the close)",
		trading.FormatDate(cfg.Start), trading.FormatDate(today), scanDays)
}
