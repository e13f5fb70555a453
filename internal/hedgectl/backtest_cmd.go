package hedgectl

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"autohedge/backtest"
	"autohedge/config"
	"autohedge/internal/terminalui"
	"autohedge/store"
)

type backtestOptions struct {
	ConfigPath  string
	OutPath     string
	JSON        bool
	Save        bool
	ChartDir    string
	Independent bool
	Verbose     bool
}

func runBacktest(ctx context.Context, cfg *config.Config, opt backtestOptions) error {
	runCfg, err := backtest.LoadRunConfig(opt.ConfigPath)
	if err != nil {
		return err
	}
	runCfg.Independent = opt.Independent

	runner, closeProvider, err := newRunner(cfg)
	if err != nil {
		return err
	}
	defer closeProvider()
	if opt.Verbose {
		runner.Logger = log.New(os.Stderr, "[backtest] ", log.Ltime)
	}

	started := time.Now()
	reports, err := runner.Run(ctx, runCfg)
	if err != nil {
		return err
	}
	log.Printf("[backtest] %d symbol(s) in %s\n", len(reports), time.Since(started).Round(time.Millisecond))

	w, closeOut, err := openOutput(opt.OutPath)
	if err != nil {
		return err
	}
	if opt.JSON {
		err = backtest.WriteResultsJSON(w, reports)
	} else {
		err = terminalui.RenderReports(w, reports, terminalui.Options{Color: opt.OutPath == ""})
	}
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	if opt.ChartDir != "" {
		if err := writeEquityCharts(opt.ChartDir, reports); err != nil {
			return err
		}
	}
	if opt.Save {
		st, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := saveReports(ctx, st, reports, time.Now()); err != nil {
			return err
		}
	}
	return nil
}

// saveReports stores every report that ran without errors.
func saveReports(ctx context.Context, st store.Store, reports []backtest.Report, now time.Time) error {
	for _, rep := range reports {
		if len(rep.Errors) > 0 {
			log.Printf("[store] skip %s: %s\n", rep.Symbol, rep.Errors[0])
			continue
		}
		rec := store.NewRecord(rep, now)
		if err := st.Save(ctx, rec); err != nil {
			return fmt.Errorf("save %s: %w", rep.Symbol, err)
		}
		log.Printf("[store] saved %s as %s\n", rep.Symbol, rec.ID)
	}
	return nil
}

func writeEquityCharts(dir string, reports []backtest.Report) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("chart dir: %w", err)
	}
	for _, rep := range reports {
		if len(rep.Result.Trades) == 0 {
			continue
		}
		svg, err := backtest.RenderEquitySVG(rep.Symbol, rep.Result, backtest.SVGChartOptions{})
		if err != nil {
			return fmt.Errorf("chart %s: %w", rep.Symbol, err)
		}
		name := filepath.Join(dir, store.Filename(rep.Symbol, rep.StartDate, rep.EndDate))
		name = name[:len(name)-len(".json")] + ".svg"
		if err := os.WriteFile(name, svg, 0o644); err != nil {
			return fmt.Errorf("write chart: %w", err)
		}
		log.Printf("[backtest] chart %s\n", name)
	}
	return nil
}
