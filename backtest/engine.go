package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"sync"
	"time"

	"autohedge/fetcher"
	"autohedge/trading"
)

// Backtest runs the full pipeline on an in-memory series: indicators, signals,
// simulation and scoring. An empty series is a valid input and yields a
// zero-trade result.
func Backtest(symbol string, bars []PriceBar, p Params, logger *log.Logger) (Result, error) {
	if err := p.Validate(); err != nil {
		return Result{}, err
	}
	if err := validateSeries(bars); err != nil {
		return Result{}, err
	}
	if len(bars) == 0 {
		return NewResult(nil, p.InitialCapital), nil
	}

	ind := ComputeIndicators(bars)
	signals := GenerateSignals(bars, ind)
	sim := Simulator{Symbol: symbol, Params: p, Logger: logger}
	return NewResult(sim.Run(bars, signals), p.InitialCapital), nil
}

// Validate rejects parameters the simulator cannot run with.
func (p Params) Validate() error {
	switch {
	case !(p.InitialCapital > 0) || math.IsInf(p.InitialCapital, 0):
		return fmt.Errorf("%w: initial_capital must be positive, got %v", ErrInvalidParameters, p.InitialCapital)
	case p.HoldingPeriodDays <= 0:
		return fmt.Errorf("%w: holding_period_days must be positive, got %d", ErrInvalidParameters, p.HoldingPeriodDays)
	case p.StopLossPct < 0 || math.IsNaN(p.StopLossPct):
		return fmt.Errorf("%w: stop_loss_pct must be >= 0, got %v", ErrInvalidParameters, p.StopLossPct)
	case p.TakeProfitPct < 0 || math.IsNaN(p.TakeProfitPct):
		return fmt.Errorf("%w: take_profit_pct must be >= 0, got %v", ErrInvalidParameters, p.TakeProfitPct)
	case !(p.AllocationPct > 0) || p.AllocationPct > 100:
		return fmt.Errorf("%w: allocation_pct must be in (0,100], got %v", ErrInvalidParameters, p.AllocationPct)
	}
	return nil
}

func validateSeries(bars []PriceBar) error {
	for i, b := range bars {
		for _, v := range [...]float64{b.Open, b.High, b.Low, b.Close, b.Volume} {
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%w: bar %d (%s) has invalid value %v", ErrMalformedSeries, i, trading.FormatDate(b.Date), v)
			}
		}
		if i > 0 && !b.Date.After(bars[i-1].Date) {
			return fmt.Errorf("%w: dates not strictly increasing at bar %d (%s)", ErrMalformedSeries, i, trading.FormatDate(b.Date))
		}
	}
	return nil
}

// Report is one symbol's outcome within a run, including the request that produced it.
type Report struct {
	Symbol    string   `json:"symbol"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
	Params    Params   `json:"params"`
	Bars      int      `json:"bars"`
	Result    Result   `json:"result"`
	Errors    []string `json:"errors,omitempty"`
}

type Runner struct {
	provider fetcher.Provider
	// Logger is handed to each simulation. Nil keeps runs silent.
	Logger *log.Logger
}

func NewRunner(p fetcher.Provider) *Runner {
	return &Runner{provider: p}
}

// Run backtests every configured symbol. Unless cfg.Independent is set,
// capital is split equally across symbols; each report keeps the full initial
// capital as its baseline. Per-symbol data failures are recorded on that
// symbol's report. Reports come back in cfg.Symbols order.
func (r *Runner) Run(ctx context.Context, cfg RunConfig) ([]Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	share := cfg.Params
	if !cfg.Independent {
		share.AllocationPct = cfg.Params.AllocationPct / float64(len(cfg.Symbols))
	}

	out := make([]Report, len(cfg.Symbols))
	workers := cfg.Concurrency
	if workers <= 0 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, sym := range cfg.Symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, sym string) {
			defer wg.Done()
			defer func() { <-sem }()
			out[i] = r.RunSymbol(ctx, sym, cfg.Start, cfg.End, share)
		}(i, sym)
	}
	wg.Wait()
	return out, nil
}

// RunSymbol fetches one symbol's history and backtests it.
func (r *Runner) RunSymbol(ctx context.Context, symbol string, start, end time.Time, p Params) Report {
	rep := Report{
		Symbol:    symbol,
		StartDate: trading.FormatDate(start),
		EndDate:   trading.FormatDate(end),
		Params:    p,
		Result:    NewResult(nil, p.InitialCapital),
	}

	bars, err := r.loadBars(ctx, symbol, start, end)
	if err != nil {
		rep.Errors = []string{err.Error()}
		return rep
	}
	rep.Bars = len(bars)
	if len(bars) == 0 {
		log.Printf("[backtest] no data for %s %s..%s\n", symbol, rep.StartDate, rep.EndDate)
	}

	res, err := Backtest(symbol, bars, p, r.Logger)
	if err != nil {
		rep.Errors = []string{err.Error()}
		return rep
	}
	rep.Result = res
	return rep
}

// loadBars converts provider rows into a date-sorted series in [start, end).
// Rows sharing a date keep the last one seen.
func (r *Runner) loadBars(ctx context.Context, symbol string, start, end time.Time) ([]PriceBar, error) {
	if r.provider == nil {
		return nil, fmt.Errorf("no price provider configured")
	}
	kl, err := r.provider.GetHistory(ctx, symbol, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", symbol, err)
	}
	return BarsFromKLines(kl, start, end)
}

// BarsFromKLines parses and normalises provider rows. Zero start/end disable
// the respective bound.
func BarsFromKLines(kl []fetcher.KLine, start, end time.Time) ([]PriceBar, error) {
	byDate := make(map[time.Time]PriceBar, len(kl))
	for _, k := range kl {
		t, err := trading.ParseDate(k.Date)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedSeries, err)
		}
		if !start.IsZero() && t.Before(start) {
			continue
		}
		if !end.IsZero() && !t.Before(end) {
			continue
		}
		byDate[t] = PriceBar{
			Date:   t,
			Open:   k.Open,
			High:   k.High,
			Low:    k.Low,
			Close:  k.Close,
			Volume: float64(k.Volume),
		}
	}

	bars := make([]PriceBar, 0, len(byDate))
	for _, b := range byDate {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return bars, nil
}

// ResultsBySymbol keys successful reports by symbol, the shape the dashboard consumes.
func ResultsBySymbol(reports []Report) map[string]Result {
	out := make(map[string]Result, len(reports))
	for _, rep := range reports {
		out[rep.Symbol] = rep.Result
	}
	return out
}

func WriteResultsJSON(w io.Writer, reports []Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}
