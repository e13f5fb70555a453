package backtest

import (
	"context"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"autohedge/trading"
)

// ScanResult is the latest bar's signal for one symbol.
type ScanResult struct {
	Symbol     string       `json:"symbol"`
	LastDate   string       `json:"last_date,omitempty"`
	LastClose  float64      `json:"last_close"`
	Signal     Signal       `json:"signal"`
	Indicators IndicatorSet `json:"indicators"`
	Bars       int          `json:"bars"`
	Errors     []string     `json:"errors,omitempty"`
}

// Scan evaluates the signal generator on the most recent bar of every symbol.
func (r *Runner) Scan(ctx context.Context, cfg RunConfig) ([]ScanResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	out := make([]ScanResult, 0, len(cfg.Symbols))
	for _, sym := range cfg.Symbols {
		bars, err := r.loadBars(ctx, sym, cfg.Start, cfg.End)
		if err == nil {
			err = validateSeries(bars)
		}
		if err != nil {
			out = append(out, ScanResult{Symbol: sym, Signal: SignalHold, Errors: []string{err.Error()}})
			continue
		}
		out = append(out, scanOne(sym, bars))
	}
	return out, nil
}

func scanOne(symbol string, bars []PriceBar) ScanResult {
	res := ScanResult{Symbol: symbol, Signal: SignalHold, Bars: len(bars)}
	if len(bars) == 0 {
		res.Errors = []string{"no data"}
		return res
	}
	ind := ComputeIndicators(bars)
	i := len(bars) - 1
	res.LastDate = trading.FormatDate(bars[i].Date)
	res.LastClose = round2(bars[i].Close)
	res.Indicators = ind[i]
	res.Signal = SignalAt(i, bars, ind)
	return res
}

// WriteScanTable prints scan results, signalled symbols first.
func WriteScanTable(w io.Writer, results []ScanResult, onlySignal bool) error {
	rows := append([]ScanResult(nil), results...)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Signal != SignalHold && rows[j].Signal == SignalHold
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tDATE\tCLOSE\tSIGNAL\tSMA20\tRSI14\tMACD\tNOTE")
	for _, r := range rows {
		if onlySignal && r.Signal == SignalHold && len(r.Errors) == 0 {
			continue
		}
		note := ""
		if len(r.Errors) > 0 {
			note = r.Errors[0]
		}
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\t%s\t%s\n",
			r.Symbol, r.LastDate, r.LastClose, r.Signal,
			fmtVal(r.Indicators.SMA20), fmtVal(r.Indicators.RSI14), fmtVal(r.Indicators.MACD), note)
	}
	return tw.Flush()
}

func fmtVal(v Val) string {
	if !v.OK {
		return "-"
	}
	return fmt.Sprintf("%.2f", v.V)
}
