package llm

import (
	"encoding/json"

	"autohedge/backtest"
)

// SignalDigest is the latest-bar view of one symbol, trimmed to what the
// checklist prompt needs.
type SignalDigest struct {
	Symbol     string          `json:"symbol"`
	Date       string          `json:"date,omitempty"`
	Close      float64         `json:"close"`
	Signal     backtest.Signal `json:"signal"`
	SMA20      backtest.Val    `json:"sma_20"`
	RSI14      backtest.Val    `json:"rsi_14"`
	MACD       backtest.Val    `json:"macd"`
	MACDSignal backtest.Val    `json:"macd_signal"`
	// Stale marks a last bar older than the newest bar in the scan.
	Stale bool   `json:"stale,omitempty"`
	Error string `json:"error,omitempty"`
}

type ScanSummary struct {
	AsOf    string         `json:"as_of,omitempty"`
	Scanned int            `json:"scanned"`
	Buys    []string       `json:"buy"`
	Sells   []string       `json:"sell"`
	Failed  []string       `json:"failed,omitempty"`
	Symbols []SignalDigest `json:"symbols"`
}

// SummarizeScan groups scan results by signal. AsOf is the newest bar date
// seen; symbols whose data stops earlier are flagged stale.
func SummarizeScan(results []backtest.ScanResult) ScanSummary {
	sum := ScanSummary{
		Scanned: len(results),
		Buys:    []string{},
		Sells:   []string{},
		Symbols: make([]SignalDigest, 0, len(results)),
	}
	for _, r := range results {
		if r.LastDate > sum.AsOf {
			sum.AsOf = r.LastDate
		}
	}

	for _, r := range results {
		d := SignalDigest{
			Symbol:     r.Symbol,
			Date:       r.LastDate,
			Close:      r.LastClose,
			Signal:     r.Signal,
			SMA20:      r.Indicators.SMA20,
			RSI14:      r.Indicators.RSI14,
			MACD:       r.Indicators.MACD,
			MACDSignal: r.Indicators.MACDSignal,
			Stale:      r.LastDate != "" && r.LastDate < sum.AsOf,
		}
		if len(r.Errors) > 0 {
			d.Error = r.Errors[0]
			sum.Failed = append(sum.Failed, r.Symbol)
		}
		switch r.Signal {
		case backtest.SignalBuy:
			sum.Buys = append(sum.Buys, r.Symbol)
		case backtest.SignalSell:
			sum.Sells = append(sum.Sells, r.Symbol)
		}
		sum.Symbols = append(sum.Symbols, d)
	}
	return sum
}

func (s ScanSummary) MarshalIndented() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
