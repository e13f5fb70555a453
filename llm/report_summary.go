package llm

import (
	"encoding/json"
	"fmt"
	"sort"

	"autohedge/backtest"
)

type ReportSummary struct {
	TotalSymbols   int                 `json:"total_symbols"`
	TotalTrades    int                 `json:"total_trades"`
	TotalWins      int                 `json:"total_wins"`
	AvgWinRate     float64             `json:"avg_win_rate_pct"`
	OverallWinRate float64             `json:"overall_win_rate_pct"`
	WorstMaxDD     float64             `json:"worst_max_drawdown_pct"`
	TotalNetPnL    float64             `json:"total_net_pnl"`
	ExitReasons    map[string]int      `json:"exit_reasons"`
	TopByPnL       []SymbolPerformance `json:"top_by_net_pnl"`
	BottomByPnL    []SymbolPerformance `json:"bottom_by_net_pnl"`
	Symbols        []SymbolPerformance `json:"symbols"`
	Errors         []string            `json:"errors,omitempty"`
}

type SymbolPerformance struct {
	Symbol           string          `json:"symbol"`
	Start            string          `json:"start,omitempty"`
	End              string          `json:"end,omitempty"`
	Params           backtest.Params `json:"params"`
	FinalCapital     float64         `json:"final_capital"`
	TotalTrades      int             `json:"total_trades"`
	WinRatePct       float64         `json:"win_rate_pct"`
	MaxDDPct         float64         `json:"max_drawdown_pct"`
	SharpeRatio      float64         `json:"sharpe_ratio"`
	ProfitFactor     backtest.Ratio  `json:"profit_factor"`
	NetPnL           float64         `json:"net_pnl"`
	AvgTradeNetPnL   float64         `json:"avg_trade_net_pnl"`
	BestTradeNetPnL  float64         `json:"best_trade_net_pnl"`
	WorstTradeNetPnL float64         `json:"worst_trade_net_pnl"`
	Error            string          `json:"error,omitempty"`
}

// SummarizeReports condenses per-symbol reports into the prompt payload.
func SummarizeReports(reports []backtest.Report) ReportSummary {
	sum := ReportSummary{
		TotalSymbols: len(reports),
		ExitReasons:  map[string]int{},
	}

	perfs := make([]SymbolPerformance, 0, len(reports))
	winRateSum := 0.0
	for _, rep := range reports {
		r := rep.Result
		p := SymbolPerformance{
			Symbol:           rep.Symbol,
			Start:            rep.StartDate,
			End:              rep.EndDate,
			Params:           rep.Params,
			FinalCapital:     r.FinalCapital,
			TotalTrades:      r.TotalTrades,
			WinRatePct:       r.WinRate,
			MaxDDPct:         r.MaxDrawdown,
			SharpeRatio:      r.SharpeRatio,
			ProfitFactor:     r.ProfitFactor,
			NetPnL:           r.TotalPnL,
			AvgTradeNetPnL:   r.AvgPnL,
			BestTradeNetPnL:  r.MaxWin,
			WorstTradeNetPnL: r.MaxLoss,
		}
		if len(rep.Errors) > 0 {
			p.Error = rep.Errors[0]
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %s", rep.Symbol, rep.Errors[0]))
		}
		for _, t := range r.Trades {
			sum.ExitReasons[string(t.ExitReason)]++
		}
		perfs = append(perfs, p)

		sum.TotalTrades += r.TotalTrades
		sum.TotalWins += r.WinningTrades
		winRateSum += r.WinRate
		if r.MaxDrawdown > sum.WorstMaxDD {
			sum.WorstMaxDD = r.MaxDrawdown
		}
		sum.TotalNetPnL += r.TotalPnL
	}

	if len(reports) > 0 {
		sum.AvgWinRate = winRateSum / float64(len(reports))
	}
	if sum.TotalTrades > 0 {
		sum.OverallWinRate = float64(sum.TotalWins) / float64(sum.TotalTrades) * 100
	}
	sum.Symbols = perfs

	byPnL := append([]SymbolPerformance(nil), perfs...)
	sort.SliceStable(byPnL, func(i, j int) bool { return byPnL[i].NetPnL > byPnL[j].NetPnL })
	sum.TopByPnL = firstN(byPnL, 5)

	byPnLAsc := append([]SymbolPerformance(nil), perfs...)
	sort.SliceStable(byPnLAsc, func(i, j int) bool { return byPnLAsc[i].NetPnL < byPnLAsc[j].NetPnL })
	sum.BottomByPnL = firstN(byPnLAsc, 5)

	return sum
}

func firstN(xs []SymbolPerformance, n int) []SymbolPerformance {
	if len(xs) > n {
		return xs[:n]
	}
	return xs
}

func (s ReportSummary) MarshalIndented() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
