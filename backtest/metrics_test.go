package backtest

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func tradeWith(pnl, pnlPct float64) Trade {
	return Trade{PnL: pnl, PnLPct: pnlPct, IsWinner: pnl > 0}
}

func TestNewResultEmpty(t *testing.T) {
	res := NewResult(nil, 1000)
	if res.TotalTrades != 0 || res.FinalCapital != 1000 || res.MaxDrawdown != 0 || res.ProfitFactor != 0 || res.SharpeRatio != 0 {
		t.Fatalf("unexpected empty result: %#v", res)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"trades":[]`) {
		t.Fatalf("empty trades should serialise as [], got %s", b)
	}
}

func TestNewResultMixed(t *testing.T) {
	trades := []Trade{
		tradeWith(100, 10),
		tradeWith(-50, -5),
		tradeWith(200, 20),
		tradeWith(-100, -10),
	}
	res := NewResult(trades, 1000)

	checks := []struct {
		name      string
		got, want float64
	}{
		{"total_pnl", res.TotalPnL, 150},
		{"final_capital", res.FinalCapital, 1150},
		{"total_return_pct", res.TotalReturnPct, 15},
		{"win_rate", res.WinRate, 50},
		{"avg_pnl", res.AvgPnL, 37.5},
		{"avg_win", res.AvgWin, 150},
		{"avg_loss", res.AvgLoss, -75},
		{"max_win", res.MaxWin, 200},
		{"max_loss", res.MaxLoss, -100},
		{"profit_factor", float64(res.ProfitFactor), 2},
		{"max_drawdown", res.MaxDrawdown, 8},
		{"sharpe_ratio", res.SharpeRatio, 3.75 / math.Sqrt(142.1875) * math.Sqrt(252)},
	}
	for _, c := range checks {
		if !almostEqual(c.got, c.want) {
			t.Errorf("%s=%v, want %v", c.name, c.got, c.want)
		}
	}
	if res.TotalTrades != 4 || res.WinningTrades != 2 || res.LosingTrades != 2 {
		t.Fatalf("unexpected counts: %d/%d/%d", res.TotalTrades, res.WinningTrades, res.LosingTrades)
	}
}

func TestProfitFactorInfinite(t *testing.T) {
	res := NewResult([]Trade{tradeWith(100, 10), tradeWith(50, 5)}, 1000)
	if !res.ProfitFactor.IsInf() {
		t.Fatalf("expected +Inf profit factor, got %v", res.ProfitFactor)
	}
	b, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(b), `"profit_factor":"Infinity"`) {
		t.Fatalf("expected Infinity in json, got %s", b)
	}

	var back Result
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.ProfitFactor.IsInf() {
		t.Fatalf("infinity lost on decode: %v", back.ProfitFactor)
	}
}

func TestBreakEvenTradeCountsAsLoser(t *testing.T) {
	res := NewResult([]Trade{tradeWith(0, 0)}, 1000)
	if res.LosingTrades != 1 || res.WinningTrades != 0 {
		t.Fatalf("unexpected counts: %#v", res)
	}
	if res.MaxLoss != 0 || res.ProfitFactor != 0 || res.SharpeRatio != 0 {
		t.Fatalf("unexpected metrics: %#v", res)
	}
}

func TestSharpeZeroVariance(t *testing.T) {
	res := NewResult([]Trade{tradeWith(10, 1), tradeWith(10, 1), tradeWith(10, 1)}, 1000)
	if res.SharpeRatio != 0 {
		t.Fatalf("expected 0 sharpe with zero stdev, got %v", res.SharpeRatio)
	}
}

func TestMaxDrawdownNeverBelowPeak(t *testing.T) {
	res := NewResult([]Trade{tradeWith(10, 1), tradeWith(20, 2)}, 1000)
	if res.MaxDrawdown != 0 {
		t.Fatalf("expected 0 drawdown, got %v", res.MaxDrawdown)
	}
}

func TestTradeJSONRounding(t *testing.T) {
	tr := newTrade("AAPL", position{
		entryDate:  day0,
		entryPrice: 3,
		quantity:   3,
		allocation: 9,
	}, day0.AddDate(0, 0, 2), 3.333333, 5, ExitEndOfData)

	b, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{
		`"entry_date":"2024-01-01"`,
		`"exit_date":"2024-01-03"`,
		`"pnl":1`,
		`"pnl_pct":11.11`,
		`"action":"BUY"`,
		`"exit_reason":"end_of_data"`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %s in %s", want, s)
		}
	}

	var back Trade
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !back.EntryDate.Equal(day0) || back.Quantity != 3 || back.ExitReason != ExitEndOfData {
		t.Fatalf("unexpected decode: %#v", back)
	}
}
