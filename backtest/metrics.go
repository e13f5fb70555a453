package backtest

import "math"

// tradingDaysPerYear annualises the per-trade Sharpe approximation.
const tradingDaysPerYear = 252

// NewResult scores a chronologically ordered trade list. With no trades every
// metric is zero and final capital equals initial capital.
func NewResult(trades []Trade, initialCapital float64) Result {
	if trades == nil {
		trades = make([]Trade, 0)
	}
	res := Result{
		InitialCapital: initialCapital,
		FinalCapital:   initialCapital,
		Trades:         trades,
	}
	n := len(trades)
	if n == 0 {
		return res
	}

	var grossWin, grossLoss float64
	var wins, losses int
	maxWin, maxLoss := 0.0, 0.0
	for _, t := range trades {
		res.TotalPnL += t.PnL
		if t.IsWinner {
			if wins == 0 || t.PnL > maxWin {
				maxWin = t.PnL
			}
			wins++
			grossWin += t.PnL
		} else {
			if losses == 0 || t.PnL < maxLoss {
				maxLoss = t.PnL
			}
			losses++
			grossLoss += t.PnL
		}
	}

	res.TotalTrades = n
	res.WinningTrades = wins
	res.LosingTrades = n - wins
	res.WinRate = float64(wins) / float64(n) * 100
	res.FinalCapital = initialCapital + res.TotalPnL
	res.TotalReturnPct = res.TotalPnL / initialCapital * 100
	res.AvgPnL = res.TotalPnL / float64(n)
	if wins > 0 {
		res.AvgWin = grossWin / float64(wins)
	}
	if losses > 0 {
		res.AvgLoss = grossLoss / float64(losses)
	}
	res.MaxWin = maxWin
	res.MaxLoss = maxLoss
	res.ProfitFactor = profitFactor(grossWin, grossLoss, wins)
	res.SharpeRatio = sharpeRatio(trades)
	res.MaxDrawdown = maxDrawdown(trades, initialCapital)
	return res
}

// profitFactor is gross win over |gross loss|; +Inf when nothing was lost but
// something was won.
func profitFactor(grossWin, grossLoss float64, wins int) Ratio {
	lost := math.Abs(grossLoss)
	if lost > 0 {
		return Ratio(grossWin / lost)
	}
	if wins > 0 && grossWin > 0 {
		return Ratio(math.Inf(1))
	}
	return 0
}

// sharpeRatio treats each trade's pnl_pct as one return observation and uses
// the population standard deviation.
func sharpeRatio(trades []Trade) float64 {
	n := len(trades)
	if n < 2 {
		return 0
	}
	mean := 0.0
	for _, t := range trades {
		mean += t.PnLPct
	}
	mean /= float64(n)

	variance := 0.0
	for _, t := range trades {
		d := t.PnLPct - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(n))
	if std == 0 || math.IsNaN(std) {
		return 0
	}
	return mean / std * math.Sqrt(tradingDaysPerYear)
}

// maxDrawdown replays realised P&L in trade order and returns the deepest
// percentage fall from the running capital peak.
func maxDrawdown(trades []Trade, initialCapital float64) float64 {
	capital := initialCapital
	peak := capital
	maxDD := 0.0
	for _, t := range trades {
		capital += t.PnL
		if capital > peak {
			peak = capital
		}
		if peak <= 0 {
			continue
		}
		if dd := (peak - capital) / peak * 100; dd > maxDD {
			maxDD = dd
		}
	}
	return maxDD
}
