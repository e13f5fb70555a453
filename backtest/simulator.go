package backtest

import (
	"log"
	"math"

	"autohedge/trading"
)

// Params are the run parameters of a single-symbol simulation.
type Params struct {
	InitialCapital    float64 `json:"initial_capital" yaml:"initial_capital"`
	StopLossPct       float64 `json:"stop_loss_pct" yaml:"stop_loss_pct"`
	TakeProfitPct     float64 `json:"take_profit_pct" yaml:"take_profit_pct"`
	HoldingPeriodDays int     `json:"holding_period_days" yaml:"holding_period_days"`
	AllocationPct     float64 `json:"allocation_pct" yaml:"allocation_pct"`
}

// DefaultParams mirrors the defaults of the dashboard and CLI.
func DefaultParams() Params {
	return Params{
		InitialCapital:    100000,
		StopLossPct:       5,
		TakeProfitPct:     10,
		HoldingPeriodDays: 30,
		AllocationPct:     100,
	}
}

// Simulator walks bars and signals once and turns them into closed trades.
// It holds at most one position and never looks ahead.
type Simulator struct {
	Symbol string
	Params Params
	// Logger receives one line per entry and exit. Nil keeps the run silent.
	Logger *log.Logger
}

// Run executes the state machine. Exits are checked before entries in the
// order stop-loss, take-profit, holding period; a bar that closes a position
// never opens one. A position still open after the last bar is closed at
// that bar's close.
func (s Simulator) Run(bars []PriceBar, signals []Signal) []Trade {
	trades := make([]Trade, 0)
	if len(bars) == 0 {
		return trades
	}

	p := s.Params
	capital := p.InitialCapital * (p.AllocationPct / 100)
	stopMul := 1 - p.StopLossPct/100
	takeMul := 1 + p.TakeProfitPct/100

	var pos *position
	closePos := func(bar PriceBar, reason ExitReason) {
		t := newTrade(s.Symbol, *pos, bar.Date, bar.Close, p.StopLossPct, reason)
		trades = append(trades, t)
		capital += t.PnL
		pos = nil
		s.logf("[backtest] %s exit %s %s @ %.2f pnl=%.2f", s.Symbol, reason, trading.FormatDate(bar.Date), bar.Close, t.PnL)
	}

	last := len(bars) - 1
	for i := 1; i < len(bars); i++ {
		bar := bars[i]
		price := bar.Close

		if pos != nil {
			switch {
			case price <= pos.entryPrice*stopMul:
				closePos(bar, ExitStopLoss)
				continue
			case price >= pos.entryPrice*takeMul:
				closePos(bar, ExitTakeProfit)
				continue
			case trading.DaysBetween(pos.entryDate, bar.Date) >= p.HoldingPeriodDays:
				closePos(bar, ExitHoldingPeriod)
				continue
			}
		}

		// An entry on the final bar would be force-closed on its own date.
		if pos != nil || i == last || i >= len(signals) || signals[i] != SignalBuy {
			continue
		}
		if capital <= 0 || price <= 0 {
			continue
		}
		qty := int64(math.Floor(capital / price))
		if qty < 1 {
			continue
		}
		pos = &position{
			entryDate:  bar.Date,
			entryPrice: price,
			quantity:   qty,
			allocation: float64(qty) * price,
		}
		s.logf("[backtest] %s entry %s %d @ %.2f", s.Symbol, trading.FormatDate(bar.Date), qty, price)
	}

	if pos != nil {
		closePos(bars[last], ExitEndOfData)
	}
	return trades
}

func (s Simulator) logf(format string, args ...any) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}
