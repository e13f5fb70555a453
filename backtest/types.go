package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"autohedge/trading"
)

// PriceBar is one calendar day's OHLCV record. Date is a UTC midnight.
type PriceBar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Val is an indicator reading that may not be available yet.
type Val struct {
	V  float64
	OK bool
}

func some(v float64) Val { return Val{V: v, OK: true} }

func (v Val) MarshalJSON() ([]byte, error) {
	if !v.OK {
		return []byte("null"), nil
	}
	return json.Marshal(round4(v.V))
}

func (v *Val) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Val{}
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = some(f)
	return nil
}

// IndicatorSet holds the derived values attached to one bar.
type IndicatorSet struct {
	SMA20      Val `json:"sma_20"`
	SMA50      Val `json:"sma_50"`
	SMA200     Val `json:"sma_200"`
	RSI14      Val `json:"rsi_14"`
	EMA12      Val `json:"ema_12"`
	EMA26      Val `json:"ema_26"`
	MACD       Val `json:"macd"`
	MACDSignal Val `json:"macd_signal"`
	VolumeMA20 Val `json:"volume_ma_20"`
}

type Signal string

const (
	SignalHold Signal = "HOLD"
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
)

type ExitReason string

const (
	ExitStopLoss      ExitReason = "stop_loss"
	ExitTakeProfit    ExitReason = "take_profit"
	ExitHoldingPeriod ExitReason = "holding_period"
	ExitEndOfData     ExitReason = "end_of_data"
)

// ActionBuy is the only trade direction the simulator produces.
const ActionBuy = "BUY"

// position is the single open position of a run. It never leaves the simulator.
type position struct {
	entryDate  time.Time
	entryPrice float64
	quantity   int64
	allocation float64
}

// Trade is a closed position.
type Trade struct {
	Stock       string
	EntryDate   time.Time
	EntryPrice  float64
	ExitDate    time.Time
	ExitPrice   float64
	Action      string
	Quantity    int64
	Allocation  float64
	StopLossPct float64
	PnL         float64
	PnLPct      float64
	IsWinner    bool
	ExitReason  ExitReason
}

func newTrade(stock string, pos position, exitDate time.Time, exitPrice, stopLossPct float64, reason ExitReason) Trade {
	pnl := (exitPrice - pos.entryPrice) * float64(pos.quantity)
	return Trade{
		Stock:       stock,
		EntryDate:   pos.entryDate,
		EntryPrice:  pos.entryPrice,
		ExitDate:    exitDate,
		ExitPrice:   exitPrice,
		Action:      ActionBuy,
		Quantity:    pos.quantity,
		Allocation:  pos.allocation,
		StopLossPct: stopLossPct,
		PnL:         pnl,
		PnLPct:      pnl / pos.allocation * 100,
		IsWinner:    pnl > 0,
		ExitReason:  reason,
	}
}

type tradeJSON struct {
	Stock       string     `json:"stock"`
	EntryDate   string     `json:"entry_date"`
	EntryPrice  float64    `json:"entry_price"`
	ExitDate    string     `json:"exit_date"`
	ExitPrice   float64    `json:"exit_price"`
	Action      string     `json:"action"`
	Quantity    int64      `json:"quantity"`
	Allocation  float64    `json:"allocation"`
	StopLossPct float64    `json:"stop_loss_pct"`
	PnL         float64    `json:"pnl"`
	PnLPct      float64    `json:"pnl_pct"`
	IsWinner    bool       `json:"is_winner"`
	ExitReason  ExitReason `json:"exit_reason,omitempty"`
}

// MarshalJSON writes dates as YYYY-MM-DD and rounds pnl/pnl_pct to cents.
func (t Trade) MarshalJSON() ([]byte, error) {
	return json.Marshal(tradeJSON{
		Stock:       t.Stock,
		EntryDate:   trading.FormatDate(t.EntryDate),
		EntryPrice:  t.EntryPrice,
		ExitDate:    trading.FormatDate(t.ExitDate),
		ExitPrice:   t.ExitPrice,
		Action:      t.Action,
		Quantity:    t.Quantity,
		Allocation:  t.Allocation,
		StopLossPct: t.StopLossPct,
		PnL:         round2(t.PnL),
		PnLPct:      round2(t.PnLPct),
		IsWinner:    t.IsWinner,
		ExitReason:  t.ExitReason,
	})
}

func (t *Trade) UnmarshalJSON(b []byte) error {
	var raw tradeJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	entry, err := trading.ParseDate(raw.EntryDate)
	if err != nil {
		return fmt.Errorf("entry_date: %w", err)
	}
	exit, err := trading.ParseDate(raw.ExitDate)
	if err != nil {
		return fmt.Errorf("exit_date: %w", err)
	}
	*t = Trade{
		Stock:       raw.Stock,
		EntryDate:   entry,
		EntryPrice:  raw.EntryPrice,
		ExitDate:    exit,
		ExitPrice:   raw.ExitPrice,
		Action:      raw.Action,
		Quantity:    raw.Quantity,
		Allocation:  raw.Allocation,
		StopLossPct: raw.StopLossPct,
		PnL:         raw.PnL,
		PnLPct:      raw.PnLPct,
		IsWinner:    raw.IsWinner,
		ExitReason:  raw.ExitReason,
	}
	return nil
}

// Ratio is a float64 that may be +Inf. JSON has no infinity literal, so +Inf is
// written as the string "Infinity".
type Ratio float64

func (r Ratio) IsInf() bool { return math.IsInf(float64(r), 1) }

func (r Ratio) MarshalJSON() ([]byte, error) {
	if r.IsInf() {
		return []byte(`"Infinity"`), nil
	}
	return json.Marshal(float64(r))
}

func (r *Ratio) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == `"Infinity"` || s == `"inf"` {
		*r = Ratio(math.Inf(1))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*r = Ratio(f)
	return nil
}

// Result is the scored outcome of one backtest run. Built once by NewResult.
type Result struct {
	InitialCapital float64 `json:"initial_capital"`
	FinalCapital   float64 `json:"final_capital"`
	TotalPnL       float64 `json:"total_pnl"`
	TotalReturnPct float64 `json:"total_return_pct"`
	TotalTrades    int     `json:"total_trades"`
	WinningTrades  int     `json:"winning_trades"`
	LosingTrades   int     `json:"losing_trades"`
	WinRate        float64 `json:"win_rate"`
	AvgPnL         float64 `json:"avg_pnl"`
	AvgWin         float64 `json:"avg_win"`
	AvgLoss        float64 `json:"avg_loss"`
	MaxWin         float64 `json:"max_win"`
	MaxLoss        float64 `json:"max_loss"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	MaxDrawdown    float64 `json:"max_drawdown"`
	ProfitFactor   Ratio   `json:"profit_factor"`
	Trades         []Trade `json:"trades"`
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

func round4(x float64) float64 {
	return math.Round(x*10000) / 10000
}
