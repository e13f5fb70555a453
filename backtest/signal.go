package backtest

// GenerateSignals emits one signal per bar. The first bar is always HOLD
// because a crossover needs the preceding bar.
func GenerateSignals(bars []PriceBar, ind []IndicatorSet) []Signal {
	out := make([]Signal, len(bars))
	for i := range bars {
		out[i] = SignalAt(i, bars, ind)
	}
	return out
}

// SignalAt evaluates bar i against bar i-1. Any unset input yields HOLD.
func SignalAt(i int, bars []PriceBar, ind []IndicatorSet) Signal {
	if i < 1 || i >= len(bars) || i >= len(ind) {
		return SignalHold
	}
	cur, prev := ind[i], ind[i-1]
	if !cur.SMA20.OK || !prev.SMA20.OK || !cur.RSI14.OK || !cur.MACD.OK || !cur.MACDSignal.OK {
		return SignalHold
	}

	c, pc := bars[i].Close, bars[i-1].Close

	if c > cur.SMA20.V && pc <= prev.SMA20.V &&
		cur.RSI14.V < 70 && cur.MACD.V > cur.MACDSignal.V {
		return SignalBuy
	}
	if c < cur.SMA20.V && pc >= prev.SMA20.V &&
		cur.RSI14.V > 30 && cur.MACD.V < cur.MACDSignal.V {
		return SignalSell
	}
	return SignalHold
}
