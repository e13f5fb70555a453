package backtest

import "math"

const (
	smaShort    = 20
	smaMid      = 50
	smaLong     = 200
	rsiPeriod   = 14
	emaFast     = 12
	emaSlow     = 26
	macdSignal  = 9
	volumeMAWin = 20
)

// ComputeIndicators returns one IndicatorSet per bar. A value is left unset
// until its lookback window is satisfied.
func ComputeIndicators(bars []PriceBar) []IndicatorSet {
	n := len(bars)
	out := make([]IndicatorSet, n)
	if n == 0 {
		return out
	}

	closes := make([]float64, n)
	volumes := make([]float64, n)
	for i, b := range bars {
		closes[i] = b.Close
		volumes[i] = b.Volume
	}

	sma20 := rollingMean(closes, smaShort)
	sma50 := rollingMean(closes, smaMid)
	sma200 := rollingMean(closes, smaLong)
	rsi := rsiSeries(closes, rsiPeriod)
	ema12 := emaSeries(closes, emaFast)
	ema26 := emaSeries(closes, emaSlow)

	macd := make([]float64, n)
	for i := range closes {
		macd[i] = ema12[i] - ema26[i]
	}
	signal := emaSeries(macd, macdSignal)
	volMA := rollingMean(volumes, volumeMAWin)

	for i := range out {
		out[i] = IndicatorSet{
			SMA20:      sma20[i],
			SMA50:      sma50[i],
			SMA200:     sma200[i],
			RSI14:      rsi[i],
			EMA12:      some(ema12[i]),
			EMA26:      some(ema26[i]),
			MACD:       some(macd[i]),
			MACDSignal: some(signal[i]),
			VolumeMA20: volMA[i],
		}
	}
	return out
}

// rollingMean is the simple mean of the last n values; unset for the first n-1.
// Each window is summed afresh so no rounding drift accumulates over long series.
func rollingMean(xs []float64, n int) []Val {
	out := make([]Val, len(xs))
	if n <= 0 {
		return out
	}
	for i := n - 1; i < len(xs); i++ {
		sum := 0.0
		for _, x := range xs[i-n+1 : i+1] {
			sum += x
		}
		out[i] = some(sum / float64(n))
	}
	return out
}

// emaSeries seeds with the first value and applies alpha = 2/(span+1).
func emaSeries(xs []float64, span int) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}
	alpha := 2.0 / float64(span+1)
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
	}
	return out
}

// rsiSeries uses simple rolling means of gains and losses. The first bar has
// no prior close and contributes a zero delta to the first window. RSI is
// unset while the average loss is zero.
func rsiSeries(closes []float64, period int) []Val {
	n := len(closes)
	gains := make([]float64, n)
	losses := make([]float64, n)
	for i := 1; i < n; i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i] = d
		} else if d < 0 {
			losses[i] = -d
		}
	}

	avgGain := rollingMean(gains, period)
	avgLoss := rollingMean(losses, period)

	out := make([]Val, n)
	for i := range out {
		if !avgGain[i].OK || !avgLoss[i].OK || avgLoss[i].V == 0 {
			continue
		}
		rs := avgGain[i].V / avgLoss[i].V
		v := 100 - 100/(1+rs)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out[i] = some(v)
	}
	return out
}
