package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"autohedge/fetcher"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// seriesFromCloses builds consecutive daily bars starting 2024-01-01.
func seriesFromCloses(closes ...float64) []PriceBar {
	bars := make([]PriceBar, len(closes))
	for i, c := range closes {
		bars[i] = PriceBar{
			Date:   day0.AddDate(0, 0, i),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		}
	}
	return bars
}

func signalsAt(n int, buys ...int) []Signal {
	out := make([]Signal, n)
	for i := range out {
		out[i] = SignalHold
	}
	for _, i := range buys {
		out[i] = SignalBuy
	}
	return out
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) <= 1e-9*math.Max(1, math.Abs(b))
}

func sineCloses(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 10*math.Sin(2*math.Pi*float64(i)/40) + 0.05*float64(i)
	}
	return out
}

func klinesFrom(bars []PriceBar) []fetcher.KLine {
	out := make([]fetcher.KLine, len(bars))
	for i, b := range bars {
		out[i] = fetcher.KLine{
			Date:   b.Date.Format("2006-01-02"),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: int64(b.Volume),
		}
	}
	return out
}

type fakeProvider struct {
	data map[string][]fetcher.KLine
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]fetcher.KLine, error) {
	kl, ok := f.data[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return kl, nil
}
