package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const yahooChartURL = "https://query1.finance.yahoo.com/v8/finance/chart/"

// Yahoo reads daily bars from the Yahoo Finance chart endpoint.
type Yahoo struct {
	client  *http.Client
	baseURL string
}

func NewYahoo() *Yahoo {
	return &Yahoo{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: yahooChartURL,
	}
}

func (y *Yahoo) Name() string { return "yahoo" }

func (y *Yahoo) GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]KLine, error) {
	sym := strings.ToUpper(strings.TrimSpace(symbol))
	if sym == "" {
		return nil, fmt.Errorf("empty symbol")
	}
	q := url.Values{}
	q.Set("period1", fmt.Sprint(start.Unix()))
	q.Set("period2", fmt.Sprint(end.Unix()))
	q.Set("interval", "1d")
	q.Set("events", "history")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.baseURL+url.PathEscape(sym)+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := y.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	// Unknown symbols come back as 404 with a JSON error body.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return parseYahooChart(body)
}

type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func parseYahooChart(data []byte) ([]KLine, error) {
	var c yahooChart
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse yahoo: %w", err)
	}
	if c.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo %s: %s", c.Chart.Error.Code, c.Chart.Error.Description)
	}
	if len(c.Chart.Result) == 0 || len(c.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, nil
	}
	r := c.Chart.Result[0]
	q := r.Indicators.Quote[0]

	out := make([]KLine, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		cl := at(q.Close, i)
		if cl == nil {
			// Halted sessions carry a timestamp with null prices.
			continue
		}
		// Shift to exchange local time so the bar keeps its trading date.
		day := time.Unix(ts+r.Meta.GMTOffset, 0).UTC()
		k := KLine{
			Date:  day.Format("2006-01-02"),
			Close: *cl,
			Open:  orZero(at(q.Open, i)),
			High:  orZero(at(q.High, i)),
			Low:   orZero(at(q.Low, i)),
		}
		k.Volume = int64(orZero(at(q.Volume, i)))
		out = append(out, k)
	}
	return out, nil
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func orZero(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
