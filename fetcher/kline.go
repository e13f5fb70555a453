package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const eastMoneyKLineURL = "https://push2his.eastmoney.com/api/qt/stock/kline/get?secid=%s&fields1=f1,f2,f3,f4,f5,f6&fields2=f51,f52,f53,f54,f55,f56,f57&klt=101&fqt=1&beg=%s&end=%s"

// EastMoney serves Shanghai/Shenzhen daily bars for codes like sh600000 / sz000001.
type EastMoney struct {
	client  *http.Client
	baseURL string
}

func NewEastMoney() *EastMoney {
	return &EastMoney{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: eastMoneyKLineURL,
	}
}

func (f *EastMoney) Name() string { return "eastmoney" }

func (f *EastMoney) GetHistory(ctx context.Context, code string, start, end time.Time) ([]KLine, error) {
	secid, err := eastMoneySecID(code)
	if err != nil {
		return nil, err
	}
	// end is exclusive for callers, inclusive for the API.
	last := end.AddDate(0, 0, -1)
	url := fmt.Sprintf(f.baseURL, secid, start.Format("20060102"), last.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Referer", "https://quote.eastmoney.com/")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("eastmoney http %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return parseEastMoneyKLine(body)
}

// eastMoneySecID converts sh600000 -> 1.600000, sz000001 -> 0.000001.
func eastMoneySecID(code string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(code))
	if len(c) <= 2 {
		return "", fmt.Errorf("unsupported code: %s", code)
	}
	switch c[:2] {
	case "sh":
		return "1." + c[2:], nil
	case "sz":
		return "0." + c[2:], nil
	default:
		return "", fmt.Errorf("unsupported code: %s", code)
	}
}

func parseEastMoneyKLine(data []byte) ([]KLine, error) {
	var result struct {
		Data *struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("parse eastmoney: %w", err)
	}
	if result.Data == nil {
		return nil, nil
	}

	klines := make([]KLine, 0, len(result.Data.Klines))
	for _, line := range result.Data.Klines {
		// date,open,close,high,low,volume,amount
		parts := strings.Split(line, ",")
		if len(parts) < 6 {
			continue
		}

		open, err1 := strconv.ParseFloat(parts[1], 64)
		closePrice, err2 := strconv.ParseFloat(parts[2], 64)
		high, err3 := strconv.ParseFloat(parts[3], 64)
		low, err4 := strconv.ParseFloat(parts[4], 64)
		volume, err5 := strconv.ParseInt(parts[5], 10, 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
			return nil, fmt.Errorf("bad eastmoney row %q", line)
		}

		klines = append(klines, KLine{
			Date:   parts[0],
			Open:   open,
			Close:  closePrice,
			High:   high,
			Low:    low,
			Volume: volume,
		})
	}
	return klines, nil
}
