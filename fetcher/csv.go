package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/transform"
)

// CSVDir reads <dir>/<SYMBOL>.csv files with a Date,Open,High,Low,Close,Volume
// header (column order free, names case-insensitive). Exports from Chinese
// brokerage terminals are accepted too: GBK encoding and 日期/开盘/最高/最低/收盘/成交量
// headers.
type CSVDir struct {
	Dir string
}

func NewCSVDir(dir string) *CSVDir { return &CSVDir{Dir: dir} }

func (c *CSVDir) Name() string { return "csv" }

func (c *CSVDir) GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]KLine, error) {
	sym := strings.TrimSpace(symbol)
	if sym == "" || strings.ContainsAny(sym, `/\`) {
		return nil, fmt.Errorf("invalid symbol %q", symbol)
	}
	name := filepath.Join(c.Dir, sym+".csv")
	raw, err := os.ReadFile(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var r io.Reader = bytes.NewReader(raw)
	if !utf8.Valid(raw) {
		r = transform.NewReader(r, simplifiedchinese.GBK.NewDecoder())
	}
	rows, err := ReadCSV(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	out := rows[:0]
	for _, k := range rows {
		t, err := time.ParseInLocation("2006-01-02", k.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%s: bad date %q", name, k.Date)
		}
		if (!start.IsZero() && t.Before(start)) || (!end.IsZero() && !t.Before(end)) {
			continue
		}
		out = append(out, k)
	}
	return out, nil
}

var headerAliases = map[string]string{
	"日期":  "date",
	"开盘":  "open",
	"最高":  "high",
	"最低":  "low",
	"收盘":  "close",
	"成交量": "volume",
}

// ReadCSV parses an OHLCV table.
func ReadCSV(r io.Reader) ([]KLine, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	col := map[string]int{}
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if alias, ok := headerAliases[key]; ok {
			key = alias
		}
		col[key] = i
	}
	for _, need := range []string{"date", "open", "high", "low", "close", "volume"} {
		if _, ok := col[need]; !ok {
			return nil, fmt.Errorf("missing column %q", need)
		}
	}

	var out []KLine
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		num := func(name string) (float64, error) {
			return strconv.ParseFloat(strings.TrimSpace(rec[col[name]]), 64)
		}
		k := KLine{Date: strings.TrimSpace(rec[col["date"]])}
		var vol float64
		var perr error
		for _, fld := range []struct {
			name string
			dst  *float64
		}{{"open", &k.Open}, {"high", &k.High}, {"low", &k.Low}, {"close", &k.Close}, {"volume", &vol}} {
			v, err := num(fld.name)
			if err != nil {
				perr = fmt.Errorf("line %d column %s: %w", line, fld.name, err)
				break
			}
			*fld.dst = v
		}
		if perr != nil {
			return nil, perr
		}
		k.Volume = int64(vol)
		out = append(out, k)
	}
	return out, nil
}
