package backtest

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"autohedge/fetcher"
)

func TestScanOne(t *testing.T) {
	bars := seriesFromCloses(sineCloses(60)...)
	res := scanOne("SINE", bars)
	if res.Bars != 60 || res.LastDate != "2024-02-29" {
		t.Fatalf("unexpected scan result: %#v", res)
	}
	if !res.Indicators.SMA20.OK || res.Indicators.SMA200.OK {
		t.Fatalf("unexpected indicators: %#v", res.Indicators)
	}
	ind := ComputeIndicators(bars)
	if res.Signal != SignalAt(59, bars, ind) {
		t.Fatalf("scan signal disagrees with generator")
	}

	empty := scanOne("NONE", nil)
	if empty.Signal != SignalHold || len(empty.Errors) == 0 {
		t.Fatalf("unexpected empty scan: %#v", empty)
	}
}

func TestRunnerScan(t *testing.T) {
	kl := klinesFrom(seriesFromCloses(sineCloses(40)...))
	r := NewRunner(&fakeProvider{data: map[string][]fetcher.KLine{"AAA": kl}})
	cfg := DefaultRunConfig()
	cfg.Symbols = []string{"AAA", "ERR"}
	cfg.Start = day0
	cfg.End = day0.AddDate(0, 3, 0)

	results, err := r.Scan(context.Background(), cfg)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(results) != 2 || results[0].Bars != 40 || len(results[1].Errors) == 0 {
		t.Fatalf("unexpected results: %#v", results)
	}
}

func TestWriteScanTable(t *testing.T) {
	results := []ScanResult{
		{Symbol: "HOLDME", Signal: SignalHold, LastDate: "2024-01-02"},
		{Symbol: "BUYME", Signal: SignalBuy, LastDate: "2024-01-02", Indicators: IndicatorSet{SMA20: some(1.5)}},
	}
	var buf bytes.Buffer
	if err := WriteScanTable(&buf, results, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	if strings.Index(out, "BUYME") > strings.Index(out, "HOLDME") {
		t.Fatalf("signalled rows should come first:\n%s", out)
	}
	if !strings.Contains(out, "1.50") {
		t.Fatalf("missing indicator value:\n%s", out)
	}

	buf.Reset()
	if err := WriteScanTable(&buf, results, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.Contains(buf.String(), "HOLDME") {
		t.Fatalf("hold rows should be filtered:\n%s", buf.String())
	}
}
