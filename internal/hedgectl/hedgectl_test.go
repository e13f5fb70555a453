package hedgectl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"autohedge/backtest"
	"autohedge/config"
	"autohedge/store"
)

// testEnv writes a CSV price file and a run config into a temp dir and
// returns a config that reads prices from there.
func testEnv(t *testing.T, symbols ...string) (*config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	csvDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(csvDir, 0o755); err != nil {
		t.Fatal(err)
	}

	var b strings.Builder
	b.WriteString("Date,Open,High,Low,Close,Volume\n")
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 250; i++ {
		c := 100 + 10*math.Sin(2*math.Pi*float64(i)/40) + 0.05*float64(i)
		fmt.Fprintf(&b, "%s,%.4f,%.4f,%.4f,%.4f,1000\n", d.AddDate(0, 0, i).Format("2006-01-02"), c, c+1, c-1, c)
	}
	for _, s := range symbols {
		if err := os.WriteFile(filepath.Join(csvDir, s+".csv"), []byte(b.String()), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	btPath := filepath.Join(dir, "backtest.yaml")
	yml := fmt.Sprintf("backtest:\n  start: 2024-01-01\n  end: 2025-01-01\n  symbols: [%s]\n", strings.Join(symbols, ", "))
	if err := os.WriteFile(btPath, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.DefaultConfig
	cfg.Providers = []string{"csv"}
	cfg.CSVDir = csvDir
	cfg.OutputDir = filepath.Join(dir, "outputs")
	cfg.Store = "file"
	return &cfg, btPath
}

func TestRunBacktestWritesSavesAndCharts(t *testing.T) {
	cfg, btPath := testEnv(t, "AAA", "BBB")
	out := filepath.Join(filepath.Dir(btPath), "out", "report.json")
	charts := filepath.Join(filepath.Dir(btPath), "charts")

	err := runBacktest(context.Background(), cfg, backtestOptions{
		ConfigPath: btPath,
		OutPath:    out,
		JSON:       true,
		Save:       true,
		ChartDir:   charts,
	})
	if err != nil {
		t.Fatalf("runBacktest: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	reports, err := decodeReports(raw)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if len(reports) != 2 || reports[0].Symbol != "AAA" || reports[0].Bars != 250 {
		t.Fatalf("unexpected reports: %+v", reports)
	}
	if reports[0].Params.AllocationPct != 50 {
		t.Fatalf("allocation = %v, want equal split", reports[0].Params.AllocationPct)
	}

	st, err := store.NewFileStore(cfg.OutputDir)
	if err != nil {
		t.Fatal(err)
	}
	recs, err := st.List(context.Background())
	if err != nil || len(recs) != 2 {
		t.Fatalf("saved records = %d, %v", len(recs), err)
	}

	for _, rep := range reports {
		name := filepath.Join(charts, strings.TrimSuffix(store.Filename(rep.Symbol, rep.StartDate, rep.EndDate), ".json")+".svg")
		_, err := os.Stat(name)
		if rep.Result.TotalTrades > 0 && err != nil {
			t.Fatalf("missing chart for %s: %v", rep.Symbol, err)
		}
		if rep.Result.TotalTrades == 0 && err == nil {
			t.Fatalf("chart written for %s without trades", rep.Symbol)
		}
	}

	var buf bytes.Buffer
	if err := runHistory(context.Background(), cfg, &buf); err != nil {
		t.Fatalf("runHistory: %v", err)
	}
	if !strings.Contains(buf.String(), "AAA") || !strings.Contains(buf.String(), "BBB") {
		t.Fatalf("history missing symbols:\n%s", buf.String())
	}

	buf.Reset()
	if err := runReport(context.Background(), cfg, recs[0].ID, &buf); err != nil {
		t.Fatalf("runReport: %v", err)
	}
	if !strings.Contains(buf.String(), recs[0].Symbol) {
		t.Fatalf("report missing symbol:\n%s", buf.String())
	}
	if err := runReport(context.Background(), cfg, "nope", &buf); err == nil {
		t.Fatalf("expected not found")
	}
}

func TestRunBacktestIndependent(t *testing.T) {
	cfg, btPath := testEnv(t, "AAA", "BBB")
	out := filepath.Join(filepath.Dir(btPath), "report.json")
	if err := runBacktest(context.Background(), cfg, backtestOptions{ConfigPath: btPath, OutPath: out, JSON: true, Independent: true}); err != nil {
		t.Fatalf("runBacktest: %v", err)
	}
	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	reports, err := decodeReports(raw)
	if err != nil {
		t.Fatal(err)
	}
	for _, rep := range reports {
		if rep.Params.AllocationPct != 100 {
			t.Fatalf("%s allocation = %v", rep.Symbol, rep.Params.AllocationPct)
		}
	}
}

func TestRunBacktestBadConfig(t *testing.T) {
	cfg, _ := testEnv(t, "AAA")
	if err := runBacktest(context.Background(), cfg, backtestOptions{ConfigPath: "missing.yaml"}); err == nil {
		t.Fatalf("expected config error")
	}
}

func TestScan(t *testing.T) {
	cfg, btPath := testEnv(t, "AAA")
	results, window, err := scan(context.Background(), cfg, scanOptions{ConfigPath: btPath}, time.Now())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if window != "" {
		t.Fatalf("unexpected window %q", window)
	}
	if len(results) != 1 || results[0].Bars != 250 || results[0].LastDate != "2024-09-06" {
		t.Fatalf("unexpected results: %+v", results)
	}
}

func TestApplyScanDays(t *testing.T) {
	cfg := backtest.DefaultRunConfig()
	now := time.Date(2024, 6, 10, 15, 30, 0, 0, time.UTC)

	if got := applyScanDays(&cfg, 0, now); got != "" || !cfg.Start.IsZero() {
		t.Fatalf("zero days should not change config")
	}

	window := applyScanDays(&cfg, 30, now)
	if cfg.Start.Format("2006-01-02") != "2024-05-11" || cfg.End.Format("2006-01-02") != "2024-06-11" {
		t.Fatalf("window = %s..%s", cfg.Start, cfg.End)
	}
	if !strings.Contains(window, "2024-05-11 ~ 2024-06-10") {
		t.Fatalf("window text = %q", window)
	}
}

func TestOnlySignals(t *testing.T) {
	in := []backtest.ScanResult{
		{Symbol: "A", Signal: backtest.SignalHold},
		{Symbol: "B", Signal: backtest.SignalBuy},
		{Symbol: "C", Signal: backtest.SignalHold, Errors: []string{"no data"}},
		{Symbol: "D", Signal: backtest.SignalSell},
	}
	out := onlySignals(in)
	var got []string
	for _, r := range out {
		got = append(got, r.Symbol)
	}
	if strings.Join(got, ",") != "B,C,D" {
		t.Fatalf("got %v", got)
	}
}

func TestDecodeReports(t *testing.T) {
	rec := store.NewRecord(backtest.Report{Symbol: "AAA", StartDate: "2024-01-01", EndDate: "2024-02-01", Params: backtest.DefaultParams()}, time.Now())
	raw, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	reports, err := decodeReports(raw)
	if err != nil || len(reports) != 1 || reports[0].Symbol != "AAA" {
		t.Fatalf("record decode = %+v, %v", reports, err)
	}

	for _, bad := range []string{`[]`, `{}`, `nope`} {
		if _, err := decodeReports([]byte(bad)); err == nil {
			t.Fatalf("expected error for %s", bad)
		}
	}
}

func TestRunModesAreExclusive(t *testing.T) {
	if code := Run([]string{"-backtest", "-scan"}); code != 2 {
		t.Fatalf("exit code = %d", code)
	}
	if code := Run(nil); code != 2 {
		t.Fatalf("exit code without mode = %d", code)
	}
}
