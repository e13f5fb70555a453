package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"autohedge/backtest"
	"autohedge/fetcher"
	"autohedge/metrics"
	"autohedge/store"
)

type fakeProvider struct{}

func (fakeProvider) Name() string { return "fake" }

func (fakeProvider) GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]fetcher.KLine, error) {
	switch symbol {
	case "ERR":
		return nil, fmt.Errorf("upstream down")
	case "EMPTY":
		return nil, nil
	}
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]fetcher.KLine, 0, 250)
	for i := 0; i < 250; i++ {
		c := 100 + 10*math.Sin(2*math.Pi*float64(i)/40)
		out = append(out, fetcher.KLine{
			Date:   d.AddDate(0, 0, i).Format("2006-01-02"),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1000,
		})
	}
	return out, nil
}

type testEnv struct {
	srv   *Server
	store *store.FileStore
}

func newTestEnv(t *testing.T, rateLimit float64) testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	srv := NewServer(backtest.NewRunner(fakeProvider{}), st, metrics.New(), Options{Port: 0, RateLimit: rateLimit})
	return testEnv{srv: srv, store: st}
}

func do(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("bad json from %s: %v\n%s", path, err, rec.Body.String())
		}
	}
	return rec, out
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 0)
	rec, body := do(t, env.srv.Handler(), "GET", "/health", "")
	if rec.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("unexpected health: %d %v", rec.Code, body)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestRunBacktestAndHistory(t *testing.T) {
	env := newTestEnv(t, 0)
	h := env.srv.Handler()

	rec, body := do(t, h, "POST", "/api/backtest",
		`{"stocks":["AAPL","EMPTY","ERR"],"start_date":"2024-01-01","end_date":"2024-12-31","capital":10000}`)
	if rec.Code != http.StatusOK || body["status"] != "success" {
		t.Fatalf("unexpected response %d: %s", rec.Code, rec.Body.String())
	}
	data := body["data"].(map[string]any)
	aapl := data["AAPL"].(map[string]any)
	if aapl["initial_capital"] != 10000.0 {
		t.Fatalf("unexpected AAPL result: %v", aapl)
	}
	empty := data["EMPTY"].(map[string]any)
	if empty["total_trades"] != 0.0 || empty["final_capital"] != 10000.0 {
		t.Fatalf("empty series should yield an empty result: %v", empty)
	}
	if _, ok := body["errors"].(map[string]any)["ERR"]; !ok {
		t.Fatalf("expected ERR in errors: %v", body["errors"])
	}

	rec, body = do(t, h, "GET", "/api/history", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history: %d", rec.Code)
	}
	items := body["data"].([]any)
	if len(items) != 2 {
		t.Fatalf("expected AAPL and EMPTY saved, got %d", len(items))
	}
	first := items[0].(map[string]any)
	if !strings.HasPrefix(first["filename"].(string), "backtest_") {
		t.Fatalf("missing filename: %v", first)
	}

	id := body["data"].([]any)[0].(map[string]any)["id"].(string)
	rec, body = do(t, h, "GET", "/api/history/"+id, "")
	if rec.Code != http.StatusOK || body["data"].(map[string]any)["id"] != id {
		t.Fatalf("get by id: %d %v", rec.Code, body)
	}

	rec, _ = do(t, h, "GET", "/api/history/backtest_AAPL_2024-01-01_to_2024-12-31.json/report", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "BACKTEST REPORT  AAPL") {
		t.Fatalf("report: %d %s", rec.Code, rec.Body.String())
	}

	rec, _ = do(t, h, "GET", "/api/history/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRunBacktestValidation(t *testing.T) {
	env := newTestEnv(t, 0)
	tests := map[string]string{
		"bad json":      `{"stocks":`,
		"no stocks":     `{"stocks":[],"start_date":"2024-01-01","end_date":"2024-12-31"}`,
		"bad date":      `{"stocks":["AAPL"],"start_date":"01/01/2024","end_date":"2024-12-31"}`,
		"inverted":      `{"stocks":["AAPL"],"start_date":"2024-12-31","end_date":"2024-01-01"}`,
		"zero capital":  `{"stocks":["AAPL"],"start_date":"2024-01-01","end_date":"2024-12-31","capital":0}`,
		"zero holding":  `{"stocks":["AAPL"],"start_date":"2024-01-01","end_date":"2024-12-31","holding_period":0}`,
		"negative stop": `{"stocks":["AAPL"],"start_date":"2024-01-01","end_date":"2024-12-31","stop_loss":-1}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec, out := do(t, env.srv.Handler(), "POST", "/api/backtest", body)
			if rec.Code != http.StatusBadRequest || out["status"] != "error" {
				t.Fatalf("expected 400 error, got %d %v", rec.Code, out)
			}
		})
	}
}

func TestGetSignals(t *testing.T) {
	env := newTestEnv(t, 0)
	rec, body := do(t, env.srv.Handler(), "GET", "/api/signals?symbols=AAPL,EMPTY", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("signals: %d %s", rec.Code, rec.Body.String())
	}
	if len(body["data"].([]any)) != 2 {
		t.Fatalf("expected 2 scan results: %v", body)
	}

	rec, _ = do(t, env.srv.Handler(), "GET", "/api/signals", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without symbols, got %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t, 0)
	h := env.srv.Handler()
	do(t, h, "POST", "/api/backtest", `{"stocks":["AAPL"],"start_date":"2024-01-01","end_date":"2024-12-31"}`)

	rec, _ := do(t, h, "GET", "/metrics", "")
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `autohedge_backtest_runs_total{status="ok"} 1`) {
		t.Fatalf("run not counted:\n%s", body)
	}
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, 1)
	h := env.srv.Handler()
	got429 := false
	for i := 0; i < 10; i++ {
		rec, _ := do(t, h, "GET", "/health", "")
		if rec.Code == http.StatusTooManyRequests {
			got429 = true
			break
		}
	}
	if !got429 {
		t.Fatalf("expected rate limiting to kick in")
	}
}

func TestIPLimiterSweepsIdleBuckets(t *testing.T) {
	l := newIPLimiter(1, 1)
	now := time.Now()
	l.allow("1.1.1.1", now)
	l.allow("2.2.2.2", now.Add(10*time.Minute))
	if _, ok := l.buckets["1.1.1.1"]; ok {
		t.Fatalf("idle bucket not swept")
	}
}

func TestStreamReceivesCompletedRuns(t *testing.T) {
	env := newTestEnv(t, 0)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/stream", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.srv.hub.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	resp, err := http.Post(ts.URL+"/api/backtest", "application/json",
		strings.NewReader(`{"stocks":["AAPL"],"start_date":"2024-01-01","end_date":"2024-12-31"}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != "backtest_completed" || ev.Symbol != "AAPL" || ev.ID == "" {
		t.Fatalf("unexpected event: %#v", ev)
	}
}
