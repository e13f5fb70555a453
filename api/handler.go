package api

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"autohedge/backtest"
	"autohedge/internal/terminalui"
	"autohedge/metrics"
	"autohedge/store"
	"autohedge/trading"
)

const maxSymbolsPerRequest = 20

type Handler struct {
	runner  *backtest.Runner
	store   store.Store
	metrics *metrics.Metrics
	hub     *Hub
	now     func() time.Time
}

func NewHandler(r *backtest.Runner, st store.Store, m *metrics.Metrics, hub *Hub) *Handler {
	return &Handler{runner: r, store: st, metrics: m, hub: hub, now: time.Now}
}

// BacktestRequest is the dashboard form. Omitted numeric fields take the
// engine defaults.
type BacktestRequest struct {
	Stocks        []string `json:"stocks"`
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	Capital       *float64 `json:"capital"`
	StopLoss      *float64 `json:"stop_loss"`
	TakeProfit    *float64 `json:"take_profit"`
	HoldingPeriod *int     `json:"holding_period"`
}

func (req BacktestRequest) runConfig() (backtest.RunConfig, error) {
	cfg := backtest.DefaultRunConfig()
	cfg.Independent = true
	cfg.Concurrency = 4

	seen := map[string]bool{}
	for _, s := range req.Stocks {
		sym := strings.TrimSpace(s)
		if sym == "" || seen[sym] {
			continue
		}
		seen[sym] = true
		cfg.Symbols = append(cfg.Symbols, sym)
	}
	if len(cfg.Symbols) > maxSymbolsPerRequest {
		return cfg, errors.New("too many stocks in one request")
	}

	var err error
	if cfg.Start, err = trading.ParseDate(req.StartDate); err != nil {
		return cfg, errors.New("start_date: " + err.Error())
	}
	if cfg.End, err = trading.ParseDate(req.EndDate); err != nil {
		return cfg, errors.New("end_date: " + err.Error())
	}
	if req.Capital != nil {
		cfg.Params.InitialCapital = *req.Capital
	}
	if req.StopLoss != nil {
		cfg.Params.StopLossPct = *req.StopLoss
	}
	if req.TakeProfit != nil {
		cfg.Params.TakeProfitPct = *req.TakeProfit
	}
	if req.HoldingPeriod != nil {
		cfg.Params.HoldingPeriodDays = *req.HoldingPeriod
	}
	return cfg, cfg.Validate()
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"status": "error", "message": msg})
}

// RunBacktest runs every requested stock with the full parameters, saves
// each result and answers {"status":"success","data":{SYM: result}}.
func (h *Handler) RunBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	cfg, err := req.runConfig()
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	start := time.Now()
	reports, err := h.runner.Run(c.Request.Context(), cfg)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, backtest.ErrInvalidParameters) {
			status = http.StatusBadRequest
		}
		fail(c, status, err.Error())
		return
	}
	h.metrics.ObserveReports(reports, time.Since(start))

	data := make(map[string]backtest.Result, len(reports))
	ids := make(map[string]string, len(reports))
	errs := map[string][]string{}
	for _, rep := range reports {
		data[rep.Symbol] = rep.Result
		ev := Event{
			Type:           "backtest_completed",
			Symbol:         rep.Symbol,
			StartDate:      rep.StartDate,
			EndDate:        rep.EndDate,
			TotalTrades:    rep.Result.TotalTrades,
			TotalPnL:       rep.Result.TotalPnL,
			TotalReturnPct: rep.Result.TotalReturnPct,
		}
		if len(rep.Errors) > 0 {
			errs[rep.Symbol] = rep.Errors
			ev.Error = strings.Join(rep.Errors, "; ")
		} else if h.store != nil {
			rec := store.NewRecord(rep, h.now())
			if err := h.store.Save(c.Request.Context(), rec); err != nil {
				log.Printf("[API] save %s: %v\n", rep.Symbol, err)
				errs[rep.Symbol] = append(errs[rep.Symbol], "save failed: "+err.Error())
			} else {
				ids[rep.Symbol] = rec.ID
				ev.ID = rec.ID
			}
		}
		if h.hub != nil {
			h.hub.Broadcast(ev)
		}
	}

	resp := gin.H{"status": "success", "data": data, "ids": ids}
	if len(errs) > 0 {
		resp["errors"] = errs
	}
	c.JSON(http.StatusOK, resp)
}

// GetSignals evaluates the latest bar of each ?symbols= entry over the last
// ?days= calendar days (default 400, enough for SMA-200).
func (h *Handler) GetSignals(c *gin.Context) {
	var symbols []string
	for _, s := range strings.Split(c.Query("symbols"), ",") {
		if s = strings.TrimSpace(s); s != "" {
			symbols = append(symbols, s)
		}
	}
	if len(symbols) == 0 || len(symbols) > maxSymbolsPerRequest {
		fail(c, http.StatusBadRequest, "symbols must list 1 to 20 comma-separated codes")
		return
	}
	days := 400
	if v := c.Query("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 || n > 3650 {
			fail(c, http.StatusBadRequest, "days must be between 2 and 3650")
			return
		}
		days = n
	}

	cfg := backtest.DefaultRunConfig()
	cfg.Symbols = symbols
	cfg.End = trading.Day(h.now()).AddDate(0, 0, 1)
	cfg.Start = cfg.End.AddDate(0, 0, -days)

	results, err := h.runner.Scan(c.Request.Context(), cfg)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": results})
}

func (h *Handler) GetHistory(c *gin.Context) {
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "success", "data": []store.Record{}})
		return
	}
	recs, err := h.store.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": recs})
}

func (h *Handler) record(c *gin.Context) (store.Record, bool) {
	if h.store == nil {
		fail(c, http.StatusNotFound, "history is disabled")
		return store.Record{}, false
	}
	rec, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, "backtest not found")
		return store.Record{}, false
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return store.Record{}, false
	}
	return rec, true
}

func (h *Handler) GetHistoryItem(c *gin.Context) {
	rec, ok := h.record(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "data": rec})
}

func (h *Handler) GetHistoryReport(c *gin.Context) {
	rec, ok := h.record(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := terminalui.RenderReport(&buf, rec.Report(), terminalui.Options{}); err != nil {
		fail(c, http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/plain; charset=utf-8", buf.Bytes())
}

func (h *Handler) GetHistoryChart(c *gin.Context) {
	rec, ok := h.record(c)
	if !ok {
		return
	}
	svg, err := backtest.RenderEquitySVG(rec.Symbol, rec.Result, backtest.SVGChartOptions{})
	if err != nil {
		fail(c, http.StatusUnprocessableEntity, err.Error())
		return
	}
	c.Data(http.StatusOK, "image/svg+xml", svg)
}
