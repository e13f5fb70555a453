package backtest

import (
	"bytes"
	"fmt"
	"html"
	"math"
	"strconv"
	"strings"

	"autohedge/trading"
)

type SVGChartOptions struct {
	Width  int
	Height int
}

func (o SVGChartOptions) withDefaults() SVGChartOptions {
	if o.Width <= 0 {
		o.Width = 980
	}
	if o.Height <= 0 {
		o.Height = 420
	}
	return o
}

// RenderEquitySVG draws realised capital after each closed trade, starting
// from initial capital. Exit markers are green for winners and red otherwise;
// the dashed line marks initial capital.
func RenderEquitySVG(symbol string, res Result, opt SVGChartOptions) ([]byte, error) {
	opt = opt.withDefaults()
	if len(res.Trades) == 0 {
		return nil, fmt.Errorf("no trades to chart")
	}

	equity := make([]float64, 0, len(res.Trades)+1)
	labels := make([]string, 0, len(res.Trades)+1)
	equity = append(equity, res.InitialCapital)
	labels = append(labels, trading.FormatDate(res.Trades[0].EntryDate))
	capital := res.InitialCapital
	for _, t := range res.Trades {
		capital += t.PnL
		equity = append(equity, capital)
		labels = append(labels, trading.FormatDate(t.ExitDate))
	}

	minV, maxV := math.Inf(1), math.Inf(-1)
	for _, v := range equity {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	if maxV <= minV {
		pad := math.Max(math.Abs(minV)*0.02, 1)
		minV -= pad
		maxV += pad
	} else {
		pad := (maxV - minV) * 0.05
		minV -= pad
		maxV += pad
	}

	// Layout
	w := float64(opt.Width)
	h := float64(opt.Height)
	mLeft := 90.0
	mRight := 20.0
	mTop := 24.0
	mBottom := 40.0
	plotW := w - mLeft - mRight
	plotH := h - mTop - mBottom
	if plotW <= 10 || plotH <= 10 {
		return nil, fmt.Errorf("invalid chart size")
	}

	valueToY := func(v float64) float64 {
		r := (v - minV) / (maxV - minV)
		r = math.Max(0, math.Min(1, r))
		return mTop + (1.0-r)*plotH
	}
	step := plotW / float64(len(equity))
	xAt := func(i int) float64 {
		return mLeft + (float64(i)+0.5)*step
	}

	bg := "#0b1220"
	grid := "rgba(255,255,255,0.08)"
	up := "#22c55e"
	down := "#ef4444"
	line := "#38bdf8"
	txt := "rgba(255,255,255,0.85)"
	font := `font-family="ui-monospace, Menlo, Monaco, Consolas, monospace"`

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	buf.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" width="` + strconv.Itoa(opt.Width) + `" height="` + strconv.Itoa(opt.Height) + `" viewBox="0 0 ` + strconv.Itoa(opt.Width) + ` ` + strconv.Itoa(opt.Height) + `">` + "\n")
	buf.WriteString(`<rect x="0" y="0" width="100%" height="100%" fill="` + bg + `"/>` + "\n")

	title := strings.TrimSpace(symbol)
	if title == "" {
		title = "UNKNOWN"
	}
	buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="16" fill="` + txt + `" font-size="14" ` + font + `>` +
		html.EscapeString(title) + `  equity  ` + html.EscapeString(fmtMoney(res.InitialCapital)) + ` -&gt; ` + html.EscapeString(fmtMoney(res.FinalCapital)) +
		`  (` + strconv.Itoa(res.TotalTrades) + ` trades)</text>` + "\n")

	// Grid: value lines (5)
	for k := 0; k <= 5; k++ {
		y := mTop + (float64(k)/5.0)*plotH
		buf.WriteString(`<line x1="` + fmtFloat(mLeft) + `" y1="` + fmtFloat(y) + `" x2="` + fmtFloat(mLeft+plotW) + `" y2="` + fmtFloat(y) + `" stroke="` + grid + `" stroke-width="1"/>` + "\n")
		v := maxV - (float64(k)/5.0)*(maxV-minV)
		buf.WriteString(`<text x="6" y="` + fmtFloat(y+4) + `" fill="` + txt + `" font-size="12" ` + font + `>` +
			html.EscapeString(fmtMoney(v)) + `</text>` + "\n")
	}

	// Initial capital baseline
	yBase := valueToY(res.InitialCapital)
	buf.WriteString(`<line x1="` + fmtFloat(mLeft) + `" y1="` + fmtFloat(yBase) + `" x2="` + fmtFloat(mLeft+plotW) + `" y2="` + fmtFloat(yBase) + `" stroke="rgba(255,255,255,0.65)" stroke-width="1.2" stroke-dasharray="6 6"/>` + "\n")

	// Equity polyline
	pts := make([]string, len(equity))
	for i, v := range equity {
		pts[i] = fmtFloat(xAt(i)) + "," + fmtFloat(valueToY(v))
	}
	buf.WriteString(`<polyline fill="none" stroke="` + line + `" stroke-width="1.6" points="` + strings.Join(pts, " ") + `"/>` + "\n")

	// Exit markers
	for i, t := range res.Trades {
		col := down
		if t.IsWinner {
			col = up
		}
		buf.WriteString(`<circle cx="` + fmtFloat(xAt(i+1)) + `" cy="` + fmtFloat(valueToY(equity[i+1])) + `" r="3.5" fill="` + col + `"><title>` +
			html.EscapeString(labels[i+1]+" "+string(t.ExitReason)+" "+fmtMoney(t.PnL)) + `</title></circle>` + "\n")
	}

	// Footer dates
	buf.WriteString(`<text x="` + fmtFloat(mLeft) + `" y="` + fmtFloat(mTop+plotH+mBottom-12) + `" fill="` + txt + `" font-size="12" ` + font + `>` +
		html.EscapeString(labels[0]) + `</text>` + "\n")
	buf.WriteString(`<text x="` + fmtFloat(mLeft+plotW-70) + `" y="` + fmtFloat(mTop+plotH+mBottom-12) + `" fill="` + txt + `" font-size="12" ` + font + `>` +
		html.EscapeString(labels[len(labels)-1]) + `</text>` + "\n")

	buf.WriteString(`</svg>` + "\n")
	return buf.Bytes(), nil
}

func fmtFloat(x float64) string {
	// stable compact formatting for SVG attributes
	return strconv.FormatFloat(x, 'f', 2, 64)
}

func fmtMoney(v float64) string {
	if math.Abs(v) >= 1000 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}
