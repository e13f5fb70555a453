package terminalui

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"autohedge/backtest"
	"autohedge/store"
)

const width = 80

// Options controls terminal-only decoration.
type Options struct {
	// Color wraps P&L figures in ANSI colours. Leave off when writing files.
	Color bool
}

var printer = message.NewPrinter(language.English)

// money formats x as $1,234.56 (or -$1,234.56).
func money(x float64) string {
	if x < 0 {
		return printer.Sprintf("-$%.2f", -x)
	}
	return printer.Sprintf("$%.2f", x)
}

func ratio(r backtest.Ratio) string {
	if r.IsInf() {
		return "inf"
	}
	return fmt.Sprintf("%.2f", float64(r))
}

// RenderReport writes the human-readable form of one symbol's backtest.
func RenderReport(w io.Writer, rep backtest.Report, opt Options) error {
	bw := &errWriter{w: w}
	res := rep.Result
	p := rep.Params

	bw.line(strings.Repeat("=", width))
	bw.linef("BACKTEST REPORT  %s  %s to %s", rep.Symbol, rep.StartDate, rep.EndDate)
	bw.line(strings.Repeat("=", width))
	bw.linef("   Stop Loss: %.2f%%  Take Profit: %.2f%%  Holding: %d days  Allocation: %.2f%%",
		p.StopLossPct, p.TakeProfitPct, p.HoldingPeriodDays, p.AllocationPct)
	for _, e := range rep.Errors {
		bw.linef("   error: %s", e)
	}

	bw.line("")
	bw.line("CAPITAL:")
	bw.linef("   Initial Capital:  %s", money(res.InitialCapital))
	bw.linef("   Final Capital:    %s", money(res.FinalCapital))
	bw.linef("   Total P&L:        %s", opt.paint(res.TotalPnL, money(res.TotalPnL)))
	bw.linef("   Total Return:     %.2f%%", res.TotalReturnPct)

	bw.line("")
	bw.line("TRADE STATISTICS:")
	bw.linef("   Total Trades:     %d", res.TotalTrades)
	bw.linef("   Winning Trades:   %d", res.WinningTrades)
	bw.linef("   Losing Trades:    %d", res.LosingTrades)
	bw.linef("   Win Rate:         %.2f%%", res.WinRate)

	bw.line("")
	bw.line("P&L BREAKDOWN:")
	bw.linef("   Average P&L:      %s", money(res.AvgPnL))
	bw.linef("   Average Win:      %s", money(res.AvgWin))
	bw.linef("   Average Loss:     %s", money(res.AvgLoss))
	bw.linef("   Largest Win:      %s", money(res.MaxWin))
	bw.linef("   Largest Loss:     %s", money(res.MaxLoss))

	bw.line("")
	bw.line("RISK METRICS:")
	bw.linef("   Sharpe Ratio:     %.2f", res.SharpeRatio)
	bw.linef("   Max Drawdown:     %.2f%%", res.MaxDrawdown)
	bw.linef("   Profit Factor:    %s", ratio(res.ProfitFactor))

	bw.line("")
	bw.line("TRADE LOG:")
	bw.line(strings.Repeat("-", width))
	bw.linef("%-4s %-10s %-10s %10s %10s %12s %8s  %s", "#", "Entry", "Exit", "Entry $", "Exit $", "P&L", "Return", "Reason")
	bw.line(strings.Repeat("-", width))
	for i, t := range res.Trades {
		pnl := fmt.Sprintf("%12s", money(t.PnL))
		bw.linef("%-4d %-10s %-10s %10.2f %10.2f %s %7.2f%%  %s",
			i+1, t.EntryDate.Format("2006-01-02"), t.ExitDate.Format("2006-01-02"),
			t.EntryPrice, t.ExitPrice, opt.paint(t.PnL, pnl), t.PnLPct, reasonLabel(t.ExitReason))
	}
	if len(res.Trades) == 0 {
		bw.line("   (no trades)")
	}
	bw.line(strings.Repeat("=", width))
	return bw.err
}

// RenderReports writes each report followed by a one-line-per-symbol summary.
func RenderReports(w io.Writer, reports []backtest.Report, opt Options) error {
	for _, rep := range reports {
		if err := RenderReport(w, rep, opt); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	if len(reports) < 2 {
		return nil
	}
	bw := &errWriter{w: w}
	bw.line("SUMMARY:")
	bw.linef("%-12s %8s %14s %10s %8s", "Symbol", "Trades", "P&L", "Return", "WinRate")
	for _, rep := range reports {
		r := rep.Result
		bw.linef("%-12s %8d %14s %9.2f%% %7.2f%%", rep.Symbol, r.TotalTrades, money(r.TotalPnL), r.TotalReturnPct, r.WinRate)
	}
	return bw.err
}

// RenderHistory lists saved runs, newest first as the store returns them.
func RenderHistory(w io.Writer, recs []store.Record) error {
	bw := &errWriter{w: w}
	if len(recs) == 0 {
		bw.line("no saved backtests")
		return bw.err
	}
	bw.linef("%-36s  %-10s  %-23s  %6s  %14s  %s", "ID", "Symbol", "Period", "Trades", "P&L", "Saved")
	for _, r := range recs {
		bw.linef("%-36s  %-10s  %-23s  %6d  %14s  %s",
			r.ID, truncate(r.Symbol, 10), r.StartDate+".."+r.EndDate,
			r.Result.TotalTrades, money(r.Result.TotalPnL), r.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return bw.err
}

func reasonLabel(r backtest.ExitReason) string {
	switch r {
	case backtest.ExitStopLoss:
		return "stop loss"
	case backtest.ExitTakeProfit:
		return "take profit"
	case backtest.ExitHoldingPeriod:
		return "holding period"
	case backtest.ExitEndOfData:
		return "end of data"
	}
	return string(r)
}

func (o Options) paint(change float64, s string) string {
	if !o.Color {
		return s
	}
	return colorByChange(change) + s + "\033[0m"
}

func colorByChange(change float64) string {
	if change > 0 {
		return "\033[32m"
	}
	if change < 0 {
		return "\033[31m"
	}
	return "\033[37m"
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen])
	}
	return s
}

type errWriter struct {
	w   io.Writer
	err error
}

func (e *errWriter) line(s string) {
	if e.err != nil {
		return
	}
	_, e.err = fmt.Fprintln(e.w, s)
}

func (e *errWriter) linef(format string, args ...any) {
	e.line(fmt.Sprintf(format, args...))
}
