package hedgectl

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autohedge/config"
)

// Run is the batch entrypoint: one mode per invocation, then exit.
func Run(args []string) int {
	fs := flag.NewFlagSet("hedgectl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		configPath string

		backtestMode   bool
		backtestConfig string
		backtestOut    string
		backtestJSON   bool
		backtestSave   bool
		backtestChart  string
		independent    bool

		scanMode       bool
		scanOut        string
		scanJSON       bool
		scanOnlySignal bool
		scanDays       int

		historyMode bool
		reportID    string

		llmAnalyze  string
		llmScan     bool
		llmURL      string
		llmModel    string
		llmOut      string
		llmTimeout  time.Duration
		verboseRuns bool
	)

	fs.StringVar(&configPath, "config", "", "service config (YAML); defaults to ./config.yaml when present")

	fs.BoolVar(&backtestMode, "backtest", false, "run the backtest described by -bt-config and exit")
	fs.StringVar(&backtestConfig, "bt-config", "backtest.yaml", "backtest/scan config (YAML)")
	fs.StringVar(&backtestOut, "bt-out", "", "backtest output path (default stdout)")
	fs.BoolVar(&backtestJSON, "bt-json", false, "write backtest results as JSON instead of the text report")
	fs.BoolVar(&backtestSave, "bt-save", false, "save each symbol's result to the history store")
	fs.StringVar(&backtestChart, "bt-chart", "", "write one equity-curve SVG per symbol into this directory")
	fs.BoolVar(&independent, "bt-independent", false, "give every symbol the full allocation instead of an equal share")
	fs.BoolVar(&verboseRuns, "v", false, "log every simulated entry and exit")

	fs.BoolVar(&scanMode, "scan", false, "report the signal of the latest daily bar for each symbol and exit")
	fs.StringVar(&scanOut, "scan-out", "", "scan output path (default stdout)")
	fs.BoolVar(&scanJSON, "scan-json", false, "scan output as JSON (default table)")
	fs.BoolVar(&scanOnlySignal, "scan-only-signal", false, "only list symbols with a BUY/SELL signal (errors are still listed)")
	fs.IntVar(&scanDays, "scan-days", 0, "override the scan window with the last N calendar days ending today")

	fs.BoolVar(&historyMode, "history", false, "list saved backtests, newest first")
	fs.StringVar(&reportID, "report", "", "print the text report of a saved backtest (id or filename)")

	fs.StringVar(&llmAnalyze, "llm-analyze", "", "review backtest results with a local Ollama model (saved id, filename or JSON path)")
	fs.BoolVar(&llmScan, "llm-scan", false, "turn the latest signal scan into a Markdown checklist with a local Ollama model")
	fs.StringVar(&llmURL, "llm-url", "", "Ollama base URL (default from config)")
	fs.StringVar(&llmModel, "llm-model", "", "Ollama model (default from config)")
	fs.StringVar(&llmOut, "llm-out", "", "LLM output path (default stdout)")
	fs.DurationVar(&llmTimeout, "llm-timeout", 10*time.Minute, "Ollama request timeout")

	if err := fs.Parse(args); err != nil {
		return 2
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	modes := 0
	for _, on := range []bool{backtestMode, scanMode, historyMode, reportID != "", llmAnalyze != "", llmScan} {
		if on {
			modes++
		}
	}
	if modes > 1 {
		log.Printf("[ERROR] -backtest, -scan, -history, -report, -llm-analyze and -llm-scan are mutually exclusive\n")
		return 2
	}
	if modes == 0 {
		usage()
		return 2
	}

	if configPath == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			configPath = "config.yaml"
		}
	}
	cfg := config.GetConfig(configPath)
	if llmURL == "" {
		llmURL = cfg.LLMURL
	}
	if llmModel == "" {
		llmModel = cfg.LLMModel
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case backtestMode:
		err = runBacktest(ctx, cfg, backtestOptions{
			ConfigPath:  backtestConfig,
			OutPath:     backtestOut,
			JSON:        backtestJSON,
			Save:        backtestSave,
			ChartDir:    backtestChart,
			Independent: independent,
			Verbose:     verboseRuns,
		})
	case scanMode:
		err = runScan(ctx, cfg, scanOptions{
			ConfigPath: backtestConfig,
			OutPath:    scanOut,
			JSON:       scanJSON,
			OnlySignal: scanOnlySignal,
			Days:       scanDays,
		})
	case historyMode:
		err = runHistory(ctx, cfg, os.Stdout)
	case reportID != "":
		err = runReport(ctx, cfg, reportID, os.Stdout)
	case llmAnalyze != "":
		err = runLLMAnalyze(ctx, cfg, llmAnalyze, llmURL, llmModel, llmOut, llmTimeout)
	case llmScan:
		err = runLLMScan(ctx, cfg, scanOptions{
			ConfigPath: backtestConfig,
			OnlySignal: scanOnlySignal,
			Days:       scanDays,
		}, llmURL, llmModel, llmOut, llmTimeout)
	}
	if err != nil {
		log.Printf("[ERROR] %v\n", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage:")
	fmt.Fprintln(os.Stderr, "  autohedge -backtest -bt-config backtest.yaml [-bt-out report.json -bt-json] [-bt-save] [-bt-chart charts/]")
	fmt.Fprintln(os.Stderr, "  autohedge -scan -bt-config backtest.yaml [-scan-days 400] [-scan-only-signal] [-scan-json]")
	fmt.Fprintln(os.Stderr, "  autohedge -history | -report <id>")
	fmt.Fprintln(os.Stderr, "  autohedge -llm-analyze <id|report.json> | -llm-scan -bt-config backtest.yaml")
	fmt.Fprintln(os.Stderr, "  autohedge [-config config.yaml] [-port 8000]   (dashboard service)")
}
