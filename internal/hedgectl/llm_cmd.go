package hedgectl

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"autohedge/backtest"
	"autohedge/config"
	"autohedge/llm"
	"autohedge/store"
)

func runLLMAnalyze(ctx context.Context, cfg *config.Config, target, baseURL, model, outPath string, timeout time.Duration) error {
	reports, err := loadReports(ctx, cfg, target)
	if err != nil {
		return err
	}
	sumJSON, err := llm.SummarizeReports(reports).MarshalIndented()
	if err != nil {
		return err
	}

	client := llm.NewOllamaClientWithTimeout(baseURL, model, timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout+30*time.Second)
	defer cancel()

	out, err := client.Review(ctx, llm.SystemBacktestReview(), llm.ReviewPrompt(sumJSON))
	if err != nil {
		return err
	}
	return writeText(outPath, out)
}

func runLLMScan(ctx context.Context, cfg *config.Config, opt scanOptions, baseURL, model, outPath string, timeout time.Duration) error {
	results, window, err := scan(ctx, cfg, opt, time.Now())
	if err != nil {
		return err
	}
	sumJSON, err := llm.SummarizeScan(results).MarshalIndented()
	if err != nil {
		return err
	}

	client := llm.NewOllamaClientWithTimeout(baseURL, model, timeout)
	ctx, cancel := context.WithTimeout(ctx, timeout+30*time.Second)
	defer cancel()

	prompt := llm.SignalPrompt(sumJSON)
	if window != "" {
		prompt = window + "\n\n" + prompt
	}
	out, err := client.Review(ctx, llm.SystemSignalAdvice(), prompt)
	if err != nil {
		return err
	}
	return writeText(outPath, out)
}

// loadReports resolves target as a JSON file first (a -bt-json array or one
// saved record), then as a saved id or filename in the history store.
func loadReports(ctx context.Context, cfg *config.Config, target string) ([]backtest.Report, error) {
	raw, err := os.ReadFile(target)
	if err == nil {
		return decodeReports(raw)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	rec, err := st.Get(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", target, err)
	}
	return []backtest.Report{rec.Report()}, nil
}

func decodeReports(raw []byte) ([]backtest.Report, error) {
	var reports []backtest.Report
	if err := json.Unmarshal(raw, &reports); err == nil {
		if len(reports) == 0 {
			return nil, fmt.Errorf("no reports in file")
		}
		return reports, nil
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("parse report json: %w", err)
	}
	if rec.Symbol == "" {
		return nil, fmt.Errorf("parse report json: missing symbol")
	}
	return []backtest.Report{rec.Report()}, nil
}

func writeText(outPath, text string) error {
	w, closeOut, err := openOutput(outPath)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, text+"\n")
	if cerr := closeOut(); err == nil {
		err = cerr
	}
	return err
}
