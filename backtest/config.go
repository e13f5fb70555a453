package backtest

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"autohedge/trading"
)

type YAMLConfig struct {
	Backtest struct {
		Start             string   `yaml:"start"`
		End               string   `yaml:"end"`
		InitialCapital    *float64 `yaml:"initial_capital"`
		StopLossPct       *float64 `yaml:"stop_loss_pct"`
		TakeProfitPct     *float64 `yaml:"take_profit_pct"`
		HoldingPeriodDays *int     `yaml:"holding_period_days"`
		AllocationPct     *float64 `yaml:"allocation_pct"`
		Concurrency       int      `yaml:"concurrency"`
		Symbols           []string `yaml:"symbols"`
	} `yaml:"backtest"`
}

type RunConfig struct {
	Start       time.Time
	End         time.Time
	Symbols     []string
	Params      Params
	Concurrency int
	// Independent gives every symbol the full Params instead of an equal
	// share of AllocationPct. The dashboard runs symbols this way.
	Independent bool
}

func DefaultRunConfig() RunConfig {
	return RunConfig{
		Params:      DefaultParams(),
		Concurrency: 1,
	}
}

// Validate fails fast on anything that would make the run meaningless.
func (c RunConfig) Validate() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("%w: no symbols configured", ErrInvalidParameters)
	}
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", ErrInvalidParameters)
	}
	if !c.End.After(c.Start) {
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidParameters,
			trading.FormatDate(c.End), trading.FormatDate(c.Start))
	}
	return c.Params.Validate()
}

func LoadRunConfig(path string) (RunConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return RunConfig{}, fmt.Errorf("read config: %w", err)
	}
	return ParseRunConfig(raw)
}

// ParseRunConfig applies YAML over DefaultRunConfig and validates the outcome.
// Only absent parameters take defaults; an explicit 0 is validated as given.
func ParseRunConfig(raw []byte) (RunConfig, error) {
	var yc YAMLConfig
	if err := yaml.Unmarshal(raw, &yc); err != nil {
		return RunConfig{}, fmt.Errorf("parse yaml: %w", err)
	}

	cfg := DefaultRunConfig()
	bt := yc.Backtest

	if bt.InitialCapital != nil {
		cfg.Params.InitialCapital = *bt.InitialCapital
	}
	if bt.StopLossPct != nil {
		cfg.Params.StopLossPct = *bt.StopLossPct
	}
	if bt.TakeProfitPct != nil {
		cfg.Params.TakeProfitPct = *bt.TakeProfitPct
	}
	if bt.HoldingPeriodDays != nil {
		cfg.Params.HoldingPeriodDays = *bt.HoldingPeriodDays
	}
	if bt.AllocationPct != nil {
		cfg.Params.AllocationPct = *bt.AllocationPct
	}
	if bt.Concurrency > 0 {
		cfg.Concurrency = bt.Concurrency
	}

	for _, s := range bt.Symbols {
		sym := strings.TrimSpace(s)
		if sym == "" {
			continue
		}
		cfg.Symbols = append(cfg.Symbols, sym)
	}

	if bt.Start != "" {
		t, err := trading.ParseDate(bt.Start)
		if err != nil {
			return RunConfig{}, fmt.Errorf("%w: backtest.start: %v", ErrInvalidParameters, err)
		}
		cfg.Start = t
	}
	if bt.End != "" {
		t, err := trading.ParseDate(bt.End)
		if err != nil {
			return RunConfig{}, fmt.Errorf("%w: backtest.end: %v", ErrInvalidParameters, err)
		}
		cfg.End = t
	}

	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}
