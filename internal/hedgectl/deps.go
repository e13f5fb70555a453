package hedgectl

import (
	"fmt"

	"autohedge/backtest"
	"autohedge/config"
	"autohedge/fetcher"
	"autohedge/store"
)

func newRunner(cfg *config.Config) (*backtest.Runner, func() error, error) {
	p, closeFn, err := fetcher.Build(cfg.FetchOptions())
	if err != nil {
		return nil, nil, fmt.Errorf("data providers: %w", err)
	}
	return backtest.NewRunner(p), closeFn, nil
}

func openStore(cfg *config.Config) (store.Store, error) {
	st, err := store.Open(cfg.Store, cfg.OutputDir, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store, err)
	}
	return st, nil
}
