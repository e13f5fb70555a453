package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// KLine is one daily bar as delivered by a data source.
type KLine struct {
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	Close  float64 `json:"close"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Volume int64   `json:"volume"`
}

// Provider supplies daily history for one symbol over [start, end).
// An empty slice with a nil error means the source has no data.
type Provider interface {
	Name() string
	GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]KLine, error)
}

// Fallback asks each provider in order and returns the first non-empty
// history. If every provider fails the errors are joined; if at least one
// answered with no data, the result is empty without error.
type Fallback struct {
	Providers []Provider
}

func NewFallback(providers ...Provider) *Fallback {
	return &Fallback{Providers: providers}
}

func (f *Fallback) Name() string { return "fallback" }

func (f *Fallback) GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]KLine, error) {
	if len(f.Providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	var errs []error
	answered := false
	for _, p := range f.Providers {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		kl, err := p.GetHistory(ctx, symbol, start, end)
		if err != nil {
			log.Printf("[fetch] %s %s failed: %v\n", p.Name(), symbol, err)
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		answered = true
		if len(kl) > 0 {
			return kl, nil
		}
		log.Printf("[fetch] %s returned no data for %s\n", p.Name(), symbol)
	}
	if answered {
		return nil, nil
	}
	return nil, errors.Join(errs...)
}
