package fetcher

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimited spaces out calls to a remote provider.
type RateLimited struct {
	inner   Provider
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond requests with a burst of one. perSecond <= 0
// disables limiting.
func NewRateLimited(p Provider, perSecond float64) *RateLimited {
	lim := rate.NewLimiter(rate.Inf, 1)
	if perSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return &RateLimited{inner: p, limiter: lim}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

func (r *RateLimited) GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]KLine, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return r.inner.GetHistory(ctx, symbol, start, end)
}
