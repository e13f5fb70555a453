package fetcher

import (
	"fmt"
	"strings"
	"time"
)

// Options selects and stacks the providers used by a run.
type Options struct {
	// Providers are tried in order: "yahoo", "eastmoney", "csv".
	Providers         []string
	CSVDir            string
	RequestsPerSecond float64
	// RedisAddr enables the read-through cache when set.
	RedisAddr string
	CacheTTL  time.Duration
}

// Build assembles the fallback chain. Remote providers are rate limited; the
// whole chain sits behind Redis when configured. The returned close func
// releases the Redis client and is never nil.
func Build(opt Options) (Provider, func() error, error) {
	noop := func() error { return nil }

	chain := make([]Provider, 0, len(opt.Providers))
	for _, name := range opt.Providers {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "yahoo":
			chain = append(chain, NewRateLimited(NewYahoo(), opt.RequestsPerSecond))
		case "eastmoney":
			chain = append(chain, NewRateLimited(NewEastMoney(), opt.RequestsPerSecond))
		case "csv":
			chain = append(chain, NewCSVDir(opt.CSVDir))
		case "":
		default:
			return nil, noop, fmt.Errorf("unknown provider %q", name)
		}
	}
	if len(chain) == 0 {
		return nil, noop, fmt.Errorf("no providers configured")
	}

	var p Provider = NewFallback(chain...)
	if strings.TrimSpace(opt.RedisAddr) == "" {
		return p, noop, nil
	}
	client := NewRedisClient(opt.RedisAddr)
	return NewRedisCache(p, client, opt.CacheTTL), client.Close, nil
}
