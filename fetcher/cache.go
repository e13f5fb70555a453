package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const cacheKeyPrefix = "autohedge:kline"

// RedisCache is a read-through cache in front of a provider. Redis failures
// are logged and bypassed; they never fail a fetch.
type RedisCache struct {
	inner  Provider
	client *goredis.Client
	ttl    time.Duration
}

func NewRedisCache(inner Provider, client *goredis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &RedisCache{inner: inner, client: client, ttl: ttl}
}

// NewRedisClient builds a client with short timeouts suited to a cache.
func NewRedisClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         addr,
		DialTimeout:  500 * time.Millisecond,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
		MaxRetries:   -1,
	})
}

func (c *RedisCache) Name() string { return c.inner.Name() }

func (c *RedisCache) GetHistory(ctx context.Context, symbol string, start, end time.Time) ([]KLine, error) {
	key := cacheKey(c.inner.Name(), symbol, start, end)

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var kl []KLine
		if jerr := json.Unmarshal(raw, &kl); jerr == nil {
			return kl, nil
		}
		log.Printf("[fetch] cache entry %s unreadable, refetching\n", key)
	case err != goredis.Nil:
		log.Printf("[fetch] cache get %s: %v\n", key, err)
	}

	kl, err := c.inner.GetHistory(ctx, symbol, start, end)
	if err != nil || len(kl) == 0 {
		return kl, err
	}

	b, err := json.Marshal(kl)
	if err == nil {
		err = c.client.Set(ctx, key, b, c.ttl).Err()
	}
	if err != nil {
		log.Printf("[fetch] cache set %s: %v\n", key, err)
	}
	return kl, nil
}

func cacheKey(provider, symbol string, start, end time.Time) string {
	return fmt.Sprintf("%s:%s:%s:%s:%s", cacheKeyPrefix, provider, symbol,
		start.Format("20060102"), end.Format("20060102"))
}
