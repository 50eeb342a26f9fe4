package stats

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"eventlisting/internal/domain"
)

const viewKeyPrefix = "stats:views:"

type cachedClient struct {
	next   domain.StatsClient
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedClient keeps view counts in Redis for ttl. Redis errors are logged
// and the call falls through to next.
func NewCachedClient(next domain.StatsClient, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) domain.StatsClient {
	return &cachedClient{next: next, rdb: rdb, ttl: ttl, logger: logger}
}

func (c *cachedClient) RecordHit(ctx context.Context, hit domain.EndpointHit) error {
	return c.next.RecordHit(ctx, hit)
}

func (c *cachedClient) ViewCounts(ctx context.Context, uris []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(uris))
	if len(uris) == 0 {
		return counts, nil
	}

	keys := make([]string, len(uris))
	for i, u := range uris {
		keys[i] = viewKeyPrefix + u
	}
	missing := uris
	cached, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.WarnContext(ctx, "view cache read failed", "err", err)
	} else {
		missing = nil
		for i, v := range cached {
			s, ok := v.(string)
			if !ok {
				missing = append(missing, uris[i])
				continue
			}
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				missing = append(missing, uris[i])
				continue
			}
			counts[uris[i]] = n
		}
	}
	if len(missing) == 0 {
		return counts, nil
	}

	fresh, err := c.next.ViewCounts(ctx, missing)
	if err != nil {
		return nil, err
	}
	for _, u := range missing {
		n := fresh[u]
		counts[u] = n
		if err := c.rdb.Set(ctx, viewKeyPrefix+u, strconv.FormatInt(n, 10), c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "view cache write failed", "uri", u, "err", err)
		}
	}
	return counts, nil
}
