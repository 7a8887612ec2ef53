package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a read-through Redis cache in front of the rate table, used by
// the lookup API so draft-entry clients can prefill rates without hitting
// Postgres. The posting path always reads the table directly inside its
// transaction.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache instantiates the cache helper.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

type cachedRate struct {
	Rate  Rate `json:"rate"`
	Found bool `json:"found"`
}

func cacheKey(tenantID int64, date time.Time, from, to string) string {
	return fmt.Sprintf("fx:%d:%s:%s:%s", tenantID, from, to, date.Format("2006-01-02"))
}

// CachedRepository decorates a Repository with the cache. Misses and
// Redis failures fall through to the inner repository.
type CachedRepository struct {
	inner Repository
	cache *Cache
}

// NewCachedRepository wraps inner with cache.
func NewCachedRepository(inner Repository, cache *Cache) *CachedRepository {
	return &CachedRepository{inner: inner, cache: cache}
}

// LatestSpotRate implements Repository.
func (r *CachedRepository) LatestSpotRate(ctx context.Context, tenantID int64, date time.Time, from, to string) (Rate, bool, error) {
	if r.cache == nil || r.cache.client == nil {
		return r.inner.LatestSpotRate(ctx, tenantID, date, from, to)
	}
	key := cacheKey(tenantID, date, from, to)
	if raw, err := r.cache.client.Get(ctx, key).Bytes(); err == nil {
		var entry cachedRate
		if err := json.Unmarshal(raw, &entry); err == nil {
			return entry.Rate, entry.Found, nil
		}
	}
	rate, found, err := r.inner.LatestSpotRate(ctx, tenantID, date, from, to)
	if err != nil {
		return Rate{}, false, err
	}
	if raw, err := json.Marshal(cachedRate{Rate: rate, Found: found}); err == nil {
		_ = r.cache.client.Set(ctx, key, raw, r.cache.ttl).Err()
	}
	return rate, found, nil
}
