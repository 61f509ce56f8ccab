package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/kkk1998sss/webinar-sub002/internal/domain/model"
	"github.com/kkk1998sss/webinar-sub002/internal/domain/ports/repository"
	"github.com/kkk1998sss/webinar-sub002/internal/infra/metrics"
	red "github.com/kkk1998sss/webinar-sub002/internal/infra/redis"
)

var _ repository.WebinarCatalog = (*webinarCatalogCache)(nil)

// webinarCatalogCache is a read-through cache for catalog entries. Only
// prices and titles live here; entitlements are never cached.
type webinarCatalogCache struct {
	inner repository.WebinarCatalog
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewWebinarCatalogCache(inner repository.WebinarCatalog, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.WebinarCatalog {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &webinarCatalogCache{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func webinarKey(id string) string { return fmt.Sprintf("webinar:id:%s", id) }

func (d *webinarCatalogCache) FindWebinar(ctx context.Context, tx repository.Tx, id string) (*model.Webinar, error) {
	// Reads inside a transaction go straight to the database.
	if tx != nil {
		return d.inner.FindWebinar(ctx, tx, id)
	}

	key := webinarKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var w model.Webinar
		if json.Unmarshal([]byte(val), &w) == nil {
			metrics.IncCacheRequest("webinar", "hit")
			return &w, nil
		}
	} else if !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("webinar cache read failed")
	}

	metrics.IncCacheRequest("webinar", "miss")
	w, err := d.inner.FindWebinar(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(w); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("webinar cache write failed")
		}
	}
	return w, nil
}
