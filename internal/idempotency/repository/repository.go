package repository

import (
	"context"
	"time"

	"github.com/makehaven/paypal-inventory-listener/internal/cache"
	"github.com/makehaven/paypal-inventory-listener/internal/idempotency/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// seenCacheTTL bounds how long a positive lookup is served from memory during
// a retry storm. Keys are never deleted, so positive entries cannot go stale.
const seenCacheTTL = 10 * time.Minute

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

type repository struct {
	db   *gorm.DB
	log  *zap.Logger
	seen *cache.TTLCache[string, struct{}]
}

func Provide(p Params) domain.Store {
	return &repository{
		db:   p.DB,
		log:  p.Log.Named("idempotency.repository"),
		seen: cache.NewTTLCache[string, struct{}](),
	}
}

func (r *repository) Has(ctx context.Context, key string) (bool, error) {
	if _, ok := r.seen.Get(key); ok {
		return true, nil
	}

	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Record{}).
		Where("key = ?", key).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	if count > 0 {
		r.seen.Set(key, struct{}{}, seenCacheTTL)
		return true, nil
	}
	return false, nil
}

func (r *repository) Set(ctx context.Context, key string, recordedAt time.Time) error {
	err := r.db.WithContext(ctx).Exec(
		`INSERT INTO idempotency_keys (key, recorded_at)
		 VALUES (?, ?)
		 ON CONFLICT (key) DO NOTHING`,
		key,
		recordedAt,
	).Error
	if err != nil {
		return err
	}
	r.seen.Set(key, struct{}{}, seenCacheTTL)
	return nil
}
