package domain

import (
	"context"
	"time"
)

// Record marks one notification key as processed. Entries are never deleted,
// so a duplicate financial side effect can never recur.
type Record struct {
	Key        string    `gorm:"primaryKey;column:key"`
	RecordedAt time.Time `gorm:"not null"`
}

func (Record) TableName() string { return "idempotency_keys" }

// Key namespaces for the two dedup identities a notification carries.
const (
	TransactionKeyPrefix = "txn:"
	TrackingKeyPrefix    = "track:"
)

func TransactionKey(transactionID string) string {
	return TransactionKeyPrefix + transactionID
}

func TrackingKey(trackingID string) string {
	return TrackingKeyPrefix + trackingID
}

// Store answers whether a key was already processed and records new ones.
type Store interface {
	Has(ctx context.Context, key string) (bool, error)
	Set(ctx context.Context, key string, recordedAt time.Time) error
}
