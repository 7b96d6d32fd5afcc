package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Terminal outcomes recorded on the notification audit trail.
const (
	OutcomeProcessed          = "processed"
	OutcomeInvalidPayload     = "invalid_payload"
	OutcomeVerificationFailed = "verification_failed"
	OutcomeNotCompleted       = "payment_not_completed"
	OutcomeMissingTxnID       = "missing_transaction_id"
	OutcomeUnsupportedType    = "unsupported_transaction_type"
	OutcomeUnsupportedCcy     = "unsupported_currency"
	OutcomeReceiverMismatch   = "receiver_mismatch"
	OutcomeDuplicate          = "duplicate"
	OutcomeDedupError         = "dedup_error"
	OutcomeNoAdjustments      = "no_adjustments"
)

// EventRecord is one row of the notification audit trail: every received
// notification lands here with its terminal outcome, whether or not it
// produced side effects.
type EventRecord struct {
	ID            snowflake.ID   `gorm:"primaryKey"`
	TransactionID string         `gorm:"column:transaction_id;index"`
	Outcome       string         `gorm:"type:text;not null;index"`
	Payload       datatypes.JSON `gorm:"column:payload"`
	ReceivedAt    time.Time      `gorm:"not null"`
}

func (EventRecord) TableName() string { return "notification_events" }

type EventRepository interface {
	Insert(ctx context.Context, db *gorm.DB, event *EventRecord) error
}
