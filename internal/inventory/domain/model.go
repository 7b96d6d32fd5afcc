package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// ReasonSale is the fixed change reason for adjustments created from
// payment notifications.
const ReasonSale = "sale"

// InventoryAdjustment is an append-only record of a stock level change for
// one material in the catalog.
type InventoryAdjustment struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	MaterialRef    int64        `gorm:"column:material_ref;not null;index"`
	QuantityChange int          `gorm:"not null"`
	Reason         string       `gorm:"type:text;not null"`
	Memo           string       `gorm:"type:text;not null;default:''"`
	CreatedAt      time.Time    `gorm:"not null"`
}

func (InventoryAdjustment) TableName() string { return "inventory_adjustments" }

// NewAdjustment carries the attributes for a single adjustment to create.
type NewAdjustment struct {
	MaterialRef    int64
	QuantityChange int
	Reason         string
	Memo           string
}
