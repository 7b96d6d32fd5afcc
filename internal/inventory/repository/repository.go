package repository

import (
	"context"

	"github.com/makehaven/paypal-inventory-listener/internal/inventory/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.Repository {
	return repository{}
}

func (repository) Insert(ctx context.Context, db *gorm.DB, adjustment *domain.InventoryAdjustment) error {
	return db.WithContext(ctx).Create(adjustment).Error
}
