package repository

import (
	"context"

	"github.com/makehaven/paypal-inventory-listener/internal/ipn/domain"
	"gorm.io/gorm"
)

type repository struct{}

func Provide() domain.EventRepository {
	return repository{}
}

func (repository) Insert(ctx context.Context, db *gorm.DB, event *domain.EventRecord) error {
	return db.WithContext(ctx).Create(event).Error
}
