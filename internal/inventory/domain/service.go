package domain

import (
	"context"
	"errors"
)

type Service interface {
	CreateAdjustment(ctx context.Context, input NewAdjustment) (*InventoryAdjustment, error)
}

var (
	ErrInvalidMaterial = errors.New("invalid_material")
	ErrInvalidReason   = errors.New("invalid_reason")
)
