package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/makehaven/paypal-inventory-listener/internal/clock"
	"github.com/makehaven/paypal-inventory-listener/internal/inventory/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("inventory.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) CreateAdjustment(ctx context.Context, input domain.NewAdjustment) (*domain.InventoryAdjustment, error) {
	if input.MaterialRef <= 0 {
		return nil, domain.ErrInvalidMaterial
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, domain.ErrInvalidReason
	}

	adjustment := &domain.InventoryAdjustment{
		ID:             s.genID.Generate(),
		MaterialRef:    input.MaterialRef,
		QuantityChange: input.QuantityChange,
		Reason:         reason,
		Memo:           strings.TrimSpace(input.Memo),
		CreatedAt:      s.clock.Now(),
	}
	if err := s.repo.Insert(ctx, s.db, adjustment); err != nil {
		return nil, err
	}

	s.log.Debug("inventory adjustment created",
		zap.Int64("material_ref", adjustment.MaterialRef),
		zap.Int("quantity_change", adjustment.QuantityChange),
	)
	return adjustment, nil
}
