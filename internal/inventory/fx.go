package inventory

import (
	"github.com/makehaven/paypal-inventory-listener/internal/inventory/repository"
	"github.com/makehaven/paypal-inventory-listener/internal/inventory/service"
	"go.uber.org/fx"
)

var Module = fx.Module("inventory.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
