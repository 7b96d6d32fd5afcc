package ipn

import (
	"github.com/makehaven/paypal-inventory-listener/internal/ipn/repository"
	"github.com/makehaven/paypal-inventory-listener/internal/ipn/service"
	"github.com/makehaven/paypal-inventory-listener/internal/ipn/verifier"
	"go.uber.org/fx"
)

var Module = fx.Module("ipn.service",
	fx.Provide(repository.Provide),
	fx.Provide(verifier.Provide),
	fx.Provide(service.NewService),
)
