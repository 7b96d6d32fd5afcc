package idempotency

import (
	"github.com/makehaven/paypal-inventory-listener/internal/idempotency/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("idempotency",
	fx.Provide(repository.Provide),
)
