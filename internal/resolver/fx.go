package resolver

import (
	"go.uber.org/fx"

	"github.com/cielolabs/costwatch/internal/resolver/service"
)

var Module = fx.Module("resolver.service",
	fx.Provide(service.New),
)
