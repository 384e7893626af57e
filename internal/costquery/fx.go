package costquery

import (
	"go.uber.org/fx"

	"github.com/cielolabs/costwatch/internal/costquery/service"
)

var Module = fx.Module("costquery.service",
	fx.Provide(service.New),
)
