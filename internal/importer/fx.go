package importer

import (
	"go.uber.org/fx"

	"github.com/cielolabs/costwatch/internal/importer/service"
)

var Module = fx.Module("importer.service",
	fx.Provide(service.New),
)
