package source

import (
	"github.com/cielolabs/costwatch/internal/source/repository"
	"github.com/cielolabs/costwatch/internal/source/service"
	"go.uber.org/fx"
)

var Module = fx.Module("source.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
