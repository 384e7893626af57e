package reference

import (
	"github.com/cielolabs/costwatch/internal/reference/repository"
	"github.com/cielolabs/costwatch/internal/reference/service"
	"go.uber.org/fx"
)

var Module = fx.Module("reference.normalizer",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
