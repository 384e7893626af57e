package snapshot

import (
	"go.uber.org/fx"

	"github.com/cielolabs/costwatch/internal/snapshot/repository"
	"github.com/cielolabs/costwatch/internal/snapshot/service"
)

var Module = fx.Module("snapshot.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
