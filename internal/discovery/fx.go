package discovery

import (
	"context"

	"cloud.google.com/go/storage"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/cielolabs/costwatch/internal/config"
	"github.com/cielolabs/costwatch/internal/discovery/domain"
	"github.com/cielolabs/costwatch/internal/discovery/fsfeed"
	"github.com/cielolabs/costwatch/internal/discovery/gcsfeed"
	"github.com/cielolabs/costwatch/internal/discovery/service"
)

// NewGCSFeed builds the blob-storage feed when enabled. A nil feed means
// gs:// locators are rejected at runtime.
func NewGCSFeed(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (domain.RunFeed, error) {
	if !cfg.Import.GCSEnabled {
		return nil, nil
	}

	client, err := storage.NewClient(context.Background())
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return gcsfeed.New(client, log), nil
}

var Module = fx.Module("discovery.service",
	fx.Provide(
		fx.Annotate(fsfeed.New, fx.ResultTags(`name:"fsfeed"`)),
		fx.Annotate(NewGCSFeed, fx.ResultTags(`name:"gcsfeed"`)),
	),
	fx.Provide(service.New),
)
