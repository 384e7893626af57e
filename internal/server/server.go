package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/config"
	costquerydomain "github.com/cielolabs/costwatch/internal/costquery/domain"
	discoverydomain "github.com/cielolabs/costwatch/internal/discovery/domain"
	importerdomain "github.com/cielolabs/costwatch/internal/importer/domain"
	resolverdomain "github.com/cielolabs/costwatch/internal/resolver/domain"
	snapdomain "github.com/cielolabs/costwatch/internal/snapshot/domain"
	srcdomain "github.com/cielolabs/costwatch/internal/source/domain"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine       *gin.Engine
	cfg          config.Config
	db           *gorm.DB
	sourceSvc    srcdomain.Service
	snapshotSvc  snapdomain.Service
	importerSvc  importerdomain.Service
	discoverySvc discoverydomain.Service
	resolverSvc  resolverdomain.Service
	costquerySvc costquerydomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	DB           *gorm.DB
	SourceSvc    srcdomain.Service
	SnapshotSvc  snapdomain.Service
	ImporterSvc  importerdomain.Service
	DiscoverySvc discoverydomain.Service
	ResolverSvc  resolverdomain.Service
	CostquerySvc costquerydomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		db:           p.DB,
		sourceSvc:    p.SourceSvc,
		snapshotSvc:  p.SnapshotSvc,
		importerSvc:  p.ImporterSvc,
		discoverySvc: p.DiscoverySvc,
		resolverSvc:  p.ResolverSvc,
		costquerySvc: p.CostquerySvc,
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	v1.POST("/imports", s.ImportFile)

	v1.GET("/sources", s.ListSources)
	v1.POST("/sources", s.CreateSource)
	v1.GET("/sources/:id", s.GetSource)
	v1.GET("/sources/:id/runs", s.DiscoverRuns)
	v1.POST("/sources/:id/import", s.FetchAndImport)

	v1.GET("/snapshots", s.ListSnapshots)
	v1.GET("/snapshots/latest", s.ResolveLatest)
	v1.GET("/snapshots/report-dates", s.SnapshotReportDates)
	v1.GET("/snapshots/:id", s.GetSnapshot)

	costs := v1.Group("/costs")
	{
		costs.GET("/aggregate", s.Aggregate)
		costs.GET("/available-dates", s.AvailableDates)

		// Canned group-bys over the same aggregation layer.
		costs.GET("/summary/subscriptions", s.summaryHandler("subscription_name"))
		costs.GET("/summary/resource-groups", s.summaryHandler("resource_group"))
		costs.GET("/summary/meter-categories", s.summaryHandler("meter_category"))
		costs.GET("/summary/regions", s.summaryHandler("location"))
		costs.GET("/summary/service-families", s.summaryHandler("service_family"))
	}
}
