package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/cielolabs/costwatch/internal/clock"
	"github.com/cielolabs/costwatch/internal/source/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("source.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateSourceRequest) (domain.Source, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Source{}, domain.ErrInvalidName
	}

	locator := strings.TrimSpace(req.BaseLocator)
	if locator == "" {
		return domain.Source{}, domain.ErrInvalidBaseLocator
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	now := s.clock.Now()
	source := domain.Source{
		ID:          s.genID.Generate(),
		Name:        name,
		BaseLocator: locator,
		Active:      active,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, &source); err != nil {
		return domain.Source{}, err
	}

	s.log.Info("source created",
		zap.String("source_id", source.ID.String()),
		zap.String("name", source.Name),
	)
	return source, nil
}

func (s *Service) Get(ctx context.Context, id string) (domain.Source, error) {
	sourceID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || sourceID == 0 {
		return domain.Source{}, domain.ErrInvalidSourceID
	}

	source, err := s.repo.FindByID(ctx, s.db, sourceID)
	if err != nil {
		return domain.Source{}, err
	}
	if source == nil {
		return domain.Source{}, domain.ErrSourceNotFound
	}
	return *source, nil
}

func (s *Service) List(ctx context.Context, activeOnly bool) ([]domain.Source, error) {
	return s.repo.List(ctx, s.db, activeOnly)
}

func (s *Service) MarkAttempt(ctx context.Context, id string, at time.Time, status string) error {
	source, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	attempted := at.UTC()
	source.LastAttemptedAt = &attempted
	source.Status = status
	source.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, &source)
}

func (s *Service) MarkImported(ctx context.Context, id string, at time.Time) error {
	source, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	imported := at.UTC()
	source.LastImportedAt = &imported
	source.Status = "imported"
	source.UpdatedAt = s.clock.Now()
	return s.repo.Update(ctx, s.db, &source)
}
