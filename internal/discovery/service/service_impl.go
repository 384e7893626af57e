package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/clock"
	"github.com/cielolabs/costwatch/internal/discovery/domain"
	importerdomain "github.com/cielolabs/costwatch/internal/importer/domain"
	snapdomain "github.com/cielolabs/costwatch/internal/snapshot/domain"
	srcdomain "github.com/cielolabs/costwatch/internal/source/domain"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	Clock     clock.Clock
	Snapshots snapdomain.Repository
	Sources   srcdomain.Service
	Importer  importerdomain.Service
	FSFeed    domain.RunFeed `name:"fsfeed"`
	GCSFeed   domain.RunFeed `name:"gcsfeed" optional:"true"`
}

type service struct {
	db        *gorm.DB
	log       *zap.Logger
	clock     clock.Clock
	snapshots snapdomain.Repository
	sources   srcdomain.Service
	importer  importerdomain.Service
	fsFeed    domain.RunFeed
	gcsFeed   domain.RunFeed
}

func New(p Params) domain.Service {
	return &service{
		db:        p.DB,
		log:       p.Log.Named("discovery.service"),
		clock:     p.Clock,
		snapshots: p.Snapshots,
		sources:   p.Sources,
		importer:  p.Importer,
		fsFeed:    p.FSFeed,
		gcsFeed:   p.GCSFeed,
	}
}

func (s *service) DiscoverRuns(ctx context.Context, sourceID, period string) (domain.DiscoveryReport, error) {
	report := domain.DiscoveryReport{SourceID: sourceID, Period: s.defaultPeriod(period)}

	src, err := s.sources.Get(ctx, sourceID)
	if err != nil {
		return report, err
	}
	feed, err := s.feedFor(src.BaseLocator)
	if err != nil {
		return report, err
	}

	candidates, discErrs, err := feed.List(ctx, src.BaseLocator, report.Period)
	if err != nil {
		return report, err
	}
	report.Errors = discErrs

	for _, c := range candidates {
		imported, err := s.alreadyImported(ctx, src.ID, c.RunID)
		if err != nil {
			return report, err
		}
		report.Runs = append(report.Runs, domain.DiscoveredRun{RunCandidate: c, AlreadyImported: imported})
	}
	return report, nil
}

func (s *service) FetchAndImport(ctx context.Context, sourceID string, opts domain.FetchOptions) (domain.FetchReport, error) {
	period := s.defaultPeriod(opts.Period)
	report := domain.FetchReport{SourceID: sourceID, Period: period}

	src, err := s.sources.Get(ctx, sourceID)
	if err != nil {
		return report, err
	}
	feed, err := s.feedFor(src.BaseLocator)
	if err != nil {
		return report, err
	}

	if err := s.sources.MarkAttempt(ctx, sourceID, s.clock.Now(), "fetching"); err != nil {
		s.log.Warn("mark attempt failed", zap.String("source_id", sourceID), zap.Error(err))
	}

	candidates, discErrs, err := feed.List(ctx, src.BaseLocator, period)
	if err != nil {
		if markErr := s.sources.MarkAttempt(ctx, sourceID, s.clock.Now(), "list_failed"); markErr != nil {
			s.log.Warn("mark attempt failed", zap.String("source_id", sourceID), zap.Error(markErr))
		}
		return report, err
	}
	report.Errors = discErrs
	report.ManifestsFound = len(candidates) + len(discErrs)

	if len(candidates) == 0 && len(discErrs) == 0 {
		if err := s.sources.MarkAttempt(ctx, sourceID, s.clock.Now(), "no_manifests"); err != nil {
			s.log.Warn("mark attempt failed", zap.String("source_id", sourceID), zap.Error(err))
		}
		return report, nil
	}

	for _, c := range candidates {
		outcome := s.runOne(ctx, src, feed, c, opts)
		report.Runs = append(report.Runs, outcome)
	}
	return report, nil
}

// runOne imports one candidate. Already-imported runs are skipped without
// ever opening the payload; per-run failures are recorded and do not stop
// the sweep.
func (s *service) runOne(ctx context.Context, src srcdomain.Source, feed domain.RunFeed, c domain.RunCandidate, opts domain.FetchOptions) domain.RunOutcome {
	outcome := domain.RunOutcome{RunID: c.RunID}

	imported, err := s.alreadyImported(ctx, src.ID, c.RunID)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if imported && !opts.Overwrite {
		s.log.Info("skipping already imported run",
			zap.String("run_id", c.RunID),
			zap.String("source", src.Name))
		outcome.Result = importerdomain.ImportResult{
			RunID:  c.RunID,
			Status: importerdomain.RunSkipped,
			Reason: "duplicate_run",
		}
		return outcome
	}

	rows, err := feed.Open(ctx, c)
	if err != nil {
		outcome.Error = fmt.Sprintf("open payload: %v", err)
		return outcome
	}

	result, err := s.importer.ImportRun(ctx, importerdomain.ImportRunRequest{
		SourceID:   src.ID.String(),
		RunID:      c.RunID,
		ReportDate: c.ReportDate,
		FileName:   c.PayloadLocator,
		Rows:       rows,
		DryRun:     opts.DryRun,
		Overwrite:  opts.Overwrite,
	})
	outcome.Result = result
	if err != nil {
		outcome.Error = err.Error()
	}
	return outcome
}

func (s *service) alreadyImported(ctx context.Context, sourceID snowflake.ID, runID string) (bool, error) {
	if runID == "" {
		return false, nil
	}
	prior, err := s.snapshots.FindByRunID(ctx, s.db, &sourceID, runID, snapdomain.StatusComplete)
	if err != nil {
		return false, err
	}
	return prior != nil, nil
}

func (s *service) feedFor(baseLocator string) (domain.RunFeed, error) {
	if strings.HasPrefix(baseLocator, "gs://") {
		if s.gcsFeed == nil {
			return nil, domain.ErrUnsupportedLocator
		}
		return s.gcsFeed, nil
	}
	return s.fsFeed, nil
}

// defaultPeriod fills an empty period with the current month to date, the
// export layout's YYYYMMDD-YYYYMMDD convention.
func (s *service) defaultPeriod(period string) string {
	if period != "" {
		return period
	}
	now := s.clock.Now()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("%s-%s", start.Format("20060102"), now.Format("20060102"))
}
