package service

import (
	"context"
	"errors"
	"io"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cielolabs/costwatch/internal/clock"
	"github.com/cielolabs/costwatch/internal/importer/domain"
	"github.com/cielolabs/costwatch/internal/observability/metrics"
	refdomain "github.com/cielolabs/costwatch/internal/reference/domain"
	snapdomain "github.com/cielolabs/costwatch/internal/snapshot/domain"
	srcdomain "github.com/cielolabs/costwatch/internal/source/domain"
	"github.com/cielolabs/costwatch/pkg/db"
)

var (
	errDateMissing   = errors.New("missing date")
	errDateMalformed = errors.New("malformed date")
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Metrics    *metrics.Metrics `optional:"true"`
	Snapshots  snapdomain.Repository
	Normalizer refdomain.Normalizer
	Sources    srcdomain.Service `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	metrics    *metrics.Metrics
	snapshots  snapdomain.Repository
	normalizer refdomain.Normalizer
	sources    srcdomain.Service
}

func New(p Params) domain.Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("importer.service"),
		clock:      p.Clock,
		metrics:    p.Metrics,
		snapshots:  p.Snapshots,
		normalizer: p.Normalizer,
		sources:    p.Sources,
	}
}

func (s *service) ImportRun(ctx context.Context, req domain.ImportRunRequest) (domain.ImportResult, error) {
	if req.Rows == nil {
		return domain.ImportResult{Status: domain.RunFailed}, domain.ErrNilRowStream
	}
	// Every exit releases the stream, including skips and aborts that never
	// drain it.
	defer func() {
		if err := req.Rows.Close(); err != nil {
			s.log.Warn("row stream close failed", zap.Error(err))
		}
	}()

	var sourceID *snowflake.ID
	sourceLabel := "adhoc"
	if req.SourceID != "" {
		id, err := snowflake.ParseString(req.SourceID)
		if err != nil {
			return domain.ImportResult{Status: domain.RunFailed}, domain.ErrInvalidSourceID
		}
		sourceID = &id
		sourceLabel = req.SourceID
	}

	if sourceID != nil && s.sources != nil && !req.DryRun {
		if err := s.sources.MarkAttempt(ctx, req.SourceID, s.clock.Now(), "importing"); err != nil {
			s.log.Warn("mark attempt failed", zap.String("source_id", req.SourceID), zap.Error(err))
		}
	}

	if req.RunID != "" {
		prior, err := s.snapshots.FindByRunID(ctx, s.db, sourceID, req.RunID, snapdomain.StatusComplete)
		if err != nil {
			return domain.ImportResult{Status: domain.RunFailed}, &domain.FatalError{Stage: "dedup check", Err: err}
		}
		if prior != nil && !req.Overwrite {
			s.log.Info("run already imported, skipping",
				zap.String("run_id", req.RunID),
				zap.Int64("snapshot_id", prior.ID))
			s.incRun("skipped", sourceLabel)
			return domain.ImportResult{
				SnapshotID: prior.ID,
				RunID:      req.RunID,
				Status:     domain.RunSkipped,
				Reason:     "duplicate_run",
			}, nil
		}
	}

	if req.DryRun {
		return s.dryRun(req)
	}

	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	snap := &snapdomain.Snapshot{
		RunID:      &runID,
		ReportDate: req.ReportDate,
		FileName:   req.FileName,
		SourceID:   sourceID,
		Status:     snapdomain.StatusPending,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.snapshots.CreateSnapshot(ctx, s.db, snap); err != nil {
		return domain.ImportResult{Status: domain.RunFailed}, &domain.FatalError{Stage: "snapshot create", Err: err}
	}

	s.log.Info("import started",
		zap.Int64("snapshot_id", snap.ID),
		zap.String("run_id", runID),
		zap.String("file", req.FileName))

	result := domain.ImportResult{SnapshotID: snap.ID, RunID: runID}
	memo := refdomain.NewMemo()

	for ordinal := 1; ; ordinal++ {
		row, err := req.Rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return s.abort(ctx, snap, sourceLabel, req.SourceID, result,
				&domain.FatalError{Stage: "row stream", Err: err})
		}

		parsed, err := validateRow(ordinal, row)
		if err != nil {
			s.recordRowError(&result, err, sourceLabel)
			continue
		}

		if err := s.commitRow(ctx, snap.ID, ordinal, memo, parsed, &result, sourceLabel); err != nil {
			return s.abort(ctx, snap, sourceLabel, req.SourceID, result, err)
		}
	}

	if err := s.snapshots.SetStatus(ctx, s.db, snap.ID, snapdomain.StatusComplete); err != nil {
		return s.abort(ctx, snap, sourceLabel, req.SourceID, result,
			&domain.FatalError{Stage: "snapshot finalize", Err: err})
	}
	if sourceID != nil && s.sources != nil {
		if err := s.sources.MarkImported(ctx, req.SourceID, s.clock.Now()); err != nil {
			s.log.Warn("mark imported failed", zap.String("source_id", req.SourceID), zap.Error(err))
		}
	}

	result.Status = domain.RunCompleted
	s.incRun("completed", sourceLabel)
	s.log.Info("import completed",
		zap.Int64("snapshot_id", snap.ID),
		zap.Int("imported", result.Imported),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// commitRow normalizes one parsed row's reference entities and inserts the
// line item. A unique-tuple duplicate counts as skipped; any other storage
// error is fatal to the run.
func (s *service) commitRow(ctx context.Context, snapshotID int64, ordinal int, memo *refdomain.Memo, p parsedRow, result *domain.ImportResult, sourceLabel string) error {
	entities, err := s.normalizer.Normalize(ctx, s.db, memo, p.entity)
	if err != nil {
		if isReferenceRowError(err) {
			s.recordRowError(result, domain.RowError{Ordinal: ordinal, Field: "reference", Reason: err.Error()}, sourceLabel)
			return nil
		}
		return &domain.FatalError{Stage: "entity normalize", Err: err}
	}

	item := &snapdomain.CostLineItem{
		SnapshotID:            snapshotID,
		Date:                  p.date,
		SubscriptionID:        entities.Subscription.ID,
		ResourceID:            entities.Resource.ID,
		MeterID:               entities.Meter.ID,
		CostInUSD:             p.costInUSD,
		CostInBillingCurrency: decimal.NewNullDecimal(p.costInBillingCurrency),
		BillingCurrency:       p.billingCurrency,
		Quantity:              p.quantity,
		UnitPrice:             p.unitPrice,
		ListPrice:             decimal.NewNullDecimal(p.listPrice),
		PricingModel:          p.pricingModel,
		ChargeType:            p.chargeType,
		PublisherName:         p.publisherName,
		CostCenter:            p.costCenter,
		Tags:                  p.tags,
	}

	if err := s.snapshots.InsertLineItem(ctx, s.db, item); err != nil {
		if db.IsDuplicateKeyErr(err) {
			result.Skipped++
			s.incRow("skipped", sourceLabel)
			return nil
		}
		return &domain.FatalError{Stage: "line item insert", Err: err}
	}

	result.Imported++
	s.incRow("imported", sourceLabel)
	return nil
}

// dryRun walks the stream with full validation but zero writes. In-file
// duplicates are detected with an in-memory tuple set so the statistics
// match what a real run would commit.
func (s *service) dryRun(req domain.ImportRunRequest) (domain.ImportResult, error) {
	result := domain.ImportResult{RunID: req.RunID, Status: domain.RunDryRun}
	seen := make(map[string]struct{})

	for ordinal := 1; ; ordinal++ {
		row, err := req.Rows.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Status = domain.RunFailed
			return result, &domain.FatalError{Stage: "row stream", Err: err}
		}

		parsed, err := validateRow(ordinal, row)
		if err != nil {
			s.recordRowError(&result, err, "dry_run")
			continue
		}

		key := parsed.tupleKey()
		if _, dup := seen[key]; dup {
			result.Skipped++
			continue
		}
		seen[key] = struct{}{}
		result.Imported++
	}
	return result, nil
}

func (s *service) abort(ctx context.Context, snap *snapdomain.Snapshot, sourceLabel, sourceID string, result domain.ImportResult, fatal error) (domain.ImportResult, error) {
	if err := s.snapshots.SetStatus(ctx, s.db, snap.ID, snapdomain.StatusFailed); err != nil {
		s.log.Error("failed to mark snapshot failed", zap.Int64("snapshot_id", snap.ID), zap.Error(err))
	}
	if sourceID != "" && s.sources != nil {
		if err := s.sources.MarkAttempt(ctx, sourceID, s.clock.Now(), "failed"); err != nil {
			s.log.Warn("mark attempt failed", zap.String("source_id", sourceID), zap.Error(err))
		}
	}

	result.Status = domain.RunFailed
	s.incRun("failed", sourceLabel)
	s.log.Error("import aborted", zap.Int64("snapshot_id", snap.ID), zap.Error(fatal))
	return result, fatal
}

func (s *service) recordRowError(result *domain.ImportResult, err error, sourceLabel string) {
	result.Failed++
	var rowErr domain.RowError
	if errors.As(err, &rowErr) {
		result.Errors = append(result.Errors, rowErr)
	}
	s.incRow("failed", sourceLabel)
}

func (s *service) incRow(outcome, sourceLabel string) {
	if s.metrics == nil {
		return
	}
	switch outcome {
	case "imported":
		s.metrics.RowsImported.WithLabelValues(sourceLabel).Inc()
	case "skipped":
		s.metrics.RowsSkipped.WithLabelValues(sourceLabel).Inc()
	case "failed":
		s.metrics.RowsFailed.WithLabelValues(sourceLabel).Inc()
	}
}

func (s *service) incRun(outcome, sourceLabel string) {
	if s.metrics == nil {
		return
	}
	switch outcome {
	case "completed":
		s.metrics.RunsCompleted.WithLabelValues(sourceLabel).Inc()
	case "skipped":
		s.metrics.RunsSkipped.WithLabelValues(sourceLabel).Inc()
	case "failed":
		s.metrics.RunsFailed.WithLabelValues(sourceLabel).Inc()
	}
}

func isReferenceRowError(err error) bool {
	return errors.Is(err, refdomain.ErrMissingSubscriptionID) ||
		errors.Is(err, refdomain.ErrMissingResourceID) ||
		errors.Is(err, refdomain.ErrMissingMeterID)
}
