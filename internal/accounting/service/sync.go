package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/caskr/internal/accounting/domain"
	"github.com/smallbiznis/caskr/internal/clock"
	"github.com/smallbiznis/caskr/internal/config"
	"github.com/smallbiznis/caskr/internal/observability/metrics"
	"github.com/smallbiznis/caskr/internal/orgcontext"
	"github.com/smallbiznis/caskr/internal/synclock"
	"github.com/smallbiznis/caskr/pkg/log/ctxlogger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const tracerName = "caskr/accounting"

// remoteCall performs the single remote write of a sync and returns the id
// the provider assigned.
type remoteCall func(ctx context.Context) (string, error)

type syncJob struct {
	companyID  snowflake.ID
	entityType domain.EntityType
	entityID   snowflake.ID

	// prepare resolves everything the remote call needs. Its errors are
	// returned to the caller and leave no sync log behind.
	prepare func(ctx context.Context) (remoteCall, error)
}

type SyncParams struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Accounting *config.AccountingConfigHolder
	Contexts   domain.ContextFactory
	Clients    domain.ClientFactory
	Mappings   domain.MappingRepository
	SyncLogs   domain.SyncLogRepository
	Billing    domain.BillingRepository
	Locker     *synclock.Locker `optional:"true"`
	Metrics    *metrics.Metrics `optional:"true"`
}

// syncRunner drives one sync from idempotency check to sync log.
type syncRunner struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	accounting *config.AccountingConfigHolder
	syncLogs   domain.SyncLogRepository
	locker     *synclock.Locker
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

func newSyncRunner(p SyncParams, log *zap.Logger) *syncRunner {
	return &syncRunner{
		db:         p.DB,
		log:        log,
		genID:      p.GenID,
		clock:      p.Clock,
		accounting: p.Accounting,
		syncLogs:   p.SyncLogs,
		locker:     p.Locker,
		metrics:    p.Metrics,
		tracer:     otel.Tracer(tracerName),
	}
}

func (r *syncRunner) run(ctx context.Context, job syncJob) (*domain.SyncResult, error) {
	ctx, span := r.tracer.Start(ctx, "accounting.sync."+string(job.entityType),
		trace.WithAttributes(
			attribute.String("entity_type", string(job.entityType)),
			attribute.String("entity_id", job.entityID.String()),
		),
	)
	defer span.End()

	log := ctxlogger.WithContext(ctx, r.log).With(
		zap.String("company_id", job.companyID.String()),
		zap.String("entity_type", string(job.entityType)),
		zap.String("entity_id", job.entityID.String()),
	)

	if res, err := r.alreadySynced(ctx, job); err != nil || res != nil {
		return res, err
	}

	// The lock is kept alive until release; workCtx is cancelled if it is
	// lost, so a remote write never runs unguarded.
	key := fmt.Sprintf("sync:%s:%s:%s", job.companyID, job.entityType, job.entityID)
	workCtx, release, err := r.locker.Hold(ctx, key, r.accounting.Get().SyncLockTTL)
	if err != nil {
		if errors.Is(err, synclock.ErrNotObtained) {
			return nil, domain.ErrSyncInProgress
		}
		return nil, err
	}
	defer release()

	if r.locker.Enabled() {
		if res, err := r.alreadySynced(workCtx, job); err != nil || res != nil {
			return res, err
		}
	}

	call, err := job.prepare(workCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	start := r.clock.Now()
	externalID, remoteErr := call(workCtx)
	syncedAt := r.clock.Now()
	if remoteErr != nil && !errors.Is(remoteErr, synclock.ErrLockLost) && errors.Is(context.Cause(workCtx), synclock.ErrLockLost) {
		remoteErr = fmt.Errorf("%w: %w", synclock.ErrLockLost, remoteErr)
	}

	entry := &domain.AccountingSyncLog{
		ID:               r.genID.Generate(),
		CompanyID:        job.companyID,
		Provider:         domain.ProviderQuickBooks,
		EntityType:       job.entityType,
		EntityID:         job.entityID,
		ExternalEntityID: externalID,
		Status:           domain.SyncStatusSuccess,
		DurationMs:       syncedAt.Sub(start).Milliseconds(),
		SyncedAt:         syncedAt,
	}
	if remoteErr != nil {
		entry.Status = domain.SyncStatusFailed
		entry.ExternalEntityID = ""
		entry.ErrorMessage = remoteErr.Error()
		span.RecordError(remoteErr)
		span.SetStatus(codes.Error, remoteErr.Error())
	}
	if err := r.syncLogs.Insert(ctx, r.db, entry); err != nil {
		log.Error("failed to record sync log", zap.Error(err), zap.NamedError("remote_error", remoteErr))
		return nil, err
	}
	r.metrics.RecordSync(ctx, string(job.entityType), string(entry.Status))

	if remoteErr != nil {
		log.Warn("sync failed", zap.Error(remoteErr), zap.Int64("duration_ms", entry.DurationMs))
		return &domain.SyncResult{
			Success:      false,
			ErrorMessage: entry.ErrorMessage,
			SyncLogID:    entry.ID,
		}, nil
	}

	log.Info("sync succeeded",
		zap.String("external_id", externalID),
		zap.Int64("duration_ms", entry.DurationMs),
	)
	return &domain.SyncResult{
		Success:    true,
		ExternalID: externalID,
		SyncLogID:  entry.ID,
	}, nil
}

func (r *syncRunner) alreadySynced(ctx context.Context, job syncJob) (*domain.SyncResult, error) {
	existing, err := r.syncLogs.FindLatestSuccess(ctx, r.db, job.companyID, job.entityType, job.entityID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	return &domain.SyncResult{
		Success:       true,
		ExternalID:    existing.ExternalEntityID,
		AlreadySynced: true,
		SyncLogID:     existing.ID,
	}, nil
}

func companyFromContext(ctx context.Context) (snowflake.ID, error) {
	companyID, ok := orgcontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, domain.ErrInvalidCompany
	}
	return companyID, nil
}
