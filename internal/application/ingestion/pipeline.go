// Package ingestion drives webhook envelopes from the transport layer to the
// unified store: admission control, authentication, deduplication, payload
// normalization and conflict-resolved persistence.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/domain/unified"
	"github.com/syncbridge/backend/internal/infrastructure/cache"
	"github.com/syncbridge/backend/internal/infrastructure/platforms"
	"github.com/syncbridge/backend/internal/infrastructure/ratelimit"
	"github.com/syncbridge/backend/internal/infrastructure/signature"
	"github.com/syncbridge/backend/internal/infrastructure/telemetry"
	"github.com/syncbridge/backend/internal/infrastructure/workqueue"
)

// ---------------------------------------------------------------------------
// Outcome / Receipt
// ---------------------------------------------------------------------------

// Outcome classifies how an envelope left the pipeline
type Outcome string

const (
	// OutcomeQueued means the envelope was accepted and handed to the async
	// reconciliation pool
	OutcomeQueued Outcome = "QUEUED"
	// OutcomeProcessed means the envelope was reconciled synchronously
	OutcomeProcessed Outcome = "PROCESSED"
	// OutcomeDuplicate means the envelope was already processed and is
	// acknowledged without side effects
	OutcomeDuplicate Outcome = "DUPLICATE"
	// OutcomeSkipped means the event kind is not handled; the envelope is
	// acknowledged so the platform stops redelivering it
	OutcomeSkipped Outcome = "SKIPPED"
	// OutcomePendingReview means the update was parked for manual conflict
	// review instead of being applied
	OutcomePendingReview Outcome = "PENDING_REVIEW"
)

// Receipt is the pipeline's answer to one envelope
type Receipt struct {
	Outcome Outcome
	Kind    unified.EventKind
	Key     *unified.EntityKey
	// RetryAfter is set on rate-limited rejections
	RetryAfter time.Duration
}

// Rejection reasons surfaced on the rejected-webhooks counter beyond the
// signature verifier's own reason codes.
const (
	reasonUnknownPlatform = "UNKNOWN_PLATFORM"
	reasonRateLimited     = "RATE_LIMITED"
	reasonMalformed       = "MALFORMED_PAYLOAD"
	reasonInvalid         = "VALIDATION_FAILED"
)

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Deps bundles the pipeline's collaborators
type Deps struct {
	Verifier    *signature.Verifier
	Limiter     *ratelimit.Limiter
	Adapters    *platforms.Registry
	Resolver    *unified.ConflictResolver
	Entities    unified.EntityRepository
	Conflicts   unified.PendingConflictRepository
	DeadLetters unified.DeadLetterSink
	Digests     shared.IdempotencyStore
	// Pool is optional; without it every envelope is reconciled inline
	Pool    *workqueue.Pool
	Locks   *workqueue.KeyLock
	Metrics *telemetry.IngestionMetrics
	Logger  *zap.Logger
}

// Options tunes pipeline behavior
type Options struct {
	// DefaultStrategy applies when a request names no strategy
	DefaultStrategy unified.ConflictStrategy
	// Relaxed admits unsigned payloads with a warning for platforms whose
	// secret is not provisioned; development only
	Relaxed map[unified.Platform]bool
	// Dedup controls envelope deduplication
	Dedup shared.IdempotencyConfig
	// PersistTimeout bounds each repository call during reconciliation;
	// zero selects the default
	PersistTimeout time.Duration
}

// defaultPersistTimeout bounds repository calls when no timeout is configured
const defaultPersistTimeout = 5 * time.Second

// Pipeline is the webhook ingestion service. Ingest is safe for concurrent
// use; updates to the same reconciliation key are serialized through the
// shared key lock whether they run inline or on the pool.
type Pipeline struct {
	deps           Deps
	strategy       unified.ConflictStrategy
	relaxed        map[unified.Platform]bool
	dedup          shared.IdempotencyConfig
	persistTimeout time.Duration
	logger         *zap.Logger
}

// NewPipeline wires a pipeline from its dependencies
func NewPipeline(deps Deps, opts Options) *Pipeline {
	strategy := opts.DefaultStrategy
	if !strategy.IsValid() {
		strategy = unified.StrategyTimestampWins
	}
	if deps.Locks == nil {
		deps.Locks = workqueue.NewKeyLock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Metrics == nil {
		deps.Metrics, _ = telemetry.NewIngestionMetrics(noop.NewMeterProvider().Meter("ingestion"))
	}
	persistTimeout := opts.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}
	return &Pipeline{
		deps:           deps,
		strategy:       strategy,
		relaxed:        opts.Relaxed,
		dedup:          opts.Dedup,
		persistTimeout: persistTimeout,
		logger:         logger,
	}
}

// DefaultStrategy returns the strategy applied when callers name none
func (p *Pipeline) DefaultStrategy() unified.ConflictStrategy {
	return p.strategy
}

// ---------------------------------------------------------------------------
// Ingest
// ---------------------------------------------------------------------------

// Ingest runs one webhook envelope through the admission gates and, when it
// survives them, reconciles the normalized entity into the unified store.
// Gate order is fixed: adapter lookup, rate limit, signature, deduplication,
// parsing, validation. A queued receipt acknowledges the envelope before the
// write happens; retries and dead-lettering are the pool's concern.
func (p *Pipeline) Ingest(ctx context.Context, envelope *unified.WebhookEnvelope) (*Receipt, error) {
	start := time.Now()
	platform := envelope.Platform
	p.deps.Metrics.RecordReceived(ctx, platform.String())
	defer func() {
		p.deps.Metrics.RecordDuration(ctx, platform.String(), time.Since(start))
	}()

	adapter, err := p.deps.Adapters.Get(platform)
	if err != nil {
		p.deps.Metrics.RecordRejected(ctx, platform.String(), reasonUnknownPlatform)
		return nil, fmt.Errorf("%w: no adapter for platform %q", shared.ErrInvalidInput, platform)
	}

	decision := p.deps.Limiter.Allow(ctx, platform, envelope.SourceID)
	if !decision.Allowed {
		p.deps.Metrics.RecordRejected(ctx, platform.String(), reasonRateLimited)
		return &Receipt{RetryAfter: decision.RetryAfter},
			fmt.Errorf("%w: limit %d reached", shared.ErrRateLimited, decision.Limit)
	}

	verdict := p.deps.Verifier.Verify(platform, envelope.RawBody, envelope.Signature)
	if !verdict.Authentic {
		if verdict.MissingSecret && p.relaxed[platform] {
			p.logger.Warn("admitting unsigned payload, no secret provisioned",
				zap.String("platform", platform.String()),
				zap.String("source", envelope.SourceID))
		} else {
			p.deps.Metrics.RecordRejected(ctx, platform.String(), verdict.Reason)
			return nil, fmt.Errorf("%w: %s", shared.ErrAuthenticationFailed, verdict.Reason)
		}
	}

	if p.dedup.Enabled && p.deps.Digests != nil {
		digest := cache.EnvelopeDigest(envelope)
		fresh, err := p.deps.Digests.MarkProcessed(ctx, digest, p.dedup.TTL)
		if err != nil {
			// A degraded dedup store must not drop webhooks; resolution
			// determinism makes reprocessing harmless.
			p.logger.Warn("dedup store unavailable, processing without dedup",
				zap.String("platform", platform.String()),
				zap.Error(err))
		} else if !fresh {
			p.deps.Metrics.RecordDuplicate(ctx, platform.String())
			return &Receipt{Outcome: OutcomeDuplicate}, nil
		}
	}

	event, err := adapter.ParseEvent(envelope)
	if err != nil {
		if errors.Is(err, platforms.ErrUnsupportedEvent) {
			p.logger.Debug("acknowledging unsupported event",
				zap.String("platform", platform.String()),
				zap.Error(err))
			return &Receipt{Outcome: OutcomeSkipped}, nil
		}
		p.deps.Metrics.RecordRejected(ctx, platform.String(), reasonMalformed)
		return nil, fmt.Errorf("%w: %v", shared.ErrValidationFailed, err)
	}

	entity := event.Entity
	if err := entity.Validate(); err != nil {
		p.deps.Metrics.RecordRejected(ctx, platform.String(), reasonInvalid)
		return nil, fmt.Errorf("%w: %v", shared.ErrValidationFailed, err)
	}
	key := entity.Key()

	if p.deps.Pool != nil {
		if err := p.submit(entity); err == nil {
			return &Receipt{Outcome: OutcomeQueued, Kind: event.Kind, Key: &key}, nil
		}
		p.logger.Warn("pool saturated, reconciling inline", zap.String("key", key.String()))
	}

	record, err := p.applyLocked(ctx, entity, p.strategy)
	if err != nil {
		return nil, err
	}
	receipt := &Receipt{Outcome: OutcomeProcessed, Kind: event.Kind, Key: &key}
	if record.PendingReview {
		receipt.Outcome = OutcomePendingReview
	}
	return receipt, nil
}

// submit hands the entity to the pool. The job carries its own dead-letter
// hook so exhausted retries leave an audit trail.
func (p *Pipeline) submit(entity *unified.UnifiedEntity) error {
	key := entity.Key()
	return p.deps.Pool.Submit(&workqueue.Job{
		Key: key.String(),
		Run: func(ctx context.Context) error {
			_, err := p.apply(ctx, entity, p.strategy)
			if err != nil && workqueue.IsTransient(err) {
				p.deps.Metrics.RecordRetryScheduled(ctx, entity.Platform.String())
			}
			return err
		},
		OnExhausted: func(ctx context.Context, attempts int, lastErr error) {
			p.deadLetter(ctx, entity, attempts, lastErr)
		},
	})
}

// ---------------------------------------------------------------------------
// SyncBatch
// ---------------------------------------------------------------------------

// BatchRequest is a pull-mode reconciliation of raw platform records
type BatchRequest struct {
	Platform   unified.Platform
	StoreID    string
	EntityType string
	// Strategy optionally overrides the configured default
	Strategy string
	Records  [][]byte
}

// RecordFailure reports one record that could not be reconciled
type RecordFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// BatchResult summarizes a batch reconciliation. Skipped counts updates
// parked for manual review; the stored state stays untouched for those.
type BatchResult struct {
	Processed int             `json:"processed"`
	Created   int             `json:"created"`
	Updated   int             `json:"updated"`
	Skipped   int             `json:"skipped"`
	Failed    int             `json:"failed"`
	Failures  []RecordFailure `json:"errors,omitempty"`
}

// SyncBatch normalizes and reconciles a batch of raw platform records, one
// result per record. Record failures never abort the batch.
func (p *Pipeline) SyncBatch(ctx context.Context, req *BatchRequest) (*BatchResult, error) {
	adapter, err := p.deps.Adapters.Get(req.Platform)
	if err != nil {
		return nil, fmt.Errorf("%w: no adapter for platform %q", shared.ErrInvalidInput, req.Platform)
	}

	entityType := unified.EntityType(strings.ToLower(strings.TrimSpace(req.EntityType)))
	if !entityType.IsValid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", shared.ErrInvalidInput, req.EntityType)
	}

	strategy := p.strategy
	if req.Strategy != "" {
		strategy = unified.ConflictStrategy(req.Strategy)
		if !strategy.IsValid() {
			return nil, fmt.Errorf("%w: unknown conflict strategy %q", shared.ErrInvalidInput, req.Strategy)
		}
	}

	result := &BatchResult{Processed: len(req.Records)}
	for i, raw := range req.Records {
		entity, err := adapter.ParseRecord(entityType, req.StoreID, json.RawMessage(raw))
		if err == nil {
			err = entity.Validate()
		}
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, RecordFailure{Index: i, Error: err.Error()})
			continue
		}

		record, err := p.applyLocked(ctx, entity, strategy)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, RecordFailure{Index: i, Error: err.Error()})
			continue
		}
		switch {
		case record.PendingReview:
			result.Skipped++
		case record.Current == nil:
			result.Created++
		default:
			result.Updated++
		}
	}

	p.logger.Info("batch reconciliation finished",
		zap.String("platform", req.Platform.String()),
		zap.String("store_id", req.StoreID),
		zap.String("strategy", strategy.String()),
		zap.Int("processed", result.Processed),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// ---------------------------------------------------------------------------
// Reconciliation core
// ---------------------------------------------------------------------------

// applyLocked serializes apply with any pool work on the same key
func (p *Pipeline) applyLocked(ctx context.Context, entity *unified.UnifiedEntity, strategy unified.ConflictStrategy) (*unified.ConflictRecord, error) {
	unlock := p.deps.Locks.Lock(entity.Key().String())
	defer unlock()
	return p.apply(ctx, entity, strategy)
}

// persistCtx bounds one repository call. A hung database surfaces as
// context.DeadlineExceeded, which the retry classifier treats as transient.
func (p *Pipeline) persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, p.persistTimeout)
}

// apply loads the stored state, resolves the conflict and persists the
// winner, or parks the update for manual review. Callers hold the key lock.
func (p *Pipeline) apply(ctx context.Context, entity *unified.UnifiedEntity, strategy unified.ConflictStrategy) (*unified.ConflictRecord, error) {
	key := entity.Key()

	findCtx, cancel := p.persistCtx(ctx)
	current, err := p.deps.Entities.FindByKey(findCtx, key)
	cancel()
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	record, err := p.deps.Resolver.Resolve(current, entity, strategy)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	if record.PendingReview {
		conflict := &unified.PendingConflict{
			Key:      key,
			Incoming: entity,
			Current:  current,
			QueuedAt: time.Now().UTC(),
		}
		saveCtx, cancel := p.persistCtx(ctx)
		err := p.deps.Conflicts.Save(saveCtx, conflict)
		cancel()
		if err != nil {
			return nil, err
		}
		p.deps.Metrics.RecordConflictQueued(ctx, entity.Platform.String())
		p.logger.Info("update parked for manual review",
			zap.String("key", key.String()),
			zap.String("conflict_id", conflict.ID.String()))
		return record, nil
	}

	upsertCtx, cancel := p.persistCtx(ctx)
	_, err = p.deps.Entities.Upsert(upsertCtx, record.Resolved)
	cancel()
	if err != nil {
		return nil, err
	}
	p.deps.Metrics.RecordResolved(ctx, entity.Platform.String(), strategy.String())
	return record, nil
}

// deadLetter records an item that exhausted its retries
func (p *Pipeline) deadLetter(ctx context.Context, entity *unified.UnifiedEntity, attempts int, lastErr error) {
	item := &unified.DeadLetter{
		Key:      entity.Key(),
		Entity:   entity,
		Attempts: attempts,
		LastErr:  lastErr.Error(),
		FailedAt: time.Now().UTC(),
	}
	reportCtx, cancel := p.persistCtx(ctx)
	defer cancel()
	if err := p.deps.DeadLetters.Report(reportCtx, item); err != nil {
		p.logger.Error("dead letter report failed",
			zap.String("key", item.Key.String()),
			zap.Error(err))
	}
	p.deps.Metrics.RecordDeadLetter(ctx, entity.Platform.String())
	p.logger.Error("reconciliation abandoned after retries",
		zap.String("key", item.Key.String()),
		zap.Int("attempts", attempts),
		zap.Error(lastErr))
}
