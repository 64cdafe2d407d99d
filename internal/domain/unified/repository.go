package unified

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Persistence ports
// ---------------------------------------------------------------------------

// EntityRepository is the persistence collaborator consumed by the pipeline.
// Implementations live in the infrastructure layer; the pipeline only
// depends on this port. Absent entities are reported as shared.ErrNotFound.
type EntityRepository interface {
	// FindByKey loads the stored entity for a reconciliation key
	FindByKey(ctx context.Context, key EntityKey) (*UnifiedEntity, error)

	// Upsert creates or replaces the entity identified by its key and
	// returns the stored state
	Upsert(ctx context.Context, entity *UnifiedEntity) (*UnifiedEntity, error)

	// ListCategoriesByScope returns the flat category set of one
	// (platform, storeId) scope
	ListCategoriesByScope(ctx context.Context, platform Platform, storeID string) ([]Category, error)
}

// ---------------------------------------------------------------------------
// PendingConflict
// ---------------------------------------------------------------------------

// PendingConflict is a MANUAL_REVIEW outcome queued for human resolution.
// The stored entity stays untouched until the conflict is resolved.
type PendingConflict struct {
	ID       uuid.UUID      `json:"id"`
	Key      EntityKey      `json:"key"`
	Incoming *UnifiedEntity `json:"incoming"`
	Current  *UnifiedEntity `json:"current,omitempty"`
	QueuedAt time.Time      `json:"queued_at"`
}

// PendingConflictRepository stores conflicts awaiting manual review
type PendingConflictRepository interface {
	// Save queues a conflict for review
	Save(ctx context.Context, conflict *PendingConflict) error

	// ListByScope returns queued conflicts, optionally filtered by platform
	// and store (empty values match everything)
	ListByScope(ctx context.Context, platform Platform, storeID string) ([]PendingConflict, error)
}

// ---------------------------------------------------------------------------
// DeadLetter
// ---------------------------------------------------------------------------

// DeadLetter is a permanently-failed reconciliation item removed from the
// retry path and reported for manual handling.
type DeadLetter struct {
	ID       uuid.UUID      `json:"id"`
	Key      EntityKey      `json:"key"`
	Entity   *UnifiedEntity `json:"entity,omitempty"`
	Attempts int            `json:"attempts"`
	LastErr  string         `json:"last_error"`
	FailedAt time.Time      `json:"failed_at"`
}

// DeadLetterSink is the out-of-band failure channel for exhausted retries
type DeadLetterSink interface {
	// Report records a dead-lettered item
	Report(ctx context.Context, item *DeadLetter) error

	// List returns recorded dead letters, newest first
	List(ctx context.Context, limit int) ([]DeadLetter, error)
}
