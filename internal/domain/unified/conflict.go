package unified

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// ConflictStrategy
// ---------------------------------------------------------------------------

// ConflictStrategy selects how the resolver decides between the stored state
// and an incoming candidate for the same reconciliation key.
type ConflictStrategy string

const (
	// StrategyTimestampWins applies last-writer-wins on UpdatedAt; ties favor
	// the incoming entity
	StrategyTimestampWins ConflictStrategy = "TIMESTAMP_WINS"
	// StrategyPlatformPriority applies a configured total order over
	// platforms regardless of timestamps
	StrategyPlatformPriority ConflictStrategy = "PLATFORM_PRIORITY"
	// StrategyMergeFields performs a field-by-field union where non-empty
	// incoming values override
	StrategyMergeFields ConflictStrategy = "MERGE_FIELDS"
	// StrategyManualReview queues the incoming candidate for human
	// resolution and leaves the stored entity untouched
	StrategyManualReview ConflictStrategy = "MANUAL_REVIEW"
)

// IsValid returns true if the strategy is valid
func (s ConflictStrategy) IsValid() bool {
	switch s {
	case StrategyTimestampWins, StrategyPlatformPriority, StrategyMergeFields, StrategyManualReview:
		return true
	default:
		return false
	}
}

// String returns the string representation of ConflictStrategy
func (s ConflictStrategy) String() string {
	return string(s)
}

// ---------------------------------------------------------------------------
// ConflictRecord
// ---------------------------------------------------------------------------

// ConflictRecord is the ephemeral comparison between an incoming candidate
// and the currently stored entity. It is not persisted beyond the resolution
// decision; callers may log it for audit.
type ConflictRecord struct {
	// Incoming is the normalized candidate from the adapter
	Incoming *UnifiedEntity
	// Current is the stored entity, nil on the create path
	Current *UnifiedEntity
	// Strategy is the strategy that produced the outcome
	Strategy ConflictStrategy
	// Resolved is the winning state to persist; on MANUAL_REVIEW it is the
	// untouched current state
	Resolved *UnifiedEntity
	// PendingReview is true when the incoming candidate was queued instead
	// of applied
	PendingReview bool
}

// ---------------------------------------------------------------------------
// ConflictResolver
// ---------------------------------------------------------------------------

// ConflictResolver decides the winning version of an entity when two updates
// target the same logical key. Resolve is a pure function over its inputs
// and the strategy: no hidden state, deterministic for identical inputs, as
// required for idempotent redelivery.
type ConflictResolver struct {
	// priority is the configured total order over platforms for
	// PLATFORM_PRIORITY, highest priority first
	priority []Platform
}

// NewConflictResolver creates a resolver with the given platform priority
// order (highest first). The order only matters for PLATFORM_PRIORITY.
func NewConflictResolver(priority []Platform) *ConflictResolver {
	return &ConflictResolver{priority: priority}
}

// Resolve applies the strategy to the (current, incoming) pair. If current
// is nil the incoming entity wins unconditionally (create path).
func (r *ConflictResolver) Resolve(current, incoming *UnifiedEntity, strategy ConflictStrategy) (*ConflictRecord, error) {
	if incoming == nil {
		return nil, ErrNilIncomingEntity
	}
	if !strategy.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, strategy)
	}

	record := &ConflictRecord{
		Incoming: incoming,
		Current:  current,
		Strategy: strategy,
	}

	if current == nil {
		record.Resolved = incoming.Clone()
		return record, nil
	}

	if current.Key() != incoming.Key() {
		return nil, fmt.Errorf("%w: current=%s incoming=%s", ErrKeyMismatch, current.Key(), incoming.Key())
	}

	switch strategy {
	case StrategyTimestampWins:
		// Ties favor incoming: last-writer-wins with incoming bias.
		if incoming.UpdatedAt.Before(current.UpdatedAt) {
			record.Resolved = current.Clone()
		} else {
			record.Resolved = incoming.Clone()
		}
	case StrategyPlatformPriority:
		if r.platformRank(incoming.Platform) <= r.platformRank(current.Platform) {
			record.Resolved = incoming.Clone()
		} else {
			record.Resolved = current.Clone()
		}
	case StrategyMergeFields:
		record.Resolved = mergeFields(current, incoming)
	case StrategyManualReview:
		record.Resolved = current.Clone()
		record.PendingReview = true
	}

	return record, nil
}

// platformRank returns the position of a platform in the configured priority
// order; unlisted platforms rank last.
func (r *ConflictResolver) platformRank(p Platform) int {
	for i, candidate := range r.priority {
		if candidate == p {
			return i
		}
	}
	return len(r.priority)
}

// mergeFields unions current and incoming field-by-field. Non-empty incoming
// values override; fields absent on incoming preserve current values, so a
// populated field is never nulled out by an absent one.
func mergeFields(current, incoming *UnifiedEntity) *UnifiedEntity {
	merged := current.Clone()

	if incoming.Name != "" {
		merged.Name = incoming.Name
	}
	if incoming.Description != "" {
		merged.Description = incoming.Description
	}
	if incoming.Status != "" {
		merged.Status = incoming.Status
	}
	if !incoming.Price.IsZero() {
		merged.Price = incoming.Price
	}
	if incoming.Currency != "" {
		merged.Currency = incoming.Currency
	}
	if incoming.Email != "" {
		merged.Email = incoming.Email
	}
	if !incoming.DiscountPercent.IsZero() {
		merged.DiscountPercent = incoming.DiscountPercent
	}
	if !incoming.Weight.IsZero() {
		merged.Weight = incoming.Weight
	}
	// RequiresShipping is a bare bool with no absent marker; take the
	// incoming value only when incoming looks like a physical record.
	if incoming.RequiresShipping {
		merged.RequiresShipping = true
	}

	if len(incoming.Metadata) > 0 {
		if merged.Metadata == nil {
			merged.Metadata = make(map[string]any, len(incoming.Metadata))
		}
		for k, v := range incoming.Metadata {
			merged.Metadata[k] = v
		}
	}

	if !incoming.CreatedAt.IsZero() && (merged.CreatedAt.IsZero() || incoming.CreatedAt.Before(merged.CreatedAt)) {
		merged.CreatedAt = incoming.CreatedAt
	}
	if incoming.UpdatedAt.After(merged.UpdatedAt) {
		merged.UpdatedAt = incoming.UpdatedAt
	}

	return merged
}
