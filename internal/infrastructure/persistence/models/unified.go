// Package models holds the GORM persistence models and their conversions to
// and from the domain types.
package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/syncbridge/backend/internal/domain/unified"
)

// UnifiedEntityModel is the single-table persistence shape of every unified
// entity. The reconciliation key is enforced by a composite unique index, so
// an upsert on the key is the only write path.
type UnifiedEntityModel struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Platform   string `gorm:"size:16;not null;uniqueIndex:idx_reconciliation_key,priority:1"`
	StoreID    string `gorm:"size:128;not null;uniqueIndex:idx_reconciliation_key,priority:2"`
	ExternalID string `gorm:"size:128;not null;uniqueIndex:idx_reconciliation_key,priority:3"`
	EntityType string `gorm:"size:16;not null;uniqueIndex:idx_reconciliation_key,priority:4"`

	Name             string          `gorm:"size:512"`
	Description      string          `gorm:"type:text"`
	Status           string          `gorm:"size:16;not null"`
	Price            decimal.Decimal `gorm:"type:decimal(20,6)"`
	Currency         string          `gorm:"size:8"`
	Email            string          `gorm:"size:320"`
	DiscountPercent  decimal.Decimal `gorm:"type:decimal(9,4)"`
	RequiresShipping bool
	WeightGrams      decimal.Decimal `gorm:"type:decimal(20,4)"`

	Metadata []byte `gorm:"type:jsonb"`

	// Source timestamps are platform-reported and drive conflict resolution;
	// CreatedAt/UpdatedAt below are row bookkeeping.
	SourceCreatedAt time.Time
	SourceUpdatedAt time.Time `gorm:"index"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName overrides the table name
func (UnifiedEntityModel) TableName() string { return "unified_entities" }

// ReconciliationKeyColumns are the columns of the composite unique index, in
// index order. Upserts conflict on exactly these.
var ReconciliationKeyColumns = []string{"platform", "store_id", "external_id", "entity_type"}

// FromDomainEntity converts a domain entity to its persistence model
func FromDomainEntity(e *unified.UnifiedEntity) (*UnifiedEntityModel, error) {
	var metadata []byte
	if len(e.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(e.Metadata)
		if err != nil {
			return nil, fmt.Errorf("models: failed to encode metadata: %w", err)
		}
	}
	return &UnifiedEntityModel{
		Platform:         string(e.Platform),
		StoreID:          e.StoreID,
		ExternalID:       e.ExternalID,
		EntityType:       string(e.EntityType),
		Name:             e.Name,
		Description:      e.Description,
		Status:           string(e.Status),
		Price:            e.Price,
		Currency:         e.Currency,
		Email:            e.Email,
		DiscountPercent:  e.DiscountPercent,
		RequiresShipping: e.RequiresShipping,
		WeightGrams:      e.Weight,
		Metadata:         metadata,
		SourceCreatedAt:  e.CreatedAt,
		SourceUpdatedAt:  e.UpdatedAt,
	}, nil
}

// ToDomain converts the persistence model back to a domain entity
func (m *UnifiedEntityModel) ToDomain() (*unified.UnifiedEntity, error) {
	var metadata map[string]any
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("models: failed to decode metadata: %w", err)
		}
	}
	return &unified.UnifiedEntity{
		Platform:         unified.Platform(m.Platform),
		StoreID:          m.StoreID,
		ExternalID:       m.ExternalID,
		EntityType:       unified.EntityType(m.EntityType),
		Name:             m.Name,
		Description:      m.Description,
		Status:           unified.Status(m.Status),
		Price:            m.Price,
		Currency:         m.Currency,
		Email:            m.Email,
		DiscountPercent:  m.DiscountPercent,
		RequiresShipping: m.RequiresShipping,
		Weight:           m.WeightGrams,
		Metadata:         metadata,
		CreatedAt:        m.SourceCreatedAt,
		UpdatedAt:        m.SourceUpdatedAt,
	}, nil
}

// PendingConflictModel stores a MANUAL_REVIEW outcome awaiting resolution.
// Incoming and Current are full entity snapshots; Current is null on create
// conflicts.
type PendingConflictModel struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key"`

	Platform   string `gorm:"size:16;not null;index:idx_conflict_scope,priority:1"`
	StoreID    string `gorm:"size:128;not null;index:idx_conflict_scope,priority:2"`
	ExternalID string `gorm:"size:128;not null"`
	EntityType string `gorm:"size:16;not null"`

	Incoming []byte `gorm:"type:jsonb;not null"`
	Current  []byte `gorm:"type:jsonb"`

	QueuedAt  time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName overrides the table name
func (PendingConflictModel) TableName() string { return "pending_conflicts" }

// FromDomainConflict converts a domain pending conflict to its model
func FromDomainConflict(c *unified.PendingConflict) (*PendingConflictModel, error) {
	incoming, err := json.Marshal(c.Incoming)
	if err != nil {
		return nil, fmt.Errorf("models: failed to encode incoming entity: %w", err)
	}
	var current []byte
	if c.Current != nil {
		current, err = json.Marshal(c.Current)
		if err != nil {
			return nil, fmt.Errorf("models: failed to encode current entity: %w", err)
		}
	}
	return &PendingConflictModel{
		ID:         c.ID,
		Platform:   string(c.Key.Platform),
		StoreID:    c.Key.StoreID,
		ExternalID: c.Key.ExternalID,
		EntityType: string(c.Key.EntityType),
		Incoming:   incoming,
		Current:    current,
		QueuedAt:   c.QueuedAt,
	}, nil
}

// ToDomain converts the model back to a domain pending conflict
func (m *PendingConflictModel) ToDomain() (*unified.PendingConflict, error) {
	var incoming unified.UnifiedEntity
	if err := json.Unmarshal(m.Incoming, &incoming); err != nil {
		return nil, fmt.Errorf("models: failed to decode incoming entity: %w", err)
	}
	conflict := &unified.PendingConflict{
		ID: m.ID,
		Key: unified.EntityKey{
			Platform:   unified.Platform(m.Platform),
			StoreID:    m.StoreID,
			ExternalID: m.ExternalID,
			EntityType: unified.EntityType(m.EntityType),
		},
		Incoming: &incoming,
		QueuedAt: m.QueuedAt,
	}
	if len(m.Current) > 0 {
		var current unified.UnifiedEntity
		if err := json.Unmarshal(m.Current, &current); err != nil {
			return nil, fmt.Errorf("models: failed to decode current entity: %w", err)
		}
		conflict.Current = &current
	}
	return conflict, nil
}

// DeadLetterModel stores a permanently failed reconciliation item
type DeadLetterModel struct {
	ID uuid.UUID `gorm:"type:uuid;primary_key"`

	Platform   string `gorm:"size:16;not null"`
	StoreID    string `gorm:"size:128;not null"`
	ExternalID string `gorm:"size:128;not null"`
	EntityType string `gorm:"size:16;not null"`

	Entity   []byte `gorm:"type:jsonb"`
	Attempts int    `gorm:"not null"`
	LastErr  string `gorm:"type:text"`

	FailedAt  time.Time `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}

// TableName overrides the table name
func (DeadLetterModel) TableName() string { return "dead_letters" }

// FromDomainDeadLetter converts a domain dead letter to its model
func FromDomainDeadLetter(d *unified.DeadLetter) (*DeadLetterModel, error) {
	var entity []byte
	if d.Entity != nil {
		var err error
		entity, err = json.Marshal(d.Entity)
		if err != nil {
			return nil, fmt.Errorf("models: failed to encode entity: %w", err)
		}
	}
	return &DeadLetterModel{
		ID:         d.ID,
		Platform:   string(d.Key.Platform),
		StoreID:    d.Key.StoreID,
		ExternalID: d.Key.ExternalID,
		EntityType: string(d.Key.EntityType),
		Entity:     entity,
		Attempts:   d.Attempts,
		LastErr:    d.LastErr,
		FailedAt:   d.FailedAt,
	}, nil
}

// ToDomain converts the model back to a domain dead letter
func (m *DeadLetterModel) ToDomain() (*unified.DeadLetter, error) {
	letter := &unified.DeadLetter{
		ID: m.ID,
		Key: unified.EntityKey{
			Platform:   unified.Platform(m.Platform),
			StoreID:    m.StoreID,
			ExternalID: m.ExternalID,
			EntityType: unified.EntityType(m.EntityType),
		},
		Attempts: m.Attempts,
		LastErr:  m.LastErr,
		FailedAt: m.FailedAt,
	}
	if len(m.Entity) > 0 {
		var entity unified.UnifiedEntity
		if err := json.Unmarshal(m.Entity, &entity); err != nil {
			return nil, fmt.Errorf("models: failed to decode entity: %w", err)
		}
		letter.Entity = &entity
	}
	return letter, nil
}
