package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/domain/unified"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

// GormPendingConflictRepository implements unified.PendingConflictRepository
type GormPendingConflictRepository struct {
	db *gorm.DB
}

var _ unified.PendingConflictRepository = (*GormPendingConflictRepository)(nil)

// NewGormPendingConflictRepository creates a new GormPendingConflictRepository
func NewGormPendingConflictRepository(db *gorm.DB) *GormPendingConflictRepository {
	return &GormPendingConflictRepository{db: db}
}

// Save implements unified.PendingConflictRepository
func (r *GormPendingConflictRepository) Save(ctx context.Context, conflict *unified.PendingConflict) error {
	if conflict.ID == uuid.Nil {
		conflict.ID = uuid.New()
	}
	model, err := models.FromDomainConflict(conflict)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("%w: save pending conflict: %v", shared.ErrTransientFailure, err)
	}
	return nil
}

// ListByScope implements unified.PendingConflictRepository; empty platform
// or store matches everything.
func (r *GormPendingConflictRepository) ListByScope(ctx context.Context, platform unified.Platform, storeID string) ([]unified.PendingConflict, error) {
	query := r.db.WithContext(ctx).Model(&models.PendingConflictModel{})
	if platform != "" {
		query = query.Where("platform = ?", string(platform))
	}
	if storeID != "" {
		query = query.Where("store_id = ?", storeID)
	}

	var rows []models.PendingConflictModel
	if err := query.Order("queued_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: list pending conflicts: %v", shared.ErrTransientFailure, err)
	}

	conflicts := make([]unified.PendingConflict, 0, len(rows))
	for i := range rows {
		conflict, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, *conflict)
	}
	return conflicts, nil
}
