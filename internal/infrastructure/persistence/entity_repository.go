package persistence

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/domain/unified"
	"github.com/syncbridge/backend/internal/infrastructure/persistence/models"
)

// GormEntityRepository implements unified.EntityRepository using GORM.
// Driver failures are wrapped as transient so the retry scheduler picks
// them up; not-found is a domain outcome, not a failure.
type GormEntityRepository struct {
	db *gorm.DB
}

var _ unified.EntityRepository = (*GormEntityRepository)(nil)

// NewGormEntityRepository creates a new GormEntityRepository
func NewGormEntityRepository(db *gorm.DB) *GormEntityRepository {
	return &GormEntityRepository{db: db}
}

// FindByKey implements unified.EntityRepository
func (r *GormEntityRepository) FindByKey(ctx context.Context, key unified.EntityKey) (*unified.UnifiedEntity, error) {
	var model models.UnifiedEntityModel
	err := r.db.WithContext(ctx).
		Where("platform = ? AND store_id = ? AND external_id = ? AND entity_type = ?",
			string(key.Platform), key.StoreID, key.ExternalID, string(key.EntityType)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("%w: find entity: %v", shared.ErrTransientFailure, err)
	}
	return model.ToDomain()
}

// Upsert implements unified.EntityRepository. The write conflicts on the
// reconciliation key index and replaces every mutable column, so replaying
// the same resolved entity is a no-op.
func (r *GormEntityRepository) Upsert(ctx context.Context, entity *unified.UnifiedEntity) (*unified.UnifiedEntity, error) {
	if err := entity.Validate(); err != nil {
		return nil, err
	}
	model, err := models.FromDomainEntity(entity)
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: conflictColumns(),
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "status", "price", "currency", "email",
				"discount_percent", "requires_shipping", "weight_grams",
				"metadata", "source_created_at", "source_updated_at", "updated_at",
			}),
		}).
		Create(model).Error
	if err != nil {
		return nil, fmt.Errorf("%w: upsert entity: %v", shared.ErrTransientFailure, err)
	}

	return r.FindByKey(ctx, entity.Key())
}

// ListCategoriesByScope implements unified.EntityRepository
func (r *GormEntityRepository) ListCategoriesByScope(ctx context.Context, platform unified.Platform, storeID string) ([]unified.Category, error) {
	var rows []models.UnifiedEntityModel
	err := r.db.WithContext(ctx).
		Where("platform = ? AND store_id = ? AND entity_type = ?",
			string(platform), storeID, string(unified.EntityTypeCategory)).
		Order("external_id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list categories: %v", shared.ErrTransientFailure, err)
	}

	categories := make([]unified.Category, 0, len(rows))
	for i := range rows {
		entity, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		categories = append(categories, unified.CategoryFromEntity(entity))
	}
	return categories, nil
}

func conflictColumns() []clause.Column {
	columns := make([]clause.Column, len(models.ReconciliationKeyColumns))
	for i, name := range models.ReconciliationKeyColumns {
		columns[i] = clause.Column{Name: name}
	}
	return columns
}
