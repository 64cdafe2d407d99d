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

// GormDeadLetterSink implements unified.DeadLetterSink
type GormDeadLetterSink struct {
	db *gorm.DB
}

var _ unified.DeadLetterSink = (*GormDeadLetterSink)(nil)

// NewGormDeadLetterSink creates a new GormDeadLetterSink
func NewGormDeadLetterSink(db *gorm.DB) *GormDeadLetterSink {
	return &GormDeadLetterSink{db: db}
}

// Report implements unified.DeadLetterSink
func (s *GormDeadLetterSink) Report(ctx context.Context, item *unified.DeadLetter) error {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	model, err := models.FromDomainDeadLetter(item)
	if err != nil {
		return err
	}
	// Dead letters are the out-of-band channel for work that already failed;
	// a write error here is logged by the caller, never retried.
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return fmt.Errorf("%w: report dead letter: %v", shared.ErrTransientFailure, err)
	}
	return nil
}

// List implements unified.DeadLetterSink, newest first
func (s *GormDeadLetterSink) List(ctx context.Context, limit int) ([]unified.DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.DeadLetterModel
	err := s.db.WithContext(ctx).
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("%w: list dead letters: %v", shared.ErrTransientFailure, err)
	}

	letters := make([]unified.DeadLetter, 0, len(rows))
	for i := range rows {
		letter, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		letters = append(letters, *letter)
	}
	return letters, nil
}
