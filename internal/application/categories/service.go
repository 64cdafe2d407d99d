// Package categories answers read queries over the reconciled category
// hierarchy of one (platform, store) scope.
package categories

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/domain/unified"
)

// Service builds category forests on demand from the flat reconciled rows.
// Forests are cheap to assemble relative to webhook traffic, so there is no
// cache to invalidate; every query sees the latest reconciled state.
type Service struct {
	entities unified.EntityRepository
	builder  *unified.HierarchyBuilder
	logger   *zap.Logger
}

// NewService creates the category query service
func NewService(entities unified.EntityRepository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		entities: entities,
		builder:  unified.NewHierarchyBuilder(),
		logger:   logger,
	}
}

// forest loads one scope's categories and assembles them
func (s *Service) forest(ctx context.Context, platform unified.Platform, storeID string) (*unified.CategoryForest, error) {
	if !platform.IsValid() {
		return nil, fmt.Errorf("%w: unknown platform %q", shared.ErrInvalidInput, platform)
	}
	flat, err := s.entities.ListCategoriesByScope(ctx, platform, storeID)
	if err != nil {
		return nil, err
	}
	return s.builder.BuildTree(flat), nil
}

// Tree returns the scope's category forest, roots ordered by menu order
func (s *Service) Tree(ctx context.Context, platform unified.Platform, storeID string) ([]*unified.CategoryNode, error) {
	forest, err := s.forest(ctx, platform, storeID)
	if err != nil {
		return nil, err
	}
	return forest.Roots, nil
}

// Path returns the root-first breadcrumb of one category
func (s *Service) Path(ctx context.Context, platform unified.Platform, storeID, externalID string) ([]unified.Category, error) {
	forest, err := s.forest(ctx, platform, storeID)
	if err != nil {
		return nil, err
	}
	path, err := forest.ComputePath(externalID)
	if errors.Is(err, unified.ErrCategoryNotInScope) {
		return nil, fmt.Errorf("%w: category %q in %s/%s", shared.ErrNotFound, externalID, platform, storeID)
	}
	return path, err
}

// Stats summarizes the shape of the scope's hierarchy
func (s *Service) Stats(ctx context.Context, platform unified.Platform, storeID string) (unified.HierarchyStats, error) {
	forest, err := s.forest(ctx, platform, storeID)
	if err != nil {
		return unified.HierarchyStats{}, err
	}
	return forest.Stats(), nil
}
