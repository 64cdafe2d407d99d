package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/domain/unified"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	db, err := NewSQLiteDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleEntity() *unified.UnifiedEntity {
	return &unified.UnifiedEntity{
		Platform:   unified.PlatformShopify,
		StoreID:    "acme.myshopify.com",
		ExternalID: "100",
		EntityType: unified.EntityTypeProduct,
		Name:       "Widget",
		Status:     unified.StatusActive,
		Price:      decimal.RequireFromString("19.99"),
		Currency:   "USD",
		Metadata:   map[string]any{"vendor": "Acme"},
		CreatedAt:  time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:  time.Date(2025, 5, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestGormEntityRepository_UpsertCreatesAndReads(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormEntityRepository(db.DB)
	ctx := context.Background()

	entity := sampleEntity()
	stored, err := repo.Upsert(ctx, entity)
	require.NoError(t, err)

	assert.Equal(t, "Widget", stored.Name)
	assert.True(t, stored.Price.Equal(entity.Price))
	assert.Equal(t, "Acme", stored.Metadata["vendor"])

	found, err := repo.FindByKey(ctx, entity.Key())
	require.NoError(t, err)
	assert.Equal(t, stored.Name, found.Name)
	assert.Equal(t, entity.UpdatedAt.UTC(), found.UpdatedAt.UTC())
}

func TestGormEntityRepository_UpsertReplacesOnSameKey(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormEntityRepository(db.DB)
	ctx := context.Background()

	first := sampleEntity()
	_, err := repo.Upsert(ctx, first)
	require.NoError(t, err)

	second := sampleEntity()
	second.Name = "Widget v2"
	second.Status = unified.StatusDraft
	second.UpdatedAt = first.UpdatedAt.Add(time.Hour)
	_, err = repo.Upsert(ctx, second)
	require.NoError(t, err)

	found, err := repo.FindByKey(ctx, first.Key())
	require.NoError(t, err)
	assert.Equal(t, "Widget v2", found.Name)
	assert.Equal(t, unified.StatusDraft, found.Status)

	var count int64
	require.NoError(t, db.DB.Table("unified_entities").Count(&count).Error)
	assert.Equal(t, int64(1), count, "same key never creates a second row")
}

func TestGormEntityRepository_KeysAreScoped(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormEntityRepository(db.DB)
	ctx := context.Background()

	shopify := sampleEntity()
	_, err := repo.Upsert(ctx, shopify)
	require.NoError(t, err)

	// Same external ID on another platform is a distinct entity.
	ecwid := sampleEntity()
	ecwid.Platform = unified.PlatformEcwid
	ecwid.StoreID = "100500"
	ecwid.Name = "Ecwid Widget"
	_, err = repo.Upsert(ctx, ecwid)
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.DB.Table("unified_entities").Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestGormEntityRepository_FindByKeyNotFound(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormEntityRepository(db.DB)

	_, err := repo.FindByKey(context.Background(), unified.EntityKey{
		Platform:   unified.PlatformGumroad,
		StoreID:    unified.DefaultStoreID,
		ExternalID: "missing",
		EntityType: unified.EntityTypeProduct,
	})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormEntityRepository_UpsertRejectsInvalidKey(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormEntityRepository(db.DB)

	entity := sampleEntity()
	entity.ExternalID = ""
	_, err := repo.Upsert(context.Background(), entity)
	assert.ErrorIs(t, err, unified.ErrMissingExternalID)
}

func TestGormEntityRepository_ListCategoriesByScope(t *testing.T) {
	db := newTestDatabase(t)
	repo := NewGormEntityRepository(db.DB)
	ctx := context.Background()

	parent := "1"
	root := unified.Category{
		UnifiedEntity: unified.UnifiedEntity{
			Platform:   unified.PlatformEcwid,
			StoreID:    "100500",
			ExternalID: "1",
			EntityType: unified.EntityTypeCategory,
			Name:       "Root",
			Status:     unified.StatusActive,
		},
		MenuOrder: 1,
	}
	child := unified.Category{
		UnifiedEntity: unified.UnifiedEntity{
			Platform:   unified.PlatformEcwid,
			StoreID:    "100500",
			ExternalID: "2",
			EntityType: unified.EntityTypeCategory,
			Name:       "Child",
			Status:     unified.StatusActive,
		},
		ParentID:     &parent,
		MenuOrder:    2,
		ProductCount: 3,
	}
	otherStore := unified.Category{
		UnifiedEntity: unified.UnifiedEntity{
			Platform:   unified.PlatformEcwid,
			StoreID:    "999",
			ExternalID: "3",
			EntityType: unified.EntityTypeCategory,
			Name:       "Elsewhere",
			Status:     unified.StatusActive,
		},
	}

	for _, c := range []unified.Category{root, child, otherStore} {
		_, err := repo.Upsert(ctx, c.AsEntity())
		require.NoError(t, err)
	}

	categories, err := repo.ListCategoriesByScope(ctx, unified.PlatformEcwid, "100500")
	require.NoError(t, err)
	require.Len(t, categories, 2, "scope filter excludes other stores")

	assert.Equal(t, "1", categories[0].ExternalID)
	assert.True(t, categories[0].IsRoot())
	require.NotNil(t, categories[1].ParentID)
	assert.Equal(t, "1", *categories[1].ParentID)
	assert.Equal(t, 3, categories[1].ProductCount)
}
