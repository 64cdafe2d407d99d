package unified

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntity(platform Platform, updatedAt time.Time) *UnifiedEntity {
	return &UnifiedEntity{
		Platform:   platform,
		ExternalID: "ext-1",
		StoreID:    "store-1",
		EntityType: EntityTypeProduct,
		Name:       "Widget",
		Status:     StatusActive,
		Price:      decimal.NewFromInt(10),
		Currency:   "USD",
		UpdatedAt:  updatedAt,
	}
}

func TestConflictResolver_CreatePath(t *testing.T) {
	resolver := NewConflictResolver(nil)
	incoming := testEntity(PlatformShopify, time.Now())

	record, err := resolver.Resolve(nil, incoming, StrategyTimestampWins)
	require.NoError(t, err)

	assert.Equal(t, incoming.Name, record.Resolved.Name)
	assert.False(t, record.PendingReview)
	assert.Nil(t, record.Current)
}

func TestConflictResolver_TimestampWins(t *testing.T) {
	resolver := NewConflictResolver(nil)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		currentUpdated time.Time
		incomingUpdate time.Time
		wantIncoming   bool
	}{
		{
			name:           "incoming newer wins",
			currentUpdated: base,
			incomingUpdate: base.Add(time.Minute),
			wantIncoming:   true,
		},
		{
			name:           "current newer wins",
			currentUpdated: base.Add(time.Minute),
			incomingUpdate: base,
			wantIncoming:   false,
		},
		{
			name:           "equal timestamps favor incoming",
			currentUpdated: base,
			incomingUpdate: base,
			wantIncoming:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			current := testEntity(PlatformShopify, tt.currentUpdated)
			current.Name = "Current"
			incoming := testEntity(PlatformShopify, tt.incomingUpdate)
			incoming.Name = "Incoming"

			record, err := resolver.Resolve(current, incoming, StrategyTimestampWins)
			require.NoError(t, err)

			if tt.wantIncoming {
				assert.Equal(t, "Incoming", record.Resolved.Name)
			} else {
				assert.Equal(t, "Current", record.Resolved.Name)
			}
		})
	}
}

func TestConflictResolver_Deterministic(t *testing.T) {
	resolver := NewConflictResolver(nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	current := testEntity(PlatformShopify, now)
	incoming := testEntity(PlatformShopify, now.Add(time.Second))
	incoming.Name = "Incoming"

	first, err := resolver.Resolve(current, incoming, StrategyTimestampWins)
	require.NoError(t, err)
	second, err := resolver.Resolve(current, incoming, StrategyTimestampWins)
	require.NoError(t, err)

	assert.Equal(t, first.Resolved, second.Resolved)
}

func TestConflictResolver_PlatformPriority(t *testing.T) {
	resolver := NewConflictResolver([]Platform{PlatformShopify, PlatformEcwid, PlatformGumroad})
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Current comes from the system of record; incoming is newer but from a
	// lower-priority platform. With PLATFORM_PRIORITY timestamps are ignored.
	current := testEntity(PlatformShopify, old)
	current.Name = "SystemOfRecord"
	current.Platform = PlatformShopify
	incoming := testEntity(PlatformShopify, old.Add(time.Hour))
	incoming.Name = "Incoming"

	record, err := resolver.Resolve(current, incoming, StrategyPlatformPriority)
	require.NoError(t, err)
	// Same platform: incoming rank equals current rank, incoming wins.
	assert.Equal(t, "Incoming", record.Resolved.Name)
}

func TestConflictResolver_MergeFieldsNeverNullsPopulatedFields(t *testing.T) {
	resolver := NewConflictResolver(nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	current := testEntity(PlatformEcwid, now)
	current.Description = "Long description"
	current.Email = "buyer@example.com"
	current.Metadata = map[string]any{"sku": "W-1", "vendor": "Acme"}

	incoming := testEntity(PlatformEcwid, now.Add(time.Minute))
	incoming.Name = "Widget v2"
	incoming.Description = "" // absent on incoming
	incoming.Email = ""       // absent on incoming
	incoming.Metadata = map[string]any{"sku": "W-2"}

	record, err := resolver.Resolve(current, incoming, StrategyMergeFields)
	require.NoError(t, err)

	assert.Equal(t, "Widget v2", record.Resolved.Name)
	assert.Equal(t, "Long description", record.Resolved.Description, "absent incoming field must not null current")
	assert.Equal(t, "buyer@example.com", record.Resolved.Email)
	assert.Equal(t, "W-2", record.Resolved.Metadata["sku"], "incoming metadata keys override")
	assert.Equal(t, "Acme", record.Resolved.Metadata["vendor"], "current-only metadata keys survive")
	assert.Equal(t, incoming.UpdatedAt, record.Resolved.UpdatedAt)
}

func TestConflictResolver_MergeFieldsDoesNotMutateInputs(t *testing.T) {
	resolver := NewConflictResolver(nil)
	now := time.Now()

	current := testEntity(PlatformEcwid, now)
	current.Metadata = map[string]any{"a": 1}
	incoming := testEntity(PlatformEcwid, now)
	incoming.Metadata = map[string]any{"b": 2}

	_, err := resolver.Resolve(current, incoming, StrategyMergeFields)
	require.NoError(t, err)

	assert.NotContains(t, current.Metadata, "b")
	assert.NotContains(t, incoming.Metadata, "a")
}

func TestConflictResolver_ManualReview(t *testing.T) {
	resolver := NewConflictResolver(nil)
	now := time.Now()
	current := testEntity(PlatformGumroad, now)
	current.Name = "Stored"
	incoming := testEntity(PlatformGumroad, now.Add(time.Minute))
	incoming.Name = "Incoming"

	record, err := resolver.Resolve(current, incoming, StrategyManualReview)
	require.NoError(t, err)

	assert.True(t, record.PendingReview)
	assert.Equal(t, "Stored", record.Resolved.Name, "stored entity is left untouched")
}

func TestConflictResolver_Errors(t *testing.T) {
	resolver := NewConflictResolver(nil)
	now := time.Now()

	_, err := resolver.Resolve(nil, nil, StrategyTimestampWins)
	assert.ErrorIs(t, err, ErrNilIncomingEntity)

	_, err = resolver.Resolve(nil, testEntity(PlatformShopify, now), ConflictStrategy("BOGUS"))
	assert.ErrorIs(t, err, ErrInvalidStrategy)

	current := testEntity(PlatformShopify, now)
	other := testEntity(PlatformShopify, now)
	other.ExternalID = "ext-2"
	_, err = resolver.Resolve(current, other, StrategyTimestampWins)
	assert.ErrorIs(t, err, ErrKeyMismatch)
}
