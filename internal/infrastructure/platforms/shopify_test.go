package platforms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncbridge/backend/internal/domain/unified"
)

func shopifyEnvelope(topic string, body string) *unified.WebhookEnvelope {
	return &unified.WebhookEnvelope{
		Platform: unified.PlatformShopify,
		RawBody:  []byte(body),
		Headers: map[string]string{
			"X-Shopify-Topic":       topic,
			"X-Shopify-Shop-Domain": "acme.myshopify.com",
		},
		ReceivedAt: time.Now(),
	}
}

func TestShopifyAdapter_ProductCreate(t *testing.T) {
	adapter := NewShopifyAdapter()

	event, err := adapter.ParseEvent(shopifyEnvelope("products/create", `{
		"id": 632910392,
		"title": "IPod Nano",
		"body_html": "<p>Green</p>",
		"vendor": "Apple",
		"status": "active",
		"created_at": "2025-05-01T10:00:00Z",
		"updated_at": "2025-05-02T10:00:00Z",
		"variants": [{"price": "199.00", "grams": 200, "requires_shipping": true}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, unified.EventProductCreated, event.Kind)
	entity := event.Entity
	assert.Equal(t, unified.PlatformShopify, entity.Platform)
	assert.Equal(t, "632910392", entity.ExternalID)
	assert.Equal(t, "acme.myshopify.com", entity.StoreID)
	assert.Equal(t, unified.EntityTypeProduct, entity.EntityType)
	assert.Equal(t, "IPod Nano", entity.Name)
	assert.Equal(t, unified.StatusActive, entity.Status)
	assert.Equal(t, "199", entity.Price.String())
	assert.True(t, entity.RequiresShipping)
	assert.Equal(t, "200", entity.Weight.String())
	assert.Equal(t, "Apple", entity.Metadata["vendor"])
}

func TestShopifyAdapter_OrderStatusMapping(t *testing.T) {
	adapter := NewShopifyAdapter()

	tests := []struct {
		name string
		body string
		want unified.Status
	}{
		{
			name: "paid unfulfilled",
			body: `{"id": 1, "financial_status": "paid", "total_price": "10.00", "currency": "USD", "updated_at": "2025-05-01T10:00:00Z"}`,
			want: unified.StatusPaid,
		},
		{
			name: "paid fulfilled",
			body: `{"id": 2, "financial_status": "paid", "fulfillment_status": "fulfilled", "updated_at": "2025-05-01T10:00:00Z"}`,
			want: unified.StatusShipped,
		},
		{
			name: "refunded",
			body: `{"id": 3, "financial_status": "refunded", "updated_at": "2025-05-01T10:00:00Z"}`,
			want: unified.StatusRefunded,
		},
		{
			name: "cancelled overrides financial status",
			body: `{"id": 4, "financial_status": "paid", "cancelled_at": "2025-05-01T11:00:00Z", "updated_at": "2025-05-01T11:00:00Z"}`,
			want: unified.StatusCancelled,
		},
		{
			name: "unknown falls back to pending",
			body: `{"id": 5, "financial_status": "authorized", "updated_at": "2025-05-01T10:00:00Z"}`,
			want: unified.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := adapter.ParseEvent(shopifyEnvelope("orders/updated", tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, event.Entity.Status)
		})
	}
}

func TestShopifyAdapter_ProductDeleteArchives(t *testing.T) {
	adapter := NewShopifyAdapter()

	event, err := adapter.ParseEvent(shopifyEnvelope("products/delete", `{"id": 9, "title": "Gone", "status": "active", "updated_at": "2025-05-01T10:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, unified.EventProductDeleted, event.Kind)
	assert.Equal(t, unified.StatusArchived, event.Entity.Status)
}

func TestShopifyAdapter_CollectionBecomesRootCategory(t *testing.T) {
	adapter := NewShopifyAdapter()

	event, err := adapter.ParseEvent(shopifyEnvelope("collections/update", `{"id": 55, "title": "Summer", "updated_at": "2025-05-01T10:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, unified.EventCategoryUpdated, event.Kind)
	category := unified.CategoryFromEntity(event.Entity)
	assert.True(t, category.IsRoot())
	assert.Equal(t, "Summer", category.Name)
}

func TestShopifyAdapter_PriceRuleDiscount(t *testing.T) {
	adapter := NewShopifyAdapter()

	event, err := adapter.ParseEvent(shopifyEnvelope("discounts/create", `{"id": 7, "title": "SUMMER15", "value_type": "percentage", "value": "-15.0", "updated_at": "2025-05-01T10:00:00Z"}`))
	require.NoError(t, err)

	assert.Equal(t, unified.EventCouponCreated, event.Kind)
	assert.Equal(t, "15", event.Entity.DiscountPercent.String())
}

func TestShopifyAdapter_UnsupportedTopic(t *testing.T) {
	adapter := NewShopifyAdapter()

	_, err := adapter.ParseEvent(shopifyEnvelope("carts/create", `{"id": 1}`))
	assert.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestShopifyAdapter_MalformedBody(t *testing.T) {
	adapter := NewShopifyAdapter()

	_, err := adapter.ParseEvent(shopifyEnvelope("orders/create", `not json`))
	assert.ErrorIs(t, err, ErrMalformedPayload)

	_, err = adapter.ParseEvent(shopifyEnvelope("orders/create", `{"email": "a@b.c"}`))
	assert.ErrorIs(t, err, ErrMalformedPayload, "missing id is malformed")
}
