package platforms

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncbridge/backend/internal/domain/unified"
)

func gumroadEnvelope(form url.Values) *unified.WebhookEnvelope {
	return &unified.WebhookEnvelope{
		Platform:   unified.PlatformGumroad,
		RawBody:    []byte(form.Encode()),
		ReceivedAt: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGumroadAdapter_SalePing(t *testing.T) {
	adapter := NewGumroadAdapter()

	event, err := adapter.ParseEvent(gumroadEnvelope(url.Values{
		"sale_id":        {"GR-123"},
		"product_id":     {"prod-9"},
		"product_name":   {"Ebook"},
		"price":          {"1500"},
		"currency":       {"usd"},
		"email":          {"buyer@example.com"},
		"sale_timestamp": {"2025-06-01T11:59:00Z"},
	}))
	require.NoError(t, err)

	assert.Equal(t, unified.EventOrderCreated, event.Kind)
	entity := event.Entity
	assert.Equal(t, "GR-123", entity.ExternalID)
	assert.Equal(t, unified.DefaultStoreID, entity.StoreID, "no native store scope")
	assert.Equal(t, unified.StatusPaid, entity.Status)
	assert.Equal(t, "15", entity.Price.String(), "cents convert to major units")
	assert.Equal(t, "buyer@example.com", entity.Email)
	assert.False(t, entity.RequiresShipping)
	assert.Equal(t, "prod-9", entity.Metadata["productId"])
}

func TestGumroadAdapter_RefundAndCancellation(t *testing.T) {
	adapter := NewGumroadAdapter()

	refund, err := adapter.ParseEvent(gumroadEnvelope(url.Values{
		"sale_id":  {"GR-1"},
		"refunded": {"true"},
	}))
	require.NoError(t, err)
	assert.Equal(t, unified.EventOrderUpdated, refund.Kind)
	assert.Equal(t, unified.StatusRefunded, refund.Entity.Status)

	cancel, err := adapter.ParseEvent(gumroadEnvelope(url.Values{
		"sale_id":   {"GR-2"},
		"cancelled": {"true"},
	}))
	require.NoError(t, err)
	assert.Equal(t, unified.EventOrderCancelled, cancel.Kind)
	assert.Equal(t, unified.StatusCancelled, cancel.Entity.Status)
}

func TestGumroadAdapter_PingWithoutSaleIsUnsupported(t *testing.T) {
	adapter := NewGumroadAdapter()

	_, err := adapter.ParseEvent(gumroadEnvelope(url.Values{"product_id": {"p"}}))
	assert.ErrorIs(t, err, ErrUnsupportedEvent)
}

func TestGumroadAdapter_ProductRecordIsDigitalOnly(t *testing.T) {
	adapter := NewGumroadAdapter()

	entity, err := adapter.ParseRecord(unified.EntityTypeProduct, "ignored", json.RawMessage(`{
		"id": "prod-9",
		"name": "Ebook",
		"price": 1999,
		"currency": "usd",
		"published": true
	}`))
	require.NoError(t, err)

	assert.Equal(t, unified.DefaultStoreID, entity.StoreID)
	assert.Equal(t, "19.99", entity.Price.String())
	assert.False(t, entity.RequiresShipping)
	assert.True(t, entity.Weight.IsZero())
}

func TestGumroadAdapter_FractionalPercentNormalizes(t *testing.T) {
	adapter := NewGumroadAdapter()

	fractional, err := adapter.ParseRecord(unified.EntityTypeCoupon, "", json.RawMessage(`{"id": "c1", "name": "Launch", "percent_off": 0.15}`))
	require.NoError(t, err)
	assert.Equal(t, "15", fractional.DiscountPercent.String())

	whole, err := adapter.ParseRecord(unified.EntityTypeCoupon, "", json.RawMessage(`{"id": "c2", "name": "Launch", "percent_off": 15}`))
	require.NoError(t, err)
	assert.Equal(t, "15", whole.DiscountPercent.String())
}

func TestGumroadAdapter_UnsupportedRecordTypes(t *testing.T) {
	adapter := NewGumroadAdapter()

	_, err := adapter.ParseRecord(unified.EntityTypeCategory, "", json.RawMessage(`{}`))
	assert.ErrorIs(t, err, unified.ErrInvalidEntityType)
}
