package platforms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/syncbridge/backend/internal/domain/unified"
)

// Shopify webhook headers
const (
	shopifyTopicHeader = "X-Shopify-Topic"
	shopifyShopHeader  = "X-Shopify-Shop-Domain"
)

// shopifyTopics maps webhook topics to the canonical event vocabulary
var shopifyTopics = map[string]unified.EventKind{
	"orders/create":      unified.EventOrderCreated,
	"orders/updated":     unified.EventOrderUpdated,
	"orders/paid":        unified.EventOrderPaid,
	"orders/cancelled":   unified.EventOrderCancelled,
	"products/create":    unified.EventProductCreated,
	"products/update":    unified.EventProductUpdated,
	"products/delete":    unified.EventProductDeleted,
	"customers/create":   unified.EventCustomerCreated,
	"customers/update":   unified.EventCustomerUpdated,
	"collections/create": unified.EventCategoryCreated,
	"collections/update": unified.EventCategoryUpdated,
	"discounts/create":   unified.EventCouponCreated,
}

// ShopifyAdapter normalizes Shopify webhook payloads and REST records.
// Shopify carries the event topic and store domain in headers, identifiers
// as numeric JSON values, prices as strings, and weights in grams.
type ShopifyAdapter struct{}

// NewShopifyAdapter creates the Shopify adapter
func NewShopifyAdapter() *ShopifyAdapter {
	return &ShopifyAdapter{}
}

var _ Adapter = (*ShopifyAdapter)(nil)

// Platform implements Adapter
func (a *ShopifyAdapter) Platform() unified.Platform {
	return unified.PlatformShopify
}

// ParseEvent implements Adapter. The topic comes from the X-Shopify-Topic
// header, the store scope from X-Shopify-Shop-Domain.
func (a *ShopifyAdapter) ParseEvent(envelope *unified.WebhookEnvelope) (*NormalizedEvent, error) {
	topic := envelope.Headers[shopifyTopicHeader]
	kind, ok := shopifyTopics[strings.ToLower(topic)]
	if !ok {
		return nil, fmt.Errorf("%w: shopify topic %q", ErrUnsupportedEvent, topic)
	}

	storeID := envelope.Headers[shopifyShopHeader]
	if storeID == "" {
		storeID = unified.DefaultStoreID
	}

	entity, err := a.ParseRecord(kind.EntityType(), storeID, envelope.RawBody)
	if err != nil {
		return nil, err
	}
	if kind == unified.EventProductDeleted {
		entity.Status = unified.StatusArchived
	}
	return &NormalizedEvent{Kind: kind, Entity: entity}, nil
}

// ParseRecord implements Adapter
func (a *ShopifyAdapter) ParseRecord(entityType unified.EntityType, storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	switch entityType {
	case unified.EntityTypeProduct:
		return a.parseProduct(storeID, raw)
	case unified.EntityTypeOrder:
		return a.parseOrder(storeID, raw)
	case unified.EntityTypeCustomer:
		return a.parseCustomer(storeID, raw)
	case unified.EntityTypeCategory:
		return a.parseCollection(storeID, raw)
	case unified.EntityTypeCoupon:
		return a.parsePriceRule(storeID, raw)
	default:
		return nil, fmt.Errorf("%w: %s", unified.ErrInvalidEntityType, entityType)
	}
}

// ---------------------------------------------------------------------------
// Payload shapes
// ---------------------------------------------------------------------------

type shopifyVariant struct {
	Price            string `json:"price"`
	Grams            int64  `json:"grams"`
	RequiresShipping bool   `json:"requires_shipping"`
}

type shopifyProduct struct {
	ID        int64            `json:"id"`
	Title     string           `json:"title"`
	BodyHTML  string           `json:"body_html"`
	Vendor    string           `json:"vendor"`
	Status    string           `json:"status"`
	Variants  []shopifyVariant `json:"variants"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

type shopifyOrder struct {
	ID                int64      `json:"id"`
	Email             string     `json:"email"`
	TotalPrice        string     `json:"total_price"`
	Currency          string     `json:"currency"`
	FinancialStatus   string     `json:"financial_status"`
	FulfillmentStatus string     `json:"fulfillment_status"`
	TotalWeight       int64      `json:"total_weight"`
	CancelledAt       *time.Time `json:"cancelled_at"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

type shopifyCustomer struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	State     string    `json:"state"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type shopifyCollection struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	BodyHTML  string    `json:"body_html"`
	SortOrder string    `json:"sort_order"`
	UpdatedAt time.Time `json:"updated_at"`
}

type shopifyPriceRule struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	ValueType string    `json:"value_type"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ---------------------------------------------------------------------------
// Normalizers
// ---------------------------------------------------------------------------

func (a *ShopifyAdapter) parseProduct(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var p shopifyProduct
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.ID == 0 {
		return nil, fmt.Errorf("%w: product id missing", ErrMalformedPayload)
	}

	entity := &unified.UnifiedEntity{
		Platform:    unified.PlatformShopify,
		ExternalID:  strconv.FormatInt(p.ID, 10),
		StoreID:     storeID,
		EntityType:  unified.EntityTypeProduct,
		Name:        p.Title,
		Description: p.BodyHTML,
		Status:      shopifyProductStatus(p.Status),
		Metadata: map[string]any{
			"vendor":    p.Vendor,
			"rawStatus": p.Status,
		},
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
	if len(p.Variants) > 0 {
		v := p.Variants[0]
		entity.Price = parseMoney(v.Price)
		entity.RequiresShipping = v.RequiresShipping
		entity.Weight = decimal.NewFromInt(v.Grams)
	}
	return entity, nil
}

func (a *ShopifyAdapter) parseOrder(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var o shopifyOrder
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if o.ID == 0 {
		return nil, fmt.Errorf("%w: order id missing", ErrMalformedPayload)
	}

	return &unified.UnifiedEntity{
		Platform:         unified.PlatformShopify,
		ExternalID:       strconv.FormatInt(o.ID, 10),
		StoreID:          storeID,
		EntityType:       unified.EntityTypeOrder,
		Name:             "Order " + strconv.FormatInt(o.ID, 10),
		Status:           shopifyOrderStatus(&o),
		Price:            parseMoney(o.TotalPrice),
		Currency:         o.Currency,
		Email:            o.Email,
		RequiresShipping: o.TotalWeight > 0,
		Weight:           decimal.NewFromInt(o.TotalWeight),
		Metadata: map[string]any{
			"financialStatus":   o.FinancialStatus,
			"fulfillmentStatus": o.FulfillmentStatus,
		},
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}, nil
}

func (a *ShopifyAdapter) parseCustomer(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var c shopifyCustomer
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if c.ID == 0 {
		return nil, fmt.Errorf("%w: customer id missing", ErrMalformedPayload)
	}

	return &unified.UnifiedEntity{
		Platform:   unified.PlatformShopify,
		ExternalID: strconv.FormatInt(c.ID, 10),
		StoreID:    storeID,
		EntityType: unified.EntityTypeCustomer,
		Name:       strings.TrimSpace(c.FirstName + " " + c.LastName),
		Status:     unified.StatusActive,
		Email:      c.Email,
		Metadata:   map[string]any{"state": c.State},
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}, nil
}

// parseCollection maps a Shopify collection to a category. Collections are
// flat, so every one lands as a root in the hierarchy.
func (a *ShopifyAdapter) parseCollection(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var c shopifyCollection
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if c.ID == 0 {
		return nil, fmt.Errorf("%w: collection id missing", ErrMalformedPayload)
	}

	category := unified.Category{
		UnifiedEntity: unified.UnifiedEntity{
			Platform:    unified.PlatformShopify,
			ExternalID:  strconv.FormatInt(c.ID, 10),
			StoreID:     storeID,
			EntityType:  unified.EntityTypeCategory,
			Name:        c.Title,
			Description: c.BodyHTML,
			Status:      unified.StatusActive,
			Metadata:    map[string]any{"sortOrder": c.SortOrder},
			UpdatedAt:   c.UpdatedAt,
		},
	}
	return category.AsEntity(), nil
}

func (a *ShopifyAdapter) parsePriceRule(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var r shopifyPriceRule
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if r.ID == 0 {
		return nil, fmt.Errorf("%w: price rule id missing", ErrMalformedPayload)
	}

	entity := &unified.UnifiedEntity{
		Platform:   unified.PlatformShopify,
		ExternalID: strconv.FormatInt(r.ID, 10),
		StoreID:    storeID,
		EntityType: unified.EntityTypeCoupon,
		Name:       r.Title,
		Status:     unified.StatusActive,
		Metadata:   map[string]any{"valueType": r.ValueType},
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	// Shopify stores percentage values as negative strings ("-15.0").
	if r.ValueType == "percentage" {
		entity.DiscountPercent = parseMoney(r.Value).Abs()
	}
	return entity, nil
}

func shopifyProductStatus(raw string) unified.Status {
	switch raw {
	case "active":
		return unified.StatusActive
	case "draft":
		return unified.StatusDraft
	case "archived":
		return unified.StatusArchived
	default:
		return unified.DefaultStatus(unified.EntityTypeProduct)
	}
}

func shopifyOrderStatus(o *shopifyOrder) unified.Status {
	if o.CancelledAt != nil {
		return unified.StatusCancelled
	}
	switch o.FinancialStatus {
	case "refunded":
		return unified.StatusRefunded
	case "paid", "partially_refunded":
		if o.FulfillmentStatus == "fulfilled" {
			return unified.StatusShipped
		}
		return unified.StatusPaid
	default:
		return unified.DefaultStatus(unified.EntityTypeOrder)
	}
}
