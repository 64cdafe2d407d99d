package platforms

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/syncbridge/backend/internal/domain/unified"
)

// ecwidEvents maps Ecwid event types to the canonical vocabulary
var ecwidEvents = map[string]unified.EventKind{
	"order.created":    unified.EventOrderCreated,
	"order.updated":    unified.EventOrderUpdated,
	"order.paid":       unified.EventOrderPaid,
	"product.created":  unified.EventProductCreated,
	"product.updated":  unified.EventProductUpdated,
	"product.deleted":  unified.EventProductDeleted,
	"customer.created": unified.EventCustomerCreated,
	"customer.updated": unified.EventCustomerUpdated,
	"category.created": unified.EventCategoryCreated,
	"category.updated": unified.EventCategoryUpdated,
	"coupon.created":   unified.EventCouponCreated,
}

// EcwidAdapter normalizes Ecwid webhook payloads and API records. Ecwid
// carries the event type and numeric store ID inside the body, weights in
// kilograms, timestamps as unix seconds, and display names as locale-keyed
// translation maps.
type EcwidAdapter struct {
	locales *LocalePicker
}

// NewEcwidAdapter creates the Ecwid adapter with the given locale preference
func NewEcwidAdapter(locales *LocalePicker) *EcwidAdapter {
	if locales == nil {
		locales = NewLocalePicker()
	}
	return &EcwidAdapter{locales: locales}
}

var _ Adapter = (*EcwidAdapter)(nil)

// Platform implements Adapter
func (a *EcwidAdapter) Platform() unified.Platform {
	return unified.PlatformEcwid
}

// ecwidEnvelope is the outer webhook body
type ecwidEnvelope struct {
	EventID   string          `json:"eventId"`
	EventType string          `json:"eventType"`
	StoreID   int64           `json:"storeId"`
	EntityID  int64           `json:"entityId"`
	Data      json.RawMessage `json:"data"`
}

// ParseEvent implements Adapter. The event type and store scope travel in
// the body rather than in headers.
func (a *EcwidAdapter) ParseEvent(envelope *unified.WebhookEnvelope) (*NormalizedEvent, error) {
	var body ecwidEnvelope
	if err := json.Unmarshal(envelope.RawBody, &body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	kind, ok := ecwidEvents[body.EventType]
	if !ok {
		return nil, fmt.Errorf("%w: ecwid event %q", ErrUnsupportedEvent, body.EventType)
	}
	if body.StoreID == 0 {
		return nil, fmt.Errorf("%w: storeId missing", ErrMalformedPayload)
	}
	storeID := strconv.FormatInt(body.StoreID, 10)

	// Deletion notifications carry only the entity ID; synthesize an
	// archived tombstone so the stored record is retired, not dropped.
	if kind == unified.EventProductDeleted && len(body.Data) == 0 {
		if body.EntityID == 0 {
			return nil, fmt.Errorf("%w: entityId missing", ErrMalformedPayload)
		}
		return &NormalizedEvent{Kind: kind, Entity: &unified.UnifiedEntity{
			Platform:   unified.PlatformEcwid,
			ExternalID: strconv.FormatInt(body.EntityID, 10),
			StoreID:    storeID,
			EntityType: unified.EntityTypeProduct,
			Status:     unified.StatusArchived,
			UpdatedAt:  envelope.ReceivedAt,
		}}, nil
	}

	entity, err := a.ParseRecord(kind.EntityType(), storeID, body.Data)
	if err != nil {
		return nil, err
	}
	if kind == unified.EventProductDeleted {
		entity.Status = unified.StatusArchived
	}
	return &NormalizedEvent{Kind: kind, Entity: entity}, nil
}

// ParseRecord implements Adapter
func (a *EcwidAdapter) ParseRecord(entityType unified.EntityType, storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	switch entityType {
	case unified.EntityTypeProduct:
		return a.parseProduct(storeID, raw)
	case unified.EntityTypeOrder:
		return a.parseOrder(storeID, raw)
	case unified.EntityTypeCustomer:
		return a.parseCustomer(storeID, raw)
	case unified.EntityTypeCategory:
		return a.parseCategory(storeID, raw)
	case unified.EntityTypeCoupon:
		return a.parseCoupon(storeID, raw)
	default:
		return nil, fmt.Errorf("%w: %s", unified.ErrInvalidEntityType, entityType)
	}
}

// ---------------------------------------------------------------------------
// Payload shapes
// ---------------------------------------------------------------------------

type ecwidProduct struct {
	ID                    int64             `json:"id"`
	Name                  string            `json:"name"`
	NameTranslated        map[string]string `json:"nameTranslated"`
	Description           string            `json:"description"`
	DescriptionTranslated map[string]string `json:"descriptionTranslated"`
	Price                 float64           `json:"price"`
	Enabled               bool              `json:"enabled"`
	Weight                float64           `json:"weight"`
	CreateTimestamp       int64             `json:"createTimestamp"`
	UpdateTimestamp       int64             `json:"updateTimestamp"`
}

type ecwidOrder struct {
	ID                int64   `json:"id"`
	Email             string  `json:"email"`
	Total             float64 `json:"total"`
	Currency          string  `json:"currency"`
	PaymentStatus     string  `json:"paymentStatus"`
	FulfillmentStatus string  `json:"fulfillmentStatus"`
	CreateTimestamp   int64   `json:"createTimestamp"`
	UpdateTimestamp   int64   `json:"updateTimestamp"`
}

type ecwidCustomer struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	RegisteredDate  int64  `json:"registered"`
	UpdateTimestamp int64  `json:"updateTimestamp"`
}

type ecwidCategory struct {
	ID              int64             `json:"id"`
	Name            string            `json:"name"`
	NameTranslated  map[string]string `json:"nameTranslated"`
	ParentID        int64             `json:"parentId"`
	OrderBy         int               `json:"orderBy"`
	ProductCount    int               `json:"productCount"`
	Enabled         bool              `json:"enabled"`
	UpdateTimestamp int64             `json:"updateTimestamp"`
}

type ecwidCoupon struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Code            string  `json:"code"`
	Discount        float64 `json:"discount"`
	DiscountType    string  `json:"discountType"`
	Status          string  `json:"status"`
	UpdateTimestamp int64   `json:"updateTimestamp"`
}

// ---------------------------------------------------------------------------
// Normalizers
// ---------------------------------------------------------------------------

func (a *EcwidAdapter) parseProduct(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var p ecwidProduct
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.ID == 0 {
		return nil, fmt.Errorf("%w: product id missing", ErrMalformedPayload)
	}

	status := unified.StatusActive
	if !p.Enabled {
		status = unified.StatusDraft
	}

	metadata := map[string]any{}
	if len(p.NameTranslated) > 0 {
		metadata["nameTranslated"] = p.NameTranslated
	}
	if len(p.DescriptionTranslated) > 0 {
		metadata["descriptionTranslated"] = p.DescriptionTranslated
	}

	return &unified.UnifiedEntity{
		Platform:         unified.PlatformEcwid,
		ExternalID:       strconv.FormatInt(p.ID, 10),
		StoreID:          storeID,
		EntityType:       unified.EntityTypeProduct,
		Name:             a.locales.Pick(p.NameTranslated, p.Name),
		Description:      a.locales.Pick(p.DescriptionTranslated, p.Description),
		Status:           status,
		Price:            decimal.NewFromFloat(p.Price),
		RequiresShipping: p.Weight > 0,
		Weight:           kilogramsToGrams(p.Weight),
		Metadata:         metadata,
		CreatedAt:        unixTime(p.CreateTimestamp),
		UpdatedAt:        unixTime(p.UpdateTimestamp),
	}, nil
}

func (a *EcwidAdapter) parseOrder(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var o ecwidOrder
	if err := json.Unmarshal(raw, &o); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if o.ID == 0 {
		return nil, fmt.Errorf("%w: order id missing", ErrMalformedPayload)
	}

	return &unified.UnifiedEntity{
		Platform:   unified.PlatformEcwid,
		ExternalID: strconv.FormatInt(o.ID, 10),
		StoreID:    storeID,
		EntityType: unified.EntityTypeOrder,
		Name:       "Order " + strconv.FormatInt(o.ID, 10),
		Status:     ecwidOrderStatus(o.PaymentStatus, o.FulfillmentStatus),
		Price:      decimal.NewFromFloat(o.Total),
		Currency:   o.Currency,
		Email:      o.Email,
		Metadata: map[string]any{
			"paymentStatus":     o.PaymentStatus,
			"fulfillmentStatus": o.FulfillmentStatus,
		},
		CreatedAt: unixTime(o.CreateTimestamp),
		UpdatedAt: unixTime(o.UpdateTimestamp),
	}, nil
}

func (a *EcwidAdapter) parseCustomer(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var c ecwidCustomer
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if c.ID == 0 {
		return nil, fmt.Errorf("%w: customer id missing", ErrMalformedPayload)
	}

	return &unified.UnifiedEntity{
		Platform:   unified.PlatformEcwid,
		ExternalID: strconv.FormatInt(c.ID, 10),
		StoreID:    storeID,
		EntityType: unified.EntityTypeCustomer,
		Name:       c.Name,
		Status:     unified.StatusActive,
		Email:      c.Email,
		CreatedAt:  unixTime(c.RegisteredDate),
		UpdatedAt:  unixTime(c.UpdateTimestamp),
	}, nil
}

func (a *EcwidAdapter) parseCategory(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var c ecwidCategory
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if c.ID == 0 {
		return nil, fmt.Errorf("%w: category id missing", ErrMalformedPayload)
	}

	status := unified.StatusActive
	if !c.Enabled {
		status = unified.StatusDraft
	}

	metadata := map[string]any{}
	if len(c.NameTranslated) > 0 {
		metadata["nameTranslated"] = c.NameTranslated
	}

	category := unified.Category{
		UnifiedEntity: unified.UnifiedEntity{
			Platform:   unified.PlatformEcwid,
			ExternalID: strconv.FormatInt(c.ID, 10),
			StoreID:    storeID,
			EntityType: unified.EntityTypeCategory,
			Name:       a.locales.Pick(c.NameTranslated, c.Name),
			Status:     status,
			Metadata:   metadata,
			UpdatedAt:  unixTime(c.UpdateTimestamp),
		},
		MenuOrder:    c.OrderBy,
		ProductCount: c.ProductCount,
	}
	// parentId 0 means root on Ecwid.
	if c.ParentID != 0 {
		parent := strconv.FormatInt(c.ParentID, 10)
		category.ParentID = &parent
	}
	return category.AsEntity(), nil
}

func (a *EcwidAdapter) parseCoupon(storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var c ecwidCoupon
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if c.ID == 0 {
		return nil, fmt.Errorf("%w: coupon id missing", ErrMalformedPayload)
	}

	entity := &unified.UnifiedEntity{
		Platform:   unified.PlatformEcwid,
		ExternalID: strconv.FormatInt(c.ID, 10),
		StoreID:    storeID,
		EntityType: unified.EntityTypeCoupon,
		Name:       c.Name,
		Status:     unified.StatusActive,
		Metadata: map[string]any{
			"code":         c.Code,
			"discountType": c.DiscountType,
		},
		UpdatedAt: unixTime(c.UpdateTimestamp),
	}
	if c.Status == "DISABLED" || c.Status == "EXPIRED" {
		entity.Status = unified.StatusArchived
	}
	switch c.DiscountType {
	case "PERCENT":
		entity.DiscountPercent = decimal.NewFromFloat(c.Discount)
	case "ABS":
		entity.Price = decimal.NewFromFloat(c.Discount)
	}
	return entity, nil
}

func ecwidOrderStatus(payment, fulfillment string) unified.Status {
	switch fulfillment {
	case "SHIPPED":
		return unified.StatusShipped
	case "DELIVERED":
		return unified.StatusCompleted
	}
	switch payment {
	case "PAID":
		return unified.StatusPaid
	case "CANCELLED":
		return unified.StatusCancelled
	case "REFUNDED":
		return unified.StatusRefunded
	default:
		return unified.DefaultStatus(unified.EntityTypeOrder)
	}
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

// kilogramsToGrams converts Ecwid's kilogram weights to the unified gram
// scale without float drift.
func kilogramsToGrams(kg float64) decimal.Decimal {
	return decimal.NewFromFloat(kg).Mul(decimal.NewFromInt(1000))
}
