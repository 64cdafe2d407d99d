package platforms

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/syncbridge/backend/internal/domain/unified"
)

// GumroadAdapter normalizes Gumroad pings and API records. Gumroad is a
// digital-only marketplace with no store scope: everything lands under the
// default store, nothing requires shipping, and prices arrive in cents.
// Sale pings are form-encoded; API records are JSON.
type GumroadAdapter struct{}

// NewGumroadAdapter creates the Gumroad adapter
func NewGumroadAdapter() *GumroadAdapter {
	return &GumroadAdapter{}
}

var _ Adapter = (*GumroadAdapter)(nil)

// Platform implements Adapter
func (a *GumroadAdapter) Platform() unified.Platform {
	return unified.PlatformGumroad
}

// ParseEvent implements Adapter. Gumroad only pings about sales; the kind is
// derived from the refund and cancellation flags on the form body.
func (a *GumroadAdapter) ParseEvent(envelope *unified.WebhookEnvelope) (*NormalizedEvent, error) {
	form, err := url.ParseQuery(string(envelope.RawBody))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	saleID := form.Get("sale_id")
	if saleID == "" {
		return nil, fmt.Errorf("%w: gumroad ping without sale_id", ErrUnsupportedEvent)
	}

	kind := unified.EventOrderCreated
	status := unified.StatusPaid
	switch {
	case form.Get("refunded") == "true":
		kind = unified.EventOrderUpdated
		status = unified.StatusRefunded
	case form.Get("cancelled") == "true":
		kind = unified.EventOrderCancelled
		status = unified.StatusCancelled
	}

	saleAt := parseGumroadTime(form.Get("sale_timestamp"))
	if saleAt.IsZero() {
		saleAt = envelope.ReceivedAt
	}

	entity := &unified.UnifiedEntity{
		Platform:   unified.PlatformGumroad,
		ExternalID: saleID,
		StoreID:    unified.DefaultStoreID,
		EntityType: unified.EntityTypeOrder,
		Name:       form.Get("product_name"),
		Status:     status,
		Price:      centsToAmount(form.Get("price")),
		Currency:   form.Get("currency"),
		Email:      form.Get("email"),
		Metadata: map[string]any{
			"productId":   form.Get("product_id"),
			"purchaserId": form.Get("purchaser_id"),
			"offerCode":   form.Get("offer_code"),
		},
		CreatedAt: saleAt,
		UpdatedAt: envelope.ReceivedAt,
	}
	return &NormalizedEvent{Kind: kind, Entity: entity}, nil
}

// ParseRecord implements Adapter. Records come from the Gumroad REST API as
// JSON; only the catalog types exist there.
func (a *GumroadAdapter) ParseRecord(entityType unified.EntityType, _ string, raw json.RawMessage) (*unified.UnifiedEntity, error) {
	switch entityType {
	case unified.EntityTypeProduct:
		return a.parseProduct(raw)
	case unified.EntityTypeCoupon:
		return a.parseOfferCode(raw)
	default:
		return nil, fmt.Errorf("%w: gumroad has no %s records", unified.ErrInvalidEntityType, entityType)
	}
}

// ---------------------------------------------------------------------------
// API record shapes
// ---------------------------------------------------------------------------

type gumroadProduct struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Currency    string    `json:"currency"`
	Published   bool      `json:"published"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type gumroadOfferCode struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	PercentOff    float64 `json:"percent_off"`
	AmountCents   int64   `json:"amount_cents"`
	MaxPurchases  int     `json:"max_purchase_count"`
	UniversalCode bool    `json:"universal"`
}

func (a *GumroadAdapter) parseProduct(raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var p gumroadProduct
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if p.ID == "" {
		return nil, fmt.Errorf("%w: product id missing", ErrMalformedPayload)
	}

	status := unified.StatusActive
	if !p.Published {
		status = unified.StatusDraft
	}

	// Digital goods only: shipping stays off and weight stays zero no
	// matter what the payload claims.
	return &unified.UnifiedEntity{
		Platform:         unified.PlatformGumroad,
		ExternalID:       p.ID,
		StoreID:          unified.DefaultStoreID,
		EntityType:       unified.EntityTypeProduct,
		Name:             p.Name,
		Description:      p.Description,
		Status:           status,
		Price:            decimal.New(p.Price, -2),
		Currency:         p.Currency,
		RequiresShipping: false,
		UpdatedAt:        p.UpdatedAt,
	}, nil
}

func (a *GumroadAdapter) parseOfferCode(raw json.RawMessage) (*unified.UnifiedEntity, error) {
	var c gumroadOfferCode
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if c.ID == "" {
		return nil, fmt.Errorf("%w: offer code id missing", ErrMalformedPayload)
	}

	entity := &unified.UnifiedEntity{
		Platform:   unified.PlatformGumroad,
		ExternalID: c.ID,
		StoreID:    unified.DefaultStoreID,
		EntityType: unified.EntityTypeCoupon,
		Name:       c.Name,
		Status:     unified.StatusActive,
		Metadata: map[string]any{
			"universal":        c.UniversalCode,
			"maxPurchaseCount": c.MaxPurchases,
		},
	}
	switch {
	case c.PercentOff > 0:
		entity.DiscountPercent = normalizePercent(c.PercentOff)
	case c.AmountCents > 0:
		entity.Price = decimal.New(c.AmountCents, -2)
	}
	return entity, nil
}

// normalizePercent maps Gumroad's two discount notations onto the 0-100
// scale: 0.15 means fifteen percent, 15 already is fifteen percent.
func normalizePercent(v float64) decimal.Decimal {
	d := decimal.NewFromFloat(v)
	if d.LessThanOrEqual(decimal.NewFromInt(1)) {
		return d.Mul(decimal.NewFromInt(100))
	}
	return d
}

func centsToAmount(raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return d.Div(decimal.NewFromInt(100))
}

func parseGumroadTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
