package unified

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

var (
	// Platform errors
	ErrUnknownPlatform = errors.New("unified: unknown platform")

	// Entity errors
	ErrMissingExternalID  = errors.New("unified: external ID is required")
	ErrInvalidEntityType  = errors.New("unified: invalid entity type")
	ErrInvalidStrategy    = errors.New("unified: invalid conflict strategy")
	ErrNilIncomingEntity  = errors.New("unified: incoming entity must not be nil")
	ErrKeyMismatch        = errors.New("unified: entities do not share a reconciliation key")
	ErrCategoryNotInScope = errors.New("unified: category not found in scope")
)

// ---------------------------------------------------------------------------
// Platform
// ---------------------------------------------------------------------------

// Platform identifies the external e-commerce system an entity originates
// from. The set is open: adding a platform means registering a new adapter,
// secret, and rate limits, without touching the pipeline.
type Platform string

const (
	// PlatformShopify represents Shopify stores
	PlatformShopify Platform = "SHOPIFY"
	// PlatformEcwid represents Ecwid stores
	PlatformEcwid Platform = "ECWID"
	// PlatformGumroad represents Gumroad (digital-only catalog)
	PlatformGumroad Platform = "GUMROAD"
)

// IsValid returns true if the platform is one of the supported systems
func (p Platform) IsValid() bool {
	switch p {
	case PlatformShopify, PlatformEcwid, PlatformGumroad:
		return true
	default:
		return false
	}
}

// String returns the string representation of Platform
func (p Platform) String() string {
	return string(p)
}

// ParsePlatform parses a case-insensitive platform identifier as carried in
// URL paths and headers.
func ParsePlatform(s string) (Platform, error) {
	p := Platform(strings.ToUpper(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlatform, s)
	}
	return p, nil
}

// DefaultStoreID is the sentinel store scope used for platforms that have no
// native multi-tenant identifier (Gumroad).
const DefaultStoreID = "default"

// ---------------------------------------------------------------------------
// EntityType
// ---------------------------------------------------------------------------

// EntityType identifies which logical domain record a unified entity maps to
type EntityType string

const (
	EntityTypeProduct  EntityType = "product"
	EntityTypeCustomer EntityType = "customer"
	EntityTypeOrder    EntityType = "order"
	EntityTypeCategory EntityType = "category"
	EntityTypeCoupon   EntityType = "coupon"
)

// IsValid returns true if the entity type is valid
func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeProduct, EntityTypeCustomer, EntityTypeOrder, EntityTypeCategory, EntityTypeCoupon:
		return true
	default:
		return false
	}
}

// String returns the string representation of EntityType
func (t EntityType) String() string {
	return string(t)
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status is the canonical lifecycle vocabulary all platform-native status
// strings converge to. Orders use the order states, catalog records the
// catalog states.
type Status string

const (
	// Catalog states
	StatusActive   Status = "ACTIVE"
	StatusDraft    Status = "DRAFT"
	StatusArchived Status = "ARCHIVED"

	// Order states
	StatusPending   Status = "PENDING"
	StatusPaid      Status = "PAID"
	StatusShipped   Status = "SHIPPED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusRefunded  Status = "REFUNDED"
)

// DefaultStatus returns the safe fallback status for an entity type. An
// unrecognized platform-native status maps here rather than blocking
// ingestion.
func DefaultStatus(t EntityType) Status {
	if t == EntityTypeOrder {
		return StatusPending
	}
	return StatusActive
}

// ---------------------------------------------------------------------------
// EventKind
// ---------------------------------------------------------------------------

// EventKind is the canonical event vocabulary platform-native event names
// map into.
type EventKind string

const (
	EventOrderCreated    EventKind = "ORDER_CREATED"
	EventOrderUpdated    EventKind = "ORDER_UPDATED"
	EventOrderPaid       EventKind = "ORDER_PAID"
	EventOrderCancelled  EventKind = "ORDER_CANCELLED"
	EventProductCreated  EventKind = "PRODUCT_CREATED"
	EventProductUpdated  EventKind = "PRODUCT_UPDATED"
	EventProductDeleted  EventKind = "PRODUCT_DELETED"
	EventCustomerCreated EventKind = "CUSTOMER_CREATED"
	EventCustomerUpdated EventKind = "CUSTOMER_UPDATED"
	EventCouponCreated   EventKind = "COUPON_CREATED"
	EventCategoryCreated EventKind = "CATEGORY_CREATED"
	EventCategoryUpdated EventKind = "CATEGORY_UPDATED"
)

// EntityType returns the entity type an event kind operates on
func (k EventKind) EntityType() EntityType {
	switch k {
	case EventOrderCreated, EventOrderUpdated, EventOrderPaid, EventOrderCancelled:
		return EntityTypeOrder
	case EventProductCreated, EventProductUpdated, EventProductDeleted:
		return EntityTypeProduct
	case EventCustomerCreated, EventCustomerUpdated:
		return EntityTypeCustomer
	case EventCouponCreated:
		return EntityTypeCoupon
	case EventCategoryCreated, EventCategoryUpdated:
		return EntityTypeCategory
	default:
		return ""
	}
}

// ---------------------------------------------------------------------------
// EntityKey
// ---------------------------------------------------------------------------

// EntityKey is the reconciliation key: (platform, storeId, externalId,
// entityType) uniquely identifies one logical entity across updates.
type EntityKey struct {
	Platform   Platform   `json:"platform"`
	StoreID    string     `json:"store_id"`
	ExternalID string     `json:"external_id"`
	EntityType EntityType `json:"entity_type"`
}

// String renders the key in a stable form usable as a lock/map key
func (k EntityKey) String() string {
	return string(k.Platform) + "|" + k.StoreID + "|" + k.ExternalID + "|" + string(k.EntityType)
}

// Validate checks the key identifies a single logical entity. Violations
// are collected and reported together so a caller fixing a bad record sees
// every problem at once.
func (k EntityKey) Validate() error {
	var errs []error
	if !k.Platform.IsValid() {
		errs = append(errs, ErrUnknownPlatform)
	}
	if k.ExternalID == "" {
		errs = append(errs, ErrMissingExternalID)
	}
	if !k.EntityType.IsValid() {
		errs = append(errs, ErrInvalidEntityType)
	}
	return errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// UnifiedEntity
// ---------------------------------------------------------------------------

// UnifiedEntity is the platform-agnostic record all adapters converge to.
// Platform-specific extras that have no unified field are preserved in
// Metadata.
type UnifiedEntity struct {
	// Platform identifies the origin system; immutable once assigned
	Platform Platform `json:"platform"`
	// ExternalID is the platform-native identifier
	ExternalID string `json:"external_id"`
	// StoreID is the optional multi-tenant scope (DefaultStoreID when the
	// platform has none)
	StoreID string `json:"store_id"`
	// EntityType is the logical record kind
	EntityType EntityType `json:"entity_type"`

	// Name is the display name (preferred-locale selection for platforms
	// carrying multi-language fields)
	Name string `json:"name"`
	// Description is the long-form description
	Description string `json:"description,omitempty"`
	// Status is the canonical lifecycle status
	Status Status `json:"status"`
	// Price is the unit/total price depending on entity type
	Price decimal.Decimal `json:"price"`
	// Currency is the ISO currency code
	Currency string `json:"currency,omitempty"`
	// Email is the contact address for customers
	Email string `json:"email,omitempty"`
	// DiscountPercent is the coupon discount on a 0-100 scale
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	// RequiresShipping indicates physical fulfillment
	RequiresShipping bool `json:"requires_shipping"`
	// Weight is the shipment weight in grams
	Weight decimal.Decimal `json:"weight"`

	// Metadata preserves platform-specific extras (full multi-language maps,
	// raw status strings, platform object fields)
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the entity was created on the platform
	CreatedAt time.Time `json:"created_at"`
	// UpdatedAt is the platform-reported last modification time; drives
	// TIMESTAMP_WINS conflict resolution
	UpdatedAt time.Time `json:"updated_at"`
}

// Key returns the reconciliation key for this entity
func (e *UnifiedEntity) Key() EntityKey {
	return EntityKey{
		Platform:   e.Platform,
		StoreID:    e.StoreID,
		ExternalID: e.ExternalID,
		EntityType: e.EntityType,
	}
}

// Validate checks the entity carries a usable reconciliation key
func (e *UnifiedEntity) Validate() error {
	return e.Key().Validate()
}

// Clone returns a deep copy; the metadata map is copied so resolver output
// never aliases resolver input.
func (e *UnifiedEntity) Clone() *UnifiedEntity {
	if e == nil {
		return nil
	}
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// ---------------------------------------------------------------------------
// WebhookEnvelope
// ---------------------------------------------------------------------------

// WebhookEnvelope wraps one inbound change notification exactly as received.
// RawBody keeps the exact bytes because signatures are computed over raw
// bytes, not re-serialized JSON. Envelopes are never persisted verbatim.
type WebhookEnvelope struct {
	// Platform is the origin system, resolved from the request path
	Platform Platform
	// Signature is the transport-supplied signature or token (may be empty)
	Signature string
	// RawBody is the payload exactly as received
	RawBody []byte
	// Headers carries the platform-relevant request headers
	Headers map[string]string
	// SourceID identifies the sender for rate limiting (store scope when
	// available, else source IP)
	SourceID string
	// ReceivedAt is when the transport layer accepted the request
	ReceivedAt time.Time
}
