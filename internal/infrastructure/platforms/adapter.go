// Package platforms holds the per-platform adapters that translate native
// webhook payloads and API records into unified entities. Adapters are pure
// translators: no I/O, no persistence, no signature checks.
package platforms

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/syncbridge/backend/internal/domain/unified"
)

var (
	// ErrAdapterNotRegistered indicates no adapter handles the platform
	ErrAdapterNotRegistered = errors.New("platforms: no adapter registered for platform")
	// ErrUnsupportedEvent indicates an event the platform emits but the
	// pipeline does not track; callers acknowledge and skip
	ErrUnsupportedEvent = errors.New("platforms: unsupported event type")
	// ErrMalformedPayload indicates a payload the adapter cannot decode
	ErrMalformedPayload = errors.New("platforms: malformed payload")
)

// ---------------------------------------------------------------------------
// Adapter
// ---------------------------------------------------------------------------

// NormalizedEvent is the adapter output: a canonical event kind plus the
// unified entity the payload describes.
type NormalizedEvent struct {
	Kind   unified.EventKind
	Entity *unified.UnifiedEntity
}

// Adapter translates one platform's native formats into unified entities
type Adapter interface {
	// Platform returns the platform this adapter handles
	Platform() unified.Platform

	// ParseEvent normalizes a verified webhook payload. Payloads for event
	// types outside the tracked vocabulary return ErrUnsupportedEvent.
	ParseEvent(envelope *unified.WebhookEnvelope) (*NormalizedEvent, error)

	// ParseRecord normalizes one raw platform API record of the given type,
	// used by batch synchronization.
	ParseRecord(entityType unified.EntityType, storeID string, raw json.RawMessage) (*unified.UnifiedEntity, error)
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

// Registry resolves adapters by platform. Registration happens at startup;
// lookups are concurrent.
type Registry struct {
	mu       sync.RWMutex
	adapters map[unified.Platform]Adapter
}

// NewRegistry creates a registry pre-populated with the given adapters
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[unified.Platform]Adapter, len(adapters))}
	for _, adapter := range adapters {
		r.Register(adapter)
	}
	return r
}

// Register adds or replaces the adapter for its platform
func (r *Registry) Register(adapter Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Platform()] = adapter
}

// Get returns the adapter for a platform
func (r *Registry) Get(platform unified.Platform) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	adapter, ok := r.adapters[platform]
	if !ok {
		return nil, ErrAdapterNotRegistered
	}
	return adapter, nil
}

// Platforms returns the registered platforms
func (r *Registry) Platforms() []unified.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]unified.Platform, 0, len(r.adapters))
	for platform := range r.adapters {
		out = append(out, platform)
	}
	return out
}

// parseMoney decodes a platform money string, tolerating empty values
func parseMoney(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
