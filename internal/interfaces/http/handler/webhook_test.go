package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncbridge/backend/internal/application/categories"
	"github.com/syncbridge/backend/internal/application/ingestion"
	"github.com/syncbridge/backend/internal/domain/unified"
	"github.com/syncbridge/backend/internal/infrastructure/cache"
	"github.com/syncbridge/backend/internal/infrastructure/persistence"
	"github.com/syncbridge/backend/internal/infrastructure/platforms"
	"github.com/syncbridge/backend/internal/infrastructure/ratelimit"
	"github.com/syncbridge/backend/internal/infrastructure/signature"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
	"github.com/syncbridge/backend/internal/interfaces/http/router"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testServer assembles the full HTTP surface over an in-memory database
type testServer struct {
	engine   *gin.Engine
	verifier *signature.Verifier
	db       *persistence.Database
	entities *persistence.GormEntityRepository
}

func newTestServer(t *testing.T, limits map[unified.Platform]ratelimit.Limits) *testServer {
	t.Helper()

	db, err := persistence.NewSQLiteDatabase(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { _ = db.Close() })

	entities := persistence.NewGormEntityRepository(db.DB)
	conflicts := persistence.NewGormPendingConflictRepository(db.DB)
	deadLetters := persistence.NewGormDeadLetterSink(db.DB)

	verifier := signature.NewVerifier(map[unified.Platform]string{
		unified.PlatformShopify: "shopify-secret",
		unified.PlatformEcwid:   "ecwid-secret",
		unified.PlatformGumroad: "gumroad-token",
	})

	if limits == nil {
		limits = map[unified.Platform]ratelimit.Limits{}
	}
	limiter := ratelimit.NewLimiter(ratelimit.NewMemoryStore(ratelimit.SystemClock()), limits, zap.NewNop())

	pipeline := ingestion.NewPipeline(ingestion.Deps{
		Verifier:    verifier,
		Limiter:     limiter,
		Adapters:    platforms.NewRegistry(platforms.NewShopifyAdapter(), platforms.NewEcwidAdapter(nil), platforms.NewGumroadAdapter()),
		Resolver:    unified.NewConflictResolver([]unified.Platform{unified.PlatformShopify, unified.PlatformEcwid, unified.PlatformGumroad}),
		Entities:    entities,
		Conflicts:   conflicts,
		DeadLetters: deadLetters,
		Digests:     cache.NewInMemoryIdempotencyStore(),
		Logger:      zap.NewNop(),
	}, ingestion.Options{})

	engine := gin.New()
	engine.Use(middleware.RequestID(zap.NewNop()), middleware.BodyLimit(1<<20))

	router.NewRouter(engine).
		RegisterRoot(NewWebhookHandler(pipeline), NewSystemHandler(db)).
		Register(
			NewSyncHandler(pipeline),
			NewCategoryHandler(categories.NewService(entities, nil)),
			NewAdminHandler(conflicts, deadLetters),
		).
		Setup()

	return &testServer{engine: engine, verifier: verifier, db: db, entities: entities}
}

func (s *testServer) post(path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func shopifyProductBody(id int64, title string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": %d,
		"title": %q,
		"status": "active",
		"variants": [{"price": "25.00", "grams": 250, "requires_shipping": true}],
		"created_at": "2025-06-01T00:00:00Z",
		"updated_at": %q
	}`, id, title, time.Now().UTC().Format(time.RFC3339)))
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var envelope struct {
		Success bool           `json:"success"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, rec.Body.String())
	return envelope.Data
}

func TestWebhook_ShopifyProductCreated(t *testing.T) {
	server := newTestServer(t, nil)
	body := shopifyProductBody(42, "Widget")
	sig, ok := server.verifier.Sign(unified.PlatformShopify, body)
	require.True(t, ok)

	rec := server.post("/webhooks/shopify", body, map[string]string{
		"X-Shopify-Hmac-Sha256": sig,
		"X-Shopify-Topic":       "products/create",
		"X-Shopify-Shop-Domain": "acme.myshopify.com",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, "PROCESSED", data["outcome"])
	assert.Equal(t, "PRODUCT_CREATED", data["event"])

	stored, err := server.entities.FindByKey(context.Background(), unified.EntityKey{
		Platform:   unified.PlatformShopify,
		StoreID:    "acme.myshopify.com",
		ExternalID: "42",
		EntityType: unified.EntityTypeProduct,
	})
	require.NoError(t, err)
	assert.Equal(t, "Widget", stored.Name)
}

func TestWebhook_InvalidSignatureIs401(t *testing.T) {
	server := newTestServer(t, nil)
	body := shopifyProductBody(42, "Widget")

	rec := server.post("/webhooks/shopify", body, map[string]string{
		"X-Shopify-Hmac-Sha256": "Zm9yZ2VkLXNpZ25hdHVyZQ==",
		"X-Shopify-Topic":       "products/create",
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "AUTHENTICATION_FAILED")
}

func TestWebhook_UnknownPlatformIs400(t *testing.T) {
	server := newTestServer(t, nil)
	rec := server.post("/webhooks/etsy", []byte(`{}`), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhook_UnsupportedTopicAcknowledged(t *testing.T) {
	server := newTestServer(t, nil)
	body := shopifyProductBody(42, "Widget")
	sig, _ := server.verifier.Sign(unified.PlatformShopify, body)

	rec := server.post("/webhooks/shopify", body, map[string]string{
		"X-Shopify-Hmac-Sha256": sig,
		"X-Shopify-Topic":       "fulfillments/create",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.Equal(t, "SKIPPED", data["outcome"])
}

func TestWebhook_RateLimitSets429AndRetryAfter(t *testing.T) {
	server := newTestServer(t, map[unified.Platform]ratelimit.Limits{
		unified.PlatformShopify: {PerMinute: 1, PerHour: 100, Burst: 0},
	})
	body := shopifyProductBody(42, "Widget")
	sig, _ := server.verifier.Sign(unified.PlatformShopify, body)
	headers := map[string]string{
		"X-Shopify-Hmac-Sha256": sig,
		"X-Shopify-Topic":       "products/create",
		"X-Shopify-Shop-Domain": "acme.myshopify.com",
	}

	first := server.post("/webhooks/shopify", body, headers)
	require.Equal(t, http.StatusOK, first.Code)

	second := server.post("/webhooks/shopify", body, headers)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")
}

func TestWebhook_GumroadSalePing(t *testing.T) {
	server := newTestServer(t, nil)
	form := url.Values{}
	form.Set("sale_id", "sale-123")
	form.Set("product_name", "E-Book")
	form.Set("price", "1500")
	form.Set("currency", "usd")
	form.Set("email", "buyer@example.com")
	body := []byte(form.Encode())

	rec := server.post("/webhooks/gumroad", body, map[string]string{
		"Content-Type":    "application/x-www-form-urlencoded",
		"X-Gumroad-Token": "gumroad-token",
	})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.Equal(t, "PROCESSED", data["outcome"])
	assert.Equal(t, "ORDER_CREATED", data["event"])
	assert.True(t, strings.Contains(data["entity_key"].(string), "sale-123"))
}

func TestWebhook_GumroadWrongTokenIs401(t *testing.T) {
	server := newTestServer(t, nil)
	rec := server.post("/webhooks/gumroad", []byte("sale_id=sale-1"), map[string]string{
		"X-Gumroad-Token": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
