package handler

import (
	"io"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/application/ingestion"
	"github.com/syncbridge/backend/internal/domain/unified"
	"github.com/syncbridge/backend/internal/infrastructure/signature"
)

// WebhookHandler receives platform webhooks and feeds them to the ingestion
// pipeline. It lives outside the versioned API group; platforms are
// configured with the bare /webhooks/:platform path.
type WebhookHandler struct {
	BaseHandler
	pipeline *ingestion.Pipeline
}

// NewWebhookHandler creates the webhook endpoint
func NewWebhookHandler(pipeline *ingestion.Pipeline) *WebhookHandler {
	return &WebhookHandler{pipeline: pipeline}
}

// RegisterRoutes registers the webhook route on a root-level group
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/:platform", h.Receive)
}

// WebhookResponse reports how an envelope was handled
type WebhookResponse struct {
	Outcome   string `json:"outcome"`
	Event     string `json:"event,omitempty"`
	EntityKey string `json:"entity_key,omitempty"`
}

// Receive handles POST /webhooks/:platform
func (h *WebhookHandler) Receive(c *gin.Context) {
	platform, err := unified.ParsePlatform(c.Param("platform"))
	if err != nil {
		h.BadRequest(c, "unknown platform "+c.Param("platform"))
		return
	}

	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.BadRequest(c, "unreadable request body")
		return
	}

	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.Request.Header.Get(name)
	}

	envelope := &unified.WebhookEnvelope{
		Platform:   platform,
		Signature:  c.GetHeader(signature.HeaderFor(platform)),
		RawBody:    rawBody,
		Headers:    headers,
		SourceID:   sourceID(c, platform),
		ReceivedAt: time.Now().UTC(),
	}

	receipt, err := h.pipeline.Ingest(c.Request.Context(), envelope)
	if err != nil {
		if receipt != nil && receipt.RetryAfter > 0 {
			c.Header("Retry-After", strconv.Itoa(int(receipt.RetryAfter.Seconds()+1)))
		}
		h.HandleError(c, err)
		return
	}

	response := WebhookResponse{Outcome: string(receipt.Outcome), Event: string(receipt.Kind)}
	if receipt.Key != nil {
		response.EntityKey = receipt.Key.String()
	}

	switch receipt.Outcome {
	case ingestion.OutcomeQueued, ingestion.OutcomePendingReview:
		h.Accepted(c, response)
	default:
		h.Success(c, response)
	}
}

// sourceID scopes rate limiting to the sending store when the platform
// identifies it, falling back to the client IP.
func sourceID(c *gin.Context, platform unified.Platform) string {
	if platform == unified.PlatformShopify {
		if shop := c.GetHeader("X-Shopify-Shop-Domain"); shop != "" {
			return shop
		}
	}
	return c.ClientIP()
}
