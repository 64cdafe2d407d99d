package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncBody(t *testing.T, req SyncBatchRequest) []byte {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	return body
}

func TestSync_BatchApplied(t *testing.T) {
	server := newTestServer(t, nil)

	body := syncBody(t, SyncBatchRequest{
		StoreID:    "acme.myshopify.com",
		EntityType: "PRODUCT",
		Records: []json.RawMessage{
			shopifyProductBody(1, "Alpha"),
			shopifyProductBody(2, "Beta"),
		},
	})
	rec := server.post("/api/v1/sync/shopify", body, map[string]string{"Content-Type": "application/json"})

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := decodeData(t, rec)
	assert.EqualValues(t, 2, data["processed"])
	assert.EqualValues(t, 2, data["created"])
	assert.EqualValues(t, 0, data["failed"])
}

func TestSync_PartialFailureReported(t *testing.T) {
	server := newTestServer(t, nil)

	body := syncBody(t, SyncBatchRequest{
		StoreID:    "acme.myshopify.com",
		EntityType: "PRODUCT",
		Records: []json.RawMessage{
			shopifyProductBody(1, "Alpha"),
			json.RawMessage(`{"title": "no id"}`),
		},
	})
	rec := server.post("/api/v1/sync/shopify", body, map[string]string{"Content-Type": "application/json"})

	require.Equal(t, http.StatusOK, rec.Code)
	data := decodeData(t, rec)
	assert.EqualValues(t, 1, data["created"])
	assert.EqualValues(t, 1, data["failed"])
}

func TestSync_UnknownStrategyIs400(t *testing.T) {
	server := newTestServer(t, nil)

	body := syncBody(t, SyncBatchRequest{
		StoreID:    "acme.myshopify.com",
		EntityType: "PRODUCT",
		Strategy:   "COIN_FLIP",
		Records:    []json.RawMessage{shopifyProductBody(1, "Alpha")},
	})
	rec := server.post("/api/v1/sync/shopify", body, map[string]string{"Content-Type": "application/json"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_INPUT")
}

func TestSync_MissingFieldsIs400(t *testing.T) {
	server := newTestServer(t, nil)
	rec := server.post("/api/v1/sync/shopify", []byte(`{}`), map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSync_UnknownPlatformIs400(t *testing.T) {
	server := newTestServer(t, nil)
	rec := server.post("/api/v1/sync/etsy", []byte(`{}`), map[string]string{"Content-Type": "application/json"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
