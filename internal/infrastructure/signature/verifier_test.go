package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncbridge/backend/internal/domain/unified"
)

func hmacDigest(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func TestVerifier_ShopifyBase64(t *testing.T) {
	secret := "shpss_test_secret"
	body := []byte(`{"id":123,"topic":"orders/create"}`)
	verifier := NewVerifier(map[unified.Platform]string{unified.PlatformShopify: secret})

	good := base64.StdEncoding.EncodeToString(hmacDigest(secret, body))
	result := verifier.Verify(unified.PlatformShopify, body, good)
	assert.True(t, result.Authentic)
	assert.Empty(t, result.Reason)

	// A hex rendition of the correct digest is still a mismatch.
	wrongEncoding := hex.EncodeToString(hmacDigest(secret, body))
	result = verifier.Verify(unified.PlatformShopify, body, wrongEncoding)
	assert.False(t, result.Authentic)
	assert.Equal(t, ReasonSignatureInvalid, result.Reason)
}

func TestVerifier_EcwidHex(t *testing.T) {
	secret := "ecwid_client_secret"
	body := []byte(`{"eventType":"product.updated","storeId":100500}`)
	verifier := NewVerifier(map[unified.Platform]string{unified.PlatformEcwid: secret})

	good := hex.EncodeToString(hmacDigest(secret, body))
	assert.True(t, verifier.Verify(unified.PlatformEcwid, body, good).Authentic)

	tampered := append([]byte(nil), body...)
	tampered[0] = '['
	result := verifier.Verify(unified.PlatformEcwid, tampered, good)
	assert.False(t, result.Authentic)
	assert.Equal(t, ReasonSignatureInvalid, result.Reason)
}

func TestVerifier_GumroadToken(t *testing.T) {
	verifier := NewVerifier(map[unified.Platform]string{unified.PlatformGumroad: "tok-abc"})
	body := []byte("seller_id=x&product_id=y")

	assert.True(t, verifier.Verify(unified.PlatformGumroad, body, "tok-abc").Authentic)

	result := verifier.Verify(unified.PlatformGumroad, body, "tok-ABC")
	assert.False(t, result.Authentic)
	assert.Equal(t, ReasonSignatureInvalid, result.Reason)
}

func TestVerifier_MissingSecretIsNotAMismatch(t *testing.T) {
	verifier := NewVerifier(nil)
	body := []byte("{}")

	result := verifier.Verify(unified.PlatformShopify, body, "anything")
	assert.False(t, result.Authentic)
	assert.True(t, result.MissingSecret)
	assert.Equal(t, ReasonMissingSecret, result.Reason)
}

func TestVerifier_EmptyInputs(t *testing.T) {
	verifier := NewVerifier(map[unified.Platform]string{unified.PlatformEcwid: "s"})

	result := verifier.Verify(unified.PlatformEcwid, []byte("{}"), "")
	assert.False(t, result.Authentic)
	assert.Equal(t, ReasonEmptySignature, result.Reason)

	result = verifier.Verify(unified.PlatformEcwid, nil, "deadbeef")
	assert.False(t, result.Authentic)
	assert.Equal(t, ReasonEmptyBody, result.Reason)
}

func TestVerifier_SignRoundTrip(t *testing.T) {
	verifier := NewVerifier(map[unified.Platform]string{
		unified.PlatformShopify: "a",
		unified.PlatformEcwid:   "b",
		unified.PlatformGumroad: "c",
	})
	body := []byte(`{"n":1}`)

	for _, platform := range []unified.Platform{unified.PlatformShopify, unified.PlatformEcwid, unified.PlatformGumroad} {
		sig, ok := verifier.Sign(platform, body)
		require.True(t, ok)
		assert.True(t, verifier.Verify(platform, body, sig).Authentic, string(platform))
	}

	_, ok := NewVerifier(nil).Sign(unified.PlatformShopify, body)
	assert.False(t, ok)
}

func TestSchemeAndHeaderFor(t *testing.T) {
	assert.Equal(t, SchemeHMACSHA256Base64, SchemeFor(unified.PlatformShopify))
	assert.Equal(t, SchemeHMACSHA256Hex, SchemeFor(unified.PlatformEcwid))
	assert.Equal(t, SchemeSharedToken, SchemeFor(unified.PlatformGumroad))
	assert.Equal(t, "X-Shopify-Hmac-Sha256", HeaderFor(unified.PlatformShopify))
	assert.Equal(t, "X-Ecwid-Webhook-Signature", HeaderFor(unified.PlatformEcwid))
	assert.Equal(t, "X-Gumroad-Token", HeaderFor(unified.PlatformGumroad))
}
