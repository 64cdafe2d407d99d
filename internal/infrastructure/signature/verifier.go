// Package signature implements the per-platform authenticity check of raw
// webhook payloads. Each platform carries its own scheme: Shopify signs the
// raw body with HMAC-SHA256 and transmits a base64 digest, Ecwid transmits a
// hex digest over the same construction, and Gumroad sends a pre-shared
// token that is compared by exact match. All comparisons are constant time.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"

	"github.com/syncbridge/backend/internal/domain/unified"
)

// ---------------------------------------------------------------------------
// Scheme
// ---------------------------------------------------------------------------

// Scheme identifies how a platform proves payload authenticity
type Scheme string

const (
	// SchemeHMACSHA256Base64 is HMAC-SHA256 over the raw body, base64 digest
	SchemeHMACSHA256Base64 Scheme = "hmac-sha256-base64"
	// SchemeHMACSHA256Hex is HMAC-SHA256 over the raw body, hex digest
	SchemeHMACSHA256Hex Scheme = "hmac-sha256-hex"
	// SchemeSharedToken is a pre-shared token compared by exact match
	SchemeSharedToken Scheme = "shared-token"
)

// SchemeFor returns the signature scheme a platform uses
func SchemeFor(platform unified.Platform) Scheme {
	switch platform {
	case unified.PlatformShopify:
		return SchemeHMACSHA256Base64
	case unified.PlatformEcwid:
		return SchemeHMACSHA256Hex
	case unified.PlatformGumroad:
		return SchemeSharedToken
	default:
		return SchemeHMACSHA256Hex
	}
}

// HeaderFor returns the request header a platform carries its signature in
func HeaderFor(platform unified.Platform) string {
	switch platform {
	case unified.PlatformShopify:
		return "X-Shopify-Hmac-Sha256"
	case unified.PlatformEcwid:
		return "X-Ecwid-Webhook-Signature"
	case unified.PlatformGumroad:
		return "X-Gumroad-Token"
	default:
		return "X-Webhook-Signature"
	}
}

// ---------------------------------------------------------------------------
// Result
// ---------------------------------------------------------------------------

// Reasons reported on verification failure
const (
	ReasonMissingSecret    = "MISSING_SECRET"
	ReasonEmptySignature   = "EMPTY_SIGNATURE"
	ReasonEmptyBody        = "EMPTY_BODY"
	ReasonSignatureInvalid = "SIGNATURE_MISMATCH"
)

// Result is the verification outcome. MissingSecret is reported separately
// from a mismatch: a deployment without a provisioned secret may run in a
// relaxed warn-only mode, but "unconfigured" is never conflated with
// "verified" - Authentic stays false and the caller decides.
type Result struct {
	Authentic     bool
	MissingSecret bool
	Reason        string
}

// ---------------------------------------------------------------------------
// Verifier
// ---------------------------------------------------------------------------

// Verifier checks raw payloads against pre-provisioned platform secrets
type Verifier struct {
	secrets map[unified.Platform]string
}

// NewVerifier creates a verifier with the given per-platform secrets.
// Platforms without an entry report MissingSecret on every verification.
func NewVerifier(secrets map[unified.Platform]string) *Verifier {
	if secrets == nil {
		secrets = make(map[unified.Platform]string)
	}
	return &Verifier{secrets: secrets}
}

// Verify checks the transport-supplied signature against the raw body and
// the platform's secret. The body must be the exact bytes as received;
// re-serialization would break digest-based schemes.
func (v *Verifier) Verify(platform unified.Platform, rawBody []byte, signatureHeader string) Result {
	secret, ok := v.secrets[platform]
	if !ok || secret == "" {
		return Result{MissingSecret: true, Reason: ReasonMissingSecret}
	}
	if signatureHeader == "" {
		return Result{Reason: ReasonEmptySignature}
	}
	if len(rawBody) == 0 {
		return Result{Reason: ReasonEmptyBody}
	}

	var authentic bool
	switch SchemeFor(platform) {
	case SchemeHMACSHA256Base64:
		authentic = verifyHMAC(rawBody, signatureHeader, secret, base64.StdEncoding.EncodeToString)
	case SchemeHMACSHA256Hex:
		authentic = verifyHMAC(rawBody, signatureHeader, secret, hex.EncodeToString)
	case SchemeSharedToken:
		authentic = subtle.ConstantTimeCompare([]byte(signatureHeader), []byte(secret)) == 1
	}

	if !authentic {
		return Result{Reason: ReasonSignatureInvalid}
	}
	return Result{Authentic: true}
}

// verifyHMAC computes HMAC-SHA256 over the raw body and compares the encoded
// digest against the transmitted one in constant time.
func verifyHMAC(rawBody []byte, signature, secret string, encode func([]byte) string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	expected := encode(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// Sign computes the signature a platform would transmit for the given body.
// Used by tests and by the sync client when calling back into platform APIs.
func (v *Verifier) Sign(platform unified.Platform, rawBody []byte) (string, bool) {
	secret, ok := v.secrets[platform]
	if !ok || secret == "" {
		return "", false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	switch SchemeFor(platform) {
	case SchemeHMACSHA256Base64:
		return base64.StdEncoding.EncodeToString(mac.Sum(nil)), true
	case SchemeHMACSHA256Hex:
		return hex.EncodeToString(mac.Sum(nil)), true
	default:
		return secret, true
	}
}
