package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"
)

// NormalizedEvent is the provider-independent shape of an inbound status
// callback. CheckID is the provider's own identifier for the check; it is
// the only join key providers know about.
type NormalizedEvent struct {
	Provider     string
	CheckID      string
	Status       string // clear|consider|error|pending
	Adjudication string
	ReportURL    string
	CompletedAt  *time.Time
}

// Adapter parses and authenticates one provider's webhook payloads.
type Adapter interface {
	ID() string
	SignatureHeader() string
	ParsePayload(raw []byte) (*NormalizedEvent, error)
	VerifySignature(raw []byte, signature, secret string) bool
}

var adapters = []Adapter{
	intellicorpAdapter{},
	goodhireAdapter{},
	checkrAdapter{},
	verifiedCredentialsAdapter{},
}

// AdapterByID returns the webhook adapter for a provider id.
func AdapterByID(id string) (Adapter, bool) {
	for _, a := range adapters {
		if a.ID() == id {
			return a, true
		}
	}
	return nil, false
}

// ResolveAdapter picks the adapter for an inbound webhook request. The
// explicit provider query parameter wins; otherwise the request is sniffed
// for a provider-specific signature header.
func ResolveAdapter(r *http.Request) (Adapter, bool) {
	if id := r.URL.Query().Get("provider"); id != "" {
		return AdapterByID(id)
	}

	for _, a := range adapters {
		if r.Header.Get(a.SignatureHeader()) != "" {
			return a, true
		}
	}

	return nil, false
}

// verifyHMAC checks a hex-encoded HMAC-SHA256 signature over the raw body
// using constant-time comparison.
func verifyHMAC(raw []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(raw)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// terminalStatus reports whether a mapped status closes out the check.
// Only terminal events default CompletedAt to "now".
func terminalStatus(status string) bool {
	switch status {
	case "clear", "consider", "complete":
		return true
	}
	return false
}

// mapProviderStatus translates a provider's status vocabulary into the
// internal one. Unknown words are treated as pending rather than dropped so
// a new provider-side status never kills the webhook flow.
func mapProviderStatus(raw string) string {
	switch raw {
	case "clear", "eligible", "passed", "approved", "complete", "completed":
		return "clear"
	case "consider", "review", "flagged":
		return "consider"
	case "error", "failed", "suspended", "canceled", "cancelled", "disputed":
		return "error"
	default:
		return "pending"
	}
}
