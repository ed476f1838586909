package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http/httptest"
	"testing"
)

func signBody(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestMapProviderStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"clear", "clear"},
		{"eligible", "clear"},
		{"passed", "clear"},
		{"approved", "clear"},
		{"complete", "clear"},
		{"completed", "clear"},
		{"consider", "consider"},
		{"review", "consider"},
		{"flagged", "consider"},
		{"error", "error"},
		{"failed", "error"},
		{"suspended", "error"},
		{"canceled", "error"},
		{"disputed", "error"},
		{"pending", "pending"},
		{"in_progress", "pending"},
		{"something-new", "pending"},
		{"", "pending"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := mapProviderStatus(tt.raw); got != tt.want {
				t.Fatalf("mapProviderStatus(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestVerifyHMAC(t *testing.T) {
	body := []byte(`{"orderId":"ORD-1","status":"clear"}`)
	secret := "test-secret"
	valid := signBody(body, secret)

	if !verifyHMAC(body, valid, secret) {
		t.Fatal("expected valid signature to verify")
	}

	if verifyHMAC([]byte(`{"orderId":"ORD-1","status":"consider"}`), valid, secret) {
		t.Fatal("expected tampered body to fail verification")
	}

	if verifyHMAC(body, valid, "wrong-secret") {
		t.Fatal("expected wrong secret to fail verification")
	}

	if verifyHMAC(body, "", secret) {
		t.Fatal("expected empty signature to fail verification")
	}

	if verifyHMAC(body, valid, "") {
		t.Fatal("expected empty secret to fail verification")
	}
}

func TestResolveAdapterQueryParamWins(t *testing.T) {
	r := httptest.NewRequest("POST", "/background-check/webhook?provider=goodhire", nil)
	r.Header.Set("x-checkr-signature", "abc")

	adapter, ok := ResolveAdapter(r)
	if !ok {
		t.Fatal("expected adapter to resolve")
	}
	if adapter.ID() != "goodhire" {
		t.Fatalf("expected query param to win, got %s", adapter.ID())
	}
}

func TestResolveAdapterHeaderSniff(t *testing.T) {
	r := httptest.NewRequest("POST", "/background-check/webhook", nil)
	r.Header.Set("x-vc-signature", "abc")

	adapter, ok := ResolveAdapter(r)
	if !ok {
		t.Fatal("expected adapter to resolve")
	}
	if adapter.ID() != "verified_credentials" {
		t.Fatalf("expected verified_credentials, got %s", adapter.ID())
	}
}

func TestResolveAdapterUnknown(t *testing.T) {
	r := httptest.NewRequest("POST", "/background-check/webhook", nil)
	if _, ok := ResolveAdapter(r); ok {
		t.Fatal("expected no adapter for anonymous request")
	}

	r = httptest.NewRequest("POST", "/background-check/webhook?provider=acme", nil)
	if _, ok := ResolveAdapter(r); ok {
		t.Fatal("expected no adapter for unknown provider id")
	}
}

func TestIntellicorpParsePayload(t *testing.T) {
	adapter := intellicorpAdapter{}

	ev, err := adapter.ParsePayload([]byte(`{"orderId":"IC-42","status":"clear","reportUrl":"https://ic.example/r/42"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev.CheckID != "IC-42" {
		t.Fatalf("expected check id IC-42, got %s", ev.CheckID)
	}
	if ev.Status != "clear" {
		t.Fatalf("expected status clear, got %s", ev.Status)
	}
	if ev.ReportURL != "https://ic.example/r/42" {
		t.Fatalf("unexpected report url %s", ev.ReportURL)
	}
	if ev.CompletedAt == nil {
		t.Fatal("expected terminal status to default CompletedAt")
	}
}

func TestGoodhireAdjudicationWins(t *testing.T) {
	adapter := goodhireAdapter{}

	ev, err := adapter.ParsePayload([]byte(`{"check_id":"GH-7","state":"completed","result":"consider"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ev.Status != "consider" {
		t.Fatalf("expected adjudication to win over state, got %s", ev.Status)
	}
	if ev.Adjudication != "consider" {
		t.Fatalf("expected adjudication consider, got %s", ev.Adjudication)
	}
}

func TestCheckrEnvelope(t *testing.T) {
	adapter := checkrAdapter{}

	t.Run("completed report with clear adjudication", func(t *testing.T) {
		ev, err := adapter.ParsePayload([]byte(`{"type":"report.completed","data":{"id":"r1","adjudication":"clear"}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if ev.CheckID != "r1" {
			t.Fatalf("expected check id r1, got %s", ev.CheckID)
		}
		if ev.Status != "clear" {
			t.Fatalf("expected status clear, got %s", ev.Status)
		}
		if ev.CompletedAt == nil {
			t.Fatal("expected CompletedAt to be set for completed report")
		}
	})

	t.Run("disputed report maps to error", func(t *testing.T) {
		ev, err := adapter.ParsePayload([]byte(`{"type":"report.disputed","data":{"id":"r2"}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if ev.Status != "error" {
			t.Fatalf("expected status error, got %s", ev.Status)
		}
		if ev.CompletedAt != nil {
			t.Fatal("expected no CompletedAt for non-terminal status")
		}
	})

	t.Run("unknown event stays pending", func(t *testing.T) {
		ev, err := adapter.ParsePayload([]byte(`{"type":"report.created","data":{"id":"r3"}}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if ev.Status != "pending" {
			t.Fatalf("expected status pending, got %s", ev.Status)
		}
	})
}

func TestParsePayloadMissingCheckID(t *testing.T) {
	for _, adapter := range adapters {
		if _, err := adapter.ParsePayload([]byte(`{}`)); err == nil {
			t.Fatalf("%s: expected error for payload without check id", adapter.ID())
		}
	}
}

func TestParsePayloadMalformedJSON(t *testing.T) {
	for _, adapter := range adapters {
		if _, err := adapter.ParsePayload([]byte(`{not json`)); err == nil {
			t.Fatalf("%s: expected error for malformed JSON", adapter.ID())
		}
	}
}
