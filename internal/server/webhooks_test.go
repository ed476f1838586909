package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notroom/internal/bgcheck"
	"notroom/internal/providers"
	"notroom/pkg/types"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v84"
)

type stubBackgroundChecks struct {
	startCheckout         func(ctx context.Context, userID, providerID string, applicant *types.BasicInfo) (*bgcheck.CheckoutResult, error)
	handlePaymentComplete func(ctx context.Context, session bgcheck.CompletedSession) error
	handleSessionExpired  func(ctx context.Context, onboardingID, userID, sessionID string) error
	applyProviderEvent    func(ctx context.Context, ev *providers.NormalizedEvent) (bool, error)
	submitUploadedProof   func(ctx context.Context, userID, documentKey string) error
	status                func(ctx context.Context, userID string) (*types.BackgroundCheckState, error)
}

func (s *stubBackgroundChecks) StartCheckout(ctx context.Context, userID, providerID string, applicant *types.BasicInfo) (*bgcheck.CheckoutResult, error) {
	return s.startCheckout(ctx, userID, providerID, applicant)
}

func (s *stubBackgroundChecks) HandlePaymentCompleted(ctx context.Context, session bgcheck.CompletedSession) error {
	return s.handlePaymentComplete(ctx, session)
}

func (s *stubBackgroundChecks) HandleSessionExpired(ctx context.Context, onboardingID, userID, sessionID string) error {
	return s.handleSessionExpired(ctx, onboardingID, userID, sessionID)
}

func (s *stubBackgroundChecks) ApplyProviderEvent(ctx context.Context, ev *providers.NormalizedEvent) (bool, error) {
	return s.applyProviderEvent(ctx, ev)
}

func (s *stubBackgroundChecks) SubmitUploadedProof(ctx context.Context, userID, documentKey string) error {
	return s.submitUploadedProof(ctx, userID, documentKey)
}

func (s *stubBackgroundChecks) Status(ctx context.Context, userID string) (*types.BackgroundCheckState, error) {
	return s.status(ctx, userID)
}

func silentLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testService(bgchecks backgroundCheckService) *Service {
	return &Service{
		logger: silentLogger(),
		config: &types.Config{
			Environment:         "development",
			AppURL:              "https://app.example.com",
			StripeWebhookSecret: "whsec_test",
			CheckrWebhookSecret: "checkr-secret",
		},
		bgchecks: bgchecks,
	}
}

func sign(body, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(body))
	return hex.EncodeToString(mac.Sum(nil))
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return out
}

func TestProviderWebhookUnmatchedReturns200(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		applyProviderEvent: func(ctx context.Context, ev *providers.NormalizedEvent) (bool, error) {
			if ev.CheckID != "CHK123" {
				t.Fatalf("unexpected check id %s", ev.CheckID)
			}
			return false, nil
		},
	})

	body := `{"type":"report.completed","data":{"id":"CHK123","adjudication":"clear"}}`
	r := httptest.NewRequest(http.MethodPost, "/background-check/webhook?provider=checkr", strings.NewReader(body))
	rec := httptest.NewRecorder()

	svc.handleProviderWebhook(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeBody(t, rec)
	if resp["received"] != true {
		t.Fatal("expected received:true")
	}
	if resp["matched"] != false {
		t.Fatal("expected matched:false")
	}
}

func TestProviderWebhookMatched(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		applyProviderEvent: func(ctx context.Context, ev *providers.NormalizedEvent) (bool, error) {
			return true, nil
		},
	})

	body := `{"type":"report.completed","data":{"id":"r1","adjudication":"clear"}}`
	r := httptest.NewRequest(http.MethodPost, "/background-check/webhook?provider=checkr", strings.NewReader(body))
	rec := httptest.NewRecorder()

	svc.handleProviderWebhook(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["matched"] != true {
		t.Fatal("expected matched:true")
	}
}

func TestProviderWebhookUnresolvedProvider(t *testing.T) {
	svc := testService(&stubBackgroundChecks{})

	r := httptest.NewRequest(http.MethodPost, "/background-check/webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	svc.handleProviderWebhook(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unresolved provider, got %d", rec.Code)
	}
}

func TestProviderWebhookMalformedJSON(t *testing.T) {
	svc := testService(&stubBackgroundChecks{})

	r := httptest.NewRequest(http.MethodPost, "/background-check/webhook?provider=checkr", strings.NewReader(`{broken`))
	rec := httptest.NewRecorder()

	svc.handleProviderWebhook(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed JSON, got %d", rec.Code)
	}
}

func TestProviderWebhookTamperedSignature(t *testing.T) {
	svc := testService(&stubBackgroundChecks{})
	svc.config.Environment = "production"

	body := `{"type":"report.completed","data":{"id":"r1"}}`
	staleSig := sign(`{"type":"report.completed","data":{"id":"other"}}`, "checkr-secret")

	r := httptest.NewRequest(http.MethodPost, "/background-check/webhook?provider=checkr", strings.NewReader(body))
	r.Header.Set("x-checkr-signature", staleSig)
	rec := httptest.NewRecorder()

	svc.handleProviderWebhook(rec, r)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for tampered signature, got %d", rec.Code)
	}
}

func TestProviderWebhookValidSignature(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		applyProviderEvent: func(ctx context.Context, ev *providers.NormalizedEvent) (bool, error) {
			return true, nil
		},
	})
	svc.config.Environment = "production"

	body := `{"type":"report.completed","data":{"id":"r1","adjudication":"clear"}}`
	r := httptest.NewRequest(http.MethodPost, "/background-check/webhook?provider=checkr", strings.NewReader(body))
	r.Header.Set("x-checkr-signature", sign(body, "checkr-secret"))
	rec := httptest.NewRecorder()

	svc.handleProviderWebhook(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for valid signature, got %d", rec.Code)
	}
}

func TestProviderWebhookUnsignedAcceptedInProduction(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		applyProviderEvent: func(ctx context.Context, ev *providers.NormalizedEvent) (bool, error) {
			return true, nil
		},
	})
	svc.config.Environment = "production"

	body := `{"type":"report.completed","data":{"id":"r1","adjudication":"clear"}}`
	r := httptest.NewRequest(http.MethodPost, "/background-check/webhook?provider=checkr", strings.NewReader(body))
	rec := httptest.NewRecorder()

	svc.handleProviderWebhook(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for unsigned payload in production, got %d", rec.Code)
	}
	if resp := decodeBody(t, rec); resp["received"] != true {
		t.Fatal("expected received:true")
	}
}

func TestProviderWebhookSignatureIgnoredOutsideProduction(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		applyProviderEvent: func(ctx context.Context, ev *providers.NormalizedEvent) (bool, error) {
			return true, nil
		},
	})

	body := `{"type":"report.completed","data":{"id":"r1","adjudication":"clear"}}`
	r := httptest.NewRequest(http.MethodPost, "/background-check/webhook?provider=checkr", strings.NewReader(body))
	r.Header.Set("x-checkr-signature", "not-a-valid-signature")
	rec := httptest.NewRecorder()

	svc.handleProviderWebhook(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 outside production regardless of signature, got %d", rec.Code)
	}
}

func TestStripeWebhookSignatureFailure(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		handlePaymentComplete: func(ctx context.Context, session bgcheck.CompletedSession) error {
			t.Fatal("no side effects after a signature failure")
			return nil
		},
	})
	svc.verifyStripeEvent = func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
		return stripe.Event{}, errors.New("signature mismatch")
	}

	r := httptest.NewRequest(http.MethodPost, "/background-check/provider-webhook", strings.NewReader(`{}`))
	r.Header.Set("Stripe-Signature", "t=1,v1=bad")
	rec := httptest.NewRecorder()

	svc.handleStripeWebhook(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad stripe signature, got %d", rec.Code)
	}
}

func stripeEvent(eventType string, session map[string]any) stripe.Event {
	raw, _ := json.Marshal(session)
	return stripe.Event{
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestStripeWebhookCheckoutCompleted(t *testing.T) {
	var handled bgcheck.CompletedSession

	svc := testService(&stubBackgroundChecks{
		handlePaymentComplete: func(ctx context.Context, session bgcheck.CompletedSession) error {
			handled = session
			return nil
		},
	})
	svc.verifyStripeEvent = func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
		return stripeEvent("checkout.session.completed", map[string]any{
			"id":           "cs_123",
			"amount_total": 2625,
			"currency":     "usd",
			"metadata": map[string]string{
				"user_id":         "user-1",
				"onboarding_id":   "onb-1",
				"provider_id":     "checkr",
				"applicant_email": "ana@example.com",
			},
		}), nil
	}

	r := httptest.NewRequest(http.MethodPost, "/background-check/provider-webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	svc.handleStripeWebhook(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if handled.SessionID != "cs_123" {
		t.Fatalf("expected session cs_123 handled, got %q", handled.SessionID)
	}
	if handled.ProviderID != "checkr" || handled.UserID != "user-1" {
		t.Fatalf("metadata not propagated: %+v", handled)
	}
	if handled.AmountCents != 2625 {
		t.Fatalf("expected amount 2625, got %d", handled.AmountCents)
	}
	if handled.ApplicantEmail != "ana@example.com" {
		t.Fatalf("expected applicant email propagated, got %q", handled.ApplicantEmail)
	}
}

func TestStripeWebhookMissingApplicantEmail(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		handlePaymentComplete: func(ctx context.Context, session bgcheck.CompletedSession) error {
			t.Fatal("session without an applicant email must not be processed")
			return nil
		},
	})
	svc.verifyStripeEvent = func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
		return stripeEvent("checkout.session.completed", map[string]any{
			"id": "cs_123",
			"metadata": map[string]string{
				"user_id":       "user-1",
				"onboarding_id": "onb-1",
				"provider_id":   "checkr",
			},
		}), nil
	}

	r := httptest.NewRequest(http.MethodPost, "/background-check/provider-webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	svc.handleStripeWebhook(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing applicant email, got %d", rec.Code)
	}
}

func TestStripeWebhookMissingMetadata(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		handlePaymentComplete: func(ctx context.Context, session bgcheck.CompletedSession) error {
			t.Fatal("session without metadata must not be processed")
			return nil
		},
	})
	svc.verifyStripeEvent = func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
		return stripeEvent("checkout.session.completed", map[string]any{"id": "cs_123"}), nil
	}

	r := httptest.NewRequest(http.MethodPost, "/background-check/provider-webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	svc.handleStripeWebhook(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing metadata, got %d", rec.Code)
	}
}

func TestStripeWebhookCheckoutExpired(t *testing.T) {
	var expiredSession string

	svc := testService(&stubBackgroundChecks{
		handleSessionExpired: func(ctx context.Context, onboardingID, userID, sessionID string) error {
			expiredSession = sessionID
			return nil
		},
	})
	svc.verifyStripeEvent = func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
		return stripeEvent("checkout.session.expired", map[string]any{
			"id": "cs_expired",
			"metadata": map[string]string{
				"user_id":       "user-1",
				"onboarding_id": "onb-1",
			},
		}), nil
	}

	r := httptest.NewRequest(http.MethodPost, "/background-check/provider-webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	svc.handleStripeWebhook(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if expiredSession != "cs_expired" {
		t.Fatalf("expected cs_expired handled, got %q", expiredSession)
	}
}

func TestStripeWebhookIgnoresOtherEvents(t *testing.T) {
	svc := testService(&stubBackgroundChecks{})
	svc.verifyStripeEvent = func(payload []byte, sigHeader, secret string) (stripe.Event, error) {
		return stripe.Event{Type: "invoice.paid"}, nil
	}

	r := httptest.NewRequest(http.MethodPost, "/background-check/provider-webhook", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()

	svc.handleStripeWebhook(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 ack for unhandled event type, got %d", rec.Code)
	}
}

func TestWebhookHealthListsProviders(t *testing.T) {
	svc := testService(&stubBackgroundChecks{})

	r := httptest.NewRequest(http.MethodGet, "/background-check/webhook", nil)
	rec := httptest.NewRecorder()

	svc.handleWebhookHealth(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeBody(t, rec)
	listed, ok := resp["providers"].([]any)
	if !ok || len(listed) != 4 {
		t.Fatalf("expected 4 providers listed, got %v", resp["providers"])
	}
}
