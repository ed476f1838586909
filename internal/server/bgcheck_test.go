package server

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"notroom/internal/bgcheck"
	"notroom/internal/providers"
	"notroom/pkg/types"
)

type stubStorage struct {
	putDocument func(ctx context.Context, key string, body []byte, contentType string) error
}

func (s *stubStorage) PutDocument(ctx context.Context, key string, body []byte, contentType string) error {
	return s.putDocument(ctx, key, body, contentType)
}

func TestInitiateBackgroundCheckRequiresProviderID(t *testing.T) {
	svc := testService(&stubBackgroundChecks{})

	rec := httptest.NewRecorder()
	svc.handleInitiateBackgroundCheck(rec, authedRequest(http.MethodPost, "/background-check/initiate", `{}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without providerId, got %d", rec.Code)
	}
}

func TestInitiateBackgroundCheckUnknownProvider(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		startCheckout: func(ctx context.Context, userID, providerID string, applicant *types.BasicInfo) (*bgcheck.CheckoutResult, error) {
			return nil, types.ErrProviderNotFound
		},
	})

	rec := httptest.NewRecorder()
	svc.handleInitiateBackgroundCheck(rec, authedRequest(http.MethodPost, "/background-check/initiate", `{"providerId":"nope"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown provider, got %d", rec.Code)
	}
}

func TestInitiateBackgroundCheckPaidProvider(t *testing.T) {
	provider, _ := providers.GetProviderByID("checkr")

	svc := testService(&stubBackgroundChecks{
		startCheckout: func(ctx context.Context, userID, providerID string, applicant *types.BasicInfo) (*bgcheck.CheckoutResult, error) {
			if userID != "user-1" {
				t.Fatalf("unexpected user id %s", userID)
			}
			return &bgcheck.CheckoutResult{
				RequiresPayment: true,
				CheckoutURL:     "https://checkout.stripe.com/c/pay/cs_123",
				Provider:        provider,
				Pricing:         "$26.25",
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	svc.handleInitiateBackgroundCheck(rec, authedRequest(http.MethodPost, "/background-check/initiate", `{"providerId":"checkr"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeBody(t, rec)
	if resp["requiresPayment"] != true {
		t.Fatalf("expected requiresPayment:true, got %v", resp)
	}
	if resp["checkoutUrl"] != "https://checkout.stripe.com/c/pay/cs_123" {
		t.Fatalf("unexpected checkout url %v", resp["checkoutUrl"])
	}
	pricing, ok := resp["pricing"].(map[string]any)
	if !ok || pricing["finalCost"] != float64(provider.FinalCostCents) {
		t.Fatalf("unexpected pricing %v", resp["pricing"])
	}
}

func TestInitiateBackgroundCheckFreeProvider(t *testing.T) {
	provider, _ := providers.GetProviderByID("self_upload")

	svc := testService(&stubBackgroundChecks{
		startCheckout: func(ctx context.Context, userID, providerID string, applicant *types.BasicInfo) (*bgcheck.CheckoutResult, error) {
			return &bgcheck.CheckoutResult{
				RequiresPayment: false,
				Provider:        provider,
			}, nil
		},
	})

	rec := httptest.NewRecorder()
	svc.handleInitiateBackgroundCheck(rec, authedRequest(http.MethodPost, "/background-check/initiate", `{"providerId":"self_upload"}`))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeBody(t, rec)
	if resp["requiresPayment"] != false {
		t.Fatalf("expected requiresPayment:false, got %v", resp)
	}
	if _, present := resp["pricing"]; present {
		t.Fatalf("free provider should not include pricing, got %v", resp["pricing"])
	}
	if _, present := resp["checkoutUrl"]; present {
		t.Fatalf("free provider should not include a checkout url")
	}
}

func TestBackgroundCheckStatusNotStarted(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		status: func(ctx context.Context, userID string) (*types.BackgroundCheckState, error) {
			return nil, nil
		},
	})

	rec := httptest.NewRecorder()
	svc.handleBackgroundCheckStatus(rec, authedRequest(http.MethodGet, "/background-check/initiate", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	resp := decodeBody(t, rec)
	if resp["started"] != false {
		t.Fatalf("expected started:false, got %v", resp)
	}
}

func TestBackgroundCheckStatusStarted(t *testing.T) {
	svc := testService(&stubBackgroundChecks{
		status: func(ctx context.Context, userID string) (*types.BackgroundCheckState, error) {
			return &types.BackgroundCheckState{Provider: "checkr", Status: types.BackgroundCheckStatusPending}, nil
		},
	})

	rec := httptest.NewRecorder()
	svc.handleBackgroundCheckStatus(rec, authedRequest(http.MethodGet, "/background-check/initiate", ""))

	resp := decodeBody(t, rec)
	if resp["started"] != true {
		t.Fatalf("expected started:true, got %v", resp)
	}
	if _, ok := resp["backgroundCheck"].(map[string]any); !ok {
		t.Fatalf("expected backgroundCheck object, got %v", resp)
	}
}

func multipartDocument(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("document", filename)
	if err != nil {
		t.Fatalf("failed to build multipart form: %v", err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestUploadBackgroundCheck(t *testing.T) {
	var storedKey string
	var submittedKey string

	svc := testService(&stubBackgroundChecks{
		submitUploadedProof: func(ctx context.Context, userID, key string) error {
			submittedKey = key
			return nil
		},
	})
	svc.storage = &stubStorage{
		putDocument: func(ctx context.Context, key string, body []byte, contentType string) error {
			storedKey = key
			if string(body) != "pdf bytes" {
				t.Fatalf("unexpected stored body %q", body)
			}
			return nil
		},
	}

	body, contentType := multipartDocument(t, "check.pdf", "pdf bytes")
	r := httptest.NewRequest(http.MethodPost, "/background-check/upload", body)
	r.Header.Set("Content-Type", contentType)
	r = r.WithContext(context.WithValue(r.Context(), contextKeyUserID, "user-1"))

	rec := httptest.NewRecorder()
	svc.handleUploadBackgroundCheck(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if !strings.HasPrefix(storedKey, "background-checks/user-1/") || !strings.HasSuffix(storedKey, ".pdf") {
		t.Fatalf("unexpected storage key %q", storedKey)
	}
	if submittedKey != storedKey {
		t.Fatalf("proof recorded under %q but stored at %q", submittedKey, storedKey)
	}

	resp := decodeBody(t, rec)
	if resp["documentKey"] != storedKey {
		t.Fatalf("response key %v does not match stored key %q", resp["documentKey"], storedKey)
	}
}

func TestUploadBackgroundCheckMissingFile(t *testing.T) {
	svc := testService(&stubBackgroundChecks{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("note", "no file here")
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/background-check/upload", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	r = r.WithContext(context.WithValue(r.Context(), contextKeyUserID, "user-1"))

	rec := httptest.NewRecorder()
	svc.handleUploadBackgroundCheck(rec, r)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without a document, got %d", rec.Code)
	}
}
