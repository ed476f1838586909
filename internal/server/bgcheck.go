package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"notroom/internal/providers"
	"notroom/internal/utils"
	"notroom/pkg/types"
)

type initiateCheckRequest struct {
	ProviderID    string           `json:"providerId"`
	ApplicantData *types.BasicInfo `json:"applicantData,omitempty"`
}

type initiateCheckResponse struct {
	Success         bool             `json:"success"`
	RequiresPayment bool             `json:"requiresPayment"`
	CheckoutURL     string           `json:"checkoutUrl,omitempty"`
	Provider        *providerSummary `json:"provider,omitempty"`
	Pricing         *providerPricing `json:"pricing,omitempty"`
}

type providerSummary struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Method     string   `json:"method"`
	Turnaround string   `json:"turnaround"`
	Checks     []string `json:"checks"`
}

type providerPricing struct {
	BaseCost  int64  `json:"baseCost"`
	FinalCost int64  `json:"finalCost"`
	Formatted string `json:"formatted"`
}

func summarizeProvider(p *types.BackgroundCheckProvider) *providerSummary {
	return &providerSummary{
		ID:         p.ID,
		Name:       p.Name,
		Method:     string(p.Method),
		Turnaround: p.Turnaround,
		Checks:     p.Checks,
	}
}

func (s *Service) handleInitiateBackgroundCheck(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("ctx doesn't contain user")
		s.internalServerError(w)
		return
	}

	var req initiateCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.ProviderID == "" {
		s.respondError(w, http.StatusBadRequest, "providerId is required")
		return
	}

	result, err := s.bgchecks.StartCheckout(ctx, userID, req.ProviderID, req.ApplicantData)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrProviderNotFound):
			s.respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown background check provider %q", req.ProviderID))
		case errors.Is(err, types.ErrOnboardingNotFound):
			s.respondError(w, http.StatusNotFound, "no onboarding application found")
		default:
			s.logger.WithError(err).Error("failed to start background check checkout")
			s.internalServerError(w)
		}
		return
	}

	resp := initiateCheckResponse{
		Success:         true,
		RequiresPayment: result.RequiresPayment,
		CheckoutURL:     result.CheckoutURL,
		Provider:        summarizeProvider(result.Provider),
	}
	if result.RequiresPayment {
		resp.Pricing = &providerPricing{
			BaseCost:  result.Provider.BaseCostCents,
			FinalCost: result.Provider.FinalCostCents,
			Formatted: result.Pricing,
		}
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Service) handleBackgroundCheckStatus(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("ctx doesn't contain user")
		s.internalServerError(w)
		return
	}

	state, err := s.bgchecks.Status(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrOnboardingNotFound) {
			s.respondError(w, http.StatusNotFound, "no onboarding application found")
			return
		}
		s.logger.WithError(err).Error("failed to load background check status")
		s.internalServerError(w)
		return
	}

	if state == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"started": false,
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"started":         true,
		"backgroundCheck": state,
	})
}

// handleUploadBackgroundCheck accepts an existing check document for the
// free self-upload provider.
func (s *Service) handleUploadBackgroundCheck(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("ctx doesn't contain user")
		s.internalServerError(w)
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	key := fmt.Sprintf("background-checks/%s/%s%s", userID, utils.NanoIDSize(16), filepath.Ext(header.Filename))

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileBytes, err := io.ReadAll(file)
	if err != nil {
		s.logger.WithError(err).Error("failed to read uploaded document")
		s.internalServerError(w)
		return
	}

	if err := s.storage.PutDocument(ctx, key, fileBytes, contentType); err != nil {
		s.logger.WithError(err).Error("failed to store uploaded document")
		s.internalServerError(w)
		return
	}

	if err := s.bgchecks.SubmitUploadedProof(ctx, userID, key); err != nil {
		if errors.Is(err, types.ErrOnboardingNotFound) {
			s.respondError(w, http.StatusNotFound, "no onboarding application found")
			return
		}
		s.logger.WithError(err).Error("failed to record uploaded proof")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"documentKey": key,
	})
}

// handleWebhookHealth lists the providers the webhook endpoint accepts.
func (s *Service) handleWebhookHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": providers.APIProviderIDs(),
	})
}
