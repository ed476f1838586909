package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"notroom/internal/payments"
	"notroom/pkg/types"
)

func (s *Service) handlePaymentBalance(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("ctx doesn't contain user")
		s.internalServerError(w)
		return
	}

	notary, err := s.notaries.NotaryByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotaryNotFound) {
			s.respondError(w, http.StatusNotFound, "no notary profile found")
			return
		}
		s.logger.WithError(err).Error("failed to look up notary")
		s.internalServerError(w)
		return
	}

	balance, err := s.payService.NotaryBalance(ctx, notary.ID)
	if err != nil {
		s.logger.WithError(err).WithField("notary_id", notary.ID).Error("failed to compute notary balance")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"balance": balance,
	})
}

type processPaymentsRequest struct {
	Action       string `json:"action"`
	AssignmentID string `json:"assignmentId,omitempty"`
	PaymentID    string `json:"paymentId,omitempty"`
	DelayDays    *int   `json:"delayDays,omitempty"`
}

// handleProcessPayments is the admin entry point for the payment
// lifecycle: schedule one payment, execute or retry one transfer, or run
// the full due-payment sweep.
func (s *Service) handleProcessPayments(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	var req processPaymentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	delayDays := s.config.PaymentDelayDays
	if req.DelayDays != nil {
		if *req.DelayDays < 0 {
			s.respondError(w, http.StatusBadRequest, "delayDays must not be negative")
			return
		}
		delayDays = *req.DelayDays
	}

	switch req.Action {
	case "schedule":
		if req.AssignmentID == "" {
			s.respondError(w, http.StatusBadRequest, "assignmentId is required for schedule")
			return
		}
		payment, created, err := s.payService.ProcessPayment(ctx, req.AssignmentID, delayDays)
		if err != nil {
			if errors.Is(err, types.ErrAssignmentNotFound) {
				s.respondError(w, http.StatusNotFound, "assignment not found")
				return
			}
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"created": created,
			"payment": payment,
		})

	case "execute":
		if req.PaymentID == "" {
			s.respondError(w, http.StatusBadRequest, "paymentId is required for execute")
			return
		}
		payment, err := s.payService.ExecuteTransfer(ctx, req.PaymentID)
		if err != nil {
			if errors.Is(err, types.ErrPaymentNotFound) {
				s.respondError(w, http.StatusNotFound, "payment not found")
				return
			}
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"success": payment.Status == types.PaymentStatusCompleted,
			"payment": payment,
		})

	case "retry":
		if req.PaymentID == "" {
			s.respondError(w, http.StatusBadRequest, "paymentId is required for retry")
			return
		}
		payment, err := s.payService.RetryPayment(ctx, req.PaymentID)
		if err != nil {
			if errors.Is(err, types.ErrPaymentNotFound) {
				s.respondError(w, http.StatusNotFound, "payment not found")
				return
			}
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"success": payment.Status == types.PaymentStatusCompleted,
			"payment": payment,
		})

	case "sweep":
		result, err := s.payService.ProcessScheduledPayments(ctx)
		if err != nil {
			s.logger.WithError(err).Error("scheduled payment sweep failed")
			s.internalServerError(w)
			return
		}
		s.respondJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"result":  result,
		})

	default:
		s.respondError(w, http.StatusBadRequest, "action must be one of schedule, execute, retry, sweep")
	}
}

func (s *Service) handleReconcilePayments(w http.ResponseWriter, r *http.Request) {

	report, err := s.payService.ReconcilePayments(r.Context())
	if err != nil {
		s.logger.WithError(err).Error("payment reconciliation failed")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"report":  report,
	})
}

// handleRepairPayments creates payment rows for completed assignments
// that slipped through without one, then re-audits.
func (s *Service) handleRepairPayments(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	created, err := s.payService.CreateMissingPayments(ctx, s.config.PaymentDelayDays)
	if err != nil {
		s.logger.WithError(err).Error("failed to create missing payments")
		s.internalServerError(w)
		return
	}

	report, err := s.payService.ReconcilePayments(ctx)
	if err != nil {
		s.logger.WithError(err).Error("post-repair reconciliation failed")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"created": created,
		"report":  report,
	})
}

type taxDocumentQuery struct {
	Year int `form:"year"`
}

func (s *Service) handleGetTaxDocument(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("ctx doesn't contain user")
		s.internalServerError(w)
		return
	}

	var query taxDocumentQuery
	if err := decoder.Decode(&query, r.URL.Query()); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid query parameters")
		return
	}

	if query.Year == 0 {
		query.Year = time.Now().Year() - 1
	}

	if err := payments.ValidateTaxYear(query.Year); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	notary, err := s.notaries.NotaryByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrNotaryNotFound) {
			s.respondError(w, http.StatusNotFound, "no notary profile found")
			return
		}
		s.logger.WithError(err).Error("failed to look up notary")
		s.internalServerError(w)
		return
	}

	document, err := s.taxService.GenerateTaxDocument(ctx, notary.ID, query.Year)
	if err != nil {
		s.logger.WithError(err).WithField("notary_id", notary.ID).Error("failed to generate tax document")
		s.internalServerError(w)
		return
	}

	if document == nil {
		s.respondJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"required": false,
			"year":     query.Year,
		})
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"required": true,
		"document": document,
	})
}

type generateTaxDocumentsRequest struct {
	Year int `json:"year"`
}

func (s *Service) handleGenerateTaxDocuments(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	var req generateTaxDocumentsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := payments.ValidateTaxYear(req.Year); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	documents, err := s.taxService.GenerateAll(ctx, req.Year)
	if err != nil {
		s.logger.WithError(err).WithField("year", req.Year).Error("batch tax document generation failed")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"year":      req.Year,
		"generated": len(documents),
		"documents": documents,
	})
}
