package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"notroom/internal/bgcheck"
	"notroom/internal/providers"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v84"
)

const maxWebhookBodyBytes = 65536

// handleProviderWebhook receives status callbacks from all background
// check providers on a single endpoint. Unmatched events are acked with
// 200 so providers don't retry forever against records that no longer
// exist.
func (s *Service) handleProviderWebhook(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	adapter, ok := providers.ResolveAdapter(r)
	if !ok {
		s.respondError(w, http.StatusBadRequest, "unable to determine webhook provider")
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	// Verification runs only in production and only when the provider
	// actually signed the payload. Known risk: not every provider signs
	// every callback, so an absent header is accepted as-is.
	signature := r.Header.Get(adapter.SignatureHeader())
	if signature != "" && s.config.IsProduction() {
		secret := s.config.ProviderWebhookSecret(adapter.ID())
		if !adapter.VerifySignature(raw, signature, secret) {
			s.logger.WithFields(logrus.Fields{
				"provider": adapter.ID(),
			}).Warn("provider webhook signature verification failed")
			s.respondError(w, http.StatusUnauthorized, "invalid webhook signature")
			return
		}
	}

	event, err := adapter.ParsePayload(raw)
	if err != nil {
		s.logger.WithError(err).WithField("provider", adapter.ID()).Warn("malformed provider webhook payload")
		s.respondError(w, http.StatusBadRequest, "malformed webhook payload")
		return
	}

	matched, err := s.bgchecks.ApplyProviderEvent(ctx, event)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"provider": adapter.ID(),
			"checkId":  event.CheckID,
		}).Error("failed to apply provider webhook event")
		s.internalServerError(w)
		return
	}

	if !matched {
		s.logger.WithFields(logrus.Fields{
			"provider": adapter.ID(),
			"checkId":  event.CheckID,
		}).Info("provider webhook did not match any in-progress application")
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"received": true,
		"matched":  matched,
	})
}

// handleStripeWebhook processes checkout session events for background
// check payments. Signature failures are a hard 400 with no side effects.
func (s *Service) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	event, err := s.verifyStripeEvent(payload, r.Header.Get("Stripe-Signature"), s.config.StripeWebhookSecret)
	if err != nil {
		s.logger.WithError(err).Warn("stripe webhook signature verification failed")
		s.respondError(w, http.StatusBadRequest, "webhook signature verification failed")
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		s.handleCheckoutCompleted(ctx, w, event)
	case "checkout.session.expired":
		s.handleCheckoutExpired(ctx, w, event)
	default:
		s.respondJSON(w, http.StatusOK, map[string]any{"received": true})
	}
}

func (s *Service) handleCheckoutCompleted(ctx context.Context, w http.ResponseWriter, event stripe.Event) {

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		s.logger.WithError(err).Error("failed to parse checkout session from stripe event")
		s.respondError(w, http.StatusBadRequest, "malformed checkout session payload")
		return
	}

	userID := session.Metadata["user_id"]
	onboardingID := session.Metadata["onboarding_id"]
	providerID := session.Metadata["provider_id"]
	applicantEmail := session.Metadata["applicant_email"]
	if userID == "" || providerID == "" || applicantEmail == "" {
		s.respondError(w, http.StatusBadRequest, "checkout session is missing required metadata")
		return
	}

	completed := bgcheck.CompletedSession{
		SessionID:      session.ID,
		UserID:         userID,
		OnboardingID:   onboardingID,
		ProviderID:     providerID,
		ApplicantEmail: applicantEmail,
		ApplicantName:  session.Metadata["applicant_name"],
		AmountCents:    session.AmountTotal,
		Currency:       string(session.Currency),
	}
	if session.PaymentIntent != nil {
		completed.PaymentIntentID = session.PaymentIntent.ID
	}

	if err := s.bgchecks.HandlePaymentCompleted(ctx, completed); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"sessionId": session.ID,
			"provider":  providerID,
		}).Error("failed to process completed checkout session")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"received": true})
}

func (s *Service) handleCheckoutExpired(ctx context.Context, w http.ResponseWriter, event stripe.Event) {

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		s.logger.WithError(err).Error("failed to parse checkout session from stripe event")
		s.respondError(w, http.StatusBadRequest, "malformed checkout session payload")
		return
	}

	userID := session.Metadata["user_id"]
	onboardingID := session.Metadata["onboarding_id"]

	if err := s.bgchecks.HandleSessionExpired(ctx, onboardingID, userID, session.ID); err != nil {
		s.logger.WithError(err).WithField("sessionId", session.ID).Error("failed to process expired checkout session")
		s.internalServerError(w)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{"received": true})
}
