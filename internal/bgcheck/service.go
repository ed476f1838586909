package bgcheck

import (
	"context"
	"fmt"
	"strings"
	"time"

	"notroom/internal/billing"
	"notroom/internal/providers"
	"notroom/pkg/types"

	"github.com/sirupsen/logrus"
)

// OnboardingStore is the slice of the onboarding repository this service
// uses.
type OnboardingStore interface {
	Onboarding(ctx context.Context, onboardingID string) (*types.Onboarding, error)
	OnboardingByUser(ctx context.Context, userID string) (*types.Onboarding, error)
	OnboardingsInProgress(ctx context.Context) ([]*types.Onboarding, error)
	UpdateData(ctx context.Context, onboardingID string, data *types.OnboardingData) error
}

// CheckInitiator starts a check with a provider's API.
type CheckInitiator interface {
	InitiateCheck(ctx context.Context, providerID string, req providers.InitiationRequest) (*providers.InitiationResult, error)
}

// Service orchestrates payment-gated background check initiation and keeps
// the onboarding record's backgroundCheck sub-state current.
type Service struct {
	logger      *logrus.Logger
	config      *types.Config
	onboardings OnboardingStore
	stripe      billing.API
	checks      CheckInitiator
}

func New(
	logger *logrus.Logger,
	config *types.Config,
	onboardings OnboardingStore,
	stripe billing.API,
	checks CheckInitiator,
) *Service {
	return &Service{
		logger:      logger,
		config:      config,
		onboardings: onboardings,
		stripe:      stripe,
		checks:      checks,
	}
}

// checkoutSessionTTL is Stripe's minimum plus buffer: sessions for
// background check payments expire after 30 minutes.
const checkoutSessionTTL = 30 * time.Minute

type CheckoutResult struct {
	RequiresPayment bool
	CheckoutURL     string
	Provider        *types.BackgroundCheckProvider
	Pricing         string
}

// StartCheckout begins the paid path for a background check. Free upload
// providers short-circuit with RequiresPayment=false and never touch
// Stripe.
func (s *Service) StartCheckout(ctx context.Context, userID, providerID string, applicant *types.BasicInfo) (*CheckoutResult, error) {

	onboarding, err := s.onboardings.OnboardingByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	provider, ok := providers.GetProviderByID(providerID)
	if !ok {
		return nil, types.ErrProviderNotFound
	}

	if provider.IsFree() {
		return &CheckoutResult{RequiresPayment: false, Provider: provider}, nil
	}

	email, name := s.applicantIdentity(onboarding, applicant)
	if email == "" {
		return nil, fmt.Errorf("no applicant email available for checkout")
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, billing.CheckoutSessionParams{
		Mode:            billing.ModePayment,
		CustomerEmail:   email,
		ItemName:        fmt.Sprintf("%s Background Check", provider.Name),
		ItemDescription: fmt.Sprintf("Notary background check via %s (%s)", provider.Name, provider.Turnaround),
		AmountCents:     provider.FinalCostCents,
		Currency:        "usd",
		Metadata: map[string]string{
			"user_id":         userID,
			"onboarding_id":   onboarding.ID,
			"provider_id":     provider.ID,
			"base_cost":       fmt.Sprintf("%d", provider.BaseCostCents),
			"markup":          fmt.Sprintf("%.2f", provider.Markup),
			"applicant_email": email,
			"applicant_name":  name,
		},
		SuccessURL: fmt.Sprintf("%s/onboarding/background-check?provider=%s&payment=success&session_id={CHECKOUT_SESSION_ID}", s.config.AppURL, provider.ID),
		CancelURL:  fmt.Sprintf("%s/onboarding/background-check?provider=%s&payment=cancelled", s.config.AppURL, provider.ID),
		ExpiresAt:  time.Now().Add(checkoutSessionTTL),
	})
	if err != nil {
		return nil, fmt.Errorf("create background check checkout session: %w", err)
	}

	// Best effort: Stripe is the source of truth for session state, so a
	// failure to cache the pending payment must not fail the checkout.
	bc := ensureBackgroundCheck(onboarding)
	bc.PendingPayment = &types.PendingPayment{
		SessionID:   session.ID,
		ProviderID:  provider.ID,
		AmountCents: provider.FinalCostCents,
		CreatedAt:   time.Now(),
	}
	bc.UpdatedAt = time.Now()

	if err := s.onboardings.UpdateData(ctx, onboarding.ID, onboarding.Data); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"onboarding_id": onboarding.ID,
			"session_id":    session.ID,
		}).Warn("failed to persist pending payment, continuing")
	}

	return &CheckoutResult{
		RequiresPayment: true,
		CheckoutURL:     session.URL,
		Provider:        provider,
		Pricing:         providers.FormatPrice(provider.FinalCostCents),
	}, nil
}

// CompletedSession is the subset of a Stripe checkout.session.completed
// event the service acts on.
type CompletedSession struct {
	SessionID       string
	PaymentIntentID string
	UserID          string
	OnboardingID    string
	ProviderID      string
	ApplicantEmail  string
	ApplicantName   string
	AmountCents     int64
	Currency        string
}

// HandlePaymentCompleted initiates the paid check. On provider failure the
// compensating action is a refund of the session's payment intent: the
// applicant paid for a service that could not be delivered.
func (s *Service) HandlePaymentCompleted(ctx context.Context, session CompletedSession) error {

	onboarding, err := s.loadOnboarding(ctx, session.OnboardingID, session.UserID)
	if err != nil {
		return err
	}

	bc := ensureBackgroundCheck(onboarding)

	// A redelivered webhook for an already-initiated session is a no-op:
	// re-running it would double-order a paid provider check.
	if bc.Payment != nil && bc.Payment.SessionID == session.SessionID {
		s.logger.WithFields(logrus.Fields{
			"onboarding_id": onboarding.ID,
			"session_id":    session.SessionID,
		}).Info("checkout session already processed, skipping")
		return nil
	}

	provider, ok := providers.GetProviderByID(session.ProviderID)
	if !ok {
		return types.ErrProviderNotFound
	}

	email, name := session.ApplicantEmail, session.ApplicantName
	if email == "" || name == "" {
		fallbackEmail, fallbackName := s.applicantIdentity(onboarding, nil)
		if email == "" {
			email = fallbackEmail
		}
		if name == "" {
			name = fallbackName
		}
	}

	now := time.Now()
	payment := &types.CheckPayment{
		SessionID:       session.SessionID,
		PaymentIntentID: session.PaymentIntentID,
		AmountCents:     session.AmountCents,
		Currency:        session.Currency,
		PaidAt:          now,
	}

	result, err := s.checks.InitiateCheck(ctx, provider.ID, providers.InitiationRequest{
		CandidateEmail: email,
		CandidateName:  name,
		CallbackURL:    fmt.Sprintf("%s/background-check/webhook?provider=%s", s.config.AppURL, provider.ID),
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"onboarding_id": onboarding.ID,
			"provider":      provider.ID,
		}).Error("provider initiation failed after payment")

		bc.Provider = provider.ID
		bc.Status = types.BackgroundCheckStatusError
		bc.Error = err.Error()
		bc.Payment = payment
		bc.PendingPayment = nil
		bc.UpdatedAt = now

		if updateErr := s.onboardings.UpdateData(ctx, onboarding.ID, onboarding.Data); updateErr != nil {
			s.logger.WithError(updateErr).Error("failed to persist error state on onboarding")
		}

		s.refundPayment(ctx, session.PaymentIntentID)

		return fmt.Errorf("initiate %s check: %w", provider.ID, err)
	}

	bc.Provider = provider.ID
	bc.ProviderCheckID = result.CheckID
	bc.Status = types.BackgroundCheckStatusPending
	bc.InvitationURL = result.InvitationURL
	bc.Error = ""
	bc.Payment = payment
	bc.PendingPayment = nil
	bc.InitiatedAt = &now
	bc.UpdatedAt = now

	if err := s.onboardings.UpdateData(ctx, onboarding.ID, onboarding.Data); err != nil {
		return fmt.Errorf("persist initiated check: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"onboarding_id": onboarding.ID,
		"provider":      provider.ID,
		"check_id":      result.CheckID,
	}).Info("background check initiated")

	return nil
}

// HandleSessionExpired clears only the pending payment so the applicant can
// retry; nothing else on the record is touched.
func (s *Service) HandleSessionExpired(ctx context.Context, onboardingID, userID, sessionID string) error {

	onboarding, err := s.loadOnboarding(ctx, onboardingID, userID)
	if err != nil {
		return err
	}

	if onboarding.Data == nil {
		return nil
	}

	bc := onboarding.Data.BackgroundCheck
	if bc == nil || bc.PendingPayment == nil {
		return nil
	}

	if sessionID != "" && bc.PendingPayment.SessionID != sessionID {
		// A newer session replaced the expired one; leave it alone.
		return nil
	}

	bc.PendingPayment = nil
	bc.UpdatedAt = time.Now()

	return s.onboardings.UpdateData(ctx, onboarding.ID, onboarding.Data)
}

// ApplyProviderEvent matches an inbound provider webhook to an open
// onboarding by providerCheckId and persists the new status. An unmatched
// event is not an error: the record may belong to a decommissioned flow.
func (s *Service) ApplyProviderEvent(ctx context.Context, ev *providers.NormalizedEvent) (bool, error) {

	onboardings, err := s.onboardings.OnboardingsInProgress(ctx)
	if err != nil {
		return false, fmt.Errorf("scan onboardings for check %s: %w", ev.CheckID, err)
	}

	for _, onboarding := range onboardings {
		if onboarding.Data == nil {
			continue
		}

		bc := onboarding.Data.BackgroundCheck
		if bc == nil || bc.ProviderCheckID == "" || bc.ProviderCheckID != ev.CheckID {
			continue
		}

		bc.Status = types.BackgroundCheckStatus(strings.ToUpper(ev.Status))
		if ev.Adjudication != "" || ev.ReportURL != "" {
			bc.Result = &types.CheckResult{
				Adjudication: ev.Adjudication,
				ReportURL:    ev.ReportURL,
			}
		}
		bc.CompletedAt = ev.CompletedAt
		bc.UpdatedAt = time.Now()

		if err := s.onboardings.UpdateData(ctx, onboarding.ID, onboarding.Data); err != nil {
			return true, fmt.Errorf("persist provider event for onboarding %s: %w", onboarding.ID, err)
		}

		s.logger.WithFields(logrus.Fields{
			"onboarding_id": onboarding.ID,
			"provider":      ev.Provider,
			"check_id":      ev.CheckID,
			"status":        ev.Status,
		}).Info("provider webhook applied")

		return true, nil
	}

	return false, nil
}

// SubmitUploadedProof records a self-uploaded existing check, which goes to
// manual review rather than a provider API.
func (s *Service) SubmitUploadedProof(ctx context.Context, userID, documentKey string) error {

	onboarding, err := s.onboardings.OnboardingByUser(ctx, userID)
	if err != nil {
		return err
	}

	now := time.Now()
	bc := ensureBackgroundCheck(onboarding)
	bc.Provider = "self_upload"
	bc.Status = types.BackgroundCheckStatusPending
	bc.DocumentKey = documentKey
	bc.PendingPayment = nil
	bc.InitiatedAt = &now
	bc.UpdatedAt = now

	return s.onboardings.UpdateData(ctx, onboarding.ID, onboarding.Data)
}

// Status returns the caller's current background check state, which may be
// nil when no check has been started.
func (s *Service) Status(ctx context.Context, userID string) (*types.BackgroundCheckState, error) {

	onboarding, err := s.onboardings.OnboardingByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	if onboarding.Data == nil {
		return nil, nil
	}

	return onboarding.Data.BackgroundCheck, nil
}

func (s *Service) refundPayment(ctx context.Context, paymentIntentID string) {
	if paymentIntentID == "" {
		s.logger.Warn("no payment intent on failed session, skipping refund")
		return
	}

	refund, err := s.stripe.CreateRefund(ctx, paymentIntentID)
	if err != nil {
		// Not retried automatically; flagged for manual intervention.
		s.logger.WithError(err).WithField("payment_intent", paymentIntentID).
			Error("refund failed, manual intervention required")
		return
	}

	s.logger.WithFields(logrus.Fields{
		"payment_intent": paymentIntentID,
		"refund_id":      refund.ID,
	}).Info("payment refunded after provider failure")
}

func (s *Service) loadOnboarding(ctx context.Context, onboardingID, userID string) (*types.Onboarding, error) {
	if onboardingID != "" {
		onboarding, err := s.onboardings.Onboarding(ctx, onboardingID)
		if err == nil {
			return onboarding, nil
		}
	}
	return s.onboardings.OnboardingByUser(ctx, userID)
}

func (s *Service) applicantIdentity(onboarding *types.Onboarding, override *types.BasicInfo) (email, name string) {
	if override != nil {
		email = override.Email
		name = override.FullName()
	}

	if onboarding.Data == nil {
		return email, name
	}

	if info := onboarding.Data.BasicInfo; info != nil {
		if email == "" {
			email = info.Email
		}
		if name == "" {
			name = info.FullName()
		}
	}

	return email, name
}

func ensureBackgroundCheck(onboarding *types.Onboarding) *types.BackgroundCheckState {
	if onboarding.Data == nil {
		onboarding.Data = &types.OnboardingData{}
	}
	if onboarding.Data.BackgroundCheck == nil {
		onboarding.Data.BackgroundCheck = &types.BackgroundCheckState{}
	}
	return onboarding.Data.BackgroundCheck
}
