package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"notroom/internal/billing"
	"notroom/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
)

// handleSubscriptionCheckout creates a subscription-mode checkout session
// for the registered-office plan and records the Stripe customer on the
// caller's application.
func (s *Service) handleSubscriptionCheckout(w http.ResponseWriter, r *http.Request) {

	ctx := r.Context()

	userID, err := s.userIDFromContext(ctx)
	if err != nil {
		s.logger.WithError(err).Error("ctx doesn't contain user")
		s.internalServerError(w)
		return
	}

	if err := billing.ValidatePriceID(s.config.RegisteredOfficePriceID); err != nil {
		s.logger.WithError(err).Error("registered office price id is not configured correctly")
		s.respondError(w, http.StatusBadRequest, "subscription plan is not configured")
		return
	}

	onboarding, err := s.onboardings.OnboardingByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, types.ErrOnboardingNotFound) {
			s.respondError(w, http.StatusNotFound, "no onboarding application found")
			return
		}
		s.logger.WithError(err).Error("failed to load onboarding")
		s.internalServerError(w)
		return
	}

	email, _ := ctx.Value(contextKeyEmail).(string)
	if email == "" {
		email, err = s.lookupCognitoEmail(ctx, userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Error("failed to resolve user email")
			s.respondError(w, http.StatusBadRequest, "no email address on file")
			return
		}
	}

	var name string
	if onboarding.Data != nil && onboarding.Data.BasicInfo != nil {
		name = onboarding.Data.BasicInfo.FullName()
	}

	customer, err := s.stripe.FindOrCreateCustomer(ctx, email, name)
	if err != nil {
		s.logger.WithError(err).Error("failed to find or create stripe customer")
		s.internalServerError(w)
		return
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, billing.CheckoutSessionParams{
		Mode:       billing.ModeSubscription,
		CustomerID: customer.ID,
		PriceID:    s.config.RegisteredOfficePriceID,
		Metadata: map[string]string{
			"user_id":       userID,
			"onboarding_id": onboarding.ID,
			"plan":          "registered_office",
		},
		SuccessURL: fmt.Sprintf("%s/onboarding/subscription?status=success", s.config.AppURL),
		CancelURL:  fmt.Sprintf("%s/onboarding/subscription?status=cancelled", s.config.AppURL),
	})
	if err != nil {
		s.logger.WithError(err).Error("failed to create subscription checkout session")
		s.internalServerError(w)
		return
	}

	if err := s.onboardings.SetStripeCustomerID(ctx, onboarding.ID, customer.ID); err != nil {
		s.logger.WithError(err).WithField("onboarding_id", onboarding.ID).
			Warn("failed to record stripe customer on onboarding")
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"checkoutUrl": session.URL,
	})
}

// lookupCognitoEmail fetches the user's email attribute directly from the
// user pool when the session token carried no email claim.
func (s *Service) lookupCognitoEmail(ctx context.Context, userID string) (string, error) {

	out, err := s.cognitoClient.AdminGetUser(ctx, &cognitoidentityprovider.AdminGetUserInput{
		UserPoolId: aws.String(s.config.CognitoUserPoolID),
		Username:   aws.String(userID),
	})
	if err != nil {
		return "", fmt.Errorf("cognito admin get user: %w", err)
	}

	for _, attr := range out.UserAttributes {
		if aws.ToString(attr.Name) == "email" {
			return aws.ToString(attr.Value), nil
		}
	}

	return "", fmt.Errorf("user %s has no email attribute", userID)
}
