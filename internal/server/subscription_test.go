package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"notroom/internal/billing"
	"notroom/pkg/types"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	cognitotypes "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
)

type stubBilling struct {
	createCheckoutSession func(ctx context.Context, params billing.CheckoutSessionParams) (*billing.CheckoutSession, error)
	findOrCreateCustomer  func(ctx context.Context, email, name string) (*billing.Customer, error)
	createRefund          func(ctx context.Context, paymentIntentID string) (*billing.Refund, error)
	createTransfer        func(ctx context.Context, params billing.TransferParams) (*billing.Transfer, error)
}

func (s *stubBilling) CreateCheckoutSession(ctx context.Context, params billing.CheckoutSessionParams) (*billing.CheckoutSession, error) {
	return s.createCheckoutSession(ctx, params)
}

func (s *stubBilling) FindOrCreateCustomer(ctx context.Context, email, name string) (*billing.Customer, error) {
	return s.findOrCreateCustomer(ctx, email, name)
}

func (s *stubBilling) CreateRefund(ctx context.Context, paymentIntentID string) (*billing.Refund, error) {
	return s.createRefund(ctx, paymentIntentID)
}

func (s *stubBilling) CreateTransfer(ctx context.Context, params billing.TransferParams) (*billing.Transfer, error) {
	return s.createTransfer(ctx, params)
}

type stubOnboardings struct {
	onboardingByUser    func(ctx context.Context, userID string) (*types.Onboarding, error)
	setStripeCustomerID func(ctx context.Context, onboardingID, customerID string) error
}

func (s *stubOnboardings) OnboardingByUser(ctx context.Context, userID string) (*types.Onboarding, error) {
	return s.onboardingByUser(ctx, userID)
}

func (s *stubOnboardings) SetStripeCustomerID(ctx context.Context, onboardingID, customerID string) error {
	return s.setStripeCustomerID(ctx, onboardingID, customerID)
}

type stubCognito struct {
	adminGetUser func(ctx context.Context, params *cognitoidentityprovider.AdminGetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminGetUserOutput, error)
}

func (s *stubCognito) AdminGetUser(ctx context.Context, params *cognitoidentityprovider.AdminGetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminGetUserOutput, error) {
	return s.adminGetUser(ctx, params, optFns...)
}

const testPriceID = "price_1NVQcBEawod2W2ebtOIu2alW"

func subscriptionService() *Service {
	svc := testService(nil)
	svc.config.RegisteredOfficePriceID = testPriceID
	svc.config.CognitoUserPoolID = "us-east-1_test"
	return svc
}

func TestSubscriptionCheckout(t *testing.T) {
	svc := subscriptionService()

	svc.onboardings = &stubOnboardings{
		onboardingByUser: func(ctx context.Context, userID string) (*types.Onboarding, error) {
			return &types.Onboarding{
				ID:     "onboarding-1",
				UserID: userID,
				Data: &types.OnboardingData{
					BasicInfo: &types.BasicInfo{FirstName: "Ana", LastName: "Martins"},
				},
			}, nil
		},
		setStripeCustomerID: func(ctx context.Context, onboardingID, customerID string) error {
			if customerID != "cus_123" {
				t.Fatalf("unexpected customer id %s", customerID)
			}
			return nil
		},
	}

	var sessionParams billing.CheckoutSessionParams
	svc.stripe = &stubBilling{
		findOrCreateCustomer: func(ctx context.Context, email, name string) (*billing.Customer, error) {
			if email != "ana@example.com" {
				t.Fatalf("unexpected email %s", email)
			}
			if name != "Ana Martins" {
				t.Fatalf("unexpected name %q", name)
			}
			return &billing.Customer{ID: "cus_123", Email: email}, nil
		},
		createCheckoutSession: func(ctx context.Context, params billing.CheckoutSessionParams) (*billing.CheckoutSession, error) {
			sessionParams = params
			return &billing.CheckoutSession{ID: "cs_sub_1", URL: "https://checkout.stripe.com/c/pay/cs_sub_1"}, nil
		},
	}

	r := authedRequest(http.MethodPost, "/payments/subscription", "")
	r = r.WithContext(context.WithValue(r.Context(), contextKeyEmail, "ana@example.com"))

	rec := httptest.NewRecorder()
	svc.handleSubscriptionCheckout(rec, r)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	if sessionParams.Mode != billing.ModeSubscription {
		t.Fatalf("expected subscription mode, got %s", sessionParams.Mode)
	}
	if sessionParams.PriceID != testPriceID {
		t.Fatalf("unexpected price id %s", sessionParams.PriceID)
	}
	if sessionParams.Metadata["plan"] != "registered_office" {
		t.Fatalf("unexpected metadata %v", sessionParams.Metadata)
	}

	resp := decodeBody(t, rec)
	if resp["checkoutUrl"] != "https://checkout.stripe.com/c/pay/cs_sub_1" {
		t.Fatalf("unexpected checkout url %v", resp["checkoutUrl"])
	}
}

func TestSubscriptionCheckoutUnconfiguredPrice(t *testing.T) {
	svc := testService(nil)
	svc.config.RegisteredOfficePriceID = "placeholder"

	rec := httptest.NewRecorder()
	svc.handleSubscriptionCheckout(rec, authedRequest(http.MethodPost, "/payments/subscription", ""))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unconfigured price, got %d", rec.Code)
	}
}

func TestSubscriptionCheckoutFallsBackToCognitoEmail(t *testing.T) {
	svc := subscriptionService()

	svc.onboardings = &stubOnboardings{
		onboardingByUser: func(ctx context.Context, userID string) (*types.Onboarding, error) {
			return &types.Onboarding{ID: "onboarding-1", UserID: userID}, nil
		},
		setStripeCustomerID: func(ctx context.Context, onboardingID, customerID string) error {
			return nil
		},
	}
	svc.cognitoClient = &stubCognito{
		adminGetUser: func(ctx context.Context, params *cognitoidentityprovider.AdminGetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminGetUserOutput, error) {
			if aws.ToString(params.Username) != "user-1" {
				t.Fatalf("unexpected username %s", aws.ToString(params.Username))
			}
			return &cognitoidentityprovider.AdminGetUserOutput{
				UserAttributes: []cognitotypes.AttributeType{
					{Name: aws.String("sub"), Value: aws.String("user-1")},
					{Name: aws.String("email"), Value: aws.String("fallback@example.com")},
				},
			}, nil
		},
	}

	var gotEmail string
	svc.stripe = &stubBilling{
		findOrCreateCustomer: func(ctx context.Context, email, name string) (*billing.Customer, error) {
			gotEmail = email
			return &billing.Customer{ID: "cus_456", Email: email}, nil
		},
		createCheckoutSession: func(ctx context.Context, params billing.CheckoutSessionParams) (*billing.CheckoutSession, error) {
			return &billing.CheckoutSession{ID: "cs_sub_2", URL: "https://checkout.stripe.com/c/pay/cs_sub_2"}, nil
		},
	}

	rec := httptest.NewRecorder()
	svc.handleSubscriptionCheckout(rec, authedRequest(http.MethodPost, "/payments/subscription", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if gotEmail != "fallback@example.com" {
		t.Fatalf("expected cognito fallback email, got %q", gotEmail)
	}
}
