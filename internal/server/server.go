package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"notroom/internal/bgcheck"
	"notroom/internal/billing"
	"notroom/internal/payments"
	"notroom/internal/providers"
	"notroom/pkg/types"

	"github.com/alexedwards/flow"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/go-playground/form/v4"
	"github.com/gorilla/securecookie"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v84"
)

var decoder = form.NewDecoder()

const cookieAccessTokenName = "nr_access_token"

type backgroundCheckService interface {
	StartCheckout(ctx context.Context, userID, providerID string, applicant *types.BasicInfo) (*bgcheck.CheckoutResult, error)
	HandlePaymentCompleted(ctx context.Context, session bgcheck.CompletedSession) error
	HandleSessionExpired(ctx context.Context, onboardingID, userID, sessionID string) error
	ApplyProviderEvent(ctx context.Context, ev *providers.NormalizedEvent) (bool, error)
	SubmitUploadedProof(ctx context.Context, userID, documentKey string) error
	Status(ctx context.Context, userID string) (*types.BackgroundCheckState, error)
}

type paymentService interface {
	ProcessPayment(ctx context.Context, assignmentID string, delayDays int) (*types.NotaryPayment, bool, error)
	ExecuteTransfer(ctx context.Context, paymentID string) (*types.NotaryPayment, error)
	RetryPayment(ctx context.Context, paymentID string) (*types.NotaryPayment, error)
	ProcessScheduledPayments(ctx context.Context) (*payments.SweepResult, error)
	ReconcilePayments(ctx context.Context) (*payments.ReconciliationReport, error)
	CreateMissingPayments(ctx context.Context, delayDays int) (int, error)
	NotaryBalance(ctx context.Context, notaryID string) (*payments.Balance, error)
}

type taxDocumentService interface {
	GenerateTaxDocument(ctx context.Context, notaryID string, year int) (*types.TaxDocument, error)
	GenerateAll(ctx context.Context, year int) ([]*types.TaxDocument, error)
}

type notaryStore interface {
	NotaryByUser(ctx context.Context, userID string) (*types.Notary, error)
}

type onboardingStore interface {
	OnboardingByUser(ctx context.Context, userID string) (*types.Onboarding, error)
	SetStripeCustomerID(ctx context.Context, onboardingID, customerID string) error
}

type documentStorage interface {
	PutDocument(ctx context.Context, key string, body []byte, contentType string) error
}

type cognitoAPI interface {
	AdminGetUser(ctx context.Context, params *cognitoidentityprovider.AdminGetUserInput, optFns ...func(*cognitoidentityprovider.Options)) (*cognitoidentityprovider.AdminGetUserOutput, error)
}

type Service struct {
	logger *logrus.Logger
	config *types.Config

	bgchecks    backgroundCheckService
	payService  paymentService
	taxService  taxDocumentService
	notaries    notaryStore
	onboardings onboardingStore
	stripe      billing.API
	storage     documentStorage

	cognitoClient cognitoAPI
	cookie        *securecookie.SecureCookie

	jwksCache *jwk.Cache
	jwksURL   string

	// Swappable so handler tests can bypass real signature verification.
	verifyStripeEvent func(payload []byte, sigHeader, secret string) (stripe.Event, error)

	server *http.Server
}

func New(
	config *types.Config,
	logger *logrus.Logger,
	cognitoClient cognitoAPI,
	bgchecks backgroundCheckService,
	payService paymentService,
	taxService taxDocumentService,
	notaries notaryStore,
	onboardings onboardingStore,
	stripeAPI billing.API,
	storage documentStorage,
	jwkCache *jwk.Cache,
	jwksURL string,
) (*Service, error) {
	mux := flow.New()

	hashKey, _ := base64.StdEncoding.DecodeString(config.CookieHashKey)
	blockKey, _ := base64.StdEncoding.DecodeString(config.CookieBlockKey)

	s := &Service{
		logger: logger,
		config: config,
		cookie: securecookie.New(hashKey, blockKey),

		bgchecks:    bgchecks,
		payService:  payService,
		taxService:  taxService,
		notaries:    notaries,
		onboardings: onboardings,
		stripe:      stripeAPI,
		storage:     storage,

		cognitoClient: cognitoClient,

		jwksCache: jwkCache,
		jwksURL:   jwksURL,

		verifyStripeEvent: billing.ConstructWebhookEvent,

		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.ServerPort),
			Handler:           mux,
			ReadTimeout:       time.Duration(config.ReadTimeoutSec) * time.Second,
			ReadHeaderTimeout: time.Duration(config.ReadTimeoutSec) * time.Second,
			WriteTimeout:      time.Duration(config.WriteTimeoutSec) * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
	}

	s.buildRouter(mux)

	return s, nil
}

func (s *Service) Start() error {
	return s.server.ListenAndServe()
}

func (s *Service) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) buildRouter(r *flow.Mux) {
	r.Use(s.StripTrailingSlash)
	r.Use(s.LoggingMiddleware)

	// Webhooks authenticate with signatures, not sessions.
	r.HandleFunc("/background-check/webhook", s.handleProviderWebhook, http.MethodPost)
	r.HandleFunc("/background-check/webhook", s.handleWebhookHealth, http.MethodGet)
	r.HandleFunc("/background-check/provider-webhook", s.handleStripeWebhook, http.MethodPost)

	r.Group(func(r *flow.Mux) {
		r.Use(s.RequireAuth)

		r.HandleFunc("/background-check/initiate", s.handleInitiateBackgroundCheck, http.MethodPost)
		r.HandleFunc("/background-check/initiate", s.handleBackgroundCheckStatus, http.MethodGet)
		r.HandleFunc("/background-check/upload", s.handleUploadBackgroundCheck, http.MethodPost)

		r.HandleFunc("/payments/balance", s.handlePaymentBalance, http.MethodGet)
		r.HandleFunc("/payments/subscription", s.handleSubscriptionCheckout, http.MethodPost)
		r.HandleFunc("/payments/tax-documents", s.handleGetTaxDocument, http.MethodGet)

		r.Group(func(r *flow.Mux) {
			r.Use(s.RequireAdmin)

			r.HandleFunc("/payments/process", s.handleProcessPayments, http.MethodPost)
			r.HandleFunc("/payments/reconcile", s.handleReconcilePayments, http.MethodGet)
			r.HandleFunc("/payments/reconcile", s.handleRepairPayments, http.MethodPost)
			r.HandleFunc("/payments/tax-documents", s.handleGenerateTaxDocuments, http.MethodPost)
		})
	})
}

func (s *Service) userIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(contextKeyUserID).(string)
	if !ok {
		return "", fmt.Errorf("user id not found in context")
	}
	return userID, nil
}
