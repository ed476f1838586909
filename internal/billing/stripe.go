package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

// API is the slice of Stripe this service needs. Handlers and services take
// the interface so tests can substitute a fake.
type API interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error)
	FindOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error)
	CreateRefund(ctx context.Context, paymentIntentID string) (*Refund, error)
	CreateTransfer(ctx context.Context, params TransferParams) (*Transfer, error)
}

const (
	ModePayment      = "payment"
	ModeSubscription = "subscription"
)

type CheckoutSessionParams struct {
	Mode          string
	CustomerID    string
	CustomerEmail string

	// Subscription mode: a pre-configured Stripe Price.
	PriceID string

	// Payment mode: a single dynamically priced line item.
	ItemName        string
	ItemDescription string
	AmountCents     int64
	Currency        string

	Metadata   map[string]string
	SuccessURL string
	CancelURL  string
	ExpiresAt  time.Time
}

type CheckoutSession struct {
	ID         string
	URL        string
	CustomerID string
}

type Customer struct {
	ID    string
	Email string
}

type Refund struct {
	ID     string
	Status string
}

type TransferParams struct {
	AmountCents        int64
	Currency           string
	DestinationAccount string
	Description        string
	Metadata           map[string]string
}

type Transfer struct {
	ID string
}

// Client is the production implementation of API backed by stripe-go.
type Client struct {
	sc *stripe.Client
}

func NewClient(apiKey string) *Client {
	return &Client{sc: stripe.NewClient(apiKey)}
}

func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {

	sessionParams := &stripe.CheckoutSessionCreateParams{
		Mode:       stripe.String(params.Mode),
		SuccessURL: stripe.String(params.SuccessURL),
		CancelURL:  stripe.String(params.CancelURL),
		Metadata:   params.Metadata,
	}

	if params.CustomerID != "" {
		sessionParams.Customer = stripe.String(params.CustomerID)
	} else if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	if !params.ExpiresAt.IsZero() {
		sessionParams.ExpiresAt = stripe.Int64(params.ExpiresAt.Unix())
	}

	switch params.Mode {
	case ModeSubscription:
		sessionParams.LineItems = []*stripe.CheckoutSessionCreateLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		}
	case ModePayment:
		currency := params.Currency
		if currency == "" {
			currency = "usd"
		}

		sessionParams.LineItems = []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency:   stripe.String(currency),
					UnitAmount: stripe.Int64(params.AmountCents),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name:        stripe.String(params.ItemName),
						Description: stripe.String(params.ItemDescription),
					},
				},
				Quantity: stripe.Int64(1),
			},
		}
		sessionParams.PaymentIntentData = &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			Metadata: params.Metadata,
		}
	default:
		return nil, fmt.Errorf("unsupported checkout mode %q", params.Mode)
	}

	session, err := c.sc.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	out := &CheckoutSession{ID: session.ID, URL: session.URL}
	if session.Customer != nil {
		out.CustomerID = session.Customer.ID
	}

	return out, nil
}

// FindOrCreateCustomer looks up a customer by email and creates one when
// none exists. Lookup and create are not transactional; a concurrent retry
// could create a duplicate, which the next lookup de-dupes.
func (c *Client) FindOrCreateCustomer(ctx context.Context, email, name string) (*Customer, error) {

	listParams := &stripe.CustomerListParams{Email: stripe.String(email)}
	for customer, err := range c.sc.V1Customers.List(ctx, listParams) {
		if err != nil {
			return nil, fmt.Errorf("list customers: %w", err)
		}
		return &Customer{ID: customer.ID, Email: customer.Email}, nil
	}

	createParams := &stripe.CustomerCreateParams{
		Email: stripe.String(email),
	}
	if name != "" {
		createParams.Name = stripe.String(name)
	}

	customer, err := c.sc.V1Customers.Create(ctx, createParams)
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}

	return &Customer{ID: customer.ID, Email: customer.Email}, nil
}

func (c *Client) CreateRefund(ctx context.Context, paymentIntentID string) (*Refund, error) {

	refund, err := c.sc.V1Refunds.Create(ctx, &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(paymentIntentID),
	})
	if err != nil {
		return nil, fmt.Errorf("create refund: %w", err)
	}

	return &Refund{ID: refund.ID, Status: string(refund.Status)}, nil
}

// CreateTransfer moves funds from the platform balance to a notary's
// connected account.
func (c *Client) CreateTransfer(ctx context.Context, params TransferParams) (*Transfer, error) {

	currency := params.Currency
	if currency == "" {
		currency = "usd"
	}

	transferParams := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(params.AmountCents),
		Currency:    stripe.String(currency),
		Destination: stripe.String(params.DestinationAccount),
		Metadata:    params.Metadata,
	}
	if params.Description != "" {
		transferParams.Description = stripe.String(params.Description)
	}

	transfer, err := c.sc.V1Transfers.Create(ctx, transferParams)
	if err != nil {
		return nil, fmt.Errorf("create transfer: %w", err)
	}

	return &Transfer{ID: transfer.ID}, nil
}

// ConstructWebhookEvent verifies the Stripe-Signature header against the
// raw body and returns the parsed event.
func ConstructWebhookEvent(payload []byte, sigHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEvent(payload, sigHeader, secret)
}
