package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type OnboardingStatus string

const (
	OnboardingStatusInProgress OnboardingStatus = "IN_PROGRESS"
	OnboardingStatusSubmitted  OnboardingStatus = "SUBMITTED"
	OnboardingStatusApproved   OnboardingStatus = "APPROVED"
	OnboardingStatusRejected   OnboardingStatus = "REJECTED"
)

type BackgroundCheckStatus string

const (
	BackgroundCheckStatusPending  BackgroundCheckStatus = "PENDING"
	BackgroundCheckStatusClear    BackgroundCheckStatus = "CLEAR"
	BackgroundCheckStatusConsider BackgroundCheckStatus = "CONSIDER"
	BackgroundCheckStatusError    BackgroundCheckStatus = "ERROR"
)

type Onboarding struct {
	ID               string           `db:"id"`
	UserID           string           `db:"user_id"`
	Status           OnboardingStatus `db:"status"`
	StripeCustomerID *string          `db:"stripe_customer_id"`
	Data             *OnboardingData  `db:"data"`
	CreatedAt        time.Time        `db:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at"`
}

// OnboardingData is the per-applicant step data, persisted as a jsonb
// column. Each section is a typed sub-record rather than a free-form map so
// field access is checked at compile time.
type OnboardingData struct {
	BasicInfo       *BasicInfo            `json:"basicInfo,omitempty"`
	BackgroundCheck *BackgroundCheckState `json:"backgroundCheck,omitempty"`
}

func (d *OnboardingData) Value() (driver.Value, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func (d *OnboardingData) Scan(src any) error {
	if src == nil {
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	}

	return fmt.Errorf("cannot scan %T into OnboardingData", src)
}

type BasicInfo struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

func (b *BasicInfo) FullName() string {
	if b == nil {
		return ""
	}
	if b.FirstName == "" {
		return b.LastName
	}
	if b.LastName == "" {
		return b.FirstName
	}
	return b.FirstName + " " + b.LastName
}

// BackgroundCheckState tracks a single applicant's check across payment,
// initiation and provider adjudication.
//
// Invariants: at most one non-nil PendingPayment at a time (a new checkout
// session overwrites the previous one); ProviderCheckID is the join key for
// inbound provider webhooks.
type BackgroundCheckState struct {
	Provider        string                `json:"provider,omitempty"`
	ProviderCheckID string                `json:"providerCheckId,omitempty"`
	Status          BackgroundCheckStatus `json:"status,omitempty"`
	InvitationURL   string                `json:"invitationUrl,omitempty"`
	Error           string                `json:"error,omitempty"`

	PendingPayment *PendingPayment `json:"pendingPayment,omitempty"`
	Payment        *CheckPayment   `json:"payment,omitempty"`
	Result         *CheckResult    `json:"result,omitempty"`

	DocumentKey string `json:"documentKey,omitempty"` // upload-method proof

	InitiatedAt *time.Time `json:"initiatedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// PendingPayment is a best-effort local cache of an open checkout session.
// Stripe remains the source of truth; it is cleared on completion or expiry.
type PendingPayment struct {
	SessionID   string    `json:"sessionId"`
	ProviderID  string    `json:"providerId"`
	AmountCents int64     `json:"amount"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CheckPayment struct {
	SessionID       string    `json:"sessionId"`
	PaymentIntentID string    `json:"paymentIntentId,omitempty"`
	AmountCents     int64     `json:"amount"`
	Currency        string    `json:"currency"`
	PaidAt          time.Time `json:"paidAt"`
}

type CheckResult struct {
	Adjudication string `json:"adjudication,omitempty"`
	ReportURL    string `json:"reportUrl,omitempty"`
}
