package types

import "time"

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusCompleted  PaymentStatus = "COMPLETED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
)

// NotaryPayment is one payout owed for one completed assignment. Status
// transitions are monotonic except FAILED -> PENDING on explicit retry.
type NotaryPayment struct {
	ID               string        `db:"id"`
	NotaryID         string        `db:"notary_id"`
	AssignmentID     string        `db:"assignment_id"`
	AmountCents      int64         `db:"amount_cents"`
	Status           PaymentStatus `db:"status"`
	ScheduledFor     time.Time     `db:"scheduled_for"`
	CompletedAt      *time.Time    `db:"completed_at"`
	StripeTransferID *string       `db:"stripe_transfer_id"`
	LastError        *string       `db:"last_error"`
	CreatedAt        time.Time     `db:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at"`
}

// PaymentTotals is the aggregate view backing a notary's balance.
type PaymentTotals struct {
	PaidCents    int64 `db:"paid_cents"`
	PendingCents int64 `db:"pending_cents"`
	FailedCents  int64 `db:"failed_cents"`
	PaymentCount int   `db:"payment_count"`
}

type AssignmentStatus string

const (
	AssignmentStatusScheduled AssignmentStatus = "SCHEDULED"
	AssignmentStatusCompleted AssignmentStatus = "COMPLETED"
	AssignmentStatusCancelled AssignmentStatus = "CANCELLED"
)

type AssignmentPaymentStatus string

const (
	AssignmentPaymentStatusUnpaid  AssignmentPaymentStatus = "UNPAID"
	AssignmentPaymentStatusPending AssignmentPaymentStatus = "PENDING"
	AssignmentPaymentStatusPaid    AssignmentPaymentStatus = "PAID"
	AssignmentPaymentStatusFailed  AssignmentPaymentStatus = "FAILED"
)

// Assignment is owned by the scheduling subsystem; PaymentStatus mirrors the
// state of the associated NotaryPayment and is kept in sync by the payment
// lifecycle service.
type Assignment struct {
	ID            string                  `db:"id"`
	NotaryID      string                  `db:"notary_id"`
	Status        AssignmentStatus        `db:"status"`
	PaymentStatus AssignmentPaymentStatus `db:"payment_status"`
	FeeCents      int64                   `db:"fee_cents"`
	CompletedAt   *time.Time              `db:"completed_at"`
	CreatedAt     time.Time               `db:"created_at"`
	UpdatedAt     time.Time               `db:"updated_at"`
}

type Notary struct {
	ID              string     `db:"id"`
	UserID          string     `db:"user_id"`
	Email           string     `db:"email"`
	Name            string     `db:"name"`
	StripeAccountID *string    `db:"stripe_account_id"`
	Active          bool       `db:"active"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
	DeactivatedAt   *time.Time `db:"deactivated_at"`
}

// TaxDocumentThresholdCents is the 1099-NEC reporting threshold ($600).
const TaxDocumentThresholdCents int64 = 60000

type TaxDocument struct {
	ID               string    `db:"id"`
	NotaryID         string    `db:"notary_id"`
	Year             int       `db:"year"`
	TotalAmountCents int64     `db:"total_amount_cents"`
	PaymentCount     int       `db:"payment_count"`
	StorageKey       *string   `db:"storage_key"`
	GeneratedAt      time.Time `db:"generated_at"`
}
