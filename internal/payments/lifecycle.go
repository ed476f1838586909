package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"notroom/internal/billing"
	"notroom/internal/utils"
	"notroom/pkg/types"

	"github.com/sirupsen/logrus"
)

type PaymentStore interface {
	Payment(ctx context.Context, paymentID string) (*types.NotaryPayment, error)
	PaymentByAssignment(ctx context.Context, assignmentID string) (*types.NotaryPayment, error)
	CreatePayment(ctx context.Context, payment *types.NotaryPayment) error
	UpdatePayment(ctx context.Context, paymentID string, payment *types.NotaryPayment) error
	DuePayments(ctx context.Context, now time.Time) ([]*types.NotaryPayment, error)
	CountByStatus(ctx context.Context, status types.PaymentStatus) (int, error)
	CountDue(ctx context.Context, now time.Time) (int, error)
	CompletedPaymentsForNotary(ctx context.Context, notaryID string, from, to time.Time) ([]*types.NotaryPayment, error)
	TotalsForNotary(ctx context.Context, notaryID string) (*types.PaymentTotals, error)
}

type AssignmentStore interface {
	Assignment(ctx context.Context, assignmentID string) (*types.Assignment, error)
	CompletedWithoutPayment(ctx context.Context) ([]*types.Assignment, error)
	CountCompletedWithoutPayment(ctx context.Context) (int, error)
	SetPaymentStatus(ctx context.Context, assignmentID string, status types.AssignmentPaymentStatus) error
}

type NotaryStore interface {
	Notary(ctx context.Context, notaryID string) (*types.Notary, error)
	ActiveNotaries(ctx context.Context) ([]*types.Notary, error)
}

// TransferClient is the slice of the Stripe API the lifecycle needs.
type TransferClient interface {
	CreateTransfer(ctx context.Context, params billing.TransferParams) (*billing.Transfer, error)
}

// Service drives each notary payment through
// PENDING -> PROCESSING -> COMPLETED, with FAILED on transfer error and
// FAILED -> PENDING on explicit retry.
type Service struct {
	logger      *logrus.Logger
	payments    PaymentStore
	assignments AssignmentStore
	notaries    NotaryStore
	stripe      TransferClient

	// now is swappable in tests.
	now func() time.Time
}

func NewService(
	logger *logrus.Logger,
	payments PaymentStore,
	assignments AssignmentStore,
	notaries NotaryStore,
	stripe TransferClient,
) *Service {
	return &Service{
		logger:      logger,
		payments:    payments,
		assignments: assignments,
		notaries:    notaries,
		stripe:      stripe,
		now:         time.Now,
	}
}

// ProcessPayment creates the PENDING payment row for a completed
// assignment. The returned bool is false when a payment already existed:
// duplicates are prevented, not errored.
func (s *Service) ProcessPayment(ctx context.Context, assignmentID string, delayDays int) (*types.NotaryPayment, bool, error) {

	assignment, err := s.assignments.Assignment(ctx, assignmentID)
	if err != nil {
		return nil, false, err
	}

	if assignment.Status != types.AssignmentStatusCompleted {
		return nil, false, fmt.Errorf("assignment %s is %s, only completed assignments are payable", assignmentID, assignment.Status)
	}

	existing, err := s.payments.PaymentByAssignment(ctx, assignmentID)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, types.ErrPaymentNotFound) {
		return nil, false, fmt.Errorf("check existing payment for assignment %s: %w", assignmentID, err)
	}

	payment := &types.NotaryPayment{
		NotaryID:     assignment.NotaryID,
		AssignmentID: assignment.ID,
		AmountCents:  assignment.FeeCents,
		Status:       types.PaymentStatusPending,
		ScheduledFor: s.now().AddDate(0, 0, delayDays),
	}

	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return nil, false, fmt.Errorf("create payment for assignment %s: %w", assignmentID, err)
	}

	if err := s.assignments.SetPaymentStatus(ctx, assignment.ID, types.AssignmentPaymentStatusPending); err != nil {
		s.logger.WithError(err).WithField("assignment_id", assignment.ID).
			Warn("failed to mirror payment status onto assignment")
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":    payment.ID,
		"assignment_id": assignment.ID,
		"amount_cents":  payment.AmountCents,
		"scheduled_for": payment.ScheduledFor,
	}).Info("notary payment scheduled")

	return payment, true, nil
}

// ExecuteTransfer runs the Stripe Connect transfer for one payment. A
// failed transfer is recorded on the payment (status FAILED, last error),
// not returned as an error: batch callers must be able to continue.
func (s *Service) ExecuteTransfer(ctx context.Context, paymentID string) (*types.NotaryPayment, error) {

	payment, err := s.payments.Payment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	switch payment.Status {
	case types.PaymentStatusCompleted:
		return payment, nil
	case types.PaymentStatusFailed:
		return nil, fmt.Errorf("payment %s is FAILED, use retry", paymentID)
	}

	payment.Status = types.PaymentStatusProcessing
	if err := s.payments.UpdatePayment(ctx, payment.ID, payment); err != nil {
		return nil, fmt.Errorf("mark payment %s processing: %w", paymentID, err)
	}

	notary, err := s.notaries.Notary(ctx, payment.NotaryID)
	if err != nil {
		return s.failPayment(ctx, payment, fmt.Sprintf("notary lookup failed: %v", err)), nil
	}

	if notary.StripeAccountID == nil || *notary.StripeAccountID == "" {
		return s.failPayment(ctx, payment, "notary has no connected stripe account"), nil
	}

	transfer, err := s.stripe.CreateTransfer(ctx, billing.TransferParams{
		AmountCents:        payment.AmountCents,
		Currency:           "usd",
		DestinationAccount: *notary.StripeAccountID,
		Description:        fmt.Sprintf("Notary assignment %s payout", payment.AssignmentID),
		Metadata: map[string]string{
			"payment_id":    payment.ID,
			"assignment_id": payment.AssignmentID,
			"notary_id":     payment.NotaryID,
		},
	})
	if err != nil {
		return s.failPayment(ctx, payment, err.Error()), nil
	}

	now := s.now()
	payment.Status = types.PaymentStatusCompleted
	payment.CompletedAt = &now
	payment.StripeTransferID = &transfer.ID
	payment.LastError = nil

	if err := s.payments.UpdatePayment(ctx, payment.ID, payment); err != nil {
		// Transfer went through but the record didn't: surface loudly, the
		// reconciliation sweep will find the drift.
		return payment, fmt.Errorf("transfer %s succeeded but payment update failed: %w", transfer.ID, err)
	}

	if err := s.assignments.SetPaymentStatus(ctx, payment.AssignmentID, types.AssignmentPaymentStatusPaid); err != nil {
		s.logger.WithError(err).WithField("assignment_id", payment.AssignmentID).
			Warn("failed to mark assignment paid")
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id":  payment.ID,
		"transfer_id": transfer.ID,
		"notary_id":   payment.NotaryID,
	}).Info("notary payment completed")

	return payment, nil
}

func (s *Service) failPayment(ctx context.Context, payment *types.NotaryPayment, reason string) *types.NotaryPayment {

	payment.Status = types.PaymentStatusFailed
	payment.LastError = utils.StringPtr(reason)

	if err := s.payments.UpdatePayment(ctx, payment.ID, payment); err != nil {
		s.logger.WithError(err).WithField("payment_id", payment.ID).
			Error("failed to record payment failure")
	}

	if err := s.assignments.SetPaymentStatus(ctx, payment.AssignmentID, types.AssignmentPaymentStatusFailed); err != nil {
		s.logger.WithError(err).WithField("assignment_id", payment.AssignmentID).
			Warn("failed to mirror failure onto assignment")
	}

	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"reason":     reason,
	}).Error("notary payment failed")

	return payment
}

// RetryPayment resets a FAILED payment to PENDING and immediately
// re-attempts the transfer. Retry is always operator-initiated.
func (s *Service) RetryPayment(ctx context.Context, paymentID string) (*types.NotaryPayment, error) {

	payment, err := s.payments.Payment(ctx, paymentID)
	if err != nil {
		return nil, err
	}

	if payment.Status != types.PaymentStatusFailed {
		return nil, fmt.Errorf("payment %s is %s, only FAILED payments can be retried", paymentID, payment.Status)
	}

	payment.Status = types.PaymentStatusPending
	payment.LastError = nil

	if err := s.payments.UpdatePayment(ctx, payment.ID, payment); err != nil {
		return nil, fmt.Errorf("reset payment %s for retry: %w", paymentID, err)
	}

	return s.ExecuteTransfer(ctx, paymentID)
}

type SweepResult struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// ProcessScheduledPayments executes every due PENDING payment. Items run
// sequentially (Stripe Connect rate limits) and one bad transfer never
// aborts the batch.
func (s *Service) ProcessScheduledPayments(ctx context.Context) (*SweepResult, error) {

	due, err := s.payments.DuePayments(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("fetch due payments: %w", err)
	}

	result := &SweepResult{Processed: len(due)}
	for _, payment := range due {
		executed, err := s.ExecuteTransfer(ctx, payment.ID)
		if err != nil {
			s.logger.WithError(err).WithField("payment_id", payment.ID).
				Error("sweep could not execute payment")
			result.Failed++
			continue
		}

		if executed.Status == types.PaymentStatusCompleted {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}

	s.logger.WithFields(logrus.Fields{
		"processed": result.Processed,
		"succeeded": result.Succeeded,
		"failed":    result.Failed,
	}).Info("scheduled payment sweep finished")

	return result, nil
}

type ReconciliationReport struct {
	UnpaidAssignments  int  `json:"unpaidAssignments"`
	FailedPayments     int  `json:"failedPayments"`
	PendingPayments    int  `json:"pendingPayments"`
	ProcessingPayments int  `json:"processingPayments"`
	DueForProcessing   int  `json:"dueForProcessing"`
	IsHealthy          bool `json:"isHealthy"`
}

// ReconcilePayments is a read-only audit of drift between assignments and
// their payments. Healthy means zero unpaid completed assignments and zero
// failed payments.
func (s *Service) ReconcilePayments(ctx context.Context) (*ReconciliationReport, error) {

	unpaid, err := s.assignments.CountCompletedWithoutPayment(ctx)
	if err != nil {
		return nil, fmt.Errorf("count unpaid assignments: %w", err)
	}

	failed, err := s.payments.CountByStatus(ctx, types.PaymentStatusFailed)
	if err != nil {
		return nil, fmt.Errorf("count failed payments: %w", err)
	}

	pending, err := s.payments.CountByStatus(ctx, types.PaymentStatusPending)
	if err != nil {
		return nil, fmt.Errorf("count pending payments: %w", err)
	}

	processing, err := s.payments.CountByStatus(ctx, types.PaymentStatusProcessing)
	if err != nil {
		return nil, fmt.Errorf("count processing payments: %w", err)
	}

	dueCount, err := s.payments.CountDue(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("count due payments: %w", err)
	}

	return &ReconciliationReport{
		UnpaidAssignments:  unpaid,
		FailedPayments:     failed,
		PendingPayments:    pending,
		ProcessingPayments: processing,
		DueForProcessing:   dueCount,
		IsHealthy:          unpaid == 0 && failed == 0,
	}, nil
}

type Balance struct {
	NotaryID     string `json:"notaryId"`
	PaidCents    int64  `json:"paidCents"`
	PendingCents int64  `json:"pendingCents"`
	FailedCents  int64  `json:"failedCents"`
	PaymentCount int    `json:"paymentCount"`
}

// NotaryBalance summarizes everything a notary has earned, is owed, or has
// stuck in a failed transfer.
func (s *Service) NotaryBalance(ctx context.Context, notaryID string) (*Balance, error) {

	if _, err := s.notaries.Notary(ctx, notaryID); err != nil {
		return nil, err
	}

	totals, err := s.payments.TotalsForNotary(ctx, notaryID)
	if err != nil {
		return nil, fmt.Errorf("fetch payment totals for notary %s: %w", notaryID, err)
	}

	return &Balance{
		NotaryID:     notaryID,
		PaidCents:    totals.PaidCents,
		PendingCents: totals.PendingCents,
		FailedCents:  totals.FailedCents,
		PaymentCount: totals.PaymentCount,
	}, nil
}

// CreateMissingPayments is the self-healing complement to the audit: it
// schedules a payment for every completed assignment that slipped through
// without one.
func (s *Service) CreateMissingPayments(ctx context.Context, delayDays int) (int, error) {

	assignments, err := s.assignments.CompletedWithoutPayment(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch unpaid assignments: %w", err)
	}

	created := 0
	for _, assignment := range assignments {
		_, didCreate, err := s.ProcessPayment(ctx, assignment.ID, delayDays)
		if err != nil {
			s.logger.WithError(err).WithField("assignment_id", assignment.ID).
				Error("could not create missing payment")
			continue
		}
		if didCreate {
			created++
		}
	}

	return created, nil
}
