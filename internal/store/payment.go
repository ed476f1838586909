package store

import (
	"context"
	"fmt"
	"time"

	"notroom/internal/utils"
	"notroom/pkg/types"

	sq "github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgxpool"
)

const paymentTableName = "notroom.notary_payments"

var paymentColumns = utils.StructTagValues(types.NotaryPayment{})

type NotaryPaymentRepository struct {
	pool *pgxpool.Pool
}

func NewNotaryPaymentRepository(pool *pgxpool.Pool) *NotaryPaymentRepository {
	return &NotaryPaymentRepository{pool: pool}
}

func (r *NotaryPaymentRepository) Payment(ctx context.Context, paymentID string) (*types.NotaryPayment, error) {

	query, args, err := psql().Select(paymentColumns...).From(paymentTableName).
		Where(sq.Eq{"id": paymentID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment query: %w", err)
	}

	var payment = new(types.NotaryPayment)
	err = pgxscan.Get(ctx, r.pool, payment, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrPaymentNotFound
	}

	return payment, nil
}

// PaymentByAssignment is the duplicate guard: exactly one payment may exist
// per assignment.
func (r *NotaryPaymentRepository) PaymentByAssignment(ctx context.Context, assignmentID string) (*types.NotaryPayment, error) {

	query, args, err := psql().Select(paymentColumns...).From(paymentTableName).
		Where(sq.Eq{"assignment_id": assignmentID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment by assignment query: %w", err)
	}

	var payment = new(types.NotaryPayment)
	err = pgxscan.Get(ctx, r.pool, payment, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrPaymentNotFound
	}

	return payment, nil
}

func (r *NotaryPaymentRepository) CreatePayment(ctx context.Context, payment *types.NotaryPayment) error {

	now := time.Now()
	payment.ID = utils.NanoID()
	if payment.Status == "" {
		payment.Status = types.PaymentStatusPending
	}
	payment.CreatedAt = now
	payment.UpdatedAt = now

	paymentMap := utils.StructToMap(payment)

	query, args, err := psql().Insert(paymentTableName).SetMap(paymentMap).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert payment query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create payment")
}

func (r *NotaryPaymentRepository) UpdatePayment(ctx context.Context, paymentID string, payment *types.NotaryPayment) error {

	payment.ID = paymentID
	payment.UpdatedAt = time.Now()

	paymentMap := utils.StructToMap(payment)

	query, args, err := psql().Update(paymentTableName).SetMap(paymentMap).Where(sq.Eq{"id": paymentID}).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update payment query for %s: %w", paymentID, err)
	}

	_, err = r.pool.Exec(ctx, query, args...)

	return utils.ErrorWrapOrNil(err, "failed to update payment")
}

// DuePayments returns PENDING payments whose scheduled_for has passed.
func (r *NotaryPaymentRepository) DuePayments(ctx context.Context, now time.Time) ([]*types.NotaryPayment, error) {

	query, args, err := psql().Select(paymentColumns...).From(paymentTableName).
		Where(sq.Eq{"status": types.PaymentStatusPending}).
		Where(sq.LtOrEq{"scheduled_for": now}).
		OrderBy("scheduled_for asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate due payments query: %w", err)
	}

	var payments = make([]*types.NotaryPayment, 0)
	err = pgxscan.Select(ctx, r.pool, &payments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch due payments: %w", err)
	}

	return payments, nil
}

func (r *NotaryPaymentRepository) CountByStatus(ctx context.Context, status types.PaymentStatus) (int, error) {

	query, args, err := psql().Select("count(*)").From(paymentTableName).
		Where(sq.Eq{"status": status}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate payment count query: %w", err)
	}

	var count int
	err = pgxscan.Get(ctx, r.pool, &count, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count payments: %w", err)
	}

	return count, nil
}

func (r *NotaryPaymentRepository) CountDue(ctx context.Context, now time.Time) (int, error) {

	query, args, err := psql().Select("count(*)").From(paymentTableName).
		Where(sq.Eq{"status": types.PaymentStatusPending}).
		Where(sq.LtOrEq{"scheduled_for": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate due payment count query: %w", err)
	}

	var count int
	err = pgxscan.Get(ctx, r.pool, &count, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count due payments: %w", err)
	}

	return count, nil
}

// TotalsForNotary aggregates a notary's lifetime payment amounts by status.
func (r *NotaryPaymentRepository) TotalsForNotary(ctx context.Context, notaryID string) (*types.PaymentTotals, error) {

	query, args, err := psql().Select(
		"coalesce(sum(amount_cents) filter (where status = 'COMPLETED'), 0) as paid_cents",
		"coalesce(sum(amount_cents) filter (where status in ('PENDING', 'PROCESSING')), 0) as pending_cents",
		"coalesce(sum(amount_cents) filter (where status = 'FAILED'), 0) as failed_cents",
		"count(*) as payment_count",
	).From(paymentTableName).
		Where(sq.Eq{"notary_id": notaryID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payment totals query: %w", err)
	}

	var totals = new(types.PaymentTotals)
	err = pgxscan.Get(ctx, r.pool, totals, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch payment totals: %w", err)
	}

	return totals, nil
}

// CompletedPaymentsForNotary returns COMPLETED payments whose completed_at
// falls inside [from, to]. Used by the tax document generator.
func (r *NotaryPaymentRepository) CompletedPaymentsForNotary(ctx context.Context, notaryID string, from, to time.Time) ([]*types.NotaryPayment, error) {

	query, args, err := psql().Select(paymentColumns...).From(paymentTableName).
		Where(sq.Eq{"notary_id": notaryID, "status": types.PaymentStatusCompleted}).
		Where(sq.GtOrEq{"completed_at": from}).
		Where(sq.LtOrEq{"completed_at": to}).
		OrderBy("completed_at asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate completed payments query: %w", err)
	}

	var payments = make([]*types.NotaryPayment, 0)
	err = pgxscan.Select(ctx, r.pool, &payments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch completed payments: %w", err)
	}

	return payments, nil
}
