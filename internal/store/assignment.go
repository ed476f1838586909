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

const assignmentTableName = "notroom.assignments"

var assignmentColumns = utils.StructTagValues(types.Assignment{})

type AssignmentRepository struct {
	pool *pgxpool.Pool
}

func NewAssignmentRepository(pool *pgxpool.Pool) *AssignmentRepository {
	return &AssignmentRepository{pool: pool}
}

func (r *AssignmentRepository) Assignment(ctx context.Context, assignmentID string) (*types.Assignment, error) {

	query, args, err := psql().Select(assignmentColumns...).From(assignmentTableName).
		Where(sq.Eq{"id": assignmentID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate assignment query: %w", err)
	}

	var assignment = new(types.Assignment)
	err = pgxscan.Get(ctx, r.pool, assignment, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrAssignmentNotFound
	}

	return assignment, nil
}

// CompletedWithoutPayment returns completed assignments that are not marked
// PAID and have no payment row at all. These are the gaps the reconciliation
// sweep repairs.
func (r *AssignmentRepository) CompletedWithoutPayment(ctx context.Context) ([]*types.Assignment, error) {

	cols := utils.PrefixSliceOfStrings("a", assignmentColumns)

	query, args, err := psql().Select(cols...).
		From(assignmentTableName + " a").
		LeftJoin(paymentTableName + " p ON p.assignment_id = a.id").
		Where(sq.Eq{"a.status": types.AssignmentStatusCompleted}).
		Where(sq.NotEq{"a.payment_status": types.AssignmentPaymentStatusPaid}).
		Where("p.id IS NULL").
		OrderBy("a.completed_at asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate unpaid assignments query: %w", err)
	}

	var assignments = make([]*types.Assignment, 0)
	err = pgxscan.Select(ctx, r.pool, &assignments, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch unpaid assignments: %w", err)
	}

	return assignments, nil
}

// CountCompletedWithoutPayment is the read-only flavor used by the audit.
func (r *AssignmentRepository) CountCompletedWithoutPayment(ctx context.Context) (int, error) {

	query, args, err := psql().Select("count(*)").
		From(assignmentTableName + " a").
		LeftJoin(paymentTableName + " p ON p.assignment_id = a.id").
		Where(sq.Eq{"a.status": types.AssignmentStatusCompleted}).
		Where(sq.NotEq{"a.payment_status": types.AssignmentPaymentStatusPaid}).
		Where("p.id IS NULL").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to generate unpaid assignment count query: %w", err)
	}

	var count int
	err = pgxscan.Get(ctx, r.pool, &count, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count unpaid assignments: %w", err)
	}

	return count, nil
}

// SetPaymentStatus keeps the assignment's mirror field in sync with its
// payment row.
func (r *AssignmentRepository) SetPaymentStatus(ctx context.Context, assignmentID string, status types.AssignmentPaymentStatus) error {

	query, args, err := psql().Update(assignmentTableName).
		Set("payment_status", status).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": assignmentID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate assignment payment status query for %s: %w", assignmentID, err)
	}

	_, err = r.pool.Exec(ctx, query, args...)

	return utils.ErrorWrapOrNil(err, "failed to update assignment payment status")
}

func (r *AssignmentRepository) CreateAssignment(ctx context.Context, assignment *types.Assignment) error {

	now := time.Now()
	if assignment.ID == "" {
		assignment.ID = utils.NanoID()
	}
	if assignment.Status == "" {
		assignment.Status = types.AssignmentStatusScheduled
	}
	if assignment.PaymentStatus == "" {
		assignment.PaymentStatus = types.AssignmentPaymentStatusUnpaid
	}
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	assignmentMap := utils.StructToMap(assignment)

	query, args, err := psql().Insert(assignmentTableName).SetMap(assignmentMap).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert assignment query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create assignment")
}
