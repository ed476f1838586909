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

const notaryTableName = "notroom.notaries"

var notaryColumns = utils.StructTagValues(types.Notary{})

type NotaryRepository struct {
	pool *pgxpool.Pool
}

func NewNotaryRepository(pool *pgxpool.Pool) *NotaryRepository {
	return &NotaryRepository{pool: pool}
}

func (r *NotaryRepository) Notary(ctx context.Context, notaryID string) (*types.Notary, error) {

	query, args, err := psql().Select(notaryColumns...).From(notaryTableName).
		Where(sq.Eq{"id": notaryID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notary query: %w", err)
	}

	var notary = new(types.Notary)
	err = pgxscan.Get(ctx, r.pool, notary, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrNotaryNotFound
	}

	return notary, nil
}

func (r *NotaryRepository) NotaryByUser(ctx context.Context, userID string) (*types.Notary, error) {

	query, args, err := psql().Select(notaryColumns...).From(notaryTableName).
		Where(sq.Eq{"user_id": userID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate notary by user query: %w", err)
	}

	var notary = new(types.Notary)
	err = pgxscan.Get(ctx, r.pool, notary, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrNotaryNotFound
	}

	return notary, nil
}

func (r *NotaryRepository) ActiveNotaries(ctx context.Context) ([]*types.Notary, error) {

	query, args, err := psql().Select(notaryColumns...).From(notaryTableName).
		Where(sq.Eq{"active": true}).
		OrderBy("created_at asc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate active notaries query: %w", err)
	}

	var notaries = make([]*types.Notary, 0)
	err = pgxscan.Select(ctx, r.pool, &notaries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active notaries: %w", err)
	}

	return notaries, nil
}

func (r *NotaryRepository) CreateNotary(ctx context.Context, notary *types.Notary) error {

	now := time.Now()
	if notary.ID == "" {
		notary.ID = utils.NanoID()
	}
	notary.CreatedAt = now
	notary.UpdatedAt = now

	notaryMap := utils.StructToMap(notary)

	query, args, err := psql().Insert(notaryTableName).SetMap(notaryMap).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert notary query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create notary")
}
