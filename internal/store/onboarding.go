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

const onboardingTableName = "notroom.onboardings"

var onboardingColumns = utils.StructTagValues(types.Onboarding{})

type OnboardingRepository struct {
	pool *pgxpool.Pool
}

func NewOnboardingRepository(pool *pgxpool.Pool) *OnboardingRepository {
	return &OnboardingRepository{pool: pool}
}

func (r *OnboardingRepository) Onboarding(ctx context.Context, onboardingID string) (*types.Onboarding, error) {

	query, args, err := psql().Select(onboardingColumns...).From(onboardingTableName).
		Where(sq.Eq{"id": onboardingID}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate onboarding query: %w", err)
	}

	var onboarding = new(types.Onboarding)
	err = pgxscan.Get(ctx, r.pool, onboarding, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrOnboardingNotFound
	}

	if onboarding.Data == nil {
		onboarding.Data = &types.OnboardingData{}
	}

	return onboarding, nil
}

func (r *OnboardingRepository) OnboardingByUser(ctx context.Context, userID string) (*types.Onboarding, error) {

	query, args, err := psql().Select(onboardingColumns...).From(onboardingTableName).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at desc").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate onboarding by user query: %w", err)
	}

	var onboarding = new(types.Onboarding)
	err = pgxscan.Get(ctx, r.pool, onboarding, query, args...)
	if err != nil && !pgxscan.NotFound(err) {
		return nil, err
	}

	if err != nil {
		return nil, types.ErrOnboardingNotFound
	}

	if onboarding.Data == nil {
		onboarding.Data = &types.OnboardingData{}
	}

	return onboarding, nil
}

// OnboardingsInProgress returns every open onboarding. Inbound provider
// webhooks only carry the provider's own check id, so the caller scans
// these for a matching backgroundCheck.providerCheckId.
func (r *OnboardingRepository) OnboardingsInProgress(ctx context.Context) ([]*types.Onboarding, error) {

	query, args, err := psql().Select(onboardingColumns...).From(onboardingTableName).
		Where(sq.Eq{"status": types.OnboardingStatusInProgress}).
		OrderBy("created_at desc").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to generate in-progress onboardings query: %w", err)
	}

	var onboardings = make([]*types.Onboarding, 0)
	err = pgxscan.Select(ctx, r.pool, &onboardings, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch in-progress onboardings: %w", err)
	}

	for _, o := range onboardings {
		if o.Data == nil {
			o.Data = &types.OnboardingData{}
		}
	}

	return onboardings, nil
}

func (r *OnboardingRepository) CreateOnboarding(ctx context.Context, onboarding *types.Onboarding) error {

	now := time.Now()
	onboarding.ID = utils.NanoID()
	if onboarding.Status == "" {
		onboarding.Status = types.OnboardingStatusInProgress
	}
	if onboarding.Data == nil {
		onboarding.Data = &types.OnboardingData{}
	}
	onboarding.CreatedAt = now
	onboarding.UpdatedAt = now

	onboardingMap := utils.StructToMap(onboarding)

	query, args, err := psql().Insert(onboardingTableName).SetMap(onboardingMap).ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate insert onboarding query: %w", err)
	}

	_, err = r.pool.Exec(ctx, query, args...)
	return utils.ErrorWrapOrNil(err, "failed to create onboarding")
}

// UpdateData persists the jsonb step data. Last write wins; concurrent
// webhook deliveries for the same record can clobber each other, which is
// accepted at current volume.
func (r *OnboardingRepository) UpdateData(ctx context.Context, onboardingID string, data *types.OnboardingData) error {

	query, args, err := psql().Update(onboardingTableName).
		Set("data", data).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": onboardingID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update onboarding data query for %s: %w", onboardingID, err)
	}

	_, err = r.pool.Exec(ctx, query, args...)

	return utils.ErrorWrapOrNil(err, "failed to update onboarding data")
}

func (r *OnboardingRepository) SetStripeCustomerID(ctx context.Context, onboardingID, customerID string) error {

	query, args, err := psql().Update(onboardingTableName).
		Set("stripe_customer_id", customerID).
		Set("updated_at", time.Now()).
		Where(sq.Eq{"id": onboardingID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to generate update stripe customer query for %s: %w", onboardingID, err)
	}

	_, err = r.pool.Exec(ctx, query, args...)

	return utils.ErrorWrapOrNil(err, "failed to set stripe customer id")
}
