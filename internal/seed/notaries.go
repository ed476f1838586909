package seed

import (
	"context"
	"fmt"
	"time"

	"notroom/internal/store"
	"notroom/internal/utils"
	"notroom/pkg/types"
)

// SeedNotaries inserts development notaries with fixed IDs so seed
// assignments can reference them.
// To generate new IDs: `go run ./cmd/notroom nanoid`
func SeedNotaries(ctx context.Context, repo *store.NotaryRepository) ([]types.Notary, error) {

	notaries := []types.Notary{
		{
			ID:              "hT4nWqQz8kYcR2mVbL6pXsJ0dA9eFuG1",
			UserID:          "dev-user-ana",
			Email:           "ana.martins@example.com",
			Name:            "Ana Martins",
			StripeAccountID: utils.StringPtr("acct_seed_ana_0001"),
			Active:          true,
		},
		{
			ID:              "Zc7vN3mKqW9xT1rB5yLpHs2dF8gJ0aEu",
			UserID:          "dev-user-joao",
			Email:           "joao.pereira@example.com",
			Name:            "Joao Pereira",
			StripeAccountID: utils.StringPtr("acct_seed_joao_0001"),
			Active:          true,
		},
		{
			ID:              "Qp2sD6fG9hJ3kL7zX1cV5bN8mW4rT0yU",
			UserID:          "dev-user-marta",
			Email:           "marta.silva@example.com",
			Name:            "Marta Silva",
			StripeAccountID: nil, // no connected account: transfers must fail
			Active:          true,
		},
	}

	for i := range notaries {
		existing, err := repo.Notary(ctx, notaries[i].ID)
		if err == nil && existing != nil {
			continue
		}

		if err := repo.CreateNotary(ctx, &notaries[i]); err != nil {
			return nil, fmt.Errorf("seed notary %s: %w", notaries[i].Name, err)
		}
	}

	return notaries, nil
}

// SeedAssignments inserts completed assignments across the seed notaries,
// spread over recent weeks so sweep and reconciliation have material to
// work with.
func SeedAssignments(ctx context.Context, repo *store.AssignmentRepository, notaries []types.Notary) ([]types.Assignment, error) {

	if len(notaries) == 0 {
		return nil, fmt.Errorf("no notaries to assign work to")
	}

	now := time.Now()

	var assignments []types.Assignment
	fees := []int64{8500, 12000, 6500, 15000, 9500}

	for i, fee := range fees {
		notary := notaries[i%len(notaries)]
		completedAt := now.AddDate(0, 0, -(i*3 + 1))

		assignments = append(assignments, types.Assignment{
			ID:            fmt.Sprintf("seed-assignment-%02d", i+1),
			NotaryID:      notary.ID,
			Status:        types.AssignmentStatusCompleted,
			PaymentStatus: types.AssignmentPaymentStatusUnpaid,
			FeeCents:      fee,
			CompletedAt:   &completedAt,
		})
	}

	for i := range assignments {
		existing, err := repo.Assignment(ctx, assignments[i].ID)
		if err == nil && existing != nil {
			continue
		}

		if err := repo.CreateAssignment(ctx, &assignments[i]); err != nil {
			return nil, fmt.Errorf("seed assignment %s: %w", assignments[i].ID, err)
		}
	}

	return assignments, nil
}
