package main

import (
	"context"
	"fmt"

	"notroom/internal/billing"
	"notroom/internal/db"
	"notroom/internal/payments"
	"notroom/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// sweepCommand is the cron entrypoint for the payment lifecycle: it
// schedules payments for any completed assignments that lack one, executes
// every due transfer, then reports reconciliation health.
var sweepCommand = &cli.Command{
	Name:  "sweep",
	Usage: "Run the scheduled payment sweep and reconciliation audit",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Only report reconciliation state, execute nothing",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger := logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		paymentRepo := store.NewNotaryPaymentRepository(pool)
		assignmentRepo := store.NewAssignmentRepository(pool)
		notaryRepo := store.NewNotaryRepository(pool)
		stripeClient := billing.NewClient(cfg.StripeSecretKey)

		service := payments.NewService(logger, paymentRepo, assignmentRepo, notaryRepo, stripeClient)

		if !c.Bool("dry-run") {
			created, err := service.CreateMissingPayments(ctx, cfg.PaymentDelayDays)
			if err != nil {
				return fmt.Errorf("create missing payments: %w", err)
			}
			logger.WithField("created", created).Info("missing payments scheduled")

			result, err := service.ProcessScheduledPayments(ctx)
			if err != nil {
				return fmt.Errorf("process scheduled payments: %w", err)
			}
			logger.WithFields(logrus.Fields{
				"processed": result.Processed,
				"succeeded": result.Succeeded,
				"failed":    result.Failed,
			}).Info("sweep executed")
		}

		report, err := service.ReconcilePayments(ctx)
		if err != nil {
			return fmt.Errorf("reconcile payments: %w", err)
		}

		entry := logger.WithFields(logrus.Fields{
			"unpaid_assignments":  report.UnpaidAssignments,
			"failed_payments":     report.FailedPayments,
			"pending_payments":    report.PendingPayments,
			"processing_payments": report.ProcessingPayments,
			"due_for_processing":  report.DueForProcessing,
		})

		if report.IsHealthy {
			entry.Info("payment state is healthy")
		} else {
			entry.Warn("payment state needs attention")
		}

		return nil
	},
}
