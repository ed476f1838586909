package main

import (
	"context"
	"fmt"
	"time"

	"notroom/internal/db"
	"notroom/internal/payments"
	"notroom/internal/storage"
	"notroom/internal/store"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

// taxdocsCommand generates year-end 1099 summaries for every active
// notary. Meant to be run once per January for the prior year.
var taxdocsCommand = &cli.Command{
	Name:  "taxdocs",
	Usage: "Generate 1099 tax documents for a closed year",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:  "year",
			Usage: "Tax year to generate documents for",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		year := c.Int("year")
		if year == 0 {
			year = time.Now().Year() - 1
		}

		if err := payments.ValidateTaxYear(year); err != nil {
			return err
		}

		logger := logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})

		ctx := context.Background()

		awsConfig, err := loadAWSConfig(ctx)
		if err != nil {
			return err
		}

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		paymentRepo := store.NewNotaryPaymentRepository(pool)
		notaryRepo := store.NewNotaryRepository(pool)
		taxDocumentRepo := store.NewTaxDocumentRepository(pool)
		documents := storage.NewS3Storage(s3.NewFromConfig(awsConfig), cfg.DocumentsBucket)

		service := payments.NewTaxService(logger, paymentRepo, notaryRepo, taxDocumentRepo, documents)

		generated, err := service.GenerateAll(ctx, year)
		if err != nil {
			return fmt.Errorf("generate tax documents for %d: %w", year, err)
		}

		logger.WithFields(logrus.Fields{
			"year":      year,
			"generated": len(generated),
		}).Info("tax document generation finished")

		return nil
	},
}
