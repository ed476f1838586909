package main

import (
	"context"
	"fmt"

	"notroom/internal/db"
	"notroom/internal/seed"
	"notroom/internal/store"

	"github.com/k0kubun/pp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with development fixtures",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "dump",
			Usage: "Pretty-print the seeded records",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		ctx := context.Background()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logrus.Info("Connected to database")

		notaryRepo := store.NewNotaryRepository(pool)
		assignmentRepo := store.NewAssignmentRepository(pool)

		logrus.Info("Seeding notaries...")
		notaries, err := seed.SeedNotaries(ctx, notaryRepo)
		if err != nil {
			return fmt.Errorf("failed to seed notaries: %w", err)
		}

		logrus.Info("Seeding assignments...")
		assignments, err := seed.SeedAssignments(ctx, assignmentRepo, notaries)
		if err != nil {
			return fmt.Errorf("failed to seed assignments: %w", err)
		}

		if c.Bool("dump") {
			pp.Println(notaries)
			pp.Println(assignments)
		}

		logrus.WithFields(logrus.Fields{
			"notaries":    len(notaries),
			"assignments": len(assignments),
		}).Info("Seed completed")

		return nil
	},
}
