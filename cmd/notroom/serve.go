package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"notroom/internal/bgcheck"
	"notroom/internal/billing"
	"notroom/internal/db"
	"notroom/internal/payments"
	"notroom/internal/providers"
	"notroom/internal/server"
	"notroom/internal/storage"
	"notroom/internal/store"

	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/lestrrat-go/httprc/v3"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var serveCommand = &cli.Command{
	Name:   "serve",
	Usage:  "Start the HTTP server",
	Action: serve,
}

func serve(cCtx *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	config, err := loadConfig()
	if err != nil {
		return err
	}

	awsConfig, err := loadAWSConfig(ctx)
	if err != nil {
		return err
	}

	cognitoClient := cognitoidentityprovider.NewFromConfig(awsConfig)
	s3Client := s3.NewFromConfig(awsConfig)
	documents := storage.NewS3Storage(s3Client, config.DocumentsBucket)

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	onboardingRepo := store.NewOnboardingRepository(pool)
	notaryRepo := store.NewNotaryRepository(pool)
	assignmentRepo := store.NewAssignmentRepository(pool)
	paymentRepo := store.NewNotaryPaymentRepository(pool)
	taxDocumentRepo := store.NewTaxDocumentRepository(pool)

	stripeClient := billing.NewClient(config.StripeSecretKey)
	providerClient := providers.NewClient(config)

	bgcheckService := bgcheck.New(logger, config, onboardingRepo, stripeClient, providerClient)
	paymentService := payments.NewService(logger, paymentRepo, assignmentRepo, notaryRepo, stripeClient)
	taxService := payments.NewTaxService(logger, paymentRepo, notaryRepo, taxDocumentRepo, documents)

	jwkCache, err := jwk.NewCache(context.Background(), httprc.NewClient())
	if err != nil {
		return fmt.Errorf("failed to initialize jwk cache: %w", err)
	}

	jwksURL := fmt.Sprintf("%s/.well-known/jwks.json", config.CognitoIssuerURL)

	err = jwkCache.Register(context.Background(), jwksURL)
	if err != nil {
		return fmt.Errorf("failed to register cognito jwk with cache: %w", err)
	}

	srv, err := server.New(
		config,
		logger,
		cognitoClient,
		bgcheckService,
		paymentService,
		taxService,
		notaryRepo,
		onboardingRepo,
		stripeClient,
		documents,
		jwkCache,
		jwksURL,
	)
	if err != nil {
		return err
	}

	go func() {
		logger.WithField("port", config.ServerPort).Infof("server starting http://localhost:%d", config.ServerPort)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Stop(shutdownCtx)
}
