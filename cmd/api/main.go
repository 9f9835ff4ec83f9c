package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-account-api/internal/application/account"
	"github.com/go-account-api/internal/application/verification"
	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/infrastructure/dynamo"
	"github.com/go-account-api/internal/infrastructure/identity"
	jwtinfra "github.com/go-account-api/internal/infrastructure/jwt"
	"github.com/go-account-api/internal/infrastructure/mail"
	s3infra "github.com/go-account-api/internal/infrastructure/s3"
	"github.com/go-account-api/internal/infrastructure/sns"
	"github.com/go-account-api/internal/pkg/code"
	"github.com/go-account-api/internal/pkg/tasks"
	transporthttp "github.com/go-account-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient, err := dynamo.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("dynamodb: %v", err)
	}
	dynamo.Bootstrap(ctx, dynamoClient, cfg.DynamoTables)
	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	codeRepo := dynamo.NewVerificationRepo(dynamoClient, cfg.DynamoTables.VerificationCodes)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.Fatalf("jwt: %v", err)
	}

	s3Client, err := s3infra.NewClient(ctx, cfg)
	if err != nil {
		log.Fatalf("s3: %v", err)
	}
	s3Store := s3infra.NewStore(s3Client, cfg.S3BucketName)

	identityProvider, err := identity.NewProvider(ctx, cfg)
	if err != nil {
		log.Fatalf("identity provider: %v", err)
	}

	chain, err := deliveryChain(cfg)
	if err != nil {
		log.Fatalf("mail: %v", err)
	}

	// Alerts are optional; failed tasks are always logged by the queue.
	observers := []tasks.Observer{}
	if alerter, err := sns.NewAlerter(ctx, cfg); err == nil {
		observers = append(observers, alertOnFailure(alerter))
	} else {
		log.Printf("WARN: task alerts disabled: %v", err)
	}
	queue := tasks.New(tasks.Options{
		Workers:        cfg.Tasks.Workers,
		Buffer:         cfg.Tasks.Buffer,
		MaxAttempts:    cfg.Tasks.MaxAttempts,
		AttemptTimeout: cfg.Tasks.AttemptTimeout,
		Observers:      observers,
	})

	deps := &transporthttp.Deps{
		Accounts: account.NewService(account.ServiceDeps{
			UserRepo:    userRepo,
			Identity:    identityProvider,
			Tokens:      jwtProvider,
			Blobs:       s3Store,
			ImageURLTTL: cfg.ImageURLTTL,
		}),
		Verifications: verification.NewService(verification.ServiceDeps{
			UserRepo:  userRepo,
			CodeRepo:  codeRepo,
			Generator: code.NewGenerator(cfg.Verification.CodeLength),
			Delivery:  chain,
			Identity:  identityProvider,
			Tasks:     queue,
			Window:    cfg.Verification.CodeTTL,
		}),
		Tokens: jwtProvider,
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s (env=%s, mail backends=%d)", cfg.AppPort, cfg.AppEnv, chain.Len())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	// Handlers may still have queued work after Shutdown returns.
	if err := drainQueue(queue, queueDrainTimeout(cfg.Tasks)); err != nil {
		log.Printf("task queue did not drain: %v", err)
	}
	log.Println("Server stopped")
}

// queueDrainTimeout covers one task's full retry budget plus slack.
func queueDrainTimeout(t config.Tasks) time.Duration {
	return t.AttemptTimeout*time.Duration(t.MaxAttempts) + 5*time.Second
}

func drainQueue(q *tasks.Queue, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return q.Close(ctx)
}

// deliveryChain orders the configured template services ahead of the SMTP relay.
func deliveryChain(cfg *config.Config) (*mail.Chain, error) {
	client := &http.Client{Timeout: cfg.Verification.DeliveryTimeout}
	var backends []mail.Backend
	if cfg.TemplateMailA.Configured() {
		backends = append(backends, mail.NewTemplateService("template-a", cfg.TemplateMailURL, cfg.TemplateMailA, client))
	}
	if cfg.TemplateMailB.Configured() {
		backends = append(backends, mail.NewTemplateService("template-b", cfg.TemplateMailURL, cfg.TemplateMailB, client))
	}
	relay, err := mail.NewSMTPRelay(cfg.SMTP)
	if err != nil {
		return nil, err
	}
	backends = append(backends, relay)
	return mail.NewChain(cfg.Verification.DeliveryTimeout, backends...), nil
}

func alertOnFailure(alerter sns.Alerter) tasks.Observer {
	return func(res tasks.Result) {
		if res.Err == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		msg := fmt.Sprintf("task %s failed after %d attempts (%s): %v", res.Name, res.Attempts, res.Elapsed, res.Err)
		if err := alerter.Alert(ctx, "task failed: "+res.Name, msg); err != nil {
			log.Printf("WARN: alert for task %s not published: %v", res.Name, err)
		}
	}
}
