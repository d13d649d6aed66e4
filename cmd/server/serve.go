package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/config"
	"github.com/iliyamo/benefits-cafeteria/internal/database"
	"github.com/iliyamo/benefits-cafeteria/internal/handler"
	"github.com/iliyamo/benefits-cafeteria/internal/logger"
	"github.com/iliyamo/benefits-cafeteria/internal/metrics"
	"github.com/iliyamo/benefits-cafeteria/internal/middleware"
	"github.com/iliyamo/benefits-cafeteria/internal/notify"
	"github.com/iliyamo/benefits-cafeteria/internal/queue"
	"github.com/iliyamo/benefits-cafeteria/internal/repository"
	"github.com/iliyamo/benefits-cafeteria/internal/router"
	"github.com/iliyamo/benefits-cafeteria/internal/service"
	"github.com/iliyamo/benefits-cafeteria/internal/storage"
)

const tokenSweepInterval = time.Hour

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the notification consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, config.Load())
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "benefits-api")
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}

	receipts, err := storage.NewLocal(filepath.Join(cfg.FilesDir, "receipts"), log.Named("receipts"))
	if err != nil {
		return err
	}
	covers, err := storage.NewLocal(filepath.Join(cfg.FilesDir, "benefit_covers"), log.Named("covers"))
	if err != nil {
		return err
	}

	rdb := config.NewRedisClient()
	if rdb == nil && cfg.RateLimit.Enabled {
		log.Warn("redis unavailable, rate limiting disabled")
	}

	metrics.InitMetrics()

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	benefits := repository.NewBenefitRepo(db)
	categories := repository.NewCategoryRepo(db)
	requests := repository.NewRequestRepo(db)
	polls := repository.NewPollRepo(db)

	publisher := queue.NewPublisher(cfg.RabbitURL, log.Named("publisher"))
	mailer := notify.NewEmailNotifier(cfg.Email, log.Named("email"))
	consumer := queue.NewConsumer(cfg.RabbitURL, mailer, log.Named("consumer"))

	authSvc := service.NewAuthService(users, tokens, publisher, time.Now, service.AuthSettings{
		JWTSecret:    cfg.JWTSecret,
		AccessTTLMin: cfg.AccessTTLMin,
		LinkTTLMin:   cfg.AuthLinkTTLMin,
		ServerURL:    cfg.ServerURL,
	}, log.Named("auth"))
	userSvc := service.NewUserService(users, tokens, authSvc, time.Now, log.Named("users"))
	benefitSvc := service.NewBenefitService(benefits, categories, users, covers, nil, time.Now, cfg.ServerURL, log.Named("benefits"))
	requestSvc := service.NewRequestService(benefits, requests, users, receipts, publisher, time.Now, cfg.ServerURL, log.Named("requests"))
	pollSvc := service.NewPollService(polls, benefits, publisher, time.Now, log.Named("poll"))
	analyticsSvc := service.NewAnalyticsService(benefits, requests, users, polls)

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log.Named("http")))
	e.Use(middleware.NewTokenBucket(cfg.RateLimit, rdb, log.Named("ratelimit")))
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dM", (service.MaxFiles*service.MaxFileSize)/1_000_000+1)))

	guard := router.Guard{Secret: cfg.JWTSecret, Users: users}
	requestHandler := handler.NewRequestHandler(requestSvc)
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(authSvc, userSvc), guard)
	router.RegisterAdminUsers(e, handler.NewUserHandler(userSvc), guard)
	router.RegisterBenefits(e, handler.NewBenefitHandler(benefitSvc), requestHandler, guard)
	router.RegisterRequests(e, requestHandler, guard)
	router.RegisterAnalytics(e, handler.NewAnalyticsHandler(pollSvc, analyticsSvc), guard)

	go func() {
		if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("notification consumer stopped", zap.Error(err))
		}
	}()
	go sweepTokens(ctx, tokens, log)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// sweepTokens removes expired login link tokens until ctx ends.
func sweepTokens(ctx context.Context, tokens *repository.TokenRepo, log *zap.Logger) {
	t := time.NewTicker(tokenSweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			n, err := tokens.DeleteExpired(ctx, now)
			if err != nil {
				log.Warn("sweep login tokens failed", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Debug("expired login tokens removed", zap.Int64("count", n))
			}
		}
	}
}
