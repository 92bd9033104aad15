package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/securecookie"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"akita-notify-go/internal/config"
	"akita-notify-go/internal/email"
	"akita-notify-go/internal/handlers"
	"akita-notify-go/internal/notify"
	"akita-notify-go/internal/obs"
	"akita-notify-go/internal/push"
	"akita-notify-go/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := obs.NewLogger(obs.LogConfig{
		Level:  cfg.Log.Level,
		Pretty: cfg.Log.Pretty,
		App:    "akita-notify",
		Env:    cfg.Log.Env,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("service stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Redis: delivery log, live events, webhook dedup
	redisStore := store.NewRedisStore(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisStore.Close()
	if err := redisStore.Ping(ctx); err != nil {
		logger.Warn("redis unreachable, delivery log and dedup degraded", zap.Error(err))
	}

	// Postgres: subscriptions, preferences, members, operators
	pgStore, err := store.NewPostgresStore(ctx, cfg.DB.URL, store.PostgresOptions{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer pgStore.Close()
	if err := pgStore.RunMigrations(ctx); err != nil {
		return err
	}
	logger.Info("database migrations completed")

	sender, err := push.NewSender(push.Options{
		VAPIDPublicKey:  cfg.VAPID.PublicKey,
		VAPIDPrivateKey: cfg.VAPID.PrivateKey,
		Subject:         cfg.VAPID.Subject,
		TTL:             cfg.Push.TTL,
		Urgency:         cfg.Push.Urgency,
		HTTPClient:      &http.Client{Timeout: cfg.Push.Timeout},
	}, logger)
	if err != nil {
		return err
	}

	dispatcher := &notify.Dispatcher{
		Subscriptions: pgStore,
		Preferences:   pgStore,
		Members:       pgStore,
		Push:          sender,
		Recorder:      redisStore,
		BaseURL:       cfg.AppBaseURL,
		Concurrency:   cfg.Push.Concurrency,
		Log:           logger,
	}
	mailer, err := email.New(email.Config{
		APIKey:      cfg.Email.APIKey,
		Host:        cfg.Email.SmtpHost,
		Port:        cfg.Email.SmtpPort,
		User:        cfg.Email.SmtpUser,
		From:        cfg.Email.From,
		SendTimeout: cfg.Email.SendTimeout,
	}, logger)
	switch {
	case errors.Is(err, email.ErrDisabled):
		logger.Warn("EMAIL_API_KEY not set, email notifications disabled")
	case err != nil:
		return err
	default:
		dispatcher.Email = mailer
	}

	sessionKey := []byte(cfg.Console.SessionKey)
	if len(sessionKey) == 0 {
		logger.Warn("CONSOLE_SESSION_KEY not set, console sessions will not survive a restart")
		sessionKey = securecookie.GenerateRandomKey(32)
	}

	h := &handlers.Handler{
		Dispatcher:    dispatcher,
		Subscriptions: pgStore,
		Preferences:   pgStore,
		Members:       pgStore,
		Operators:     pgStore,
		Deliveries:    redisStore,
		Dedup:         redisStore,
		Sessions:      handlers.NewSessionStore(sessionKey, strings.HasPrefix(cfg.AppBaseURL, "https://")),
		Opts: handlers.Options{
			WebhookSecret:  cfg.WebhookSecret,
			DedupTTL:       cfg.DedupTTL,
			VAPIDPublicKey: sender.PublicKey(),
			JWTSecret:      cfg.Auth.JWTSecret,
		},
		Log: logger,
	}
	if cfg.WebhookSecret == "" {
		logger.Warn("WEBHOOK_SECRET not set, webhook accepts unauthenticated calls")
	}
	if err := h.EnsureAdmin(ctx, cfg.Console.AdminUser, cfg.Console.AdminPassword); err != nil {
		return err
	}

	mux := http.NewServeMux()
	h.Register(mux)

	health := func(ctx context.Context) error {
		return errors.Join(pgStore.Ping(ctx), redisStore.Ping(ctx))
	}
	metricsSrv := obs.BootstrapMetricsServer(cfg.MetricsAddr, health, logger)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return srv.Shutdown(shutdownCtx)
}
