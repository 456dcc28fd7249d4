// Command coursehub runs the authentication and session service.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"coursehub/internal/avatar"
	"coursehub/internal/config"
	"coursehub/internal/httpapi"
	"coursehub/internal/identity"
	"coursehub/internal/logging"
	"coursehub/internal/mailer"
	"coursehub/internal/metrics"
	"coursehub/internal/session"
	"coursehub/internal/token"
)

func main() {
	log := logging.NewJSON(os.Stdout, slog.LevelInfo)
	if err := run(log); err != nil {
		log.Error(context.Background(), "fatal", "err", err)
		os.Exit(1)
	}
}

func run(log logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.FromEnv()
	if err := cfg.Validate(); err != nil {
		return err
	}

	tokens, err := token.NewManager(token.Config{
		AccessSecret:  []byte(cfg.AccessTokenSecret),
		RefreshSecret: []byte(cfg.RefreshTokenSecret),
		AccessTTL:     cfg.AccessTokenTTL,
		RefreshTTL:    cfg.RefreshTokenTTL,
	})
	if err != nil {
		return err
	}

	// Connections are established once here and shared by all requests.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(redisOpts)
	defer func() { _ = rdb.Close() }()

	cache := session.NewCache(rdb, cfg.RefreshTokenTTL)
	pingCtx, cancel := context.WithTimeout(ctx, cfg.CallTimeout)
	err = cache.Ping(pingCtx)
	cancel()
	if err != nil {
		return err
	}
	log.Info(ctx, "session cache connected")

	if cfg.DatabaseURL == "" {
		return errors.New("config: database url is required")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	store, err := identity.NewPostgresStore(pool)
	if err != nil {
		return err
	}
	schemaCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = store.EnsureSchema(schemaCtx)
	cancel()
	if err != nil {
		return err
	}
	log.Info(ctx, "credential store connected")

	var avatars avatar.Store
	if cfg.AvatarBucket != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3BaseEndpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3BaseEndpoint)
			}
		})
		avatars = avatar.NewS3Store(client, cfg.AvatarBucket, cfg.AvatarBaseURL)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	handler := httpapi.NewHandler(log, store, cache, tokens, mailer.LogMailer{Log: log}, avatars, m, httpapi.Config{
		SecureCookies: cfg.ProductionMode,
		AllowedOrigin: cfg.AllowedOrigin,
		CallTimeout:   cfg.CallTimeout,
		MaxBodyBytes:  cfg.MaxBodyBytes,
		DBPing:        store.Ping,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/", handler.Routes())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info(shutdownCtx, "shutting down")
	return srv.Shutdown(shutdownCtx)
}
