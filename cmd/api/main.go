package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"travel-booking/internal/audit"
	"travel-booking/internal/auth"
	"travel-booking/internal/booking"
	"travel-booking/internal/config"
	"travel-booking/internal/httpapi"
	"travel-booking/internal/store"
	"travel-booking/internal/token"
	"travel-booking/pkg/logger"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	codec, err := token.New(cfg.Token)
	if err != nil {
		log.Error("token codec init failed", "err", err)
		os.Exit(1)
	}

	durability, err := store.DurabilityFromIndex(cfg.Store.DurabilityIndex)
	if err != nil {
		log.Error("durability config invalid", "err", err)
		os.Exit(1)
	}

	docs, closeStore, err := openStore(rootCtx, cfg)
	if err != nil {
		log.Error("store init failed", "backend", cfg.Store.Backend, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	trail := audit.NewService(audit.NewLogRepo(log))
	authSvc := auth.NewService(docs, codec, trail, log)
	bookings := booking.NewWriter(docs, trail, log)

	h := httpapi.Handlers{
		Auth:       authSvc,
		Bookings:   bookings,
		Durability: durability,
	}
	r := newRouter(log, cfg.CORS.AllowedOrigins, h, authSvc)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"env", cfg.App.Env,
			"store", cfg.Store.Backend,
			"durability", durability.String(),
			"signed_tokens", cfg.Token.Signed,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}

// openStore connects the configured backend. The returned func releases it.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return store.NewMemoryStore(), func() {}, nil

	case config.BackendPostgres:
		db, err := store.OpenPostgres(ctx, "pgx", cfg.PostgresDSN(), store.PostgresPoolConfig{})
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return store.NewPostgresStore(db, cfg.Store.DurabilityTimeout), func() { _ = db.Close() }, nil

	case config.BackendRedis:
		rdb, err := store.OpenRedis(ctx, store.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			// WAIT and WAITAOF block for up to the durability timeout.
			ReadTimeout: cfg.Store.DurabilityTimeout + 3*time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisStore(rdb, cfg.Redis.Replicas, cfg.Store.DurabilityTimeout), func() { _ = rdb.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
