package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sheetserve/sheetserve/internal/api"
	"github.com/sheetserve/sheetserve/internal/auth"
	"github.com/sheetserve/sheetserve/internal/calllog"
	"github.com/sheetserve/sheetserve/internal/config"
	"github.com/sheetserve/sheetserve/internal/quota"
	"github.com/sheetserve/sheetserve/internal/storage/sql"
	"github.com/sirupsen/logrus"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(level)
	}

	// Create data directory if needed (for SQLite)
	if cfg.Database.Driver == "sqlite3" {
		if err := os.MkdirAll("data", 0755); err != nil {
			log.WithError(err).Fatal("failed to create data directory")
		}
	}

	store, err := sql.New(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize storage")
	}
	defer store.Close()

	// Quota counters live in Redis when configured, otherwise in the
	// primary database. Both back the same atomic-increment contract.
	var quotaStore quota.Store = quota.NewStorageStore(store)
	if cfg.Redis.Enabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		quotaStore = quota.NewRedisStore(client)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis quota backend")
	}

	policy := cfg.RateLimit.Policy()
	authenticator := auth.New(store, quotaStore, policy, log)
	callLog := calllog.New(store, log)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())

	router := api.NewRouter(api.Deps{
		Store:         store,
		Authenticator: authenticator,
		CallLog:       callLog,
		QuotaStore:    quotaStore,
		Policy:        policy,
		AdminToken:    cfg.Auth.AdminToken,
		Log:           log,
		Registry:      registry,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	log.WithField("addr", cfg.Server.Addr()).Info("starting sheetserve")

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("forced shutdown")
	}

	// Let queued audit writes land before the store closes.
	callLog.Flush()

	log.Info("server stopped")
}
