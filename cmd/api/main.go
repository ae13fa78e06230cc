package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rohanmainali/sharelytics/internal/config"
	"github.com/rohanmainali/sharelytics/internal/db"
	httpx "github.com/rohanmainali/sharelytics/internal/http"
	"github.com/rohanmainali/sharelytics/internal/observability"
	"github.com/rohanmainali/sharelytics/internal/redisclient"
	"github.com/rohanmainali/sharelytics/internal/store"
	"github.com/rohanmainali/sharelytics/internal/store/memory"
	"github.com/rohanmainali/sharelytics/internal/store/mongostore"
	"github.com/rohanmainali/sharelytics/internal/store/postgres"
)

func main() {
	cfg := config.Load()

	log := observability.NewLogger(cfg.Env)

	if cfg.UsingDefaultSecret() && cfg.Env != "dev" {
		log.Warn("JWT_SECRET is unset; running on the documented dev fallback. Set a real secret before exposing this service.")
	}

	// tracing is opt-in via the OTLP endpoint
	if cfg.OTLPEndpoint != "" {
		shutdownTracer, err := observability.InitTracer(context.Background(), "sharelytics-api", cfg.OTLPEndpoint)

		if err != nil {
			log.Error("tracer init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := config.WithTimeout(5 * time.Second)
				defer cancel()
				_ = shutdownTracer(ctx)
			}()
		}
	}

	st, ping, closeStore, err := openStore(cfg)

	if err != nil {
		log.Error("store init failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	defer closeStore()

	// optional dev seed account
	if cfg.SeedEmail != "" {
		ctx, cancel := config.WithTimeout(5 * time.Second)

		err := store.EnsureSeedUser(ctx, st, cfg.SeedEmail, cfg.SeedPassword, cfg.SeedName)
		cancel()

		if err != nil {
			log.Error("seed user failed", "err", err)
		}
	}

	var rdb *redis.Client

	if cfg.RedisAddr != "" {
		rc := redisclient.New(redisclient.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		ctx, cancel := config.WithTimeout(2 * time.Second)
		err := rc.Ping(ctx)
		cancel()

		if err != nil {
			log.Warn("redis unreachable; auth rate limiting falls back to in-process", "err", err)
		} else {
			rdb = rc.Raw()
			defer rc.Close()
		}
	}

	router := httpx.NewRouter(log, cfg, st, ping, rdb)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Info("server shutting down")

	shutdownCh := make(chan struct{})

	go func() {
		defer close(shutdownCh)

		ctx, cancel := config.WithTimeout(10 * time.Second)

		defer cancel()

		err := srv.Shutdown(ctx)

		if err != nil {
			log.Error("graceful shutdown failed", "err", err)

			return
		}
	}()

	select {
	case <-shutdownCh:
		log.Info("shutdown complete")

	case <-time.After(12 * time.Second):
		log.Error("shutdown timed out")
	}
}

// openStore builds the configured backend and returns it with its readiness
// ping and cleanup.
func openStore(cfg config.Config) (store.UserStore, func(context.Context) error, func(), error) {
	switch cfg.StoreDriver {
	case "mongo":
		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		repo, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)

		if err != nil {
			return nil, nil, nil, err
		}

		closeFn := func() {
			cctx, ccancel := config.WithTimeout(5 * time.Second)
			defer ccancel()
			_ = repo.Close(cctx)
		}

		return repo, repo.Ping, closeFn, nil

	case "postgres":
		pool, err := db.NewPool(cfg.DBURL)

		if err != nil {
			return nil, nil, nil, err
		}

		ctx, cancel := config.WithTimeout(10 * time.Second)
		defer cancel()

		if err := db.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, nil, err
		}

		return postgres.NewUsersRepo(pool), pool.Ping, pool.Close, nil

	case "memory":
		return memory.NewUsersRepo(), nil, func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}
