package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geocoder89/userhub/internal/config"
	httpx "github.com/geocoder89/userhub/internal/http"
	"github.com/geocoder89/userhub/internal/http/handlers"
	"github.com/geocoder89/userhub/internal/http/middlewares"
	"github.com/geocoder89/userhub/internal/observability"
	"github.com/geocoder89/userhub/internal/redisclient"
	"github.com/geocoder89/userhub/internal/repo"
	"github.com/geocoder89/userhub/internal/security"
	"github.com/geocoder89/userhub/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := observability.NewLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// tracing
	shutdownTracer := func(context.Context) error { return nil }
	if cfg.OTelEnabled {
		shutdownTracer, err = observability.InitTracer(ctx, cfg.AppName, cfg.Env, cfg.OTelEndpoint)
		if err != nil {
			log.Error("tracer init failed", "err", err)
			os.Exit(1)
		}
	}

	// metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	prom := observability.NewProm(reg)

	// document store
	coll, closeStore, err := openCollection(ctx, cfg, repo.CollectionName)
	if err != nil {
		log.Error("store connect failed", "driver", cfg.StoreDriver, "err", err)
		os.Exit(1)
	}

	usersRepo := repo.NewUsersRepo(observability.InstrumentCollection(coll, repo.CollectionName, prom))

	if err := usersRepo.EnsureIndexes(ctx); err != nil {
		log.Error("ensure indexes failed", "err", err)
		os.Exit(1)
	}

	hasher := security.NewHasher(cfg.BcryptCost, cfg.HashConcurrency)
	usersService := service.NewUsersService(usersRepo, hasher, log)

	err = usersService.EnsureAdminUser(ctx, service.AdminSeed{
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
		Name:     cfg.AdminName,
	})
	if err != nil {
		log.Error("admin seed failed", "err", err)
		os.Exit(1)
	}

	checks := map[string]handlers.Check{
		"store": usersRepo.Ping,
	}

	// rate limiting: shared through redis when configured, per process otherwise
	var limiter middlewares.Limiter
	var rdb *redisclient.Client

	if cfg.RateLimit > 0 {
		limiter = middlewares.NewMemoryLimiter(cfg.RateLimit, cfg.RateLimitWindow)

		if cfg.RedisAddr != "" {
			rdb, err = redisclient.Connect(ctx, redisclient.Config{
				Addr:     cfg.RedisAddr,
				Password: cfg.RedisPassword,
				DB:       cfg.RedisDB,
			})
			if err != nil {
				log.Error("redis connect failed", "err", err)
				os.Exit(1)
			}

			limiter = middlewares.NewRedisLimiter(rdb.Scripter(), cfg.RateLimit, cfg.RateLimitWindow)
			checks["redis"] = rdb.Ping
		}
	}

	router := httpx.NewRouter(httpx.Deps{
		Config:   cfg,
		Logger:   log,
		Users:    usersService,
		Checks:   checks,
		Registry: reg,
		Prom:     prom,
		Limiter:  limiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Port, "env", cfg.Env, "store", cfg.StoreDriver, "prefix", cfg.APIPrefix)
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	log.Info("server shutting down")

	shutdownCtx, cancel := config.WithTimeout(10 * time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}

	closeStore(shutdownCtx)

	if rdb != nil {
		_ = rdb.Close()
	}

	if err := shutdownTracer(shutdownCtx); err != nil {
		log.Error("tracer shutdown failed", "err", err)
	}

	log.Info("shutdown complete")
}
