package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gridbase/gridbase/internal/cache"
	"github.com/gridbase/gridbase/internal/catalog"
	"github.com/gridbase/gridbase/internal/engine"
	"github.com/gridbase/gridbase/internal/gateway"
	"github.com/gridbase/gridbase/internal/permissions"
	"github.com/gridbase/gridbase/internal/rowstore"
	"github.com/gridbase/gridbase/pkg/config"
	"github.com/gridbase/gridbase/pkg/database"
	"github.com/gridbase/gridbase/pkg/health"
	"github.com/gridbase/gridbase/pkg/logger"
)

const version = "0.1.0"

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with its HTTP gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	cfg := config.FromEnv()
	log := logger.New("gridbase", version)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, database.FromGlobalConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	defer db.Close()

	resultCache, closeCache, err := buildCache(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeCache()

	cat := catalog.NewService(db, log)
	store := rowstore.NewStore(db, log)
	perms := permissions.NewService(db, log)

	eng := engine.New(cat, store, perms, resultCache, nil, log)
	eng.Start()
	defer eng.Stop()

	checker := health.NewChecker()
	checker.Register("postgres", func() error {
		return db.Pool().Ping(ctx)
	})
	eng.RegisterHealthChecks(ctx, checker)

	server := gateway.NewServer(eng, checker, log)
	addr := cfg.GetOrDefault("http.listen", ":8080")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Stop(shutdownCtx)
}

// buildCache picks the cache backend: shared Redis when configured,
// otherwise in-process memory.
func buildCache(ctx context.Context, cfg *config.Config, log *logger.Logger) (cache.Cache, func(), error) {
	ttl := time.Duration(cfg.GetInt("cache.ttl_seconds", 45)) * time.Second

	if cfg.GetOrDefault("cache.backend", "memory") == "redis" {
		rdb, err := database.NewRedis(ctx, database.RedisFromGlobalConfig(cfg))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		log.Info("Using redis cache backend")
		return cache.NewRedis(rdb, ttl, log), rdb.Close, nil
	}

	mem := cache.NewMemory(cache.MemoryConfig{
		TTL:      ttl,
		Capacity: cfg.GetInt("cache.capacity", cache.DefaultCapacity),
	}, log)
	return mem, func() {}, nil
}
