/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the shift and leave scheduling server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, config file, SHIFT_* environment)
  2. Configure the logger
  3. Open the SQLite store
  4. Pick the lock backend (Redis when enabled, in-process otherwise)
  5. Build the service, handler and router
  6. Start the stale application sweeper
  7. Serve with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Path to a config file (default: ./config.yaml or ./config/config.yaml)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the sweeper
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close the database and Redis connections

EXAMPLES:
  # Local development with scenarios and X-User-ID auth
  SHIFT_DEV_MODE=true SHIFT_DATABASE_PATH=":memory:" ./server

  # Production with a distributed lock
  SHIFT_JWT_SECRET=... SHIFT_REDIS_ENABLED=true SHIFT_REDIS_ADDR=redis:6379 ./server

SEE ALSO:
  - config/config.go: Settings and defaults
  - api/server.go: Router configuration
  - schedule/service.go: Domain operations
*/
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/warp/shift-engine/api"
	"github.com/warp/shift-engine/auth"
	"github.com/warp/shift-engine/config"
	"github.com/warp/shift-engine/logging"
	"github.com/warp/shift-engine/schedule"
	"github.com/warp/shift-engine/store/redislock"
	"github.com/warp/shift-engine/store/sqlite"
)

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log)

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("server failed")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	opts := []schedule.Option{schedule.WithLogger(log)}
	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		rdb, err := redislock.Dial(ctx, cfg.Redis)
		cancel()
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using in-process locks")
		} else {
			defer rdb.Close()
			opts = append(opts, schedule.WithLocker(redislock.New(rdb, cfg.Redis.LockTTL).WithLogger(log)))
			log.WithField("addr", cfg.Redis.Addr).Info("using redis locks")
		}
	}

	svc := schedule.NewService(store, cfg.Schedule.Engine(), opts...)
	tokens := auth.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)

	handler := api.NewHandler(svc, store, tokens, log)
	handler.DevMode = cfg.DevMode
	if cfg.DevMode {
		log.Warn("dev mode: X-User-ID authentication and demo scenarios enabled")
	}

	sweeper := api.NewApplicationSweeper(svc, log, cfg.Schedule.SweepInterval)
	sweeper.Start()
	defer sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(handler, cfg.Server),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Server.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down server")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}
