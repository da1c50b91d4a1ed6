package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/ytakahashi/todo-api/internal/config"
	"github.com/ytakahashi/todo-api/internal/handlers"
	"github.com/ytakahashi/todo-api/internal/services"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newStore(ctx, cfg)
	if err != nil {
		log.Fatalf("storage: %v", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.WithError(err).Warn("failed to close store")
		}
	}()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(echoprometheus.NewMiddleware("todo_api"))
	e.GET("/metrics", echoprometheus.NewHandler())

	handlers.NewTodoHandler(store, cfg.StrictStatus, log.StandardLogger()).Register(e)

	go func() {
		log.Infof("API running on port %s", cfg.Port)
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("server shutdown")
	}
}

// newStore opens the configured backend and layers the optional Redis cache
// and instrumentation on top.
func newStore(ctx context.Context, cfg config.Config) (services.TodoStore, error) {
	var (
		store services.TodoStore
		err   error
	)
	switch cfg.Backend {
	case config.BackendMongo:
		store, err = services.NewMongoService(ctx, cfg.MongoURL, cfg.MongoDatabase)
	case config.BackendFirestore:
		store, err = services.NewFirestoreService(ctx, cfg.ProjectID)
	case config.BackendMemory:
		store = services.NewMemoryService()
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			_ = store.Close(ctx)
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		store = services.NewCache(store, redis.NewClient(opts), cfg.CacheTTL)
		log.WithField("ttl", cfg.CacheTTL).Info("redis cache enabled")
	}

	metrics := services.NewStoreMetrics(prometheus.DefaultRegisterer)
	return services.NewInstrumented(store, metrics, nil), nil
}
