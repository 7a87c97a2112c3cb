// The server exposes one bitemporal collection of employees over HTTP.
// Writes go through the engine's supersede discipline, reads accept the two
// query moments as parameters, and the full audit trail stays reachable.
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

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	bitemporal "github.com/mohan-palisetti/bitemporaldb"
	"github.com/mohan-palisetti/bitemporaldb/model"
	"github.com/mohan-palisetti/bitemporaldb/store/instrumented"
	"github.com/mohan-palisetti/bitemporaldb/store/memory"
	"github.com/mohan-palisetti/bitemporaldb/store/postgres"
	"github.com/mohan-palisetti/bitemporaldb/store/redis"
	"github.com/mohan-palisetti/bitemporaldb/store/sqlite"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, closeStore, err := openStorage(cfg)
	if err != nil {
		logger.Fatal("failed to open storage", zap.Error(err))
	}
	defer closeStore()

	engine := bitemporal.NewEngine[model.Employee](store, bitemporal.WithLogger(logger))
	handler := NewEmployeeHandler(engine)

	app := fiber.New(fiber.Config{
		AppName:               "bitemporaldb",
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          30 * time.Second,
		IdleTimeout:           120 * time.Second,
		DisableStartupMessage: cfg.Server.Env == "production",
		ErrorHandler:          errorHandler(logger),
	})

	app.Get("/health", handler.Health)
	app.Post("/employees", handler.Store)
	app.Get("/employees/:id", handler.Find)
	app.Put("/employees/:id", handler.UpdateLogical)
	app.Patch("/employees/:id", handler.Update)
	app.Get("/employees/:id/history", handler.History)

	// Metrics live on their own listener so the scrape path never competes
	// with the API.
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
		if err := http.ListenAndServe(cfg.Server.MetricsAddr, mux); err != nil {
			logger.Error("metrics listener failed", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("backend", cfg.Storage.Backend),
			zap.String("collection", cfg.Storage.Collection))
		if err := app.Listen(cfg.Server.Addr); err != nil {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	logger.Info("stopped")
}

func newLogger(cfg *Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.Log.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Server.Env == "production" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)
	return zapCfg.Build()
}

// openStorage wires the configured backend behind the metrics decorator.
func openStorage(cfg *Config) (bitemporal.Storage[model.Employee], func(), error) {
	collection := cfg.Storage.Collection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch cfg.Storage.Backend {
	case "memory":
		return instrumented.Wrap[model.Employee](memory.New[model.Employee](), collection), func() {}, nil

	case "sqlite":
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite %s: %w", cfg.Storage.SQLitePath, err)
		}
		store, err := sqlite.NewStore[model.Employee](db, collection)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return instrumented.Wrap[model.Employee](store, collection), func() { db.Close() }, nil

	case "postgres":
		db, err := postgres.Open(ctx, cfg.Storage.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		store, err := postgres.NewStore[model.Employee](ctx, db, collection)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return instrumented.Wrap[model.Employee](store, collection), db.Close, nil

	case "redis":
		db, err := redis.Open(ctx, cfg.Storage.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		store, err := redis.NewStore[model.Employee](db, collection)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return instrumented.Wrap[model.Employee](store, collection), func() { db.Close() }, nil
	}
	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
}

// errorHandler translates engine errors into status codes. Corrupt history
// deliberately answers 500: it must stay loud, not dress up as a 404.
func errorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal server error"

		var fiberErr *fiber.Error
		switch {
		case errors.As(err, &fiberErr):
			code = fiberErr.Code
			message = fiberErr.Message
		case errors.Is(err, bitemporal.ErrInvalidPeriod):
			code = fiber.StatusBadRequest
			message = err.Error()
		case errors.Is(err, bitemporal.ErrNotFound):
			code = fiber.StatusNotFound
			message = err.Error()
		case errors.Is(err, bitemporal.ErrConcurrencyConflict):
			code = fiber.StatusConflict
			message = err.Error()
		case bitemporal.IsInconsistentHistory(err):
			message = err.Error()
		}

		if code >= 500 {
			logger.Error("request failed",
				zap.Int("status", code),
				zap.String("path", c.Path()),
				zap.String("method", c.Method()),
				zap.Error(err))
		}
		return c.Status(code).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    code,
				"message": message,
			},
		})
	}
}
