package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"rulegate/internal/auth"
	"rulegate/internal/config"
	"rulegate/internal/engine"
	"rulegate/internal/metadata"
	"rulegate/internal/settings"
	"rulegate/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("ERROR: load config: %v", err)
	}

	ctx := context.Background()
	st, err := store.New(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("ERROR: connect database: %v", err)
	}
	defer st.Close()

	if err := st.Bootstrap(ctx); err != nil {
		log.Fatalf("ERROR: bootstrap database: %v", err)
	}

	registry := metadata.NewRegistry()
	if err := metadata.LoadDir(cfg.Plugin.SchemaDir, registry); err != nil {
		log.Fatalf("ERROR: load schemas: %v", err)
	}

	settingsStore := settings.NewStore(cfg.Plugin.SettingsFile)
	ruleStore := engine.NewSQLRuleStore(st)
	logStore := engine.NewSQLLogStore(st)

	var notifier engine.Notifier = engine.NoopNotifier{}
	if cfg.SMTP.Host != "" {
		notifier = engine.NewSMTPNotifier(
			fmt.Sprintf("%s:%d", cfg.SMTP.Host, cfg.SMTP.Port), cfg.SMTP.From)
	}

	validator := engine.NewValidator(settingsStore, ruleStore, logStore, notifier)
	handler := engine.NewHandler(ruleStore, logStore, settingsStore, registry, validator)

	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler,
	})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "version": engine.Version})
	})

	authHandler := auth.NewHandler(st, cfg.JWTSecret)
	app.Post("/api/auth/login", authHandler.Login)

	engine.RegisterRoutes(app, handler,
		auth.Middleware(cfg.JWTSecret), auth.RequireAdmin())

	pruneCtx, stopPruner := context.WithCancel(ctx)
	go runLogPruner(pruneCtx, logStore, settingsStore)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Printf("listening on %s (db=%s)", addr, cfg.Database.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("ERROR: server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down")
	stopPruner()
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("WARN: shutdown: %v", err)
	}
}

// runLogPruner enforces the retention window: once at startup, then daily.
func runLogPruner(ctx context.Context, logs engine.LogStore, cfg settings.Loader) {
	prune := func() {
		days := cfg.Load().LogRetentionDays
		n, err := logs.PruneOlderThan(ctx, days)
		if err != nil {
			log.Printf("WARN: log prune failed: %v", err)
			return
		}
		if n > 0 {
			log.Printf("pruned %d log entries older than %d days", n, days)
		}
	}

	prune()
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	var appErr *engine.AppError
	if errors.As(err, &appErr) {
		return c.Status(appErr.Status).JSON(engine.ErrorResponse{Error: appErr})
	}

	if errors.Is(err, store.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(engine.ErrorResponse{
			Error: engine.NewAppError("NOT_FOUND", fiber.StatusNotFound, "resource not found"),
		})
	}
	if errors.Is(err, store.ErrUniqueViolation) {
		return c.Status(fiber.StatusConflict).JSON(engine.ErrorResponse{
			Error: engine.NewAppError("CONFLICT", fiber.StatusConflict, "resource already exists"),
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(engine.ErrorResponse{
			Error: engine.NewAppError("HTTP_ERROR", fiberErr.Code, fiberErr.Message),
		})
	}

	log.Printf("ERROR: unhandled: %v", err)
	return c.Status(fiber.StatusInternalServerError).JSON(engine.ErrorResponse{
		Error: engine.NewAppError("INTERNAL", fiber.StatusInternalServerError, "internal server error"),
	})
}
