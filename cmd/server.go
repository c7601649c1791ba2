package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aibles/iam/pkg/config"
	"github.com/aibles/iam/pkg/errx"
	"github.com/aibles/iam/pkg/logx"
	"github.com/aibles/iam/pkg/ratelimit"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

func main() {
	logx.Info("🚀 Starting IAM API Server...")

	// 1. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logx.Fatalf("Failed to load configuration: %v", err)
	}

	// 2. Initialize Dependency Container
	container := NewContainer(cfg)
	defer container.Cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	container.StartBackgroundServices(ctx)

	// 3. Create Fiber App with Config
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
		ErrorHandler:          globalErrorHandler,
		IdleTimeout:           120 * time.Second,
	})

	// 4. Global Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header: "X-Request-ID",
		Generator: func() string {
			return uuid.NewString()
		},
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:  getCORSOrigins(),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Request-ID",
		AllowMethods:  "GET, POST, PUT, DELETE, PATCH, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID, Retry-After",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	// Admission control runs before any route handler.
	app.Use(ratelimit.Middleware(container.IAM.RateLimiter, &cfg.RateLimit))

	// 5. Health Check
	app.Get("/health", healthCheckHandler(container))

	// 6. Register Routes

	// ========================================================================
	// Authentication Routes
	// ========================================================================
	// Passkey ceremonies: /api/v1/auth/passkey/*
	container.IAM.PasskeyHandlers.RegisterRoutes(app, container.IAM.AuthMiddleware)
	logx.Info("✓ Passkey routes registered")

	// Token lifecycle: /api/v1/auth/refresh, /api/v1/auth/logout
	container.IAM.TokenHandlers.RegisterRoutes(app)
	logx.Info("✓ Token routes registered")

	// Federated login: /api/v1/auth/google/*
	container.IAM.FederationHandlers.RegisterRoutes(app)
	logx.Info("✓ Federation routes registered")

	// ========================================================================
	// Directory Routes
	// ========================================================================
	// User management: /api/v1/users/*
	container.IAM.UserHandlers.RegisterRoutes(app, container.IAM.AuthMiddleware)
	logx.Info("✓ User routes registered")

	// 7. 404 Handler
	app.Use(notFoundHandler)

	// 8. Start Server with Graceful Shutdown
	startServer(app, cfg)
}

// healthCheckHandler reports the service and its backing stores.
func healthCheckHandler(container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": container.Config.App.Name,
		}

		if err := container.DB.Ping(); err != nil {
			health["db"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["db"] = "healthy"
		}

		if err := container.Redis.Ping(c.Context()).Err(); err != nil {
			health["redis"] = "unhealthy"
			health["status"] = "degraded"
		} else {
			health["redis"] = "healthy"
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(health)
	}
}

// notFoundHandler handles 404 errors
func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":      "Route not found",
		"code":       "NOT_FOUND",
		"path":       c.Path(),
		"method":     c.Method(),
		"request_id": c.Get("X-Request-ID"),
	})
}

// globalErrorHandler converts internal errors to standard HTTP responses.
// Unknown errors never leak internals to the client.
func globalErrorHandler(c *fiber.Ctx, err error) error {
	logx.WithFields(logx.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"request_id": c.Get("X-Request-ID"),
	}).Errorf("Request error: %v", err)

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{
			"error":      fiberErr.Message,
			"code":       "FIBER_ERROR",
			"status":     fiberErr.Code,
			"request_id": c.Get("X-Request-ID"),
		})
	}

	var appErr *errx.Error
	if errors.As(err, &appErr) {
		response := fiber.Map{
			"error":      appErr.Message,
			"code":       appErr.Code,
			"type":       string(appErr.Type),
			"status":     appErr.HTTPStatus,
			"request_id": c.Get("X-Request-ID"),
		}
		if len(appErr.Details) > 0 {
			response["details"] = appErr.Details
		}
		return c.Status(appErr.HTTPStatus).JSON(response)
	}

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":      "Internal Server Error",
		"code":       "INTERNAL_ERROR",
		"type":       "INTERNAL",
		"request_id": c.Get("X-Request-ID"),
	})
}

// getCORSOrigins returns allowed CORS origins
func getCORSOrigins() string {
	origins := os.Getenv("CORS_ORIGINS")
	if origins == "" {
		return "*" // Default for development
	}
	return origins
}

// startServer starts the server with graceful shutdown
func startServer(app *fiber.App, cfg *config.Config) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)

	go func() {
		logx.Infof("🚀 Server listening on port %d", cfg.App.Port)
		logx.Infof("💚 Health Check: http://localhost:%d/health", cfg.App.Port)

		if err := app.Listen(addr); err != nil {
			logx.Fatalf("Server error: %v", err)
		}
	}()

	gracefulShutdown(app)
}

// gracefulShutdown handles graceful server shutdown
func gracefulShutdown(app *fiber.App) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	sig := <-sigChan
	logx.Infof("🛑 Received signal: %v", sig)
	logx.Info("Shutting down gracefully...")

	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		logx.Errorf("Server forced to shutdown: %v", err)
	}

	logx.Info("✅ Server exited successfully")
}
