package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Abraxas-365/otpguard/pkg/config"
	"github.com/Abraxas-365/otpguard/pkg/errx"
	"github.com/Abraxas-365/otpguard/pkg/logx"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Initialize Logger
	logx.SetDefaultLogger(logx.NewLogger(logx.LoadFromEnv()))
	logx.Info("🚀 Starting OTP Guard API Server...")

	// 2. Configuration and dependency container
	cfg := config.Load()
	container := NewContainer(cfg)
	defer container.Cleanup()

	// 3. Create Fiber App with Config
	app := newApp(cfg, container)

	// 4. Run until signalled
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, app, container); err != nil {
		logx.Errorf("Server stopped with error: %v", err)
	}
	logx.Info("✅ Server exited successfully")
}

func newApp(cfg *config.Config, container *Container) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:                 "OTP Guard API",
		DisableStartupMessage:   true,
		ErrorHandler:            globalErrorHandler(cfg.Server.Debug),
		BodyLimit:               64 * 1024,
		IdleTimeout:             120 * time.Second,
		EnableTrustedProxyCheck: len(cfg.Server.TrustedProxies) > 0,
		TrustedProxies:          cfg.Server.TrustedProxies,
		ProxyHeader:             proxyHeader(cfg.Server.TrustedProxies),
	})

	// Global Middleware
	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	app.Use(requestid.New(requestid.Config{
		Header:     "X-Request-ID",
		Generator:  func() string { return "req-" + uuid.NewString() },
		ContextKey: "request_id",
	}))

	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.Server.CORSOrigins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, X-Admin-Token, X-Request-ID",
		AllowMethods:  "GET, POST, HEAD, OPTIONS",
		ExposeHeaders: "X-Request-ID",
	}))

	app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${method} ${path} | ${ip} | ${reqHeader:X-Request-ID}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Local",
	}))

	// Health Check & Info Endpoints
	app.Get("/health", healthCheckHandler(cfg, container))
	app.Get("/", infoHandler(cfg))

	// Routes: /api/otp/*
	container.OTP.RegisterRoutes(app.Group("/api"))
	logx.Info("✓ OTP routes registered")

	// 404 Handler
	app.Use(notFoundHandler)

	printRouteSummary(container.OTP.AdminHandlers.Enabled())
	return app
}

// proxyHeader reads the client address from X-Forwarded-For only behind trusted proxies.
func proxyHeader(trusted []string) string {
	if len(trusted) == 0 {
		return ""
	}
	return fiber.HeaderXForwardedFor
}

// ============================================================================
// Lifecycle
// ============================================================================

// run serves HTTP and processes jobs until ctx is cancelled or either fails.
func run(ctx context.Context, cfg *config.Config, app *fiber.App, container *Container) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return container.StartBackgroundServices(gctx)
	})

	g.Go(func() error {
		port := cfg.Server.Port
		logx.Info("=" + strings.Repeat("=", 60))
		logx.Infof("🚀 Server listening on port %s", port)
		logx.Infof("💚 Health Check: http://localhost:%s/health", port)
		logx.Info("=" + strings.Repeat("=", 60))
		return app.Listen(":" + port)
	})

	g.Go(func() error {
		<-gctx.Done()
		logx.Info("🛑 Shutting down gracefully...")
		if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
			logx.Errorf("Server forced to shutdown: %v", err)
			return err
		}
		return nil
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// ============================================================================
// Handler Functions
// ============================================================================

// healthCheckHandler pings the database and Redis
func healthCheckHandler(cfg *config.Config, container *Container) fiber.Handler {
	return func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status":  "healthy",
			"service": "otpguard",
			"version": cfg.Server.AppVersion,
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		for name, err := range container.Ping(ctx) {
			if err != nil {
				health[name] = "unhealthy"
				health[name+"_error"] = err.Error()
				health["status"] = "degraded"
			} else {
				health[name] = "healthy"
			}
		}

		status := fiber.StatusOK
		if health["status"] == "degraded" {
			status = fiber.StatusServiceUnavailable
		}

		return c.Status(status).JSON(health)
	}
}

// infoHandler returns basic API information
func infoHandler(cfg *config.Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service":     "OTP Guard API",
			"version":     cfg.Server.AppVersion,
			"description": "One-time password issuance and verification with layered rate limiting",
			"endpoints": fiber.Map{
				"generate": "POST /api/otp/generate",
				"verify":   "POST /api/otp/verify",
				"resend":   "POST /api/otp/resend",
				"session":  "GET /api/otp/session",
				"health":   "GET /health",
			},
		})
	}
}

// notFoundHandler handles 404 errors
func notFoundHandler(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"success":    false,
		"error":      "not_found",
		"path":       c.Path(),
		"method":     c.Method(),
		"message":    "The requested endpoint does not exist",
		"request_id": c.Get("X-Request-ID"),
	})
}

// ============================================================================
// Error Handler
// ============================================================================

// globalErrorHandler renders errors that escape the handlers (panics, body
// limits, unexpected failures) in the same envelope the OTP routes use.
func globalErrorHandler(debug bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		logx.WithFields(logx.Fields{
			"path":       c.Path(),
			"method":     c.Method(),
			"ip":         c.IP(),
			"request_id": c.Get("X-Request-ID"),
			"user_agent": c.Get("User-Agent"),
		}).Errorf("Request error: %v", err)

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{
				"success":    false,
				"error":      strings.ToLower(strings.ReplaceAll(http.StatusText(fe.Code), " ", "_")),
				"message":    fe.Message,
				"request_id": c.Get("X-Request-ID"),
			})
		}

		if e, ok := errx.As(err); ok {
			response := fiber.Map{
				"success":    false,
				"error":      strings.ToLower(e.Code),
				"message":    e.Message,
				"request_id": c.Get("X-Request-ID"),
			}
			for k, v := range e.Details {
				response[k] = v
			}
			if debug && e.Err != nil {
				response["details"] = e.Err.Error()
			}
			return c.Status(errx.StatusOf(e)).JSON(response)
		}

		response := fiber.Map{
			"success":    false,
			"error":      "internal_error",
			"message":    "An unexpected error occurred",
			"request_id": c.Get("X-Request-ID"),
			"details":    nil,
		}
		if debug {
			response["details"] = err.Error()
		}
		return c.Status(fiber.StatusInternalServerError).JSON(response)
	}
}

// ============================================================================
// Utility Functions
// ============================================================================

func printRouteSummary(adminEnabled bool) {
	logx.Info("📋 Route Summary:")
	logx.Info("   ├─ OTP: /api/otp/generate, /api/otp/verify, /api/otp/resend, /api/otp/session")
	if adminEnabled {
		logx.Info("   ├─ Admin: /api/otp/admin/*")
	}
	logx.Info("   └─ Health: /health")
}
