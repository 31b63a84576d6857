package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mozilla-services/experimenter-api/config"
	"github.com/mozilla-services/experimenter-api/pkg/api/handlers"
	"github.com/mozilla-services/experimenter-api/pkg/database"
	"github.com/mozilla-services/experimenter-api/pkg/email"
	"github.com/mozilla-services/experimenter-api/pkg/jobs"
	"github.com/mozilla-services/experimenter-api/pkg/lifecycle"
	"github.com/mozilla-services/experimenter-api/pkg/logger"
	"github.com/mozilla-services/experimenter-api/pkg/metrics"
	custommiddleware "github.com/mozilla-services/experimenter-api/pkg/middleware"
	"github.com/mozilla-services/experimenter-api/pkg/notifications"
	"github.com/mozilla-services/experimenter-api/pkg/webhook"
)

func main() {
	// Load .env if present; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	appLog := logger.New(cfg.LogLevel)
	appLog.Info("configuration loaded", "environment", cfg.APIEnvironment)

	// Sentry error tracking
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.APIEnvironment,
			TracesSampleRate: 0.1,
			AttachStacktrace: true,
		})
		if err != nil {
			appLog.Warn("failed to initialize sentry", "error", err)
		} else {
			appLog.Info("sentry initialized", "environment", cfg.APIEnvironment)
			defer sentry.Flush(2 * time.Second)
		}
	} else {
		appLog.Info("sentry disabled, no DSN configured")
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	prometheusMetrics := metrics.New()

	// Services
	notifier := notifications.NewService(db.DB)
	events := webhook.NewService(db.DB, appLog.With("component", "webhook"))
	mailer := email.NewService(cfg.EmailFrom, cfg.EmailSender, appLog.With("component", "email"))
	workflow := lifecycle.NewService(db.DB, lifecycle.Config{
		BugzillaHost: cfg.BugzillaHost,
	}, notifier, events, mailer, appLog.With("component", "lifecycle"))

	// Echo setup
	e := echo.New()
	e.HideBanner = true

	globalRateLimiter := custommiddleware.NewRateLimiter(cfg.RateLimitRequestsPerMinute, cfg.RateLimitBurst)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus: true,
		LogURI:    true,
		LogMethod: true,
		LogError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			appLog.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	if cfg.SentryDSN != "" {
		e.Use(sentryecho.New(sentryecho.Options{
			Repanic: true,
		}))
	}

	e.Use(prometheusMetrics.Middleware())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderContentType, "X-User-Email"},
	}))
	e.Use(middleware.Secure())
	e.Use(middleware.Gzip())
	e.Use(globalRateLimiter.Middleware())

	// Handlers
	experimentHandler := handlers.NewExperimentHandler(workflow, prometheusMetrics)
	notificationHandler := handlers.NewNotificationHandler(notifier)
	webhookHandler := handlers.NewWebhookHandler(events)

	// Health and metrics
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"service":     "experimenter-api",
			"environment": cfg.APIEnvironment,
		})
	})
	e.GET("/health", func(c echo.Context) error {
		if err := db.Ping(); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy"})
		}
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// API routes
	v1 := e.Group("/api/v1")

	experimentsGroup := v1.Group("/experiments")
	experimentsGroup.GET("", experimentHandler.List)
	experimentsGroup.POST("", experimentHandler.Create)
	experimentsGroup.GET("/:slug", experimentHandler.Get)
	experimentsGroup.PUT("/:slug/overview", experimentHandler.UpdateOverview)
	experimentsGroup.PUT("/:slug/timeline-population", experimentHandler.UpdateTimelinePopulation)
	experimentsGroup.PUT("/:slug/design", experimentHandler.UpdateDesign)
	experimentsGroup.PUT("/:slug/objectives", experimentHandler.UpdateObjectives)
	experimentsGroup.PUT("/:slug/risks", experimentHandler.UpdateRisks)
	experimentsGroup.PUT("/:slug/review", experimentHandler.UpdateReview)
	experimentsGroup.PUT("/:slug/results", experimentHandler.UpdateResults)
	experimentsGroup.PUT("/:slug/recipe", experimentHandler.UpdateRecipe)
	experimentsGroup.PUT("/:slug/status", experimentHandler.UpdateStatus)
	experimentsGroup.PUT("/:slug/archive", experimentHandler.Archive)
	experimentsGroup.GET("/:slug/changelog", experimentHandler.Changelog)

	v1.GET("/notifications", notificationHandler.List)
	v1.PUT("/notifications/:id/read", notificationHandler.MarkRead)

	v1.POST("/webhooks", webhookHandler.Register)
	v1.GET("/webhooks", webhookHandler.List)
	v1.DELETE("/webhooks/:id", webhookHandler.Delete)

	// Scheduled lifecycle reminders
	cronManager := jobs.NewCronManager(db.DB, mailer, notifier, appLog.With("component", "jobs"))
	if err := cronManager.SetupJobs(cfg.LifecycleCronSpec); err != nil {
		log.Fatalf("failed to setup cron jobs: %v", err)
	}
	cronManager.Start()

	address := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	appLog.Info("server starting", "address", address,
		"rate_limit_per_minute", cfg.RateLimitRequestsPerMinute,
		"lifecycle_cron", cfg.LifecycleCronSpec)

	go func() {
		if err := e.Start(address); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLog.Info("shutting down server")
	cronManager.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	appLog.Info("server stopped")
}
