package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/4sighteducation/vespa-activities-api/internal/catalog"
	"github.com/4sighteducation/vespa-activities-api/internal/config"
	"github.com/4sighteducation/vespa-activities-api/internal/database"
	"github.com/4sighteducation/vespa-activities-api/internal/handler"
	"github.com/4sighteducation/vespa-activities-api/internal/knack"
	"github.com/4sighteducation/vespa-activities-api/internal/middleware"
	"github.com/4sighteducation/vespa-activities-api/internal/observability"
	"github.com/4sighteducation/vespa-activities-api/internal/recon"
	"github.com/4sighteducation/vespa-activities-api/internal/repository"
	"github.com/4sighteducation/vespa-activities-api/internal/roles"
	"github.com/4sighteducation/vespa-activities-api/internal/router"
	"github.com/4sighteducation/vespa-activities-api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	knackClient, err := knack.NewClient(knack.Config{
		AppID:    cfg.KnackAppID,
		APIKey:   cfg.KnackAPIKey,
		BaseURL:  cfg.KnackBaseURL,
		PageSize: cfg.KnackPageSize,
		Timeout:  cfg.KnackRequestTimeout,
	}, logger)
	if err != nil {
		log.Fatalf("failed to create CRM client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	studentRepo := repository.NewStudentRepository(knackClient)
	scoreRepo := repository.NewScoreRepository(knackClient)
	progressRepo := repository.NewProgressRepository(knackClient)

	catalogService := catalog.NewService(knackClient, redisClient, catalog.Config{
		Sources:       cfg.ContentSources,
		SourceTimeout: cfg.ContentSourceTimeout,
		CacheTTL:      cfg.CatalogCacheTTL,
	}, logger)

	resolver := roles.NewResolver(knackClient, roles.DefaultPolicy(), logger)
	engine := recon.NewEngine(logger)

	dashboardService := service.NewStaffDashboardService(
		studentRepo, scoreRepo, progressRepo,
		catalogService, resolver, engine,
		redisClient, cfg.DashboardCacheTTL, logger,
	)
	assignmentService := service.NewAssignmentService(
		studentRepo, progressRepo,
		catalogService, engine, dashboardService,
		redisClient, cfg.UndoWindow, validate, logger,
	)

	staffDashboardHandler := handler.NewStaffDashboardHandler(dashboardService, logger)
	assignmentHandler := handler.NewAssignmentHandler(assignmentService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	app.Get("/metrics", observability.MetricsHandler())
	router.Register(app, cfg, router.Dependencies{
		StaffDashboardHandler: staffDashboardHandler,
		AssignmentHandler:     assignmentHandler,
		JWTMiddleware:         middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
