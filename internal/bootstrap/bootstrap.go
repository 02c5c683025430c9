package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	appControllers "github.com/tallpines/campreg/internal/app/controllers"
	appMigrations "github.com/tallpines/campreg/internal/app/migrations"
	appRepos "github.com/tallpines/campreg/internal/app/repositories"
	appRoutes "github.com/tallpines/campreg/internal/app/routes"
	appServices "github.com/tallpines/campreg/internal/app/services"
	"github.com/tallpines/campreg/internal/config"
	"github.com/tallpines/campreg/internal/db"
	appMiddleware "github.com/tallpines/campreg/internal/middleware"
	pkgAuth "github.com/tallpines/campreg/internal/pkg/auth"
	"github.com/tallpines/campreg/internal/pkg/logger"
	"github.com/tallpines/campreg/internal/pkg/mailer"
	"github.com/tallpines/campreg/internal/scheduler"
	"github.com/tallpines/campreg/internal/seed"
)

// Dependencies holds all the application dependencies
type Dependencies struct {
	ApplicationService    *appServices.ApplicationService
	SectionService        *appServices.SectionService
	AutomationService     *appServices.AutomationService
	NotificationService   *appServices.NotificationService
	AuditService          *appServices.AuditService
	ApplicationController *appControllers.ApplicationController
	SectionController     *appControllers.SectionController
	AutomationController  *appControllers.AutomationController
	AuditController       *appControllers.AuditController
	AuthMiddleware        *appMiddleware.AuthMiddleware
	RateLimiter           *appMiddleware.RateLimiter
	Repos                 *appRepos.Repositories
	JWTService            *pkgAuth.JWTService
	Dispatcher            mailer.Dispatcher
	Scheduler             *scheduler.Scheduler
	Logger                zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger() (*config.Config, zerolog.Logger, error) {
	configPath := filepath.Join("configs", "config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := log.Logger
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase establishes the database connection, runs migrations and
// seeds default data.
func SetupDatabase(cfg *config.Config, lgr zerolog.Logger) (*db.PostgresDB, error) {
	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	dbPool := database.Pool

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := dbPool.Ping(ctx); err != nil {
		lgr.Error().Err(err).Msg("Failed to ping database")
		dbPool.Close()
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	lgr.Info().Msg("Running database migrations...")
	migrator := appMigrations.NewMigrator(dbPool)

	migrationsDir := "migrations"
	if _, err := os.Stat(migrationsDir); os.IsNotExist(err) {
		lgr.Error().Str("path", migrationsDir).Msg("Migrations directory not found")
		return nil, fmt.Errorf("migrations directory not found at %s: %w", migrationsDir, err)
	}
	if err := migrator.MigrateFromDirectory(context.Background(), migrationsDir); err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return nil, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Msg("Database migrations successfully applied.")

	if err := seed.CreateDefaultData(context.Background(), database, lgr); err != nil {
		// Seed failures are logged but never block startup.
		lgr.Error().Err(err).Msg("Failed to create default data, proceeding anyway...")
	}

	return database, nil
}

// BuildDependencies initializes application repositories, services, and controllers.
func BuildDependencies(cfg *config.Config, database *db.PostgresDB, lgr zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Logger: lgr}

	deps.Repos = appRepos.NewRepositories(database)

	deps.JWTService = pkgAuth.NewJWTService(pkgAuth.JWTConfig{
		SecretKey:   cfg.Auth.Secret,
		TokenIssuer: cfg.Auth.Issuer,
		Leeway:      cfg.AuthLeeway(),
	})

	deps.Dispatcher = mailer.NewSMTPDispatcher(mailer.SMTPConfig{
		Host:      cfg.SMTP.Host,
		Port:      cfg.SMTP.Port,
		Username:  cfg.SMTP.Username,
		Password:  cfg.SMTP.Password,
		FromName:  cfg.SMTP.FromName,
		FromEmail: cfg.SMTP.FromEmail,
		UseTLS:    cfg.SMTP.UseTLS,
	}, lgr)

	deps.AuditService = appServices.NewAuditService(deps.Repos.AuditLogRepository)

	deps.NotificationService = appServices.NewNotificationService(
		deps.Repos.AutomationRepository,
		deps.Repos.DeliveryLogRepository,
		deps.Repos.ApplicationRepository,
		deps.Repos.UserRepository,
		deps.Repos.AuditLogRepository,
		deps.Dispatcher,
	)

	deps.ApplicationService = appServices.NewApplicationService(
		deps.Repos.ApplicationRepository,
		deps.Repos.SectionRepository,
		deps.Repos.ResponseRepository,
		deps.Repos.AuditLogRepository,
		deps.NotificationService,
	)

	deps.SectionService = appServices.NewSectionService(deps.Repos.SectionRepository)
	deps.AutomationService = appServices.NewAutomationService(deps.Repos.AutomationRepository)

	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(deps.JWTService, deps.Repos.UserRepository)
	deps.RateLimiter = appMiddleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)

	deps.ApplicationController = appControllers.NewApplicationController(deps.ApplicationService)
	deps.SectionController = appControllers.NewSectionController(deps.SectionService)
	deps.AutomationController = appControllers.NewAutomationController(deps.AutomationService, deps.NotificationService)
	deps.AuditController = appControllers.NewAuditController(deps.AuditService)

	if cfg.Scheduler.Enabled {
		deps.Scheduler = scheduler.New(database.Pool, deps.NotificationService)
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(appMiddleware.RequestLogger())
	router.Use(deps.RateLimiter.Middleware())

	appRoutes.SetupRouter(router,
		deps.ApplicationController,
		deps.SectionController,
		deps.AutomationController,
		deps.AuditController,
		deps.AuthMiddleware,
	)

	return router
}
