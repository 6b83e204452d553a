package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telecare-sos/internal/bootstrap"
	"telecare-sos/internal/config"
	handlers "telecare-sos/internal/handlers/shared"
	"telecare-sos/internal/middleware"
	"telecare-sos/internal/repositories/interfaces"
	"telecare-sos/internal/repositories/memory"
	"telecare-sos/internal/repositories/mongodb"
	"telecare-sos/internal/services"
	"telecare-sos/pkg/database"
	"telecare-sos/pkg/logger"
	"telecare-sos/pkg/metrics"
	"telecare-sos/pkg/websocket"
	"telecare-sos/routes"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := bootstrap.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()

	alerts, contacts, closeRepos, err := openRepositories(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Failed to open repositories")
	}
	defer closeRepos()

	ws := websocket.NewHandler(websocket.Options{
		ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: cfg.WebSocket.WriteBufferSize,
		PingInterval:    cfg.WebSocket.PingInterval,
		PongTimeout:     cfg.WebSocket.PongTimeout,
		AllowedOrigins:  cfg.WebSocket.AllowedOrigins,
	}, appLogger)
	ws.Hub().OnClientCount(m.SetOperatorsConnected)
	defer ws.Hub().Stop()

	intakeOpts := []services.IntakeOption{services.WithIntakeMetrics(m)}
	smsProvider, _, err := bootstrap.NewSMSProvider(context.Background(), cfg.SMS)
	if err != nil {
		appLogger.WithError(err).Warn("Contact texts disabled")
	} else if smsProvider != nil {
		intakeOpts = append(intakeOpts, services.WithContactSMS(smsProvider))
	}

	intake := services.NewIntakeService(alerts, contacts, ws, appLogger, intakeOpts...)
	handler := handlers.NewEmergencyHandler(intake, contacts, appLogger)

	throttle, err := middleware.RateLimit(cfg.Security.WriteRateLimit, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("Invalid RATE_LIMIT_WRITES")
	}

	router := routes.NewRouter(routes.RouterConfig{
		Emergency: routes.EmergencyRoutesConfig{
			JWTSecret:        cfg.Security.JWTSecret,
			RequireAlertAuth: cfg.Security.RequireAlertAuth,
			Throttle:         throttle,
		},
		AllowedOrigins: cfg.Security.CORSAllowedOrigins,
		TrustedProxies: cfg.Security.TrustedProxies,
		Version:        cfg.App.Version,
	}, handler, ws, m, appLogger)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		appLogger.Infof("Server running on port %d", cfg.App.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.WithError(err).Fatal("Error starting server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		appLogger.WithError(err).Error("Error shutting down server")
	}
	appLogger.Info("Server stopped")
}

// openRepositories connects MongoDB and runs migrations, or returns the
// in-memory repositories when DATABASE_DRIVER=memory. Redis, when reachable,
// fronts active alert lookups.
func openRepositories(cfg *config.Config, log *logger.Logger) (interfaces.SOSRepository, interfaces.ContactRepository, func(), error) {
	if cfg.Database.Driver == "memory" {
		log.Warn("Using in-memory repositories; alerts are lost on restart")
		return memory.NewSOSRepository(), memory.NewContactRepository(), func() {}, nil
	}

	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		return nil, nil, nil, err
	}

	migrator := database.NewMigrator(db.Database, log)
	if err := migrator.Up(); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if version, err := migrator.Version(); err == nil {
		log.WithField("schema_version", version).Info("Database schema up to date")
	}

	closers := []func() error{db.Close}
	var recordCache interfaces.RecordCache
	if redisCache, err := bootstrap.NewRecordCache(cfg.Redis); err != nil {
		log.WithError(err).Warn("Redis unavailable, alert lookups go straight to MongoDB")
	} else {
		recordCache = redisCache
		closers = append(closers, redisCache.Close)
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.WithError(err).Warn("Error closing connection")
			}
		}
	}

	return mongodb.NewSOSRepository(db.Database, recordCache), mongodb.NewContactRepository(db.Database), closeAll, nil
}
