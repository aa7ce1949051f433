package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nats-io/nats.go"

	"github.com/voltmotors/be-warranty-claims/internal/client"
	"github.com/voltmotors/be-warranty-claims/internal/config"
	"github.com/voltmotors/be-warranty-claims/internal/database"
	"github.com/voltmotors/be-warranty-claims/internal/handler"
	"github.com/voltmotors/be-warranty-claims/internal/identity"
	"github.com/voltmotors/be-warranty-claims/internal/logger"
	"github.com/voltmotors/be-warranty-claims/internal/middleware"
	"github.com/voltmotors/be-warranty-claims/internal/repository"
	"github.com/voltmotors/be-warranty-claims/internal/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:       os.Getenv("LOG_LEVEL"),
		Environment: cfg.Service.Environment,
		ServiceName: cfg.Service.Name,
		Version:     cfg.Service.Version,
	})

	log.Info().
		Str("service", cfg.Service.Name).
		Str("version", cfg.Service.Version).
		Str("environment", cfg.Service.Environment).
		Msg("Starting Warranty Claims Service")

	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database
	db, err := database.New(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		Database:    cfg.Database.Database,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConns,
		MinConns:    cfg.Database.MinConns,
		MaxConnTime: cfg.Database.MaxConnTime,
		MaxIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("Database connection established")

	// Initialize repositories
	claimRepo := repository.NewClaimRepository(db)
	partRepo := repository.NewPartRepository(db)
	taskRepo := repository.NewTaskRepository(db, claimRepo, partRepo)

	// Initialize notification publisher. A missing NATS URL disables
	// publishing; workflow outcomes never depend on it.
	var nc *nats.Conn
	if cfg.NATS.URL != "" {
		nc, err = nats.Connect(cfg.NATS.URL,
			nats.Name(cfg.Service.Name),
			nats.MaxReconnects(-1),
		)
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable; notifications disabled")
		} else {
			defer nc.Close()
			log.Info().Str("url", cfg.NATS.URL).Msg("NATS connection established")
		}
	}
	notifier := client.NewNotificationPublisher(nc, log.Logger)

	// Initialize downstream service clients
	catalogClient := client.NewCatalogClient(cfg.Clients.CatalogURL)
	recordClient := client.NewServiceRecordClient(cfg.Clients.ServiceRecordURL)

	log.Info().
		Str("catalog_url", cfg.Clients.CatalogURL).
		Str("service_record_url", cfg.Clients.ServiceRecordURL).
		Msg("Service clients initialized")

	// Initialize services
	var policy service.AutoApprovePolicy
	if cfg.Approval.AutoApproveMaxUnits > 0 {
		policy = service.MaxUnitsPolicy(cfg.Approval.AutoApproveMaxUnits)
		log.Info().Int("max_units", cfg.Approval.AutoApproveMaxUnits).Msg("Auto-approval enabled")
	}

	claimService := service.NewClaimService(claimRepo, policy, recordClient, notifier, log.Logger)
	taskService := service.NewTaskService(taskRepo, claimRepo, notifier, log.Logger)
	partService := service.NewPartLedgerService(partRepo, catalogClient, log.Logger)
	workflow := service.NewWorkflowCoordinator(claimService, taskService, partService)

	// Setup HTTP routes
	verifier := identity.NewVerifier(cfg.Auth.JWTSecret)
	httpHandler := handler.NewHTTPHandler(workflow, log.Logger)
	authenticate := middleware.Authenticate(verifier)
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	// Claim routes
	mux.Handle("/api/v1/claims", authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			httpHandler.ListClaims(w, r)
		case http.MethodPost:
			httpHandler.SubmitClaim(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	mux.Handle("/api/v1/claims/get", authenticate(http.HandlerFunc(httpHandler.GetClaim)))
	mux.Handle("/api/v1/claims/approve", authenticate(post(httpHandler.ApproveClaim)))
	mux.Handle("/api/v1/claims/reject", authenticate(post(httpHandler.RejectClaim)))
	mux.Handle("/api/v1/claims/self-service", authenticate(post(httpHandler.MarkSelfService)))

	// Task routes
	mux.Handle("/api/v1/tasks/get", authenticate(http.HandlerFunc(httpHandler.GetTask)))
	mux.Handle("/api/v1/tasks/mine", authenticate(http.HandlerFunc(httpHandler.ListMyTasks)))
	mux.Handle("/api/v1/tasks/assign", authenticate(post(httpHandler.AssignTask)))
	mux.Handle("/api/v1/tasks/start", authenticate(post(httpHandler.StartTask)))
	mux.Handle("/api/v1/tasks/complete", authenticate(post(httpHandler.CompleteTask)))

	// Part ledger routes
	mux.Handle("/api/v1/parts/get", authenticate(http.HandlerFunc(httpHandler.GetPartUnit)))
	mux.Handle("/api/v1/parts/stock", authenticate(http.HandlerFunc(httpHandler.GetPartStock)))
	mux.Handle("/api/v1/parts/defective", authenticate(post(httpHandler.MarkDefective)))

	// Apply middleware
	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logger(&log.Logger)(h)
	h = middleware.Recovery(&log.Logger)(h)
	h = middleware.CORS([]string{"*"})(h)
	h = middleware.Timeout(cfg.Server.WriteTimeout)(h)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	log.Info().Msg("Server stopped")
}

// post restricts a handler to the POST method
func post(fn http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		fn(w, r)
	})
}
