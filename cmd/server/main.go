package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"admin-console-backend/db"
	"admin-console-backend/internal/api"
	"admin-console-backend/internal/config"
	"admin-console-backend/internal/handlers"
	"admin-console-backend/internal/rag"
	"admin-console-backend/internal/services"
	"admin-console-backend/internal/store/postgres"
)

func main() {
	log.Println("Starting Admin Console Backend...")

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	log.Println("Configuration loaded successfully.")

	// 2. Initialize Database Connection Pool
	dbCtx, dbCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer dbCancel()

	dbpool, err := pgxpool.New(dbCtx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Unable to create database connection pool: %v\n", err)
	}
	defer dbpool.Close()

	if err := dbpool.Ping(dbCtx); err != nil {
		log.Fatalf("FATAL: Unable to ping database: %v\n", err)
	}
	log.Println("Database connection pool established and pinged successfully.")

	// 3. Run Migrations
	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("FATAL: Database migration failed: %v", err)
	}

	// 4. Initialize Dependencies (Store, Clients, Services, Handlers)
	pgStore := postgres.NewPostgresStore(dbpool)
	log.Println("Postgres store initialized.")

	ragClient := rag.NewClient(cfg.RAGServiceURL, cfg.RAGTimeout)
	log.Printf("RAG client initialized for %s.", cfg.RAGServiceURL)

	titler := rag.NewTitler(context.Background(), cfg.GoogleAPIKey)
	log.Println("Titler initialized.")

	authService := services.NewAuthService(pgStore, cfg)
	log.Println("AuthService initialized.")
	ingestionService := services.NewIngestionService(pgStore, ragClient, cfg.RAGTimeout)
	log.Println("IngestionService initialized.")
	assistantService := services.NewAssistantService(pgStore, titler)
	log.Println("AssistantService initialized.")

	authHandler := handlers.NewAuthHandler(authService)
	ingestionHandler := handlers.NewIngestionHandler(ingestionService)
	assistantHandler := handlers.NewAssistantHandler(assistantService, ragClient)
	log.Println("Handlers initialized.")

	// 5. Setup Router & Inject Dependencies
	router := api.NewRouter(api.RouterDependencies{
		AuthHandler:      authHandler,
		IngestionHandler: ingestionHandler,
		AssistantHandler: assistantHandler,
		Config:           cfg,
	})
	log.Println("HTTP router configured.")

	// 6. Configure and Start HTTP Server
	server := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
		// No WriteTimeout: the chat endpoint holds an open SSE stream for the
		// lifetime of the upstream response.
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	stopChan := make(chan os.Signal, 1)
	signal.Notify(stopChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting and listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: Could not listen on %s: %v\n", cfg.HTTPPort, err)
		}
		log.Println("Server listener routine stopped.")
	}()

	<-stopChan
	log.Println("Shutdown signal received, initiating graceful shutdown...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("WARN: Server graceful shutdown failed: %v", err)
	}

	log.Println("Server shutdown complete.")
}
