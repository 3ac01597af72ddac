package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	DatabaseURL     string
	JWTSecret       string
	HTTPPort        string
	TokenExpiration time.Duration
	RAGServiceURL   string        // Base URL of the external RAG/indexer service
	GoogleAPIKey    string        // Gemini key for conversation auto-naming; optional
	RAGTimeout      time.Duration // Applied to the indexer and title calls, not the chat stream
}

// LoadConfig loads configuration from environment variables.
// It looks for a .env file first, then checks actual environment variables.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file (useful for development)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Could not load .env file. Using environment variables only.", err)
		// Don't fail if .env is not present, might be in production
	}

	port := getEnv("HTTP_PORT", "8080")
	jwtSecret := getEnv("JWT_SECRET", "default-super-secret-key") // CHANGE THIS IN PRODUCTION!
	dbURL := getEnv("DATABASE_URL", "")                           // No default, should fail if not set
	if dbURL == "" {
		log.Fatal("DATABASE_URL environment variable is not set.")
	}

	tokenExpStr := getEnv("JWT_EXPIRATION_HOURS", "24") // Default 24 hours
	tokenExpHours, err := strconv.Atoi(tokenExpStr)
	if err != nil {
		log.Printf("Warning: Invalid JWT_EXPIRATION_HOURS '%s', using default 24h. Error: %v", tokenExpStr, err)
		tokenExpHours = 24
	}

	ragURL := getEnv("RAG_SERVICE_URL", "http://localhost:8000")
	googleAPIKey := getEnv("GOOGLE_API_KEY", "")
	if googleAPIKey == "" {
		log.Println("Warning: GOOGLE_API_KEY is not set; conversation auto-naming will fall back to truncated queries.")
	}

	ragTimeoutStr := getEnv("RAG_TIMEOUT_SECONDS", "120")
	ragTimeoutSecs, err := strconv.Atoi(ragTimeoutStr)
	if err != nil {
		log.Printf("Warning: Invalid RAG_TIMEOUT_SECONDS '%s', using default 120s. Error: %v", ragTimeoutStr, err)
		ragTimeoutSecs = 120
	}

	cfg := &Config{
		HTTPPort:        port,
		JWTSecret:       jwtSecret,
		DatabaseURL:     dbURL,
		TokenExpiration: time.Hour * time.Duration(tokenExpHours),
		RAGServiceURL:   ragURL,
		GoogleAPIKey:    googleAPIKey,
		RAGTimeout:      time.Second * time.Duration(ragTimeoutSecs),
	}

	log.Printf("Loaded config: Port=%s, DB_URL=***, TokenExp=%s, RAGServiceURL=%s, RAGTimeout=%s",
		cfg.HTTPPort, cfg.TokenExpiration, cfg.RAGServiceURL, cfg.RAGTimeout)

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	log.Printf("Env variable %s not set, using default: %s", key, fallback)
	return fallback
}
