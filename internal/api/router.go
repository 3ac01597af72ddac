package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"admin-console-backend/internal/config"
	"admin-console-backend/internal/handlers"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler      *handlers.AuthHandler
	IngestionHandler *handlers.IngestionHandler
	AssistantHandler *handlers.AssistantHandler
	Config           *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	// No global timeout: the chat endpoint holds an open SSE stream for as
	// long as the upstream keeps producing. Timeouts are applied per-group
	// below.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/signup", deps.AuthHandler.HandleSignup)
		r.Post("/login", deps.AuthHandler.HandleLogin)
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1/assistant", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		// Upload and job inspection are admin-only.
		r.Group(func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Use(middleware.Timeout(60 * time.Second))
			r.Post("/upload", deps.IngestionHandler.HandleUpload)
			r.Get("/jobs", deps.IngestionHandler.HandleListJobs)
			r.Get("/jobs/{jobID}", deps.IngestionHandler.HandleGetJob)
		})

		r.Route("/conversations", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(30 * time.Second))
				r.Post("/", deps.AssistantHandler.HandleCreateConversation)
				r.Get("/", deps.AssistantHandler.HandleListConversations)
				r.Patch("/{conversationID}", deps.AssistantHandler.HandleRenameConversation)
				r.Delete("/{conversationID}", deps.AssistantHandler.HandleDeleteConversation)
				r.Get("/{conversationID}/messages", deps.AssistantHandler.HandleListMessages)
			})

			// SSE stream; deliberately no request timeout.
			r.Post("/{conversationID}/chat", deps.AssistantHandler.HandleChat)
		})
	})

	return r
}
