// Package router provides HTTP routing configuration for the event API.
// It sets up routes and applies middleware like CORS.
package router

import (
	"net/http"
	"time"

	"github.com/TOMToolkit/tom-nonlocalizedevents/internal/handlers"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux      *http.ServeMux
	handlers *handlers.Handlers
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *handlers.Handlers) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: h,
	}
	r.setupRoutes()
	return r
}

// setupRoutes configures all HTTP routes for the API.
func (r *Router) setupRoutes() {
	// Event endpoints
	r.mux.HandleFunc("/api/v1/events", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodGet:
			if req.URL.Query().Get("event_id") != "" {
				r.handlers.GetEventDetail(w, req)
			} else {
				r.handlers.ListEvents(w, req)
			}
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Candidate endpoints
	r.mux.HandleFunc("/api/v1/candidates", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			r.handlers.BulkUpsertCandidates(w, req)
		case http.MethodGet:
			r.handlers.GetCandidate(w, req)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	r.mux.HandleFunc("/api/v1/candidates/update", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodPatch {
			r.handlers.UpdateCandidate(w, req)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Localization endpoints
	r.mux.HandleFunc("/api/v1/localizations", func(w http.ResponseWriter, req *http.Request) {
		if req.Method == http.MethodGet {
			r.handlers.ListLocalizations(w, req)
		} else {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})

	// Health check endpoint
	r.mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// Handler returns the HTTP handler with CORS middleware applied.
func (r *Router) Handler() http.Handler {
	return corsMiddleware(r.mux)
}

// corsMiddleware applies CORS headers to all requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// NewServer creates a new HTTP server with the router configured.
func NewServer(port string, h *handlers.Handlers) *http.Server {
	router := NewRouter(h)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
