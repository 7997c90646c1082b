package routes

import (
	"net/http"

	"github.com/Guram12/starmap/internal/api/handlers"
	"github.com/Guram12/starmap/internal/api/middleware"
	"github.com/Guram12/starmap/internal/domain/entities"
	"github.com/Guram12/starmap/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	geolocationHandler   *handlers.GeolocationHandler
	photoHandler         *handlers.PhotoHandler
	sessionHandler       *handlers.SessionHandler
	searchHistoryHandler *handlers.SearchHistoryHandler
	sseHandler           *handlers.SSEHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. photoHandler, searchHistoryHandler and
// cacheMiddleware may be nil.
func NewRouter(
	geolocationHandler *handlers.GeolocationHandler,
	photoHandler *handlers.PhotoHandler,
	sessionHandler *handlers.SessionHandler,
	searchHistoryHandler *handlers.SearchHistoryHandler,
	sseHandler *handlers.SSEHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                  http.NewServeMux(),
		geolocationHandler:   geolocationHandler,
		photoHandler:         photoHandler,
		sessionHandler:       sessionHandler,
		searchHistoryHandler: searchHistoryHandler,
		sseHandler:           sseHandler,
		cacheMiddleware:      cacheMiddleware,
		allowedOrigins:       allowedOrigins,
		metrics:              metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Geolocation endpoints
	var geocode http.Handler = http.HandlerFunc(r.geolocationHandler.Geocode)
	if r.cacheMiddleware != nil {
		geocode = r.cacheMiddleware.Middleware(geocode)
	}
	r.mux.Handle("GET /api/geocode", geocode)
	if r.photoHandler != nil {
		r.mux.HandleFunc("GET "+entities.PlacePhotoPath, r.photoHandler.Get)
	}

	// Search session endpoints
	r.mux.HandleFunc("POST /api/sessions/{id}/search", r.sessionHandler.Search)
	r.mux.HandleFunc("POST /api/sessions/{id}/select", r.sessionHandler.Select)
	r.mux.HandleFunc("GET /api/sessions/{id}/map", r.sessionHandler.GetMap)
	r.mux.HandleFunc("GET /api/sessions/{id}/last-search", r.sessionHandler.GetLastSearch)
	r.mux.HandleFunc("POST /api/sessions/{id}/restore", r.sessionHandler.Restore)
	r.mux.HandleFunc("POST /api/sessions/{id}/history/{historyId}/load", r.sessionHandler.LoadHistory)
	r.mux.HandleFunc("DELETE /api/sessions/{id}", r.sessionHandler.End)
	r.mux.HandleFunc("GET /api/sessions/{id}/stream", r.sseHandler.StreamMap)

	// Search history endpoints
	if r.searchHistoryHandler != nil {
		r.mux.HandleFunc("GET /api/search-history", r.searchHistoryHandler.List)
		r.mux.HandleFunc("GET /api/search-history/{historyId}", r.searchHistoryHandler.Get)
		r.mux.HandleFunc("DELETE /api/search-history", r.searchHistoryHandler.Clear)
	}

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS must be outermost so every response gets CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.Compression(handler)
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
