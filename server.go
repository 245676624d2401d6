package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/username/aptledger/backend/src/config"
	"github.com/username/aptledger/backend/src/handlers"
	"github.com/username/aptledger/backend/src/logger"
	"golang.org/x/time/rate"
)

func newLimiter(cfg *config.AppConfig) *rate.Limiter {
	if cfg.RateLimitRPS <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
}

func rateLimitMiddleware(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				logger.FromContext(r.Context()).Warn("Rate limit exceeded", "path", r.URL.Path)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func enableCORS(origins []string) func(http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowedOrigins[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowedOrigins[origin] || allowedOrigins["*"]) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, X-Requested-With")
				w.Header().Set("Access-Control-Expose-Headers", handlers.RequestIDHeader)
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func newRouter(cfg *config.AppConfig, recordHandler *handlers.RecordHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(handlers.RequestLoggerMiddleware)
	r.Use(enableCORS(cfg.AllowedOrigins))
	r.Use(rateLimitMiddleware(newLimiter(cfg)))

	r.Get("/load", recordHandler.HandleLoad)
	r.Post("/save", recordHandler.HandleSave)
	r.Post("/delete", recordHandler.HandleDelete)
	r.Post("/reset", recordHandler.HandleReset)

	// Everything else is the dashboard's static assets.
	r.NotFound(handlers.NewStaticHandler(cfg.StaticDir).ServeHTTP)

	return r
}
