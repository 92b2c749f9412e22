package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	mw "github.com/kiranshivaraju/explainer/internal/api/middleware"
	"github.com/kiranshivaraju/explainer/internal/api/response"
)

// Dependencies holds all handler and middleware dependencies for the router.
type Dependencies struct {
	RateLimit      *mw.RateLimit
	AllowedOrigins []string

	HealthHandler       http.HandlerFunc
	AnalyzeHandler      http.HandlerFunc
	SubmitVideo         http.HandlerFunc
	ListVideos          http.HandlerFunc
	GetVideo            http.HandlerFunc
	DeleteVideo         http.HandlerFunc
	DownloadVideo       http.HandlerFunc
	VideoEvents         http.HandlerFunc
	ExtractRepositories http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Global middleware
	r.Use(mw.RequestID)
	r.Use(mw.Logger)
	r.Use(mw.Recovery)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", mw.RequestIDHeader},
		ExposedHeaders: []string{mw.RequestIDHeader, "Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	r.Group(func(r chi.Router) {
		if deps.RateLimit != nil {
			r.Use(deps.RateLimit.Limit)
		}

		r.Post("/api/v1/analyze", orNotImplemented(deps.AnalyzeHandler))
		r.Post("/api/v1/repositories", orNotImplemented(deps.ExtractRepositories))

		r.Route("/api/v1/videos", func(r chi.Router) {
			r.Post("/", orNotImplemented(deps.SubmitVideo))
			r.Get("/", orNotImplemented(deps.ListVideos))
			r.Get("/{jobID}", orNotImplemented(deps.GetVideo))
			r.Delete("/{jobID}", orNotImplemented(deps.DeleteVideo))
			r.Get("/{jobID}/download", orNotImplemented(deps.DownloadVideo))
			r.Get("/{jobID}/events", orNotImplemented(deps.VideoEvents))
		})
	})

	return r
}

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
