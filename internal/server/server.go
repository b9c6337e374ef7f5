package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"vgsales-dashboard/internal/charts"
	"vgsales-dashboard/internal/handlers"
	"vgsales-dashboard/internal/middleware"
	"vgsales-dashboard/internal/observability"
	"vgsales-dashboard/internal/services"
)

// Options wires the server's collaborators. Metrics may be nil, in which
// case /metrics is not mounted and requests are not counted.
type Options struct {
	Analytics *services.Analytics
	Renderer  *charts.Renderer
	OutputDir string
	Metrics   *observability.Metrics
	Logger    *slog.Logger
}

type Server struct {
	router       chi.Router
	logger       *slog.Logger
	apiHandlers  *handlers.APIHandlers
	sseHandlers  *handlers.SSEHandlers
	pageHandlers *handlers.PageHandlers
}

func NewServer(opts Options) *Server {
	if opts.Renderer == nil {
		opts.Renderer = charts.NewRenderer(opts.Logger)
	}
	s := &Server{
		router:       chi.NewRouter(),
		logger:       opts.Logger,
		apiHandlers:  handlers.NewAPIHandlers(opts.Analytics, opts.Renderer, opts.OutputDir, opts.Logger),
		sseHandlers:  handlers.NewSSEHandlers(opts.Analytics, opts.Logger),
		pageHandlers: handlers.NewPageHandlers(opts.Analytics, opts.Logger),
	}
	s.setupRoutes(opts.Metrics)
	return s
}

func (s *Server) setupRoutes(metrics *observability.Metrics) {
	r := s.router

	// Route-aware middleware has to run inside the router to see patterns.
	if metrics != nil {
		r.Use(middleware.Metrics(metrics))
	}
	r.Use(middleware.Tracing())

	if metrics != nil {
		r.Handle("/metrics", metrics.Handler())
	}

	// Dashboard routes
	r.Get("/", s.pageHandlers.HandleDashboard)
	r.Get("/health", s.apiHandlers.HandleHealth)
	r.Get("/admin/stats", s.apiHandlers.HandleStats)

	// REST API endpoints
	r.Route("/api", func(r chi.Router) {
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/options", s.apiHandlers.HandleOptions)
		r.Get("/summary", s.apiHandlers.HandleSummary)
		r.Get("/genre-sales", s.apiHandlers.HandleGenreSales)
		r.Get("/annual-sales", s.apiHandlers.HandleAnnualSales)
		r.Get("/top-games", s.apiHandlers.HandleTopGames)
		r.Get("/platform-sales", s.apiHandlers.HandlePlatformSales)
		r.Get("/platform-decade", s.apiHandlers.HandlePlatformDecade)
		r.Get("/precomputed/{table}", s.apiHandlers.HandlePrecomputed)

		// Downloads set their own content types.
		r.Get("/export.csv", s.apiHandlers.HandleExportCSV)
		r.Get("/export.xlsx", s.apiHandlers.HandleExportXLSX)
	})

	// Chart images
	r.Get("/charts/{chart}", s.apiHandlers.HandleChart)
	r.Get("/static-charts/{file}", s.apiHandlers.HandleStaticChart)

	// Datastar SSE endpoints
	r.Get("/sse/refresh", s.sseHandlers.HandleRefresh)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
