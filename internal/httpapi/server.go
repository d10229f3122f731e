// Package httpapi serves the canvas service over HTTP and websockets.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rcliao/canvas-graph/internal/auth"
	"github.com/rcliao/canvas-graph/internal/canvas"
	"github.com/rcliao/canvas-graph/internal/metrics"
)

// Config wires the HTTP server.
type Config struct {
	Service *canvas.Service
	Hub     *canvas.Hub
	// Tokens validates bearer tokens. When nil the caller is taken from the
	// X-User-ID header, which is only meant for local development.
	Tokens            *auth.TokenValidator
	Metrics           *metrics.Collector
	Logger            *zap.Logger
	CORSOrigins       []string
	MovementListLimit int
}

// Server holds the HTTP handlers.
type Server struct {
	svc           *canvas.Service
	hub           *canvas.Hub
	tokens        *auth.TokenValidator
	metrics       *metrics.Collector
	logger        *zap.Logger
	validate      *validator.Validate
	upgrader      websocket.Upgrader
	corsOrigins   []string
	movementLimit int
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s := &Server{
		svc:           cfg.Service,
		hub:           cfg.Hub,
		tokens:        cfg.Tokens,
		metrics:       cfg.Metrics,
		logger:        logger,
		validate:      newValidator(),
		corsOrigins:   origins,
		movementLimit: cfg.MovementListLimit,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(s.logger))
	if s.metrics != nil {
		r.Use(requestMetrics(s.metrics))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "X-User-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Post("/workspaces", s.createWorkspace)
		r.Route("/workspaces/{id}", func(r chi.Router) {
			r.Post("/members", s.addMember)
			r.Post("/channels", s.createChannel)
			r.Get("/search", s.search)
			r.Get("/stats", s.stats)
		})

		r.Route("/channels/{id}", func(r chi.Router) {
			r.Get("/frames", s.listFrames)
			r.Post("/frames", s.createFrame)
			r.Get("/content", s.listContent)
			r.Post("/content", s.createContent)
			r.Post("/import", s.importFrame)
		})

		r.Route("/frames/{id}", func(r chi.Router) {
			r.Get("/", s.getFrame)
			r.Patch("/", s.updateFrame)
			r.Delete("/", s.deleteFrame)
			r.Get("/export", s.exportFrame)

			r.Get("/placements", s.listPlacements)
			r.Post("/placements", s.addToFrame)
			r.Delete("/placements", s.removePlacements)

			r.Get("/movements", s.listMovements)
			r.Post("/movements", s.flushMovements)

			r.Get("/edges", s.listEdges)
			r.Patch("/edges", s.reconcileEdges)
			r.Delete("/edges/{edgeID}", s.deleteEdge)
			r.Post("/connect", s.connect)

			r.Get("/events", s.frameEvents)
		})

		r.Route("/content/{id}", func(r chi.Router) {
			r.Get("/", s.getContent)
			r.Patch("/", s.updateContent)
			r.Delete("/", s.deleteContent)
			r.Get("/context", s.gatherContext)
			r.Post("/threads", s.connectThreads)
			r.Delete("/threads/{otherID}", s.disconnectThreads)
		})

		r.Get("/metadata", s.getMetadata)
		r.Put("/metadata", s.putMetadata)
	})

	return r
}
