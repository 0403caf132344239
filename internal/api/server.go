package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"example.com/albaranes/config"
	"example.com/albaranes/internal/api/handlers"
	"example.com/albaranes/internal/metrics"
	"example.com/albaranes/internal/tracing"
)

// Services are the service layer entry points served over HTTP
type Services struct {
	Auth          Authenticator
	Users         handlers.UserService
	Clients       handlers.ClientService
	Projects      handlers.ProjectService
	DeliveryNotes handlers.DeliveryNoteService
}

// Options are the optional parts of the router
type Options struct {
	// UploadsDir is served under /uploads when artifacts are stored locally
	UploadsDir   string
	HealthChecks map[string]handlers.HealthCheck
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	services   Services
	metrics    *metrics.Metrics
	tracer     tracing.Tracer
	opts       Options
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, svcs Services, m *metrics.Metrics, tracer tracing.Tracer, opts Options) (*Server, error) {
	if err := RegisterValidators(); err != nil {
		return nil, err
	}

	server := &Server{
		config:   cfg,
		services: svcs,
		metrics:  m,
		tracer:   tracer,
		opts:     opts,
	}
	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           server.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.Timeout,
	}

	return server, nil
}

// Handler exposes the router
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	if s.config.Server.Mode != "" {
		gin.SetMode(s.config.Server.Mode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Logger(), BodyLimit(s.config.Server.MaxBodyBytes))

	if s.config.Server.CorsEnabled {
		router.Use(cors.New(s.corsConfig()))
	}
	if app := s.tracer.Application(); app != nil {
		router.Use(nrgin.Middleware(app))
	}
	if s.config.MetricsEnabled {
		router.Use(Metrics(s.metrics))
	}

	metricsHandler := handlers.NewMetricsHandler(s.metrics, s.tracer, s.opts.HealthChecks)
	metricsHandler.RegisterRoutes(router)

	if s.opts.UploadsDir != "" {
		router.Static("/uploads", s.opts.UploadsDir)
	}

	api := router.Group("/api")

	userHandler := handlers.NewUserHandler(s.services.Users)
	userHandler.RegisterPublicRoutes(api)

	authed := api.Group("", Auth(s.services.Auth))
	userHandler.RegisterRoutes(authed)
	handlers.NewClientHandler(s.services.Clients, s.services.Projects).RegisterRoutes(authed)
	handlers.NewDeliveryNoteHandler(s.services.DeliveryNotes, s.tracer).RegisterRoutes(authed)

	return router
}

func (s *Server) corsConfig() cors.Config {
	corsConfig := cors.DefaultConfig()
	origins := s.config.Server.CorsOrigins
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = origins
		corsConfig.AllowCredentials = true
	}
	corsConfig.AddAllowHeaders("Authorization", "X-Request-ID")
	corsConfig.AddExposeHeaders("Content-Disposition", "X-Request-ID")
	return corsConfig
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.Server.Address).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
