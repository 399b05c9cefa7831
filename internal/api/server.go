package api

import (
	"context"
	"net/http"
	"time"

	"example.com/grocery/services/delivery/config"
	"example.com/grocery/services/delivery/internal/api/handlers"
	"example.com/grocery/services/delivery/internal/api/middleware"
	"example.com/grocery/services/delivery/internal/metrics"
	"example.com/grocery/services/delivery/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Services bundles the service layer the HTTP surface exposes.
type Services struct {
	Delivery *services.DeliveryService
	Order    *services.OrderService
	Catalog  *services.CatalogService
	Driver   *services.DriverService
	User     *services.UserService
}

// Server represents the HTTP server
type Server struct {
	config     config.Config
	router     *gin.Engine
	httpServer *http.Server
	services   Services
	metrics    *metrics.Metrics
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, svcs Services, m *metrics.Metrics) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := &Server{
		config:   cfg,
		services: svcs,
		metrics:  m,
	}
	server.router = server.setupRouter()
	server.httpServer = &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      server.router,
		ReadTimeout:  cfg.ServerTimeout,
		WriteTimeout: cfg.ServerTimeout,
	}
	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger())

	handlers.NewMetricsHandler(s.metrics).RegisterRoutes(router)

	v1 := router.Group("/api/v1")
	handlers.NewOrderHandler(s.services.Order).RegisterRoutes(v1)
	handlers.NewDeliveryHandler(s.services.Delivery).RegisterRoutes(v1)
	handlers.NewDriverHandler(s.services.Driver).RegisterRoutes(v1)
	handlers.NewCatalogHandler(s.services.Catalog).RegisterRoutes(v1)
	handlers.NewUserHandler(s.services.User).RegisterRoutes(v1)

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

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
