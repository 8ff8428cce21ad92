package server

import (
	"fmt"
	"net/http"
	"time"

	"pos-terminal/internal/apiclient"
	"pos-terminal/internal/config"
	custommiddleware "pos-terminal/internal/middleware"
	"pos-terminal/internal/terminal"
	"pos-terminal/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Server struct {
	*http.Server
	config  *config.Config
	logger  *zap.Logger
	manager *terminal.Manager
}

func NewServer(cfg *config.Config, logger *zap.Logger) *Server {
	// Create router
	router := chi.NewRouter()

	// Add basic middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.LoggingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.IsDevelopment()))

	// Health check endpoint
	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Remote POS API
	client := apiclient.New(cfg.API, cfg.Breaker, logger)

	// One terminal per logged in operator
	manager := terminal.NewManager(client, terminal.Deps{
		API:               client,
		Logger:            logger,
		RefreshInterval:   cfg.Catalog.RefreshInterval,
		LowStockThreshold: cfg.Catalog.LowStockThreshold,
	})

	// Register routes
	transport.NewPOSHandler(manager, logger).RegisterRoutes(router)

	server := &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: cfg.API.Timeout + 20*time.Second,
		},
		config:  cfg,
		logger:  logger,
		manager: manager,
	}

	return server
}

func (s *Server) Close() error {
	s.logger.Info("Closing server resources")

	// Stop the catalog refresher and drop the open cart
	s.manager.Logout()

	s.logger.Sync()
	return nil
}
