package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ontani-server/internal/domain"
	"github.com/ontani-server/internal/metrics"
	"github.com/ontani-server/internal/middleware"
)

// Version is reported by the health endpoint.
const Version = "1.0.0"

// Predictor answers prediction requests.
type Predictor interface {
	PredictRaw(ctx context.Context, raw json.RawMessage) ([]domain.Prediction, error)
}

// Catalog serves reference data.
type Catalog interface {
	ListSymptoms(ctx context.Context) ([]domain.Symptom, error)
	ListDiagnoses(ctx context.Context) ([]domain.Diagnosis, error)
	ListClinics(ctx context.Context) ([]domain.Clinic, error)
	DiagnosisDetail(ctx context.Context, id int64) (*domain.DiagnosisDetail, error)
	ClinicDetail(ctx context.Context, id int64) (*domain.ClinicDetail, error)
	Ping(ctx context.Context) error
}

// Pinger is an optional dependency reported by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies are the services the HTTP layer delegates to. Cache may be nil.
type Dependencies struct {
	Predictor Predictor
	Catalog   Catalog
	Cache     Pinger
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	logger        *logrus.Logger
	router        *gin.Engine
	server        *http.Server
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) *Server {
	cfg := configManager.GetConfig()

	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CORS(cfg.CORS))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		logger:        logger,
		router:        router,
	}

	server.setupRoutes(cfg)

	return server
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.logger.Info("Shutting down HTTP server")
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes. The catalog and prediction routes
// are served both under /api and the versioned /api/v1 prefix.
func (s *Server) setupRoutes(cfg *domain.Config) {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// one limiter shared by both prefixes
	timeout := middleware.RequestTimeout(cfg.Server.RequestTimeout)
	limit := middleware.RateLimit(cfg.RateLimit)

	for _, prefix := range []string{"/api", "/api/v1"} {
		g := s.router.Group(prefix, timeout, limit)
		{
			g.POST("/tahmin", s.handlePredict)
			g.GET("/belirtiler", s.handleListSymptoms)
			g.GET("/hastaliklar", s.handleListDiagnoses)
			g.GET("/hastaliklar/:id", s.handleGetDiagnosis)
			g.GET("/poliklinikler", s.handleListClinics)
			g.GET("/poliklinikler/:id", s.handleGetClinic)
		}
	}
}
