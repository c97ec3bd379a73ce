package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BenMacKenzie/db-mlops/internal/abstractions"
	"github.com/BenMacKenzie/db-mlops/internal/config"
	"github.com/BenMacKenzie/db-mlops/internal/constants"
	"github.com/BenMacKenzie/db-mlops/internal/handlers"
	"github.com/BenMacKenzie/db-mlops/internal/http_wrappers"
	"github.com/BenMacKenzie/db-mlops/internal/messages"
	"github.com/BenMacKenzie/db-mlops/internal/training"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RequestTimeout bounds the work done on behalf of one API request, including the
// workspace calls it makes.
const RequestTimeout = 90 * time.Second

type Server struct {
	httpServer    *http.Server
	port          int
	logger        *slog.Logger
	serviceConfig *config.Config
	storage       abstractions.Storage
	validate      *validator.Validate
	training      *training.Service
}

// NewServer creates a new HTTP server instance with the provided logger and configuration.
// The server uses standard library net/http.ServeMux for routing without a web framework.
//
// The server implements the routing pattern where:
//   - Every route builds an ExecutionContext before calling its handler
//   - Handlers receive the ExecutionContext and the request and response wrappers
//   - Routes manually switch on HTTP method
//
// All routes are wrapped with Prometheus metrics middleware for request duration and
// status code tracking, and with OpenTelemetry tracing.
//
// Returns:
//   - *Server: A configured server instance
//   - error: An error if a required dependency is nil
func NewServer(logger *slog.Logger,
	serviceConfig *config.Config,
	storage abstractions.Storage,
	validate *validator.Validate,
	trainingService *training.Service) (*Server, error) {

	if logger == nil {
		return nil, fmt.Errorf("logger is required for the server")
	}
	if (serviceConfig == nil) || (serviceConfig.Service == nil) {
		return nil, fmt.Errorf("service config is required for the server")
	}
	if storage == nil {
		return nil, fmt.Errorf("storage is required for the server")
	}
	if validate == nil {
		return nil, fmt.Errorf("validator is required for the server")
	}
	if trainingService == nil {
		return nil, fmt.Errorf("training service is required for the server")
	}

	return &Server{
		port:          serviceConfig.Service.Port,
		logger:        logger,
		serviceConfig: serviceConfig,
		storage:       storage,
		validate:      validate,
		training:      trainingService,
	}, nil
}

func (s *Server) GetPort() int {
	return s.port
}

// loggerWithRequest enhances a logger with request-specific fields for distributed
// tracing and structured logging. This function is called when creating an ExecutionContext
// to automatically enrich all log entries for a given HTTP request with consistent metadata.
//
// The enhanced logger includes the following fields (when available):
//   - request_id: Extracted from X-Global-Transaction-Id header, or auto-generated UUID if missing
//   - method: HTTP method (GET, POST, etc.)
//   - uri: Request path (from URL.Path or RequestURI)
//   - user_agent: Client user agent from User-Agent header
//   - remote_addr: Client IP address
//   - remote_user: Authenticated user from URL user info or Remote-User header
//   - referer: HTTP referer header
func (s *Server) loggerWithRequest(r *http.Request) (string, *slog.Logger) {
	requestID := r.Header.Get(constants.HeaderTransactionID)
	if requestID == "" {
		requestID = uuid.New().String() // generate a UUID if not present
	}

	enhancedLogger := s.logger.With(constants.LOG_REQUEST_ID, requestID)

	if r.Method != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_METHOD, r.Method)
	}

	uri := ""
	if r.URL != nil {
		uri = r.URL.Path
	}
	if uri == "" {
		uri = r.RequestURI
	}
	if uri != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_URI, uri)
	}

	if userAgent := r.Header.Get("User-Agent"); userAgent != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_USER_AGENT, userAgent)
	}

	if r.RemoteAddr != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_REMOTE_ADR, r.RemoteAddr)
	}

	// Extract remote_user from URL user info or header
	remoteUser := ""
	if r.URL != nil && r.URL.User != nil {
		remoteUser = r.URL.User.Username()
	}
	if remoteUser == "" {
		remoteUser = r.Header.Get("Remote-User")
	}
	if remoteUser != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_USER, remoteUser)
	}

	if referer := r.Header.Get("Referer"); referer != "" {
		enhancedLogger = enhancedLogger.With(constants.LOG_REFERER, referer)
	}

	return requestID, enhancedLogger
}

func (s *Server) setupRoutes() (http.Handler, error) {
	router := http.NewServeMux()
	h := handlers.New(s.storage, s.validate, s.training, s.serviceConfig)

	// Health endpoint
	router.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := http_wrappers.NewRespWrapper(w, ctx)
		req := http_wrappers.NewRequestWrapper(r)
		switch req.Method() {
		case http.MethodGet:
			h.HandleHealth(ctx, req, resp)
		default:
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
		}
	})

	// Project endpoints
	router.HandleFunc("/api/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := http_wrappers.NewRespWrapper(w, ctx)
		req := http_wrappers.NewRequestWrapper(r)
		switch req.Method() {
		case http.MethodGet:
			h.HandleListProjects(ctx, req, resp)
		case http.MethodPost:
			h.HandleCreateProject(ctx, req, resp)
		default:
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
		}
	})

	router.HandleFunc(fmt.Sprintf("/api/v1/projects/{%s}", constants.PATH_PARAMETER_PROJECT_ID), func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := http_wrappers.NewRespWrapper(w, ctx)
		req := http_wrappers.NewRequestWrapper(r)
		switch req.Method() {
		case http.MethodGet:
			h.HandleGetProject(ctx, req, resp)
		case http.MethodPut:
			h.HandleUpdateProject(ctx, req, resp)
		case http.MethodPatch:
			h.HandlePatchProject(ctx, req, resp)
		case http.MethodDelete:
			h.HandleDeleteProject(ctx, req, resp)
		default:
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
		}
	})

	router.HandleFunc(fmt.Sprintf("/api/v1/projects/{%s}/train", constants.PATH_PARAMETER_PROJECT_ID), func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := http_wrappers.NewRespWrapper(w, ctx)
		req := http_wrappers.NewRequestWrapper(r)
		switch req.Method() {
		case http.MethodPost:
			h.HandleTrainProject(ctx, req, resp)
		default:
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
		}
	})

	router.HandleFunc(fmt.Sprintf("/api/v1/projects/{%s}/experiment", constants.PATH_PARAMETER_PROJECT_ID), func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := http_wrappers.NewRespWrapper(w, ctx)
		req := http_wrappers.NewRequestWrapper(r)
		switch req.Method() {
		case http.MethodGet:
			h.HandleGetExperiment(ctx, req, resp)
		default:
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
		}
	})

	// Stand-alone jobs
	router.HandleFunc("/api/v1/jobs", func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := http_wrappers.NewRespWrapper(w, ctx)
		req := http_wrappers.NewRequestWrapper(r)
		switch req.Method() {
		case http.MethodPost:
			h.HandleCreateJob(ctx, req, resp)
		default:
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
		}
	})

	// API documentation
	router.HandleFunc("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := http_wrappers.NewRespWrapper(w, ctx)
		req := http_wrappers.NewRequestWrapper(r)
		switch req.Method() {
		case http.MethodGet:
			h.HandleOpenAPI(ctx, req, resp)
		default:
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
		}
	})

	router.HandleFunc("/docs", func(w http.ResponseWriter, r *http.Request) {
		ctx := s.newExecutionContext(r)
		resp := http_wrappers.NewRespWrapper(w, ctx)
		req := http_wrappers.NewRequestWrapper(r)
		switch req.Method() {
		case http.MethodGet:
			h.HandleDocs(ctx, req, resp)
		default:
			resp.ErrorWithMessageCode(ctx.RequestID, messages.MethodNotAllowed, "Method", req.Method(), "Api", req.URI())
		}
	})

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Enable CORS in local mode only (for development/testing)
	handler := http.Handler(router)
	if s.serviceConfig.Service.LocalMode {
		handler = corsHandler(handler, s.serviceConfig.Service)
	}

	handler = Middleware(handler)

	// tracing is outermost so the metrics middleware runs inside the server span
	handler = otelhttp.NewHandler(handler, "mlops-dashboard")

	return handler, nil
}

func corsHandler(next http.Handler, conf *config.ServiceConfig) http.Handler {
	origins := conf.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{constants.HeaderTransactionID},
	}).Handler(next)
}

// SetupRoutes exposes the route setup for testing
func (s *Server) SetupRoutes() (http.Handler, error) {
	return s.setupRoutes()
}

func (s *Server) Start() error {
	handler, err := s.setupRoutes()
	if err != nil {
		return err
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	if s.serviceConfig.Service.ReadyFile != "" {
		s.logger.Info("Writing the server ready message", "file", s.serviceConfig.Service.ReadyFile)
		if err := SetReady(s.serviceConfig, s.logger); err != nil {
			return err
		}
	}

	s.logger.Info("Server starting", "port", s.port)
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server. It is safe to call before Start.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	s.logger.Info("Shutting down server gracefully...")
	return s.httpServer.Shutdown(ctx)
}

// IsServerClosed reports whether err is the error returned by Start after Shutdown.
func IsServerClosed(err error) bool {
	return errors.Is(err, http.ErrServerClosed)
}
