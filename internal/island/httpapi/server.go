// Package httpapi serves the island's JSON API.
package httpapi

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/island-mesh/island/internal/auth"
	"github.com/island-mesh/island/internal/config"
	"github.com/island-mesh/island/internal/constants"
	"github.com/island-mesh/island/internal/island/eventqueue"
)

// Config contains dependencies for creating the API server.
type Config struct {
	Host              string
	Port              int
	ReadHeaderTimeout time.Duration
	TLS               config.TLSConfig

	// RequireAuth turns on bearer access token checks for protected routes.
	RequireAuth bool

	Reports ReportService
	Mode    ModeService
	Signals AgentSignals
	PBA     PBAFiles
	Plugins PluginIndex
	Events  eventqueue.Publisher

	AgentPlugins AgentPlugins
	AgentConfig  AgentConfig

	// Tokens and Issuer back POST /api/auth. Verifier checks access tokens.
	Tokens   TokenValidator
	Issuer   TokenIssuer
	Verifier TokenVerifier

	Logger zerolog.Logger
}

// Server is the island HTTP API server.
type Server struct {
	httpServer *http.Server
	listener   net.Listener

	reports ReportService
	mode    ModeService
	signals AgentSignals
	pba     PBAFiles
	plugins PluginIndex
	events  eventqueue.Publisher
	tokens  TokenValidator
	issuer  TokenIssuer

	agentPlugins AgentPlugins
	agentCfg     AgentConfig

	logger zerolog.Logger
}

// New creates the API server and registers its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Reports == nil || cfg.Mode == nil || cfg.Signals == nil || cfg.PBA == nil || cfg.Plugins == nil || cfg.Events == nil ||
		cfg.AgentPlugins == nil || cfg.AgentConfig == nil {
		return nil, fmt.Errorf("httpapi: every service must be provided")
	}
	if cfg.RequireAuth && cfg.Verifier == nil {
		return nil, fmt.Errorf("httpapi: auth required but no token verifier configured")
	}

	logger := cfg.Logger.With().Str("component", "httpapi").Logger()

	host := cfg.Host
	if host == "" {
		host = constants.DefaultServerHost
	}
	readHeaderTimeout := cfg.ReadHeaderTimeout
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = constants.DefaultReadHeaderTimeout
	}

	s := &Server{
		reports: cfg.Reports,
		mode:    cfg.Mode,
		signals: cfg.Signals,
		pba:     cfg.PBA,
		plugins: cfg.Plugins,
		events:  cfg.Events,
		tokens:  cfg.Tokens,
		issuer:  cfg.Issuer,
		logger:  logger,

		agentPlugins: cfg.AgentPlugins,
		agentCfg:     cfg.AgentConfig,
	}

	var authMw *AuthMiddleware
	if cfg.RequireAuth {
		authMw = NewAuthMiddleware(cfg.Verifier, logger)
	}
	protect := func(perm auth.Permission, h http.HandlerFunc) http.Handler {
		if authMw == nil {
			return h
		}
		return authMw.Require(perm, h)
	}

	mux := http.NewServeMux()

	// Public routes.
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api", s.handleRoot)
	mux.HandleFunc("POST /api/auth", s.handleAuth)
	mux.HandleFunc("GET /api/agent-control/needs-to-stop/{agent_id}", s.handleNeedsToStop)

	mux.Handle("GET /api/island/mode", protect(auth.PermissionRead, s.handleGetMode))
	mux.Handle("PUT /api/island/mode", protect(auth.PermissionWrite, s.handlePutMode))

	mux.Handle("GET /api/report/scanned", protect(auth.PermissionRead, s.handleScanned))
	mux.Handle("GET /api/report/times", protect(auth.PermissionRead, s.handleTimes))
	mux.Handle("GET /api/report/summary", protect(auth.PermissionRead, s.handleSummary))

	mux.Handle("POST /api/agent-signals/terminate-all", protect(auth.PermissionWrite, s.handleTerminateAll))
	mux.Handle("POST /api/clear-simulation-data", protect(auth.PermissionWrite, s.publish(eventqueue.TopicClearSimulationData)))
	mux.Handle("POST /api/reset-agent-configuration", protect(auth.PermissionWrite, s.publish(eventqueue.TopicResetAgentConfiguration)))

	mux.Handle("GET /api/file-upload/{file_type}", protect(auth.PermissionRead, s.handleGetPBA))
	mux.Handle("POST /api/file-upload/{file_type}", protect(auth.PermissionWrite, s.handleUploadPBA))
	mux.Handle("DELETE /api/file-upload/{file_type}", protect(auth.PermissionWrite, s.handleDeletePBA))

	mux.Handle("GET /api/agent-plugins/available/index", protect(auth.PermissionRead, s.handlePluginIndex))
	mux.Handle("GET /api/agent-plugins/manifests", protect(auth.PermissionRead, s.handlePluginManifests))
	mux.Handle("GET /api/agent-plugins/config-schemas", protect(auth.PermissionRead, s.handlePluginSchemas))
	mux.Handle("GET /api/agent-plugins/{host_os}/{plugin_type}/{name}", protect(auth.PermissionRead, s.handleGetPlugin))
	mux.Handle("PUT /api/install-agent-plugin", protect(auth.PermissionWrite, s.handleInstallPlugin))
	mux.Handle("POST /api/uninstall-agent-plugin", protect(auth.PermissionWrite, s.handleUninstallPlugin))

	mux.Handle("GET /api/agent-configuration", protect(auth.PermissionRead, s.handleGetAgentConfig))
	mux.Handle("PUT /api/agent-configuration", protect(auth.PermissionWrite, s.handlePutAgentConfig))

	handler := NewAuditMiddleware(logger).Handler(mux)

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       120 * time.Second,
	}

	if cfg.TLS.Enabled() {
		cert, err := tls.LoadX509KeyPair(cfg.TLS.CertFile, cfg.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
		}
		s.httpServer.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start binds the listener and serves in a background goroutine.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	s.logger.Info().
		Str("addr", ln.Addr().String()).
		Bool("tls", s.httpServer.TLSConfig != nil).
		Msg("Starting island API server")

	go func() {
		var err error
		if s.httpServer.TLSConfig != nil {
			err = s.httpServer.ServeTLS(ln, "", "")
		} else {
			err = s.httpServer.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error().Err(err).Msg("Island API server error")
		}
	}()

	return nil
}

// Stop gracefully stops the server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping island API server")
	return s.httpServer.Shutdown(ctx)
}

// Addr returns the bound address once started, otherwise the configured one.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// URL returns the server URL.
func (s *Server) URL() string {
	scheme := "http"
	if s.httpServer.TLSConfig != nil {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, s.Addr())
}
