// Package app wires the listen-party coordinator to its HTTP request layer
// and WebSocket push gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/soundleaf/soundleaf/internal/platform/timeouts"
	catalogdomain "github.com/soundleaf/soundleaf/internal/services/catalog/domain"
	catalogsqlite "github.com/soundleaf/soundleaf/internal/services/catalog/storage/sqlite"
	"github.com/soundleaf/soundleaf/internal/services/party/storage/memory"
)

// Config holds party server configuration.
type Config struct {
	HTTPAddr          string
	CatalogDBPath     string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server runs the party service HTTP transport.
type Server struct {
	httpAddr        string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	catalogStore    *catalogsqlite.Store
}

// NewServer builds the party service: catalog store, coordinator, gateway,
// and routes. The access token verifier is loaded from the environment.
func NewServer(config Config) (*Server, error) {
	httpAddr := strings.TrimSpace(config.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	if strings.TrimSpace(config.CatalogDBPath) == "" {
		return nil, errors.New("catalog db path is required")
	}
	if config.ReadHeaderTimeout <= 0 {
		config.ReadHeaderTimeout = timeouts.ReadHeader
	}
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = timeouts.Shutdown
	}

	tokenConfig, err := LoadAccessTokenConfigFromEnv(nil)
	if err != nil {
		return nil, fmt.Errorf("load access token config: %w", err)
	}
	authorizer, err := NewTokenAuthorizer(tokenConfig)
	if err != nil {
		return nil, fmt.Errorf("init token authorizer: %w", err)
	}

	catalogStore, err := catalogsqlite.Open(config.CatalogDBPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	gateway := NewGateway()
	coordinator := NewCoordinator(memory.NewStore(), gateway)
	gateway.SetDisconnectHandler(func(userID string) {
		coordinator.HandleUserDisconnected(context.Background(), userID)
	})

	httpServer := &http.Server{
		Addr: httpAddr,
		Handler: newHandler(handlers{
			coordinator: coordinator,
			resolver:    catalogdomain.NewResolver(catalogStore),
			authorizer:  authorizer,
			gateway:     gateway,
		}),
		ReadHeaderTimeout: config.ReadHeaderTimeout,
	}

	return &Server{
		httpAddr:        httpAddr,
		shutdownTimeout: config.ShutdownTimeout,
		httpServer:      httpServer,
		catalogStore:    catalogStore,
	}, nil
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	if err := s.catalogStore.Close(); err != nil {
		log.Printf("close catalog store failed err=%v", err)
	}
}

// ListenAndServe serves HTTP until the context is canceled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("party server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	log.Printf("party server listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Run builds the party server and serves until the context is canceled.
func Run(ctx context.Context, config Config) error {
	server, err := NewServer(config)
	if err != nil {
		return fmt.Errorf("init party server: %w", err)
	}
	defer server.Close()

	if err := server.ListenAndServe(ctx); err != nil {
		return fmt.Errorf("serve party: %w", err)
	}
	return nil
}
