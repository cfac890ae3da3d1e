package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/custodia-labs/convorag/internal/logger"
)

// Version is the MCP server version.
const Version = "0.2.0"

const shutdownTimeout = 5 * time.Second

// Server exposes conversation retrieval to MCP clients.
type Server struct {
	ports  *Ports
	server *mcp.Server
	log    *zap.Logger

	// tools and resources list what was registered, in order.
	tools     []string
	resources []string
}

// NewServer creates a new MCP server with the given ports.
// Tools and resources backed by optional ports are only registered when
// those ports are set.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{
		ports:  ports,
		server: mcp.NewServer(&mcp.Implementation{Name: "convorag", Version: Version}, nil),
		log:    logger.Named("mcp"),
	}
	s.registerTools()
	s.registerResources()

	s.log.Debug("server ready",
		zap.String("version", Version),
		zap.Strings("tools", s.tools),
		zap.Strings("resources", s.resources))
	return s, nil
}

// Tools returns the names of the registered tools.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Resources returns the URIs and URI templates of the registered resources.
func (s *Server) Resources() []string {
	return append([]string(nil), s.resources...)
}

// Run serves MCP over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("serving over stdio")
	err := s.server.Run(ctx, &mcp.StdioTransport{})
	if err != nil && ctx.Err() == nil {
		s.log.Error("stdio session ended", zap.Error(err))
	}
	return err
}

// RunHTTP serves MCP over streamable HTTP on addr until ctx is cancelled.
// A port that cannot be bound is reported before anything is served.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.serveHTTP(ctx, ln)
}

func (s *Server) serveHTTP(ctx context.Context, ln net.Listener) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn("http shutdown", zap.Error(err))
		}
	}()

	s.log.Info("serving over http", zap.String("addr", ln.Addr().String()))
	err := httpServer.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		<-stopped
		return nil
	}
	return err
}
