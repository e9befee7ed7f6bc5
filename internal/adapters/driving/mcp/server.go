package mcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/memex/internal/logger"
)

// shutdownGrace bounds how long RunHTTP waits for open sessions on exit.
const shutdownGrace = 5 * time.Second

// Server exposes the memex driving ports as MCP tools and resources.
type Server struct {
	ports   *Ports
	server  *mcp.Server
	version string
	now     func() time.Time
}

// Option customises a Server.
type Option func(*Server)

// WithVersion sets the version reported to clients during initialisation.
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// NewServer registers every tool and resource. Tools whose port is nil are
// still listed but answer that they are not available.
func NewServer(ports *Ports, opts ...Option) (*Server, error) {
	if ports == nil {
		return nil, ErrMissingRetrievalService
	}
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	s := &Server{ports: ports, version: "dev", now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	s.server = mcp.NewServer(
		&mcp.Implementation{Name: "memex", Version: s.version},
		&mcp.ServerOptions{Instructions: instructions(ports)},
	)
	s.registerTools()
	s.registerResources()
	return s, nil
}

// instructions tells the assistant what this server can do given the
// ports that were wired.
func instructions(p *Ports) string {
	var b strings.Builder
	b.WriteString("memex is a personal memory. Use the query tool to retrieve passages; " +
		"results carry the archive they came from and a relevance score.")
	if p.Proposals != nil {
		b.WriteString(" Refinement proposals wait for review: list_proposals shows them and " +
			"approve_proposal or reject_proposal resolves them. Only approve when the user asked you to. " +
			"create_proposal queues a dedup or enrich change for the same review.")
	}
	if p.Refinement != nil {
		b.WriteString(" refine asks the gardener to propose a refinement for one archive.")
	}
	if p.Archives != nil {
		b.WriteString(" Archives and their nodes are readable as memex:// resources.")
	}
	return b.String()
}

// Run serves a single session over stdin and stdout until ctx is cancelled
// or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr. The listener is
// bound before RunHTTP logs, so a taken port fails fast.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the streamable HTTP transport on an already bound listener
// until ctx is cancelled. ln is closed on return.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	handler := mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.server }, nil)
	srv := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("MCP HTTP shutdown: %v", err)
		}
	}()

	logger.Info("MCP server listening on %s", ln.Addr())
	if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
