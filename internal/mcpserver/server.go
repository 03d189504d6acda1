// Package mcpserver exposes the tool registry to Model Context Protocol
// clients.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Adithya-Monish-Kumar-K/docsearch/internal/tools"
	"github.com/Adithya-Monish-Kumar-K/docsearch/pkg/config"
)

type Server struct {
	mcp    *mcp.Server
	logger *slog.Logger
}

// New creates an MCP server carrying every tool in reg.
func New(cfg config.MCPConfig, reg *tools.Registry) *Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)
	reg.InstallMCP(srv)
	return &Server{
		mcp:    srv,
		logger: slog.Default().With("component", "mcp-server"),
	}
}

// Run serves over stdin/stdout until the client disconnects or ctx ends.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio")
	return s.Serve(ctx, &mcp.StdioTransport{})
}

// Serve serves a single session on t.
func (s *Server) Serve(ctx context.Context, t mcp.Transport) error {
	err := s.mcp.Run(ctx, t)
	if err != nil && ctx.Err() == nil {
		s.logger.Error("mcp server stopped", "error", err)
		return err
	}
	s.logger.Info("mcp server stopped")
	return nil
}

// Connect attaches the server to t and returns without blocking.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcp.Connect(ctx, t, nil)
}
