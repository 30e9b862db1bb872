// Package server provides the MCP server wrapper with lifecycle management.
package server

import (
	"context"
	"log/slog"
	"os"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Name is the implementation name reported to MCP clients.
const Name = "texmtlx"

// Server wraps the MCP server with its logger and lifecycle.
type Server struct {
	mcp    *mcpserver.MCPServer
	logger *slog.Logger
}

// New creates an MCP server that logs every tool call through logger.
func New(version string, logger *slog.Logger) *Server {
	mcpServer := mcpserver.NewMCPServer(Name, version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithToolHandlerMiddleware(LoggingMiddleware(logger)),
		mcpserver.WithRecovery(),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger,
	}
}

// Run serves stdio until the client disconnects or ctx is canceled.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCP server for tool registration.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}
