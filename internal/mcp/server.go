package mcp

import (
	"context"
	"log/slog"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/vectorcode/internal/app"
	"github.com/dshills/vectorcode/internal/indexer"
)

// ServerName is the MCP server name
const ServerName = "vectorcode"

// Server exposes an App over the Model Context Protocol
type Server struct {
	mcp    *server.MCPServer
	app    *app.App
	logger *slog.Logger

	// locks holds one *indexer.IndexLock per project root
	locks sync.Map
}

// NewServer creates an MCP server backed by a
func NewServer(a *app.App, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		app:    a,
		logger: logger,
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio", "name", ServerName)
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(queryTool(), s.handleQuery)
	s.mcp.AddTool(vectoriseTool(), s.handleVectorise)
	s.mcp.AddTool(listTool(), s.handleList)
}

// lock returns the vectorise lock of a project
func (s *Server) lock(root string) *indexer.IndexLock {
	l, _ := s.locks.LoadOrStore(root, &indexer.IndexLock{})
	return l.(*indexer.IndexLock)
}
