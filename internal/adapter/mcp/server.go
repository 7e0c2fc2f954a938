package mcp

import (
	"log/slog"

	"github.com/guillermoBallester/nlqeval/internal/core/port"
	"github.com/guillermoBallester/nlqeval/internal/core/service"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/trace"
)

// NewServer creates an MCPServer with the evaluation tools and logging hooks.
func NewServer(version string, scores *service.ScoreService, logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.MCPServer {
	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(false),
		server.WithHooks(ToolCallHooks(logger, tracer, inst)),
	)

	RegisterTools(s, scores)

	return s
}
