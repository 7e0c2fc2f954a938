package mcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/guillermoBallester/nlqeval/internal/core/port"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errToolResult = errors.New("tool returned error result")

// callState holds per-request timing and span data.
type callState struct {
	tool  string
	start time.Time
	span  trace.Span
}

// callTracker pairs the before and after hooks of one tools/call by request id.
type callTracker struct {
	calls  sync.Map // id -> *callState
	logger *slog.Logger
	tracer trace.Tracer
	inst   port.Instrumentation
}

// ToolCallHooks creates MCP hooks that log tool calls and record OTel spans
// and durations. tracer and inst may be nil.
func ToolCallHooks(logger *slog.Logger, tracer trace.Tracer, inst port.Instrumentation) *server.Hooks {
	t := &callTracker{logger: logger, tracer: tracer, inst: inst}

	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(t.before)
	hooks.AddAfterCallTool(func(ctx context.Context, id any, req *mcp.CallToolRequest, result any) {
		var err error
		if r, ok := result.(*mcp.CallToolResult); ok && r.IsError {
			err = errToolResult
		}
		t.finish(ctx, id, req.Params.Name, err)
	})
	hooks.AddOnError(func(ctx context.Context, id any, method mcp.MCPMethod, message any, err error) {
		if method != mcp.MethodToolsCall {
			return
		}
		name := ""
		if req, ok := message.(*mcp.CallToolRequest); ok {
			name = req.Params.Name
		}
		t.finish(ctx, id, name, err)
	})
	return hooks
}

func (t *callTracker) before(ctx context.Context, id any, req *mcp.CallToolRequest) {
	state := &callState{tool: req.Params.Name, start: time.Now()}
	if t.tracer != nil {
		_, state.span = t.tracer.Start(ctx, "mcp.tool.call",
			trace.WithAttributes(attribute.String("mcp.tool", req.Params.Name)),
		)
	}
	t.calls.Store(id, state)
}

func (t *callTracker) finish(ctx context.Context, id any, tool string, err error) {
	var state *callState
	if v, ok := t.calls.LoadAndDelete(id); ok {
		state = v.(*callState)
	}

	var duration time.Duration
	if state != nil {
		duration = time.Since(state.start)
		if tool == "" {
			tool = state.tool
		}
	}

	attrs := []slog.Attr{
		slog.String("rpc.method", "tools/call"),
		slog.String("mcp.tool", tool),
		slog.Duration("duration", duration),
		slog.Bool("error", err != nil),
	}
	level := slog.LevelInfo
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error.message", err.Error()))
	}
	t.logger.LogAttrs(ctx, level, "tool call", attrs...)

	if t.inst != nil && state != nil {
		t.inst.RecordToolDuration(ctx, float64(duration.Milliseconds()))
	}

	if state != nil && state.span != nil {
		if err != nil {
			state.span.RecordError(err)
			state.span.SetStatus(codes.Error, err.Error())
		}
		state.span.End()
	}
}
