package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/guillermoBallester/nlqeval/internal/audit"
	"github.com/guillermoBallester/nlqeval/internal/core/domain"
	"github.com/guillermoBallester/nlqeval/internal/core/port"
	"github.com/guillermoBallester/nlqeval/internal/core/service"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// --- helpers ---

var sessionSeq atomic.Int64

func callTool(t *testing.T, s *server.MCPServer, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	sessionID := fmt.Sprintf("test-%d", sessionSeq.Add(1))
	session := server.NewInProcessSession(sessionID, nil)
	require.NoError(t, s.RegisterSession(ctx, session))
	defer s.UnregisterSession(ctx, sessionID)
	sessionCtx := s.WithContext(ctx, session)

	// Initialize session.
	initBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "init", "method": "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "test", "version": "1.0"},
		},
	})
	s.HandleMessage(sessionCtx, initBytes)

	// Call tool.
	reqBytes, _ := json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": "call-1", "method": "tools/call",
		"params": map[string]any{
			"name":      toolName,
			"arguments": args,
		},
	})
	resp := s.HandleMessage(sessionCtx, reqBytes)
	respBytes, _ := json.Marshal(resp)

	var rpc struct {
		Result *mcp.CallToolResult       `json:"result"`
		Error  *struct{ Message string } `json:"error,omitempty"`
	}
	require.NoError(t, json.Unmarshal(respBytes, &rpc))
	require.Nil(t, rpc.Error, "unexpected RPC error: %v", rpc.Error)
	require.NotNil(t, rpc.Result)
	return rpc.Result
}

func toolText(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return ""
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return ""
	}
	return tc.Text
}

func testScoreService(t *testing.T) *service.ScoreService {
	t.Helper()
	prompt, err := domain.NewTemplate("COLUMNS: {{columns}}\nNLQ: {{prompt}}")
	require.NoError(t, err)
	critique, err := domain.NewTemplate("{{prompt}}\n{{query}}")
	require.NoError(t, err)

	return service.NewScoreService(
		domain.NewQueryValidator(domain.DefaultRules()),
		domain.NewAdjudicator(),
		nil,
		service.Templates{Prompt: prompt, Critique: critique},
		audit.NoopAuditor{},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		nil,
		nil,
	)
}

func setupServer(t *testing.T) *server.MCPServer {
	s := server.NewMCPServer("test", "0.1.0", server.WithToolCapabilities(true))
	RegisterTools(s, testScoreService(t))
	return s
}

// --- tests ---

func TestValidateQuery_Valid(t *testing.T) {
	s := setupServer(t)

	result := callTool(t, s, "validate_query", map[string]any{
		"completion": "```json\n{\"calculations\":[{\"op\":\"COUNT\"}],\"filters\":[{\"column\":\"name\",\"op\":\"=\",\"value\":\"x\"}],\"time_range\":7200}\n```",
		"columns":    `["name", "duration_ms"]`,
	})
	require.False(t, result.IsError)

	var check queryCheck
	require.NoError(t, json.Unmarshal([]byte(toolText(result)), &check))
	assert.True(t, check.Valid)
	assert.Empty(t, check.Reasons)
	assert.Equal(t, `{"calculations":[{"op":"COUNT"}],"filters":[{"column":"name","op":"=","value":"x"}],"time_range":7200}`, check.Query)
}

func TestValidateQuery_Invalid(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name       string
		completion string
		reason     string
	}{
		{"unknown column", `{"calculations":[{"op":"AVG","column":"latency"}]}`, "unknown column"},
		{"negative range", "```json\n{\"time_range\":-5}\n```", "time_range"},
		{"not json", "not json at all", "parse failure"},
		{"empty", "", "parse failure"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, "validate_query", map[string]any{
				"completion": tt.completion,
				"columns":    "name, duration_ms",
			})
			assert.False(t, result.IsError, "invalid queries are results, not tool errors")

			var check queryCheck
			require.NoError(t, json.Unmarshal([]byte(toolText(result)), &check))
			assert.False(t, check.Valid)
			require.NotEmpty(t, check.Reasons)
			assert.Contains(t, check.Reasons[0], tt.reason)
		})
	}
}

func TestValidateQuery_MissingArguments(t *testing.T) {
	s := setupServer(t)

	result := callTool(t, s, "validate_query", map[string]any{"columns": "name"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "completion is required")

	result = callTool(t, s, "validate_query", map[string]any{"completion": "{}"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "columns is required")
}

func TestNormalizeCompletion(t *testing.T) {
	s := setupServer(t)

	result := callTool(t, s, "normalize_completion", map[string]any{"completion": "```json\n{\"limit\":1}\n```"})
	assert.False(t, result.IsError)
	assert.Equal(t, `{"limit":1}`, toolText(result))

	result = callTool(t, s, "normalize_completion", map[string]any{})
	assert.True(t, result.IsError)
}

func TestRenderPrompt(t *testing.T) {
	s := setupServer(t)

	result := callTool(t, s, "render_prompt", map[string]any{
		"user_input": "slowest endpoints",
		"columns":    "name, duration_ms",
	})
	assert.False(t, result.IsError)
	assert.Equal(t, "COLUMNS: name, duration_ms\nNLQ: slowest endpoints", toolText(result))

	result = callTool(t, s, "render_prompt", map[string]any{"user_input": "", "columns": "name"})
	assert.True(t, result.IsError)
	assert.Contains(t, toolText(result), "user_input is required")
}

func TestAdjudicateCritique(t *testing.T) {
	s := setupServer(t)

	tests := []struct {
		name        string
		reply       string
		outcome     domain.Outcome
		explanation string
	}{
		{"good", `{"critique":"Correct.","outcome":"good"}`, domain.OutcomeGood, "Correct."},
		{"fenced bad", "```json\n{\"critique\":\"Wrong op.\",\"outcome\":\"bad\"}\n```", domain.OutcomeBad, "Wrong op."},
		{"prose", "Looks fine", domain.OutcomeBad, "JSON parsing error:\nLooks fine"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, s, "adjudicate_critique", map[string]any{"reply": tt.reply})
			require.False(t, result.IsError)

			var c domain.Critique
			require.NoError(t, json.Unmarshal([]byte(toolText(result)), &c))
			assert.Equal(t, tt.outcome, c.Outcome)
			assert.Equal(t, tt.explanation, c.Explanation)
		})
	}
}

// --- hooks ---

type recordingInst struct {
	port.NoopInstrumentation
	toolCalls int
}

func (r *recordingInst) RecordToolDuration(context.Context, float64) { r.toolCalls++ }

func TestNewServer_HooksLogAndTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	inst := &recordingInst{}
	s := NewServer("0.1.0", testScoreService(t), logger, tp.Tracer("test"), inst)

	callTool(t, s, "normalize_completion", map[string]any{"completion": "{}"})
	callTool(t, s, "validate_query", map[string]any{"columns": "name"})

	assert.Equal(t, 2, inst.toolCalls)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	for _, span := range spans {
		assert.Equal(t, "mcp.tool.call", span.Name)
	}
	assert.NotEmpty(t, spans[1].Events, "error result should be recorded on the span")

	logs := buf.String()
	assert.Contains(t, logs, `"mcp.tool":"normalize_completion"`)
	assert.Contains(t, logs, `"mcp.tool":"validate_query"`)
	assert.Contains(t, logs, `"level":"ERROR"`)
}

func TestToolCallHooks_NilTracer(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	var tracer trace.Tracer
	s := NewServer("0.1.0", testScoreService(t), logger, tracer, nil)

	assert.NotPanics(t, func() {
		callTool(t, s, "normalize_completion", map[string]any{"completion": "x"})
	})
}
