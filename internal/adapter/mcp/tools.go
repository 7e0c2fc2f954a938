package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/guillermoBallester/nlqeval/internal/core/domain"
	"github.com/guillermoBallester/nlqeval/internal/core/service"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server metadata
const serverName = "nlqeval"

// Tool descriptions
const (
	descValidateQuery = "Check a model completion that should contain a Honeycomb query object. " +
		"Code fences around the JSON are stripped first. The query is checked for shape, known " +
		"operators, value arity, column membership in the given schema, and numeric ranges. " +
		"Returns {\"valid\": bool, \"reasons\": [...], \"query\": normalized text}. " +
		"Malformed completions are reported as invalid, never as tool errors."

	descNormalizeCompletion = "Strip a markdown code fence (optionally tagged, e.g. ```json) wrapped " +
		"around a model completion and trim surrounding whitespace. Other text is returned unchanged."

	descRenderPrompt = "Render the query-generation prompt for a natural-language request and its column list."

	descAdjudicateCritique = "Interpret a critic model's reply. Expects a JSON object with \"outcome\" " +
		"(good or bad) and \"critique\" (text), optionally fenced. Unparsable replies are a bad outcome " +
		"whose explanation carries the raw reply."

	descCompletionParam = "Raw model completion"
	descColumnsParam    = "Column list for the dataset: a JSON array or a comma-separated list"
)

// queryCheck is the validate_query result.
type queryCheck struct {
	Valid   bool     `json:"valid"`
	Reasons []string `json:"reasons,omitempty"`
	Query   string   `json:"query"`
}

func RegisterTools(s *server.MCPServer, scores *service.ScoreService) {
	s.AddTool(
		mcp.NewTool("validate_query",
			mcp.WithDescription(descValidateQuery),
			mcp.WithString("completion",
				mcp.Required(),
				mcp.Description(descCompletionParam),
			),
			mcp.WithString("columns",
				mcp.Required(),
				mcp.Description(descColumnsParam),
			),
		),
		validateQueryHandler(scores),
	)

	s.AddTool(
		mcp.NewTool("normalize_completion",
			mcp.WithDescription(descNormalizeCompletion),
			mcp.WithString("completion",
				mcp.Required(),
				mcp.Description(descCompletionParam),
			),
		),
		normalizeCompletionHandler(),
	)

	s.AddTool(
		mcp.NewTool("render_prompt",
			mcp.WithDescription(descRenderPrompt),
			mcp.WithString("user_input",
				mcp.Required(),
				mcp.Description("The user's natural-language request"),
			),
			mcp.WithString("columns",
				mcp.Required(),
				mcp.Description(descColumnsParam),
			),
		),
		renderPromptHandler(scores),
	)

	s.AddTool(
		mcp.NewTool("adjudicate_critique",
			mcp.WithDescription(descAdjudicateCritique),
			mcp.WithString("reply",
				mcp.Required(),
				mcp.Description("Raw critic model reply"),
			),
		),
		adjudicateCritiqueHandler(scores),
	)
}

// Completions and replies may legitimately be empty strings; only a missing
// or non-string argument is rejected.
func stringArg(request mcp.CallToolRequest, name string) (string, bool) {
	v, ok := request.GetArguments()[name].(string)
	return v, ok
}

func validateQueryHandler(scores *service.ScoreService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		completion, ok := stringArg(request, "completion")
		if !ok {
			return mcp.NewToolResultError("completion is required"), nil
		}
		columns, ok := stringArg(request, "columns")
		if !ok {
			return mcp.NewToolResultError("columns is required"), nil
		}

		query, verdict := scores.Inspect(completion, domain.ParseColumns(columns))
		return jsonResult(queryCheck{Valid: verdict.Valid, Reasons: verdict.Reasons, Query: query})
	}
}

func normalizeCompletionHandler() server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		completion, ok := stringArg(request, "completion")
		if !ok {
			return mcp.NewToolResultError("completion is required"), nil
		}
		return mcp.NewToolResultText(domain.NormalizeCompletion(completion)), nil
	}
}

func renderPromptHandler(scores *service.ScoreService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		input, ok := stringArg(request, "user_input")
		if !ok || input == "" {
			return mcp.NewToolResultError("user_input is required"), nil
		}
		columns, ok := stringArg(request, "columns")
		if !ok {
			return mcp.NewToolResultError("columns is required"), nil
		}

		prompt := scores.RenderPrompt(domain.Sample{Input: input, Columns: columns})
		return mcp.NewToolResultText(prompt), nil
	}
}

func adjudicateCritiqueHandler(scores *service.ScoreService) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reply, ok := stringArg(request, "reply")
		if !ok {
			return mcp.NewToolResultError("reply is required"), nil
		}
		return jsonResult(scores.Adjudicate(reply))
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
