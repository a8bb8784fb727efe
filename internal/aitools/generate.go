package aitools

import (
	"context"
	"fmt"

	"github.com/HendryAvila/stickyboard/internal/assist"
	"github.com/HendryAvila/stickyboard/internal/relay"
	"github.com/mark3labs/mcp-go/mcp"
)

// Generator runs a full AI request into a sink.
type Generator interface {
	Generate(ctx context.Context, req assist.Request, sink relay.Sink) error
}

// GenerateTool handles the board_generate MCP tool.
type GenerateTool struct {
	generator Generator
}

// NewGenerateTool creates a GenerateTool.
func NewGenerateTool(generator Generator) *GenerateTool {
	return &GenerateTool{generator: generator}
}

// Definition returns the MCP tool definition for board_generate.
func (t *GenerateTool) Definition() mcp.Tool {
	return mcp.NewTool("board_generate",
		mcp.WithDescription(
			"Ask the configured AI provider a question, using a note's ancestors "+
				"on the board as prior conversation. Returns the complete answer, "+
				"including the model banner and, for reasoning models, the reasoning section.",
		),
		mcp.WithString("prompt",
			mcp.Required(),
			mcp.Description("The question or instruction"),
		),
		mcp.WithNumber("board_id",
			mcp.Description("Board to use (default: 1)"),
		),
		mcp.WithNumber("note_id",
			mcp.Description("Note whose ancestors provide context (optional)"),
		),
		mcp.WithNumber("depth",
			mcp.Description("How many levels of ancestors to include (default: 3)"),
		),
		mcp.WithString("provider",
			mcp.Description("Provider name override"),
		),
		mcp.WithString("model",
			mcp.Description("Model override"),
		),
		mcp.WithBoolean("include_reasoning",
			mcp.Description("Include the reasoning section for reasoning models (default: true)"),
		),
	)
}

// Handle processes the board_generate tool call.
func (t *GenerateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	prompt := req.GetString("prompt", "")
	if prompt == "" {
		return mcp.NewToolResultError("'prompt' is required"), nil
	}

	includeReasoning := boolArg(req, "include_reasoning", true)
	var c relay.Collector
	err := t.generator.Generate(ctx, assist.Request{
		Prompt:           prompt,
		BoardID:          int64(intArg(req, "board_id", 0)),
		SourceNoteID:     optionalID(req, "note_id"),
		ContextDepth:     optionalInt(req, "depth"),
		IncludeReasoning: &includeReasoning,
		Provider:         req.GetString("provider", ""),
		Model:            req.GetString("model", ""),
	}, &c)

	if msg := c.Err(); msg != "" {
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %s\n\nPartial output:\n%s", msg, c.Text())), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("generation failed: %v", err)), nil
	}
	return mcp.NewToolResultText(c.Text()), nil
}
