package aitools

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/stickyboard/internal/assist"
	"github.com/HendryAvila/stickyboard/internal/contextgraph"
	"github.com/mark3labs/mcp-go/mcp"
)

// Assembler builds the conversation for a request without calling a provider.
type Assembler interface {
	Assemble(ctx context.Context, req assist.Request) (*assist.Assembled, error)
}

// ContextTool handles the board_context MCP tool.
type ContextTool struct {
	assembler Assembler
}

// NewContextTool creates a ContextTool.
func NewContextTool(assembler Assembler) *ContextTool {
	return &ContextTool{assembler: assembler}
}

// Definition returns the MCP tool definition for board_context.
func (t *ContextTool) Definition() mcp.Tool {
	return mcp.NewTool("board_context",
		mcp.WithDescription(
			"Show the ancestor notes that would be sent as context for a note. "+
				"Walks incoming connections backward up to the given depth and lists "+
				"the notes found at each distance, most distant first.",
		),
		mcp.WithNumber("note_id",
			mcp.Required(),
			mcp.Description("The note to start from"),
		),
		mcp.WithNumber("board_id",
			mcp.Description("Board the note belongs to (default: 1)"),
		),
		mcp.WithNumber("depth",
			mcp.Description(fmt.Sprintf("How many levels to walk back (default: 3, max: %d)", contextgraph.MaxDepth)),
		),
	)
}

// Handle processes the board_context tool call.
func (t *ContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	noteID := optionalID(req, "note_id")
	if noteID == nil {
		return mcp.NewToolResultError("'note_id' is required"), nil
	}

	a, err := t.assembler.Assemble(ctx, assist.Request{
		// The prompt is not part of the output; it only satisfies validation.
		Prompt:       "context preview",
		BoardID:      int64(intArg(req, "board_id", 0)),
		SourceNoteID: noteID,
		ContextDepth: optionalInt(req, "depth"),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to build context: %v", err)), nil
	}

	return mcp.NewToolResultText(formatContext(a.Context)), nil
}

// formatContext renders a traversal result as markdown, grouped by level.
func formatContext(r *contextgraph.Result) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Context for note #%d: %q\n\n", r.Root.ID, r.Root.Title)
	fmt.Fprintf(&b, "**Board:** %d\n", r.Root.BoardID)
	fmt.Fprintf(&b, "**Depth:** %d\n\n", r.Depth)

	if len(r.Levels) == 0 {
		b.WriteString("No ancestor notes found.\n")
		return b.String()
	}

	total := 0
	for i := len(r.Levels) - 1; i >= 0; i-- {
		level := r.Levels[i]
		label := "Direct parents"
		if level.Distance > 1 {
			label = fmt.Sprintf("Distance %d", level.Distance)
		}
		fmt.Fprintf(&b, "## %s\n\n", label)
		for _, n := range level.Notes {
			fmt.Fprintf(&b, "- #%d %q (%s)\n", n.ID, n.Title, n.CreatedAt)
			total++
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "**Total:** %d note(s) across %d level(s)\n", total, len(r.Levels))
	return b.String()
}
