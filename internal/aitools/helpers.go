// Package aitools provides MCP tool handlers over the AI request pipeline.
//
// Each tool is a struct with its dependencies injected via constructor,
// a Definition() returning the mcp.Tool schema, and a Handle() that runs
// the call. Failures are reported as tool errors, never as Go errors.
package aitools

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// intArg extracts an integer argument from a tool request, returning
// defaultVal if the key is missing or not a number (JSON numbers are float64).
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}

// optionalID returns a pointer to a positive integer argument, or nil.
func optionalID(req mcp.CallToolRequest, key string) *int64 {
	v := intArg(req, key, 0)
	if v <= 0 {
		return nil
	}
	id := int64(v)
	return &id
}

// optionalInt returns a pointer to an integer argument, or nil when absent.
func optionalInt(req mcp.CallToolRequest, key string) *int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return nil
	}
	n := int(v)
	return &n
}
