// Package assist runs the AI request pipeline: validate the request, resolve
// the provider, assemble ancestor context into a conversation, and hand the
// result to the completion relay.
package assist

import (
	"errors"
	"strings"

	"github.com/HendryAvila/stickyboard/internal/board"
)

var (
	// ErrMissingPrompt is returned before any I/O when the prompt is blank.
	ErrMissingPrompt = errors.New("prompt is required")
	// ErrBoardNotFound means the request names a board that does not exist.
	ErrBoardNotFound = errors.New("board not found")
)

// Request is one AI generation request as received from a client.
type Request struct {
	Prompt           string `json:"prompt"`
	BoardID          int64  `json:"board_id,omitempty"`
	SourceNoteID     *int64 `json:"source_note_id,omitempty"`
	ContextDepth     *int   `json:"context_depth,omitempty"`
	IncludeReasoning *bool  `json:"include_reasoning,omitempty"`
	Provider         string `json:"provider,omitempty"`
	Model            string `json:"model,omitempty"`
}

// Validate checks the request without touching any store.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return ErrMissingPrompt
	}
	return nil
}

// Board returns the target board, defaulting to the default board.
func (r *Request) Board() int64 {
	if r.BoardID <= 0 {
		return board.DefaultBoardID
	}
	return r.BoardID
}

// Depth returns the requested context depth, or def when none was given.
// An explicit value, zero included, is returned as is and clamped later.
func (r *Request) Depth(def int) int {
	if r.ContextDepth == nil {
		return def
	}
	return *r.ContextDepth
}

// Reasoning reports whether reasoning output should reach the client.
// It defaults to true.
func (r *Request) Reasoning() bool {
	return r.IncludeReasoning == nil || *r.IncludeReasoning
}
