package relay

import (
	"errors"
	"time"

	"github.com/HendryAvila/stickyboard/internal/conversation"
)

var (
	// ErrUpstreamConnect means the initial provider request failed.
	ErrUpstreamConnect = errors.New("upstream request failed")
	// ErrUpstreamStream means the provider stream broke mid-flight.
	ErrUpstreamStream = errors.New("upstream stream failed")
	// ErrIdleTimeout is joined with ErrUpstreamStream when the provider goes
	// silent for longer than the idle timeout.
	ErrIdleTimeout = errors.New("upstream idle timeout")
	// ErrClientGone means the client side stopped accepting frames.
	ErrClientGone = errors.New("client disconnected")
)

// ReasoningEffort sent to reasoning models.
const ReasoningEffort = "medium"

// Endpoint locates and authenticates the provider.
type Endpoint struct {
	APIBase string
	APIKey  string
}

// Plan is everything the relay needs for one request.
type Plan struct {
	Endpoint         Endpoint
	Model            string
	Reasoning        bool // model is a reasoning model
	IncludeReasoning bool // forward the reasoning channel to the client
	Messages         []conversation.Message
}

// Settings are the relay tunables that may change at runtime.
type Settings struct {
	Temperature     float64
	MaxOutputTokens int
	IdleTimeout     time.Duration
	Buffer          int
}

// DefaultSettings returns the relay defaults.
func DefaultSettings() Settings {
	return Settings{
		Temperature:     0.7,
		MaxOutputTokens: 8192,
		IdleTimeout:     120 * time.Second,
		Buffer:          16,
	}
}

// ChatRequest is the OpenAI-compatible streaming request body.
type ChatRequest struct {
	Model           string                 `json:"model"`
	Messages        []conversation.Message `json:"messages"`
	Stream          bool                   `json:"stream"`
	Temperature     *float64               `json:"temperature,omitempty"`
	MaxOutputTokens int                    `json:"max_output_tokens,omitempty"`
	ReasoningEffort string                 `json:"reasoning_effort,omitempty"`
}

// DeltaKind classifies one parsed upstream event.
type DeltaKind int

const (
	DeltaContent DeltaKind = iota
	DeltaReasoning
	DeltaDone
)

// Delta is one parsed upstream fragment.
type Delta struct {
	Kind DeltaKind
	Text string
}

// FrameKind classifies a client-facing frame.
type FrameKind int

const (
	FrameBanner FrameKind = iota
	FrameReasoningHeader
	FrameReasoning
	FrameDivider
	FrameContent
	FrameError
	FrameDone
)

var frameKindNames = [...]string{
	FrameBanner:          "banner",
	FrameReasoningHeader: "reasoning_header",
	FrameReasoning:       "reasoning",
	FrameDivider:         "divider",
	FrameContent:         "content",
	FrameError:           "error",
	FrameDone:            "done",
}

func (k FrameKind) String() string {
	if int(k) < len(frameKindNames) {
		return frameKindNames[k]
	}
	return "unknown"
}

// Frame is one unit of the client-facing stream. Every kind except error and
// done is carried to the client as {"content": Text}.
type Frame struct {
	Kind FrameKind
	Text string
}
