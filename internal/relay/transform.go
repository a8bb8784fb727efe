package relay

import "fmt"

// State of a Transformer.
type State int

const (
	StateIdle State = iota
	StateReasoning
	StateContent
	StateDone
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReasoning:
		return "reasoning"
	case StateContent:
		return "content"
	case StateDone:
		return "done"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Markers inserted into the client stream.
const (
	ReasoningHeader = "> **Reasoning**\n\n"
	Divider         = "\n\n---\n\n"
)

// Banner renders the model banner frame text.
func Banner(model string) string {
	return "> **model: " + model + "**\n\n"
}

// Transformer turns upstream deltas into client frames for one request.
//
// IDLE → REASONING → CONTENT → DONE, with ERROR absorbing from any state.
// The banner, reasoning header and divider are each emitted at most once.
type Transformer struct {
	model            string
	includeReasoning bool

	state      State
	bannerSent bool
}

// NewTransformer creates the per-request transform state.
func NewTransformer(model string, includeReasoning bool) *Transformer {
	return &Transformer{model: model, includeReasoning: includeReasoning}
}

// State returns the current state.
func (t *Transformer) State() State { return t.state }

// Terminal reports whether no further frames will be produced.
func (t *Transformer) Terminal() bool {
	return t.state == StateDone || t.state == StateError
}

// Apply consumes one delta and returns the frames to emit, in order.
func (t *Transformer) Apply(d Delta) []Frame {
	if t.Terminal() {
		return nil
	}

	switch d.Kind {
	case DeltaDone:
		t.state = StateDone
		return []Frame{{Kind: FrameDone}}

	case DeltaReasoning:
		if d.Text == "" || !t.includeReasoning {
			return nil
		}
		switch t.state {
		case StateIdle:
			t.state = StateReasoning
			frames := t.banner(nil)
			frames = append(frames, Frame{Kind: FrameReasoningHeader, Text: ReasoningHeader})
			return append(frames, Frame{Kind: FrameReasoning, Text: Sanitize(d.Text)})
		case StateReasoning:
			return []Frame{{Kind: FrameReasoning, Text: Sanitize(d.Text)}}
		}
		// Reasoning after the answer started has nowhere to go.
		return nil

	case DeltaContent:
		if d.Text == "" {
			return nil
		}
		var frames []Frame
		switch t.state {
		case StateReasoning:
			frames = append(frames, Frame{Kind: FrameDivider, Text: Divider})
			frames = t.banner(frames)
		case StateIdle:
			frames = t.banner(frames)
		}
		t.state = StateContent
		return append(frames, Frame{Kind: FrameContent, Text: Sanitize(d.Text)})
	}
	return nil
}

// Fail moves to the error state and returns the error frame, unless the
// stream already ended.
func (t *Transformer) Fail(msg string) []Frame {
	if t.Terminal() {
		return nil
	}
	t.state = StateError
	return []Frame{{Kind: FrameError, Text: msg}}
}

func (t *Transformer) banner(frames []Frame) []Frame {
	if t.bannerSent {
		return frames
	}
	t.bannerSent = true
	return append(frames, Frame{Kind: FrameBanner, Text: Banner(t.model)})
}
