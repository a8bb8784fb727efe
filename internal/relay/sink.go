package relay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// Sink receives client-facing frames in order.
type Sink interface {
	Send(f Frame) error
}

// SSEWriter writes frames as Server-Sent Events and flushes after each one.
type SSEWriter struct {
	w       io.Writer
	flusher http.Flusher
}

// NewSSEWriter commits the response as an event stream.
func NewSSEWriter(w http.ResponseWriter) (*SSEWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported by response writer")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &SSEWriter{w: w, flusher: flusher}, nil
}

type contentPayload struct {
	Content string `json:"content"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Send writes one frame.
func (s *SSEWriter) Send(f Frame) error {
	var data []byte
	switch f.Kind {
	case FrameDone:
		data = []byte("[DONE]")
	case FrameError:
		b, err := marshalPayload(errorPayload{Error: f.Text})
		if err != nil {
			return err
		}
		data = b
	default:
		b, err := marshalPayload(contentPayload{Content: f.Text})
		if err != nil {
			return err
		}
		data = b
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// marshalPayload encodes v without HTML escaping, so markdown such as the
// "> " quote prefix reaches the client verbatim.
func marshalPayload(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Collector buffers frames in memory.
type Collector struct {
	mu     sync.Mutex
	frames []Frame
}

// Send records a frame.
func (c *Collector) Send(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, f)
	return nil
}

// Frames returns a copy of the recorded frames.
func (c *Collector) Frames() []Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Frame(nil), c.frames...)
}

// Text concatenates every content-bearing frame.
func (c *Collector) Text() string {
	var b strings.Builder
	for _, f := range c.Frames() {
		if f.Kind != FrameError && f.Kind != FrameDone {
			b.WriteString(f.Text)
		}
	}
	return b.String()
}

// Err returns the in-band error message, if the stream ended in one.
func (c *Collector) Err() string {
	for _, f := range c.Frames() {
		if f.Kind == FrameError {
			return f.Text
		}
	}
	return ""
}

// Done reports whether the stream completed with the end marker.
func (c *Collector) Done() bool {
	frames := c.Frames()
	return len(frames) > 0 && frames[len(frames)-1].Kind == FrameDone
}
