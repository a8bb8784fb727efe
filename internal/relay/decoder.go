package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
)

// maxEventSize bounds one upstream line. Longer lines are skipped like any
// other malformed event.
const maxEventSize = 1 << 20

// streamChunk is one OpenAI-compatible streaming event.
type streamChunk struct {
	Choices []struct {
		Delta *struct {
			Content          string `json:"content"`
			ReasoningContent string `json:"reasoning_content"`
			Reasoning        string `json:"reasoning"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// decoder reads the provider's SSE body and produces deltas.
type decoder struct {
	logger *zap.Logger
	// touch is called for every line read, to keep the idle timer alive.
	touch func()
	// pause stops the idle timer while a delta waits for the consumer.
	// The next touch restarts it.
	pause func()
}

// run scans r until the end marker, an error, or ctx ends. Deltas are sent
// on out in the order they were read. A successful return always follows a
// DeltaDone having been delivered.
func (d *decoder) run(ctx context.Context, r io.Reader, out chan<- Delta) error {
	br := bufio.NewReaderSize(r, 64*1024)

	send := func(delta Delta) error {
		select {
		case out <- delta:
			return nil
		default:
		}

		// A slow client is not a silent provider.
		if d.pause != nil {
			d.pause()
		}
		select {
		case out <- delta:
			if d.touch != nil {
				d.touch()
			}
			return nil
		case <-ctx.Done():
			return context.Cause(ctx)
		}
	}

	finished := false
	var readErr error
	for readErr == nil {
		line, skipped, err := readLine(br, maxEventSize)
		readErr = err
		if err != nil && line == "" && !skipped {
			break
		}
		if d.touch != nil {
			d.touch()
		}

		if skipped {
			malformedEvents.Inc()
			d.logger.Debug("skipping oversized upstream event", zap.Int("limit", maxEventSize))
			continue
		}

		// SSE format: "data: {json}"; comments and other fields are ignored.
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" {
			continue
		}

		if data == "[DONE]" {
			return send(Delta{Kind: DeltaDone})
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			malformedEvents.Inc()
			d.logger.Debug("skipping malformed upstream event", zap.String("data", truncate(data, 200)), zap.Error(err))
			continue
		}

		if chunk.Error != nil {
			return fmt.Errorf("%w: %s", ErrUpstreamStream, chunk.Error.Message)
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != nil && *choice.FinishReason != "" {
			finished = true
		}
		if choice.Delta == nil {
			continue
		}

		reasoning := choice.Delta.ReasoningContent
		if reasoning == "" {
			reasoning = choice.Delta.Reasoning
		}
		if reasoning != "" {
			if err := send(Delta{Kind: DeltaReasoning, Text: reasoning}); err != nil {
				return err
			}
		}
		if choice.Delta.Content != "" {
			if err := send(Delta{Kind: DeltaContent, Text: choice.Delta.Content}); err != nil {
				return err
			}
		}
	}

	if readErr != nil && !errors.Is(readErr, io.EOF) {
		if ctx.Err() != nil {
			return context.Cause(ctx)
		}
		return fmt.Errorf("%w: %v", ErrUpstreamStream, readErr)
	}
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}

	// Some providers close the stream after the final choice without [DONE].
	if finished {
		return send(Delta{Kind: DeltaDone})
	}
	return fmt.Errorf("%w: stream ended without end marker", ErrUpstreamStream)
}

// readLine returns the next line without its terminator. A line longer than
// max is consumed and reported as skipped instead of returned. A final line
// without a newline is returned together with the read error.
func readLine(br *bufio.Reader, max int) (line string, skipped bool, err error) {
	var buf []byte
	for {
		chunk, err := br.ReadSlice('\n')
		if !skipped {
			if len(buf)+len(chunk) > max {
				skipped, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return strings.TrimRight(string(buf), "\r\n"), skipped, err
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
