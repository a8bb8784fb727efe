// Package relay streams a chat completion from an upstream provider and
// re-emits it to the client as a normalized frame stream.
//
// One request runs as a producer (the upstream decoder) and a consumer (the
// transform state machine writing to a Sink) joined by a bounded channel.
// Client disconnects and provider silence both cancel the upstream read.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Relay streams completions. It is safe for concurrent use; each Stream call
// owns its own transform state.
type Relay struct {
	opener   Opener
	logger   *zap.Logger
	settings atomic.Pointer[Settings]
}

// New creates a Relay.
func New(opener Opener, s Settings, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Relay{opener: opener, logger: logger}
	r.Update(s)
	return r
}

// Update swaps the relay tunables. In-flight streams keep their settings.
func (r *Relay) Update(s Settings) {
	def := DefaultSettings()
	if s.MaxOutputTokens <= 0 {
		s.MaxOutputTokens = def.MaxOutputTokens
	}
	if s.Buffer <= 0 {
		s.Buffer = def.Buffer
	}
	r.settings.Store(&s)
}

// Settings returns the current tunables.
func (r *Relay) Settings() Settings {
	return *r.settings.Load()
}

// BuildRequest shapes the upstream request body for a plan.
func BuildRequest(p Plan, s Settings) ChatRequest {
	req := ChatRequest{
		Model:    p.Model,
		Messages: p.Messages,
		Stream:   true,
	}
	if p.Reasoning {
		req.MaxOutputTokens = s.MaxOutputTokens
		req.ReasoningEffort = ReasoningEffort
	} else {
		t := s.Temperature
		req.Temperature = &t
	}
	return req
}

// Stream makes exactly one upstream request for p and relays its events to
// sink. It returns nil once the done frame was sent.
//
// Upstream failures are reported to the client as a single error frame and
// also returned. If ctx ends or the sink fails, the upstream read is
// cancelled and nothing more is written.
func (r *Relay) Stream(ctx context.Context, p Plan, sink Sink) (err error) {
	s := r.Settings()
	start := time.Now()
	outcome := outcomeInternalError
	defer func() {
		streamsTotal.WithLabelValues(outcome).Inc()
		streamDuration.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	log := r.logger.With(zap.String("model", p.Model), zap.Bool("reasoning_model", p.Reasoning))

	streamCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	touch, pause := func() {}, func() {}
	if s.IdleTimeout > 0 {
		idle := time.AfterFunc(s.IdleTimeout, func() { cancel(ErrIdleTimeout) })
		defer idle.Stop()
		touch = func() { idle.Reset(s.IdleTimeout) }
		pause = func() { idle.Stop() }
	}

	tr := NewTransformer(p.Model, p.IncludeReasoning)
	clientGone := false
	send := func(frames []Frame) error {
		for _, f := range frames {
			if err := sink.Send(f); err != nil {
				clientGone = true
				return fmt.Errorf("%w: %v", ErrClientGone, err)
			}
			framesTotal.WithLabelValues(f.Kind.String()).Inc()
		}
		return nil
	}

	log.Debug("opening upstream stream", zap.Int("messages", len(p.Messages)))
	body, err := r.opener.Open(streamCtx, p.Endpoint, BuildRequest(p, s))
	if err != nil {
		if ctx.Err() != nil {
			outcome = outcomeClientGone
			return ctx.Err()
		}
		if cause := context.Cause(streamCtx); errors.Is(cause, ErrIdleTimeout) {
			err = cause
		}
		outcome = outcomeConnectError
		log.Warn("upstream request failed", zap.Error(err))
		err = fmt.Errorf("%w: %v", ErrUpstreamConnect, err)
		if sendErr := send(tr.Fail(err.Error())); sendErr != nil {
			outcome = outcomeClientGone
		}
		return err
	}

	// Closing the body is what unblocks a reader stuck waiting on the provider.
	stopClose := context.AfterFunc(streamCtx, func() { _ = body.Close() })
	defer stopClose()

	deltas := make(chan Delta, s.Buffer)
	dec := &decoder{logger: log, touch: touch, pause: pause}

	var g errgroup.Group
	g.Go(func() error {
		defer close(deltas)
		defer body.Close()
		// Once the producer is done, only the client side is left running.
		defer pause()
		return dec.run(streamCtx, body, deltas)
	})
	g.Go(func() error {
		for d := range deltas {
			if err := send(tr.Apply(d)); err != nil {
				cancel(err)
				return err
			}
		}
		return nil
	})
	readErr := g.Wait()

	switch {
	case clientGone || ctx.Err() != nil:
		outcome = outcomeClientGone
		log.Info("client went away, upstream stream cancelled")
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return readErr

	case readErr != nil:
		if errors.Is(readErr, ErrIdleTimeout) {
			outcome = outcomeIdleTimeout
			readErr = fmt.Errorf("%w: %w: no data for %s", ErrUpstreamStream, ErrIdleTimeout, s.IdleTimeout)
		} else {
			outcome = outcomeStreamError
			if !errors.Is(readErr, ErrUpstreamStream) {
				readErr = fmt.Errorf("%w: %v", ErrUpstreamStream, readErr)
			}
		}
		log.Warn("upstream stream failed", zap.Error(readErr))
		if err := send(tr.Fail(readErr.Error())); err != nil {
			outcome = outcomeClientGone
		}
		return readErr

	case tr.State() != StateDone:
		outcome = outcomeStreamError
		err := fmt.Errorf("%w: stream ended in state %s", ErrUpstreamStream, tr.State())
		_ = send(tr.Fail(err.Error()))
		return err
	}

	outcome = outcomeDone
	log.Debug("stream complete", zap.Duration("elapsed", time.Since(start)))
	return nil
}
