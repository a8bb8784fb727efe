package assist

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/HendryAvila/stickyboard/internal/board"
	"github.com/HendryAvila/stickyboard/internal/contextgraph"
	"github.com/HendryAvila/stickyboard/internal/conversation"
	"github.com/HendryAvila/stickyboard/internal/provider"
	"github.com/HendryAvila/stickyboard/internal/relay"
	"go.uber.org/zap"
)

// DefaultContextDepth is used when a request carries no depth.
const DefaultContextDepth = 3

// BoardReader reads board-level configuration.
type BoardReader interface {
	BoardSystemPrompt(ctx context.Context, boardID int64) (string, error)
}

// ProviderResolver picks the provider, key and model for a request.
type ProviderResolver interface {
	Resolve(ctx context.Context, o provider.Override) (*provider.Resolution, error)
}

// ContextResolver collects ancestor notes.
type ContextResolver interface {
	Resolve(ctx context.Context, q contextgraph.Query) (*contextgraph.Result, error)
}

// Streamer relays one completion to a sink.
type Streamer interface {
	Stream(ctx context.Context, p relay.Plan, sink relay.Sink) error
}

// Assembled is the conversation for a request, before any provider is chosen.
type Assembled struct {
	BoardID  int64
	Context  *contextgraph.Result // nil when no source note was given
	Messages []conversation.Message
}

// Prepared is a fully resolved request, ready to stream.
type Prepared struct {
	Assembled
	Provider *provider.Resolution
	Plan     relay.Plan
}

// Service runs the request pipeline.
type Service struct {
	boards    BoardReader
	providers ProviderResolver
	graph     ContextResolver
	relay     Streamer
	logger    *zap.Logger

	defaultDepth atomic.Int64
}

// NewService creates a Service.
func NewService(boards BoardReader, providers ProviderResolver, graph ContextResolver, streamer Streamer, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		boards:    boards,
		providers: providers,
		graph:     graph,
		relay:     streamer,
		logger:    logger,
	}
	s.defaultDepth.Store(DefaultContextDepth)
	return s
}

// SetDefaultDepth changes the depth used for requests that omit one.
func (s *Service) SetDefaultDepth(depth int) {
	if depth <= 0 {
		depth = DefaultContextDepth
	}
	s.defaultDepth.Store(int64(contextgraph.ClampDepth(depth)))
}

// DefaultDepth returns the depth used for requests that omit one.
func (s *Service) DefaultDepth() int {
	return int(s.defaultDepth.Load())
}

// Assemble builds the conversation for req without resolving a provider.
// A graph read failure aborts assembly; no partial context is returned.
func (s *Service) Assemble(ctx context.Context, req Request) (*Assembled, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	boardID := req.Board()
	systemPrompt, err := s.boards.BoardSystemPrompt(ctx, boardID)
	if err != nil {
		if errors.Is(err, board.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrBoardNotFound, boardID)
		}
		return nil, fmt.Errorf("assist: loading board %d: %w", boardID, err)
	}

	a := &Assembled{BoardID: boardID}
	var ancestors []board.Note
	if req.SourceNoteID != nil {
		res, err := s.graph.Resolve(ctx, contextgraph.Query{
			NoteID:  *req.SourceNoteID,
			BoardID: boardID,
			Depth:   req.Depth(s.DefaultDepth()),
		})
		if err != nil {
			return nil, err
		}
		a.Context = res
		ancestors = res.Ancestors()
	}

	a.Messages = conversation.Build(systemPrompt, ancestors, req.Prompt)
	return a, nil
}

// Prepare validates req, resolves the provider and assembles the
// conversation. Every error it returns happens before any upstream
// connection is opened.
func (s *Service) Prepare(ctx context.Context, req Request) (*Prepared, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	res, err := s.providers.Resolve(ctx, provider.Override{Provider: req.Provider, Model: req.Model})
	if err != nil {
		return nil, err
	}

	a, err := s.Assemble(ctx, req)
	if err != nil {
		return nil, err
	}

	p := &Prepared{
		Assembled: *a,
		Provider:  res,
		Plan: relay.Plan{
			Endpoint:         relay.Endpoint{APIBase: res.APIBase, APIKey: res.APIKey},
			Model:            res.Model,
			Reasoning:        res.Reasoning,
			IncludeReasoning: req.Reasoning(),
			Messages:         a.Messages,
		},
	}

	fields := []zap.Field{
		zap.String("provider", res.Provider),
		zap.String("model", res.Model),
		zap.Int64("board_id", a.BoardID),
		zap.Int("messages", len(a.Messages)),
	}
	if a.Context != nil {
		fields = append(fields, zap.Int64("source_note_id", a.Context.Root.ID), zap.Int("levels", a.Context.Reached()))
	}
	s.logger.Debug("request prepared", fields...)
	return p, nil
}

// Stream relays a prepared request to sink.
func (s *Service) Stream(ctx context.Context, p *Prepared, sink relay.Sink) error {
	return s.relay.Stream(ctx, p.Plan, sink)
}

// Generate prepares and streams req in one call. Pre-stream failures are
// returned without writing to sink.
func (s *Service) Generate(ctx context.Context, req Request, sink relay.Sink) error {
	p, err := s.Prepare(ctx, req)
	if err != nil {
		return err
	}
	return s.Stream(ctx, p, sink)
}
