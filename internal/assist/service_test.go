package assist_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HendryAvila/stickyboard/internal/assist"
	"github.com/HendryAvila/stickyboard/internal/board"
	"github.com/HendryAvila/stickyboard/internal/contextgraph"
	"github.com/HendryAvila/stickyboard/internal/conversation"
	"github.com/HendryAvila/stickyboard/internal/provider"
	"github.com/HendryAvila/stickyboard/internal/relay"
	"github.com/google/go-cmp/cmp"
)

var ctx = context.Background()

// countingOpener serves a canned event stream and counts upstream requests.
type countingOpener struct {
	calls atomic.Int32
	last  relay.ChatRequest
	body  string
}

func (o *countingOpener) Open(_ context.Context, _ relay.Endpoint, req relay.ChatRequest) (io.ReadCloser, error) {
	o.calls.Add(1)
	o.last = req
	return io.NopCloser(strings.NewReader(o.body)), nil
}

type fixture struct {
	store  *board.Store
	opener *countingOpener
	svc    *assist.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := board.New(board.Config{DataDir: t.TempDir(), BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("board.New: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	opener := &countingOpener{
		body: "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\ndata: [DONE]\n\n",
	}
	svc := assist.NewService(
		store,
		provider.NewResolver(store, provider.Settings{}),
		contextgraph.NewResolver(store, nil),
		relay.New(opener, relay.DefaultSettings(), nil),
		nil,
	)
	return &fixture{store: store, opener: opener, svc: svc}
}

func (f *fixture) configure(t *testing.T) {
	t.Helper()
	err := f.store.SaveModelConfig(ctx, board.ModelConfig{
		Provider: "openai",
		APIBase:  "https://api.example.com/v1",
		APIKey:   "sk-abcdefghijkl",
		Models:   []string{"gpt-4o", "o3-mini"},
	})
	if err != nil {
		t.Fatalf("SaveModelConfig: %v", err)
	}
}

func (f *fixture) note(t *testing.T, boardID int64, title, createdAt string) int64 {
	t.Helper()
	id, err := f.store.CreateNote(ctx, board.CreateNoteParams{
		BoardID: boardID, Title: title, Content: title + " body", CreatedAt: createdAt,
	})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	return id
}

func (f *fixture) connect(t *testing.T, from, to, boardID int64) {
	t.Helper()
	if _, err := f.store.Connect(ctx, from, to, boardID); err != nil {
		t.Fatalf("Connect: %v", err)
	}
}

func ptr[T any](v T) *T { return &v }

// ─── Request ────────────────────────────────────────────────────────────────

func TestRequest_Defaults(t *testing.T) {
	var r assist.Request
	if r.Board() != board.DefaultBoardID {
		t.Errorf("Board() = %d, want %d", r.Board(), board.DefaultBoardID)
	}
	if r.Depth(3) != 3 {
		t.Errorf("Depth(3) = %d, want 3", r.Depth(3))
	}
	if !r.Reasoning() {
		t.Error("Reasoning() should default to true")
	}

	r = assist.Request{BoardID: 4, ContextDepth: ptr(7), IncludeReasoning: ptr(false)}
	if r.Board() != 4 || r.Depth(3) != 7 || r.Reasoning() {
		t.Errorf("explicit values not honored: %+v", r)
	}

	// An explicit zero is a request, not an absence; the resolver clamps it.
	r = assist.Request{ContextDepth: ptr(0)}
	if r.Depth(3) != 0 {
		t.Errorf("Depth(3) with explicit 0 = %d, want 0", r.Depth(3))
	}
}

func TestRequest_Validate(t *testing.T) {
	for _, prompt := range []string{"", "   ", "\n\t"} {
		r := assist.Request{Prompt: prompt}
		if err := r.Validate(); !errors.Is(err, assist.ErrMissingPrompt) {
			t.Errorf("Validate(%q) = %v, want ErrMissingPrompt", prompt, err)
		}
	}
	r := assist.Request{Prompt: "go"}
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

// ─── Prepare ────────────────────────────────────────────────────────────────

func TestPrepare_ChainContext(t *testing.T) {
	f := newFixture(t)
	f.configure(t)
	bid, err := f.store.CreateBoard(ctx, "research", "Be brief.")
	if err != nil {
		t.Fatalf("CreateBoard: %v", err)
	}

	a := f.note(t, bid, "A", "2025-01-01 00:00:01")
	b := f.note(t, bid, "B", "2025-01-01 00:00:02")
	c := f.note(t, bid, "C", "2025-01-01 00:00:03")
	f.connect(t, a, b, bid)
	f.connect(t, b, c, bid)

	p, err := f.svc.Prepare(ctx, assist.Request{Prompt: "  next?  ", BoardID: bid, SourceNoteID: &c, ContextDepth: ptr(2)})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}

	want := []conversation.Message{
		{Role: conversation.RoleSystem, Content: "Be brief."},
		{Role: conversation.RoleUser, Content: "A"},
		{Role: conversation.RoleAssistant, Content: "A body"},
		{Role: conversation.RoleUser, Content: "B"},
		{Role: conversation.RoleAssistant, Content: "B body"},
		{Role: conversation.RoleUser, Content: "  next?  "},
	}
	if diff := cmp.Diff(want, p.Plan.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if p.Plan.Model != "gpt-4o" || p.Plan.Reasoning {
		t.Errorf("plan model = %q reasoning = %v", p.Plan.Model, p.Plan.Reasoning)
	}
	if !p.Plan.IncludeReasoning {
		t.Error("IncludeReasoning should default to true")
	}
	if p.Context == nil || p.Context.Reached() != 2 {
		t.Errorf("context levels = %+v", p.Context)
	}
}

func TestPrepare_NoSourceNote(t *testing.T) {
	f := newFixture(t)
	f.configure(t)

	p, err := f.svc.Prepare(ctx, assist.Request{Prompt: "hello", Model: "o3-mini"})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	want := []conversation.Message{{Role: conversation.RoleUser, Content: "hello"}}
	if diff := cmp.Diff(want, p.Plan.Messages); diff != "" {
		t.Errorf("messages mismatch (-want +got):\n%s", diff)
	}
	if !p.Plan.Reasoning {
		t.Error("o3-mini should be classified as a reasoning model")
	}
	if p.Context != nil {
		t.Error("Context should be nil without a source note")
	}
}

func TestPrepare_DefaultDepth(t *testing.T) {
	f := newFixture(t)
	f.configure(t)

	// Chain of five notes ending in the start note.
	var ids []int64
	for i, title := range []string{"n1", "n2", "n3", "n4", "n5"} {
		ids = append(ids, f.note(t, 1, title, fmt.Sprintf("2025-01-01 00:00:%02d", i)))
		if i > 0 {
			f.connect(t, ids[i-1], ids[i], 1)
		}
	}
	start := ids[len(ids)-1]

	p, err := f.svc.Prepare(ctx, assist.Request{Prompt: "x", SourceNoteID: &start})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.Context.Depth != assist.DefaultContextDepth || p.Context.Reached() != 3 {
		t.Errorf("depth = %d reached = %d, want 3/3", p.Context.Depth, p.Context.Reached())
	}

	f.svc.SetDefaultDepth(1)
	p, err = f.svc.Prepare(ctx, assist.Request{Prompt: "x", SourceNoteID: &start})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if p.Context.Reached() != 1 {
		t.Errorf("reached = %d after SetDefaultDepth(1), want 1", p.Context.Reached())
	}
}

func TestPrepare_Errors(t *testing.T) {
	f := newFixture(t)
	f.configure(t)
	missing := int64(9999)

	tests := []struct {
		name string
		req  assist.Request
		want error
	}{
		{"missing prompt", assist.Request{Prompt: " "}, assist.ErrMissingPrompt},
		{"unknown provider", assist.Request{Prompt: "x", Provider: "nope"}, provider.ErrConfigurationMissing},
		{"unknown board", assist.Request{Prompt: "x", BoardID: 42}, assist.ErrBoardNotFound},
		{"unknown note", assist.Request{Prompt: "x", SourceNoteID: &missing}, contextgraph.ErrNoteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Prepare(ctx, tt.req)
			if !errors.Is(err, tt.want) {
				t.Errorf("Prepare() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestAssemble_WithoutProvider(t *testing.T) {
	f := newFixture(t)
	a := f.note(t, 1, "A", "")
	b := f.note(t, 1, "B", "")
	f.connect(t, a, b, 1)

	got, err := f.svc.Assemble(ctx, assist.Request{Prompt: "q", SourceNoteID: &b})
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if len(got.Messages) != 3 {
		t.Errorf("got %d messages, want 3", len(got.Messages))
	}
}

// ─── Generate ───────────────────────────────────────────────────────────────

func TestGenerate_ConfigurationMissingOpensNoConnection(t *testing.T) {
	f := newFixture(t)

	var c relay.Collector
	err := f.svc.Generate(ctx, assist.Request{Prompt: "hi"}, &c)
	if !errors.Is(err, provider.ErrConfigurationMissing) {
		t.Fatalf("Generate() error = %v, want ErrConfigurationMissing", err)
	}
	if n := f.opener.calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
	if len(c.Frames()) != 0 {
		t.Errorf("frames written before stream: %v", c.Frames())
	}
}

func TestGenerate_MissingPromptOpensNoConnection(t *testing.T) {
	f := newFixture(t)
	f.configure(t)

	var c relay.Collector
	err := f.svc.Generate(ctx, assist.Request{}, &c)
	if !errors.Is(err, assist.ErrMissingPrompt) {
		t.Fatalf("Generate() error = %v", err)
	}
	if n := f.opener.calls.Load(); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestGenerate_Streams(t *testing.T) {
	f := newFixture(t)
	f.configure(t)

	var c relay.Collector
	if err := f.svc.Generate(ctx, assist.Request{Prompt: "hi", Provider: "openai"}, &c); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !c.Done() {
		t.Error("stream did not complete")
	}
	if got := c.Text(); got != relay.Banner("gpt-4o")+"ok" {
		t.Errorf("Text() = %q", got)
	}
	if f.opener.calls.Load() != 1 {
		t.Errorf("upstream calls = %d, want 1", f.opener.calls.Load())
	}
	if f.opener.last.Model != "gpt-4o" {
		t.Errorf("upstream model = %q", f.opener.last.Model)
	}
}

// failingGraph fails every read after the start note.
type failingGraph struct{ board.Note }

func (g failingGraph) GetNote(context.Context, int64) (*board.Note, error) {
	n := g.Note
	return &n, nil
}

func (failingGraph) GetParents(context.Context, int64, int64) ([]board.Note, error) {
	return nil, errors.New("disk I/O error")
}

func TestGenerate_GraphReadFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.configure(t)

	opener := &countingOpener{}
	svc := assist.NewService(
		f.store,
		provider.NewResolver(f.store, provider.Settings{}),
		contextgraph.NewResolver(failingGraph{board.Note{ID: 5, BoardID: 1}}, nil),
		relay.New(opener, relay.DefaultSettings(), nil),
		nil,
	)

	id := int64(5)
	var c relay.Collector
	err := svc.Generate(ctx, assist.Request{Prompt: "x", SourceNoteID: &id}, &c)
	if !errors.Is(err, contextgraph.ErrGraphRead) {
		t.Fatalf("Generate() error = %v, want ErrGraphRead", err)
	}
	if opener.calls.Load() != 0 {
		t.Error("upstream was contacted after a graph read failure")
	}
}
