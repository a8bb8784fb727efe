// Package contextgraph walks the note connection graph backward from a
// starting note and collects its ancestors level by level.
package contextgraph

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/HendryAvila/stickyboard/internal/board"
	"go.uber.org/zap"
)

// Depth bounds for a traversal.
const (
	MinDepth = 1
	MaxDepth = 24
)

var (
	// ErrGraphRead wraps any store failure during traversal.
	ErrGraphRead = errors.New("graph read failed")
	// ErrNoteNotFound is returned when the starting note does not exist or is deleted.
	ErrNoteNotFound = errors.New("note not found")
)

// GraphReader is the read-only view of notes and connections the resolver needs.
type GraphReader interface {
	GetNote(ctx context.Context, id int64) (*board.Note, error)
	GetParents(ctx context.Context, noteID, boardID int64) ([]board.Note, error)
}

// Query identifies one traversal.
type Query struct {
	NoteID  int64
	BoardID int64
	Depth   int
}

// Level is the set of ancestors found at one distance from the start note.
type Level struct {
	Distance int          `json:"distance"`
	Notes    []board.Note `json:"notes"`
}

// Result holds the traversal output.
type Result struct {
	Root   board.Note `json:"root"`
	Depth  int        `json:"depth"`  // clamped depth that was requested
	Levels []Level    `json:"levels"` // Levels[i].Distance == i+1
}

// Ancestors flattens the levels into causal order: the most distant level
// first, the direct parents last. Each level keeps its creation order.
func (r *Result) Ancestors() []board.Note {
	var out []board.Note
	for i := len(r.Levels) - 1; i >= 0; i-- {
		out = append(out, r.Levels[i].Notes...)
	}
	return out
}

// Reached returns the deepest distance at which any ancestor was found.
func (r *Result) Reached() int {
	return len(r.Levels)
}

// ClampDepth forces a requested depth into [MinDepth, MaxDepth].
func ClampDepth(depth int) int {
	if depth < MinDepth {
		return MinDepth
	}
	if depth > MaxDepth {
		return MaxDepth
	}
	return depth
}

// Resolver performs bounded reverse breadth-first traversal.
type Resolver struct {
	graph  GraphReader
	logger *zap.Logger
}

// NewResolver creates a Resolver reading from graph.
func NewResolver(graph GraphReader, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{graph: graph, logger: logger}
}

// Resolve collects the ancestors of q.NoteID on q.BoardID up to the clamped depth.
//
// A note is expanded at most once, so cycles terminate. The same note may
// still be recorded on several levels when it is reachable at several
// distances; within a level it appears once.
func (r *Resolver) Resolve(ctx context.Context, q Query) (*Result, error) {
	depth := ClampDepth(q.Depth)

	root, err := r.graph.GetNote(ctx, q.NoteID)
	if err != nil {
		if errors.Is(err, board.ErrNotFound) {
			return nil, fmt.Errorf("%w: %d", ErrNoteNotFound, q.NoteID)
		}
		return nil, fmt.Errorf("%w: note %d: %v", ErrGraphRead, q.NoteID, err)
	}

	type queueItem struct {
		id       int64
		distance int
	}

	expanded := map[int64]bool{}
	// levelSeen[d] dedupes notes recorded at distance d.
	levelSeen := map[int]map[int64]bool{}
	levels := map[int][]board.Note{}
	reached := 0

	queue := []queueItem{{id: root.ID, distance: 0}}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if current.distance >= depth || expanded[current.id] {
			continue
		}
		expanded[current.id] = true

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		parents, err := r.graph.GetParents(ctx, current.id, q.BoardID)
		if err != nil {
			return nil, fmt.Errorf("%w: parents of %d: %v", ErrGraphRead, current.id, err)
		}

		next := current.distance + 1
		for _, p := range parents {
			if p.ID == root.ID {
				continue
			}
			seen := levelSeen[next]
			if seen == nil {
				seen = map[int64]bool{}
				levelSeen[next] = seen
			}
			if seen[p.ID] {
				continue
			}
			seen[p.ID] = true
			levels[next] = append(levels[next], p)
			if next > reached {
				reached = next
			}

			if !expanded[p.ID] {
				queue = append(queue, queueItem{id: p.ID, distance: next})
			}
		}
	}

	result := &Result{Root: *root, Depth: depth}
	for d := 1; d <= reached; d++ {
		notes := levels[d]
		slices.SortStableFunc(notes, compareCreated)
		result.Levels = append(result.Levels, Level{Distance: d, Notes: notes})
	}

	r.logger.Debug("context resolved",
		zap.Int64("note_id", root.ID),
		zap.Int64("board_id", q.BoardID),
		zap.Int("depth", depth),
		zap.Int("reached", reached),
		zap.Int("expanded", len(expanded)),
	)

	return result, nil
}

// compareCreated orders notes by creation time, then by ID.
// SQLite datetime text sorts lexically in chronological order.
func compareCreated(a, b board.Note) int {
	switch {
	case a.CreatedAt < b.CreatedAt:
		return -1
	case a.CreatedAt > b.CreatedAt:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}
