package board

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a note or board does not exist or is deleted.
var ErrNotFound = errors.New("board: not found")

const noteColumns = `n.id, n.wall_id, n.title, n.content, n.position_x, n.position_y,
	n.created_at, n.updated_at, n.deleted_at`

// ─── Notes ───────────────────────────────────────────────────────────────────

// CreateNote inserts a note and returns its ID.
func (s *Store) CreateNote(ctx context.Context, p CreateNoteParams) (int64, error) {
	if p.BoardID == 0 {
		p.BoardID = DefaultBoardID
	}
	if p.Title == "" {
		return 0, fmt.Errorf("board: note title is required")
	}

	if p.CreatedAt == "" {
		p.CreatedAt = now()
	}

	res, err := s.execHook(ctx, s.db,
		`INSERT INTO notes (wall_id, title, content, position_x, position_y, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.BoardID, p.Title, p.Content, p.PositionX, p.PositionY, p.CreatedAt, p.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("board: creating note: %w", err)
	}
	return res.LastInsertId()
}

// GetNote retrieves a note by ID. Soft-deleted notes yield ErrNotFound.
func (s *Store) GetNote(ctx context.Context, id int64) (*Note, error) {
	notes, err := s.queryNotes(ctx,
		`SELECT `+noteColumns+` FROM notes n WHERE n.id = ? AND n.deleted_at IS NULL`, id)
	if err != nil {
		return nil, fmt.Errorf("board: get note %d: %w", id, err)
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	return &notes[0], nil
}

// DeleteNote moves a note to the recycle bin (soft delete).
func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	res, err := s.execHook(ctx, s.db,
		`UPDATE notes
		 SET deleted_at = datetime('now'),
		     updated_at = datetime('now')
		 WHERE id = ? AND deleted_at IS NULL`,
		id,
	)
	if err != nil {
		return fmt.Errorf("board: deleting note: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("note %d: %w", id, ErrNotFound)
	}
	return nil
}

// ─── Connections ─────────────────────────────────────────────────────────────

// Connect creates a directed connection source → target on a board.
// Self-loops and duplicate connections are rejected; cycles are not.
func (s *Store) Connect(ctx context.Context, sourceID, targetID, boardID int64) (int64, error) {
	if sourceID == targetID {
		return 0, fmt.Errorf("cannot connect note %d to itself", sourceID)
	}
	if boardID == 0 {
		boardID = DefaultBoardID
	}

	for _, id := range []int64{sourceID, targetID} {
		if _, err := s.GetNote(ctx, id); err != nil {
			return 0, err
		}
	}

	res, err := s.execHook(ctx, s.db,
		`INSERT INTO connections (source_id, target_id, wall_id) VALUES (?, ?, ?)`,
		sourceID, targetID, boardID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("connection already exists: %d → %d (board %d)", sourceID, targetID, boardID)
		}
		return 0, fmt.Errorf("board: creating connection: %w", err)
	}
	return res.LastInsertId()
}

// GetParents returns the undeleted notes on boardID that have a connection
// into noteID on that same board, oldest first.
func (s *Store) GetParents(ctx context.Context, noteID, boardID int64) ([]Note, error) {
	notes, err := s.queryNotes(ctx,
		`SELECT DISTINCT `+noteColumns+`
		 FROM connections c
		 JOIN notes n ON n.id = c.source_id
		 WHERE c.target_id = ?
		   AND c.wall_id = ?
		   AND n.wall_id = ?
		   AND n.deleted_at IS NULL
		 ORDER BY n.created_at ASC, n.id ASC`,
		noteID, boardID, boardID,
	)
	if err != nil {
		return nil, fmt.Errorf("board: parents of %d: %w", noteID, err)
	}
	return notes, nil
}

func (s *Store) queryNotes(ctx context.Context, query string, args ...any) ([]Note, error) {
	rows, err := s.queryHook(ctx, s.db, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(
			&n.ID, &n.BoardID, &n.Title, &n.Content, &n.PositionX, &n.PositionY,
			&n.CreatedAt, &n.UpdatedAt, &n.DeletedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, n)
	}
	return results, rows.Err()
}
