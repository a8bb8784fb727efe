package board

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ─── Boards ──────────────────────────────────────────────────────────────────

// CreateBoard inserts a board and returns its ID.
func (s *Store) CreateBoard(ctx context.Context, title, systemPrompt string) (int64, error) {
	if strings.TrimSpace(title) == "" {
		return 0, fmt.Errorf("board: title is required")
	}
	res, err := s.execHook(ctx, s.db,
		`INSERT INTO boards (title, system_prompt) VALUES (?, ?)`, title, systemPrompt)
	if err != nil {
		return 0, fmt.Errorf("board: creating board: %w", err)
	}
	return res.LastInsertId()
}

// GetBoard retrieves a board by ID.
func (s *Store) GetBoard(ctx context.Context, id int64) (*Board, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, system_prompt, created_at, updated_at FROM boards WHERE id = ?`, id)
	var b Board
	if err := row.Scan(&b.ID, &b.Title, &b.SystemPrompt, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("board %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("board: get board %d: %w", id, err)
	}
	return &b, nil
}

// BoardSystemPrompt returns the system prompt configured on a board.
func (s *Store) BoardSystemPrompt(ctx context.Context, boardID int64) (string, error) {
	b, err := s.GetBoard(ctx, boardID)
	if err != nil {
		return "", err
	}
	return b.SystemPrompt, nil
}

// ─── Model configs ───────────────────────────────────────────────────────────

// SaveModelConfig inserts or replaces the configuration of one provider.
// An empty APIKey keeps the key already stored for that provider.
func (s *Store) SaveModelConfig(ctx context.Context, m ModelConfig) error {
	if m.Provider == "" || m.APIBase == "" || len(m.Models) == 0 {
		return fmt.Errorf("board: provider, api_base and models are required")
	}
	models, err := json.Marshal(m.Models)
	if err != nil {
		return fmt.Errorf("board: encoding models: %w", err)
	}

	if m.APIKey == "" {
		_, err = s.execHook(ctx, s.db,
			`INSERT INTO model_configs (provider, api_base, models) VALUES (?, ?, ?)
			 ON CONFLICT(provider) DO UPDATE SET
			     api_base = excluded.api_base,
			     models = excluded.models,
			     updated_at = datetime('now')`,
			m.Provider, m.APIBase, string(models),
		)
	} else {
		_, err = s.execHook(ctx, s.db,
			`INSERT INTO model_configs (provider, api_base, api_key, models) VALUES (?, ?, ?, ?)
			 ON CONFLICT(provider) DO UPDATE SET
			     api_base = excluded.api_base,
			     api_key = excluded.api_key,
			     models = excluded.models,
			     updated_at = datetime('now')`,
			m.Provider, m.APIBase, m.APIKey, string(models),
		)
	}
	if err != nil {
		return fmt.Errorf("board: saving model config %q: %w", m.Provider, err)
	}
	return nil
}

// ModelConfig returns the stored configuration for a provider.
// A missing provider yields ErrNotFound.
func (s *Store) ModelConfig(ctx context.Context, provider string) (*ModelConfig, error) {
	configs, err := s.queryModelConfigs(ctx,
		`SELECT id, provider, api_base, api_key, models FROM model_configs WHERE provider = ?`, provider)
	if err != nil {
		return nil, err
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("provider %q: %w", provider, ErrNotFound)
	}
	return &configs[0], nil
}

// ModelConfigs returns every stored provider configuration ordered by name.
func (s *Store) ModelConfigs(ctx context.Context) ([]ModelConfig, error) {
	return s.queryModelConfigs(ctx,
		`SELECT id, provider, api_base, api_key, models FROM model_configs ORDER BY provider`)
}

func (s *Store) queryModelConfigs(ctx context.Context, query string, args ...any) ([]ModelConfig, error) {
	rows, err := s.queryHook(ctx, s.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("board: querying model configs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []ModelConfig
	for rows.Next() {
		var (
			m      ModelConfig
			models string
		)
		if err := rows.Scan(&m.ID, &m.Provider, &m.APIBase, &m.APIKey, &models); err != nil {
			return nil, fmt.Errorf("board: scanning model config: %w", err)
		}
		if err := json.Unmarshal([]byte(models), &m.Models); err != nil {
			return nil, fmt.Errorf("board: decoding models of %q: %w", m.Provider, err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}
