package board

import (
	"context"
	"database/sql"
)

// FailQueries makes every subsequent read query return err.
func (s *Store) FailQueries(err error) {
	s.hooks.query = func(context.Context, queryer, string, ...any) (*sql.Rows, error) {
		return nil, err
	}
}
