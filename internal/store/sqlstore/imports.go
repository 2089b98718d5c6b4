package sqlstore

import (
	"context"
	"fmt"

	"github.com/goblin-dev/goblin/internal/model"
)

// LogImport appends one import log entry.
func (s *Store) LogImport(ctx context.Context, entry *model.ImportLog) (int64, error) {
	id, err := s.insert(ctx, `
		INSERT INTO import_log (run_id, filename, imported_at, records_added) VALUES (?, ?, ?, ?)`,
		entry.RunID, entry.Filename, entry.ImportedAt.UTC(), entry.RecordsAdded)
	if err != nil {
		return 0, fmt.Errorf("insert import log: %w", err)
	}
	entry.ID = id
	return id, nil
}

// ListImports returns the import log, newest first.
func (s *Store) ListImports(ctx context.Context) ([]model.ImportLog, error) {
	rows, err := s.query(ctx, `
		SELECT id, run_id, filename, imported_at, records_added
		FROM import_log
		ORDER BY imported_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query import log: %w", err)
	}
	defer rows.Close()

	var entries []model.ImportLog
	for rows.Next() {
		var e model.ImportLog
		if err := rows.Scan(&e.ID, &e.RunID, &e.Filename, &e.ImportedAt, &e.RecordsAdded); err != nil {
			return nil, fmt.Errorf("scan import log: %w", err)
		}
		e.ImportedAt = e.ImportedAt.UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
