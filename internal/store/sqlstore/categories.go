package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/goblin-dev/goblin/internal/model"
)

// FindOrCreateCategory returns the id of the category named name under
// parentID (nil = top level), creating it when absent.
func (s *Store) FindOrCreateCategory(ctx context.Context, name string, parentID *int64) (int64, error) {
	id, err := s.findCategory(ctx, name, parentID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("query category: %w", err)
	}

	id, err = s.insert(ctx, `INSERT INTO categories (name, parent_id) VALUES (?, ?)`, name, nullInt64(parentID))
	if isUniqueViolation(err) {
		// Lost a race with another writer; its row is the answer.
		id, err = s.findCategory(ctx, name, parentID)
	}
	if err != nil {
		return 0, fmt.Errorf("insert category: %w", err)
	}
	return id, nil
}

func (s *Store) findCategory(ctx context.Context, name string, parentID *int64) (int64, error) {
	var id int64
	err := s.queryRow(ctx, `SELECT id FROM categories WHERE name = ? AND parent_id IS NOT DISTINCT FROM ?`,
		name, nullInt64(parentID)).Scan(&id)
	return id, err
}

// ListCategories returns every category, top-level ones first.
func (s *Store) ListCategories(ctx context.Context) ([]model.Category, error) {
	return s.scanCategories(ctx, `
		SELECT id, name, parent_id FROM categories
		ORDER BY parent_id IS NOT NULL, name, id`)
}

// ChildCategories returns the direct children of parentID ordered by name.
func (s *Store) ChildCategories(ctx context.Context, parentID int64) ([]model.Category, error) {
	return s.scanCategories(ctx, `
		SELECT id, name, parent_id FROM categories
		WHERE parent_id = ?
		ORDER BY name, id`, parentID)
}

func (s *Store) scanCategories(ctx context.Context, query string, args ...any) ([]model.Category, error) {
	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		var parentID sql.NullInt64
		if err := rows.Scan(&c.ID, &c.Name, &parentID); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.ParentID = int64Ptr(parentID)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}
