package categories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"biblioteca-backend/internal/platform/db"
)

type Store struct{ db *sqlx.DB }

func NewStore(conn *sqlx.DB) *Store { return &Store{db: conn} }

const selectWithCount = `
SELECT c.category_id, c.description, COUNT(b.book_id) AS book_count
FROM categories c
LEFT JOIN books b ON b.category_id = c.category_id`

func (s *Store) List(ctx context.Context) ([]Category, error) {
	const q = selectWithCount + `
GROUP BY c.category_id, c.description
ORDER BY c.category_id`
	out := []Category{}
	if err := db.Conn(ctx, s.db).SelectContext(ctx, &out, q); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

// GetByID: 無ければ nil, nil
func (s *Store) GetByID(ctx context.Context, id string) (*Category, error) {
	const q = selectWithCount + `
WHERE c.category_id = ?
GROUP BY c.category_id, c.description`
	var c Category
	if err := db.Conn(ctx, s.db).GetContext(ctx, &c, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get category: %w", err)
	}
	return &c, nil
}

func (s *Store) Insert(ctx context.Context, c *Category) error {
	const q = `INSERT INTO categories (category_id, description) VALUES (?, ?)`
	_, err := db.Conn(ctx, s.db).ExecContext(ctx, q, c.ID, c.Description)
	return err
}

// UpdateDescription は対象が無ければ false
func (s *Store) UpdateDescription(ctx context.Context, id, desc string) (bool, error) {
	const q = `UPDATE categories SET description = ? WHERE category_id = ?`
	res, err := db.Conn(ctx, s.db).ExecContext(ctx, q, desc, id)
	if err != nil {
		return false, fmt.Errorf("update category: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Delete: 本から参照されていれば driver の 1451 がそのまま返る
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	const q = `DELETE FROM categories WHERE category_id = ?`
	res, err := db.Conn(ctx, s.db).ExecContext(ctx, q, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
