package patrons

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/jmoiron/sqlx"

	"biblioteca-backend/internal/platform/db"
	"biblioteca-backend/internal/platform/textutil"
)

type Store struct{ db *sqlx.DB }

func NewStore(conn *sqlx.DB) *Store { return &Store{db: conn} }

var selectCols = []any{"patron_id", "name", "email", "phone", "role", "active", "search_key"}

// GetByID: 無ければ nil, nil
func (s *Store) GetByID(ctx context.Context, id string) (*Patron, error) {
	const q = `SELECT patron_id, name, email, phone, role, active, search_key FROM patrons WHERE patron_id = ?`
	var p Patron
	if err := db.Conn(ctx, s.db).GetContext(ctx, &p, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get patron: %w", err)
	}
	return &p, nil
}

func buildSearchQuery(term string, limit int) *goqu.SelectDataset {
	return goqu.Dialect("mysql").From("patrons").
		Select(selectCols...).
		Where(
			goqu.C("active").IsTrue(),
			goqu.C("search_key").ILike(textutil.LikePattern(term)),
		).
		Order(goqu.C("name").Asc()).
		Limit(uint(limit))
}

// Search は名前・email の部分一致（有効な利用者のみ）
func (s *Store) Search(ctx context.Context, term string, limit int) ([]Patron, error) {
	q, args, err := buildSearchQuery(term, limit).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build patron search: %w", err)
	}
	out := []Patron{}
	if err := db.Conn(ctx, s.db).SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("search patrons: %w", err)
	}
	return out, nil
}
