package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"biblioteca-backend/internal/platform/db"
)

// Account は patrons テーブルのうち認証に使う列
type Account struct {
	ID           string    `db:"patron_id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Phone        string    `db:"phone"`
	Role         string    `db:"role"`
	Active       bool      `db:"active"`
	SearchKey    string    `db:"search_key"`
	CreatedAt    time.Time `db:"created_at"`
}

type AccountStore interface {
	GetByEmail(ctx context.Context, email string) (*Account, error)
	Create(ctx context.Context, a *Account) error
}

type Store struct{ db *sqlx.DB }

func NewStore(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	const q = `
SELECT patron_id, name, email, password_hash, phone, role, active, search_key, created_at
FROM patrons
WHERE email = ?
LIMIT 1
`
	var a Account
	err := db.Conn(ctx, s.db).GetContext(ctx, &a, q, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Store) Create(ctx context.Context, a *Account) error {
	const q = `
INSERT INTO patrons (patron_id, name, email, password_hash, phone, role, active, search_key, created_at)
VALUES (?, ?, ?, ?, ?, ?, 1, ?, NOW(6))
`
	_, err := db.Conn(ctx, s.db).ExecContext(ctx, q, a.ID, a.Name, a.Email, a.PasswordHash, a.Phone, a.Role, a.SearchKey)
	if n, ok := db.MySQLErrorNumber(err); ok && n == db.ErrDuplicateEntry {
		return ErrAlreadyExists
	}
	return err
}
