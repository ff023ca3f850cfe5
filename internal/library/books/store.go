package books

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jmoiron/sqlx"

	"biblioteca-backend/internal/platform/db"
	"biblioteca-backend/internal/platform/textutil"
)

var dialect = goqu.Dialect("mysql")

const (
	bookCols = `book_id, title, author, isbn, publisher, category_id, registered_at, image_url, available, search_key, created_at, updated_at`
	copyCols = `copy_id, book_id, cdu, location, building, origin, price, donated_by, status, position`
)

type Store struct{ db *sqlx.DB }

func NewStore(conn *sqlx.DB) *Store { return &Store{db: conn} }

// ===== Ledger =====
// ejemplar の状態と books.available を一緒に書き換えるのはここだけ

// GetBookByID: 無ければ nil, nil
func (s *Store) GetBookByID(ctx context.Context, id string) (*Book, error) {
	const q = `SELECT ` + bookCols + ` FROM books WHERE book_id = ?`
	var b Book
	if err := db.Conn(ctx, s.db).GetContext(ctx, &b, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	copies, err := s.ListCopies(ctx, id)
	if err != nil {
		return nil, err
	}
	b.Copies = copies
	return &b, nil
}

func (s *Store) ListCopies(ctx context.Context, bookID string) ([]Copy, error) {
	const q = `SELECT ` + copyCols + ` FROM book_copies WHERE book_id = ? ORDER BY position, copy_id`
	out := []Copy{}
	if err := db.Conn(ctx, s.db).SelectContext(ctx, &out, q, bookID); err != nil {
		return nil, fmt.Errorf("list copies: %w", err)
	}
	return out, nil
}

// ListAvailableCopies: 本が無い場合も空スライス
func (s *Store) ListAvailableCopies(ctx context.Context, bookID string) ([]Copy, error) {
	const q = `SELECT ` + copyCols + ` FROM book_copies WHERE book_id = ? AND status = ? ORDER BY position, copy_id`
	out := []Copy{}
	if err := db.Conn(ctx, s.db).SelectContext(ctx, &out, q, bookID, CopyAvailable); err != nil {
		return nil, fmt.Errorf("list available copies: %w", err)
	}
	return out, nil
}

func (s *Store) GetCopy(ctx context.Context, copyID string) (*Copy, error) {
	const q = `SELECT ` + copyCols + ` FROM book_copies WHERE copy_id = ?`
	var c Copy
	if err := db.Conn(ctx, s.db).GetContext(ctx, &c, q, copyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get copy: %w", err)
	}
	return &c, nil
}

// FindCopyOwner は ejemplar を持つ本を返す。無ければ nil
func (s *Store) FindCopyOwner(ctx context.Context, copyID string) (*Book, error) {
	const q = `SELECT book_id FROM book_copies WHERE copy_id = ?`
	var bookID string
	if err := db.Conn(ctx, s.db).GetContext(ctx, &bookID, q, copyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find copy owner: %w", err)
	}
	return s.GetBookByID(ctx, bookID)
}

// SetCopyStatus は無条件に状態を書き換え、本の available を再計算する。
// ejemplar が無ければ nil, nil
func (s *Store) SetCopyStatus(ctx context.Context, copyID string, status CopyStatus) (*Book, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("set copy status: unknown status %q", status)
	}
	var owner *Book
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context) error {
		bookID, ok, err := s.lockCopyOwner(ctx, copyID)
		if err != nil || !ok {
			return err
		}
		const q = `UPDATE book_copies SET status = ? WHERE copy_id = ?`
		if _, err := db.Conn(ctx, s.db).ExecContext(ctx, q, status, copyID); err != nil {
			return fmt.Errorf("update copy status: %w", err)
		}
		if err := s.recomputeAvailability(ctx, bookID); err != nil {
			return err
		}
		owner, err = s.GetBookByID(ctx, bookID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return owner, nil
}

// TransitionCopyStatus は現在の状態が from の時だけ to に変える（CAS）。
// 変えられなければ false
func (s *Store) TransitionCopyStatus(ctx context.Context, copyID string, from, to CopyStatus) (bool, error) {
	if !to.Valid() {
		return false, fmt.Errorf("transition copy status: unknown status %q", to)
	}
	changed := false
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context) error {
		bookID, ok, err := s.lockCopyOwner(ctx, copyID)
		if err != nil || !ok {
			return err
		}
		q, args, err := buildCopyTransition(copyID, from, to).ToSQL()
		if err != nil {
			return fmt.Errorf("build copy transition: %w", err)
		}
		res, err := db.Conn(ctx, s.db).ExecContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("transition copy status: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil
		}
		changed = true
		return s.recomputeAvailability(ctx, bookID)
	})
	return changed, err
}

// AllocateCopy は本の最初の disponible な ejemplar を確保して to にする。
// 他の Tx がロック中の行は飛ばす。空きが無ければ nil, nil
func (s *Store) AllocateCopy(ctx context.Context, bookID string, to CopyStatus) (*Copy, error) {
	if to != CopyLoaned && to != CopyReserved {
		return nil, fmt.Errorf("allocate copy: target status %q", to)
	}
	var picked *Copy
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context) error {
		pick, pickArgs, err := buildPickCopy(bookID).ToSQL()
		if err != nil {
			return fmt.Errorf("build pick copy: %w", err)
		}
		var c Copy
		if err := db.Conn(ctx, s.db).GetContext(ctx, &c, pick, pickArgs...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil
			}
			return fmt.Errorf("pick copy: %w", err)
		}

		upd, updArgs, err := buildCopyTransition(c.ID, CopyAvailable, to).ToSQL()
		if err != nil {
			return fmt.Errorf("build allocate copy: %w", err)
		}
		res, err := db.Conn(ctx, s.db).ExecContext(ctx, upd, updArgs...)
		if err != nil {
			return fmt.Errorf("allocate copy: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil
		}
		if err := s.recomputeAvailability(ctx, bookID); err != nil {
			return err
		}
		c.Status = to
		picked = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return picked, nil
}

// buildPickCopy: 本の disponible な ejemplar を1つ、他の Tx がロック中の行は飛ばして取る
func buildPickCopy(bookID string) *goqu.SelectDataset {
	return dialect.From("book_copies").
		Select(copySelectCols()...).
		Where(goqu.C("book_id").Eq(bookID), goqu.C("status").Eq(string(CopyAvailable))).
		Order(goqu.C("position").Asc(), goqu.C("copy_id").Asc()).
		Limit(1).
		ForUpdate(exp.SkipLocked).
		Prepared(true)
}

// buildCopyTransition は status が from の時だけ書き換える UPDATE
func buildCopyTransition(copyID string, from, to CopyStatus) *goqu.UpdateDataset {
	return dialect.Update("book_copies").
		Set(goqu.Record{"status": string(to)}).
		Where(goqu.C("copy_id").Eq(copyID), goqu.C("status").Eq(string(from))).
		Prepared(true)
}

func copySelectCols() []any {
	return []any{"copy_id", "book_id", "cdu", "location", "building", "origin", "price", "donated_by", "status", "position"}
}

// 本の行を先にロックしておくと、同じ本の ejemplar 更新が available 再計算で交差しない
func (s *Store) lockCopyOwner(ctx context.Context, copyID string) (string, bool, error) {
	const q = `
SELECT b.book_id
FROM book_copies c
JOIN books b ON b.book_id = c.book_id
WHERE c.copy_id = ?
FOR UPDATE`
	var bookID string
	if err := db.Conn(ctx, s.db).GetContext(ctx, &bookID, q, copyID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lock copy: %w", err)
	}
	return bookID, true, nil
}

func (s *Store) recomputeAvailability(ctx context.Context, bookID string) error {
	const q = `
UPDATE books b
SET b.available = EXISTS (
	SELECT 1 FROM book_copies c WHERE c.book_id = b.book_id AND c.status = ?
), b.updated_at = CURRENT_TIMESTAMP(6)
WHERE b.book_id = ?`
	if _, err := db.Conn(ctx, s.db).ExecContext(ctx, q, CopyAvailable, bookID); err != nil {
		return fmt.Errorf("recompute availability: %w", err)
	}
	return nil
}

// ===== Catalog =====

func (s *Store) CategoryExists(ctx context.Context, id string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM categories WHERE category_id = ?)`
	var ok bool
	if err := db.Conn(ctx, s.db).GetContext(ctx, &ok, q, id); err != nil {
		return false, fmt.Errorf("category exists: %w", err)
	}
	return ok, nil
}

func (s *Store) InsertBook(ctx context.Context, b *Book) error {
	const q = `
INSERT INTO books (book_id, title, author, isbn, publisher, category_id, registered_at, image_url, available, search_key, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, ?, CURRENT_TIMESTAMP(6), CURRENT_TIMESTAMP(6))`
	_, err := db.Conn(ctx, s.db).ExecContext(ctx, q,
		b.ID, b.Title, b.Author, b.ISBN, b.Publisher, b.CategoryID, b.RegisteredAt, b.ImageURL, b.SearchKey)
	return err
}

// InsertCopy: position は本ごとの連番（末尾に追加）
func (s *Store) InsertCopy(ctx context.Context, c *Copy) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context) error {
		const lock = `SELECT COALESCE(MAX(position), 0) FROM book_copies WHERE book_id = ? FOR UPDATE`
		var last int
		if err := db.Conn(ctx, s.db).GetContext(ctx, &last, lock, c.BookID); err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		c.Position = last + 1

		const q = `
INSERT INTO book_copies (copy_id, book_id, cdu, location, building, origin, price, donated_by, status, position)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := db.Conn(ctx, s.db).ExecContext(ctx, q,
			c.ID, c.BookID, c.CDU, c.Location, c.Building, c.Origin, c.Price, c.DonatedBy, c.Status, c.Position); err != nil {
			return err
		}
		return s.recomputeAvailability(ctx, c.BookID)
	})
}

// DeleteCopy は貸出中・予約中でない ejemplar だけ消す。消せたら true
func (s *Store) DeleteCopy(ctx context.Context, bookID, copyID string) (bool, error) {
	deleted := false
	err := db.RunInTx(ctx, s.db, nil, func(ctx context.Context) error {
		const q = `DELETE FROM book_copies WHERE copy_id = ? AND book_id = ? AND status IN (?, ?)`
		res, err := db.Conn(ctx, s.db).ExecContext(ctx, q, copyID, bookID, CopyAvailable, CopyOutOfService)
		if err != nil {
			return fmt.Errorf("delete copy: %w", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			return nil
		}
		deleted = true
		return s.recomputeAvailability(ctx, bookID)
	})
	return deleted, err
}

func buildListBooksQuery(f BookFilter) *goqu.SelectDataset {
	q := dialect.From("books")
	if f.Query != "" {
		// mysql dialect の Like は LIKE BINARY になるので ILike（= LIKE）を使う
		q = q.Where(goqu.C("search_key").ILike(textutil.LikePattern(f.Query)))
	}
	if f.CategoryID != "" {
		q = q.Where(goqu.C("category_id").Eq(f.CategoryID))
	}
	if f.Available != nil {
		q = q.Where(goqu.C("available").Eq(*f.Available))
	}
	return q
}

func bookSelectCols() []any {
	return []any{"book_id", "title", "author", "isbn", "publisher", "category_id", "registered_at",
		"image_url", "available", "search_key", "created_at", "updated_at"}
}

func (s *Store) ListBooks(ctx context.Context, f BookFilter) ([]Book, int, error) {
	base := buildListBooksQuery(f)

	countSQL, countArgs, err := base.Select(goqu.COUNT("*")).Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build count: %w", err)
	}
	var total int
	if err := db.Conn(ctx, s.db).GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}

	listSQL, args, err := base.Select(bookSelectCols()...).
		Order(goqu.C("title").Asc(), goqu.C("book_id").Asc()).
		Limit(uint(f.Limit)).Offset(uint(f.Offset)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, 0, fmt.Errorf("build list: %w", err)
	}
	out := []Book{}
	if err := db.Conn(ctx, s.db).SelectContext(ctx, &out, listSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	return out, total, nil
}

// SearchAvailable: 空きのある本を title/author で検索し、空き ejemplar を付ける
func (s *Store) SearchAvailable(ctx context.Context, name string, limit int) ([]Book, error) {
	avail := true
	listSQL, args, err := buildListBooksQuery(BookFilter{Query: name, Available: &avail}).
		Select(bookSelectCols()...).
		Order(goqu.C("title").Asc()).
		Limit(uint(limit)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search: %w", err)
	}
	out := []Book{}
	if err := db.Conn(ctx, s.db).SelectContext(ctx, &out, listSQL, args...); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	for i := range out {
		copies, err := s.ListAvailableCopies(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Copies = copies
	}
	return out, nil
}
