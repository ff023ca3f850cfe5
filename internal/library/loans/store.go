package loans

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

type Store struct{ db *sqlx.DB }

func NewStore(conn *sqlx.DB) *Store { return &Store{db: conn} }

func recordCols() []any {
	return []any{
		goqu.I("l.loan_id"), goqu.I("l.book_id"), goqu.I("l.copy_id"), goqu.I("l.patron_id"),
		goqu.I("l.status"), goqu.I("l.loan_type"), goqu.I("l.loan_date"), goqu.I("l.due_date"),
		goqu.I("l.actual_return_date"), goqu.I("l.reserved_at"), goqu.I("l.reservation_expires_at"),
		goqu.I("l.created_at"), goqu.I("l.updated_at"),
		goqu.I("p.name").As("patron_name"),
		goqu.I("p.email").As("patron_email"),
		goqu.I("b.title").As("book_title"),
		goqu.I("b.author").As("book_author"),
		goqu.I("b.isbn").As("book_isbn"),
		goqu.I("c.cdu").As("copy_cdu"),
		goqu.I("c.location").As("copy_location"),
		goqu.I("c.building").As("copy_building"),
		goqu.I("c.status").As("copy_status"),
	}
}

func joinedLoans() *goqu.SelectDataset {
	return dialect.From(goqu.T("loans").As("l")).
		Join(goqu.T("patrons").As("p"), goqu.On(goqu.I("p.patron_id").Eq(goqu.I("l.patron_id")))).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_id").Eq(goqu.I("l.book_id")))).
		LeftJoin(goqu.T("book_copies").As("c"), goqu.On(goqu.I("c.copy_id").Eq(goqu.I("l.copy_id"))))
}

func filterExprs(f Filter) []exp.Expression {
	var where []exp.Expression
	if len(f.Statuses) > 0 {
		vals := make([]any, 0, len(f.Statuses))
		for _, st := range f.Statuses {
			vals = append(vals, string(st))
		}
		where = append(where, goqu.I("l.status").In(vals...))
	}
	if f.PatronID != "" {
		where = append(where, goqu.I("l.patron_id").Eq(f.PatronID))
	}
	if f.CopyID != "" {
		where = append(where, goqu.I("l.copy_id").Eq(f.CopyID))
	}
	if f.DueBefore != nil {
		where = append(where, goqu.I("l.due_date").Lt(*f.DueBefore))
	}
	if f.DueFrom != nil {
		where = append(where, goqu.I("l.due_date").Gte(*f.DueFrom))
	}
	if f.DueUntil != nil {
		where = append(where, goqu.I("l.due_date").Lte(*f.DueUntil))
	}
	if f.ExpiresBefore != nil {
		where = append(where, goqu.I("l.reservation_expires_at").Lt(*f.ExpiresBefore))
	}
	if f.ExpiresFrom != nil {
		where = append(where, goqu.I("l.reservation_expires_at").Gte(*f.ExpiresFrom))
	}
	if f.PatronSearch != "" {
		where = append(where, goqu.I("p.search_key").ILike(textutil.LikePattern(f.PatronSearch)))
	}
	return where
}

// buildFindQuery: loan_date の新しい順
func buildFindQuery(f Filter) *goqu.SelectDataset {
	q := joinedLoans().Select(recordCols()...).
		Where(filterExprs(f)...).
		Order(goqu.I("l.loan_date").Desc(), goqu.I("l.loan_id").Desc())
	if f.Limit > 0 {
		q = q.Limit(uint(f.Limit))
	}
	if f.Offset > 0 {
		q = q.Offset(uint(f.Offset))
	}
	return q
}

func buildCountQuery(f Filter) *goqu.SelectDataset {
	return joinedLoans().Select(goqu.COUNT("*")).Where(filterExprs(f)...)
}

func (s *Store) Create(ctx context.Context, l *Loan) error {
	const q = `
INSERT INTO loans (loan_id, book_id, copy_id, patron_id, status, loan_type, loan_date, due_date,
	actual_return_date, reserved_at, reservation_expires_at, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, CURRENT_TIMESTAMP(6), CURRENT_TIMESTAMP(6))`
	_, err := db.Conn(ctx, s.db).ExecContext(ctx, q,
		l.ID, l.BookID, l.CopyID, l.PatronID, l.Status, l.LoanType, l.LoanDate, l.DueDate,
		l.ReservedAt, l.ReservationExpiresAt)
	if n, ok := db.MySQLErrorNumber(err); ok && n == db.ErrDuplicateEntry {
		// uq_loans_live_copy: 同じ ejemplar に生きている貸出がある
		return ErrCopyTaken
	}
	if err != nil {
		return fmt.Errorf("insert loan: %w", err)
	}
	return nil
}

// GetByID: 無ければ nil, nil
func (s *Store) GetByID(ctx context.Context, id string) (*LoanRecord, error) {
	q, args, err := joinedLoans().Select(recordCols()...).
		Where(goqu.I("l.loan_id").Eq(id)).
		Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build get loan: %w", err)
	}
	var rec LoanRecord
	if err := db.Conn(ctx, s.db).GetContext(ctx, &rec, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return &rec, nil
}

func (s *Store) Find(ctx context.Context, f Filter) ([]LoanRecord, error) {
	q, args, err := buildFindQuery(f).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build find loans: %w", err)
	}
	out := []LoanRecord{}
	if err := db.Conn(ctx, s.db).SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("find loans: %w", err)
	}
	return out, nil
}

func (s *Store) Count(ctx context.Context, f Filter) (int, error) {
	q, args, err := buildCountQuery(f).Prepared(true).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build count loans: %w", err)
	}
	var n int
	if err := db.Conn(ctx, s.db).GetContext(ctx, &n, q, args...); err != nil {
		return 0, fmt.Errorf("count loans: %w", err)
	}
	return n, nil
}

func buildUpdate(id string, ch Changes, expected Status) *goqu.UpdateDataset {
	rec := goqu.Record{"updated_at": goqu.L("CURRENT_TIMESTAMP(6)")}
	if ch.Status != nil {
		rec["status"] = string(*ch.Status)
	}
	if ch.LoanDate != nil {
		rec["loan_date"] = *ch.LoanDate
	}
	if ch.DueDate != nil {
		rec["due_date"] = *ch.DueDate
	}
	if ch.ActualReturnDate != nil {
		rec["actual_return_date"] = *ch.ActualReturnDate
	}
	if ch.ClearReservation {
		rec["reserved_at"] = nil
		rec["reservation_expires_at"] = nil
	}

	u := dialect.Update("loans").Set(rec).Where(goqu.C("loan_id").Eq(id))
	if expected != "" {
		u = u.Where(goqu.C("status").Eq(string(expected)))
	}
	return u
}

// UpdateFields は status が expected の時だけ更新する（expected が空なら無条件）。
// 条件に合わず更新されなかった場合は nil, nil
func (s *Store) UpdateFields(ctx context.Context, id string, ch Changes, expected Status) (*LoanRecord, error) {
	q, args, err := buildUpdate(id, ch, expected).Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build update loan: %w", err)
	}
	res, err := db.Conn(ctx, s.db).ExecContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("update loan: %w", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		return nil, nil
	}
	return s.GetByID(ctx, id)
}

func (s *Store) ExistsActiveForCopy(ctx context.Context, copyID string) (bool, error) {
	const q = `SELECT EXISTS(SELECT 1 FROM loans WHERE copy_id = ? AND status IN (?, ?))`
	var ok bool
	if err := db.Conn(ctx, s.db).GetContext(ctx, &ok, q, copyID, StatusActive, StatusReserved); err != nil {
		return false, fmt.Errorf("exists active loan: %w", err)
	}
	return ok, nil
}

func (s *Store) AppendNotification(ctx context.Context, n Notification) error {
	const q = `INSERT INTO loan_notifications (notification_id, loan_id, subject, message, sent_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := db.Conn(ctx, s.db).ExecContext(ctx, q, n.ID, n.LoanID, n.Subject, n.Message, n.SentAt); err != nil {
		return fmt.Errorf("append notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, loanID string) ([]Notification, error) {
	const q = `
SELECT notification_id, loan_id, subject, message, sent_at
FROM loan_notifications
WHERE loan_id = ?
ORDER BY sent_at, notification_id`
	out := []Notification{}
	if err := db.Conn(ctx, s.db).SelectContext(ctx, &out, q, loanID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}
