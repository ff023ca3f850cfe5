package loans

import (
	"database/sql"
	"time"
)

// Status は保存される状態。atrasado は表示用で保存しない
type Status string

const (
	StatusActive    Status = "activo"
	StatusReserved  Status = "reserva"
	StatusClosed    Status = "cerrado"
	StatusCancelled Status = "cancelado"
	StatusOverdue   Status = "atrasado"
)

type LoanType string

const (
	LoanStudent LoanType = "estudiante"
	LoanFaculty LoanType = "docente"
	LoanOther   LoanType = "otro"
)

func ParseLoanType(s string) (LoanType, bool) {
	switch LoanType(s) {
	case LoanStudent, LoanFaculty, LoanOther:
		return LoanType(s), true
	}
	return "", false
}

// Loan は loans テーブルの1行
type Loan struct {
	ID                   string       `db:"loan_id"`
	BookID               string       `db:"book_id"`
	CopyID               string       `db:"copy_id"`
	PatronID             string       `db:"patron_id"`
	Status               Status       `db:"status"`
	LoanType             LoanType     `db:"loan_type"`
	LoanDate             time.Time    `db:"loan_date"`
	DueDate              time.Time    `db:"due_date"`
	ActualReturnDate     sql.NullTime `db:"actual_return_date"`
	ReservedAt           sql.NullTime `db:"reserved_at"`
	ReservationExpiresAt sql.NullTime `db:"reservation_expires_at"`
	CreatedAt            time.Time    `db:"created_at"`
	UpdatedAt            time.Time    `db:"updated_at"`
}

// LoanRecord は一覧・詳細用に利用者・本・ejemplar を JOIN した行
type LoanRecord struct {
	Loan

	PatronName   string         `db:"patron_name"`
	PatronEmail  string         `db:"patron_email"`
	BookTitle    string         `db:"book_title"`
	BookAuthor   string         `db:"book_author"`
	BookISBN     string         `db:"book_isbn"`
	CopyCDU      sql.NullString `db:"copy_cdu"` // ejemplar が削除済みなら NULL
	CopyLocation sql.NullString `db:"copy_location"`
	CopyBuilding sql.NullString `db:"copy_building"`
	CopyStatus   sql.NullString `db:"copy_status"`
}

// Notification は loan_notifications の1行（追記のみ）
type Notification struct {
	ID      string    `db:"notification_id"`
	LoanID  string    `db:"loan_id"`
	Subject string    `db:"subject"`
	Message string    `db:"message"`
	SentAt  time.Time `db:"sent_at"`
}

// Filter は Find / Count の条件。ゼロ値の項目は無視
type Filter struct {
	Statuses      []Status
	PatronID      string
	CopyID        string
	DueBefore     *time.Time // due_date <  t
	DueFrom       *time.Time // due_date >= t
	DueUntil      *time.Time // due_date <= t
	ExpiresBefore *time.Time // reservation_expires_at <  t
	ExpiresFrom   *time.Time // reservation_expires_at >= t
	PatronSearch  string     // patrons.search_key の部分一致
	Limit         int
	Offset        int
}

// Changes は UpdateFields で書き換える列。nil は変更なし
type Changes struct {
	Status           *Status
	LoanDate         *time.Time
	DueDate          *time.Time
	ActualReturnDate *time.Time
	ClearReservation bool
}
