package loans

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"biblioteca-backend/internal/library/books"
	"biblioteca-backend/internal/library/patrons"
	"biblioteca-backend/internal/platform/requestid"
	"biblioteca-backend/internal/platform/validate"
)

// 貸出期間の既定値
const DefaultLoanPeriod = 15 * 24 * time.Hour

const defaultDueSoonDays = 3

// ===== 依存 =====

type LoanStore interface {
	Create(ctx context.Context, l *Loan) error
	GetByID(ctx context.Context, id string) (*LoanRecord, error)
	Find(ctx context.Context, f Filter) ([]LoanRecord, error)
	Count(ctx context.Context, f Filter) (int, error)
	UpdateFields(ctx context.Context, id string, ch Changes, expected Status) (*LoanRecord, error)
	ExistsActiveForCopy(ctx context.Context, copyID string) (bool, error)
	AppendNotification(ctx context.Context, n Notification) error
	ListNotifications(ctx context.Context, loanID string) ([]Notification, error)
}

// Ledger は ejemplar の状態と本の available を管理する側
type Ledger interface {
	GetBookByID(ctx context.Context, id string) (*books.Book, error)
	ListAvailableCopies(ctx context.Context, bookID string) ([]books.Copy, error)
	SetCopyStatus(ctx context.Context, copyID string, status books.CopyStatus) (*books.Book, error)
	FindCopyOwner(ctx context.Context, copyID string) (*books.Book, error)
	AllocateCopy(ctx context.Context, bookID string, to books.CopyStatus) (*books.Copy, error)
	TransitionCopyStatus(ctx context.Context, copyID string, from, to books.CopyStatus) (bool, error)
}

type PatronDirectory interface {
	GetByID(ctx context.Context, id string) (*patrons.Patron, error)
}

// TxRunner: fn 内の store / ledger 呼び出しは同じ Tx に載る
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ===== Clock & ID =====

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// ===== Service =====

type Service struct {
	store   LoanStore
	ledger  Ledger
	patrons PatronDirectory
	tx      TxRunner
	clock   Clock
	id      IDGen
}

func NewService(store LoanStore, ledger Ledger, dir PatronDirectory, tx TxRunner) *Service {
	return &Service{
		store:   store,
		ledger:  ledger,
		patrons: dir,
		tx:      tx,
		clock:   realClock{},
		id:      ulidGen{},
	}
}

// internalErr は原因をログに残して INTERNAL を返す。APIError はそのまま通す
func internalErr(ctx context.Context, op string, err error) error {
	var api *APIError
	if errors.As(err, &api) {
		return api
	}
	log.Printf("[ERROR] req=%s loans.%s: %v", requestid.FromContext(ctx), op, err)
	return ErrInternal("error interno")
}

func (s *Service) notify(ctx context.Context, loanID, subject, msg string, at time.Time) error {
	return s.store.AppendNotification(ctx, Notification{
		ID:      s.id.NewULID(at),
		LoanID:  loanID,
		Subject: subject,
		Message: msg,
		SentAt:  at,
	})
}

// checkPatron: 存在しなければ NotFound、無効なら Conflict
func (s *Service) checkPatron(ctx context.Context, op, patronID string) (*patrons.Patron, error) {
	p, err := s.patrons.GetByID(ctx, patronID)
	if err != nil {
		return nil, internalErr(ctx, op, err)
	}
	if p == nil {
		return nil, ErrNotFound(msgPatronNotFound)
	}
	if !p.Active {
		return nil, ErrConflict("el usuario no está activo")
	}
	return p, nil
}

func (s *Service) getRecord(ctx context.Context, op, id string) (*LoanRecord, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrInvalid("id es obligatorio")
	}
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, internalErr(ctx, op, err)
	}
	if rec == nil {
		return nil, ErrNotFound(msgLoanNotFound)
	}
	return rec, nil
}

// allocate は ejemplar を確保して貸出を作る（Tx 内で呼ぶ）。
// 確保できなければ noCopies を返す
func (s *Service) allocate(ctx context.Context, l *Loan, to books.CopyStatus, noCopies error) error {
	c, err := s.ledger.AllocateCopy(ctx, l.BookID, to)
	if err != nil {
		return err
	}
	if c == nil {
		return noCopies
	}
	l.CopyID = c.ID
	return s.insertLive(ctx, l)
}

// insertLive は ejemplar に生きている貸出が無いことを確かめてから保存する
func (s *Service) insertLive(ctx context.Context, l *Loan) error {
	busy, err := s.store.ExistsActiveForCopy(ctx, l.CopyID)
	if err != nil {
		return err
	}
	if busy {
		return ErrConflict(msgCopyTaken)
	}
	if err := s.store.Create(ctx, l); err != nil {
		if errors.Is(err, ErrCopyTaken) {
			return ErrConflict(msgCopyTaken)
		}
		return err
	}
	return nil
}

// dueDateFrom: 未指定なら now + 15日。now より後であること
func dueDateFrom(raw string, now time.Time) (time.Time, error) {
	due := now.Add(DefaultLoanPeriod)
	if raw != "" {
		t, err := validate.ParseDate(raw)
		if err != nil {
			return time.Time{}, ErrInvalid("due_date no es una fecha válida")
		}
		due = t
	}
	if !due.After(now) {
		return time.Time{}, ErrInvalid("due_date debe ser posterior a la fecha de préstamo")
	}
	return due, nil
}

// CreateLoan は最初の空き ejemplar を貸し出す
func (s *Service) CreateLoan(ctx context.Context, req CreateLoanRequest) (*LoanResponse, error) {
	if strings.TrimSpace(req.BookID) == "" || strings.TrimSpace(req.PatronID) == "" {
		return nil, ErrInvalid("faltan datos obligatorios: book_id, patron_id, loan_type")
	}
	lt, ok := ParseLoanType(req.LoanType)
	if !ok {
		return nil, ErrInvalid("loan_type debe ser estudiante, docente u otro")
	}
	now := s.clock.Now()
	due, err := dueDateFrom(req.DueDate, now)
	if err != nil {
		return nil, err
	}

	book, err := s.ledger.GetBookByID(ctx, req.BookID)
	if err != nil {
		return nil, internalErr(ctx, "CreateLoan", err)
	}
	if book == nil {
		return nil, ErrNotFound(msgBookNotFound)
	}
	if _, err := s.checkPatron(ctx, "CreateLoan", req.PatronID); err != nil {
		return nil, err
	}
	free, err := s.ledger.ListAvailableCopies(ctx, book.ID)
	if err != nil {
		return nil, internalErr(ctx, "CreateLoan", err)
	}
	if len(free) == 0 {
		return nil, ErrNotFound(msgNoCopies)
	}

	l := &Loan{
		ID:       s.id.NewULID(now),
		BookID:   book.ID,
		PatronID: req.PatronID,
		Status:   StatusActive,
		LoanType: lt,
		LoanDate: now,
		DueDate:  due,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.allocate(ctx, l, books.CopyLoaned, ErrNotFound(msgNoCopies)); err != nil {
			return err
		}
		return s.notify(ctx, l.ID, "Préstamo registrado",
			fmt.Sprintf("Préstamo de \"%s\" con devolución estimada el %s", book.Title, due.Format("2006-01-02")), now)
	})
	if err != nil {
		return nil, internalErr(ctx, "CreateLoan", err)
	}
	log.Printf("[INFO] req=%s loan %s created: book=%s copy=%s patron=%s", requestid.FromContext(ctx), l.ID, l.BookID, l.CopyID, l.PatronID)
	return s.GetLoanDetail(ctx, l.ID)
}

// CreateLoanForCopy は職員が選んだ ejemplar をそのまま貸し出す
func (s *Service) CreateLoanForCopy(ctx context.Context, req CreateCopyLoanRequest) (*LoanResponse, error) {
	if strings.TrimSpace(req.CopyID) == "" || strings.TrimSpace(req.PatronID) == "" {
		return nil, ErrInvalid("faltan datos obligatorios: copy_id, patron_id, loan_type")
	}
	lt, ok := ParseLoanType(req.LoanType)
	if !ok {
		return nil, ErrInvalid("loan_type debe ser estudiante, docente u otro")
	}
	now := s.clock.Now()
	due, err := dueDateFrom(req.DueDate, now)
	if err != nil {
		return nil, err
	}

	book, err := s.ledger.FindCopyOwner(ctx, req.CopyID)
	if err != nil {
		return nil, internalErr(ctx, "CreateLoanForCopy", err)
	}
	if book == nil {
		return nil, ErrNotFound(msgCopyNotFound)
	}
	for _, c := range book.Copies {
		if c.ID == req.CopyID && c.Status != books.CopyAvailable {
			return nil, ErrConflict(fmt.Sprintf("el ejemplar no está disponible. Estado actual: %s", c.Status))
		}
	}
	if _, err := s.checkPatron(ctx, "CreateLoanForCopy", req.PatronID); err != nil {
		return nil, err
	}

	l := &Loan{
		ID:       s.id.NewULID(now),
		BookID:   book.ID,
		CopyID:   req.CopyID,
		PatronID: req.PatronID,
		Status:   StatusActive,
		LoanType: lt,
		LoanDate: now,
		DueDate:  due,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		// 読んだ後に他の Tx が取っていたら Conflict
		ok, err := s.ledger.TransitionCopyStatus(ctx, l.CopyID, books.CopyAvailable, books.CopyLoaned)
		if err != nil {
			return err
		}
		if !ok {
			return ErrConflict("el ejemplar ya no está disponible")
		}
		if err := s.insertLive(ctx, l); err != nil {
			return err
		}
		return s.notify(ctx, l.ID, "Préstamo registrado",
			fmt.Sprintf("Préstamo de \"%s\" con devolución estimada el %s", book.Title, due.Format("2006-01-02")), now)
	})
	if err != nil {
		return nil, internalErr(ctx, "CreateLoanForCopy", err)
	}
	log.Printf("[INFO] req=%s loan %s created for copy %s: patron=%s", requestid.FromContext(ctx), l.ID, l.CopyID, l.PatronID)
	return s.GetLoanDetail(ctx, l.ID)
}

// CloseLoan: activo → cerrado。ejemplar は disponible に戻す
func (s *Service) CloseLoan(ctx context.Context, id string, req CloseLoanRequest) (*LoanResponse, error) {
	rec, err := s.getRecord(ctx, "CloseLoan", id)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case StatusActive:
	case StatusClosed:
		return nil, ErrConflict("el préstamo ya está finalizado")
	default:
		return nil, ErrConflict(fmt.Sprintf("no se puede cerrar un préstamo en estado %s", rec.Status))
	}

	now := s.clock.Now()
	returned := now
	if req.ActualReturnDate != "" {
		t, err := validate.ParseDate(req.ActualReturnDate)
		if err != nil {
			return nil, ErrInvalid("actual_return_date no es una fecha válida")
		}
		returned = t
	}
	// YYYY-MM-DD は 00:00 になるので日単位で比べる
	if returned.Before(rec.LoanDate.Truncate(24 * time.Hour)) {
		return nil, ErrInvalid("actual_return_date no puede ser anterior a la fecha de préstamo")
	}

	closed := StatusClosed
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		updated, err := s.store.UpdateFields(ctx, rec.ID, Changes{Status: &closed, ActualReturnDate: &returned}, StatusActive)
		if err != nil {
			return err
		}
		if updated == nil {
			log.Printf("[WARN] req=%s loan %s: close lost race", requestid.FromContext(ctx), rec.ID)
			return ErrConflict(msgStaleState)
		}
		if _, err := s.ledger.SetCopyStatus(ctx, rec.CopyID, books.CopyAvailable); err != nil {
			return err
		}
		return s.notify(ctx, rec.ID, "Préstamo cerrado",
			fmt.Sprintf("Devolución registrada el %s", returned.Format("2006-01-02")), now)
	})
	if err != nil {
		return nil, internalErr(ctx, "CloseLoan", err)
	}
	return s.GetLoanDetail(ctx, rec.ID)
}

// RenewLoan は due_date だけを延ばす。新しい日付は現在の due_date より後であること
func (s *Service) RenewLoan(ctx context.Context, id string, req RenewLoanRequest) (*LoanResponse, error) {
	rec, err := s.getRecord(ctx, "RenewLoan", id)
	if err != nil {
		return nil, err
	}
	switch rec.Status {
	case StatusActive:
	case StatusClosed:
		return nil, ErrConflict("no se puede renovar un préstamo cerrado")
	default:
		return nil, ErrConflict(fmt.Sprintf("no se puede renovar un préstamo en estado %s", rec.Status))
	}

	if strings.TrimSpace(req.NewDueDate) == "" {
		return nil, ErrInvalid("se requiere new_due_date para renovar el préstamo")
	}
	due, err := validate.ParseDate(req.NewDueDate)
	if err != nil {
		return nil, ErrInvalid("new_due_date no es una fecha válida")
	}
	if !due.After(rec.DueDate) {
		return nil, ErrInvalid("la nueva fecha debe ser posterior a la fecha de devolución estimada actual")
	}

	now := s.clock.Now()
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		updated, err := s.store.UpdateFields(ctx, rec.ID, Changes{DueDate: &due}, StatusActive)
		if err != nil {
			return err
		}
		if updated == nil {
			return ErrConflict(msgStaleState)
		}
		return s.notify(ctx, rec.ID, "Préstamo renovado",
			fmt.Sprintf("Nueva fecha de devolución: %s", due.Format("2006-01-02")), now)
	})
	if err != nil {
		return nil, internalErr(ctx, "RenewLoan", err)
	}
	return s.GetLoanDetail(ctx, rec.ID)
}

// ReserveBook は ejemplar を直接 reservado で確保し、reserva の貸出を作る
func (s *Service) ReserveBook(ctx context.Context, req ReserveRequest) (*LoanResponse, error) {
	if strings.TrimSpace(req.BookID) == "" || strings.TrimSpace(req.PatronID) == "" {
		return nil, ErrInvalid("book_id y patron_id son obligatorios")
	}
	if strings.TrimSpace(req.ExpiresAt) == "" {
		return nil, ErrInvalid("expires_at es obligatorio")
	}
	expires, err := validate.ParseDate(req.ExpiresAt)
	if err != nil {
		return nil, ErrInvalid("expires_at no es una fecha válida")
	}
	now := s.clock.Now()
	if !expires.After(now) {
		return nil, ErrInvalid("expires_at debe ser una fecha futura")
	}
	var lt LoanType
	if req.LoanType != "" {
		var ok bool
		if lt, ok = ParseLoanType(req.LoanType); !ok {
			return nil, ErrInvalid("loan_type debe ser estudiante, docente u otro")
		}
	}

	book, err := s.ledger.GetBookByID(ctx, req.BookID)
	if err != nil {
		return nil, internalErr(ctx, "ReserveBook", err)
	}
	if book == nil {
		return nil, ErrNotFound(msgBookNotFound)
	}
	p, err := s.checkPatron(ctx, "ReserveBook", req.PatronID)
	if err != nil {
		return nil, err
	}
	if lt == "" {
		lt = loanTypeForRole(p.Role)
	}
	free, err := s.ledger.ListAvailableCopies(ctx, book.ID)
	if err != nil {
		return nil, internalErr(ctx, "ReserveBook", err)
	}
	if len(free) == 0 {
		return nil, ErrConflict(msgNoCopies)
	}

	l := &Loan{
		ID:       s.id.NewULID(now),
		BookID:   book.ID,
		PatronID: p.ID,
		Status:   StatusReserved,
		LoanType: lt,
		// 貸出日・期限は有効化の時に確定する
		LoanDate: now,
		DueDate:  expires.Add(DefaultLoanPeriod),
	}
	l.ReservedAt.Time, l.ReservedAt.Valid = now, true
	l.ReservationExpiresAt.Time, l.ReservationExpiresAt.Valid = expires, true

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.allocate(ctx, l, books.CopyReserved, ErrConflict(msgNoCopies)); err != nil {
			return err
		}
		return s.notify(ctx, l.ID, "Reserva registrada",
			fmt.Sprintf("Reserva de \"%s\" válida hasta el %s", book.Title, expires.Format(time.RFC3339)), now)
	})
	if err != nil {
		return nil, internalErr(ctx, "ReserveBook", err)
	}
	log.Printf("[INFO] req=%s reservation %s created: book=%s copy=%s patron=%s", requestid.FromContext(ctx), l.ID, l.BookID, l.CopyID, l.PatronID)
	return s.GetLoanDetail(ctx, l.ID)
}

func loanTypeForRole(role string) LoanType {
	switch role {
	case "estudiante":
		return LoanStudent
	case "docente":
		return LoanFaculty
	}
	return LoanOther
}

// ActivateReservation: reserva → activo。期限切れは Conflict で何も変えない
func (s *Service) ActivateReservation(ctx context.Context, id string) (*LoanResponse, error) {
	rec, err := s.getRecord(ctx, "ActivateReservation", id)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusReserved {
		return nil, ErrConflict("el préstamo no es una reserva")
	}
	now := s.clock.Now()
	if ReservationExpired(rec.Loan, now) {
		return nil, ErrConflict("la reserva ha expirado")
	}
	owner, err := s.ledger.FindCopyOwner(ctx, rec.CopyID)
	if err != nil {
		return nil, internalErr(ctx, "ActivateReservation", err)
	}
	if owner == nil || owner.ID != rec.BookID {
		return nil, ErrConflict("el ejemplar reservado ya no pertenece al libro")
	}

	active := StatusActive
	due := now.Add(DefaultLoanPeriod)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		updated, err := s.store.UpdateFields(ctx, rec.ID,
			Changes{Status: &active, LoanDate: &now, DueDate: &due, ClearReservation: true}, StatusReserved)
		if err != nil {
			return err
		}
		if updated == nil {
			log.Printf("[WARN] req=%s reservation %s: activate lost race", requestid.FromContext(ctx), rec.ID)
			return ErrConflict(msgStaleState)
		}
		if _, err := s.ledger.SetCopyStatus(ctx, rec.CopyID, books.CopyLoaned); err != nil {
			return err
		}
		return s.notify(ctx, rec.ID, "Reserva activada",
			fmt.Sprintf("Préstamo activo con devolución estimada el %s", due.Format("2006-01-02")), now)
	})
	if err != nil {
		return nil, internalErr(ctx, "ActivateReservation", err)
	}
	return s.GetLoanDetail(ctx, rec.ID)
}

// CancelReservation: reserva → cancelado。ejemplar は disponible に戻す
func (s *Service) CancelReservation(ctx context.Context, id string) (*LoanResponse, error) {
	rec, err := s.getRecord(ctx, "CancelReservation", id)
	if err != nil {
		return nil, err
	}
	if rec.Status != StatusReserved {
		return nil, ErrConflict("el préstamo no es una reserva")
	}

	now := s.clock.Now()
	cancelled := StatusCancelled
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		updated, err := s.store.UpdateFields(ctx, rec.ID, Changes{Status: &cancelled, ClearReservation: true}, StatusReserved)
		if err != nil {
			return err
		}
		if updated == nil {
			return ErrConflict(msgStaleState)
		}
		if _, err := s.ledger.SetCopyStatus(ctx, rec.CopyID, books.CopyAvailable); err != nil {
			return err
		}
		return s.notify(ctx, rec.ID, "Reserva cancelada", "La reserva fue cancelada y el ejemplar quedó disponible", now)
	})
	if err != nil {
		return nil, internalErr(ctx, "CancelReservation", err)
	}
	return s.GetLoanDetail(ctx, rec.ID)
}

// ===== 参照系 =====

func (s *Service) GetLoanDetail(ctx context.Context, id string) (*LoanResponse, error) {
	rec, err := s.getRecord(ctx, "GetLoanDetail", id)
	if err != nil {
		return nil, err
	}
	notes, err := s.store.ListNotifications(ctx, rec.ID)
	if err != nil {
		return nil, internalErr(ctx, "GetLoanDetail", err)
	}
	out := toLoanResponse(*rec, s.clock.Now())
	for _, n := range notes {
		out.Notifications = append(out.Notifications, NotificationResponse{Subject: n.Subject, Message: n.Message, SentAt: n.SentAt})
	}
	return &out, nil
}

// GetReservationDetail は reserva 状態の貸出だけを返す
func (s *Service) GetReservationDetail(ctx context.Context, id string) (*LoanResponse, error) {
	out, err := s.GetLoanDetail(ctx, id)
	if err != nil {
		return nil, err
	}
	if out.Status != StatusReserved {
		return nil, ErrNotFound("reserva no encontrada")
	}
	return out, nil
}

type StatusClass string

const (
	ClassAll     StatusClass = "all"
	ClassActive  StatusClass = "active"
	ClassOverdue StatusClass = "overdue"
	ClassClosed  StatusClass = "closed"
)

// ParseStatusClass は英語とスペイン語（todos/activos/atrasados/cerrados）を受け付ける
func ParseStatusClass(s string) (StatusClass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "todos", "":
		return ClassAll, true
	case "active", "activos":
		return ClassActive, true
	case "overdue", "atrasados":
		return ClassOverdue, true
	case "closed", "cerrados":
		return ClassClosed, true
	}
	return "", false
}

// ListByStatusClass: active と overdue は同じ activo を due_date で分けたもの
func (s *Service) ListByStatusClass(ctx context.Context, class string) (*LoanListResponse, error) {
	c, ok := ParseStatusClass(class)
	if !ok {
		return nil, ErrInvalid("clasificación inválida. Valores válidos: todos, activos, atrasados, cerrados")
	}
	now := s.clock.Now()
	var f Filter
	switch c {
	case ClassActive:
		f = Filter{Statuses: []Status{StatusActive}, DueFrom: &now}
	case ClassOverdue:
		f = Filter{Statuses: []Status{StatusActive}, DueBefore: &now}
	case ClassClosed:
		f = Filter{Statuses: []Status{StatusClosed}}
	}
	return s.list(ctx, "ListByStatusClass", f, now)
}

type ReservationClass string

const (
	ReservationsAll     ReservationClass = "all"
	ReservationsActive  ReservationClass = "active"
	ReservationsExpired ReservationClass = "expired"
)

func ParseReservationClass(s string) (ReservationClass, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "all", "todas", "":
		return ReservationsAll, true
	case "active", "vigentes":
		return ReservationsActive, true
	case "expired", "expiradas":
		return ReservationsExpired, true
	}
	return "", false
}

// ListReservations: patronID を指定するとその利用者の分だけ
func (s *Service) ListReservations(ctx context.Context, class, patronID string) (*LoanListResponse, error) {
	c, ok := ParseReservationClass(class)
	if !ok {
		return nil, ErrInvalid("clasificación de reservas inválida. Valores válidos: todas, vigentes, expiradas")
	}
	now := s.clock.Now()
	f := Filter{Statuses: []Status{StatusReserved}, PatronID: patronID}
	switch c {
	case ReservationsActive:
		f.ExpiresFrom = &now
	case ReservationsExpired:
		f.ExpiresBefore = &now
	}
	return s.list(ctx, "ListReservations", f, now)
}

// SearchByPatronName は利用者名の部分一致（アクセント・大文字小文字は無視）
func (s *Service) SearchByPatronName(ctx context.Context, name string) (*LoanListResponse, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalid("el nombre del usuario es requerido")
	}
	return s.list(ctx, "SearchByPatronName", Filter{PatronSearch: name}, s.clock.Now())
}

// ListByPatron は利用者の貸出履歴（全状態）
func (s *Service) ListByPatron(ctx context.Context, patronID string) (*LoanListResponse, error) {
	if strings.TrimSpace(patronID) == "" {
		return nil, ErrInvalid("patron_id es obligatorio")
	}
	return s.list(ctx, "ListByPatron", Filter{PatronID: patronID}, s.clock.Now())
}

// ListDueSoon: activo で due_date <= now + days（期限切れも含む）
func (s *Service) ListDueSoon(ctx context.Context, days int) (*LoanListResponse, error) {
	if days <= 0 {
		days = defaultDueSoonDays
	}
	if days > 365 {
		return nil, ErrInvalid("days debe ser como máximo 365")
	}
	now := s.clock.Now()
	until := now.Add(time.Duration(days) * 24 * time.Hour)
	return s.list(ctx, "ListDueSoon", Filter{Statuses: []Status{StatusActive}, DueUntil: &until}, now)
}

func (s *Service) list(ctx context.Context, op string, f Filter, now time.Time) (*LoanListResponse, error) {
	rows, err := s.store.Find(ctx, f)
	if err != nil {
		return nil, internalErr(ctx, op, err)
	}
	return toLoanList(rows, now), nil
}

// Summary: overdue_percent = round(overdue / active * 100)、active が 0 なら 0
func (s *Service) Summary(ctx context.Context) (*SummaryResponse, error) {
	now := s.clock.Now()
	counts := []Filter{
		{},
		{Statuses: []Status{StatusActive}},
		{Statuses: []Status{StatusActive}, DueBefore: &now},
		{Statuses: []Status{StatusClosed}},
	}
	n := make([]int, len(counts))
	for i, f := range counts {
		c, err := s.store.Count(ctx, f)
		if err != nil {
			return nil, internalErr(ctx, "Summary", err)
		}
		n[i] = c
	}
	out := &SummaryResponse{Total: n[0], Active: n[1], Overdue: n[2], Closed: n[3]}
	if out.Active > 0 {
		out.OverduePercent = int(math.Round(float64(out.Overdue) / float64(out.Active) * 100))
	}
	return out, nil
}
