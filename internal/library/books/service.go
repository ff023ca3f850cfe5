package books

import (
	"context"
	"crypto/rand"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"biblioteca-backend/internal/platform/db"
	"biblioteca-backend/internal/platform/textutil"
	"biblioteca-backend/internal/platform/validate"
)

// -------------- Clock & ID --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// -------------- Service --------------

// CatalogStore は Service が使う Store の部分
type CatalogStore interface {
	GetBookByID(ctx context.Context, id string) (*Book, error)
	GetCopy(ctx context.Context, copyID string) (*Copy, error)
	TransitionCopyStatus(ctx context.Context, copyID string, from, to CopyStatus) (bool, error)
	CategoryExists(ctx context.Context, id string) (bool, error)
	InsertBook(ctx context.Context, b *Book) error
	InsertCopy(ctx context.Context, c *Copy) error
	DeleteCopy(ctx context.Context, bookID, copyID string) (bool, error)
	ListBooks(ctx context.Context, f BookFilter) ([]Book, int, error)
	SearchAvailable(ctx context.Context, name string, limit int) ([]Book, error)
}

type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	store CatalogStore
	tx    TxRunner
	clock Clock
	id    IDGen
}

func NewService(store CatalogStore, tx TxRunner) *Service {
	return &Service{store: store, tx: tx, clock: realClock{}, id: ulidGen{}}
}

func internalErr(op string, err error) error {
	log.Printf("[ERROR] books.%s: %v", op, err)
	return ErrInternal("error interno")
}

func (s *Service) newCopy(bookID string, in CreateCopyRequest, now time.Time) (*Copy, error) {
	origin := OriginPurchased
	if in.Origin != "" {
		origin = Origin(in.Origin)
	}
	if origin != OriginPurchased && origin != OriginDonated {
		return nil, ErrInvalid("origin debe ser Comprado o Donado")
	}
	c := &Copy{
		ID:       s.id.NewULID(now),
		BookID:   bookID,
		CDU:      strings.TrimSpace(in.CDU),
		Location: strings.TrimSpace(in.Location),
		Building: strings.TrimSpace(in.Building),
		Origin:   origin,
		Status:   CopyAvailable,
	}
	if c.CDU == "" || c.Location == "" || c.Building == "" {
		return nil, ErrInvalid("cdu, location y building son obligatorios")
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return nil, ErrInvalid("price no puede ser negativo")
		}
		c.Price = sql.NullFloat64{Float64: *in.Price, Valid: true}
	}
	if origin == OriginDonated {
		if strings.TrimSpace(in.DonatedBy) == "" {
			return nil, ErrInvalid("donated_by es obligatorio para ejemplares donados")
		}
		c.DonatedBy = sql.NullString{String: strings.TrimSpace(in.DonatedBy), Valid: true}
	}
	return c, nil
}

// CreateBook: 本と ejemplar をまとめて登録
func (s *Service) CreateBook(ctx context.Context, in CreateBookRequest) (*BookResponse, error) {
	title, author, isbn := strings.TrimSpace(in.Title), strings.TrimSpace(in.Author), strings.TrimSpace(in.ISBN)
	if title == "" || author == "" || isbn == "" || in.CategoryID == "" {
		return nil, ErrInvalid("title, author, isbn y category_id son obligatorios")
	}
	now := s.clock.Now()
	registered := now
	if in.RegisteredAt != "" {
		t, err := validate.ParseDate(in.RegisteredAt)
		if err != nil {
			return nil, ErrInvalid("registered_at inválida")
		}
		registered = t
	}

	b := &Book{
		ID:           s.id.NewULID(now),
		Title:        title,
		Author:       author,
		ISBN:         isbn,
		Publisher:    strings.TrimSpace(in.Publisher),
		CategoryID:   in.CategoryID,
		RegisteredAt: registered,
		SearchKey:    textutil.SearchKey(title, author),
	}
	if in.ImageURL != "" {
		b.ImageURL = sql.NullString{String: in.ImageURL, Valid: true}
	}
	copies := make([]*Copy, 0, len(in.Copies))
	for _, cr := range in.Copies {
		c, err := s.newCopy(b.ID, cr, now)
		if err != nil {
			return nil, err
		}
		copies = append(copies, c)
	}

	ok, err := s.store.CategoryExists(ctx, in.CategoryID)
	if err != nil {
		return nil, internalErr("CreateBook", err)
	}
	if !ok {
		return nil, ErrInvalid("la categoría no existe")
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.InsertBook(ctx, b); err != nil {
			return err
		}
		for _, c := range copies {
			if err := s.store.InsertCopy(ctx, c); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if n, ok := db.MySQLErrorNumber(err); ok {
			switch n {
			case db.ErrDuplicateEntry:
				return nil, ErrConflict("ya existe un libro con ese ISBN")
			case db.ErrNoReferenced:
				return nil, ErrInvalid("la categoría no existe")
			}
		}
		return nil, internalErr("CreateBook", err)
	}
	return s.GetBook(ctx, b.ID)
}

func (s *Service) GetBook(ctx context.Context, id string) (*BookResponse, error) {
	b, err := s.store.GetBookByID(ctx, id)
	if err != nil {
		return nil, internalErr("GetBook", err)
	}
	if b == nil {
		return nil, ErrNotFound("libro no encontrado")
	}
	out := toBookResponse(b)
	return &out, nil
}

func (s *Service) ListBooks(ctx context.Context, f BookFilter) (*BookListResponse, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	rows, total, err := s.store.ListBooks(ctx, f)
	if err != nil {
		return nil, internalErr("ListBooks", err)
	}
	out := &BookListResponse{Items: make([]BookResponse, 0, len(rows)), Total: total}
	for i := range rows {
		out.Items = append(out.Items, toBookResponse(&rows[i]))
	}
	return out, nil
}

// SearchAvailable: 空き ejemplar のある本だけ
func (s *Service) SearchAvailable(ctx context.Context, name string) ([]BookResponse, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrInvalid("name es obligatorio")
	}
	rows, err := s.store.SearchAvailable(ctx, name, 50)
	if err != nil {
		return nil, internalErr("SearchAvailable", err)
	}
	out := make([]BookResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toBookResponse(&rows[i]))
	}
	return out, nil
}

func (s *Service) AddCopy(ctx context.Context, bookID string, in CreateCopyRequest) (*BookResponse, error) {
	b, err := s.store.GetBookByID(ctx, bookID)
	if err != nil {
		return nil, internalErr("AddCopy", err)
	}
	if b == nil {
		return nil, ErrNotFound("libro no encontrado")
	}
	c, err := s.newCopy(bookID, in, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.store.InsertCopy(ctx, c); err != nil {
		return nil, internalErr("AddCopy", err)
	}
	return s.GetBook(ctx, bookID)
}

// copyOf は ejemplar がその本のものか確認する
func (s *Service) copyOf(ctx context.Context, op, bookID, copyID string) (*Copy, error) {
	c, err := s.store.GetCopy(ctx, copyID)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if c == nil || c.BookID != bookID {
		return nil, ErrNotFound("ejemplar no encontrado")
	}
	return c, nil
}

// RemoveCopy: 貸出中・予約中の ejemplar は消せない
func (s *Service) RemoveCopy(ctx context.Context, bookID, copyID string) error {
	c, err := s.copyOf(ctx, "RemoveCopy", bookID, copyID)
	if err != nil {
		return err
	}
	ok, err := s.store.DeleteCopy(ctx, bookID, copyID)
	if err != nil {
		return internalErr("RemoveCopy", err)
	}
	if !ok {
		return ErrConflict(fmt.Sprintf("el ejemplar está %s", c.Status))
	}
	return nil
}

// RetireCopy: disponible → fuera de servicio
func (s *Service) RetireCopy(ctx context.Context, bookID, copyID string) (*BookResponse, error) {
	return s.moveCopy(ctx, "RetireCopy", bookID, copyID, CopyAvailable, CopyOutOfService)
}

// RestoreCopy: fuera de servicio → disponible
func (s *Service) RestoreCopy(ctx context.Context, bookID, copyID string) (*BookResponse, error) {
	return s.moveCopy(ctx, "RestoreCopy", bookID, copyID, CopyOutOfService, CopyAvailable)
}

func (s *Service) moveCopy(ctx context.Context, op, bookID, copyID string, from, to CopyStatus) (*BookResponse, error) {
	c, err := s.copyOf(ctx, op, bookID, copyID)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.TransitionCopyStatus(ctx, copyID, from, to)
	if err != nil {
		return nil, internalErr(op, err)
	}
	if !ok {
		return nil, ErrConflict(fmt.Sprintf("el ejemplar está %s, se esperaba %s", c.Status, from))
	}
	return s.GetBook(ctx, bookID)
}
