package categories

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"biblioteca-backend/internal/platform/db"
	"biblioteca-backend/internal/platform/requestid"
)

// ===== Error model =====

type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code
	Message string
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func toHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeConflict:
			return http.StatusConflict
		}
	}
	return http.StatusInternalServerError
}

// ===== Service =====

type Repository interface {
	List(ctx context.Context) ([]Category, error)
	GetByID(ctx context.Context, id string) (*Category, error)
	Insert(ctx context.Context, c *Category) error
	UpdateDescription(ctx context.Context, id, desc string) (bool, error)
	Delete(ctx context.Context, id string) (bool, error)
}

type Service struct{ store Repository }

func NewService(store Repository) *Service { return &Service{store: store} }

const msgNotFound = "categoría no encontrada"

func internalErr(ctx context.Context, op string, err error) error {
	log.Printf("[ERROR] req=%s categories.%s: %v", requestid.FromContext(ctx), op, err)
	return ErrInternal("error interno")
}

// normalizeID: 前後の空白を落として大文字に揃える
func normalizeID(id string) (string, error) {
	id = strings.ToUpper(strings.TrimSpace(id))
	if id == "" {
		return "", ErrInvalid("category_id es obligatorio")
	}
	if len(id) > 26 || strings.ContainsAny(id, " /") {
		return "", ErrInvalid("category_id inválido")
	}
	return id, nil
}

func normalizeDescription(d string) (string, error) {
	d = strings.TrimSpace(d)
	if d == "" {
		return "", ErrInvalid("description es obligatorio")
	}
	return d, nil
}

func (s *Service) List(ctx context.Context) ([]Category, error) {
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, internalErr(ctx, "List", err)
	}
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Category, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	c, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, internalErr(ctx, "Get", err)
	}
	if c == nil {
		return nil, ErrNotFound(msgNotFound)
	}
	return c, nil
}

func (s *Service) Create(ctx context.Context, req CreateCategoryRequest) (*Category, error) {
	id, err := normalizeID(req.ID)
	if err != nil {
		return nil, err
	}
	desc, err := normalizeDescription(req.Description)
	if err != nil {
		return nil, err
	}
	c := &Category{ID: id, Description: desc}
	if err := s.store.Insert(ctx, c); err != nil {
		if n, ok := db.MySQLErrorNumber(err); ok && n == db.ErrDuplicateEntry {
			return nil, ErrConflict("la categoría ya existe")
		}
		return nil, internalErr(ctx, "Create", err)
	}
	log.Printf("[INFO] req=%s category %s created", requestid.FromContext(ctx), id)
	return c, nil
}

func (s *Service) Update(ctx context.Context, id string, req UpdateCategoryRequest) (*Category, error) {
	id, err := normalizeID(id)
	if err != nil {
		return nil, err
	}
	desc, err := normalizeDescription(req.Description)
	if err != nil {
		return nil, err
	}
	ok, err := s.store.UpdateDescription(ctx, id, desc)
	if err != nil {
		return nil, internalErr(ctx, "Update", err)
	}
	if !ok {
		return nil, ErrNotFound(msgNotFound)
	}
	return s.Get(ctx, id)
}

// Delete は本が一冊も無いカテゴリだけ消せる
func (s *Service) Delete(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	ok, err := s.store.Delete(ctx, id)
	if err != nil {
		if n, isMy := db.MySQLErrorNumber(err); isMy && n == db.ErrRowReferenced {
			return ErrConflict("la categoría tiene libros asociados")
		}
		return internalErr(ctx, "Delete", err)
	}
	if !ok {
		return ErrNotFound(msgNotFound)
	}
	return nil
}
