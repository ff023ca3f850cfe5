package patrons

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
)

var (
	ErrNameRequired = errors.New("name es obligatorio")
	ErrNotFound     = errors.New("usuario no encontrado")
)

type Directory interface {
	GetByID(ctx context.Context, id string) (*Patron, error)
	Search(ctx context.Context, term string, limit int) ([]Patron, error)
}

type Service struct{ store Directory }

func NewService(store Directory) *Service { return &Service{store: store} }

func (s *Service) Get(ctx context.Context, id string) (*PatronResponse, error) {
	p, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	out := toResponse(*p)
	return &out, nil
}

func (s *Service) Search(ctx context.Context, name string) ([]PatronResponse, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	rows, err := s.store.Search(ctx, name, 50)
	if err != nil {
		return nil, err
	}
	out := make([]PatronResponse, 0, len(rows))
	for _, p := range rows {
		out = append(out, toResponse(p))
	}
	return out, nil
}

func statusOf(err error) (int, string, string) {
	switch {
	case errors.Is(err, ErrNameRequired):
		return http.StatusBadRequest, "INVALID_ARGUMENT", err.Error()
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", err.Error()
	}
	log.Printf("[ERROR] patrons: %v", err)
	return http.StatusInternalServerError, "INTERNAL", "error interno"
}
