package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"

	"biblioteca-backend/internal/platform/textutil"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrAuthFailed    = errors.New("authentication failed")
	ErrDisabled      = errors.New("account disabled")
	ErrInvalidInput  = errors.New("invalid input")
)

type Service struct {
	store  AccountStore
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	cost   int
}

// NewService: secret は設定ファイル / JWT_SECRET から渡す
func NewService(store AccountStore, secret []byte, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		store:  store,
		secret: secret,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		cost:   bcrypt.DefaultCost,
	}
}

type AuthService interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, in RegisterRequest) (string, error)
}

func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	acct, err := s.store.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", ErrAuthFailed
	}
	if !acct.Active {
		return "", ErrDisabled
	}
	return s.sign(acct.ID, acct.Role)
}

func (s *Service) sign(sub, role string) (string, error) {
	now := s.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Register は admin が利用者を登録する。返り値は patron_id
func (s *Service) Register(ctx context.Context, in RegisterRequest) (string, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil {
		return "", fmt.Errorf("%w: email", ErrInvalidInput)
	}
	role := in.Role
	if role == "" {
		role = RoleEstudiante
	}
	switch role {
	case RoleAdmin, RoleConsultor, RoleDocente, RoleEstudiante:
	default:
		return "", fmt.Errorf("%w: role", ErrInvalidInput)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return "", err
	}

	now := s.now()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0)).String()
	name := strings.TrimSpace(in.Name)
	err = s.store.Create(ctx, &Account{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Phone:        in.Phone,
		Role:         role,
		Active:       true,
		SearchKey:    textutil.SearchKey(name, email),
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
