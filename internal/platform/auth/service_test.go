package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	byEmail map[string]*Account
}

func (m *memStore) GetByEmail(_ context.Context, email string) (*Account, error) {
	return m.byEmail[email], nil
}

func (m *memStore) Create(_ context.Context, a *Account) error {
	if _, ok := m.byEmail[a.Email]; ok {
		return ErrAlreadyExists
	}
	m.byEmail[a.Email] = a
	return nil
}

func newTestService() (*Service, *memStore) {
	st := &memStore{byEmail: map[string]*Account{}}
	svc := NewService(st, testSecret, 2*time.Hour)
	svc.cost = bcrypt.MinCost
	svc.now = func() time.Time { return time.Now().UTC() }
	return svc, st
}

func TestRegisterThenLogin(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	id, err := svc.Register(ctx, RegisterRequest{Name: " Ana Pérez ", Email: "Ana@Colegio.edu", Password: "secreto123", Role: RoleDocente})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	acct := st.byEmail["ana@colegio.edu"]
	require.NotNil(t, acct)
	assert.Equal(t, "ana perez ana@colegio.edu", acct.SearchKey)
	assert.True(t, acct.Active)

	tok, err := svc.Login(ctx, "ana@colegio.edu", "secreto123")
	require.NoError(t, err)

	var claims Claims
	_, err = jwt.ParseWithClaims(tok, &claims, func(*jwt.Token) (any, error) { return testSecret, nil })
	require.NoError(t, err)
	assert.Equal(t, id, claims.Subject)
	assert.Equal(t, RoleDocente, claims.Role)

	_, err = svc.Register(ctx, RegisterRequest{Name: "x", Email: "ana@colegio.edu", Password: "otraclave1"})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestLogin_Failures(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()
	_, err := svc.Register(ctx, RegisterRequest{Name: "Luis", Email: "luis@colegio.edu", Password: "secreto123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, "luis@colegio.edu", "mala")
	assert.ErrorIs(t, err, ErrAuthFailed)

	_, err = svc.Login(ctx, "nadie@colegio.edu", "secreto123")
	assert.ErrorIs(t, err, ErrAuthFailed)

	st.byEmail["luis@colegio.edu"].Active = false
	_, err = svc.Login(ctx, "luis@colegio.edu", "secreto123")
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestRegister_Invalid(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.Register(context.Background(), RegisterRequest{Name: "x", Email: "no-es-email", Password: "secreto123"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Register(context.Background(), RegisterRequest{Name: "x", Email: "a@b.c", Password: "secreto123", Role: "root"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}
