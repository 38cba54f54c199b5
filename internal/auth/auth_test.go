package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"bandspace/internal/api"
	"bandspace/internal/apperr"
	"bandspace/pkg/config"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]*User
}

func (m *memUsers) Create(ctx context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return apperr.Validation("email %s is already registered", u.Email)
		}
	}
	u.ID = "user-" + u.Email
	u.CreatedAt = time.Now()
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUsers) FindByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("user %s not found", email)
}

func (m *memUsers) GetByID(ctx context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperr.NotFound("user %s not found", id)
	}
	cp := *u
	return &cp, nil
}

const secret = "test-secret"

func testRouter() http.Handler {
	h := Handlers{
		Cfg:   config.AuthConfig{JWTSecret: secret, TokenTTL: time.Hour, BcryptCost: bcrypt.MinCost},
		Users: &memUsers{users: map[string]*User{}},
	}
	r := chi.NewRouter()
	r.Post("/auth/register", h.Register)
	r.Post("/auth/login", h.Login)
	r.Group(func(r chi.Router) {
		r.Use(api.RequireSession(secret, nil))
		r.Get("/auth/me", h.Me)
		r.Post("/auth/logout", h.Logout)
	})
	return r
}

func post(h http.Handler, path, body, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRegisterLoginMe(t *testing.T) {
	h := testRouter()

	rec := post(h, "/auth/register", `{"firstName":"Ana","email":" Ana@Example.com ","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var reg tokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&reg))
	assert.Equal(t, "ana@example.com", reg.User.Email)
	assert.NotEmpty(t, reg.Token)

	rec = post(h, "/auth/register", `{"firstName":"Ana","email":"ana@example.com","password":"correct-horse"}`, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(h, "/auth/login", `{"email":"ana@example.com","password":"wrong-password"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(h, "/auth/login", `{"email":"nobody@example.com","password":"whatever1"}`, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post(h, "/auth/login", `{"email":"ANA@example.com","password":"correct-horse"}`, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var login tokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&login))

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	me := httptest.NewRecorder()
	h.ServeHTTP(me, req)
	require.Equal(t, http.StatusOK, me.Code)
	assert.Contains(t, me.Body.String(), `"email":"ana@example.com"`)
	assert.NotContains(t, me.Body.String(), "password")

	rec = post(h, "/auth/logout", "", login.Token)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRegister_Validation(t *testing.T) {
	h := testRouter()
	for _, body := range []string{
		`{"email":"a@b.c","password":"long-enough"}`,
		`{"firstName":"A","email":"nope","password":"long-enough"}`,
		`{"firstName":"A","email":"a@b.c","password":"short"}`,
		`{"firstName":"A","email":"a@b.c","password":"long-enough","admin":true}`,
	} {
		rec := post(h, "/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestMe_RequiresToken(t *testing.T) {
	h := testRouter()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRevocations(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	rdb, mock := redismock.NewClientMock()
	r := NewRevocations(rdb)
	r.now = func() time.Time { return now }

	mock.ExpectSet(revokedKey("jti-1"), "1", 30*time.Minute).SetVal("OK")
	require.NoError(t, r.Revoke(context.Background(), "jti-1", now.Add(30*time.Minute)))

	mock.ExpectExists(revokedKey("jti-1")).SetVal(1)
	gone, err := r.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.True(t, gone)

	mock.ExpectExists(revokedKey("jti-2")).SetErr(errors.New("connection refused"))
	_, err = r.IsRevoked(context.Background(), "jti-2")
	assert.Error(t, err)

	// Already expired tokens need no entry.
	require.NoError(t, r.Revoke(context.Background(), "jti-3", now.Add(-time.Second)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevocations_NilIsNoop(t *testing.T) {
	var r *Revocations
	require.NoError(t, r.Revoke(context.Background(), "jti", time.Now().Add(time.Hour)))
	gone, err := r.IsRevoked(context.Background(), "jti")
	require.NoError(t, err)
	assert.False(t, gone)
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("s3cret-pass", bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "s3cret-pass"))
	assert.False(t, CheckPassword(hash, "other"))
}
