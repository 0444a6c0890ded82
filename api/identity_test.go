package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"taskboard-api/domain"
)

type mockUsers struct {
	users  map[string]domain.User
	hashes map[string][]byte
}

func newMockUsers() *mockUsers {
	return &mockUsers{users: map[string]domain.User{}, hashes: map[string][]byte{}}
}

func (m *mockUsers) CreateUser(ctx context.Context, user domain.User, passwordHash []byte) error {
	if _, ok := m.users[user.Email]; ok {
		return domain.ErrConflict
	}
	m.users[user.Email] = user
	m.hashes[user.Email] = passwordHash
	return nil
}

func (m *mockUsers) FindUser(ctx context.Context, email string) (domain.User, []byte, error) {
	user, ok := m.users[email]
	if !ok {
		return domain.User{}, nil, domain.ErrNotFound
	}
	return user, m.hashes[email], nil
}

func (m *mockUsers) ListUsers(ctx context.Context) ([]domain.User, error) {
	out := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func postJSON(t *testing.T, handler echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := handler(e.NewContext(req, rec)); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}
	return rec
}

func TestSignupIssuesVerifiableToken(t *testing.T) {
	users := newMockUsers()
	issuer := NewIssuer(testSecret, time.Hour)

	rec := postJSON(t, signup(users, issuer, log.New()), "/signup",
		`{"name":"Alice","email":"alice@example.com","password":"hunter22"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp authResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.User.Email != "alice@example.com" {
		t.Fatalf("unexpected user: %#v", resp.User)
	}

	id, err := NewLocalAuth(testSecret).IdentityFromAuthHeader("Bearer " + resp.Token)
	if err != nil {
		t.Fatalf("issued token not verifiable: %v", err)
	}
	if id.Email != "alice@example.com" || id.Name != "Alice" {
		t.Fatalf("unexpected identity: %#v", id)
	}

	if _, hash, _ := users.FindUser(context.Background(), "alice@example.com"); bcrypt.CompareHashAndPassword(hash, []byte("hunter22")) != nil {
		t.Fatal("stored hash does not match the password")
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	users := newMockUsers()
	issuer := NewIssuer(testSecret, time.Hour)
	body := `{"name":"Alice","email":"alice@example.com","password":"hunter22"}`

	if rec := postJSON(t, signup(users, issuer, log.New()), "/signup", body); rec.Code != http.StatusCreated {
		t.Fatalf("first signup: expected 201, got %d", rec.Code)
	}
	if rec := postJSON(t, signup(users, issuer, log.New()), "/signup", body); rec.Code != http.StatusBadRequest {
		t.Fatalf("duplicate signup: expected 400, got %d", rec.Code)
	}
}

func TestSignupValidation(t *testing.T) {
	users := newMockUsers()
	issuer := NewIssuer(testSecret, time.Hour)
	cases := []string{
		`{"email":"a@example.com","password":"pw"}`,
		`{"name":"A","password":"pw"}`,
		`{"name":"A","email":"a@example.com"}`,
	}
	for _, body := range cases {
		if rec := postJSON(t, signup(users, issuer, log.New()), "/signup", body); rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestLogin(t *testing.T) {
	users := newMockUsers()
	issuer := NewIssuer(testSecret, time.Hour)
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter22"), bcrypt.MinCost)
	_ = users.CreateUser(context.Background(), domain.User{Name: "Alice", Email: "alice@example.com"}, hash)

	rec := postJSON(t, login(users, issuer, log.New()), "/login",
		`{"email":"alice@example.com","password":"hunter22"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp authResponse
	if err := sonic.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected a token")
	}

	rec = postJSON(t, login(users, issuer, log.New()), "/login",
		`{"email":"alice@example.com","password":"wrong"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: expected 401, got %d", rec.Code)
	}

	rec = postJSON(t, login(users, issuer, log.New()), "/login",
		`{"email":"nobody@example.com","password":"hunter22"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown user: expected 401, got %d", rec.Code)
	}
}
