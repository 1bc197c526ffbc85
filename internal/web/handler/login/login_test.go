package login

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/lariatlabs/dirsync/internal/auth"
	"github.com/lariatlabs/dirsync/internal/config"
	"github.com/lariatlabs/dirsync/internal/db/models"
	websess "github.com/lariatlabs/dirsync/internal/web/session"
)

func newTestApp() *fiber.App {
	return fiber.New()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite in-memory db: %v", err)
	}

	if err := db.AutoMigrate(&models.Team{}, &models.Role{}, &models.User{}); err != nil {
		t.Fatalf("failed to migrate models: %v", err)
	}

	if err := db.Create(&models.Team{ID: "team-1", Name: "Team One"}).Error; err != nil {
		t.Fatalf("failed to seed team: %v", err)
	}

	if err := db.Create(&models.Role{ID: 1, Name: "member"}).Error; err != nil {
		t.Fatalf("failed to seed role: %v", err)
	}

	return db
}

func newTestConfig() *config.Config {
	return &config.Config{
		DevMode: false,
		Webserver: config.Webserver{
			URL:     "http://localhost",
			Port:    3000,
			Session: config.Session{ExpiryTime: time.Minute},
		},
		Auth: config.Auth{
			LocalDB: config.LocalDBAuth{Enabled: true},
			LDAP:    config.LDAPAuth{Enabled: false},
		},
	}
}

// testStorage is a minimal in-memory implementation of storage.Storage for tests.
type testStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ storage.Storage = (*testStorage)(nil)

func (s *testStorage) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v := s.data[key]
	out := make([]byte, len(v))
	copy(out, v)

	return out, nil
}

func (s *testStorage) Set(key string, val []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data == nil {
		s.data = make(map[string][]byte)
	}

	buf := make([]byte, len(val))
	copy(buf, val)
	s.data[key] = buf

	return nil
}

func (s *testStorage) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)

	return nil
}

func (s *testStorage) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string][]byte)

	return nil
}

func (s *testStorage) Close() error { return nil }

func initSessionStore() {
	websess.Init(&testStorage{data: make(map[string][]byte)})
}

func TestPickAuthType_DefaultsAndErrors(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app := newTestApp()

	initSessionStore()

	var s Service
	if err := s.Init(app, cfg, db); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	at, err := s.pickAuthType("")
	if err != nil || at != "local" {
		t.Fatalf("expected local, got at=%q err=%v", at, err)
	}

	s.cfg.Auth.LocalDB.Enabled = false
	s.cfg.Auth.LDAP.Enabled = true

	if at, err = s.pickAuthType(""); err != nil || at != "ldap" {
		t.Fatalf("expected default pick ldap, got at=%q err=%v", at, err)
	}

	if _, err = s.pickAuthType("ldap"); err == nil || !errors.Is(err, ErrLDAPAuthDisabled) {
		t.Fatalf("expected ErrLDAPAuthDisabled, got %v", err)
	}

	s.ldapAuth = &auth.LDAPProvider{}

	if at, err = s.pickAuthType("ldap"); err != nil || at != "ldap" {
		t.Fatalf("expected ldap, got at=%q err=%v", at, err)
	}

	if _, errAuthType := s.pickAuthType("unknown"); errAuthType == nil || !errors.Is(errAuthType, ErrInvalidAuthMethod) {
		t.Fatalf("expected ErrInvalidAuthMethod, got %v", errAuthType)
	}
}

func TestAuthenticate_Local(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app := newTestApp()

	initSessionStore()

	var s Service
	if err := s.Init(app, cfg, db); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	lp := auth.NewLocalProvider(db)

	user, err := lp.CreateUser("team-1", "alice", "alice@example.com", "secret", "Alice", "Doe", 1)
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	if !user.Active {
		t.Fatalf("new user must be active by default")
	}

	got, err := s.authenticate("local", "alice", "secret")
	if err != nil || got == nil || got.Username != "alice" {
		t.Fatalf("expected successful auth for alice, got user=%v err=%v", got, err)
	}

	got, err = s.authenticate("local", "alice", "wrong")
	if err == nil || !errors.Is(err, ErrInvalidCredentials) || got != nil {
		t.Fatalf("expected ErrInvalidCredentials, got user=%v err=%v", got, err)
	}

	if u, err := s.authenticate("bogus", "alice", "secret"); err == nil || !errors.Is(err, ErrInvalidAuthMethod) || u != nil {
		t.Fatalf("expected ErrInvalidAuthMethod, got user=%v err=%v", u, err)
	}
}

func performPostJSON(t *testing.T, app *fiber.App, target string, body interface{}) *http.Response {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	return resp
}

func TestPost_Local_Success_SetsCookie(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.DevMode = false

	app := newTestApp()

	initSessionStore()

	var s Service
	if err := s.Init(app, cfg, db); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	lp := auth.NewLocalProvider(db)
	if _, err := lp.CreateUser("team-1", "bob", "bob@example.com", "s3cr3t", "Bob", "Doe", 1); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}

	resp := performPostJSON(t, app, Path, credentials{Username: "bob", Password: "s3cr3t", AuthType: "local"})
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 OK, got %d", resp.StatusCode)
	}

	setCookie := resp.Header.Get("Set-Cookie")
	if setCookie == "" {
		t.Fatalf("expected session cookie to be set")
	}

	var got userResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if got.Username != "bob" {
		t.Fatalf("expected username bob, got %q", got.Username)
	}
}

func TestPost_InvalidJSON_ReturnsBadRequest(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	app := newTestApp()

	initSessionStore()

	var s Service
	if err := s.Init(app, cfg, db); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, Path, bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 Bad Request, got %d", resp.StatusCode)
	}
}

func TestPost_LocalDisabled_ReturnsBadRequest(t *testing.T) {
	db := newTestDB(t)
	cfg := newTestConfig()
	cfg.Auth.LocalDB.Enabled = false

	app := newTestApp()

	initSessionStore()

	var s Service
	if err := s.Init(app, cfg, db); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	resp := performPostJSON(t, app, Path, credentials{Username: "dave", Password: "whatever", AuthType: "local"})
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 Bad Request, got %d", resp.StatusCode)
	}
}
