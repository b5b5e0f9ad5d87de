package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stationdesk/casedesk-backend/internal/auth"
	"github.com/stationdesk/casedesk-backend/internal/db/dbtest"
	"gorm.io/gorm"
)

func setup(t *testing.T) (*httptest.Server, *gorm.DB) {
	t.Helper()
	d := dbtest.Open(t, &auth.Account{}, &auth.Session{})

	r := chi.NewRouter()
	r.Mount("/auth", auth.SetupRoutes(auth.NewHandler(d, time.Hour, false)))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, d
}

func createAccount(t *testing.T, d *gorm.DB, username, password, role string) auth.Account {
	t.Helper()
	hashed, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	a := auth.Account{
		UserID:         uuid.NewString(),
		Username:       username,
		HashedPassword: hashed,
		Role:           role,
	}
	if err := d.Create(&a).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	return &http.Client{Jar: jar}
}

func post(t *testing.T, c *http.Client, url string, body interface{}) *http.Response {
	t.Helper()
	buf, _ := json.Marshal(body)
	resp, err := c.Post(url, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func login(t *testing.T, c *http.Client, srv *httptest.Server, username, password string) int {
	t.Helper()
	resp := post(t, c, srv.URL+"/auth/login", map[string]string{"username": username, "password": password})
	resp.Body.Close()
	return resp.StatusCode
}

func TestLoginMeLogout(t *testing.T) {
	srv, d := setup(t)
	acct := createAccount(t, d, "desk1", "hunter22", auth.RoleDispatcher)
	c := newClient(t)

	if code := login(t, c, srv, "desk1", "hunter22"); code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", code)
	}

	resp, err := c.Get(srv.URL + "/auth/me")
	if err != nil {
		t.Fatalf("GET /me: %v", err)
	}
	var me auth.MeResponse
	json.NewDecoder(resp.Body).Decode(&me)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", resp.StatusCode)
	}
	if me.UserID != acct.UserID || me.Role != auth.RoleDispatcher {
		t.Errorf("unexpected /me body %+v", me)
	}

	resp = post(t, c, srv.URL+"/auth/logout", nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: expected 200, got %d", resp.StatusCode)
	}

	var count int64
	d.Model(&auth.Session{}).Where("user_id = ?", acct.UserID).Count(&count)
	if count != 0 {
		t.Errorf("session survived logout")
	}

	resp, _ = c.Get(srv.URL + "/auth/me")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("me after logout: expected 401, got %d", resp.StatusCode)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	srv, d := setup(t)
	createAccount(t, d, "desk1", "hunter22", auth.RoleDispatcher)

	if code := login(t, newClient(t), srv, "desk1", "nope"); code != http.StatusUnauthorized {
		t.Errorf("wrong password: expected 401, got %d", code)
	}
	if code := login(t, newClient(t), srv, "ghost", "hunter22"); code != http.StatusUnauthorized {
		t.Errorf("unknown user: expected 401, got %d", code)
	}
}

func TestLoginReplacesSession(t *testing.T) {
	srv, d := setup(t)
	acct := createAccount(t, d, "desk1", "hunter22", auth.RoleDispatcher)

	first, second := newClient(t), newClient(t)
	login(t, first, srv, "desk1", "hunter22")
	login(t, second, srv, "desk1", "hunter22")

	var count int64
	d.Model(&auth.Session{}).Where("user_id = ?", acct.UserID).Count(&count)
	if count != 1 {
		t.Errorf("expected one session per account, got %d", count)
	}

	resp, _ := first.Get(srv.URL + "/auth/me")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("stale session: expected 401, got %d", resp.StatusCode)
	}
}

func TestExpiredSession(t *testing.T) {
	srv, d := setup(t)
	acct := createAccount(t, d, "desk1", "hunter22", auth.RoleDispatcher)
	c := newClient(t)
	login(t, c, srv, "desk1", "hunter22")

	d.Model(&auth.Session{}).Where("user_id = ?", acct.UserID).Update("expires_at", time.Now().Add(-time.Minute))

	resp, _ := c.Get(srv.URL + "/auth/me")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("expired session: expected 401, got %d", resp.StatusCode)
	}
}

func TestRegisterRequiresAdmin(t *testing.T) {
	srv, d := setup(t)
	createAccount(t, d, "desk1", "hunter22", auth.RoleDispatcher)
	createAccount(t, d, "sergeant", "s3cret!", auth.RoleAdmin)
	newAccount := map[string]string{"username": "desk2", "password": "pw123456"}

	dispatcher := newClient(t)
	login(t, dispatcher, srv, "desk1", "hunter22")
	resp := post(t, dispatcher, srv.URL+"/auth/register", newAccount)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("dispatcher register: expected 403, got %d", resp.StatusCode)
	}

	admin := newClient(t)
	login(t, admin, srv, "sergeant", "s3cret!")
	resp = post(t, admin, srv.URL+"/auth/register", newAccount)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("admin register: expected 201, got %d", resp.StatusCode)
	}

	resp = post(t, admin, srv.URL+"/auth/register", newAccount)
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate username: expected 409, got %d", resp.StatusCode)
	}

	if code := login(t, newClient(t), srv, "desk2", "pw123456"); code != http.StatusOK {
		t.Errorf("new account login: expected 200, got %d", code)
	}
}

func TestUpdatePassword(t *testing.T) {
	srv, d := setup(t)
	createAccount(t, d, "desk1", "hunter22", auth.RoleDispatcher)
	c := newClient(t)
	login(t, c, srv, "desk1", "hunter22")

	resp := post(t, c, srv.URL+"/auth/password", map[string]string{"current_password": "wrong", "new_password": "x"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong current password: expected 401, got %d", resp.StatusCode)
	}

	resp = post(t, c, srv.URL+"/auth/password", map[string]string{"current_password": "hunter22", "new_password": "rotated99"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("update password: expected 200, got %d", resp.StatusCode)
	}

	if code := login(t, newClient(t), srv, "desk1", "rotated99"); code != http.StatusOK {
		t.Errorf("login with new password: expected 200, got %d", code)
	}
}
