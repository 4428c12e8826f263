package api

import (
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Pudxe/todolist/internal/db"
)

// testEnv holds a test server with an in-memory database
type testEnv struct {
	server *Server
	db     *db.DB
	t      *testing.T
	token  string // auth token after signup/login
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := database.Migrate(); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}

	secret := make([]byte, 32)
	rand.Read(secret)
	s := NewServer(database, secret)

	t.Cleanup(func() { database.Close() })

	return &testEnv{server: s, db: database, t: t}
}

// signup registers an account and stores the returned token
func (e *testEnv) signup(username, password string) {
	e.t.Helper()
	resp := e.post("/api/auth/signup", map[string]string{
		"username": username,
		"password": password,
	})
	if resp.Code != http.StatusCreated {
		e.t.Fatalf("signup failed: %d %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	e.token = body.Token
}

func (e *testEnv) request(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var bodyReader *strings.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = strings.NewReader(string(data))
	} else {
		bodyReader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, bodyReader)
	req.Header.Set("Content-Type", "application/json")
	if e.token != "" {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}

	w := httptest.NewRecorder()
	e.server.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	return e.request("GET", path, nil)
}

func (e *testEnv) post(path string, body any) *httptest.ResponseRecorder {
	return e.request("POST", path, body)
}

func TestSignupAndMe(t *testing.T) {
	env := setupTestEnv(t)
	env.signup("alice", "correct horse")

	resp := env.get("/api/auth/me")
	if resp.Code != http.StatusOK {
		t.Fatalf("me: %d %s", resp.Code, resp.Body.String())
	}
	var account db.Account
	json.Unmarshal(resp.Body.Bytes(), &account)
	if account.Username != "alice" {
		t.Errorf("username = %q, want alice", account.Username)
	}
	if strings.Contains(resp.Body.String(), "password") {
		t.Error("response leaks password material")
	}
}

func TestSignupValidation(t *testing.T) {
	env := setupTestEnv(t)

	resp := env.post("/api/auth/signup", map[string]string{"username": "", "password": "long enough"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("empty username: %d, want 400", resp.Code)
	}
	resp = env.post("/api/auth/signup", map[string]string{"username": "bob", "password": "short"})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("short password: %d, want 400", resp.Code)
	}
}

func TestSignupDuplicateUsername(t *testing.T) {
	env := setupTestEnv(t)
	env.signup("alice", "correct horse")

	resp := env.post("/api/auth/signup", map[string]string{
		"username": "alice",
		"password": "different pass",
	})
	if resp.Code != http.StatusConflict {
		t.Errorf("duplicate signup: %d, want 409", resp.Code)
	}
}

func TestLogin(t *testing.T) {
	env := setupTestEnv(t)
	env.signup("alice", "correct horse")
	env.token = ""

	resp := env.post("/api/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("wrong password: %d, want 401", resp.Code)
	}

	resp = env.post("/api/auth/login", map[string]string{
		"username": "alice",
		"password": "correct horse",
	})
	if resp.Code != http.StatusOK {
		t.Fatalf("login: %d %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Token string `json:"token"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Token == "" {
		t.Fatal("login returned no token")
	}

	env.token = body.Token
	if resp := env.get("/api/auth/me"); resp.Code != http.StatusOK {
		t.Errorf("me with login token: %d", resp.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := setupTestEnv(t)
	env.signup("alice", "correct horse")
	env.token = ""

	for i := 0; i < 5; i++ {
		env.post("/api/auth/login", map[string]string{"username": "alice", "password": "wrong"})
	}
	resp := env.post("/api/auth/login", map[string]string{"username": "alice", "password": "correct horse"})
	if resp.Code != http.StatusTooManyRequests {
		t.Errorf("after 5 failures: %d, want 429", resp.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := setupTestEnv(t)

	if resp := env.get("/api/auth/me"); resp.Code != http.StatusUnauthorized {
		t.Errorf("me without token: %d, want 401", resp.Code)
	}
	if resp := env.post("/api/bot/code", nil); resp.Code != http.StatusUnauthorized {
		t.Errorf("code without token: %d, want 401", resp.Code)
	}

	env.token = "not-a-jwt"
	if resp := env.get("/api/auth/me"); resp.Code != http.StatusUnauthorized {
		t.Errorf("me with garbage token: %d, want 401", resp.Code)
	}
}

func TestBotCodeIssuesLinkableCode(t *testing.T) {
	env := setupTestEnv(t)
	env.signup("alice", "correct horse")

	resp := env.post("/api/bot/code", nil)
	if resp.Code != http.StatusCreated {
		t.Fatalf("code: %d %s", resp.Code, resp.Body.String())
	}
	var body struct {
		Code      string    `json:"code"`
		ExpiresAt time.Time `json:"expiresAt"`
	}
	json.Unmarshal(resp.Body.Bytes(), &body)
	if body.Code == "" {
		t.Fatal("empty code")
	}
	if !body.ExpiresAt.After(time.Now()) {
		t.Errorf("code already expired: %v", body.ExpiresAt)
	}

	// The issued code actually links a conversation to this account.
	conv, _, err := env.db.GetOrCreateConversation(100, 7)
	if err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	account, err := env.db.LinkConversationAccount(conv.ID, body.Code)
	if err != nil {
		t.Fatalf("link with issued code: %v", err)
	}
	if account.Username != "alice" {
		t.Errorf("linked account = %q, want alice", account.Username)
	}
}
