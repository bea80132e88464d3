package handlers_test

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/afterhours/backend/internal/domain/user"
	"github.com/afterhours/backend/internal/http/handlers"
	"github.com/afterhours/backend/internal/security"
	"github.com/gin-gonic/gin"
)

type sessionBody struct {
	User struct {
		ID         string     `json:"id"`
		Username   string     `json:"username"`
		Subscriber bool       `json:"subscriber"`
		TrialEnd   *time.Time `json:"trialEnd"`
		Age        *int       `json:"age"`
	} `json:"user"`
	Token       string `json:"token"`
	Entitlement struct {
		HasAccess        bool       `json:"hasAccess"`
		TrialEnd         *time.Time `json:"trialEnd"`
		RemainingSeconds int64      `json:"remainingSeconds"`
	} `json:"entitlement"`
}

func decodeSession(t *testing.T, body []byte) sessionBody {
	t.Helper()
	var s sessionBody
	if err := json.Unmarshal(body, &s); err != nil {
		t.Fatalf("unmarshal session: %v body=%s", err, body)
	}
	return s
}

func setupAuthRouter(e *testEnv) *gin.Engine {
	h := handlers.NewAuthHandler(e.users, e.jwt, e.clock, 72*time.Hour, e.log)

	r := gin.New()
	r.POST("/api/user/register", h.Register)
	r.POST("/api/user/login", h.Login)
	r.GET("/api/user/profile", e.mw.RequireAuth(), h.Profile)
	r.PUT("/api/user/profile", e.mw.RequireAuth(), h.UpdateProfile)
	return r
}

const registerBody = `{"firstName":"Ada","lastName":"Lovelace","username":"ada","email":"Ada@Example.com","password":"supersecret","subscriber":true,"trialEnd":"2099-01-01T00:00:00Z"}`

func TestRegister_StartsTrialAndIssuesToken(t *testing.T) {
	e := newTestEnv(t)
	r := setupAuthRouter(e)

	w := doJSON(t, r, http.MethodPost, "/api/user/register", "", registerBody)
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d, body=%s", w.Code, http.StatusCreated, w.Body.String())
	}

	s := decodeSession(t, w.Body.Bytes())

	if s.User.Subscriber {
		t.Fatalf("client must not be able to self-assign subscriber")
	}
	wantEnd := e.now.Add(72 * time.Hour)
	if s.User.TrialEnd == nil || !s.User.TrialEnd.Equal(wantEnd) {
		t.Fatalf("trialEnd: got %v want %v", s.User.TrialEnd, wantEnd)
	}
	if !s.Entitlement.HasAccess || s.Entitlement.RemainingSeconds != int64(72*time.Hour/time.Second) {
		t.Fatalf("unexpected entitlement %+v", s.Entitlement)
	}

	claims, err := e.jwt.VerifyAccessToken(s.Token)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if claims.UserID != s.User.ID || claims.Username != "ada" {
		t.Fatalf("unexpected claims %+v", claims)
	}

	stored, err := e.users.GetByUsername(t.Context(), "ada")
	if err != nil {
		t.Fatalf("user not stored: %v", err)
	}
	if stored.Email != "ada@example.com" {
		t.Fatalf("email should be normalized, got %q", stored.Email)
	}
	if stored.PasswordHash == "" || stored.PasswordHash == "supersecret" {
		t.Fatalf("password must be stored hashed")
	}
	if containsKey(w.Body.Bytes(), "passwordHash") {
		t.Fatalf("hash leaked in response: %s", w.Body.String())
	}
}

func containsKey(body []byte, key string) bool {
	var m map[string]map[string]any
	if err := json.Unmarshal(body, &m); err != nil {
		return false
	}
	_, ok := m["user"][key]
	return ok
}

func TestRegister_Conflicts(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{
			name:     "email taken",
			body:     `{"firstName":"A","lastName":"B","username":"other","email":"ada@example.com","password":"supersecret"}`,
			wantCode: "email_taken",
		},
		{
			name:     "username taken",
			body:     `{"firstName":"A","lastName":"B","username":"ada","email":"new@example.com","password":"supersecret"}`,
			wantCode: "username_taken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			r := setupAuthRouter(e)

			if w := doJSON(t, r, http.MethodPost, "/api/user/register", "", registerBody); w.Code != http.StatusCreated {
				t.Fatalf("seed register failed: %d %s", w.Code, w.Body.String())
			}

			w := doJSON(t, r, http.MethodPost, "/api/user/register", "", tt.body)
			if w.Code != http.StatusConflict {
				t.Fatalf("got status %d, want 409, body=%s", w.Code, w.Body.String())
			}
			if got := decodeError(t, w).Error.Code; got != tt.wantCode {
				t.Fatalf("code: got %q want %q", got, tt.wantCode)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	e := newTestEnv(t)
	r := setupAuthRouter(e)

	hash, err := security.HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	// legacy account without a trial
	e.users.Put(user.User{ID: "u-legacy", Username: "legacy", Email: "legacy@example.com", PasswordHash: hash})

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"unknown user", `{"username":"nobody","password":"correct horse"}`, http.StatusUnauthorized},
		{"wrong password", `{"username":"legacy","password":"battery staple"}`, http.StatusUnauthorized},
		{"missing password", `{"username":"legacy"}`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doJSON(t, r, http.MethodPost, "/api/user/login", "", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusUnauthorized && decodeError(t, w).Error.Code != "invalid_credentials" {
				t.Fatalf("unexpected body %s", w.Body.String())
			}
		})
	}

	w := doJSON(t, r, http.MethodPost, "/api/user/login", "", `{"username":"legacy","password":"correct horse"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	first := decodeSession(t, w.Body.Bytes())
	wantEnd := e.now.Add(72 * time.Hour)
	if first.User.TrialEnd == nil || !first.User.TrialEnd.Equal(wantEnd) {
		t.Fatalf("first login should provision the trial, got %v", first.User.TrialEnd)
	}

	// a later login never moves an existing trial end
	e.now = e.now.Add(10 * time.Hour)
	w = doJSON(t, r, http.MethodPost, "/api/user/login", "", `{"username":"legacy","password":"correct horse"}`)
	second := decodeSession(t, w.Body.Bytes())
	if second.User.TrialEnd == nil || !second.User.TrialEnd.Equal(wantEnd) {
		t.Fatalf("trial end moved: got %v want %v", second.User.TrialEnd, wantEnd)
	}
	if second.Entitlement.RemainingSeconds != int64(62*time.Hour/time.Second) {
		t.Fatalf("remaining: got %d", second.Entitlement.RemainingSeconds)
	}
}

func TestProfile_GetAndUpdate(t *testing.T) {
	e := newTestEnv(t)
	r := setupAuthRouter(e)

	end := e.now.Add(time.Hour)
	token := e.seedUser(t, "u-1", "alice", false, &end)

	w := doJSON(t, r, http.MethodGet, "/api/user/profile", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}
	if s := decodeSession(t, w.Body.Bytes()); s.Token == "" || s.User.Username != "alice" {
		t.Fatalf("unexpected profile %+v", s)
	}

	w = doJSON(t, r, http.MethodPut, "/api/user/profile", token,
		`{"age":30,"subscriber":true,"trialEnd":"2099-01-01T00:00:00Z"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}

	s := decodeSession(t, w.Body.Bytes())
	if s.User.Age == nil || *s.User.Age != 30 {
		t.Fatalf("age not updated: %+v", s.User)
	}

	stored, _ := e.users.GetByID(t.Context(), "u-1")
	if stored.Subscriber || stored.TrialEnd == nil || !stored.TrialEnd.Equal(end) {
		t.Fatalf("entitlement fields changed through profile update: %+v", stored)
	}
}

func TestProfile_RequiresAuth(t *testing.T) {
	e := newTestEnv(t)
	r := setupAuthRouter(e)

	w := doJSON(t, r, http.MethodGet, "/api/user/profile", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want 401", w.Code)
	}
	if got := decodeError(t, w).Error.Message; got != "Not authorized" {
		t.Fatalf("message: got %q", got)
	}
}
