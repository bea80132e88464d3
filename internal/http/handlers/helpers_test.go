package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/afterhours/backend/internal/auth"
	"github.com/afterhours/backend/internal/domain/user"
	"github.com/afterhours/backend/internal/http/middlewares"
	"github.com/afterhours/backend/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

// Make sure Gin does not spam the console during the test
func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	now   time.Time
	users *memory.UsersRepo
	jwt   *auth.Manager
	mw    *middlewares.AuthMiddleware
	log   *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	e := &testEnv{
		now:   time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC),
		users: memory.NewUsersRepo(),
		jwt:   auth.NewManager("test-secret-key", time.Hour),
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	e.mw = middlewares.NewAuthMiddleware(e.jwt, e.users, e.log)

	return e
}

func (e *testEnv) clock() time.Time { return e.now }

// seedUser stores a user and returns a valid access token for them.
func (e *testEnv) seedUser(t *testing.T, id, username string, subscriber bool, trialEnd *time.Time) string {
	t.Helper()

	e.users.Put(user.User{
		ID:         id,
		FirstName:  "Test",
		LastName:   "User",
		Username:   username,
		Email:      username + "@example.com",
		Subscriber: subscriber,
		TrialEnd:   trialEnd,
		CreatedAt:  e.now,
	})

	token, err := e.jwt.GenerateAccessToken(id, username)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return token
}

func doJSON(t *testing.T, r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = bytes.NewBufferString(body)
	}

	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()

	var resp errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal error response: %v body=%s", err, w.Body.String())
	}
	return resp
}

func timePtr(t time.Time) *time.Time { return &t }
