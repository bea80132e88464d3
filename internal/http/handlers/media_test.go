package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/afterhours/backend/internal/cache"
	"github.com/afterhours/backend/internal/domain/media"
	"github.com/afterhours/backend/internal/http/handlers"
	"github.com/afterhours/backend/internal/repo/memory"
	"github.com/gin-gonic/gin"
)

// countingMediaStore wraps the memory repo to observe store traffic.
type countingMediaStore struct {
	*memory.MediaRepo
	lists atomic.Int64
}

func (c *countingMediaStore) List(ctx context.Context, kind media.Kind) ([]media.Item, error) {
	c.lists.Add(1)
	return c.MediaRepo.List(ctx, kind)
}

func setupMediaRouter(e *testEnv, store handlers.MediaStore) *gin.Engine {
	h := handlers.NewMediaHandler(store, cache.New(time.Minute), e.clock, e.log)

	r := gin.New()
	r.GET("/api/music", e.mw.RequireAuth(), h.ListMusic)
	r.POST("/api/music", e.mw.RequireAuth(), h.CreateMusic)
	r.GET("/api/videos", e.mw.RequireAuth(), h.ListVideos)
	r.POST("/api/videos", e.mw.RequireAuth(), h.CreateVideo)
	return r
}

func TestMedia_ListUsesETagAndCache(t *testing.T) {
	e := newTestEnv(t)
	token := e.seedUser(t, "u-1", "dj", true, nil)
	store := &countingMediaStore{MediaRepo: memory.NewMediaRepo(e.users)}
	r := setupMediaRouter(e, store)

	w := doJSON(t, r, http.MethodPost, "/api/music", token, `{"title":"Night Drive","url":"https://cdn.example.com/a.mp3","artist":"DJ"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, "/api/music", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("list: got %d body=%s", w.Code, w.Body.String())
	}
	etag := w.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header")
	}

	var body struct {
		Items []media.Item `json:"items"`
		Count int          `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Count != 1 || body.Items[0].Kind != media.KindMusic || body.Items[0].UserID != "u-1" {
		t.Fatalf("unexpected list %s", w.Body.String())
	}

	// conditional request served from cache
	req := httptest.NewRequest(http.MethodGet, "/api/music", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("If-None-Match", etag)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotModified {
		t.Fatalf("conditional: got %d want 304", w.Code)
	}
	if n := store.lists.Load(); n != 1 {
		t.Fatalf("store lists: got %d want 1 (second read cached)", n)
	}

	// a new item invalidates the cache and changes the ETag
	doJSON(t, r, http.MethodPost, "/api/music", token, `{"title":"Second","url":"https://cdn.example.com/b.mp3"}`)
	w = doJSON(t, r, http.MethodGet, "/api/music", token, "")
	if w.Header().Get("ETag") == etag {
		t.Fatalf("ETag should change after create")
	}
	if n := store.lists.Load(); n != 2 {
		t.Fatalf("store lists: got %d want 2", n)
	}

	// kinds are separate
	w = doJSON(t, r, http.MethodGet, "/api/videos", token, "")
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body.Count != 0 {
		t.Fatalf("videos should be empty, body=%s", w.Body.String())
	}
}

func TestMedia_CreateValidatesURL(t *testing.T) {
	e := newTestEnv(t)
	token := e.seedUser(t, "u-1", "dj", true, nil)
	r := setupMediaRouter(e, memory.NewMediaRepo(e.users))

	w := doJSON(t, r, http.MethodPost, "/api/videos", token, `{"title":"Clip","url":"not a url"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("got %d want 400 body=%s", w.Code, w.Body.String())
	}
}
