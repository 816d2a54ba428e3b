package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"media-shelf/internal/database"
	"media-shelf/internal/indexer"
	"media-shelf/internal/media"
	"media-shelf/internal/startup"
)

const (
	adminName = "admin"
	adminPass = "admin-secret"
	userName  = "viewer"
	userPass  = "viewer-secret"
)

// fakeThumbnailer returns a fixed image, or err when set.
type fakeThumbnailer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeThumbnailer) Generate(entry database.PathIdentity) (database.Thumbnail, error) {
	f.calls.Add(1)
	if f.err != nil {
		return database.Thumbnail{}, f.err
	}
	data := []byte("jpeg:" + entry.ID)
	return database.Thumbnail{
		Data:     data,
		Filename: filepath.Base(entry.Path) + ".jpg",
		Mime:     "image/jpeg",
		Size:     int64(len(data)),
	}, nil
}

type testServer struct {
	t        *testing.T
	db       *database.Database
	idx      *indexer.Indexer
	thumbs   *fakeThumbnailer
	mediaDir string
	router   http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	root := t.TempDir()
	mediaDir := filepath.Join(root, "media")
	require.NoError(t, os.MkdirAll(mediaDir, 0o755))

	db, err := database.New(ctx, filepath.Join(root, "shelf.db"), &database.Options{
		Persistent:   true,
		PasswordCost: bcrypt.MinCost,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.CreateUser(ctx, adminName, adminPass, true))
	require.NoError(t, db.CreateUser(ctx, userName, userPass, false))

	idx := indexer.New(db, mediaDir, 0)
	t.Cleanup(idx.Stop)

	thumbs := &fakeThumbnailer{}
	h := New(db, idx, thumbs, &startup.Config{MediaDir: mediaDir})

	return &testServer{t: t, db: db, idx: idx, thumbs: thumbs, mediaDir: mediaDir, router: h.Router()}
}

func (s *testServer) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()

	w := s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: username, Password: password})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())

	var resp AuthResponse
	require.NoError(s.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(s.t, resp.Token)
	return resp.Token
}

// register puts a path into the registry and returns its id.
func (s *testServer) register(rel string, isTitle bool) string {
	s.t.Helper()

	id := database.NewID()
	s.db.Enqueue(filepath.Join(s.mediaDir, rel), id, isTitle)
	_, err := s.db.Flush(context.Background())
	require.NoError(s.t, err)
	return id
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestLogin(t *testing.T) {
	s := newTestServer(t)

	t.Run("success sets cookie and returns token", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: adminName, Password: adminPass})
		require.Equal(t, http.StatusOK, w.Code)

		resp := decode[AuthResponse](t, w)
		assert.True(t, resp.Success)
		assert.True(t, resp.IsAdmin)
		assert.Equal(t, adminName, resp.Username)

		cookies := w.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Equal(t, SessionCookieName, cookies[0].Name)
		assert.Equal(t, resp.Token, cookies[0].Value)
	})

	t.Run("second login returns the same token", func(t *testing.T) {
		assert.Equal(t, s.login(userName, userPass), s.login(userName, userPass))
	})

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{"wrong password", LoginRequest{Username: adminName, Password: "nope-nope"}},
		{"unknown user", LoginRequest{Username: "ghost", Password: adminPass}},
		{"empty", LoginRequest{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/auth/login", "", tt.req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "Invalid username or password", decode[map[string]string](t, w)["error"])
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("{"))
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	for _, path := range []string{"/api/auth/check", "/api/id?path=x", "/api/thumbnail/abc", "/api/users"} {
		w := s.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)

		w = s.do(http.MethodGet, path, "not-a-token", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCheckAuthWithCookie(t *testing.T) {
	s := newTestServer(t)
	token := s.login(userName, userPass)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", http.NoBody)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[AuthResponse](t, w)
	assert.Equal(t, userName, resp.Username)
	assert.False(t, resp.IsAdmin)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)
	token := s.login(userName, userPass)

	w := s.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/auth/check", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code, "token must be revoked")

	// A new login issues a new token.
	assert.NotEqual(t, token, s.login(userName, userPass))

	w = s.do(http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusOK, w.Code, "logout without a session is not an error")
}

func TestAdminRequired(t *testing.T) {
	s := newTestServer(t)
	token := s.login(userName, userPass)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/users"},
		{http.MethodPut, "/api/users/" + adminName},
		{http.MethodDelete, "/api/users/" + adminName},
		{http.MethodPost, "/api/maintenance/optimize"},
		{http.MethodPost, "/api/maintenance/reindex"},
	} {
		w := s.do(tc.method, tc.path, token, UserRequest{})
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestUserManagement(t *testing.T) {
	s := newTestServer(t)
	token := s.login(adminName, adminPass)

	w := s.do(http.MethodGet, "/api/users", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []database.UserSummary{
		{Username: adminName, IsAdmin: true},
		{Username: userName, IsAdmin: false},
	}, decode[[]database.UserSummary](t, w))

	t.Run("create", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/users", token, UserRequest{Username: "carol", Password: "carol-pass"})
		assert.Equal(t, http.StatusCreated, w.Code)
		s.login("carol", "carol-pass")
	})

	t.Run("create duplicate", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/users", token, UserRequest{Username: userName, Password: "whatever1"})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("create invalid", func(t *testing.T) {
		w := s.do(http.MethodPost, "/api/users", token, UserRequest{Username: "x", Password: "whatever1"})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(http.MethodPost, "/api/users", token, UserRequest{Username: "dave", Password: "123"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rename and promote", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/users/carol", token, UserRequest{Username: "caroline", IsAdmin: true})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		// Password unchanged.
		carol := s.login("caroline", "carol-pass")
		w = s.do(http.MethodGet, "/api/users", carol, nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("password change revokes token", func(t *testing.T) {
		viewer := s.login(userName, userPass)

		w := s.do(http.MethodPut, "/api/users/"+userName, token, UserRequest{Password: "new-viewer-pass"})
		require.Equal(t, http.StatusOK, w.Code)

		w = s.do(http.MethodGet, "/api/auth/check", viewer, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
		s.login(userName, "new-viewer-pass")
	})

	t.Run("update unknown", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/users/nobody", token, UserRequest{})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update to taken name", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/users/caroline", token, UserRequest{Username: userName, IsAdmin: true})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("cannot demote or delete self", func(t *testing.T) {
		w := s.do(http.MethodPut, "/api/users/"+adminName, token, UserRequest{IsAdmin: false})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = s.do(http.MethodDelete, "/api/users/"+adminName, token, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("delete", func(t *testing.T) {
		w := s.do(http.MethodDelete, "/api/users/caroline", token, nil)
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: "caroline", Password: "carol-pass"})
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestGetIDAndPath(t *testing.T) {
	s := newTestServer(t)
	token := s.login(userName, userPass)
	id := s.register("Show", true)

	w := s.do(http.MethodGet, "/api/id?path=Show", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, IDResponse{ID: id, Path: "Show"}, decode[IDResponse](t, w))

	w = s.do(http.MethodGet, "/api/path/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[IDResponse](t, w)
	assert.Equal(t, "Show", resp.Path)
	require.NotNil(t, resp.IsTitle)
	assert.True(t, *resp.IsTitle)

	tests := []struct {
		name string
		path string
		want int
	}{
		{"unknown path", "/api/id?path=Other", http.StatusNotFound},
		{"missing path", "/api/id", http.StatusBadRequest},
		{"traversal", "/api/id?path=../etc/passwd", http.StatusBadRequest},
		{"absolute outside", "/api/id?path=/etc/passwd", http.StatusBadRequest},
		{"unknown id", "/api/path/" + database.NewID(), http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.do(http.MethodGet, tt.path, token, nil).Code)
		})
	}
}

func TestGetThumbnailCachesGenerated(t *testing.T) {
	s := newTestServer(t)
	token := s.login(userName, userPass)
	id := s.register("Show/ep1.png", false)

	w := s.do(http.MethodGet, "/api/thumbnail/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "miss", w.Header().Get("X-Thumbnail-Cache"))
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "jpeg:"+id, w.Body.String())

	w = s.do(http.MethodGet, "/api/thumbnail/"+id, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hit", w.Header().Get("X-Thumbnail-Cache"))
	assert.Equal(t, "jpeg:"+id, w.Body.String())

	assert.EqualValues(t, 1, s.thumbs.calls.Load(), "second request must be served from the cache")
}

func TestGetThumbnailErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.login(userName, userPass)
	id := s.register("movie.mp4", true)

	w := s.do(http.MethodGet, "/api/thumbnail/"+database.NewID(), token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.thumbs.err = media.ErrUnsupported
	w = s.do(http.MethodGet, "/api/thumbnail/"+id, token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	s.thumbs.err = errors.New("decoder exploded")
	w = s.do(http.MethodGet, "/api/thumbnail/"+id, token, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	_, ok, err := s.db.GetThumbnail(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, ok, "failed generations must not be cached")
}

func TestOptimizeEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.login(adminName, adminPass)

	s.register("gone.mp4", true)
	present := filepath.Join(s.mediaDir, "here.mp4")
	require.NoError(t, os.WriteFile(present, []byte("x"), 0o644))
	s.register("here.mp4", true)

	w := s.do(http.MethodPost, "/api/maintenance/optimize", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[OptimizeResponse](t, w)
	assert.Equal(t, 1, resp.DanglingIDs)
	assert.True(t, resp.Vacuumed)

	_, ok, err := s.db.GetID(context.Background(), present)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReindexEndpoint(t *testing.T) {
	s := newTestServer(t)
	token := s.login(adminName, adminPass)
	require.NoError(t, os.WriteFile(filepath.Join(s.mediaDir, "clip.mp4"), []byte("x"), 0o644))

	w := s.do(http.MethodPost, "/api/maintenance/reindex", token, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Eventually(t, func() bool {
		_, ok, err := s.db.GetID(context.Background(), filepath.Join(s.mediaDir, "clip.mp4"))
		return err == nil && ok
	}, 5*time.Second, 10*time.Millisecond)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, statusStarting, decode[HealthResponse](t, w).Status)

	assert.Equal(t, http.StatusServiceUnavailable, s.do(http.MethodGet, "/readyz", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/livez", "", nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodHead, "/livez", "", nil).Code)

	s.idx.Start()
	require.Eventually(t, s.idx.IsReady, 5*time.Second, 10*time.Millisecond)

	w = s.do(http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, statusHealthy, resp.Status)
	require.NotNil(t, resp.Counts)
	assert.Equal(t, 2, resp.Counts.Users)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/readyz", "", nil).Code)
}

func TestVersion(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/version", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, startup.GetBuildInfo().Version, decode[startup.BuildInfo](t, w).Version)
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))
}

func TestNotFound(t *testing.T) {
	s := newTestServer(t)
	w := s.do(http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}
