package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/hotelcast/tokenauth"
	"github.com/hotelcast/tokenauth/directory"
	"github.com/hotelcast/tokenauth/middleware"
	"github.com/hotelcast/tokenauth/principal"
	"github.com/hotelcast/tokenauth/service"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
}

func newTestServer(t *testing.T, health Pinger) testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := tokenauth.DefaultConfig()
	cfg.JWT.Secret = []byte("httpapi-secret-httpapi-secret-32")
	a, err := tokenauth.New().WithConfig(cfg).WithRedis(rdb).Build()
	require.NoError(t, err)
	t.Cleanup(a.Close)

	dir := directory.NewStatic()
	hash, err := directory.HashPassword("pa55word", bcrypt.MinCost)
	require.NoError(t, err)
	for id, email := range map[int64]string{1: "front@hotel.test", 2: "night@hotel.test"} {
		require.NoError(t, dir.Add(directory.User{
			ID:           id,
			Email:        email,
			PasswordHash: hash,
			Active:       true,
			SystemRole:   principal.RoleUser,
			Hotels:       []principal.HotelAccess{{HotelID: 9, Role: principal.HotelManager}},
		}))
	}

	if health == nil {
		health = a
	}
	h := NewHandler(service.New(dir, a, nil), health, CookieConfig{
		Secure:     true,
		AccessTTL:  a.AccessTTL(),
		RefreshTTL: a.RefreshTTL(),
	}, nil)
	return testServer{router: NewRouter(h, nil)}
}

func (s testServer) do(t *testing.T, method, path, body string, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s testServer) login(t *testing.T, email string) map[string]*http.Cookie {
	t.Helper()

	w := s.do(t, http.MethodPost, "/auth/login", fmt.Sprintf(`{"email":%q,"password":"pa55word"}`, email), nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return cookieMap(w)
}

func cookieMap(w *httptest.ResponseRecorder) map[string]*http.Cookie {
	out := map[string]*http.Cookie{}
	for _, c := range w.Result().Cookies() {
		out[c.Name] = c
	}
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	var body middleware.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestLoginSetsCookies(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/auth/login", `{"email":"front@hotel.test","password":"pa55word"}`, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := cookieMap(w)
	access := cookies[AccessCookie]
	refresh := cookies[RefreshCookie]
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	assert.Equal(t, "/", access.Path)
	assert.Equal(t, "/auth", refresh.Path)
	assert.True(t, access.HttpOnly)
	assert.True(t, refresh.HttpOnly)
	assert.True(t, access.Secure)
	assert.Equal(t, http.SameSiteLaxMode, access.SameSite)
	assert.Equal(t, int((15 * time.Minute).Seconds()), access.MaxAge)
	assert.Equal(t, int((24 * time.Hour).Seconds()), refresh.MaxAge)

	var resp SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.RefreshExpiresAt.After(resp.AccessExpiresAt))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderTraceID))
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/auth/login", `{"email":"front@hotel.test","password":"nope"}`, nil,
		map[string]string{middleware.HeaderTraceID: "trace-abc"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	detail := decodeError(t, w)
	assert.Equal(t, middleware.TypeAuthorization, detail.Type)
	assert.Equal(t, middleware.CodeInvalidCredentials, detail.Code)
	assert.Equal(t, "trace-abc", detail.TraceID)
	assert.Equal(t, "trace-abc", w.Header().Get(middleware.HeaderTraceID))

	w = s.do(t, http.MethodPost, "/auth/login", `{"email":"front@hotel.test"}`, nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, middleware.TypeValidation, decodeError(t, w).Type)
}

func TestRefreshRotatesAndRejectsReuse(t *testing.T) {
	s := newTestServer(t, nil)
	first := s.login(t, "front@hotel.test")

	w := s.do(t, http.MethodPost, "/auth/refresh", "", []*http.Cookie{first[RefreshCookie]}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	next := cookieMap(w)
	require.NotNil(t, next[RefreshCookie])
	assert.NotEqual(t, first[RefreshCookie].Value, next[RefreshCookie].Value)

	w = s.do(t, http.MethodPost, "/auth/refresh", "", []*http.Cookie{first[RefreshCookie]}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.CodeTokenRevoked, decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/auth/refresh", "", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.CodeMissingToken, decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/auth/refresh", "", []*http.Cookie{{Name: RefreshCookie, Value: "garbage"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.CodeInvalidToken, decodeError(t, w).Code)
}

func TestLogoutClearsCookies(t *testing.T) {
	s := newTestServer(t, nil)
	session := s.login(t, "front@hotel.test")

	w := s.do(t, http.MethodPost, "/auth/logout", "", []*http.Cookie{session[RefreshCookie]}, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	cleared := cookieMap(w)
	require.NotNil(t, cleared[AccessCookie])
	assert.Less(t, cleared[AccessCookie].MaxAge, 0)
	assert.Less(t, cleared[RefreshCookie].MaxAge, 0)

	w = s.do(t, http.MethodPost, "/auth/refresh", "", []*http.Cookie{session[RefreshCookie]}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutAll(t *testing.T) {
	s := newTestServer(t, nil)
	a := s.login(t, "front@hotel.test")
	b := s.login(t, "front@hotel.test")
	other := s.login(t, "night@hotel.test")

	w := s.do(t, http.MethodPost, "/auth/logout/all", "", []*http.Cookie{a[RefreshCookie]}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.CodeMissingIdentity, decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/auth/logout/all", "", []*http.Cookie{other[RefreshCookie]},
		map[string]string{principal.HeaderUserID: "1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, middleware.CodeInvalidToken, decodeError(t, w).Code)

	w = s.do(t, http.MethodPost, "/auth/logout/all", "", []*http.Cookie{a[RefreshCookie]},
		map[string]string{principal.HeaderUserID: "1"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(t, http.MethodPost, "/auth/refresh", "", []*http.Cookie{b[RefreshCookie]}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(t, http.MethodPost, "/auth/refresh", "", []*http.Cookie{other[RefreshCookie]}, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error {
	return fmt.Errorf("%w: %w", tokenauth.ErrStore, errors.New("dial tcp: connection refused"))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/auth/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s = newTestServer(t, downPinger{})
	w = s.do(t, http.MethodGet, "/auth/healthz", "", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, middleware.CodeUnavailable, decodeError(t, w).Code)
}
