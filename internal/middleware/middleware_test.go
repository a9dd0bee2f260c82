package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/golf-intranet/internal/config"
	"github.com/iliyamo/golf-intranet/internal/utils"
)

const testSecret = "test-secret"

func protected(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.GET("/me", func(c echo.Context) error {
		id, _ := UserID(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c), "admin": IsAdmin(c)})
	}, mw...)
	return e
}

func do(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := protected(JWTAuth(testSecret))

	rec := do(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, "garbage")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	tok, err := utils.NewAccessToken(testSecret, 9, RoleAdmin, "관리자", 5)
	require.NoError(t, err)
	rec = do(e, tok.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":9,"role":"ADMIN","admin":true}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := protected(JWTAuth(testSecret), RequireRole(RoleAdmin))

	mgr, err := utils.NewAccessToken(testSecret, 3, RoleManager, "", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, do(e, mgr.Token).Code)

	adm, err := utils.NewAccessToken(testSecret, 1, RoleAdmin, "", 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, do(e, adm.Token).Code)
}

func TestRateKeyStrategies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/course-times", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.1")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/course-times")

	cfg := config.RateLimitConfig{Prefix: "rl", KeyStrategy: "ip"}
	assert.Equal(t, "rl:ip:10.0.0.1", rateKey(cfg, c))

	cfg.KeyStrategy = "ip_user"
	assert.Equal(t, "rl:ip:10.0.0.1:user:anon", rateKey(cfg, c))

	c.Set(ctxUserID, uint64(12))
	cfg.KeyStrategy = "user"
	assert.Equal(t, "rl:user:12", rateKey(cfg, c))

	cfg.KeyStrategy = "ip_user_route"
	assert.Equal(t, "rl:ip:10.0.0.1:user:12:route:GET /v1/course-times", rateKey(cfg, c))
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	rl := NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, zap.NewNop())
	rc := NewResponseCache(config.CacheConfig{Enabled: true}, nil, nil)

	e := echo.New()
	e.GET("/x", func(c echo.Context) error { return c.String(http.StatusOK, "ok") }, rl, rc.Read("courses"))
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
	assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
}

func TestCaptureWriterDropsOversizedBodies(t *testing.T) {
	rec := httptest.NewRecorder()
	cw := &captureWriter{ResponseWriter: rec, status: http.StatusOK, limit: 4}

	_, _ = cw.Write([]byte("ab"))
	assert.False(t, cw.truncated)
	_, _ = cw.Write([]byte("cde"))
	assert.True(t, cw.truncated)
	assert.Zero(t, cw.buf.Len())
	assert.Equal(t, "abcde", rec.Body.String())
}
