package middleware

import (
    "bytes"
    "context"
    "crypto/sha1"
    "encoding/json"
    "fmt"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"
    "go.uber.org/zap"

    "github.com/iliyamo/golf-intranet/internal/config"
)

// captureWriter tees the response body into buf, up to limit bytes.
type captureWriter struct {
    http.ResponseWriter
    status    int
    buf       bytes.Buffer
    limit     int
    truncated bool
}

func (cw *captureWriter) WriteHeader(code int) { cw.status = code; cw.ResponseWriter.WriteHeader(code) }

func (cw *captureWriter) Write(b []byte) (int, error) {
    if !cw.truncated {
        if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
            cw.truncated = true
            cw.buf.Reset()
        } else {
            cw.buf.Write(b)
        }
    }
    return cw.ResponseWriter.Write(b)
}

// cachedResponse is the value stored in Redis for one cached GET.
type cachedResponse struct {
    Status      int    `json:"status"`
    ContentType string `json:"content_type"`
    Body        []byte `json:"body"`
}

// ResponseCache caches successful reads of one resource scope (e.g.
// "courses").  Every entry key embeds the scope's version counter;
// Invalidate bumps the counter so all older entries stop matching and
// expire on their own TTL.
type ResponseCache struct {
    cfg config.CacheConfig
    rdb *redis.Client
    log *zap.Logger
}

// NewResponseCache returns a cache bound to rdb.  A nil rdb or a disabled
// config yields a cache whose middlewares pass through.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *zap.Logger) *ResponseCache {
    if cfg.TTL <= 0 {
        cfg.TTL = time.Minute
    }
    if log == nil {
        log = zap.NewNop()
    }
    return &ResponseCache{cfg: cfg, rdb: rdb, log: log}
}

func (rc *ResponseCache) enabled() bool { return rc.cfg.Enabled && rc.rdb != nil }

func (rc *ResponseCache) versionKey(scope string) string {
    return rc.cfg.Prefix + ":" + scope + ":ver"
}

func (rc *ResponseCache) entryKey(ctx context.Context, scope string, c echo.Context) (string, error) {
    ver, err := rc.rdb.Get(ctx, rc.versionKey(scope)).Int64()
    if err != nil && err != redis.Nil {
        return "", err
    }
    sum := sha1.Sum([]byte(c.Path() + "?" + c.Request().URL.RawQuery))
    return fmt.Sprintf("%s:%s:v%d:%x", rc.cfg.Prefix, scope, ver, sum[:]), nil
}

// Read serves cached 200 responses for scope and stores fresh ones.
func (rc *ResponseCache) Read(scope string) echo.MiddlewareFunc {
    if !rc.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if !rc.cfg.Methods[c.Request().Method] {
                return next(c)
            }
            ctx := c.Request().Context()
            key, err := rc.entryKey(ctx, scope, c)
            if err != nil {
                rc.log.Warn("cache: version lookup failed", zap.String("scope", scope), zap.Error(err))
                return next(c)
            }

            if bs, err := rc.rdb.Get(ctx, key).Bytes(); err == nil {
                var hit cachedResponse
                if json.Unmarshal(bs, &hit) == nil {
                    c.Response().Header().Set("X-Cache", "HIT")
                    return c.Blob(hit.Status, hit.ContentType, hit.Body)
                }
            }

            cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.cfg.MaxBodyBytes}
            c.Response().Writer = cw
            c.Response().Header().Set("X-Cache", "MISS")
            if err := next(c); err != nil {
                return err
            }
            if cw.status != http.StatusOK || cw.truncated {
                return nil
            }
            payload, err := json.Marshal(cachedResponse{
                Status:      cw.status,
                ContentType: c.Response().Header().Get(echo.HeaderContentType),
                Body:        cw.buf.Bytes(),
            })
            if err != nil {
                return nil
            }
            if err := rc.rdb.Set(context.Background(), key, payload, rc.cfg.TTL).Err(); err != nil {
                rc.log.Warn("cache: store failed", zap.String("key", key), zap.Error(err))
            }
            return nil
        }
    }
}

// Invalidate bumps the version of each scope.
func (rc *ResponseCache) Invalidate(ctx context.Context, scopes ...string) {
    if !rc.enabled() {
        return
    }
    for _, s := range scopes {
        if err := rc.rdb.Incr(ctx, rc.versionKey(s)).Err(); err != nil {
            rc.log.Warn("cache: invalidate failed", zap.String("scope", s), zap.Error(err))
        }
    }
}

// InvalidateOnWrite bumps scopes after any non-GET request that finished
// with a 2xx status.
func (rc *ResponseCache) InvalidateOnWrite(scopes ...string) echo.MiddlewareFunc {
    if !rc.enabled() {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            err := next(c)
            m := strings.ToUpper(c.Request().Method)
            if m != http.MethodGet && m != http.MethodHead && err == nil && c.Response().Status/100 == 2 {
                rc.Invalidate(context.Background(), scopes...)
            }
            return err
        }
    }
}
