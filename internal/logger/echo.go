package logger

import (
	"io"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"go.uber.org/zap"
)

// RequestLogger logs one line per request. 4xx responses are logged at
// WARN and 5xx or handler errors at ERROR.
func RequestLogger(l *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/healthz" || p == "/readyz"
		},
		HandleError:  true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogRequestID: true,
		LogStatus:    true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("request.method", v.Method),
				zap.String("request.uri", v.URI),
				zap.String("request.route", v.RoutePath),
				zap.String("request.remote_ip", v.RemoteIP),
				zap.String("request.request_id", v.RequestID),
				zap.Int("response.status", v.Status),
				zap.Duration("response.latency", v.Latency),
			}
			if uid, ok := c.Get("user_id").(uint64); ok {
				fields = append(fields, zap.Uint64("user_id", uid))
			}
			switch {
			case v.Error != nil:
				l.Error("request failed", append(fields, zap.Error(v.Error))...)
			case v.Status >= 500:
				l.Error("server error", fields...)
			case v.Status >= 400:
				l.Warn("client error", fields...)
			default:
				l.Info("request completed", fields...)
			}
			return nil
		},
	})
}

// EchoLogger adapts zap to echo.Logger so that echo's own messages and
// c.Logger() calls end up in the same sink.
type EchoLogger struct {
	z *zap.SugaredLogger
}

// NewEchoLogger wraps l.
func NewEchoLogger(l *zap.Logger) *EchoLogger { return &EchoLogger{z: l.Sugar()} }

func (l *EchoLogger) Output() io.Writer { return zapWriter{l.z} }
func (l *EchoLogger) SetOutput(io.Writer) {}
func (l *EchoLogger) Prefix() string { return "" }
func (l *EchoLogger) SetPrefix(string) {}
func (l *EchoLogger) Level() log.Lvl { return log.INFO }
func (l *EchoLogger) SetLevel(log.Lvl) {}
func (l *EchoLogger) SetHeader(string) {}
func (l *EchoLogger) Print(i ...interface{}) { l.z.Info(i...) }
func (l *EchoLogger) Printf(f string, i ...interface{}) { l.z.Infof(f, i...) }
func (l *EchoLogger) Printj(j log.JSON) { l.z.Infow("json", "json", j) }
func (l *EchoLogger) Debug(i ...interface{}) { l.z.Debug(i...) }
func (l *EchoLogger) Debugf(f string, i ...interface{}) { l.z.Debugf(f, i...) }
func (l *EchoLogger) Debugj(j log.JSON) { l.z.Debugw("json", "json", j) }
func (l *EchoLogger) Info(i ...interface{}) { l.z.Info(i...) }
func (l *EchoLogger) Infof(f string, i ...interface{}) { l.z.Infof(f, i...) }
func (l *EchoLogger) Infoj(j log.JSON) { l.z.Infow("json", "json", j) }
func (l *EchoLogger) Warn(i ...interface{}) { l.z.Warn(i...) }
func (l *EchoLogger) Warnf(f string, i ...interface{}) { l.z.Warnf(f, i...) }
func (l *EchoLogger) Warnj(j log.JSON) { l.z.Warnw("json", "json", j) }
func (l *EchoLogger) Error(i ...interface{}) { l.z.Error(i...) }
func (l *EchoLogger) Errorf(f string, i ...interface{}) { l.z.Errorf(f, i...) }
func (l *EchoLogger) Errorj(j log.JSON) { l.z.Errorw("json", "json", j) }
func (l *EchoLogger) Fatal(i ...interface{}) { l.z.Fatal(i...) }
func (l *EchoLogger) Fatalf(f string, i ...interface{}) { l.z.Fatalf(f, i...) }
func (l *EchoLogger) Fatalj(j log.JSON) { l.z.Fatalw("json", "json", j) }
func (l *EchoLogger) Panic(i ...interface{}) { l.z.Panic(i...) }
func (l *EchoLogger) Panicf(f string, i ...interface{}) { l.z.Panicf(f, i...) }
func (l *EchoLogger) Panicj(j log.JSON) { l.z.Panicw("json", "json", j) }

type zapWriter struct{ z *zap.SugaredLogger }

func (w zapWriter) Write(p []byte) (int, error) {
	w.z.Info(string(p))
	return len(p), nil
}
