package handler

import (
    "context"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"
)

// Health is the liveness probe.  It returns "ok" as long as the process
// serves HTTP.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Ready reports 503 until every dependency answers a ping.  Optional
// dependencies such as Redis are passed as nil when not configured.
func Ready(deps map[string]func(context.Context) error) echo.HandlerFunc {
    return func(c echo.Context) error {
        ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
        defer cancel()
        status := http.StatusOK
        report := echo.Map{}
        for name, ping := range deps {
            if ping == nil {
                report[name] = "disabled"
                continue
            }
            if err := ping(ctx); err != nil {
                status = http.StatusServiceUnavailable
                report[name] = err.Error()
                continue
            }
            report[name] = "ok"
        }
        return c.JSON(status, report)
    }
}
