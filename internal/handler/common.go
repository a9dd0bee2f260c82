package handler // handler defines http handlers

import (
    "context"
    "errors"
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/golf-intranet/internal/lock"
    "github.com/iliyamo/golf-intranet/internal/middleware"
    "github.com/iliyamo/golf-intranet/internal/occupancy"
    "github.com/iliyamo/golf-intranet/internal/repository"
)

// requestTimeout bounds the store calls made by a single request.
const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// pathID parses the :name path parameter as a positive id.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    return id, err == nil && id > 0
}

func badID(c echo.Context) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid id"})
}

// callerID returns the authenticated user id or writes 401.
func callerID(c echo.Context) (uint64, error) {
    id, ok := middleware.UserID(c)
    if !ok {
        return 0, c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    return id, nil
}

// writeError maps store and tracker errors onto HTTP responses.
func writeError(c echo.Context, log *zap.Logger, err error) error {
    var (
        capErr  *occupancy.CapacityError
        partial *occupancy.PartialWriteError
    )
    switch {
    case errors.As(err, &capErr):
        return c.JSON(http.StatusConflict, echo.Map{
            "error":     "capacity exceeded",
            "time_id":   capErr.TimeID,
            "join_type": capErr.JoinType,
            "current":   capErr.Current,
            "adding":    capErr.Adding,
            "max":       capErr.Max,
        })
    case errors.As(err, &partial):
        // the tracker already logged and queued the repair
        return c.JSON(http.StatusInternalServerError, echo.Map{
            "error":              "occupancy update failed",
            "time_id":            partial.TimeID,
            "join_person_id":     partial.JoinPersonID,
            "reconcile_required": true,
        })
    case errors.Is(err, repository.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
    case errors.Is(err, repository.ErrForbidden):
        return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
    case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrStatusChanged):
        return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
    case errors.Is(err, lock.ErrTimeout):
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "course time is busy, try again"})
    case errors.Is(err, context.DeadlineExceeded):
        return c.JSON(http.StatusGatewayTimeout, echo.Map{"error": "timeout"})
    }
    if log != nil {
        log.Error("request failed",
            zap.String("path", c.Path()),
            zap.String("method", c.Request().Method),
            zap.Error(err))
    }
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func optString(s string) *string {
    if s == "" {
        return nil
    }
    return &s
}
