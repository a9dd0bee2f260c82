package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/golf-intranet/internal/performance"
)

type reportBuilder interface {
	Build(ctx context.Context, r performance.Range, managerID *uint64) (*performance.Report, error)
}

// PerformanceHandler serves sales reports over ?start_date=&end_date=
// (YYYY-MM-DD, inclusive; default the last month).
type PerformanceHandler struct {
	Reports reportBuilder
	Log     *zap.Logger
	Now     func() time.Time
}

func NewPerformanceHandler(r reportBuilder, log *zap.Logger) *PerformanceHandler {
	return &PerformanceHandler{Reports: r, Log: log, Now: time.Now}
}

func (h *PerformanceHandler) report(c echo.Context, managerID *uint64) error {
	r, err := performance.ParseRange(c.QueryParam("start_date"), c.QueryParam("end_date"), h.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rep, err := h.Reports.Build(ctx, r, managerID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, rep)
}

// All reports every manager and golf club.  Admin only.
func (h *PerformanceHandler) All(c echo.Context) error { return h.report(c, nil) }

// Mine restricts the report to the caller's own sales.
func (h *PerformanceHandler) Mine(c echo.Context) error {
	uid, err := callerID(c)
	if uid == 0 {
		return err
	}
	return h.report(c, &uid)
}
