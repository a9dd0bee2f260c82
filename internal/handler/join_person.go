package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/golf-intranet/internal/middleware"
	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/repository"
)

type joinPersonStore interface {
	ListByTime(ctx context.Context, timeID uint64) ([]model.JoinPerson, error)
	GetByID(ctx context.Context, id uint64) (*model.JoinPerson, error)
	Update(ctx context.Context, id uint64, u repository.JoinPersonUpdate) (*model.JoinPerson, error)
	UpdateStatus(ctx context.Context, id uint64, from, to model.JoinStatus, refundReason, refundAccount *string) (*model.JoinPerson, error)
	ListByStatuses(ctx context.Context, statuses []model.JoinStatus, managerID *uint64) ([]repository.DepositEntry, error)
}

type blackListLookup interface {
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
}

// JoinPersonHandler serves join persons and the deposit board.  Every
// change that affects seats goes through Tracker.
type JoinPersonHandler struct {
	Joins     joinPersonStore
	Tracker   Occupancy
	BlackList blackListLookup
	Sessions  SessionCache
	Log       *zap.Logger
}

func NewJoinPersonHandler(joins joinPersonStore, tracker Occupancy, bl blackListLookup, sessions SessionCache, log *zap.Logger) *JoinPersonHandler {
	return &JoinPersonHandler{Joins: joins, Tracker: tracker, BlackList: bl, Sessions: sessions, Log: log}
}

type addJoinReq struct {
	ManagerID   *uint64          `json:"manager_id"`
	Name        string           `json:"name" validate:"required,max=100"`
	PhoneNumber string           `json:"phone_number" validate:"required,max=32"`
	JoinType    model.JoinType   `json:"join_type" validate:"required"`
	GreenFee    *int64           `json:"green_fee" validate:"omitempty,min=0"`
	ChargeFee   *int64           `json:"charge_fee" validate:"omitempty,min=0"`
	ChargeRate  *decimal.Decimal `json:"charge_rate"`
}

type updateJoinReq struct {
	ManagerID   *uint64          `json:"manager_id"`
	Name        *string          `json:"name" validate:"omitempty,max=100"`
	PhoneNumber *string          `json:"phone_number" validate:"omitempty,max=32"`
	JoinType    *model.JoinType  `json:"join_type"`
	GreenFee    *int64           `json:"green_fee" validate:"omitempty,min=0"`
	ChargeFee   *int64           `json:"charge_fee" validate:"omitempty,min=0"`
	ChargeRate  *decimal.Decimal `json:"charge_rate"`
}

type statusReq struct {
	Status        model.JoinStatus `json:"status" validate:"required"`
	RefundReason  *string          `json:"refund_reason" validate:"omitempty,max=255"`
	RefundAccount *string          `json:"refund_account" validate:"omitempty,max=255"`
}

// deposit board name -> statuses shown
var depositBoards = map[string][]model.JoinStatus{
	"pending": {model.JoinPendingConfirm, model.JoinConfirming},
	"refunds": {model.JoinRefundPending},
	"done":    {model.JoinConfirmed, model.JoinRefunded},
}

func (h *JoinPersonHandler) ListByTime(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Joins.ListByTime(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *JoinPersonHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	jp, err := h.Joins.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, jp)
}

// Add sells seats on course time :id.  The manager defaults to the caller
// and the commission rate to the caller's own rate.  The response flags
// customers found on the black list; the sale itself is not blocked.
func (h *JoinPersonHandler) Add(c echo.Context) error {
	timeID, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	uid, err := callerID(c)
	if uid == 0 {
		return err
	}
	var req addJoinReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	phone := model.NormalizePhone(req.PhoneNumber)
	if phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone_number has no digits"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	draft := model.JoinPersonDraft{
		ManagerID:   req.ManagerID,
		Name:        req.Name,
		PhoneNumber: phone,
		JoinType:    req.JoinType,
		GreenFee:    req.GreenFee,
		ChargeFee:   req.ChargeFee,
		ChargeRate:  req.ChargeRate,
	}
	if draft.ManagerID == nil {
		draft.ManagerID = &uid
	}
	if draft.ChargeRate == nil && *draft.ManagerID == uid {
		me, err := h.Sessions.Get(ctx, uid)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		rate := me.ChargeRate
		draft.ChargeRate = &rate
	}

	listed, err := h.BlackList.ExistsByPhone(ctx, phone)
	if err != nil {
		// a failed lookup must not block the sale
		h.Log.Warn("black list lookup failed", zap.Uint64("time_id", timeID), zap.Error(err))
	}

	res, err := h.Tracker.AddJoin(ctx, timeID, draft)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"join_person": res.JoinPerson,
		"course_time": res.CourseTime,
		"blacklisted": listed,
	})
}

// Update edits a join person.  A join_type change is applied first through
// the tracker, since it changes the seats taken.
func (h *JoinPersonHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	var req updateJoinReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	var ct *model.CourseTime
	if req.JoinType != nil {
		var err error
		if ct, err = h.Tracker.ChangeJoinType(ctx, id, *req.JoinType); err != nil {
			return writeError(c, h.Log, err)
		}
	}
	jp, err := h.Joins.Update(ctx, id, repository.JoinPersonUpdate{
		ManagerID:   req.ManagerID,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		GreenFee:    req.GreenFee,
		ChargeFee:   req.ChargeFee,
		ChargeRate:  req.ChargeRate,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	resp := echo.Map{"join_person": jp}
	if ct != nil {
		resp["course_time"] = ct
	}
	return c.JSON(http.StatusOK, resp)
}

// Remove deletes a join person and returns its course time with the
// recounted occupancy.
func (h *JoinPersonHandler) Remove(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	ct, err := h.Tracker.RemoveJoin(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"course_time": ct})
}

// SetStatus moves a join person along the deposit/refund workflow.
func (h *JoinPersonHandler) SetStatus(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	var req statusReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	cur, err := h.Joins.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !cur.Status.CanTransition(req.Status) {
		return c.JSON(http.StatusConflict, echo.Map{
			"error": "invalid status transition",
			"from":  cur.Status,
			"to":    req.Status,
		})
	}
	jp, err := h.Joins.UpdateStatus(ctx, id, cur.Status, req.Status, req.RefundReason, req.RefundAccount)
	if err != nil {
		if errors.Is(err, repository.ErrStatusChanged) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "status changed concurrently, reload and retry"})
		}
		return writeError(c, h.Log, err)
	}
	h.Log.Info("join person status changed",
		zap.Uint64("join_person_id", id),
		zap.String("from", cur.Status.Code()),
		zap.String("to", jp.Status.Code()))
	return c.JSON(http.StatusOK, jp)
}

// Deposits lists the deposit board named by ?board= (pending, refunds or
// done).  Managers only see their own sales.
func (h *JoinPersonHandler) Deposits(c echo.Context) error {
	board := c.QueryParam("board")
	if board == "" {
		board = "pending"
	}
	statuses, ok := depositBoards[board]
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "board must be pending, refunds or done"})
	}
	uid, err := callerID(c)
	if uid == 0 {
		return err
	}
	var managerID *uint64
	if !middleware.IsAdmin(c) {
		managerID = &uid
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Joins.ListByStatuses(ctx, statuses, managerID)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}
