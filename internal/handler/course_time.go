package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/golf-intranet/internal/middleware"
	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/occupancy"
	"github.com/iliyamo/golf-intranet/internal/repository"
)

// Occupancy is the seat tracker (occupancy.Tracker).
type Occupancy interface {
	AddJoin(ctx context.Context, timeID uint64, draft model.JoinPersonDraft) (*occupancy.AddResult, error)
	RemoveJoin(ctx context.Context, joinPersonID uint64) (*model.CourseTime, error)
	ChangeJoinType(ctx context.Context, joinPersonID uint64, next model.JoinType) (*model.CourseTime, error)
	RecomputeOccupancy(ctx context.Context, timeID uint64) (*model.CourseTime, error)
}

type courseTimeStore interface {
	Create(ctx context.Context, ct *model.CourseTime) error
	GetByID(ctx context.Context, id uint64) (*model.CourseTime, error)
	List(ctx context.Context, f repository.CourseTimeFilter) ([]model.CourseTime, error)
	Update(ctx context.Context, id uint64, u repository.CourseTimeUpdate) (*model.CourseTime, error)
	Delete(ctx context.Context, id uint64) error
}

// CourseTimeHandler serves /v1/course-times.
type CourseTimeHandler struct {
	Times   courseTimeStore
	Tracker Occupancy
	Log     *zap.Logger
}

func NewCourseTimeHandler(times courseTimeStore, tracker Occupancy, log *zap.Logger) *CourseTimeHandler {
	return &CourseTimeHandler{Times: times, Tracker: tracker, Log: log}
}

const dayLayout = "2006-01-02"

type courseTimeReq struct {
	CourseID     *uint64    `json:"course_id"`
	SiteID       *uint64    `json:"site_id"`
	ReservedTime *time.Time `json:"reserved_time"`
	ReservedName *string    `json:"reserved_name" validate:"omitempty,max=100"`
	GreenFee     *int64     `json:"green_fee" validate:"omitempty,min=0"`
	ChargeFee    *int64     `json:"charge_fee" validate:"omitempty,min=0"`
	Requirements *string    `json:"requirements"`
	Flag         *int       `json:"flag"`
	Memo         *string    `json:"memo"`
	Status       *string    `json:"status"`
	BlockUntil   *time.Time `json:"block_until"`
	BlockerID    *uint64    `json:"blocker_id"`

	// join_num is derived from the join persons and is rejected on input.
	JoinNum *int `json:"join_num"`
}

// toUpdate converts the request, validating enum labels.
func (r courseTimeReq) toUpdate() (repository.CourseTimeUpdate, string) {
	u := repository.CourseTimeUpdate{
		CourseID:     r.CourseID,
		SiteID:       r.SiteID,
		ReservedTime: r.ReservedTime,
		ReservedName: r.ReservedName,
		GreenFee:     r.GreenFee,
		ChargeFee:    r.ChargeFee,
		Flag:         r.Flag,
		Memo:         r.Memo,
		BlockUntil:   r.BlockUntil,
		BlockerID:    r.BlockerID,
	}
	if r.Requirements != nil {
		req, err := model.ParseRequirements(*r.Requirements)
		if err != nil {
			return u, err.Error()
		}
		u.Requirements = &req
	}
	if r.Status != nil {
		st, err := model.ParseCourseTimeStatus(*r.Status)
		if err != nil {
			return u, err.Error()
		}
		u.Status = &st
	}
	return u, ""
}

// List supports start_date, end_date (YYYY-MM-DD, on reserved_time),
// status, region and mine=true.
func (h *CourseTimeHandler) List(c echo.Context) error {
	var f repository.CourseTimeFilter
	if s := c.QueryParam("start_date"); s != "" {
		t, err := time.Parse(dayLayout, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid start_date"})
		}
		f.Start = &t
	}
	if s := c.QueryParam("end_date"); s != "" {
		t, err := time.Parse(dayLayout, s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid end_date"})
		}
		t = t.AddDate(0, 0, 1) // inclusive day, exclusive bound
		f.End = &t
	}
	if s := c.QueryParam("status"); s != "" {
		st, err := model.ParseCourseTimeStatus(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		f.Status = &st
	}
	if s := c.QueryParam("region"); s != "" {
		rg, err := model.ParseRegion(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		f.Region = &rg
	}
	if c.QueryParam("mine") == "true" {
		uid, err := callerID(c)
		if uid == 0 {
			return err
		}
		f.AuthorID = &uid
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Times.List(ctx, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *CourseTimeHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	ct, err := h.Times.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ct)
}

// Create registers a new course time authored by the caller.  It starts
// unsold with no join persons.
func (h *CourseTimeHandler) Create(c echo.Context) error {
	uid, err := callerID(c)
	if uid == 0 {
		return err
	}
	var req courseTimeReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.ReservedTime == nil || req.CourseID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "course_id and reserved_time required"})
	}
	if req.JoinNum != nil || req.Status != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "join_num and status are not accepted on create"})
	}
	u, msg := req.toUpdate()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ct := &model.CourseTime{
		AuthorID:     &uid,
		CourseID:     u.CourseID,
		SiteID:       u.SiteID,
		ReservedTime: *u.ReservedTime,
		Memo:         u.Memo,
		BlockUntil:   u.BlockUntil,
		BlockerID:    u.BlockerID,
	}
	if u.ReservedName != nil {
		ct.ReservedName = *u.ReservedName
	}
	if u.GreenFee != nil {
		ct.GreenFee = *u.GreenFee
	}
	if u.ChargeFee != nil {
		ct.ChargeFee = *u.ChargeFee
	}
	if u.Requirements != nil {
		ct.Requirements = *u.Requirements
	}
	if u.Flag != nil {
		ct.Flag = *u.Flag
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Times.Create(ctx, ct); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, ct)
}

// Update edits a course time.  A status change is followed by a recount so
// that the stored status agrees with the seats taken, unless the new
// status is 타업체마감.
func (h *CourseTimeHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	var req courseTimeReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.JoinNum != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "join_num is derived from join persons"})
	}
	u, msg := req.toUpdate()
	if msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	ct, err := h.Times.Update(ctx, id, u)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if u.Status != nil {
		if ct, err = h.Tracker.RecomputeOccupancy(ctx, id); err != nil {
			return writeError(c, h.Log, err)
		}
	}
	return c.JSON(http.StatusOK, ct)
}

// Delete removes the course time and its join persons.  Managers may only
// delete course times they registered.
func (h *CourseTimeHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	uid, err := callerID(c)
	if uid == 0 {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()

	if !middleware.IsAdmin(c) {
		ct, err := h.Times.GetByID(ctx, id)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		if ct.AuthorID == nil || *ct.AuthorID != uid {
			return writeError(c, h.Log, repository.ErrForbidden)
		}
	}
	if err := h.Times.Delete(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	h.Log.Info("course time deleted", zap.Uint64("time_id", id), zap.Uint64("by", uid))
	return c.NoContent(http.StatusNoContent)
}

// Recompute repairs join_num and status from the join persons.
func (h *CourseTimeHandler) Recompute(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	ct, err := h.Tracker.RecomputeOccupancy(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ct)
}
