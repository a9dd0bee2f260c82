package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/iliyamo/golf-intranet/internal/middleware"
	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/repository"
	"github.com/iliyamo/golf-intranet/internal/utils"
)

type userStore interface {
	Create(ctx context.Context, u *model.User, password string, cost int) error
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	Update(ctx context.Context, id uint64, u repository.UserUpdate) (*model.User, error)
	SetPassword(ctx context.Context, id uint64, password string, cost int) error
	SoftDelete(ctx context.Context, id uint64) error
}

type golfClubStore interface {
	List(ctx context.Context, includeHidden bool) ([]model.GolfClub, error)
	GetByID(ctx context.Context, id uint64) (*model.GolfClub, error)
	Update(ctx context.Context, id uint64, u repository.GolfClubUpdate) (*model.GolfClub, error)
}

type courseStore interface {
	List(ctx context.Context, region *model.Region) ([]model.Course, error)
	GetByID(ctx context.Context, id uint64) (*model.Course, error)
	CreateCourse(ctx context.Context, region model.Region, clubName, courseName string) (*model.Course, error)
	SoftDelete(ctx context.Context, id uint64) error
}

type siteIDStore interface {
	List(ctx context.Context, golfClubID *uint64) ([]model.SiteID, error)
	GetByID(ctx context.Context, id uint64) (*model.SiteID, error)
	Create(ctx context.Context, v *model.SiteID) error
	Update(ctx context.Context, id uint64, u repository.SiteIDUpdate) (*model.SiteID, error)
	SoftDelete(ctx context.Context, id uint64) error
}

// AdminHandler serves the admin-only lookup tables and accounts.  Reads
// of golf clubs, courses and site ids are also open to managers.
type AdminHandler struct {
	Users      userStore
	Clubs      golfClubStore
	Courses    courseStore
	SiteIDs    siteIDStore
	Sessions   SessionCache
	BcryptCost int
	Log        *zap.Logger
}

// ----- users -----

type createUserReq struct {
	Type        string           `json:"type" validate:"omitempty,oneof=manager admin"`
	PhoneNumber string           `json:"phone_number" validate:"required,max=32"`
	Name        string           `json:"name" validate:"required,max=100"`
	ChargeRate  *decimal.Decimal `json:"charge_rate"`
	Password    string           `json:"password" validate:"required"`
}

type updateUserReq struct {
	Type       *string          `json:"type" validate:"omitempty,oneof=manager admin"`
	Name       *string          `json:"name" validate:"omitempty,max=100"`
	ChargeRate *decimal.Decimal `json:"charge_rate"`
}

type passwordReq struct {
	Password string `json:"password" validate:"required"`
}

func (h *AdminHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Users.List(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) GetUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) CreateUser(c echo.Context) error {
	var req createUserReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	u := &model.User{Type: model.UserManager, PhoneNumber: req.PhoneNumber, Name: req.Name}
	if req.Type != "" {
		t, err := model.ParseUserType(req.Type)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		u.Type = t
	}
	if req.ChargeRate != nil {
		u.ChargeRate = *req.ChargeRate
	}
	if model.NormalizePhone(u.PhoneNumber) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone_number has no digits"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.Create(ctx, u, req.Password, h.BcryptCost); err != nil {
		if errors.Is(err, utils.ErrPasswordTooShort) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// UpdateUser edits name, type or charge rate and drops the user's cached
// session so the change applies on the next request.
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	var req updateUserReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	upd := repository.UserUpdate{Name: req.Name, ChargeRate: req.ChargeRate}
	if req.Type != nil {
		t, err := model.ParseUserType(*req.Type)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		upd.Type = &t
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	u, err := h.Users.Update(ctx, id, upd)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	h.Sessions.Invalidate(id)
	return c.JSON(http.StatusOK, u)
}

func (h *AdminHandler) ResetPassword(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	var req passwordReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.SetPassword(ctx, id, req.Password, h.BcryptCost); err != nil {
		if errors.Is(err, utils.ErrPasswordTooShort) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	if uid, _ := middleware.UserID(c); uid == id {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "cannot delete your own account"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Users.SoftDelete(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	h.Sessions.Invalidate(id)
	h.Log.Info("user deleted", zap.Uint64("user_id", id))
	return c.NoContent(http.StatusNoContent)
}

// ----- golf clubs -----

type updateGolfClubReq struct {
	Name                *string `json:"name" validate:"omitempty,min=1,max=100"`
	Region              *string `json:"region"`
	CancelDeadlineDate  *int    `json:"cancel_deadline_date" validate:"omitempty,min=0"`
	CancelDeadlineHour  *int    `json:"cancel_deadline_hour" validate:"omitempty,min=0,max=23"`
	ReservableCountType *string `json:"reservable_count_type" validate:"omitempty,oneof=TOTAL DAYEND"`
	ReservableCount1    *int    `json:"reservable_count_1" validate:"omitempty,min=0"`
	ReservableCount2    *int    `json:"reservable_count_2" validate:"omitempty,min=0"`
	Hidden              *bool   `json:"hidden"`
}

// ListGolfClubs hides hidden clubs unless ?all=true.
func (h *AdminHandler) ListGolfClubs(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Clubs.List(ctx, c.QueryParam("all") == "true")
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) GetGolfClub(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	g, err := h.Clubs.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, g)
}

func (h *AdminHandler) UpdateGolfClub(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	var req updateGolfClubReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	upd := repository.GolfClubUpdate{
		Name:               req.Name,
		CancelDeadlineDate: req.CancelDeadlineDate,
		CancelDeadlineHour: req.CancelDeadlineHour,
		ReservableCount1:   req.ReservableCount1,
		ReservableCount2:   req.ReservableCount2,
		Hidden:             req.Hidden,
	}
	if req.Region != nil {
		r, err := model.ParseRegion(*req.Region)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		upd.Region = &r
	}
	if req.ReservableCountType != nil {
		t := model.ReservableCountType(*req.ReservableCountType)
		upd.ReservableCountType = &t
	}

	ctx, cancel := reqCtx(c)
	defer cancel()
	g, err := h.Clubs.Update(ctx, id, upd)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, g)
}

// ----- courses -----

type createCourseReq struct {
	Region       string `json:"region" validate:"required"`
	GolfClubName string `json:"golf_club_name"`
	CourseName   string `json:"course_name"`
}

// ListCourses supports ?region=.
func (h *AdminHandler) ListCourses(c echo.Context) error {
	var region *model.Region
	if s := c.QueryParam("region"); s != "" {
		r, err := model.ParseRegion(s)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		region = &r
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Courses.List(ctx, region)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

// CreateCourse registers a course, creating its golf club on first use.
func (h *AdminHandler) CreateCourse(c echo.Context) error {
	var req createCourseReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	region, err := model.ParseRegion(req.Region)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	course, err := h.Courses.CreateCourse(ctx, region, req.GolfClubName, req.CourseName)
	if err != nil {
		if errors.Is(err, repository.ErrCourseNameRequired) {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, course)
}

func (h *AdminHandler) DeleteCourse(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Courses.SoftDelete(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ----- site ids -----

type siteIDReq struct {
	SiteID     *string `json:"site_id" validate:"omitempty,min=1,max=100"`
	Name       *string `json:"name" validate:"omitempty,max=100"`
	GolfClubID *uint64 `json:"golf_club_id"`
	Disabled   *bool   `json:"disabled"`
	Hidden     *bool   `json:"hidden"`
}

// ListSiteIDs supports ?golf_club_id=.
func (h *AdminHandler) ListSiteIDs(c echo.Context) error {
	var club *uint64
	if s := c.QueryParam("golf_club_id"); s != "" {
		id, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid golf_club_id"})
		}
		club = &id
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.SiteIDs.List(ctx, club)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AdminHandler) CreateSiteID(c echo.Context) error {
	var req siteIDReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.SiteID == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "site_id required"})
	}
	v := &model.SiteID{SiteID: *req.SiteID, GolfClubID: req.GolfClubID}
	if req.Name != nil {
		v.Name = *req.Name
	}
	if req.Disabled != nil {
		v.Disabled = *req.Disabled
	}
	if req.Hidden != nil {
		v.Hidden = *req.Hidden
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.SiteIDs.Create(ctx, v); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

func (h *AdminHandler) UpdateSiteID(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	var req siteIDReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.SiteIDs.Update(ctx, id, repository.SiteIDUpdate{
		SiteID:     req.SiteID,
		Name:       req.Name,
		GolfClubID: req.GolfClubID,
		Disabled:   req.Disabled,
		Hidden:     req.Hidden,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *AdminHandler) DeleteSiteID(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.SiteIDs.SoftDelete(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AdminHandler) GetSiteID(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	v, err := h.SiteIDs.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}
