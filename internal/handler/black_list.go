package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/golf-intranet/internal/model"
	"github.com/iliyamo/golf-intranet/internal/repository"
)

type blackListStore interface {
	List(ctx context.Context, search string) ([]model.BlackList, error)
	GetByID(ctx context.Context, id uint64) (*model.BlackList, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	Create(ctx context.Context, b *model.BlackList) error
	Update(ctx context.Context, id uint64, u repository.BlackListUpdate) (*model.BlackList, error)
	SoftDelete(ctx context.Context, id uint64) error
}

// BlackListHandler serves /v1/black-lists.
type BlackListHandler struct {
	Store blackListStore
	Log   *zap.Logger
}

type blackListReq struct {
	Name        *string `json:"name" validate:"omitempty,max=100"`
	PhoneNumber *string `json:"phone_number" validate:"omitempty,max=32"`
	Reason      *string `json:"reason" validate:"omitempty,max=255"`
}

// List supports ?q= matching name or phone number.
func (h *BlackListHandler) List(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	list, err := h.Store.List(ctx, c.QueryParam("q"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *BlackListHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Store.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Check answers whether ?phone= is listed.
func (h *BlackListHandler) Check(c echo.Context) error {
	phone := model.NormalizePhone(c.QueryParam("phone"))
	if phone == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone required"})
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	listed, err := h.Store.ExistsByPhone(ctx, phone)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"phone_number": phone, "blacklisted": listed})
}

func (h *BlackListHandler) Create(c echo.Context) error {
	uid, err := callerID(c)
	if uid == 0 {
		return err
	}
	var req blackListReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	if req.Name == nil || req.PhoneNumber == nil || model.NormalizePhone(*req.PhoneNumber) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name and phone_number required"})
	}
	b := &model.BlackList{AuthorID: &uid, Name: *req.Name, PhoneNumber: *req.PhoneNumber}
	if req.Reason != nil {
		b.Reason = *req.Reason
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Store.Create(ctx, b); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *BlackListHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	var req blackListReq
	if ok, err := bindValid(c, &req); !ok {
		return err
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	b, err := h.Store.Update(ctx, id, repository.BlackListUpdate{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		Reason:      req.Reason,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *BlackListHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badID(c)
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Store.SoftDelete(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
