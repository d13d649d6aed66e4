package handler

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/service"
)

// BenefitAPI is the catalog used by BenefitHandler.
type BenefitAPI interface {
	Visible(ctx context.Context, user model.User) ([]service.BenefitView, error)
	Get(ctx context.Context, id int64) (service.BenefitView, error)
	Create(ctx context.Context, in service.BenefitInput) (service.BenefitView, error)
	Update(ctx context.Context, id int64, in service.BenefitInput) (service.BenefitView, error)
	Delete(ctx context.Context, id int64) error
	SetCover(ctx context.Context, id int64, up service.Upload) (service.BenefitView, error)
	OpenCover(ctx context.Context, name string) (io.ReadCloser, error)
}

// BenefitHandler serves the catalog and its administration.
type BenefitHandler struct {
	Benefits BenefitAPI
}

func NewBenefitHandler(benefits BenefitAPI) *BenefitHandler {
	return &BenefitHandler{Benefits: benefits}
}

type benefitReq struct {
	Name             string  `json:"name"`
	CardName         *string `json:"card_name"`
	Text             *string `json:"text"`
	Categories       []int   `json:"categories"`
	NeedConfirmation bool    `json:"need_confirmation"`
	NeedFiles        bool    `json:"need_files"`
}

func (r benefitReq) input() service.BenefitInput {
	return service.BenefitInput{
		Name:             r.Name,
		CardName:         r.CardName,
		Text:             r.Text,
		Categories:       r.Categories,
		NeedConfirmation: r.NeedConfirmation,
		NeedFiles:        r.NeedFiles,
	}
}

// All lists the benefits visible to the caller.
func (h *BenefitHandler) All(c echo.Context) error {
	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	list, err := h.Benefits.Visible(ctx, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *BenefitHandler) Create(c echo.Context) error {
	var req benefitReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	v, err := h.Benefits.Create(ctx, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": v})
}

func (h *BenefitHandler) Get(c echo.Context) error {
	id, ok := paramInt64(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	v, err := h.Benefits.Get(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *BenefitHandler) Update(c echo.Context) error {
	id, ok := paramInt64(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req benefitReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	v, err := h.Benefits.Update(ctx, id, req.input())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, v)
}

func (h *BenefitHandler) Delete(c echo.Context) error {
	id, ok := paramInt64(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	if err := h.Benefits.Delete(ctx, id); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": fmt.Sprintf("benefit with id %d has been deleted", id)})
}

// UploadCover replaces the cover image from the multipart field "image".
func (h *BenefitHandler) UploadCover(c echo.Context) error {
	id, ok := paramInt64(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "image file required")
	}
	ups, closeAll, err := openHeaders([]*multipart.FileHeader{fh})
	if err != nil {
		return badRequest(c, "cannot read upload")
	}
	defer closeAll()

	ctx, cancel := withTimeout(c, uploadTimeout)
	defer cancel()

	v, err := h.Benefits.SetCover(ctx, id, ups[0])
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": v.CoverURL})
}

// Image serves a stored cover.  It is public so catalog cards can embed
// the URL directly.
func (h *BenefitHandler) Image(c echo.Context) error {
	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	rc, err := h.Benefits.OpenCover(ctx, c.Param("path"))
	if err != nil {
		return respondError(c, err)
	}
	return streamBlob(c, rc)
}
