package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/service"
)

// RequestAPI is the request workflow used by RequestHandler.
type RequestAPI interface {
	Submit(ctx context.Context, benefitID int64, user model.User, uploads []service.Upload) (*model.BenefitRequest, error)
	SetStatus(ctx context.Context, requestID int64, status model.RequestStatus) (service.RequestDetail, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]service.RequestView, error)
	ListAll(ctx context.Context, desc bool) ([]service.RequestView, error)
	Detail(ctx context.Context, requestID int64, viewer model.User) (service.RequestDetail, error)
	OpenAttachment(ctx context.Context, requestID int64, name string) (io.ReadCloser, error)
}

// RequestHandler serves benefit requests for employees and reviewers.
type RequestHandler struct {
	Requests RequestAPI
}

func NewRequestHandler(requests RequestAPI) *RequestHandler {
	return &RequestHandler{Requests: requests}
}

type statusReq struct {
	Status model.RequestStatus `json:"status"`
}

// Submit files a request for the benefit in the path.  Evidence images
// arrive in the multipart field "files".
func (h *RequestHandler) Submit(c echo.Context) error {
	id, ok := paramInt64(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	uploads, closeAll, err := openUploads(c, "files")
	if err != nil {
		return badRequest(c, "invalid multipart body")
	}
	defer closeAll()

	ctx, cancel := withTimeout(c, uploadTimeout)
	defer cancel()

	req, err := h.Requests.Submit(ctx, id, caller(c), uploads)
	if err != nil {
		return respondError(c, err)
	}
	if req == nil {
		return c.JSON(http.StatusOK, echo.Map{"success": "benefit granted", "status": model.StatusApproved.Label()})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"success":      "request submitted",
		"request_id":   req.ID,
		"status":       req.Status,
		"status_label": req.Status.Label(),
	})
}

// My lists the caller's requests, newest first.
func (h *RequestHandler) My(c echo.Context) error {
	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	list, err := h.Requests.ListForUser(ctx, caller(c).ID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// Detail returns one request.  Employees may only see their own.
func (h *RequestHandler) Detail(c echo.Context) error {
	id, ok := paramInt64(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	d, err := h.Requests.Detail(ctx, id, caller(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// AdminList lists every request.  ?desc=false sorts oldest first.
func (h *RequestHandler) AdminList(c echo.Context) error {
	desc := true
	if raw := c.QueryParam("desc"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(c, "desc must be true or false")
		}
		desc = v
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	list, err := h.Requests.ListAll(ctx, desc)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, list)
}

// SetStatus approves or denies a pending request.
func (h *RequestHandler) SetStatus(c echo.Context) error {
	id, ok := paramInt64(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	d, err := h.Requests.SetStatus(ctx, id, req.Status)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// File streams one evidence attachment.
func (h *RequestHandler) File(c echo.Context) error {
	id, ok := paramInt64(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	rc, err := h.Requests.OpenAttachment(ctx, id, c.Param("file"))
	if err != nil {
		return respondError(c, err)
	}
	return streamBlob(c, rc)
}
