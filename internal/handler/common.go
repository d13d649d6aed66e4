package handler // handler defines http handlers

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/benefits-cafeteria/internal/middleware"
	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/service"
)

const (
	dbTimeout     = 5 * time.Second
	uploadTimeout = 60 * time.Second
)

// respondError maps service errors onto HTTP status codes.  Unknown
// errors become 500 without leaking their text.
func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, service.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, service.ErrPollClosed),
		errors.Is(err, service.ErrMissingProfile),
		errors.Is(err, service.ErrNoEmployees):
		status, msg = http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrConflict):
		status, msg = http.StatusConflict, err.Error()
	case errors.Is(err, service.ErrAccessDenied):
		status, msg = http.StatusForbidden, err.Error()
	case errors.Is(err, service.ErrUnauthorized):
		status, msg = http.StatusUnauthorized, "invalid or expired link"
	default:
		middleware.Logger(c).Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err),
		)
	}
	return c.JSON(status, echo.Map{"error": msg})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

func paramInt64(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func paramUUID(c echo.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	return id, err == nil
}

// caller returns the user loaded by middleware.LoadUser.  Routes that use
// it are always wrapped by that middleware.
func caller(c echo.Context) model.User {
	u, _ := middleware.CurrentUser(c)
	return u
}

func withTimeout(c echo.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), d)
}

// openUploads opens every multipart file under field.  The returned
// closer releases all of them.
func openUploads(c echo.Context, field string) ([]service.Upload, func(), error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, func() {}, nil
		}
		return nil, nil, err
	}
	return openHeaders(form.File[field])
}

func openHeaders(headers []*multipart.FileHeader) ([]service.Upload, func(), error) {
	var opened []io.Closer
	closeAll := func() {
		for _, f := range opened {
			_ = f.Close()
		}
	}
	uploads := make([]service.Upload, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		opened = append(opened, f)
		uploads = append(uploads, service.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		})
	}
	return uploads, closeAll, nil
}

// streamBlob copies a stored file to the response with a content type
// guessed from its first bytes.
func streamBlob(c echo.Context, rc io.ReadCloser) error {
	defer rc.Close()
	head := make([]byte, 512)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "read file failed"})
	}
	head = head[:n]
	c.Response().Header().Set(echo.HeaderContentType, http.DetectContentType(head))
	c.Response().WriteHeader(http.StatusOK)
	if _, err := c.Response().Write(head); err != nil {
		return err
	}
	_, err = io.Copy(c.Response(), rc)
	return err
}
