package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/benefits-cafeteria/internal/export"
	"github.com/iliyamo/benefits-cafeteria/internal/model"
	"github.com/iliyamo/benefits-cafeteria/internal/service"
)

// PollAPI runs the satisfaction poll.
type PollAPI interface {
	CurrentStatus(ctx context.Context) (model.PollStatus, error)
	SetStatus(ctx context.Context, open bool) (model.PollStatus, error)
	Submit(ctx context.Context, userID uuid.UUID, selected []int64, rate int) (model.PollResult, error)
}

// AnalyticsAPI aggregates usage and poll answers.
type AnalyticsAPI interface {
	Compute(ctx context.Context) (service.Analytics, error)
	PollSummary(ctx context.Context) (service.PollSummary, error)
}

// AnalyticsHandler serves the poll and analytics endpoints.
type AnalyticsHandler struct {
	Polls     PollAPI
	Reports   AnalyticsAPI
	Now       func() time.Time
}

func NewAnalyticsHandler(polls PollAPI, analytics AnalyticsAPI) *AnalyticsHandler {
	return &AnalyticsHandler{Polls: polls, Reports: analytics, Now: time.Now}
}

type pollReq struct {
	SelectedBenefits []int64 `json:"selected_benefits"`
	SatisfactionRate *int    `json:"satisfaction_rate"`
}

type pollStatusResp struct {
	Status    bool      `json:"status"`
	Version   int64     `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

func statusResp(st model.PollStatus) pollStatusResp {
	return pollStatusResp{Status: st.IsOpen, Version: st.Version, UpdatedAt: st.UpdatedAt}
}

// PollStatus reports whether the poll is open.
func (h *AnalyticsHandler) PollStatus(c echo.Context) error {
	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	st, err := h.Polls.CurrentStatus(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, statusResp(st))
}

// SetPollStatus opens or closes the poll from ?status=true|false.
func (h *AnalyticsHandler) SetPollStatus(c echo.Context) error {
	open, err := strconv.ParseBool(c.QueryParam("status"))
	if err != nil {
		return badRequest(c, "status must be true or false")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	st, err := h.Polls.SetStatus(ctx, open)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, statusResp(st))
}

// SubmitPoll records the caller's poll answer.
func (h *AnalyticsHandler) SubmitPoll(c echo.Context) error {
	var req pollReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.SatisfactionRate == nil {
		return badRequest(c, "satisfaction_rate required")
	}

	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	res, err := h.Polls.Submit(ctx, caller(c).ID, req.SelectedBenefits, *req.SatisfactionRate)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": "poll results saved", "id": res.ID})
}

// Analytics returns per-benefit request counts and overall usage.
func (h *AnalyticsHandler) Analytics(c echo.Context) error {
	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	a, err := h.Reports.Compute(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, a)
}

// PollSummary returns poll submissions, average rating and votes per benefit.
func (h *AnalyticsHandler) PollSummary(c echo.Context) error {
	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	sum, err := h.Reports.PollSummary(ctx)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// Export downloads usage and poll results as an xlsx workbook.
func (h *AnalyticsHandler) Export(c echo.Context) error {
	ctx, cancel := withTimeout(c, dbTimeout)
	defer cancel()

	a, err := h.Reports.Compute(ctx)
	if err != nil {
		return respondError(c, err)
	}
	sum, err := h.Reports.PollSummary(ctx)
	if err != nil {
		return respondError(c, err)
	}
	now := h.Now()
	data, err := export.AnalyticsWorkbook(a, sum, now)
	if err != nil {
		return respondError(c, err)
	}
	c.Response().Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=benefits-analytics-%s.xlsx", now.UTC().Format("20060102")))
	return c.Blob(http.StatusOK, export.ContentType, data)
}
