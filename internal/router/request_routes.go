package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/benefits-cafeteria/internal/handler"
)

// RegisterRequests registers request history for employees and the
// review queue for administrators.
func RegisterRequests(e *echo.Echo, h *handler.RequestHandler, guard Guard) {
	g := e.Group("/requests", guard.User()...)
	g.GET("/my", h.My)
	g.GET("/:id", h.Detail)

	admin := e.Group("/admin/requests", guard.Admin()...)
	admin.GET("", h.AdminList)
	admin.GET("/:id", h.Detail)
	admin.PUT("/:id/status", h.SetStatus)
	admin.GET("/:id/:file", h.File)
}

// RegisterAnalytics registers the poll and the analytics reports.  Any
// employee may answer the poll; the rest is admin only.
func RegisterAnalytics(e *echo.Echo, h *handler.AnalyticsHandler, guard Guard) {
	e.POST("/analytics/poll", h.SubmitPoll, guard.User()...)

	admin := e.Group("/analytics", guard.Admin()...)
	admin.GET("", h.Analytics)
	admin.GET("/poll-status", h.PollStatus)
	admin.PUT("/poll-status/set", h.SetPollStatus)
	admin.GET("/poll-summary", h.PollSummary)
	admin.GET("/export", h.Export)
}
