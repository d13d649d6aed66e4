package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/benefits-cafeteria/internal/handler"
)

// RegisterBenefits registers the catalog.  Cover images are public; the
// visible catalog needs a session and everything else is admin only.
func RegisterBenefits(e *echo.Echo, b *handler.BenefitHandler, r *handler.RequestHandler, guard Guard) {
	e.GET("/benefits/images/:path", b.Image)

	user := e.Group("/benefits", guard.User()...)
	user.GET("/all", b.All)
	user.POST("/:id/request", r.Submit)

	admin := e.Group("/benefits", guard.Admin()...)
	admin.POST("/new", b.Create)
	admin.GET("/:id", b.Get)
	admin.PUT("/edit/:id", b.Update)
	admin.DELETE("/delete/:id", b.Delete)
	admin.POST("/:id/cover", b.UploadCover)
}
