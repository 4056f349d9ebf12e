package transport

import (
	"net/http"
	"time"

	"github.com/ds124wfegd/gymbooker/internal/transport/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Booking *BookingHandler
	Class   *ClassHandler
	User    *UserHandler
}

type RouterOptions struct {
	Auth           *middleware.Authenticator
	RequestTimeout time.Duration
	Metrics        bool
}

func InitRoutes(h Handlers, opts RouterOptions) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.Logger())
	router.Use(middleware.Timeout(opts.RequestTimeout))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})
	if opts.Metrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api/v1", opts.Auth.Auth())
	{
		bookings := api.Group("/bookings")
		{
			bookings.POST("", h.Booking.Book)
			bookings.DELETE("/:id", h.Booking.Cancel)
		}

		me := api.Group("/users/me")
		{
			me.GET("", h.User.Me)
			me.PUT("", h.User.UpsertProfile)
			me.PUT("/device-token", h.User.UpdateDeviceToken)
			me.GET("/bookings", h.Booking.ListMine)
		}

		classes := api.Group("/classes")
		{
			classes.GET("", h.Class.ListClasses)
			classes.GET("/:id", h.Class.GetClass)
			classes.GET("/:id/availability", h.Class.Availability)
		}

		admin := api.Group("/admin", middleware.RequireAdmin(h.User.userService))
		{
			admin.POST("/classes", h.Class.CreateClass)
			admin.PUT("/classes/:id", h.Class.UpdateClass)
			admin.DELETE("/classes/:id", h.Class.DeleteClass)
			admin.GET("/classes/:id/roster", h.Class.Roster)
			admin.GET("/classes/:id/roster.xlsx", h.Class.ExportRoster)
			admin.GET("/classes/:id/audit", h.Booking.Audit)
		}
	}

	return router
}
