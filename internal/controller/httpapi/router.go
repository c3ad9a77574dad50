package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter собирает gin engine со всеми маршрутами API
func NewRouter(h *Handler, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestID())
	r.Use(Logger(logger))

	r.GET("/healthz", h.Health)

	v1 := r.Group("/api/v1")
	{
		// публичные
		v1.GET("/slots/available", h.ListAvailableSlots)
		v1.GET("/slots/:id", h.GetSlot)
		v1.GET("/mentors/:id/slots", h.ListMentorSlots)
		v1.GET("/mentors/:id/calendar.ics", h.MentorCalendar)

		authorized := v1.Group("")
		authorized.Use(RequireActor())
		{
			authorized.POST("/slots", h.CreateSlot)
			authorized.DELETE("/slots/:id", h.DeactivateSlot)
			authorized.POST("/slots/:id/bookings", h.Book)

			authorized.GET("/me/bookings", h.MyBookings)
			authorized.GET("/bookings/:id", h.GetBooking)
			authorized.POST("/bookings/:id/start", h.StartSession)
			authorized.POST("/bookings/:id/cancel", h.CancelBooking)
			authorized.POST("/bookings/:id/no-show", h.MarkNoShow)
			authorized.POST("/bookings/:id/reschedule", h.Reschedule)

			authorized.POST("/maintenance/reconcile", h.Reconcile)
			authorized.POST("/maintenance/generate", h.Generate)
		}
	}
	return r
}
