package events

import (
	"github.com/gin-gonic/gin"
)

// SetupEventRoutes configures all event catalog routes
func SetupEventRoutes(rg *gin.RouterGroup, controller *Controller) {
	events := rg.Group("/events")
	{
		events.GET("", controller.ListEvents)            // GET /api/v1/events
		events.GET("/:id", controller.GetEvent)          // GET /api/v1/events/:id
		events.POST("", controller.CreateEvent)          // POST /api/v1/events
		events.PUT("/:id", controller.UpdateEvent)       // PUT /api/v1/events/:id
		events.PATCH("/:id/status", controller.SetEventStatus) // PATCH /api/v1/events/:id/status
	}
}
