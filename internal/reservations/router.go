package reservations

import (
	"github.com/gin-gonic/gin"
)

// SetupReservationRoutes configures all reservation ledger routes
func SetupReservationRoutes(rg *gin.RouterGroup, controller *Controller) {
	reservations := rg.Group("/reservations")
	{
		reservations.GET("", controller.ListReservations)          // GET /api/v1/reservations
		reservations.GET("/:id", controller.GetReservation)        // GET /api/v1/reservations/:id
		reservations.POST("", controller.CreateReservation)        // POST /api/v1/reservations
		reservations.PATCH("/:id/pay", controller.MarkPaid)        // PATCH /api/v1/reservations/:id/pay
		reservations.PATCH("/:id/cancel", controller.Cancel)       // PATCH /api/v1/reservations/:id/cancel
		reservations.PUT("/:id/items", controller.UpdateItems)     // PUT /api/v1/reservations/:id/items
		reservations.DELETE("/:id", controller.DeleteReservation)  // DELETE /api/v1/reservations/:id
	}
}
