package reservations

import (
	"net/http"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// ListReservations handles GET /api/v1/reservations
// Supports ?customer_id=<uuid> to scope the listing to one customer.
func (c *Controller) ListReservations(ctx *gin.Context) {
	if raw := ctx.Query("customer_id"); raw != "" {
		customerID, err := uuid.Parse(raw)
		if err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid customer ID", nil, nil)
			return
		}
		reservations, err := c.service.ListByCustomer(ctx.Request.Context(), customerID)
		if err != nil {
			response.RespondError(ctx, err)
			return
		}
		response.RespondJSON(ctx, "success", http.StatusOK, "Reservations retrieved successfully", reservations, nil)
		return
	}

	reservations, err := c.service.ListReservations(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Reservations retrieved successfully", reservations, nil)
}

// GetReservation handles GET /api/v1/reservations/:id
func (c *Controller) GetReservation(ctx *gin.Context) {
	reservationID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	reservation, err := c.service.GetReservation(ctx.Request.Context(), reservationID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation retrieved successfully", reservation, nil)
}

// CreateReservation handles POST /api/v1/reservations
func (c *Controller) CreateReservation(ctx *gin.Context) {
	var req CreateReservationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	reservation, err := c.service.CreateReservation(ctx.Request.Context(), req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Reservation created successfully", reservation, nil)
}

// MarkPaid handles PATCH /api/v1/reservations/:id/pay
func (c *Controller) MarkPaid(ctx *gin.Context) {
	reservationID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	var req MarkPaidRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
			return
		}
	}

	reservation, err := c.service.MarkPaid(ctx.Request.Context(), reservationID, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation marked as paid", reservation, nil)
}

// Cancel handles PATCH /api/v1/reservations/:id/cancel
func (c *Controller) Cancel(ctx *gin.Context) {
	reservationID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	reservation, err := c.service.Cancel(ctx.Request.Context(), reservationID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation cancelled successfully", reservation, nil)
}

// UpdateItems handles PUT /api/v1/reservations/:id/items
func (c *Controller) UpdateItems(ctx *gin.Context) {
	reservationID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	var req UpdateReservationItemsRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	reservation, err := c.service.UpdateItems(ctx.Request.Context(), reservationID, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation items updated successfully", reservation, nil)
}

// DeleteReservation handles DELETE /api/v1/reservations/:id
func (c *Controller) DeleteReservation(ctx *gin.Context) {
	reservationID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	if err := c.service.DeleteReservation(ctx.Request.Context(), reservationID); err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation deleted successfully", nil, nil)
}
