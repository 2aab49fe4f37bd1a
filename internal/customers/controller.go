package customers

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

// ListCustomers handles GET /api/v1/customers
func (c *Controller) ListCustomers(ctx *gin.Context) {
	customers, err := c.service.ListCustomers(ctx.Request.Context())
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Customers retrieved successfully", customers, nil)
}

// GetCustomer handles GET /api/v1/customers/:id
func (c *Controller) GetCustomer(ctx *gin.Context) {
	customerID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid customer ID", nil, nil)
		return
	}

	customer, err := c.service.GetCustomer(ctx.Request.Context(), customerID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Customer retrieved successfully", customer, nil)
}

// CreateCustomer handles POST /api/v1/customers
func (c *Controller) CreateCustomer(ctx *gin.Context) {
	var req CreateCustomerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	customer, err := c.service.CreateCustomer(ctx.Request.Context(), req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusCreated, "Customer created successfully", customer, nil)
}

// UpdateCustomer handles PUT /api/v1/customers/:id
func (c *Controller) UpdateCustomer(ctx *gin.Context) {
	customerID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid customer ID", nil, nil)
		return
	}

	var req UpdateCustomerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	customer, err := c.service.UpdateCustomer(ctx.Request.Context(), customerID, req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Customer updated successfully", customer, nil)
}

// DeleteCustomer handles DELETE /api/v1/customers/:id
func (c *Controller) DeleteCustomer(ctx *gin.Context) {
	customerID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid customer ID", nil, nil)
		return
	}

	if err := c.service.DeleteCustomer(ctx.Request.Context(), customerID); err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Customer deleted successfully", nil, nil)
}
