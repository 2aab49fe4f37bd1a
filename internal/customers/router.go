package customers

import (
	"github.com/gin-gonic/gin"
)

// SetupCustomerRoutes configures all customer management routes
func SetupCustomerRoutes(rg *gin.RouterGroup, controller *Controller) {
	customers := rg.Group("/customers")
	{
		customers.GET("", controller.ListCustomers)        // GET /api/v1/customers
		customers.GET("/:id", controller.GetCustomer)      // GET /api/v1/customers/:id
		customers.POST("", controller.CreateCustomer)      // POST /api/v1/customers
		customers.PUT("/:id", controller.UpdateCustomer)   // PUT /api/v1/customers/:id
		customers.DELETE("/:id", controller.DeleteCustomer) // DELETE /api/v1/customers/:id
	}
}
