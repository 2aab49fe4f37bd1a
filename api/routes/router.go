// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/clock"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/customers"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/events"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/inventory"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/reservations"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/config"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/internal/shared/database"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/cache"
	"github.com/LucaCasamayor/teatro-gran-espectaculo/pkg/logger"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Router holds all route dependencies
type Router struct {
	config    *config.Config
	db        *database.DB
	clk       clock.Clock
	log       *logger.Logger
	publisher reservations.Publisher

	eventService    events.Service
	customerService customers.Service
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, clk clock.Clock, log *logger.Logger) *Router {
	return &Router{
		config: cfg,
		db:     db,
		clk:    clk,
		log:    log,
	}
}

// SetPublisher wires lifecycle notifications into the reservation ledger.
// Must be called before SetupRoutes.
func (r *Router) SetPublisher(p reservations.Publisher) {
	r.publisher = p
}

// EventService exposes the catalog for the lifecycle scheduler. Only valid
// after SetupRoutes.
func (r *Router) EventService() events.Service {
	return r.eventService
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := engine.Group(r.config.GetAPIBasePath())
	{
		// Events and customers come first; the reservation ledger is
		// wired against both services.
		r.setupEventRoutes(api)
		r.setupCustomerRoutes(api)
		r.setupReservationRoutes(api)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "teatro-backend",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "teatro-backend",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}

// setupEventRoutes configures event catalog routes
func (r *Router) setupEventRoutes(rg *gin.RouterGroup) {
	eventRepo := events.NewRepository(r.db.GetPostgreSQL())
	eventService := events.NewService(eventRepo, r.clk, r.log)

	if r.db.Redis != nil {
		eventService.SetCache(cache.NewService(r.db.GetRedisClient()), r.config.Redis.CacheTTL)
	}

	r.eventService = eventService

	eventController := events.NewController(eventService)
	events.SetupEventRoutes(rg, eventController)
}

// setupCustomerRoutes configures customer management routes
func (r *Router) setupCustomerRoutes(rg *gin.RouterGroup) {
	customerRepo := customers.NewRepository(r.db.GetPostgreSQL())
	customerService := customers.NewService(customerRepo)

	r.customerService = customerService

	customerController := customers.NewController(customerService)
	customers.SetupCustomerRoutes(rg, customerController)
}

// setupReservationRoutes configures reservation ledger routes
func (r *Router) setupReservationRoutes(rg *gin.RouterGroup) {
	allocator := inventory.NewAllocator(r.db.GetPostgreSQL(), r.log)

	reservationRepo := reservations.NewRepository(r.db.GetPostgreSQL())
	reservationService := reservations.NewService(
		reservationRepo,
		r.eventService,
		r.customerService,
		allocator,
		r.clk,
		r.log,
	)

	if r.publisher != nil {
		reservationService.SetPublisher(r.publisher)
	}

	reservationController := reservations.NewController(reservationService)
	reservations.SetupReservationRoutes(rg, reservationController)
}
