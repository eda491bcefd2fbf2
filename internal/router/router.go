package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storerating-backend/config"
	"github.com/ikkim/storerating-backend/internal/app/controller"
	"github.com/ikkim/storerating-backend/internal/app/model"
	"github.com/ikkim/storerating-backend/internal/errors"
	"github.com/ikkim/storerating-backend/internal/metrics"
	"github.com/ikkim/storerating-backend/internal/middleware"
)

// HealthChecker reports whether a backing dependency is reachable
type HealthChecker func() error

type Router struct {
	authController   *controller.AuthController
	storeController  *controller.StoreController
	ratingController *controller.RatingController
	adminController  *controller.AdminController
	authMiddleware   *middleware.AuthMiddleware
	authLimiter      *middleware.RateLimiter
	metrics          *metrics.Metrics
	health           HealthChecker
	config           *config.Config
}

func NewRouter(
	authController *controller.AuthController,
	storeController *controller.StoreController,
	ratingController *controller.RatingController,
	adminController *controller.AdminController,
	authMiddleware *middleware.AuthMiddleware,
	authLimiter *middleware.RateLimiter,
	m *metrics.Metrics,
	health HealthChecker,
	cfg *config.Config,
) *Router {
	return &Router{
		authController:   authController,
		storeController:  storeController,
		ratingController: ratingController,
		adminController:  adminController,
		authMiddleware:   authMiddleware,
		authLimiter:      authLimiter,
		metrics:          m,
		health:           health,
		config:           cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	gin.SetMode(r.config.Server.GinMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware())
	if r.metrics != nil {
		router.Use(middleware.MetricsMiddleware(r.metrics))
		router.GET("/metrics", gin.WrapH(r.metrics.Handler()))
	}
	router.Use(corsMiddleware(r.config.CORS.AllowedOrigins))

	authenticate := r.authMiddleware.Authenticate()
	requireRole := r.authMiddleware.RequireRole

	api := router.Group("/api")
	api.GET("/health", r.healthHandler)

	auth := api.Group("/auth")
	{
		limited := auth.Group("")
		if r.authLimiter != nil {
			limited.Use(r.authLimiter.Handler())
		}
		limited.POST("/register", r.authController.Register)
		limited.POST("/login", r.authController.Login)

		auth.PUT("/password", authenticate, r.authController.ChangePassword)
		auth.POST("/logout", authenticate, r.authController.Logout)
		auth.GET("/me", authenticate, r.authController.GetMe)
	}

	stores := api.Group("/stores", authenticate)
	{
		stores.GET("", r.storeController.ListStores)
		stores.GET("/:id", r.storeController.GetStore)
		stores.GET("/:id/ratings", r.storeController.ListRatings)
		stores.POST("",
			requireRole(model.RoleStoreOwner, model.RoleAdmin),
			r.storeController.CreateStore,
		)
		stores.PUT("/:id",
			requireRole(model.RoleAdmin),
			r.storeController.UpdateStore,
		)
		stores.DELETE("/:id",
			requireRole(model.RoleAdmin),
			r.storeController.DeleteStore,
		)
	}

	ratings := api.Group("/ratings", authenticate)
	{
		ratings.POST("", requireRole(model.RoleUser), r.ratingController.Submit)
		ratings.PUT("/:id", requireRole(model.RoleUser), r.ratingController.Update)
		ratings.DELETE("/:id", requireRole(model.RoleUser), r.ratingController.Delete)

		ratings.GET("/store/:storeId",
			requireRole(model.RoleStoreOwner, model.RoleAdmin),
			r.ratingController.StoreRatings,
		)
		// self-or-admin is enforced by the service
		ratings.GET("/user/:userId", r.ratingController.UserRatings)
		ratings.GET("/user/:userId/store/:storeId", r.ratingController.UserStoreRating)

		ratings.GET("/my-ratings", requireRole(model.RoleUser), r.ratingController.MyRatings)
		ratings.GET("/my-store/summary", requireRole(model.RoleStoreOwner), r.ratingController.MyStoreSummary)
		ratings.GET("/stats", requireRole(model.RoleUser, model.RoleAdmin), r.ratingController.Stats)
		ratings.GET("/live", requireRole(model.RoleStoreOwner, model.RoleAdmin), r.ratingController.Live)
	}

	admin := api.Group("/admin", authenticate, requireRole(model.RoleAdmin))
	{
		admin.GET("/dashboard", r.adminController.Dashboard)

		users := admin.Group("/users")
		{
			users.GET("", r.adminController.ListUsers)
			users.POST("", r.adminController.CreateUser)
			users.GET("/:id", r.adminController.GetUser)
			users.PUT("/:id", r.adminController.UpdateUser)
			users.DELETE("/:id", r.adminController.DeleteUser)
		}

		admin.GET("/reports/stores", r.adminController.StoreReport)
		admin.POST("/reports/stores/archive", r.adminController.ArchiveStoreReport)
		admin.POST("/maintenance/reconcile", r.adminController.Reconcile)
	}

	router.NoRoute(func(c *gin.Context) {
		errors.NotFound(c, errors.ResourceNotFound, "Route not found")
	})

	return router
}

func (r *Router) healthHandler(c *gin.Context) {
	if r.health != nil {
		if err := r.health(); err != nil {
			middleware.GetLoggerFromContext(c).Error("Health check failed", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"status":  "unhealthy",
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"status":  "healthy",
		"message": "Store rating API is running",
	})
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")

		allowed := false
		for _, allowedOrigin := range allowedOrigins {
			if origin == allowedOrigin || allowedOrigin == "*" {
				allowed = true
				break
			}
		}

		if allowed {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID, Content-Disposition")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
