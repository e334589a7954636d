// Package api exposes the storefront over HTTP. Handlers bind and validate
// request bodies, delegate to the services, and translate errors into the
// JSON envelope.
package api

import (
	"net/http"

	"storefront/config"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler wires the HTTP surface to the services.
type Handler struct {
	cfg        *config.Config
	tokens     *auth.Manager
	users      *service.UserService
	catalog    *service.CatalogService
	categories *service.CategoryService
	carts      *service.CartService
	orders     *service.OrderService
}

func NewHandler(
	cfg *config.Config,
	tokens *auth.Manager,
	users *service.UserService,
	catalog *service.CatalogService,
	categories *service.CategoryService,
	carts *service.CartService,
	orders *service.OrderService,
) *Handler {
	return &Handler{
		cfg:        cfg,
		tokens:     tokens,
		users:      users,
		catalog:    catalog,
		categories: categories,
		carts:      carts,
		orders:     orders,
	}
}

// SetupRoutes builds the gin engine with all routes mounted under /api.
func (h *Handler) SetupRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization"},
	}))

	router.GET("/health", h.health)
	router.GET("/ready", h.ready)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authed := auth.Middleware(h.tokens)
	adminOnly := auth.RequireRoles(models.RoleAdmin)
	sellerOrAdmin := auth.RequireRoles(models.RoleSeller, models.RoleAdmin)

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.register)
			authGroup.POST("/login", h.login)
			authGroup.GET("/me", authed, h.me)
			authGroup.PUT("/updateprofile", authed, h.updateProfile)
			authGroup.PUT("/updatepassword", authed, h.updatePassword)
		}

		products := api.Group("/products")
		{
			products.GET("", h.listProducts)
			products.GET("/:id", h.getProduct)
			products.GET("/:id/reviews", h.listReviews)
			products.POST("", authed, sellerOrAdmin, h.createProduct)
			products.PUT("/:id", authed, sellerOrAdmin, h.updateProduct)
			products.DELETE("/:id", authed, sellerOrAdmin, h.deleteProduct)
			products.POST("/:id/reviews", authed, h.addReview)
		}

		categories := api.Group("/categories")
		{
			categories.GET("", h.listCategories)
			categories.GET("/tree", h.categoryTree)
			categories.GET("/:id", h.getCategory)
			categories.POST("", authed, adminOnly, h.createCategory)
			categories.PUT("/:id", authed, adminOnly, h.updateCategory)
			categories.DELETE("/:id", authed, adminOnly, h.deleteCategory)
		}

		cart := api.Group("/cart", authed)
		{
			cart.GET("", h.getCart)
			cart.POST("", h.addCartItem)
			cart.DELETE("", h.clearCart)
			cart.PUT("/:productId", h.updateCartItem)
			cart.DELETE("/:productId", h.removeCartItem)
			cart.POST("/apply-coupon", h.applyCoupon)
		}

		orders := api.Group("/orders", authed)
		{
			orders.POST("", h.createOrder)
			orders.GET("/myorders", h.myOrders)
			orders.GET("", adminOnly, h.allOrders)
			orders.GET("/:id", h.getOrder)
			orders.PUT("/:id/status", adminOnly, h.updateOrderStatus)
			orders.PUT("/:id/cancel", h.cancelOrder)
		}
	}

	return router
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
