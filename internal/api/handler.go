package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"partyshop/internal/apperr"
	"partyshop/internal/service"
	"partyshop/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	catalogService  *service.CatalogService
	categoryService *service.CategoryService
	orderService    *service.OrderService
	cartService     *service.CartService
	checks          map[string]ReadinessCheck
	logger          *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	catalogService *service.CatalogService,
	categoryService *service.CategoryService,
	orderService *service.OrderService,
	cartService *service.CartService,
) *Handler {
	return &Handler{
		catalogService:  catalogService,
		categoryService: categoryService,
		orderService:    orderService,
		cartService:     cartService,
		checks:          make(map[string]ReadinessCheck),
		logger:          util.GetLogger(),
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/composer/apply", h.applyComposer)

		v1.GET("/products", h.listProducts)
		v1.POST("/products", h.createProduct)
		v1.GET("/products/:id", h.getProduct)
		v1.PATCH("/products/:id", h.updateProduct)
		v1.PUT("/products/:id", h.updateProduct)
		v1.DELETE("/products/:id", h.deleteProduct)
		v1.GET("/handles/:handle", h.getProductByHandle)

		v1.GET("/storefront/products/:id", h.storefrontProduct)

		v1.GET("/categories", h.listCategories)
		v1.POST("/categories", h.createCategory)
		v1.GET("/categories/:id", h.getCategory)
		v1.GET("/categories/:id/products", h.listCategoryProducts)
		v1.PUT("/categories/:id", h.renameCategory)
		v1.DELETE("/categories/:id", h.deleteCategory)
		v1.POST("/categories/:id/products/:productId", h.addCategoryProduct)
		v1.DELETE("/categories/:id/products/:productId", h.removeCategoryProduct)

		v1.GET("/carts/:cartId", h.getCart)
		v1.DELETE("/carts/:cartId", h.clearCart)
		v1.POST("/carts/:cartId/items", h.addCartItem)
		v1.PATCH("/carts/:cartId/items", h.updateCartItem)
		v1.DELETE("/carts/:cartId/items", h.removeCartItem)
		v1.POST("/carts/:cartId/checkout", h.checkout)

		v1.GET("/users/:userId/addresses", h.listAddresses)
		v1.POST("/users/:userId/addresses", h.saveAddress)

		v1.POST("/orders", h.createOrder)
		v1.GET("/orders", h.listOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.PATCH("/orders/:id/status", h.updateOrderStatus)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// statusFor maps an error kind to an HTTP status
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes a flat {"error": message} body
func (h *Handler) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := apperr.Message(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
	}
	c.JSON(status, gin.H{"error": msg})
}

// badRequest reports a body or parameter that could not be parsed
func badRequest(c *gin.Context, msg string, err error) {
	body := gin.H{"error": msg}
	if err != nil {
		body["details"] = err.Error()
	}
	c.JSON(http.StatusBadRequest, body)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
