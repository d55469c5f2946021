package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"cart-service/internal/cart"
	"cart-service/internal/clientconfig"
	"cart-service/internal/models"
	"cart-service/internal/service"
	"cart-service/internal/session"
	"cart-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionHeader carries the cart session id in requests and responses
const SessionHeader = "X-Session-ID"

const sessionKey = "session_id"

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	cartService *service.CartService
	clients     *clientconfig.Table
	readiness   map[string]ReadinessCheck
	rateLimit   gin.HandlerFunc
}

// NewHandler creates a new HTTP handler
func NewHandler(cartService *service.CartService, clients *clientconfig.Table) *Handler {
	return &Handler{
		cartService: cartService,
		clients:     clients,
		readiness:   make(map[string]ReadinessCheck),
		rateLimit:   RateLimit(0, 0),
	}
}

// SetRateLimit limits API requests per session to rps with the given burst
func (h *Handler) SetRateLimit(rps float64, burst int) {
	h.rateLimit = RateLimit(rps, burst)
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.readiness[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", h.rateLimit)
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)

		v1.GET("/clients", h.listClients)
		v1.GET("/clients/:id", h.getClient)

		carts := v1.Group("/cart", sessionMiddleware())
		{
			carts.GET("", h.getCart)
			carts.POST("/items", h.addItem)
			carts.PUT("/items/:id", h.updateQuantity)
			carts.DELETE("/items/:id", h.removeItem)
			carts.POST("/discount", h.applyDiscount)
			carts.POST("/clear", h.clearCart)
			carts.POST("/undo", h.undo)
			carts.POST("/checkout", h.checkout)
		}
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes registered dependencies
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.readiness {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"checks": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.cartService.ListProducts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to list products",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.cartService.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get product")
		return
	}

	c.JSON(http.StatusOK, product)
}

func (h *Handler) listClients(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"clients": h.clients.IDs()})
}

// getClient returns the theme and features of a client; unknown ids get the
// default entry
func (h *Handler) getClient(c *gin.Context) {
	c.JSON(http.StatusOK, h.clients.Lookup(c.Param("id")))
}

func (h *Handler) getCart(c *gin.Context) {
	view, err := h.cartService.GetCart(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		respondError(c, err, "Failed to load cart")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) addItem(c *gin.Context) {
	var req service.AddItemRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	view, err := h.cartService.AddItem(c.Request.Context(), c.GetString(sessionKey), &req)
	if err != nil {
		respondError(c, err, "Failed to add item")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) updateQuantity(c *gin.Context) {
	var req service.UpdateQuantityRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	view, err := h.cartService.UpdateQuantity(c.Request.Context(), c.GetString(sessionKey), c.Param("id"), *req.Quantity)
	if err != nil {
		respondError(c, err, "Failed to update quantity")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) removeItem(c *gin.Context) {
	view, err := h.cartService.RemoveItem(c.Request.Context(), c.GetString(sessionKey), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to remove item")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) applyDiscount(c *gin.Context) {
	var req service.ApplyDiscountRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	view, err := h.cartService.ApplyDiscount(c.Request.Context(), c.GetString(sessionKey), req.Code)
	if err != nil {
		respondError(c, err, "Failed to apply discount")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) clearCart(c *gin.Context) {
	view, err := h.cartService.ClearCart(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		respondError(c, err, "Failed to clear cart")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) undo(c *gin.Context) {
	view, err := h.cartService.Undo(c.Request.Context(), c.GetString(sessionKey))
	if err != nil {
		respondError(c, err, "Failed to undo")
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *Handler) checkout(c *gin.Context) {
	resp, err := h.cartService.Checkout(c.Request.Context(), c.GetString(sessionKey), c.GetHeader("Idempotency-Key"))
	if err != nil {
		respondError(c, err, "Failed to checkout")
		return
	}

	status := http.StatusCreated
	if resp.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// respondError maps service errors onto HTTP statuses
func respondError(c *gin.Context, err error, message string) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrProductNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEmptyCart):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, service.ErrCartBusy):
		status = http.StatusConflict
	case errors.Is(err, session.ErrShutdown), errors.Is(err, cart.ErrStorageUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

// sessionMiddleware resolves the cart session from the request header,
// generating one when absent, and echoes it on the response
func sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionHeader)
		if sessionID == "" {
			sessionID = session.NewSessionID()
		}

		c.Set(sessionKey, sessionID)
		c.Header(SessionHeader, sessionID)
		c.Next()
	}
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
