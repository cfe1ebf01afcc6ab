package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"shop-assistant/internal/catalog"
	"shop-assistant/internal/command"
	"shop-assistant/internal/models"
	"shop-assistant/internal/service"
	"shop-assistant/internal/util"
	"shop-assistant/internal/vision"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// Handler contains HTTP handlers
type Handler struct {
	catalog     *catalog.Catalog
	identifier  vision.Identifier
	interpreter *command.Interpreter
	sessions    *service.SessionManager
	checks      map[string]ReadinessCheck
	corsOrigins []string
	logger      *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(cat *catalog.Catalog, identifier vision.Identifier, interpreter *command.Interpreter, sessions *service.SessionManager) *Handler {
	return &Handler{
		catalog:     cat,
		identifier:  identifier,
		interpreter: interpreter,
		sessions:    sessions,
		checks:      make(map[string]ReadinessCheck),
		logger:      util.GetLogger(),
	}
}

// AddReadinessCheck registers a dependency checked by /ready.
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// AllowOrigins restricts CORS to the given origins. "*" or no origins allow all.
func (h *Handler) AllowOrigins(origins []string) {
	h.corsOrigins = origins
}

func (h *Handler) allowAllOrigins() bool {
	return len(h.corsOrigins) == 0 || (len(h.corsOrigins) == 1 && h.corsOrigins[0] == "*")
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())
	router.Use(h.corsMiddleware())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/price", h.getPrice)
		v1.POST("/products/search", h.searchProducts)
		v1.GET("/categories", h.getCategories)
		v1.POST("/identify", h.identifyObject)
		v1.GET("/cart", h.getCart)
		v1.POST("/cart", h.updateCart)
		v1.GET("/commands", h.getCommands)
		v1.GET("/sessions/:id/ws", h.voiceSession)
	}
}

func (h *Handler) corsMiddleware() gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	if h.allowAllOrigins() {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = h.corsOrigins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cors.New(cfg)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every registered dependency
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
			"status":  "not ready",
			"details": failed,
			"time":    time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ready",
		"products": h.catalog.Len(),
		"time":     time.Now().Unix(),
	})
}

type priceRequest struct {
	Item string `json:"item"`
}

// getPrice looks up one product by name or keyword
func (h *Handler) getPrice(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Item == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No item specified"})
		return
	}

	p, ok := h.catalog.Find(req.Item)
	if !ok {
		c.JSON(http.StatusOK, gin.H{
			"item":    req.Item,
			"price":   nil,
			"message": "Product not found in our database",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"item":        p.Name,
		"price":       p.Price.InexactFloat64(),
		"currency":    "USD",
		"description": p.Description,
		"category":    p.Category,
		"inStock":     p.InStock,
	})
}

type searchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category"`
}

type productResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Price       float64 `json:"price"`
	Category    string  `json:"category"`
	Description string  `json:"description"`
	InStock     bool    `json:"inStock"`
}

// searchProducts filters the catalog by free text or category. The category
// filter wins when both are given.
func (h *Handler) searchProducts(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}
	if req.Query == "" && req.Category == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No search query or category specified"})
		return
	}

	var products []models.Product
	if req.Query != "" {
		products = h.catalog.Search(req.Query)
	}
	if req.Category != "" {
		products = h.catalog.ByCategory(req.Category)
	}

	results := make([]productResponse, 0, len(products))
	for _, p := range products {
		results = append(results, productResponse{
			ID:          p.ID,
			Name:        p.Name,
			Price:       p.Price.InexactFloat64(),
			Category:    p.Category,
			Description: p.Description,
			InStock:     p.InStock,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"results":    results,
		"total":      len(results),
		"categories": h.catalog.Categories(),
	})
}

func (h *Handler) getCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": h.catalog.Categories()})
}

type identifyRequest struct {
	Image string `json:"image"`
}

// identifyObject names the main object of a base64 image
func (h *Handler) identifyObject(c *gin.Context) {
	var req identifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	image, err := vision.DecodeImage(req.Image)
	if err != nil {
		msg := "Invalid image"
		if errors.Is(err, vision.ErrNoImage) {
			msg = "No image provided"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg, "details": err.Error()})
		return
	}

	if h.identifier == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Object identification is not configured"})
		return
	}

	id, err := h.identifier.Identify(c.Request.Context(), image)
	if err != nil {
		h.logger.Error("Object identification error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to identify object",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, id)
}

// getCart points clients at the per-session cart carried by the voice socket
func (h *Handler) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Cart data is managed per voice session",
		"note":    "Connect to /api/v1/sessions/:id/ws to receive live cart snapshots",
	})
}

type cartRequest struct {
	Action   string `json:"action"`
	Item     string `json:"item"`
	Quantity *int   `json:"quantity"`
}

// updateCart validates a cart operation without applying it
func (h *Handler) updateCart(c *gin.Context) {
	var req cartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	switch req.Action {
	case "add", "remove", "update", "clear":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid action"})
		return
	}

	if req.Action != "clear" && req.Item == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Item name required"})
		return
	}

	if req.Action == "update" && (req.Quantity == nil || *req.Quantity < 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Valid quantity required for update"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"message":  "Cart " + req.Action + " operation would be processed server-side in production",
		"action":   req.Action,
		"item":     req.Item,
		"quantity": req.Quantity,
	})
}

// getCommands lists the voice command table
func (h *Handler) getCommands(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"commands": command.Commands,
		"strategy": h.interpreter.Strategy().String(),
		"help":     command.HelpText(),
	})
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
