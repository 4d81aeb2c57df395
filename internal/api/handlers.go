package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"price-checker/internal/database"
	"price-checker/internal/models"
	"price-checker/internal/scheduler"
	"price-checker/internal/scraper"
	"price-checker/internal/services"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Handler holds service dependencies
type Handler struct {
	monitorService *services.MonitorService
	notifyService  *services.NotifyService
	registry       *scraper.Registry
	scheduler      *scheduler.Scheduler
}

// NewHandler creates a new API handler
func NewHandler(monitorService *services.MonitorService, notifyService *services.NotifyService, registry *scraper.Registry, sched *scheduler.Scheduler) *Handler {
	return &Handler{
		monitorService: monitorService,
		notifyService:  notifyService,
		registry:       registry,
		scheduler:      sched,
	}
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, handler *Handler) {
	api := r.Group("/api/v1")
	{
		// Product management
		api.GET("/products", handler.ListProducts)
		api.POST("/products", handler.CreateProduct)
		api.GET("/products/:id", handler.GetProduct)
		api.DELETE("/products/:id", handler.DeleteProduct)
		api.GET("/products/:id/history", handler.GetHistory)
		api.POST("/products/:id/check", handler.CheckProduct)

		// Dashboard statistics
		api.GET("/dashboard/stats", handler.GetStats)

		// Notifications
		api.GET("/notifications", handler.ListNotifications)

		// System settings
		api.GET("/settings", handler.GetSettings)
		api.PUT("/settings", handler.UpdateSettings)

		// Testing
		api.POST("/test/notification", handler.TestNotification)
	}
}

// ListProducts retrieves all tracked products
func (h *Handler) ListProducts(c *gin.Context) {
	db := database.GetDB()

	var products []models.Product
	if err := db.Order("created_at asc").Find(&products).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, products)
}

// CreateProduct adds a new product to track. The URL must be handled by a
// registered scraper; unsupported URLs are rejected here so scheduled
// checks never hit an unresolvable product.
func (h *Handler) CreateProduct(c *gin.Context) {
	var req struct {
		URL  string `json:"url" binding:"required"`
		Name string `json:"name"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if _, err := h.registry.Resolve(req.URL); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no scraper supports this URL"})
		return
	}

	db := database.GetDB()

	var existing models.Product
	if err := db.Where("url = ?", req.URL).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "product already tracked"})
		return
	}

	product := models.Product{
		URL:       req.URL,
		Name:      req.Name,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := db.Create(&product).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Immediately check the product; the first availability check also
	// seeds the name when the user left it blank
	go func() {
		p := product
		if err := h.monitorService.CheckProduct(context.Background(), &p, models.KindAvailability); err != nil {
			log.Printf("Initial availability check failed for %s: %v", p.URL, err)
		}
		if err := h.monitorService.CheckProduct(context.Background(), &p, models.KindPrice); err != nil {
			log.Printf("Initial price check failed for %s: %v", p.URL, err)
		}
	}()

	c.JSON(http.StatusCreated, product)
}

// GetProduct retrieves a single product
func (h *Handler) GetProduct(c *gin.Context) {
	product, ok := h.findProduct(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, product)
}

// DeleteProduct removes a product and its check history
func (h *Handler) DeleteProduct(c *gin.Context) {
	product, ok := h.findProduct(c)
	if !ok {
		return
	}

	db := database.GetDB()

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.CheckRecord{}).Error; err != nil {
			return err
		}
		if err := tx.Where("product_id = ?", product.ID).Delete(&models.Notification{}).Error; err != nil {
			return err
		}
		return tx.Delete(product).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

// GetHistory retrieves a product's check history
func (h *Handler) GetHistory(c *gin.Context) {
	product, ok := h.findProduct(c)
	if !ok {
		return
	}

	db := database.GetDB()

	var records []models.CheckRecord
	if err := db.Where("product_id = ?", product.ID).
		Order("checked_at desc").
		Limit(100).
		Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, records)
}

// CheckProduct manually runs both checks for a product
func (h *Handler) CheckProduct(c *gin.Context) {
	product, ok := h.findProduct(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.monitorService.CheckProduct(ctx, product, models.KindAvailability); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.monitorService.CheckProduct(ctx, product, models.KindPrice); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, product)
}

// GetStats retrieves dashboard statistics
func (h *Handler) GetStats(c *gin.Context) {
	db := database.GetDB()

	var total int64
	db.Model(&models.Product{}).Count(&total)

	var available int64
	db.Model(&models.Product{}).Where("last_available = ?", true).Count(&available)

	var unavailable int64
	db.Model(&models.Product{}).Where("last_available = ?", false).Count(&unavailable)

	var unchecked int64
	db.Model(&models.Product{}).Where("last_available IS NULL").Count(&unchecked)

	c.JSON(http.StatusOK, gin.H{
		"total":       total,
		"available":   available,
		"unavailable": unavailable,
		"unchecked":   unchecked,
	})
}

// ListNotifications retrieves notification history
func (h *Handler) ListNotifications(c *gin.Context) {
	db := database.GetDB()

	var notifications []models.Notification
	if err := db.Order("sent_at desc").Limit(100).Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// GetSettings retrieves the check intervals
func (h *Handler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"availability_interval_minutes": h.scheduler.Interval(models.KindAvailability),
		"price_interval_minutes":        h.scheduler.Interval(models.KindPrice),
	})
}

// UpdateSettings updates the check intervals and reconfigures the
// scheduler. An interval of 0 pauses that cadence; an in-flight batch
// completes before the pause takes effect.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req struct {
		AvailabilityIntervalMinutes *int `json:"availability_interval_minutes"`
		PriceIntervalMinutes        *int `json:"price_interval_minutes"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	for _, v := range []*int{req.AvailabilityIntervalMinutes, req.PriceIntervalMinutes} {
		if v != nil && *v < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "interval must be a non-negative integer"})
			return
		}
	}

	db := database.GetDB()

	if req.AvailabilityIntervalMinutes != nil {
		db.Save(&models.Setting{
			Key:   "monitor.availability_interval",
			Value: strconv.Itoa(*req.AvailabilityIntervalMinutes),
		})
		h.scheduler.Reconfigure(models.KindAvailability, *req.AvailabilityIntervalMinutes)
	}

	if req.PriceIntervalMinutes != nil {
		db.Save(&models.Setting{
			Key:   "monitor.price_interval",
			Value: strconv.Itoa(*req.PriceIntervalMinutes),
		})
		h.scheduler.Reconfigure(models.KindPrice, *req.PriceIntervalMinutes)
	}

	c.JSON(http.StatusOK, gin.H{"message": "Settings updated successfully"})
}

// TestNotification sends a test notification to verify configuration
func (h *Handler) TestNotification(c *gin.Context) {
	if err := h.notifyService.SendTest(); err != nil {
		if errors.Is(err, services.ErrNotConfigured) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Test notification sent successfully"})
}

// findProduct loads the product referenced by the :id route parameter,
// writing the error response itself when it cannot
func (h *Handler) findProduct(c *gin.Context) (*models.Product, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid product ID"})
		return nil, false
	}

	db := database.GetDB()

	var product models.Product
	if err := db.First(&product, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
		return nil, false
	}

	return &product, true
}
