package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"price-checker/internal/api"
	"price-checker/internal/config"
	"price-checker/internal/database"
	"price-checker/internal/models"
	"price-checker/internal/scheduler"
	"price-checker/internal/scraper"
	"price-checker/internal/services"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

// loadSettingsFromDB loads settings from database and overrides config.
// Intervals changed through the settings API survive restarts this way.
func loadSettingsFromDB(cfg *config.Config) {
	db := database.GetDB()
	if db == nil {
		return
	}

	var settings []models.Setting
	if err := db.Find(&settings).Error; err != nil {
		log.Printf("Warning: Failed to load settings from database: %v", err)
		return
	}

	settingsMap := make(map[string]string)
	for _, s := range settings {
		settingsMap[s.Key] = s.Value
	}

	if val, ok := settingsMap["monitor.availability_interval"]; ok && val != "" {
		if minutes, err := strconv.Atoi(val); err == nil && minutes >= 0 {
			cfg.Monitor.AvailabilityIntervalMinutes = minutes
		}
	}
	if val, ok := settingsMap["monitor.price_interval"]; ok && val != "" {
		if minutes, err := strconv.Atoi(val); err == nil && minutes >= 0 {
			cfg.Monitor.PriceIntervalMinutes = minutes
		}
	}

	log.Println("Settings loaded from database and applied to configuration")
}

// seedProducts ensures the products listed in the config file are tracked.
// URLs no scraper supports are skipped with a warning.
func seedProducts(cfg *config.Config, registry *scraper.Registry) {
	db := database.GetDB()

	for _, pc := range cfg.Products {
		if _, err := registry.Resolve(pc.URL); err != nil {
			log.Printf("Warning: Skipping seed product %s: %v", pc.URL, err)
			continue
		}

		product := models.Product{URL: pc.URL, Name: pc.Name}
		if err := db.Where(models.Product{URL: pc.URL}).FirstOrCreate(&product).Error; err != nil {
			log.Printf("Warning: Failed to seed product %s: %v", pc.URL, err)
		}
	}
}

func main() {
	log.Println("Starting Price & Availability Checker")

	// Load .env if present, then configuration
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	if err := database.InitDB(&cfg.Database); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Database initialized successfully")

	// Load settings from database and override config
	loadSettingsFromDB(cfg)

	// Initialize services
	registry := scraper.NewRegistry(&cfg.Scrape)
	notifyService := services.NewNotifyService(services.NewPushoverTransport(&cfg.Pushover))
	monitorService := services.NewMonitorService(registry, notifyService, cfg.Monitor.Workers)

	seedProducts(cfg, registry)

	// Send test notification if requested
	if os.Getenv("SEND_TEST_NOTIFICATION") == "true" {
		log.Println("Sending test notification...")
		if err := notifyService.SendTest(); err != nil {
			log.Printf("Test notification failed: %v", err)
		}
	}

	// Run initial check in the background
	go func() {
		log.Println("Running initial product check...")
		if err := monitorService.CheckAllProducts(context.Background(), models.KindAvailability); err != nil {
			log.Printf("Initial availability check failed: %v", err)
		}
		if err := monitorService.CheckAllProducts(context.Background(), models.KindPrice); err != nil {
			log.Printf("Initial price check failed: %v", err)
		}
	}()

	// Initialize scheduler
	sched := scheduler.NewScheduler(monitorService)
	sched.Start(cfg.Monitor.AvailabilityIntervalMinutes, cfg.Monitor.PriceIntervalMinutes)

	// Setup Gin
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// Enable CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Setup API routes
	handler := api.NewHandler(monitorService, notifyService, registry, sched)
	api.SetupRoutes(r, handler)

	// Start server
	addr := ":" + cfg.Server.Port
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal, then let in-flight checks finish
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	sched.Stop()
}
