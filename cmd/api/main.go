package main

import (
	"context"
	"log"
	"time"

	_ "billing/api/swagger" // swagger docs
	"billing/internal/cache"
	"billing/internal/config"
	"billing/internal/database"
	"billing/internal/export"
	"billing/internal/handler"
	"billing/internal/invalidation"
	"billing/internal/middleware"
	"billing/internal/repository"
	"billing/internal/service"
	"billing/internal/validation"
	"billing/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Billing API
// @version         1.0
// @description     Invoice drafting, approval, retainers and VAT rules.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("Database connection failed: %v", err)
	}
	log.Println("Connected to PostgreSQL successfully.")

	store := newCacheStore(cfg)

	// Set up WebSocket Hub
	wsHub := websocket.NewHub()
	go wsHub.Run()

	bus := invalidation.NewBus(store, wsHub, invalidation.DefaultRegistry())

	if err := validation.RegisterBindings(); err != nil {
		log.Fatalf("Validator setup failed: %v", err)
	}

	// Set up dependencies (Repository -> Service -> Handler)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	taxRuleRepo := repository.NewTaxRuleRepository(db)
	retainerRepo := repository.NewRetainerRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	statisticsRepo := repository.NewStatisticsRepository(db)
	txManager := repository.NewTransactionManager(db)

	opts := service.Options{Currency: cfg.Currency, CacheTTL: cfg.CacheTTL}

	userService := service.NewUserService(userRepo, cfg.JWTSecret, cfg.TokenTTL)
	auditService := service.NewAuditService(auditRepo, store, opts)
	taxService := service.NewTaxService(taxRuleRepo, auditRepo, store, bus, opts)
	retainerService := service.NewRetainerService(retainerRepo, auditRepo, txManager, store, bus, opts)
	invoiceService := service.NewInvoiceService(invoiceRepo, taxRuleRepo, retainerRepo, auditRepo, txManager, store, bus, opts)
	statisticsService := service.NewStatisticsService(statisticsRepo, store, opts)

	seedCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := userService.EnsureAdmin(seedCtx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Printf("Admin seed skipped: %v", err)
	}
	cancel()

	// Initialize Handlers
	company := export.Company{Name: cfg.CompanyName, VATNumber: cfg.CompanyVAT}
	userHandler := handler.NewUserHandler(userService, cfg.TokenTTL, cfg.GinMode == gin.ReleaseMode)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService, statisticsService, company)
	retainerHandler := handler.NewRetainerHandler(retainerService)
	taxHandler := handler.NewTaxHandler(taxService)
	auditHandler := handler.NewAuditHandler(auditService)
	statisticsHandler := handler.NewStatisticsHandler(statisticsService)

	// Set up Gin Router
	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.ExposeHeaders = []string{"Content-Disposition"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK", "ws_clients": wsHub.ClientCount()})
	})

	api := router.Group("/api")

	// WebSocket endpoint, authenticated by the token query parameter or cookie
	api.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, cfg.JWTSecret)
	})

	userHandler.RegisterPublicRoutes(api)

	protected := api.Group("")
	protected.Use(middleware.Authenticate(cfg.JWTSecret))
	userHandler.RegisterRoutes(protected)
	invoiceHandler.RegisterRoutes(protected)
	retainerHandler.RegisterRoutes(protected)
	taxHandler.RegisterRoutes(protected)
	auditHandler.RegisterRoutes(protected)
	statisticsHandler.RegisterRoutes(protected)

	log.Printf("Server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// newCacheStore connects to Redis when REDIS_ADDR is set and falls back to
// the in-process store otherwise or when Redis is unreachable.
func newCacheStore(cfg config.Config) cache.Store {
	if cfg.RedisAddr == "" {
		log.Println("REDIS_ADDR not set, using in-memory cache")
		return cache.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := cache.NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Printf("Redis unavailable (%v), using in-memory cache", err)
		return cache.NewMemoryStore()
	}
	log.Printf("Connected to Redis at %s", cfg.RedisAddr)
	return store
}
