package main

import (
	"context"                         // context package is needed for Redis operations
	"log"                             // log package is needed for logging
	"marketplace/internal/api"        // Custom package for API handlers
	"marketplace/internal/config"     // Custom package for configuration
	"marketplace/internal/ledger"     // Wallet ledger component
	"marketplace/internal/middleware" // Custom package for middleware
	"marketplace/internal/notify"     // Fire-and-forget event publisher
	"marketplace/internal/orders"     // Order lifecycle service
	"marketplace/internal/payments"   // Payment gateway binding

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logrus for structured logging
	"gorm.io/driver/mysql"         // MySQL driver for GORM
	"gorm.io/gorm"                 // GORM ORM library
)

// Main function to set up and run the server
func main() {
	cfg := config.LoadConfig() // Load configuration

	// Setup logger
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// Setup Data Source Name (DSN) and connect to the database
	dsn := cfg.DBUser + ":" + cfg.DBPassword + "@tcp(" + cfg.DBHost + ":" + cfg.DBPort + ")/" + cfg.DBName + "?parseTime=true"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		logrus.Fatalf("failed to connect to DB: %v", err) // Fatal error if DB connection fails
	}

	// Setup Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr, // Redis server address
		Password: cfg.RedisPass, // Redis password
		DB:       cfg.RedisDB,   // Redis database number
	})

	// Test Redis connection
	_, err = redisClient.Ping(context.Background()).Result()
	if err != nil {
		logrus.Fatalf("failed to connect to Redis: %v", err)
	}

	// Construct the components around explicit handles (no globals)
	led := ledger.New(db, cfg.Currency)                  // Wallet ledger
	orderSvc := orders.NewService(db, led)               // State machine + refund coordinator
	gateway := payments.New(cfg.MidtransKey, cfg.IsProd) // Hosted checkout
	publisher := notify.New(redisClient)                 // Per-user event channels

	// Set Mode to Release if in production
	if cfg.IsProd {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup Gin
	r := gin.Default() // Gin router instance

	// Set trusted proxies for Gin
	if err := r.SetTrustedProxies([]string{"127.0.0.1"}); err != nil {
		logrus.Fatalf("failed to set trusted proxies: %v", err)
	}

	// Throttle every route per client IP
	r.Use(middleware.RateLimitMiddleware(5, 10))

	// Auth routes
	r.POST("/user", api.RegisterHandler(db, led))       // Registration endpoint
	r.GET("/user", api.LoginHandler(db, cfg.JWTSecret)) // Login endpoint

	// Public catalog
	r.GET("/products", api.ListProductsHandler(db, redisClient)) // Catalog listing endpoint

	// Payment gateway webhook (no session; the gateway calls this)
	r.POST("/payments/notify", api.PaymentWebhookHandler(db, orderSvc, publisher, redisClient))

	auth := middleware.JWTAuthMiddleware(cfg.JWTSecret) // Shared JWT gate

	// Wallet routes (protected by JWT)
	walletGroup := r.Group("/wallet")
	walletGroup.Use(auth)
	walletGroup.GET("", api.GetWalletHandler(led, redisClient))                         // Get wallet endpoint
	walletGroup.POST("/deposit", api.DepositHandler(led, redisClient))                  // Deposit endpoint
	walletGroup.POST("/withdraw", api.WithdrawHandler(led, redisClient))                // Withdrawal endpoint
	walletGroup.GET("/transactions", api.GetTransactionHistoryHandler(db, redisClient)) // Transaction history endpoint

	// Buyer routes (cart, wishlist, checkout, own orders)
	buyerGroup := r.Group("/shop")
	buyerGroup.Use(auth, middleware.RequirePermission(db, middleware.PermCartManage))
	buyerGroup.POST("/cart", api.AddToCartHandler(db))                                               // Add to cart endpoint
	buyerGroup.GET("/cart", api.GetCartHandler(db))                                                  // View cart endpoint
	buyerGroup.DELETE("/cart/:id", api.RemoveFromCartHandler(db))                                    // Remove from cart endpoint
	buyerGroup.POST("/wishlist", api.AddToWishlistHandler(db))                                       // Add to wishlist endpoint
	buyerGroup.GET("/wishlist", api.GetWishlistHandler(db))                                          // View wishlist endpoint
	buyerGroup.DELETE("/wishlist/:id", api.RemoveFromWishlistHandler(db))                            // Remove from wishlist endpoint
	buyerGroup.POST("/checkout", api.CheckoutHandler(db, orderSvc, gateway, publisher, redisClient)) // Checkout endpoint
	buyerGroup.GET("/orders", api.GetMyOrdersHandler(db))                                            // Buyer order history endpoint

	// Buyer return path needs its own permission
	returnGroup := r.Group("/shop")
	returnGroup.Use(auth, middleware.RequirePermission(db, middleware.PermOrderReturn))
	returnGroup.POST("/orders/:id/return", api.ReturnOrderHandler(orderSvc, publisher, redisClient)) // Return endpoint

	// Seller routes (catalog management and order fulfilment)
	sellerGroup := r.Group("/seller")
	sellerGroup.Use(auth, middleware.RequirePermission(db, middleware.PermProductManage))
	sellerGroup.POST("/products", api.CreateProductHandler(db, redisClient))        // Create product endpoint
	sellerGroup.PUT("/products/:id", api.UpdateProductHandler(db, redisClient))     // Update product endpoint
	sellerGroup.DELETE("/products/:id", api.ArchiveProductHandler(db, redisClient)) // Archive product endpoint

	fulfilGroup := r.Group("/seller")
	fulfilGroup.Use(auth, middleware.RequirePermission(db, middleware.PermOrderSeller))
	fulfilGroup.GET("/orders", api.GetSellerOrdersHandler(db))                                       // Seller orders endpoint
	fulfilGroup.POST("/orders/:id/accept", api.AcceptOrderHandler(orderSvc))                         // Accept endpoint
	fulfilGroup.POST("/orders/:id/ship", api.ShipOrderHandler(orderSvc))                             // Ship endpoint
	fulfilGroup.POST("/orders/:id/rider", api.AssignRiderHandler(orderSvc, db, publisher))           // Assign rider endpoint
	fulfilGroup.POST("/orders/:id/cancel", api.CancelOrderHandler(orderSvc, publisher, redisClient)) // Cancel endpoint

	// Rider routes (assigned deliveries)
	riderGroup := r.Group("/rider")
	riderGroup.Use(auth, middleware.RequirePermission(db, middleware.PermOrderDeliver))
	riderGroup.GET("/orders", api.GetRiderOrdersHandler(db))                  // Assigned orders endpoint
	riderGroup.POST("/orders/:id/deliver", api.DeliverOrderHandler(orderSvc)) // Deliver endpoint

	// Admin routes (protected, admin only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(auth, middleware.RequirePermission(db, middleware.PermAdmin))
	adminGroup.GET("/users", api.ListUsersHandler(db, redisClient))                                 // List users endpoint
	adminGroup.GET("/transactions", api.ListTransactionsHandler(db, redisClient))                   // List transactions endpoint
	adminGroup.POST("/orders/:id/cancel", api.CancelOrderHandler(orderSvc, publisher, redisClient)) // Admin cancel endpoint
	adminGroup.POST("/orders/:id/refund", api.ForceRefundHandler(orderSvc, publisher, redisClient)) // Force refund endpoint

	log.Println("Server running on " + cfg.AppPort) // Log server start
	r.Run(":" + cfg.AppPort)                        // Start the server on port cfg.AppPort
}
