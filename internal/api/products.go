package api

import (
	"context"                     // Context for Redis operations
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes
	"strconv"                     // String conversion
	"time"                        // Time durations

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// ProductRequest represents a create/update product request
type ProductRequest struct {
	Name  string  `json:"name" binding:"required"`         // Display name
	Price float64 `json:"price" binding:"required,gt=0"`   // Unit price
	Stock int     `json:"stock" binding:"gte=0"`           // Units available, zero allowed
}

// ListProductsHandler returns the public paginated catalog
func ListProductsHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		page := 1      // Default page
		pageSize := 20 // Default page size
		// If page exists in query
		if p := c.Query("page"); p != "" {
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// If page_size exists in query
		if ps := c.Query("page_size"); ps != "" {
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size if valid
			}
		}
		ctx := context.Background()                 // Context for Redis operations
		cacheKey := utils.CatalogKey(page, pageSize) // Catalog cache key
		var cached struct {
			Products   []domain.Product `json:"products"`    // Page of products
			Page       int              `json:"page"`        // Current page
			PageSize   int              `json:"page_size"`   // Page size
			Total      int64            `json:"total"`       // Total products
			TotalPages int              `json:"total_pages"` // Total pages
		}
		// Try to get from cache
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"products":    cached.Products,   // Cached page
				"page":        cached.Page,       // Current page
				"page_size":   cached.PageSize,   // Page size
				"total":       cached.Total,      // Total products
				"total_pages": cached.TotalPages, // Total pages
				"cached":      true,
			})
			return
		}
		offset := (page - 1) * pageSize // Calculate offset
		var total int64                 // Total product count
		// Archived products are hidden from the public catalog
		if err := db.Model(&domain.Product{}).Where("archived = ?", false).Count(&total).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count products"})
			return
		}
		var products []domain.Product // Page of products
		if err := db.Where("archived = ?", false).
			Order("created_at desc").
			Offset(offset).
			Limit(pageSize).
			Find(&products).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch products"})
			return
		}
		totalPages := (int(total) + pageSize - 1) / pageSize // Calculate total pages
		resp := gin.H{
			"products":    products,   // Page of products
			"page":        page,       // Current page
			"page_size":   pageSize,   // Page size
			"total":       total,      // Total products
			"total_pages": totalPages, // Total pages
			"cached":      false,      // Not from cache
		}
		// Cache the result for 60 seconds
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		c.JSON(http.StatusOK, resp)
	}
}

// CreateProductHandler adds a product to the seller's storefront
func CreateProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req ProductRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// Create the product owned by the authenticated seller
		product := domain.Product{
			SellerID: userID.(uint), // Owning seller
			Name:     req.Name,      // Display name
			Price:    req.Price,     // Unit price
			Stock:    req.Stock,     // Units available
		}
		if err := db.Create(&product).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create product"})
			return
		}
		// Invalidate the public catalog cache
		utils.InvalidateCatalog(context.Background(), rdb)
		c.JSON(http.StatusCreated, gin.H{"message": "Product created", "product": product})
	}
}

// UpdateProductHandler edits a product the seller owns
func UpdateProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		productID := c.Param("id") // Product to edit
		var req ProductRequest     // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var product domain.Product // Load the product, scoped to the owner
		if err := db.Where("id = ? AND seller_id = ?", productID, userID).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		// Apply the edit
		if err := db.Model(&product).Updates(map[string]any{
			"name":  req.Name,  // Display name
			"price": req.Price, // Unit price
			"stock": req.Stock, // Units available
		}).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update product"})
			return
		}
		// Invalidate the public catalog cache
		utils.InvalidateCatalog(context.Background(), rdb)
		c.JSON(http.StatusOK, gin.H{"message": "Product updated", "product": product})
	}
}

// ArchiveProductHandler hides a product from the catalog. Products are
// never deleted: order items keep referencing them.
func ArchiveProductHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		productID := c.Param("id") // Product to archive
		var product domain.Product // Load the product, scoped to the owner
		if err := db.Where("id = ? AND seller_id = ?", productID, userID).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		if err := db.Model(&product).Update("archived", true).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive product"})
			return
		}
		// Invalidate the public catalog cache
		utils.InvalidateCatalog(context.Background(), rdb)
		c.JSON(http.StatusOK, gin.H{"message": "Product archived"})
	}
}
