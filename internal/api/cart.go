package api

import (
	"context"                       // Context for Redis operations
	"fmt"                           // Order number formatting
	"marketplace/internal/domain"   // Importing domain models
	"marketplace/internal/notify"   // Fire-and-forget events
	"marketplace/internal/orders"   // Order service
	"marketplace/internal/payments" // Hosted checkout sessions
	"marketplace/internal/utils"    // Utility functions
	"net/http"                      // HTTP status codes
	"time"                          // Order number entropy

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// CartItemRequest represents an add-to-cart request
type CartItemRequest struct {
	ProductID uint `json:"product_id" binding:"required"`   // Product to add
	Quantity  int  `json:"quantity" binding:"required,gt=0"` // Units requested
}

// CheckoutRequest selects how the resulting orders are paid
type CheckoutRequest struct {
	Method string `json:"method" binding:"required,oneof=wallet gateway"` // wallet or gateway
}

// AddToCartHandler puts a product in the buyer's cart, summing
// quantities on repeat adds
func AddToCartHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req CartItemRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var product domain.Product // Only live catalog products can be carted
		if err := db.Where("id = ? AND archived = ?", req.ProductID, false).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		var item domain.CartItem // Existing line for this (buyer, product)
		err := db.Where("buyer_id = ? AND product_id = ?", userID, req.ProductID).First(&item).Error
		if err == nil {
			// Repeat add: bump the quantity
			if err := db.Model(&item).Update("quantity", item.Quantity+req.Quantity).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update cart"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"message": "Cart updated"})
			return
		}
		// First add: create the line
		item = domain.CartItem{BuyerID: userID.(uint), ProductID: req.ProductID, Quantity: req.Quantity}
		if err := db.Create(&item).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add to cart"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Added to cart"})
	}
}

// RemoveFromCartHandler drops a product from the buyer's cart
func RemoveFromCartHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		productID := c.Param("id") // Product to remove
		res := db.Where("buyer_id = ? AND product_id = ?", userID, productID).Delete(&domain.CartItem{})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove from cart"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not in cart"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Removed from cart"})
	}
}

// GetCartHandler lists the buyer's cart with line and grand totals
func GetCartHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var items []domain.CartItem // Cart lines with products preloaded
		if err := db.Preload("Product").Where("buyer_id = ?", userID).Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
			return
		}
		var total float64 // Grand total across all lines
		for _, it := range items {
			total += it.Product.Price * float64(it.Quantity)
		}
		c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
	}
}

// AddToWishlistHandler saves a product for later
func AddToWishlistHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req struct {
			ProductID uint `json:"product_id" binding:"required"` // Wished product
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var product domain.Product // Product must exist and be live
		if err := db.Where("id = ? AND archived = ?", req.ProductID, false).First(&product).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Product not found"})
			return
		}
		item := domain.WishlistItem{BuyerID: userID.(uint), ProductID: req.ProductID}
		// The unique index makes repeat adds fail; treat that as success
		if err := db.Create(&item).Error; err != nil {
			c.JSON(http.StatusOK, gin.H{"message": "Already in wishlist"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"message": "Added to wishlist"})
	}
}

// RemoveFromWishlistHandler drops a product from the wishlist
func RemoveFromWishlistHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		productID := c.Param("id") // Product to remove
		res := db.Where("buyer_id = ? AND product_id = ?", userID, productID).Delete(&domain.WishlistItem{})
		if res.Error != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove from wishlist"})
			return
		}
		if res.RowsAffected == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Not in wishlist"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Removed from wishlist"})
	}
}

// GetWishlistHandler lists the buyer's wishlist
func GetWishlistHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var items []domain.WishlistItem // Wishlist with products preloaded
		if err := db.Preload("Product").Where("buyer_id = ?", userID).Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch wishlist"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": items})
	}
}

// CheckoutHandler converts the cart into one order per seller. Stock
// is decremented and the cart cleared in the same transaction that
// creates the orders. Wallet payment settles immediately through the
// ledger; gateway payment returns hosted checkout sessions and waits
// for the webhook.
func CheckoutHandler(db *gorm.DB, svc *orders.Service, gw *payments.Gateway, pub *notify.Publisher, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		buyerID := userID.(uint)
		var req CheckoutRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		var items []domain.CartItem // Cart lines with products preloaded
		if err := db.Preload("Product").Where("buyer_id = ?", buyerID).Find(&items).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch cart"})
			return
		}
		if len(items) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
			return
		}
		// Group cart lines by seller: one order per seller
		bySeller := make(map[uint][]domain.CartItem)
		for _, it := range items {
			bySeller[it.Product.SellerID] = append(bySeller[it.Product.SellerID], it)
		}
		var created []domain.Order // Orders created by this checkout
		// Atomic checkout: stock decrements, order inserts and cart
		// clearing all commit or abort together
		err := db.Transaction(func(tx *gorm.DB) error {
			for sellerID, lines := range bySeller {
				order := domain.Order{
					OrderNo:  fmt.Sprintf("INV-%d-%d", time.Now().UnixNano(), sellerID), // External reference
					BuyerID:  buyerID,
					SellerID: sellerID,
					Status:   domain.OrderPending,
				}
				for _, line := range lines {
					// Guarded stock decrement: the stock condition is
					// checked by the store in the same statement, so
					// concurrent checkouts cannot oversell
					res := tx.Model(&domain.Product{}).
						Where("id = ? AND stock >= ?", line.ProductID, line.Quantity).
						Update("stock", gorm.Expr("stock - ?", line.Quantity))
					if res.Error != nil {
						return res.Error // Return error to rollback
					}
					if res.RowsAffected == 0 {
						return fmt.Errorf("insufficient stock for %s", line.Product.Name)
					}
					// Snapshot the product into the order line
					order.Items = append(order.Items, domain.OrderItem{
						ProductID: line.ProductID,      // Product reference
						Name:      line.Product.Name,   // Name at purchase time
						UnitPrice: line.Product.Price,  // Price at purchase time
						Quantity:  line.Quantity,       // Units ordered
					})
					order.TotalAmount += line.Product.Price * float64(line.Quantity)
				}
				if err := tx.Create(&order).Error; err != nil {
					return err // Return error to rollback
				}
				created = append(created, order)
			}
			// Clear the cart inside the same unit of work
			return tx.Where("buyer_id = ?", buyerID).Delete(&domain.CartItem{}).Error
		})
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Invalidate the catalog cache after stock changed
		utils.InvalidateCatalog(context.Background(), rdb)
		// Gateway payment: hand each order to the hosted checkout and
		// let the webhook confirm later
		if req.Method == "gateway" {
			var user domain.User // Customer details for the gateway
			if err := db.First(&user, buyerID).Error; err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
				return
			}
			sessions := make(map[string]*payments.Session, len(created))
			for i := range created {
				s, err := gw.CreateSession(&created[i], &user)
				if err != nil {
					// Orders stay pending/unpaid and can be retried
					c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway error", "orders": created})
					return
				}
				sessions[created[i].OrderNo] = s
			}
			c.JSON(http.StatusCreated, gin.H{"message": "Checkout created, complete payment", "orders": created, "sessions": sessions})
			return
		}
		// Wallet payment: debit the buyer for each order right now
		for i := range created {
			order, err := svc.PayFromWallet(created[i].ID, buyerID)
			if err != nil {
				// Nothing partial within the failed order; already paid
				// orders stay paid, the rest stay pending
				errorResponse(c, err)
				return
			}
			created[i] = *order
			// Fire-and-forget events, never part of the unit of work
			pub.Publish(buyerID, notify.EventPaymentSuccess, map[string]any{"order_no": order.OrderNo})
			pub.Publish(order.SellerID, notify.EventPaymentSuccess, map[string]any{"order_no": order.OrderNo})
		}
		// Invalidate wallet cache after the debits
		utils.InvalidateWallet(context.Background(), rdb, buyerID)
		c.JSON(http.StatusCreated, gin.H{"message": "Checkout complete", "orders": created})
	}
}
