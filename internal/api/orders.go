package api

import (
	"context"                         // Context for Redis operations
	"marketplace/internal/domain"     // Importing domain models
	"marketplace/internal/middleware" // Permission table
	"marketplace/internal/notify"     // Fire-and-forget events
	"marketplace/internal/orders"     // Order service
	"marketplace/internal/utils"      // Utility functions
	"net/http"                        // HTTP status codes
	"strconv"                         // String conversion

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// orderID parses the :id route param
func orderID(c *gin.Context) (uint, bool) {
	v, err := strconv.Atoi(c.Param("id")) // Parse the path parameter
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return 0, false
	}
	return uint(v), true
}

// GetMyOrdersHandler lists the authenticated buyer's orders
func GetMyOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var list []domain.Order // Buyer's orders, newest first
		if err := db.Preload("Items").Where("buyer_id = ?", userID).
			Order("created_at desc").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	}
}

// GetSellerOrdersHandler lists orders placed against the seller
func GetSellerOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var list []domain.Order // Seller's orders, newest first
		if err := db.Preload("Items").Where("seller_id = ?", userID).
			Order("created_at desc").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	}
}

// GetRiderOrdersHandler lists orders assigned to the rider
func GetRiderOrdersHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var list []domain.Order // Assigned orders, newest first
		if err := db.Preload("Items").Where("rider_id = ?", userID).
			Order("created_at desc").Find(&list).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"orders": list})
	}
}

// sellerOwns checks the transition caller against the order's seller,
// letting admins through
func sellerOwns(c *gin.Context, order *domain.Order) bool {
	userID, _ := c.Get("userID")
	role, _ := c.Get("userRole")
	if r, ok := role.(string); ok && middleware.HasPermission(r, middleware.PermAdmin) {
		return true // Admins act on any order
	}
	return order.SellerID == userID.(uint)
}

// AcceptOrderHandler moves a pending order into processing
func AcceptOrderHandler(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		order, err := svc.Get(id) // Load for the ownership check
		if err != nil {
			errorResponse(c, err)
			return
		}
		if !sellerOwns(c, order) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Order belongs to another seller"})
			return
		}
		// Only paid orders are worth preparing
		if !order.Paid {
			c.JSON(http.StatusConflict, gin.H{"error": "Order is not paid yet"})
			return
		}
		order, err = svc.Apply(id, orders.EventAccept)
		if err != nil {
			errorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order accepted", "order": order})
	}
}

// ShipOrderHandler moves a processing order into transit
func ShipOrderHandler(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		order, err := svc.Get(id) // Load for the ownership check
		if err != nil {
			errorResponse(c, err)
			return
		}
		if !sellerOwns(c, order) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Order belongs to another seller"})
			return
		}
		order, err = svc.Apply(id, orders.EventShip)
		if err != nil {
			errorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order shipped", "order": order})
	}
}

// AssignRiderHandler attaches a rider to the order and tells them
func AssignRiderHandler(svc *orders.Service, db *gorm.DB, pub *notify.Publisher) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		var req struct {
			RiderID uint `json:"rider_id" binding:"required"` // Rider to assign
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		order, err := svc.Get(id) // Load for the ownership check
		if err != nil {
			errorResponse(c, err)
			return
		}
		if !sellerOwns(c, order) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Order belongs to another seller"})
			return
		}
		var rider domain.User // The assignee must actually be a rider
		if err := db.Where("id = ? AND role = ?", req.RiderID, domain.RoleRider).First(&rider).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Rider not found"})
			return
		}
		order, err = svc.AssignRider(id, req.RiderID)
		if err != nil {
			errorResponse(c, err)
			return
		}
		// Fire-and-forget: tell the rider about the job
		pub.Publish(req.RiderID, notify.EventRiderAssigned, map[string]any{"order_no": order.OrderNo})
		c.JSON(http.StatusOK, gin.H{"message": "Rider assigned", "order": order})
	}
}

// DeliverOrderHandler lets the assigned rider complete the delivery
func DeliverOrderHandler(svc *orders.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		userID, _ := c.Get("userID")
		order, err := svc.Get(id) // Load for the assignment check
		if err != nil {
			errorResponse(c, err)
			return
		}
		// Only the assigned rider (or an admin) can mark delivery
		role, _ := c.Get("userRole")
		isAdmin := false
		if r, ok := role.(string); ok {
			isAdmin = middleware.HasPermission(r, middleware.PermAdmin)
		}
		if !isAdmin && (order.RiderID == nil || *order.RiderID != userID.(uint)) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Order is assigned to another rider"})
			return
		}
		order, err = svc.Apply(id, orders.EventDeliver)
		if err != nil {
			errorResponse(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order delivered", "order": order})
	}
}

// CancelOrderHandler cancels a non-terminal order. When the order was
// paid, the refund credit commits atomically with the status change.
func CancelOrderHandler(svc *orders.Service, pub *notify.Publisher, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		order, err := svc.Get(id) // Load for the ownership check
		if err != nil {
			errorResponse(c, err)
			return
		}
		if !sellerOwns(c, order) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Order belongs to another seller"})
			return
		}
		order, err = svc.Apply(id, orders.EventCancel)
		if err != nil {
			errorResponse(c, err)
			return
		}
		// Fire-and-forget: tell the buyer
		pub.Publish(order.BuyerID, notify.EventOrderCancelled, map[string]any{"order_no": order.OrderNo})
		if order.Paid {
			// Refund landed in the buyer's wallet; drop the stale cache
			utils.InvalidateWallet(context.Background(), rdb, order.BuyerID)
			pub.Publish(order.BuyerID, notify.EventRefundIssued, map[string]any{"order_no": order.OrderNo, "amount": order.TotalAmount})
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order cancelled", "order": order})
	}
}

// ReturnOrderHandler lets the buyer return a delivered order; the
// refund credit commits atomically with the status change
func ReturnOrderHandler(svc *orders.Service, pub *notify.Publisher, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := orderID(c)
		if !ok {
			return
		}
		userID, _ := c.Get("userID")
		order, err := svc.Get(id) // Load for the ownership check
		if err != nil {
			errorResponse(c, err)
			return
		}
		role, _ := c.Get("userRole")
		isAdmin := false
		if r, ok := role.(string); ok {
			isAdmin = middleware.HasPermission(r, middleware.PermAdmin)
		}
		if !isAdmin && order.BuyerID != userID.(uint) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Order belongs to another buyer"})
			return
		}
		order, err = svc.Apply(id, orders.EventReturn)
		if err != nil {
			errorResponse(c, err)
			return
		}
		if order.Paid {
			// Refund landed in the buyer's wallet; drop the stale cache
			utils.InvalidateWallet(context.Background(), rdb, order.BuyerID)
			pub.Publish(order.BuyerID, notify.EventRefundIssued, map[string]any{"order_no": order.OrderNo, "amount": order.TotalAmount})
		}
		c.JSON(http.StatusOK, gin.H{"message": "Order returned", "order": order})
	}
}
