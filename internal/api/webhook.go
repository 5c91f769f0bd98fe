package api

import (
	"context"                       // Context for Redis operations
	"errors"                        // Sentinel matching
	"marketplace/internal/domain"   // Importing domain models
	"marketplace/internal/notify"   // Fire-and-forget events
	"marketplace/internal/orders"   // Order service
	"marketplace/internal/payments" // Gateway notification mapping
	"marketplace/internal/utils"    // Utility functions
	"net/http"                      // HTTP status codes

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
	"gorm.io/gorm"                 // GORM ORM library
)

// PaymentWebhookHandler receives gateway notifications and applies
// them to the order. Replays are no-ops; the gateway may deliver the
// same notification more than once.
func PaymentWebhookHandler(db *gorm.DB, svc *orders.Service, pub *notify.Publisher, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		var n payments.Notification // Bind the gateway body
		if err := c.ShouldBindJSON(&n); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		outcome := n.Outcome() // Map gateway status pair to internal outcome
		// Log webhook received
		logrus.WithFields(logrus.Fields{
			"order_no":           n.OrderID,           // Our external reference
			"transaction_status": n.TransactionStatus, // Gateway status
			"fraud_status":       n.FraudStatus,       // Fraud screening result
			"outcome":            outcome,             // Mapped outcome
		}).Info("Payment webhook received")
		switch outcome {
		case payments.OutcomePaid:
			order, changed, err := svc.MarkPaid(n.OrderID)
			if err != nil {
				if errors.Is(err, orders.ErrOrderNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
				return
			}
			// Only the first confirmation emits events
			if changed {
				if order.Refunded {
					// Settlement landed on a dead order and the money
					// already bounced back to the buyer's wallet
					utils.InvalidateWallet(context.Background(), rdb, order.BuyerID)
					pub.Publish(order.BuyerID, notify.EventRefundIssued, map[string]any{"order_no": order.OrderNo, "amount": order.TotalAmount})
				} else {
					pub.Publish(order.BuyerID, notify.EventPaymentSuccess, map[string]any{"order_no": order.OrderNo})
					pub.Publish(order.SellerID, notify.EventPaymentSuccess, map[string]any{"order_no": order.OrderNo})
				}
			}
		case payments.OutcomeCancelled:
			// Look the order up by external reference
			var order domain.Order
			if err := db.Where("order_no = ?", n.OrderID).First(&order).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
					return
				}
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
				return
			}
			// Cancel if still cancellable; an already-terminal order is
			// a replay and stays untouched
			cancelled, err := svc.Apply(order.ID, orders.EventCancel)
			if err != nil && !errors.Is(err, orders.ErrInvalidTransition) {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
				return
			}
			if err == nil {
				pub.Publish(cancelled.BuyerID, notify.EventOrderCancelled, map[string]any{"order_no": cancelled.OrderNo})
				if cancelled.Paid {
					// Refund landed in the buyer's wallet; drop the stale cache
					utils.InvalidateWallet(context.Background(), rdb, cancelled.BuyerID)
					pub.Publish(cancelled.BuyerID, notify.EventRefundIssued, map[string]any{"order_no": cancelled.OrderNo, "amount": cancelled.TotalAmount})
				}
			}
		case payments.OutcomePending:
			// Still in flight: nothing to change
		}
		// Acknowledge so the gateway stops retrying
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
