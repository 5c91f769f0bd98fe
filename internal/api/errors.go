package api

import (
	"errors"                      // Sentinel matching
	"marketplace/internal/ledger" // Ledger error taxonomy
	"marketplace/internal/orders" // Order error taxonomy
	"net/http"                    // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
)

// errorResponse translates component errors into the uniform
// {error: string} result shape. No component error crosses the HTTP
// boundary untranslated.
func errorResponse(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Amount must be positive"})
	case errors.Is(err, ledger.ErrInsufficientFunds):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Insufficient funds"})
	case errors.Is(err, ledger.ErrWalletNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
	case errors.Is(err, orders.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
	case errors.Is(err, orders.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Transition not allowed"})
	case errors.Is(err, orders.ErrRefundNotAllowed):
		c.JSON(http.StatusConflict, gin.H{"error": "Order is not refund-eligible"})
	case errors.Is(err, orders.ErrDuplicateRefund):
		c.JSON(http.StatusConflict, gin.H{"error": "Order already refunded"})
	case errors.Is(err, orders.ErrAlreadyPaid):
		c.JSON(http.StatusConflict, gin.H{"error": "Order already paid"})
	case errors.Is(err, orders.ErrNotYours):
		c.JSON(http.StatusForbidden, gin.H{"error": "Order belongs to another user"})
	default:
		// Store or I/O failure: nothing was committed
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Operation failed"})
	}
}
