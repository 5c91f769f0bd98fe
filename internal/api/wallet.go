package api

import (
	"context"                     // Context for Redis operations
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/ledger" // Wallet ledger component
	"marketplace/internal/utils"  // Utility functions
	"net/http"                    // HTTP status codes
	"strconv"                     // String conversion
	"time"                        // Time durations

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"gorm.io/gorm"                 // GORM ORM library
)

// DepositRequest represents a deposit request
type DepositRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"` // Deposit amount
}

// WithdrawRequest represents a withdrawal request
type WithdrawRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"` // Withdrawal amount
}

// DepositHandler credits the authenticated user's wallet
func DepositHandler(led *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req DepositRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		// Credit through the ledger: balance update and audit record as one unit
		wallet, err := led.Credit(ledger.Entry{
			UserID:      userID.(uint),
			Amount:      req.Amount,
			Type:        domain.TxDeposit,
			Description: "Wallet top-up",
		})
		if err != nil {
			errorResponse(c, err) // Translate to the result shape
			return
		}
		// Invalidate wallet and transaction history cache
		utils.InvalidateWallet(context.Background(), rdb, userID.(uint))
		// Return success response
		c.JSON(http.StatusOK, gin.H{"message": "Deposit successful", "wallet": wallet})
	}
}

// WithdrawHandler debits the authenticated user's wallet for a payout
func WithdrawHandler(led *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var req WithdrawRequest // Bind JSON request to struct
		// Validate request
		if err := c.ShouldBindJSON(&req); err != nil || req.Amount <= 0 {
			// If invalid, return bad request
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		// Debit through the ledger; insufficient funds abort everything
		wallet, err := led.Debit(ledger.Entry{
			UserID:      userID.(uint),
			Amount:      req.Amount,
			Type:        domain.TxWithdrawal,
			Description: "Wallet withdrawal",
		})
		if err != nil {
			errorResponse(c, err) // Translate to the result shape
			return
		}
		// Invalidate wallet and transaction history cache
		utils.InvalidateWallet(context.Background(), rdb, userID.(uint))
		// Return success response
		c.JSON(http.StatusOK, gin.H{"message": "Withdrawal successful", "wallet": wallet})
	}
}

// GetWalletHandler returns wallet info for the authenticated user,
// provisioning an empty wallet on first access
func GetWalletHandler(led *ledger.Ledger, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		ctx := context.Background()                               // Context for Redis operations
		cacheKey := utils.WalletKey(userID.(uint))                // Cache key for wallet
		var wallet domain.Wallet                                  // Wallet struct to hold data
		found, err := utils.GetCache(ctx, rdb, cacheKey, &wallet) // Try to get from cache
		// If found in cache, return it
		if err == nil && found {
			// Return cached wallet
			c.JSON(http.StatusOK, gin.H{"wallet": wallet, "cached": true})
			return
		}
		// If not in cache, fetch (or lazily create) via the ledger
		w, err := led.GetOrCreate(userID.(uint))
		if err != nil {
			errorResponse(c, err)
			return
		}
		_ = utils.SetCache(ctx, rdb, cacheKey, w, 60*time.Second) // Cache the wallet for 60 seconds
		c.JSON(http.StatusOK, gin.H{"wallet": w, "cached": false}) // Return wallet info
	}
}

// GetTransactionHistoryHandler returns the paginated audit trail for
// the authenticated user's wallet
func GetTransactionHistoryHandler(db *gorm.DB, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get userID from context
		userID, exists := c.Get("userID")
		// Check if userID exists in context
		if !exists {
			// If not, return unauthorized
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var wallet domain.Wallet // Get user's wallet
		// Query wallet by user ID
		if err := db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
			// Return not found if wallet doesn't exist
			c.JSON(http.StatusNotFound, gin.H{"error": "Wallet not found"})
			return
		}
		page := 1      // Default page
		pageSize := 20 // Default page size
		// If page exists in query
		if p := c.Query("page"); p != "" {
			// Convert page to integer
			if v, err := strconv.Atoi(p); err == nil && v > 0 {
				page = v // Set page if valid
			}
		}
		// If page_size exists in query
		if ps := c.Query("page_size"); ps != "" {
			// Convert page_size to integer
			if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
				pageSize = v // Set page size if valid
			}
		}
		offset := (page - 1) * pageSize // Calculate offset
		// Redis cache key
		cacheKey := utils.TxHistoryPrefix(userID.(uint)) + ":page:" + strconv.Itoa(page) + ":size:" + strconv.Itoa(pageSize)
		ctx := context.Background() // Context for Redis operations
		var cached struct {
			Transactions []domain.Transaction `json:"transactions"` // List of transactions
			Page         int                  `json:"page"`         // Current page
			PageSize     int                  `json:"page_size"`    // Page size
			Total        int64                `json:"total"`        // Total transactions
			TotalPages   int                  `json:"total_pages"`  // Total pages
		}
		// Try to get from cache
		found, err := utils.GetCache(ctx, rdb, cacheKey, &cached)
		// If found in cache, return it
		if err == nil && found {
			c.JSON(http.StatusOK, gin.H{
				"transactions": cached.Transactions, // Cached transactions
				"page":         cached.Page,         // Current page
				"page_size":    cached.PageSize,     // Page size
				"total":        cached.Total,        // Total transactions
				"total_pages":  cached.TotalPages,   // Total pages
				"cached":       true,
			})
			return
		}
		var total int64 // Total count of transactions
		// Count total transactions for pagination
		if err := db.Model(&domain.Transaction{}).
			Where("wallet_id = ?", wallet.ID).
			Count(&total).Error; err != nil {
			// If counting fails, return error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count transactions"})
			return
		}
		var transactions []domain.Transaction // Slice to hold transactions
		// Fetch paginated transactions
		if err := db.Where("wallet_id = ?", wallet.ID).
			Order("created_at desc").
			Offset(offset).
			Limit(pageSize).
			Find(&transactions).Error; err != nil {
			// If fetching fails, return error
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch transactions"})
			return
		}
		// Calculate total pages
		totalPages := (int(total) + pageSize - 1) / pageSize
		resp := gin.H{
			"transactions": transactions, // List of transactions
			"page":         page,         // Current page
			"page_size":    pageSize,     // Page size
			"total":        total,        // Total transactions
			"total_pages":  totalPages,   // Total pages
			"cached":       false,        // Not from cache
		}
		// Cache the result for 60 seconds
		_ = utils.SetCache(ctx, rdb, cacheKey, resp, 60*time.Second)
		c.JSON(http.StatusOK, resp) // Return transaction history
	}
}
