package middleware

import (
	"marketplace/internal/domain" // Importing domain models
	"net/http"                    // HTTP status codes

	"github.com/gin-gonic/gin" // Gin web framework
	"gorm.io/gorm"             // GORM ORM library
)

// Permission names checked once per operation
const (
	PermCartManage    = "cart:manage"     // Cart, wishlist, checkout
	PermProductManage = "products:manage" // Create/update/archive own products
	PermOrderSeller   = "orders:seller"   // Accept, ship, cancel, assign rider
	PermOrderDeliver  = "orders:deliver"  // Mark assigned orders delivered
	PermOrderReturn   = "orders:return"   // Request return after delivery
	PermAdmin         = "admin:all"       // Admin listings, force refund
)

// rolePermissions is the static role-to-permission table. Handlers
// never compare role strings directly; they gate on a permission.
var rolePermissions = map[string]map[string]bool{
	domain.RoleBuyer: {
		PermCartManage:  true,
		PermOrderReturn: true,
	},
	domain.RoleSeller: {
		PermProductManage: true,
		PermOrderSeller:   true,
	},
	domain.RoleRider: {
		PermOrderDeliver: true,
	},
	domain.RoleAdmin: {
		PermCartManage:    true,
		PermProductManage: true,
		PermOrderSeller:   true,
		PermOrderDeliver:  true,
		PermOrderReturn:   true,
		PermAdmin:         true,
	},
}

// HasPermission reports whether a role carries a permission
func HasPermission(role, perm string) bool {
	return rolePermissions[role][perm]
}

// RequirePermission checks the user's role from the database on each
// request and gates on the permission table
func RequirePermission(db *gorm.DB, perm string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, exists := c.Get("userID") // Get userID from context
		// Check if userID exists in context
		if !exists {
			// If not, abort with unauthorized status
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		var user domain.User // Fetch user from database
		if err := db.First(&user, userID).Error; err != nil {
			// If user not found or any error, abort with forbidden status
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
			return
		}
		// Look the role up in the permission table
		if !HasPermission(user.Role, perm) {
			// If the role lacks the permission, abort with forbidden status
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Permission denied"})
			return
		}
		c.Set("userRole", user.Role) // Store role for handlers that need it
		c.Next()                     // Proceed to the next handler
	}
}
