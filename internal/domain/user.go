package domain

// Role names
const (
	RoleBuyer  = "buyer"  // Default role for new accounts
	RoleSeller = "seller" // Manages products and own orders
	RoleRider  = "rider"  // Delivers assigned orders
	RoleAdmin  = "admin"  // Full access
)

// User Model
type User struct {
	ID       uint   `gorm:"primaryKey"`                                     // Primary key
	Username string `gorm:"unique;not null"`                                // Unique username
	Password string `gorm:"not null" json:"-"`                              // Hashed password, never serialized
	Role     string `gorm:"default:buyer"`                                  // Role: buyer, seller, rider or admin
	Wallet   Wallet `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"` // One-to-one relationship with Wallet
}
