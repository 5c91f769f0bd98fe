package domain

import "time"

// Product Model
type Product struct {
	ID        uint      `gorm:"primaryKey"`            // Primary key
	SellerID  uint      `gorm:"index;not null"`        // Foreign key to the selling User
	Name      string    `gorm:"size:150;not null"`     // Display name
	Price     float64   `gorm:"not null"`              // Unit price
	Stock     int       `gorm:"not null;default:0"`    // Units available
	Archived  bool      `gorm:"not null;default:false"` // Hidden from the public catalog
	CreatedAt time.Time // Creation time
	UpdatedAt time.Time // Last edit time
}

// CartItem Model: one row per (buyer, product)
type CartItem struct {
	ID        uint    `gorm:"primaryKey"`                       // Primary key
	BuyerID   uint    `gorm:"index:idx_cart_buyer_product,unique"` // Owning buyer
	ProductID uint    `gorm:"index:idx_cart_buyer_product,unique"` // Product in the cart
	Quantity  int     `gorm:"not null"`                         // Units requested
	Product   Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // Preloaded for listing
}

// WishlistItem Model: one row per (buyer, product)
type WishlistItem struct {
	ID        uint    `gorm:"primaryKey"`                       // Primary key
	BuyerID   uint    `gorm:"index:idx_wish_buyer_product,unique"` // Owning buyer
	ProductID uint    `gorm:"index:idx_wish_buyer_product,unique"` // Wished product
	Product   Product `gorm:"foreignKey:ProductID" json:"product,omitempty"` // Preloaded for listing
}
