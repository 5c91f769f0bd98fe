package domain

import "time"

// Order statuses
const (
	OrderPending    = "PENDING"    // Created at checkout, possibly unpaid
	OrderProcessing = "PROCESSING" // Seller accepted
	OrderShipped    = "SHIPPED"    // In transit
	OrderDelivered  = "DELIVERED"  // Terminal, happy path
	OrderCancelled  = "CANCELLED"  // Terminal, refund-eligible when paid
	OrderReturned   = "RETURNED"   // Terminal, refund-eligible
)

// Order Model: retained forever for audit, never deleted
type Order struct {
	ID          uint      `gorm:"primaryKey"`         // Primary key
	OrderNo     string    `gorm:"unique;size:50"`     // External reference, e.g. INV-1768239100-1
	BuyerID     uint      `gorm:"index;not null"`     // Foreign key to the buying User
	SellerID    uint      `gorm:"index;not null"`     // Foreign key to the selling User
	RiderID     *uint     `gorm:"index"`              // Assigned rider, nil until dispatch
	TotalAmount float64   `gorm:"not null"`           // Immutable after creation
	Status      string    `gorm:"size:12;not null"`   // See status constants above
	Paid        bool      `gorm:"not null;default:false"` // Set once by payment confirmation
	Refunded    bool      `gorm:"not null;default:false"` // Set once by the refund coordinator
	CreatedAt   time.Time // Creation time
	UpdatedAt   time.Time // Last transition time

	// Relations
	Items        []OrderItem   `gorm:"foreignKey:OrderID" json:"items,omitempty"`        // Line items
	Transactions []Transaction `gorm:"foreignKey:OrderID" json:"transactions,omitempty"` // Referencing ledger records
}

// OrderItem Model: snapshot of a product at checkout time
type OrderItem struct {
	ID        uint    `gorm:"primaryKey"` // Primary key
	OrderID   uint    `gorm:"index"`      // Foreign key to Order
	ProductID uint    `gorm:"index"`      // Foreign key to Product
	Name      string  `gorm:"size:150"`   // Product name at time of purchase
	UnitPrice float64 // Price at time of purchase
	Quantity  int     `gorm:"not null"`   // Units ordered
}
