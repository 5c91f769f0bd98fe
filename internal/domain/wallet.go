package domain

import "time"

// Wallet Model: one per user, mutated only through the ledger
type Wallet struct {
	ID             uint      `gorm:"primaryKey"`          // Primary key
	UserID         uint      `gorm:"uniqueIndex"`         // Foreign key to User (one wallet per user)
	Balance        float64   `gorm:"not null;default:0"`  // Available balance, never negative
	PendingBalance float64   `gorm:"not null;default:0"`  // Funds held for in-flight withdrawals
	TotalEarnings  float64   `gorm:"not null;default:0"`  // Lifetime credited amount
	Currency       string    `gorm:"size:3;default:NGN"`  // ISO currency code
	UpdatedAt      time.Time // Last mutation time

	// Relation to the audit trail
	Transactions []Transaction `gorm:"foreignKey:WalletID" json:"transactions,omitempty"`
}
