package domain

// Transaction types
const (
	TxDeposit      = "DEPOSIT"       // Funds added from outside the platform
	TxRefund       = "REFUND"        // Order amount returned to buyer
	TxOrderPayment = "ORDER_PAYMENT" // Order paid from wallet balance
	TxWithdrawal   = "WITHDRAWAL"    // Funds moved out of the platform
)

// Transaction statuses
const (
	TxPending = "PENDING" // Awaiting external confirmation
	TxSuccess = "SUCCESS" // Applied to the balance
	TxFailed  = "FAILED"  // Rejected, balance untouched
)

// Transaction Model: append-only audit record, one per balance mutation
type Transaction struct {
	ID          uint    `gorm:"primaryKey"`           // Primary key
	WalletID    uint    `gorm:"index;not null"`       // Foreign key to the owning Wallet
	OrderID     *uint   `gorm:"index"`                // Optional link to an Order (refunds, order payments)
	Amount      float64 `gorm:"not null"`             // Stored positive; direction comes from Type
	Type        string  `gorm:"size:20;not null"`     // DEPOSIT, REFUND, ORDER_PAYMENT, WITHDRAWAL
	Status      string  `gorm:"size:10;not null"`     // PENDING, SUCCESS, FAILED
	Description string  `gorm:"size:255"`             // Human-readable context
	Reference   string  `gorm:"size:100"`             // Optional external reference (gateway id, order no)
	CreatedAt   int64   `gorm:"autoCreateTime:milli"` // Timestamp of creation in milliseconds
}
