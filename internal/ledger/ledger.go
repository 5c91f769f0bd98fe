package ledger

import (
	"errors"                        // Sentinel errors
	"marketplace/internal/domain"   // Importing domain models

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Sentinel errors returned by ledger operations
var (
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
)

// Entry describes a single balance mutation
type Entry struct {
	UserID      uint    // Owner of the wallet
	Amount      float64 // Always positive; direction comes from credit/debit
	Type        string  // Transaction type; defaults to DEPOSIT (credit) or ORDER_PAYMENT (debit)
	Description string  // Human-readable context
	Reference   string  // Optional external reference
	OrderID     *uint   // Optional linked order
}

// Ledger is the sole authority for mutating wallet balances. Every
// mutation is paired with exactly one Transaction record, written in
// the same atomic unit of work.
type Ledger struct {
	db       *gorm.DB // Injected store handle, no ambient global
	currency string   // Currency code for lazily provisioned wallets
}

// New constructs a Ledger around the given store handle
func New(db *gorm.DB, currency string) *Ledger {
	if currency == "" {
		currency = "NGN" // Default currency
	}
	return &Ledger{db: db, currency: currency}
}

// GetOrCreate returns the user's wallet, provisioning an empty one if absent
func (l *Ledger) GetOrCreate(userID uint) (*domain.Wallet, error) {
	return getOrCreate(l.db, userID, l.currency)
}

// getOrCreate is the transaction-scoped variant shared by Credit
func getOrCreate(tx *gorm.DB, userID uint, currency string) (*domain.Wallet, error) {
	var wallet domain.Wallet // Wallet struct to hold data
	// Query wallet by user ID
	err := tx.Where("user_id = ?", userID).First(&wallet).Error
	if err == nil {
		return &wallet, nil // Wallet already exists
	}
	// Any error other than not-found is a store failure
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	// Create new wallet with zero balance
	wallet = domain.Wallet{UserID: userID, Balance: 0, Currency: currency}
	if err := tx.Create(&wallet).Error; err != nil {
		return nil, err // Return error if creation fails
	}
	return &wallet, nil
}

// Credit increments the wallet balance and appends the audit record.
// The wallet is provisioned if it does not exist yet.
func (l *Ledger) Credit(e Entry) (*domain.Wallet, error) {
	var wallet *domain.Wallet // Result wallet
	// Atomic credit: balance update and transaction record as one unit
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = l.CreditTx(tx, e)
		return err // Non-nil rolls the whole unit back
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// CreditTx runs a credit inside an externally owned transaction. Used
// by the refund coordinator so the credit commits or aborts together
// with the order status change.
func (l *Ledger) CreditTx(tx *gorm.DB, e Entry) (*domain.Wallet, error) {
	// Reject non-positive amounts before touching the store
	if e.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.Type == "" {
		e.Type = domain.TxDeposit // Default credit type
	}
	wallet, err := getOrCreate(tx, e.UserID, l.currency)
	if err != nil {
		return nil, err
	}
	// Increment balance and lifetime earnings atomically
	res := tx.Model(&domain.Wallet{}).Where("id = ?", wallet.ID).
		Updates(map[string]any{
			"balance":        gorm.Expr("balance + ?", e.Amount),
			"total_earnings": gorm.Expr("total_earnings + ?", e.Amount),
		})
	if res.Error != nil {
		return nil, res.Error // Return error to rollback
	}
	// Append the paired audit record
	if err := appendRecord(tx, wallet.ID, e); err != nil {
		return nil, err // Return error to rollback
	}
	wallet.Balance += e.Amount // Reflect the committed value
	wallet.TotalEarnings += e.Amount
	// Log the mutation with context
	logrus.WithFields(logrus.Fields{
		"user_id":   e.UserID,  // Wallet owner
		"wallet_id": wallet.ID, // Wallet ID
		"amount":    e.Amount,  // Credited amount
		"type":      e.Type,    // Transaction type
	}).Info("Wallet credited")
	return wallet, nil
}

// Debit decrements the wallet balance and appends the audit record.
// Fails if the wallet does not exist or the balance would go negative.
func (l *Ledger) Debit(e Entry) (*domain.Wallet, error) {
	var wallet *domain.Wallet // Result wallet
	// Atomic debit: funds check, balance update and record as one unit
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var err error
		wallet, err = l.DebitTx(tx, e)
		return err // Non-nil rolls the whole unit back
	})
	if err != nil {
		return nil, err
	}
	return wallet, nil
}

// DebitTx runs a debit inside an externally owned transaction.
func (l *Ledger) DebitTx(tx *gorm.DB, e Entry) (*domain.Wallet, error) {
	// Reject non-positive amounts before touching the store
	if e.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if e.Type == "" {
		e.Type = domain.TxOrderPayment // Default debit type
	}
	var wallet domain.Wallet // Find the wallet; debit never provisions
	if err := tx.Where("user_id = ?", e.UserID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	// Guarded decrement: the balance condition is evaluated by the
	// store inside the same statement, so two concurrent debits can
	// never both pass the funds check against a stale balance.
	res := tx.Model(&domain.Wallet{}).
		Where("id = ? AND balance >= ?", wallet.ID, e.Amount).
		Update("balance", gorm.Expr("balance - ?", e.Amount))
	if res.Error != nil {
		return nil, res.Error // Return error to rollback
	}
	if res.RowsAffected == 0 {
		return nil, ErrInsufficientFunds // Balance is never clamped
	}
	// Append the paired audit record
	if err := appendRecord(tx, wallet.ID, e); err != nil {
		return nil, err // Return error to rollback
	}
	wallet.Balance -= e.Amount // Reflect the committed value
	// Log the mutation with context
	logrus.WithFields(logrus.Fields{
		"user_id":   e.UserID,  // Wallet owner
		"wallet_id": wallet.ID, // Wallet ID
		"amount":    e.Amount,  // Debited amount
		"type":      e.Type,    // Transaction type
	}).Info("Wallet debited")
	return &wallet, nil
}

// appendRecord inserts the Transaction row paired with a mutation
func appendRecord(tx *gorm.DB, walletID uint, e Entry) error {
	t := domain.Transaction{
		WalletID:    walletID,         // Owning wallet
		OrderID:     e.OrderID,        // Optional linked order
		Amount:      e.Amount,         // Stored positive
		Type:        e.Type,           // Transaction type
		Status:      domain.TxSuccess, // Applied mutations are SUCCESS
		Description: e.Description,    // Context for the audit trail
		Reference:   e.Reference,      // Optional external reference
	}
	return tx.Create(&t).Error
}
