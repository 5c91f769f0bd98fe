package orders

import (
	"errors"                      // Sentinel errors
	"fmt"                         // Formatting descriptions
	"marketplace/internal/domain" // Importing domain models
	"marketplace/internal/ledger" // Wallet ledger component

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/gorm"               // GORM ORM library
)

// Sentinel errors returned by order operations
var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("transition not allowed from current status")
	ErrRefundNotAllowed  = errors.New("order status is not refund-eligible")
	ErrDuplicateRefund   = errors.New("order already refunded")
	ErrAlreadyPaid       = errors.New("order already paid")
	ErrNotYours          = errors.New("order belongs to another user")
)

// Event names applied to the order state machine
type Event string

const (
	EventAccept  Event = "accept"  // Seller confirms the order
	EventShip    Event = "ship"    // Seller hands off to delivery
	EventDeliver Event = "deliver" // Rider completes delivery
	EventCancel  Event = "cancel"  // Seller or admin cancels
	EventReturn  Event = "return"  // Buyer or admin returns after delivery
)

// transitions is the full edge set of the state machine. An event
// applied to a status with no entry here is rejected, never silently
// re-applied.
var transitions = map[string]map[Event]string{
	domain.OrderPending: {
		EventAccept: domain.OrderProcessing,
		EventCancel: domain.OrderCancelled,
	},
	domain.OrderProcessing: {
		EventShip:   domain.OrderShipped,
		EventCancel: domain.OrderCancelled,
	},
	domain.OrderShipped: {
		EventDeliver: domain.OrderDelivered,
		EventCancel:  domain.OrderCancelled,
	},
	domain.OrderDelivered: {
		EventReturn: domain.OrderReturned,
	},
	// CANCELLED and RETURNED are terminal: no outgoing edges
}

// Service owns order lifecycle transitions and the refund coordinator.
// Refund-triggering transitions and their ledger credit commit as one
// atomic unit of work.
type Service struct {
	db  *gorm.DB       // Injected store handle
	led *ledger.Ledger // Ledger for refunds and order payments
}

// NewService constructs an order service around the given handles
func NewService(db *gorm.DB, led *ledger.Ledger) *Service {
	return &Service{db: db, led: led}
}

// Get loads a single order with its line items
func (s *Service) Get(orderID uint) (*domain.Order, error) {
	var order domain.Order
	if err := s.db.Preload("Items").First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// Apply runs one state machine event against an order. When the new
// status is refund-eligible and the order was paid, the refund credit
// happens inside the same transaction as the status change.
func (s *Service) Apply(orderID uint, ev Event) (*domain.Order, error) {
	var order domain.Order // Order being transitioned
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// Load the order inside the unit of work
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		// Look up the edge; undefined edges are rejected
		next, ok := transitions[order.Status][ev]
		if !ok {
			return ErrInvalidTransition
		}
		// Guarded status update: the WHERE clause re-checks the status
		// at the store, so two concurrent cancels cannot both take the
		// edge; the loser sees zero rows and fails the transition.
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND status = ?", order.ID, order.Status).
			Update("status", next)
		if res.Error != nil {
			return res.Error // Return error to rollback
		}
		if res.RowsAffected == 0 {
			return ErrInvalidTransition // Lost a concurrent transition race
		}
		order.Status = next // Reflect the committed value
		// Refund-eligible terminal states credit the buyer back, but
		// only when money actually moved in
		if (next == domain.OrderCancelled || next == domain.OrderReturned) && order.Paid {
			if err := s.refundTx(tx, &order); err != nil {
				return err // Abort the transition together with the refund
			}
		}
		return nil // Commit transition (and refund, if any)
	})
	if err != nil {
		return nil, err
	}
	// Log the transition with context
	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,     // Order ID
		"order_no": order.OrderNo, // External reference
		"event":    string(ev),   // Applied event
		"status":   order.Status, // Resulting status
	}).Info("Order transition")
	return &order, nil
}

// Refund opens its own unit of work and runs the refund coordinator
// against an order that already reached a refund-eligible status.
// Used by the admin force-refund path.
func (s *Service) Refund(orderID uint) (*domain.Order, error) {
	var order domain.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		return s.refundTx(tx, &order)
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// refundTx is the refund coordinator. It runs inside the caller's
// transaction: all checks and the ledger credit observe one consistent
// snapshot, and nothing is persisted unless every step succeeds.
func (s *Service) refundTx(tx *gorm.DB, order *domain.Order) error {
	// Only refund-eligible terminal states qualify
	if order.Status != domain.OrderCancelled && order.Status != domain.OrderReturned {
		return ErrRefundNotAllowed
	}
	// Idempotency guard: flipping the refunded flag with the old value
	// in the WHERE clause takes a write lock on the order row, so two
	// concurrent refunds of the same order serialize at the store and
	// the loser sees zero rows.
	res := tx.Model(&domain.Order{}).
		Where("id = ? AND refunded = ?", order.ID, false).
		Update("refunded", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDuplicateRefund
	}
	order.Refunded = true
	// The buyer must already have a wallet; refunds never provision one
	var wallet domain.Wallet
	if err := tx.Where("user_id = ?", order.BuyerID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrWalletNotFound
		}
		return err
	}
	// Credit the full order amount with the paired REFUND record
	_, err := s.led.CreditTx(tx, ledger.Entry{
		UserID:      order.BuyerID,
		Amount:      order.TotalAmount,
		Type:        domain.TxRefund,
		Description: fmt.Sprintf("Refund for order %s", order.OrderNo),
		Reference:   order.OrderNo,
		OrderID:     &order.ID,
	})
	if err != nil {
		return err // Abort: no partial ledger mutation
	}
	// Log the refund with context
	logrus.WithFields(logrus.Fields{
		"order_id": order.ID,          // Order ID
		"buyer_id": order.BuyerID,     // Credited buyer
		"amount":   order.TotalAmount, // Refunded amount
	}).Info("Order refunded")
	return nil
}

// PayFromWallet settles a pending order from the buyer's wallet
// balance. Debit and paid flag commit as one unit.
func (s *Service) PayFromWallet(orderID, buyerID uint) (*domain.Order, error) {
	var order domain.Order
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&order, orderID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.BuyerID != buyerID {
			return ErrNotYours // Only the owning buyer can pay
		}
		if order.Paid {
			return ErrAlreadyPaid // Never charge twice
		}
		if order.Status != domain.OrderPending {
			return ErrInvalidTransition // Terminal orders cannot be paid
		}
		// Debit the buyer with the paired ORDER_PAYMENT record
		_, err := s.led.DebitTx(tx, ledger.Entry{
			UserID:      buyerID,
			Amount:      order.TotalAmount,
			Type:        domain.TxOrderPayment,
			Description: fmt.Sprintf("Payment for order %s", order.OrderNo),
			Reference:   order.OrderNo,
			OrderID:     &order.ID,
		})
		if err != nil {
			return err // Insufficient funds aborts everything
		}
		// Guard against a concurrent payment of the same order
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND paid = ?", order.ID, false).
			Update("paid", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyPaid // Lost a concurrent payment race
		}
		order.Paid = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid records an external payment confirmation for the order with
// the given external reference. Replays are no-ops, so the webhook may
// deliver the same confirmation more than once. A confirmation that
// arrives after the order already reached a refund-eligible terminal
// state records the capture and immediately refunds it, so late
// settlements never strand the buyer's money on a dead order.
func (s *Service) MarkPaid(orderNo string) (*domain.Order, bool, error) {
	var order domain.Order
	changed := false // Whether this call flipped the paid flag
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrOrderNotFound
			}
			return err
		}
		if order.Paid {
			return nil // Replay: already confirmed
		}
		res := tx.Model(&domain.Order{}).
			Where("id = ? AND paid = ?", order.ID, false).
			Update("paid", true)
		if res.Error != nil {
			return res.Error
		}
		changed = res.RowsAffected > 0
		order.Paid = true
		// Settlement landed after a cancel or return: the money moved
		// in, so push it straight back out in the same unit of work
		if changed && (order.Status == domain.OrderCancelled || order.Status == domain.OrderReturned) {
			if err := s.refundTx(tx, &order); err != nil {
				return err // Abort: confirmation and refund are one unit
			}
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &order, changed, nil
}

// AssignRider attaches a rider to an order that is being prepared or
// is already in transit.
func (s *Service) AssignRider(orderID, riderID uint) (*domain.Order, error) {
	var order domain.Order
	if err := s.db.First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	// Riders are only meaningful between acceptance and delivery
	if order.Status != domain.OrderProcessing && order.Status != domain.OrderShipped {
		return nil, ErrInvalidTransition
	}
	if err := s.db.Model(&order).Update("rider_id", riderID).Error; err != nil {
		return nil, err
	}
	order.RiderID = &riderID
	return &order, nil
}
