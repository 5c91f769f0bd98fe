package orders

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"marketplace/internal/domain"
	"marketplace/internal/ledger"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB opens an isolated in-memory database per test
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Wallet{}, &domain.Transaction{},
		&domain.Order{}, &domain.OrderItem{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

// newFixture wires a service plus a buyer with a wallet
func newFixture(t *testing.T) (*gorm.DB, *Service, *ledger.Ledger) {
	t.Helper()
	db := testDB(t)
	led := ledger.New(db, "NGN")
	if _, err := led.GetOrCreate(1); err != nil {
		t.Fatalf("provision buyer wallet: %v", err)
	}
	return db, NewService(db, led), led
}

// seedOrder inserts an order owned by buyer 1 / seller 2
func seedOrder(t *testing.T, db *gorm.DB, status string, paid bool, total float64) *domain.Order {
	t.Helper()
	order := &domain.Order{
		OrderNo:     fmt.Sprintf("INV-TEST-%s", status),
		BuyerID:     1,
		SellerID:    2,
		TotalAmount: total,
		Status:      status,
		Paid:        paid,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
	return order
}

func refundCount(t *testing.T, db *gorm.DB, orderID uint) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Transaction{}).
		Where("order_id = ? AND type = ?", orderID, domain.TxRefund).
		Count(&n).Error; err != nil {
		t.Fatalf("count refunds: %v", err)
	}
	return n
}

func balance(t *testing.T, db *gorm.DB, userID uint) float64 {
	t.Helper()
	var w domain.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	return w.Balance
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		from    string
		event   Event
		want    string
		wantErr error
	}{
		{"accept pending", domain.OrderPending, EventAccept, domain.OrderProcessing, nil},
		{"ship processing", domain.OrderProcessing, EventShip, domain.OrderShipped, nil},
		{"deliver shipped", domain.OrderShipped, EventDeliver, domain.OrderDelivered, nil},
		{"cancel pending", domain.OrderPending, EventCancel, domain.OrderCancelled, nil},
		{"cancel processing", domain.OrderProcessing, EventCancel, domain.OrderCancelled, nil},
		{"cancel shipped", domain.OrderShipped, EventCancel, domain.OrderCancelled, nil},
		{"return delivered", domain.OrderDelivered, EventReturn, domain.OrderReturned, nil},
		{"ship pending", domain.OrderPending, EventShip, "", ErrInvalidTransition},
		{"accept shipped", domain.OrderShipped, EventAccept, "", ErrInvalidTransition},
		{"cancel delivered", domain.OrderDelivered, EventCancel, "", ErrInvalidTransition},
		{"cancel cancelled", domain.OrderCancelled, EventCancel, "", ErrInvalidTransition},
		{"return returned", domain.OrderReturned, EventReturn, "", ErrInvalidTransition},
		{"return pending", domain.OrderPending, EventReturn, "", ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, svc, _ := newFixture(t)
			order := seedOrder(t, db, tc.from, false, 100)

			got, err := svc.Apply(order.ID, tc.event)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				// Rejected events must leave the status untouched
				var stored domain.Order
				if err := db.First(&stored, order.ID).Error; err != nil {
					t.Fatalf("reload order: %v", err)
				}
				if stored.Status != tc.from {
					t.Errorf("status changed on rejected event: %s", stored.Status)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if got.Status != tc.want {
				t.Errorf("status: want %s, got %s", tc.want, got.Status)
			}
		})
	}
}

func TestApplyUnknownOrder(t *testing.T) {
	_, svc, _ := newFixture(t)
	if _, err := svc.Apply(999, EventCancel); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}
}

func TestCancelPaidOrderRefundsBuyer(t *testing.T) {
	db, svc, led := newFixture(t)
	// Wallet starts at 5000 from a top-up
	if _, err := led.Credit(ledger.Entry{UserID: 1, Amount: 5000, Description: "topup"}); err != nil {
		t.Fatalf("topup: %v", err)
	}
	order := seedOrder(t, db, domain.OrderProcessing, true, 5000)

	got, err := svc.Apply(order.ID, EventCancel)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.OrderCancelled {
		t.Errorf("status: want CANCELLED, got %s", got.Status)
	}
	if b := balance(t, db, 1); b != 10000 {
		t.Errorf("balance after refund: want 10000, got %v", b)
	}
	if n := refundCount(t, db, order.ID); n != 1 {
		t.Errorf("refund records: want 1, got %d", n)
	}
	var refund domain.Transaction
	if err := db.Where("order_id = ? AND type = ?", order.ID, domain.TxRefund).First(&refund).Error; err != nil {
		t.Fatalf("load refund record: %v", err)
	}
	if refund.Amount != 5000 {
		t.Errorf("refund amount: want 5000, got %v", refund.Amount)
	}
	if refund.Reference != order.OrderNo {
		t.Errorf("refund reference: want %s, got %s", order.OrderNo, refund.Reference)
	}
}

func TestCancelUnpaidOrderSkipsRefund(t *testing.T) {
	db, svc, _ := newFixture(t)
	order := seedOrder(t, db, domain.OrderPending, false, 3000)

	got, err := svc.Apply(order.ID, EventCancel)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.OrderCancelled {
		t.Errorf("status: want CANCELLED, got %s", got.Status)
	}
	if b := balance(t, db, 1); b != 0 {
		t.Errorf("balance: want 0, got %v", b)
	}
	if n := refundCount(t, db, order.ID); n != 0 {
		t.Errorf("refund records: want 0, got %d", n)
	}
}

func TestReturnDeliveredOrderRefundsBuyer(t *testing.T) {
	db, svc, _ := newFixture(t)
	order := seedOrder(t, db, domain.OrderDelivered, true, 1500)

	if _, err := svc.Apply(order.ID, EventReturn); err != nil {
		t.Fatalf("return: %v", err)
	}
	if b := balance(t, db, 1); b != 1500 {
		t.Errorf("balance after return refund: want 1500, got %v", b)
	}
}

func TestRefundTwiceFails(t *testing.T) {
	db, svc, _ := newFixture(t)
	order := seedOrder(t, db, domain.OrderProcessing, true, 2000)

	if _, err := svc.Apply(order.ID, EventCancel); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	// Second refund attempt against the now-cancelled order
	if _, err := svc.Refund(order.ID); !errors.Is(err, ErrDuplicateRefund) {
		t.Fatalf("want ErrDuplicateRefund, got %v", err)
	}
	if b := balance(t, db, 1); b != 2000 {
		t.Errorf("balance after duplicate attempt: want 2000, got %v", b)
	}
	if n := refundCount(t, db, order.ID); n != 1 {
		t.Errorf("refund records: want 1, got %d", n)
	}
}

func TestRefundRequiresEligibleStatus(t *testing.T) {
	db, svc, _ := newFixture(t)
	order := seedOrder(t, db, domain.OrderPending, true, 2000)

	if _, err := svc.Refund(order.ID); !errors.Is(err, ErrRefundNotAllowed) {
		t.Fatalf("want ErrRefundNotAllowed, got %v", err)
	}
	if n := refundCount(t, db, order.ID); n != 0 {
		t.Errorf("refund records: want 0, got %d", n)
	}
}

func TestRefundAbortsWithTransitionWhenWalletMissing(t *testing.T) {
	db := testDB(t)
	led := ledger.New(db, "NGN")
	svc := NewService(db, led)
	// Paid order whose buyer never got a wallet
	order := seedOrder(t, db, domain.OrderProcessing, true, 900)

	_, err := svc.Apply(order.ID, EventCancel)
	if !errors.Is(err, ledger.ErrWalletNotFound) {
		t.Fatalf("want ErrWalletNotFound, got %v", err)
	}
	// The failed refund must roll the status change back too
	var stored domain.Order
	if err := db.First(&stored, order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if stored.Status != domain.OrderProcessing {
		t.Errorf("status after aborted cancel: want PROCESSING, got %s", stored.Status)
	}
	if stored.Refunded {
		t.Error("refunded flag must roll back with the aborted refund")
	}
}

func TestRefundRespectsRefundedFlag(t *testing.T) {
	// The refunded flag on the order row is the serialization point
	// for concurrent refunds; once it is set, no second credit can
	// happen even before any REFUND record is visible to the reader
	db, svc, _ := newFixture(t)
	order := &domain.Order{
		OrderNo:     "INV-TEST-FLAGGED",
		BuyerID:     1,
		SellerID:    2,
		TotalAmount: 2500,
		Status:      domain.OrderCancelled,
		Paid:        true,
		Refunded:    true,
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}

	if _, err := svc.Refund(order.ID); !errors.Is(err, ErrDuplicateRefund) {
		t.Fatalf("want ErrDuplicateRefund, got %v", err)
	}
	if b := balance(t, db, 1); b != 0 {
		t.Errorf("balance: want 0, got %v", b)
	}
	if n := refundCount(t, db, order.ID); n != 0 {
		t.Errorf("refund records: want 0, got %d", n)
	}
}

func TestCancelSetsRefundedFlag(t *testing.T) {
	db, svc, _ := newFixture(t)
	order := seedOrder(t, db, domain.OrderShipped, true, 1200)

	got, err := svc.Apply(order.ID, EventCancel)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !got.Refunded {
		t.Error("returned order: refunded flag not set")
	}
	var stored domain.Order
	if err := db.First(&stored, order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if !stored.Refunded {
		t.Error("stored order: refunded flag not set")
	}
}

func TestMarkPaidAfterCancelRefundsBuyer(t *testing.T) {
	// A settlement delivered after the order was cancelled records the
	// capture and bounces the money straight back to the buyer
	db, svc, _ := newFixture(t)
	order := seedOrder(t, db, domain.OrderCancelled, false, 4000)

	got, changed, err := svc.MarkPaid(order.OrderNo)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !changed {
		t.Error("first confirmation must report a change")
	}
	if !got.Paid || !got.Refunded {
		t.Errorf("want paid and refunded, got paid=%v refunded=%v", got.Paid, got.Refunded)
	}
	if b := balance(t, db, 1); b != 4000 {
		t.Errorf("balance after late settlement: want 4000, got %v", b)
	}
	if n := refundCount(t, db, order.ID); n != 1 {
		t.Errorf("refund records: want 1, got %d", n)
	}

	// Gateway replay of the same confirmation changes nothing
	_, changed, err = svc.MarkPaid(order.OrderNo)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if changed {
		t.Error("replay must not report a change")
	}
	if n := refundCount(t, db, order.ID); n != 1 {
		t.Errorf("refund records after replay: want 1, got %d", n)
	}
	if b := balance(t, db, 1); b != 4000 {
		t.Errorf("balance after replay: want 4000, got %v", b)
	}
}

func TestPayFromWallet(t *testing.T) {
	db, svc, led := newFixture(t)
	if _, err := led.Credit(ledger.Entry{UserID: 1, Amount: 5000}); err != nil {
		t.Fatalf("topup: %v", err)
	}
	order := seedOrder(t, db, domain.OrderPending, false, 3000)

	got, err := svc.PayFromWallet(order.ID, 1)
	if err != nil {
		t.Fatalf("pay: %v", err)
	}
	if !got.Paid {
		t.Error("order not marked paid")
	}
	if b := balance(t, db, 1); b != 2000 {
		t.Errorf("balance after payment: want 2000, got %v", b)
	}
	var tx domain.Transaction
	if err := db.Where("order_id = ? AND type = ?", order.ID, domain.TxOrderPayment).First(&tx).Error; err != nil {
		t.Fatalf("load payment record: %v", err)
	}
	if tx.Amount != 3000 {
		t.Errorf("payment amount: want 3000, got %v", tx.Amount)
	}

	// Paying again must be rejected without another debit
	if _, err := svc.PayFromWallet(order.ID, 1); !errors.Is(err, ErrAlreadyPaid) {
		t.Fatalf("want ErrAlreadyPaid, got %v", err)
	}
	if b := balance(t, db, 1); b != 2000 {
		t.Errorf("balance after rejected repeat payment: want 2000, got %v", b)
	}
}

func TestPayFromWalletInsufficientFunds(t *testing.T) {
	db, svc, led := newFixture(t)
	if _, err := led.Credit(ledger.Entry{UserID: 1, Amount: 100}); err != nil {
		t.Fatalf("topup: %v", err)
	}
	order := seedOrder(t, db, domain.OrderPending, false, 3000)

	if _, err := svc.PayFromWallet(order.ID, 1); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	// Nothing committed: order unpaid, balance intact, no record
	var stored domain.Order
	if err := db.First(&stored, order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if stored.Paid {
		t.Error("order marked paid despite failed debit")
	}
	if b := balance(t, db, 1); b != 100 {
		t.Errorf("balance: want 100, got %v", b)
	}
}

func TestPayFromWalletWrongBuyer(t *testing.T) {
	db, svc, _ := newFixture(t)
	order := seedOrder(t, db, domain.OrderPending, false, 100)

	if _, err := svc.PayFromWallet(order.ID, 99); !errors.Is(err, ErrNotYours) {
		t.Fatalf("want ErrNotYours, got %v", err)
	}
}

func TestMarkPaidIsIdempotent(t *testing.T) {
	db, svc, _ := newFixture(t)
	order := seedOrder(t, db, domain.OrderPending, false, 100)

	_, changed, err := svc.MarkPaid(order.OrderNo)
	if err != nil {
		t.Fatalf("mark paid: %v", err)
	}
	if !changed {
		t.Error("first confirmation should report a change")
	}
	_, changed, err = svc.MarkPaid(order.OrderNo)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if changed {
		t.Error("replay should be a no-op")
	}

	if _, _, err := svc.MarkPaid("INV-UNKNOWN"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("want ErrOrderNotFound, got %v", err)
	}
}

func TestAssignRider(t *testing.T) {
	db, svc, _ := newFixture(t)
	order := seedOrder(t, db, domain.OrderShipped, true, 100)

	got, err := svc.AssignRider(order.ID, 5)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if got.RiderID == nil || *got.RiderID != 5 {
		t.Errorf("rider id: want 5, got %v", got.RiderID)
	}

	// Terminal orders reject assignment
	done := seedOrder(t, db, domain.OrderCancelled, false, 100)
	if _, err := svc.AssignRider(done.ID, 5); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

// TestTopupCancelRefundScenario walks the full money movement: top-up,
// paid order, seller cancel, automatic refund.
func TestTopupCancelRefundScenario(t *testing.T) {
	db, svc, led := newFixture(t)

	w, err := led.Credit(ledger.Entry{UserID: 1, Amount: 5000, Description: "topup"})
	if err != nil {
		t.Fatalf("topup: %v", err)
	}
	if w.Balance != 5000 {
		t.Fatalf("balance after topup: want 5000, got %v", w.Balance)
	}
	var deposits int64
	if err := db.Model(&domain.Transaction{}).Where("type = ?", domain.TxDeposit).Count(&deposits).Error; err != nil {
		t.Fatalf("count deposits: %v", err)
	}
	if deposits != 1 {
		t.Fatalf("deposit records: want 1, got %d", deposits)
	}

	order := seedOrder(t, db, domain.OrderProcessing, true, 5000)
	got, err := svc.Apply(order.ID, EventCancel)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got.Status != domain.OrderCancelled {
		t.Errorf("status: want CANCELLED, got %s", got.Status)
	}
	if b := balance(t, db, 1); b != 10000 {
		t.Errorf("balance after refund: want 10000, got %v", b)
	}
	var refund domain.Transaction
	if err := db.Where("order_id = ? AND type = ?", order.ID, domain.TxRefund).First(&refund).Error; err != nil {
		t.Fatalf("load refund: %v", err)
	}
	if refund.Amount != 5000 {
		t.Errorf("refund amount: want 5000, got %v", refund.Amount)
	}
}
