package ledger

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"marketplace/internal/domain"

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
	if err := db.AutoMigrate(&domain.User{}, &domain.Wallet{}, &domain.Transaction{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	return db
}

func countTransactions(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&domain.Transaction{}).Count(&n).Error; err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	return n
}

func walletBalance(t *testing.T, db *gorm.DB, userID uint) float64 {
	t.Helper()
	var w domain.Wallet
	if err := db.Where("user_id = ?", userID).First(&w).Error; err != nil {
		t.Fatalf("failed to load wallet: %v", err)
	}
	return w.Balance
}

func TestGetOrCreate(t *testing.T) {
	db := testDB(t)
	led := New(db, "NGN")

	w1, err := led.GetOrCreate(1)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if w1.Balance != 0 {
		t.Errorf("new wallet balance: want 0, got %v", w1.Balance)
	}
	if w1.Currency != "NGN" {
		t.Errorf("new wallet currency: want NGN, got %s", w1.Currency)
	}

	w2, err := led.GetOrCreate(1)
	if err != nil {
		t.Fatalf("expected no error on second call, got %v", err)
	}
	if w2.ID != w1.ID {
		t.Errorf("second call created a new wallet: %d != %d", w2.ID, w1.ID)
	}
}

func TestCreditThenDebitRoundTrip(t *testing.T) {
	db := testDB(t)
	led := New(db, "NGN")

	if _, err := led.Credit(Entry{UserID: 1, Amount: 250}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	w, err := led.Debit(Entry{UserID: 1, Amount: 250})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if w.Balance != 0 {
		t.Errorf("balance after round trip: want 0, got %v", w.Balance)
	}
	if n := countTransactions(t, db); n != 2 {
		t.Errorf("transaction records: want 2, got %d", n)
	}

	var txs []domain.Transaction
	if err := db.Order("id").Find(&txs).Error; err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	if txs[0].Type != domain.TxDeposit || txs[1].Type != domain.TxOrderPayment {
		t.Errorf("default types: want DEPOSIT then ORDER_PAYMENT, got %s then %s", txs[0].Type, txs[1].Type)
	}
	for _, tx := range txs {
		if tx.Status != domain.TxSuccess {
			t.Errorf("transaction %d status: want SUCCESS, got %s", tx.ID, tx.Status)
		}
		if tx.Amount != 250 {
			t.Errorf("transaction %d amount: want 250, got %v", tx.ID, tx.Amount)
		}
	}
}

func TestNonPositiveAmountsRejected(t *testing.T) {
	db := testDB(t)
	led := New(db, "NGN")
	if _, err := led.Credit(Entry{UserID: 1, Amount: 100}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	cases := []struct {
		name   string
		amount float64
	}{
		{"zero", 0},
		{"negative", -50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := led.Credit(Entry{UserID: 1, Amount: tc.amount}); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("credit(%v): want ErrInvalidAmount, got %v", tc.amount, err)
			}
			if _, err := led.Debit(Entry{UserID: 1, Amount: tc.amount}); !errors.Is(err, ErrInvalidAmount) {
				t.Errorf("debit(%v): want ErrInvalidAmount, got %v", tc.amount, err)
			}
		})
	}

	if b := walletBalance(t, db, 1); b != 100 {
		t.Errorf("balance after rejected mutations: want 100, got %v", b)
	}
	if n := countTransactions(t, db); n != 1 {
		t.Errorf("transaction records after rejected mutations: want 1, got %d", n)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	db := testDB(t)
	led := New(db, "NGN")
	if _, err := led.Credit(Entry{UserID: 1, Amount: 100}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	if _, err := led.Debit(Entry{UserID: 1, Amount: 150}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if b := walletBalance(t, db, 1); b != 100 {
		t.Errorf("balance after failed debit: want 100, got %v", b)
	}
	if n := countTransactions(t, db); n != 1 {
		t.Errorf("transaction records after failed debit: want 1, got %d", n)
	}
}

func TestDebitExhaustsBalanceExactlyOnce(t *testing.T) {
	db := testDB(t)
	led := New(db, "NGN")
	if _, err := led.Credit(Entry{UserID: 1, Amount: 75}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	// Two debits of the full balance: only the first can pass the
	// funds check, the second must fail rather than go negative.
	if _, err := led.Debit(Entry{UserID: 1, Amount: 75}); err != nil {
		t.Fatalf("first debit: %v", err)
	}
	if _, err := led.Debit(Entry{UserID: 1, Amount: 75}); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("second debit: want ErrInsufficientFunds, got %v", err)
	}
	if b := walletBalance(t, db, 1); b != 0 {
		t.Errorf("final balance: want 0, got %v", b)
	}
}

func TestConcurrentDebitsCannotOverdraw(t *testing.T) {
	// File-backed database with immediate write transactions, so the
	// two goroutines really contend for the wallet row instead of
	// serializing on a shared in-memory handle
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000",
		filepath.Join(t.TempDir(), "ledger.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.AutoMigrate(&domain.User{}, &domain.Wallet{}, &domain.Transaction{}); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	led := New(db, "NGN")
	if _, err := led.Credit(Entry{UserID: 1, Amount: 100}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}

	// Both debits want the full balance; the guarded update lets
	// exactly one of them through no matter the interleaving
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = led.Debit(Entry{UserID: 1, Amount: 100})
		}(i)
	}
	wg.Wait()

	var ok, failed int
	for _, err := range errs {
		if err == nil {
			ok++
		} else if errors.Is(err, ErrInsufficientFunds) {
			failed++
		} else {
			t.Fatalf("unexpected debit error: %v", err)
		}
	}
	if ok != 1 || failed != 1 {
		t.Fatalf("want exactly one successful debit, got %d ok / %d rejected", ok, failed)
	}
	if b := walletBalance(t, db, 1); b != 0 {
		t.Errorf("final balance: want 0, got %v", b)
	}
	var debits int64
	if err := db.Model(&domain.Transaction{}).
		Where("type = ?", domain.TxOrderPayment).Count(&debits).Error; err != nil {
		t.Fatalf("count debits: %v", err)
	}
	if debits != 1 {
		t.Errorf("debit records: want 1, got %d", debits)
	}
}

func TestDebitWalletNotFound(t *testing.T) {
	db := testDB(t)
	led := New(db, "NGN")

	if _, err := led.Debit(Entry{UserID: 42, Amount: 10}); !errors.Is(err, ErrWalletNotFound) {
		t.Fatalf("want ErrWalletNotFound, got %v", err)
	}
	if n := countTransactions(t, db); n != 0 {
		t.Errorf("transaction records: want 0, got %d", n)
	}
}

func TestCreditProvisionsWalletAndTracksEarnings(t *testing.T) {
	db := testDB(t)
	led := New(db, "USD")

	w, err := led.Credit(Entry{UserID: 7, Amount: 500, Description: "topup"})
	if err != nil {
		t.Fatalf("credit: %v", err)
	}
	if w.Currency != "USD" {
		t.Errorf("provisioned currency: want USD, got %s", w.Currency)
	}
	if _, err := led.Credit(Entry{UserID: 7, Amount: 300}); err != nil {
		t.Fatalf("second credit: %v", err)
	}

	var stored domain.Wallet
	if err := db.Where("user_id = ?", 7).First(&stored).Error; err != nil {
		t.Fatalf("load wallet: %v", err)
	}
	if stored.Balance != 800 {
		t.Errorf("balance: want 800, got %v", stored.Balance)
	}
	if stored.TotalEarnings != 800 {
		t.Errorf("total earnings: want 800, got %v", stored.TotalEarnings)
	}
}

func TestEntryMetadataStored(t *testing.T) {
	db := testDB(t)
	led := New(db, "NGN")
	orderID := uint(9)

	if _, err := led.Credit(Entry{
		UserID:      1,
		Amount:      1200,
		Type:        domain.TxRefund,
		Description: "Refund for order INV-1",
		Reference:   "INV-1",
		OrderID:     &orderID,
	}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	var tx domain.Transaction
	if err := db.First(&tx).Error; err != nil {
		t.Fatalf("load transaction: %v", err)
	}
	if tx.Type != domain.TxRefund {
		t.Errorf("type: want REFUND, got %s", tx.Type)
	}
	if tx.Reference != "INV-1" {
		t.Errorf("reference: want INV-1, got %s", tx.Reference)
	}
	if tx.OrderID == nil || *tx.OrderID != orderID {
		t.Errorf("order id: want %d, got %v", orderID, tx.OrderID)
	}
}
