package db

import (
	"marketplace/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus"

	"gorm.io/driver/mysql" // MySQL driver for GORM
	"gorm.io/gorm"         // GORM ORM library
)

// Models lists every table in migration order
func Models() []any {
	return []any{
		&domain.User{},         // Accounts and roles
		&domain.Wallet{},       // Per-user balances
		&domain.Transaction{},  // Append-only ledger records
		&domain.Product{},      // Seller catalog
		&domain.Order{},        // Order lifecycle
		&domain.OrderItem{},    // Checkout-time product snapshots
		&domain.CartItem{},     // Buyer carts
		&domain.WishlistItem{}, // Buyer wishlists
	}
}

// Migrate performs automatic migration for the database schema
func Migrate(dsn string) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{}) // Open a connection to the database
	if err != nil {
		logrus.Fatalf("failed to connect database: %v", err) // Log fatal error if connection fails
	}
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	err = db.AutoMigrate(Models()...)
	if err != nil {
		logrus.Fatalf("migration failed: %v", err) // Log fatal error if migration fails
	}
	logrus.Info("Migration completed.") // Log successful migration
}
