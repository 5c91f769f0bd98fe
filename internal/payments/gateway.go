package payments

import (
	"fmt"                         // Formatting item ids
	"marketplace/internal/domain" // Importing domain models

	"github.com/midtrans/midtrans-go"      // Midtrans core types
	"github.com/midtrans/midtrans-go/snap" // Hosted checkout sessions
)

// Session is the hosted checkout handle returned to the frontend
type Session struct {
	Token       string `json:"token"`        // Snap token consumed by the frontend widget
	RedirectURL string `json:"redirect_url"` // Hosted payment page
}

// Gateway wraps the hosted-checkout client. The core only hands an
// order to the gateway and later trusts its webhook confirmation.
type Gateway struct {
	client snap.Client // Underlying snap client
}

// New constructs a Gateway for the given server key
func New(serverKey string, production bool) *Gateway {
	env := midtrans.Sandbox // Sandbox unless told otherwise
	if production {
		env = midtrans.Production
	}
	g := &Gateway{}
	g.client.New(serverKey, env) // Initialize the snap client
	return g
}

// CreateSession opens a hosted checkout session for the order
func (g *Gateway) CreateSession(order *domain.Order, customer *domain.User) (*Session, error) {
	// Build line items from the order snapshot
	items := make([]midtrans.ItemDetails, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    fmt.Sprintf("PRD-%d", it.ProductID), // Stable item id
			Name:  it.Name,                             // Name at purchase time
			Price: int64(it.UnitPrice),                 // Gateway wants int64
			Qty:   int32(it.Quantity),                  // Units ordered
		})
	}
	req := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  order.OrderNo,            // External reference echoed in the webhook
			GrossAmt: int64(order.TotalAmount), // Gateway wants int64
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: customer.Username, // Display name on the hosted page
		},
		Items: &items,
	}
	resp, errSnap := g.client.CreateTransaction(req)
	if errSnap != nil {
		return nil, errSnap // Surface the gateway error unchanged
	}
	return &Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// Notification is the subset of the gateway webhook body the core
// cares about
type Notification struct {
	TransactionStatus string `json:"transaction_status"` // Gateway-side status
	OrderID           string `json:"order_id"`           // Our order_no
	FraudStatus       string `json:"fraud_status"`       // Card fraud screening result
}

// Outcome of mapping a gateway notification onto internal order state
const (
	OutcomePaid      = "paid"      // Payment confirmed
	OutcomeCancelled = "cancelled" // Payment failed or expired
	OutcomePending   = "pending"   // Still in flight, no state change
)

// Outcome maps the gateway status pair onto the internal outcome
func (n Notification) Outcome() string {
	switch n.TransactionStatus {
	case "capture":
		// Card payments are only final once fraud screening accepts
		if n.FraudStatus == "accept" {
			return OutcomePaid
		}
		return OutcomePending // Still being verified by the bank
	case "settlement":
		return OutcomePaid // Bank transfer / e-wallet success
	case "deny", "cancel", "expire":
		return OutcomeCancelled
	default:
		return OutcomePending
	}
}
