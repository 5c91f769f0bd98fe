package notify

import (
	"context"       // Context for Redis operations
	"encoding/json" // Event payload encoding
	"strconv"       // User id to channel name

	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Logging library
)

// Event names published after successful operations
const (
	EventPaymentSuccess = "payment-success" // Order confirmed paid
	EventOrderCancelled = "order-cancelled" // Order reached CANCELLED
	EventRiderAssigned  = "rider-assigned"  // Rider attached to an order
	EventRefundIssued   = "refund-issued"   // Wallet credited back
)

// Publisher pushes fire-and-forget events to per-user channels. It is
// never part of an atomic unit of work: a lost event is acceptable, a
// blocked commit is not.
type Publisher struct {
	rdb *redis.Client // Injected Redis client
}

// New constructs a Publisher around the given Redis client
func New(rdb *redis.Client) *Publisher {
	return &Publisher{rdb: rdb}
}

// Publish sends one event to the user's channel. Failures are logged
// and dropped.
func (p *Publisher) Publish(userID uint, event string, payload map[string]any) {
	if p == nil || p.rdb == nil {
		return // Notifier not wired; events are optional
	}
	body := map[string]any{"event": event} // Envelope with the event name
	for k, v := range payload {
		body[k] = v
	}
	b, err := json.Marshal(body)
	if err != nil {
		return // Unserializable payload, drop silently
	}
	channel := "user:" + strconv.Itoa(int(userID)) // Per-user channel
	if err := p.rdb.Publish(context.Background(), channel, b).Err(); err != nil {
		// Log and drop: delivery is best-effort
		logrus.WithFields(logrus.Fields{
			"user_id": userID, // Target user
			"event":   event,  // Event name
			"error":   err.Error(),
		}).Warn("Event publish failed")
	}
}
