package payments

import "testing"

func TestNotificationOutcome(t *testing.T) {
	cases := []struct {
		name              string
		transactionStatus string
		fraudStatus       string
		want              string
	}{
		{"settlement", "settlement", "", OutcomePaid},
		{"capture accepted", "capture", "accept", OutcomePaid},
		{"capture challenged", "capture", "challenge", OutcomePending},
		{"deny", "deny", "", OutcomeCancelled},
		{"cancel", "cancel", "", OutcomeCancelled},
		{"expire", "expire", "", OutcomeCancelled},
		{"pending", "pending", "", OutcomePending},
		{"unknown status", "refund", "", OutcomePending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			n := Notification{TransactionStatus: tc.transactionStatus, FraudStatus: tc.fraudStatus}
			if got := n.Outcome(); got != tc.want {
				t.Errorf("outcome(%s/%s): want %s, got %s", tc.transactionStatus, tc.fraudStatus, tc.want, got)
			}
		})
	}
}
