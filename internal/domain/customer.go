package domain

import "time"

// Customer represents a registered shopper. RemoteCustomerID is the
// customer's record on the payment gateway, specific to the gateway mode it
// was created under, so test customers are skipped once the gateway moves to
// live mode.
type Customer struct {
	ID               string    `json:"id"`
	Email            string    `json:"email"`
	RemoteCustomerID string    `json:"-"`
	CreatedAt        time.Time `json:"createdAt"`
}
