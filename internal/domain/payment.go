package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GatewayMode isolates test records from live ones. A payment method created
// under one mode must never be used through a client configured for the
// other.
type GatewayMode string

const (
	GatewayModeTest GatewayMode = "test"
	GatewayModeLive GatewayMode = "live"
)

// PaymentState is the payment workflow state.
type PaymentState string

const (
	PaymentStateNew               PaymentState = "new"
	PaymentStateAuthorization     PaymentState = "authorization"
	PaymentStateAuthVoided        PaymentState = "authorization_voided"
	PaymentStateCompleted         PaymentState = "completed"
	PaymentStatePartiallyRefunded PaymentState = "partially_refunded"
	PaymentStateRefunded          PaymentState = "refunded"
)

// cardBrands maps gateway-reported card brands to the store's identifiers.
// An unmapped brand is a hard decline.
var cardBrands = map[string]string{
	"American Express": "amex",
	"Diners Club":      "dinersclub",
	"Discover":         "discover",
	"JCB":              "jcb",
	"MasterCard":       "mastercard",
	"Visa":             "visa",
}

// MapCardBrand translates a gateway card brand, rejecting unsupported ones.
func MapCardBrand(brand string) (string, error) {
	mapped, ok := cardBrands[brand]
	if !ok {
		return "", fmt.Errorf("%w: unsupported card brand %q", ErrHardDecline, brand)
	}
	return mapped, nil
}

// CardExpiration returns the instant a card with the given expiration month
// and year stops being usable (start of the following month, UTC).
func CardExpiration(month, year int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
}

// PaymentMethod is a stored, tokenized way to pay: a remote gateway record
// plus the card details safe to keep locally.
type PaymentMethod struct {
	ID             string      `json:"id"`
	OwnerID        *string     `json:"ownerId,omitempty"`
	GatewayID      string      `json:"gatewayId"`
	GatewayMode    GatewayMode `json:"gatewayMode"`
	RemoteID       string      `json:"remoteId"`
	BillingProfile *Address    `json:"billingProfile,omitempty"`
	CardBrand      string      `json:"cardBrand,omitempty"`
	CardLast4      string      `json:"cardLast4,omitempty"`
	CardExpMonth   int         `json:"cardExpMonth,omitempty"`
	CardExpYear    int         `json:"cardExpYear,omitempty"`
	ExpiresAt      *time.Time  `json:"expiresAt,omitempty"`
	Reusable       bool        `json:"reusable"`
	Default        bool        `json:"default"`
	CreatedAt      time.Time   `json:"createdAt"`
}

// NewPaymentMethod creates an unsaved payment method for the given gateway.
func NewPaymentMethod(ownerID *string, gatewayID string, mode GatewayMode, billing *Address, now time.Time) *PaymentMethod {
	return &PaymentMethod{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		GatewayID:      gatewayID,
		GatewayMode:    mode,
		BillingProfile: billing,
		CreatedAt:      now,
	}
}

// IsExpired reports whether the method's card has expired.
func (m *PaymentMethod) IsExpired(now time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(now)
}

// Payment is a single charge attempt against an order.
type Payment struct {
	ID              string       `json:"id"`
	GatewayID       string       `json:"gatewayId"`
	GatewayMode     GatewayMode  `json:"gatewayMode"`
	PaymentMethodID string       `json:"paymentMethodId,omitempty"`
	OrderID         string       `json:"orderId"`
	RemoteID        string       `json:"remoteId,omitempty"`
	RemoteState     string       `json:"remoteState,omitempty"`
	Amount          Price        `json:"amount"`
	RefundedAmount  Price        `json:"refundedAmount"`
	State           PaymentState `json:"state"`
	AuthorizedAt    *time.Time   `json:"authorizedAt,omitempty"`
	ExpiresAt       *time.Time   `json:"expiresAt,omitempty"`
	CompletedAt     *time.Time   `json:"completedAt,omitempty"`
	CreatedAt       time.Time    `json:"createdAt"`
}

// NewPayment creates a payment in the new state for the given amount.
func NewPayment(orderID, gatewayID string, mode GatewayMode, amount Price, now time.Time) *Payment {
	return &Payment{
		ID:          uuid.NewString(),
		GatewayID:   gatewayID,
		GatewayMode: mode,
		OrderID:     orderID,
		Amount:      amount,
		State:       PaymentStateNew,
		CreatedAt:   now,
	}
}

// GetRefundedAmount returns the cumulative refunded amount, defaulting to
// zero in the payment's currency.
func (p *Payment) GetRefundedAmount() Price {
	if !p.RefundedAmount.IsEmpty() {
		return p.RefundedAmount
	}
	if !p.Amount.IsEmpty() {
		return ZeroPrice(p.Amount.CurrencyCode())
	}
	return Price{}
}

// Balance returns amount - refundedAmount.
func (p *Payment) Balance() Price {
	if p.Amount.IsEmpty() {
		return Price{}
	}
	balance, err := p.Amount.Subtract(p.GetRefundedAmount())
	if err != nil {
		return Price{}
	}
	return balance
}

// IsExpired reports whether an authorization has lapsed.
func (p *Payment) IsExpired(now time.Time) bool {
	return p.ExpiresAt != nil && !p.ExpiresAt.After(now)
}
