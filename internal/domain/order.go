package domain

import (
	"time"

	"github.com/google/uuid"
)

// OrderState is the order workflow state. Cart and placed order share the
// Order type; the state and the Cart flag discriminate them.
type OrderState string

const (
	OrderStateDraft          OrderState = "draft"
	OrderStatePendingPayment OrderState = "pending_payment"
	OrderStateFailed         OrderState = "failed"
	OrderStateProcessing     OrderState = "processing"
	OrderStateCompleted      OrderState = "completed"
	OrderStateOnHold         OrderState = "on_hold"
	OrderStateCancelled      OrderState = "cancelled"
	OrderStateRefunded       OrderState = "refunded"
)

// Checkout flow step identifiers stored on the order.
const (
	CheckoutStepCart      = "shopping.cart"
	CheckoutStepPayment   = "payment"
	CheckoutStepCompleted = "order-received"
)

// Order is the cart/placed-order aggregate. TotalPrice is always the sum of
// the current items' totals; it is recomputed on every item mutation and
// again by the repository immediately before persistence.
type Order struct {
	ID             string       `json:"id"`
	CustomerID     *string      `json:"customerId,omitempty"`
	Email          string       `json:"email,omitempty"`
	IPAddress      string       `json:"-"`
	Items          []*OrderItem `json:"items"`
	TotalPrice     Price        `json:"totalPrice"`
	TotalPaid      Price        `json:"totalPaid"`
	State          OrderState   `json:"state"`
	Cart           bool         `json:"cart"`
	Locked         bool         `json:"locked"`
	CheckoutStep   string       `json:"checkoutStep,omitempty"`
	BillingDetails *Address     `json:"billingDetails,omitempty"`
	PlacedAt       *time.Time   `json:"placedAt,omitempty"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// NewOrder creates an empty draft cart order.
func NewOrder(customerID *string, now time.Time) *Order {
	return &Order{
		ID:           uuid.NewString(),
		CustomerID:   customerID,
		State:        OrderStateDraft,
		Cart:         true,
		CheckoutStep: CheckoutStepCart,
		CreatedAt:    now,
	}
}

// IsAnonymous reports whether the order has no owning customer.
func (o *Order) IsAnonymous() bool {
	return o.CustomerID == nil || *o.CustomerID == ""
}

// HasItems reports whether the order holds at least one item.
func (o *Order) HasItems() bool {
	return len(o.Items) > 0
}

func (o *Order) itemIndex(itemID string) int {
	for i, item := range o.Items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}

// HasItem reports whether the order already references the given item.
func (o *Order) HasItem(item *OrderItem) bool {
	return o.itemIndex(item.ID) >= 0
}

// GetItem returns the order's item with the given id, or nil.
func (o *Order) GetItem(itemID string) *OrderItem {
	if i := o.itemIndex(itemID); i >= 0 {
		return o.Items[i]
	}
	return nil
}

// AddItem appends the item (insertion order is display order), sets its
// back-reference and recomputes the total.
func (o *Order) AddItem(item *OrderItem) {
	if o.HasItem(item) {
		return
	}
	item.OrderID = o.ID
	o.Items = append(o.Items, item)
	o.RecalculateTotalPrice()
}

// RemoveItem detaches the item and recomputes the total.
func (o *Order) RemoveItem(item *OrderItem) {
	i := o.itemIndex(item.ID)
	if i < 0 {
		return
	}
	o.Items = append(o.Items[:i], o.Items[i+1:]...)
	o.RecalculateTotalPrice()
}

// SetItems replaces the item list and recomputes the total.
func (o *Order) SetItems(items []*OrderItem) {
	o.Items = items
	for _, item := range o.Items {
		item.OrderID = o.ID
	}
	o.RecalculateTotalPrice()
}

// RecalculateTotalPrice sums the current item totals. With no items the
// total becomes the empty price.
func (o *Order) RecalculateTotalPrice() {
	var total Price
	for _, item := range o.Items {
		if item.TotalPrice.IsEmpty() {
			continue
		}
		if total.IsEmpty() {
			total = item.TotalPrice
			continue
		}
		sum, err := total.Add(item.TotalPrice)
		if err != nil {
			continue
		}
		total = sum
	}
	o.TotalPrice = total
}

// GetTotalPaid returns the recorded paid total, defaulting to zero in the
// order's currency so the balance is computable before the first payment.
func (o *Order) GetTotalPaid() Price {
	if !o.TotalPaid.IsEmpty() {
		return o.TotalPaid
	}
	if !o.TotalPrice.IsEmpty() {
		return ZeroPrice(o.TotalPrice.CurrencyCode())
	}
	return Price{}
}

// Balance returns totalPrice - totalPaid, or the empty price when the order
// has no total yet.
func (o *Order) Balance() Price {
	if o.TotalPrice.IsEmpty() {
		return Price{}
	}
	balance, err := o.TotalPrice.Subtract(o.GetTotalPaid())
	if err != nil {
		return Price{}
	}
	return balance
}

// IsPaid reports whether the remaining balance is zero or negative.
func (o *Order) IsPaid() bool {
	balance := o.Balance()
	if balance.IsEmpty() {
		return false
	}
	return balance.IsZero() || balance.IsNegative()
}

// SetState transitions the order and stamps CompletedAt exactly once, on the
// first transition into the completed state.
func (o *Order) SetState(state OrderState, now time.Time) {
	previous := o.State
	o.State = state
	if state == OrderStateCompleted && previous != OrderStateCompleted && o.CompletedAt == nil {
		t := now
		o.CompletedAt = &t
	}
}

// Lock marks the order as locked, e.g. while the customer is off-site at the
// payment gateway.
func (o *Order) Lock() { o.Locked = true }

// Unlock clears the locked flag.
func (o *Order) Unlock() { o.Locked = false }
