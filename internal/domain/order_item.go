package domain

import (
	"time"

	"github.com/google/uuid"
)

var itemRounder = NewRounder()

// OrderItem is one line within an order: a purchasable reference, a quantity
// and a price snapshot. TotalPrice is always round(UnitPrice × Quantity) and
// is recomputed whenever either input changes.
type OrderItem struct {
	ID                  string    `json:"id"`
	OrderID             string    `json:"orderId,omitempty"`
	PurchasedEntityID   string    `json:"purchasedEntityId,omitempty"`
	Title               string    `json:"title"`
	Quantity            int64     `json:"quantity"`
	UnitPrice           Price     `json:"unitPrice"`
	UnitPriceOverridden bool      `json:"unitPriceOverridden"`
	TotalPrice          Price     `json:"totalPrice"`
	CreatedAt           time.Time `json:"createdAt"`
}

// NewOrderItemFromPurchasable builds an unattached order item, snapshotting
// the entity's current price as the unit price.
func NewOrderItemFromPurchasable(entity Purchasable, quantity int64, now time.Time) *OrderItem {
	if quantity < 1 {
		quantity = 1
	}
	item := &OrderItem{
		ID:                uuid.NewString(),
		PurchasedEntityID: entity.PurchasableID(),
		Title:             entity.Label(),
		Quantity:          quantity,
		UnitPrice:         entity.CurrentPrice(),
		CreatedAt:         now,
	}
	item.recalculateTotalPrice()
	return item
}

// HasPurchasedEntity reports whether the item references a purchasable.
// Items without one are never combined.
func (i *OrderItem) HasPurchasedEntity() bool {
	return i.PurchasedEntityID != ""
}

// SetQuantity updates the quantity and recomputes the total.
func (i *OrderItem) SetQuantity(quantity int64) {
	i.Quantity = quantity
	i.recalculateTotalPrice()
}

// SetUnitPrice replaces the unit price and recomputes the total. The
// override flag records that the price no longer tracks the purchasable.
func (i *OrderItem) SetUnitPrice(unitPrice Price, override bool) {
	i.UnitPrice = unitPrice
	i.UnitPriceOverridden = override
	i.recalculateTotalPrice()
}

func (i *OrderItem) recalculateTotalPrice() {
	if i.UnitPrice.IsEmpty() {
		return
	}
	total := i.UnitPrice.MultiplyInt(i.Quantity)
	if rounded, err := itemRounder.Round(total, RoundHalfUp); err == nil {
		total = rounded
	}
	i.TotalPrice = total
}
