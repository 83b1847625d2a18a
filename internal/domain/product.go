package domain

import "time"

// Purchasable is anything an order item can be created from. The current
// price is snapshotted onto the item at add-to-cart time.
type Purchasable interface {
	PurchasableID() string
	Label() string
	CurrentPrice() Price
}

// ProductVariation is the store's purchasable unit.
type ProductVariation struct {
	ID        string    `json:"id"`
	SKU       string    `json:"sku"`
	Title     string    `json:"title"`
	Price     Price     `json:"price"`
	CreatedAt time.Time `json:"createdAt"`
}

func (v *ProductVariation) PurchasableID() string { return v.ID }

func (v *ProductVariation) Label() string { return v.Title }

func (v *ProductVariation) CurrentPrice() Price { return v.Price }
