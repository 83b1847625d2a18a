package cart

import (
	"context"
	"time"

	"digitalstore/internal/domain"
)

// Manager mutates the contents of a cart order and keeps the order's total
// and checkout progress consistent with them.
type Manager struct {
	repo    managerRepo
	matcher *Matcher
	now     func() time.Time
}

type managerRepo interface {
	Save(ctx context.Context, o *domain.Order) error
	SaveItem(ctx context.Context, item *domain.OrderItem) error
	DeleteItem(ctx context.Context, itemID string) error
}

func NewManager(repo managerRepo, matcher *Matcher) *Manager {
	if matcher == nil {
		matcher = NewMatcher()
	}
	return &Manager{repo: repo, matcher: matcher, now: time.Now}
}

// AddEntity creates an order item for the purchasable at its current price
// and adds it to the cart. See AddOrderItem for combining.
func (m *Manager) AddEntity(ctx context.Context, cart *domain.Order, entity domain.Purchasable, quantity int64, combine bool) (*domain.OrderItem, error) {
	item := domain.NewOrderItemFromPurchasable(entity, quantity, m.now())
	return m.AddOrderItem(ctx, cart, item, combine, true)
}

// AddOrderItem adds the item to the cart. When combine is set and the cart
// already holds a matching item, the quantities are merged into the existing
// item instead and that item is returned. With save unset only the item row
// is persisted and the caller batches the cart save.
func (m *Manager) AddOrderItem(ctx context.Context, cart *domain.Order, item *domain.OrderItem, combine, save bool) (*domain.OrderItem, error) {
	saved := item
	if combine {
		if matched := m.matcher.Match(item, cart.Items); matched != nil {
			matched.SetQuantity(matched.Quantity + item.Quantity)
			saved = matched
		}
	}
	if saved == item {
		cart.AddItem(item)
	}
	cart.RecalculateTotalPrice()
	m.resetCheckoutStep(cart)
	if save {
		if err := m.repo.Save(ctx, cart); err != nil {
			return nil, err
		}
		return saved, nil
	}
	if err := m.repo.SaveItem(ctx, saved); err != nil {
		return nil, err
	}
	return saved, nil
}

// UpdateOrderItem persists an item the caller already mutated and brings the
// cart's totals and checkout progress back in line with it.
func (m *Manager) UpdateOrderItem(ctx context.Context, cart *domain.Order, item *domain.OrderItem, save bool) error {
	cart.RecalculateTotalPrice()
	m.resetCheckoutStep(cart)
	if save {
		return m.repo.Save(ctx, cart)
	}
	return m.repo.SaveItem(ctx, item)
}

// UpdateOrderItemQuantity sets the quantity of the cart's item with the
// given id. A quantity below one is clamped to one; the line always stays in
// the cart. The boolean reports whether the cart held such an item.
func (m *Manager) UpdateOrderItemQuantity(ctx context.Context, cart *domain.Order, itemID string, quantity int64) (bool, error) {
	item := cart.GetItem(itemID)
	if item == nil {
		return false, nil
	}
	if quantity < 1 {
		quantity = 1
	}
	item.SetQuantity(quantity)
	return true, m.UpdateOrderItem(ctx, cart, item, true)
}

// RemoveOrderItemByID removes the cart's item with the given id. The boolean
// reports whether the cart held such an item.
func (m *Manager) RemoveOrderItemByID(ctx context.Context, cart *domain.Order, itemID string) (bool, error) {
	item := cart.GetItem(itemID)
	if item == nil {
		return false, nil
	}
	return true, m.RemoveOrderItem(ctx, cart, item, true)
}

// RemoveOrderItem detaches the item from the cart and deletes it. With save
// unset the caller is expected to persist the cart itself.
func (m *Manager) RemoveOrderItem(ctx context.Context, cart *domain.Order, item *domain.OrderItem, save bool) error {
	cart.RemoveItem(item)
	m.resetCheckoutStep(cart)
	if save {
		return m.repo.Save(ctx, cart)
	}
	return m.repo.DeleteItem(ctx, item.ID)
}

// EmptyCart removes every item from the cart.
func (m *Manager) EmptyCart(ctx context.Context, cart *domain.Order, save bool) error {
	removed := cart.Items
	cart.SetItems(nil)
	m.resetCheckoutStep(cart)
	if save {
		return m.repo.Save(ctx, cart)
	}
	for _, item := range removed {
		if err := m.repo.DeleteItem(ctx, item.ID); err != nil {
			return err
		}
	}
	return nil
}

// Mutating a cart reopens the draft and sends the customer back to the cart
// step so a changed total is never paid from a stale review page.
func (m *Manager) resetCheckoutStep(cart *domain.Order) {
	if !cart.Cart {
		return
	}
	cart.State = domain.OrderStateDraft
	cart.CheckoutStep = domain.CheckoutStepCart
}
