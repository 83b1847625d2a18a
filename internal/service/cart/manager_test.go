package cart

import (
	"context"
	"errors"
	"testing"
	"time"

	"digitalstore/internal/domain"
)

type stubManagerRepo struct {
	saveErr      error
	saveCalls    int
	savedItems   []string
	deletedItems []string
	deleteErr    error
}

func (s *stubManagerRepo) Save(_ context.Context, _ *domain.Order) error {
	s.saveCalls++
	return s.saveErr
}

func (s *stubManagerRepo) SaveItem(_ context.Context, item *domain.OrderItem) error {
	s.savedItems = append(s.savedItems, item.ID)
	return nil
}

func (s *stubManagerRepo) DeleteItem(_ context.Context, itemID string) error {
	s.deletedItems = append(s.deletedItems, itemID)
	return s.deleteErr
}

func testVariation(id, amount string) *domain.ProductVariation {
	return &domain.ProductVariation{
		ID:    id,
		SKU:   "sku-" + id,
		Title: "Variation " + id,
		Price: domain.MustNewPrice(amount, "USD"),
	}
}

func testManager(repo *stubManagerRepo) *Manager {
	m := NewManager(repo, nil)
	m.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return m
}

func TestManagerAddEntity(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())

	item, err := m.AddEntity(context.Background(), cart, testVariation("v1", "10.00"), 2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0] != item {
		t.Fatalf("expected the new item on the cart, got %d items", len(cart.Items))
	}
	if item.Quantity != 2 {
		t.Fatalf("unexpected quantity: %d", item.Quantity)
	}
	if got := cart.TotalPrice.Amount(); got != "20" {
		t.Fatalf("unexpected total: %s", got)
	}
	if repo.saveCalls != 1 {
		t.Fatalf("expected one save, got %d", repo.saveCalls)
	}
}

func TestManagerAddEntityCombines(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	variation := testVariation("v1", "10.00")

	first, err := m.AddEntity(context.Background(), cart, variation, 2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := m.AddEntity(context.Background(), cart, variation, 3, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second != first {
		t.Fatalf("expected the existing item back")
	}
	if len(cart.Items) != 1 {
		t.Fatalf("expected one combined item, got %d", len(cart.Items))
	}
	if first.Quantity != 5 {
		t.Fatalf("unexpected combined quantity: %d", first.Quantity)
	}
	if got := cart.TotalPrice.Amount(); got != "50" {
		t.Fatalf("unexpected total: %s", got)
	}
}

func TestManagerAddEntityWithoutCombine(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	variation := testVariation("v1", "10.00")

	if _, err := m.AddEntity(context.Background(), cart, variation, 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.AddEntity(context.Background(), cart, variation, 1, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cart.Items) != 2 {
		t.Fatalf("expected two separate items, got %d", len(cart.Items))
	}
}

func TestManagerAddResetsCheckoutStep(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	cart.CheckoutStep = domain.CheckoutStepPayment

	if _, err := m.AddEntity(context.Background(), cart, testVariation("v1", "5.00"), 1, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.CheckoutStep != domain.CheckoutStepCart {
		t.Fatalf("expected checkout step reset, got %q", cart.CheckoutStep)
	}
}

func TestManagerAddSaveError(t *testing.T) {
	repo := &stubManagerRepo{saveErr: errors.New("boom")}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())

	_, err := m.AddEntity(context.Background(), cart, testVariation("v1", "5.00"), 1, true)
	if err == nil || err.Error() != "boom" {
		t.Fatalf("expected save error, got %v", err)
	}
}

func TestManagerUpdateQuantityMissingItem(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())

	ok, err := m.UpdateOrderItemQuantity(context.Background(), cart, "nope", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("expected no item to be found")
	}
	if repo.saveCalls != 0 {
		t.Fatalf("expected no save, got %d", repo.saveCalls)
	}
}

func TestManagerUpdateQuantity(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	item, err := m.AddEntity(context.Background(), cart, testVariation("v1", "10.00"), 1, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := m.UpdateOrderItemQuantity(context.Background(), cart, item.ID, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("expected the item to be found")
	}
	if got := cart.TotalPrice.Amount(); got != "30" {
		t.Fatalf("unexpected total: %s", got)
	}
}

func TestManagerUpdateQuantityClampsToOne(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	item, err := m.AddEntity(context.Background(), cart, testVariation("v1", "10.00"), 2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, quantity := range []int64{0, -3} {
		ok, err := m.UpdateOrderItemQuantity(context.Background(), cart, item.ID, quantity)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !ok {
			t.Fatalf("expected the item to be found")
		}
		if got := cart.GetItem(item.ID); got == nil || got.Quantity != 1 {
			t.Fatalf("expected the line kept at quantity 1, got %+v", got)
		}
		if got := cart.TotalPrice.Amount(); got != "10" {
			t.Fatalf("unexpected total: %s", got)
		}
	}
}

func TestManagerAddOrderItemWithoutSave(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	variation := testVariation("v1", "10.00")
	item := domain.NewOrderItemFromPurchasable(variation, 2, time.Now())

	if _, err := m.AddOrderItem(context.Background(), cart, item, true, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.saveCalls != 0 {
		t.Fatalf("expected the cart save batched, got %d saves", repo.saveCalls)
	}
	if len(repo.savedItems) != 1 || repo.savedItems[0] != item.ID {
		t.Fatalf("expected the item row persisted, got %v", repo.savedItems)
	}
	if got := cart.TotalPrice.Amount(); got != "20" {
		t.Fatalf("unexpected total: %s", got)
	}
}

func TestManagerUpdateOrderItemWithoutSave(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	item, err := m.AddEntity(context.Background(), cart, testVariation("v1", "10.00"), 1, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saves := repo.saveCalls

	item.SetQuantity(4)
	if err := m.UpdateOrderItem(context.Background(), cart, item, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.saveCalls != saves {
		t.Fatalf("expected no additional cart save")
	}
	if len(repo.savedItems) != 1 || repo.savedItems[0] != item.ID {
		t.Fatalf("expected the item row persisted, got %v", repo.savedItems)
	}
	if got := cart.TotalPrice.Amount(); got != "40" {
		t.Fatalf("unexpected total: %s", got)
	}
}

func TestManagerMutationReopensDraft(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	cart.State = domain.OrderStatePendingPayment
	cart.CheckoutStep = domain.CheckoutStepPayment

	if _, err := m.AddEntity(context.Background(), cart, testVariation("v1", "5.00"), 1, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.State != domain.OrderStateDraft {
		t.Fatalf("expected the draft reopened, got %q", cart.State)
	}
	if cart.CheckoutStep != domain.CheckoutStepCart {
		t.Fatalf("expected the cart step, got %q", cart.CheckoutStep)
	}
}

func TestManagerRemoveOrderItemByID(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	item, err := m.AddEntity(context.Background(), cart, testVariation("v1", "10.00"), 2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := m.RemoveOrderItemByID(context.Background(), cart, "missing")
	if err != nil || ok {
		t.Fatalf("expected a miss, got ok=%v err=%v", ok, err)
	}

	ok, err = m.RemoveOrderItemByID(context.Background(), cart, item.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok || cart.HasItems() {
		t.Fatalf("expected the item removed")
	}
}

func TestManagerRemoveOrderItemWithoutSave(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	item, err := m.AddEntity(context.Background(), cart, testVariation("v1", "10.00"), 2, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	saves := repo.saveCalls

	if err := m.RemoveOrderItem(context.Background(), cart, item, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.saveCalls != saves {
		t.Fatalf("expected no additional save")
	}
	if len(repo.deletedItems) != 1 || repo.deletedItems[0] != item.ID {
		t.Fatalf("expected the item row deleted, got %v", repo.deletedItems)
	}
}

func TestManagerEmptyCart(t *testing.T) {
	repo := &stubManagerRepo{}
	m := testManager(repo)
	cart := domain.NewOrder(nil, time.Now())
	if _, err := m.AddEntity(context.Background(), cart, testVariation("v1", "10.00"), 2, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.AddEntity(context.Background(), cart, testVariation("v2", "4.00"), 1, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := m.EmptyCart(context.Background(), cart, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cart.HasItems() {
		t.Fatalf("expected no items left")
	}
	if !cart.TotalPrice.IsEmpty() {
		t.Fatalf("expected the total cleared, got %s", cart.TotalPrice.Amount())
	}
}

func TestMatcherSkipsItemsWithoutPurchasable(t *testing.T) {
	matcher := NewMatcher()
	bare := &domain.OrderItem{ID: "i1", Title: "Custom line"}
	other := &domain.OrderItem{ID: "i2", Title: "Custom line"}

	if got := matcher.Match(bare, []*domain.OrderItem{other}); got != nil {
		t.Fatalf("expected no match for items without a purchasable, got %+v", got)
	}
}

func TestMatcherFirstMatchWins(t *testing.T) {
	matcher := NewMatcher()
	incoming := &domain.OrderItem{ID: "new", PurchasedEntityID: "v1"}
	first := &domain.OrderItem{ID: "a", PurchasedEntityID: "v1"}
	second := &domain.OrderItem{ID: "b", PurchasedEntityID: "v1"}
	unrelated := &domain.OrderItem{ID: "c", PurchasedEntityID: "v2"}

	got := matcher.Match(incoming, []*domain.OrderItem{unrelated, first, second})
	if got != first {
		t.Fatalf("expected the first matching item, got %+v", got)
	}
	if all := matcher.MatchAll(incoming, []*domain.OrderItem{unrelated, first, second}); len(all) != 2 {
		t.Fatalf("expected two matches, got %d", len(all))
	}
}

func TestMatcherExtraComparisonFields(t *testing.T) {
	matcher := NewMatcher(func(item *domain.OrderItem) string { return item.Title })
	incoming := &domain.OrderItem{ID: "new", PurchasedEntityID: "v1", Title: "Gift wrapped"}
	plain := &domain.OrderItem{ID: "a", PurchasedEntityID: "v1", Title: "Plain"}
	wrapped := &domain.OrderItem{ID: "b", PurchasedEntityID: "v1", Title: "Gift wrapped"}

	got := matcher.Match(incoming, []*domain.OrderItem{plain, wrapped})
	if got != wrapped {
		t.Fatalf("expected the item sharing every comparison field, got %+v", got)
	}
}
