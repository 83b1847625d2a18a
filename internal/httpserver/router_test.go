package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"digitalstore/internal/domain"
	cartsvc "digitalstore/internal/service/cart"
	checkoutsvc "digitalstore/internal/service/checkout"
	paymentsvc "digitalstore/internal/service/payment"
)

type memOrderRepo struct {
	ids    []string
	orders map[string]*domain.Order
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{orders: make(map[string]*domain.Order)}
}

func (r *memOrderRepo) Create(_ context.Context, o *domain.Order) error {
	r.ids = append(r.ids, o.ID)
	r.orders[o.ID] = o
	return nil
}

func (r *memOrderRepo) GetByID(_ context.Context, id string) (*domain.Order, error) {
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return o, nil
}

func (r *memOrderRepo) LoadMultiple(_ context.Context, ids []string) ([]*domain.Order, error) {
	var out []*domain.Order
	for _, id := range ids {
		if o, ok := r.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (r *memOrderRepo) ActiveCartIDs(_ context.Context, customerID string) ([]string, error) {
	var out []string
	for _, id := range r.ids {
		o := r.orders[id]
		if o.Cart && o.CustomerID != nil && *o.CustomerID == customerID {
			out = append(out, id)
		}
	}
	return out, nil
}

func (r *memOrderRepo) Save(_ context.Context, o *domain.Order) error {
	r.orders[o.ID] = o
	return nil
}

func (r *memOrderRepo) Delete(_ context.Context, id string) error {
	delete(r.orders, id)
	return nil
}

func (r *memOrderRepo) GetItem(_ context.Context, itemID string) (*domain.OrderItem, error) {
	for _, o := range r.orders {
		if item := o.GetItem(itemID); item != nil {
			return item, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memOrderRepo) SaveItem(_ context.Context, _ *domain.OrderItem) error { return nil }

func (r *memOrderRepo) DeleteItem(_ context.Context, _ string) error { return nil }

type memPaymentRepo struct {
	payments map[string]*domain.Payment
	methods  map[string]*domain.PaymentMethod
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{
		payments: make(map[string]*domain.Payment),
		methods:  make(map[string]*domain.PaymentMethod),
	}
}

func (r *memPaymentRepo) CreatePayment(_ context.Context, p *domain.Payment) error {
	r.payments[p.ID] = p
	return nil
}

func (r *memPaymentRepo) GetPayment(_ context.Context, id string) (*domain.Payment, error) {
	p, ok := r.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (r *memPaymentRepo) SavePayment(_ context.Context, p *domain.Payment) error {
	r.payments[p.ID] = p
	return nil
}

func (r *memPaymentRepo) ListPaymentsByOrder(_ context.Context, orderID string) ([]*domain.Payment, error) {
	var out []*domain.Payment
	for _, p := range r.payments {
		if p.OrderID == orderID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPaymentRepo) CreateMethod(_ context.Context, m *domain.PaymentMethod) error {
	r.methods[m.ID] = m
	return nil
}

func (r *memPaymentRepo) GetMethod(_ context.Context, id string) (*domain.PaymentMethod, error) {
	m, ok := r.methods[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (r *memPaymentRepo) SaveMethod(_ context.Context, m *domain.PaymentMethod) error {
	r.methods[m.ID] = m
	return nil
}

func (r *memPaymentRepo) DeleteMethod(_ context.Context, id string) error {
	delete(r.methods, id)
	return nil
}

type memProductRepo struct {
	variations map[string]*domain.ProductVariation
}

func (r *memProductRepo) GetByID(_ context.Context, id string) (*domain.ProductVariation, error) {
	for _, v := range r.variations {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *memProductRepo) GetBySKU(_ context.Context, sku string) (*domain.ProductVariation, error) {
	v, ok := r.variations[sku]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return v, nil
}

func (r *memProductRepo) List(_ context.Context) ([]domain.ProductVariation, error) {
	var out []domain.ProductVariation
	for _, v := range r.variations {
		out = append(out, *v)
	}
	return out, nil
}

func (r *memProductRepo) Upsert(_ context.Context, v domain.ProductVariation) (*domain.ProductVariation, error) {
	r.variations[v.SKU] = &v
	return &v, nil
}

type memCustomerRepo struct {
	customers map[string]*domain.Customer
}

func (r *memCustomerRepo) GetByID(_ context.Context, id string) (*domain.Customer, error) {
	c, ok := r.customers[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return c, nil
}

func (r *memCustomerRepo) SetRemoteCustomerID(_ context.Context, id, remoteID string) error {
	c, ok := r.customers[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.RemoteCustomerID = remoteID
	return nil
}

type okGateway struct{}

func (okGateway) ID() string                { return paymentsvc.StripeGatewayID }
func (okGateway) Mode() domain.GatewayMode  { return domain.GatewayModeTest }
func (okGateway) CreateCustomer(_ context.Context, _, _ string) (*paymentsvc.RemoteCustomer, error) {
	return &paymentsvc.RemoteCustomer{ID: "cus_1"}, nil
}
func (okGateway) RetrieveCustomer(_ context.Context, _ string) (*paymentsvc.RemoteCustomer, error) {
	return &paymentsvc.RemoteCustomer{ID: "cus_1"}, nil
}
func (okGateway) RetrieveToken(_ context.Context, id string) (*paymentsvc.RemoteToken, error) {
	return &paymentsvc.RemoteToken{
		ID:   id,
		Card: &paymentsvc.RemoteCard{ID: "card_1", Brand: "Visa", Last4: "4242", ExpMonth: 12, ExpYear: 2040},
	}, nil
}
func (okGateway) CreateCard(_ context.Context, _, _ string) (*paymentsvc.RemoteCard, error) {
	return &paymentsvc.RemoteCard{ID: "card_1", Brand: "Visa", Last4: "4242", ExpMonth: 12, ExpYear: 2040}, nil
}
func (okGateway) DetachCard(_ context.Context, _, _ string) error { return nil }
func (okGateway) CreateCharge(_ context.Context, in paymentsvc.ChargeInput) (*paymentsvc.RemoteCharge, error) {
	return &paymentsvc.RemoteCharge{ID: "ch_1", Amount: in.AmountMinor, Currency: in.Currency, Status: "succeeded", Captured: in.Capture}, nil
}
func (okGateway) CaptureCharge(_ context.Context, id string, amountMinor int64) (*paymentsvc.RemoteCharge, error) {
	return &paymentsvc.RemoteCharge{ID: id, Amount: amountMinor, Status: "succeeded", Captured: true}, nil
}
func (okGateway) RetrieveCharge(_ context.Context, id string) (*paymentsvc.RemoteCharge, error) {
	return &paymentsvc.RemoteCharge{ID: id, Status: "succeeded"}, nil
}
func (okGateway) CreateRefund(_ context.Context, _ string, amountMinor int64) (*paymentsvc.RemoteRefund, error) {
	return &paymentsvc.RemoteRefund{ID: "re_1", Amount: amountMinor, Status: "succeeded"}, nil
}

func newTestRouter() (*gin.Engine, *memOrderRepo, *memPaymentRepo) {
	gin.SetMode(gin.TestMode)
	logger := log.New(io.Discard, "", 0)

	orderRepo := newMemOrderRepo()
	paymentRepo := newMemPaymentRepo()
	productRepo := &memProductRepo{variations: map[string]*domain.ProductVariation{
		"ebook-1": {ID: "v1", SKU: "ebook-1", Title: "Field Guide", Price: domain.MustNewPrice("12.50", "USD")},
	}}
	customerRepo := &memCustomerRepo{customers: map[string]*domain.Customer{
		"cust-1": {ID: "cust-1", Email: "jane@example.com"},
	}}

	sessions := cartsvc.NewSessionStore()
	provider := cartsvc.NewProvider(orderRepo, sessions)
	manager := cartsvc.NewManager(orderRepo, nil)
	flow := checkoutsvc.NewFlow(orderRepo, sessions)
	process := paymentsvc.NewProcess(okGateway{}, orderRepo, paymentRepo, customerRepo, provider, true, logger)

	router := buildRouter(logger, nil, Deps{
		Carts:       provider,
		CartManager: manager,
		Checkout:    flow,
		Payments:    process,
		OrderRepo:   orderRepo,
		PaymentRepo: paymentRepo,
		ProductRepo: productRepo,
	})
	return router, orderRepo, paymentRepo
}

func doJSON(router *gin.Engine, method, path string, headers map[string]string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

var anon = map[string]string{"X-Session-ID": "sess-1"}

func TestIdentityRequired(t *testing.T) {
	router, _, _ := newTestRouter()

	rec := doJSON(router, http.MethodGet, "/cart", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity headers, got %d", rec.Code)
	}
}

func TestCartLifecycle(t *testing.T) {
	router, _, _ := newTestRouter()

	// No cart yet.
	rec := doJSON(router, http.MethodGet, "/cart", anon, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before the first add, got %d", rec.Code)
	}

	// Adding an item creates the cart on the fly.
	rec = doJSON(router, http.MethodPost, "/cart/items", anon, gin.H{"sku": "ebook-1", "quantity": 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var cart domain.Order
	if err := json.Unmarshal(rec.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decoding cart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 2 {
		t.Fatalf("unexpected cart contents: %+v", cart.Items)
	}
	if cart.TotalPrice.Amount() != "25" {
		t.Fatalf("unexpected total: %s", cart.TotalPrice.Amount())
	}

	// Adding the same sku again combines.
	rec = doJSON(router, http.MethodPost, "/cart/items", anon, gin.H{"sku": "ebook-1", "quantity": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decoding cart: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("expected a combined line, got %+v", cart.Items)
	}

	itemID := cart.Items[0].ID
	rec = doJSON(router, http.MethodPatch, "/cart/items/"+itemID, anon, gin.H{"quantity": 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decoding cart: %v", err)
	}
	if cart.TotalPrice.Amount() != "12.5" {
		t.Fatalf("unexpected total after update: %s", cart.TotalPrice.Amount())
	}

	rec = doJSON(router, http.MethodDelete, "/cart/items/"+itemID, anon, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &cart); err != nil {
		t.Fatalf("decoding cart: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected an empty cart, got %+v", cart.Items)
	}
}

func TestAddUnknownSKU(t *testing.T) {
	router, _, _ := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/cart/items", anon, gin.H{"sku": "nope"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown sku, got %d", rec.Code)
	}
}

func TestCreateCartTwiceConflicts(t *testing.T) {
	router, _, _ := newTestRouter()

	if rec := doJSON(router, http.MethodPost, "/cart", anon, nil); rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if rec := doJSON(router, http.MethodPost, "/cart", anon, nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for a second cart, got %d", rec.Code)
	}
}

func TestCheckoutFlowOverHTTP(t *testing.T) {
	router, orderRepo, paymentRepo := newTestRouter()

	rec := doJSON(router, http.MethodPost, "/cart/items", anon, gin.H{"sku": "ebook-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("seeding the cart: %d", rec.Code)
	}

	// Billing without an email and address is rejected and the customer stays
	// on the cart step.
	rec = doJSON(router, http.MethodPost, "/checkout/billing", anon, gin.H{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty billing, got %d: %s", rec.Code, rec.Body.String())
	}

	// Placing before billing is rejected.
	rec = doJSON(router, http.MethodPost, "/checkout/place-order", anon, gin.H{"token": "tok_visa"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 before billing, got %d", rec.Code)
	}

	rec = doJSON(router, http.MethodGet, "/checkout", anon, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(router, http.MethodPost, "/checkout/billing", anon, gin.H{
		"email":   "guest@example.com",
		"address": gin.H{"line1": "12 High St", "city": "Springfield", "countryCode": "US"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(router, http.MethodPost, "/checkout/place-order", anon, gin.H{"token": "tok_visa"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var placed struct {
		Order   domain.Order   `json:"order"`
		Payment domain.Payment `json:"payment"`
		Step    string         `json:"step"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &placed); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if placed.Order.State != domain.OrderStateCompleted || placed.Order.Cart {
		t.Fatalf("unexpected order after placement: state=%s cart=%v", placed.Order.State, placed.Order.Cart)
	}
	if placed.Payment.State != domain.PaymentStateCompleted {
		t.Fatalf("unexpected payment state: %s", placed.Payment.State)
	}
	if placed.Step != domain.CheckoutStepCompleted {
		t.Fatalf("unexpected step: %s", placed.Step)
	}
	if len(paymentRepo.payments) != 1 {
		t.Fatalf("expected the payment persisted")
	}

	// The placed order stays visible to the session, a fresh cart is possible.
	rec = doJSON(router, http.MethodGet, "/checkout?order="+placed.Order.ID, anon, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected the placed order reachable, got %d", rec.Code)
	}
	rec = doJSON(router, http.MethodGet, "/checkout?order="+placed.Order.ID, map[string]string{"X-Session-ID": "sess-2"}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected another session forbidden, got %d", rec.Code)
	}
	if rec := doJSON(router, http.MethodPost, "/cart", anon, nil); rec.Code != http.StatusCreated {
		t.Fatalf("expected a fresh cart after placement, got %d", rec.Code)
	}

	stored, err := orderRepo.GetByID(context.Background(), placed.Order.ID)
	if err != nil {
		t.Fatalf("loading the placed order: %v", err)
	}
	if stored.Cart || stored.CompletedAt == nil {
		t.Fatalf("expected a finalized order, got %+v", stored)
	}
}

func TestEmptyCartCheckoutDenied(t *testing.T) {
	router, _, _ := newTestRouter()

	if rec := doJSON(router, http.MethodPost, "/cart", anon, nil); rec.Code != http.StatusCreated {
		t.Fatalf("creating cart failed")
	}
	rec := doJSON(router, http.MethodGet, "/checkout", anon, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for an empty cart, got %d", rec.Code)
	}
}
