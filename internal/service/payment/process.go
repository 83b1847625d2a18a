package payment

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"digitalstore/internal/domain"
)

// Authorizations lapse at the gateway after roughly a week; treat them as
// expired slightly earlier.
const authorizationValidity = 6 * 24 * time.Hour

// Process charges orders and manages the lifecycle of the resulting
// payments: authorization, capture, void and refund.
type Process struct {
	gateway   Gateway
	orders    orderRepo
	payments  paymentRepo
	customers customerRepo
	carts     cartFinalizer
	rounder   *domain.Rounder
	logger    *log.Logger
	capture   bool
	now       func() time.Time
}

type orderRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	Save(ctx context.Context, o *domain.Order) error
}

type paymentRepo interface {
	CreatePayment(ctx context.Context, p *domain.Payment) error
	SavePayment(ctx context.Context, p *domain.Payment) error
	CreateMethod(ctx context.Context, m *domain.PaymentMethod) error
	GetMethod(ctx context.Context, id string) (*domain.PaymentMethod, error)
	DeleteMethod(ctx context.Context, id string) error
}

type customerRepo interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	SetRemoteCustomerID(ctx context.Context, id, remoteID string) error
}

type cartFinalizer interface {
	FinalizeCart(ctx context.Context, cart *domain.Order, sessionID string, save bool) error
}

// NewProcess wires the payment service. With capture set charges are settled
// immediately; otherwise they are authorized and captured later.
func NewProcess(gateway Gateway, orders orderRepo, payments paymentRepo, customers customerRepo, carts cartFinalizer, capture bool, logger *log.Logger) *Process {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Process{
		gateway:   gateway,
		orders:    orders,
		payments:  payments,
		customers: customers,
		carts:     carts,
		rounder:   domain.NewRounder(),
		logger:    logger,
		capture:   capture,
		now:       time.Now,
	}
}

// PlaceOrder charges the order's outstanding balance with the given card
// token and finalizes the cart. Whatever goes wrong internally, the caller
// only ever sees domain.ErrPaymentFailed; the detail is logged.
func (s *Process) PlaceOrder(ctx context.Context, order *domain.Order, cardToken, sessionID string) (*domain.Payment, error) {
	payment, err := s.placeOrder(ctx, order, cardToken, sessionID)
	if err != nil {
		s.logger.Printf("payment: place order %s failed: %v", order.ID, err)
		return nil, domain.ErrPaymentFailed
	}
	return payment, nil
}

func (s *Process) placeOrder(ctx context.Context, order *domain.Order, cardToken, sessionID string) (*domain.Payment, error) {
	if order.State != domain.OrderStateDraft {
		return nil, fmt.Errorf("order %s is not a draft", order.ID)
	}
	if !order.HasItems() {
		return nil, fmt.Errorf("order %s is empty", order.ID)
	}
	balance := order.Balance()
	if balance.IsEmpty() || balance.IsZero() || balance.IsNegative() {
		return nil, fmt.Errorf("order %s has no outstanding balance", order.ID)
	}

	if order.Email == "" && !order.IsAnonymous() {
		customer, err := s.customers.GetByID(ctx, *order.CustomerID)
		if err != nil {
			return nil, fmt.Errorf("loading customer: %w", err)
		}
		order.Email = customer.Email
	}

	method, err := s.buildPaymentMethod(ctx, order.CustomerID, cardToken, order.BillingDetails)
	if err != nil {
		return nil, err
	}

	amount, err := s.rounder.Round(balance, domain.RoundHalfUp)
	if err != nil {
		return nil, err
	}
	now := s.now()
	payment := domain.NewPayment(order.ID, s.gateway.ID(), s.gateway.Mode(), amount, now)

	// Nothing is persisted until the gateway accepts the charge, so a
	// declined attempt leaves no trace beyond the log.
	if err := s.charge(ctx, payment, method, s.capture); err != nil {
		return nil, err
	}
	if err := s.payments.CreateMethod(ctx, method); err != nil {
		return nil, err
	}
	if err := s.payments.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}

	if payment.State == domain.PaymentStateCompleted {
		paid, err := order.GetTotalPaid().Add(payment.Amount)
		if err != nil {
			return nil, err
		}
		order.TotalPaid = paid
	}
	order.PlacedAt = &now
	if order.IsPaid() {
		order.SetState(domain.OrderStateCompleted, now)
	} else {
		order.SetState(domain.OrderStatePendingPayment, now)
	}
	order.CheckoutStep = domain.CheckoutStepCompleted

	if err := s.carts.FinalizeCart(ctx, order, sessionID, false); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}
	return payment, nil
}

// CreatePaymentMethod turns a single-use card token into a stored payment
// method. For authenticated owners the card is attached to their gateway
// customer record, creating it on first use, and becomes reusable; for
// anonymous shoppers the token itself is kept for a single charge.
func (s *Process) CreatePaymentMethod(ctx context.Context, ownerID *string, tokenID string, billing *domain.Address) (*domain.PaymentMethod, error) {
	method, err := s.buildPaymentMethod(ctx, ownerID, tokenID, billing)
	if err != nil {
		return nil, err
	}
	if err := s.payments.CreateMethod(ctx, method); err != nil {
		return nil, err
	}
	return method, nil
}

func (s *Process) buildPaymentMethod(ctx context.Context, ownerID *string, tokenID string, billing *domain.Address) (*domain.PaymentMethod, error) {
	token, err := s.gateway.RetrieveToken(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.Card == nil {
		return nil, fmt.Errorf("%w: token %s carries no card", domain.ErrGateway, tokenID)
	}
	brand, err := domain.MapCardBrand(token.Card.Brand)
	if err != nil {
		return nil, err
	}

	if ownerID != nil && *ownerID == "" {
		ownerID = nil
	}
	method := domain.NewPaymentMethod(ownerID, s.gateway.ID(), s.gateway.Mode(), billing, s.now())
	method.CardBrand = brand
	method.CardLast4 = token.Card.Last4
	method.CardExpMonth = token.Card.ExpMonth
	method.CardExpYear = token.Card.ExpYear
	expires := domain.CardExpiration(token.Card.ExpMonth, token.Card.ExpYear)
	method.ExpiresAt = &expires

	if ownerID != nil {
		remoteID, err := s.remoteCustomerID(ctx, *ownerID)
		if err != nil {
			return nil, err
		}
		card, err := s.gateway.CreateCard(ctx, remoteID, token.ID)
		if err != nil {
			return nil, err
		}
		method.RemoteID = card.ID
		method.Reusable = true
	} else {
		method.RemoteID = token.ID
	}
	return method, nil
}

// DeletePaymentMethod removes a stored method, detaching the card from the
// gateway customer first. A failed detach does not keep the local record
// alive.
func (s *Process) DeletePaymentMethod(ctx context.Context, methodID string) error {
	method, err := s.payments.GetMethod(ctx, methodID)
	if err != nil {
		return err
	}
	if method.Reusable && method.OwnerID != nil {
		customer, err := s.customers.GetByID(ctx, *method.OwnerID)
		if err == nil && customer.RemoteCustomerID != "" {
			if err := s.gateway.DetachCard(ctx, customer.RemoteCustomerID, method.RemoteID); err != nil {
				s.logger.Printf("payment: detach card for method %s: %v", method.ID, err)
			}
		}
	}
	return s.payments.DeleteMethod(ctx, methodID)
}

// CreatePayment charges the payment's amount against the method. With
// capture the payment completes immediately; otherwise it holds an
// authorization that expires if never captured.
func (s *Process) CreatePayment(ctx context.Context, payment *domain.Payment, method *domain.PaymentMethod, capture bool) error {
	if err := s.charge(ctx, payment, method, capture); err != nil {
		return err
	}
	return s.payments.CreatePayment(ctx, payment)
}

func (s *Process) charge(ctx context.Context, payment *domain.Payment, method *domain.PaymentMethod, capture bool) error {
	if payment.State != domain.PaymentStateNew {
		return domain.ErrInvalidPaymentState
	}
	if method.GatewayMode != s.gateway.Mode() {
		return domain.ErrGatewayModeMismatch
	}
	now := s.now()
	if method.IsExpired(now) {
		return fmt.Errorf("%w: payment method expired", domain.ErrHardDecline)
	}

	minor, err := s.toMinorUnits(payment.Amount)
	if err != nil {
		return err
	}
	customerID, source, err := s.chargeTarget(ctx, method)
	if err != nil {
		return err
	}
	charge, err := s.gateway.CreateCharge(ctx, ChargeInput{
		CustomerID:  customerID,
		Source:      source,
		AmountMinor: minor,
		Currency:    payment.Amount.CurrencyCode(),
		Capture:     capture,
		Description: "Order " + payment.OrderID,
	})
	if err != nil {
		return err
	}

	payment.PaymentMethodID = method.ID
	payment.RemoteID = charge.ID
	payment.RemoteState = charge.Status
	if capture {
		payment.State = domain.PaymentStateCompleted
		payment.CompletedAt = &now
	} else {
		payment.State = domain.PaymentStateAuthorization
		payment.AuthorizedAt = &now
		expires := now.Add(authorizationValidity)
		payment.ExpiresAt = &expires
	}
	return nil
}

// CapturePayment settles an authorized payment. An empty amount captures the
// full authorization; a partial amount becomes the payment's new amount.
func (s *Process) CapturePayment(ctx context.Context, payment *domain.Payment, amount domain.Price) error {
	if payment.State != domain.PaymentStateAuthorization {
		return domain.ErrInvalidPaymentState
	}
	now := s.now()
	if payment.IsExpired(now) {
		return fmt.Errorf("%w: authorization expired", domain.ErrInvalidPaymentState)
	}
	if amount.IsEmpty() {
		amount = payment.Amount
	}
	if over, err := amount.GreaterThan(payment.Amount); err != nil {
		return err
	} else if over {
		return fmt.Errorf("%w: capture exceeds authorization", domain.ErrInvalidPaymentState)
	}

	minor, err := s.toMinorUnits(amount)
	if err != nil {
		return err
	}
	charge, err := s.gateway.CaptureCharge(ctx, payment.RemoteID, minor)
	if err != nil {
		return err
	}

	payment.Amount = amount
	payment.RemoteState = charge.Status
	payment.State = domain.PaymentStateCompleted
	payment.CompletedAt = &now
	payment.ExpiresAt = nil
	if err := s.payments.SavePayment(ctx, payment); err != nil {
		return err
	}
	return s.adjustOrderPaid(ctx, payment.OrderID, amount, false)
}

// VoidPayment releases an authorization that will not be captured.
func (s *Process) VoidPayment(ctx context.Context, payment *domain.Payment) error {
	if payment.State != domain.PaymentStateAuthorization {
		return domain.ErrInvalidPaymentState
	}
	// Stripe releases an uncaptured charge through a refund.
	if _, err := s.gateway.CreateRefund(ctx, payment.RemoteID, 0); err != nil {
		return err
	}
	payment.State = domain.PaymentStateAuthVoided
	payment.ExpiresAt = nil
	return s.payments.SavePayment(ctx, payment)
}

// RefundPayment returns money from a completed payment. An empty amount
// refunds the remaining balance.
func (s *Process) RefundPayment(ctx context.Context, payment *domain.Payment, amount domain.Price) error {
	if payment.State != domain.PaymentStateCompleted && payment.State != domain.PaymentStatePartiallyRefunded {
		return domain.ErrInvalidPaymentState
	}
	balance := payment.Balance()
	if amount.IsEmpty() {
		amount = balance
	}
	if over, err := amount.GreaterThan(balance); err != nil {
		return err
	} else if over {
		return domain.ErrRefundExceedsBalance
	}

	minor, err := s.toMinorUnits(amount)
	if err != nil {
		return err
	}
	if _, err := s.gateway.CreateRefund(ctx, payment.RemoteID, minor); err != nil {
		return err
	}

	refunded, err := payment.GetRefundedAmount().Add(amount)
	if err != nil {
		return err
	}
	payment.RefundedAmount = refunded
	if refunded.Equal(payment.Amount) {
		payment.State = domain.PaymentStateRefunded
	} else {
		payment.State = domain.PaymentStatePartiallyRefunded
	}
	if err := s.payments.SavePayment(ctx, payment); err != nil {
		return err
	}
	return s.adjustOrderPaid(ctx, payment.OrderID, amount, true)
}

// remoteCustomerID resolves the gateway customer record for a store
// customer, creating it on first use.
func (s *Process) remoteCustomerID(ctx context.Context, customerID string) (string, error) {
	customer, err := s.customers.GetByID(ctx, customerID)
	if err != nil {
		return "", err
	}
	if customer.RemoteCustomerID != "" {
		return customer.RemoteCustomerID, nil
	}
	remote, err := s.gateway.CreateCustomer(ctx, customer.Email, "Customer "+customer.ID)
	if err != nil {
		return "", err
	}
	if err := s.customers.SetRemoteCustomerID(ctx, customer.ID, remote.ID); err != nil {
		return "", err
	}
	return remote.ID, nil
}

func (s *Process) chargeTarget(ctx context.Context, method *domain.PaymentMethod) (customerID, source string, err error) {
	if method.Reusable && method.OwnerID != nil {
		remoteID, err := s.remoteCustomerID(ctx, *method.OwnerID)
		if err != nil {
			return "", "", err
		}
		return remoteID, method.RemoteID, nil
	}
	return "", method.RemoteID, nil
}

func (s *Process) adjustOrderPaid(ctx context.Context, orderID string, amount domain.Price, refund bool) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	paid := order.GetTotalPaid()
	if refund {
		paid, err = paid.Subtract(amount)
	} else {
		paid, err = paid.Add(amount)
	}
	if err != nil {
		return err
	}
	order.TotalPaid = paid
	return s.orders.Save(ctx, order)
}

func (s *Process) toMinorUnits(p domain.Price) (int64, error) {
	currency, err := domain.LookupCurrency(p.CurrencyCode())
	if err != nil {
		return 0, err
	}
	return p.Decimal().Shift(currency.FractionDigits).Round(0).IntPart(), nil
}
