package checkout

import (
	"context"
	"strings"

	"digitalstore/internal/domain"
	"digitalstore/internal/service/cart"
)

// Flow walks an order through checkout: cart review, payment, order
// received. The current step is stored on the order so the customer resumes
// where they left off.
type Flow struct {
	repo     flowRepo
	sessions sessionReader
}

type flowRepo interface {
	Save(ctx context.Context, o *domain.Order) error
}

type sessionReader interface {
	HasCartID(sessionID, cartID, bucket string) bool
}

func NewFlow(repo flowRepo, sessions sessionReader) *Flow {
	return &Flow{repo: repo, sessions: sessions}
}

var steps = []string{
	domain.CheckoutStepCart,
	domain.CheckoutStepPayment,
	domain.CheckoutStepCompleted,
}

// Steps returns the flow's step ids in visit order.
func (f *Flow) Steps() []string {
	out := make([]string, len(steps))
	copy(out, steps)
	return out
}

// StepID returns the order's current checkout step. Orders that left the
// draft state are always on the final step.
func (f *Flow) StepID(o *domain.Order) string {
	if o.State != domain.OrderStateDraft {
		return domain.CheckoutStepCompleted
	}
	if stepIndex(o.CheckoutStep) < 0 {
		return domain.CheckoutStepCart
	}
	return o.CheckoutStep
}

// ResolveStep returns the step to serve and whether the caller asked for a
// different one. The order's stored progress is the only authority: any
// mismatching request, earlier or later, redirects back to the current step.
func (f *Flow) ResolveStep(o *domain.Order, requested string) (string, bool) {
	current := f.StepID(o)
	requested = strings.TrimSpace(requested)
	return current, requested != "" && requested != current
}

// CheckAccess reports whether the caller may check out the order. Cancelled
// and empty orders are never accessible. Authenticated callers must own the
// order; anonymous callers must hold its id in their session.
func (f *Flow) CheckAccess(o *domain.Order, customerID, sessionID string) error {
	if o.State == domain.OrderStateCancelled {
		return domain.ErrAccessDenied
	}
	if !o.HasItems() {
		return domain.ErrAccessDenied
	}
	if customerID != "" {
		if o.CustomerID == nil || *o.CustomerID != customerID {
			return domain.ErrAccessDenied
		}
		return nil
	}
	if !o.IsAnonymous() || sessionID == "" {
		return domain.ErrAccessDenied
	}
	if f.sessions.HasCartID(sessionID, o.ID, cart.SessionActive) ||
		f.sessions.HasCartID(sessionID, o.ID, cart.SessionCompleted) {
		return nil
	}
	return domain.ErrAccessDenied
}

// SetBilling records the customer's contact email and billing address on the
// order. Only a submission that leaves the order with both advances checkout
// to the payment step; an incomplete one changes nothing.
func (f *Flow) SetBilling(ctx context.Context, o *domain.Order, email string, address domain.Address) error {
	if o.State != domain.OrderStateDraft {
		return domain.ErrAccessDenied
	}
	email = strings.TrimSpace(email)
	if email == "" {
		email = o.Email
	}
	billing := o.BillingDetails
	if !address.IsEmpty() {
		billing = &address
	}
	if email == "" || billing == nil {
		return domain.ErrInvalidBilling
	}
	o.Email = email
	o.BillingDetails = billing
	o.CheckoutStep = domain.CheckoutStepPayment
	return f.repo.Save(ctx, o)
}

// SetStep stores the step the customer is on.
func (f *Flow) SetStep(ctx context.Context, o *domain.Order, step string) error {
	if stepIndex(step) < 0 {
		return domain.ErrNotFound
	}
	o.CheckoutStep = step
	return f.repo.Save(ctx, o)
}

func stepIndex(step string) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return -1
}
