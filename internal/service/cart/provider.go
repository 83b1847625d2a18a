package cart

import (
	"context"
	"sync"
	"time"

	"digitalstore/internal/domain"
)

// Provider resolves the cart(s) belonging to a shopper. Authenticated
// customers are resolved through the order table; anonymous visitors through
// the ids recorded in their session. Resolved ids are cached per shopper
// until ClearCaches or a mutation through this provider.
type Provider struct {
	repo     providerRepo
	sessions *SessionStore
	now      func() time.Time

	mu      sync.Mutex
	cartIDs map[string][]string
}

type providerRepo interface {
	Create(ctx context.Context, o *domain.Order) error
	LoadMultiple(ctx context.Context, ids []string) ([]*domain.Order, error)
	ActiveCartIDs(ctx context.Context, customerID string) ([]string, error)
	Save(ctx context.Context, o *domain.Order) error
}

func NewProvider(repo providerRepo, sessions *SessionStore) *Provider {
	if sessions == nil {
		sessions = NewSessionStore()
	}
	return &Provider{
		repo:     repo,
		sessions: sessions,
		now:      time.Now,
		cartIDs:  make(map[string][]string),
	}
}

// CreateCart creates a new draft cart for the shopper. A shopper with an
// eligible cart already gets domain.ErrDuplicateCart; the database enforces
// the same rule for authenticated customers.
func (p *Provider) CreateCart(ctx context.Context, customerID, sessionID string) (*domain.Order, error) {
	existing, err := p.GetCartID(ctx, customerID, sessionID)
	if err != nil {
		return nil, err
	}
	if existing != "" {
		return nil, domain.ErrDuplicateCart
	}

	var owner *string
	if customerID != "" {
		owner = &customerID
	}
	cart := domain.NewOrder(owner, p.now())
	if err := p.repo.Create(ctx, cart); err != nil {
		return nil, err
	}
	if customerID == "" && sessionID != "" {
		p.sessions.AddCartID(sessionID, cart.ID, SessionActive)
	}
	p.invalidate(customerID, sessionID)
	return cart, nil
}

// GetCart returns the shopper's current cart, or domain.ErrNotFound.
func (p *Provider) GetCart(ctx context.Context, customerID, sessionID string) (*domain.Order, error) {
	carts, err := p.GetCarts(ctx, customerID, sessionID)
	if err != nil {
		return nil, err
	}
	if len(carts) == 0 {
		return nil, domain.ErrNotFound
	}
	return carts[0], nil
}

// GetCartID returns the id of the shopper's current cart, or "".
func (p *Provider) GetCartID(ctx context.Context, customerID, sessionID string) (string, error) {
	ids, err := p.GetCartIDs(ctx, customerID, sessionID)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", nil
	}
	return ids[0], nil
}

// GetCarts returns all of the shopper's eligible carts, newest first.
func (p *Provider) GetCarts(ctx context.Context, customerID, sessionID string) ([]*domain.Order, error) {
	ids, err := p.GetCartIDs(ctx, customerID, sessionID)
	if err != nil {
		return nil, err
	}
	return p.repo.LoadMultiple(ctx, ids)
}

// GetCartIDs returns the ids of all of the shopper's eligible carts.
func (p *Provider) GetCartIDs(ctx context.Context, customerID, sessionID string) ([]string, error) {
	key := identityKey(customerID, sessionID)

	p.mu.Lock()
	cached, ok := p.cartIDs[key]
	p.mu.Unlock()
	if ok {
		return cached, nil
	}

	ids, err := p.loadEligibleCartIDs(ctx, customerID, sessionID)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.cartIDs[key] = ids
	p.mu.Unlock()
	return ids, nil
}

// FinalizeCart turns the cart into a placed order: the cart flag is dropped
// so the shopper gets a fresh cart next time. For anonymous shoppers the id
// moves to the session's completed bucket so the order stays visible.
func (p *Provider) FinalizeCart(ctx context.Context, cart *domain.Order, sessionID string, save bool) error {
	cart.Cart = false
	if save {
		if err := p.repo.Save(ctx, cart); err != nil {
			return err
		}
	}
	if cart.IsAnonymous() && sessionID != "" {
		p.sessions.DeleteCartID(sessionID, cart.ID, SessionActive)
		p.sessions.AddCartID(sessionID, cart.ID, SessionCompleted)
	}
	var customerID string
	if cart.CustomerID != nil {
		customerID = *cart.CustomerID
	}
	p.invalidate(customerID, sessionID)
	return nil
}

// ClearCaches drops all cached cart id resolutions.
func (p *Provider) ClearCaches() {
	p.mu.Lock()
	p.cartIDs = make(map[string][]string)
	p.mu.Unlock()
}

func (p *Provider) loadEligibleCartIDs(ctx context.Context, customerID, sessionID string) ([]string, error) {
	if customerID != "" {
		ids, err := p.repo.ActiveCartIDs(ctx, customerID)
		if err != nil {
			return nil, err
		}
		carts, err := p.repo.LoadMultiple(ctx, ids)
		if err != nil {
			return nil, err
		}
		var eligible []string
		for _, cart := range carts {
			if cart.State == domain.OrderStateDraft && !cart.Locked {
				eligible = append(eligible, cart.ID)
			}
		}
		return eligible, nil
	}

	if sessionID == "" {
		return nil, nil
	}
	sessionIDs := p.sessions.GetCartIDs(sessionID, SessionActive)
	carts, err := p.repo.LoadMultiple(ctx, sessionIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*domain.Order, len(carts))
	for _, cart := range carts {
		byID[cart.ID] = cart
	}
	var eligible []string
	for _, id := range sessionIDs {
		cart := byID[id]
		switch {
		case cart == nil, !cart.IsAnonymous(), !cart.Cart, cart.State != domain.OrderStateDraft:
			// The session no longer has a claim on this order.
			p.sessions.DeleteCartID(sessionID, id, SessionActive)
		case cart.Locked:
			// Still the session's cart, just unusable while locked.
		default:
			eligible = append(eligible, id)
		}
	}
	return eligible, nil
}

func (p *Provider) invalidate(customerID, sessionID string) {
	p.mu.Lock()
	delete(p.cartIDs, identityKey(customerID, sessionID))
	p.mu.Unlock()
}

func identityKey(customerID, sessionID string) string {
	if customerID != "" {
		return "customer:" + customerID
	}
	return "session:" + sessionID
}
