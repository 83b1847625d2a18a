package cart

import "digitalstore/internal/domain"

// ComparisonField extracts a value two order items must share to be
// combined into one line.
type ComparisonField func(item *domain.OrderItem) string

// Matcher finds order items that an incoming item can be combined with
// instead of creating a duplicate line. By default only the purchasable
// reference is compared; extra fields narrow the match further.
type Matcher struct {
	fields []ComparisonField
}

func NewMatcher(extraFields ...ComparisonField) *Matcher {
	fields := append([]ComparisonField{
		func(item *domain.OrderItem) string { return item.PurchasedEntityID },
	}, extraFields...)
	return &Matcher{fields: fields}
}

// Match returns the first combinable item among candidates, or nil. Items
// without a purchasable reference are never combined.
func (m *Matcher) Match(item *domain.OrderItem, candidates []*domain.OrderItem) *domain.OrderItem {
	matches := m.MatchAll(item, candidates)
	if len(matches) == 0 {
		return nil
	}
	return matches[0]
}

// MatchAll returns every candidate whose comparison fields all equal the
// given item's, in candidate order.
func (m *Matcher) MatchAll(item *domain.OrderItem, candidates []*domain.OrderItem) []*domain.OrderItem {
	if !item.HasPurchasedEntity() {
		return nil
	}
	var matches []*domain.OrderItem
	for _, candidate := range candidates {
		if candidate.ID == item.ID {
			continue
		}
		if m.equal(item, candidate) {
			matches = append(matches, candidate)
		}
	}
	return matches
}

func (m *Matcher) equal(a, b *domain.OrderItem) bool {
	for _, field := range m.fields {
		if field(a) != field(b) {
			return false
		}
	}
	return true
}
