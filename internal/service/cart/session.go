package cart

import "sync"

// Session buckets. Active holds the ids of carts an anonymous visitor is
// still shopping with; completed holds ids of carts they have placed, which
// keeps the order-received page reachable after checkout.
const (
	SessionActive    = "active"
	SessionCompleted = "completed"
)

// SessionStore tracks which cart ids belong to an anonymous session.
// Authenticated customers are resolved through the order table instead.
type SessionStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string][]string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		buckets: make(map[string]map[string][]string),
	}
}

// GetCartIDs returns the cart ids recorded for the session in the given
// bucket, oldest first.
func (s *SessionStore) GetCartIDs(sessionID, bucket string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.buckets[sessionID][bucket]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

// AddCartID records a cart id for the session. Adding an id twice is a no-op.
func (s *SessionStore) AddCartID(sessionID, cartID, bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasLocked(sessionID, cartID, bucket) {
		return
	}
	if s.buckets[sessionID] == nil {
		s.buckets[sessionID] = make(map[string][]string)
	}
	s.buckets[sessionID][bucket] = append(s.buckets[sessionID][bucket], cartID)
}

// HasCartID reports whether the session holds the cart id in the bucket.
func (s *SessionStore) HasCartID(sessionID, cartID, bucket string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasLocked(sessionID, cartID, bucket)
}

// DeleteCartID removes the cart id from the session's bucket.
func (s *SessionStore) DeleteCartID(sessionID, cartID, bucket string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.buckets[sessionID][bucket]
	for i, id := range ids {
		if id == cartID {
			s.buckets[sessionID][bucket] = append(ids[:i], ids[i+1:]...)
			return
		}
	}
}

func (s *SessionStore) hasLocked(sessionID, cartID, bucket string) bool {
	for _, id := range s.buckets[sessionID][bucket] {
		if id == cartID {
			return true
		}
	}
	return false
}
