package receipts

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	docType string
	orderID int64
}

// MemoryStore keeps at most limit receipts and evicts the one that arrived
// first when full.
type MemoryStore struct {
	mu    sync.Mutex
	limit int
	items map[memoryKey]*Receipt
	order []memoryKey
}

func NewMemoryStore(limit int) *MemoryStore {
	if limit < 1 {
		limit = 1
	}
	return &MemoryStore{
		limit: limit,
		items: make(map[memoryKey]*Receipt),
	}
}

func (s *MemoryStore) Save(_ context.Context, r Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := memoryKey{r.DocumentType, r.OrderID}

	if existing, ok := s.items[key]; ok {
		r.ReceivedAt = existing.ReceivedAt
		r.DeliveryCount = existing.DeliveryCount + 1
		r.UpdatedAt = now
		s.items[key] = &r
		return nil
	}

	if len(s.order) >= s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.items, oldest)
	}

	r.ReceivedAt = now
	r.UpdatedAt = now
	r.DeliveryCount = 1
	s.items[key] = &r
	s.order = append(s.order, key)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, docType string, orderID int64) (*Receipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.items[memoryKey{docType, orderID}]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
