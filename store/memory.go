package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crushlink/crushpay/types"
)

// MemoryStore is a mutex-guarded in-memory Store. It suits tests and
// single-instance demo deployments; production uses PostgresStore.
type MemoryStore struct {
	mu    sync.Mutex
	links map[string]types.CrushLink
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{links: make(map[string]types.CrushLink)}
}

// Create inserts a link, assigning an ID and pending status when unset.
func (s *MemoryStore) Create(_ context.Context, link *types.CrushLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if link.ID == "" {
		link.ID = uuid.NewString()
	}
	if link.Status == "" {
		link.Status = types.StatusPending
	}
	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now().UTC()
	}
	if _, exists := s.links[link.ID]; exists {
		return fmt.Errorf("link %s already exists", link.ID)
	}
	s.links[link.ID] = *link
	return nil
}

func (s *MemoryStore) Get(_ context.Context, linkID string) (*types.CrushLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[linkID]
	if !ok {
		return nil, ErrNotFound
	}
	out := link
	return &out, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, linkID string, status types.LinkStatus, txHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, ok := s.links[linkID]
	if !ok {
		return ErrNotFound
	}
	link.Status = status
	if txHash != "" {
		link.PaymentTxHash = txHash
	}
	s.links[linkID] = link
	return nil
}
