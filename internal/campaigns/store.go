package campaigns

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/jenymoen/Pimify-Firebase-sub007/pkg/pagination"
)

// Store keeps campaigns. Save inserts or replaces by id.
type Store interface {
	Save(ctx context.Context, c *Campaign) error
	Get(ctx context.Context, id uuid.UUID) (*Campaign, error)
	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Campaign], error)
}

// MemoryStore keeps campaigns in process memory.
type MemoryStore struct {
	mu         sync.RWMutex
	campaigns  map[uuid.UUID]*Campaign
	pagination pagination.Config
}

func NewMemoryStore(pagination pagination.Config) *MemoryStore {
	return &MemoryStore{
		campaigns:  make(map[uuid.UUID]*Campaign),
		pagination: pagination,
	}
}

func (s *MemoryStore) Save(_ context.Context, c *Campaign) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.campaigns[c.ID] = c.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, ErrNotFound
	}
	return c.Clone(), nil
}

// List returns campaigns newest first using offset pagination.
func (s *MemoryStore) List(
	_ context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Campaign], error) {
	page.Normalize(s.pagination)

	s.mu.RLock()
	matched := make([]Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		if filters.Status != nil && c.Status != *filters.Status {
			continue
		}
		if filters.CreatedBy != nil && c.CreatedBy != *filters.CreatedBy {
			continue
		}
		matched = append(matched, *c.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b Campaign) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID.String(), a.ID.String())
	})

	start := min(page.Offset(), len(matched))
	end := min(start+page.PageSize, len(matched))
	result := pagination.NewPageResult(matched[start:end], len(matched), page.Page, page.PageSize)
	return &result, nil
}
