package store

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/greenhouse-labs/catalog-bff/internal/catalog"
)

// MemoryStore keeps the catalog in process memory. ReplaceAll swaps the
// whole snapshot under the write lock.
type MemoryStore struct {
	mu    sync.RWMutex
	items []catalog.CatalogItem
	byID  map[string]int
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string]int{}}
}

// ReplaceAll implements Store
func (s *MemoryStore) ReplaceAll(ctx context.Context, items []catalog.CatalogItem) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	kept, rejected := prepare(items)

	slices.SortStableFunc(kept, compareItems)
	byID := make(map[string]int, len(kept))
	for i, item := range kept {
		byID[item.ID] = i
	}

	s.mu.Lock()
	s.items = kept
	s.byID = byID
	s.mu.Unlock()

	return len(kept), partialError(rejected)
}

// Find implements Store
func (s *MemoryStore) Find(ctx context.Context, filter catalog.Filter, page, pageSize int) (*catalog.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, pageSize = normalizePage(page, pageSize)
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := &catalog.Page{Items: []catalog.CatalogItem{}}
	offset := (page - 1) * pageSize
	for _, item := range s.items {
		if !matches(item, filter, search) {
			continue
		}
		if result.Total >= offset && len(result.Items) < pageSize {
			result.Items = append(result.Items, item)
		}
		result.Total++
	}
	return result, nil
}

// Get implements Store
func (s *MemoryStore) Get(ctx context.Context, id string) (*catalog.CatalogItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	item := s.items[i]
	return &item, nil
}

// Count implements Store
func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items), nil
}

// Ping implements Store
func (*MemoryStore) Ping(context.Context) error {
	return nil
}

func compareItems(a, b catalog.CatalogItem) int {
	if c := strings.Compare(a.ScientificName, b.ScientificName); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}

func matches(item catalog.CatalogItem, f catalog.Filter, search string) bool {
	if f.PotSize != "" && item.PotSize != f.PotSize {
		return false
	}
	if f.Height != "" && item.Height != f.Height {
		return false
	}
	if f.Caliber != "" && item.Caliber != f.Caliber {
		return false
	}
	if f.Promotion != "" && !item.PromotionFlags.Get(f.Promotion) {
		return false
	}
	if search == "" {
		return true
	}
	for _, field := range []string{item.ID, item.AltEAN, item.ScientificName, item.CommonName, item.Family} {
		if strings.Contains(strings.ToLower(field), search) {
			return true
		}
	}
	return false
}
