// Package store persists the mirrored catalog and serves filtered lookups.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/greenhouse-labs/catalog-bff/internal/catalog"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Store

const (
	// DefaultPageSize applies when Find is called with a non-positive page size
	DefaultPageSize = 50

	// MaxPageSize caps the page size accepted by Find
	MaxPageSize = 200
)

// ErrNotFound is returned by Get when no item has the requested id
var ErrNotFound = errors.New("catalog item not found")

// Store is the catalog persistence contract
type Store interface {
	// ReplaceAll swaps the whole catalog for items. Readers observe either the
	// previous or the new snapshot. Items that cannot be stored are skipped:
	// the rest is still committed and a *PersistenceError lists the skipped
	// ones. The returned count is the number of items actually stored.
	ReplaceAll(ctx context.Context, items []catalog.CatalogItem) (int, error)

	// Find returns one page of items matching filter, ordered by scientific name.
	// Pages are 1-based.
	Find(ctx context.Context, filter catalog.Filter, page, pageSize int) (*catalog.Page, error)

	// Get returns the item with the given id or ErrNotFound
	Get(ctx context.Context, id string) (*catalog.CatalogItem, error)

	// Count returns the size of the current snapshot
	Count(ctx context.Context) (int, error)

	// Ping checks the backend is reachable
	Ping(ctx context.Context) error
}

// Rejection is one item ReplaceAll did not store
type Rejection struct {
	ID     string
	Reason string
}

// PersistenceError reports items skipped by ReplaceAll. It never means the
// replace itself failed.
type PersistenceError struct {
	Rejected []Rejection
}

// Error returns the error message
func (e *PersistenceError) Error() string {
	ids := make([]string, 0, min(len(e.Rejected), 5))
	for i, r := range e.Rejected {
		if i == 5 {
			break
		}
		ids = append(ids, r.ID)
	}
	return fmt.Sprintf("%d catalog items rejected (first: %s)", len(e.Rejected), strings.Join(ids, ", "))
}

// IsPartial reports whether err only signals skipped items
func IsPartial(err error) bool {
	var perr *PersistenceError
	return errors.As(err, &perr)
}

// prepare keeps the first occurrence of every valid item and reports the rest
func prepare(items []catalog.CatalogItem) ([]catalog.CatalogItem, []Rejection) {
	seen := make(map[string]struct{}, len(items))
	kept := make([]catalog.CatalogItem, 0, len(items))
	var rejected []Rejection

	for _, item := range items {
		if reason := invalidReason(item); reason != "" {
			rejected = append(rejected, Rejection{ID: item.ID, Reason: reason})
			continue
		}
		if _, dup := seen[item.ID]; dup {
			rejected = append(rejected, Rejection{ID: item.ID, Reason: "duplicate id"})
			continue
		}
		seen[item.ID] = struct{}{}
		kept = append(kept, item)
	}

	for _, r := range rejected {
		slog.Warn("Catalog item rejected by store", "id", r.ID, "reason", r.Reason)
	}
	return kept, rejected
}

func invalidReason(item catalog.CatalogItem) string {
	switch {
	case strings.TrimSpace(item.ID) == "":
		return "blank id"
	case item.BasePrice < 0 || item.Price2 < 0 || item.Price3 < 0:
		return "negative price"
	case item.UnitsPerCart < 0 || item.UnitsPerPallet < 0 || item.UnitsPerBox < 0:
		return "negative pack quantity"
	}
	return ""
}

func partialError(rejected []Rejection) error {
	if len(rejected) == 0 {
		return nil
	}
	return &PersistenceError{Rejected: rejected}
}

// normalizePage applies defaults and bounds to page arguments
func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case pageSize <= 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	// keep (page-1)*pageSize inside a 32-bit OFFSET; such pages are empty anyway
	if maxPage := math.MaxInt32/pageSize + 1; page > maxPage {
		page = maxPage
	}
	return page, pageSize
}
