package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/greenhouse-labs/catalog-bff/internal/httpclient"
	"github.com/greenhouse-labs/catalog-bff/internal/otel"
	"github.com/greenhouse-labs/catalog-bff/internal/store"
	"github.com/greenhouse-labs/catalog-bff/internal/telemetry"
	"github.com/greenhouse-labs/catalog-bff/internal/transform"
	"github.com/greenhouse-labs/catalog-bff/internal/upstream"
)

// ErrEmptyResult signals a run that produced no usable records
var ErrEmptyResult = errors.New("upstream returned no usable catalog records")

// Reasons attached to a failed run
const (
	ReasonFetchFailed  = "FetchFailed"
	ReasonUnauthorized = "Unauthorized"
	ReasonEmptyResult  = "EmptyResult"
	ReasonStoreFailed  = "StoreFailed"
	ReasonCancelled    = "Cancelled"
)

// Result contains the result of a successful sync run
type Result struct {
	Pages     int
	Raw       int
	Kept      int
	Dropped   int
	Stored    int
	Rejected  int
	Truncated bool
}

// Error is a structured sync failure
type Error struct {
	Err     error
	Message string
	Reason  string

	// Partial carries download counters when the failure happened after fetching
	Partial *Result
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsEmptyResult reports whether the run was skipped because nothing usable came back
func (e *Error) IsEmptyResult() bool {
	return e != nil && e.Reason == ReasonEmptyResult
}

// Manager performs sync runs
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/greenhouse-labs/catalog-bff/internal/sync Manager
type Manager interface {
	// PerformSync executes one complete sync run
	PerformSync(ctx context.Context) (*Result, *Error)
}

// ManagerOption configures the default manager
type ManagerOption func(*defaultSyncManager)

// WithCompanyCode sets the tenant constraint of the filter expression
func WithCompanyCode(code int) ManagerOption {
	return func(m *defaultSyncManager) {
		m.companyCode = code
	}
}

// WithManagerMetrics records record counts and snapshot size
func WithManagerMetrics(metrics *telemetry.SyncMetrics) ManagerOption {
	return func(m *defaultSyncManager) {
		m.metrics = metrics
	}
}

// WithManagerTracer sets the tracer used for run spans
func WithManagerTracer(tracer trace.Tracer) ManagerOption {
	return func(m *defaultSyncManager) {
		if tracer != nil {
			m.tracer = tracer
		}
	}
}

type defaultSyncManager struct {
	fetcher     upstream.CatalogFetcher
	store       store.Store
	companyCode int
	metrics     *telemetry.SyncMetrics
	tracer      trace.Tracer
}

// NewDefaultSyncManager creates the default Manager
func NewDefaultSyncManager(fetcher upstream.CatalogFetcher, st store.Store, opts ...ManagerOption) Manager {
	m := &defaultSyncManager{
		fetcher:     fetcher,
		store:       st,
		companyCode: 1,
		tracer:      otel.Tracer(nil),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PerformSync downloads the catalog and replaces the stored snapshot
func (m *defaultSyncManager) PerformSync(ctx context.Context) (*Result, *Error) {
	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.PerformSync")
	defer span.End()

	filter, err := upstream.BuildFilter(m.companyCode, transform.PromotionFieldNames())
	if err != nil {
		otel.RecordError(span, err)
		return nil, &Error{Err: err, Message: fmt.Sprintf("Failed to build filter expression: %v", err), Reason: ReasonFetchFailed}
	}

	fetched, err := m.fetcher.FetchAll(ctx, filter)
	if err != nil {
		otel.RecordError(span, err)
		return nil, classifyFetchError(err)
	}

	result := &Result{
		Pages:     fetched.Pages,
		Raw:       fetched.Raw,
		Kept:      len(fetched.Items),
		Dropped:   fetched.Dropped,
		Truncated: fetched.Truncated,
	}
	m.metrics.RecordRecords(ctx, telemetry.OutcomeKept, result.Kept)
	m.metrics.RecordRecords(ctx, telemetry.OutcomeDropped, result.Dropped)
	span.SetAttributes(otel.AttrPagesFetched.Int(result.Pages), otel.AttrRecordsKept.Int(result.Kept), otel.AttrDropped.Int(result.Dropped))

	if result.Kept == 0 {
		slog.Warn("No usable catalog records, keeping the stored snapshot",
			"pages", result.Pages,
			"raw", result.Raw,
			"dropped", result.Dropped,
		)
		return nil, &Error{
			Err:     ErrEmptyResult,
			Message: "Sync skipped: upstream returned no usable records",
			Reason:  ReasonEmptyResult,
			Partial: result,
		}
	}

	stored, err := m.store.ReplaceAll(ctx, fetched.Items)
	if err != nil {
		var perr *store.PersistenceError
		if !errors.As(err, &perr) {
			otel.RecordError(span, err)
			return nil, &Error{
				Err:     err,
				Message: fmt.Sprintf("Failed to replace stored catalog: %v", err),
				Reason:  ReasonStoreFailed,
				Partial: result,
			}
		}
		result.Rejected = len(perr.Rejected)
		slog.Warn("Some catalog items were rejected by the store", "rejected", result.Rejected, "stored", stored)
	}

	result.Stored = stored
	m.metrics.RecordRecords(ctx, telemetry.OutcomeStored, stored)
	m.metrics.RecordRecords(ctx, telemetry.OutcomeRejected, result.Rejected)
	m.metrics.RecordItemsTotal(ctx, stored)
	span.SetAttributes(otel.AttrStored.Int(stored))

	return result, nil
}

func classifyFetchError(err error) *Error {
	var authErr *upstream.AuthError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &Error{Err: err, Message: fmt.Sprintf("Sync cancelled: %v", err), Reason: ReasonCancelled}
	case errors.As(err, &authErr), httpclient.IsAuthRejection(err):
		return &Error{Err: err, Message: fmt.Sprintf("Upstream rejected credentials: %v", err), Reason: ReasonUnauthorized}
	default:
		return &Error{Err: err, Message: fmt.Sprintf("Failed to fetch catalog: %v", err), Reason: ReasonFetchFailed}
	}
}
