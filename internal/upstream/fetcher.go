// Package upstream talks to the third-party catalog API: session handling,
// authenticated requests and paginated catalog download.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"go.opentelemetry.io/otel/trace"

	"github.com/greenhouse-labs/catalog-bff/internal/catalog"
	"github.com/greenhouse-labs/catalog-bff/internal/httpclient"
	"github.com/greenhouse-labs/catalog-bff/internal/otel"
	"github.com/greenhouse-labs/catalog-bff/internal/telemetry"
)

//go:generate mockgen -destination=mocks/mock_fetcher.go -package=mocks -source=fetcher.go RecordTransformer,SessionInvalidator,CatalogFetcher

const (
	// DefaultPageSize is the number of records requested per page
	DefaultPageSize = 100

	// DefaultMaxPages is the page-count safety ceiling
	DefaultMaxPages = 25
)

// RecordTransformer converts one raw upstream record into a catalog item
type RecordTransformer interface {
	Transform(ctx context.Context, raw json.RawMessage) (catalog.CatalogItem, error)
}

// SessionInvalidator drops a cached session after the upstream rejects it
type SessionInvalidator interface {
	Invalidate()
}

// CatalogFetcher downloads the complete filtered catalog
type CatalogFetcher interface {
	FetchAll(ctx context.Context, filter string) (*FetchResult, error)
}

// FetchResult is the outcome of one complete download
type FetchResult struct {
	Items []catalog.CatalogItem

	// Pages is the number of pages successfully fetched
	Pages int

	// Raw is the number of records received before transformation
	Raw int

	// Dropped is the number of records rejected by the transformer
	Dropped int

	// Truncated is set when the page ceiling stopped the download on a full page
	Truncated bool
}

// pageEnvelope is the upstream page shape
type pageEnvelope struct {
	Resources    []json.RawMessage `json:"$resources"`
	ItemsPerPage int               `json:"$itemsPerPage"`
}

// FetcherOption configures a Fetcher
type FetcherOption func(*Fetcher)

// WithPageSize overrides DefaultPageSize
func WithPageSize(size int) FetcherOption {
	return func(f *Fetcher) {
		if size > 0 {
			f.pageSize = size
		}
	}
}

// WithMaxPages overrides DefaultMaxPages
func WithMaxPages(maxPages int) FetcherOption {
	return func(f *Fetcher) {
		if maxPages > 0 {
			f.maxPages = maxPages
		}
	}
}

// WithReloginRetry retries a page rejected with 401/403 once, after
// invalidating the session so the retry performs a fresh login
func WithReloginRetry(sessions SessionInvalidator) FetcherOption {
	return func(f *Fetcher) {
		f.sessions = sessions
	}
}

// WithFetchMetrics records fetched pages
func WithFetchMetrics(m *telemetry.SyncMetrics) FetcherOption {
	return func(f *Fetcher) {
		f.metrics = m
	}
}

// WithFetchTracer sets the tracer used for page spans
func WithFetchTracer(tracer trace.Tracer) FetcherOption {
	return func(f *Fetcher) {
		f.tracer = tracer
	}
}

// Fetcher pages sequentially through the upstream catalog query endpoint
type Fetcher struct {
	client      httpclient.Client
	transformer RecordTransformer
	resourceURL string

	pageSize int
	maxPages int
	sessions SessionInvalidator

	metrics *telemetry.SyncMetrics
	tracer  trace.Tracer
}

// NewFetcher creates a Fetcher. client must already attach the session token.
func NewFetcher(
	client httpclient.Client,
	transformer RecordTransformer,
	resourceURL string,
	opts ...FetcherOption,
) *Fetcher {
	f := &Fetcher{
		client:      client,
		transformer: transformer,
		resourceURL: resourceURL,
		pageSize:    DefaultPageSize,
		maxPages:    DefaultMaxPages,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchAll downloads every page matching filter. A page shorter than the page
// size ends the download; the page ceiling ends it unconditionally. Any page
// failure aborts the whole download and nothing accumulated is returned.
func (f *Fetcher) FetchAll(ctx context.Context, filter string) (*FetchResult, error) {
	if filter == "" {
		return nil, ErrEmptyFilter
	}

	ctx, span := otel.StartSpan(ctx, f.tracer, "upstream.FetchAll")
	defer span.End()

	result := &FetchResult{}

	for page := 1; page <= f.maxPages; page++ {
		if err := ctx.Err(); err != nil {
			slog.Warn("Catalog download cancelled", "page", page, "error", err)
			otel.RecordError(span, err)
			return nil, &FetchError{Page: page, Err: err}
		}

		records, err := f.fetchPageWithRetry(ctx, filter, page)
		if err != nil {
			slog.Error("Catalog page request failed, aborting download",
				"page", page,
				"records_discarded", len(result.Items),
				"error", err,
			)
			otel.RecordError(span, err)
			return nil, &FetchError{Page: page, Err: err}
		}

		result.Pages++
		result.Raw += len(records)
		f.metrics.RecordPages(ctx, 1)

		for i, raw := range records {
			item, err := f.transformer.Transform(ctx, raw)
			if err != nil {
				result.Dropped++
				slog.Warn("Dropping malformed catalog record",
					"page", page,
					"index", i,
					"error", err,
				)
				continue
			}
			result.Items = append(result.Items, item)
		}

		slog.Debug("Catalog page received",
			"page", page,
			"records", len(records),
			"raw_total", result.Raw,
		)

		if len(records) < f.pageSize {
			span.SetAttributes(otel.AttrPagesFetched.Int(result.Pages), otel.AttrRecordsKept.Int(len(result.Items)))
			return result, nil
		}
	}

	result.Truncated = true
	slog.Warn("Page ceiling reached, catalog may be truncated",
		"max_pages", f.maxPages,
		"page_size", f.pageSize,
		"raw_total", result.Raw,
	)
	span.SetAttributes(otel.AttrPagesFetched.Int(result.Pages), otel.AttrRecordsKept.Int(len(result.Items)))
	return result, nil
}

func (f *Fetcher) fetchPageWithRetry(ctx context.Context, filter string, page int) ([]json.RawMessage, error) {
	records, err := f.fetchPage(ctx, filter, page)
	if err == nil || f.sessions == nil || !httpclient.IsAuthRejection(err) {
		return records, err
	}
	// A rejected login is final; only a rejected page earns a fresh session
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return nil, err
	}

	slog.Warn("Upstream rejected session, logging in again", "page", page, "error", err)
	f.sessions.Invalidate()

	records, retryErr := f.fetchPage(ctx, filter, page)
	if retryErr != nil {
		return nil, fmt.Errorf("retry after re-login: %w", retryErr)
	}
	return records, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, filter string, page int) ([]json.RawMessage, error) {
	ctx, span := otel.StartSpan(ctx, f.tracer, "upstream.fetchPage",
		trace.WithAttributes(otel.AttrPage.Int(page), otel.AttrPageSize.Int(f.pageSize)),
	)
	defer span.End()

	u, err := url.Parse(f.resourceURL)
	if err != nil {
		return nil, fmt.Errorf("invalid resource URL: %w", err)
	}
	q := u.Query()
	q.Set("count", strconv.Itoa(f.pageSize))
	q.Set("page", strconv.Itoa(page))
	q.Set("where", filter)
	u.RawQuery = q.Encode()

	body, err := f.client.Get(ctx, u.String())
	if err != nil {
		otel.RecordError(span, err)
		return nil, err
	}

	var envelope pageEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		otel.RecordError(span, err)
		return nil, fmt.Errorf("decoding page envelope: %w", err)
	}
	// A missing $resources array is an empty, and therefore last, page.
	span.SetAttributes(otel.AttrResultCount.Int(len(envelope.Resources)))
	if envelope.ItemsPerPage > 0 && envelope.ItemsPerPage != f.pageSize {
		slog.Debug("Upstream page size differs from requested", "requested", f.pageSize, "reported", envelope.ItemsPerPage)
	}
	return envelope.Resources, nil
}
