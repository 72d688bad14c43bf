package transform

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

//go:generate mockgen -destination=mocks/mock_image.go -package=mocks -source=image.go ImageResolver,AssetStore

// Tier bucket upper bounds, inclusive
const (
	tierLowMax  = 130000
	tierMidMax  = 170000
	tierHighMax = 300000
)

// ImageResolver derives the image URL of a catalog item from its id.
// Resolution never fails: an unresolvable image is an empty URL.
type ImageResolver interface {
	Resolve(ctx context.Context, id string) string
}

// AssetStore is an external, content-addressed image store
type AssetStore interface {
	// Lookup returns the canonical URL of the asset stored under id
	Lookup(ctx context.Context, id string) (canonicalURL string, found bool, err error)

	// UploadFromURL stores the image at sourceURL under id and returns its canonical URL
	UploadFromURL(ctx context.Context, id, sourceURL string) (string, error)
}

// Tiers holds the static image base URL of each id range
type Tiers struct {
	LowBase  string
	MidBase  string
	HighBase string
}

// TieredResolver selects a static base URL by id range:
// [0,130000] low, [130001,170000] mid, [170001,300000] high.
type TieredResolver struct {
	tiers Tiers
}

// NewTieredResolver creates a TieredResolver
func NewTieredResolver(tiers Tiers) *TieredResolver {
	return &TieredResolver{
		tiers: Tiers{
			LowBase:  strings.TrimRight(tiers.LowBase, "/"),
			MidBase:  strings.TrimRight(tiers.MidBase, "/"),
			HighBase: strings.TrimRight(tiers.HighBase, "/"),
		},
	}
}

// Resolve implements ImageResolver
func (r *TieredResolver) Resolve(_ context.Context, id string) string {
	return r.SourceURL(id)
}

// SourceURL returns {base}/{id}-0.jpg, or "" when id is not an integer,
// falls outside every range, or its tier has no base configured.
func (r *TieredResolver) SourceURL(id string) string {
	n, err := strconv.Atoi(id)
	if err != nil {
		slog.Warn("Catalog id is not numeric, no image URL", "id", id)
		return ""
	}

	var base string
	switch {
	case n < 0:
	case n <= tierLowMax:
		base = r.tiers.LowBase
	case n <= tierMidMax:
		base = r.tiers.MidBase
	case n <= tierHighMax:
		base = r.tiers.HighBase
	}
	if base == "" {
		return ""
	}
	return base + "/" + id + "-0.jpg"
}

// AssetStoreResolver reuses an asset already in the store, or uploads it from
// its tiered source URL when absent. Store failures fall back to the source URL.
type AssetStoreResolver struct {
	store  AssetStore
	source *TieredResolver
	cache  *lru.Cache[string, string]
}

// NewAssetStoreResolver creates an AssetStoreResolver caching up to cacheSize canonical URLs
func NewAssetStoreResolver(store AssetStore, source *TieredResolver, cacheSize int) (*AssetStoreResolver, error) {
	cache, err := lru.New[string, string](cacheSize)
	if err != nil {
		return nil, err
	}
	return &AssetStoreResolver{store: store, source: source, cache: cache}, nil
}

// Resolve implements ImageResolver
func (r *AssetStoreResolver) Resolve(ctx context.Context, id string) string {
	if id == "" {
		return ""
	}
	if canonical, ok := r.cache.Get(id); ok {
		return canonical
	}

	sourceURL := r.source.SourceURL(id)

	canonical, found, err := r.store.Lookup(ctx, id)
	if err != nil {
		slog.Warn("Asset lookup failed, using source image", "id", id, "error", err)
		return sourceURL
	}
	if found {
		r.cache.Add(id, canonical)
		return canonical
	}

	if sourceURL == "" {
		return ""
	}

	canonical, err = r.store.UploadFromURL(ctx, id, sourceURL)
	if err != nil {
		slog.Warn("Asset upload failed, using source image", "id", id, "error", err)
		return sourceURL
	}

	slog.Debug("Uploaded catalog image", "id", id)
	r.cache.Add(id, canonical)
	return canonical
}

// TransformURLResolver builds delivery URLs for assets assumed to exist:
// {deliveryURL}/{cloud}/image/upload/{transformation}/{folder}/{id}
type TransformURLResolver struct {
	prefix string
}

// NewTransformURLResolver creates a TransformURLResolver
func NewTransformURLResolver(deliveryURL, cloudName, transformation, folder string) *TransformURLResolver {
	parts := []string{strings.TrimRight(deliveryURL, "/"), cloudName, "image", "upload"}
	if transformation != "" {
		parts = append(parts, transformation)
	}
	if folder = strings.Trim(folder, "/"); folder != "" {
		parts = append(parts, folder)
	}
	return &TransformURLResolver{prefix: strings.Join(parts, "/") + "/"}
}

// Resolve implements ImageResolver
func (r *TransformURLResolver) Resolve(_ context.Context, id string) string {
	if id == "" {
		return ""
	}
	return r.prefix + url.PathEscape(id)
}
