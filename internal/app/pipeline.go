package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenhouse-labs/catalog-bff/internal/config"
	"github.com/greenhouse-labs/catalog-bff/internal/events"
	"github.com/greenhouse-labs/catalog-bff/internal/httpclient"
	"github.com/greenhouse-labs/catalog-bff/internal/sync/lock"
	"github.com/greenhouse-labs/catalog-bff/internal/telemetry"
	"github.com/greenhouse-labs/catalog-bff/internal/transform"
	"github.com/greenhouse-labs/catalog-bff/internal/upstream"
)

// buildFetcher wires session manager, token-injecting client, image resolver
// and transformer into the paginated fetcher
func buildFetcher(b *catalogAppConfig, metrics *telemetry.SyncMetrics, tracer trace.Tracer) (*upstream.Fetcher, error) {
	up := &b.config.Upstream

	password, err := up.GetPassword()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve upstream password: %w", err)
	}

	client := b.upstream
	if client == nil {
		client = httpclient.NewDefaultClient(up.GetRequestTimeout(),
			httpclient.WithRateLimit(httpclient.NewLimiter(up.RequestsPerSecond)),
		)
	}

	sessions := upstream.NewSessionManager(client, up.GetLoginURL(),
		upstream.Credentials{Username: up.Username, Password: password},
		upstream.WithSafetyMargin(up.GetTokenSafetyMargin()),
		upstream.WithDefaultTTL(up.GetDefaultTokenTTL()),
	)

	images, err := buildImageResolver(&b.config.Images, up)
	if err != nil {
		return nil, fmt.Errorf("failed to build image resolver: %w", err)
	}

	opts := []upstream.FetcherOption{
		upstream.WithPageSize(up.GetPageSize()),
		upstream.WithMaxPages(up.GetMaxPages()),
		upstream.WithFetchMetrics(metrics),
		upstream.WithFetchTracer(tracer),
	}
	if up.GetRetryOnUnauthorized() {
		opts = append(opts, upstream.WithReloginRetry(sessions))
	}

	return upstream.NewFetcher(
		upstream.NewAuthenticatedClient(client, sessions, up.GetTokenHeader()),
		transform.NewTransformer(images),
		up.GetResourceURL(),
		opts...,
	), nil
}

// buildImageResolver selects the image strategy. The asset store gets its own
// client so upstream pacing does not apply to it.
func buildImageResolver(cfg *config.ImagesConfig, up *config.UpstreamConfig) (transform.ImageResolver, error) {
	tiered := transform.NewTieredResolver(transform.Tiers{
		LowBase:  cfg.TierLowBase,
		MidBase:  cfg.TierMidBase,
		HighBase: cfg.TierHighBase,
	})

	strategy := cfg.GetStrategy()
	if strategy != config.ImageStrategyTiered && cfg.AssetStore == nil {
		return nil, fmt.Errorf("%s strategy requires an asset store", strategy)
	}
	slog.Info("Image strategy selected", "strategy", strategy)

	switch strategy {
	case config.ImageStrategyTiered:
		return tiered, nil
	case config.ImageStrategyTransformURL:
		a := cfg.AssetStore
		return transform.NewTransformURLResolver(a.GetDeliveryURL(), a.CloudName, a.GetTransformation(), a.GetFolder()), nil
	case config.ImageStrategyAssetStore:
		a := cfg.AssetStore
		secret, err := a.GetAPISecret()
		if err != nil {
			return nil, err
		}
		assets := transform.NewHTTPAssetStore(
			httpclient.NewDefaultClient(up.GetRequestTimeout()),
			a.GetBaseURL(),
			a.GetFolder(),
			transform.AssetStoreCredentials{CloudName: a.CloudName, APIKey: a.APIKey, APISecret: secret},
		)
		return transform.NewAssetStoreResolver(assets, tiered, a.GetCacheSize())
	default:
		return nil, fmt.Errorf("unsupported image strategy: %s", strategy)
	}
}

// buildLocker connects the optional shared run lock
func buildLocker(ctx context.Context, b *catalogAppConfig) (lock.Locker, error) {
	cfg := b.config.Sync.Lock
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		// The lock is best effort at startup; TryLock errors skip runs later
		slog.Warn("Redis lock backend not reachable", "addr", cfg.RedisAddr, "error", err)
	}
	b.closers = append(b.closers, func() {
		if err := client.Close(); err != nil {
			slog.Error("Failed to close redis client", "error", err)
		}
	})

	locker, err := lock.NewRedisLocker(client, cfg.GetKey(), cfg.GetTTL())
	if err != nil {
		return nil, fmt.Errorf("failed to create sync lock: %w", err)
	}
	slog.Info("Distributed sync lock enabled", "key", cfg.GetKey(), "ttl", cfg.GetTTL())
	return locker, nil
}

// buildNotifier creates the optional sync-completed event publisher
func buildNotifier(b *catalogAppConfig) (events.Notifier, error) {
	cfg := b.config.Sync.Events
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	publisher, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.GetExchange(), cfg.GetRoutingKey())
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	b.closers = append(b.closers, func() {
		if err := publisher.Close(); err != nil {
			slog.Error("Failed to close event publisher", "error", err)
		}
	})
	slog.Info("Sync events enabled", "exchange", cfg.GetExchange(), "routing_key", cfg.GetRoutingKey())
	return publisher, nil
}
