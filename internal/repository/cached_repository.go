package repository

import (
	"context"
	"encoding/json"
	"time"

	"property-catalog/internal/domain"
	"property-catalog/internal/infrastructure/cache"
	"property-catalog/internal/infrastructure/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const snapshotKey = "properties:all"

// cachedRepository keeps the last List result in the shared cache so a
// fleet of instances does not hit the remote store on every cold start.
// Cache failures never fail the call.
type cachedRepository struct {
	next    Repository
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.RepositoryMetrics
	tracer  trace.Tracer
}

func NewCachedRepository(next Repository, cache cache.Cache, ttl time.Duration, metrics *metrics.RepositoryMetrics) Repository {
	return &cachedRepository{
		next:    next,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
		tracer:  otel.Tracer("property-catalog/repository"),
	}
}

func (r *cachedRepository) List(ctx context.Context) ([]domain.Listing, error) {
	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Get")
	cached, err := r.cache.Get(cacheSpanCtx, snapshotKey)
	cacheSpan.End()

	if err == nil {
		var listings []domain.Listing
		if err := json.Unmarshal([]byte(cached), &listings); err == nil {
			r.metrics.CacheResults.WithLabelValues("hit").Inc()
			return listings, nil
		}
	}
	r.metrics.CacheResults.WithLabelValues("miss").Inc()

	listings, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(listings); err == nil {
		cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Set")
		r.cache.Set(cacheSpanCtx, snapshotKey, string(data), r.ttl)
		cacheSpan.End()
	}

	return listings, nil
}

func (r *cachedRepository) Insert(ctx context.Context, draft domain.Draft) (domain.Listing, error) {
	created, err := r.next.Insert(ctx, draft)
	if err != nil {
		return domain.Listing{}, err
	}
	r.invalidate(ctx)
	return created, nil
}

func (r *cachedRepository) Patch(ctx context.Context, id string, patch domain.Patch, expectedVersion int) (domain.Listing, error) {
	updated, err := r.next.Patch(ctx, id, patch, expectedVersion)
	if err != nil {
		return domain.Listing{}, err
	}
	r.invalidate(ctx)
	return updated, nil
}

func (r *cachedRepository) Remove(ctx context.Context, id string) error {
	if err := r.next.Remove(ctx, id); err != nil {
		return err
	}
	r.invalidate(ctx)
	return nil
}

func (r *cachedRepository) invalidate(ctx context.Context) {
	cacheSpanCtx, cacheSpan := r.tracer.Start(ctx, "Redis Delete")
	r.cache.Delete(cacheSpanCtx, snapshotKey)
	cacheSpan.End()
}
