package cache

import (
	"context"
	"time"

	"github.com/Dimas0824/PayTo-sub001/internal/domain"
)

// CatalogCache holds catalog snapshots keyed by product id. A miss is never
// an error: callers fall back to the repository and backfill.
type CatalogCache interface {
	Get(ctx context.Context, productID string) (*domain.Product, bool, error)
	Set(ctx context.Context, product domain.Product, ttl time.Duration) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context, _ string) (*domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ domain.Product, _ time.Duration) error {
	return nil
}
