package cache

import (
	"context"
	"errors"

	"github.com/routemart/checkout-backend/pkg/busgw"
)

// SnapshotCache caches live provider cart snapshots so the pipeline does
// not refetch the cart between resolver steps. Implementations must be
// injected; there is no package-level default.
type SnapshotCache interface {
	Get(ctx context.Context, cartID string) (*busgw.CartSnapshot, error)
	Set(ctx context.Context, cartID string, snapshot *busgw.CartSnapshot) error
	Delete(ctx context.Context, cartID string) error
}

// ErrCacheMiss is returned when no snapshot is cached for the cart id.
var ErrCacheMiss = errors.New("cache miss")
