package graphstore

import (
	"context"
	"errors"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

var (
	// ErrNotFound means the tier (or, from Store.Load, every tier) has no graph for the key.
	ErrNotFound = errors.New("graphstore: graph not found")
	// ErrUnavailable means the tier is not configured or not connected and was skipped.
	ErrUnavailable = errors.New("graphstore: tier unavailable")
)

// Tier is one backend in the cache precedence chain.
type Tier interface {
	Name() string
	Save(ctx context.Context, key Key, g *types.Graph) error
	// Load returns ErrNotFound on a miss.
	Load(ctx context.Context, key Key) (*types.Graph, error)
	// Delete treats absence as success.
	Delete(ctx context.Context, key Key) error
}

// Observer receives per-tier outcomes; implemented by the metrics collector.
type Observer interface {
	ObserveTier(tier, op, outcome string)
	ObserveEviction(tier string, n int)
}

type nopObserver struct{}

func (nopObserver) ObserveTier(string, string, string) {}
func (nopObserver) ObserveEviction(string, int)        {}

// fallbackTier writes to the first tier that accepts the graph and removes stale copies
// from the others, so a fallback write never leaves an older graph readable ahead of it.
type fallbackTier struct {
	name  string
	tiers []Tier
}

func (f *fallbackTier) Name() string { return f.name }

func (f *fallbackTier) Save(ctx context.Context, key Key, g *types.Graph) error {
	var errs []error
	for i, t := range f.tiers {
		err := t.Save(ctx, key, g)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for j, other := range f.tiers {
			if j != i {
				_ = other.Delete(ctx, key)
			}
		}
		return nil
	}
	return errors.Join(errs...)
}

func (f *fallbackTier) Load(ctx context.Context, key Key) (*types.Graph, error) {
	for _, t := range f.tiers {
		g, err := t.Load(ctx, key)
		if err == nil {
			return g, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fallbackTier) Delete(ctx context.Context, key Key) error {
	var errs []error
	for _, t := range f.tiers {
		if err := t.Delete(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func ensureSlices(g *types.Graph) *types.Graph {
	if g.Entities == nil {
		g.Entities = []types.Entity{}
	}
	if g.Relationships == nil {
		g.Relationships = []types.Relationship{}
	}
	return g
}
