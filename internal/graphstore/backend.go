package graphstore

import (
	"context"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

// GraphBackend is the optional external graph database. LoadGraph returns nil, nil when the
// graph is absent.
type GraphBackend interface {
	Connected() bool
	SaveGraph(ctx context.Context, graphID string, ref types.GraphRef, g *types.Graph) error
	LoadGraph(ctx context.Context, graphID string) (*types.Graph, error)
	DeleteGraph(ctx context.Context, graphID string) error
	HasGraph(ctx context.Context, graphID string) (bool, error)
}

// BackendTier adapts a GraphBackend to the Tier contract; with no connected backend every
// call reports ErrUnavailable.
type BackendTier struct {
	backend GraphBackend
}

func NewBackendTier(b GraphBackend) *BackendTier {
	return &BackendTier{backend: b}
}

func (b *BackendTier) Name() string { return "backend" }

// Configured reports whether a backend was wired at all, connected or not.
func (b *BackendTier) Configured() bool {
	return b != nil && b.backend != nil
}

func (b *BackendTier) Available() bool {
	return b != nil && b.backend != nil && b.backend.Connected()
}

func (b *BackendTier) Save(ctx context.Context, key Key, g *types.Graph) error {
	if !b.Available() {
		return ErrUnavailable
	}
	return b.backend.SaveGraph(ctx, key.ID, key.Ref(), g)
}

func (b *BackendTier) Load(ctx context.Context, key Key) (*types.Graph, error) {
	if !b.Available() {
		return nil, ErrUnavailable
	}
	g, err := b.backend.LoadGraph(ctx, key.ID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, ErrNotFound
	}
	return ensureSlices(g), nil
}

func (b *BackendTier) Delete(ctx context.Context, key Key) error {
	if !b.Available() {
		return ErrUnavailable
	}
	return b.backend.DeleteGraph(ctx, key.ID)
}

func (b *BackendTier) Has(ctx context.Context, key Key) (bool, error) {
	if !b.Available() {
		return false, ErrUnavailable
	}
	return b.backend.HasGraph(ctx, key.ID)
}
