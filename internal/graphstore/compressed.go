package graphstore

import (
	"context"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

const compressedExt = ".gob.gz"

// CompressedTier keeps one gzip-compressed gob file per key in a local directory.
type CompressedTier struct {
	dir   string
	locks keyLocks
}

func NewCompressedTier(dir string) *CompressedTier {
	return &CompressedTier{dir: dir}
}

func (c *CompressedTier) Name() string { return "compressed" }

func (c *CompressedTier) path(key Key) string {
	return filepath.Join(c.dir, key.ID+compressedExt)
}

func (c *CompressedTier) Exists(key Key) bool {
	return fileExists(c.path(key))
}

func (c *CompressedTier) Save(ctx context.Context, key Key, g *types.Graph) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := c.locks.lock(key.ID)
	defer unlock()

	err := writeFileAtomic(c.path(key), func(w io.Writer) error {
		zw, err := gzip.NewWriterLevel(w, gzip.BestSpeed)
		if err != nil {
			return err
		}
		if err := gob.NewEncoder(zw).Encode(g); err != nil {
			_ = zw.Close()
			return fmt.Errorf("encode: %w", err)
		}
		return zw.Close()
	})
	if err != nil {
		return fmt.Errorf("compressed save %s: %w", key.ID, err)
	}
	return nil
}

func (c *CompressedTier) Load(ctx context.Context, key Key) (*types.Graph, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("compressed load %s: %w", key.ID, err)
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("compressed load %s: %w", key.ID, err)
	}
	defer zr.Close()

	var g types.Graph
	if err := gob.NewDecoder(zr).Decode(&g); err != nil {
		return nil, fmt.Errorf("compressed decode %s: %w", key.ID, err)
	}
	return ensureSlices(&g), nil
}

func (c *CompressedTier) Delete(_ context.Context, key Key) error {
	unlock := c.locks.lock(key.ID)
	defer unlock()
	if err := removeIfExists(c.path(key)); err != nil {
		return fmt.Errorf("compressed delete %s: %w", key.ID, err)
	}
	return nil
}
