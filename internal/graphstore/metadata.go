package graphstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const metadataFile = "cache_metadata.json"

// Meta is the index entry for one cached graph.
type Meta struct {
	Key
	Compressed    bool      `json:"compressed"`
	EntityCount   int       `json:"entity_count"`
	RelationCount int       `json:"relation_count"`
	SavedAt       time.Time `json:"saved_at"`
}

type metaIndex struct {
	mu      sync.Mutex
	path    string
	entries map[string]Meta
}

func loadMetaIndex(dir string) (*metaIndex, error) {
	idx := &metaIndex{
		path:    filepath.Join(dir, metadataFile),
		entries: map[string]Meta{},
	}
	b, err := os.ReadFile(idx.path)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return idx, fmt.Errorf("read metadata: %w", err)
	}
	if err := json.Unmarshal(b, &idx.entries); err != nil {
		idx.entries = map[string]Meta{}
		return idx, fmt.Errorf("decode metadata: %w", err)
	}
	return idx, nil
}

func (m *metaIndex) put(meta Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[meta.ID] = meta
	return m.persistLocked()
}

func (m *metaIndex) remove(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return nil
	}
	delete(m.entries, id)
	return m.persistLocked()
}

func (m *metaIndex) get(id string) (Meta, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta, ok := m.entries[id]
	return meta, ok
}

// list returns entries newest first.
func (m *metaIndex) list() []Meta {
	m.mu.Lock()
	out := make([]Meta, 0, len(m.entries))
	for _, meta := range m.entries {
		out = append(out, meta)
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SavedAt.Equal(out[j].SavedAt) {
			return out[i].SavedAt.After(out[j].SavedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *metaIndex) persistLocked() error {
	return writeFileAtomic(m.path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(m.entries)
	})
}
