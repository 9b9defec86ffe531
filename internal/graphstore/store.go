package graphstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

const DefaultDir = "data/graphs"

type Options struct {
	Dir            string
	MemoryCapacity int
	// DisableCompression makes the legacy JSON tier the primary local writer.
	DisableCompression bool
	Backend            GraphBackend
	Observer           Observer
	Log                *logger.Logger
}

// Store is the tiered graph cache. Reads walk memory, backend, compressed, legacy and promote
// lower hits into memory; writes go through to every tier and tolerate per-tier failures.
type Store struct {
	log      *logger.Logger
	observer Observer
	dir      string

	memory     *MemoryTier
	backend    *BackendTier
	compressed *CompressedTier
	legacy     *LegacyTier

	readOrder  []Tier
	writeOrder []Tier

	meta  *metaIndex
	stale *staleSet
	now   func() time.Time
}

func NewStore(opts Options) (*Store, error) {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	obs := opts.Observer
	if obs == nil {
		obs = nopObserver{}
	}
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("graphstore: mkdir %s: %w", dir, err)
	}

	s := &Store{
		log:        log.With("component", "graphstore"),
		observer:   obs,
		dir:        dir,
		memory:     NewMemoryTier(opts.MemoryCapacity),
		backend:    NewBackendTier(opts.Backend),
		compressed: NewCompressedTier(dir),
		legacy:     NewLegacyTier(dir),
		now:        time.Now,
	}
	s.memory.OnEvict = func(evicted []Key) {
		for _, k := range evicted {
			s.log.Debug("memory tier evicted graph", "key", k.ID, "ref", k.Ref().String())
		}
		s.observer.ObserveEviction(s.memory.Name(), len(evicted))
	}

	local := &fallbackTier{name: "local", tiers: []Tier{s.compressed, s.legacy}}
	if opts.DisableCompression {
		local = &fallbackTier{name: "local", tiers: []Tier{s.legacy}}
	}
	s.readOrder = []Tier{s.memory, s.backend, s.compressed, s.legacy}
	s.writeOrder = []Tier{s.memory, local, s.backend}

	meta, err := loadMetaIndex(dir)
	if err != nil {
		s.log.Warn("graph cache metadata unreadable; starting empty", "error", err)
	}
	s.meta = meta

	stale, err := loadStaleSet(dir)
	if err != nil {
		s.log.Warn("backend stale set unreadable; backend reads are not filtered", "error", err)
	}
	s.stale = stale
	return s, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Memory() *MemoryTier { return s.memory }

func (s *Store) BackendAvailable() bool { return s.backend.Available() }

// Save writes g through every tier. It fails only when no tier accepted the graph.
// When the backend misses the write, its older copy is purged or, failing that, fenced
// off via the stale set so reads never prefer it over the new local graph.
func (s *Store) Save(ctx context.Context, key Key, g *types.Graph) error {
	if !key.valid() {
		return fmt.Errorf("graphstore: save: empty key")
	}
	if g == nil {
		return fmt.Errorf("graphstore: save %s: nil graph", key.ID)
	}
	var (
		errs []error
		ok   int
	)
	for _, t := range s.writeOrder {
		err := t.Save(ctx, key, g)
		isBackend := t == Tier(s.backend)
		switch {
		case err == nil:
			ok++
			s.observer.ObserveTier(t.Name(), "save", "ok")
			if isBackend {
				s.backendFresh(key)
			}
		case errors.Is(err, ErrUnavailable):
			s.observer.ObserveTier(t.Name(), "save", "skipped")
			if isBackend && s.backend.Configured() {
				s.markBackendStale(key, err)
			}
		default:
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			s.observer.ObserveTier(t.Name(), "save", "error")
			s.log.Warn("graph cache tier write failed", "tier", t.Name(), "key", key.ID, "error", err)
			if isBackend {
				s.purgeBackend(ctx, key)
			}
		}
	}
	if ok == 0 {
		return fmt.Errorf("graphstore: save %s: %w", key.ID, errors.Join(errs...))
	}

	if err := s.meta.put(Meta{
		Key:           key,
		Compressed:    s.compressed.Exists(key),
		EntityCount:   len(g.Entities),
		RelationCount: len(g.Relationships),
		SavedAt:       s.now().UTC(),
	}); err != nil {
		s.log.Warn("graph cache metadata write failed", "key", key.ID, "error", err)
	}
	return nil
}

// purgeBackend drops the backend copy after a failed write; if that fails too the key is
// marked stale.
func (s *Store) purgeBackend(ctx context.Context, key Key) {
	err := s.backend.Delete(ctx, key)
	if err == nil {
		s.backendFresh(key)
		return
	}
	s.markBackendStale(key, err)
}

func (s *Store) markBackendStale(key Key, cause error) {
	s.log.Warn("graph cache backend copy marked stale", "key", key.ID, "cause", cause)
	s.observer.ObserveTier(s.backend.Name(), "stale", "marked")
	if err := s.stale.mark(key.ID); err != nil {
		s.log.Warn("backend stale set write failed", "key", key.ID, "error", err)
	}
}

func (s *Store) backendFresh(key Key) {
	if err := s.stale.clear(key.ID); err != nil {
		s.log.Warn("backend stale set write failed", "key", key.ID, "error", err)
	}
}

// Load returns the first tier hit, promoting it into memory. A miss everywhere is ErrNotFound.
func (s *Store) Load(ctx context.Context, key Key) (*types.Graph, error) {
	if !key.valid() {
		return nil, ErrNotFound
	}
	gen := s.memory.Generation()
	for _, t := range s.readOrder {
		if t == Tier(s.backend) && s.stale.has(key.ID) {
			s.observer.ObserveTier(t.Name(), "load", "stale")
			continue
		}
		g, err := t.Load(ctx, key)
		switch {
		case err == nil:
			s.observer.ObserveTier(t.Name(), "load", "hit")
			if t != Tier(s.memory) {
				if s.memory.Promote(key, g, gen) {
					s.log.Debug("graph cache promoted", "tier", t.Name(), "key", key.ID)
				} else {
					s.log.Debug("graph cache promotion dropped; key changed during read", "tier", t.Name(), "key", key.ID)
				}
			}
			return g, nil
		case errors.Is(err, ErrNotFound):
			s.observer.ObserveTier(t.Name(), "load", "miss")
		case errors.Is(err, ErrUnavailable):
			s.observer.ObserveTier(t.Name(), "load", "skipped")
		default:
			s.observer.ObserveTier(t.Name(), "load", "error")
			s.log.Warn("graph cache tier read failed", "tier", t.Name(), "key", key.ID, "error", err)
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
		}
	}
	return nil, ErrNotFound
}

// Delete removes the graph from every tier. Absence anywhere is not an error. A backend
// that cannot be reached leaves the key marked stale so its copy is never read back.
func (s *Store) Delete(ctx context.Context, key Key) error {
	if !key.valid() {
		return nil
	}
	var errs []error
	for _, t := range []Tier{s.memory, s.compressed, s.legacy, s.backend} {
		err := t.Delete(ctx, key)
		isBackend := t == Tier(s.backend)
		switch {
		case err == nil:
			s.observer.ObserveTier(t.Name(), "delete", "ok")
			if isBackend {
				s.backendFresh(key)
			}
		case errors.Is(err, ErrNotFound):
		case errors.Is(err, ErrUnavailable):
			if isBackend && s.backend.Configured() {
				s.markBackendStale(key, err)
			}
		default:
			s.observer.ObserveTier(t.Name(), "delete", "error")
			errs = append(errs, fmt.Errorf("%s: %w", t.Name(), err))
			if isBackend {
				s.markBackendStale(key, err)
			}
		}
	}
	// Reads that started before the delete must not promote what they found.
	s.memory.Invalidate()
	if err := s.meta.remove(key.ID); err != nil {
		errs = append(errs, fmt.Errorf("metadata: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("graphstore: delete %s: %w", key.ID, errors.Join(errs...))
	}
	return nil
}

// Presence reports which tiers currently hold a graph.
type Presence struct {
	Key               Key   `json:"key"`
	Memory            bool  `json:"memory"`
	BackendConfigured bool  `json:"backend_configured"`
	Backend           bool  `json:"backend"`
	Compressed        bool  `json:"compressed"`
	Legacy            bool  `json:"legacy"`
	BackendStale      bool  `json:"backend_stale"`
	Metadata          *Meta `json:"metadata,omitempty"`
}

func (p Presence) Any() bool {
	return p.Memory || p.Backend || p.Compressed || p.Legacy
}

func (s *Store) Inspect(ctx context.Context, key Key) Presence {
	p := Presence{
		Key:               key,
		Memory:            s.memory.Has(key),
		BackendConfigured: s.backend.Available(),
		Compressed:        s.compressed.Exists(key),
		Legacy:            s.legacy.Exists(key),
		BackendStale:      s.stale.has(key.ID),
	}
	if p.BackendConfigured {
		has, err := s.backend.Has(ctx, key)
		if err != nil {
			s.log.Warn("graph cache backend presence check failed", "key", key.ID, "error", err)
		}
		p.Backend = has
	}
	if meta, ok := s.meta.get(key.ID); ok {
		p.Metadata = &meta
	}
	return p
}

// List returns indexed graphs newest first; an empty school matches all.
func (s *Store) List(school string) []Meta {
	school = strings.TrimSpace(school)
	all := s.meta.list()
	if school == "" {
		return all
	}
	out := all[:0]
	for _, m := range all {
		if m.School == school {
			out = append(out, m)
		}
	}
	return out
}

func (s *Store) ClearMemory() int {
	n := s.memory.Clear()
	s.log.Info("graph cache memory cleared", "count", n)
	return n
}

type Stats struct {
	GraphCount          int   `json:"graph_count"`
	TotalEntities       int   `json:"total_entities"`
	TotalRelations      int   `json:"total_relations"`
	MemoryResidentCount int   `json:"memory_resident_count"`
	MemoryCapacity      int   `json:"memory_capacity"`
	DiskBytes           int64 `json:"disk_bytes"`
	BackendConnected    bool  `json:"backend_connected"`
}

// Stats aggregates the metadata index and a directory size scan; no graph is loaded.
func (s *Store) Stats() (Stats, error) {
	st := Stats{
		MemoryResidentCount: s.memory.Len(),
		MemoryCapacity:      s.memory.Capacity(),
		BackendConnected:    s.backend.Available(),
	}
	for _, m := range s.meta.list() {
		st.GraphCount++
		st.TotalEntities += m.EntityCount
		st.TotalRelations += m.RelationCount
	}
	err := filepath.WalkDir(s.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		st.DiskBytes += info.Size()
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("graphstore: stats: %w", err)
	}
	return st, nil
}

// CompressExisting converts legacy JSON files to the compressed format and moves each
// original aside with a .backup suffix. It returns the number converted. The key comes
// from the file itself or from the metadata index; a file whose triple cannot be
// recovered is left in place, since its cleaned name may not match the real triple.
func (s *Store) CompressExisting(ctx context.Context) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("graphstore: compress existing: %w", err)
	}
	converted := 0
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return converted, err
		}
		if e.IsDir() || !strings.HasSuffix(e.Name(), legacySuffix) {
			continue
		}
		path := filepath.Join(s.dir, e.Name())
		doc, err := readLegacyDoc(path)
		if err != nil {
			s.log.Warn("legacy graph unreadable; skipped", "file", e.Name(), "error", err)
			continue
		}
		key, ok := s.legacyKey(e.Name(), doc)
		if !ok {
			s.log.Warn("legacy graph key unknown; left in place", "file", e.Name())
			continue
		}
		g := &doc.Graph
		if err := s.compressed.Save(ctx, key, g); err != nil {
			s.log.Warn("legacy graph compression failed", "file", e.Name(), "error", err)
			continue
		}
		if err := os.Rename(path, path+".backup"); err != nil {
			s.log.Warn("legacy graph backup rename failed", "file", e.Name(), "error", err)
		}
		if err := s.meta.put(Meta{
			Key:           key,
			Compressed:    true,
			EntityCount:   len(g.Entities),
			RelationCount: len(g.Relationships),
			SavedAt:       s.now().UTC(),
		}); err != nil {
			s.log.Warn("graph cache metadata write failed", "key", key.ID, "error", err)
		}
		converted++
	}
	s.log.Info("legacy graphs compressed", "count", converted)
	return converted, nil
}

// legacyKey recovers the exact triple of a legacy file: the key recorded in the file, else
// the single index entry whose legacy file name matches.
func (s *Store) legacyKey(name string, doc *legacyDoc) (Key, bool) {
	if k, ok := doc.key(); ok {
		return k, true
	}
	if doc.CacheKey != "" {
		if m, ok := s.meta.get(doc.CacheKey); ok {
			return m.Key, true
		}
		return Key{}, false
	}
	var (
		found Key
		n     int
	)
	for _, m := range s.meta.list() {
		if filepath.Base(s.legacy.primaryPath(m.Key)) == name {
			found = m.Key
			n++
		}
	}
	return found, n == 1
}

// Each loads every indexed graph in index order and calls fn; graphs that can no longer be
// loaded are skipped. A non-nil error from fn stops the iteration.
func (s *Store) Each(ctx context.Context, fn func(Meta, *types.Graph) error) error {
	for _, m := range s.meta.list() {
		if err := ctx.Err(); err != nil {
			return err
		}
		g, err := s.Load(ctx, m.Key)
		if err != nil {
			s.log.Debug("indexed graph not loadable", "key", m.ID, "error", err)
			continue
		}
		if err := fn(m, g); err != nil {
			return err
		}
	}
	return nil
}
