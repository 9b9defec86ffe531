package graphstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

const DefaultMemoryCapacity = 10

type memEntry struct {
	key         Key
	graph       *types.Graph
	accessCount int
	lastTouched time.Time
	savedAt     time.Time
	// seq breaks lastTouched ties when the clock does not advance between touches.
	seq uint64
}

// MemoryTier is the bounded in-process tier. Eviction removes the least accessed entries,
// oldest touch first among equals, and never the entry whose insertion caused the overflow.
type MemoryTier struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*memEntry
	seq      uint64
	now      func() time.Time
	// gen counts writes and deletes; a promotion read under an older gen is dropped.
	gen uint64

	// OnEvict is called outside the lock with the evicted keys.
	OnEvict func(evicted []Key)
}

func NewMemoryTier(capacity int) *MemoryTier {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryTier{
		capacity: capacity,
		entries:  make(map[string]*memEntry, capacity+1),
		now:      time.Now,
	}
}

func (m *MemoryTier) Name() string { return "memory" }

func (m *MemoryTier) Capacity() int { return m.capacity }

// Save inserts or replaces with a fresh access count of zero.
func (m *MemoryTier) Save(_ context.Context, key Key, g *types.Graph) error {
	m.put(key, g, 0, nil)
	return nil
}

// Generation is read before a lower-tier lookup and handed back to Promote.
func (m *MemoryTier) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// Invalidate bumps the generation so in-flight promotions are dropped.
func (m *MemoryTier) Invalidate() {
	m.mu.Lock()
	m.gen++
	m.mu.Unlock()
}

// Promote inserts a graph found in a lower tier; the read that found it counts as one access.
// It is a no-op when a save or delete happened since gen was read.
func (m *MemoryTier) Promote(key Key, g *types.Graph, gen uint64) bool {
	return m.put(key, g, 1, &gen)
}

func (m *MemoryTier) put(key Key, g *types.Graph, accessCount int, readGen *uint64) bool {
	now := m.now()
	m.mu.Lock()
	if readGen != nil && *readGen != m.gen {
		m.mu.Unlock()
		return false
	}
	if readGen == nil {
		m.gen++
	}
	m.seq++
	m.entries[key.ID] = &memEntry{
		key:         key,
		graph:       ensureSlices(g.Clone()),
		accessCount: accessCount,
		lastTouched: now,
		savedAt:     now,
		seq:         m.seq,
	}
	evicted := m.evictLocked(key.ID)
	cb := m.OnEvict
	m.mu.Unlock()

	if len(evicted) > 0 && cb != nil {
		cb(evicted)
	}
	return true
}

func (m *MemoryTier) evictLocked(keep string) []Key {
	over := len(m.entries) - m.capacity
	if over <= 0 {
		return nil
	}
	candidates := make([]*memEntry, 0, len(m.entries))
	for id, e := range m.entries {
		if id != keep {
			candidates = append(candidates, e)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.accessCount != b.accessCount {
			return a.accessCount < b.accessCount
		}
		if !a.lastTouched.Equal(b.lastTouched) {
			return a.lastTouched.Before(b.lastTouched)
		}
		return a.seq < b.seq
	})
	if over > len(candidates) {
		over = len(candidates)
	}
	evicted := make([]Key, 0, over)
	for _, e := range candidates[:over] {
		delete(m.entries, e.key.ID)
		evicted = append(evicted, e.key)
	}
	return evicted
}

func (m *MemoryTier) Load(_ context.Context, key Key) (*types.Graph, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key.ID]
	if !ok {
		return nil, ErrNotFound
	}
	m.seq++
	e.accessCount++
	e.lastTouched = now
	e.seq = m.seq
	return e.graph.Clone(), nil
}

func (m *MemoryTier) Delete(_ context.Context, key Key) error {
	m.mu.Lock()
	m.gen++
	delete(m.entries, key.ID)
	m.mu.Unlock()
	return nil
}

func (m *MemoryTier) Has(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key.ID]
	return ok
}

func (m *MemoryTier) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Clear drops every entry and returns how many were resident.
func (m *MemoryTier) Clear() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = make(map[string]*memEntry, m.capacity+1)
	return n
}

type MemoryEntryInfo struct {
	Key         Key
	AccessCount int
	LastTouched time.Time
	SavedAt     time.Time
}

func (m *MemoryTier) Entries() []MemoryEntryInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MemoryEntryInfo, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, MemoryEntryInfo{
			Key:         e.key,
			AccessCount: e.accessCount,
			LastTouched: e.lastTouched,
			SavedAt:     e.savedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.ID < out[j].Key.ID })
	return out
}
