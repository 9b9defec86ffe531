package graphstore

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

const backendStaleFile = "backend_stale.json"

// staleSet lists keys whose backend copy may be older than the local one because a backend
// write or delete failed. Reads skip the backend for these keys until a backend write or
// delete succeeds. The set is persisted so a restart does not resurrect old graphs.
type staleSet struct {
	mu   sync.Mutex
	path string
	ids  map[string]struct{}
}

func loadStaleSet(dir string) (*staleSet, error) {
	s := &staleSet{path: filepath.Join(dir, backendStaleFile), ids: map[string]struct{}{}}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("read backend stale set: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return s, fmt.Errorf("decode backend stale set: %w", err)
	}
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
	return s, nil
}

func (s *staleSet) has(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *staleSet) mark(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return nil
	}
	s.ids[id] = struct{}{}
	return s.persistLocked()
}

func (s *staleSet) clear(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; !ok {
		return nil
	}
	delete(s.ids, id)
	return s.persistLocked()
}

func (s *staleSet) persistLocked() error {
	ids := make([]string, 0, len(s.ids))
	for id := range s.ids {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return writeFileAtomic(s.path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(ids)
	})
}
