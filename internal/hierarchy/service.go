package hierarchy

import (
	"context"
	"sort"
	"sync"

	"github.com/yungbote/majorgraph-backend/internal/data/repos"
	"github.com/yungbote/majorgraph-backend/internal/platform/apierr"
	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

var (
	ErrSchoolNotFound  = apierr.NotFound("school_not_found", "hierarchy: school not found")
	ErrCollegeNotFound = apierr.NotFound("college_not_found", "hierarchy: college not found")
)

// Loader re-reads the school/college/major hierarchy from the datasets.
type Loader func(ctx context.Context) (types.Hierarchy, error)

type Stats struct {
	Schools      int  `json:"schools_count"`
	Colleges     int  `json:"colleges_count"`
	TotalRecords int  `json:"total_records"`
	MemoryCached bool `json:"memory_cached"`
}

// Service serves the hierarchy from memory, then the database table, then the CSV loader,
// writing CSV results back to the table.
type Service struct {
	repo       repos.SchoolHierarchyRepo
	load       Loader
	supplement *Supplement
	log        *logger.Logger

	mu     sync.RWMutex
	cached types.Hierarchy
}

func NewService(repo repos.SchoolHierarchyRepo, load Loader, supplement *Supplement, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	if supplement == nil {
		supplement = &Supplement{}
	}
	return &Service{
		repo:       repo,
		load:       load,
		supplement: supplement,
		log:        log.With("service", "HierarchyService"),
	}
}

func (s *Service) Get(ctx context.Context) (types.Hierarchy, error) {
	s.mu.RLock()
	h := s.cached
	s.mu.RUnlock()
	if h != nil {
		return h, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil {
		return s.cached, nil
	}
	base, err := s.initialize(ctx)
	if err != nil {
		return nil, err
	}
	s.cached = s.withSupplement(base)
	return s.cached, nil
}

func (s *Service) initialize(ctx context.Context) (types.Hierarchy, error) {
	if s.repo != nil {
		empty, err := s.repo.IsEmpty(dbctx.With(ctx))
		if err != nil {
			s.log.Warn("hierarchy table unreadable; falling back to CSV", "error", err)
		} else if !empty {
			h, err := s.repo.Load(dbctx.With(ctx))
			if err == nil {
				s.log.Info("hierarchy loaded from database", "schools", len(h))
				return h, nil
			}
			s.log.Warn("hierarchy load failed; falling back to CSV", "error", err)
		}
	}
	return s.fromCSV(ctx)
}

func (s *Service) fromCSV(ctx context.Context) (types.Hierarchy, error) {
	if s.load == nil {
		return types.Hierarchy{}, nil
	}
	h, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	if len(h) > 0 && s.repo != nil {
		n, err := s.repo.ReplaceAll(dbctx.With(ctx), h)
		if err != nil {
			s.log.Warn("hierarchy write-back failed", "error", err)
		} else {
			s.log.Info("hierarchy cached to database", "rows", n)
		}
	}
	return h, nil
}

func (s *Service) withSupplement(base types.Hierarchy) types.Hierarchy {
	if len(base) == 0 {
		base = s.supplement.Fallback
	}
	return merge(base, s.supplement.Supplement)
}

// Refresh reloads from CSV and rewrites the table. When the CSV yields nothing the current
// hierarchy is kept.
func (s *Service) Refresh(ctx context.Context) (types.Hierarchy, error) {
	h, err := s.fromCSV(ctx)
	if err != nil {
		return nil, err
	}
	if len(h) == 0 {
		return s.Get(ctx)
	}
	merged := s.withSupplement(h)
	s.mu.Lock()
	s.cached = merged
	s.mu.Unlock()
	return merged, nil
}

func (s *Service) Schools(ctx context.Context) ([]string, error) {
	h, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(h), nil
}

func (s *Service) Colleges(ctx context.Context, school string) ([]string, error) {
	h, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	colleges, ok := h[school]
	if !ok {
		return nil, ErrSchoolNotFound
	}
	return sortedKeys(colleges), nil
}

func (s *Service) Majors(ctx context.Context, school, college string) ([]string, error) {
	h, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	colleges, ok := h[school]
	if !ok {
		return nil, ErrSchoolNotFound
	}
	majors, ok := colleges[college]
	if !ok {
		return nil, ErrCollegeNotFound
	}
	out := append([]string(nil), majors...)
	sort.Strings(out)
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	cached := s.cached != nil
	s.mu.RUnlock()
	h, err := s.Get(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Schools: len(h), MemoryCached: cached}
	for _, colleges := range h {
		st.Colleges += len(colleges)
		for _, majors := range colleges {
			st.TotalRecords += len(majors)
		}
	}
	return st, nil
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
