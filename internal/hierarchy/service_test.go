package hierarchy

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/yungbote/majorgraph-backend/internal/data/repos"
	"github.com/yungbote/majorgraph-backend/internal/data/repos/testutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

func csvLoader(h types.Hierarchy, calls *int) Loader {
	return func(context.Context) (types.Hierarchy, error) {
		*calls++
		return h, nil
	}
}

func TestServiceLoadsCSVOnceAndPersists(t *testing.T) {
	db := testutil.DB(t)
	repo := repos.NewSchoolHierarchyRepo(db, nil)
	csv := types.Hierarchy{"重庆大学": {"电气工程学院": {"自动化", "电气工程"}}}
	calls := 0
	svc := NewService(repo, csvLoader(csv, &calls), &Supplement{
		Supplement: types.Hierarchy{"重庆大学": {"电气工程学院": {"电气工程", "智能电网"}}},
	}, nil)

	ctx := context.Background()
	majors, err := svc.Majors(ctx, "重庆大学", "电气工程学院")
	if err != nil {
		t.Fatalf("Majors: %v", err)
	}
	want := []string{"智能电网", "电气工程", "自动化"}
	if !reflect.DeepEqual(majors, want) {
		t.Fatalf("Majors: want=%v got=%v", want, majors)
	}
	if _, err := svc.Schools(ctx); err != nil || calls != 1 {
		t.Fatalf("second read: calls=%d err=%v", calls, err)
	}
	if empty, _ := repo.IsEmpty(dbctx.With(ctx)); empty {
		t.Fatalf("expected CSV rows written back to the table")
	}

	// A fresh service on the same database reads the table, not the CSV.
	calls2 := 0
	svc2 := NewService(repo, csvLoader(nil, &calls2), nil, nil)
	schools, err := svc2.Schools(ctx)
	if err != nil || calls2 != 0 || !reflect.DeepEqual(schools, []string{"重庆大学"}) {
		t.Fatalf("db read: schools=%v calls=%d err=%v", schools, calls2, err)
	}
}

func TestServiceLookupsAndFallback(t *testing.T) {
	sup, err := LoadSupplement()
	if err != nil {
		t.Fatalf("LoadSupplement: %v", err)
	}
	calls := 0
	svc := NewService(nil, csvLoader(types.Hierarchy{}, &calls), sup, nil)
	ctx := context.Background()

	schools, err := svc.Schools(ctx)
	if err != nil {
		t.Fatalf("Schools: %v", err)
	}
	if !reflect.DeepEqual(schools, []string{"西南大学", "重庆大学", "重庆邮电大学"}) {
		t.Fatalf("Schools: got=%v", schools)
	}
	if _, err := svc.Colleges(ctx, "清华大学"); !errors.Is(err, ErrSchoolNotFound) {
		t.Fatalf("unknown school: want=%v got=%v", ErrSchoolNotFound, err)
	}
	if _, err := svc.Majors(ctx, "重庆大学", "文学院"); !errors.Is(err, ErrCollegeNotFound) {
		t.Fatalf("unknown college: want=%v got=%v", ErrCollegeNotFound, err)
	}
	st, err := svc.Stats(ctx)
	if err != nil || st.Schools != 3 || !st.MemoryCached {
		t.Fatalf("Stats: got=%+v err=%v", st, err)
	}
}

func TestRefreshReplacesCache(t *testing.T) {
	current := types.Hierarchy{"A大学": {"甲学院": {"专业1"}}}
	svc := NewService(nil, func(context.Context) (types.Hierarchy, error) { return current, nil }, nil, nil)
	ctx := context.Background()
	if _, err := svc.Get(ctx); err != nil {
		t.Fatalf("Get: %v", err)
	}
	current = types.Hierarchy{"B大学": {"乙学院": {"专业2"}}}
	h, err := svc.Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if _, ok := h["B大学"]; !ok {
		t.Fatalf("Refresh: got=%v", h)
	}

	current = nil
	h, err = svc.Refresh(ctx)
	if err != nil || h["B大学"] == nil {
		t.Fatalf("empty refresh should keep the cache: h=%v err=%v", h, err)
	}
}

func TestLoadSupplementOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "h.yaml")
	if err := os.WriteFile(path, []byte("supplement:\n  X大学:\n    Y学院: [Z]\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HIERARCHY_SUPPLEMENT_FILE", path)
	sup, err := LoadSupplement()
	if err != nil {
		t.Fatalf("LoadSupplement: %v", err)
	}
	if got := sup.Supplement["X大学"]["Y学院"]; !reflect.DeepEqual(got, []string{"Z"}) {
		t.Fatalf("supplement: got=%v", got)
	}
	if len(sup.Fallback) != 0 {
		t.Fatalf("fallback: want empty got=%v", sup.Fallback)
	}
}
