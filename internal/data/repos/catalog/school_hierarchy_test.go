package catalog

import (
	"context"
	"reflect"
	"testing"

	"github.com/yungbote/majorgraph-backend/internal/data/repos/testutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

func TestSchoolHierarchyRepo(t *testing.T) {
	db := testutil.DB(t)
	dbc := dbctx.With(context.Background())
	repo := NewSchoolHierarchyRepo(db, testutil.Logger(t))

	empty, err := repo.IsEmpty(dbc)
	if err != nil || !empty {
		t.Fatalf("IsEmpty: empty=%v err=%v", empty, err)
	}

	first := types.Hierarchy{
		"重庆大学": {
			"电气工程学院": {"电气工程", "自动化"},
			"经济学院":   {"金融学"},
		},
	}
	n, err := repo.ReplaceAll(dbc, first)
	if err != nil || n != 3 {
		t.Fatalf("ReplaceAll: n=%d err=%v", n, err)
	}
	got, err := repo.Load(dbc)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, first) {
		t.Fatalf("Load: want=%v got=%v", first, got)
	}

	second := types.Hierarchy{"西南大学": {"计算机学院": {"软件工程"}}}
	if _, err := repo.ReplaceAll(dbc, second); err != nil {
		t.Fatalf("ReplaceAll second: %v", err)
	}
	got, _ = repo.Load(dbc)
	if !reflect.DeepEqual(got, second) {
		t.Fatalf("Load after replace: want=%v got=%v", second, got)
	}
	if empty, _ := repo.IsEmpty(dbc); empty {
		t.Fatalf("IsEmpty after replace: want=false")
	}
}
