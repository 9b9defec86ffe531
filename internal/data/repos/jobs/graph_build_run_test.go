package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/majorgraph-backend/internal/data/repos/testutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

func TestGraphBuildRunRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}
	repo := NewGraphBuildRunRepo(db, testutil.Logger(t))

	ref := types.GraphRef{School: "重庆大学", College: "电气工程学院", Major: "电气工程"}
	now := time.Now().UTC()
	older := &types.GraphBuildRun{
		School: ref.School, College: ref.College, Major: ref.Major,
		CacheKey:  "k1",
		CreatedAt: now.Add(-2 * time.Hour),
		UpdatedAt: now.Add(-2 * time.Hour),
	}
	newer := &types.GraphBuildRun{
		ID:     uuid.New(),
		School: ref.School, College: ref.College, Major: ref.Major,
		CacheKey:  "k1",
		Status:    types.RunStatusRunning,
		CreatedAt: now.Add(-1 * time.Hour),
		UpdatedAt: now,
	}
	for _, run := range []*types.GraphBuildRun{older, newer} {
		if err := repo.Create(dbc, run); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	if older.ID == uuid.Nil || older.Status != types.RunStatusQueued {
		t.Fatalf("Create defaults: id=%v status=%q", older.ID, older.Status)
	}

	got, err := repo.GetByID(dbc, newer.ID)
	if err != nil || got == nil || got.Major != ref.Major {
		t.Fatalf("GetByID: err=%v got=%+v", err, got)
	}
	if missing, err := repo.GetByID(dbc, uuid.New()); err != nil || missing != nil {
		t.Fatalf("GetByID missing: err=%v got=%+v", err, missing)
	}

	list, err := repo.ListByRef(dbc, ref, 10)
	if err != nil || len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("ListByRef: err=%v len=%d", err, len(list))
	}

	if err := repo.UpdateFields(dbc, newer.ID, map[string]interface{}{"step_id": 3, "stage": "岗位匹配完成"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	got, _ = repo.GetByID(dbc, newer.ID)
	if got.StepID != 3 || got.Stage != "岗位匹配完成" {
		t.Fatalf("UpdateFields: got step=%d stage=%q", got.StepID, got.Stage)
	}

	changed, err := repo.UpdateFieldsUnlessStatus(dbc, newer.ID, []string{types.RunStatusRunning}, map[string]interface{}{"message": "x"})
	if err != nil || changed {
		t.Fatalf("UpdateFieldsUnlessStatus (blocked): changed=%v err=%v", changed, err)
	}

	counts, err := repo.CountByStatus(dbc)
	if err != nil {
		t.Fatalf("CountByStatus: %v", err)
	}
	if counts[types.RunStatusQueued] != 1 || counts[types.RunStatusRunning] != 1 {
		t.Fatalf("CountByStatus: got=%v", counts)
	}

	n, err := repo.FailAbandoned(dbc, now.Add(-30*time.Minute), "process restarted")
	if err != nil || n != 1 {
		t.Fatalf("FailAbandoned: n=%d err=%v", n, err)
	}
	got, _ = repo.GetByID(dbc, older.ID)
	if got.Status != types.RunStatusFailed || got.Error != "process restarted" {
		t.Fatalf("FailAbandoned: got status=%q error=%q", got.Status, got.Error)
	}
}
