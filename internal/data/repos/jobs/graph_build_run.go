package jobs

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

type GraphBuildRunRepo interface {
	Create(dbc dbctx.Context, run *types.GraphBuildRun) error
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GraphBuildRun, error)
	ListByRef(dbc dbctx.Context, ref types.GraphRef, limit int) ([]*types.GraphBuildRun, error)
	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error)
	CountByStatus(dbc dbctx.Context) (map[string]int64, error)
	FailAbandoned(dbc dbctx.Context, before time.Time, reason string) (int64, error)
}

type graphBuildRunRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGraphBuildRunRepo(db *gorm.DB, baseLog *logger.Logger) GraphBuildRunRepo {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &graphBuildRunRepo{
		db:  db,
		log: baseLog.With("repo", "GraphBuildRunRepo"),
	}
}

func (r *graphBuildRunRepo) Create(dbc dbctx.Context, run *types.GraphBuildRun) error {
	if run == nil {
		return nil
	}
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = types.RunStatusQueued
	}
	return dbc.DB(r.db).Create(run).Error
}

// GetByID returns nil, nil when the run does not exist.
func (r *graphBuildRunRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GraphBuildRun, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	var run types.GraphBuildRun
	err := dbc.DB(r.db).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListByRef returns the newest runs first.
func (r *graphBuildRunRepo) ListByRef(dbc dbctx.Context, ref types.GraphRef, limit int) ([]*types.GraphBuildRun, error) {
	ref = ref.Trimmed()
	var out []*types.GraphBuildRun
	if !ref.Valid() {
		return out, nil
	}
	if limit <= 0 {
		limit = 20
	}
	err := dbc.DB(r.db).
		Where("school = ? AND college = ? AND major = ?", ref.School, ref.College, ref.Major).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *graphBuildRunRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}
	return dbc.DB(r.db).
		Model(&types.GraphBuildRun{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// UpdateFieldsUnlessStatus skips the update when the run is in one of disallowedStatuses and
// reports whether a row changed.
func (r *graphBuildRunRepo) UpdateFieldsUnlessStatus(dbc dbctx.Context, id uuid.UUID, disallowedStatuses []string, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now()
	}

	q := dbc.DB(r.db).
		Model(&types.GraphBuildRun{}).
		Where("id = ?", id)
	if len(disallowedStatuses) == 1 {
		q = q.Where("status <> ?", disallowedStatuses[0])
	} else if len(disallowedStatuses) > 1 {
		q = q.Where("status NOT IN ?", disallowedStatuses)
	}

	res := q.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *graphBuildRunRepo) CountByStatus(dbc dbctx.Context) (map[string]int64, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := dbc.DB(r.db).
		Model(&types.GraphBuildRun{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// FailAbandoned marks queued or running rows last touched before the cutoff as failed. Runs
// live in process memory, so rows left behind by a previous process can never finish.
func (r *graphBuildRunRepo) FailAbandoned(dbc dbctx.Context, before time.Time, reason string) (int64, error) {
	res := dbc.DB(r.db).
		Model(&types.GraphBuildRun{}).
		Where("status IN ? AND updated_at < ?", []string{types.RunStatusQueued, types.RunStatusRunning}, before).
		Updates(map[string]interface{}{
			"status":     types.RunStatusFailed,
			"error":      reason,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		r.log.Warn("abandoned graph build runs marked failed", "count", res.RowsAffected)
	}
	return res.RowsAffected, nil
}
