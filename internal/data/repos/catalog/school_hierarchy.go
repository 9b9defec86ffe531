package catalog

import (
	"sort"

	"gorm.io/gorm"

	"github.com/yungbote/majorgraph-backend/internal/platform/dbctx"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

type SchoolHierarchyRepo interface {
	// ReplaceAll rewrites the whole table in one transaction and returns the rows written.
	ReplaceAll(dbc dbctx.Context, h types.Hierarchy) (int, error)
	Load(dbc dbctx.Context) (types.Hierarchy, error)
	IsEmpty(dbc dbctx.Context) (bool, error)
}

type schoolHierarchyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSchoolHierarchyRepo(db *gorm.DB, baseLog *logger.Logger) SchoolHierarchyRepo {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	return &schoolHierarchyRepo{db: db, log: baseLog.With("repo", "SchoolHierarchyRepo")}
}

func (r *schoolHierarchyRepo) ReplaceAll(dbc dbctx.Context, h types.Hierarchy) (int, error) {
	rows := flatten(h)
	err := dbc.DB(r.db).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&types.SchoolHierarchy{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, 500).Error
	})
	if err != nil {
		return 0, err
	}
	r.log.Info("school hierarchy table rewritten", "rows", len(rows))
	return len(rows), nil
}

func (r *schoolHierarchyRepo) Load(dbc dbctx.Context) (types.Hierarchy, error) {
	var rows []types.SchoolHierarchy
	if err := dbc.DB(r.db).Order("school, college, major").Find(&rows).Error; err != nil {
		return nil, err
	}
	h := types.Hierarchy{}
	for _, row := range rows {
		colleges, ok := h[row.School]
		if !ok {
			colleges = map[string][]string{}
			h[row.School] = colleges
		}
		colleges[row.College] = append(colleges[row.College], row.Major)
	}
	return h, nil
}

func (r *schoolHierarchyRepo) IsEmpty(dbc dbctx.Context) (bool, error) {
	var count int64
	if err := dbc.DB(r.db).Model(&types.SchoolHierarchy{}).Count(&count).Error; err != nil {
		return false, err
	}
	return count == 0, nil
}

func flatten(h types.Hierarchy) []*types.SchoolHierarchy {
	schools := make([]string, 0, len(h))
	for s := range h {
		schools = append(schools, s)
	}
	sort.Strings(schools)
	var rows []*types.SchoolHierarchy
	for _, s := range schools {
		colleges := make([]string, 0, len(h[s]))
		for c := range h[s] {
			colleges = append(colleges, c)
		}
		sort.Strings(colleges)
		for _, c := range colleges {
			for _, m := range h[s][c] {
				rows = append(rows, &types.SchoolHierarchy{School: s, College: c, Major: m})
			}
		}
	}
	return rows
}
