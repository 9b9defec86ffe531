package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/majorgraph-backend/internal/data/repos/catalog"
	"github.com/yungbote/majorgraph-backend/internal/data/repos/jobs"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

type GraphBuildRunRepo = jobs.GraphBuildRunRepo
type SchoolHierarchyRepo = catalog.SchoolHierarchyRepo

func NewGraphBuildRunRepo(db *gorm.DB, baseLog *logger.Logger) GraphBuildRunRepo {
	return jobs.NewGraphBuildRunRepo(db, baseLog)
}

func NewSchoolHierarchyRepo(db *gorm.DB, baseLog *logger.Logger) SchoolHierarchyRepo {
	return catalog.NewSchoolHierarchyRepo(db, baseLog)
}

// Repos bundles the repositories the service wires.
type Repos struct {
	Runs      GraphBuildRunRepo
	Hierarchy SchoolHierarchyRepo
}

func New(db *gorm.DB, baseLog *logger.Logger) Repos {
	return Repos{
		Runs:      NewGraphBuildRunRepo(db, baseLog),
		Hierarchy: NewSchoolHierarchyRepo(db, baseLog),
	}
}
