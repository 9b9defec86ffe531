package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
)

// GraphBuildRun is the persisted history of one synthesis run.
type GraphBuildRun struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	School    string         `gorm:"column:school;not null;index:idx_graph_build_run_ref" json:"school"`
	College   string         `gorm:"column:college;not null;index:idx_graph_build_run_ref" json:"college"`
	Major     string         `gorm:"column:major;not null;index:idx_graph_build_run_ref" json:"major"`
	CacheKey  string         `gorm:"column:cache_key;not null;index" json:"cache_key"`
	Status    string         `gorm:"column:status;not null;index" json:"status"` // queued|running|succeeded|failed
	Stage     string         `gorm:"column:stage" json:"stage"`
	StepID    int            `gorm:"column:step_id;not null;default:0" json:"step_id"`
	Progress  int            `gorm:"column:progress;not null;default:0" json:"progress"`
	Message   string         `gorm:"column:message" json:"message"`
	Error     string         `gorm:"column:error" json:"error,omitempty"`
	Summary   datatypes.JSON `gorm:"column:summary" json:"summary,omitempty"`
	CreatedAt time.Time      `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null" json:"updated_at"`
}

func (GraphBuildRun) TableName() string { return "graph_build_run" }

// SchoolHierarchy is one (school, college, major) row of the hierarchy cache.
type SchoolHierarchy struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	School    string    `gorm:"column:school;not null;index" json:"school"`
	College   string    `gorm:"column:college;not null;index" json:"college"`
	Major     string    `gorm:"column:major;not null" json:"major"`
	CreatedAt time.Time `json:"created_at"`
}

func (SchoolHierarchy) TableName() string { return "school_hierarchy" }
