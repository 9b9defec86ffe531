package datasource

import (
	"context"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

// JobSource answers job postings for a major. Name labels the source in progress messages.
type JobSource interface {
	Name() string
	SearchJobsByMajor(ctx context.Context, major string, limit int) ([]types.JobRecord, error)
}

// EventSource answers campus talks and job fairs for a school.
type EventSource interface {
	RelatedTalks(ctx context.Context, school, college string, limit int) ([]types.TalkRecord, error)
	RelatedFairs(ctx context.Context, school string, limit int) ([]types.FairRecord, error)
}

const DefaultEventLimit = 10

func jobFromRow(t *table, row []string) types.JobRecord {
	return types.JobRecord{
		ID:            t.get(row, "编号"),
		Title:         t.get(row, "职位名称"),
		Headcount:     t.get(row, "需求人数"),
		Salary:        t.get(row, "薪资"),
		Category:      t.get(row, "职位类别"),
		Education:     t.get(row, "学历要求"),
		Majors:        t.get(row, "需求专业"),
		Description:   t.get(row, "职位描述"),
		Employer:      t.get(row, "单位名称"),
		Location:      t.get(row, "单位所在地"),
		EmployerScale: t.get(row, "单位规模"),
		City:          t.get(row, "工作城市"),
	}
}
