package datasource

import (
	"context"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

const (
	LegacyLabel = "旧数据源"

	legacyJobsFile  = "职位.csv"
	legacyTalksFile = "宣讲会.csv"
	legacyFairsFile = "招聘会.csv"

	unspecifiedCollege = "未指定学院/部门"
)

// LegacyDataset is the campus dataset: jobs, recruitment talks and job fairs. It serves as
// a JobSource with plain substring matching and as the EventSource.
type LegacyDataset struct {
	jobs  *table
	talks *table
	fairs *table
	log   *logger.Logger
}

// NewLegacyDataset loads the three files from dir. Missing files leave their part empty.
func NewLegacyDataset(dir string, log *logger.Logger) (*LegacyDataset, error) {
	if log == nil {
		log = logger.Nop()
	}
	d := &LegacyDataset{log: log.With("component", "LegacyDataset")}
	if dir == "" {
		return d, nil
	}
	var err error
	if d.jobs, err = readTable(filepath.Join(dir, legacyJobsFile)); err != nil {
		return nil, err
	}
	if d.talks, err = readTable(filepath.Join(dir, legacyTalksFile)); err != nil {
		return nil, err
	}
	if d.fairs, err = readTable(filepath.Join(dir, legacyFairsFile)); err != nil {
		return nil, err
	}
	d.log.Info("campus dataset loaded", "dir", dir, "jobs", d.jobs.Len(), "talks", d.talks.Len(), "fairs", d.fairs.Len())
	return d, nil
}

func (d *LegacyDataset) Name() string { return LegacyLabel }

func (d *LegacyDataset) SearchJobsByMajor(ctx context.Context, major string, limit int) ([]types.JobRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	major = strings.TrimSpace(major)
	if d.jobs.Len() == 0 || !d.jobs.has("需求专业") || major == "" {
		return []types.JobRecord{}, nil
	}
	out := []types.JobRecord{}
	for _, row := range d.jobs.rows {
		if limit > 0 && len(out) >= limit {
			break
		}
		if !containsFold(d.jobs.get(row, "需求专业"), major) {
			continue
		}
		j := jobFromRow(d.jobs, row)
		j.Source = LegacyLabel
		out = append(out, j)
	}
	return out, nil
}

// RelatedTalks matches talks by school and, when college is set, by following department.
func (d *LegacyDataset) RelatedTalks(ctx context.Context, school, college string, limit int) ([]types.TalkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	out := []types.TalkRecord{}
	if d.talks.Len() == 0 {
		return out, nil
	}
	school, college = strings.TrimSpace(school), strings.TrimSpace(college)
	for _, row := range d.talks.rows {
		if len(out) >= limit {
			break
		}
		if !containsFold(d.talks.get(row, "来源高校"), school) {
			continue
		}
		if college != "" && !containsFold(d.talks.get(row, "跟进部门"), college) {
			continue
		}
		out = append(out, types.TalkRecord{
			Name:       d.talks.get(row, "宣讲会名称"),
			Company:    d.talks.get(row, "单位全称"),
			School:     d.talks.get(row, "来源高校"),
			Department: d.talks.get(row, "跟进部门"),
		})
	}
	return out, nil
}

func (d *LegacyDataset) RelatedFairs(ctx context.Context, school string, limit int) ([]types.FairRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	out := []types.FairRecord{}
	if d.fairs.Len() == 0 {
		return out, nil
	}
	school = strings.TrimSpace(school)
	for _, row := range d.fairs.rows {
		if len(out) >= limit {
			break
		}
		if !containsFold(d.fairs.get(row, "主办单位"), school) {
			continue
		}
		out = append(out, types.FairRecord{
			Name:      d.fairs.get(row, "招聘会名称", "名称"),
			Organizer: d.fairs.get(row, "主办单位"),
			Source:    d.fairs.get(row, "来源"),
		})
	}
	return out, nil
}

// DatasetStats counts distinct employers and the summed headcount of the jobs file.
func (d *LegacyDataset) DatasetStats() types.DatasetStats {
	st := types.DatasetStats{TotalJobs: d.jobs.Len()}
	if d.jobs.Len() == 0 {
		return st
	}
	st.TotalCompanies = distinctCount(d.jobs, "单位名称")
	st.Categories = distinctCount(d.jobs, "职位类别")
	if d.jobs.has("需求人数") {
		for _, row := range d.jobs.rows {
			if n, err := strconv.ParseFloat(d.jobs.get(row, "需求人数"), 64); err == nil {
				st.TotalPositions += int(n)
			}
		}
	}
	return st
}

// Hierarchy joins talks to jobs on the employer name: a talk places its company at a
// school and college, and the company's postings name the majors it recruits.
func (d *LegacyDataset) Hierarchy() types.Hierarchy {
	out := types.Hierarchy{}
	if d.jobs.Len() == 0 || d.talks.Len() == 0 {
		return out
	}

	majorsByCompany := map[string][]string{}
	for _, row := range d.jobs.rows {
		company := d.jobs.get(row, "单位名称")
		majors := d.jobs.get(row, "需求专业")
		if company == "" || majors == "" {
			continue
		}
		majorsByCompany[company] = append(majorsByCompany[company], majors)
	}

	sets := map[string]map[string]map[string]struct{}{}
	for _, row := range d.talks.rows {
		school := d.talks.get(row, "来源高校")
		if school == "" {
			continue
		}
		college := d.talks.get(row, "跟进部门")
		if college == "" {
			college = unspecifiedCollege
		}
		for _, majors := range majorsByCompany[d.talks.get(row, "单位全称")] {
			for _, m := range strings.Split(strings.ReplaceAll(majors, "，", ","), ",") {
				m = strings.TrimSpace(m)
				if m == "" || strings.EqualFold(m, "nan") {
					continue
				}
				if sets[school] == nil {
					sets[school] = map[string]map[string]struct{}{}
				}
				if sets[school][college] == nil {
					sets[school][college] = map[string]struct{}{}
				}
				sets[school][college][m] = struct{}{}
			}
		}
	}

	for school, colleges := range sets {
		out[school] = make(map[string][]string, len(colleges))
		for college, majors := range colleges {
			list := make([]string, 0, len(majors))
			for m := range majors {
				list = append(list, m)
			}
			sort.Strings(list)
			out[school][college] = list
		}
	}
	return out
}
