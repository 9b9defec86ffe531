package datasource

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

const DefaultProvinceLabel = "重庆市招聘数据"

var provinceFileNames = []string{"重庆市职位招聘.csv", "职位.csv", "jobs.csv", "招聘数据.csv"}

// CSVJobSource serves the province-wide job dataset. Matching widens in three passes:
// the full major name, then its keywords when fewer than ten rows hit, then four-rune
// broad classes when fewer than five hit.
type CSVJobSource struct {
	label string
	path  string
	t     *table
	log   *logger.Logger
}

// NewCSVJobSource loads the first known dataset file in dir, falling back to any CSV
// there. A missing directory or file gives an empty source.
func NewCSVJobSource(dir, label string, log *logger.Logger) (*CSVJobSource, error) {
	if log == nil {
		log = logger.Nop()
	}
	if label == "" {
		label = DefaultProvinceLabel
	}
	s := &CSVJobSource{label: label, log: log.With("component", "CSVJobSource")}
	s.path = locateDataset(dir)
	if s.path == "" {
		s.log.Warn("job dataset not found", "dir", dir)
		return s, nil
	}
	t, err := readTable(s.path)
	if err != nil {
		return nil, err
	}
	s.t = t
	s.log.Info("job dataset loaded", "path", s.path, "rows", t.Len(), "encoding", t.encoding)
	return s, nil
}

func locateDataset(dir string) string {
	if dir == "" {
		return ""
	}
	for _, name := range provinceFileNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return ""
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0])
}

func (s *CSVJobSource) Name() string { return s.label }

func (s *CSVJobSource) Len() int { return s.t.Len() }

// ExtractKeywords derives search keywords from a major name, for example
// "电气工程及其自动化" gives 电气工程及其自动化, 电气工程, 自动化.
func ExtractKeywords(major string) []string {
	clean := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(major, "专业", ""), "类", ""))
	keywords := []string{clean}
	for _, sep := range []string{"及其", "与", "和"} {
		if !strings.Contains(clean, sep) {
			continue
		}
		for _, p := range strings.Split(clean, sep) {
			if p = strings.TrimSpace(p); utf8.RuneCountInString(p) >= 2 {
				keywords = append(keywords, p)
			}
		}
	}
	if utf8.RuneCountInString(clean) >= 4 {
		keywords = append(keywords, firstRunes(clean, 4))
	}
	if i := strings.LastIndex(clean, "及其"); i >= 0 {
		keywords = append(keywords, clean[i+len("及其"):])
	}

	seen := map[string]struct{}{}
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if _, dup := seen[k]; dup || utf8.RuneCountInString(k) < 2 {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// SearchJobsByMajor returns titled postings whose required-majors column matches major.
// limit <= 0 means no limit.
func (s *CSVJobSource) SearchJobsByMajor(ctx context.Context, major string, limit int) ([]types.JobRecord, error) {
	if s.t.Len() == 0 || !s.t.has("需求专业") {
		return []types.JobRecord{}, nil
	}
	major = strings.TrimSpace(major)
	if major == "" {
		return []types.JobRecord{}, nil
	}
	keywords := ExtractKeywords(major)

	picked := make(map[int]struct{})
	var order []int
	match := func(term string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i, row := range s.t.rows {
			if _, ok := picked[i]; ok {
				continue
			}
			if containsFold(s.t.get(row, "需求专业"), term) {
				picked[i] = struct{}{}
				order = append(order, i)
			}
		}
		return nil
	}

	if err := match(major); err != nil {
		return nil, err
	}
	exact := len(order)
	if len(order) < 10 {
		for _, kw := range keywords {
			if err := match(kw); err != nil {
				return nil, err
			}
		}
	}
	if len(order) < 5 {
		for _, kw := range keywords {
			if utf8.RuneCountInString(kw) >= 4 {
				if err := match(firstRunes(kw, 4)); err != nil {
					return nil, err
				}
			}
		}
	}
	s.log.Debug("job search", "major", major, "keywords", keywords, "exact", exact, "total", len(order))

	out := make([]types.JobRecord, 0, len(order))
	for _, i := range order {
		if limit > 0 && len(out) >= limit {
			break
		}
		j := jobFromRow(s.t, s.t.rows[i])
		if j.Title == "" {
			continue
		}
		j.Source = s.label
		out = append(out, j)
	}
	return out, nil
}

// Categories lists the distinct job categories, sorted.
func (s *CSVJobSource) Categories() []string {
	if !s.t.has("职位类别") {
		return []string{}
	}
	seen := map[string]struct{}{}
	for _, row := range s.t.rows {
		if c := s.t.get(row, "职位类别"); c != "" {
			seen[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (s *CSVJobSource) DatasetStats() types.DatasetStats {
	st := types.DatasetStats{TotalJobs: s.t.Len()}
	if s.t.Len() == 0 {
		return st
	}
	st.TotalCompanies = distinctCount(s.t, "单位名称")
	st.Categories = distinctCount(s.t, "职位类别")
	return st
}

func distinctCount(t *table, col string) int {
	if !t.has(col) {
		return 0
	}
	seen := map[string]struct{}{}
	for _, row := range t.rows {
		if v := t.get(row, col); v != "" {
			seen[v] = struct{}{}
		}
	}
	return len(seen)
}
