package synthesis

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

// extractionText assembles the source text handed to the extractor: the major's context, a
// statistics header, then one paragraph per described job.
type extractionText struct {
	b       strings.Builder
	total   int
	descMax int
}

func newExtractionText(ref types.GraphRef, talks []types.TalkRecord, jobs []types.JobRecord) *extractionText {
	t := &extractionText{total: len(jobs), descMax: 500}
	if len(jobs) >= 50 {
		t.descMax = 200
	}
	fmt.Fprintf(&t.b, "专业名称：%s\n所属学院：%s\n所属学校：%s\n\n", ref.Major, ref.College, ref.School)
	t.b.WriteString("基于招聘市场数据分析该专业对应的就业岗位和能力要求：\n\n")

	if len(talks) > 0 {
		names := make([]string, 0, 3)
		for _, tk := range talks[:min(3, len(talks))] {
			names = append(names, tk.Name)
		}
		fmt.Fprintf(&t.b, "学校近期举办了 %d 场宣讲会，包括：%s...\n\n", len(talks), strings.Join(names, ", "))
	}

	if len(jobs) == 0 {
		t.b.WriteString("该专业培养具有扎实理论基础和实践能力的高素质应用型人才...\n")
		return t
	}

	t.b.WriteString("【市场数据统计】\n")
	fmt.Fprintf(&t.b, "分析样本：%d 个相关职位\n", len(jobs))
	if top := topCategories(jobs, 5); len(top) > 0 {
		fmt.Fprintf(&t.b, "热门职位类别：%s\n", strings.Join(top, ", "))
	}
	if s := distinctSample(jobs, func(j types.JobRecord) string { return j.Salary }, 5); len(s) > 0 {
		fmt.Fprintf(&t.b, "薪资范围：%s\n", strings.Join(s, ", "))
	}
	if s := distinctSample(jobs, func(j types.JobRecord) string { return j.Education }, 5); len(s) > 0 {
		fmt.Fprintf(&t.b, "学历要求：%s\n", strings.Join(s, ", "))
	}
	fmt.Fprintf(&t.b, "\n【全部职位要求分析（共%d个）】\n", len(jobs))
	return t
}

func (t *extractionText) AddJob(idx int, j types.JobRecord) {
	desc := cleanText(j.Description)
	title := cleanText(j.Title)
	if desc == "" || title == "" {
		return
	}
	fmt.Fprintf(&t.b, "\n【职位%d/%d】%s", idx+1, t.total, title)
	if c := cleanText(j.Category); c != "" {
		fmt.Fprintf(&t.b, " (类别：%s)", c)
	}
	if e := cleanText(j.Employer); e != "" {
		fmt.Fprintf(&t.b, "\n公司：%s\n", e)
	}
	suffix := ""
	if utf8.RuneCountInString(desc) > t.descMax {
		suffix = "..."
	}
	fmt.Fprintf(&t.b, "描述：%s%s\n", truncateRunes(desc, t.descMax), suffix)
}

func (t *extractionText) String() string { return t.b.String() }

func (t *extractionText) Len() int { return utf8.RuneCountInString(t.b.String()) }

// topCategories returns "category(count)" for the n most frequent categories; ties keep
// first-seen order.
func topCategories(jobs []types.JobRecord, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, j := range jobs {
		c := cleanText(j.Category)
		if c == "" {
			continue
		}
		if _, ok := counts[c]; !ok {
			order = append(order, c)
		}
		counts[c]++
	}
	sort.SliceStable(order, func(a, b int) bool { return counts[order[a]] > counts[order[b]] })
	if len(order) > n {
		order = order[:n]
	}
	out := make([]string, 0, len(order))
	for _, c := range order {
		out = append(out, fmt.Sprintf("%s(%d)", c, counts[c]))
	}
	return out
}

func distinctSample(jobs []types.JobRecord, field func(types.JobRecord) string, n int) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, j := range jobs {
		v := cleanText(field(j))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		if len(out) == n {
			break
		}
	}
	return out
}
