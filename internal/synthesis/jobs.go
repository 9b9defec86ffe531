package synthesis

import (
	"io/fs"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

func cleanText(s string) string {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

func jobDedupKey(j types.JobRecord) string {
	return strings.ToLower(cleanText(j.Title)) + "|" +
		strings.ToLower(cleanText(j.Employer)) + "|" +
		strings.ToLower(truncateRunes(cleanText(j.Description), 80))
}

// DedupJobs drops untitled postings and repeats of (title, employer, description prefix),
// keeping first occurrences in order. onProgress, when set, is called with the number of
// processed and kept records at roughly every quarter of the input.
func DedupJobs(jobs []types.JobRecord, onProgress func(processed, kept int)) []types.JobRecord {
	seen := make(map[string]struct{}, len(jobs))
	out := make([]types.JobRecord, 0, len(jobs))
	interval := max(1, len(jobs)/4)
	for i, j := range jobs {
		if cleanText(j.Title) != "" {
			k := jobDedupKey(j)
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, j)
			}
		}
		if onProgress != nil && ((i+1)%interval == 0 || i+1 == len(jobs)) {
			onProgress(i+1, len(out))
		}
	}
	return out
}

var salaryNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ParseSalaryMax estimates the monthly upper bound in CNY of a free-form salary string:
// "万" is ten thousand (per year when "/年" is present), "k" is a thousand.
func ParseSalaryMax(text string) float64 {
	t := strings.ReplaceAll(strings.ToLower(cleanText(text)), " ", "")
	if t == "" {
		return 0
	}
	var best float64
	found := false
	for _, m := range salaryNumber.FindAllString(t, -1) {
		v, err := strconv.ParseFloat(m, 64)
		if err != nil {
			continue
		}
		if !found || v > best {
			best, found = v, true
		}
	}
	if !found {
		return 0
	}
	switch {
	case strings.Contains(t, "万") && strings.Contains(t, "/年"):
		return best * 10000 / 12
	case strings.Contains(t, "万"):
		return best * 10000
	case strings.Contains(t, "k"):
		return best * 1000
	default:
		return best
	}
}

var largeEmployerKeywords = []string{"上市", "500强", "龙头", "央企", "国企", "大型", "集团"}

func containsAny(s string, subs []string) bool {
	for _, k := range subs {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

// QualityScore awards one point each for a monthly ceiling of at least 10k, a large
// employer, a bachelor's degree or above, and a description of at least 80 characters.
func QualityScore(j types.JobRecord) int {
	score := 0
	if ParseSalaryMax(j.Salary) >= 10000 {
		score++
	}
	if containsAny(cleanText(j.Employer), largeEmployerKeywords) || containsAny(cleanText(j.EmployerScale), largeEmployerKeywords) {
		score++
	}
	if containsAny(cleanText(j.Education), []string{"本科", "硕士", "博士"}) {
		score++
	}
	if utf8.RuneCountInString(cleanText(j.Description)) >= 80 {
		score++
	}
	return score
}

func IsHighQuality(j types.JobRecord) bool {
	return QualityScore(j) >= 2
}

const maxReferenceFiles = 20

var referenceExts = map[string]bool{
	".pdf": true, ".docx": true, ".txt": true, ".md": true, ".csv": true, ".xlsx": true, ".xls": true,
}

var (
	industryKeywords = []string{"行业", "发展报告", "产业"}
	policyKeywords   = []string{"政策", "意见", "通知", "指导"}
)

// DiscoverReferenceFiles walks roots for document files whose names contain any keyword,
// stopping at twenty hits. Missing roots are skipped.
func DiscoverReferenceFiles(roots []string, keywords []string) []string {
	lower := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(cleanText(k)); k != "" {
			lower = append(lower, k)
		}
	}
	var hits []string
	for _, root := range roots {
		if len(hits) >= maxReferenceFiles {
			break
		}
		_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d == nil {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !referenceExts[strings.ToLower(filepath.Ext(d.Name()))] {
				return nil
			}
			if containsAny(strings.ToLower(d.Name()), lower) {
				hits = append(hits, path)
				if len(hits) >= maxReferenceFiles {
					return filepath.SkipAll
				}
			}
			return nil
		})
	}
	return hits
}

// extSummary renders up to three "ext:count" pairs in first-seen order.
func extSummary(paths []string) string {
	counts := map[string]int{}
	var order []string
	for _, p := range paths {
		ext := strings.ToLower(filepath.Ext(p))
		if ext == "" {
			ext = "unknown"
		}
		if _, ok := counts[ext]; !ok {
			order = append(order, ext)
		}
		counts[ext]++
	}
	if len(order) > 3 {
		order = order[:3]
	}
	parts := make([]string, 0, len(order))
	for _, ext := range order {
		parts = append(parts, ext+":"+strconv.Itoa(counts[ext]))
	}
	return strings.Join(parts, "，")
}
