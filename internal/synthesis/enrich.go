package synthesis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

type term struct {
	keyword string
	label   string
}

// Keyword dictionaries. Matching is plain substring membership against the lowercase blob.
var (
	skillTerms = []term{
		{"python", "Python"},
		{"java", "Java"},
		{"c++", "C++"},
		{"c语言", "C语言"},
		{"matlab", "MATLAB"},
		{"autocad", "AutoCAD"},
		{"plc", "PLC编程"},
		{"单片机", "单片机开发"},
		{"嵌入式", "嵌入式开发"},
		{"数据库", "数据库设计"},
		{"sql", "SQL"},
		{"电路", "电路分析"},
		{"仿真", "系统仿真"},
		{"测试", "测试与调试"},
		{"linux", "Linux"},
		{"算法", "算法设计"},
		{"自动化", "自动化控制"},
	}
	qualityTerms = []term{
		{"沟通", "沟通能力"},
		{"团队", "团队协作"},
		{"责任", "责任心"},
		{"学习", "学习能力"},
		{"抗压", "抗压能力"},
		{"执行", "执行力"},
		{"细心", "细心严谨"},
		{"创新", "创新意识"},
		{"协调", "组织协调能力"},
	}
	capabilityTerms = []term{
		{"电力", "电力系统设计能力"},
		{"自动化", "自动化控制能力"},
		{"嵌入式", "嵌入式系统开发能力"},
		{"plc", "工业控制与PLC调试能力"},
		{"算法", "算法建模与优化能力"},
		{"测试", "系统测试与故障诊断能力"},
		{"项目", "工程项目实施能力"},
		{"电路", "电路分析与设计能力"},
	}
	// skill label -> supporting course
	courseBySkill = map[string]string{
		"Python":  "Python程序设计",
		"Java":    "Java程序设计",
		"C++":     "高级语言程序设计",
		"C语言":     "C语言程序设计",
		"MATLAB":  "工程计算与MATLAB",
		"AutoCAD": "工程制图与CAD",
		"PLC编程":   "PLC原理与应用",
		"单片机开发":   "单片机原理",
		"嵌入式开发":   "嵌入式系统设计",
		"数据库设计":   "数据库原理",
		"SQL":     "数据库应用技术",
		"电路分析":    "电路分析基础",
		"系统仿真":    "控制系统仿真",
		"测试与调试":   "自动化测试技术",
		"Linux":   "Linux系统应用",
		"算法设计":    "数据结构与算法",
		"自动化控制":   "自动控制原理",
	}

	seedSkills       = []string{"数据分析", "工程实践", "系统调试"}
	seedQualities    = []string{"职业道德", "团队协作", "学习能力"}
	seedCapabilities = []string{"工程问题分析能力", "技术方案设计能力"}
	seedCourses      = []string{"工程实践训练", "专业综合实训"}
)

type labelSet map[string]struct{}

func (s labelSet) add(labels ...string) {
	for _, l := range labels {
		s[l] = struct{}{}
	}
}

func (s labelSet) sorted() []string {
	out := make([]string, 0, len(s))
	for l := range s {
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}

func jobTextBlob(jobs []types.JobRecord) string {
	parts := make([]string, 0, len(jobs)*3)
	for _, j := range jobs {
		for _, p := range []string{cleanText(j.Title), cleanText(j.Category), cleanText(j.Description)} {
			if p != "" {
				parts = append(parts, p)
			}
		}
	}
	return strings.ToLower(strings.Join(parts, " "))
}

// Enrich mines capability, skill, quality and course entities from job text and wires them
// deterministically: each capability includes two skills and requires one quality
// round-robin, each course supports one capability round-robin, and the major cultivates
// every capability.
func Enrich(jobs []types.JobRecord, majorID string) ([]types.Entity, []types.Relationship) {
	blob := jobTextBlob(jobs)

	skills, qualities, caps, courses := labelSet{}, labelSet{}, labelSet{}, labelSet{}
	for _, t := range skillTerms {
		if strings.Contains(blob, t.keyword) {
			skills.add(t.label)
			if c, ok := courseBySkill[t.label]; ok {
				courses.add(c)
			}
		}
	}
	for _, t := range qualityTerms {
		if strings.Contains(blob, t.keyword) {
			qualities.add(t.label)
		}
	}
	for _, t := range capabilityTerms {
		if strings.Contains(blob, t.keyword) {
			caps.add(t.label)
		}
	}
	skills.add(seedSkills...)
	qualities.add(seedQualities...)
	caps.add(seedCapabilities...)
	courses.add(seedCourses...)

	var (
		entities []types.Entity
		rels     []types.Relationship
	)
	emit := func(prefix string, t types.EntityType, labels []string) []string {
		ids := make([]string, 0, len(labels))
		for i, name := range labels {
			id := fmt.Sprintf("rule_%s_%d", prefix, i+1)
			ids = append(ids, id)
			entities = append(entities, types.Entity{ID: id, Name: name, Type: t, Category: types.CategoryFor(t)})
		}
		return ids
	}
	capIDs := emit("cap", types.EntityCapability, caps.sorted())
	skillIDs := emit("skill", types.EntitySkill, skills.sorted())
	qualityIDs := emit("quality", types.EntityQuality, qualities.sorted())
	courseIDs := emit("course", types.EntityCourse, courses.sorted())

	if majorID != "" {
		for _, c := range capIDs {
			rels = append(rels, types.Relationship{Head: majorID, Relation: types.RelCultivatesCapability, Tail: c})
		}
	}
	for i, c := range capIDs {
		if n := len(skillIDs); n > 0 {
			rels = append(rels,
				types.Relationship{Head: c, Relation: types.RelIncludesSkill, Tail: skillIDs[i%n]},
				types.Relationship{Head: c, Relation: types.RelIncludesSkill, Tail: skillIDs[(i+1)%n]},
			)
		}
		if n := len(qualityIDs); n > 0 {
			rels = append(rels, types.Relationship{Head: c, Relation: types.RelRequiresQuality, Tail: qualityIDs[i%n]})
		}
	}
	if n := len(capIDs); n > 0 {
		for i, co := range courseIDs {
			rels = append(rels, types.Relationship{Head: co, Relation: types.RelSupportsCapability, Tail: capIDs[i%n]})
		}
	}
	return entities, rels
}
