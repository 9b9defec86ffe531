package synthesis

import (
	"reflect"
	"strings"
	"testing"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

func sampleJobs() []types.JobRecord {
	return []types.JobRecord{
		{ID: "1", Title: "Python开发工程师", Employer: "重庆某集团", Description: "熟悉Python与PLC，具备团队协作与沟通能力"},
		{ID: "2", Title: "自动化工程师", Employer: "某科技", Category: "自动化", Description: "负责产线自动化项目实施"},
	}
}

func TestEnrichDeterministic(t *testing.T) {
	a1, r1 := Enrich(sampleJobs(), "major_x")
	a2, r2 := Enrich(sampleJobs(), "major_x")
	if !reflect.DeepEqual(a1, a2) || !reflect.DeepEqual(r1, r2) {
		t.Fatalf("Enrich is not deterministic")
	}

	names := map[string]types.EntityType{}
	for _, e := range a1 {
		names[e.Name] = e.Type
	}
	for name, typ := range map[string]types.EntityType{
		"Python":     types.EntitySkill,
		"PLC编程":      types.EntitySkill,
		"Python程序设计": types.EntityCourse,
		"PLC原理与应用":   types.EntityCourse,
		"团队协作":       types.EntityQuality,
		"沟通能力":       types.EntityQuality,
		"自动化控制能力":    types.EntityCapability,
		"工程问题分析能力":   types.EntityCapability,
		"数据分析":       types.EntitySkill,
	} {
		if got, ok := names[name]; !ok || got != typ {
			t.Fatalf("entity %q: want type=%q got=%q (present=%v)", name, typ, got, ok)
		}
	}

	includes := map[string]int{}
	cultivated := map[string]bool{}
	for _, r := range r1 {
		switch r.Relation {
		case types.RelIncludesSkill:
			includes[r.Head]++
		case types.RelCultivatesCapability:
			if r.Head != "major_x" {
				t.Fatalf("cultivates head: want=%q got=%q", "major_x", r.Head)
			}
			cultivated[r.Tail] = true
		}
	}
	for _, e := range a1 {
		if e.Type != types.EntityCapability {
			continue
		}
		if includes[e.ID] != 2 {
			t.Fatalf("capability %q skills: want=2 got=%d", e.Name, includes[e.ID])
		}
		if !cultivated[e.ID] {
			t.Fatalf("capability %q not cultivated by the major", e.Name)
		}
	}
}

func TestEnrichWithoutMajor(t *testing.T) {
	_, rels := Enrich(nil, "")
	for _, r := range rels {
		if r.Relation == types.RelCultivatesCapability {
			t.Fatalf("unexpected cultivates relationship without a major: %+v", r)
		}
	}
}

func assertGraphInvariants(t *testing.T, g *types.Graph) {
	t.Helper()
	if err := g.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	names := map[string]string{}
	for _, e := range g.Entities {
		k := string(e.Type) + "|" + strings.ToLower(e.Name)
		if prev, dup := names[k]; dup {
			t.Fatalf("duplicate entity %q: ids %q and %q", k, prev, e.ID)
		}
		names[k] = e.ID
	}
	triples := map[types.Triple]bool{}
	for _, r := range g.Relationships {
		if triples[r.Triple()] {
			t.Fatalf("duplicate relationship %+v", r)
		}
		triples[r.Triple()] = true
	}
}

func TestMergeMeetsQuotasFromStructureOnly(t *testing.T) {
	s := NewStructure("电气工程")
	g, report := NewMerger(nil).Merge(MergeInput{
		StructuralEntities:      s.Entities,
		StructuralRelationships: s.Relationships,
		MajorID:                 s.MajorID,
	})
	assertGraphInvariants(t, g)

	counts := g.CountByType()
	for _, q := range DefaultQuotas {
		if counts[q.Type] < q.Minimum {
			t.Fatalf("%s: want>=%d got=%d", q.Type, q.Minimum, counts[q.Type])
		}
	}
	if counts[types.EntityMajor] != 1 {
		t.Fatalf("majors: want=1 got=%d", counts[types.EntityMajor])
	}
	if len(report.Shortfalls) != 0 || len(report.CoverageGaps) != 0 {
		t.Fatalf("unexpected degradation: shortfalls=%v gaps=%v", report.Shortfalls, report.CoverageGaps)
	}
	if g.DanglingCount() != 0 {
		t.Fatalf("dangling: want=0 got=%d", g.DanglingCount())
	}

	cultivated := map[string]bool{}
	for _, r := range g.Relationships {
		if r.Relation == types.RelCultivatesCapability && r.Head == s.MajorID {
			cultivated[r.Tail] = true
		}
	}
	for _, e := range g.Entities {
		if e.Type == types.EntityCapability && !cultivated[e.ID] {
			t.Fatalf("capability %q (%s) is not linked from the major", e.Name, e.ID)
		}
	}
}

func TestMergeWithoutMajorReportsGaps(t *testing.T) {
	g, report := NewMerger(nil).Merge(MergeInput{})
	assertGraphInvariants(t, g)
	if report.Shortfalls[types.EntityMajor] != 1 {
		t.Fatalf("major shortfall: want=1 got=%d", report.Shortfalls[types.EntityMajor])
	}
	if len(report.CoverageGaps) == 0 {
		t.Fatalf("expected fallback capabilities without an anchor to be reported")
	}
	for _, id := range report.CoverageGaps {
		if !strings.HasPrefix(id, "seed_capability_") {
			t.Fatalf("coverage gap %q: want a fallback capability", id)
		}
	}
}

func TestMergeDedupAndRemap(t *testing.T) {
	s := NewStructure("电气工程")
	extracted := &types.RawGraph{
		Entities: []types.RawRecord{
			{"id": "e1", "name": "python", "type": "Skill"},
			{"id": "e2", "name": "Python", "type": "Skill"},
			{"id": s.MajorID, "name": "电路分析", "type": "Skill"},
			{"id": "e4", "name": "关键技能补充1", "type": "Skill"},
			{"name": "电力系统分析能力", "type": "Capability"},
		},
		Relationships: []types.RawRecord{
			{"head": "auto_capability_5", "relation": "INCLUDES_SKILL", "tail": "e2"},
			{"head": "auto_capability_5", "relation": "INCLUDES_SKILL", "tail": s.MajorID},
			{"head": "auto_capability_5", "relation": "LIKES", "tail": "e1"},
		},
	}
	g, report := NewMerger(nil).Merge(MergeInput{
		StructuralEntities:      s.Entities,
		StructuralRelationships: s.Relationships,
		Extracted:               extracted,
		Jobs:                    sampleJobs(),
		MajorID:                 s.MajorID,
	})
	assertGraphInvariants(t, g)

	byID := map[string]types.Entity{}
	var pythonIDs []string
	for _, e := range g.Entities {
		byID[e.ID] = e
		if e.Type == types.EntitySkill && strings.EqualFold(e.Name, "python") {
			pythonIDs = append(pythonIDs, e.ID)
		}
	}
	if len(pythonIDs) != 1 || pythonIDs[0] != "e1" {
		t.Fatalf("python skills: want=[e1] got=%v", pythonIDs)
	}
	if major := byID[s.MajorID]; major.Type != types.EntityMajor {
		t.Fatalf("major id taken over by %+v", major)
	}
	if report.RejectedEntities != 1 {
		t.Fatalf("rejected entities: want=1 got=%d", report.RejectedEntities)
	}
	if report.RejectedRelationships != 1 {
		t.Fatalf("rejected relationships: want=1 got=%d", report.RejectedRelationships)
	}

	var toPython, toCircuit bool
	for _, r := range g.Relationships {
		if r.Head != "auto_capability_5" || r.Relation != types.RelIncludesSkill {
			continue
		}
		switch tail := byID[r.Tail]; {
		case tail.ID == "e1":
			toPython = true
		case tail.Name == "电路分析" && tail.Type == types.EntitySkill:
			toCircuit = true
		}
	}
	if !toPython || !toCircuit {
		t.Fatalf("remapped relationships missing: python=%v circuit=%v", toPython, toCircuit)
	}
}
