package synthesis

import (
	"testing"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

func TestIsNoiseName(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{"", true},
		{"  ", true},
		{"nan", true},
		{"关键技能补充3", true},
		{"Placeholder Node 2", true},
		{"第三级能力", true},
		{"Level 4 skill", true},
		{"掌握几级英语", true},
		{"Python", false},
		{"电路分析基础", false},
		{"levelling", false},
	}
	for _, tc := range cases {
		if got := IsNoiseName(tc.name); got != tc.want {
			t.Fatalf("IsNoiseName(%q): want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestNormalizeEntity(t *testing.T) {
	e, ok := NormalizeEntity(types.RawRecord{"name": " Python ", "type": "Skill"}, 3)
	if !ok {
		t.Fatalf("expected entity to be accepted")
	}
	if e.ID != "auto_skill_3" {
		t.Fatalf("id: want=%q got=%q", "auto_skill_3", e.ID)
	}
	if e.Name != "Python" {
		t.Fatalf("name: want=%q got=%q", "Python", e.Name)
	}
	if e.Category != types.CategorySkill {
		t.Fatalf("category: want=%q got=%q", types.CategorySkill, e.Category)
	}

	e, ok = NormalizeEntity(types.RawRecord{"id": "c1", "name": "课程A", "type": "Course", "category": "Whatever"}, 1)
	if !ok || e.ID != "c1" || e.Category != types.CategorySupport {
		t.Fatalf("category repair: got=%+v ok=%v", e, ok)
	}

	rejected := []types.RawRecord{
		{"name": "x", "type": "Person"},
		{"name": "", "type": "Skill"},
		{"name": "专业能力补充1", "type": "Capability"},
		{"type": "Skill"},
	}
	for _, raw := range rejected {
		if _, ok := NormalizeEntity(raw, 1); ok {
			t.Fatalf("expected %v to be rejected", raw)
		}
	}
}

func TestNormalizeRelationship(t *testing.T) {
	r, ok := NormalizeRelationship(types.RawRecord{"head": "a", "relation": " INCLUDES_SKILL ", "tail": "b"})
	if !ok || r.Relation != types.RelIncludesSkill || r.Head != "a" || r.Tail != "b" {
		t.Fatalf("relationship: got=%+v ok=%v", r, ok)
	}
	for _, raw := range []types.RawRecord{
		{"head": "a", "relation": "LIKES", "tail": "b"},
		{"head": "", "relation": "INCLUDES_SKILL", "tail": "b"},
		{"head": "a", "relation": "INCLUDES_SKILL"},
	} {
		if _, ok := NormalizeRelationship(raw); ok {
			t.Fatalf("expected %v to be rejected", raw)
		}
	}
}
