package synthesis

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

// Placeholder labels written by earlier fallback strategies and by extractors that pad
// their output.
var placeholderLabels = []string{
	"补充节点",
	"专业能力补充",
	"关键技能补充",
	"职业素质补充",
	"支撑课程补充",
	"专业核心节点",
	"supplement node",
	"placeholder node",
}

var levelArtifacts = []*regexp.Regexp{
	regexp.MustCompile(`第[0-9一二三四五六七八九十]+级`),
	regexp.MustCompile(`(?i)\blevel\s*[0-9]+\b`),
}

// IsNoiseName reports whether name is empty, a placeholder label, or a level-label artifact.
func IsNoiseName(name string) bool {
	text := strings.TrimSpace(name)
	if text == "" || strings.EqualFold(text, "nan") {
		return true
	}
	lower := strings.ToLower(text)
	for _, p := range placeholderLabels {
		if strings.Contains(lower, p) {
			return true
		}
	}
	for _, re := range levelArtifacts {
		if re.MatchString(text) {
			return true
		}
	}
	return strings.Contains(text, "几级") || strings.Contains(lower, "some level")
}

// NormalizeEntity canonicalizes one raw record. ordinal seeds the synthesized id when the
// record has none; callers keep ordinals distinct within a batch.
func NormalizeEntity(raw types.RawRecord, ordinal int) (types.Entity, bool) {
	name := raw.Str("name")
	typ, ok := types.ParseEntityType(raw.Str("type"))
	if !ok || name == "" || IsNoiseName(name) {
		return types.Entity{}, false
	}

	category := types.Category(raw.Str("category"))
	if !types.IsValidCategory(string(category)) {
		category = types.CategoryFor(typ)
	}

	id := raw.Str("id")
	if id == "" {
		id = autoID(typ, ordinal)
	}
	return types.Entity{ID: id, Name: name, Type: typ, Category: category}, true
}

// NormalizeRelationship requires all three fields and a known relation.
func NormalizeRelationship(raw types.RawRecord) (types.Relationship, bool) {
	head, tail := raw.Str("head"), raw.Str("tail")
	if head == "" || tail == "" {
		return types.Relationship{}, false
	}
	rel, ok := types.ParseRelation(raw.Str("relation"))
	if !ok {
		return types.Relationship{}, false
	}
	return types.Relationship{Head: head, Relation: rel, Tail: tail}, true
}

func autoID(t types.EntityType, n int) string {
	return fmt.Sprintf("auto_%s_%d", strings.ToLower(string(t)), n)
}
