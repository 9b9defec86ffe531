package types

import (
	"fmt"
	"strings"
)

// RawRecord is an untyped entity or relationship record as produced by the extractor.
type RawRecord map[string]any

// Str renders a field as trimmed text. Missing, nil and "nan" values read as "".
func (r RawRecord) Str(key string) string {
	if r == nil {
		return ""
	}
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "nan") {
		return ""
	}
	return s
}

// RawGraph is a producer payload before normalization.
type RawGraph struct {
	Entities      []RawRecord `json:"entities"`
	Relationships []RawRecord `json:"relationships"`
}

func (g *RawGraph) Len() int {
	if g == nil {
		return 0
	}
	return len(g.Entities)
}

// TypeCounts tallies entities by their raw "type" field.
func (g *RawGraph) TypeCounts() map[string]int {
	out := map[string]int{}
	if g == nil {
		return out
	}
	for _, e := range g.Entities {
		t := e.Str("type")
		if t == "" {
			t = "Unknown"
		}
		out[t]++
	}
	return out
}

// RawFromEntity turns a typed entity back into a raw record so it can go through the
// same normalization path as extractor output.
func RawFromEntity(e Entity) RawRecord {
	return RawRecord{
		"id":       e.ID,
		"name":     e.Name,
		"type":     string(e.Type),
		"category": string(e.Category),
	}
}

func RawFromRelationship(r Relationship) RawRecord {
	return RawRecord{
		"head":     r.Head,
		"relation": string(r.Relation),
		"tail":     r.Tail,
	}
}
