package types

import (
	"fmt"
	"strings"
)

type EntityType string

const (
	EntityMajor      EntityType = "Major"
	EntityJob        EntityType = "Job"
	EntityCompany    EntityType = "Company"
	EntityCapability EntityType = "Capability"
	EntitySkill      EntityType = "Skill"
	EntityQuality    EntityType = "Quality"
	EntityCourse     EntityType = "Course"
)

var entityTypes = []EntityType{
	EntityMajor,
	EntityJob,
	EntityCompany,
	EntityCapability,
	EntitySkill,
	EntityQuality,
	EntityCourse,
}

// EntityTypes returns every known entity type in declaration order.
func EntityTypes() []EntityType {
	out := make([]EntityType, len(entityTypes))
	copy(out, entityTypes)
	return out
}

func ParseEntityType(s string) (EntityType, bool) {
	s = strings.TrimSpace(s)
	for _, t := range entityTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

type Category string

const (
	CategoryCore       Category = "Core"
	CategoryCapability Category = "Capability"
	CategorySupport    Category = "Support"
	CategorySkill      Category = "Skill"
	CategoryQuality    Category = "Quality"
	CategoryTarget     Category = "Target"
)

var categoryByType = map[EntityType]Category{
	EntityMajor:      CategoryCore,
	EntityCapability: CategoryCapability,
	EntityCourse:     CategorySupport,
	EntitySkill:      CategorySkill,
	EntityQuality:    CategoryQuality,
	EntityJob:        CategoryTarget,
	EntityCompany:    CategoryTarget,
}

// CategoryFor maps an entity type to its display category.
func CategoryFor(t EntityType) Category {
	return categoryByType[t]
}

// IsValidCategory reports whether s is one of the values of the type→category mapping.
func IsValidCategory(s string) bool {
	for _, c := range categoryByType {
		if string(c) == s {
			return true
		}
	}
	return false
}

type Relation string

const (
	RelTargetsJob           Relation = "TARGETS_JOB"
	RelOfferedBy            Relation = "OFFERED_BY"
	RelCultivatesCapability Relation = "CULTIVATES_CAPABILITY"
	RelIncludesSkill        Relation = "INCLUDES_SKILL"
	RelRequiresQuality      Relation = "REQUIRES_QUALITY"
	RelSupportsCapability   Relation = "SUPPORTS_CAPABILITY"
	RelMatchesJob           Relation = "MATCHES_JOB"
)

func ParseRelation(s string) (Relation, bool) {
	switch r := Relation(strings.TrimSpace(s)); r {
	case RelTargetsJob, RelOfferedBy, RelCultivatesCapability, RelIncludesSkill,
		RelRequiresQuality, RelSupportsCapability, RelMatchesJob:
		return r, true
	default:
		return "", false
	}
}

type Entity struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Type     EntityType `json:"type"`
	Category Category   `json:"category"`
}

type Relationship struct {
	Head     string   `json:"head"`
	Relation Relation `json:"relation"`
	Tail     string   `json:"tail"`
}

// Triple is the dedup key of a relationship.
type Triple struct {
	Head     string
	Relation Relation
	Tail     string
}

func (r Relationship) Triple() Triple {
	return Triple{Head: r.Head, Relation: r.Relation, Tail: r.Tail}
}

// Graph is an immutable snapshot once handed to the store; rebuilds produce a new Graph.
type Graph struct {
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{
		Entities:      make([]Entity, len(g.Entities)),
		Relationships: make([]Relationship, len(g.Relationships)),
	}
	copy(out.Entities, g.Entities)
	copy(out.Relationships, g.Relationships)
	return out
}

func (g *Graph) CountByType() map[EntityType]int {
	counts := make(map[EntityType]int, len(entityTypes))
	if g == nil {
		return counts
	}
	for _, e := range g.Entities {
		counts[e.Type]++
	}
	return counts
}

func (g *Graph) EntityIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(g.Entities))
	for _, e := range g.Entities {
		ids[e.ID] = struct{}{}
	}
	return ids
}

// ResolvedRelationships returns only the edges whose endpoints exist in the graph.
func (g *Graph) ResolvedRelationships() []Relationship {
	if g == nil {
		return nil
	}
	ids := g.EntityIDs()
	out := make([]Relationship, 0, len(g.Relationships))
	for _, r := range g.Relationships {
		if _, ok := ids[r.Head]; !ok {
			continue
		}
		if _, ok := ids[r.Tail]; !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// DanglingCount counts relationships with at least one unresolved endpoint.
func (g *Graph) DanglingCount() int {
	if g == nil {
		return 0
	}
	return len(g.Relationships) - len(g.ResolvedRelationships())
}

// Validate checks the entity and relationship invariants. Dangling endpoints are not
// reported; see ResolvedRelationships.
func (g *Graph) Validate() error {
	if g == nil {
		return fmt.Errorf("graph is nil")
	}
	seen := make(map[string]struct{}, len(g.Entities))
	for i, e := range g.Entities {
		if strings.TrimSpace(e.ID) == "" {
			return fmt.Errorf("entity %d: empty id", i)
		}
		if _, dup := seen[e.ID]; dup {
			return fmt.Errorf("entity %d: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = struct{}{}
		if strings.TrimSpace(e.Name) == "" {
			return fmt.Errorf("entity %q: empty name", e.ID)
		}
		if _, ok := ParseEntityType(string(e.Type)); !ok {
			return fmt.Errorf("entity %q: unknown type %q", e.ID, e.Type)
		}
		if !IsValidCategory(string(e.Category)) {
			return fmt.Errorf("entity %q: unknown category %q", e.ID, e.Category)
		}
	}
	for i, r := range g.Relationships {
		if r.Head == "" || r.Tail == "" || r.Relation == "" {
			return fmt.Errorf("relationship %d: empty field", i)
		}
		if _, ok := ParseRelation(string(r.Relation)); !ok {
			return fmt.Errorf("relationship %d: unknown relation %q", i, r.Relation)
		}
	}
	return nil
}

// GraphRef identifies a graph externally.
type GraphRef struct {
	School  string `json:"school"`
	College string `json:"college"`
	Major   string `json:"major"`
}

func (r GraphRef) Trimmed() GraphRef {
	return GraphRef{
		School:  strings.TrimSpace(r.School),
		College: strings.TrimSpace(r.College),
		Major:   strings.TrimSpace(r.Major),
	}
}

func (r GraphRef) Valid() bool {
	t := r.Trimmed()
	return t.School != "" && t.College != "" && t.Major != ""
}

func (r GraphRef) String() string {
	return r.School + "/" + r.College + "/" + r.Major
}
