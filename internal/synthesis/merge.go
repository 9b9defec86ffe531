package synthesis

import (
	"fmt"
	"strings"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

// ruleOrdinalOffset keeps ids synthesized for rule entities clear of extractor ordinals.
const ruleOrdinalOffset = 50000

type MergeInput struct {
	StructuralEntities      []types.Entity
	StructuralRelationships []types.Relationship
	Extracted               *types.RawGraph
	Jobs                    []types.JobRecord
	MajorID                 string
}

type MergeReport struct {
	TypeCounts map[types.EntityType]int `json:"type_counts"`
	// Added counts fallback entities admitted per type.
	Added map[types.EntityType]int `json:"added"`
	// Shortfalls is what the quota still lacks after the pool ran out.
	Shortfalls            map[types.EntityType]int `json:"shortfalls,omitempty"`
	CoverageGaps          []string                 `json:"coverage_gaps,omitempty"`
	RejectedEntities      int                      `json:"rejected_entities"`
	RejectedRelationships int                      `json:"rejected_relationships"`
	DanglingRelationships int                      `json:"dangling_relationships"`
}

type Merger struct {
	Quotas []Quota
	Pools  map[types.EntityType][]string
	log    *logger.Logger
}

func NewMerger(log *logger.Logger) *Merger {
	if log == nil {
		log = logger.Nop()
	}
	return &Merger{
		Quotas: DefaultQuotas,
		Pools:  DefaultPools,
		log:    log.With("component", "GraphMerger"),
	}
}

type dedupKey struct {
	typ  types.EntityType
	name string
}

func keyOf(e types.Entity) dedupKey {
	return dedupKey{typ: e.Type, name: strings.ToLower(e.Name)}
}

// graphBuilder accumulates a graph while holding the entity and relationship invariants:
// one entity per (type, lowercased name), unique ids, unique triples.
type graphBuilder struct {
	entities []types.Entity
	byKey    map[dedupKey]string
	ids      map[string]struct{}
	rels     []types.Relationship
	triples  map[types.Triple]struct{}
	counts   map[types.EntityType]int
}

func newGraphBuilder() *graphBuilder {
	return &graphBuilder{
		byKey:   map[dedupKey]string{},
		ids:     map[string]struct{}{},
		triples: map[types.Triple]struct{}{},
		counts:  map[types.EntityType]int{},
	}
}

// admit adds e unless its dedup key is taken, and returns the id the entity is known by in
// the graph: its own (possibly reassigned) id, or the id of the entity that already won.
func (b *graphBuilder) admit(e types.Entity) (string, bool) {
	k := keyOf(e)
	if winner, ok := b.byKey[k]; ok {
		return winner, false
	}
	if _, taken := b.ids[e.ID]; taken {
		e.ID = b.freshID(e.Type, len(b.entities)+1)
	}
	b.entities = append(b.entities, e)
	b.byKey[k] = e.ID
	b.ids[e.ID] = struct{}{}
	b.counts[e.Type]++
	return e.ID, true
}

func (b *graphBuilder) freshID(t types.EntityType, n int) string {
	for {
		id := autoID(t, n)
		if _, taken := b.ids[id]; !taken {
			return id
		}
		n++
	}
}

func (b *graphBuilder) has(t types.EntityType, name string) bool {
	_, ok := b.byKey[dedupKey{typ: t, name: strings.ToLower(name)}]
	return ok
}

func (b *graphBuilder) hasID(id string) bool {
	_, ok := b.ids[id]
	return ok
}

func (b *graphBuilder) link(r types.Relationship) {
	t := r.Triple()
	if _, dup := b.triples[t]; dup {
		return
	}
	b.triples[t] = struct{}{}
	b.rels = append(b.rels, r)
}

func (b *graphBuilder) firstOfType(t types.EntityType) (string, bool) {
	for _, e := range b.entities {
		if e.Type == t {
			return e.ID, true
		}
	}
	return "", false
}

// idMap records how one producer's ids resolved in the graph. The first mapping for an id
// wins.
type idMap map[string]string

func (m idMap) set(from, to string) {
	if from == "" || from == to {
		return
	}
	if _, ok := m[from]; !ok {
		m[from] = to
	}
}

func (m idMap) resolve(r types.Relationship) types.Relationship {
	if to, ok := m[r.Head]; ok {
		r.Head = to
	}
	if to, ok := m[r.Tail]; ok {
		r.Tail = to
	}
	return r
}

// Merge combines structural nodes, extractor output and rule enrichment into one graph,
// then tops up under-represented types from the fallback pools.
func (m *Merger) Merge(in MergeInput) (*types.Graph, MergeReport) {
	b := newGraphBuilder()
	report := MergeReport{
		Added:      map[types.EntityType]int{},
		Shortfalls: map[types.EntityType]int{},
	}

	// Structural nodes are trusted; they only dedup against each other.
	structural := idMap{}
	for _, e := range in.StructuralEntities {
		e.Name = strings.TrimSpace(e.Name)
		if e.Name == "" || e.ID == "" {
			report.RejectedEntities++
			continue
		}
		if !types.IsValidCategory(string(e.Category)) {
			e.Category = types.CategoryFor(e.Type)
		}
		id, _ := b.admit(e)
		structural.set(e.ID, id)
	}
	for _, r := range in.StructuralRelationships {
		b.link(structural.resolve(r))
	}

	// Extractor output.
	if in.Extracted != nil {
		extracted := idMap{}
		for i, raw := range in.Extracted.Entities {
			e, ok := NormalizeEntity(raw, i+1)
			if !ok {
				report.RejectedEntities++
				continue
			}
			id, _ := b.admit(e)
			extracted.set(e.ID, id)
		}
		for _, raw := range in.Extracted.Relationships {
			r, ok := NormalizeRelationship(raw)
			if !ok {
				report.RejectedRelationships++
				continue
			}
			b.link(extracted.resolve(r))
		}
	}

	// Rule enrichment; extractor names win ties.
	ruleEntities, ruleRels := Enrich(in.Jobs, in.MajorID)
	rules := idMap{}
	for i, re := range ruleEntities {
		e, ok := NormalizeEntity(types.RawFromEntity(re), i+1+ruleOrdinalOffset)
		if !ok {
			report.RejectedEntities++
			continue
		}
		id, _ := b.admit(e)
		rules.set(e.ID, id)
	}
	for _, r := range ruleRels {
		b.link(rules.resolve(r))
	}

	m.enforceQuotas(b, in.MajorID, &report)

	g := &types.Graph{Entities: b.entities, Relationships: b.rels}
	if g.Entities == nil {
		g.Entities = []types.Entity{}
	}
	if g.Relationships == nil {
		g.Relationships = []types.Relationship{}
	}
	report.TypeCounts = g.CountByType()
	report.DanglingRelationships = g.DanglingCount()

	if len(report.CoverageGaps) > 0 {
		m.log.Warn("fallback entities admitted without an anchor capability", "count", len(report.CoverageGaps), "ids", report.CoverageGaps)
	}
	for t, n := range report.Shortfalls {
		m.log.Warn("entity quota not met; fallback pool exhausted", "type", t, "missing", n)
	}
	return g, report
}

func (m *Merger) enforceQuotas(b *graphBuilder, majorID string, report *MergeReport) {
	for _, q := range m.Quotas {
		missing := q.Minimum - b.counts[q.Type]
		if missing <= 0 {
			continue
		}
		added := 0
		for _, name := range m.Pools[q.Type] {
			if added >= missing {
				break
			}
			if IsNoiseName(name) || b.has(q.Type, name) {
				continue
			}
			id, ok := b.admit(types.Entity{
				ID:       fmt.Sprintf("seed_%s_%d", strings.ToLower(string(q.Type)), len(b.entities)+1),
				Name:     name,
				Type:     q.Type,
				Category: types.CategoryFor(q.Type),
			})
			if !ok {
				continue
			}
			added++
			if !m.wireFallback(b, q.Type, id, majorID) {
				report.CoverageGaps = append(report.CoverageGaps, id)
			}
		}
		if added > 0 {
			report.Added[q.Type] = added
		}
		if added < missing {
			report.Shortfalls[q.Type] = missing - added
		}
	}
}

// wireFallback links a fallback entity into the graph and reports whether it found an anchor.
func (m *Merger) wireFallback(b *graphBuilder, t types.EntityType, id, majorID string) bool {
	if t == types.EntityCapability {
		if majorID == "" || !b.hasID(majorID) {
			return false
		}
		b.link(types.Relationship{Head: majorID, Relation: types.RelCultivatesCapability, Tail: id})
		return true
	}
	anchor, ok := b.firstOfType(types.EntityCapability)
	if !ok {
		return false
	}
	switch t {
	case types.EntitySkill:
		b.link(types.Relationship{Head: anchor, Relation: types.RelIncludesSkill, Tail: id})
	case types.EntityQuality:
		b.link(types.Relationship{Head: anchor, Relation: types.RelRequiresQuality, Tail: id})
	case types.EntityCourse:
		b.link(types.Relationship{Head: id, Relation: types.RelSupportsCapability, Tail: anchor})
	default:
		return false
	}
	return true
}
