package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

// Neo4jGraphStore persists knowledge graphs as KGEntity nodes keyed by (graph_id, id),
// anchored on one KGGraph node per cache key. The anchor also carries the relationship list
// verbatim so edges whose endpoints are missing survive a round trip; resolvable edges are
// additionally materialized as KG_REL relationships for querying.
type Neo4jGraphStore struct {
	client *neo4jdb.Client
	log    *logger.Logger
}

func NewNeo4jGraphStore(client *neo4jdb.Client, log *logger.Logger) *Neo4jGraphStore {
	if log == nil {
		log = logger.Nop()
	}
	return &Neo4jGraphStore{client: client, log: log.With("repo", "Neo4jGraphStore")}
}

func (s *Neo4jGraphStore) Connected() bool {
	return s != nil && s.client.Connected()
}

func (s *Neo4jGraphStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.client.Database,
	})
}

func (s *Neo4jGraphStore) SaveGraph(ctx context.Context, graphID string, ref types.GraphRef, g *types.Graph) error {
	if !s.Connected() {
		return fmt.Errorf("neo4j graph store: not connected")
	}
	if g == nil {
		return fmt.Errorf("neo4j graph store: nil graph")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	relsJSON, err := json.Marshal(g.Relationships)
	if err != nil {
		return fmt.Errorf("neo4j graph store: encode relationships: %w", err)
	}

	entityRows := make([]map[string]any, 0, len(g.Entities))
	for i, e := range g.Entities {
		entityRows = append(entityRows, map[string]any{
			"id":       e.ID,
			"name":     e.Name,
			"type":     string(e.Type),
			"category": string(e.Category),
			"ord":      i,
		})
	}
	edgeRows := make([]map[string]any, 0, len(g.Relationships))
	for _, r := range g.ResolvedRelationships() {
		edgeRows = append(edgeRows, map[string]any{
			"head":     r.Head,
			"tail":     r.Tail,
			"relation": string(r.Relation),
		})
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err = session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		// A save replaces the whole graph.
		if res, err := tx.Run(ctx, `
MATCH (e:KGEntity {graph_id: $graph_id})
DETACH DELETE e
`, map[string]any{"graph_id": graphID}); err != nil {
			return nil, err
		} else if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if res, err := tx.Run(ctx, `
MERGE (g:KGGraph {id: $graph_id})
SET g.school = $school,
    g.college = $college,
    g.major = $major,
    g.relationships_json = $relationships_json,
    g.entity_count = $entity_count,
    g.relation_count = $relation_count,
    g.saved_at = $saved_at
`, map[string]any{
			"graph_id":           graphID,
			"school":             ref.School,
			"college":            ref.College,
			"major":              ref.Major,
			"relationships_json": string(relsJSON),
			"entity_count":       len(g.Entities),
			"relation_count":     len(g.Relationships),
			"saved_at":           now,
		}); err != nil {
			return nil, err
		} else if _, err := res.Consume(ctx); err != nil {
			return nil, err
		}

		if len(entityRows) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rows AS row
MERGE (e:KGEntity {graph_id: $graph_id, id: row.id})
SET e.name = row.name,
    e.type = row.type,
    e.category = row.category,
    e.ord = row.ord
WITH e
MATCH (g:KGGraph {id: $graph_id})
MERGE (g)-[:HAS_ENTITY]->(e)
`, map[string]any{"graph_id": graphID, "rows": entityRows})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}

		if len(edgeRows) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $rows AS row
MATCH (h:KGEntity {graph_id: $graph_id, id: row.head})
MATCH (t:KGEntity {graph_id: $graph_id, id: row.tail})
MERGE (h)-[r:KG_REL {relation: row.relation}]->(t)
`, map[string]any{"graph_id": graphID, "rows": edgeRows})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j graph store: save %s: %w", graphID, err)
	}
	s.log.Debug("graph saved", "graph_id", graphID, "entities", len(entityRows), "edges", len(edgeRows))
	return nil
}

// LoadGraph returns (nil, nil) when no graph is stored under graphID.
func (s *Neo4jGraphStore) LoadGraph(ctx context.Context, graphID string) (*types.Graph, error) {
	if !s.Connected() {
		return nil, fmt.Errorf("neo4j graph store: not connected")
	}
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (g:KGGraph {id: $graph_id})
RETURN g.relationships_json AS relationships_json
`, map[string]any{"graph_id": graphID})
		if err != nil {
			return nil, err
		}
		anchors, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		if len(anchors) == 0 {
			return nil, nil
		}

		g := &types.Graph{Entities: []types.Entity{}, Relationships: []types.Relationship{}}
		if raw, ok := anchors[0].Get("relationships_json"); ok {
			if s, _ := raw.(string); s != "" {
				if err := json.Unmarshal([]byte(s), &g.Relationships); err != nil {
					return nil, fmt.Errorf("decode relationships: %w", err)
				}
			}
		}

		res, err = tx.Run(ctx, `
MATCH (e:KGEntity {graph_id: $graph_id})
RETURN e.id AS id, e.name AS name, e.type AS type, e.category AS category
ORDER BY e.ord
`, map[string]any{"graph_id": graphID})
		if err != nil {
			return nil, err
		}
		rows, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		for _, rec := range rows {
			g.Entities = append(g.Entities, types.Entity{
				ID:       recordString(rec, "id"),
				Name:     recordString(rec, "name"),
				Type:     types.EntityType(recordString(rec, "type")),
				Category: types.Category(recordString(rec, "category")),
			})
		}
		if g.Relationships == nil {
			g.Relationships = []types.Relationship{}
		}
		return g, nil
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j graph store: load %s: %w", graphID, err)
	}
	if out == nil {
		return nil, nil
	}
	return out.(*types.Graph), nil
}

func (s *Neo4jGraphStore) DeleteGraph(ctx context.Context, graphID string) error {
	if !s.Connected() {
		return fmt.Errorf("neo4j graph store: not connected")
	}
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, q := range []string{
			`MATCH (e:KGEntity {graph_id: $graph_id}) DETACH DELETE e`,
			`MATCH (g:KGGraph {id: $graph_id}) DETACH DELETE g`,
		} {
			res, err := tx.Run(ctx, q, map[string]any{"graph_id": graphID})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j graph store: delete %s: %w", graphID, err)
	}
	return nil
}

func (s *Neo4jGraphStore) HasGraph(ctx context.Context, graphID string) (bool, error) {
	if !s.Connected() {
		return false, fmt.Errorf("neo4j graph store: not connected")
	}
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (g:KGGraph {id: $graph_id}) RETURN count(g) AS n`,
			map[string]any{"graph_id": graphID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		n, _ := rec.Get("n")
		count, _ := n.(int64)
		return count > 0, nil
	})
	if err != nil {
		return false, fmt.Errorf("neo4j graph store: has %s: %w", graphID, err)
	}
	return out.(bool), nil
}

func recordString(rec *neo4j.Record, key string) string {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
