package neo4jdb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/yungbote/majorgraph-backend/internal/platform/envutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

type Client struct {
	Driver   neo4j.DriverWithContext
	Database string
	log      *logger.Logger
}

// NewFromEnv connects to Neo4j when NEO4J_ENABLED is set and NEO4J_URI is non-empty.
// It returns (nil, nil) when the backend is not configured; callers treat that as
// "no external tier".
func NewFromEnv(log *logger.Logger) (*Client, error) {
	if log == nil {
		return nil, fmt.Errorf("neo4jdb: logger required")
	}
	if !envutil.Bool("NEO4J_ENABLED", false) {
		return nil, nil
	}
	uri := envutil.String("NEO4J_URI", "")
	if uri == "" {
		return nil, nil
	}

	user := envutil.String("NEO4J_USER", "neo4j")
	password := envutil.String("NEO4J_PASSWORD", "")
	database := envutil.String("NEO4J_DATABASE", "")
	timeout := envutil.Seconds("NEO4J_TIMEOUT_SECONDS", 10*time.Second)
	maxPool := envutil.Int("NEO4J_MAX_POOL_SIZE", 50)
	if maxPool <= 0 {
		maxPool = 50
	}

	auth := neo4j.BasicAuth(user, password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = timeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4jdb: init driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4jdb: verify connectivity: %w", err)
	}

	c := &Client{
		Driver:   driver,
		Database: strings.TrimSpace(database),
		log:      log.With("client", "Neo4jDB"),
	}
	c.log.Info("connected", "uri", uri)
	return c, nil
}

func (c *Client) Connected() bool {
	return c != nil && c.Driver != nil
}

// EnsureSchema creates the constraints and indexes used by the graph cache. Failures are
// logged; the schema is an optimization, not a precondition.
func (c *Client) EnsureSchema(ctx context.Context) {
	if !c.Connected() {
		return
	}
	session := c.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.Database,
	})
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT kg_graph_id_unique IF NOT EXISTS FOR (g:KGGraph) REQUIRE g.id IS UNIQUE`,
		`CREATE CONSTRAINT kg_entity_graph_id_unique IF NOT EXISTS FOR (e:KGEntity) REQUIRE (e.graph_id, e.id) IS UNIQUE`,
		`CREATE INDEX kg_entity_graph_id IF NOT EXISTS FOR (e:KGEntity) ON (e.graph_id)`,
		`CREATE INDEX kg_entity_type IF NOT EXISTS FOR (e:KGEntity) ON (e.type)`,
		`CREATE INDEX kg_entity_category IF NOT EXISTS FOR (e:KGEntity) ON (e.category)`,
	}
	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			c.log.Warn("neo4j schema init failed (continuing)", "error", err)
			continue
		}
		_, _ = res.Consume(ctx)
	}
}

func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	err := c.Driver.Close(ctx)
	c.Driver = nil
	return err
}
