package app

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/majorgraph-backend/internal/platform/llm"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/majorgraph-backend/internal/realtime/bus"
)

// Clients are the optional external connections. Each is nil when not configured.
type Clients struct {
	Neo4j       *neo4jdb.Client
	ProgressBus bus.Bus
	LLM         *llm.Client
}

func wireClients(log *logger.Logger) (Clients, error) {
	log.Info("Wiring clients...")

	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		// The store works without its external tier.
		log.Warn("Neo4j unavailable; continuing without the graph database tier", "error", err)
		neo = nil
	}
	if neo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		neo.EnsureSchema(ctx)
		cancel()
	}

	progressBus, err := bus.NewFromEnv(log)
	if err != nil {
		if neo != nil {
			_ = neo.Close(context.Background())
		}
		return Clients{}, fmt.Errorf("init redis progress bus: %w", err)
	}

	llmClient, err := llm.NewFromEnv(log)
	if err != nil {
		if progressBus != nil {
			_ = progressBus.Close()
		}
		if neo != nil {
			_ = neo.Close(context.Background())
		}
		return Clients{}, fmt.Errorf("init llm client: %w", err)
	}
	if llmClient == nil {
		log.Warn("LLM_API_KEY not set; builds use the built-in extraction sample")
	}

	return Clients{Neo4j: neo, ProgressBus: progressBus, LLM: llmClient}, nil
}

// redisClient returns the bus connection when the bus is redis-backed.
func (c Clients) redisClient() goredis.UniversalClient {
	rc, ok := c.ProgressBus.(interface {
		Client() goredis.UniversalClient
	})
	if !ok {
		return nil
	}
	return rc.Client()
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.ProgressBus != nil {
		_ = c.ProgressBus.Close()
	}
	if c.Neo4j != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = c.Neo4j.Close(ctx)
		cancel()
	}
}
