// Command graphcache inspects and maintains the on-disk graph cache without starting the
// server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/yungbote/majorgraph-backend/internal/data/graph"
	"github.com/yungbote/majorgraph-backend/internal/graphstore"
	"github.com/yungbote/majorgraph-backend/internal/platform/envutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/platform/neo4jdb"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

const usage = `usage: graphcache [flags] <command>

commands:
  stats                       cache totals
  list      [-school S]       cached graphs, newest first
  check     -school -college -major
  clear     -school -college -major
  compress                    convert legacy JSON files to the compressed format
  export    [-school S]       write every cached graph as one JSON object per line
`

func main() {
	var (
		dir     string
		school  string
		college string
		major   string
	)
	flag.StringVar(&dir, "dir", envutil.String("GRAPH_CACHE_DIR", graphstore.DefaultDir), "graph cache directory")
	flag.StringVar(&school, "school", "", "school name")
	flag.StringVar(&college, "college", "", "college name")
	flag.StringVar(&major, "major", "", "major name")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage); flag.PrintDefaults() }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	log, err := logger.New(envutil.String("LOG_MODE", "development"))
	if err != nil {
		fmt.Printf("init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	var backend graphstore.GraphBackend
	neo, err := neo4jdb.NewFromEnv(log)
	if err != nil {
		log.Warn("Neo4j unavailable; local tiers only", "error", err)
	}
	if neo != nil {
		defer neo.Close(ctx)
		backend = graph.NewNeo4jGraphStore(neo, log)
	}

	store, err := graphstore.NewStore(graphstore.Options{Dir: dir, Backend: backend, Log: log})
	if err != nil {
		fmt.Printf("open cache: %v\n", err)
		os.Exit(1)
	}

	ref := types.GraphRef{School: school, College: college, Major: major}.Trimmed()
	if err := run(ctx, store, flag.Arg(0), ref); err != nil {
		fmt.Printf("%s: %v\n", flag.Arg(0), err)
		os.Exit(1)
	}
}

func run(ctx context.Context, store *graphstore.Store, cmd string, ref types.GraphRef) error {
	out := json.NewEncoder(os.Stdout)
	out.SetEscapeHTML(false)

	switch strings.ToLower(cmd) {
	case "stats":
		st, err := store.Stats()
		if err != nil {
			return err
		}
		out.SetIndent("", "  ")
		return out.Encode(st)
	case "list":
		for _, m := range store.List(ref.School) {
			fmt.Printf("%s\t%s\tentities=%d\trelations=%d\tcompressed=%t\t%s\n",
				m.SavedAt.Format("2006-01-02 15:04:05"), m.Ref().String(), m.EntityCount, m.RelationCount, m.Compressed, m.ID)
		}
		return nil
	case "check":
		if !ref.Valid() {
			return fmt.Errorf("-school, -college and -major are required")
		}
		out.SetIndent("", "  ")
		return out.Encode(store.Inspect(ctx, graphstore.KeyFor(ref)))
	case "clear":
		if !ref.Valid() {
			return fmt.Errorf("-school, -college and -major are required")
		}
		if err := store.Delete(ctx, graphstore.KeyFor(ref)); err != nil {
			return err
		}
		fmt.Printf("cleared %s\n", ref.String())
		return nil
	case "compress":
		n, err := store.CompressExisting(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("done; converted=%d\n", n)
		return nil
	case "export":
		return store.Each(ctx, func(m graphstore.Meta, g *types.Graph) error {
			if ref.School != "" && m.School != ref.School {
				return nil
			}
			return out.Encode(struct {
				graphstore.Meta
				Entities      []types.Entity       `json:"entities"`
				Relationships []types.Relationship `json:"relationships"`
			}{m, g.Entities, g.Relationships})
		})
	default:
		return fmt.Errorf("unknown command (see -h)")
	}
}
