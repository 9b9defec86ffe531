package app

import (
	"context"
	"fmt"

	"github.com/yungbote/majorgraph-backend/internal/data/graph"
	"github.com/yungbote/majorgraph-backend/internal/data/repos"
	"github.com/yungbote/majorgraph-backend/internal/datasource"
	"github.com/yungbote/majorgraph-backend/internal/extractor"
	"github.com/yungbote/majorgraph-backend/internal/graphstore"
	"github.com/yungbote/majorgraph-backend/internal/hierarchy"
	"github.com/yungbote/majorgraph-backend/internal/jobs/worker"
	"github.com/yungbote/majorgraph-backend/internal/observability"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
	"github.com/yungbote/majorgraph-backend/internal/progress"
	"github.com/yungbote/majorgraph-backend/internal/synthesis"
	"github.com/yungbote/majorgraph-backend/internal/types"
)

type Services struct {
	Store     *graphstore.Store
	Province  *datasource.CSVJobSource
	Campus    *datasource.LegacyDataset
	Synthesis *synthesis.Service
	Hub       *progress.Hub
	Worker    *worker.Worker
	Hierarchy *hierarchy.Service
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet repos.Repos, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	var backend graphstore.GraphBackend
	if clients.Neo4j != nil {
		backend = graph.NewNeo4jGraphStore(clients.Neo4j, log)
	}
	store, err := graphstore.NewStore(graphstore.Options{
		Dir:                cfg.GraphDir,
		MemoryCapacity:     cfg.MemoryCapacity,
		DisableCompression: cfg.DisableCompression,
		Backend:            backend,
		Observer:           metrics,
		Log:                log,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init graph store: %w", err)
	}

	province, err := datasource.NewCSVJobSource(cfg.ProvinceDataDir, cfg.ProvinceLabel, log)
	if err != nil {
		return Services{}, fmt.Errorf("load province dataset: %w", err)
	}
	campus, err := datasource.NewLegacyDataset(cfg.CampusDataDir, log)
	if err != nil {
		return Services{}, fmt.Errorf("load campus dataset: %w", err)
	}

	var extract extractor.Extractor
	if clients.LLM != nil {
		x, err := extractor.NewLLMExtractor(clients.LLM, nil, log)
		if err != nil {
			return Services{}, fmt.Errorf("init extractor: %w", err)
		}
		extract = x
	}

	synth, err := synthesis.NewService(synthesis.Config{
		JobSources:     []datasource.JobSource{province, campus},
		Events:         campus,
		Extractor:      extract,
		Store:          store,
		ReferenceRoots: cfg.ReferenceRoots,
		Metrics:        metrics,
		Log:            log,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init synthesis: %w", err)
	}

	// With a bus, every instance's hub is fed by the forwarder, including this one's own
	// runs; publishing and also emitting locally would deliver twice.
	hub := progress.NewHub(log)
	sinks := []progress.Sink{progress.NewLogSink(log)}
	if clients.ProgressBus != nil {
		sinks = append(sinks, progress.NewBusSink(clients.ProgressBus, log))
	} else {
		sinks = append(sinks, hub)
	}

	w, err := worker.NewWorker(worker.Options{
		Builder: synth,
		Runs:    reposet.Runs,
		Sinks:   sinks,
		Metrics: metrics,
		Log:     log,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init worker: %w", err)
	}

	sup, err := hierarchy.LoadSupplement()
	if err != nil {
		return Services{}, err
	}
	campusDir := cfg.CampusDataDir
	loadCampus := func(ctx context.Context) (types.Hierarchy, error) {
		// Re-read so a refresh picks up replaced CSV files.
		d, err := datasource.NewLegacyDataset(campusDir, log)
		if err != nil {
			return nil, err
		}
		return d.Hierarchy(), nil
	}
	hier := hierarchy.NewService(reposet.Hierarchy, loadCampus, sup, log)

	return Services{
		Store:     store,
		Province:  province,
		Campus:    campus,
		Synthesis: synth,
		Hub:       hub,
		Worker:    w,
		Hierarchy: hier,
	}, nil
}
