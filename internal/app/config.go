package app

import (
	"strings"
	"time"

	"github.com/yungbote/majorgraph-backend/internal/graphstore"
	"github.com/yungbote/majorgraph-backend/internal/platform/envutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

type Config struct {
	Port        string
	ServiceName string
	Environment string
	Version     string
	MetricsAddr string

	GraphDir           string
	MemoryCapacity     int
	DisableCompression bool

	ProvinceDataDir string
	ProvinceLabel   string
	CampusDataDir   string
	ReferenceRoots  []string

	// Runs still queued or running this long after their last update are failed at startup.
	AbandonedRunAge time.Duration
	ShutdownTimeout time.Duration
}

func LoadConfig(log *logger.Logger) Config {
	cfg := Config{
		Port:               envutil.String("PORT", "8080"),
		ServiceName:        envutil.String("SERVICE_NAME", "majorgraph"),
		Environment:        envutil.String("APP_ENV", "development"),
		Version:            envutil.String("APP_VERSION", "dev"),
		MetricsAddr:        envutil.String("METRICS_ADDR", ""),
		GraphDir:           envutil.String("GRAPH_CACHE_DIR", graphstore.DefaultDir),
		MemoryCapacity:     envutil.Int("GRAPH_CACHE_MEMORY_CAPACITY", graphstore.DefaultMemoryCapacity),
		DisableCompression: !envutil.Bool("GRAPH_CACHE_COMPRESS", true),
		ProvinceDataDir:    envutil.String("PROVINCE_DATA_DIR", "data/province"),
		ProvinceLabel:      envutil.String("PROVINCE_DATA_LABEL", ""),
		CampusDataDir:      envutil.String("CAMPUS_DATA_DIR", "data/campus"),
		ReferenceRoots:     splitList(envutil.String("REFERENCE_DIRS", "data/reference")),
		AbandonedRunAge:    envutil.Seconds("RUN_ABANDONED_AFTER_SECONDS", 30*time.Minute),
		ShutdownTimeout:    envutil.Seconds("SHUTDOWN_TIMEOUT_SECONDS", 30*time.Second),
	}
	log.Info("Config loaded",
		"port", cfg.Port,
		"graph_dir", cfg.GraphDir,
		"memory_capacity", cfg.MemoryCapacity,
		"compress", !cfg.DisableCompression,
		"province_dir", cfg.ProvinceDataDir,
		"campus_dir", cfg.CampusDataDir,
	)
	return cfg
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
