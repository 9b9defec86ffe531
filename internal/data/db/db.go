package db

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/majorgraph-backend/internal/platform/envutil"
	"github.com/yungbote/majorgraph-backend/internal/platform/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultSQLitePath = "data/majorgraph.db"
)

type Config struct {
	Driver string
	// Path is the sqlite file; ":memory:" gives a private in-memory database.
	Path string
	// DSN overrides the postgres connection assembled from the POSTGRES_* variables.
	DSN          string
	MaxOpenConns int
	LogLevel     gormLogger.LogLevel
}

func ConfigFromEnv() Config {
	cfg := Config{
		Driver:       strings.ToLower(envutil.String("DB_DRIVER", DriverSQLite)),
		Path:         envutil.String("DB_PATH", DefaultSQLitePath),
		DSN:          envutil.String("DATABASE_URL", ""),
		MaxOpenConns: envutil.Int("DB_MAX_OPEN_CONNS", 10),
		LogLevel:     gormLogger.Warn,
	}
	if cfg.DSN == "" && cfg.Driver == DriverPostgres {
		cfg.DSN = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			envutil.String("POSTGRES_USER", "postgres"),
			envutil.String("POSTGRES_PASSWORD", ""),
			envutil.String("POSTGRES_HOST", "localhost"),
			envutil.String("POSTGRES_PORT", "5432"),
			envutil.String("POSTGRES_NAME", "majorgraph"),
		)
	}
	return cfg
}

// Service owns the gorm handle for run history and the hierarchy cache.
type Service struct {
	db     *gorm.DB
	driver string
	log    *logger.Logger
}

func Open(cfg Config, baseLog *logger.Logger) (*Service, error) {
	if baseLog == nil {
		baseLog = logger.Nop()
	}
	serviceLog := baseLog.With("service", "DatabaseService")
	if cfg.LogLevel == 0 {
		cfg.LogLevel = gormLogger.Warn
	}
	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  cfg.LogLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	gcfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("db: postgres driver needs a DSN")
		}
		db, err = gorm.Open(postgres.Open(cfg.DSN), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
	case DriverSQLite, "":
		path := cfg.Path
		if path == "" {
			path = DefaultSQLitePath
		}
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("db: mkdir for %s: %w", path, err)
			}
		}
		db, err = gorm.Open(sqlite.Open(path), gcfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
		}
		cfg.Driver = DriverSQLite
		// sqlite serializes writers; one connection keeps ":memory:" databases shared.
		cfg.MaxOpenConns = 1
	default:
		return nil, fmt.Errorf("db: unknown driver %q", cfg.Driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: pool: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	serviceLog.Info("database connected", "driver", cfg.Driver)
	return &Service{db: db, driver: cfg.Driver, log: serviceLog}, nil
}

func (s *Service) DB() *gorm.DB { return s.db }

func (s *Service) Driver() string { return s.driver }

func (s *Service) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
