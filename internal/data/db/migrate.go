package db

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/yungbote/majorgraph-backend/internal/types"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&types.GraphBuildRun{},
		&types.SchoolHierarchy{},
	); err != nil {
		return fmt.Errorf("db: auto migrate: %w", err)
	}
	return nil
}

func (s *Service) AutoMigrateAll() error {
	s.log.Info("Auto migrating tables...")
	if err := AutoMigrateAll(s.db); err != nil {
		s.log.Error("Auto migration failed", "error", err)
		return err
	}
	return nil
}
