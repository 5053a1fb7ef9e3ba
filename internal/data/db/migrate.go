package db

import (
	"fmt"

	types "github.com/yungbote/research-evidence-backend/internal/domain"
	"gorm.io/gorm"
)

func AutoMigrateAll(db *gorm.DB) error {
	if err := db.AutoMigrate(types.AllModels()...); err != nil {
		return err
	}
	return EnsureComparisonIndexes(db)
}

// EnsureComparisonIndexes adds lookup indexes the struct tags can't express.
func EnsureComparisonIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_section_comparison_parent_element
		ON section_comparison (parent_comparison_id, element_id);
	`).Error; err != nil {
		return fmt.Errorf("create idx_section_comparison_parent_element: %w", err)
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
