package database

import (
	"errors"
	"time"

	"github.com/locallink-app/locallink/backend/internal/catalog"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillServiceTimestamps = "2026-08-12_backfill_service_timestamps"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillServiceTimestamps, apply: backfillServiceTimestamps},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows imported before timestamps were recorded carry a zero created_at; give
// them their updated_at so creation-order listings stay stable.
func backfillServiceTimestamps(db *gorm.DB) error {
	return db.Model(&catalog.Record{}).
		Where("created_at_s = 0 AND updated_at_s <> 0").
		Update("created_at_s", gorm.Expr("updated_at_s")).Error
}
