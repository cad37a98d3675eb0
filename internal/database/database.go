package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"task-notifications/internal/models"
)

var DB *gorm.DB

// InitDB opens the SQLite file at path and migrates the schema. glebarez
// sqlite is pure Go, so no CGO is needed.
func InitDB(path string) error {
	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return fmt.Errorf("open database %s: %w", path, err)
	}

	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	DB = db
	log.Info().Str("path", path).Msg("database connected and migrated")
	return nil
}

// GetDB returns the database connection
func GetDB() *gorm.DB {
	return DB
}
