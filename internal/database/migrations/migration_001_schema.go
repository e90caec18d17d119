package migrations

import (
	"gorm.io/gorm"

	"github.com/jmylchreest/mediabridge/internal/models"
)

func migration001Schema() Migration {
	tables := []any{
		&models.Connection{},
		&models.ActiveSession{},
		&models.PlaybackPosition{},
		&models.Setting{},
	}

	return Migration{
		Version:     "001",
		Description: "Create connection, session, playback and settings tables",
		Up: func(tx *gorm.DB) error {
			return tx.AutoMigrate(tables...)
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropTable(tables...)
		},
	}
}
