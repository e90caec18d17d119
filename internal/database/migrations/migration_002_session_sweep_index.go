package migrations

import (
	"gorm.io/gorm"

	"github.com/jmylchreest/mediabridge/internal/models"
)

const sessionSweepIndex = "idx_active_sessions_last_activity"

func migration002SessionSweepIndex() Migration {
	return Migration{
		Version:     "002",
		Description: "Index active_sessions.last_activity_at for inactivity sweeps",
		Up: func(tx *gorm.DB) error {
			if tx.Migrator().HasIndex(&models.ActiveSession{}, sessionSweepIndex) {
				return nil
			}
			return tx.Exec("CREATE INDEX " + sessionSweepIndex + " ON active_sessions (last_activity_at)").Error
		},
		Down: func(tx *gorm.DB) error {
			return tx.Migrator().DropIndex(&models.ActiveSession{}, sessionSweepIndex)
		},
	}
}
