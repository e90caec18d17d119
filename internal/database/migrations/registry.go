package migrations

// AllMigrations returns all registered migrations in order.
//   - 001: connections, active_sessions, playback_positions, settings
//   - 002: standalone last_activity_at index for the inactivity sweep
func AllMigrations() []Migration {
	return []Migration{
		migration001Schema(),
		migration002SessionSweepIndex(),
	}
}
