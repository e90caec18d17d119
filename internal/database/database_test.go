package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jmylchreest/mediabridge/internal/config"
)

func memoryConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:          "sqlite",
		DSN:             ":memory:",
		MaxOpenConns:    25,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		LogLevel:        "silent",
	}
}

func TestNew_SQLite(t *testing.T) {
	db, err := New(memoryConfig(), nil)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))
	assert.Equal(t, "sqlite", db.Driver())

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)
}

func TestNew_InvalidDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Driver = "invalid"

	db, err := New(cfg, nil)
	assert.Error(t, err)
	assert.Nil(t, db)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestPoolSize(t *testing.T) {
	maxOpen, _ := poolSize(config.DatabaseConfig{Driver: "sqlite", DSN: "file.db"})
	assert.Equal(t, 6, maxOpen)

	maxOpen, _ = poolSize(config.DatabaseConfig{Driver: "sqlite", DSN: "file:x?mode=memory&cache=shared"})
	assert.Equal(t, 1, maxOpen)

	maxOpen, maxIdle := poolSize(config.DatabaseConfig{Driver: "postgres", MaxOpenConns: 20, MaxIdleConns: 5})
	assert.Equal(t, 20, maxOpen)
	assert.Equal(t, 5, maxIdle)
}

func TestTransaction_RollsBack(t *testing.T) {
	db, err := New(memoryConfig(), nil)
	require.NoError(t, err)
	defer db.Close()

	type widget struct {
		ID   uint
		Name string
	}
	require.NoError(t, db.AutoMigrate(&widget{}))

	sentinel := errors.New("abort")
	err = db.Transaction(context.Background(), func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Name: "a"}).Error; err != nil {
			return err
		}
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)

	var count int64
	require.NoError(t, db.Model(&widget{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGormLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, gormLogLevel("silent"))
	assert.Equal(t, logger.Error, gormLogLevel("error"))
	assert.Equal(t, logger.Info, gormLogLevel("info"))
	assert.Equal(t, logger.Warn, gormLogLevel("unknown"))
}

func TestClassifyError(t *testing.T) {
	assert.Equal(t, "NOT_FOUND", classifyError(gorm.ErrRecordNotFound))
	assert.Equal(t, "SQLITE_BUSY", classifyError(errors.New("database is locked (5)")))
	assert.Equal(t, "TIMEOUT", classifyError(context.DeadlineExceeded))
	assert.Equal(t, "OTHER", classifyError(errors.New("syntax error")))
}

func TestTruncateSQL(t *testing.T) {
	short := "SELECT 1"
	assert.Equal(t, short, truncateSQL(short))

	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}
	assert.Len(t, truncateSQL(string(long)), maxSQLLogLength+len("... (truncated)"))
}
