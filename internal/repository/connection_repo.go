package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/jmylchreest/mediabridge/internal/models"
)

// connectionRepo implements ConnectionRepository using GORM.
type connectionRepo struct {
	db *gorm.DB
}

// NewConnectionRepository creates a new ConnectionRepository.
func NewConnectionRepository(db *gorm.DB) *connectionRepo {
	return &connectionRepo{db: db}
}

func (r *connectionRepo) Create(ctx context.Context, conn *models.Connection) error {
	if err := r.db.WithContext(ctx).Create(conn).Error; err != nil {
		return fmt.Errorf("creating connection: %w", err)
	}
	return nil
}

func (r *connectionRepo) first(ctx context.Context, op string, query any, args ...any) (*models.Connection, error) {
	var conn models.Connection
	err := r.db.WithContext(ctx).Where(query, args...).First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &conn, nil
}

func (r *connectionRepo) GetByID(ctx context.Context, id models.ULID) (*models.Connection, error) {
	return r.first(ctx, "getting connection by ID", "id = ?", id)
}

func (r *connectionRepo) GetActive(ctx context.Context) (*models.Connection, error) {
	return r.first(ctx, "getting active connection", "is_active = ?", true)
}

func (r *connectionRepo) FindByEndpoint(ctx context.Context, kind models.BackendKind, baseURL string, port int) (*models.Connection, error) {
	return r.first(ctx, "finding connection by endpoint",
		"kind = ? AND base_url = ? AND port = ?", kind, baseURL, port)
}

func (r *connectionRepo) GetAll(ctx context.Context) ([]*models.Connection, error) {
	var conns []*models.Connection
	if err := r.db.WithContext(ctx).Order("display_name ASC, base_url ASC").Find(&conns).Error; err != nil {
		return nil, fmt.Errorf("getting all connections: %w", err)
	}
	return conns, nil
}

func (r *connectionRepo) Update(ctx context.Context, conn *models.Connection) error {
	conn.Sanitize()
	if err := conn.Validate(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(conn).Error; err != nil {
		return fmt.Errorf("updating connection: %w", err)
	}
	return nil
}

func (r *connectionRepo) Delete(ctx context.Context, id models.ULID) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Connection{}).Error; err != nil {
		return fmt.Errorf("deleting connection: %w", err)
	}
	return nil
}

// SetActive runs in a transaction so readers never observe two active rows.
func (r *connectionRepo) SetActive(ctx context.Context, id models.ULID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Connection{}).Where("is_active = ?", true).
			UpdateColumn("is_active", false).Error; err != nil {
			return fmt.Errorf("clearing active connection: %w", err)
		}
		res := tx.Model(&models.Connection{}).Where("id = ?", id).UpdateColumn("is_active", true)
		if res.Error != nil {
			return fmt.Errorf("activating connection: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("activating connection %s: %w", id, gorm.ErrRecordNotFound)
		}
		return nil
	})
}

func (r *connectionRepo) ClearActive(ctx context.Context) error {
	if err := r.db.WithContext(ctx).Model(&models.Connection{}).Where("is_active = ?", true).
		UpdateColumn("is_active", false).Error; err != nil {
		return fmt.Errorf("clearing active connection: %w", err)
	}
	return nil
}

var _ ConnectionRepository = (*connectionRepo)(nil)
