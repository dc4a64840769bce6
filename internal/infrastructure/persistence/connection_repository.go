package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marketsync/backend/internal/domain/connection"
	"github.com/marketsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// KeySealer seals private keys before they reach the database
type KeySealer interface {
	Seal(plaintext string) ([]byte, error)
	Open(sealed []byte) (string, error)
}

// GormConnectionRepository implements connection.Repository using GORM
type GormConnectionRepository struct {
	db     *gorm.DB
	sealer KeySealer
	now    func() time.Time
}

// NewGormConnectionRepository creates a new GormConnectionRepository
func NewGormConnectionRepository(db *gorm.DB, sealer KeySealer) *GormConnectionRepository {
	return &GormConnectionRepository{db: db, sealer: sealer, now: time.Now}
}

var _ connection.Repository = (*GormConnectionRepository)(nil)

func (r *GormConnectionRepository) toDomain(model *models.ConnectionModel) (*connection.Connection, error) {
	conn, err := model.ToDomain()
	if err != nil {
		return nil, err
	}
	key, err := r.sealer.Open(model.PrivateKeySealed)
	if err != nil {
		return nil, fmt.Errorf("open private key of connection %d: %w", model.ID, err)
	}
	conn.PrivateKey = key
	return conn, nil
}

func (r *GormConnectionRepository) toDomainList(rows []models.ConnectionModel) ([]connection.Connection, error) {
	conns := make([]connection.Connection, 0, len(rows))
	for i := range rows {
		conn, err := r.toDomain(&rows[i])
		if err != nil {
			return nil, err
		}
		conns = append(conns, *conn)
	}
	return conns, nil
}

// FindByID finds a connection by its ID
func (r *GormConnectionRepository) FindByID(ctx context.Context, id int64) (*connection.Connection, error) {
	var model models.ConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, connection.ErrNotFound
		}
		return nil, err
	}
	return r.toDomain(&model)
}

// FindAll returns every connection ordered by id
func (r *GormConnectionRepository) FindAll(ctx context.Context) ([]connection.Connection, error) {
	var rows []models.ConnectionModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toDomainList(rows)
}

// FindActive returns active connections ordered by id
func (r *GormConnectionRepository) FindActive(ctx context.Context) ([]connection.Connection, error) {
	var rows []models.ConnectionModel
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.toDomainList(rows)
}

// Save inserts a new connection or updates an existing one.
// The generated id and timestamps are written back to conn.
func (r *GormConnectionRepository) Save(ctx context.Context, conn *connection.Connection) error {
	sealed, err := r.sealer.Seal(conn.PrivateKey)
	if err != nil {
		return fmt.Errorf("seal private key: %w", err)
	}

	now := r.now()
	if conn.ID == 0 {
		conn.CreatedAt = now
	}
	conn.UpdatedAt = now

	model := &models.ConnectionModel{}
	if err := model.FromDomain(conn); err != nil {
		return err
	}
	model.PrivateKeySealed = sealed

	if conn.ID == 0 {
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return err
		}
		conn.ID = model.ID
		return nil
	}

	result := r.db.WithContext(ctx).
		Model(&models.ConnectionModel{}).
		Where("id = ?", conn.ID).
		Updates(map[string]any{
			"name":               model.Name,
			"public_key":         model.PublicKey,
			"private_key_sealed": model.PrivateKeySealed,
			"is_active":          model.IsActive,
			"catalog_policy":     model.CatalogPolicy,
			"offer_policy":       model.OfferPolicy,
			"import_policy":      model.ImportPolicy,
			"shipment_policy":    model.ShipmentPolicy,
			"updated_at":         model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return connection.ErrNotFound
	}
	return nil
}

// Delete removes a connection
func (r *GormConnectionRepository) Delete(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).Delete(&models.ConnectionModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return connection.ErrNotFound
	}
	return nil
}
