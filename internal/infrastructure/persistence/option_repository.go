package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/marketsync/backend/internal/domain/catalog"
	"github.com/marketsync/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOptionRepository implements catalog.OptionRepository using GORM
type GormOptionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormOptionRepository creates a new GormOptionRepository
func NewGormOptionRepository(db *gorm.DB) *GormOptionRepository {
	return &GormOptionRepository{db: db, now: time.Now}
}

var _ catalog.OptionRepository = (*GormOptionRepository)(nil)

// WithTx returns a new repository bound to the transaction
func (r *GormOptionRepository) WithTx(tx *gorm.DB) *GormOptionRepository {
	return &GormOptionRepository{db: tx, now: r.now}
}

// FindByHash finds an option by its identity hash
func (r *GormOptionRepository) FindByHash(ctx context.Context, hash string) (*catalog.ProductOption, error) {
	var model models.ProductOptionModel
	if err := r.db.WithContext(ctx).Where("hash = ?", hash).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrOptionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an option by its identifier
func (r *GormOptionRepository) FindByID(ctx context.Context, optionID int64) (*catalog.ProductOption, error) {
	var model models.ProductOptionModel
	if err := r.db.WithContext(ctx).Where("option_id = ?", optionID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrOptionNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByProduct returns every option of a product ordered by identifier
func (r *GormOptionRepository) FindByProduct(ctx context.Context, productID int64) ([]catalog.ProductOption, error) {
	var optionModels []models.ProductOptionModel
	if err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("option_id ASC").
		Find(&optionModels).Error; err != nil {
		return nil, err
	}

	options := make([]catalog.ProductOption, len(optionModels))
	for i, model := range optionModels {
		options[i] = *model.ToDomain()
	}
	return options, nil
}

// InsertIgnore inserts the option unless its hash is already stored.
// On insert the generated identifier is written back to option.
func (r *GormOptionRepository) InsertIgnore(ctx context.Context, option *catalog.ProductOption) (bool, error) {
	now := r.now()
	model := &models.ProductOptionModel{}
	model.FromDomain(option)
	model.OptionID = 0
	model.CreatedAt = now
	model.UpdatedAt = now

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "hash"}},
			DoNothing: true,
		}).
		Create(model)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	option.OptionID = model.OptionID
	option.CreatedAt = now
	option.UpdatedAt = now
	return true, nil
}

// UpdateMetadata refreshes the variation and product name of an option
func (r *GormOptionRepository) UpdateMetadata(ctx context.Context, hash string, variationID *int64, name string) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProductOptionModel{}).
		Where("hash = ?", hash).
		Updates(map[string]any{
			"variation_id": variationID,
			"product_name": name,
			"updated_at":   r.now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrOptionNotFound
	}
	return nil
}

// deleteBatchSize keeps every DELETE well below the bind parameter limit of
// SQLite (32766) and PostgreSQL (65535).
const deleteBatchSize = 1000

// DeleteWhereHashNotIn removes every option whose hash is not listed.
// An empty list is refused. The stored hashes are loaded and diffed against
// the live set here, so the live set never becomes a query parameter list.
func (r *GormOptionRepository) DeleteWhereHashNotIn(ctx context.Context, hashes []string) (int64, error) {
	if len(hashes) == 0 {
		return 0, catalog.ErrEmptyLiveSet
	}

	var stored []string
	if err := r.db.WithContext(ctx).
		Model(&models.ProductOptionModel{}).
		Pluck("hash", &stored).Error; err != nil {
		return 0, err
	}

	live := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		live[h] = struct{}{}
	}
	stale := make([]string, 0)
	for _, h := range stored {
		if _, ok := live[h]; !ok {
			stale = append(stale, h)
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	var removed int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for start := 0; start < len(stale); start += deleteBatchSize {
			end := min(start+deleteBatchSize, len(stale))
			result := tx.Where("hash IN ?", stale[start:end]).Delete(&models.ProductOptionModel{})
			if result.Error != nil {
				return result.Error
			}
			removed += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// Count returns the number of stored options
func (r *GormOptionRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.ProductOptionModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
