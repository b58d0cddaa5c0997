package stock

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/calebmorton/shelfline-backend/pkg/db/models"
)

// Repository exposes persistence helpers for stock records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByTitle(ctx context.Context, titleID uuid.UUID) (*models.StockRecord, error)
	Decrement(ctx context.Context, titleID uuid.UUID) (bool, error)
	Increment(ctx context.Context, titleID uuid.UUID) (bool, error)
	Upsert(ctx context.Context, record *models.StockRecord) error
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a stock repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) FindByTitle(ctx context.Context, titleID uuid.UUID) (*models.StockRecord, error) {
	var record models.StockRecord
	if err := r.db.WithContext(ctx).First(&record, "title_id = ?", titleID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

// Decrement takes one unit off the shelf. The guard clause keeps quantity from
// ever going negative: zero rows affected means no copy was free.
func (r *repositoryImpl) Decrement(ctx context.Context, titleID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_records
		SET quantity = quantity - 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE title_id = ? AND quantity > 0
	`, titleID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Increment puts one unit back on the shelf. Zero rows affected means the
// title has no stock record at all.
func (r *repositoryImpl) Increment(ctx context.Context, titleID uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE stock_records
		SET quantity = quantity + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE title_id = ?
	`, titleID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repositoryImpl) Upsert(ctx context.Context, record *models.StockRecord) error {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	existing := &models.StockRecord{}
	err := r.db.WithContext(ctx).First(existing, "title_id = ?", record.TitleID).Error
	if err == gorm.ErrRecordNotFound {
		return r.db.WithContext(ctx).Create(record).Error
	}
	if err != nil {
		return err
	}
	record.ID = existing.ID
	return r.db.WithContext(ctx).
		Model(&models.StockRecord{}).
		Where("id = ?", existing.ID).
		Update("quantity", record.Quantity).Error
}
