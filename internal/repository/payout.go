package repository

import (
	"context"
	"time"

	"affiliate-payouts/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PayoutRepository interface {
	CreateBatch(ctx context.Context, tx *gorm.DB, batch *model.PayoutBatch) error
	CreateItem(ctx context.Context, tx *gorm.DB, item *model.PayoutItem) error
	FindBatch(ctx context.Context, tx *gorm.DB, batchID string) (*model.PayoutBatch, error)
	FindBatchByExternalID(ctx context.Context, externalBatchID string) (*model.PayoutBatch, error)
	UpdateBatch(ctx context.Context, tx *gorm.DB, batchID string, fields map[string]interface{}) error
	ListItems(ctx context.Context, tx *gorm.DB, batchID string) ([]*model.PayoutItem, error)
	LockItem(ctx context.Context, tx *gorm.DB, itemID string) (*model.PayoutItem, error)
	UpdateItem(ctx context.Context, tx *gorm.DB, itemID string, fields map[string]interface{}) error
	ListOpenBatches(ctx context.Context, limit int) ([]*model.PayoutBatch, error)
	ListBatches(ctx context.Context, limit, offset int) ([]*model.PayoutBatch, int64, error)
}

type payoutRepoImpl struct {
	db *gorm.DB
}

func NewPayoutRepository(db *gorm.DB) PayoutRepository {
	return &payoutRepoImpl{
		db: db,
	}
}

func (r *payoutRepoImpl) CreateBatch(ctx context.Context, tx *gorm.DB, batch *model.PayoutBatch) error {
	return conn(r.db, tx).WithContext(ctx).Create(batch).Error
}

func (r *payoutRepoImpl) CreateItem(ctx context.Context, tx *gorm.DB, item *model.PayoutItem) error {
	return conn(r.db, tx).WithContext(ctx).Create(item).Error
}

func (r *payoutRepoImpl) FindBatch(ctx context.Context, tx *gorm.DB, batchID string) (*model.PayoutBatch, error) {
	var batch model.PayoutBatch
	err := conn(r.db, tx).WithContext(ctx).
		Where("id = ?", batchID).
		First(&batch).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &batch, nil
}

func (r *payoutRepoImpl) FindBatchByExternalID(ctx context.Context, externalBatchID string) (*model.PayoutBatch, error) {
	var batch model.PayoutBatch
	err := r.db.WithContext(ctx).
		Where("external_batch_id = ?", externalBatchID).
		First(&batch).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &batch, nil
}

func (r *payoutRepoImpl) UpdateBatch(ctx context.Context, tx *gorm.DB, batchID string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()

	result := conn(r.db, tx).WithContext(ctx).
		Model(&model.PayoutBatch{}).
		Where("id = ?", batchID).
		Updates(fields)

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *payoutRepoImpl) ListItems(ctx context.Context, tx *gorm.DB, batchID string) ([]*model.PayoutItem, error) {
	var items []*model.PayoutItem
	err := conn(r.db, tx).WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("affiliate_id").
		Find(&items).Error

	return items, err
}

func (r *payoutRepoImpl) LockItem(ctx context.Context, tx *gorm.DB, itemID string) (*model.PayoutItem, error) {
	var item model.PayoutItem
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", itemID).
		First(&item).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &item, nil
}

func (r *payoutRepoImpl) UpdateItem(ctx context.Context, tx *gorm.DB, itemID string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()

	return conn(r.db, tx).WithContext(ctx).
		Model(&model.PayoutItem{}).
		Where("id = ?", itemID).
		Updates(fields).Error
}

func (r *payoutRepoImpl) ListOpenBatches(ctx context.Context, limit int) ([]*model.PayoutBatch, error) {
	var batches []*model.PayoutBatch
	err := r.db.WithContext(ctx).
		Where("status = ?", model.BatchOpen).
		Order("submitted_at").
		Limit(limit).
		Find(&batches).Error

	return batches, err
}

func (r *payoutRepoImpl) ListBatches(ctx context.Context, limit, offset int) ([]*model.PayoutBatch, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.PayoutBatch{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 20
	}

	var batches []*model.PayoutBatch
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&batches).Error
	if err != nil {
		return nil, 0, err
	}

	return batches, total, nil
}
