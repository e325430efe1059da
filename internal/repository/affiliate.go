package repository

import (
	"context"
	"time"

	"affiliate-payouts/internal/model"

	"gorm.io/gorm"
)

type AffiliateRepository interface {
	Create(ctx context.Context, tx *gorm.DB, affiliate *model.Affiliate) error
	FindByID(ctx context.Context, tx *gorm.DB, affiliateID string) (*model.Affiliate, error)
	FindByCode(ctx context.Context, code string) (*model.Affiliate, error)
	FindByEmail(ctx context.Context, email string) (*model.Affiliate, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	UpdateStatus(ctx context.Context, affiliateID string, status model.AffiliateStatus) error
	CountByStatus(ctx context.Context, status model.AffiliateStatus) (int64, error)
	CountReferredBy(ctx context.Context, affiliateID string) (int64, error)
	ListIDsByStatus(ctx context.Context, status model.AffiliateStatus) ([]string, error)
}

type affiliateRepoImpl struct {
	db *gorm.DB
}

func NewAffiliateRepository(db *gorm.DB) AffiliateRepository {
	return &affiliateRepoImpl{
		db: db,
	}
}

func (r *affiliateRepoImpl) Create(ctx context.Context, tx *gorm.DB, affiliate *model.Affiliate) error {
	return conn(r.db, tx).WithContext(ctx).Create(affiliate).Error
}

func (r *affiliateRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, affiliateID string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := conn(r.db, tx).WithContext(ctx).
		Where("id = ?", affiliateID).
		First(&affiliate).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &affiliate, nil
}

func (r *affiliateRepoImpl) FindByCode(ctx context.Context, code string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.db.WithContext(ctx).
		Where("referral_code = ?", code).
		First(&affiliate).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &affiliate, nil
}

func (r *affiliateRepoImpl) FindByEmail(ctx context.Context, email string) (*model.Affiliate, error) {
	var affiliate model.Affiliate
	err := r.db.WithContext(ctx).
		Where("email = ?", email).
		First(&affiliate).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &affiliate, nil
}

func (r *affiliateRepoImpl) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Affiliate{}).
		Where("referral_code = ?", code).
		Count(&count).Error

	return count > 0, err
}

func (r *affiliateRepoImpl) UpdateStatus(ctx context.Context, affiliateID string, status model.AffiliateStatus) error {
	result := r.db.WithContext(ctx).
		Model(&model.Affiliate{}).
		Where("id = ?", affiliateID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *affiliateRepoImpl) CountByStatus(ctx context.Context, status model.AffiliateStatus) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Affiliate{}).
		Where("status = ?", status).
		Count(&count).Error

	return count, err
}

func (r *affiliateRepoImpl) CountReferredBy(ctx context.Context, affiliateID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Affiliate{}).
		Where("referred_by_id = ?", affiliateID).
		Count(&count).Error

	return count, err
}

func (r *affiliateRepoImpl) ListIDsByStatus(ctx context.Context, status model.AffiliateStatus) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&model.Affiliate{}).
		Where("status = ?", status).
		Order("id").
		Pluck("id", &ids).Error

	return ids, err
}
