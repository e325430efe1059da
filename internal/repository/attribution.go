package repository

import (
	"context"
	"time"

	"affiliate-payouts/internal/model"

	"gorm.io/gorm"
)

type AttributionRepository interface {
	Create(ctx context.Context, attribution *model.ReferralAttribution) error
	Latest(ctx context.Context, userKey string, asOf time.Time) (*model.ReferralAttribution, error)
	CountUsers(ctx context.Context, affiliateID string) (int64, error)
	CountUsersByAffiliate(ctx context.Context) (map[string]int64, error)
}

type attributionRepoImpl struct {
	db *gorm.DB
}

func NewAttributionRepository(db *gorm.DB) AttributionRepository {
	return &attributionRepoImpl{
		db: db,
	}
}

func (r *attributionRepoImpl) Create(ctx context.Context, attribution *model.ReferralAttribution) error {
	return r.db.WithContext(ctx).Create(attribution).Error
}

// Latest returns the newest row for the user recorded at or before asOf,
// regardless of age; expiry is the caller's decision.
func (r *attributionRepoImpl) Latest(ctx context.Context, userKey string, asOf time.Time) (*model.ReferralAttribution, error) {
	var attribution model.ReferralAttribution
	err := r.db.WithContext(ctx).
		Where("user_key = ? AND created_at <= ?", userKey, asOf.UTC()).
		Order("created_at DESC").
		Order("id DESC").
		First(&attribution).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &attribution, nil
}

func (r *attributionRepoImpl) CountUsers(ctx context.Context, affiliateID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.ReferralAttribution{}).
		Where("affiliate_id = ?", affiliateID).
		Distinct("user_key").
		Count(&count).Error

	return count, err
}

func (r *attributionRepoImpl) CountUsersByAffiliate(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		AffiliateID string
		N           int64
	}
	err := r.db.WithContext(ctx).Model(&model.ReferralAttribution{}).
		Select("affiliate_id, COUNT(DISTINCT user_key) AS n").
		Group("affiliate_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.AffiliateID] = row.N
	}

	return counts, nil
}
