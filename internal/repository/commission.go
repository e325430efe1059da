package repository

import (
	"context"
	"time"

	"affiliate-payouts/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CommissionFilter struct {
	Status      model.CommissionStatus
	Tier        int
	AffiliateID string
	MinCents    int64
	Limit       int
	Offset      int
}

type CommissionRepository interface {
	CreateIfAbsent(ctx context.Context, tx *gorm.DB, commission *model.Commission) (bool, error)
	FindByID(ctx context.Context, tx *gorm.DB, commissionID string) (*model.Commission, error)
	FindByPurchase(ctx context.Context, tx *gorm.DB, purchaseID string) ([]*model.Commission, error)
	Transition(ctx context.Context, tx *gorm.DB, commission *model.Commission, to model.CommissionStatus, fields map[string]interface{}) error
	AppendTransition(ctx context.Context, tx *gorm.DB, transition *model.CommissionTransition) error
	ListTransitions(ctx context.Context, commissionID string) ([]*model.CommissionTransition, error)
	List(ctx context.Context, filter CommissionFilter) ([]*model.Commission, int64, error)

	ListEligible(ctx context.Context, tx *gorm.DB, currency string) ([]*model.Commission, error)
	Tag(ctx context.Context, tx *gorm.DB, commissionIDs []string, batchID, itemID string) (int64, error)
	Untag(ctx context.Context, tx *gorm.DB, batchID string) error
	ListByItem(ctx context.Context, tx *gorm.DB, itemID string) ([]*model.Commission, error)
	ListByBatch(ctx context.Context, batchID string) ([]*model.Commission, error)

	SumByAffiliate(ctx context.Context, affiliateID string, statuses ...model.CommissionStatus) (int64, error)
	Totals(ctx context.Context, statuses ...model.CommissionStatus) (count int64, cents int64, err error)
	CountConversions(ctx context.Context, affiliateID string) (int64, error)
	CountConversionsByAffiliate(ctx context.Context) (map[string]int64, error)
}

type commissionRepoImpl struct {
	db *gorm.DB
}

func NewCommissionRepository(db *gorm.DB) CommissionRepository {
	return &commissionRepoImpl{
		db: db,
	}
}

// CreateIfAbsent inserts the commission unless one already exists for the
// same (purchase, tier) and reports whether a row was written.
func (r *commissionRepoImpl) CreateIfAbsent(ctx context.Context, tx *gorm.DB, commission *model.Commission) (bool, error) {
	result := conn(r.db, tx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "purchase_id"}, {Name: "tier"}},
		DoNothing: true,
	}).Create(commission)

	return result.RowsAffected > 0, result.Error
}

func (r *commissionRepoImpl) FindByID(ctx context.Context, tx *gorm.DB, commissionID string) (*model.Commission, error) {
	var commission model.Commission
	err := conn(r.db, tx).WithContext(ctx).
		Where("id = ?", commissionID).
		First(&commission).Error
	if err != nil {
		return nil, notFound(err)
	}

	return &commission, nil
}

func (r *commissionRepoImpl) FindByPurchase(ctx context.Context, tx *gorm.DB, purchaseID string) ([]*model.Commission, error) {
	var commissions []*model.Commission
	err := conn(r.db, tx).WithContext(ctx).
		Where("purchase_id = ?", purchaseID).
		Order("tier").
		Find(&commissions).Error

	return commissions, err
}

// Transition moves the commission to `to` only if its status and version are
// still what the caller read. The commission is reloaded on success.
func (r *commissionRepoImpl) Transition(ctx context.Context, tx *gorm.DB, commission *model.Commission, to model.CommissionStatus, fields map[string]interface{}) error {
	updates := map[string]interface{}{
		"status":     to,
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now(),
	}
	for k, v := range fields {
		updates[k] = v
	}

	db := conn(r.db, tx).WithContext(ctx)
	result := db.Model(&model.Commission{}).
		Where("id = ? AND status = ? AND version = ?", commission.ID, commission.Status, commission.Version).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrConcurrentModification
	}

	return db.Where("id = ?", commission.ID).First(commission).Error
}

func (r *commissionRepoImpl) AppendTransition(ctx context.Context, tx *gorm.DB, transition *model.CommissionTransition) error {
	return conn(r.db, tx).WithContext(ctx).Create(transition).Error
}

func (r *commissionRepoImpl) ListTransitions(ctx context.Context, commissionID string) ([]*model.CommissionTransition, error) {
	var transitions []*model.CommissionTransition
	err := r.db.WithContext(ctx).
		Where("commission_id = ?", commissionID).
		Order("created_at").
		Order("id").
		Find(&transitions).Error

	return transitions, err
}

func (r *commissionRepoImpl) List(ctx context.Context, filter CommissionFilter) ([]*model.Commission, int64, error) {
	query := r.db.WithContext(ctx).Model(&model.Commission{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Tier != 0 {
		query = query.Where("tier = ?", filter.Tier)
	}
	if filter.AffiliateID != "" {
		query = query.Where("affiliate_id = ?", filter.AffiliateID)
	}
	if filter.MinCents > 0 {
		query = query.Where("amount_cents >= ?", filter.MinCents)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	var commissions []*model.Commission
	err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&commissions).Error
	if err != nil {
		return nil, 0, err
	}

	return commissions, total, nil
}

// ListEligible locks and returns approved, untagged commissions of active
// affiliates in the given currency.
func (r *commissionRepoImpl) ListEligible(ctx context.Context, tx *gorm.DB, currency string) ([]*model.Commission, error) {
	var commissions []*model.Commission
	err := conn(r.db, tx).WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Model(&model.Commission{}).
		Select("commissions.*").
		Joins("JOIN affiliates ON affiliates.id = commissions.affiliate_id").
		Where(`
			commissions.status = ?
			AND commissions.payout_batch_id IS NULL
			AND commissions.currency = ?
			AND affiliates.status = ?
		`,
			model.CommissionApproved,
			currency,
			model.AffiliateActive,
		).
		Order("commissions.affiliate_id").
		Order("commissions.created_at").
		Find(&commissions).Error

	return commissions, err
}

// Tag links commissions to a batch item. It only touches rows that are still
// approved and untagged; callers compare the count with len(commissionIDs).
func (r *commissionRepoImpl) Tag(ctx context.Context, tx *gorm.DB, commissionIDs []string, batchID, itemID string) (int64, error) {
	result := conn(r.db, tx).WithContext(ctx).Model(&model.Commission{}).
		Where("id IN ? AND status = ? AND payout_batch_id IS NULL", commissionIDs, model.CommissionApproved).
		Updates(map[string]interface{}{
			"payout_batch_id": batchID,
			"payout_item_id":  itemID,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		})

	return result.RowsAffected, result.Error
}

func (r *commissionRepoImpl) Untag(ctx context.Context, tx *gorm.DB, batchID string) error {
	return conn(r.db, tx).WithContext(ctx).Model(&model.Commission{}).
		Where("payout_batch_id = ? AND status = ?", batchID, model.CommissionApproved).
		Updates(map[string]interface{}{
			"payout_batch_id": nil,
			"payout_item_id":  nil,
			"version":         gorm.Expr("version + 1"),
			"updated_at":      time.Now(),
		}).Error
}

func (r *commissionRepoImpl) ListByItem(ctx context.Context, tx *gorm.DB, itemID string) ([]*model.Commission, error) {
	var commissions []*model.Commission
	err := conn(r.db, tx).WithContext(ctx).
		Where("payout_item_id = ?", itemID).
		Order("created_at").
		Find(&commissions).Error

	return commissions, err
}

func (r *commissionRepoImpl) ListByBatch(ctx context.Context, batchID string) ([]*model.Commission, error) {
	var commissions []*model.Commission
	err := r.db.WithContext(ctx).
		Where("payout_batch_id = ?", batchID).
		Order("affiliate_id").
		Order("created_at").
		Find(&commissions).Error

	return commissions, err
}

func (r *commissionRepoImpl) SumByAffiliate(ctx context.Context, affiliateID string, statuses ...model.CommissionStatus) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&model.Commission{}).
		Select("COALESCE(SUM(amount_cents), 0)").
		Where("affiliate_id = ? AND status IN ?", affiliateID, statuses).
		Scan(&sum).Error

	return sum, err
}

func (r *commissionRepoImpl) Totals(ctx context.Context, statuses ...model.CommissionStatus) (int64, int64, error) {
	var row struct {
		N     int64
		Cents int64
	}
	err := r.db.WithContext(ctx).Model(&model.Commission{}).
		Select("COUNT(*) AS n, COALESCE(SUM(amount_cents), 0) AS cents").
		Where("status IN ?", statuses).
		Scan(&row).Error

	return row.N, row.Cents, err
}

// CountConversions counts distinct purchases the affiliate earned a tier-1
// commission on.
func (r *commissionRepoImpl) CountConversions(ctx context.Context, affiliateID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Commission{}).
		Where("affiliate_id = ? AND tier = ?", affiliateID, 1).
		Distinct("purchase_id").
		Count(&count).Error

	return count, err
}

func (r *commissionRepoImpl) CountConversionsByAffiliate(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		AffiliateID string
		N           int64
	}
	err := r.db.WithContext(ctx).Model(&model.Commission{}).
		Select("affiliate_id, COUNT(DISTINCT purchase_id) AS n").
		Where("tier = ?", 1).
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
