package dto

import (
	"time"

	"affiliate-payouts/internal/model"
)

type RegisterAffiliateRequest struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	PaypalEmail  string `json:"paypal_email"`
	ReferralCode string `json:"referral_code,omitempty"` // code of the affiliate who referred this one
}

type UpdateAffiliateStatusRequest struct {
	Status model.AffiliateStatus `json:"status"`
}

type ClickRequest struct {
	UserKey string `json:"user_key"`
	Code    string `json:"code"`
}

type ResolveResponse struct {
	UserKey     string `json:"user_key"`
	AffiliateID string `json:"affiliate_id,omitempty"`
	Attributed  bool   `json:"attributed"`
}

type PurchaseEvent struct {
	PurchaseID   string    `json:"purchase_id"`
	BuyerUserKey string    `json:"buyer_user_key"`
	Amount       string    `json:"amount"` // decimal string, e.g. "100.00"
	Currency     string    `json:"currency"`
	OccurredAt   time.Time `json:"occurred_at"`
}

type PurchaseResponse struct {
	PurchaseID  string              `json:"purchase_id"`
	Commissions []*model.Commission `json:"commissions"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type CommissionDetail struct {
	Commission *model.Commission              `json:"commission"`
	History    []*model.CommissionTransition `json:"history"`
}

type CommissionList struct {
	Items  []*model.Commission `json:"items"`
	Total  int64               `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type ProcessPayoutsRequest struct {
	MinAmount string `json:"min_amount,omitempty"` // defaults to the configured threshold
}

type PayoutBatchDetail struct {
	Batch       *model.PayoutBatch  `json:"batch"`
	Items       []*model.PayoutItem `json:"items"`
	Commissions []*model.Commission `json:"commissions"`
}

type PayoutBatchList struct {
	Items  []*model.PayoutBatch `json:"items"`
	Total  int64                `json:"total"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

type AffiliateStats struct {
	AffiliateID       string `json:"affiliate_id"`
	TotalEarnedCents  int64  `json:"total_earned_cents"`
	TotalEarned       string `json:"total_earned"`
	PendingCents      int64  `json:"pending_cents"`
	Pending           string `json:"pending"`
	ReferralCount     int64  `json:"referral_count"`
	ConversionCount   int64  `json:"conversion_count"`
	ConversionRate    string `json:"conversion_rate"` // percent, two decimals
	SubAffiliateCount int64  `json:"sub_affiliate_count"`
}

type AdminStats struct {
	TotalCommissionCount  int64  `json:"total_commission_count"`
	TotalCommissionsCents int64  `json:"total_commissions_cents"`
	TotalCommissions      string `json:"total_commissions"`
	PendingPayoutsCents   int64  `json:"pending_payouts_cents"`
	PendingPayouts        string `json:"pending_payouts"`
	ActiveAffiliateCount  int64  `json:"active_affiliate_count"`
	AvgConversionRate     string `json:"avg_conversion_rate"`
}
