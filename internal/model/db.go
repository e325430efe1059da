package model

import "time"

type AffiliateStatus string

const (
	AffiliatePending   AffiliateStatus = "pending"
	AffiliateActive    AffiliateStatus = "active"
	AffiliateSuspended AffiliateStatus = "suspended"
)

func (s AffiliateStatus) Valid() bool {
	switch s {
	case AffiliatePending, AffiliateActive, AffiliateSuspended:
		return true
	}
	return false
}

type Affiliate struct {
	ID           string          `gorm:"primaryKey;size:64;not null" json:"id"`
	Name         string          `gorm:"size:128;not null" json:"name"`
	Email        string          `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PaypalEmail  string          `gorm:"size:255;not null" json:"paypal_email"`
	ReferralCode string          `gorm:"size:16;uniqueIndex;not null" json:"referral_code"`
	Status       AffiliateStatus `gorm:"size:16;index;not null" json:"status"`
	// FK → affiliates.id, the affiliate who referred this one
	ReferredByID *string   `gorm:"size:64;index" json:"referred_by_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type ReferralAttribution struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	UserKey     string    `gorm:"size:128;index:idx_attribution_user_created,priority:1;not null" json:"user_key"`
	AffiliateID string    `gorm:"size:64;index;not null" json:"affiliate_id"`
	CreatedAt   time.Time `gorm:"index:idx_attribution_user_created,priority:2;not null" json:"created_at"`
}

type Commission struct {
	ID          string           `gorm:"primaryKey;size:64;not null" json:"id"`
	AffiliateID string           `gorm:"size:64;index;not null" json:"affiliate_id"`
	PurchaseID  string           `gorm:"size:128;uniqueIndex:idx_commission_purchase_tier,priority:1;not null" json:"purchase_id"`
	Tier        int              `gorm:"uniqueIndex:idx_commission_purchase_tier,priority:2;not null" json:"tier"`
	BuyerKey    string           `gorm:"size:128;not null" json:"buyer_key"`
	AmountCents int64            `gorm:"not null" json:"amount_cents"` // minor units
	Currency    string           `gorm:"size:8;not null" json:"currency"`
	Status      CommissionStatus `gorm:"size:16;index;not null" json:"status"`
	Version     int64            `gorm:"not null;default:1" json:"version"`

	// FK → payout_batches.id / payout_items.id while tagged into a batch
	PayoutBatchID *string    `gorm:"size:64;index" json:"payout_batch_id,omitempty"`
	PayoutItemID  *string    `gorm:"size:64;index" json:"payout_item_id,omitempty"`
	TransactionID string     `gorm:"size:64" json:"transaction_id,omitempty"`
	ErrorCode     string     `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage  string     `gorm:"size:512" json:"error_message,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CommissionTransition struct {
	ID            uint             `gorm:"primaryKey" json:"id"`
	CommissionID  string           `gorm:"size:64;index;not null" json:"commission_id"`
	FromStatus    CommissionStatus `gorm:"size:16" json:"from_status"` // empty on creation
	ToStatus      CommissionStatus `gorm:"size:16;not null" json:"to_status"`
	ActorID       string           `gorm:"size:64;not null" json:"actor_id"`
	ActorKind     ActorKind        `gorm:"size:16;not null" json:"actor_kind"`
	Reason        string           `gorm:"size:512" json:"reason,omitempty"`
	PayoutBatchID string           `gorm:"size:64" json:"payout_batch_id,omitempty"`
	TransactionID string           `gorm:"size:64" json:"transaction_id,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
}

type BatchStatus string

const (
	BatchSubmitting BatchStatus = "submitting" // reserved locally, PayPal call in flight
	BatchOpen       BatchStatus = "open"       // accepted by PayPal, awaiting item outcomes
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed" // submission rejected, never polled
)

type PayoutBatch struct {
	ID              string      `gorm:"primaryKey;size:64;not null" json:"id"` // sender_batch_id
	ExternalBatchID *string     `gorm:"size:64;uniqueIndex" json:"external_batch_id,omitempty"`
	Status          BatchStatus `gorm:"size:16;index;not null" json:"status"`
	TotalCents      int64       `gorm:"not null" json:"total_cents"`
	Currency        string      `gorm:"size:8;not null" json:"currency"`
	ItemCount       int         `gorm:"not null" json:"item_count"`
	ErrorMessage    string      `gorm:"size:512" json:"error_message,omitempty"`
	SubmittedAt     *time.Time  `json:"submitted_at,omitempty"`
	CompletedAt     *time.Time  `json:"completed_at,omitempty"`
	LastPolledAt    *time.Time  `json:"last_polled_at,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemPaid    ItemStatus = "paid"
	ItemFailed  ItemStatus = "failed"
)

type PayoutItem struct {
	ID             string     `gorm:"primaryKey;size:64;not null" json:"id"` // sender_item_id
	BatchID        string     `gorm:"size:64;index;not null" json:"batch_id"`
	AffiliateID    string     `gorm:"size:64;index;not null" json:"affiliate_id"`
	Receiver       string     `gorm:"size:255;not null" json:"receiver"`
	AmountCents    int64      `gorm:"not null" json:"amount_cents"`
	Currency       string     `gorm:"size:8;not null" json:"currency"`
	Status         ItemStatus `gorm:"size:16;not null" json:"status"`
	ExternalItemID string     `gorm:"size:64" json:"external_item_id,omitempty"`
	TransactionID  string     `gorm:"size:64" json:"transaction_id,omitempty"`
	ErrorCode      string     `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage   string     `gorm:"size:512" json:"error_message,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128;uniqueIndex;not null"`
	EventType   string `gorm:"size:64;index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}

// All lists every table, in migration order.
func All() []any {
	return []any{
		&Affiliate{},
		&ReferralAttribution{},
		&Commission{},
		&CommissionTransition{},
		&PayoutBatch{},
		&PayoutItem{},
		&WebhookEvent{},
	}
}
