package model

import "time"

// PayPal Payouts wire types. Only the client package decodes these; the rest
// of the service works with the PayoutBatchResult tags below.

type Amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type SenderBatchHeader struct {
	SenderBatchID string `json:"sender_batch_id"`
	EmailSubject  string `json:"email_subject,omitempty"`
	EmailMessage  string `json:"email_message,omitempty"`
}

type PayoutRequestItem struct {
	RecipientType string `json:"recipient_type"`
	Amount        Amount `json:"amount"`
	Receiver      string `json:"receiver"`
	Note          string `json:"note,omitempty"`
	SenderItemID  string `json:"sender_item_id"`
}

type PaypalPayoutRequest struct {
	SenderBatchHeader SenderBatchHeader   `json:"sender_batch_header"`
	Items             []PayoutRequestItem `json:"items"`
}

type PaypalBatchHeader struct {
	PayoutBatchID     string            `json:"payout_batch_id"`
	BatchStatus       string            `json:"batch_status"`
	SenderBatchHeader SenderBatchHeader `json:"sender_batch_header"`
}

type PaypalItemError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type PaypalPayoutItem struct {
	PayoutItemID      string            `json:"payout_item_id"`
	TransactionID     string            `json:"transaction_id"`
	TransactionStatus string            `json:"transaction_status"`
	PayoutBatchID     string            `json:"payout_batch_id"`
	PayoutItem        PayoutRequestItem `json:"payout_item"`
	Errors            *PaypalItemError  `json:"errors,omitempty"`
}

type PaypalPayoutBatch struct {
	BatchHeader PaypalBatchHeader  `json:"batch_header"`
	Items       []PaypalPayoutItem `json:"items"`
}

type PaypalErrorResponse struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	DebugID string `json:"debug_id"`
}

type PaypalResource struct {
	PayoutBatchID string            `json:"payout_batch_id"`
	PayoutItemID  string            `json:"payout_item_id"`
	BatchHeader   PaypalBatchHeader `json:"batch_header"`
}

type PayPalWebhookEvent struct {
	ID           string         `json:"id"`
	EventType    string         `json:"event_type"`
	ResourceType string         `json:"resource_type"`
	CreateTime   string         `json:"create_time"`
	Resource     PaypalResource `json:"resource"`
}

// BatchID returns the PayPal payout_batch_id an event refers to.
func (e *PayPalWebhookEvent) BatchID() string {
	if e.Resource.PayoutBatchID != "" {
		return e.Resource.PayoutBatchID
	}
	return e.Resource.BatchHeader.PayoutBatchID
}

// ItemOutcome is the closed set an external item status is mapped to.
type ItemOutcome string

const (
	OutcomePending ItemOutcome = "pending"
	OutcomePaid    ItemOutcome = "paid"
	OutcomeFailed  ItemOutcome = "failed"
)

// BatchOutcome is the closed set an external batch status is mapped to.
type BatchOutcome string

const (
	BatchOutcomeInProgress BatchOutcome = "in_progress"
	BatchOutcomeDone       BatchOutcome = "done"
	BatchOutcomeRejected   BatchOutcome = "rejected" // denied or canceled as a whole
)

type PayoutSubmission struct {
	ExternalBatchID string
	Outcome         BatchOutcome
}

type PayoutItemResult struct {
	SenderItemID   string
	ExternalItemID string
	Outcome        ItemOutcome
	TransactionID  string
	ErrorCode      string
	ErrorMessage   string
}

type PayoutBatchResult struct {
	ExternalBatchID string
	Outcome         BatchOutcome
	Items           []PayoutItemResult
	PolledAt        time.Time
}
