package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"affiliate-payouts/internal/config"
	"affiliate-payouts/internal/model"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const payoutItemsPageSize = 1000

type PaypalClient interface {
	CreatePayoutBatch(ctx context.Context, req *model.PaypalPayoutRequest) (*model.PayoutSubmission, error)
	GetPayoutBatch(ctx context.Context, externalBatchID string) (*model.PayoutBatchResult, error)
	VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error
}

// APIError is a non-2xx PayPal response.
type APIError struct {
	StatusCode int
	Name       string
	Message    string
	DebugID    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paypal error %d %s: %s (debug_id=%s)", e.StatusCode, e.Name, e.Message, e.DebugID)
}

type paypalClientImpl struct {
	httpClient *http.Client
	baseApiURL string
	webhookID  string
}

func NewPaypalClient(paypalCfg *config.Paypal) PaypalClient {
	baseURL := strings.TrimRight(paypalCfg.BaseApiURL, "/")

	creds := &clientcredentials.Config{
		ClientID:     paypalCfg.ClientID,
		ClientSecret: paypalCfg.ClientSecret,
		TokenURL:     baseURL + "/v1/oauth2/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	// token requests use their own client so they get the same timeout
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{
		Timeout: paypalCfg.Timeout,
	})
	httpClient := creds.Client(tokenCtx)
	httpClient.Timeout = paypalCfg.Timeout

	return &paypalClientImpl{
		httpClient: httpClient,
		baseApiURL: baseURL,
		webhookID:  paypalCfg.WebhookID,
	}
}

func (c *paypalClientImpl) CreatePayoutBatch(ctx context.Context, payload *model.PaypalPayoutRequest) (*model.PayoutSubmission, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal req payload: %w", err)
	}

	var result model.PaypalPayoutBatch
	if err := c.do(ctx, http.MethodPost, c.baseApiURL+"/v1/payments/payouts", body, &result); err != nil {
		return nil, fmt.Errorf("create payout batch: %w", err)
	}

	if result.BatchHeader.PayoutBatchID == "" {
		return nil, fmt.Errorf("create payout batch: response has no payout_batch_id")
	}

	return &model.PayoutSubmission{
		ExternalBatchID: result.BatchHeader.PayoutBatchID,
		Outcome:         mapBatchStatus(result.BatchHeader.BatchStatus),
	}, nil
}

func (c *paypalClientImpl) GetPayoutBatch(ctx context.Context, externalBatchID string) (*model.PayoutBatchResult, error) {
	out := &model.PayoutBatchResult{ExternalBatchID: externalBatchID}

	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("page", fmt.Sprint(page))
		q.Set("page_size", fmt.Sprint(payoutItemsPageSize))

		endpoint := fmt.Sprintf("%s/v1/payments/payouts/%s?%s",
			c.baseApiURL,
			url.PathEscape(externalBatchID),
			q.Encode(),
		)

		var result model.PaypalPayoutBatch
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &result); err != nil {
			return nil, fmt.Errorf("get payout batch: %w", err)
		}

		out.Outcome = mapBatchStatus(result.BatchHeader.BatchStatus)
		for _, item := range result.Items {
			out.Items = append(out.Items, mapItem(item))
		}

		if len(result.Items) < payoutItemsPageSize {
			break
		}
	}

	out.PolledAt = time.Now()
	return out, nil
}

func (c *paypalClientImpl) VerifyWebhookSignature(ctx context.Context, headers http.Header, body []byte) error {
	if c.webhookID == "" {
		// local/dev setups without a registered webhook
		return nil
	}

	payload := map[string]interface{}{
		"auth_algo":         headers.Get("PAYPAL-AUTH-ALGO"),
		"cert_url":          headers.Get("PAYPAL-CERT-URL"),
		"transmission_id":   headers.Get("PAYPAL-TRANSMISSION-ID"),
		"transmission_sig":  headers.Get("PAYPAL-TRANSMISSION-SIG"),
		"transmission_time": headers.Get("PAYPAL-TRANSMISSION-TIME"),
		"webhook_id":        c.webhookID,
		"webhook_event":     json.RawMessage(body),
	}

	reqBody, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal verify payload: %w", err)
	}

	var res struct {
		VerificationStatus string `json:"verification_status"`
	}
	if err := c.do(ctx, http.MethodPost, c.baseApiURL+"/v1/notifications/verify-webhook-signature", reqBody, &res); err != nil {
		return fmt.Errorf("verify webhook signature: %w", err)
	}

	if res.VerificationStatus != "SUCCESS" {
		return model.ErrWebhookSignature
	}

	return nil
}

func (c *paypalClientImpl) do(ctx context.Context, method, endpoint string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope model.PaypalErrorResponse
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Name = envelope.Name
			apiErr.Message = envelope.Message
			apiErr.DebugID = envelope.DebugID
		}
		if apiErr.Message == "" {
			apiErr.Message = string(raw)
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode paypal response: %w", err)
	}

	return nil
}

func mapItem(item model.PaypalPayoutItem) model.PayoutItemResult {
	res := model.PayoutItemResult{
		SenderItemID:   item.PayoutItem.SenderItemID,
		ExternalItemID: item.PayoutItemID,
		Outcome:        mapItemStatus(item.TransactionStatus),
		TransactionID:  item.TransactionID,
	}

	if res.Outcome == model.OutcomeFailed {
		res.ErrorCode = strings.ToUpper(item.TransactionStatus)
		if item.Errors != nil {
			if item.Errors.Name != "" {
				res.ErrorCode = item.Errors.Name
			}
			res.ErrorMessage = item.Errors.Message
		}
	}

	return res
}

// mapItemStatus is the single place PayPal transaction_status strings are
// interpreted. Unknown values are treated as still in flight.
func mapItemStatus(status string) model.ItemOutcome {
	switch strings.ToUpper(status) {
	case "SUCCESS":
		return model.OutcomePaid
	case "FAILED", "BLOCKED", "RETURNED", "REFUNDED", "REVERSED", "DENIED":
		return model.OutcomeFailed
	default: // PENDING, UNCLAIMED, ONHOLD, NEW
		return model.OutcomePending
	}
}

func mapBatchStatus(status string) model.BatchOutcome {
	switch strings.ToUpper(status) {
	case "SUCCESS":
		return model.BatchOutcomeDone
	case "DENIED", "CANCELED":
		return model.BatchOutcomeRejected
	default: // PENDING, PROCESSING, NEW
		return model.BatchOutcomeInProgress
	}
}
