package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmverse/governance/internal/config"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/logger"
	"gorm.io/gorm"
)

const maxErrorBody = 512

// Deliverer performs delivery attempts.
type Deliverer struct {
	db              *gorm.DB
	client          *http.Client
	signatureHeader string
}

func NewDeliverer(db *gorm.DB, cfg *config.WebhookConfig) *Deliverer {
	header := cfg.SignatureHeader
	if header == "" {
		header = "X-Webhook-Signature"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Deliverer{
		db:              db,
		client:          &http.Client{Timeout: timeout},
		signatureHeader: header,
	}
}

// Process handles a TaskDeliver payload. A failed attempt returns an error so
// the queue may retry it.
func (d *Deliverer) Process(ctx context.Context, payload []byte) error {
	var task DeliveryTask
	if err := json.Unmarshal(payload, &task); err != nil {
		return fmt.Errorf("decode delivery task: %w", err)
	}
	_, err := d.Deliver(ctx, task.DeliveryID)
	return err
}

// Deliver posts a stored delivery to its subscription and records the attempt.
// Deliveries already delivered are left alone.
func (d *Deliverer) Deliver(ctx context.Context, deliveryID string) (*models.WebhookDelivery, error) {
	var delivery models.WebhookDelivery
	if err := d.db.WithContext(ctx).First(&delivery, "id = ?", deliveryID).Error; err != nil {
		return nil, fmt.Errorf("load delivery %s: %w", deliveryID, err)
	}
	if delivery.Status == models.DeliveryStatusDelivered {
		return &delivery, nil
	}

	var sub models.WebhookSubscription
	err := d.db.WithContext(ctx).First(&sub, "id = ?", delivery.SubscriptionID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// subscription removed; nothing left to retry
		return &delivery, d.record(ctx, &delivery, 0, errors.New("subscription deleted"), models.DeliveryStatusDiscarded)
	}
	if err != nil {
		return nil, err
	}

	code, sendErr := d.post(ctx, &sub, &delivery)
	status := models.DeliveryStatusDelivered
	if sendErr != nil {
		status = models.DeliveryStatusFailed
	}
	if err := d.record(ctx, &delivery, code, sendErr, status); err != nil {
		return &delivery, err
	}
	if sendErr != nil {
		logger.Warn().
			Str("delivery_id", delivery.ID).
			Str("url", sub.URL).
			Int("attempts", delivery.Attempts).
			Err(sendErr).
			Msg("[Webhook] Delivery failed")
		return &delivery, sendErr
	}
	logger.Debug().Str("delivery_id", delivery.ID).Int("status", code).Msg("[Webhook] Delivered")
	return &delivery, nil
}

func (d *Deliverer) post(ctx context.Context, sub *models.WebhookSubscription, delivery *models.WebhookDelivery) (int, error) {
	body := []byte(delivery.Payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "governance-webhooks/1.0")
	req.Header.Set("X-Webhook-Event", delivery.EventType)
	req.Header.Set("X-Webhook-Delivery", delivery.ID)
	if sub.Secret != "" {
		req.Header.Set(d.signatureHeader, "sha256="+Sign(sub.Secret, body))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// record stores the outcome of one attempt.
func (d *Deliverer) record(ctx context.Context, delivery *models.WebhookDelivery, code int, sendErr error, status string) error {
	delivery.Attempts++
	delivery.ResponseCode = code
	delivery.Status = status
	delivery.Error = ""
	if sendErr != nil {
		delivery.Error = sendErr.Error()
	}
	if status == models.DeliveryStatusDelivered {
		now := time.Now()
		delivery.DeliveredAt = &now
	}

	return d.db.WithContext(ctx).Model(&models.WebhookDelivery{}).
		Where("id = ?", delivery.ID).
		Updates(map[string]interface{}{
			"attempts":      delivery.Attempts,
			"response_code": delivery.ResponseCode,
			"status":        delivery.Status,
			"error":         delivery.Error,
			"delivered_at":  delivery.DeliveredAt,
		}).Error
}

// Sign returns the hex HMAC-SHA256 of body keyed by secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a "sha256=<hex>" signature header against body.
func Verify(secret string, body []byte, signature string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(strings.TrimPrefix(signature, "sha256=")), []byte(expected))
}
