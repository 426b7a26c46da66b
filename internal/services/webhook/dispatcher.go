// Package webhook delivers space events to subscribed HTTP endpoints.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/pkg/logger"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TaskDeliver is the task type of one delivery attempt.
const TaskDeliver = "webhook:deliver"

// RetryBatchSize caps the failed deliveries re-queued per retry run.
const RetryBatchSize = 50

type DeliveryTask struct {
	DeliveryID string `json:"delivery_id"`
}

// Dispatcher fans events out to the subscriptions of their space.
type Dispatcher struct {
	db    *gorm.DB
	queue services.TaskQueue
}

func NewDispatcher(db *gorm.DB, queue services.TaskQueue) *Dispatcher {
	return &Dispatcher{db: db, queue: queue}
}

// Publish stores a pending delivery for every active subscription of the
// event's space that listens to the event type, and queues it.
func (d *Dispatcher) Publish(ctx context.Context, event domain.Event) error {
	if event.SpaceID == "" {
		return nil
	}

	var subs []models.WebhookSubscription
	if err := d.db.WithContext(ctx).
		Where("space_id = ? AND is_active = ?", event.SpaceID, true).
		Find(&subs).Error; err != nil {
		return err
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	var errs []error
	for _, sub := range subs {
		if !Subscribes(sub.Events, event.Type) {
			continue
		}
		delivery, err := d.createDelivery(ctx, &sub, event, payload)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := d.enqueue(ctx, delivery.ID); err != nil {
			logger.Warnf("[Webhook] Failed to queue delivery %s: %v", delivery.ID, err)
			errs = append(errs, err, d.markUnqueued(ctx, delivery.ID, err))
		}
	}
	return errors.Join(errs...)
}

// markUnqueued hands a delivery that never reached the queue to RetryFailed.
func (d *Dispatcher) markUnqueued(ctx context.Context, deliveryID string, cause error) error {
	return d.db.WithContext(ctx).Model(&models.WebhookDelivery{}).
		Where("id = ? AND status = ?", deliveryID, models.DeliveryStatusPending).
		Updates(map[string]interface{}{
			"status": models.DeliveryStatusFailed,
			"error":  "queue: " + cause.Error(),
		}).Error
}

func (d *Dispatcher) createDelivery(ctx context.Context, sub *models.WebhookSubscription, event domain.Event, payload []byte) (*models.WebhookDelivery, error) {
	delivery := &models.WebhookDelivery{
		SubscriptionID: sub.ID,
		EventID:        event.ID,
		EventType:      event.Type,
		Payload:        datatypes.JSON(payload),
		Status:         models.DeliveryStatusPending,
	}
	if err := d.db.WithContext(ctx).Create(delivery).Error; err != nil {
		return nil, err
	}
	return delivery, nil
}

func (d *Dispatcher) enqueue(ctx context.Context, deliveryID string) error {
	task, err := services.NewJSONTask(TaskDeliver, DeliveryTask{DeliveryID: deliveryID})
	if err != nil {
		return err
	}
	return d.queue.Enqueue(ctx, task)
}

// RetryFailed re-queues failed deliveries that still have attempts left.
func (d *Dispatcher) RetryFailed(ctx context.Context, maxAttempts int) (int, error) {
	var failed []models.WebhookDelivery
	if err := d.db.WithContext(ctx).
		Where("status = ? AND attempts < ?", models.DeliveryStatusFailed, maxAttempts).
		Order("created_at ASC").
		Limit(RetryBatchSize).
		Find(&failed).Error; err != nil {
		return 0, err
	}

	queued := 0
	var errs []error
	for _, delivery := range failed {
		result := d.db.WithContext(ctx).Model(&models.WebhookDelivery{}).
			Where("id = ? AND status = ?", delivery.ID, models.DeliveryStatusFailed).
			Update("status", models.DeliveryStatusPending)
		if result.Error != nil {
			return queued, errors.Join(append(errs, result.Error)...)
		}
		if result.RowsAffected == 0 {
			continue
		}
		if err := d.enqueue(ctx, delivery.ID); err != nil {
			logger.Warnf("[Webhook] Failed to re-queue delivery %s: %v", delivery.ID, err)
			errs = append(errs, err, d.markUnqueued(ctx, delivery.ID, err))
			continue
		}
		queued++
	}
	if queued > 0 {
		logger.Infof("[Webhook] Re-queued %d failed deliveries", queued)
	}
	return queued, errors.Join(errs...)
}

// RetryFailedTask periodically re-queues failed deliveries.
func RetryFailedTask(spec string, d *Dispatcher, maxAttempts int) services.ScheduledTask {
	return services.ScheduledTask{
		Name: services.TaskRetryFailedWebhook,
		Spec: spec,
		Run: func(ctx context.Context) error {
			_, err := d.RetryFailed(ctx, maxAttempts)
			return err
		},
	}
}

// Subscribes reports whether a comma separated event list covers eventType.
// Pings reach every subscription.
func Subscribes(events, eventType string) bool {
	if eventType == domain.EventPing {
		return true
	}
	for _, e := range strings.Split(events, ",") {
		e = strings.TrimSpace(e)
		if e == "*" || e == eventType {
			return true
		}
	}
	return false
}
