package webhook

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

type CreateSubscriptionRequest struct {
	URL    string   `json:"url" binding:"required"`
	Secret string   `json:"secret"`
	Events []string `json:"events"`
}

// CreatedSubscription is returned once on creation; it is the only time the
// secret leaves the server.
type CreatedSubscription struct {
	*models.WebhookSubscription
	Secret string `json:"secret"`
}

// SubscriptionService lets space admins manage outbound webhooks.
type SubscriptionService struct {
	db         *gorm.DB
	roles      *services.SpaceRoleService
	dispatcher *Dispatcher
	deliverer  *Deliverer
}

func NewSubscriptionService(db *gorm.DB, roles *services.SpaceRoleService, dispatcher *Dispatcher, deliverer *Deliverer) *SubscriptionService {
	return &SubscriptionService{db: db, roles: roles, dispatcher: dispatcher, deliverer: deliverer}
}

func (s *SubscriptionService) Create(ctx context.Context, actorID, spaceID string, req *CreateSubscriptionRequest) (*CreatedSubscription, error) {
	if _, err := s.roles.RequireMember(ctx, actorID, spaceID, true); err != nil {
		return nil, err
	}

	target := strings.TrimSpace(req.URL)
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, response.NewInvalidInput("webhook url must be an absolute http or https url")
	}

	events := "*"
	if len(req.Events) > 0 {
		for _, e := range req.Events {
			if e != "*" && !domain.KnownEventType(e) {
				return nil, response.NewInvalidInput("unknown event type: %s", e)
			}
		}
		events = strings.Join(req.Events, ",")
	}

	secret := req.Secret
	if secret == "" {
		if secret, err = generateSecret(); err != nil {
			return nil, err
		}
	}

	sub := &models.WebhookSubscription{
		SpaceID:   spaceID,
		URL:       target,
		Secret:    secret,
		Events:    events,
		IsActive:  true,
		CreatedBy: actorID,
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return nil, err
	}
	return &CreatedSubscription{WebhookSubscription: sub, Secret: secret}, nil
}

func (s *SubscriptionService) List(ctx context.Context, actorID, spaceID string) ([]models.WebhookSubscription, error) {
	if _, err := s.roles.RequireMember(ctx, actorID, spaceID, true); err != nil {
		return nil, err
	}
	var subs []models.WebhookSubscription
	if err := s.db.WithContext(ctx).Where("space_id = ?", spaceID).Order("created_at DESC").Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (s *SubscriptionService) Delete(ctx context.Context, actorID, id string) error {
	sub, err := s.getAsAdmin(ctx, actorID, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(sub).Error
}

// Deliveries lists the most recent delivery attempts of a subscription.
func (s *SubscriptionService) Deliveries(ctx context.Context, actorID, id string, limit int) ([]models.WebhookDelivery, error) {
	if _, err := s.getAsAdmin(ctx, actorID, id); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var deliveries []models.WebhookDelivery
	if err := s.db.WithContext(ctx).
		Where("subscription_id = ?", id).
		Order("created_at DESC").
		Limit(limit).
		Find(&deliveries).Error; err != nil {
		return nil, err
	}
	return deliveries, nil
}

// SendTest delivers a ping right away and returns the recorded attempt.
// An unreachable endpoint is reported through the delivery status.
func (s *SubscriptionService) SendTest(ctx context.Context, actorID, id string) (*models.WebhookDelivery, error) {
	sub, err := s.getAsAdmin(ctx, actorID, id)
	if err != nil {
		return nil, err
	}

	event := domain.NewEvent(domain.EventPing, sub.SpaceID, map[string]interface{}{
		"subscription_id": sub.ID,
	})
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	delivery, err := s.dispatcher.createDelivery(ctx, sub, event, payload)
	if err != nil {
		return nil, err
	}
	result, err := s.deliverer.Deliver(ctx, delivery.ID)
	if result != nil {
		return result, nil
	}
	return nil, err
}

func (s *SubscriptionService) getAsAdmin(ctx context.Context, actorID, id string) (*models.WebhookSubscription, error) {
	var sub models.WebhookSubscription
	if err := s.db.WithContext(ctx).First(&sub, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewNotFound("webhook not found")
		}
		return nil, err
	}
	if _, err := s.roles.RequireMember(ctx, actorID, sub.SpaceID, true); err != nil {
		return nil, err
	}
	return &sub, nil
}

func generateSecret() (string, error) {
	b := make([]byte, 24)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
