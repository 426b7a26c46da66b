package handlers

import (
	"strconv"

	"github.com/charmverse/governance/internal/middleware"
	"github.com/charmverse/governance/internal/services/webhook"
	"github.com/charmverse/governance/pkg/response"
	"github.com/gin-gonic/gin"
)

// WebhookHandler manages outbound webhook subscriptions of a space.
type WebhookHandler struct {
	service *webhook.SubscriptionService
}

func NewWebhookHandler(service *webhook.SubscriptionService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// GET /api/spaces/:id/webhooks
func (h *WebhookHandler) List(c *gin.Context) {
	subs, err := h.service.List(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, subs)
}

// Create registers a subscription. The secret is only returned here.
// POST /api/spaces/:id/webhooks
func (h *WebhookHandler) Create(c *gin.Context) {
	var req webhook.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	sub, err := h.service.Create(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sub)
}

// DELETE /api/webhooks/:id
func (h *WebhookHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "deleted"})
}

// Test sends a ping synchronously and returns the delivery record
// POST /api/webhooks/:id/test
func (h *WebhookHandler) Test(c *gin.Context) {
	delivery, err := h.service.SendTest(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, delivery)
}

// GET /api/webhooks/:id/deliveries?limit=
func (h *WebhookHandler) Deliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	deliveries, err := h.service.Deliveries(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, deliveries)
}
