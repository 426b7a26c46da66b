package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmverse/governance/internal/middleware"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/pkg/logger"
	"github.com/charmverse/governance/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	sseKeepAlive       = 30 * time.Second
	sseMembershipCheck = 5 * time.Second
)

// SSEHandler streams domain events to browsers
type SSEHandler struct {
	hub   *services.EventHub
	roles *services.SpaceRoleService
	// membership of a space stream is checked again before an event once
	// this much time has passed, and on every keep-alive
	recheck time.Duration
}

func NewSSEHandler(hub *services.EventHub, roles *services.SpaceRoleService) *SSEHandler {
	return &SSEHandler{hub: hub, roles: roles, recheck: sseMembershipCheck}
}

// StreamEvents streams the events of one space, or of every space for
// system admins, until the client disconnects.
// GET /api/events?space_id=
func (h *SSEHandler) StreamEvents(c *gin.Context) {
	userID := middleware.GetUserID(c)
	spaceID := c.Query("space_id")
	if spaceID == "" {
		if middleware.GetRole(c) != models.UserRoleAdmin {
			response.BadRequest(c, "space_id is required")
			return
		}
	} else if _, err := h.roles.RequireMember(c.Request.Context(), userID, spaceID, false); err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()
	events := h.hub.Subscribe(clientID, spaceID)
	defer h.hub.Unsubscribe(clientID)

	logger.Info().Str("client_id", clientID).Str("space_id", spaceID).Int("total", h.hub.ClientCount()).Msg("SSE client connected")
	c.Writer.Flush()

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	lastCheck := time.Now()
	stillMember := func(force bool) bool {
		if spaceID == "" || (!force && time.Since(lastCheck) < h.recheck) {
			return true
		}
		lastCheck = time.Now()
		if _, err := h.roles.RequireMember(c.Request.Context(), userID, spaceID, false); err != nil {
			logger.Info().Str("client_id", clientID).Str("space_id", spaceID).Err(err).Msg("SSE client lost access")
			return false
		}
		return true
	}

	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-events:
			if !ok || !stillMember(false) {
				return false
			}
			data, err := json.Marshal(event)
			if err != nil {
				logger.Error().Err(err).Msg("SSE marshal error")
				return true
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", event.ID, event.Type, data)
			c.Writer.Flush()
			return true
		case <-ticker.C:
			if !stillMember(true) {
				return false
			}
			fmt.Fprint(w, ": keep-alive\n\n")
			c.Writer.Flush()
			return true
		case <-c.Request.Context().Done():
			logger.Info().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}
