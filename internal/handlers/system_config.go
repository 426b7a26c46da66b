package handlers

import (
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/pkg/response"
	"github.com/gin-gonic/gin"
)

type SystemConfigHandler struct {
	authService *services.AuthService
}

func NewSystemConfigHandler(authService *services.AuthService) *SystemConfigHandler {
	return &SystemConfigHandler{authService: authService}
}

// GET /api/system-config/auth-session
func (h *SystemConfigHandler) GetAuthSessionConfig(c *gin.Context) {
	response.Success(c, h.authService.GetSessionConfig(c.Request.Context()))
}

// PUT /api/system-config/auth-session
func (h *SystemConfigHandler) UpdateAuthSessionConfig(c *gin.Context) {
	var req services.SessionConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.authService.UpdateSessionConfig(c.Request.Context(), &req); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, h.authService.GetSessionConfig(c.Request.Context()))
}
