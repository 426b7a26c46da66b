package handlers

import (
	"github.com/charmverse/governance/internal/middleware"
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/pkg/response"
	"github.com/gin-gonic/gin"
)

type BountyHandler struct {
	service *services.BountyService
}

func NewBountyHandler(service *services.BountyService) *BountyHandler {
	return &BountyHandler{service: service}
}

// POST /api/spaces/:id/bounties
func (h *BountyHandler) Create(c *gin.Context) {
	var req services.CreateBountyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	bounty, err := h.service.Create(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, bounty)
}

// List returns the bounties of a space the caller can view
// GET /api/spaces/:id/bounties
func (h *BountyHandler) List(c *gin.Context) {
	bounties, err := h.service.ListBySpace(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bounties)
}

// GET /api/bounties/:id
func (h *BountyHandler) GetByID(c *gin.Context) {
	bounty, err := h.service.GetByID(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, bounty)
}

// DELETE /api/bounties/:id
func (h *BountyHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "deleted"})
}

// Permissions returns the caller's operation flags and the stored grants
// GET /api/bounties/:id/permissions
func (h *BountyHandler) Permissions(c *gin.Context) {
	access, err := h.service.Access(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, access)
}

// POST /api/bounties/:id/permissions
func (h *BountyHandler) Grant(c *gin.Context) {
	var req services.BountyPermissionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	grant, err := h.service.GrantPermission(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, grant)
}

// DELETE /api/bounties/:id/permissions/:permissionId
func (h *BountyHandler) Revoke(c *gin.Context) {
	if err := h.service.RevokePermission(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("permissionId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "deleted"})
}
