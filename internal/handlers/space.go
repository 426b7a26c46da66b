package handlers

import (
	"github.com/charmverse/governance/internal/middleware"
	"github.com/charmverse/governance/internal/permissions"
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/pkg/response"
	"github.com/gin-gonic/gin"
)

// SpaceHandler serves spaces, their members and their custom roles.
type SpaceHandler struct {
	spaces  *services.SpaceService
	members *services.SpaceRoleService
	roles   *services.RoleService
}

func NewSpaceHandler(spaces *services.SpaceService, members *services.SpaceRoleService, roles *services.RoleService) *SpaceHandler {
	return &SpaceHandler{spaces: spaces, members: members, roles: roles}
}

type setAdminRequest struct {
	IsAdmin *bool `json:"is_admin" binding:"required"`
}

type assignRoleRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// POST /api/spaces
func (h *SpaceHandler) Create(c *gin.Context) {
	var req services.CreateSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	space, err := h.spaces.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, space)
}

// GET /api/spaces
func (h *SpaceHandler) List(c *gin.Context) {
	spaces, err := h.spaces.ListForUser(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, spaces)
}

// GET /api/spaces/:id
func (h *SpaceHandler) Get(c *gin.Context) {
	space, err := h.spaces.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, space)
}

// Role resolves the caller's membership. Non-members get a 200 with
// is_member false.
// GET /api/spaces/:id/role
func (h *SpaceHandler) Role(c *gin.Context) {
	m, err := h.members.ResolveRole(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"is_member":  m.IsMember,
		"is_admin":   m.IsAdmin,
		"role_ids":   m.RoleIDs,
		"operations": permissions.SpaceOperations(m.IsAdmin).Flags(permissions.Space.Universe()),
	})
}

// GET /api/spaces/:id/members
func (h *SpaceHandler) ListMembers(c *gin.Context) {
	rows, err := h.members.ListMembers(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, rows)
}

// POST /api/spaces/:id/members
func (h *SpaceHandler) AddMember(c *gin.Context) {
	var req services.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	row, err := h.members.AddMember(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, row)
}

// DELETE /api/spaces/:id/members/:userId
func (h *SpaceHandler) RemoveMember(c *gin.Context) {
	if err := h.members.RemoveMember(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "deleted"})
}

// PUT /api/spaces/:id/members/:userId/admin
func (h *SpaceHandler) SetAdmin(c *gin.Context) {
	var req setAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.members.SetAdmin(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("userId"), *req.IsAdmin); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"is_admin": *req.IsAdmin})
}

// GET /api/spaces/:id/roles
func (h *SpaceHandler) ListRoles(c *gin.Context) {
	roles, err := h.roles.List(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, roles)
}

// POST /api/spaces/:id/roles
func (h *SpaceHandler) CreateRole(c *gin.Context) {
	var req services.CreateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	role, err := h.roles.Create(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, role)
}

// DELETE /api/spaces/:id/roles/:roleId
func (h *SpaceHandler) DeleteRole(c *gin.Context) {
	if err := h.roles.Delete(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("roleId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "deleted"})
}

// POST /api/spaces/:id/roles/:roleId/members
func (h *SpaceHandler) AssignRole(c *gin.Context) {
	var req assignRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.roles.Assign(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("roleId"), req.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "assigned"})
}

// DELETE /api/spaces/:id/roles/:roleId/members/:userId
func (h *SpaceHandler) UnassignRole(c *gin.Context) {
	if err := h.roles.Unassign(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), c.Param("roleId"), c.Param("userId")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"message": "unassigned"})
}
