package handlers

import (
	"github.com/charmverse/governance/internal/permissions"
	"github.com/charmverse/governance/pkg/response"
	"github.com/gin-gonic/gin"
)

// PermissionHandler exposes the static level to operation tables.
type PermissionHandler struct{}

func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// ListLevels returns every level of a resource type
// GET /api/permissions/:resource/levels
func (h *PermissionHandler) ListLevels(c *gin.Context) {
	mapping, err := permissions.ForResource(c.Param("resource"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"resource": mapping.Resource(),
		"levels":   mapping.Levels(),
		"universe": mapping.Universe(),
	})
}

// GetLevel returns the operations a level grants
// GET /api/permissions/:resource/levels/:level
func (h *PermissionHandler) GetLevel(c *gin.Context) {
	mapping, err := permissions.ForResource(c.Param("resource"))
	if err != nil {
		response.Error(c, err)
		return
	}
	ops, err := mapping.Operations(permissions.Level(c.Param("level")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{
		"resource":   mapping.Resource(),
		"level":      c.Param("level"),
		"operations": ops,
	})
}
