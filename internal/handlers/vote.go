package handlers

import (
	"github.com/charmverse/governance/internal/middleware"
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/pkg/response"
	"github.com/gin-gonic/gin"
)

type VoteHandler struct {
	service *services.VoteService
}

func NewVoteHandler(service *services.VoteService) *VoteHandler {
	return &VoteHandler{service: service}
}

// POST /api/votes
func (h *VoteHandler) Create(c *gin.Context) {
	var req services.CreateVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	vote, err := h.service.Create(c.Request.Context(), middleware.GetUserID(c), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, vote)
}

// GET /api/votes/:id
func (h *VoteHandler) Get(c *gin.Context) {
	vote, err := h.service.Get(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, vote)
}

// GET /api/pages/:id/votes
func (h *VoteHandler) ListByPage(c *gin.Context) {
	votes, err := h.service.ListByPage(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, votes)
}

// POST /api/votes/:id/cast
func (h *VoteHandler) Cast(c *gin.Context) {
	var req services.CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	vote, err := h.service.Cast(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req.Choices)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, vote)
}

// POST /api/votes/:id/cancel
func (h *VoteHandler) Cancel(c *gin.Context) {
	vote, err := h.service.Cancel(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, vote)
}
