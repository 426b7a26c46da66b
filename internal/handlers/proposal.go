package handlers

import (
	"github.com/charmverse/governance/internal/middleware"
	"github.com/charmverse/governance/internal/services"
	"github.com/charmverse/governance/pkg/response"
	"github.com/gin-gonic/gin"
)

// ProposalHandler serves proposals and the results of their evaluation steps.
type ProposalHandler struct {
	proposals   *services.ProposalService
	evaluations *services.EvaluationService
}

func NewProposalHandler(proposals *services.ProposalService, evaluations *services.EvaluationService) *ProposalHandler {
	return &ProposalHandler{proposals: proposals, evaluations: evaluations}
}

// POST /api/spaces/:id/proposals
func (h *ProposalHandler) Create(c *gin.Context) {
	var req services.CreateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	proposal, err := h.proposals.Create(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, proposal)
}

// GET /api/spaces/:id/proposals
func (h *ProposalHandler) List(c *gin.Context) {
	proposals, err := h.proposals.ListBySpace(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, proposals)
}

// GET /api/proposals/:id
func (h *ProposalHandler) GetByID(c *gin.Context) {
	proposal, err := h.proposals.GetByID(c.Request.Context(), middleware.GetUserID(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, proposal)
}

// SubmitResult moves an evaluation step to pass or fail
// PUT /api/proposals/evaluations/:id/result
func (h *ProposalHandler) SubmitResult(c *gin.Context) {
	var req services.SubmitEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.EvaluationID = c.Param("id")
	req.DecidedBy = middleware.GetUserID(c)

	proposal, err := h.evaluations.SubmitResult(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, proposal)
}
