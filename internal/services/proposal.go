package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/logger"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ReviewerInput struct {
	UserID     string `json:"user_id"`
	RoleID     string `json:"role_id"`
	SystemRole string `json:"system_role"`
}

type EvaluationStepInput struct {
	Title        string               `json:"title"`
	Type         string               `json:"type" binding:"required"`
	Reviewers    []ReviewerInput      `json:"reviewers"`
	VoteSettings *domain.VoteSettings `json:"vote_settings"`
}

type CreateProposalRequest struct {
	Title       string                `json:"title" binding:"required"`
	Content     string                `json:"content"`
	Authors     []string              `json:"authors"`
	Evaluations []EvaluationStepInput `json:"evaluations"`
}

// ProposalService creates proposals and reads them as domain values.
type ProposalService struct {
	db     *gorm.DB
	roles  *SpaceRoleService
	votes  VoteCreator
	events EventPublisher
}

func NewProposalService(db *gorm.DB, roles *SpaceRoleService, votes VoteCreator, events EventPublisher) *ProposalService {
	return &ProposalService{db: db, roles: roles, votes: votes, events: events}
}

// Create stores the proposal page, its authors and its ordered evaluation steps.
// When the first step is a vote, the vote opens right away; if that fails the
// proposal is still returned and the close-expired-votes task opens it later.
func (s *ProposalService) Create(ctx context.Context, actorID, spaceID string, req *CreateProposalRequest) (*domain.Proposal, error) {
	if _, err := s.roles.RequireMember(ctx, actorID, spaceID, false); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, response.NewInvalidInput("proposal title is required")
	}
	if len(req.Evaluations) == 0 {
		return nil, response.NewInvalidInput("a proposal needs at least one evaluation step")
	}

	authors := uniqueStrings(append([]string{actorID}, req.Authors...))
	for _, a := range authors {
		m, err := s.roles.ResolveRole(ctx, a, spaceID)
		if err != nil {
			return nil, err
		}
		if !m.IsMember {
			return nil, response.NewInvalidInput("author %s is not a member of this space", a)
		}
	}

	evaluations := make([]models.ProposalEvaluation, 0, len(req.Evaluations))
	for i := range req.Evaluations {
		e, err := newEvaluation(i, &req.Evaluations[i])
		if err != nil {
			return nil, err
		}
		evaluations = append(evaluations, *e)
	}

	proposal := &models.Proposal{SpaceID: spaceID, Status: models.ProposalStatusPublished, CreatedBy: actorID}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		page := &models.Page{SpaceID: spaceID, Title: title, Type: "proposal", Content: req.Content, CreatedBy: actorID}
		if err := tx.Create(page).Error; err != nil {
			return err
		}
		proposal.PageID = page.ID
		if err := tx.Create(proposal).Error; err != nil {
			return err
		}
		for _, a := range authors {
			if err := tx.Create(&models.ProposalAuthor{ProposalID: proposal.ID, UserID: a}).Error; err != nil {
				return err
			}
		}
		for i := range evaluations {
			evaluations[i].ProposalID = proposal.ID
			if err := tx.Create(&evaluations[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, dbError(err, "proposal")
	}

	logger.Info().Str("proposal_id", proposal.ID).Int("steps", len(evaluations)).Msg("[Proposal] Created")

	p, err := loadProposal(ctx, s.db, proposal.ID)
	if err != nil {
		return nil, err
	}
	if first := domain.CurrentEvaluation(p.Evaluations); first != nil && first.NeedsVote() {
		if err := startVoteStep(ctx, s.db, s.votes, s.events, p, first, actorID); err != nil {
			logger.Warnf("[Proposal] Opening the first vote of %s failed, leaving it to reconciliation: %v", proposal.ID, err)
		}
		return loadProposal(ctx, s.db, proposal.ID)
	}
	return p, nil
}

func newEvaluation(index int, in *EvaluationStepInput) (*models.ProposalEvaluation, error) {
	t := domain.EvaluationType(in.Type)
	if !t.Valid() {
		return nil, response.NewInvalidInput("step %d: unknown evaluation type %q", index, in.Type)
	}

	e := &models.ProposalEvaluation{Index: index, Title: strings.TrimSpace(in.Title), Type: in.Type}
	if e.Title == "" {
		e.Title = strings.ReplaceAll(in.Type, "_", " ")
	}

	switch t {
	case domain.EvaluationVote:
		if in.VoteSettings == nil {
			return nil, response.NewInvalidInput("step %d: vote settings are required", index)
		}
		if err := in.VoteSettings.Validate(); err != nil {
			return nil, response.NewInvalidInput("step %d: %v", index, err)
		}
		data, err := json.Marshal(in.VoteSettings)
		if err != nil {
			return nil, err
		}
		e.VoteSettings = datatypes.JSON(data)
	case domain.EvaluationPassFail:
		if len(in.Reviewers) == 0 {
			return nil, response.NewInvalidInput("step %d: at least one reviewer is required", index)
		}
	case domain.EvaluationFeedback:
		if len(in.Reviewers) == 0 {
			in.Reviewers = []ReviewerInput{{SystemRole: models.SystemRoleAuthor}}
		}
	}

	for _, r := range in.Reviewers {
		reviewer, err := newReviewer(index, r)
		if err != nil {
			return nil, err
		}
		e.Reviewers = append(e.Reviewers, *reviewer)
	}
	return e, nil
}

func newReviewer(index int, in ReviewerInput) (*models.ProposalEvaluationReviewer, error) {
	r := &models.ProposalEvaluationReviewer{}
	set := 0
	if in.UserID != "" {
		set++
		r.UserID = &in.UserID
	}
	if in.RoleID != "" {
		set++
		r.RoleID = &in.RoleID
	}
	if in.SystemRole != "" {
		set++
		if in.SystemRole != models.SystemRoleSpaceMember && in.SystemRole != models.SystemRoleAuthor {
			return nil, response.NewInvalidInput("step %d: unknown system role %q", index, in.SystemRole)
		}
		r.SystemRole = &in.SystemRole
	}
	if set != 1 {
		return nil, response.NewInvalidInput("step %d: a reviewer needs exactly one of user, role or system role", index)
	}
	return r, nil
}

// GetByID returns a proposal of a space the caller belongs to.
func (s *ProposalService) GetByID(ctx context.Context, actorID, proposalID string) (*domain.Proposal, error) {
	p, err := loadProposal(ctx, s.db, proposalID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.RequireMember(ctx, actorID, p.SpaceID, false); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProposalService) ListBySpace(ctx context.Context, actorID, spaceID string) ([]domain.Proposal, error) {
	if _, err := s.roles.RequireMember(ctx, actorID, spaceID, false); err != nil {
		return nil, err
	}

	var rows []models.Proposal
	if err := proposalQuery(s.db.WithContext(ctx)).
		Where("space_id = ?", spaceID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err, "proposals")
	}

	out := make([]domain.Proposal, 0, len(rows))
	for i := range rows {
		out = append(out, toProposal(&rows[i]))
	}
	return out, nil
}

func proposalQuery(db *gorm.DB) *gorm.DB {
	return db.Preload("Page").
		Preload("Authors").
		Preload("Evaluations", func(db *gorm.DB) *gorm.DB { return db.Order("eval_index ASC") }).
		Preload("Evaluations.Reviewers")
}

func loadProposal(ctx context.Context, db *gorm.DB, proposalID string) (*domain.Proposal, error) {
	var row models.Proposal
	if err := proposalQuery(db.WithContext(ctx)).First(&row, "id = ?", proposalID).Error; err != nil {
		return nil, dbError(err, "proposal")
	}
	p := toProposal(&row)
	return &p, nil
}

func toProposal(row *models.Proposal) domain.Proposal {
	p := domain.Proposal{
		ID:          row.ID,
		SpaceID:     row.SpaceID,
		PageID:      row.PageID,
		Status:      row.Status,
		CreatedBy:   row.CreatedBy,
		Authors:     make([]string, 0, len(row.Authors)),
		Evaluations: make([]domain.Evaluation, 0, len(row.Evaluations)),
		CreatedAt:   row.CreatedAt,
	}
	if row.Page != nil {
		p.Title = row.Page.Title
	}
	for _, a := range row.Authors {
		p.Authors = append(p.Authors, a.UserID)
	}
	for i := range row.Evaluations {
		p.Evaluations = append(p.Evaluations, toEvaluation(&row.Evaluations[i]))
	}
	domain.SortEvaluations(p.Evaluations)
	if current := domain.CurrentEvaluation(p.Evaluations); current != nil {
		p.CurrentEvaluationID = current.ID
	}
	return p
}

func toEvaluation(row *models.ProposalEvaluation) domain.Evaluation {
	e := domain.Evaluation{
		ID:          row.ID,
		ProposalID:  row.ProposalID,
		Index:       row.Index,
		Title:       row.Title,
		Type:        domain.EvaluationType(row.Type),
		Result:      domain.EvaluationResult(row.Result),
		CompletedAt: row.CompletedAt,
	}
	if row.DecidedBy != nil {
		e.DecidedBy = *row.DecidedBy
	}
	if row.VoteID != nil {
		e.VoteID = *row.VoteID
	}
	if len(row.VoteSettings) > 0 && string(row.VoteSettings) != "null" {
		var settings domain.VoteSettings
		if err := json.Unmarshal(row.VoteSettings, &settings); err == nil {
			e.VoteSettings = &settings
		} else {
			logger.Warnf("[Proposal] Evaluation %s has unreadable vote settings: %v", row.ID, err)
		}
	}
	for _, r := range row.Reviewers {
		var reviewer domain.Reviewer
		if r.UserID != nil {
			reviewer.UserID = *r.UserID
		}
		if r.RoleID != nil {
			reviewer.RoleID = *r.RoleID
		}
		if r.SystemRole != nil {
			reviewer.SystemRole = *r.SystemRole
		}
		e.Reviewers = append(e.Reviewers, reviewer)
	}
	return e
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
