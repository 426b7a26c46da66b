package services

import (
	"context"
	"errors"
	"time"

	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/logger"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

// VoteCreator opens the vote of a vote evaluation.
type VoteCreator interface {
	CreateForEvaluation(ctx context.Context, req *EvaluationVoteRequest) (*domain.Vote, error)
}

type EvaluationVoteRequest struct {
	SpaceID   string
	PageID    string
	Title     string
	CreatedBy string
	Settings  domain.VoteSettings
}

// EvaluationNotifier is told about every completed evaluation. Its errors are
// logged and never fail the evaluation.
type EvaluationNotifier interface {
	NotifyEvaluationCompleted(ctx context.Context, proposal *domain.Proposal, evaluation *domain.Evaluation) error
}

type SubmitEvaluationRequest struct {
	EvaluationID string                  `json:"-"`
	Result       domain.EvaluationResult `json:"result" binding:"required"`
	DecidedBy    string                  `json:"-"`
	System       bool                    `json:"-"` // automated callers skip reviewer checks
}

// EvaluationService moves proposal evaluations from pending to pass or fail.
type EvaluationService struct {
	db       *gorm.DB
	roles    *SpaceRoleService
	votes    VoteCreator
	events   EventPublisher
	notifier EvaluationNotifier
}

func NewEvaluationService(db *gorm.DB, roles *SpaceRoleService, votes VoteCreator, events EventPublisher, notifier EvaluationNotifier) *EvaluationService {
	return &EvaluationService{db: db, roles: roles, votes: votes, events: events, notifier: notifier}
}

// SubmitResult records the result of the proposal's current evaluation.
// Callers are authorized before anything about the step is revealed. The
// stored result never changes once completed: repeating the same result is a
// no-op and a different one is rejected as duplicate data. A pass opens the
// vote of the next step when that step is a vote.
func (s *EvaluationService) SubmitResult(ctx context.Context, req *SubmitEvaluationRequest) (*domain.Proposal, error) {
	if !req.Result.Valid() {
		return nil, response.NewInvalidInput("result must be pass or fail")
	}

	var row models.ProposalEvaluation
	if err := s.db.WithContext(ctx).Select("id", "proposal_id").First(&row, "id = ?", req.EvaluationID).Error; err != nil {
		return nil, dbError(err, "evaluation")
	}
	p, err := loadProposal(ctx, s.db, row.ProposalID)
	if err != nil {
		return nil, err
	}
	eval := findEvaluation(p, req.EvaluationID)
	if eval == nil {
		return nil, response.NewNotFound("evaluation not found")
	}

	if !req.System {
		if err := s.authorize(ctx, p, eval, req); err != nil {
			return nil, err
		}
	}

	if eval.Completed() {
		if eval.Result != req.Result {
			return nil, response.NewDuplicateData("evaluation already completed with result %s", eval.Result)
		}
		if eval.Result == domain.ResultPass {
			// a previous run may have stopped before opening the next vote
			if err := s.openNextVote(ctx, p, eval, req.DecidedBy); err != nil {
				return nil, err
			}
			return loadProposal(ctx, s.db, p.ID)
		}
		return p, nil
	}

	if current := domain.CurrentEvaluation(p.Evaluations); current == nil || current.ID != eval.ID {
		return nil, response.NewInvalidInput("evaluation is not the current step of the proposal")
	}

	if err := s.complete(ctx, p, eval, req); err != nil {
		return nil, err
	}

	updated, err := loadProposal(ctx, s.db, p.ID)
	if err != nil {
		return nil, err
	}
	eval = findEvaluation(updated, req.EvaluationID)

	logger.Info().
		Str("proposal_id", updated.ID).
		Str("evaluation_id", eval.ID).
		Str("result", string(eval.Result)).
		Bool("system", req.System).
		Msg("[Evaluation] Result recorded")

	next := domain.NextEvaluation(updated.Evaluations, eval.ID)
	data := map[string]interface{}{
		"proposal_id":   updated.ID,
		"evaluation_id": eval.ID,
		"result":        eval.Result,
		"status":        updated.Status,
	}
	if next != nil && eval.Result == domain.ResultPass {
		data["next_evaluation_id"] = next.ID
	}
	if err := s.events.Publish(ctx, domain.NewEvent(domain.EventProposalStatusChanged, updated.SpaceID, data)); err != nil {
		return nil, err
	}

	if eval.Result == domain.ResultPass {
		if err := s.openNextVote(ctx, updated, eval, req.DecidedBy); err != nil {
			return nil, err
		}
		if updated, err = loadProposal(ctx, s.db, p.ID); err != nil {
			return nil, err
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyEvaluationCompleted(ctx, updated, eval); err != nil {
			logger.Warnf("[Evaluation] Notification for %s failed: %v", eval.ID, err)
		}
	}
	return updated, nil
}

func (s *EvaluationService) authorize(ctx context.Context, p *domain.Proposal, eval *domain.Evaluation, req *SubmitEvaluationRequest) error {
	switch eval.Type {
	case domain.EvaluationVote:
		return response.NewInvalidInput("vote evaluations are decided by their vote")
	case domain.EvaluationFeedback:
		if req.Result == domain.ResultFail {
			return response.NewInvalidInput("feedback steps can only be passed")
		}
	}

	member, err := s.roles.RequireMember(ctx, req.DecidedBy, p.SpaceID, false)
	if err != nil {
		return err
	}
	if member.IsAdmin {
		return nil
	}
	for _, r := range eval.Reviewers {
		switch {
		case r.UserID != "" && r.UserID == req.DecidedBy:
			return nil
		case r.RoleID != "" && member.HasRole(r.RoleID):
			return nil
		case r.SystemRole == models.SystemRoleSpaceMember:
			return nil
		case r.SystemRole == models.SystemRoleAuthor && p.HasAuthor(req.DecidedBy):
			return nil
		}
	}
	return response.NewInsecureOperation("you are not a reviewer of this evaluation")
}

func (s *EvaluationService) complete(ctx context.Context, p *domain.Proposal, eval *domain.Evaluation, req *SubmitEvaluationRequest) error {
	now := time.Now()
	updates := map[string]interface{}{
		"result":       string(req.Result),
		"completed_at": now,
	}
	if req.DecidedBy != "" {
		updates["decided_by"] = req.DecidedBy
	}

	status := ""
	switch {
	case req.Result == domain.ResultFail:
		status = models.ProposalStatusEvaluationFailed
	case domain.NextEvaluation(p.Evaluations, eval.ID) == nil:
		status = models.ProposalStatusEvaluationPassed
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.ProposalEvaluation{}).
			Where("id = ? AND completed_at IS NULL", eval.ID).
			Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return response.NewDuplicateData("evaluation was completed concurrently")
		}
		if status != "" {
			if err := tx.Model(&models.Proposal{}).Where("id = ?", p.ID).Update("status", status).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *EvaluationService) openNextVote(ctx context.Context, p *domain.Proposal, eval *domain.Evaluation, actorID string) error {
	next := domain.NextEvaluation(p.Evaluations, eval.ID)
	if next == nil || !next.NeedsVote() {
		return nil
	}
	if actorID == "" {
		actorID = p.CreatedBy
	}
	return startVoteStep(ctx, s.db, s.votes, s.events, p, next, actorID)
}

// HandleVoteClosed completes the evaluation a closed vote belongs to.
func (s *EvaluationService) HandleVoteClosed(ctx context.Context, vote *domain.Vote) error {
	var row models.ProposalEvaluation
	err := s.db.WithContext(ctx).Select("id").Where("vote_id = ?", vote.ID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return dbError(err, "evaluation")
	}

	return s.completeVoteStep(ctx, row.ID, vote.Status)
}

func (s *EvaluationService) completeVoteStep(ctx context.Context, evaluationID string, status domain.VoteStatus) error {
	result := domain.ResultFail
	switch status {
	case domain.VotePassed:
		result = domain.ResultPass
	case domain.VoteRejected:
	default:
		return nil
	}

	_, err := s.SubmitResult(ctx, &SubmitEvaluationRequest{EvaluationID: evaluationID, Result: result, System: true})
	return err
}

type closedVoteStep struct {
	ID         string
	VoteStatus string
}

// Reconcile finishes vote steps left behind by a failed close or a failed
// vote opening: pending steps whose vote already closed are completed, and
// current vote steps without a vote get one. It returns the number of
// repaired steps.
func (s *EvaluationService) Reconcile(ctx context.Context) (int, error) {
	var closed []closedVoteStep
	if err := s.db.WithContext(ctx).Table("proposal_evaluations").
		Select("proposal_evaluations.id, votes.status AS vote_status").
		Joins("JOIN votes ON votes.id = proposal_evaluations.vote_id AND votes.deleted_at IS NULL").
		Where("proposal_evaluations.completed_at IS NULL AND votes.status IN ?",
			[]string{models.VoteStatusPassed, models.VoteStatusRejected}).
		Scan(&closed).Error; err != nil {
		return 0, dbError(err, "evaluations")
	}

	repaired := 0
	var errs []error
	for _, c := range closed {
		if err := s.completeVoteStep(ctx, c.ID, domain.VoteStatus(c.VoteStatus)); err != nil {
			logger.Warnf("[Evaluation] Completing evaluation %s failed: %v", c.ID, err)
			errs = append(errs, err)
			continue
		}
		repaired++
	}

	var unopened []models.ProposalEvaluation
	if err := s.db.WithContext(ctx).Model(&models.ProposalEvaluation{}).
		Select("proposal_evaluations.id", "proposal_evaluations.proposal_id").
		Joins("JOIN proposals ON proposals.id = proposal_evaluations.proposal_id AND proposals.deleted_at IS NULL").
		Where("proposal_evaluations.type = ? AND proposal_evaluations.vote_id IS NULL AND proposal_evaluations.completed_at IS NULL AND proposals.status = ?",
			models.EvaluationTypeVote, models.ProposalStatusPublished).
		Find(&unopened).Error; err != nil {
		return repaired, errors.Join(append(errs, dbError(err, "evaluations"))...)
	}

	for _, row := range unopened {
		p, err := loadProposal(ctx, s.db, row.ProposalID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		current := domain.CurrentEvaluation(p.Evaluations)
		if current == nil || current.ID != row.ID {
			continue
		}
		if err := startVoteStep(ctx, s.db, s.votes, s.events, p, current, p.CreatedBy); err != nil {
			logger.Warnf("[Evaluation] Opening vote for evaluation %s failed: %v", row.ID, err)
			errs = append(errs, err)
			if current.VoteID == "" {
				continue
			}
		}
		repaired++
	}

	if repaired > 0 {
		logger.Infof("[Evaluation] Reconciled %d vote steps", repaired)
	}
	return repaired, errors.Join(errs...)
}

// startVoteStep opens the vote of a vote evaluation and links it.
func startVoteStep(ctx context.Context, db *gorm.DB, votes VoteCreator, events EventPublisher, p *domain.Proposal, eval *domain.Evaluation, actorID string) error {
	vote, err := votes.CreateForEvaluation(ctx, &EvaluationVoteRequest{
		SpaceID:   p.SpaceID,
		PageID:    p.PageID,
		Title:     eval.Title,
		CreatedBy: actorID,
		Settings:  *eval.VoteSettings,
	})
	if err != nil {
		return err
	}

	result := db.WithContext(ctx).Model(&models.ProposalEvaluation{}).
		Where("id = ? AND vote_id IS NULL", eval.ID).
		Update("vote_id", vote.ID)
	if result.Error != nil {
		return dbError(result.Error, "evaluation")
	}
	if result.RowsAffected == 0 {
		logger.Warnf("[Evaluation] Evaluation %s already has a vote, dropping vote %s", eval.ID, vote.ID)
		return db.WithContext(ctx).Select("Options").Delete(&models.Vote{ID: vote.ID}).Error
	}
	eval.VoteID = vote.ID

	logger.Info().Str("evaluation_id", eval.ID).Str("vote_id", vote.ID).Msg("[Evaluation] Vote opened")

	return events.Publish(ctx, domain.NewEvent(domain.EventVoteCreated, p.SpaceID, map[string]interface{}{
		"vote_id":       vote.ID,
		"proposal_id":   p.ID,
		"evaluation_id": eval.ID,
		"deadline":      vote.Deadline,
	}))
}

func findEvaluation(p *domain.Proposal, id string) *domain.Evaluation {
	for i := range p.Evaluations {
		if p.Evaluations[i].ID == id {
			return &p.Evaluations[i]
		}
	}
	return nil
}
