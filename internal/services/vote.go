package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/logger"
	"github.com/charmverse/governance/pkg/response"
	"gorm.io/gorm"
)

type CreateVoteRequest struct {
	SpaceID     string          `json:"space_id" binding:"required"`
	PageID      string          `json:"page_id"`
	PostID      string          `json:"post_id"`
	Title       string          `json:"title" binding:"required"`
	Description string          `json:"description"`
	Type        domain.VoteType `json:"type"`
	Threshold   int             `json:"threshold"`
	MaxChoices  int             `json:"max_choices"`
	Options     []string        `json:"options"`
	Deadline    time.Time       `json:"deadline" binding:"required"`
}

type CastVoteRequest struct {
	Choices []string `json:"choices" binding:"required"`
}

// VoteService manages votes, ballots and vote closing.
type VoteService struct {
	db      *gorm.DB
	roles   *SpaceRoleService
	events  EventPublisher
	onClose func(ctx context.Context, vote *domain.Vote) error
}

func NewVoteService(db *gorm.DB, roles *SpaceRoleService, events EventPublisher) *VoteService {
	return &VoteService{db: db, roles: roles, events: events}
}

// SetOnClose sets the hook run after a vote closes on its deadline
func (s *VoteService) SetOnClose(fn func(ctx context.Context, vote *domain.Vote) error) {
	s.onClose = fn
}

// Create opens an inline vote on a page or forum post.
func (s *VoteService) Create(ctx context.Context, actorID string, req *CreateVoteRequest) (*domain.Vote, error) {
	if _, err := s.roles.RequireMember(ctx, actorID, req.SpaceID, false); err != nil {
		return nil, err
	}
	if (req.PageID == "") == (req.PostID == "") {
		return nil, response.NewInvalidInput("a vote belongs to exactly one page or post")
	}
	if req.PageID != "" {
		var page models.Page
		if err := s.db.WithContext(ctx).Select("id", "space_id").First(&page, "id = ?", req.PageID).Error; err != nil {
			return nil, dbError(err, "page")
		}
		if page.SpaceID != req.SpaceID {
			return nil, response.NewInvalidInput("page does not belong to this space")
		}
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, response.NewInvalidInput("vote title is required")
	}
	if !req.Deadline.After(time.Now()) {
		return nil, response.NewInvalidInput("deadline must be in the future")
	}

	settings := domain.VoteSettings{
		DurationDays: 1,
		Threshold:    req.Threshold,
		Type:         req.Type,
		Options:      req.Options,
		MaxChoices:   req.MaxChoices,
	}
	if err := settings.Validate(); err != nil {
		return nil, response.NewInvalidInput("%v", err)
	}

	vote := &models.Vote{
		SpaceID:     req.SpaceID,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Context:     models.VoteContextInline,
		Deadline:    req.Deadline,
		CreatedBy:   actorID,
	}
	if req.PageID != "" {
		vote.PageID = &req.PageID
	} else {
		vote.PostID = &req.PostID
	}
	return s.insert(ctx, vote, settings)
}

// CreateForEvaluation opens the vote of a proposal step.
func (s *VoteService) CreateForEvaluation(ctx context.Context, req *EvaluationVoteRequest) (*domain.Vote, error) {
	settings := req.Settings
	if err := settings.Validate(); err != nil {
		return nil, response.NewInvalidInput("%v", err)
	}

	pageID := req.PageID
	vote := &models.Vote{
		SpaceID:   req.SpaceID,
		PageID:    &pageID,
		Title:     req.Title,
		Context:   models.VoteContextProposal,
		Deadline:  time.Now().Add(time.Duration(settings.DurationDays) * 24 * time.Hour),
		CreatedBy: req.CreatedBy,
	}
	return s.insert(ctx, vote, settings)
}

func (s *VoteService) insert(ctx context.Context, vote *models.Vote, settings domain.VoteSettings) (*domain.Vote, error) {
	vote.Type = string(settings.Type)
	vote.Threshold = settings.Threshold
	vote.MaxChoices = settings.MaxChoices
	vote.Status = models.VoteStatusInProgress
	for i, name := range settings.Options {
		vote.Options = append(vote.Options, models.VoteOption{Name: name, Position: i})
	}

	if err := s.db.WithContext(ctx).Create(vote).Error; err != nil {
		return nil, dbError(err, "vote")
	}
	logger.Info().Str("vote_id", vote.ID).Str("context", vote.Context).Msg("[Vote] Created")
	return s.toVote(ctx, vote)
}

// Get returns a vote with its current tally.
func (s *VoteService) Get(ctx context.Context, actorID, voteID string) (*domain.Vote, error) {
	vote, err := s.load(ctx, voteID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.RequireMember(ctx, actorID, vote.SpaceID, false); err != nil {
		return nil, err
	}
	return s.toVote(ctx, vote)
}

func (s *VoteService) ListByPage(ctx context.Context, actorID, pageID string) ([]domain.Vote, error) {
	var page models.Page
	if err := s.db.WithContext(ctx).Select("id", "space_id").First(&page, "id = ?", pageID).Error; err != nil {
		return nil, dbError(err, "page")
	}
	if _, err := s.roles.RequireMember(ctx, actorID, page.SpaceID, false); err != nil {
		return nil, err
	}

	var rows []models.Vote
	if err := s.db.WithContext(ctx).Preload("Options", orderByPosition).
		Where("page_id = ?", pageID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, dbError(err, "votes")
	}

	out := make([]domain.Vote, 0, len(rows))
	for i := range rows {
		v, err := s.toVote(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

// Cast records the caller's ballot, replacing any earlier one.
func (s *VoteService) Cast(ctx context.Context, actorID, voteID string, choices []string) (*domain.Vote, error) {
	row, err := s.load(ctx, voteID)
	if err != nil {
		return nil, err
	}
	if _, err := s.roles.RequireMember(ctx, actorID, row.SpaceID, false); err != nil {
		return nil, err
	}
	vote, err := s.toVote(ctx, row)
	if err != nil {
		return nil, err
	}
	if !vote.IsOpen(time.Now()) {
		return nil, response.NewInvalidInput("vote is closed")
	}

	choices = uniqueStrings(choices)
	if len(choices) == 0 {
		return nil, response.NewInvalidInput("at least one choice is required")
	}
	if vote.Type != domain.VoteMultiChoice && len(choices) != 1 {
		return nil, response.NewInvalidInput("this vote takes exactly one choice")
	}
	if vote.Type == domain.VoteMultiChoice && len(choices) > vote.MaxChoices {
		return nil, response.NewInvalidInput("at most %d choices are allowed", vote.MaxChoices)
	}
	for _, c := range choices {
		if !vote.HasOption(c) {
			return nil, response.NewInvalidInput("unknown option: %s", c)
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("vote_id = ? AND user_id = ?", voteID, actorID).Delete(&models.UserVote{}).Error; err != nil {
			return err
		}
		ballot := make([]models.UserVote, 0, len(choices))
		for _, c := range choices {
			ballot = append(ballot, models.UserVote{VoteID: voteID, UserID: actorID, Choice: c})
		}
		return tx.Create(&ballot).Error
	})
	if err != nil {
		return nil, dbError(err, "ballot")
	}
	return s.toVote(ctx, row)
}

// Cancel stops an inline vote; only its creator or a space admin may do so.
func (s *VoteService) Cancel(ctx context.Context, actorID, voteID string) (*domain.Vote, error) {
	row, err := s.load(ctx, voteID)
	if err != nil {
		return nil, err
	}
	member, err := s.roles.RequireMember(ctx, actorID, row.SpaceID, false)
	if err != nil {
		return nil, err
	}
	if row.CreatedBy != actorID && !member.IsAdmin {
		return nil, response.NewInsecureOperation("only the vote creator or a space admin can cancel this vote")
	}
	if row.Context == models.VoteContextProposal {
		return nil, response.NewInvalidInput("proposal votes cannot be cancelled")
	}
	if row.Status != models.VoteStatusInProgress {
		return nil, response.NewInvalidInput("vote is already %s", row.Status)
	}

	result := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("id = ? AND status = ?", row.ID, models.VoteStatusInProgress).
		Update("status", models.VoteStatusCancelled)
	if result.Error != nil {
		return nil, dbError(result.Error, "vote")
	}
	if result.RowsAffected == 0 {
		return nil, response.NewInvalidInput("vote is no longer in progress")
	}
	row.Status = models.VoteStatusCancelled
	return s.toVote(ctx, row)
}

// CloseExpired settles every in-progress vote whose deadline passed and
// returns how many were closed.
func (s *VoteService) CloseExpired(ctx context.Context, now time.Time) (int, error) {
	var rows []models.Vote
	if err := s.db.WithContext(ctx).Preload("Options", orderByPosition).
		Where("status = ? AND deadline <= ?", models.VoteStatusInProgress, now).
		Find(&rows).Error; err != nil {
		return 0, dbError(err, "votes")
	}

	closed := 0
	var errs []error
	for i := range rows {
		ok, err := s.close(ctx, &rows[i])
		if err != nil {
			logger.Warnf("[Vote] Closing vote %s failed: %v", rows[i].ID, err)
			errs = append(errs, err)
		}
		if ok {
			closed++
		}
	}
	if closed > 0 {
		logger.Infof("[Vote] Closed %d expired votes", closed)
	}
	return closed, errors.Join(errs...)
}

func (s *VoteService) close(ctx context.Context, row *models.Vote) (bool, error) {
	vote, err := s.toVote(ctx, row)
	if err != nil {
		return false, err
	}
	ballots, err := s.ballots(ctx, row.ID)
	if err != nil {
		return false, err
	}
	status := domain.Outcome(*vote, ballots)

	result := s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("id = ? AND status = ?", row.ID, models.VoteStatusInProgress).
		Update("status", string(status))
	if result.Error != nil {
		return false, dbError(result.Error, "vote")
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	vote.Status = status

	// the status is committed, so the hook runs even when the event is lost
	publishErr := s.events.Publish(ctx, domain.NewEvent(domain.EventVoteClosed, vote.SpaceID, map[string]interface{}{
		"vote_id": vote.ID,
		"status":  vote.Status,
		"tally":   vote.Tally,
	}))
	var hookErr error
	if s.onClose != nil {
		hookErr = s.onClose(ctx, vote)
	}
	return true, errors.Join(publishErr, hookErr)
}

func (s *VoteService) load(ctx context.Context, voteID string) (*models.Vote, error) {
	var row models.Vote
	if err := s.db.WithContext(ctx).Preload("Options", orderByPosition).First(&row, "id = ?", voteID).Error; err != nil {
		return nil, dbError(err, "vote")
	}
	return &row, nil
}

func (s *VoteService) ballots(ctx context.Context, voteID string) ([]domain.Ballot, error) {
	var rows []models.UserVote
	if err := s.db.WithContext(ctx).Where("vote_id = ?", voteID).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, dbError(err, "ballots")
	}

	index := make(map[string]int)
	var ballots []domain.Ballot
	for _, r := range rows {
		i, ok := index[r.UserID]
		if !ok {
			i = len(ballots)
			index[r.UserID] = i
			ballots = append(ballots, domain.Ballot{UserID: r.UserID})
		}
		ballots[i].Choices = append(ballots[i].Choices, r.Choice)
	}
	return ballots, nil
}

func (s *VoteService) toVote(ctx context.Context, row *models.Vote) (*domain.Vote, error) {
	v := &domain.Vote{
		ID:          row.ID,
		SpaceID:     row.SpaceID,
		Title:       row.Title,
		Description: row.Description,
		Type:        domain.VoteType(row.Type),
		Threshold:   row.Threshold,
		MaxChoices:  row.MaxChoices,
		Status:      domain.VoteStatus(row.Status),
		Context:     row.Context,
		Deadline:    row.Deadline,
		CreatedBy:   row.CreatedBy,
		Options:     make([]string, 0, len(row.Options)),
		CreatedAt:   row.CreatedAt,
	}
	if row.PageID != nil {
		v.PageID = *row.PageID
	}
	if row.PostID != nil {
		v.PostID = *row.PostID
	}
	for _, o := range row.Options {
		v.Options = append(v.Options, o.Name)
	}

	ballots, err := s.ballots(ctx, row.ID)
	if err != nil {
		return nil, err
	}
	v.Tally = domain.Tally(v.Options, ballots)
	v.TotalVoters = len(ballots)
	return v, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}
