package services

import (
	"context"
	"testing"

	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProposalCreate_Validation(t *testing.T) {
	g := newGovernance(t)
	ctx := context.Background()
	admin := createUser(t, g.db, "admin")
	outsider := createUser(t, g.db, "outsider")
	space := createSpace(t, g.db, admin)

	tests := []struct {
		name string
		req  CreateProposalRequest
	}{
		{"no steps", CreateProposalRequest{Title: "Empty"}},
		{"blank title", CreateProposalRequest{Title: "  ", Evaluations: []EvaluationStepInput{{Type: "feedback"}}}},
		{"unknown type", CreateProposalRequest{Title: "T", Evaluations: []EvaluationStepInput{{Type: "poll"}}}},
		{"vote without settings", CreateProposalRequest{Title: "T", Evaluations: []EvaluationStepInput{{Type: "vote"}}}},
		{"vote with bad threshold", CreateProposalRequest{Title: "T", Evaluations: []EvaluationStepInput{
			{Type: "vote", VoteSettings: &domain.VoteSettings{DurationDays: 1, Threshold: 0}},
		}}},
		{"pass_fail without reviewers", CreateProposalRequest{Title: "T", Evaluations: []EvaluationStepInput{{Type: "pass_fail"}}}},
		{"reviewer with two targets", CreateProposalRequest{Title: "T", Evaluations: []EvaluationStepInput{
			{Type: "pass_fail", Reviewers: []ReviewerInput{{UserID: admin.ID, SystemRole: models.SystemRoleAuthor}}},
		}}},
		{"unknown system role", CreateProposalRequest{Title: "T", Evaluations: []EvaluationStepInput{
			{Type: "pass_fail", Reviewers: []ReviewerInput{{SystemRole: "owner"}}},
		}}},
		{"non-member author", CreateProposalRequest{Title: "T", Authors: []string{outsider.ID}, Evaluations: []EvaluationStepInput{{Type: "feedback"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.proposals.Create(ctx, admin.ID, space.ID, &tt.req)
			assert.ErrorIs(t, err, response.ErrInvalidInput)
		})
	}

	_, err := g.proposals.Create(ctx, outsider.ID, space.ID, &CreateProposalRequest{
		Title:       "Outside",
		Evaluations: []EvaluationStepInput{{Type: "feedback"}},
	})
	assert.ErrorIs(t, err, response.ErrInsecureOperation)
}

func TestProposalCreate_OrderedSteps(t *testing.T) {
	g := newGovernance(t)
	ctx := context.Background()
	admin := createUser(t, g.db, "admin")
	coauthor := createUser(t, g.db, "coauthor")
	space := createSpace(t, g.db, admin, coauthor)

	p, err := g.proposals.Create(ctx, admin.ID, space.ID, &CreateProposalRequest{
		Title:   "Treasury spend",
		Authors: []string{coauthor.ID, admin.ID},
		Evaluations: []EvaluationStepInput{
			{Type: "feedback"},
			{Title: "Council review", Type: "pass_fail", Reviewers: []ReviewerInput{{SystemRole: models.SystemRoleSpaceMember}}},
			{Title: "Community vote", Type: "vote", VoteSettings: &domain.VoteSettings{DurationDays: 5, Threshold: 60}},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Treasury spend", p.Title)
	assert.Equal(t, models.ProposalStatusPublished, p.Status)
	assert.ElementsMatch(t, []string{admin.ID, coauthor.ID}, p.Authors)
	require.Len(t, p.Evaluations, 3)
	for i, e := range p.Evaluations {
		assert.Equal(t, i, e.Index)
		assert.Equal(t, domain.ResultPending, e.Result)
		assert.Empty(t, e.VoteID, "votes open only when their step is reached")
	}
	assert.Equal(t, "feedback", p.Evaluations[0].Title)
	assert.Equal(t, []domain.Reviewer{{SystemRole: models.SystemRoleAuthor}}, p.Evaluations[0].Reviewers)
	assert.Equal(t, p.Evaluations[0].ID, p.CurrentEvaluationID)
	require.NotNil(t, p.Evaluations[2].VoteSettings)
	assert.Equal(t, domain.VoteApproval, p.Evaluations[2].VoteSettings.Type)
	assert.Equal(t, domain.DefaultApprovalOptions, p.Evaluations[2].VoteSettings.Options)
	assert.Empty(t, g.events.ofType(domain.EventVoteCreated))

	list, err := g.proposals.ListBySpace(ctx, coauthor.ID, space.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, p.ID, list[0].ID)
}

func TestProposalCreate_VoteFirstOpensVote(t *testing.T) {
	g := newGovernance(t)
	ctx := context.Background()
	admin := createUser(t, g.db, "admin")
	space := createSpace(t, g.db, admin)

	p, err := g.proposals.Create(ctx, admin.ID, space.ID, &CreateProposalRequest{
		Title: "Straight to vote",
		Evaluations: []EvaluationStepInput{
			{Type: "vote", VoteSettings: &domain.VoteSettings{DurationDays: 2, Threshold: 50}},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, p.Evaluations[0].VoteID)

	vote, err := g.votes.Get(ctx, admin.ID, p.Evaluations[0].VoteID)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteInProgress, vote.Status)
	assert.Equal(t, models.VoteContextProposal, vote.Context)
	assert.Equal(t, p.PageID, vote.PageID)
	assert.Len(t, g.events.ofType(domain.EventVoteCreated), 1)
}

func TestProposalGetByID_RequiresMembership(t *testing.T) {
	g := newGovernance(t)
	ctx := context.Background()
	admin := createUser(t, g.db, "admin")
	outsider := createUser(t, g.db, "outsider")
	space := createSpace(t, g.db, admin)

	p, err := g.proposals.Create(ctx, admin.ID, space.ID, &CreateProposalRequest{
		Title:       "Private",
		Evaluations: []EvaluationStepInput{{Type: "feedback"}},
	})
	require.NoError(t, err)

	_, err = g.proposals.GetByID(ctx, outsider.ID, p.ID)
	assert.ErrorIs(t, err, response.ErrInsecureOperation)

	_, err = g.proposals.GetByID(ctx, admin.ID, "missing")
	assert.ErrorIs(t, err, response.ErrNotFound)
}
