package services

import (
	"context"
	"testing"
	"time"

	"github.com/charmverse/governance/internal/domain"
	"github.com/charmverse/governance/internal/models"
	"github.com/charmverse/governance/pkg/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createPage(t *testing.T, f *workflowFixture) *models.Page {
	t.Helper()
	page := &models.Page{SpaceID: f.space.ID, Title: "Forum post", Type: "page", CreatedBy: f.member.ID}
	require.NoError(t, f.db.Create(page).Error)
	return page
}

func TestVoteCreate_Validation(t *testing.T) {
	f := newWorkflowFixture(t)
	page := createPage(t, f)
	other := &models.Space{Name: "Other", Domain: "other-space", CreatedBy: f.outsider.ID}
	require.NoError(t, f.db.Create(other).Error)
	foreign := &models.Page{SpaceID: other.ID, Title: "Elsewhere", Type: "page", CreatedBy: f.outsider.ID}
	require.NoError(t, f.db.Create(foreign).Error)
	future := time.Now().Add(time.Hour)

	tests := []struct {
		name     string
		req      CreateVoteRequest
		expected error
	}{
		{"no target", CreateVoteRequest{Title: "T", Threshold: 50, Deadline: future}, response.ErrInvalidInput},
		{"page and post", CreateVoteRequest{PageID: page.ID, PostID: "p", Title: "T", Threshold: 50, Deadline: future}, response.ErrInvalidInput},
		{"missing page", CreateVoteRequest{PageID: "missing", Title: "T", Threshold: 50, Deadline: future}, response.ErrNotFound},
		{"page of another space", CreateVoteRequest{PageID: foreign.ID, Title: "T", Threshold: 50, Deadline: future}, response.ErrInvalidInput},
		{"past deadline", CreateVoteRequest{PageID: page.ID, Title: "T", Threshold: 50, Deadline: time.Now().Add(-time.Hour)}, response.ErrInvalidInput},
		{"threshold above 100", CreateVoteRequest{PageID: page.ID, Title: "T", Threshold: 101, Deadline: future}, response.ErrInvalidInput},
		{"single option", CreateVoteRequest{PageID: page.ID, Title: "T", Threshold: 50, Type: domain.VoteSingleChoice, Options: []string{"A"}, Deadline: future}, response.ErrInvalidInput},
		{"duplicate options", CreateVoteRequest{PageID: page.ID, Title: "T", Threshold: 50, Type: domain.VoteSingleChoice, Options: []string{"A", "A"}, Deadline: future}, response.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.req.SpaceID = f.space.ID
			_, err := f.votes.Create(f.ctx, f.member.ID, &tt.req)
			assert.ErrorIs(t, err, tt.expected)
		})
	}

	_, err := f.votes.Create(f.ctx, f.outsider.ID, &CreateVoteRequest{SpaceID: f.space.ID, PageID: page.ID, Title: "T", Threshold: 50, Deadline: future})
	assert.ErrorIs(t, err, response.ErrInsecureOperation)
}

func TestVoteCast(t *testing.T) {
	f := newWorkflowFixture(t)
	page := createPage(t, f)

	vote, err := f.votes.Create(f.ctx, f.member.ID, &CreateVoteRequest{
		SpaceID:    f.space.ID,
		PageID:     page.ID,
		Title:      "Pick venues",
		Type:       domain.VoteMultiChoice,
		Threshold:  50,
		MaxChoices: 2,
		Options:    []string{"Lisbon", "Denver", "Seoul"},
		Deadline:   time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.VoteContextInline, vote.Context)
	assert.Equal(t, map[string]int{"Lisbon": 0, "Denver": 0, "Seoul": 0}, vote.Tally)

	_, err = f.votes.Cast(f.ctx, f.member.ID, vote.ID, []string{"Lisbon", "Denver", "Seoul"})
	assert.ErrorIs(t, err, response.ErrInvalidInput)
	_, err = f.votes.Cast(f.ctx, f.member.ID, vote.ID, []string{"Paris"})
	assert.ErrorIs(t, err, response.ErrInvalidInput)
	_, err = f.votes.Cast(f.ctx, f.outsider.ID, vote.ID, []string{"Lisbon"})
	assert.ErrorIs(t, err, response.ErrInsecureOperation)

	_, err = f.votes.Cast(f.ctx, f.member.ID, vote.ID, []string{"Lisbon", "Denver"})
	require.NoError(t, err)
	updated, err := f.votes.Cast(f.ctx, f.member.ID, vote.ID, []string{"Seoul"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Lisbon": 0, "Denver": 0, "Seoul": 1}, updated.Tally)
	assert.Equal(t, 1, updated.TotalVoters)

	updated, err = f.votes.Cast(f.ctx, f.reviewer.ID, vote.ID, []string{"Seoul", "Seoul"})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Tally["Seoul"])
	assert.Equal(t, 2, updated.TotalVoters)

	votes, err := f.votes.ListByPage(f.ctx, f.admin.ID, page.ID)
	require.NoError(t, err)
	require.Len(t, votes, 1)
	assert.Equal(t, []string{"Lisbon", "Denver", "Seoul"}, votes[0].Options)
}

func TestVoteCancel(t *testing.T) {
	f := newWorkflowFixture(t)
	page := createPage(t, f)
	create := func() *domain.Vote {
		v, err := f.votes.Create(f.ctx, f.member.ID, &CreateVoteRequest{
			SpaceID: f.space.ID, PageID: page.ID, Title: "Approve", Threshold: 50, Deadline: time.Now().Add(time.Hour),
		})
		require.NoError(t, err)
		return v
	}

	v := create()
	_, err := f.votes.Cancel(f.ctx, f.reviewer.ID, v.ID)
	assert.ErrorIs(t, err, response.ErrInsecureOperation)

	cancelled, err := f.votes.Cancel(f.ctx, f.member.ID, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteCancelled, cancelled.Status)

	_, err = f.votes.Cancel(f.ctx, f.member.ID, v.ID)
	assert.ErrorIs(t, err, response.ErrInvalidInput)
	_, err = f.votes.Cast(f.ctx, f.member.ID, v.ID, []string{"Yes"})
	assert.ErrorIs(t, err, response.ErrInvalidInput)

	byAdmin, err := f.votes.Cancel(f.ctx, f.admin.ID, create().ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VoteCancelled, byAdmin.Status)

	p, err := f.proposals.Create(f.ctx, f.member.ID, f.space.ID, &CreateProposalRequest{
		Title:       "Vote step",
		Evaluations: []EvaluationStepInput{{Type: "vote", VoteSettings: &domain.VoteSettings{DurationDays: 1, Threshold: 50}}},
	})
	require.NoError(t, err)
	_, err = f.votes.Cancel(f.ctx, f.admin.ID, p.Evaluations[0].VoteID)
	assert.ErrorIs(t, err, response.ErrInvalidInput)
}

func TestCloseExpired_InlineVote(t *testing.T) {
	f := newWorkflowFixture(t)
	page := createPage(t, f)
	v, err := f.votes.Create(f.ctx, f.member.ID, &CreateVoteRequest{
		SpaceID: f.space.ID, PageID: page.ID, Title: "Quick poll", Threshold: 50, Deadline: time.Now().Add(time.Hour),
	})
	require.NoError(t, err)
	_, err = f.votes.Cast(f.ctx, f.admin.ID, v.ID, []string{"Yes"})
	require.NoError(t, err)

	closed, err := f.votes.CloseExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, closed, "vote before its deadline stays open")

	closed, err = f.votes.CloseExpired(context.Background(), time.Now().Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, closed)

	got, err := f.votes.Get(f.ctx, f.member.ID, v.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.VotePassed, got.Status)
	events := f.events.ofType(domain.EventVoteClosed)
	require.Len(t, events, 1)
	assert.Equal(t, v.ID, events[0].Data["vote_id"])
}
