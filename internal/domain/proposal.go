// Package domain holds the value types the services exchange, free of persistence details.
package domain

import (
	"sort"
	"time"
)

type EvaluationType string

const (
	EvaluationFeedback EvaluationType = "feedback"
	EvaluationPassFail EvaluationType = "pass_fail"
	EvaluationVote     EvaluationType = "vote"
)

func (t EvaluationType) Valid() bool {
	switch t {
	case EvaluationFeedback, EvaluationPassFail, EvaluationVote:
		return true
	}
	return false
}

// EvaluationResult is empty while an evaluation is pending.
type EvaluationResult string

const (
	ResultPending EvaluationResult = ""
	ResultPass    EvaluationResult = "pass"
	ResultFail    EvaluationResult = "fail"
)

func (r EvaluationResult) Valid() bool {
	return r == ResultPass || r == ResultFail
}

// Reviewer names who may decide an evaluation.
type Reviewer struct {
	UserID     string `json:"user_id,omitempty"`
	RoleID     string `json:"role_id,omitempty"`
	SystemRole string `json:"system_role,omitempty"`
}

type Evaluation struct {
	ID           string           `json:"id"`
	ProposalID   string           `json:"proposal_id"`
	Index        int              `json:"index"`
	Title        string           `json:"title"`
	Type         EvaluationType   `json:"type"`
	Result       EvaluationResult `json:"result"`
	DecidedBy    string           `json:"decided_by,omitempty"`
	CompletedAt  *time.Time       `json:"completed_at"`
	VoteSettings *VoteSettings    `json:"vote_settings,omitempty"`
	VoteID       string           `json:"vote_id,omitempty"`
	Reviewers    []Reviewer       `json:"reviewers,omitempty"`
}

// Completed reports whether the evaluation reached a terminal result.
func (e Evaluation) Completed() bool {
	return e.CompletedAt != nil
}

// NeedsVote reports whether entering this evaluation must open a vote.
func (e Evaluation) NeedsVote() bool {
	return e.Type == EvaluationVote && e.VoteSettings != nil && e.VoteID == ""
}

type Proposal struct {
	ID                  string       `json:"id"`
	SpaceID             string       `json:"space_id"`
	PageID              string       `json:"page_id"`
	Title               string       `json:"title"`
	Status              string       `json:"status"`
	CreatedBy           string       `json:"created_by"`
	Authors             []string     `json:"authors"`
	Evaluations         []Evaluation `json:"evaluations"`
	CurrentEvaluationID string       `json:"current_evaluation_id,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
}

// HasAuthor reports whether userID is one of the proposal authors.
func (p Proposal) HasAuthor(userID string) bool {
	for _, a := range p.Authors {
		if a == userID {
			return true
		}
	}
	return false
}

// SortEvaluations orders evaluations by index in place.
func SortEvaluations(evals []Evaluation) {
	sort.SliceStable(evals, func(i, j int) bool { return evals[i].Index < evals[j].Index })
}

// CurrentEvaluation returns the first evaluation that has not passed, or the
// last one when every step passed. Evaluations must be sorted by index.
func CurrentEvaluation(evals []Evaluation) *Evaluation {
	if len(evals) == 0 {
		return nil
	}
	for i := range evals {
		if evals[i].Result != ResultPass {
			return &evals[i]
		}
	}
	return &evals[len(evals)-1]
}

// NextEvaluation returns the evaluation following the one with id, or nil.
func NextEvaluation(evals []Evaluation, id string) *Evaluation {
	for i := range evals {
		if evals[i].ID == id && i+1 < len(evals) {
			return &evals[i+1]
		}
	}
	return nil
}
