package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Proposal statuses
const (
	ProposalStatusDraft            = "draft"
	ProposalStatusPublished        = "published"
	ProposalStatusEvaluationPassed = "evaluation_passed"
	ProposalStatusEvaluationFailed = "evaluation_failed"
)

// Evaluation step types
const (
	EvaluationTypeFeedback = "feedback"
	EvaluationTypePassFail = "pass_fail"
	EvaluationTypeVote     = "vote"
)

// Evaluation results; an empty result means the step is still pending.
const (
	EvaluationResultPass = "pass"
	EvaluationResultFail = "fail"
)

// System reviewer kinds
const (
	SystemRoleSpaceMember = "space_member"
	SystemRoleAuthor      = "author"
)

// Proposal is a governance request that moves through ordered evaluation steps.
type Proposal struct {
	ID          string               `gorm:"primaryKey;size:36" json:"id"`
	SpaceID     string               `gorm:"size:36;index;not null" json:"space_id"`
	PageID      string               `gorm:"size:36;uniqueIndex;not null" json:"page_id"`
	Page        *Page                `gorm:"foreignKey:PageID" json:"page,omitempty"`
	Status      string               `gorm:"size:50;index;default:published" json:"status"`
	CreatedBy   string               `gorm:"size:36;not null" json:"created_by"`
	Authors     []ProposalAuthor     `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"authors,omitempty"`
	Evaluations []ProposalEvaluation `gorm:"foreignKey:ProposalID;constraint:OnDelete:CASCADE" json:"evaluations,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	DeletedAt   gorm.DeletedAt       `gorm:"index" json:"-"`
}

func (Proposal) TableName() string { return "proposals" }

func (p *Proposal) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// ProposalAuthor links a user as author of a proposal.
type ProposalAuthor struct {
	ID         string `gorm:"primaryKey;size:36" json:"id"`
	ProposalID string `gorm:"size:36;uniqueIndex:idx_proposal_author;not null" json:"proposal_id"`
	UserID     string `gorm:"size:36;uniqueIndex:idx_proposal_author;not null" json:"user_id"`
}

func (ProposalAuthor) TableName() string { return "proposal_authors" }

func (a *ProposalAuthor) BeforeCreate(tx *gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// ProposalEvaluation is one ordered step of a proposal workflow.
type ProposalEvaluation struct {
	ID           string                       `gorm:"primaryKey;size:36" json:"id"`
	ProposalID   string                       `gorm:"size:36;uniqueIndex:idx_proposal_eval_index;not null" json:"proposal_id"`
	Index        int                          `gorm:"column:eval_index;uniqueIndex:idx_proposal_eval_index;not null" json:"index"`
	Title        string                       `gorm:"size:200" json:"title"`
	Type         string                       `gorm:"size:20;not null" json:"type"` // feedback, pass_fail, vote
	Result       string                       `gorm:"size:10" json:"result"`        // "", pass, fail
	DecidedBy    *string                      `gorm:"size:36" json:"decided_by"`
	CompletedAt  *time.Time                   `json:"completed_at"`
	VoteSettings datatypes.JSON               `json:"vote_settings"`
	VoteID       *string                      `gorm:"size:36;index" json:"vote_id"`
	Reviewers    []ProposalEvaluationReviewer `gorm:"foreignKey:EvaluationID;constraint:OnDelete:CASCADE" json:"reviewers,omitempty"`
	CreatedAt    time.Time                    `json:"created_at"`
	UpdatedAt    time.Time                    `json:"updated_at"`
}

func (ProposalEvaluation) TableName() string { return "proposal_evaluations" }

func (e *ProposalEvaluation) BeforeCreate(tx *gorm.DB) error {
	ensureID(&e.ID)
	return nil
}

// ProposalEvaluationReviewer names who may decide an evaluation: exactly one of
// UserID, RoleID or SystemRole is set.
type ProposalEvaluationReviewer struct {
	ID           string  `gorm:"primaryKey;size:36" json:"id"`
	EvaluationID string  `gorm:"size:36;index;not null" json:"evaluation_id"`
	UserID       *string `gorm:"size:36" json:"user_id,omitempty"`
	RoleID       *string `gorm:"size:36" json:"role_id,omitempty"`
	SystemRole   *string `gorm:"size:20" json:"system_role,omitempty"`
}

func (ProposalEvaluationReviewer) TableName() string { return "proposal_evaluation_reviewers" }

func (r *ProposalEvaluationReviewer) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
