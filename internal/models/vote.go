package models

import (
	"time"

	"gorm.io/gorm"
)

// Vote statuses
const (
	VoteStatusInProgress = "InProgress"
	VoteStatusPassed     = "Passed"
	VoteStatusRejected   = "Rejected"
	VoteStatusCancelled  = "Cancelled"
)

// Vote types
const (
	VoteTypeApproval     = "Approval"
	VoteTypeSingleChoice = "SingleChoice"
	VoteTypeMultiChoice  = "MultiChoice"
)

// Vote contexts
const (
	VoteContextInline   = "inline"
	VoteContextProposal = "proposal"
)

// Vote is a poll attached to a page or forum post.
type Vote struct {
	ID          string         `gorm:"primaryKey;size:36" json:"id"`
	SpaceID     string         `gorm:"size:36;index;not null" json:"space_id"`
	PageID      *string        `gorm:"size:36;index" json:"page_id"`
	PostID      *string        `gorm:"size:36;index" json:"post_id"`
	Title       string         `gorm:"size:500;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Type        string         `gorm:"size:20;not null" json:"type"`
	Threshold   int            `gorm:"not null" json:"threshold"`
	MaxChoices  int            `gorm:"default:1" json:"max_choices"`
	Status      string         `gorm:"size:20;index;default:InProgress" json:"status"`
	Context     string         `gorm:"size:20;default:inline" json:"context"`
	Deadline    time.Time      `gorm:"index" json:"deadline"`
	CreatedBy   string         `gorm:"size:36" json:"created_by"`
	Options     []VoteOption   `gorm:"foreignKey:VoteID;constraint:OnDelete:CASCADE" json:"options,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Vote) TableName() string { return "votes" }

func (v *Vote) BeforeCreate(tx *gorm.DB) error {
	ensureID(&v.ID)
	return nil
}

// VoteOption is one selectable answer of a vote.
type VoteOption struct {
	ID       string `gorm:"primaryKey;size:36" json:"id"`
	VoteID   string `gorm:"size:36;uniqueIndex:idx_vote_option;not null" json:"vote_id"`
	Name     string `gorm:"size:200;uniqueIndex:idx_vote_option;not null" json:"name"`
	Position int    `gorm:"not null" json:"position"`
}

func (VoteOption) TableName() string { return "vote_options" }

func (o *VoteOption) BeforeCreate(tx *gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// UserVote records one choice of a user; multi-choice ballots span several rows.
type UserVote struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	VoteID    string    `gorm:"size:36;uniqueIndex:idx_user_vote_choice;not null" json:"vote_id"`
	UserID    string    `gorm:"size:36;uniqueIndex:idx_user_vote_choice;not null" json:"user_id"`
	Choice    string    `gorm:"size:200;uniqueIndex:idx_user_vote_choice;not null" json:"choice"`
	CreatedAt time.Time `json:"created_at"`
}

func (UserVote) TableName() string { return "user_votes" }

func (u *UserVote) BeforeCreate(tx *gorm.DB) error {
	ensureID(&u.ID)
	return nil
}
