package models

import (
	"time"

	"gorm.io/gorm"
)

// Bounty statuses
const (
	BountyStatusOpen       = "open"
	BountyStatusInProgress = "inProgress"
	BountyStatusComplete   = "complete"
	BountyStatusPaid       = "paid"
)

// Bounty is a reward attached to a page.
type Bounty struct {
	ID             string             `gorm:"primaryKey;size:36" json:"id"`
	SpaceID        string             `gorm:"size:36;index;not null" json:"space_id"`
	PageID         string             `gorm:"size:36;uniqueIndex;not null" json:"page_id"`
	Page           *Page              `gorm:"foreignKey:PageID" json:"page,omitempty"`
	Status         string             `gorm:"size:20;default:open" json:"status"`
	RewardAmount   float64            `json:"reward_amount"`
	RewardToken    string             `gorm:"size:50" json:"reward_token"`
	MaxSubmissions *int               `json:"max_submissions"`
	CreatedBy      string             `gorm:"size:36;index;not null" json:"created_by"`
	Permissions    []BountyPermission `gorm:"foreignKey:BountyID;constraint:OnDelete:CASCADE" json:"permissions,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
	DeletedAt      gorm.DeletedAt     `gorm:"index" json:"-"`
}

func (Bounty) TableName() string { return "bounties" }

func (b *Bounty) BeforeCreate(tx *gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// BountyPermission grants a level on a bounty. Exactly one assignee is set:
// a user, a role, the whole space, or the public.
type BountyPermission struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	BountyID  string    `gorm:"size:36;index;not null" json:"bounty_id"`
	Level     string    `gorm:"size:20;not null" json:"level"`
	UserID    *string   `gorm:"size:36;index" json:"user_id,omitempty"`
	RoleID    *string   `gorm:"size:36;index" json:"role_id,omitempty"`
	SpaceID   *string   `gorm:"size:36" json:"space_id,omitempty"`
	Public    bool      `gorm:"default:false" json:"public"`
	CreatedAt time.Time `json:"created_at"`
}

func (BountyPermission) TableName() string { return "bounty_permissions" }

func (p *BountyPermission) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
