package models

import (
	"time"

	"gorm.io/gorm"
)

// Space is a tenant workspace owning pages, proposals, votes and bounties.
type Space struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	Name      string         `gorm:"size:200;not null" json:"name"`
	Domain    string         `gorm:"uniqueIndex;size:100;not null" json:"domain"`
	CreatedBy string         `gorm:"size:36;not null" json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Space) TableName() string { return "spaces" }

func (s *Space) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// Page is the document a proposal, vote or bounty is attached to.
type Page struct {
	ID        string         `gorm:"primaryKey;size:36" json:"id"`
	SpaceID   string         `gorm:"size:36;index;not null" json:"space_id"`
	Title     string         `gorm:"size:500;not null" json:"title"`
	Type      string         `gorm:"size:50;default:page" json:"type"` // page, proposal, bounty
	Content   string         `gorm:"type:text" json:"content"`
	CreatedBy string         `gorm:"size:36;not null" json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Page) TableName() string { return "pages" }

func (p *Page) BeforeCreate(tx *gorm.DB) error {
	ensureID(&p.ID)
	return nil
}
