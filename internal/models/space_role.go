package models

import (
	"time"

	"gorm.io/gorm"
)

// SpaceRole is a user's membership in a space.
type SpaceRole struct {
	ID               string            `gorm:"primaryKey;size:36" json:"id"`
	SpaceID          string            `gorm:"size:36;uniqueIndex:idx_space_user;not null" json:"space_id"`
	UserID           string            `gorm:"size:36;uniqueIndex:idx_space_user;not null" json:"user_id"`
	User             *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	IsAdmin          bool              `gorm:"default:false" json:"is_admin"`
	SpaceRoleToRoles []SpaceRoleToRole `gorm:"foreignKey:SpaceRoleID;constraint:OnDelete:CASCADE" json:"roles,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

func (SpaceRole) TableName() string { return "space_roles" }

func (s *SpaceRole) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// Role is a named permission bucket within a space.
type Role struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	SpaceID   string    `gorm:"size:36;uniqueIndex:idx_space_role_name;not null" json:"space_id"`
	Name      string    `gorm:"size:100;uniqueIndex:idx_space_role_name;not null" json:"name"`
	CreatedBy string    `gorm:"size:36" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Role) TableName() string { return "roles" }

func (r *Role) BeforeCreate(tx *gorm.DB) error {
	ensureID(&r.ID)
	return nil
}

// SpaceRoleToRole joins a space membership to a role.
type SpaceRoleToRole struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SpaceRoleID string    `gorm:"size:36;uniqueIndex:idx_space_role_role;not null" json:"space_role_id"`
	RoleID      string    `gorm:"size:36;uniqueIndex:idx_space_role_role;index;not null" json:"role_id"`
	Role        *Role     `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func (SpaceRoleToRole) TableName() string { return "space_role_to_roles" }

func (s *SpaceRoleToRole) BeforeCreate(tx *gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
