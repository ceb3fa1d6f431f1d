package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PermissionGroupKind defines what members of a group may do on the
// activities the group covers.
type PermissionGroupKind string

const (
	OfficerGroup  PermissionGroupKind = "LICENCE_OFFICERS"
	ApproverGroup PermissionGroupKind = "LICENCE_APPROVERS"
	AssessorGroup PermissionGroupKind = "ASSESSORS"
)

// ActivityPermissionGroup represents a group of staff scoped to licence activities
type ActivityPermissionGroup struct {
	ID          uuid.UUID           `gorm:"type:uuid;primary_key;" json:"id"`
	Name        string              `gorm:"type:varchar(200);not null" json:"name"`
	Description *string             `gorm:"type:text" json:"description"`
	Kind        PermissionGroupKind `gorm:"type:varchar(30);not null;index" json:"kind"`
	IsActive    bool                `gorm:"default:true;index" json:"is_active"`

	// Relationships
	Activities []PermissionGroupActivity `gorm:"foreignKey:GroupID" json:"activities,omitempty"`
	Members    []PermissionGroupMember   `gorm:"foreignKey:GroupID" json:"members,omitempty"`

	// Audit fields
	CreatedBy string         `gorm:"not null" json:"created_by"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// PermissionGroupActivity links a permission group to a licence activity it covers
type PermissionGroupActivity struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	GroupID           uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_group_activity" json:"group_id"`
	LicenceActivityID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_group_activity" json:"licence_activity_id"`
}

// PermissionGroupMember represents a member of a permission group
type PermissionGroupMember struct {
	ID       uuid.UUID `gorm:"type:uuid;primary_key;" json:"id"`
	GroupID  uuid.UUID `gorm:"type:uuid;not null;index" json:"group_id"`
	UserID   uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	IsActive bool      `gorm:"default:true;index" json:"is_active"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// Audit fields
	AddedBy   string     `gorm:"not null" json:"added_by"`
	AddedAt   time.Time  `gorm:"autoCreateTime" json:"added_at"`
	RemovedAt *time.Time `json:"removed_at"`
}

func (g *ActivityPermissionGroup) BeforeCreate(tx *gorm.DB) (err error) {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return
}

func (a *PermissionGroupActivity) BeforeCreate(tx *gorm.DB) (err error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return
}

func (m *PermissionGroupMember) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return
}
