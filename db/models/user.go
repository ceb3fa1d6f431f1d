package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Role string

const (
	AdminRole     Role = "admin"
	StaffRole     Role = "staff"
	CustomerRole  Role = "customer"
	SuperUserRole Role = "super_user"
)

// Staff permissions checked by the licensing workflow.
const (
	PermissionLicensingOfficer = "licensing_officer"
	PermissionIssuingOfficer   = "issuing_officer"
)

// User represents applicants and staff alike
type User struct {
	ID          uuid.UUID  `gorm:"type:uuid;primary_key;" json:"id"`
	FirstName   string     `gorm:"not null" json:"first_name"`
	LastName    string     `gorm:"not null" json:"last_name"`
	Email       string     `gorm:"unique;not null" json:"email"`
	Phone       *string    `json:"phone"`
	DateOfBirth *time.Time `json:"date_of_birth"`

	// Role and permissions
	Role        Role                        `gorm:"type:varchar(30);not null;default:'customer'" json:"role"`
	Permissions datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"permissions,omitempty"`

	// Status
	Active      bool       `gorm:"default:true" json:"active"`
	LastLoginAt *time.Time `json:"last_login_at"`

	// Audit fields
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// HasPermission reports whether the user holds the named permission.
func (u *User) HasPermission(permission string) bool {
	if u.Role == SuperUserRole {
		return true
	}
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// AgeOn returns the user's age in whole years at the given date, and false
// when no date of birth is recorded.
func (u *User) AgeOn(at time.Time) (int, bool) {
	if u.DateOfBirth == nil {
		return 0, false
	}
	dob := *u.DateOfBirth
	age := at.Year() - dob.Year()
	if at.Month() < dob.Month() || (at.Month() == dob.Month() && at.Day() < dob.Day()) {
		age--
	}
	return age, true
}

func (u *User) BeforeCreate(tx *gorm.DB) (err error) {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return
}
