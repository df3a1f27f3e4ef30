package models

import (
	"gorm.io/gorm"
)

// User represents a user account in the system. Registration, credentials
// and profile editing are owned by the identity service; this backend only
// reads users to resolve JWT subjects and roster membership.
type User struct {
	gorm.Model

	Email         string `gorm:"uniqueIndex;not null" json:"email"`
	EmailVerified bool   `gorm:"default:false" json:"email_verified"`

	Name   *string `json:"name,omitempty"`
	Gender string  `gorm:"default:'either'" json:"gender"` // male, female, either

	// Account status
	IsActive     bool `gorm:"default:true" json:"is_active"`
	TokenVersion int  `gorm:"default:0" json:"-"`

	// Relations
	Memberships []TeamMembership `gorm:"foreignKey:UserID" json:"memberships,omitempty"`
}
