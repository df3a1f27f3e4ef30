package models

import (
	"time"

	"gorm.io/gorm"
)

// Gender policy values shared by Team.Gender, Team.TargetGender and
// User.Gender. "either" accepts any counterpart.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderEither = "either"
)

// Team represents a small user group that matches with other teams
type Team struct {
	gorm.Model
	Name        string `gorm:"not null" json:"name"`
	Description string `json:"description"`

	// Team-level active flag, independent of per-member active flags
	IsActive bool `gorm:"default:true" json:"is_active"`

	// Matching policy: what this team is, and what it is looking for
	Gender       string `gorm:"not null;default:'either'" json:"gender"`        // male, female, either
	TargetGender string `gorm:"not null;default:'either'" json:"target_gender"` // male, female, either

	// Relations
	Members []TeamMembership `gorm:"foreignKey:TeamID" json:"members,omitempty"`
}

// TeamMembership links a user to a team. Unique per (team, user) pair.
//
// IsActive means "this is the user's currently active team". A user may
// belong to many teams but may have at most one active membership across
// all of them; that constraint is backed by the partial unique index
// created in config.MigrateDB and mutated only through
// services.ActiveTeamService.
type TeamMembership struct {
	gorm.Model
	TeamID uint `gorm:"not null;uniqueIndex:idx_memberships_team_user" json:"team_id"`
	UserID uint `gorm:"not null;uniqueIndex:idx_memberships_team_user;index" json:"user_id"`

	IsActive    bool       `gorm:"not null;default:false" json:"is_active"`
	ActivatedAt *time.Time `json:"activated_at,omitempty"`

	// Relations
	Team Team `json:"-"`
	User User `json:"-"`
}
