package services

import (
	"errors"

	"crewmeet/models"

	"gorm.io/gorm"
)

// RosterService is the read side of team membership. Aggregation totals
// are always read through here at evaluation time, never cached, so that
// membership changes are reflected immediately in completion checks.
type RosterService struct {
	DB *gorm.DB
}

func NewRosterService(db *gorm.DB) *RosterService {
	return &RosterService{DB: db}
}

// GetActiveMembers returns the user IDs whose active team is teamID.
func (rs *RosterService) GetActiveMembers(teamID uint) ([]uint, error) {
	var userIDs []uint
	err := rs.DB.Model(&models.TeamMembership{}).
		Where("team_id = ? AND is_active = ?", teamID, true).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		return nil, err
	}
	return userIDs, nil
}

func (rs *RosterService) GetTeam(teamID uint) (*models.Team, error) {
	var team models.Team
	if err := rs.DB.First(&team, teamID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return &team, nil
}

// TeamPolicy is the slice of Team the matching core needs for the
// compatibility check at flow creation.
type TeamPolicy struct {
	Gender       string
	TargetGender string
}

func (rs *RosterService) GetTeamPolicy(teamID uint) (*TeamPolicy, error) {
	team, err := rs.GetTeam(teamID)
	if err != nil {
		return nil, err
	}
	return &TeamPolicy{Gender: team.Gender, TargetGender: team.TargetGender}, nil
}

// IsActiveMember reports whether teamID is userID's active team.
func (rs *RosterService) IsActiveMember(teamID, userID uint) (bool, error) {
	var count int64
	err := rs.DB.Model(&models.TeamMembership{}).
		Where("team_id = ? AND user_id = ? AND is_active = ?", teamID, userID, true).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
