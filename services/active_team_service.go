package services

import (
	"errors"
	"log"
	"time"

	"crewmeet/models"
	"crewmeet/utils"

	"gorm.io/gorm"
)

// ActiveTeamService is the only writer of TeamMembership.IsActive. Each
// mutation runs in a single transaction so a user can never be observed
// with two active teams mid-switch; the partial unique index
// idx_memberships_one_active is the storage-level backstop for writers
// that race past the transaction anyway.
type ActiveTeamService struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewActiveTeamService(db *gorm.DB, logger *log.Logger) *ActiveTeamService {
	return &ActiveTeamService{DB: db, Logger: logger}
}

// SetActiveTeam makes teamID the user's single active team, deactivating
// every other membership in the same transaction. The user must already
// be a member of the team.
func (as *ActiveTeamService) SetActiveTeam(userID, teamID uint) error {
	tx := as.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	var membership models.TeamMembership
	if err := tx.Where("user_id = ? AND team_id = ?", userID, teamID).First(&membership).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotAMember
		}
		return err
	}

	if err := tx.Model(&models.TeamMembership{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error; err != nil {
		tx.Rollback()
		return err
	}

	now := time.Now()
	if err := tx.Model(&membership).Updates(map[string]interface{}{
		"is_active":    true,
		"activated_at": now,
	}).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// A concurrent activation won the index; report it and let
			// the caller (or the sweep worker) reconcile.
			utils.LogError("active_team_conflict", err, map[string]interface{}{
				"user_id": userID,
				"team_id": teamID,
			})
			return ErrConstraintViolation
		}
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	as.Logger.Printf("User %d switched active team to %d", userID, teamID)
	return nil
}

// SetInactiveTeam deactivates one membership. It never activates another
// team; a user may legitimately end up with zero active teams.
func (as *ActiveTeamService) SetInactiveTeam(userID, teamID uint) error {
	result := as.DB.Model(&models.TeamMembership{}).
		Where("user_id = ? AND team_id = ?", userID, teamID).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotAMember
	}
	return nil
}

func (as *ActiveTeamService) GetActiveTeamCount(userID uint) (int, error) {
	var count int64
	err := as.DB.Model(&models.TeamMembership{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Count(&count).Error
	return int(count), err
}

// ConstraintStatus is the diagnostic view of the one-active-team rule.
type ConstraintStatus struct {
	IsValid     bool `json:"is_valid"`
	ActiveCount int  `json:"active_count"`
}

func (as *ActiveTeamService) ValidateConstraint(userID uint) (*ConstraintStatus, error) {
	count, err := as.GetActiveTeamCount(userID)
	if err != nil {
		return nil, err
	}
	return &ConstraintStatus{IsValid: count <= 1, ActiveCount: count}, nil
}

// EnforceConstraint heals a user with more than one active membership by
// keeping only the most recently activated one. Violations should not
// happen while all writes go through SetActiveTeam; when one shows up it
// means the storage guarantees were bypassed, so it is reported before
// being corrected.
func (as *ActiveTeamService) EnforceConstraint(userID uint) error {
	tx := as.DB.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	var active []models.TeamMembership
	if err := tx.Where("user_id = ? AND is_active = ?", userID, true).
		Order("activated_at DESC NULLS LAST, updated_at DESC").
		Find(&active).Error; err != nil {
		tx.Rollback()
		return err
	}

	if len(active) <= 1 {
		tx.Rollback()
		return nil
	}

	utils.LogError("active_team_violation", ErrConstraintViolation, map[string]interface{}{
		"user_id":      userID,
		"active_count": len(active),
	})

	for _, membership := range active[1:] {
		if err := tx.Model(&membership).Update("is_active", false).Error; err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return err
	}

	as.Logger.Printf("Healed active-team violation for user %d (kept team %d, deactivated %d)",
		userID, active[0].TeamID, len(active)-1)
	return nil
}
