package controller

import (
	"log"
	"strconv"

	"crewmeet/models"
	"crewmeet/services"
	"crewmeet/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type TeamController struct {
	DB         *gorm.DB
	Logger     *log.Logger
	ActiveTeam *services.ActiveTeamService
}

func NewTeamController(db *gorm.DB, activeTeam *services.ActiveTeamService, logger *log.Logger) *TeamController {
	return &TeamController{
		DB:         db,
		Logger:     logger,
		ActiveTeam: activeTeam,
	}
}

// CreateTeam creates a team with the caller as its first member. The new
// membership starts inactive; activating it is a separate, explicit call.
func (tc *TeamController) CreateTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		Name         string `json:"name" validate:"required,min=1,max=80"`
		Description  string `json:"description" validate:"max=500"`
		Gender       string `json:"gender" validate:"omitempty,oneof=male female either"`
		TargetGender string `json:"target_gender" validate:"omitempty,oneof=male female either"`
	}

	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if input.Gender == "" {
		input.Gender = models.GenderEither
	}
	if input.TargetGender == "" {
		input.TargetGender = models.GenderEither
	}

	// Start transaction
	tx := tc.DB.Begin()

	team := models.Team{
		Name:         input.Name,
		Description:  input.Description,
		IsActive:     true,
		Gender:       input.Gender,
		TargetGender: input.TargetGender,
	}
	if err := tx.Create(&team).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create team",
		})
	}

	membership := models.TeamMembership{
		TeamID: team.ID,
		UserID: user.ID,
	}
	if err := tx.Create(&membership).Error; err != nil {
		tx.Rollback()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create membership",
		})
	}

	if err := tx.Commit().Error; err != nil {
		tc.Logger.Printf("Transaction commit failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create team",
		})
	}

	tc.Logger.Printf("User %d created team %d (%s)", user.ID, team.ID, team.Name)
	return c.Status(fiber.StatusCreated).JSON(team)
}

// GetMyTeams lists the caller's teams with each membership's active flag.
func (tc *TeamController) GetMyTeams(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var memberships []models.TeamMembership
	if err := tc.DB.Preload("Team").Where("user_id = ?", user.ID).Find(&memberships).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch teams",
		})
	}

	type teamEntry struct {
		Team     models.Team `json:"team"`
		IsActive bool        `json:"is_active"`
	}
	entries := make([]teamEntry, 0, len(memberships))
	for _, m := range memberships {
		entries = append(entries, teamEntry{Team: m.Team, IsActive: m.IsActive})
	}

	return c.JSON(fiber.Map{
		"teams": entries,
	})
}

// JoinTeam adds the caller to a team as an inactive member.
func (tc *TeamController) JoinTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var team models.Team
	if err := tc.DB.First(&team, teamID).Error; err != nil {
		return domainError(c, services.ErrTeamNotFound)
	}

	membership := models.TeamMembership{
		TeamID: teamID,
		UserID: user.ID,
	}
	if err := tc.DB.Create(&membership).Error; err != nil {
		// Unique (team, user) pair; joining twice is a conflict
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Already a member of this team",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(membership)
}

// ActivateTeam makes the team the caller's single active team.
func (tc *TeamController) ActivateTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c)
	}

	if err := tc.ActiveTeam.SetActiveTeam(user.ID, teamID); err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Active team updated",
	})
}

// DeactivateTeam clears the active flag on one membership.
func (tc *TeamController) DeactivateTeam(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	teamID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c)
	}

	if err := tc.ActiveTeam.SetInactiveTeam(user.ID, teamID); err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Team deactivated",
	})
}

// GetConstraint is the diagnostic read for the one-active-team rule.
func (tc *TeamController) GetConstraint(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	status, err := tc.ActiveTeam.ValidateConstraint(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to validate constraint",
		})
	}

	return c.JSON(status)
}

// parseID reads a numeric route parameter; ok is false when the value is
// not a positive integer.
func parseID(c *fiber.Ctx, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Params(param), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func invalidID(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid id",
	})
}
