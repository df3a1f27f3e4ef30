package controller

import (
	"log"

	"crewmeet/models"
	"crewmeet/services"
	"crewmeet/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type JudgementController struct {
	DB         *gorm.DB
	Logger     *log.Logger
	Judgements *services.JudgementService
}

func NewJudgementController(db *gorm.DB, judgements *services.JudgementService, logger *log.Logger) *JudgementController {
	return &JudgementController{
		DB:         db,
		Logger:     logger,
		Judgements: judgements,
	}
}

// SubmitJudgement records the caller's like/pass vote on a flow and
// returns the aggregate state after the vote lands.
func (jc *JudgementController) SubmitJudgement(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	flowID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c)
	}

	var input struct {
		TeamID    uint   `json:"team_id" validate:"required"`
		Judgement string `json:"judgement" validate:"required,oneof=like pass"`
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

	result, err := jc.Judgements.SubmitJudgement(flowID, user.ID, input.TeamID, models.JudgementValue(input.Judgement))
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(result)
}
