package controller

import (
	"log"

	"crewmeet/models"
	"crewmeet/services"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type MeetIntentController struct {
	DB      *gorm.DB
	Logger  *log.Logger
	Intents *services.MeetIntentService
}

func NewMeetIntentController(db *gorm.DB, intents *services.MeetIntentService, logger *log.Logger) *MeetIntentController {
	return &MeetIntentController{
		DB:      db,
		Logger:  logger,
		Intents: intents,
	}
}

// ExpressWantToMeet records that the caller still wants to meet after
// the flow confirmed. Idempotent.
func (mc *MeetIntentController) ExpressWantToMeet(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	flowID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c)
	}

	status, err := mc.Intents.ExpressWantToMeet(flowID, user.ID)
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(status)
}

// GetIntentStatus reports the second round's progress, including whether
// scheduling is unlocked.
func (mc *MeetIntentController) GetIntentStatus(c *fiber.Ctx) error {
	flowID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c)
	}

	status, err := mc.Intents.GetIntentStatus(flowID)
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{
		"status":   status,
		"unlocked": status.IsCompleted,
	})
}
