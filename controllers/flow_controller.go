package controller

import (
	"errors"
	"log"
	"strconv"

	"crewmeet/models"
	"crewmeet/services"
	"crewmeet/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type FlowController struct {
	DB     *gorm.DB
	Logger *log.Logger
	Flows  *services.FlowService
}

func NewFlowController(db *gorm.DB, flows *services.FlowService, logger *log.Logger) *FlowController {
	return &FlowController{
		DB:     db,
		Logger: logger,
		Flows:  flows,
	}
}

// CreateFlow proposes a match from the caller's active team to another
// team. A duplicate returns 409 with the existing flow so clients fetch
// it instead of retrying.
func (fc *FlowController) CreateFlow(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		FromTeamID uint `json:"from_team_id" validate:"required"`
		ToTeamID   uint `json:"to_team_id" validate:"required"`
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
	if input.FromTeamID == input.ToTeamID {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "A team cannot match with itself",
		})
	}

	flow, err := fc.Flows.CreateFlow(input.FromTeamID, input.ToTeamID, user.ID)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateFlow) && flow != nil {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   err.Error(),
				"flow_id": flow.ID,
			})
		}
		return domainError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(flow)
}

// GetFlow returns the flow view: status, rosters and per-side like
// counts, plus the caller's own vote.
func (fc *FlowController) GetFlow(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	flowID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c)
	}

	view, err := fc.Flows.GetFlow(flowID, user.ID)
	if err != nil {
		return domainError(c, err)
	}

	return c.JSON(view)
}

// ListFlows returns flows involving ?team_id=, both directions.
func (fc *FlowController) ListFlows(c *fiber.Ctx) error {
	teamID, err := strconv.ParseUint(c.Query("team_id"), 10, 32)
	if err != nil || teamID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "team_id query parameter is required",
		})
	}

	flows, err := fc.Flows.ListFlowsForTeam(uint(teamID))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch flows",
		})
	}

	return c.JSON(fiber.Map{
		"flows": flows,
	})
}

// CancelFlow terminates a live flow. Cancelling an already-terminal flow
// succeeds without changing anything.
func (fc *FlowController) CancelFlow(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)
	flowID, ok := parseID(c, "id")
	if !ok {
		return invalidID(c)
	}

	if err := fc.Flows.CancelFlow(flowID, user.ID); err != nil {
		return domainError(c, err)
	}

	return c.JSON(fiber.Map{
		"message": "Flow cancelled",
	})
}
