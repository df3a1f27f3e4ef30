package routes

import (
	"log"
	"os"

	controller "crewmeet/controllers"
	"crewmeet/middleware"
	"crewmeet/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"gorm.io/gorm"
)

// SetupRoutes wires the service layer and mounts the HTTP surface. Every
// endpoint requires a verified JWT; the matching core trusts the user it
// resolves and does no credential checks of its own.
func SetupRoutes(app *fiber.App, db *gorm.DB, notifier services.Notifier) {
	teamLogger := log.New(os.Stdout, "TEAM: ", log.Ldate|log.Ltime|log.Lshortfile)
	flowLogger := log.New(os.Stdout, "FLOW: ", log.Ldate|log.Ltime|log.Lshortfile)

	roster := services.NewRosterService(db)
	activeTeam := services.NewActiveTeamService(db, teamLogger)
	flows := services.NewFlowService(db, roster, flowLogger)
	judgements := services.NewJudgementService(db, roster, notifier, flowLogger)
	intents := services.NewMeetIntentService(db, roster, flowLogger)

	teamController := controller.NewTeamController(db, activeTeam, teamLogger)
	flowController := controller.NewFlowController(db, flows, flowLogger)
	judgementController := controller.NewJudgementController(db, judgements, flowLogger)
	intentController := controller.NewMeetIntentController(db, intents, flowLogger)

	// API group with versioning and protection
	api := app.Group("/api/v1", middleware.Protected(), logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Team and active-membership routes
	team := api.Group("/teams")
	team.Post("/", teamController.CreateTeam)
	team.Get("/", teamController.GetMyTeams)
	team.Get("/constraint", teamController.GetConstraint)
	team.Post("/:id/join", teamController.JoinTeam)
	team.Post("/:id/activate", teamController.ActivateTeam)
	team.Post("/:id/deactivate", teamController.DeactivateTeam)

	// Matching flow routes; proposal creation is rate limited
	flow := api.Group("/flows")
	flow.Post("/", middleware.FlowRateLimiter(), flowController.CreateFlow)
	flow.Get("/", flowController.ListFlows)
	flow.Get("/:id", flowController.GetFlow)
	flow.Post("/:id/cancel", flowController.CancelFlow)
	flow.Post("/:id/judgements", judgementController.SubmitJudgement)

	// Post-confirmation meet-intent round
	flow.Post("/:id/meet-intent", intentController.ExpressWantToMeet)
	flow.Get("/:id/meet-intent", intentController.GetIntentStatus)

	flowLogger.Println("Routes initialized successfully")
}
