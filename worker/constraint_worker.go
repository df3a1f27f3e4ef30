package worker

import (
	"context"
	"log"
	"time"

	"crewmeet/models"
	"crewmeet/services"

	"gorm.io/gorm"
)

// ConstraintWorker periodically sweeps for users holding more than one
// active membership and heals them. The transactional writes plus the
// partial unique index should make this a no-op; anything it finds means
// those guarantees were bypassed, which EnforceConstraint reports.
type ConstraintWorker struct {
	DB       *gorm.DB
	Enforcer *services.ActiveTeamService
	Interval time.Duration
	Logger   *log.Logger
}

func NewConstraintWorker(db *gorm.DB, enforcer *services.ActiveTeamService, interval time.Duration, logger *log.Logger) *ConstraintWorker {
	return &ConstraintWorker{
		DB:       db,
		Enforcer: enforcer,
		Interval: interval,
		Logger:   logger,
	}
}

func (cw *ConstraintWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	cw.Logger.Println("Constraint sweep worker started")

	ticker := time.NewTicker(cw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Println("Constraint sweep worker shutting down...")
			return
		case <-ticker.C:
			cw.sweep()
		}
	}
}

func (cw *ConstraintWorker) sweep() {
	var userIDs []uint
	err := cw.DB.Model(&models.TeamMembership{}).
		Select("user_id").
		Where("is_active = ?", true).
		Group("user_id").
		Having("COUNT(*) > 1").
		Pluck("user_id", &userIDs).Error
	if err != nil {
		cw.Logger.Printf("Error scanning for constraint violations: %v", err)
		return
	}

	for _, userID := range userIDs {
		if err := cw.Enforcer.EnforceConstraint(userID); err != nil {
			cw.Logger.Printf("Error healing constraint for user %d: %v", userID, err)
		}
	}

	if len(userIDs) > 0 {
		cw.Logger.Printf("Constraint sweep healed %d user(s)", len(userIDs))
	}
}
