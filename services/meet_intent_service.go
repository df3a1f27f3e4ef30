package services

import (
	"errors"
	"log"
	"time"

	"crewmeet/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MeetIntentService runs the second consensus round after a flow is
// confirmed: every current member of both teams must say they still want
// to meet before scheduling unlocks.
type MeetIntentService struct {
	DB     *gorm.DB
	Roster *RosterService
	Logger *log.Logger
}

func NewMeetIntentService(db *gorm.DB, roster *RosterService, logger *log.Logger) *MeetIntentService {
	return &MeetIntentService{DB: db, Roster: roster, Logger: logger}
}

// IntentStatus reports the meet-intent round's progress. Totals come
// from the live roster at call time, so members joining or leaving after
// confirmation move the goalposts rather than leaving a stale completed
// state behind.
type IntentStatus struct {
	FromSideCount int  `json:"from_side_count"`
	FromSideTotal int  `json:"from_side_total"`
	ToSideCount   int  `json:"to_side_count"`
	ToSideTotal   int  `json:"to_side_total"`
	IsCompleted   bool `json:"is_completed"`
}

// ExpressWantToMeet records that the user wants to meet. Idempotent:
// re-submission is a no-op. The user must be an active member of one of
// the flow's teams and the flow must be confirmed.
func (ms *MeetIntentService) ExpressWantToMeet(flowID, userID uint) (*IntentStatus, error) {
	flow, err := ms.confirmedFlow(flowID)
	if err != nil {
		return nil, err
	}

	teamID, err := ms.sideOf(flow, userID)
	if err != nil {
		return nil, err
	}

	intent := models.MeetIntent{
		MatchingFlowID: flow.ID,
		UserID:         userID,
		TeamID:         teamID,
	}
	// Re-submission is a no-op for a member staying put; for one who
	// switched teams it moves the affirmation to the current side.
	if err := ms.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "matching_flow_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"team_id":    teamID,
			"updated_at": time.Now(),
		}),
	}).Create(&intent).Error; err != nil {
		return nil, err
	}

	return ms.intentStatus(flow)
}

// GetIntentStatus reports progress for a confirmed flow.
func (ms *MeetIntentService) GetIntentStatus(flowID uint) (*IntentStatus, error) {
	flow, err := ms.confirmedFlow(flowID)
	if err != nil {
		return nil, err
	}
	return ms.intentStatus(flow)
}

// IsUnlocked is the scheduling gate: true once every current member of
// both sides wants to meet. The scheduling service calls this before
// creating a meeting record; it enforces one-schedule-per-flow itself.
func (ms *MeetIntentService) IsUnlocked(flowID uint) (bool, error) {
	status, err := ms.GetIntentStatus(flowID)
	if err != nil {
		return false, err
	}
	return status.IsCompleted, nil
}

func (ms *MeetIntentService) intentStatus(flow *models.MatchingFlow) (*IntentStatus, error) {
	fromMembers, err := ms.Roster.GetActiveMembers(flow.FromTeamID)
	if err != nil {
		return nil, err
	}
	toMembers, err := ms.Roster.GetActiveMembers(flow.ToTeamID)
	if err != nil {
		return nil, err
	}

	var intents []models.MeetIntent
	if err := ms.DB.Where("matching_flow_id = ?", flow.ID).Find(&intents).Error; err != nil {
		return nil, err
	}

	// An intent counts for the side it was recorded on. A member who
	// switches teams after affirming does not carry the affirmation over;
	// they stop counting for the old side (no longer on its roster) and
	// must affirm again from the new one.
	sideOf := make(map[uint]uint, len(intents))
	for _, intent := range intents {
		sideOf[intent.UserID] = intent.TeamID
	}

	status := &IntentStatus{
		FromSideCount: countIntents(fromMembers, sideOf, flow.FromTeamID),
		FromSideTotal: len(fromMembers),
		ToSideCount:   countIntents(toMembers, sideOf, flow.ToTeamID),
		ToSideTotal:   len(toMembers),
	}
	// An empty side can never complete; zero totals would otherwise make
	// completion vacuously true.
	status.IsCompleted = status.FromSideTotal > 0 && status.ToSideTotal > 0 &&
		status.FromSideCount == status.FromSideTotal &&
		status.ToSideCount == status.ToSideTotal
	return status, nil
}

// countIntents counts roster members whose intent row is recorded for
// the given side.
func countIntents(members []uint, sideOf map[uint]uint, teamID uint) int {
	count := 0
	for _, userID := range members {
		if sideOf[userID] == teamID {
			count++
		}
	}
	return count
}

func (ms *MeetIntentService) confirmedFlow(flowID uint) (*models.MatchingFlow, error) {
	var flow models.MatchingFlow
	if err := ms.DB.First(&flow, flowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}
	if flow.Status != models.FlowConfirmed {
		return nil, ErrFlowNotConfirmed
	}
	return &flow, nil
}

// sideOf resolves which side of the flow the user belongs to via their
// active membership.
func (ms *MeetIntentService) sideOf(flow *models.MatchingFlow, userID uint) (uint, error) {
	if ok, err := ms.Roster.IsActiveMember(flow.FromTeamID, userID); err != nil {
		return 0, err
	} else if ok {
		return flow.FromTeamID, nil
	}
	if ok, err := ms.Roster.IsActiveMember(flow.ToTeamID, userID); err != nil {
		return 0, err
	} else if ok {
		return flow.ToTeamID, nil
	}
	return 0, ErrNotAMember
}
