package services

import (
	"context"
	"errors"
	"log"
	"time"

	"crewmeet/models"
	"crewmeet/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// JudgementService records member votes and owns every forward status
// transition of a flow.
//
// The derived status is always recomputed from the full stored vote set
// plus the live roster, never from running counters. Two members voting
// at the same instant may both run the recompute; because it is a pure
// function of the rows, the last writer lands on the same answer, and a
// pass vote can never be un-derived once its row exists.
type JudgementService struct {
	DB       *gorm.DB
	Roster   *RosterService
	Notifier Notifier
	Logger   *log.Logger
}

func NewJudgementService(db *gorm.DB, roster *RosterService, notifier Notifier, logger *log.Logger) *JudgementService {
	return &JudgementService{DB: db, Roster: roster, Notifier: notifier, Logger: logger}
}

// AggregateResult is the flow state after a vote lands.
type AggregateResult struct {
	Status    models.FlowStatus `json:"status"`
	FromLikes int               `json:"from_likes"`
	FromTotal int               `json:"from_total"`
	ToLikes   int               `json:"to_likes"`
	ToTotal   int               `json:"to_total"`
}

// SubmitJudgement upserts the member's vote and recomputes the flow
// status. Submitting the same value twice is a no-op. Votes against a
// terminal flow are ignored and the current aggregate is returned
// unchanged, keeping the lifecycle strictly forward.
func (js *JudgementService) SubmitJudgement(flowID, userID, teamID uint, value models.JudgementValue) (*AggregateResult, error) {
	if !value.IsValid() {
		return nil, ErrInvalidJudgement
	}

	var flow models.MatchingFlow
	if err := js.DB.First(&flow, flowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}

	if teamID != flow.FromTeamID && teamID != flow.ToTeamID {
		return nil, ErrNotAMember
	}
	active, err := js.Roster.IsActiveMember(teamID, userID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrNotAMember
	}

	if flow.Status.IsTerminal() {
		return js.aggregate(&flow)
	}

	judgement := models.MemberJudgement{
		MatchingFlowID: flow.ID,
		UserID:         userID,
		TeamID:         teamID,
		Value:          value,
	}
	// Keyed on (flow, user) so concurrent submissions from the same user
	// can never create a second row.
	if err := js.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "matching_flow_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"value":      value,
			"team_id":    teamID,
			"updated_at": time.Now(),
		}),
	}).Create(&judgement).Error; err != nil {
		return nil, err
	}

	return js.recomputeStatus(&flow)
}

// recomputeStatus derives and persists the flow status from the full
// vote set. Safe to run concurrently: every writer re-reads the rows.
func (js *JudgementService) recomputeStatus(flow *models.MatchingFlow) (*AggregateResult, error) {
	result, derived, err := js.derive(flow)
	if err != nil {
		return nil, err
	}

	if derived == flow.Status {
		return result, nil
	}

	updates := map[string]interface{}{"status": derived}
	if derived == models.FlowRejected {
		updates["cancelled_at"] = time.Now()
	}

	if derived == models.FlowConfirmed {
		now := time.Now()
		updates["confirmed_at"] = now
		// confirmed_at IS NULL makes the confirm transition land exactly
		// once even with concurrent recomputes, which also gates the
		// notification below.
		res := js.DB.Model(&models.MatchingFlow{}).
			Where("id = ? AND confirmed_at IS NULL AND status <> ?", flow.ID, models.FlowRejected).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected > 0 {
			flow.Status = derived
			flow.ConfirmedAt = &now
			js.Logger.Printf("Flow %d confirmed", flow.ID)
			if err := js.Notifier.FlowConfirmed(context.Background(), flow); err != nil {
				// The flow is confirmed regardless; losing the event is a
				// delivery problem, not a state problem.
				utils.LogError("flow_confirmed_notify_failed", err, map[string]interface{}{
					"flow_id": flow.ID,
				})
			}
			result.Status = models.FlowConfirmed
			return result, nil
		}

		// A concurrent writer got there first (another confirm, or a
		// pass); report whatever actually landed.
		var current models.MatchingFlow
		if err := js.DB.First(&current, flow.ID).Error; err != nil {
			return nil, err
		}
		result.Status = current.Status
		return result, nil
	}

	// Both terminal states are write-once. A rejection may overwrite any
	// non-confirmed status (a pass row always wins over concurrent
	// like-driven recomputes) but never a landed confirmation; a
	// non-terminal derivation never overwrites either terminal state.
	query := js.DB.Model(&models.MatchingFlow{}).Where("id = ?", flow.ID)
	if derived == models.FlowRejected {
		query = query.Where("status <> ?", models.FlowConfirmed)
	} else {
		query = query.Where("status NOT IN ?", []models.FlowStatus{models.FlowConfirmed, models.FlowRejected})
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		// A concurrent writer landed a terminal state first; report it.
		var current models.MatchingFlow
		if err := js.DB.First(&current, flow.ID).Error; err != nil {
			return nil, err
		}
		result.Status = current.Status
		return result, nil
	}

	flow.Status = derived
	result.Status = derived
	return result, nil
}

// derive computes the status a flow should have from its votes and the
// live rosters:
//
//  1. any pass vote -> rejected
//  2. both sides fully liked -> confirmed
//  3. exactly one side fully liked -> pending_other_side
//  4. at least one like -> partial_like
//  5. otherwise -> proposed
//
// A side with zero current members never counts as complete.
func (js *JudgementService) derive(flow *models.MatchingFlow) (*AggregateResult, models.FlowStatus, error) {
	var judgements []models.MemberJudgement
	if err := js.DB.Where("matching_flow_id = ?", flow.ID).Find(&judgements).Error; err != nil {
		return nil, "", err
	}

	fromMembers, err := js.Roster.GetActiveMembers(flow.FromTeamID)
	if err != nil {
		return nil, "", err
	}
	toMembers, err := js.Roster.GetActiveMembers(flow.ToTeamID)
	if err != nil {
		return nil, "", err
	}

	likes := make(map[uint]bool, len(judgements))
	anyPass := false
	for _, j := range judgements {
		switch j.Value {
		case models.JudgementPass:
			anyPass = true
		case models.JudgementLike:
			likes[j.UserID] = true
		}
	}

	fromLikes := countLiked(fromMembers, likes)
	toLikes := countLiked(toMembers, likes)

	result := &AggregateResult{
		FromLikes: fromLikes,
		FromTotal: len(fromMembers),
		ToLikes:   toLikes,
		ToTotal:   len(toMembers),
	}

	if anyPass {
		result.Status = models.FlowRejected
		return result, models.FlowRejected, nil
	}

	fromComplete := len(fromMembers) > 0 && fromLikes == len(fromMembers)
	toComplete := len(toMembers) > 0 && toLikes == len(toMembers)

	var status models.FlowStatus
	switch {
	case fromComplete && toComplete:
		status = models.FlowConfirmed
	case fromComplete || toComplete:
		status = models.FlowPendingOtherSide
	case len(likes) > 0:
		status = models.FlowPartialLike
	default:
		status = models.FlowProposed
	}

	result.Status = status
	return result, status, nil
}

// aggregate returns the current counts without writing anything.
func (js *JudgementService) aggregate(flow *models.MatchingFlow) (*AggregateResult, error) {
	result, _, err := js.derive(flow)
	if err != nil {
		return nil, err
	}
	result.Status = flow.Status
	return result, nil
}

func countLiked(members []uint, likes map[uint]bool) int {
	count := 0
	for _, userID := range members {
		if likes[userID] {
			count++
		}
	}
	return count
}
