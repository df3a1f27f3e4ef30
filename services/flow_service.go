package services

import (
	"errors"
	"log"
	"time"

	"crewmeet/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FlowService creates and cancels matching flows. Status transitions past
// proposed belong to JudgementService; the only write this service does
// after creation is the terminal cancel.
type FlowService struct {
	DB     *gorm.DB
	Roster *RosterService
	Logger *log.Logger
}

func NewFlowService(db *gorm.DB, roster *RosterService, logger *log.Logger) *FlowService {
	return &FlowService{DB: db, Roster: roster, Logger: logger}
}

// CreateFlow proposes a match from the requesting user's active team to
// another team. On ErrDuplicateFlow the already-existing live flow is
// returned alongside the error so callers can treat the conflict as
// "fetch existing".
func (fs *FlowService) CreateFlow(fromTeamID, toTeamID, requestingUserID uint) (*models.MatchingFlow, error) {
	active, err := fs.Roster.IsActiveMember(fromTeamID, requestingUserID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, ErrNotActiveMember
	}

	fromTeam, err := fs.Roster.GetTeam(fromTeamID)
	if err != nil {
		return nil, err
	}
	toTeam, err := fs.Roster.GetTeam(toTeamID)
	if err != nil {
		return nil, err
	}
	// Disabled teams are not matchable
	if !fromTeam.IsActive || !toTeam.IsActive {
		return nil, ErrTeamNotFound
	}
	if !policiesCompatible(fromTeam, toTeam) {
		return nil, ErrGenderIncompatible
	}

	pairLow, pairHigh := fromTeamID, toTeamID
	if pairLow > pairHigh {
		pairLow, pairHigh = pairHigh, pairLow
	}

	// Fast-path duplicate check so the common conflict returns the
	// existing flow; the partial unique index closes the race window
	// this check leaves open.
	if existing, err := fs.findLiveFlow(pairLow, pairHigh); err != nil {
		return nil, err
	} else if existing != nil {
		return existing, ErrDuplicateFlow
	}

	flow := models.MatchingFlow{
		UUID:       uuid.New().String(),
		FromTeamID: fromTeamID,
		ToTeamID:   toTeamID,
		PairLow:    pairLow,
		PairHigh:   pairHigh,
		Status:     models.FlowProposed,
	}

	if err := fs.DB.Create(&flow).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the race to a concurrent creator; hand back theirs.
			if existing, findErr := fs.findLiveFlow(pairLow, pairHigh); findErr == nil && existing != nil {
				return existing, ErrDuplicateFlow
			}
			return nil, ErrDuplicateFlow
		}
		return nil, err
	}

	fs.Logger.Printf("Flow %d proposed: team %d -> team %d", flow.ID, fromTeamID, toTeamID)
	return &flow, nil
}

// CancelFlow terminates a non-terminal flow. Cancelling a flow that is
// already terminal is a no-op, not an error. The requester must be an
// active member of either side.
func (fs *FlowService) CancelFlow(flowID, requestingUserID uint) error {
	flow, err := fs.GetFlowByID(flowID)
	if err != nil {
		return err
	}

	member, err := fs.memberOfEitherSide(flow, requestingUserID)
	if err != nil {
		return err
	}
	if !member {
		return ErrNotAMember
	}

	if flow.Status.IsTerminal() {
		return nil
	}

	now := time.Now()
	// Guard on non-terminal status so a concurrent confirm or cancel is
	// not overwritten.
	result := fs.DB.Model(&models.MatchingFlow{}).
		Where("id = ? AND status NOT IN ?", flow.ID, []models.FlowStatus{models.FlowConfirmed, models.FlowRejected}).
		Updates(map[string]interface{}{
			"status":       models.FlowRejected,
			"cancelled_at": now,
		})
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected > 0 {
		fs.Logger.Printf("Flow %d cancelled by user %d", flow.ID, requestingUserID)
	}
	return nil
}

func (fs *FlowService) GetFlowByID(flowID uint) (*models.MatchingFlow, error) {
	var flow models.MatchingFlow
	if err := fs.DB.First(&flow, flowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrFlowNotFound
		}
		return nil, err
	}
	return &flow, nil
}

// FlowView is the read projection of a flow for API consumers: the flow
// plus both rosters and per-side like counts. Individual votes are never
// exposed, only aggregates.
type FlowView struct {
	Flow          *models.MatchingFlow `json:"flow"`
	FromMemberIDs []uint               `json:"from_member_ids"`
	ToMemberIDs   []uint               `json:"to_member_ids"`
	FromLikes     int                  `json:"from_likes"`
	ToLikes       int                  `json:"to_likes"`

	// The requesting user's own vote, empty if not yet cast
	CallerJudgement models.JudgementValue `json:"caller_judgement,omitempty"`
}

func (fs *FlowService) GetFlow(flowID, callerUserID uint) (*FlowView, error) {
	flow, err := fs.GetFlowByID(flowID)
	if err != nil {
		return nil, err
	}

	fromMembers, err := fs.Roster.GetActiveMembers(flow.FromTeamID)
	if err != nil {
		return nil, err
	}
	toMembers, err := fs.Roster.GetActiveMembers(flow.ToTeamID)
	if err != nil {
		return nil, err
	}

	var judgements []models.MemberJudgement
	if err := fs.DB.Where("matching_flow_id = ?", flow.ID).Find(&judgements).Error; err != nil {
		return nil, err
	}

	view := FlowView{
		Flow:          flow,
		FromMemberIDs: fromMembers,
		ToMemberIDs:   toMembers,
	}
	for _, j := range judgements {
		if j.UserID == callerUserID {
			view.CallerJudgement = j.Value
		}
		if j.Value != models.JudgementLike {
			continue
		}
		switch j.TeamID {
		case flow.FromTeamID:
			view.FromLikes++
		case flow.ToTeamID:
			view.ToLikes++
		}
	}
	return &view, nil
}

// ListFlowsForTeam returns flows involving the team in either direction,
// newest first.
func (fs *FlowService) ListFlowsForTeam(teamID uint) ([]models.MatchingFlow, error) {
	var flows []models.MatchingFlow
	err := fs.DB.
		Where("from_team_id = ? OR to_team_id = ?", teamID, teamID).
		Order("created_at DESC").
		Find(&flows).Error
	return flows, err
}

func (fs *FlowService) findLiveFlow(pairLow, pairHigh uint) (*models.MatchingFlow, error) {
	var existing models.MatchingFlow
	err := fs.DB.
		Where("pair_low = ? AND pair_high = ? AND status <> ?", pairLow, pairHigh, models.FlowRejected).
		First(&existing).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &existing, nil
}

func (fs *FlowService) memberOfEitherSide(flow *models.MatchingFlow, userID uint) (bool, error) {
	if ok, err := fs.Roster.IsActiveMember(flow.FromTeamID, userID); err != nil || ok {
		return ok, err
	}
	return fs.Roster.IsActiveMember(flow.ToTeamID, userID)
}

// policiesCompatible implements the gender policy check: a side whose
// target is "either" accepts anything; otherwise each side's gender must
// equal the other side's target.
func policiesCompatible(a, b *models.Team) bool {
	if a.TargetGender == models.GenderEither || b.TargetGender == models.GenderEither {
		return true
	}
	return a.TargetGender == b.Gender && b.TargetGender == a.Gender
}
