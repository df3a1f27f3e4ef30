package models

import (
	"time"

	"gorm.io/gorm"
)

// FlowStatus is the lifecycle state of a MatchingFlow. Flows move strictly
// forward: proposed -> partial_like -> pending_other_side -> confirmed,
// with rejected reachable from any non-terminal state (one pass vote or an
// explicit cancel). confirmed and rejected are terminal.
type FlowStatus string

const (
	FlowProposed         FlowStatus = "proposed"
	FlowPartialLike      FlowStatus = "partial_like"
	FlowPendingOtherSide FlowStatus = "pending_other_side"
	FlowConfirmed        FlowStatus = "confirmed"
	FlowRejected         FlowStatus = "rejected"
)

// IsTerminal reports whether no further status transitions are allowed.
func (s FlowStatus) IsTerminal() bool {
	return s == FlowConfirmed || s == FlowRejected
}

// JudgementValue is a single member's vote on a flow.
type JudgementValue string

const (
	JudgementLike JudgementValue = "like"
	JudgementPass JudgementValue = "pass"
)

// IsValid reports whether the value is one a member may submit.
func (v JudgementValue) IsValid() bool {
	return v == JudgementLike || v == JudgementPass
}

// MatchingFlow is a directed match proposal between two teams.
//
// PairLow/PairHigh hold the two team IDs in normalized order so that a
// partial unique index can guarantee at most one live (non-rejected) flow
// per unordered team pair, regardless of direction.
type MatchingFlow struct {
	gorm.Model
	UUID string `gorm:"uniqueIndex;not null" json:"uuid"`

	FromTeamID uint `gorm:"not null;index" json:"from_team_id"`
	ToTeamID   uint `gorm:"not null;index" json:"to_team_id"`
	PairLow    uint `gorm:"not null" json:"-"`
	PairHigh   uint `gorm:"not null" json:"-"`

	Status      FlowStatus `gorm:"type:varchar(32);not null;default:'proposed'" json:"status"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	// Relations
	FromTeam   Team              `json:"-"`
	ToTeam     Team              `json:"-"`
	Judgements []MemberJudgement `gorm:"foreignKey:MatchingFlowID" json:"judgements,omitempty"`
}

// MemberJudgement records one member's like/pass vote on a flow. One row
// per (flow, user); re-submissions update the row in place. Rows persist
// for the lifetime of the flow so the status derivation can always be
// recomputed from the full vote set.
type MemberJudgement struct {
	gorm.Model
	MatchingFlowID uint `gorm:"not null;uniqueIndex:idx_judgements_flow_user" json:"matching_flow_id"`
	UserID         uint `gorm:"not null;uniqueIndex:idx_judgements_flow_user" json:"user_id"`

	// TeamID records which side of the flow the user voted from
	TeamID uint           `gorm:"not null;index" json:"team_id"`
	Value  JudgementValue `gorm:"type:varchar(16);not null" json:"value"`

	// Relations
	MatchingFlow MatchingFlow `json:"-"`
	User         User         `json:"-"`
}

// MeetIntent records that a member of a confirmed flow still wants to
// meet. Presence of the row is the affirmation; there is no negative
// intent. Kept separate from MemberJudgement so the post-confirmation
// round has its own state.
type MeetIntent struct {
	gorm.Model
	MatchingFlowID uint `gorm:"not null;uniqueIndex:idx_meet_intents_flow_user" json:"matching_flow_id"`
	UserID         uint `gorm:"not null;uniqueIndex:idx_meet_intents_flow_user" json:"user_id"`
	TeamID         uint `gorm:"not null;index" json:"team_id"`

	// Relations
	MatchingFlow MatchingFlow `json:"-"`
	User         User         `json:"-"`
}
