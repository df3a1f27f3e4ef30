package services

import (
	"testing"

	"crewmeet/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type judgementFixture struct {
	flows    *FlowService
	svc      *JudgementService
	notifier *recordingNotifier
	teamA    *models.Team
	teamB    *models.Team
	userIDs  []uint
	flow     *models.MatchingFlow
}

func newJudgementFixture(t *testing.T) *judgementFixture {
	t.Helper()
	db := setupTestDB(t)
	roster := NewRosterService(db)
	notifier := &recordingNotifier{}
	flows := NewFlowService(db, roster, quietLogger())
	svc := NewJudgementService(db, roster, notifier, quietLogger())

	teamA, teamB, userIDs := buildTwoTeams(t, db)
	flow, err := flows.CreateFlow(teamA.ID, teamB.ID, userIDs[0])
	require.NoError(t, err)

	return &judgementFixture{
		flows:    flows,
		svc:      svc,
		notifier: notifier,
		teamA:    teamA,
		teamB:    teamB,
		userIDs:  userIDs,
		flow:     flow,
	}
}

// sideFor returns the team a fixture user votes from: users 0-1 are on
// team A, users 2-4 on team B.
func (f *judgementFixture) sideFor(index int) uint {
	if index < 2 {
		return f.teamA.ID
	}
	return f.teamB.ID
}

func (f *judgementFixture) submit(t *testing.T, index int, value models.JudgementValue) *AggregateResult {
	t.Helper()
	result, err := f.svc.SubmitJudgement(f.flow.ID, f.userIDs[index], f.sideFor(index), value)
	require.NoError(t, err)
	return result
}

func TestAllMembersLikeConfirmsFlow(t *testing.T) {
	f := newJudgementFixture(t)

	// Interleave the two sides; only the final vote confirms
	order := []int{2, 0, 3, 1, 4}
	for i, idx := range order[:4] {
		result := f.submit(t, idx, models.JudgementLike)
		assert.NotEqual(t, models.FlowConfirmed, result.Status, "vote %d", i)
	}

	result := f.submit(t, order[4], models.JudgementLike)
	assert.Equal(t, models.FlowConfirmed, result.Status)
	assert.Equal(t, 2, result.FromLikes)
	assert.Equal(t, 3, result.ToLikes)

	var flow models.MatchingFlow
	require.NoError(t, f.svc.DB.First(&flow, f.flow.ID).Error)
	assert.Equal(t, models.FlowConfirmed, flow.Status)
	require.NotNil(t, flow.ConfirmedAt)

	// Exactly one confirmation event
	assert.Equal(t, []uint{f.flow.ID}, f.notifier.confirmed)

	// A repeated like after confirmation changes nothing
	confirmedAt := *flow.ConfirmedAt
	f.submit(t, 0, models.JudgementLike)
	require.NoError(t, f.svc.DB.First(&flow, f.flow.ID).Error)
	assert.Equal(t, confirmedAt.Unix(), flow.ConfirmedAt.Unix())
	assert.Len(t, f.notifier.confirmed, 1)
}

func TestPassRejectsDespiteLikes(t *testing.T) {
	f := newJudgementFixture(t)

	f.submit(t, 0, models.JudgementLike)
	f.submit(t, 1, models.JudgementLike)
	f.submit(t, 2, models.JudgementLike)

	result := f.submit(t, 3, models.JudgementPass)
	assert.Equal(t, models.FlowRejected, result.Status)

	// A later like cannot resurrect the flow
	result = f.submit(t, 4, models.JudgementLike)
	assert.Equal(t, models.FlowRejected, result.Status)

	var flow models.MatchingFlow
	require.NoError(t, f.svc.DB.First(&flow, f.flow.ID).Error)
	assert.Equal(t, models.FlowRejected, flow.Status)
	assert.Empty(t, f.notifier.confirmed)
}

func TestResubmissionIsIdempotent(t *testing.T) {
	f := newJudgementFixture(t)

	first := f.submit(t, 0, models.JudgementLike)
	second := f.submit(t, 0, models.JudgementLike)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.FromLikes, second.FromLikes)

	var count int64
	require.NoError(t, f.svc.DB.Model(&models.MemberJudgement{}).
		Where("matching_flow_id = ? AND user_id = ?", f.flow.ID, f.userIDs[0]).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestVoteChangeIsApplied(t *testing.T) {
	f := newJudgementFixture(t)

	result := f.submit(t, 0, models.JudgementLike)
	assert.Equal(t, models.FlowPartialLike, result.Status)

	result = f.submit(t, 0, models.JudgementPass)
	assert.Equal(t, models.FlowRejected, result.Status)

	var count int64
	require.NoError(t, f.svc.DB.Model(&models.MemberJudgement{}).
		Where("matching_flow_id = ?", f.flow.ID).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestFourOfFiveNeverConfirms(t *testing.T) {
	f := newJudgementFixture(t)

	// Side A complete, side B one short
	f.submit(t, 0, models.JudgementLike)
	f.submit(t, 1, models.JudgementLike)
	f.submit(t, 2, models.JudgementLike)
	result := f.submit(t, 3, models.JudgementLike)

	assert.Equal(t, models.FlowPendingOtherSide, result.Status)
	assert.Equal(t, 2, result.FromLikes)
	assert.Equal(t, 2, result.FromTotal)
	assert.Equal(t, 2, result.ToLikes)
	assert.Equal(t, 3, result.ToTotal)

	var flow models.MatchingFlow
	require.NoError(t, f.svc.DB.First(&flow, f.flow.ID).Error)
	assert.Nil(t, flow.ConfirmedAt)
	assert.Empty(t, f.notifier.confirmed)
}

func TestStatusLadder(t *testing.T) {
	f := newJudgementFixture(t)

	// One like on the bigger side: partial
	result := f.submit(t, 2, models.JudgementLike)
	assert.Equal(t, models.FlowPartialLike, result.Status)

	// Smaller side completes: pending the other side
	f.submit(t, 0, models.JudgementLike)
	result = f.submit(t, 1, models.JudgementLike)
	assert.Equal(t, models.FlowPendingOtherSide, result.Status)
}

func TestSubmitValidation(t *testing.T) {
	f := newJudgementFixture(t)

	_, err := f.svc.SubmitJudgement(f.flow.ID, f.userIDs[0], f.teamA.ID, "maybe")
	assert.ErrorIs(t, err, ErrInvalidJudgement)

	_, err = f.svc.SubmitJudgement(9999, f.userIDs[0], f.teamA.ID, models.JudgementLike)
	assert.ErrorIs(t, err, ErrFlowNotFound)

	// Wrong side
	_, err = f.svc.SubmitJudgement(f.flow.ID, f.userIDs[0], f.teamB.ID, models.JudgementLike)
	assert.ErrorIs(t, err, ErrNotAMember)

	// A team not in the flow at all
	other := createTeam(t, f.svc.DB, "other", models.GenderEither, models.GenderEither)
	_, err = f.svc.SubmitJudgement(f.flow.ID, f.userIDs[0], other.ID, models.JudgementLike)
	assert.ErrorIs(t, err, ErrNotAMember)

	// An outsider cannot vote
	outsider := createUser(t, f.svc.DB, "outsider@example.com")
	_, err = f.svc.SubmitJudgement(f.flow.ID, outsider.ID, f.teamA.ID, models.JudgementLike)
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestRejectionNeverOverwritesConfirmation(t *testing.T) {
	f := newJudgementFixture(t)

	// A pass voter reads the flow while it is still live, then stalls.
	var stale models.MatchingFlow
	require.NoError(t, f.svc.DB.First(&stale, f.flow.ID).Error)

	for _, idx := range []int{0, 1, 2, 3, 4} {
		f.submit(t, idx, models.JudgementLike)
	}
	assert.Equal(t, []uint{f.flow.ID}, f.notifier.confirmed)

	// The stalled writer now lands its pass row and recomputes against
	// the stale read. The confirmation must hold.
	require.NoError(t, f.svc.DB.Model(&models.MemberJudgement{}).
		Where("matching_flow_id = ? AND user_id = ?", f.flow.ID, f.userIDs[4]).
		Update("value", models.JudgementPass).Error)

	result, err := f.svc.recomputeStatus(&stale)
	require.NoError(t, err)
	assert.Equal(t, models.FlowConfirmed, result.Status)

	var flow models.MatchingFlow
	require.NoError(t, f.svc.DB.First(&flow, f.flow.ID).Error)
	assert.Equal(t, models.FlowConfirmed, flow.Status)
	require.NotNil(t, flow.ConfirmedAt)
	assert.Len(t, f.notifier.confirmed, 1)
}

func TestRosterIsReadLiveOnRecompute(t *testing.T) {
	f := newJudgementFixture(t)
	db := f.svc.DB
	activeTeams := NewActiveTeamService(db, quietLogger())

	// Everyone but the last member of team B likes
	f.submit(t, 0, models.JudgementLike)
	f.submit(t, 1, models.JudgementLike)
	f.submit(t, 2, models.JudgementLike)
	result := f.submit(t, 3, models.JudgementLike)
	assert.Equal(t, models.FlowPendingOtherSide, result.Status)

	// The holdout leaves the team; a re-vote recomputes against the
	// shrunken roster and confirms.
	require.NoError(t, activeTeams.SetInactiveTeam(f.userIDs[4], f.teamB.ID))

	result = f.submit(t, 3, models.JudgementLike)
	assert.Equal(t, models.FlowConfirmed, result.Status)
	assert.Equal(t, 2, result.ToTotal)
	assert.Equal(t, []uint{f.flow.ID}, f.notifier.confirmed)
}
