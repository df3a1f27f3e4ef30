package services

import (
	"testing"
	"time"

	"crewmeet/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetActiveTeamSwitches(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActiveTeamService(db, quietLogger())

	user := createUser(t, db, "u@example.com")
	teamA := createTeam(t, db, "alpha", models.GenderEither, models.GenderEither)
	teamC := createTeam(t, db, "charlie", models.GenderEither, models.GenderEither)
	addMember(t, db, teamA.ID, user.ID, true)
	addMember(t, db, teamC.ID, user.ID, false)

	require.NoError(t, svc.SetActiveTeam(user.ID, teamC.ID))

	count, err := svc.GetActiveTeamCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	var active models.TeamMembership
	require.NoError(t, db.Where("user_id = ? AND is_active = ?", user.ID, true).First(&active).Error)
	assert.Equal(t, teamC.ID, active.TeamID)
	assert.NotNil(t, active.ActivatedAt)
}

func TestSetActiveTeamRequiresMembership(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActiveTeamService(db, quietLogger())

	user := createUser(t, db, "u@example.com")
	team := createTeam(t, db, "alpha", models.GenderEither, models.GenderEither)

	err := svc.SetActiveTeam(user.ID, team.ID)
	assert.ErrorIs(t, err, ErrNotAMember)
}

func TestActiveCountStaysAtMostOne(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActiveTeamService(db, quietLogger())

	user := createUser(t, db, "u@example.com")
	var teams []*models.Team
	for _, name := range []string{"alpha", "bravo", "charlie"} {
		team := createTeam(t, db, name, models.GenderEither, models.GenderEither)
		addMember(t, db, team.ID, user.ID, false)
		teams = append(teams, team)
	}

	// Arbitrary activate/deactivate sequence; the invariant must hold
	// after every step.
	steps := []func() error{
		func() error { return svc.SetActiveTeam(user.ID, teams[0].ID) },
		func() error { return svc.SetActiveTeam(user.ID, teams[1].ID) },
		func() error { return svc.SetActiveTeam(user.ID, teams[1].ID) },
		func() error { return svc.SetInactiveTeam(user.ID, teams[1].ID) },
		func() error { return svc.SetActiveTeam(user.ID, teams[2].ID) },
		func() error { return svc.SetInactiveTeam(user.ID, teams[0].ID) },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		count, err := svc.GetActiveTeamCount(user.ID)
		require.NoError(t, err)
		assert.LessOrEqual(t, count, 1, "step %d", i)
	}
}

func TestSetInactiveTeamAllowsZeroActive(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActiveTeamService(db, quietLogger())

	user := createUser(t, db, "u@example.com")
	team := createTeam(t, db, "alpha", models.GenderEither, models.GenderEither)
	addMember(t, db, team.ID, user.ID, true)

	require.NoError(t, svc.SetInactiveTeam(user.ID, team.ID))

	count, err := svc.GetActiveTeamCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	status, err := svc.ValidateConstraint(user.ID)
	require.NoError(t, err)
	assert.True(t, status.IsValid)
	assert.Equal(t, 0, status.ActiveCount)
}

func TestEnforceConstraintHealsViolation(t *testing.T) {
	// No partial unique index here: simulate storage that let a
	// double-activation slip through.
	db := setupTestDBWithoutGuards(t)
	svc := NewActiveTeamService(db, quietLogger())

	user := createUser(t, db, "u@example.com")
	teamA := createTeam(t, db, "alpha", models.GenderEither, models.GenderEither)
	teamB := createTeam(t, db, "bravo", models.GenderEither, models.GenderEither)

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	first := models.TeamMembership{TeamID: teamA.ID, UserID: user.ID, IsActive: true, ActivatedAt: &older}
	second := models.TeamMembership{TeamID: teamB.ID, UserID: user.ID, IsActive: true, ActivatedAt: &newer}
	require.NoError(t, db.Create(&first).Error)
	require.NoError(t, db.Create(&second).Error)

	status, err := svc.ValidateConstraint(user.ID)
	require.NoError(t, err)
	assert.False(t, status.IsValid)
	assert.Equal(t, 2, status.ActiveCount)

	require.NoError(t, svc.EnforceConstraint(user.ID))

	count, err := svc.GetActiveTeamCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The most recently activated membership survives
	var active models.TeamMembership
	require.NoError(t, db.Where("user_id = ? AND is_active = ?", user.ID, true).First(&active).Error)
	assert.Equal(t, teamB.ID, active.TeamID)
}

func TestEnforceConstraintNoopWhenValid(t *testing.T) {
	db := setupTestDB(t)
	svc := NewActiveTeamService(db, quietLogger())

	user := createUser(t, db, "u@example.com")
	team := createTeam(t, db, "alpha", models.GenderEither, models.GenderEither)
	addMember(t, db, team.ID, user.ID, true)

	require.NoError(t, svc.EnforceConstraint(user.ID))

	count, err := svc.GetActiveTeamCount(user.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
