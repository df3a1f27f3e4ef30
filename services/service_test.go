package services

import (
	"context"
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"crewmeet/config"
	"crewmeet/models"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupTestDB opens an in-memory database with the full schema,
// including the partial unique indexes the production migration creates.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))
	return db
}

// setupTestDBWithoutGuards migrates the schema without the partial unique
// indexes, simulating a storage layer that does not enforce the
// one-active-team rule. Used to exercise EnforceConstraint healing.
func setupTestDBWithoutGuards(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMembership{},
		&models.MatchingFlow{},
		&models.MemberJudgement{},
		&models.MeetIntent{},
	))
	return db
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := models.User{Email: email, IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	return &user
}

func createTeam(t *testing.T, db *gorm.DB, name, gender, targetGender string) *models.Team {
	t.Helper()
	team := models.Team{Name: name, IsActive: true, Gender: gender, TargetGender: targetGender}
	require.NoError(t, db.Create(&team).Error)
	return &team
}

func addMember(t *testing.T, db *gorm.DB, teamID, userID uint, active bool) *models.TeamMembership {
	t.Helper()
	membership := models.TeamMembership{TeamID: teamID, UserID: userID, IsActive: active}
	if active {
		now := time.Now()
		membership.ActivatedAt = &now
	}
	require.NoError(t, db.Create(&membership).Error)
	return &membership
}

// buildTwoTeams creates team A with two active members and team B with
// three, both with "either" policies, and returns the teams plus member
// user IDs in order (A members first).
func buildTwoTeams(t *testing.T, db *gorm.DB) (teamA, teamB *models.Team, userIDs []uint) {
	t.Helper()
	teamA = createTeam(t, db, "alpha", models.GenderEither, models.GenderEither)
	teamB = createTeam(t, db, "bravo", models.GenderEither, models.GenderEither)

	for i := 0; i < 5; i++ {
		user := createUser(t, db, fmt.Sprintf("user%d@example.com", i+1))
		if i < 2 {
			addMember(t, db, teamA.ID, user.ID, true)
		} else {
			addMember(t, db, teamB.ID, user.ID, true)
		}
		userIDs = append(userIDs, user.ID)
	}
	return teamA, teamB, userIDs
}

// recordingNotifier captures confirmed-flow events for assertions.
type recordingNotifier struct {
	confirmed []uint
}

func (rn *recordingNotifier) FlowConfirmed(_ context.Context, flow *models.MatchingFlow) error {
	rn.confirmed = append(rn.confirmed, flow.ID)
	return nil
}
