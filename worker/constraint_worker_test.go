package worker

import (
	"io"
	"log"
	"testing"
	"time"

	"crewmeet/models"
	"crewmeet/services"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupWorkerDB(t *testing.T) *gorm.DB {
	t.Helper()
	// No partial unique index, so a duplicate active membership can be
	// planted for the sweep to find.
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Team{},
		&models.TeamMembership{},
	))
	return db
}

func TestSweepHealsViolations(t *testing.T) {
	db := setupWorkerDB(t)
	logger := log.New(io.Discard, "", 0)
	enforcer := services.NewActiveTeamService(db, logger)
	cw := NewConstraintWorker(db, enforcer, time.Minute, logger)

	user := models.User{Email: "u@example.com", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	teamA := models.Team{Name: "alpha", IsActive: true, Gender: models.GenderEither, TargetGender: models.GenderEither}
	teamB := models.Team{Name: "bravo", IsActive: true, Gender: models.GenderEither, TargetGender: models.GenderEither}
	require.NoError(t, db.Create(&teamA).Error)
	require.NoError(t, db.Create(&teamB).Error)

	older := time.Now().Add(-time.Hour)
	newer := time.Now()
	require.NoError(t, db.Create(&models.TeamMembership{TeamID: teamA.ID, UserID: user.ID, IsActive: true, ActivatedAt: &older}).Error)
	require.NoError(t, db.Create(&models.TeamMembership{TeamID: teamB.ID, UserID: user.ID, IsActive: true, ActivatedAt: &newer}).Error)

	cw.sweep()

	var count int64
	require.NoError(t, db.Model(&models.TeamMembership{}).
		Where("user_id = ? AND is_active = ?", user.ID, true).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)

	var active models.TeamMembership
	require.NoError(t, db.Where("user_id = ? AND is_active = ?", user.ID, true).First(&active).Error)
	assert.Equal(t, teamB.ID, active.TeamID)
}

func TestSweepNoopOnHealthyData(t *testing.T) {
	db := setupWorkerDB(t)
	logger := log.New(io.Discard, "", 0)
	cw := NewConstraintWorker(db, services.NewActiveTeamService(db, logger), time.Minute, logger)

	user := models.User{Email: "u@example.com", IsActive: true}
	require.NoError(t, db.Create(&user).Error)
	team := models.Team{Name: "alpha", IsActive: true, Gender: models.GenderEither, TargetGender: models.GenderEither}
	require.NoError(t, db.Create(&team).Error)
	now := time.Now()
	require.NoError(t, db.Create(&models.TeamMembership{TeamID: team.ID, UserID: user.ID, IsActive: true, ActivatedAt: &now}).Error)

	cw.sweep()

	var count int64
	require.NoError(t, db.Model(&models.TeamMembership{}).
		Where("user_id = ? AND is_active = ?", user.ID, true).
		Count(&count).Error)
	assert.EqualValues(t, 1, count)
}
