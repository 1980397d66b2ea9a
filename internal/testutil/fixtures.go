package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"

	"casei/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// CreateTestUser creates an editor with a hashed password and unique username.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, fmt.Sprintf("user%d", nextID()), models.RoleEditor)
}

// CreateTestAdmin creates an admin user.
func CreateTestAdmin(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	return CreateTestUserWithRole(t, db, fmt.Sprintf("admin%d", nextID()), models.RoleAdmin)
}

// CreateTestUserWithRole creates a user with the given username and role.
func CreateTestUserWithRole(t *testing.T, db *gorm.DB, username string, role models.Role) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Username: username,
		Email:    username + "@test.com",
		Password: string(hash),
		Role:     role,
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestCampaign creates a published campaign row.
func CreateTestCampaign(t *testing.T, db *gorm.DB) *models.Campaign {
	t.Helper()

	n := nextID()
	campaign := &models.Campaign{
		ShortName: fmt.Sprintf("CMP%d", n),
		LongName:  fmt.Sprintf("Test Campaign %d", n),
		StartDate: models.NewDate(2020, 1, 15),
	}
	if err := db.Create(campaign).Error; err != nil {
		t.Fatalf("failed to create test campaign: %v", err)
	}
	return campaign
}

// CreateTestSeason creates a season vocabulary row.
func CreateTestSeason(t *testing.T, db *gorm.DB) *models.Season {
	t.Helper()

	season := &models.Season{LimitedInfo: models.LimitedInfo{ShortName: fmt.Sprintf("Season %d", nextID())}}
	if err := db.Create(season).Error; err != nil {
		t.Fatalf("failed to create test season: %v", err)
	}
	return season
}

// CreateTestGcmdProject creates a GCMD project keyword with the given gcmd uuid.
func CreateTestGcmdProject(t *testing.T, db *gorm.DB, gcmdUUID string) *models.GcmdProject {
	t.Helper()

	project := &models.GcmdProject{
		ShortName: fmt.Sprintf("PRJ%d", nextID()),
		Bucket:    "A - C",
		GcmdUUID:  gcmdUUID,
	}
	if err := db.Create(project).Error; err != nil {
		t.Fatalf("failed to create test gcmd project: %v", err)
	}
	return project
}

// CreateTestChange inserts a change with the given status and a single
// CREATE approval log, bypassing the workflow.
func CreateTestChange(t *testing.T, db *gorm.DB, userID, contentType string, action models.ChangeAction, objectID *string, update map[string]interface{}, status models.ChangeStatus) *models.Change {
	t.Helper()

	change := &models.Change{
		ContentType: contentType,
		ObjectID:    objectID,
		Action:      action,
		Status:      status,
		Update:      datatypes.JSONMap(update),
		Previous:    datatypes.JSONMap{},
		UserID:      &userID,
	}
	if err := db.Create(change).Error; err != nil {
		t.Fatalf("failed to create test change: %v", err)
	}
	log := &models.ApprovalLog{ChangeID: change.ID, UserID: &userID, Action: models.ApprovalCreate}
	if err := db.Create(log).Error; err != nil {
		t.Fatalf("failed to create test approval log: %v", err)
	}
	return change
}
