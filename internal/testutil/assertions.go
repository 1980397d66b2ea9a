package testutil

import (
	"errors"
	"slices"
	"testing"

	"gorm.io/gorm"

	apperrors "casei/internal/errors"
	"casei/internal/models"
)

// AssertAppError checks that err is an *AppError carrying code.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	var appErr *apperrors.AppError
	switch {
	case err == nil:
		t.Fatalf("expected %s, got nil", code)
	case !errors.As(err, &appErr):
		t.Fatalf("expected %s, got %T: %v", code, err, err)
	case appErr.Code != code:
		t.Errorf("expected %s, got %s (%s)", code, appErr.Code, appErr.Message)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertChangeStatus reloads a change and compares its workflow status.
func AssertChangeStatus(t *testing.T, db *gorm.DB, changeID string, want models.ChangeStatus) {
	t.Helper()

	var change models.Change
	if err := db.Select("status").First(&change, "id = ?", changeID).Error; err != nil {
		t.Fatalf("failed to load change %s: %v", changeID, err)
	}
	if change.Status != want {
		t.Errorf("change %s status = %s, want %s", changeID, change.Status, want)
	}
}

// AssertApprovalActions compares the approval log of a change, oldest first,
// against want.
func AssertApprovalActions(t *testing.T, db *gorm.DB, changeID string, want ...models.ApprovalAction) {
	t.Helper()

	var got []models.ApprovalAction
	if err := db.Model(&models.ApprovalLog{}).
		Where("change_id = ?", changeID).
		Order("date ASC, id ASC").
		Pluck("action", &got).Error; err != nil {
		t.Fatalf("failed to load approval logs: %v", err)
	}
	if !slices.Equal(got, want) {
		t.Errorf("approval actions = %v, want %v", got, want)
	}
}
