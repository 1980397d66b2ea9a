package services

import (
	"context"
	"strings"
	"testing"

	"casei/internal/cache"
	"casei/internal/logger"
	"casei/internal/models"
	"casei/internal/pagination"
	"casei/internal/registry"
	"casei/internal/testutil"
	"casei/internal/validator"
	"casei/internal/workflow"

	"gorm.io/gorm"
)

func init() {
	logger.Init("test")
	validator.Register()
}

func newChangeService(db *gorm.DB) ChangeServicer {
	return NewChangeService(db, cache.NewService(nil))
}

func countLogs(t *testing.T, db *gorm.DB, changeID string) int64 {
	t.Helper()
	var n int64
	db.Model(&models.ApprovalLog{}).Where("change_id = ?", changeID).Count(&n)
	return n
}

// driveToAdminReview takes a change from Created to In Admin Review.
func driveToAdminReview(t *testing.T, svc ChangeServicer, changeID string, editor, admin *models.User) {
	t.Helper()
	ctx := context.Background()
	for _, step := range []struct {
		user   *models.User
		action workflow.Transition
	}{
		{editor, workflow.Submit},
		{editor, workflow.Claim},
		{editor, workflow.Review},
		{admin, workflow.Claim},
	} {
		if _, err := svc.Transition(ctx, step.user.ID, changeID, step.action, ""); err != nil {
			t.Fatalf("%s failed: %v", step.action, err)
		}
	}
}

func campaignPayload(shortName string) map[string]interface{} {
	return map[string]interface{}{
		"short_name": shortName,
		"long_name":  "Airborne Campaign " + shortName,
		"start_date": "2019-06-01",
	}
}

func TestCreateChange(t *testing.T) {
	ctx := context.Background()

	t.Run("create_writes_log", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		user := testutil.CreateTestUser(t, db)

		change, err := svc.CreateChange(ctx, user.ID, registry.Campaign, models.ChangeActionCreate, nil, campaignPayload("ACT"))
		testutil.AssertNoError(t, err)

		if change.Status != models.StatusCreated {
			t.Errorf("expected Created, got %s", change.Status)
		}
		if n := countLogs(t, db, change.ID); n != 1 {
			t.Errorf("expected 1 approval log, got %d", n)
		}
		var campaigns int64
		db.Model(&models.Campaign{}).Count(&campaigns)
		if campaigns != 0 {
			t.Error("creating a change must not touch the campaign table")
		}
	})

	t.Run("update_records_previous", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		user := testutil.CreateTestUser(t, db)
		campaign := testutil.CreateTestCampaign(t, db)

		change, err := svc.CreateChange(ctx, user.ID, registry.Campaign, models.ChangeActionUpdate, &campaign.ID,
			map[string]interface{}{"long_name": "Renamed"})
		testutil.AssertNoError(t, err)

		if got := change.Previous["long_name"]; got != campaign.LongName {
			t.Errorf("expected previous long_name %q, got %v", campaign.LongName, got)
		}
		if _, ok := change.Previous["short_name"]; ok {
			t.Error("previous should only hold keys present in the update")
		}
	})

	t.Run("delete_records_full_snapshot", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		user := testutil.CreateTestUser(t, db)
		season := testutil.CreateTestSeason(t, db)

		change, err := svc.CreateChange(ctx, user.ID, registry.Season, models.ChangeActionDelete, &season.ID, nil)
		testutil.AssertNoError(t, err)

		if change.Previous["short_name"] != season.ShortName {
			t.Errorf("expected snapshot of season, got %v", change.Previous)
		}
	})

	t.Run("unknown_model", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateChange(ctx, user.ID, "spaceship", models.ChangeActionCreate, nil, nil)
		testutil.AssertAppError(t, err, "UNKNOWN_MODEL")
	})

	t.Run("update_missing_object", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		user := testutil.CreateTestUser(t, db)

		missing := "0192f000-0000-7000-8000-000000000000"
		_, err := svc.CreateChange(ctx, user.ID, registry.Campaign, models.ChangeActionUpdate, &missing, map[string]interface{}{"long_name": "x"})
		testutil.AssertAppError(t, err, "OBJECT_NOT_FOUND")
	})

	t.Run("update_without_object_id", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.CreateChange(ctx, user.ID, registry.Campaign, models.ChangeActionUpdate, nil, nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}

func TestTransition_fullPublishFlow(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	svc := newChangeService(db)
	editor := testutil.CreateTestUser(t, db)
	admin := testutil.CreateTestAdmin(t, db)
	season := testutil.CreateTestSeason(t, db)

	payload := campaignPayload("OLYMPEX")
	payload["seasons"] = []interface{}{season.ID}
	change, err := svc.CreateChange(ctx, editor.ID, registry.Campaign, models.ChangeActionCreate, nil, payload)
	testutil.AssertNoError(t, err)

	driveToAdminReview(t, svc, change.ID, editor, admin)

	published, err := svc.Transition(ctx, admin.ID, change.ID, workflow.Publish, "looks good")
	testutil.AssertNoError(t, err)

	if published.Status != models.StatusPublished {
		t.Fatalf("expected Published, got %s", published.Status)
	}
	if published.ObjectID == nil || *published.ObjectID != change.ID {
		t.Fatalf("expected object_id to equal change id, got %v", published.ObjectID)
	}

	var campaign models.Campaign
	if err := db.Preload("Seasons").Where("id = ?", change.ID).First(&campaign).Error; err != nil {
		t.Fatalf("published campaign not found: %v", err)
	}
	if campaign.ShortName != "OLYMPEX" {
		t.Errorf("expected short_name OLYMPEX, got %s", campaign.ShortName)
	}
	if campaign.StartDate.String() != "2019-06-01" {
		t.Errorf("expected start date 2019-06-01, got %s", campaign.StartDate)
	}
	if len(campaign.Seasons) != 1 || campaign.Seasons[0].ID != season.ID {
		t.Errorf("expected season relation, got %+v", campaign.Seasons)
	}

	// create + submit + claim + review + claim + publish
	if n := countLogs(t, db, change.ID); n != 6 {
		t.Errorf("expected 6 approval logs, got %d", n)
	}
	last := published.Logs[len(published.Logs)-1]
	if last.Action != models.ApprovalPublish || last.Notes != "looks good" {
		t.Errorf("unexpected last log %+v", last)
	}

	// Published is terminal
	_, err = svc.Transition(ctx, admin.ID, change.ID, workflow.Publish, "")
	testutil.AssertAppError(t, err, "INVALID_TRANSITION")
	_, err = svc.EditChange(ctx, editor.ID, change.ID, map[string]interface{}{"long_name": "x"}, false)
	testutil.AssertAppError(t, err, "CHANGE_PUBLISHED")
}

func TestTransition_publishUpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("update", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		admin := testutil.CreateTestAdmin(t, db)
		campaign := testutil.CreateTestCampaign(t, db)

		change, err := svc.CreateChange(ctx, editor.ID, registry.Campaign, models.ChangeActionUpdate, &campaign.ID,
			map[string]interface{}{"long_name": "Updated Name", "nasa_led": true})
		testutil.AssertNoError(t, err)

		driveToAdminReview(t, svc, change.ID, editor, admin)
		_, err = svc.Transition(ctx, admin.ID, change.ID, workflow.Publish, "")
		testutil.AssertNoError(t, err)

		var got models.Campaign
		db.Where("id = ?", campaign.ID).First(&got)
		if got.LongName != "Updated Name" || !got.NasaLed {
			t.Errorf("update not applied: %+v", got)
		}
		if got.ShortName != campaign.ShortName {
			t.Errorf("fields outside the update must be kept, got short_name %s", got.ShortName)
		}
	})

	t.Run("delete", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		admin := testutil.CreateTestAdmin(t, db)
		campaign := testutil.CreateTestCampaign(t, db)
		season := testutil.CreateTestSeason(t, db)
		if err := db.Model(campaign).Association("Seasons").Append(season); err != nil {
			t.Fatalf("failed to link season: %v", err)
		}

		change, err := svc.CreateChange(ctx, editor.ID, registry.Season, models.ChangeActionDelete, &season.ID, nil)
		testutil.AssertNoError(t, err)

		driveToAdminReview(t, svc, change.ID, editor, admin)
		_, err = svc.Transition(ctx, admin.ID, change.ID, workflow.Publish, "")
		testutil.AssertNoError(t, err)

		var seasons int64
		db.Unscoped().Model(&models.Season{}).Where("id = ?", season.ID).Count(&seasons)
		if seasons != 0 {
			t.Error("expected season row to be removed")
		}
		var links int64
		db.Table("campaign_seasons").Where("season_id = ?", season.ID).Count(&links)
		if links != 0 {
			t.Errorf("expected join rows to be removed, got %d", links)
		}
	})

	t.Run("invalid_payload_blocks_publish", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		admin := testutil.CreateTestAdmin(t, db)

		change, err := svc.CreateChange(ctx, editor.ID, registry.Campaign, models.ChangeActionCreate, nil,
			map[string]interface{}{"long_name": "Missing short name"})
		testutil.AssertNoError(t, err)

		driveToAdminReview(t, svc, change.ID, editor, admin)
		_, err = svc.Transition(ctx, admin.ID, change.ID, workflow.Publish, "")
		testutil.AssertAppError(t, err, "VALIDATION_FAILED")
		if !strings.Contains(err.Error(), "short_name") {
			t.Errorf("expected message to name short_name, got %q", err.Error())
		}

		reloaded, _ := svc.GetChange(ctx, change.ID)
		if reloaded.Status != models.StatusInAdminReview {
			t.Errorf("failed publish must leave status unchanged, got %s", reloaded.Status)
		}
		// create + submit + claim + review + claim; no publish log
		if n := countLogs(t, db, change.ID); n != 5 {
			t.Errorf("expected 5 approval logs, got %d", n)
		}
	})
}

func TestTransition_permissions(t *testing.T) {
	ctx := context.Background()

	t.Run("editor_cannot_publish", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		change := testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil,
			map[string]interface{}{"short_name": "Summer"}, models.StatusInAdminReview)

		_, err := svc.Transition(ctx, editor.ID, change.ID, workflow.Publish, "")
		testutil.AssertAppError(t, err, "NOT_ADMIN")
		if n := countLogs(t, db, change.ID); n != 1 {
			t.Errorf("rejected transition must not log, got %d logs", n)
		}
	})

	t.Run("editor_cannot_claim_admin_review", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		change := testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil,
			map[string]interface{}{"short_name": "Summer"}, models.StatusAwaitingAdminReview)

		_, err := svc.Transition(ctx, editor.ID, change.ID, workflow.Claim, "")
		testutil.AssertAppError(t, err, "NOT_ADMIN")
	})

	t.Run("wrong_status_message", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		change := testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil,
			map[string]interface{}{"short_name": "Summer"}, models.StatusCreated)

		_, err := svc.Transition(ctx, editor.ID, change.ID, workflow.Review, "")
		testutil.AssertAppError(t, err, "INVALID_TRANSITION")
		if err.Error() != "action failed because status was not one of ['In Review']" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("unknown_change", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)

		_, err := svc.Transition(ctx, editor.ID, "0192f000-0000-7000-8000-000000000000", workflow.Submit, "")
		testutil.AssertAppError(t, err, "CHANGE_NOT_FOUND")
	})
}

func TestTransition_unclaim(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newChangeService(db)
	author := testutil.CreateTestUser(t, db)
	reviewer := testutil.CreateTestUser(t, db)
	other := testutil.CreateTestUser(t, db)
	admin := testutil.CreateTestAdmin(t, db)

	change := testutil.CreateTestChange(t, db, author.ID, registry.Season, models.ChangeActionCreate, nil,
		map[string]interface{}{"short_name": "Winter"}, models.StatusAwaitingReview)

	_, err := svc.Transition(ctx, reviewer.ID, change.ID, workflow.Claim, "")
	testutil.AssertNoError(t, err)

	_, err = svc.Transition(ctx, other.ID, change.ID, workflow.Unclaim, "")
	testutil.AssertAppError(t, err, "NOT_CLAIMANT")

	got, err := svc.Transition(ctx, reviewer.ID, change.ID, workflow.Unclaim, "")
	testutil.AssertNoError(t, err)
	if got.Status != models.StatusAwaitingReview {
		t.Errorf("expected Awaiting Review, got %s", got.Status)
	}

	_, err = svc.Transition(ctx, reviewer.ID, change.ID, workflow.Claim, "")
	testutil.AssertNoError(t, err)
	got, err = svc.Transition(ctx, admin.ID, change.ID, workflow.Unclaim, "")
	testutil.AssertNoError(t, err)
	if got.Status != models.StatusAwaitingReview {
		t.Errorf("admin unclaim: expected Awaiting Review, got %s", got.Status)
	}
}

func TestTransition_rejectReturnsToInProgress(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newChangeService(db)
	editor := testutil.CreateTestUser(t, db)

	change := testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil,
		map[string]interface{}{"short_name": "Spring"}, models.StatusInReview)

	got, err := svc.Transition(ctx, editor.ID, change.ID, workflow.Reject, "needs a long name")
	testutil.AssertNoError(t, err)
	if got.Status != models.StatusInProgress {
		t.Errorf("expected In Progress, got %s", got.Status)
	}

	// A rejected change can be edited and resubmitted
	_, err = svc.EditChange(ctx, editor.ID, change.ID, map[string]interface{}{"long_name": "Spring season"}, false)
	testutil.AssertNoError(t, err)
	_, err = svc.Transition(ctx, editor.ID, change.ID, workflow.Submit, "")
	testutil.AssertNoError(t, err)

	testutil.AssertChangeStatus(t, db, change.ID, models.StatusAwaitingReview)
	testutil.AssertApprovalActions(t, db, change.ID,
		models.ApprovalCreate, models.ApprovalReject, models.ApprovalEdit, models.ApprovalSubmit)
}

func TestEditChange(t *testing.T) {
	ctx := context.Background()

	t.Run("merge_sets_in_progress", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		change := testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil,
			map[string]interface{}{"short_name": "Fall"}, models.StatusCreated)

		got, err := svc.EditChange(ctx, editor.ID, change.ID, map[string]interface{}{"long_name": "Autumn"}, false)
		testutil.AssertNoError(t, err)

		if got.Status != models.StatusInProgress {
			t.Errorf("expected In Progress, got %s", got.Status)
		}
		if got.Update["short_name"] != "Fall" || got.Update["long_name"] != "Autumn" {
			t.Errorf("expected merged update, got %v", got.Update)
		}
		if n := countLogs(t, db, change.ID); n != 2 {
			t.Errorf("expected create + edit logs, got %d", n)
		}
	})

	t.Run("replace", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		change := testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil,
			map[string]interface{}{"short_name": "Fall", "notes_public": "x"}, models.StatusInProgress)

		got, err := svc.EditChange(ctx, editor.ID, change.ID, map[string]interface{}{"short_name": "Autumn"}, true)
		testutil.AssertNoError(t, err)
		if _, ok := got.Update["notes_public"]; ok {
			t.Errorf("replace should drop old keys, got %v", got.Update)
		}
	})

	t.Run("recomputes_previous", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		campaign := testutil.CreateTestCampaign(t, db)

		change, err := svc.CreateChange(context.Background(), editor.ID, registry.Campaign, models.ChangeActionUpdate, &campaign.ID,
			map[string]interface{}{"long_name": "A"})
		testutil.AssertNoError(t, err)

		got, err := svc.EditChange(ctx, editor.ID, change.ID, map[string]interface{}{"funding_agency": "NASA"}, false)
		testutil.AssertNoError(t, err)
		if _, ok := got.Previous["funding_agency"]; !ok {
			t.Errorf("expected previous to include funding_agency, got %v", got.Previous)
		}
	})

	t.Run("not_editable_after_submit", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		change := testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil,
			map[string]interface{}{"short_name": "Fall"}, models.StatusAwaitingReview)

		_, err := svc.EditChange(ctx, editor.ID, change.ID, map[string]interface{}{"long_name": "x"}, false)
		testutil.AssertAppError(t, err, "INVALID_TRANSITION")
	})
}

func TestDeleteChange(t *testing.T) {
	ctx := context.Background()

	t.Run("admin", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		admin := testutil.CreateTestAdmin(t, db)
		change := testutil.CreateTestChange(t, db, admin.ID, registry.Season, models.ChangeActionCreate, nil, nil, models.StatusCreated)

		testutil.AssertNoError(t, svc.DeleteChange(ctx, admin.ID, change.ID))
		_, err := svc.GetChange(ctx, change.ID)
		testutil.AssertAppError(t, err, "CHANGE_NOT_FOUND")
	})

	t.Run("editor_forbidden", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		editor := testutil.CreateTestUser(t, db)
		change := testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil, nil, models.StatusCreated)

		err := svc.DeleteChange(ctx, editor.ID, change.ID)
		testutil.AssertAppError(t, err, "NOT_ADMIN")
	})

	t.Run("published_is_immutable", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := newChangeService(db)
		admin := testutil.CreateTestAdmin(t, db)
		change := testutil.CreateTestChange(t, db, admin.ID, registry.Season, models.ChangeActionCreate, nil, nil, models.StatusPublished)

		err := svc.DeleteChange(ctx, admin.ID, change.ID)
		testutil.AssertAppError(t, err, "CHANGE_PUBLISHED")
	})
}

func TestListChanges(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newChangeService(db)
	editor := testutil.CreateTestUser(t, db)

	testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil, nil, models.StatusCreated)
	testutil.CreateTestChange(t, db, editor.ID, registry.Season, models.ChangeActionCreate, nil, nil, models.StatusInAdminReview)
	testutil.CreateTestChange(t, db, editor.ID, registry.Campaign, models.ChangeActionCreate, nil, nil, models.StatusInAdminReview)

	all, err := svc.ListChanges(ChangeFilter{}, pagination.Request{})
	testutil.AssertNoError(t, err)
	if all.TotalItems != 3 {
		t.Errorf("expected 3 changes, got %d", all.TotalItems)
	}

	seasons, err := svc.ListChanges(ChangeFilter{ContentType: registry.Season}, pagination.Request{})
	testutil.AssertNoError(t, err)
	if seasons.TotalItems != 2 {
		t.Errorf("expected 2 season changes, got %d", seasons.TotalItems)
	}

	unpublished, err := svc.ListUnpublished(pagination.Request{})
	testutil.AssertNoError(t, err)
	if unpublished.TotalItems != 2 {
		t.Errorf("expected 2 unpublished creates, got %d", unpublished.TotalItems)
	}
}

func TestValidateChange(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newChangeService(db)
	editor := testutil.CreateTestUser(t, db)

	good := testutil.CreateTestChange(t, db, editor.ID, registry.FocusArea, models.ChangeActionCreate, nil,
		map[string]interface{}{"short_name": "Clouds", "url": "https://example.com/clouds"}, models.StatusCreated)
	testutil.AssertNoError(t, svc.ValidateChange(good.ID))

	badURL := testutil.CreateTestChange(t, db, editor.ID, registry.FocusArea, models.ChangeActionCreate, nil,
		map[string]interface{}{"short_name": "Clouds", "url": "not a url"}, models.StatusCreated)
	testutil.AssertAppError(t, svc.ValidateChange(badURL.ID), "VALIDATION_FAILED")

	badRelation := testutil.CreateTestChange(t, db, editor.ID, registry.Campaign, models.ChangeActionCreate, nil,
		map[string]interface{}{"short_name": "X", "long_name": "Y", "seasons": []interface{}{"0192f000-0000-7000-8000-000000000000"}},
		models.StatusCreated)
	testutil.AssertAppError(t, svc.ValidateChange(badRelation.ID), "VALIDATION_FAILED")
}

func TestValidateData(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := newChangeService(db)

	t.Run("full_requires_fields", func(t *testing.T) {
		err := svc.ValidateData(registry.Platform, map[string]interface{}{"short_name": "ER-2"}, false)
		testutil.AssertAppError(t, err, "VALIDATION_FAILED")
		if !strings.Contains(err.Error(), "description") {
			t.Errorf("expected description to be reported, got %q", err.Error())
		}
	})

	t.Run("partial_ignores_missing", func(t *testing.T) {
		err := svc.ValidateData(registry.Platform, map[string]interface{}{"short_name": "ER-2"}, true)
		testutil.AssertNoError(t, err)
	})

	t.Run("type_mismatch", func(t *testing.T) {
		err := svc.ValidateData(registry.Platform, map[string]interface{}{"stationary": "yes"}, true)
		testutil.AssertAppError(t, err, "VALIDATION_FAILED")
	})

	t.Run("unknown_model", func(t *testing.T) {
		err := svc.ValidateData("spaceship", nil, true)
		testutil.AssertAppError(t, err, "UNKNOWN_MODEL")
	})
}

func TestPublish_appliesRecommendations(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newChangeService(db)
	recs := NewRecommendationService(db)
	editor := testutil.CreateTestUser(t, db)
	admin := testutil.CreateTestAdmin(t, db)
	keep := testutil.CreateTestCampaign(t, db)
	drop := testutil.CreateTestCampaign(t, db)
	project := testutil.CreateTestGcmdProject(t, db, "6b1a2f2e-6d0c-4d4b-9b8e-8d9a8d1f0c11")
	if err := db.Model(drop).Association("GcmdProjects").Append(project); err != nil {
		t.Fatalf("failed to link project: %v", err)
	}

	change, err := svc.CreateChange(ctx, editor.ID, registry.GcmdProject, models.ChangeActionUpdate, &project.ID,
		map[string]interface{}{"long_name": "Renamed upstream"})
	testutil.AssertNoError(t, err)

	yes, no := true, false
	_, err = recs.Create(change.ID, registry.Campaign, keep.ID, &yes)
	testutil.AssertNoError(t, err)
	_, err = recs.Create(change.ID, registry.Campaign, drop.ID, &no)
	testutil.AssertNoError(t, err)
	_, err = recs.Submit(change.ID)
	testutil.AssertNoError(t, err)

	driveToAdminReview(t, svc, change.ID, editor, admin)
	_, err = svc.Transition(ctx, admin.ID, change.ID, workflow.Publish, "")
	testutil.AssertNoError(t, err)

	var kept models.Campaign
	db.Preload("GcmdProjects").Where("id = ?", keep.ID).First(&kept)
	if len(kept.GcmdProjects) != 1 {
		t.Errorf("expected keyword to be linked to accepted campaign, got %d links", len(kept.GcmdProjects))
	}
	var dropped models.Campaign
	db.Preload("GcmdProjects").Where("id = ?", drop.ID).First(&dropped)
	if len(dropped.GcmdProjects) != 0 {
		t.Errorf("expected keyword to be unlinked from rejected campaign, got %d links", len(dropped.GcmdProjects))
	}
}

func TestCasStatus_staleReadLosesRace(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	svc := newChangeService(db)
	author := testutil.CreateTestUser(t, db)
	first := testutil.CreateTestUserWithRole(t, db, "first_reviewer", models.RoleEditor)
	second := testutil.CreateTestUserWithRole(t, db, "second_reviewer", models.RoleEditor)

	change := testutil.CreateTestChange(t, db, author.ID, registry.Season, models.ChangeActionCreate, nil,
		map[string]interface{}{"short_name": "Monsoon"}, models.StatusAwaitingReview)

	var stale models.Change
	testutil.AssertNoError(t, db.First(&stale, "id = ?", change.ID).Error)

	_, err := svc.Transition(ctx, first.ID, change.ID, workflow.Claim, "")
	testutil.AssertNoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := casStatus(tx, &stale, models.StatusInReview, nil); err != nil {
			return err
		}
		return appendLog(tx, stale.ID, second.ID, models.ApprovalClaim, "")
	})
	testutil.AssertAppError(t, err, "CONCURRENT_TRANSITION")
	if stale.Status != models.StatusAwaitingReview {
		t.Errorf("losing caller's copy moved to %s", stale.Status)
	}

	testutil.AssertChangeStatus(t, db, change.ID, models.StatusInReview)
	testutil.AssertApprovalActions(t, db, change.ID, models.ApprovalCreate, models.ApprovalClaim)

	var claims int64
	db.Model(&models.ApprovalLog{}).Where("change_id = ? AND user_id = ?", change.ID, second.ID).Count(&claims)
	if claims != 0 {
		t.Errorf("expected no log for the losing claim, got %d", claims)
	}
}
