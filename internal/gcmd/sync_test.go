package gcmd

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gorm.io/gorm"

	"casei/internal/cache"
	"casei/internal/kms"
	"casei/internal/logger"
	"casei/internal/models"
	"casei/internal/registry"
	"casei/internal/services"
	"casei/internal/testutil"
	"casei/internal/validator"
	"casei/internal/workflow"
)

func init() {
	logger.Init("test")
	validator.Register()
}

const (
	acesUUID = "0f6b2d9e-3c1a-4f5e-8a7b-1c2d3e4f5a6b"
	dc3UUID  = "1a2b3c4d-5e6f-4a1b-8c2d-3e4f5a6b7c8d"
)

type fakeSource struct {
	rows map[string][]kms.Keyword
	err  error
}

func (f *fakeSource) FetchKeywordList(_ context.Context, scheme string) ([]kms.Keyword, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.rows[scheme], nil
}

type fixture struct {
	db      *gorm.DB
	src     *fakeSource
	syncer  *Syncer
	changes services.ChangeServicer
	recs    services.RecommendationServicer
}

func setup(t *testing.T) (*fixture, func()) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestUserWithRole(t, db, "admin", models.RoleAdmin)

	src := &fakeSource{rows: map[string][]kms.Keyword{}}
	changes := services.NewChangeService(db, cache.NewService(nil))
	recs := services.NewRecommendationService(db)
	users := services.NewUserService(db)
	return &fixture{
		db:      db,
		src:     src,
		syncer:  NewSyncer(db, src, changes, recs, users, "admin"),
		changes: changes,
		recs:    recs,
	}, func() { testutil.TeardownTestDB(t, db) }
}

func project(shortName, longName, bucket, id string) kms.Keyword {
	return kms.Keyword{"Bucket": bucket, "Short_Name": shortName, "Long_Name": longName, "UUID": id}
}

func entryFor(t *testing.T, res *Result, gcmdUUID string) Entry {
	t.Helper()
	for _, e := range res.Entries {
		if e.GcmdUUID == gcmdUUID {
			return e
		}
	}
	t.Fatalf("no entry for %s in %+v", gcmdUUID, res.Entries)
	return Entry{}
}

func TestSync_CreatesAndPublishesNewKeywords(t *testing.T) {
	f, done := setup(t)
	defer done()

	f.src.rows[kms.SchemeProjects] = []kms.Keyword{
		project("ACES", "Aerosol Cloud Ecosystems", "A - C", acesUUID),
		project("NOPE", "", "NOT APPLICABLE", dc3UUID),
		project("OLD", "", "M - O", "6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
	}

	res, err := f.syncer.Sync(context.Background(), kms.SchemeProjects)
	testutil.AssertNoError(t, err)

	if res.Fetched != 3 || res.Skipped != 2 {
		t.Errorf("expected 3 fetched and 2 skipped, got %d and %d", res.Fetched, res.Skipped)
	}
	if len(res.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", res.Errors)
	}
	entry := entryFor(t, res, acesUUID)
	if entry.Action != models.ChangeActionCreate || !entry.Published {
		t.Errorf("expected published Create entry, got %+v", entry)
	}

	var stored models.GcmdProject
	if err := f.db.Where("gcmd_uuid = ?", acesUUID).First(&stored).Error; err != nil {
		t.Fatalf("expected keyword to be published: %v", err)
	}
	if stored.ShortName != "ACES" || stored.LongName != "Aerosol Cloud Ecosystems" {
		t.Errorf("unexpected stored keyword: %+v", stored)
	}
	if stored.ID != entry.ChangeID {
		t.Errorf("expected keyword id %s to equal change id %s", stored.ID, entry.ChangeID)
	}

	var logs int64
	f.db.Model(&models.ApprovalLog{}).Where("change_id = ?", entry.ChangeID).Count(&logs)
	if logs != 6 {
		t.Errorf("expected 6 approval logs on an auto-published change, got %d", logs)
	}

	want := "Successfully Synced 3 projects gcmd keywords - 1 Create, 0 Update, 0 Delete Change records created!"
	if res.Message() != want {
		t.Errorf("got message %q", res.Message())
	}
}

func TestSync_UnchangedKeywordIsIgnored(t *testing.T) {
	f, done := setup(t)
	defer done()

	stored := testutil.CreateTestGcmdProject(t, f.db, acesUUID)
	f.src.rows[kms.SchemeProjects] = []kms.Keyword{
		project(stored.ShortName, stored.LongName, stored.Bucket, acesUUID),
	}

	res, err := f.syncer.Sync(context.Background(), kms.SchemeProjects)
	testutil.AssertNoError(t, err)
	if len(res.Entries) != 0 {
		t.Errorf("expected no changes, got %+v", res.Entries)
	}
}

func TestSync_ModifiedKeywordOpensUpdate(t *testing.T) {
	f, done := setup(t)
	defer done()
	ctx := context.Background()

	stored := testutil.CreateTestGcmdProject(t, f.db, acesUUID)
	campaign := testutil.CreateTestCampaign(t, f.db)
	if err := f.db.Model(campaign).Association("GcmdProjects").Append(stored); err != nil {
		t.Fatalf("failed to link keyword: %v", err)
	}
	f.src.rows[kms.SchemeProjects] = []kms.Keyword{
		project(stored.ShortName, "Renamed Project", stored.Bucket, acesUUID),
	}

	res, err := f.syncer.Sync(ctx, kms.SchemeProjects)
	testutil.AssertNoError(t, err)

	entry := entryFor(t, res, acesUUID)
	if entry.Action != models.ChangeActionUpdate || entry.Published {
		t.Errorf("expected unpublished Update entry, got %+v", entry)
	}
	if entry.Recommendations != 1 {
		t.Errorf("expected 1 recommendation, got %d", entry.Recommendations)
	}

	recs, err := f.recs.ListForChange(entry.ChangeID)
	testutil.AssertNoError(t, err)
	if recs[0].ContentType != registry.Campaign || recs[0].ObjectID != campaign.ID || recs[0].Result != nil {
		t.Errorf("unexpected recommendation: %+v", recs[0])
	}

	t.Run("rerun_reuses_open_change", func(t *testing.T) {
		f.src.rows[kms.SchemeProjects] = []kms.Keyword{
			project(stored.ShortName, "Renamed Again", stored.Bucket, acesUUID),
		}
		again, err := f.syncer.Sync(ctx, kms.SchemeProjects)
		testutil.AssertNoError(t, err)
		if entryFor(t, again, acesUUID).ChangeID != entry.ChangeID {
			t.Error("expected the open change to be reused")
		}

		var change models.Change
		f.db.Where("id = ?", entry.ChangeID).First(&change)
		if change.Update["long_name"] != "Renamed Again" {
			t.Errorf("expected payload to follow KMS, got %v", change.Update["long_name"])
		}
		var n int64
		f.db.Model(&models.Change{}).Where("content_type = ?", registry.GcmdProject).Count(&n)
		if n != 1 {
			t.Errorf("expected 1 change, got %d", n)
		}
		testutil.AssertChangeStatus(t, f.db, entry.ChangeID, models.StatusInProgress)
		testutil.AssertApprovalActions(t, f.db, entry.ChangeID, models.ApprovalCreate, models.ApprovalEdit)
	})
}

func TestSync_ChangeUnderReviewKeepsPayload(t *testing.T) {
	f, done := setup(t)
	defer done()
	ctx := context.Background()

	stored := testutil.CreateTestGcmdProject(t, f.db, acesUUID)
	f.src.rows[kms.SchemeProjects] = []kms.Keyword{
		project(stored.ShortName, "First edit", stored.Bucket, acesUUID),
	}
	res, err := f.syncer.Sync(ctx, kms.SchemeProjects)
	testutil.AssertNoError(t, err)
	changeID := entryFor(t, res, acesUUID).ChangeID

	author := testutil.CreateTestUserWithRole(t, f.db, "author", models.RoleEditor)
	reviewer := testutil.CreateTestUserWithRole(t, f.db, "reviewer", models.RoleEditor)
	_, err = f.changes.Transition(ctx, author.ID, changeID, workflow.Submit, "")
	testutil.AssertNoError(t, err)
	_, err = f.changes.Transition(ctx, reviewer.ID, changeID, workflow.Claim, "")
	testutil.AssertNoError(t, err)

	f.src.rows[kms.SchemeProjects] = []kms.Keyword{
		project(stored.ShortName, "Second edit", stored.Bucket, acesUUID),
	}
	again, err := f.syncer.Sync(ctx, kms.SchemeProjects)
	testutil.AssertNoError(t, err)

	if len(again.Errors) != 1 || !strings.Contains(again.Errors[0], acesUUID) {
		t.Errorf("expected the keyword to be reported, got %v", again.Errors)
	}
	var change models.Change
	testutil.AssertNoError(t, f.db.Where("id = ?", changeID).First(&change).Error)
	if change.Update["long_name"] != "First edit" {
		t.Errorf("payload under review was rewritten to %v", change.Update["long_name"])
	}
	testutil.AssertChangeStatus(t, f.db, changeID, models.StatusInReview)
	testutil.AssertApprovalActions(t, f.db, changeID,
		models.ApprovalCreate, models.ApprovalSubmit, models.ApprovalClaim)
}

func TestSync_RemovedKeywordOpensDelete(t *testing.T) {
	f, done := setup(t)
	defer done()

	linked := testutil.CreateTestGcmdProject(t, f.db, acesUUID)
	unlinked := testutil.CreateTestGcmdProject(t, f.db, dc3UUID)
	campaign := testutil.CreateTestCampaign(t, f.db)
	if err := f.db.Model(campaign).Association("GcmdProjects").Append(linked); err != nil {
		t.Fatalf("failed to link keyword: %v", err)
	}

	res, err := f.syncer.Sync(context.Background(), kms.SchemeProjects)
	testutil.AssertNoError(t, err)
	if res.Count(models.ChangeActionDelete) != 2 {
		t.Fatalf("expected 2 Delete entries, got %+v", res.Entries)
	}

	held := entryFor(t, res, acesUUID)
	if held.Published || held.Recommendations != 1 {
		t.Errorf("expected linked keyword to wait for review, got %+v", held)
	}
	recs, _ := f.recs.ListForChange(held.ChangeID)
	if recs[0].Result == nil || *recs[0].Result {
		t.Errorf("expected delete recommendation to default to unlink, got %v", recs[0].Result)
	}

	gone := entryFor(t, res, dc3UUID)
	if !gone.Published {
		t.Errorf("expected unlinked keyword delete to publish, got %+v", gone)
	}
	var n int64
	f.db.Unscoped().Model(&models.GcmdProject{}).Where("id = ?", unlinked.ID).Count(&n)
	if n != 0 {
		t.Error("expected unlinked keyword to be removed")
	}
}

func TestSync_AliasMatchHoldsCreate(t *testing.T) {
	f, done := setup(t)
	defer done()

	campaign := testutil.CreateTestCampaign(t, f.db)
	alias := &models.Alias{ContentType: registry.Campaign, ObjectID: campaign.ID, ShortName: "ACES"}
	if err := f.db.Create(alias).Error; err != nil {
		t.Fatalf("failed to create alias: %v", err)
	}
	f.src.rows[kms.SchemeProjects] = []kms.Keyword{project("ACES", "", "A - C", acesUUID)}

	res, err := f.syncer.Sync(context.Background(), kms.SchemeProjects)
	testutil.AssertNoError(t, err)

	entry := entryFor(t, res, acesUUID)
	if entry.Published || entry.Recommendations != 1 {
		t.Errorf("expected Create held for review with 1 recommendation, got %+v", entry)
	}
	var n int64
	f.db.Model(&models.GcmdProject{}).Count(&n)
	if n != 0 {
		t.Errorf("expected no keyword rows before review, got %d", n)
	}
}

func TestSync_Errors(t *testing.T) {
	t.Run("unknown_scheme", func(t *testing.T) {
		f, done := setup(t)
		defer done()
		_, err := f.syncer.Sync(context.Background(), "locations")
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})

	t.Run("fetch_failure", func(t *testing.T) {
		f, done := setup(t)
		defer done()
		f.src.err = errors.New("connection refused")
		_, err := f.syncer.Sync(context.Background(), kms.SchemeProjects)
		testutil.AssertAppError(t, err, "UPSTREAM_ERROR")
	})

	t.Run("unknown_sync_user", func(t *testing.T) {
		f, done := setup(t)
		defer done()
		f.syncer.username = "nobody"
		_, err := f.syncer.Sync(context.Background(), kms.SchemeProjects)
		testutil.AssertAppError(t, err, "USER_NOT_FOUND")
	})
}

func TestSyncAll_DefaultsToEveryScheme(t *testing.T) {
	f, done := setup(t)
	defer done()

	results, err := f.syncer.SyncAll(context.Background(), nil)
	testutil.AssertNoError(t, err)
	if len(results) != len(kms.Schemes()) {
		t.Fatalf("expected %d results, got %d", len(kms.Schemes()), len(results))
	}

	var b strings.Builder
	testutil.AssertNoError(t, WriteReport(&b, results))
	if !strings.HasPrefix(b.String(), "scheme,action,change_id") {
		t.Errorf("unexpected report header: %q", b.String())
	}
}
