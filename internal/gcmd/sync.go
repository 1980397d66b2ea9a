// Package gcmd reconciles the GCMD keyword tables with the KMS keyword lists.
// Differences never touch the keyword tables directly: each one becomes a
// change request, with recommendations for the CASEI objects affected.
package gcmd

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	apperrors "casei/internal/errors"
	"casei/internal/kms"
	"casei/internal/logger"
	"casei/internal/metrics"
	"casei/internal/models"
	"casei/internal/registry"
	"casei/internal/services"
	"casei/internal/workflow"
)

// KeywordSource supplies the current keyword list of a scheme.
type KeywordSource interface {
	FetchKeywordList(ctx context.Context, scheme string) ([]kms.Keyword, error)
}

// publishPath is the transition that moves an auto-published change out of
// each unpublished status.
var publishPath = map[models.ChangeStatus]workflow.Transition{
	models.StatusCreated:             workflow.Submit,
	models.StatusInProgress:          workflow.Submit,
	models.StatusAwaitingReview:      workflow.Claim,
	models.StatusInReview:            workflow.Review,
	models.StatusAwaitingAdminReview: workflow.Claim,
	models.StatusInAdminReview:       workflow.Publish,
}

const publishNotes = "Published automatically by GCMD sync"

// Syncer creates change requests for KMS keyword differences.
type Syncer struct {
	db       *gorm.DB
	source   KeywordSource
	changes  services.ChangeServicer
	recs     services.RecommendationServicer
	users    services.UserServicer
	username string
}

// NewSyncer creates a Syncer that records changes as the given user. The
// user must be an admin for changes to be auto-published.
func NewSyncer(db *gorm.DB, source KeywordSource, changes services.ChangeServicer, recs services.RecommendationServicer, users services.UserServicer, username string) *Syncer {
	return &Syncer{
		db:       db,
		source:   source,
		changes:  changes,
		recs:     recs,
		users:    users,
		username: username,
	}
}

// SyncAll syncs each scheme in turn. A scheme that cannot be fetched stops
// the run.
func (s *Syncer) SyncAll(ctx context.Context, schemes []string) ([]*Result, error) {
	if len(schemes) == 0 {
		schemes = kms.Schemes()
	}
	results := make([]*Result, 0, len(schemes))
	for _, scheme := range schemes {
		res, err := s.Sync(ctx, scheme)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Sync compares one scheme with KMS. New keywords become Create changes,
// modified keywords Update changes, and keywords KMS no longer lists Delete
// changes. An unpublished change for the same keyword is reused. Create and
// Delete changes that affect no CASEI object are published immediately.
func (s *Syncer) Sync(ctx context.Context, scheme string) (*Result, error) {
	ct, ok := ContentTypeForScheme(scheme)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, "unknown GCMD scheme %s", scheme)
	}
	actor, err := s.users.GetUserByUsername(s.username)
	if err != nil {
		return nil, err
	}
	fields, err := modelFields(ct)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	rows, err := s.source.FetchKeywordList(ctx, scheme)
	if err != nil {
		return nil, apperrors.WithMessage(apperrors.ErrUpstream, err.Error())
	}

	res := &Result{Scheme: scheme, Fetched: len(rows), Entries: []Entry{}}
	seen := make(map[string]bool, len(rows))

	for _, row := range rows {
		if !isValidKeyword(scheme, row) {
			res.Skipped++
			continue
		}
		keyword := convertKeyword(scheme, row, fields)
		gcmdUUID := row["UUID"]
		seen[gcmdUUID] = true

		current, err := s.findKeyword(ct, gcmdUUID)
		if err != nil {
			return nil, err
		}
		switch {
		case current == nil:
			s.record(ctx, res, actor.ID, ct, models.ChangeActionCreate, "", keyword)
		case differs(current, keyword):
			s.record(ctx, res, actor.ID, ct, models.ChangeActionUpdate, current["id"].(string), keyword)
		}
	}

	stale, err := s.staleKeywords(ct, seen)
	if err != nil {
		return nil, err
	}
	for _, row := range stale {
		keyword := map[string]interface{}{"gcmd_uuid": row.GcmdUUID}
		s.record(ctx, res, actor.ID, ct, models.ChangeActionDelete, row.ID, keyword)
	}

	logger.Named("gcmd").Infow("gcmd sync finished",
		"scheme", scheme,
		"fetched", res.Fetched,
		"skipped", res.Skipped,
		"create", res.Count(models.ChangeActionCreate),
		"update", res.Count(models.ChangeActionUpdate),
		"delete", res.Count(models.ChangeActionDelete),
		"errors", len(res.Errors),
	)
	return res, nil
}

// record opens or reuses the change for one keyword difference, attaches its
// recommendations and auto-publishes it when nothing needs curating. Failures
// are kept on the result so one bad keyword does not stop the run.
func (s *Syncer) record(ctx context.Context, res *Result, actorID string, ct *registry.ContentType, action models.ChangeAction, objectID string, keyword map[string]interface{}) {
	gcmdUUID, _ := keyword["gcmd_uuid"].(string)
	fail := func(err error) {
		res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", action, gcmdUUID, err))
		logger.Named("gcmd").Warnw("gcmd sync change failed", "action", action, "gcmd_uuid", gcmdUUID, "error", err)
	}

	update := keyword
	if action == models.ChangeActionDelete {
		update = map[string]interface{}{}
	}

	change, err := s.openChange(ct, action, objectID, gcmdUUID)
	if err != nil {
		fail(err)
		return
	}
	if change == nil {
		var target *string
		if objectID != "" {
			target = &objectID
		}
		change, err = s.changes.CreateChange(ctx, actorID, ct.Name, action, target, update)
		if err != nil {
			fail(err)
			return
		}
	} else if !reflect.DeepEqual(map[string]interface{}(change.Update), update) {
		// A change a reviewer has picked up keeps the payload they are reviewing.
		if !workflow.Editable(change.Status) {
			fail(apperrors.Newf(apperrors.ErrInvalidTransition,
				"open change %s is %s and was not updated", change.ID, change.Status))
			return
		}
		change, err = s.changes.EditChange(ctx, actorID, change.ID, update, true)
		if err != nil {
			fail(err)
			return
		}
	}

	recommended, err := s.recommend(change, ct, action, objectID, keyword)
	if err != nil {
		fail(err)
		return
	}

	entry := Entry{
		Action:          action,
		ChangeID:        change.ID,
		GcmdUUID:        gcmdUUID,
		Name:            shortName(keyword),
		Recommendations: recommended,
	}
	if action != models.ChangeActionUpdate && recommended == 0 {
		if err := s.publish(ctx, actorID, change.ID); err != nil {
			fail(err)
		} else {
			entry.Published = true
		}
	}
	res.Entries = append(res.Entries, entry)
	metrics.GcmdSyncChanges.WithLabelValues(res.Scheme, string(action)).Inc()
}

// openChange finds an unpublished change proposing the same action on the
// same keyword. Create changes have no object yet, so they are matched on
// the gcmd_uuid in their payload.
func (s *Syncer) openChange(ct *registry.ContentType, action models.ChangeAction, objectID, gcmdUUID string) (*models.Change, error) {
	q := s.db.Where("content_type = ? AND action = ? AND status < ?", ct.Name, action, models.StatusPublished)
	if action == models.ChangeActionCreate || objectID == "" {
		q = q.Where(datatypes.JSONQuery("update").Equals(gcmdUUID, "gcmd_uuid"))
	} else {
		q = q.Where("object_id = ?", objectID)
	}

	var change models.Change
	if err := q.Order("created_at DESC").First(&change).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &change, nil
}

// recommend adds a recommendation for every CASEI object the change
// affects and returns how many the change holds in total. Objects linked
// to the keyword are affected by updates and deletes; objects whose alias
// matches the keyword name are candidates for creates and updates.
func (s *Syncer) recommend(change *models.Change, ct *registry.ContentType, action models.ChangeAction, objectID string, keyword map[string]interface{}) (int, error) {
	var objects []services.LinkedObject
	if action != models.ChangeActionCreate && objectID != "" {
		linked, err := services.LinkedObjects(s.db, ct.Name, objectID)
		if err != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		objects = append(objects, linked...)
	}
	if action != models.ChangeActionDelete {
		aliased, err := s.aliasedObjects(ct, shortName(keyword))
		if err != nil {
			return 0, err
		}
		objects = append(objects, aliased...)
	}

	var result *bool
	if action == models.ChangeActionDelete {
		keep := false
		result = &keep
	}

	for _, obj := range objects {
		_, err := s.recs.Create(change.ID, obj.ContentType, obj.ObjectID, result)
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && appErr.Code == apperrors.ErrDuplicateRecommendation.Code {
			continue
		}
		if err != nil {
			return 0, err
		}
	}

	all, err := s.recs.ListForChange(change.ID)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Syncer) aliasedObjects(ct *registry.ContentType, name string) ([]services.LinkedObject, error) {
	if name == "" {
		return nil, nil
	}
	var owners []string
	for _, link := range registry.LinkedFrom(ct.Name) {
		owners = append(owners, link.Owner.Name)
	}
	if len(owners) == 0 {
		return nil, nil
	}

	var aliases []models.Alias
	if err := s.db.Where("content_type IN ? AND short_name = ?", owners, name).
		Order("created_at ASC").
		Find(&aliases).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	out := make([]services.LinkedObject, 0, len(aliases))
	for _, a := range aliases {
		out = append(out, services.LinkedObject{ContentType: a.ContentType, ObjectID: a.ObjectID})
	}
	return out, nil
}

// publish walks the change through the remaining review steps as the sync
// user, so the approval log shows every step.
func (s *Syncer) publish(ctx context.Context, actorID, changeID string) error {
	change, err := s.changes.GetChange(ctx, changeID)
	if err != nil {
		return err
	}
	for i := 0; i < len(publishPath) && !change.IsPublished(); i++ {
		next, ok := publishPath[change.Status]
		if !ok {
			return fmt.Errorf("no publish step from status %s", change.Status)
		}
		if change, err = s.changes.Transition(ctx, actorID, changeID, next, publishNotes); err != nil {
			return err
		}
	}
	return nil
}

// findKeyword returns the stored keyword with the given gcmd_uuid as a JSON
// object, or nil when there is none.
func (s *Syncer) findKeyword(ct *registry.ContentType, gcmdUUID string) (map[string]interface{}, error) {
	obj := ct.New()
	if err := s.db.Where("gcmd_uuid = ?", gcmdUUID).First(obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return toMap(obj)
}

type storedKeyword struct {
	ID       string
	GcmdUUID string
}

// staleKeywords returns stored keywords whose gcmd_uuid KMS did not list.
func (s *Syncer) staleKeywords(ct *registry.ContentType, seen map[string]bool) ([]storedKeyword, error) {
	var rows []storedKeyword
	if err := s.db.Model(ct.New()).Select("id", "gcmd_uuid").Order("created_at ASC").Scan(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	var out []storedKeyword
	for _, r := range rows {
		if !seen[r.GcmdUUID] {
			out = append(out, r)
		}
	}
	return out, nil
}

// differs reports whether any field of the KMS keyword disagrees with the
// stored row.
func differs(stored, keyword map[string]interface{}) bool {
	for k, v := range keyword {
		if fmt.Sprint(stored[k]) != fmt.Sprint(v) {
			return true
		}
	}
	return false
}
