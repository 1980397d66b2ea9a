package services

import (
	"context"
	"errors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"casei/internal/cache"
	apperrors "casei/internal/errors"
	"casei/internal/logger"
	"casei/internal/metrics"
	"casei/internal/models"
	"casei/internal/pagination"
	"casei/internal/registry"
	"casei/internal/workflow"
)

// changeService implements the moderated change workflow. Nothing outside
// Transition(Publish) writes to the domain tables.
type changeService struct {
	db    *gorm.DB
	cache cache.Service
}

// NewChangeService creates a new ChangeServicer.
func NewChangeService(db *gorm.DB, c cache.Service) ChangeServicer {
	return &changeService{db: db, cache: c}
}

// CreateChange records a proposed Create, Update or Delete in the Created
// status together with its CREATE approval log.
func (s *changeService) CreateChange(ctx context.Context, userID, contentType string, action models.ChangeAction, objectID *string, update map[string]interface{}) (*models.Change, error) {
	ct, ok := registry.Lookup(contentType)
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrUnknownModel, "unknown model %s", contentType)
	}
	if !action.Valid() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "action must be one of Create, Update, Delete")
	}
	if action == models.ChangeActionCreate && objectID != nil {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "create changes cannot target an existing object")
	}
	if action != models.ChangeActionCreate && (objectID == nil || *objectID == "") {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "object_id is required for update and delete changes")
	}
	if update == nil {
		update = map[string]interface{}{}
	}

	change := &models.Change{
		ContentType: ct.Name,
		ObjectID:    objectID,
		Action:      action,
		Status:      models.StatusCreated,
		Update:      datatypes.JSONMap(update),
		Previous:    datatypes.JSONMap{},
		UserID:      optionalID(userID),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		previous, err := s.previousFor(tx, ct, change)
		if err != nil {
			return err
		}
		change.Previous = previous

		if err := tx.Create(change).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return appendLog(tx, change.ID, userID, models.ApprovalCreate, "")
	})
	if err != nil {
		return nil, err
	}

	metrics.ChangeTransitions.WithLabelValues(models.ApprovalCreate.String(), ct.Name).Inc()
	return change, nil
}

// GetChange retrieves a change with its author and approval history.
func (s *changeService) GetChange(ctx context.Context, changeID string) (*models.Change, error) {
	var change models.Change
	err := s.db.WithContext(ctx).Preload("User").
		Preload("Logs", func(db *gorm.DB) *gorm.DB { return db.Order("date ASC") }).
		Preload("Logs.User").
		Where("id = ?", changeID).
		First(&change).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrChangeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &change, nil
}

// ListChanges retrieves a paginated, filtered list of changes, newest first.
func (s *changeService) ListChanges(filter ChangeFilter, req pagination.Request) (*pagination.Page[models.Change], error) {
	page, err := pagination.Find[models.Change](applyChangeFilters(s.db.Model(&models.Change{}), filter), req, "updated_at DESC", "User")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return page, nil
}

// ListUnpublished returns Create changes waiting in admin review.
func (s *changeService) ListUnpublished(page pagination.Request) (*pagination.Page[models.Change], error) {
	status := models.StatusInAdminReview
	return s.ListChanges(ChangeFilter{Status: &status, Action: models.ChangeActionCreate}, page)
}

func applyChangeFilters(q *gorm.DB, f ChangeFilter) *gorm.DB {
	if f.Status != nil {
		q = q.Where("status = ?", *f.Status)
	}
	if f.ContentType != "" {
		q = q.Where("content_type = ?", f.ContentType)
	}
	if f.Action != "" {
		q = q.Where("action = ?", f.Action)
	}
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.ObjectID != "" {
		q = q.Where("object_id = ?", f.ObjectID)
	}
	return q
}

// EditChange replaces (or merges into) the payload of a change that has not
// been submitted yet. The change moves to In Progress and an EDIT log is
// written in the same transaction.
func (s *changeService) EditChange(ctx context.Context, userID, changeID string, update map[string]interface{}, replace bool) (*models.Change, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		change, err := lockChange(tx, changeID)
		if err != nil {
			return err
		}
		if change.IsPublished() {
			return apperrors.ErrChangePublished
		}
		if !workflow.Editable(change.Status) {
			return apperrors.WithMessage(apperrors.ErrInvalidTransition,
				"action failed because status was not one of ['Created', 'In Progress']")
		}

		next := update
		if !replace {
			next = mergeMaps(change.Update, update)
		}
		if next == nil {
			next = map[string]interface{}{}
		}
		change.Update = datatypes.JSONMap(next)

		ct, ok := registry.Lookup(change.ContentType)
		if !ok {
			return apperrors.Newf(apperrors.ErrUnknownModel, "unknown model %s", change.ContentType)
		}
		previous, err := s.previousFor(tx, ct, change)
		if err != nil {
			return err
		}

		if err := casStatus(tx, change, models.StatusInProgress, map[string]interface{}{
			"update":   change.Update,
			"previous": previous,
		}); err != nil {
			return err
		}
		return appendLog(tx, change.ID, userID, models.ApprovalEdit, "")
	})
	if err != nil {
		return nil, err
	}
	return s.GetChange(ctx, changeID)
}

// DeleteChange removes an unpublished change. Only admins may delete.
func (s *changeService) DeleteChange(ctx context.Context, userID, changeID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		actor, err := loadActor(tx, userID)
		if err != nil {
			return err
		}
		if !actor.IsAdmin {
			return apperrors.ErrNotAdmin
		}
		change, err := lockChange(tx, changeID)
		if err != nil {
			return err
		}
		if change.IsPublished() {
			return apperrors.ErrChangePublished
		}
		if err := tx.Where("change_id = ?", change.ID).Delete(&models.Recommendation{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(change).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// Transition moves a change along the review workflow. The status update is
// guarded on the status that was read, and exactly one approval log is
// appended in the same transaction. Publishing also applies the payload to
// the live tables.
func (s *changeService) Transition(ctx context.Context, userID, changeID string, action workflow.Transition, notes string) (*models.Change, error) {
	var step workflow.Step
	var contentType string

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		change, err := lockChange(tx, changeID)
		if err != nil {
			return err
		}
		contentType = change.ContentType

		actor, err := loadActor(tx, userID)
		if err != nil {
			return err
		}
		if action == workflow.Unclaim {
			if actor.ClaimedBy, err = claimant(tx, change.ID); err != nil {
				return err
			}
		}

		step, err = workflow.Next(action, change.Status, actor)
		if err != nil {
			return err
		}

		extra := map[string]interface{}{}
		if action == workflow.Publish {
			if err := s.apply(tx, change); err != nil {
				return err
			}
			extra["object_id"] = change.ObjectID
		}

		if err := casStatus(tx, change, step.To, extra); err != nil {
			return err
		}
		return appendLog(tx, change.ID, userID, step.Log, notes)
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrConcurrentTransition) {
			metrics.ChangeConflicts.Inc()
		}
		return nil, err
	}

	metrics.ChangeTransitions.WithLabelValues(step.Log.String(), contentType).Inc()
	logger.Get().Infow("change transitioned",
		"change_id", changeID,
		"action", string(action),
		"from", step.From.String(),
		"to", step.To.String(),
		"user_id", userID,
	)

	if action == workflow.Publish {
		s.invalidatePublished(ctx, contentType)
	}
	return s.GetChange(ctx, changeID)
}

// ValidateChange checks that the change would publish cleanly without
// writing anything.
func (s *changeService) ValidateChange(changeID string) error {
	var change models.Change
	if err := s.db.Where("id = ?", changeID).First(&change).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrChangeNotFound
		}
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	ct, ok := registry.Lookup(change.ContentType)
	if !ok {
		return apperrors.Newf(apperrors.ErrUnknownModel, "unknown model %s", change.ContentType)
	}

	switch change.Action {
	case models.ChangeActionDelete:
		_, err := loadObject(s.db, ct, deref(change.ObjectID), false)
		return err
	case models.ChangeActionUpdate:
		obj, err := loadObject(s.db, ct, deref(change.ObjectID), false)
		if err != nil {
			return err
		}
		return buildObject(s.db, ct, obj, change.Update)
	default:
		return buildObject(s.db, ct, ct.New(), change.Update)
	}
}

// ValidateData validates arbitrary data against a model. With partial set,
// fields absent from data are not required.
func (s *changeService) ValidateData(contentType string, data map[string]interface{}, partial bool) error {
	ct, ok := registry.Lookup(contentType)
	if !ok {
		return apperrors.Newf(apperrors.ErrUnknownModel, "unknown model %s", contentType)
	}
	fields, relations := splitPayload(ct, data)
	obj := ct.New()
	if err := decodeInto(obj, fields); err != nil {
		return err
	}
	if err := validateObject(obj, fields, partial); err != nil {
		return err
	}
	return checkRelations(s.db, ct, relations)
}

// buildObject decodes payload onto obj and validates the result and its
// relation ids.
func buildObject(tx *gorm.DB, ct *registry.ContentType, obj any, payload map[string]interface{}) error {
	fields, relations := splitPayload(ct, payload)
	if err := decodeInto(obj, fields); err != nil {
		return err
	}
	if err := validateObject(obj, fields, false); err != nil {
		return err
	}
	return checkRelations(tx, ct, relations)
}

// apply writes the change payload to the live tables.
func (s *changeService) apply(tx *gorm.DB, change *models.Change) error {
	ct, ok := registry.Lookup(change.ContentType)
	if !ok {
		return apperrors.Newf(apperrors.ErrUnknownModel, "unknown model %s", change.ContentType)
	}
	fields, relations := splitPayload(ct, change.Update)

	switch change.Action {
	case models.ChangeActionCreate:
		// The new row takes the change's id so the two stay linked.
		fields["id"] = change.ID
		obj := ct.New()
		if err := decodeInto(obj, fields); err != nil {
			return err
		}
		if err := validateObject(obj, fields, false); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Create(obj).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrValidationFailed, err)
		}
		if err := setRelations(tx, ct, obj, relations); err != nil {
			return err
		}
		id := change.ID
		change.ObjectID = &id
		return s.applyRecommendations(tx, ct, change)

	case models.ChangeActionUpdate:
		obj, err := loadObject(tx, ct, deref(change.ObjectID), false)
		if err != nil {
			return err
		}
		if err := decodeInto(obj, fields); err != nil {
			return err
		}
		if err := validateObject(obj, fields, false); err != nil {
			return err
		}
		if err := tx.Omit(clause.Associations).Save(obj).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrValidationFailed, err)
		}
		if err := setRelations(tx, ct, obj, relations); err != nil {
			return err
		}
		return s.applyRecommendations(tx, ct, change)

	case models.ChangeActionDelete:
		obj, err := loadObject(tx, ct, deref(change.ObjectID), false)
		if err != nil {
			return err
		}
		return deleteObject(tx, ct, obj, deref(change.ObjectID))
	}
	return apperrors.Newf(apperrors.ErrInvalidInput, "unknown change action %s", change.Action)
}

// applyRecommendations connects or disconnects a published GCMD keyword
// from the CASEI objects curators judged. Undecided and unsubmitted
// recommendations are ignored.
func (s *changeService) applyRecommendations(tx *gorm.DB, ct *registry.ContentType, change *models.Change) error {
	if !ct.IsGcmd() {
		return nil
	}
	var recs []models.Recommendation
	if err := tx.Where("change_id = ? AND submitted = ? AND result IS NOT NULL", change.ID, true).
		Find(&recs).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if len(recs) == 0 {
		return nil
	}

	keyword, err := loadObject(tx, ct, deref(change.ObjectID), false)
	if err != nil {
		return err
	}
	links := registry.LinkedFrom(ct.Name)
	for _, rec := range recs {
		var link *registry.Linking
		for i := range links {
			if links[i].Owner.Name == rec.ContentType {
				link = &links[i]
			}
		}
		if link == nil {
			logger.Get().Warnw("recommendation targets a model without a keyword relation",
				"recommendation_id", rec.ID, "content_type", rec.ContentType, "keyword_type", ct.Name)
			continue
		}
		owner, err := loadObject(tx, link.Owner, rec.ObjectID, false)
		if errors.Is(err, apperrors.ErrObjectMissing) {
			continue
		}
		if err != nil {
			return err
		}
		assoc := tx.Model(owner).Association(link.Relation.Field)
		if *rec.Result {
			err = assoc.Append(keyword)
		} else {
			err = assoc.Delete(keyword)
		}
		if err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return nil
}

// previousFor snapshots the live values the change would overwrite.
func (s *changeService) previousFor(tx *gorm.DB, ct *registry.ContentType, change *models.Change) (datatypes.JSONMap, error) {
	switch change.Action {
	case models.ChangeActionUpdate:
		prev, err := snapshot(tx, ct, deref(change.ObjectID), change.Update)
		if err != nil {
			return nil, err
		}
		return datatypes.JSONMap(prev), nil
	case models.ChangeActionDelete:
		prev, err := snapshot(tx, ct, deref(change.ObjectID), nil)
		if err != nil {
			return nil, err
		}
		return datatypes.JSONMap(prev), nil
	}
	return datatypes.JSONMap{}, nil
}

func (s *changeService) invalidatePublished(ctx context.Context, contentType string) {
	types := []string{contentType}
	for _, link := range registry.LinkedFrom(contentType) {
		types = append(types, link.Owner.Name)
	}
	for _, t := range types {
		if err := s.cache.InvalidatePublished(ctx, t); err != nil {
			logger.Get().Warnw("failed to invalidate published cache", "error", err, "content_type", t)
		}
	}
}

// lockChange reads a change for update. SELECT ... FOR UPDATE is skipped on
// SQLite, where the transaction already serializes writers.
func lockChange(tx *gorm.DB, changeID string) (*models.Change, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var change models.Change
	if err := q.Where("id = ?", changeID).First(&change).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrChangeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &change, nil
}

// casStatus moves the change from the status it was read with to next.
// Zero rows affected means another request moved it first.
func casStatus(tx *gorm.DB, change *models.Change, next models.ChangeStatus, extra map[string]interface{}) error {
	updates := map[string]interface{}{"status": next}
	for k, v := range extra {
		updates[k] = v
	}
	result := tx.Model(&models.Change{}).
		Where("id = ? AND status = ?", change.ID, change.Status).
		Updates(updates)
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrConcurrentTransition
	}
	change.Status = next
	return nil
}

func appendLog(tx *gorm.DB, changeID, userID string, action models.ApprovalAction, notes string) error {
	entry := &models.ApprovalLog{
		ChangeID: changeID,
		UserID:   optionalID(userID),
		Action:   action,
		Notes:    notes,
	}
	if err := tx.Create(entry).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func loadActor(tx *gorm.DB, userID string) (workflow.Actor, error) {
	var user models.User
	if err := tx.Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return workflow.Actor{}, apperrors.ErrUserNotFound
		}
		return workflow.Actor{}, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return workflow.Actor{UserID: user.ID, IsAdmin: user.IsAdmin()}, nil
}

// claimant returns the user of the most recent CLAIM log.
func claimant(tx *gorm.DB, changeID string) (string, error) {
	var entry models.ApprovalLog
	err := tx.Where("change_id = ? AND action = ?", changeID, models.ApprovalClaim).
		Order("date DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return deref(entry.UserID), nil
}

func optionalID(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
