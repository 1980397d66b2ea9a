package services

import (
	"errors"
	"strings"

	"gorm.io/gorm"

	apperrors "casei/internal/errors"
	"casei/internal/models"
	"casei/internal/registry"
)

// recommendationService records curator judgments on GCMD keyword links.
type recommendationService struct {
	db *gorm.DB
}

// NewRecommendationService creates a new RecommendationServicer.
func NewRecommendationService(db *gorm.DB) RecommendationServicer {
	return &recommendationService{db: db}
}

// Create adds a recommendation for linking the change's keyword to a CASEI
// object. Each object may be recommended once per change.
func (s *recommendationService) Create(changeID, contentType, objectID string, result *bool) (*models.Recommendation, error) {
	change, err := s.openChange(s.db, changeID)
	if err != nil {
		return nil, err
	}
	keyword, ok := registry.Lookup(change.ContentType)
	if !ok || !keyword.IsGcmd() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "recommendations only apply to GCMD keyword changes")
	}
	linked := false
	for _, link := range registry.LinkedFrom(keyword.Name) {
		if link.Owner.Name == contentType {
			linked = true
		}
	}
	if !linked {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput,
			contentType+" cannot hold "+keyword.Name+" keywords")
	}

	rec := &models.Recommendation{
		ChangeID:    changeID,
		ContentType: contentType,
		ObjectID:    objectID,
		Result:      result,
	}
	if err := s.db.Create(rec).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, apperrors.ErrDuplicateRecommendation
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return rec, nil
}

// ListForChange returns every recommendation of a change.
func (s *recommendationService) ListForChange(changeID string) ([]models.Recommendation, error) {
	var count int64
	if err := s.db.Model(&models.Change{}).Where("id = ?", changeID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrChangeNotFound
	}

	recs := []models.Recommendation{}
	if err := s.db.Where("change_id = ?", changeID).Order("created_at ASC").Find(&recs).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return recs, nil
}

// SetResult records a judgment. A nil result marks the recommendation
// undecided. Recommendations of published changes cannot change.
func (s *recommendationService) SetResult(recommendationID string, result *bool) (*models.Recommendation, error) {
	var rec models.Recommendation
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", recommendationID).First(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrRecommendationNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if _, err := s.openChange(tx, rec.ChangeID); err != nil {
			return err
		}
		if err := tx.Model(&rec).Update("result", result).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		rec.Result = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Submit marks every recommendation of the change as submitted and returns
// how many were updated.
func (s *recommendationService) Submit(changeID string) (int64, error) {
	if _, err := s.openChange(s.db, changeID); err != nil {
		return 0, err
	}
	result := s.db.Model(&models.Recommendation{}).
		Where("change_id = ? AND submitted = ?", changeID, false).
		Update("submitted", true)
	if result.Error != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	return result.RowsAffected, nil
}

// openChange loads a change that has not been published.
func (s *recommendationService) openChange(tx *gorm.DB, changeID string) (*models.Change, error) {
	var change models.Change
	if err := tx.Where("id = ?", changeID).First(&change).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrChangeNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if change.IsPublished() {
		return nil, apperrors.ErrChangePublished
	}
	return &change, nil
}

// isUniqueViolation matches the unique constraint errors of Postgres and SQLite.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
