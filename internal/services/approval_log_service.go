package services

import (
	"gorm.io/gorm"

	apperrors "casei/internal/errors"
	"casei/internal/models"
	"casei/internal/pagination"
)

// approvalLogService reads the approval history of changes.
type approvalLogService struct {
	db *gorm.DB
}

// NewApprovalLogService creates a new ApprovalLogServicer.
func NewApprovalLogService(db *gorm.DB) ApprovalLogServicer {
	return &approvalLogService{db: db}
}

// ListLogs returns approval logs oldest first. An empty changeID lists the
// logs of every change.
func (s *approvalLogService) ListLogs(changeID string, req pagination.Request) (*pagination.Page[models.ApprovalLog], error) {
	q := s.db.Model(&models.ApprovalLog{})
	if changeID != "" {
		q = q.Where("change_id = ?", changeID)
	}
	page, err := pagination.Find[models.ApprovalLog](q, req, "date ASC, id ASC", "User")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return page, nil
}
