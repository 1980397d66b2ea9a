package services

import (
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"casei/internal/logger"
	"casei/internal/models"
)

type auditService struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

// NewAuditService returns an AuditServicer that writes to audit_logs.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db, log: logger.Named("audit")}
}

// Log records one audit entry. A failed insert is logged and swallowed;
// the request that triggered it has already succeeded.
func (s *auditService) Log(userID string, action models.AuditAction, resourceType, resourceID, ipAddress string, details map[string]interface{}) {
	entry := &models.AuditLog{
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		IPAddress:    ipAddress,
	}
	// Pipeline calls have no user row.
	if userID != "" {
		entry.UserID = &userID
	}
	if len(details) > 0 {
		entry.Details = datatypes.JSONMap(details)
	}

	if err := s.db.Create(entry).Error; err != nil {
		s.log.Errorw("failed to write audit entry",
			"error", err,
			"user_id", userID,
			"action", action,
			"resource", resourceType+"/"+resourceID,
		)
	}
}
