package models

import "gorm.io/datatypes"

// AuditAction names an operation recorded in the audit trail.
type AuditAction string

const (
	AuditLogin                 AuditAction = "LOGIN"
	AuditUpdateRole            AuditAction = "UPDATE_ROLE"
	AuditCreateChange          AuditAction = "CREATE_CHANGE"
	AuditEditChange            AuditAction = "EDIT_CHANGE"
	AuditDeleteChange          AuditAction = "DELETE_CHANGE"
	AuditTransitionChange      AuditAction = "TRANSITION_CHANGE"
	AuditCreateRecommendation  AuditAction = "CREATE_RECOMMENDATION"
	AuditSetRecommendation     AuditAction = "SET_RECOMMENDATION"
	AuditSubmitRecommendations AuditAction = "SUBMIT_RECOMMENDATIONS"
	AuditDeploy                AuditAction = "DEPLOY"
)

// AuditLog is one row of the operator audit trail. It sits beside the
// approval log: approval logs describe a change's workflow, audit logs
// describe who touched the API and from where.
type AuditLog struct {
	Base
	UserID       *string           `gorm:"type:uuid;index" json:"user_id"`
	Action       AuditAction       `gorm:"not null" json:"action"`
	ResourceType string            `gorm:"not null" json:"resource_type"`
	ResourceID   string            `json:"resource_id"`
	IPAddress    string            `json:"ip_address"`
	Details      datatypes.JSONMap `gorm:"column:changes" json:"details,omitempty"`
}
