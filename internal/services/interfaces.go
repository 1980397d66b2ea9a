package services

import (
	"context"
	"encoding/json"
	"net/url"

	"casei/internal/models"
	"casei/internal/pagination"
	"casei/internal/workflow"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(username, email, password string, role models.Role) (*models.User, error)
	GetUserByUsername(username string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	ListUsers(page pagination.Request) (*pagination.Page[models.User], error)
	UpdateRole(userID string, role models.Role) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(username, password string) (*models.User, error)
	StoreRefreshTokenHash(userID string, tokenHash string) error
	GetRefreshTokenHash(userID string) (string, error)
}

// PermissionServicer seeds groups and answers permission checks.
type PermissionServicer interface {
	Seed(ctx context.Context) error
	SyncUserGroups(ctx context.Context, user *models.User) error
	UserPermissions(ctx context.Context, userID string) ([]string, error)
	HasPermission(ctx context.Context, userID, codename string) (bool, error)
}

// ChangeFilter holds optional filter parameters for listing changes.
type ChangeFilter struct {
	Status      *models.ChangeStatus
	ContentType string
	Action      models.ChangeAction
	UserID      string
	ObjectID    string
}

// ChangeServicer defines the contract for the moderated change workflow.
type ChangeServicer interface {
	CreateChange(ctx context.Context, userID, contentType string, action models.ChangeAction, objectID *string, update map[string]interface{}) (*models.Change, error)
	GetChange(ctx context.Context, changeID string) (*models.Change, error)
	ListChanges(filter ChangeFilter, page pagination.Request) (*pagination.Page[models.Change], error)
	ListUnpublished(page pagination.Request) (*pagination.Page[models.Change], error)
	EditChange(ctx context.Context, userID, changeID string, update map[string]interface{}, replace bool) (*models.Change, error)
	DeleteChange(ctx context.Context, userID, changeID string) error
	Transition(ctx context.Context, userID, changeID string, action workflow.Transition, notes string) (*models.Change, error)
	ValidateChange(changeID string) error
	ValidateData(contentType string, data map[string]interface{}, partial bool) error
}

// ApprovalLogServicer lists the audit trail of changes.
type ApprovalLogServicer interface {
	ListLogs(changeID string, page pagination.Request) (*pagination.Page[models.ApprovalLog], error)
}

// PublishedServicer reads live (published) domain data.
type PublishedServicer interface {
	List(ctx context.Context, contentType string, query url.Values) (json.RawMessage, error)
	Get(contentType, id string) (interface{}, error)
}

// RecommendationServicer defines the contract for GCMD recommendations.
type RecommendationServicer interface {
	Create(changeID, contentType, objectID string, result *bool) (*models.Recommendation, error)
	ListForChange(changeID string) ([]models.Recommendation, error)
	SetResult(recommendationID string, result *bool) (*models.Recommendation, error)
	Submit(changeID string) (int64, error)
}

// DeployServicer triggers the static site deploy workflow.
type DeployServicer interface {
	Trigger(ctx context.Context) (string, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID string, action models.AuditAction, resourceType, resourceID, ipAddress string, details map[string]interface{})
}
