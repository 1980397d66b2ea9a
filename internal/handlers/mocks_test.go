package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"casei/internal/gcmd"
	"casei/internal/logger"
	"casei/internal/models"
	"casei/internal/pagination"
	"casei/internal/services"
	"casei/internal/validator"
	"casei/internal/workflow"
)

// --- mock services ---

type mockUserService struct {
	getUserByIDFn           func(id string) (*models.User, error)
	listUsersFn             func(page pagination.Request) (*pagination.Page[models.User], error)
	updateRoleFn            func(userID string, role models.Role) (*models.User, error)
	attemptLoginFn          func(username, password string) (*models.User, error)
	storeRefreshTokenHashFn func(userID, tokenHash string) error
	getRefreshTokenHashFn   func(userID string) (string, error)
}

func (m *mockUserService) CreateUser(username, email, _ string, role models.Role) (*models.User, error) {
	return &models.User{Username: username, Email: email, Role: role}, nil
}

func (m *mockUserService) GetUserByUsername(username string) (*models.User, error) {
	return &models.User{Username: username}, nil
}

func (m *mockUserService) GetUserByID(id string) (*models.User, error) {
	if m.getUserByIDFn != nil {
		return m.getUserByIDFn(id)
	}
	return &models.User{Base: models.Base{ID: id}}, nil
}

func (m *mockUserService) ListUsers(page pagination.Request) (*pagination.Page[models.User], error) {
	if m.listUsersFn != nil {
		return m.listUsersFn(page)
	}
	result := pagination.NewPage[models.User](nil, 1, 20, 0)
	return &result, nil
}

func (m *mockUserService) UpdateRole(userID string, role models.Role) (*models.User, error) {
	if m.updateRoleFn != nil {
		return m.updateRoleFn(userID, role)
	}
	return &models.User{Base: models.Base{ID: userID}, Role: role}, nil
}

func (m *mockUserService) VerifyPassword(_ *models.User, _ string) bool { return true }

func (m *mockUserService) AttemptLogin(username, password string) (*models.User, error) {
	if m.attemptLoginFn != nil {
		return m.attemptLoginFn(username, password)
	}
	return &models.User{Username: username}, nil
}

func (m *mockUserService) StoreRefreshTokenHash(userID, tokenHash string) error {
	if m.storeRefreshTokenHashFn != nil {
		return m.storeRefreshTokenHashFn(userID, tokenHash)
	}
	return nil
}

func (m *mockUserService) GetRefreshTokenHash(userID string) (string, error) {
	if m.getRefreshTokenHashFn != nil {
		return m.getRefreshTokenHashFn(userID)
	}
	return "", nil
}

type mockPermissionService struct {
	userPermissionsFn func(userID string) ([]string, error)
	syncUserGroupsFn  func(user *models.User) error
}

func (m *mockPermissionService) Seed(context.Context) error { return nil }

func (m *mockPermissionService) SyncUserGroups(_ context.Context, user *models.User) error {
	if m.syncUserGroupsFn != nil {
		return m.syncUserGroupsFn(user)
	}
	return nil
}

func (m *mockPermissionService) UserPermissions(_ context.Context, userID string) ([]string, error) {
	if m.userPermissionsFn != nil {
		return m.userPermissionsFn(userID)
	}
	return []string{}, nil
}

func (m *mockPermissionService) HasPermission(context.Context, string, string) (bool, error) {
	return true, nil
}

type mockChangeService struct {
	createChangeFn    func(userID, contentType string, action models.ChangeAction, objectID *string, update map[string]interface{}) (*models.Change, error)
	getChangeFn       func(changeID string) (*models.Change, error)
	listChangesFn     func(filter services.ChangeFilter, page pagination.Request) (*pagination.Page[models.Change], error)
	listUnpublishedFn func(page pagination.Request) (*pagination.Page[models.Change], error)
	editChangeFn      func(userID, changeID string, update map[string]interface{}, replace bool) (*models.Change, error)
	deleteChangeFn    func(userID, changeID string) error
	transitionFn      func(userID, changeID string, action workflow.Transition, notes string) (*models.Change, error)
	validateChangeFn  func(changeID string) error
	validateDataFn    func(contentType string, data map[string]interface{}, partial bool) error
}

func (m *mockChangeService) CreateChange(_ context.Context, userID, contentType string, action models.ChangeAction, objectID *string, update map[string]interface{}) (*models.Change, error) {
	if m.createChangeFn != nil {
		return m.createChangeFn(userID, contentType, action, objectID, update)
	}
	return &models.Change{ContentType: contentType, Action: action, ObjectID: objectID}, nil
}

func (m *mockChangeService) GetChange(_ context.Context, changeID string) (*models.Change, error) {
	if m.getChangeFn != nil {
		return m.getChangeFn(changeID)
	}
	return &models.Change{Base: models.Base{ID: changeID}}, nil
}

func (m *mockChangeService) ListChanges(filter services.ChangeFilter, page pagination.Request) (*pagination.Page[models.Change], error) {
	if m.listChangesFn != nil {
		return m.listChangesFn(filter, page)
	}
	result := pagination.NewPage[models.Change](nil, 1, 20, 0)
	return &result, nil
}

func (m *mockChangeService) ListUnpublished(page pagination.Request) (*pagination.Page[models.Change], error) {
	if m.listUnpublishedFn != nil {
		return m.listUnpublishedFn(page)
	}
	result := pagination.NewPage[models.Change](nil, 1, 20, 0)
	return &result, nil
}

func (m *mockChangeService) EditChange(_ context.Context, userID, changeID string, update map[string]interface{}, replace bool) (*models.Change, error) {
	if m.editChangeFn != nil {
		return m.editChangeFn(userID, changeID, update, replace)
	}
	return &models.Change{Base: models.Base{ID: changeID}}, nil
}

func (m *mockChangeService) DeleteChange(_ context.Context, userID, changeID string) error {
	if m.deleteChangeFn != nil {
		return m.deleteChangeFn(userID, changeID)
	}
	return nil
}

func (m *mockChangeService) Transition(_ context.Context, userID, changeID string, action workflow.Transition, notes string) (*models.Change, error) {
	if m.transitionFn != nil {
		return m.transitionFn(userID, changeID, action, notes)
	}
	return &models.Change{Base: models.Base{ID: changeID}}, nil
}

func (m *mockChangeService) ValidateChange(changeID string) error {
	if m.validateChangeFn != nil {
		return m.validateChangeFn(changeID)
	}
	return nil
}

func (m *mockChangeService) ValidateData(contentType string, data map[string]interface{}, partial bool) error {
	if m.validateDataFn != nil {
		return m.validateDataFn(contentType, data, partial)
	}
	return nil
}

type mockPublishedService struct {
	listFn func(contentType string, query url.Values) (json.RawMessage, error)
	getFn  func(contentType, id string) (interface{}, error)
}

func (m *mockPublishedService) List(_ context.Context, contentType string, query url.Values) (json.RawMessage, error) {
	if m.listFn != nil {
		return m.listFn(contentType, query)
	}
	return json.RawMessage("[]"), nil
}

func (m *mockPublishedService) Get(contentType, id string) (interface{}, error) {
	if m.getFn != nil {
		return m.getFn(contentType, id)
	}
	return map[string]interface{}{"id": id}, nil
}

type mockApprovalLogService struct {
	listLogsFn func(changeID string, page pagination.Request) (*pagination.Page[models.ApprovalLog], error)
}

func (m *mockApprovalLogService) ListLogs(changeID string, page pagination.Request) (*pagination.Page[models.ApprovalLog], error) {
	if m.listLogsFn != nil {
		return m.listLogsFn(changeID, page)
	}
	result := pagination.NewPage[models.ApprovalLog](nil, 1, 20, 0)
	return &result, nil
}

type mockRecommendationService struct {
	createFn        func(changeID, contentType, objectID string, result *bool) (*models.Recommendation, error)
	listForChangeFn func(changeID string) ([]models.Recommendation, error)
	setResultFn     func(id string, result *bool) (*models.Recommendation, error)
	submitFn        func(changeID string) (int64, error)
}

func (m *mockRecommendationService) Create(changeID, contentType, objectID string, result *bool) (*models.Recommendation, error) {
	if m.createFn != nil {
		return m.createFn(changeID, contentType, objectID, result)
	}
	return &models.Recommendation{ChangeID: changeID, ContentType: contentType, ObjectID: objectID, Result: result}, nil
}

func (m *mockRecommendationService) ListForChange(changeID string) ([]models.Recommendation, error) {
	if m.listForChangeFn != nil {
		return m.listForChangeFn(changeID)
	}
	return []models.Recommendation{}, nil
}

func (m *mockRecommendationService) SetResult(id string, result *bool) (*models.Recommendation, error) {
	if m.setResultFn != nil {
		return m.setResultFn(id, result)
	}
	return &models.Recommendation{Base: models.Base{ID: id}, Result: result}, nil
}

func (m *mockRecommendationService) Submit(changeID string) (int64, error) {
	if m.submitFn != nil {
		return m.submitFn(changeID)
	}
	return 0, nil
}

type mockDeployService struct {
	triggerFn func() (string, error)
}

func (m *mockDeployService) Trigger(context.Context) (string, error) {
	if m.triggerFn != nil {
		return m.triggerFn()
	}
	return "Successfully triggered deployment.", nil
}

type mockGcmdSyncer struct {
	syncAllFn func(schemes []string) ([]*gcmd.Result, error)
}

func (m *mockGcmdSyncer) SyncAll(_ context.Context, schemes []string) ([]*gcmd.Result, error) {
	if m.syncAllFn != nil {
		return m.syncAllFn(schemes)
	}
	return nil, nil
}

type auditCall struct {
	userID                   string
	action                   models.AuditAction
	resourceType, resourceID string
}

type mockAuditService struct {
	calls []auditCall
}

func (m *mockAuditService) Log(userID string, action models.AuditAction, resourceType, resourceID, _ string, _ map[string]interface{}) {
	m.calls = append(m.calls, auditCall{userID, action, resourceType, resourceID})
}

// --- test helpers ---

const (
	testUserID   = "0192f3a4-5b6c-7d8e-9f00-112233445566"
	testChangeID = "0192f3a4-5b6c-7d8e-9f00-aabbccddeeff"
	testObjectID = "0192f3a4-5b6c-7d8e-9f00-000000000001"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

func injectUserID(uid string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("userID", uid)
		c.Next()
	}
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	if result["success"] != false {
		t.Errorf("expected success=false, got %v", result["success"])
	}
	if result["code"] != code {
		t.Errorf("expected error code %q, got %v", code, result["code"])
	}
}

func dataMap(t *testing.T, result map[string]interface{}) map[string]interface{} {
	t.Helper()
	data, ok := result["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %v", result["data"])
	}
	return data
}
