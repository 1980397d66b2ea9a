package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"casei/internal/cache"
	"casei/internal/handlers"
	"casei/internal/logger"
	"casei/internal/middleware"
	"casei/internal/models"
	"casei/internal/services"
	"casei/internal/testutil"
	"casei/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB          *gorm.DB
	Router      *gin.Engine
	Users       services.UserServicer
	Permissions services.PermissionServicer
}

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupApp creates the same router the server runs, backed by an isolated
// in-memory SQLite and no Redis.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.SetupTestDB(t)
	cacheService := cache.NewService(nil)

	userService := services.NewUserService(db)
	permissionService := services.NewPermissionService(db, cacheService)
	if err := permissionService.Seed(context.Background()); err != nil {
		t.Fatalf("failed to seed permissions: %v", err)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	handlers.RegisterRoutes(router, handlers.Services{
		Users:           userService,
		Permissions:     permissionService,
		Changes:         services.NewChangeService(db, cacheService),
		ApprovalLogs:    services.NewApprovalLogService(db),
		Published:       services.NewPublishedService(db, cacheService),
		Recommendations: services.NewRecommendationService(db),
		Deploy:          services.NewDeployService(services.DeployConfig{}, http.DefaultClient),
		Audit:           services.NewAuditService(db),
	})

	return &testApp{DB: db, Router: router, Users: userService, Permissions: permissionService}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// data returns the envelope's data object.
func data(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	d, ok := parseJSON(t, rec)["data"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected data object, got %s", rec.Body.String())
	}
	return d
}

// createUser adds a user with the given role and puts it in the matching group.
func (app *testApp) createUser(t *testing.T, username string, role models.Role) *models.User {
	t.Helper()
	user, err := app.Users.CreateUser(username, username+"@test.com", testutil.TestPassword, role)
	if err != nil {
		t.Fatalf("failed to create user %s: %v", username, err)
	}
	if err := app.Permissions.SyncUserGroups(context.Background(), user); err != nil {
		t.Fatalf("failed to sync groups for %s: %v", username, err)
	}
	return user
}

// loginUser logs in and returns the access and refresh tokens.
func (app *testApp) loginUser(t *testing.T, username string) (accessToken, refreshToken string) {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":%q}`, username, testutil.TestPassword)
	rec := app.request(http.MethodPost, "/api/auth/login", body, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", rec.Code, rec.Body.String())
	}
	tokens := data(t, rec)
	return tokens["access"].(string), tokens["refresh"].(string)
}

// userToken creates a user and returns an access token for it.
func (app *testApp) userToken(t *testing.T, username string, role models.Role) string {
	t.Helper()
	app.createUser(t, username, role)
	access, _ := app.loginUser(t, username)
	return access
}
