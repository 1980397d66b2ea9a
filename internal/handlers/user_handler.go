package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casei/internal/models"
	"casei/internal/pagination"
	"casei/internal/services"
)

// UserHandler manages operator accounts.
type UserHandler struct {
	userService       services.UserServicer
	permissionService services.PermissionServicer
	auditService      services.AuditServicer
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userService services.UserServicer, permissionService services.PermissionServicer, auditService services.AuditServicer) *UserHandler {
	return &UserHandler{userService: userService, permissionService: permissionService, auditService: auditService}
}

// UpdateRoleRequest sets a user's role: 1 admin, 2 editor.
type UpdateRoleRequest struct {
	Role int `json:"role" binding:"required,role"`
}

// ListUsers returns operator accounts
// @Summary     List users
// @Tags        users
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number"
// @Param       page_size query int false "Items per page"
// @Success     200 {object} Response{data=[]UserResponse} "Users"
// @Failure     403 {object} DetailResponse "Forbidden"
// @Router      /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	var page pagination.Request
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.userService.ListUsers(page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondPage(c, pagination.Map(result, toUserResponse))
}

// UpdateRole changes a user's role and re-syncs their group membership
// @Summary     Update user role
// @Tags        users
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true "User UUID"
// @Param       request body UpdateRoleRequest true "New role"
// @Success     200 {object} Response{data=UserResponse} "Updated user"
// @Failure     400 {object} ErrorResponse "Invalid role"
// @Failure     404 {object} ErrorResponse "User not found"
// @Router      /users/{id}/role [put]
func (h *UserHandler) UpdateRole(c *gin.Context) {
	actorID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	user, err := h.userService.UpdateRole(id, models.Role(req.Role))
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.permissionService.SyncUserGroups(c.Request.Context(), user); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(actorID, models.AuditUpdateRole, "user", id, c.ClientIP(),
		map[string]interface{}{"role": req.Role})
	respond(c, http.StatusOK, "", toUserResponse(user))
}
