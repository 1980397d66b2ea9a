package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casei/internal/models"
	"casei/internal/pagination"
	"casei/internal/services"
	"casei/internal/workflow"
)

// ChangeHandler handles change request endpoints.
type ChangeHandler struct {
	changeService services.ChangeServicer
	auditService  services.AuditServicer
}

// NewChangeHandler creates a new ChangeHandler.
func NewChangeHandler(changeService services.ChangeServicer, auditService services.AuditServicer) *ChangeHandler {
	return &ChangeHandler{changeService: changeService, auditService: auditService}
}

// ChangeListQuery holds the optional list filters.
type ChangeListQuery struct {
	Status      *int   `form:"status" binding:"omitempty,change_status"`
	ContentType string `form:"content_type" binding:"omitempty,content_type"`
	Action      string `form:"action" binding:"omitempty,change_action"`
	UserID      string `form:"user_id" binding:"omitempty,uuid"`
	ObjectID    string `form:"object_id" binding:"omitempty,uuid"`
}

// TransitionRequest carries the optional reviewer notes.
type TransitionRequest struct {
	Notes string `json:"notes" binding:"max=2000"`
}

// ValidateDataRequest is the payload of the standalone validation endpoint.
type ValidateDataRequest struct {
	Model   string                 `json:"model" binding:"required,content_type"`
	Data    map[string]interface{} `json:"data" binding:"required"`
	Partial bool                   `json:"partial"`
}

// ListChanges returns change requests
// @Summary     List change requests
// @Tags        changes
// @Produce     json
// @Security    BearerAuth
// @Param       status       query int    false "Status 0-6"
// @Param       content_type query string false "Content type"
// @Param       action       query string false "Create, Update or Delete"
// @Param       user_id      query string false "Author UUID"
// @Param       object_id    query string false "Target object UUID"
// @Param       page         query int    false "Page number"
// @Param       page_size    query int    false "Items per page"
// @Success     200 {object} Response{data=[]models.Change} "Change requests"
// @Failure     400 {object} ErrorResponse "Invalid filter"
// @Router      /change_request [get]
func (h *ChangeHandler) ListChanges(c *gin.Context) {
	var q ChangeListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	var page pagination.Request
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	filter := services.ChangeFilter{
		ContentType: q.ContentType,
		Action:      models.ChangeAction(q.Action),
		UserID:      q.UserID,
		ObjectID:    q.ObjectID,
	}
	if q.Status != nil {
		status := models.ChangeStatus(*q.Status)
		filter.Status = &status
	}

	result, err := h.changeService.ListChanges(filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondPage(c, result)
}

// ListUnpublished returns Create changes that wait for admin review
// @Summary     List unpublished objects
// @Tags        changes
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} Response{data=[]models.Change} "Unpublished Create changes"
// @Router      /unpublished [get]
func (h *ChangeHandler) ListUnpublished(c *gin.Context) {
	var page pagination.Request
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	result, err := h.changeService.ListUnpublished(page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondPage(c, result)
}

// GetChange returns one change request with its approval logs
// @Summary     Get change request
// @Tags        changes
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Change UUID"
// @Success     200 {object} Response{data=models.Change} "Change request"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /change_request/{id} [get]
func (h *ChangeHandler) GetChange(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	change, err := h.changeService.GetChange(c.Request.Context(), id)
	if err != nil {
		respondWithError(c, err)
		return
	}
	respond(c, http.StatusOK, "", change)
}

// PatchChange merges fields into the change payload
// @Summary     Edit change payload (merge)
// @Tags        changes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string true "Change UUID"
// @Param       request body object true "Fields to merge into update"
// @Success     200 {object} Response{data=models.Change} "Updated change request"
// @Failure     400 {object} ErrorResponse "Change is not editable"
// @Router      /change_request/{id} [patch]
func (h *ChangeHandler) PatchChange(c *gin.Context) {
	h.edit(c, false)
}

// ReplaceChange replaces the change payload
// @Summary     Edit change payload (replace)
// @Tags        changes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string true "Change UUID"
// @Param       request body object true "New update payload"
// @Success     200 {object} Response{data=models.Change} "Updated change request"
// @Failure     400 {object} ErrorResponse "Change is not editable"
// @Router      /change_request/{id} [put]
func (h *ChangeHandler) ReplaceChange(c *gin.Context) {
	h.edit(c, true)
}

func (h *ChangeHandler) edit(c *gin.Context, replace bool) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var update map[string]interface{}
	if err := c.ShouldBindJSON(&update); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	change, err := h.changeService.EditChange(c.Request.Context(), userID, id, update, replace)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditEditChange, "change", id, c.ClientIP(),
		map[string]interface{}{"replace": replace})
	respond(c, http.StatusOK, "", change)
}

// DeleteChange removes an unpublished change request
// @Summary     Delete change request
// @Tags        changes
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Change UUID"
// @Success     200 {object} Response "Deleted"
// @Failure     400 {object} ErrorResponse "Change already published"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /change_request/{id} [delete]
func (h *ChangeHandler) DeleteChange(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.changeService.DeleteChange(c.Request.Context(), userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditDeleteChange, "change", id, c.ClientIP(), nil)
	respond(c, http.StatusOK, "Change request deleted", nil)
}

// Transition returns the handler for one workflow action
// @Summary     Move a change request through the workflow
// @Description action is one of submit, claim, unclaim, review, reject, publish
// @Tags        changes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string            true  "Change UUID"
// @Param       action  path string            true  "Workflow action"
// @Param       request body TransitionRequest false "Reviewer notes"
// @Success     200 {object} Response{data=models.Change} "Change moved"
// @Failure     400 {object} ErrorResponse "Transition not allowed from current status"
// @Failure     403 {object} ErrorResponse "Admin or claimant required"
// @Failure     409 {object} ErrorResponse "Concurrent transition"
// @Router      /change_request/{id}/{action} [post]
func (h *ChangeHandler) Transition(action workflow.Transition) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := getUserID(c)
		if err != nil {
			respondWithError(c, err)
			return
		}
		id, err := parsePathID(c, "id")
		if err != nil {
			respondWithError(c, err)
			return
		}

		var req TransitionRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				respondWithError(c, bindError(err))
				return
			}
		}

		change, err := h.changeService.Transition(c.Request.Context(), userID, id, action, req.Notes)
		if err != nil {
			respondWithError(c, err)
			return
		}

		h.auditService.Log(userID, models.AuditTransitionChange, "change", id, c.ClientIP(),
			map[string]interface{}{"action": string(action), "status": int(change.Status)})
		respond(c, http.StatusOK, workflow.SuccessMessage(change.Status), change)
	}
}

// ValidateChange checks a stored change payload against its model
// @Summary     Validate change request
// @Tags        changes
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Change UUID"
// @Success     200 {object} Response "Payload is valid"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Router      /change_request/{id}/validate [post]
func (h *ChangeHandler) ValidateChange(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := h.changeService.ValidateChange(id); err != nil {
		respondWithError(c, err)
		return
	}
	respond(c, http.StatusOK, "Change request is valid", nil)
}

// ValidateData checks arbitrary data against a model
// @Summary     Validate data for a model
// @Tags        changes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body ValidateDataRequest true "Model name and data"
// @Success     200 {object} Response "Data is valid"
// @Failure     400 {object} ErrorResponse "Validation failed"
// @Router      /validate [post]
func (h *ChangeHandler) ValidateData(c *gin.Context) {
	var req ValidateDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	if err := h.changeService.ValidateData(req.Model, req.Data, req.Partial); err != nil {
		respondWithError(c, err)
		return
	}
	respond(c, http.StatusOK, "Data is valid", nil)
}

// transitions lists the workflow actions exposed as sub-routes of a change.
var transitions = []workflow.Transition{
	workflow.Submit, workflow.Claim, workflow.Unclaim,
	workflow.Review, workflow.Reject, workflow.Publish,
}

// TransitionRoutes mounts one POST route per workflow action on rg.
func (h *ChangeHandler) TransitionRoutes(rg *gin.RouterGroup, guards ...gin.HandlerFunc) {
	for _, t := range transitions {
		rg.POST("/:id/"+string(t), chain(guards, h.Transition(t))...)
	}
}
