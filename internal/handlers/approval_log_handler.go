package handlers

import (
	"github.com/gin-gonic/gin"

	"casei/internal/pagination"
	"casei/internal/services"
)

// ApprovalLogHandler lists the approval trail of change requests.
type ApprovalLogHandler struct {
	approvalLogService services.ApprovalLogServicer
}

// NewApprovalLogHandler creates a new ApprovalLogHandler.
func NewApprovalLogHandler(approvalLogService services.ApprovalLogServicer) *ApprovalLogHandler {
	return &ApprovalLogHandler{approvalLogService: approvalLogService}
}

// ApprovalLogQuery filters the log list by change.
type ApprovalLogQuery struct {
	ChangeID string `form:"change_id" binding:"omitempty,uuid"`
}

// ListLogs returns approval logs oldest first
// @Summary     List approval logs
// @Tags        changes
// @Produce     json
// @Security    BearerAuth
// @Param       change_id query string false "Change UUID"
// @Param       page      query int    false "Page number"
// @Param       page_size query int    false "Items per page"
// @Success     200 {object} Response{data=[]models.ApprovalLog} "Approval logs"
// @Router      /approval_log [get]
func (h *ApprovalLogHandler) ListLogs(c *gin.Context) {
	var q ApprovalLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondWithError(c, bindError(err))
		return
	}
	var page pagination.Request
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	result, err := h.approvalLogService.ListLogs(q.ChangeID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondPage(c, result)
}
