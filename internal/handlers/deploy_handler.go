package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casei/internal/models"
	"casei/internal/services"
)

// DeployHandler triggers the static site rebuild.
type DeployHandler struct {
	deployService services.DeployServicer
	auditService  services.AuditServicer
}

// NewDeployHandler creates a new DeployHandler.
func NewDeployHandler(deployService services.DeployServicer, auditService services.AuditServicer) *DeployHandler {
	return &DeployHandler{deployService: deployService, auditService: auditService}
}

// Deploy dispatches the GitHub deploy workflow
// @Summary     Trigger deploy
// @Tags        admin
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} Response "Deploy triggered"
// @Failure     403 {object} DetailResponse "Missing can_deploy permission"
// @Failure     502 {object} ErrorResponse "GitHub rejected the dispatch"
// @Failure     503 {object} ErrorResponse "Workflow not configured"
// @Router      /admin/deploy [post]
func (h *DeployHandler) Deploy(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	msg, err := h.deployService.Trigger(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditDeploy, "site", "", c.ClientIP(), nil)
	respond(c, http.StatusOK, msg, nil)
}
