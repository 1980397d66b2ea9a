package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"casei/internal/models"
	"casei/internal/services"
)

// RecommendationHandler exposes the GCMD recommendations of a change.
type RecommendationHandler struct {
	recommendationService services.RecommendationServicer
	auditService          services.AuditServicer
}

// NewRecommendationHandler creates a new RecommendationHandler.
func NewRecommendationHandler(recommendationService services.RecommendationServicer, auditService services.AuditServicer) *RecommendationHandler {
	return &RecommendationHandler{recommendationService: recommendationService, auditService: auditService}
}

// CreateRecommendationRequest links a GCMD change to a CASEI object.
type CreateRecommendationRequest struct {
	ContentType string `json:"content_type" binding:"required,content_type"`
	ObjectID    string `json:"object_id" binding:"required,uuid"`
	Result      *bool  `json:"result"`
}

// SetResultRequest holds the curator's decision. A null result clears it.
type SetResultRequest struct {
	Result *bool `json:"result"`
}

// List returns the recommendations of a change
// @Summary     List recommendations
// @Tags        recommendations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Change UUID"
// @Success     200 {object} Response{data=[]models.Recommendation} "Recommendations"
// @Router      /change_request/{id}/recommendations [get]
func (h *RecommendationHandler) List(c *gin.Context) {
	changeID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	recs, err := h.recommendationService.ListForChange(changeID)
	if err != nil {
		respondWithError(c, err)
		return
	}
	respond(c, http.StatusOK, "", recs)
}

// Create adds a recommendation to a change
// @Summary     Create recommendation
// @Tags        recommendations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                      true "Change UUID"
// @Param       request body CreateRecommendationRequest true "Recommendation"
// @Success     201 {object} Response{data=models.Recommendation} "Created"
// @Failure     409 {object} ErrorResponse "Duplicate recommendation"
// @Router      /change_request/{id}/recommendations [post]
func (h *RecommendationHandler) Create(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	changeID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateRecommendationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	rec, err := h.recommendationService.Create(changeID, req.ContentType, req.ObjectID, req.Result)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditCreateRecommendation, "recommendation", rec.ID, c.ClientIP(),
		map[string]interface{}{"change_id": changeID, "object_id": req.ObjectID})
	respond(c, http.StatusCreated, "", rec)
}

// SetResult records the curator's decision on a recommendation
// @Summary     Set recommendation result
// @Tags        recommendations
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string           true "Recommendation UUID"
// @Param       request body SetResultRequest true "Result (true, false or null)"
// @Success     200 {object} Response{data=models.Recommendation} "Updated"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /recommendation/{id} [put]
func (h *RecommendationHandler) SetResult(c *gin.Context) {
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

	var req SetResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, bindError(err))
		return
	}

	rec, err := h.recommendationService.SetResult(id, req.Result)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditSetRecommendation, "recommendation", id, c.ClientIP(),
		map[string]interface{}{"result": req.Result})
	respond(c, http.StatusOK, "", rec)
}

// Submit marks every recommendation of a change as submitted
// @Summary     Submit recommendations
// @Tags        recommendations
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Change UUID"
// @Success     200 {object} Response "Number of submitted recommendations"
// @Router      /change_request/{id}/recommendations/submit [post]
func (h *RecommendationHandler) Submit(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	changeID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	n, err := h.recommendationService.Submit(changeID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, models.AuditSubmitRecommendations, "change", changeID, c.ClientIP(),
		map[string]interface{}{"count": n})
	respond(c, http.StatusOK, "Recommendations submitted", gin.H{"submitted": n})
}
