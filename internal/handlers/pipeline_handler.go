package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"casei/internal/gcmd"
	"casei/internal/logger"
)

// GcmdSyncer reconciles GCMD keyword schemes with the stored keywords.
type GcmdSyncer interface {
	SyncAll(ctx context.Context, schemes []string) ([]*gcmd.Result, error)
}

// PipelineHandler serves the machine-to-machine sync endpoints.
type PipelineHandler struct {
	syncer    GcmdSyncer
	reportDir string
}

// NewPipelineHandler creates a new PipelineHandler. An empty reportDir
// disables the CSV report.
func NewPipelineHandler(syncer GcmdSyncer, reportDir string) *PipelineHandler {
	return &PipelineHandler{syncer: syncer, reportDir: reportDir}
}

// GcmdSyncRequest selects the schemes to sync. Empty means all of them.
type GcmdSyncRequest struct {
	Schemes []string `json:"schemes" binding:"omitempty,dive,oneof=instruments projects platforms sciencekeywords"`
}

// SyncGcmd runs a GCMD keyword sync
// @Summary     Sync GCMD keywords
// @Description Fetches KMS keyword lists and opens change requests for every difference
// @Tags        pipeline
// @Accept      json
// @Produce     json
// @Security    PipelineKey
// @Param       request body GcmdSyncRequest false "Schemes to sync"
// @Success     200 {object} Response{data=[]gcmd.Result} "Sync results"
// @Failure     401 {object} ErrorResponse "Invalid API key"
// @Failure     502 {object} ErrorResponse "KMS request failed"
// @Router      /pipeline/gcmd/sync [post]
func (h *PipelineHandler) SyncGcmd(c *gin.Context) {
	var req GcmdSyncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, bindError(err))
			return
		}
	}

	results, err := h.syncer.SyncAll(c.Request.Context(), req.Schemes)
	if err != nil {
		respondWithError(c, err)
		return
	}

	message := ""
	for i, r := range results {
		if i > 0 {
			message += " "
		}
		message += r.Message()
	}

	if h.reportDir != "" {
		path, err := gcmd.SaveReport(h.reportDir, results, time.Now())
		if err != nil {
			logger.Get().Errorw("failed to save gcmd sync report", "error", err.Error())
		} else {
			logger.Get().Infow("gcmd sync report saved", "path", path)
		}
	}

	respond(c, http.StatusOK, message, results)
}
