package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "casei/internal/errors"
	"casei/internal/logger"
	"casei/internal/metrics"
)

// DeployConfig names the GitHub Actions workflow that rebuilds the static site.
type DeployConfig struct {
	Token      string
	Repo       string
	WorkflowID string
	Branch     string
	APIURL     string
}

func (c DeployConfig) configured() bool {
	return c.Token != "" && c.Repo != "" && c.WorkflowID != ""
}

// deployService dispatches the deploy workflow. No retries are attempted.
type deployService struct {
	cfg        DeployConfig
	httpClient *http.Client
}

// NewDeployService creates a new DeployServicer.
func NewDeployService(cfg DeployConfig, httpClient *http.Client) DeployServicer {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.github.com"
	}
	if cfg.Branch == "" {
		cfg.Branch = "production"
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &deployService{cfg: cfg, httpClient: httpClient}
}

// Trigger posts a workflow_dispatch event and returns the message shown to
// the admin.
func (s *deployService) Trigger(ctx context.Context) (string, error) {
	if !s.cfg.configured() {
		return "", apperrors.WithMessage(apperrors.ErrDeployNotConfigured,
			"Failed to trigger deployment: Github workflow not specified in settings.")
	}

	body, err := json.Marshal(map[string]string{"ref": s.cfg.Branch})
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	url := fmt.Sprintf("%s/repos/%s/actions/workflows/%s/dispatches", s.cfg.APIURL, s.cfg.Repo, s.cfg.WorkflowID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	req.Header.Set("Authorization", "token "+s.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.httpClient.Do(req)
	if err != nil {
		metrics.ExternalRequestDuration.WithLabelValues("github", "error").Observe(time.Since(start).Seconds())
		metrics.DeployTriggers.WithLabelValues("error").Inc()
		return "", apperrors.Newf(apperrors.ErrUpstream, "Failed to trigger deployment: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.ExternalRequestDuration.WithLabelValues("github", strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		metrics.DeployTriggers.WithLabelValues("failed").Inc()
		logger.Named("deploy").Warnw("deploy workflow dispatch failed", "status", resp.StatusCode, "repo", s.cfg.Repo)
		return "", apperrors.Newf(apperrors.ErrUpstream, "Failed to trigger deployment: %s", string(text))
	}

	metrics.DeployTriggers.WithLabelValues("ok").Inc()
	logger.Named("deploy").Infow("deploy workflow dispatched", "repo", s.cfg.Repo, "workflow", s.cfg.WorkflowID, "ref", s.cfg.Branch)
	return fmt.Sprintf("Successfully triggered deployment. See details at https://github.com/%s/actions/workflows/%s",
		s.cfg.Repo, s.cfg.WorkflowID), nil
}
